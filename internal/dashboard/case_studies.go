package dashboard

import (
	"context"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/estatehub/internal/models"
)

// CaseStudyInput holds the editable fields of a case study. ProjectID is
// only read on create.
type CaseStudyInput struct {
	ProjectID int64  `json:"project_id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Audience  string `json:"audience"`
}

func (in *CaseStudyInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Audience = strings.TrimSpace(in.Audience)
}

// Validate validates the case study input.
func (in *CaseStudyInput) Validate() error {
	return validation.ValidateStruct(in,
		validation.Field(&in.Title, validation.Required, validation.RuneLength(1, 200)),
		validation.Field(&in.Content, validation.RuneLength(0, 20000)),
		validation.Field(&in.Audience, validation.RuneLength(0, 200)),
	)
}

// CreateCaseStudy adds a case study to one of owner's active projects.
func (s *Service) CreateCaseStudy(ctx context.Context, owner string, in CaseStudyInput) (*models.CaseStudy, error) {
	in.normalize()
	if err := validation.Validate(in.ProjectID, validation.Required); err != nil {
		return nil, invalid(validation.Errors{"project_id": err})
	}
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}
	if err := s.requireActiveParent(ctx, owner, models.Ref{Kind: models.KindProject, ID: in.ProjectID}); err != nil {
		return nil, err
	}
	c, err := s.db.CaseStudies().Create(ctx, &models.CaseStudy{
		ProjectID: in.ProjectID,
		Title:     in.Title,
		Content:   in.Content,
		Audience:  in.Audience,
	})
	if err != nil {
		return nil, err
	}
	s.created(owner, c)
	return c, nil
}

// CreateCaseStudyWithPosts adds a case study and its posts in one step:
// either all of them are stored or none is. CaseStudyID of posts is ignored.
func (s *Service) CreateCaseStudyWithPosts(ctx context.Context, owner string, in CaseStudyInput, posts []PostInput) (*models.CaseStudy, []*models.Post, error) {
	in.normalize()
	if err := validation.Validate(in.ProjectID, validation.Required); err != nil {
		return nil, nil, invalid(validation.Errors{"project_id": err})
	}
	if err := in.Validate(); err != nil {
		return nil, nil, invalid(err)
	}
	rows := make([]*models.Post, len(posts))
	for i := range posts {
		p := posts[i]
		p.normalize()
		if err := p.Validate(); err != nil {
			return nil, nil, invalid(validation.Errors{fmt.Sprintf("posts[%d]", i): err})
		}
		rows[i] = &models.Post{
			Platform:    p.Platform,
			Content:     p.Content,
			Locale:      p.Locale,
			ScheduledAt: p.ScheduledAt,
			Published:   p.Published,
		}
	}
	if err := s.requireActiveParent(ctx, owner, models.Ref{Kind: models.KindProject, ID: in.ProjectID}); err != nil {
		return nil, nil, err
	}
	c, created, err := s.db.CaseStudies().CreateWithPosts(ctx, &models.CaseStudy{
		ProjectID: in.ProjectID,
		Title:     in.Title,
		Content:   in.Content,
		Audience:  in.Audience,
	}, rows)
	if err != nil {
		return nil, nil, err
	}
	s.created(owner, c)
	for _, p := range created {
		s.created(owner, p)
	}
	return c, created, nil
}

// GetCaseStudy returns one case study of owner.
func (s *Service) GetCaseStudy(ctx context.Context, owner string, id int64) (*Detail[*models.CaseStudy], error) {
	return load(ctx, s, owner, models.KindCaseStudy, id, s.db.CaseStudies().Find)
}

// ListCaseStudies returns owner's case studies, optionally of one project.
func (s *Service) ListCaseStudies(ctx context.Context, owner string, q ListQuery) (*Page[*models.CaseStudy], error) {
	if q.Parent != 0 {
		if err := s.authorize(ctx, owner, models.Ref{Kind: models.KindProject, ID: q.Parent}); err != nil {
			return nil, err
		}
	}
	items, total, err := s.db.CaseStudies().List(ctx, filter(owner, q))
	if err != nil {
		return nil, err
	}
	return page(items, total), nil
}

// UpdateCaseStudy rewrites the editable fields of an effectively active case study.
func (s *Service) UpdateCaseStudy(ctx context.Context, owner string, id int64, in CaseStudyInput) (*models.CaseStudy, error) {
	in.normalize()
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}
	c, err := editable(ctx, s, owner, models.KindCaseStudy, id, s.db.CaseStudies().Find)
	if err != nil {
		return nil, err
	}
	c.Title, c.Content, c.Audience = in.Title, in.Content, in.Audience
	if c, err = s.db.CaseStudies().Update(ctx, c); err != nil {
		return nil, err
	}
	s.updated(owner, c)
	return c, nil
}
