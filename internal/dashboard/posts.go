package dashboard

import (
	"context"
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/estatehub/internal/i18n"
	"github.com/starford/estatehub/internal/models"
)

// PostInput holds the editable fields of a post. CaseStudyID is only read
// on create.
type PostInput struct {
	CaseStudyID int64           `json:"case_study_id"`
	Platform    models.Platform `json:"platform"`
	Content     string          `json:"content"`
	Locale      string          `json:"locale"`
	ScheduledAt *time.Time      `json:"scheduled_at"`
	Published   bool            `json:"published"`
}

func (in *PostInput) normalize() {
	in.Platform = models.Platform(strings.ToLower(strings.TrimSpace(string(in.Platform))))
	in.Content = strings.TrimSpace(in.Content)
	if code, err := i18n.Normalize(in.Locale); err == nil {
		in.Locale = code
	}
	if in.ScheduledAt != nil {
		at := in.ScheduledAt.UTC().Truncate(time.Second)
		in.ScheduledAt = &at
	}
}

// PlatformRule accepts the supported social platforms.
var PlatformRule = func() validation.Rule {
	vals := make([]any, len(models.Platforms))
	for i, p := range models.Platforms {
		vals[i] = p
	}
	return validation.In(vals...).Error("must be a supported platform")
}()

// LocaleRule accepts any well-formed language tag.
var LocaleRule = validation.By(func(v any) error {
	s, _ := v.(string)
	if _, err := i18n.Normalize(s); err != nil {
		return errors.New("must be a valid language code")
	}
	return nil
})

// Validate validates the post input.
func (in *PostInput) Validate() error {
	return validation.ValidateStruct(in,
		validation.Field(&in.Platform, validation.Required, PlatformRule),
		validation.Field(&in.Content, validation.Required, validation.RuneLength(1, 5000)),
		validation.Field(&in.Locale, validation.Required, LocaleRule),
	)
}

// CreatePost adds a post to one of owner's effectively active case studies.
func (s *Service) CreatePost(ctx context.Context, owner string, in PostInput) (*models.Post, error) {
	in.normalize()
	if err := validation.Validate(in.CaseStudyID, validation.Required); err != nil {
		return nil, invalid(validation.Errors{"case_study_id": err})
	}
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}
	if err := s.requireActiveParent(ctx, owner, models.Ref{Kind: models.KindCaseStudy, ID: in.CaseStudyID}); err != nil {
		return nil, err
	}
	p, err := s.db.Posts().Create(ctx, &models.Post{
		CaseStudyID: in.CaseStudyID,
		Platform:    in.Platform,
		Content:     in.Content,
		Locale:      in.Locale,
		ScheduledAt: in.ScheduledAt,
		Published:   in.Published,
	})
	if err != nil {
		return nil, err
	}
	s.created(owner, p)
	return p, nil
}

// GetPost returns one post of owner.
func (s *Service) GetPost(ctx context.Context, owner string, id int64) (*Detail[*models.Post], error) {
	return load(ctx, s, owner, models.KindPost, id, s.db.Posts().Find)
}

// ListPosts returns owner's posts, optionally of one case study.
func (s *Service) ListPosts(ctx context.Context, owner string, q ListQuery) (*Page[*models.Post], error) {
	if q.Parent != 0 {
		if err := s.authorize(ctx, owner, models.Ref{Kind: models.KindCaseStudy, ID: q.Parent}); err != nil {
			return nil, err
		}
	}
	items, total, err := s.db.Posts().List(ctx, filter(owner, q))
	if err != nil {
		return nil, err
	}
	return page(items, total), nil
}

// UpdatePost rewrites the editable fields of an effectively active post.
func (s *Service) UpdatePost(ctx context.Context, owner string, id int64, in PostInput) (*models.Post, error) {
	in.normalize()
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}
	p, err := editable(ctx, s, owner, models.KindPost, id, s.db.Posts().Find)
	if err != nil {
		return nil, err
	}
	p.Platform, p.Content, p.Locale = in.Platform, in.Content, in.Locale
	p.ScheduledAt, p.Published = in.ScheduledAt, in.Published
	if p, err = s.db.Posts().Update(ctx, p); err != nil {
		return nil, err
	}
	s.updated(owner, p)
	return p, nil
}
