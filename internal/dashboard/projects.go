package dashboard

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/estatehub/internal/models"
)

// ProjectInput holds the editable fields of a project.
type ProjectInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Location    string `json:"location"`
}

func (in *ProjectInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Location = strings.TrimSpace(in.Location)
}

// Validate validates the project input.
func (in *ProjectInput) Validate() error {
	return validation.ValidateStruct(in,
		validation.Field(&in.Name, validation.Required, validation.RuneLength(1, 200)),
		validation.Field(&in.Description, validation.RuneLength(0, 5000)),
		validation.Field(&in.Location, validation.RuneLength(0, 200)),
	)
}

// CreateProject creates a project owned by owner.
func (s *Service) CreateProject(ctx context.Context, owner string, in ProjectInput) (*models.Project, error) {
	in.normalize()
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}
	p, err := s.db.Projects().Create(ctx, &models.Project{
		Owner:       owner,
		Name:        in.Name,
		Description: in.Description,
		Location:    in.Location,
	})
	if err != nil {
		return nil, err
	}
	s.created(owner, p)
	return p, nil
}

// GetProject returns one project of owner.
func (s *Service) GetProject(ctx context.Context, owner string, id int64) (*Detail[*models.Project], error) {
	return load(ctx, s, owner, models.KindProject, id, s.db.Projects().Find)
}

// ListProjects returns owner's projects.
func (s *Service) ListProjects(ctx context.Context, owner string, q ListQuery) (*Page[*models.Project], error) {
	q.Parent = 0
	items, total, err := s.db.Projects().List(ctx, filter(owner, q))
	if err != nil {
		return nil, err
	}
	return page(items, total), nil
}

// UpdateProject rewrites the editable fields of an active project.
func (s *Service) UpdateProject(ctx context.Context, owner string, id int64, in ProjectInput) (*models.Project, error) {
	in.normalize()
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}
	p, err := editable(ctx, s, owner, models.KindProject, id, s.db.Projects().Find)
	if err != nil {
		return nil, err
	}
	p.Name, p.Description, p.Location = in.Name, in.Description, in.Location
	if p, err = s.db.Projects().Update(ctx, p); err != nil {
		return nil, err
	}
	s.updated(owner, p)
	return p, nil
}
