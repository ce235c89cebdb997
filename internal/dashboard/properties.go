package dashboard

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/estatehub/internal/models"
)

// PropertyInput holds the editable fields of a property. ProjectID is only
// read on create.
type PropertyInput struct {
	ProjectID   int64   `json:"project_id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Price       int64   `json:"price"`
	Currency    string  `json:"currency"`
	AreaSqm     float64 `json:"area_sqm"`
	Bedrooms    int     `json:"bedrooms"`
	Bathrooms   int     `json:"bathrooms"`
}

func (in *PropertyInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
}

// Validate validates the property input.
func (in *PropertyInput) Validate() error {
	return validation.ValidateStruct(in,
		validation.Field(&in.Title, validation.Required, validation.RuneLength(1, 200)),
		validation.Field(&in.Description, validation.RuneLength(0, 5000)),
		validation.Field(&in.Price, validation.Min(int64(0))),
		validation.Field(&in.Currency, validation.Required, is.CurrencyCode),
		validation.Field(&in.AreaSqm, validation.Min(0.0)),
		validation.Field(&in.Bedrooms, validation.Min(0), validation.Max(100)),
		validation.Field(&in.Bathrooms, validation.Min(0), validation.Max(100)),
	)
}

// CreateProperty adds a property to one of owner's active projects.
func (s *Service) CreateProperty(ctx context.Context, owner string, in PropertyInput) (*models.Property, error) {
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
	p, err := s.db.Properties().Create(ctx, &models.Property{
		ProjectID:   in.ProjectID,
		Title:       in.Title,
		Description: in.Description,
		Price:       in.Price,
		Currency:    in.Currency,
		AreaSqm:     in.AreaSqm,
		Bedrooms:    in.Bedrooms,
		Bathrooms:   in.Bathrooms,
	})
	if err != nil {
		return nil, err
	}
	s.created(owner, p)
	return p, nil
}

// GetProperty returns one property of owner.
func (s *Service) GetProperty(ctx context.Context, owner string, id int64) (*Detail[*models.Property], error) {
	return load(ctx, s, owner, models.KindProperty, id, s.db.Properties().Find)
}

// ListProperties returns owner's properties, optionally of one project.
func (s *Service) ListProperties(ctx context.Context, owner string, q ListQuery) (*Page[*models.Property], error) {
	if q.Parent != 0 {
		if err := s.authorize(ctx, owner, models.Ref{Kind: models.KindProject, ID: q.Parent}); err != nil {
			return nil, err
		}
	}
	items, total, err := s.db.Properties().List(ctx, filter(owner, q))
	if err != nil {
		return nil, err
	}
	return page(items, total), nil
}

// UpdateProperty rewrites the editable fields of an effectively active property.
func (s *Service) UpdateProperty(ctx context.Context, owner string, id int64, in PropertyInput) (*models.Property, error) {
	in.normalize()
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}
	p, err := editable(ctx, s, owner, models.KindProperty, id, s.db.Properties().Find)
	if err != nil {
		return nil, err
	}
	p.Title, p.Description = in.Title, in.Description
	p.Price, p.Currency, p.AreaSqm = in.Price, in.Currency, in.AreaSqm
	p.Bedrooms, p.Bathrooms = in.Bedrooms, in.Bathrooms
	if p, err = s.db.Properties().Update(ctx, p); err != nil {
		return nil, err
	}
	s.updated(owner, p)
	return p, nil
}
