package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/estatehub/internal/apperr"
	"github.com/starford/estatehub/internal/lifecycle"
	"github.com/starford/estatehub/internal/models"
)

var errUnknownKind = errors.New("unknown entity kind")

// Bin moves one of owner's records to the bin.
func (s *Service) Bin(ctx context.Context, owner string, ref models.Ref) (models.Record, error) {
	if err := s.authorize(ctx, owner, ref); err != nil {
		return nil, err
	}
	ctx = withOwner(ctx, owner)
	switch ref.Kind {
	case models.KindProject:
		return record(s.projects.Bin(ctx, ref.ID))
	case models.KindProperty:
		return record(s.properties.Bin(ctx, ref.ID))
	case models.KindCaseStudy:
		return record(s.caseStudies.Bin(ctx, ref.ID))
	case models.KindPost:
		return record(s.posts.Bin(ctx, ref.ID))
	}
	return nil, fmt.Errorf("dashboard: %s: %w: %w", ref.Kind, apperr.ErrValidation, errUnknownKind)
}

// Restore brings one of owner's records back from the bin.
func (s *Service) Restore(ctx context.Context, owner string, ref models.Ref) (models.Record, error) {
	if err := s.authorize(ctx, owner, ref); err != nil {
		return nil, err
	}
	ctx = withOwner(ctx, owner)
	switch ref.Kind {
	case models.KindProject:
		return record(s.projects.Restore(ctx, ref.ID))
	case models.KindProperty:
		return record(s.properties.Restore(ctx, ref.ID))
	case models.KindCaseStudy:
		return record(s.caseStudies.Restore(ctx, ref.ID))
	case models.KindPost:
		return record(s.posts.Restore(ctx, ref.ID))
	}
	return nil, fmt.Errorf("dashboard: %s: %w: %w", ref.Kind, apperr.ErrValidation, errUnknownKind)
}

// Purge permanently deletes one of owner's records together with its owned
// children and their stored images.
func (s *Service) Purge(ctx context.Context, owner string, ref models.Ref) error {
	if err := s.authorize(ctx, owner, ref); err != nil {
		return err
	}
	images, err := s.db.ImageNames(ctx, ref)
	if err != nil {
		return err
	}

	ctx = withOwner(ctx, owner)
	switch ref.Kind {
	case models.KindProject:
		err = s.projects.Purge(ctx, ref.ID)
	case models.KindProperty:
		err = s.properties.Purge(ctx, ref.ID)
	case models.KindCaseStudy:
		err = s.caseStudies.Purge(ctx, ref.ID)
	case models.KindPost:
		err = s.posts.Purge(ctx, ref.ID)
	default:
		err = fmt.Errorf("dashboard: %s: %w: %w", ref.Kind, apperr.ErrValidation, errUnknownKind)
	}
	if err != nil {
		return err
	}
	for _, name := range images {
		s.releaseObject(ctx, name)
	}
	return nil
}

// State reports the lifecycle state and effective activity of one of
// owner's records.
func (s *Service) State(ctx context.Context, owner string, ref models.Ref) (lifecycle.State, bool, error) {
	if err := s.authorize(ctx, owner, ref); err != nil {
		return lifecycle.Purged, false, err
	}
	rec, err := s.db.FindRecord(ctx, ref)
	if err != nil {
		return lifecycle.Purged, false, err
	}
	active, err := lifecycle.EffectivelyActive(ctx, s.db, rec)
	if err != nil {
		return lifecycle.Purged, false, err
	}
	return lifecycle.StateOf(rec), active, nil
}

func record[T models.Record](rec T, err error) (models.Record, error) {
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// releaseObject deletes a stored image once no row references it.
func (s *Service) releaseObject(ctx context.Context, name string) {
	inUse, err := s.db.ImageNameInUse(ctx, name)
	if err != nil || inUse {
		return
	}
	if err := s.objects.Delete(name); err != nil && !errors.Is(err, apperr.ErrNotFound) {
		s.logger.Warn("delete image object failed",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
	}
}
