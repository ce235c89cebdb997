package dashboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/starford/estatehub/internal/apperr"
	"github.com/starford/estatehub/internal/models"
)

// maxCalendarSpan bounds one calendar query.
const maxCalendarSpan = 366 * 24 * time.Hour

// BinListing returns owner's binned records across kinds, newest first.
func (s *Service) BinListing(ctx context.Context, owner string) ([]models.BinItem, error) {
	items, err := s.db.Bin(ctx, owner)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.BinItem{}
	}
	return items, nil
}

// Calendar returns owner's scheduled posts in [from, to) whose whole
// ancestor chain is active.
func (s *Service) Calendar(ctx context.Context, owner string, from, to time.Time) ([]models.CalendarEntry, error) {
	if !to.After(from) {
		return nil, fmt.Errorf("dashboard: calendar range must end after it starts: %w", apperr.ErrValidation)
	}
	if to.Sub(from) > maxCalendarSpan {
		return nil, fmt.Errorf("dashboard: calendar range exceeds one year: %w", apperr.ErrValidation)
	}
	entries, err := s.db.Calendar(ctx, owner, from, to)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []models.CalendarEntry{}
	}
	return entries, nil
}

// Search finds owner's active projects, properties and case studies by name.
func (s *Service) Search(ctx context.Context, owner, query string, limit int) ([]models.SearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("dashboard: empty search query: %w", apperr.ErrValidation)
	}
	hits, err := s.db.Search(ctx, owner, query, limit)
	if err != nil {
		return nil, err
	}
	if hits == nil {
		hits = []models.SearchHit{}
	}
	return hits, nil
}
