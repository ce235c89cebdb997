package api

import (
	"fmt"
	"time"

	"github.com/starford/estatehub/internal/apperr"
)

// parseTime accepts RFC 3339 timestamps and plain dates (midnight UTC).
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("time is required: %w", apperr.ErrValidation)
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid time %q: %w", s, apperr.ErrValidation)
}
