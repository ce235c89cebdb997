package api

import (
	"encoding/json"
	"time"

	"github.com/starford/estatehub/internal/dashboard"
	"github.com/starford/estatehub/internal/i18n"
	"github.com/starford/estatehub/internal/models"
)

// ProjectInput is the request body for creating or updating a project.
type ProjectInput = dashboard.ProjectInput

// PropertyInput is the request body for creating or updating a property.
type PropertyInput = dashboard.PropertyInput

// CaseStudyInput is the request body for creating or updating a case study.
type CaseStudyInput = dashboard.CaseStudyInput

// PostInput is the request body for creating or updating a post.
type PostInput = dashboard.PostInput

// MutationResponse is returned by every create, update and lifecycle call.
// Message is a localized notification text.
type MutationResponse struct {
	Item    models.Record `json:"item,omitempty"`
	Message string        `json:"message" example:"Moved to bin" validate:"required"`
}

// BinResponse wraps the bin listing.
type BinResponse struct {
	Items []models.BinItem `json:"items" validate:"required"`
}

// CalendarResponse wraps the posts scheduled in a range.
type CalendarResponse struct {
	From    time.Time              `json:"from" validate:"required"`
	To      time.Time              `json:"to" validate:"required"`
	Entries []models.CalendarEntry `json:"entries" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []models.SearchHit `json:"results" validate:"required"`
}

// ImageListResponse wraps the images of a post.
type ImageListResponse struct {
	Images []*models.Image `json:"images" validate:"required"`
}

// DictionaryResponse is the localized UI dictionary.
type DictionaryResponse struct {
	Locale    string    `json:"locale" example:"ar" validate:"required"`
	Direction string    `json:"direction" example:"rtl" validate:"required"`
	Messages  i18n.Tree `json:"messages" swaggertype:"object" validate:"required"`
}

// StreamRequest is the request body for issuing a creation stream token.
type StreamRequest struct {
	Kind    string          `json:"kind" example:"post" validate:"required"`
	Payload json.RawMessage `json:"payload" swaggertype:"object" validate:"required"`
}

// StreamResponse describes an issued stream token.
type StreamResponse struct {
	Token     string    `json:"token" validate:"required"`
	Kind      string    `json:"kind" example:"post" validate:"required"`
	ExpiresAt time.Time `json:"expires_at" validate:"required"`
	URL       string    `json:"url" example:"/api/streams/3f2a..." validate:"required"`
}
