package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/estatehub/internal/apperr"
	"github.com/starford/estatehub/internal/models"
	"github.com/starford/estatehub/internal/sse"
)

// IssueStream handles POST /api/streams.
//
//	@Summary		Issue a single-use token for a creation workflow
//	@Tags			streams
//	@Accept			json
//	@Produce		json
//	@Param			body	body		StreamRequest	true	"Workflow kind and payload"
//	@Success		201		{object}	StreamResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/streams [post]
func (h *Handler) IssueStream(w http.ResponseWriter, r *http.Request) {
	var req StreamRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	kind, err := models.ParseKind(req.Kind)
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: %w", apperr.ErrValidation, err))
		return
	}
	tok, err := h.streams.Issue(r.Context(), userOf(r), kind, req.Payload)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, StreamResponse{
		Token:     tok.Token,
		Kind:      string(tok.Kind),
		ExpiresAt: tok.ExpiresAt,
		URL:       "/api/streams/" + tok.Token,
	})
}

// RunStream handles GET /api/streams/{token}. The response is an event
// stream of status events ending in completed or error.
//
//	@Summary		Run a creation workflow as a server-sent event stream
//	@Tags			streams
//	@Produce		text/event-stream
//	@Param			token	path	string	true	"Stream token"
//	@Success		200
//	@Security		BearerAuth
//	@Router			/streams/{token} [get]
func (h *Handler) RunStream(w http.ResponseWriter, r *http.Request) {
	s, err := sse.NewStream(w)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody(r, "streaming unsupported"))
		return
	}
	// Failures are reported on the stream and logged by the runner.
	_ = h.streams.Run(r.Context(), userOf(r), chi.URLParam(r, "token"), s)
}
