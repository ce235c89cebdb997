package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/estatehub/internal/apperr"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
	// Message is a localized sentence fit for a toast.
	Message string `json:"message,omitempty"`
}

func errorBody(r *http.Request, msg string) errResponse {
	body := errResponse{Error: msg}
	if h, ok := r.Context().Value(handlerKey{}).(*Handler); ok && h.resolver != nil {
		body.Message = h.toast(r, "failed")
	}
	return body
}

// writeError maps a service error to its HTTP status.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody(r, "not found"))
	case errors.Is(err, apperr.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorBody(r, validationMessage(err)))
	case errors.Is(err, apperr.ErrPrecondition), errors.Is(err, apperr.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorBody(r, err.Error()))
	case errors.Is(err, apperr.ErrUpstream):
		slog.Warn("upstream failure",
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorBody(r, "upstream service unavailable"))
	default:
		slog.Error("request failed",
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody(r, "internal error"))
	}
}

// validationMessage prefers the field errors over the wrapped chain.
func validationMessage(err error) string {
	var verr validation.Errors
	if errors.As(err, &verr) {
		return verr.Error()
	}
	return err.Error()
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(r, "invalid JSON body"))
		return false
	}
	return true
}
