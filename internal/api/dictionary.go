package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/estatehub/internal/checksum"
	"github.com/starford/estatehub/internal/i18n"
)

// Dictionary handles GET /api/dictionary and GET /api/dictionary/{locale}.
// Without a path locale the request locale is used. Translation failures
// serve the fallback dictionary; Content-Language names what was served.
//
//	@Summary		Get the UI dictionary for a locale
//	@Tags			i18n
//	@Produce		json
//	@Param			locale	path		string	false	"Locale code"
//	@Success		200		{object}	DictionaryResponse
//	@Success		304
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/dictionary/{locale} [get]
func (h *Handler) Dictionary(w http.ResponseWriter, r *http.Request) {
	locale := chi.URLParam(r, "locale")
	if locale == "" {
		locale = i18n.LocaleFrom(r.Context())
	}
	if locale == "" {
		locale = h.resolver.Fallback()
	}
	tree, code, err := h.resolver.ResolveOrFallback(r.Context(), locale)
	if err != nil {
		writeError(w, r, err)
		return
	}
	body, err := json.Marshal(DictionaryResponse{
		Locale:    code,
		Direction: i18n.Direction(code),
		Messages:  tree,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	etag := checksum.ETag(body)
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Language", code)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Add("Vary", "Accept-Language, Cookie")
	if matchETag(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(append(body, '\n'))
}

func matchETag(header, etag string) bool {
	for _, v := range strings.Split(header, ",") {
		v = strings.TrimPrefix(strings.TrimSpace(v), "W/")
		if v == etag || v == "*" {
			return true
		}
	}
	return false
}
