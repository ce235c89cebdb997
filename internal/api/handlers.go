package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/estatehub/internal/apperr"
	"github.com/starford/estatehub/internal/dashboard"
	"github.com/starford/estatehub/internal/i18n"
	"github.com/starford/estatehub/internal/models"
	"github.com/starford/estatehub/internal/store"
	"github.com/starford/estatehub/internal/stream"
)

// Handler holds API route handlers.
type Handler struct {
	svc      *dashboard.Service
	resolver *i18n.Resolver
	streams  *stream.Runner
}

// NewHandler creates a new Handler. streams may be nil, in which case the
// stream routes are not mounted.
func NewHandler(svc *dashboard.Service, resolver *i18n.Resolver, streams *stream.Runner) *Handler {
	return &Handler{svc: svc, resolver: resolver, streams: streams}
}

// toast returns the localized notification text under toasts.<key>. It
// only reads dictionaries that are already available so a mutation never
// waits on the translator.
func (h *Handler) toast(r *http.Request, key string) string {
	path := "toasts." + key
	if t, ok := h.resolver.Cached(i18n.LocaleFrom(r.Context())); ok {
		if s, ok := i18n.Lookup(t, path); ok {
			return s
		}
	}
	if t, ok := h.resolver.Cached(h.resolver.Fallback()); ok {
		if s, ok := i18n.Lookup(t, path); ok {
			return s
		}
	}
	return key
}

type handlerKey struct{}

// withHandler exposes h to writeError so failures carry a localized message.
func (h *Handler) withHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), handlerKey{}, h)))
	})
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q: %w", chi.URLParam(r, "id"), apperr.ErrValidation)
	}
	return id, nil
}

func listQuery(r *http.Request) (dashboard.ListQuery, error) {
	q := r.URL.Query()
	var lq dashboard.ListQuery
	var err error
	if lq.Deleted, err = store.ParseDeleted(q.Get("deleted")); err != nil {
		return lq, err
	}
	if v := q.Get("parent"); v != "" {
		if lq.Parent, err = strconv.ParseInt(v, 10, 64); err != nil || lq.Parent <= 0 {
			return lq, fmt.Errorf("invalid parent %q: %w", v, apperr.ErrValidation)
		}
	}
	lq.Limit, _ = strconv.Atoi(q.Get("limit"))
	lq.Offset, _ = strconv.Atoi(q.Get("offset"))
	return lq, nil
}

// entity binds one entity kind's service calls to the shared route shape.
type entity[T models.Record, In any] struct {
	kind   models.Kind
	create func(ctx context.Context, owner string, in In) (T, error)
	get    func(ctx context.Context, owner string, id int64) (*dashboard.Detail[T], error)
	list   func(ctx context.Context, owner string, q dashboard.ListQuery) (*dashboard.Page[T], error)
	update func(ctx context.Context, owner string, id int64, in In) (T, error)
}

// mountEntity registers the collection, item and lifecycle routes for e
// under path. extra adds kind-specific routes to the same subrouter.
func mountEntity[T models.Record, In any](r chi.Router, h *Handler, path string, e entity[T, In], extra ...func(chi.Router)) {
	r.Route(path, func(r chi.Router) {
		for _, fn := range extra {
			fn(r)
		}
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			q, err := listQuery(r)
			if err != nil {
				writeError(w, r, err)
				return
			}
			page, err := e.list(r.Context(), userOf(r), q)
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, page)
		})
		r.Post("/", func(w http.ResponseWriter, r *http.Request) {
			var in In
			if !decodeJSON(w, r, &in) {
				return
			}
			item, err := e.create(r.Context(), userOf(r), in)
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, MutationResponse{Item: item, Message: h.toast(r, "saved")})
		})
		r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
			id, err := pathID(r)
			if err != nil {
				writeError(w, r, err)
				return
			}
			d, err := e.get(r.Context(), userOf(r), id)
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, d)
		})
		r.Put("/{id}", func(w http.ResponseWriter, r *http.Request) {
			id, err := pathID(r)
			if err != nil {
				writeError(w, r, err)
				return
			}
			var in In
			if !decodeJSON(w, r, &in) {
				return
			}
			item, err := e.update(r.Context(), userOf(r), id, in)
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, MutationResponse{Item: item, Message: h.toast(r, "saved")})
		})
		r.Delete("/{id}", h.purge(e.kind))
		r.Post("/{id}/bin", h.transition(e.kind, "binned", h.svc.Bin))
		r.Post("/{id}/restore", h.transition(e.kind, "restored", h.svc.Restore))
	})
}

type transitionFunc func(ctx context.Context, owner string, ref models.Ref) (models.Record, error)

// transition handles POST /api/{kind}/{id}/bin and /restore.
//
//	@Summary		Move an entity to the bin or restore it
//	@Tags			lifecycle
//	@Produce		json
//	@Param			id	path		int	true	"Entity id"
//	@Success		200	{object}	MutationResponse
//	@Failure		404	{object}	errResponse
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/projects/{id}/bin [post]
//	@Router			/projects/{id}/restore [post]
func (h *Handler) transition(kind models.Kind, toast string, fn transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		rec, err := fn(r.Context(), userOf(r), models.Ref{Kind: kind, ID: id})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, MutationResponse{Item: rec, Message: h.toast(r, toast)})
	}
}

// purge handles DELETE /api/{kind}/{id}.
//
//	@Summary		Permanently delete an entity and its children
//	@Tags			lifecycle
//	@Produce		json
//	@Param			id	path		int	true	"Entity id"
//	@Success		200	{object}	MutationResponse
//	@Failure		404	{object}	errResponse
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/projects/{id} [delete]
func (h *Handler) purge(kind models.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := h.svc.Purge(r.Context(), userOf(r), models.Ref{Kind: kind, ID: id}); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, MutationResponse{Message: h.toast(r, "purged")})
	}
}

// Bin handles GET /api/bin.
//
//	@Summary		List binned entities of every kind
//	@Tags			lifecycle
//	@Produce		json
//	@Success		200	{object}	BinResponse
//	@Security		BearerAuth
//	@Router			/bin [get]
func (h *Handler) Bin(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.BinListing(r.Context(), userOf(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []models.BinItem{}
	}
	writeJSON(w, http.StatusOK, BinResponse{Items: items})
}

// Calendar handles GET /api/calendar.
//
//	@Summary		List posts scheduled in a time range
//	@Tags			posts
//	@Produce		json
//	@Param			from	query		string	true	"Range start (RFC 3339)"
//	@Param			to		query		string	true	"Range end, exclusive (RFC 3339)"
//	@Success		200		{object}	CalendarResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/calendar [get]
func (h *Handler) Calendar(w http.ResponseWriter, r *http.Request) {
	from, err1 := parseTime(r.URL.Query().Get("from"))
	to, err2 := parseTime(r.URL.Query().Get("to"))
	if err := errors.Join(err1, err2); err != nil {
		writeError(w, r, err)
		return
	}
	entries, err := h.svc.Calendar(r.Context(), userOf(r), from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []models.CalendarEntry{}
	}
	writeJSON(w, http.StatusOK, CalendarResponse{From: from, To: to, Entries: entries})
}

// Search handles GET /api/search.
//
//	@Summary		Search projects, properties and case studies
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	hits, err := h.svc.Search(r.Context(), userOf(r), r.URL.Query().Get("q"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if hits == nil {
		hits = []models.SearchHit{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: hits})
}
