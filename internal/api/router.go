package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/estatehub/internal/dashboard"
	"github.com/starford/estatehub/internal/i18n"
	"github.com/starford/estatehub/internal/models"
	"github.com/starford/estatehub/internal/stream"
)

// Deps are the collaborators the API is built from.
type Deps struct {
	Service  *dashboard.Service
	Resolver *i18n.Resolver
	// Streams, if nil, leaves the creation stream routes unmounted.
	Streams *stream.Runner
	// Events, if non-nil, is mounted at GET /events inside the auth group.
	Events http.Handler

	AuthEnabled bool
	// Users maps bearer tokens to tenant ids.
	Users         map[string]string
	DefaultLocale string
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(d Deps) chi.Router {
	h := NewHandler(d.Service, d.Resolver, d.Streams)

	r := chi.NewRouter()
	var supported func() []string
	if d.Resolver != nil {
		supported = d.Resolver.Supported
	}
	r.Use(i18n.Middleware(d.DefaultLocale, supported))
	r.Use(h.withHandler)
	r.Use(AuthMiddleware(d.AuthEnabled, d.Users))

	mountEntity(r, h, "/projects", entity[*models.Project, dashboard.ProjectInput]{
		kind:   models.KindProject,
		create: d.Service.CreateProject,
		get:    d.Service.GetProject,
		list:   d.Service.ListProjects,
		update: d.Service.UpdateProject,
	})
	mountEntity(r, h, "/properties", entity[*models.Property, dashboard.PropertyInput]{
		kind:   models.KindProperty,
		create: d.Service.CreateProperty,
		get:    d.Service.GetProperty,
		list:   d.Service.ListProperties,
		update: d.Service.UpdateProperty,
	})
	mountEntity(r, h, "/case-studies", entity[*models.CaseStudy, dashboard.CaseStudyInput]{
		kind:   models.KindCaseStudy,
		create: d.Service.CreateCaseStudy,
		get:    d.Service.GetCaseStudy,
		list:   d.Service.ListCaseStudies,
		update: d.Service.UpdateCaseStudy,
	})
	mountEntity(r, h, "/posts", entity[*models.Post, dashboard.PostInput]{
		kind:   models.KindPost,
		create: d.Service.CreatePost,
		get:    d.Service.GetPost,
		list:   d.Service.ListPosts,
		update: d.Service.UpdatePost,
	}, func(r chi.Router) {
		r.Get("/{id}/images", h.ListImages)
		r.Post("/{id}/images", h.UploadImage)
	})

	// Images.
	r.Delete("/images/{id}", h.DeleteImage)
	r.Get("/uploads/{name}", h.ServeUpload)

	// Views.
	r.Get("/bin", h.Bin)
	r.Get("/calendar", h.Calendar)
	r.Get("/search", h.Search)

	// Dictionary.
	r.Get("/dictionary", h.Dictionary)
	r.Get("/dictionary/{locale}", h.Dictionary)

	if d.Streams != nil {
		r.Post("/streams", h.IssueStream)
		r.Get("/streams/{token}", h.RunStream)
	}

	if d.Events != nil {
		r.Get("/events", d.Events.ServeHTTP)
	}

	return r
}
