// Package dashboard is the application service behind the HTTP and MCP
// surfaces. It scopes every operation to the calling tenant, validates input,
// drives the lifecycle machines and publishes change events.
package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/estatehub/internal/apperr"
	"github.com/starford/estatehub/internal/lifecycle"
	"github.com/starford/estatehub/internal/models"
	"github.com/starford/estatehub/internal/sse"
	"github.com/starford/estatehub/internal/storage"
	"github.com/starford/estatehub/internal/store"
)

// Publisher receives committed entity changes.
type Publisher interface {
	PublishEntity(owner, typ string, ref models.Ref)
}

type nopPublisher struct{}

func (nopPublisher) PublishEntity(string, string, models.Ref) {}

// Detail is a single entity with its effective editability.
type Detail[T models.Record] struct {
	Item     T    `json:"item"`
	Editable bool `json:"editable"`
}

// Page is one page of a list query.
type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

// ListQuery narrows a list call.
type ListQuery struct {
	Parent  int64
	Deleted store.Deleted
	Limit   int
	Offset  int
}

// Service coordinates the store, lifecycle machines, image storage and
// event publishing.
type Service struct {
	db       *store.DB
	objects  storage.Provider
	pub      Publisher
	logger   *slog.Logger
	policy   lifecycle.Policy
	now      func() time.Time
	maxImage int64

	projects    *lifecycle.Machine[*models.Project]
	properties  *lifecycle.Machine[*models.Property]
	caseStudies *lifecycle.Machine[*models.CaseStudy]
	posts       *lifecycle.Machine[*models.Post]
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sets the event sink, usually the SSE broker.
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.pub = p
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPolicy sets the lifecycle policy for repeated bin/restore.
func WithPolicy(p lifecycle.Policy) Option {
	return func(s *Service) { s.policy = p }
}

// WithClock replaces time.Now for lifecycle timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMaxImageBytes caps uploaded image size.
func WithMaxImageBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxImage = n
		}
	}
}

// New creates a Service.
func New(db *store.DB, objects storage.Provider, opts ...Option) *Service {
	s := &Service{
		db:       db,
		objects:  objects,
		pub:      nopPublisher{},
		logger:   slog.Default(),
		now:      time.Now,
		maxImage: 10 << 20,
	}
	for _, opt := range opts {
		opt(s)
	}

	mopts := []lifecycle.Option{
		lifecycle.WithPolicy(s.policy),
		lifecycle.WithClock(s.now),
		lifecycle.WithObserver(s.observe),
	}
	s.projects = lifecycle.New[*models.Project](models.KindProject, db.Projects(), mopts...)
	s.properties = lifecycle.New[*models.Property](models.KindProperty, db.Properties(), mopts...)
	s.caseStudies = lifecycle.New[*models.CaseStudy](models.KindCaseStudy, db.CaseStudies(), mopts...)
	s.posts = lifecycle.New[*models.Post](models.KindPost, db.Posts(), mopts...)
	return s
}

type ownerKey struct{}

func withOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ownerKey{}, owner)
}

func ownerFrom(ctx context.Context) string {
	owner, _ := ctx.Value(ownerKey{}).(string)
	return owner
}

// observe publishes lifecycle transitions once they are committed.
func (s *Service) observe(ctx context.Context, tr lifecycle.Transition) {
	s.logger.Info("lifecycle transition",
		slog.String("ref", tr.Ref.String()),
		slog.String("op", string(tr.Op)),
		slog.Time("at", tr.At),
	)
	s.pub.PublishEntity(ownerFrom(ctx), sse.EventType(tr.Op), tr.Ref)
}

// authorize fails with ErrNotFound unless owner owns ref. Foreign records
// are indistinguishable from missing ones.
func (s *Service) authorize(ctx context.Context, owner string, ref models.Ref) error {
	got, err := s.db.OwnerOf(ctx, ref)
	if err != nil {
		return err
	}
	if got != owner {
		return fmt.Errorf("dashboard: %s: %w", ref, apperr.ErrNotFound)
	}
	return nil
}

// requireActiveParent checks that owner owns parent and that it is effectively
// active; new children cannot be attached to binned subtrees.
func (s *Service) requireActiveParent(ctx context.Context, owner string, parent models.Ref) error {
	if err := s.authorize(ctx, owner, parent); err != nil {
		return err
	}
	rec, err := s.db.FindRecord(ctx, parent)
	if err != nil {
		return err
	}
	active, err := lifecycle.EffectivelyActive(ctx, s.db, rec)
	if err != nil {
		return err
	}
	if !active {
		return fmt.Errorf("dashboard: %s is in the bin: %w", parent, apperr.ErrPrecondition)
	}
	return nil
}

// load fetches a record owned by owner along with its editability.
func load[T models.Record](ctx context.Context, s *Service, owner string, kind models.Kind, id int64,
	find func(context.Context, int64) (T, error)) (*Detail[T], error) {
	if err := s.authorize(ctx, owner, models.Ref{Kind: kind, ID: id}); err != nil {
		return nil, err
	}
	rec, err := find(ctx, id)
	if err != nil {
		return nil, err
	}
	editable, err := lifecycle.EffectivelyActive(ctx, s.db, rec)
	if err != nil {
		return nil, err
	}
	return &Detail[T]{Item: rec, Editable: editable}, nil
}

// editable loads a record for mutation; binned or orphaned records are
// read-only.
func editable[T models.Record](ctx context.Context, s *Service, owner string, kind models.Kind, id int64,
	find func(context.Context, int64) (T, error)) (T, error) {
	d, err := load(ctx, s, owner, kind, id, find)
	if err != nil {
		var zero T
		return zero, err
	}
	if !d.Editable {
		var zero T
		return zero, fmt.Errorf("dashboard: %s is not editable: %w", d.Item.Ref(), apperr.ErrPrecondition)
	}
	return d.Item, nil
}

func (s *Service) created(owner string, rec models.Record) {
	s.pub.PublishEntity(owner, sse.EntityCreated, rec.Ref())
}

func (s *Service) updated(owner string, rec models.Record) {
	s.pub.PublishEntity(owner, sse.EntityUpdated, rec.Ref())
}

func filter(owner string, q ListQuery) store.Filter {
	return store.Filter{
		Owner:    owner,
		ParentID: q.Parent,
		Deleted:  q.Deleted,
		Limit:    q.Limit,
		Offset:   q.Offset,
	}
}

func page[T any](items []T, total int) *Page[T] {
	if items == nil {
		items = []T{}
	}
	return &Page[T]{Items: items, Total: total}
}

func invalid(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", apperr.ErrValidation, err)
}
