// Package stream runs multi-step creation workflows behind single-use
// tokens. A client issues a token with the request payload, then opens an
// event stream that executes the workflow and reports progress.
package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/starford/estatehub/internal/apperr"
	"github.com/starford/estatehub/internal/dashboard"
	"github.com/starford/estatehub/internal/models"
	"github.com/starford/estatehub/internal/store"
	"github.com/starford/estatehub/internal/translate"
)

var errParentBinned = fmt.Errorf("stream: parent is in the bin: %w", apperr.ErrPrecondition)

// Sink receives the progress of one workflow run.
type Sink interface {
	Status(msg string) error
	Completed(data string) error
	Fail(msg string) error
}

// PostRequest asks for a post whose caption is generated from Brief.
type PostRequest struct {
	CaseStudyID int64           `json:"case_study_id"`
	Platform    models.Platform `json:"platform"`
	Locale      string          `json:"locale"`
	Brief       string          `json:"brief"`
	ScheduledAt *time.Time      `json:"scheduled_at"`
}

// Validate validates the post request.
func (r *PostRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.CaseStudyID, validation.Required),
		validation.Field(&r.Platform, validation.Required, dashboard.PlatformRule),
		validation.Field(&r.Locale, validation.Required, dashboard.LocaleRule),
		validation.Field(&r.Brief, validation.Required, validation.RuneLength(1, 4000)),
	)
}

// CaseStudyRequest asks for a case study plus one drafted post per platform.
type CaseStudyRequest struct {
	ProjectID int64             `json:"project_id"`
	Title     string            `json:"title"`
	Content   string            `json:"content"`
	Audience  string            `json:"audience"`
	Locale    string            `json:"locale"`
	Platforms []models.Platform `json:"platforms"`
}

// Validate validates the case study request.
func (r *CaseStudyRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ProjectID, validation.Required),
		validation.Field(&r.Title, validation.Required),
		validation.Field(&r.Locale, validation.When(len(r.Platforms) > 0, validation.Required, dashboard.LocaleRule)),
		validation.Field(&r.Platforms, validation.Length(0, len(models.Platforms)), validation.Each(dashboard.PlatformRule)),
	)
}

// CaseStudyResult is the completed payload of a case study workflow.
type CaseStudyResult struct {
	CaseStudy *models.CaseStudy `json:"case_study"`
	Posts     []*models.Post    `json:"posts"`
}

// Runner issues tokens and executes workflows.
type Runner struct {
	db       *store.DB
	dash     *dashboard.Service
	gen      translate.Generator
	fallback translate.Generator
	ttl      time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithTTL sets how long an issued token stays valid.
func WithTTL(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.ttl = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithLogger sets the runner logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a Runner. Captions come from gen; when it fails upstream the
// deterministic template generator is used instead.
func New(db *store.DB, dash *dashboard.Service, gen translate.Generator, opts ...Option) *Runner {
	r := &Runner{
		db:       db,
		dash:     dash,
		gen:      gen,
		fallback: translate.Template{},
		ttl:      10 * time.Minute,
		now:      time.Now,
		logger:   slog.Default(),
	}
	if r.gen == nil {
		r.gen = r.fallback
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func decode(payload []byte, v interface{ Validate() error }) error {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("stream: decode payload: %w: %w", apperr.ErrValidation, err)
	}
	if err := v.Validate(); err != nil {
		return fmt.Errorf("stream: %w: %w", apperr.ErrValidation, err)
	}
	return nil
}

// Issue validates payload for kind and stores it under a fresh token.
// The parent named in the payload must belong to owner and be active.
func (r *Runner) Issue(ctx context.Context, owner string, kind models.Kind, payload []byte) (*models.StreamToken, error) {
	switch kind {
	case models.KindPost:
		var req PostRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		d, err := r.dash.GetCaseStudy(ctx, owner, req.CaseStudyID)
		if err != nil {
			return nil, err
		}
		if !d.Editable {
			return nil, errParentBinned
		}
	case models.KindCaseStudy:
		var req CaseStudyRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		d, err := r.dash.GetProject(ctx, owner, req.ProjectID)
		if err != nil {
			return nil, err
		}
		if !d.Editable {
			return nil, errParentBinned
		}
	default:
		return nil, fmt.Errorf("stream: no workflow for %q: %w", kind, apperr.ErrValidation)
	}

	now := r.now().UTC()
	tok := &models.StreamToken{
		Token:     uuid.NewString(),
		Owner:     owner,
		Kind:      kind,
		Payload:   string(payload),
		ExpiresAt: now.Add(r.ttl).Truncate(time.Millisecond),
		CreatedAt: now,
	}
	if err := r.db.PutToken(ctx, tok); err != nil {
		return nil, err
	}
	return tok, nil
}

// Run consumes token and executes its workflow, reporting to sink. A
// missing, expired, foreign or already used token fails with ErrNotFound.
func (r *Runner) Run(ctx context.Context, owner, token string, sink Sink) error {
	tok, err := r.db.TakeToken(ctx, token, owner, r.now())
	if err != nil {
		_ = sink.Fail("stream token is invalid or expired")
		return err
	}

	var result any
	switch tok.Kind {
	case models.KindPost:
		result, err = r.runPost(ctx, tok, sink)
	case models.KindCaseStudy:
		result, err = r.runCaseStudy(ctx, tok, sink)
	default:
		err = fmt.Errorf("stream: no workflow for %q: %w", tok.Kind, apperr.ErrValidation)
	}
	if err != nil {
		r.logger.Warn("stream workflow failed",
			slog.String("kind", string(tok.Kind)),
			slog.String("error", err.Error()),
		)
		_ = sink.Fail(failureMessage(err))
		return err
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("stream: encode result: %w", err)
	}
	return sink.Completed(string(data))
}

func (r *Runner) runPost(ctx context.Context, tok *models.StreamToken, sink Sink) (*models.Post, error) {
	var req PostRequest
	if err := decode([]byte(tok.Payload), &req); err != nil {
		return nil, err
	}
	_ = sink.Status("Writing caption")
	caption, err := r.caption(ctx, sink, req.Brief, req.Platform, req.Locale)
	if err != nil {
		return nil, err
	}
	_ = sink.Status("Saving post")
	return r.dash.CreatePost(ctx, tok.Owner, dashboard.PostInput{
		CaseStudyID: req.CaseStudyID,
		Platform:    req.Platform,
		Content:     caption,
		Locale:      req.Locale,
		ScheduledAt: req.ScheduledAt,
	})
}

func (r *Runner) runCaseStudy(ctx context.Context, tok *models.StreamToken, sink Sink) (*CaseStudyResult, error) {
	var req CaseStudyRequest
	if err := decode([]byte(tok.Payload), &req); err != nil {
		return nil, err
	}
	brief := req.Title
	if req.Content != "" {
		brief += "\n\n" + req.Content
	}
	posts := make([]dashboard.PostInput, 0, len(req.Platforms))
	for _, platform := range req.Platforms {
		_ = sink.Status(fmt.Sprintf("Drafting %s post", platform))
		caption, err := r.caption(ctx, sink, brief, platform, req.Locale)
		if err != nil {
			return nil, err
		}
		posts = append(posts, dashboard.PostInput{
			Platform: platform,
			Content:  caption,
			Locale:   req.Locale,
		})
	}

	_ = sink.Status("Saving case study")
	cs, created, err := r.dash.CreateCaseStudyWithPosts(ctx, tok.Owner, dashboard.CaseStudyInput{
		ProjectID: req.ProjectID,
		Title:     req.Title,
		Content:   req.Content,
		Audience:  req.Audience,
	}, posts)
	if err != nil {
		return nil, err
	}
	return &CaseStudyResult{CaseStudy: cs, Posts: created}, nil
}

// caption asks the generator, falling back to the template on upstream errors.
func (r *Runner) caption(ctx context.Context, sink Sink, brief string, platform models.Platform, locale string) (string, error) {
	out, err := r.gen.Caption(ctx, brief, platform, locale)
	if err == nil {
		return out, nil
	}
	if !errors.Is(err, apperr.ErrUpstream) {
		return "", err
	}
	r.logger.Warn("caption generator unavailable, using template", slog.String("error", err.Error()))
	_ = sink.Status("Caption service unavailable, using template")
	return r.fallback.Caption(ctx, brief, platform, locale)
}

func failureMessage(err error) string {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return "not found"
	case errors.Is(err, apperr.ErrValidation):
		return err.Error()
	case errors.Is(err, apperr.ErrPrecondition):
		return "the parent item is in the bin"
	}
	return "internal error"
}

// Janitor deletes expired tokens every interval until ctx is done.
func (r *Runner) Janitor(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := r.db.SweepTokens(ctx, r.now())
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				r.logger.Error("sweep stream tokens failed", slog.String("error", err.Error()))
				continue
			}
			if n > 0 {
				r.logger.Info("swept expired stream tokens", slog.Int64("count", n))
			}
		}
	}
}
