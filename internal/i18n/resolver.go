package i18n

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/estatehub/internal/apperr"
)

// Translator translates one text between two locale codes.
type Translator interface {
	Translate(ctx context.Context, text, from, to string) (string, error)
}

// Resolver produces localized trees for any locale.
type Resolver struct {
	translator   Translator
	fallback     string
	translatable map[string]struct{}
	concurrency  int
	timeout      time.Duration
	logger       *slog.Logger

	mu     sync.RWMutex
	bundle *Bundle
	cache  *Cache
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithFallback sets the canonical locale used as the translation source.
func WithFallback(locale string) ResolverOption {
	return func(r *Resolver) { r.fallback = locale }
}

// WithTranslatable restricts machine translation to the given locales.
// With no restriction any well-formed locale is accepted.
func WithTranslatable(locales ...string) ResolverOption {
	return func(r *Resolver) {
		for _, l := range locales {
			if code, err := Normalize(l); err == nil {
				r.translatable[code] = struct{}{}
			}
		}
	}
}

// WithConcurrency bounds parallel translator calls during one tree walk.
func WithConcurrency(n int) ResolverOption {
	return func(r *Resolver) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithTimeout bounds one whole tree translation.
func WithTimeout(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithCache injects the cache of derived trees.
func WithCache(c *Cache) ResolverOption {
	return func(r *Resolver) {
		if c != nil {
			r.cache = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResolver creates a resolver over bundle. The fallback locale defaults to
// "en" and must be canonical.
func NewResolver(bundle *Bundle, translator Translator, opts ...ResolverOption) (*Resolver, error) {
	if bundle == nil {
		return nil, errors.New("i18n: bundle is required")
	}
	if translator == nil {
		return nil, errors.New("i18n: translator is required")
	}
	r := &Resolver{
		translator:   translator,
		fallback:     "en",
		translatable: make(map[string]struct{}),
		concurrency:  8,
		timeout:      2 * time.Minute,
		logger:       slog.Default(),
		bundle:       bundle,
		cache:        NewCache(),
	}
	for _, opt := range opts {
		opt(r)
	}
	code, err := Normalize(r.fallback)
	if err != nil {
		return nil, err
	}
	if !bundle.Has(code) {
		return nil, fmt.Errorf("i18n: fallback locale %q is not canonical", code)
	}
	r.fallback = code
	return r, nil
}

// Fallback returns the translation source locale.
func (r *Resolver) Fallback() string { return r.fallback }

// Canonical returns the canonical locale codes.
func (r *Resolver) Canonical() []string {
	b, _ := r.snapshot()
	return b.Locales()
}

// Supported returns the locales the resolver will serve: the canonical ones
// plus the translatable allow-list, sorted. It returns nil when any locale
// may be translated.
func (r *Resolver) Supported() []string {
	if len(r.translatable) == 0 {
		return nil
	}
	out := r.Canonical()
	for code := range r.translatable {
		if !slices.Contains(out, code) {
			out = append(out, code)
		}
	}
	slices.Sort(out)
	return out
}

// Reload swaps in a new canonical bundle and starts over with an empty cache.
func (r *Resolver) Reload(b *Bundle) error {
	if !b.Has(r.fallback) {
		return fmt.Errorf("i18n: reloaded bundle lacks fallback locale %q", r.fallback)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bundle = b
	r.cache = NewCache()
	return nil
}

func (r *Resolver) snapshot() (*Bundle, *Cache) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.bundle, r.cache
}

// Resolve returns the localized tree for locale. Canonical locales come
// straight from the bundle; others are translated from the fallback tree once
// and cached. Translator failures are wrapped in apperr.ErrUpstream and
// leave the cache untouched.
func (r *Resolver) Resolve(ctx context.Context, locale string) (Tree, error) {
	t, _, err := r.resolve(ctx, locale)
	return t, err
}

// ResolveOrFallback is Resolve for page rendering: when translation fails
// upstream it serves the untranslated fallback tree instead. The returned
// code is the locale actually served.
func (r *Resolver) ResolveOrFallback(ctx context.Context, locale string) (Tree, string, error) {
	t, code, err := r.resolve(ctx, locale)
	if err == nil {
		return t, code, nil
	}
	if !errors.Is(err, apperr.ErrUpstream) {
		return nil, "", err
	}
	r.logger.Warn("i18n: serving fallback dictionary",
		slog.String("locale", code),
		slog.String("fallback", r.fallback),
		slog.String("error", err.Error()))
	b, _ := r.snapshot()
	fb, _ := b.Tree(r.fallback)
	return fb, r.fallback, nil
}

// Cached returns the tree for locale without translating: canonical locales
// and locales already in the cache hit, anything else misses.
func (r *Resolver) Cached(locale string) (Tree, bool) {
	code, err := Normalize(locale)
	if err != nil {
		return nil, false
	}
	bundle, cache := r.snapshot()
	if t, ok := bundle.Tree(code); ok {
		return t, true
	}
	return cache.Get(code)
}

func (r *Resolver) resolve(ctx context.Context, locale string) (Tree, string, error) {
	code, err := Normalize(locale)
	if err != nil {
		return nil, "", err
	}
	bundle, cache := r.snapshot()
	if t, ok := bundle.Tree(code); ok {
		return t, code, nil
	}
	if len(r.translatable) > 0 {
		if _, ok := r.translatable[code]; !ok {
			return nil, code, fmt.Errorf("i18n: locale %q is not enabled: %w", code, apperr.ErrValidation)
		}
	}
	t, err := cache.GetOrCompute(ctx, code, func(ctx context.Context) (Tree, error) {
		return r.translateTree(ctx, bundle, code)
	})
	if err != nil {
		return nil, code, err
	}
	return t, code, nil
}

// keep reports whether a key's subtree is copied verbatim.
func (r *Resolver) keep(bundle *Bundle, target string) func(string) bool {
	return func(key string) bool {
		if _, ok := untranslatedKeys[key]; ok {
			return true
		}
		if key == target || bundle.Has(key) {
			return true
		}
		_, ok := r.translatable[key]
		return ok
	}
}

func (r *Resolver) translateTree(ctx context.Context, bundle *Bundle, target string) (Tree, error) {
	src, _ := bundle.Tree(r.fallback)
	keep := r.keep(bundle, target)

	var texts []string
	collect(src, keep, &texts)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	results := make([]string, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, text := range texts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := r.translator.Translate(gctx, text, r.fallback, target)
			if err != nil {
				return fmt.Errorf("i18n: translate to %s: %w: %w", target, apperr.ErrUpstream, err)
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if !errors.Is(err, apperr.ErrUpstream) {
			err = fmt.Errorf("i18n: translate to %s: %w: %w", target, apperr.ErrUpstream, err)
		}
		return nil, err
	}

	next := 0
	out := rebuild(src, keep, func() string {
		s := results[next]
		next++
		return s
	})

	r.logger.Info("i18n: dictionary translated",
		slog.String("locale", target),
		slog.String("source", r.fallback),
		slog.Int("leaves", len(texts)),
		slog.Duration("took", time.Since(start)))
	return out, nil
}
