// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/estatehub/internal/api"
	"github.com/starford/estatehub/internal/dashboard"
	"github.com/starford/estatehub/internal/i18n"
	"github.com/starford/estatehub/internal/lifecycle"
	"github.com/starford/estatehub/internal/mcpserver"
	"github.com/starford/estatehub/internal/sse"
	"github.com/starford/estatehub/internal/storage"
	"github.com/starford/estatehub/internal/store"
	"github.com/starford/estatehub/internal/stream"
	"github.com/starford/estatehub/internal/translate"
)

// components are the collaborators shared by the HTTP and MCP entry points.
type components struct {
	db        *store.DB
	resolver  *i18n.Resolver
	svc       *dashboard.Service
	generator translate.Generator
}

func (a *application) init() (*Config, *slog.Logger, error) {
	if a.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}
	out := a.logOut
	if out == nil {
		out = os.Stdout
	}

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return a.config, logger, nil
}

// build opens storage and wires the service graph. pub may be nil.
func build(ctx context.Context, cfg *Config, logger *slog.Logger, pub dashboard.Publisher) (*components, error) {
	objects, err := storage.NewFS(cfg.Uploads.Dir)
	if err != nil {
		return nil, fmt.Errorf("init uploads: %w", err)
	}

	// Ensure the database directory exists.
	if err := os.MkdirAll(filepath.Dir(cfg.SQLite.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	bundle, err := loadBundle(cfg.I18n)
	if err != nil {
		db.Close()
		return nil, err
	}

	var translator i18n.Translator = translate.Identity{}
	var generator translate.Generator = translate.Template{}
	if cfg.Translator.Provider == TranslatorGenAI {
		g, err := translate.NewGenAI(ctx, cfg.Translator.APIKey, cfg.Translator.Model)
		if err != nil {
			db.Close()
			return nil, err
		}
		translator, generator = g, g
	}

	resolver, err := i18n.NewResolver(bundle, translator,
		i18n.WithFallback(cfg.I18n.Fallback),
		i18n.WithTranslatable(cfg.I18n.Translatable...),
		i18n.WithConcurrency(cfg.I18n.Concurrency),
		i18n.WithTimeout(cfg.I18n.Timeout),
		i18n.WithLogger(logger),
	)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init i18n: %w", err)
	}

	policy, err := lifecycle.ParsePolicy(cfg.Lifecycle.Policy)
	if err != nil {
		db.Close()
		return nil, err
	}
	opts := []dashboard.Option{
		dashboard.WithLogger(logger),
		dashboard.WithPolicy(policy),
		dashboard.WithMaxImageBytes(cfg.Uploads.MaxImageBytes),
	}
	if pub != nil {
		opts = append(opts, dashboard.WithPublisher(pub))
	}

	return &components{
		db:        db,
		resolver:  resolver,
		svc:       dashboard.New(db, objects, opts...),
		generator: generator,
	}, nil
}

func loadBundle(cfg I18nConfig) (*i18n.Bundle, error) {
	if cfg.Dir == "" {
		b, err := i18n.LoadEmbedded()
		if err != nil {
			return nil, fmt.Errorf("load embedded locales: %w", err)
		}
		return b, nil
	}
	b, err := i18n.LoadDir(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("load locales from %s: %w", cfg.Dir, err)
	}
	return b, nil
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = fmt.Fprintf(w, `{"status":%q}`, status)
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	cfg, logger, err := app.init()
	if err != nil {
		return err
	}

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("uploads_dir", cfg.Uploads.Dir),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.String("translator", cfg.Translator.Provider),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker.
	broker := sse.NewBroker(cfg.Events.BinThrottle)
	defer broker.Close()

	c, err := build(ctx, cfg, logger, broker)
	if err != nil {
		return err
	}
	defer c.db.Close()

	runner := stream.New(c.db, c.svc, c.generator,
		stream.WithTTL(cfg.Tokens.TTL),
		stream.WithLogger(logger),
	)

	apiRouter := api.NewRouter(api.Deps{
		Service:       c.svc,
		Resolver:      c.resolver,
		Streams:       runner,
		Events:        broker.Handler(func(r *http.Request) string { return api.UserFrom(r.Context()) }),
		AuthEnabled:   cfg.Auth.AuthEnabled(),
		Users:         cfg.Auth.Users,
		DefaultLocale: cfg.I18n.Default,
	})

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, "ok")
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		pingCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := c.db.Ping(pingCtx); err != nil {
			logger.Warn("readiness check failed", slog.String("error", err.Error()))
			writeStatus(w, http.StatusServiceUnavailable, "unavailable")
			return
		}
		writeStatus(w, http.StatusOK, "ok")
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Sweep expired stream tokens.
	g.Go(func() error {
		return runner.Janitor(gCtx, cfg.Tokens.SweepInterval)
	})

	// Reload dictionaries on change in development.
	if cfg.I18n.Watch {
		g.Go(func() error {
			if err := i18n.Watch(gCtx, cfg.I18n.Dir, logger, c.resolver.Reload); err != nil {
				return fmt.Errorf("i18n watcher: %w", err)
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// Event streams never finish on their own; close them first.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.HTTP.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the janitor and watcher stop with the
// server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools on stdio until the client disconnects.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := &application{logOut: os.Stderr}

	for _, opt := range opts {
		opt(app)
	}

	cfg, logger, err := app.init()
	if err != nil {
		return err
	}

	c, err := build(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer c.db.Close()

	logger.Info("MCP server starting", slog.String("owner", cfg.MCP.Owner))
	return mcpserver.New(c.svc, c.resolver, cfg.MCP.Owner).ServeStdio()
}
