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
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/starford/folio/internal/api"
	"github.com/starford/folio/internal/docservice"
	"github.com/starford/folio/internal/graphstore"
	"github.com/starford/folio/internal/index"
	"github.com/starford/folio/internal/integrity"
	"github.com/starford/folio/internal/mcpserver"
	"github.com/starford/folio/internal/render"
	"github.com/starford/folio/internal/sse"
	"github.com/starford/folio/internal/storage"
)

// ErrViolations is returned by Check when the index is inconsistent.
var ErrViolations = errors.New("reference index has violations")

// runtime is the state shared by every command.
type runtime struct {
	cfg    *Config
	logger *slog.Logger
	store  *storage.FS
	db     *index.DB
	graph  *graphstore.Store
}

func (rt *runtime) Close() error {
	return rt.db.Close()
}

func (rt *runtime) service() *docservice.Service {
	return docservice.NewService(rt.graph, rt.db, docservice.Options{
		URLPrefix:      rt.cfg.Render.URLPrefix,
		MaxNodes:       rt.cfg.Graph.MaxNodes,
		GroupThreshold: rt.cfg.Render.GroupThreshold,
	}, rt.logger)
}

// bootstrap applies opts, installs the logger, opens the store and the
// index and brings the index up to date.
func bootstrap(opts []Option) (*application, *runtime, error) {
	app := &application{logOut: os.Stdout, reportOut: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := slog.New(slog.NewJSONHandler(app.logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("store_path", cfg.Store.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if err := os.MkdirAll(cfg.Store.Path, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create store dir: %w", err)
	}
	store, err := storage.NewFS(cfg.Store.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init storage: %w", err)
	}
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init index: %w", err)
	}
	if err := index.Sync(db, store, logger); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("initial sync: %w", err)
	}

	return app, &runtime{
		cfg:    cfg,
		logger: logger,
		store:  store,
		db:     db,
		graph:  graphstore.New(store, db),
	}, nil
}

// Run serves the read API, SSE change stream and metrics until a signal
// arrives or ctx is cancelled.
func Run(ctx context.Context, opts ...Option) error {
	_, rt, err := bootstrap(opts)
	if err != nil {
		return err
	}
	defer rt.Close()
	cfg, logger := rt.cfg, rt.logger

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	apiRouter := api.NewRouter(rt.service(), cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker, cfg.Render.URLPrefix)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := rt.db.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"index unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := index.Watch(gCtx, rt.db, rt.store, logger, broker.PublishEntityEvent); err != nil {
			logger.Error("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

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

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// Export renders the whole store into the configured output directory.
func Export(ctx context.Context, opts ...Option) (*render.Summary, error) {
	_, rt, err := bootstrap(opts)
	if err != nil {
		return nil, err
	}
	defer rt.Close()
	rc := rt.cfg.Render

	if err := os.MkdirAll(rc.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	out, err := storage.NewFS(rc.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("init output: %w", err)
	}

	exp := render.NewExporter(rt.graph, out, render.Options{
		URLPrefix:      rc.URLPrefix,
		TrailingHTML:   rc.TrailingHTML,
		Workers:        rc.Workers,
		Graph:          rc.Graph,
		GraphSVG:       rc.GraphSVG,
		Shuffle:        rc.Shuffle,
		GroupThreshold: rc.GroupThreshold,
		MaxNodes:       rt.cfg.Graph.MaxNodes,
	}, rt.logger)
	return exp.Run(ctx)
}

// Check verifies the reference index and writes one line per violation to
// the report output. It returns ErrViolations when any were found.
func Check(ctx context.Context, opts ...Option) error {
	app, rt, err := bootstrap(opts)
	if err != nil {
		return err
	}
	defer rt.Close()

	var found int
	for _, c := range []struct {
		name string
		fn   func(integrity.RefSource) ([]integrity.Violation, error)
	}{
		{"transpose", integrity.CheckTranspose},
		{"dangling", integrity.DanglingRefs},
	} {
		if err := ctx.Err(); err != nil {
			return err
		}
		vs, err := c.fn(rt.graph)
		if err != nil {
			return fmt.Errorf("check %s: %w", c.name, err)
		}
		rt.logger.Info("check: done", slog.String("check", c.name), slog.Int("violations", len(vs)))
		for _, v := range vs {
			fmt.Fprintln(app.reportOut, v)
		}
		found += len(vs)
	}
	if found > 0 {
		return fmt.Errorf("%w: %d", ErrViolations, found)
	}
	return nil
}

// ServeMCP runs the MCP stdio server. Logs should be redirected with
// WithLogOutput since stdout carries the protocol.
func ServeMCP(_ context.Context, opts ...Option) error {
	_, rt, err := bootstrap(opts)
	if err != nil {
		return err
	}
	defer rt.Close()
	return mcpserver.New(rt.service()).ServeStdio()
}
