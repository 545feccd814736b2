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
	"golang.org/x/sync/errgroup"

	"github.com/yourview/yourview/internal/api"
	"github.com/yourview/yourview/internal/canopy"
	"github.com/yourview/yourview/internal/ledger"
	"github.com/yourview/yourview/internal/mcpserver"
	"github.com/yourview/yourview/internal/pages"
	"github.com/yourview/yourview/internal/pgrpc"
	"github.com/yourview/yourview/internal/routes"
	"github.com/yourview/yourview/internal/sse"
	"github.com/yourview/yourview/internal/storage"
	"github.com/yourview/yourview/internal/supabase"
	"github.com/yourview/yourview/internal/upload"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{logOutput: os.Stdout, version: "dev"}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// logger initializes the structured JSON logger and installs it as default.
func (a *application) logger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// canopyService connects to the configured backend. The returned func
// releases the connection.
func (a *application) canopyService(ctx context.Context, logger *slog.Logger) (*canopy.Service, func() error, error) {
	cfg := a.config

	var rpc canopy.Caller
	closer := func() error { return nil }
	switch cfg.Canopy.Backend {
	case BackendPostgres:
		caller, err := pgrpc.Open(ctx, cfg.Postgres.DSN, cfg.Postgres.Schema, pgrpc.PoolConfig{
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init postgres: %w", err)
		}
		rpc, closer = caller, caller.Close
	default:
		opts := []supabase.ClientOption{supabase.WithTimeout(cfg.Supabase.Timeout)}
		if cfg.Supabase.Schema != "" {
			opts = append(opts, supabase.WithSchema(cfg.Supabase.Schema))
		}
		client, err := supabase.New(cfg.Supabase.URL, cfg.Supabase.AnonKey, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("init supabase: %w", err)
		}
		rpc = client
	}

	logger.Info("Canopy backend ready",
		slog.String("backend", cfg.Canopy.Backend),
		slog.String("procedure", cfg.Canopy.Procedure))

	svc := canopy.NewService(rpc,
		canopy.WithProcedure(cfg.Canopy.Procedure),
		canopy.WithLogger(logger))
	return svc, closer, nil
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}

	cfg := app.config
	logger := app.logger()

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("canopy_backend", cfg.Canopy.Backend),
		slog.String("uploads_dir", cfg.Uploads.Dir),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Bool("moderation", cfg.Moderation.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	canopySvc, canopyCloser, err := app.canopyService(ctx, logger)
	if err != nil {
		return err
	}
	defer canopyCloser()

	// Route table is validated here so a bad table stops startup.
	table, err := pages.Build(cfg.Theme, canopySvc, logger)
	if err != nil {
		return fmt.Errorf("build routes: %w", err)
	}

	// Ensure media directory exists.
	if err := os.MkdirAll(cfg.Uploads.Dir, 0o755); err != nil {
		return fmt.Errorf("create uploads dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Uploads.Dir)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	db, err := ledger.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init ledger: %w", err)
	}
	defer db.Close()

	// Run initial sync.
	if err := ledger.Sync(ctx, db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	// SSE broker.
	broker := sse.NewBroker(15 * time.Second)
	defer broker.Close()

	uploadOpts := []upload.Option{
		upload.WithNotifier(broker),
		upload.WithMaxSize(cfg.Uploads.MaxFileSize),
		upload.WithDefaultFolder(cfg.Uploads.Folder),
		upload.WithLogger(logger),
	}
	if checker := cfg.Moderation.Checker(); checker != nil {
		uploadOpts = append(uploadOpts, upload.WithModerator(checker))
	}
	uploads := upload.NewService(store, db, uploadOpts...)

	apiRouter := api.NewRouter(api.Deps{
		Canopy:         canopySvc,
		Uploads:        uploads,
		Media:          store,
		Theme:          cfg.Theme,
		Routes:         table,
		AuthEnabled:    cfg.Auth.AuthEnabled(),
		Token:          cfg.Auth.Token,
		Events:         broker,
		AllowedOrigins: cfg.App.AllowedOrigins,
	})

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	// Stored uploads.
	r.Get("/media/*", api.MediaHandler(store))

	// Pages.
	table.Mount(r, logger)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start media watcher with SSE callback.
	g.Go(func() error {
		err := ledger.Watch(gCtx, db, store, logger, func(kind, key string) {
			broker.PublishUploadEvent(kind, key)
		})
		if err != nil {
			logger.Error("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

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

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
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

// errShutdown cancels the group so the watcher exits once the server stops.
var errShutdown = errors.New("shutdown")

// Lookup runs a single canopy lookup against the configured backend.
func Lookup(ctx context.Context, raw string, opts ...Option) (canopy.Result, error) {
	app, err := newApplication(opts)
	if err != nil {
		return canopy.Result{}, err
	}
	svc, closer, err := app.canopyService(ctx, app.logger())
	if err != nil {
		return canopy.Result{}, err
	}
	defer closer()
	return svc.Lookup(ctx, raw), nil
}

// ServeMCP runs the MCP server on stdin/stdout until the client disconnects.
func ServeMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.logger()

	svc, closer, err := app.canopyService(ctx, logger)
	if err != nil {
		return err
	}
	defer closer()

	table, err := pages.Build(app.config.Theme, svc, logger)
	if err != nil {
		return fmt.Errorf("build routes: %w", err)
	}

	logger.Info("MCP server starting on stdio")
	return mcpserver.New(svc, table, app.version).ServeStdio()
}

// RouteTable builds and validates the page route table without connecting
// to any backend.
func RouteTable(opts ...Option) (*routes.Table, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}
	return pages.Build(app.config.Theme, nil, app.logger())
}
