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

	"github.com/starford/obridge/internal/api"
	"github.com/starford/obridge/internal/bridge"
	"github.com/starford/obridge/internal/mcpserver"
	"github.com/starford/obridge/internal/settings"
	"github.com/starford/obridge/internal/snapshot"
	"github.com/starford/obridge/internal/sse"
	"github.com/starford/obridge/internal/storage"
)

// Runtime bundles the components every command needs.
type Runtime struct {
	Config   *Config
	Logger   *slog.Logger
	Store    *storage.FS
	DB       *snapshot.DB
	Settings *settings.Store
	Service  *bridge.Service
	version  string
}

// Close releases the snapshot database.
func (rt *Runtime) Close() error {
	return rt.DB.Close()
}

// Open initialises logging, the vault, the snapshot database and the bridge
// service. Notices are always logged and also passed to extra when non-nil.
func Open(extra bridge.Notifier, opts ...Option) (*Runtime, error) {
	app := &application{logOutput: os.Stdout, version: "dev"}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("settings_path", cfg.SettingsPath()),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	settingsPath := cfg.SettingsPath()
	if err := os.MkdirAll(filepath.Dir(settingsPath), 0o755); err != nil {
		return nil, fmt.Errorf("create settings dir: %w", err)
	}
	st, err := settings.NewStore(settingsPath)
	if err != nil {
		return nil, fmt.Errorf("init settings: %w", err)
	}

	db, err := snapshot.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init snapshot db: %w", err)
	}

	notifier := bridge.Multi{bridge.LogNotifier{Logger: logger}}
	if extra != nil {
		notifier = append(notifier, extra)
	}
	svc, err := bridge.NewService(store, db, st, notifier, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init bridge: %w", err)
	}

	return &Runtime{
		Config:   cfg,
		Logger:   logger,
		Store:    store,
		DB:       db,
		Settings: st,
		Service:  svc,
		version:  app.version,
	}, nil
}

// ServeMCP runs the MCP server on stdio until the client disconnects.
func ServeMCP(opts ...Option) error {
	opts = append([]Option{WithLogOutput(os.Stderr)}, opts...)
	rt, err := Open(nil, opts...)
	if err != nil {
		return err
	}
	defer rt.Close()

	rt.Logger.Info("MCP server starting on stdio")
	return mcpserver.New(rt.Service, rt.version).ServeStdio()
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	broker := sse.NewBroker(cfg.App.HTTP.KeepAlive)
	defer broker.Close()

	rt, err := Open(broker, opts...)
	if err != nil {
		return err
	}
	defer rt.Close()
	logger := rt.Logger
	svc := rt.Service

	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		if err := rt.DB.Ping(); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	ctx, stop := context.WithCancel(ctx)
	defer stop()
	g, gCtx := errgroup.WithContext(ctx)

	// Pick up external edits of the settings file.
	if cfg.Settings.Watch {
		g.Go(func() error {
			if err := rt.Settings.Watch(gCtx, logger, svc.ApplySettings); err != nil {
				logger.Warn("settings watcher unavailable", slog.String("error", err.Error()))
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

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")
		// Ends open event streams so Shutdown does not wait on them.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		stop()

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
