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

	"github.com/starford/othala/internal/api"
	"github.com/starford/othala/internal/graph"
	"github.com/starford/othala/internal/index"
	"github.com/starford/othala/internal/mcpserver"
	"github.com/starford/othala/internal/sse"
	"github.com/starford/othala/internal/storage"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger. In MCP mode stdout carries the
	// protocol, so logs go to stderr.
	logOut := os.Stdout
	if app.mcp {
		logOut = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("graph_path", cfg.Graph.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure graph directory exists.
	if err := os.MkdirAll(cfg.Graph.Path, 0o755); err != nil {
		return fmt.Errorf("create graph dir: %w", err)
	}

	// Initialize record storage.
	fs, err := storage.NewFS(cfg.Graph.Path)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	// Build the in-memory graph from the stored records.
	var storeOpts []graph.Option
	if cfg.Engine.CoalesceWindowMS > 0 {
		storeOpts = append(storeOpts, graph.WithCoalesceWindow(time.Duration(cfg.Engine.CoalesceWindowMS)*time.Millisecond))
	}
	store := graph.New(logger, storeOpts...)
	defer store.Close()

	records, err := storage.ReadAll(fs)
	if err != nil {
		return fmt.Errorf("read records: %w", err)
	}
	store.Load(records)
	logger.Info("Graph loaded", slog.Int("entities", store.Len()))

	// Initialize the SQLite search index and keep it in sync.
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	if err := index.Rebuild(db, store, logger); err != nil {
		logger.Warn("initial index rebuild failed", slog.String("error", err.Error()))
	}
	indexSub := index.Attach(db, store, logger)
	defer store.Off(indexSub)

	// Write every mutation back to disk.
	persistSub := storage.Persist(store, fs, logger)
	defer store.Off(persistSub)

	if app.mcp {
		logger.Info("Starting MCP server on stdio")
		return mcpserver.New(store, db).ServeStdio()
	}

	// SSE broker, fed from store events.
	broker := sse.NewBroker(time.Duration(cfg.Engine.SSEThrottleMS) * time.Millisecond)
	defer broker.Close()
	sseSub := sse.Bridge(broker, store)
	defer store.Off(sseSub)

	// Build API service and router.
	svc := api.NewService(store, db)
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

	g, gCtx := errgroup.WithContext(ctx)

	// Start record file watcher. External changes flow through the store,
	// so the index and SSE clients pick them up from store events.
	g.Go(func() error {
		if err := storage.Watch(gCtx, store, fs, logger, nil); err != nil {
			logger.Error("watcher failed", slog.String("error", err.Error()))
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

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
