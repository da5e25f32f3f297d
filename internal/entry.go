// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/ansuz/internal/api"
	"github.com/starford/ansuz/internal/db"
	"github.com/starford/ansuz/internal/inbox"
	"github.com/starford/ansuz/internal/mcpserver"
	"github.com/starford/ansuz/internal/pipeline"
	"github.com/starford/ansuz/internal/profileservice"
	"github.com/starford/ansuz/internal/segment"
	"github.com/starford/ansuz/internal/slicer"
	"github.com/starford/ansuz/internal/sse"
	"github.com/starford/ansuz/internal/storage"
	"github.com/starford/ansuz/internal/transcribe"
)

// core holds the long-lived components shared by the HTTP server and the
// MCP server entry points.
type core struct {
	db     *db.DB
	files  *storage.FS
	svc    *profileservice.Service
	logger *slog.Logger
}

func (c *core) close() {
	if err := c.db.Close(); err != nil {
		c.logger.Error("db close failed", slog.String("error", err.Error()))
	}
}

// buildCore initializes logging, storage, the database and the processing
// pipeline from the configuration. notify, if non-nil, receives recording
// status transitions. logOut is the log destination; MCP mode must keep
// stdout free for the protocol.
func buildCore(cfg *Config, notify pipeline.Notify, logOut io.Writer) (*core, error) {
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	if err := os.MkdirAll(cfg.Media.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}

	files, err := storage.NewFS(cfg.Media.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	database, err := db.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	ffmpeg := slicer.NewFFmpeg(cfg.FFmpeg.Bin)
	whisper := transcribe.NewOpenAI(cfg.OpenAI.APIKey, cfg.OpenAI.TranscribeModel, cfg.OpenAI.BaseURL, cfg.OpenAI.Timeout())

	pipe := pipeline.New(pipeline.Config{
		DB:          database,
		Files:       files,
		Transcriber: transcribe.NewSplitting(whisper, ffmpeg, cfg.OpenAI.SplitThreshold()),
		Segmenter:   segment.NewOpenAI(cfg.OpenAI.APIKey, cfg.OpenAI.SegmentModel, cfg.OpenAI.BaseURL, cfg.OpenAI.Timeout()),
		Slicer:      ffmpeg,
		Logger:      logger,
		Notify:      notify,
		MaxAttempts: cfg.Pipeline.MaxAttempts,
		Backoff:     cfg.Pipeline.Backoff(),
	})

	return &core{
		db:     database,
		files:  files,
		svc:    profileservice.NewService(database, files, pipe, logger),
		logger: logger,
	}, nil
}

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

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)

	c, err := buildCore(cfg, broker.PublishRecordingEvent, os.Stdout)
	if err != nil {
		return err
	}
	defer c.close()
	logger := c.logger

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("media_path", cfg.Media.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Bool("inbox_enabled", cfg.Inbox.Enabled()),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Build API router.
	apiRouter := api.NewRouter(c.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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

	// Media artifacts (source recordings and chunk audio).
	r.Get("/media/*", api.NewMediaHandler(c.files).ServeFile)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start inbox watcher for drop-directory ingest.
	if cfg.Inbox.Enabled() {
		if err := os.MkdirAll(cfg.Inbox.Path, 0o755); err != nil {
			return fmt.Errorf("create inbox dir: %w", err)
		}
		g.Go(func() error {
			if err := inbox.Watch(gCtx, c.svc, cfg.Inbox.Path, cfg.Inbox.Settle(), logger); err != nil {
				return fmt.Errorf("inbox watcher error: %w", err)
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

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		broker.Close()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP starts the MCP server on stdio with the given options.
func RunMCP(_ context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	c, err := buildCore(app.config, nil, os.Stderr)
	if err != nil {
		return err
	}
	defer c.close()

	c.logger.Info("MCP server starting on stdio")
	return mcpserver.New(c.svc).ServeStdio()
}
