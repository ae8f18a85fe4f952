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

	"github.com/starford/sitesmith/internal/agent"
	"github.com/starford/sitesmith/internal/api"
	"github.com/starford/sitesmith/internal/registry"
	"github.com/starford/sitesmith/internal/sse"
)

// Run starts the HTTP server, the change-detection agent when a source is
// configured, and the registry watcher when enabled.
func Run(ctx context.Context, opts ...Option) error {
	return withComponents(ctx, opts, os.Stdout, serve)
}

func serve(ctx context.Context, app *application, c *components) error {
	cfg, logger := c.cfg, c.logger

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	svc := &api.Service{
		Selector: c.selector,
		Webhook: api.WebhookConfig{
			Secret:           cfg.Webhook.Secret,
			RequireSignature: cfg.Auth.AuthEnabled(),
			Branch:           cfg.Publish.Git.Branch,
			BotAuthor:        botAuthor(cfg.Publish),
			Repo:             cfg.Publish.Git.Repo,
		},
		Logger: logger,
	}
	if cfg.Webhook.Secret == "" {
		if cfg.Auth.AuthEnabled() {
			logger.Warn("webhook secret is not set, github webhook events will be rejected")
		} else {
			logger.Warn("webhook secret is not set, github webhook events are accepted unsigned")
		}
	}
	if c.reporter != nil {
		svc.Reporter = c.reporter
	}

	var ag *agent.Agent
	if c.client != nil {
		var err error
		if ag, err = c.newAgent(c.sync.Run, broker); err != nil {
			return err
		}
		svc.Detector = ag
		svc.Builds = c.db
	} else {
		logger.Warn("notion is not configured, change detection disabled")
	}

	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)
	h := api.NewHandler(svc)

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
	r.Get("/health/ready", h.Ready)
	r.Handle("/metrics", c.metrics.Handler())

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	if ag != nil {
		g.Go(func() error {
			if err := ag.Run(gCtx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("agent: %w", err)
			}
			return nil
		})
	}

	if cfg.Registry.Watch && cfg.Registry.Path != "" {
		g.Go(func() error {
			err := registry.Watch(gCtx, cfg.Registry.Path, logger, func(reg *registry.Registry) {
				c.reloadRegistry(reg)
				broker.Publish(sse.Event{Type: "registry.reloaded", Data: map[string]int{"components": reg.Len()}})
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("registry watcher stopped", slog.String("error", err.Error()))
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
		if ag != nil {
			ag.Stop()
		}

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

// errShutdown cancels the group so the agent and watcher stop with the
// server.
var errShutdown = errors.New("shutdown")
