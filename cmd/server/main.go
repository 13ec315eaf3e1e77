package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"

	"github.com/pep299/tech-digest/internal/config"
	"github.com/pep299/tech-digest/internal/digest"
	"github.com/pep299/tech-digest/internal/handlers"
	"github.com/pep299/tech-digest/internal/logging"
	"github.com/pep299/tech-digest/internal/metrics"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewRecorder(reg)

	runner, err := digest.New(ctx, cfg, recorder, logger)
	if err != nil {
		logger.Error("failed to create digest runner", "error", err)
		os.Exit(1)
	}
	defer runner.Close()

	server := handlers.NewServer(cfg, runner, runner.Store(), reg, logger)

	scheduler, err := newScheduler(ctx, cfg.Schedule, server, logger)
	if err != nil {
		logger.Error("invalid schedule", "schedule", cfg.Schedule, "error", err)
		os.Exit(1)
	}
	scheduler.Start()

	// Create HTTP server. Digest runs are synchronous, so writes get a long timeout.
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Handler:      server.SetupRoutes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("starting server", "addr", httpServer.Addr, "schedule", cfg.Schedule)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	logger.Info("shutting down server")

	// Stop scheduling and cancel a running digest
	<-scheduler.Stop().Done()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
}

// digestTrigger runs a digest with configured defaults.
type digestTrigger interface {
	RunDigest(ctx context.Context, opts digest.Options) (*digest.Result, bool, error)
}

// newScheduler registers the daily digest job. Runs use config defaults and
// mail the digest.
func newScheduler(ctx context.Context, spec string, trigger digestTrigger, logger *slog.Logger) (*cron.Cron, error) {
	c := cron.New(cron.WithLogger(cron.DiscardLogger))
	_, err := c.AddFunc(spec, func() {
		result, ran, err := trigger.RunDigest(ctx, digest.Options{SendEmail: true})
		switch {
		case !ran:
			logger.Warn("scheduled digest skipped, previous run still in progress")
		case err != nil:
			logger.Error("scheduled digest failed", "error", err)
		default:
			logger.Info("scheduled digest finished", "run_id", result.RunID, "location", result.Location, "email_sent", result.EmailSent)
		}
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}
