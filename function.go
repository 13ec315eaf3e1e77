// Package techdigest exposes the digest API as a Cloud Function.
package techdigest

import (
	"context"
	"net/http"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"
	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pep299/tech-digest/internal/config"
	"github.com/pep299/tech-digest/internal/digest"
	"github.com/pep299/tech-digest/internal/handlers"
	"github.com/pep299/tech-digest/internal/logging"
	"github.com/pep299/tech-digest/internal/metrics"
)

func init() {
	functions.HTTP("Digest", Digest)
}

var (
	handlerOnce sync.Once
	handler     http.Handler
	handlerErr  error
	logLevel    string
)

func buildHandler(ctx context.Context) (http.Handler, error) {
	cfg, err := config.Load("")
	if err != nil {
		return nil, err
	}
	logLevel = cfg.LogLevel
	logger := logging.NewWithWriter(funcframework.LogWriter(ctx), logLevel)

	reg := prometheus.NewRegistry()
	runner, err := digest.New(ctx, cfg, metrics.NewRecorder(reg), logger)
	if err != nil {
		return nil, err
	}

	server := handlers.NewServer(cfg, runner, runner.Store(), reg, logger)
	return server.SetupRoutes(), nil
}

// Digest is the HTTP Cloud Function entry point. It serves the same routes
// as the standalone server; a scheduler calls POST /api/v1/digest.
func Digest(w http.ResponseWriter, r *http.Request) {
	handlerOnce.Do(func() {
		handler, handlerErr = buildHandler(context.Background())
	})
	if handlerErr != nil {
		logging.NewWithWriter(funcframework.LogWriter(r.Context()), "error").
			Error("function initialization failed", "error", handlerErr)
		http.Error(w, "function initialization failed", http.StatusInternalServerError)
		return
	}

	handler.ServeHTTP(w, withRequestLogger(r))
}

// withRequestLogger attaches a logger bound to the invocation, so its entries
// carry the execution id of this request.
func withRequestLogger(r *http.Request) *http.Request {
	logger := logging.NewWithWriter(funcframework.LogWriter(r.Context()), logLevel)
	return r.WithContext(logging.WithContext(r.Context(), logger))
}
