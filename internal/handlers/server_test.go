package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pep299/tech-digest/internal/config"
	"github.com/pep299/tech-digest/internal/digest"
	"github.com/pep299/tech-digest/internal/logging"
	"github.com/pep299/tech-digest/internal/metrics"
	"github.com/pep299/tech-digest/internal/storage"
)

type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Run(ctx context.Context, opts digest.Options) (*digest.Result, error) {
	args := m.Called(ctx, opts)
	result, _ := args.Get(0).(*digest.Result)
	return result, args.Error(1)
}

func newTestServer(t *testing.T, runner Runner, store storage.Store) (*Server, http.Handler) {
	t.Helper()
	reg := prometheus.NewRegistry()
	metrics.NewRecorder(reg).RecordRun("ok", 0)
	cfg := &config.Config{Period: "24h", ArticlesPerCategory: 10, Schedule: "0 7 * * *"}
	cfg.Secrets.GeminiAPIKey = "secret-key"

	s := NewServer(cfg, runner, store, reg, logging.Discard())
	return s, s.SetupRoutes()
}

func decode(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestHealthHandler(t *testing.T) {
	_, h := newTestServer(t, &MockRunner{}, storage.NewMemoryStore())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "ok", decode(t, w).Status)
}

func TestRunDigestHandler(t *testing.T) {
	runner := &MockRunner{}
	runner.On("Run", mock.Anything, digest.Options{Period: "3d", ArticlesPerCategory: 5, SendEmail: true}).
		Return(&digest.Result{RunID: "run-1", DigestName: "digest-2024-06-01.md", EmailSent: true}, nil).Once()

	_, h := newTestServer(t, runner, storage.NewMemoryStore())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("POST", "/api/v1/digest?period=3d&articles=5&send_email=true", nil))

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "success", resp.Status)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "run-1", data["run_id"])
	assert.Equal(t, true, data["email_sent"])
	runner.AssertExpectations(t)
}

func TestRunDigestHandlerOutlivesRequest(t *testing.T) {
	reqLogger := logging.Discard()
	var runCtx context.Context
	runner := &MockRunner{}
	runner.On("Run", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { runCtx = args.Get(0).(context.Context) }).
		Return(&digest.Result{RunID: "run-2"}, nil).Once()
	_, h := newTestServer(t, runner, storage.NewMemoryStore())

	ctx, cancel := context.WithCancel(logging.WithContext(context.Background(), reqLogger))
	cancel()
	req := httptest.NewRequest("POST", "/api/v1/digest", nil).WithContext(ctx)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, runCtx)
	assert.NoError(t, runCtx.Err(), "client cancellation must not reach the run")
	assert.Same(t, reqLogger, logging.FromContext(runCtx, nil))
}

func TestRunDigestHandlerBadInput(t *testing.T) {
	tests := []string{
		"/api/v1/digest?articles=abc",
		"/api/v1/digest?articles=0",
		"/api/v1/digest?send_email=maybe",
	}
	for _, target := range tests {
		t.Run(target, func(t *testing.T) {
			runner := &MockRunner{}
			_, h := newTestServer(t, runner, storage.NewMemoryStore())

			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest("POST", target, nil))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
		})
	}
}

func TestRunDigestHandlerInvalidPeriod(t *testing.T) {
	runner := &MockRunner{}
	runner.On("Run", mock.Anything, mock.Anything).Return(nil, fmt.Errorf("parsing period: %w", config.ErrInvalidPeriod))
	_, h := newTestServer(t, runner, storage.NewMemoryStore())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("POST", "/api/v1/digest?period=1w", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w).Error, "invalid period")
}

func TestRunDigestHandlerConflict(t *testing.T) {
	runner := &MockRunner{}
	s, h := newTestServer(t, runner, storage.NewMemoryStore())

	s.running.Lock()
	defer s.running.Unlock()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("POST", "/api/v1/digest", nil))

	assert.Equal(t, http.StatusConflict, w.Code)
	runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
}

func TestDigestsHandlers(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()
	store.Save(ctx, "digest-2024-06-01.md", []byte("# June 1"))
	store.Save(ctx, "digest-2024-06-02.md", []byte("# June 2"))
	_, h := newTestServer(t, &MockRunner{}, store)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/digests", nil))
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w).Data.(map[string]interface{})
	assert.Equal(t, []interface{}{"digest-2024-06-02.md", "digest-2024-06-01.md"}, data["digests"])

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/digests/digest-2024-06-01.md", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "# June 1", w.Body.String())
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/markdown"))

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/digests/digest-1999-01-01.md", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestConfigHandlerHidesSecrets(t *testing.T) {
	_, h := newTestServer(t, &MockRunner{}, storage.NewMemoryStore())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/config", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"period":"24h"`)
	assert.NotContains(t, w.Body.String(), "secret-key")
}

func TestMetricsEndpoint(t *testing.T) {
	_, h := newTestServer(t, &MockRunner{}, storage.NewMemoryStore())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `techdigest_runs_total{status="ok"} 1`)
}
