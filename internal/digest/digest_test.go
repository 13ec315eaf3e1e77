package digest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pep299/tech-digest/internal/config"
	"github.com/pep299/tech-digest/internal/logging"
	"github.com/pep299/tech-digest/internal/metrics"
	"github.com/pep299/tech-digest/internal/model"
	"github.com/pep299/tech-digest/internal/storage"
	"github.com/pep299/tech-digest/internal/summarizer"
)

var runTime = time.Date(2024, 6, 1, 7, 0, 0, 0, time.UTC)

type stubFetcher struct {
	feeds []model.ParsedFeed
}

func (f stubFetcher) FetchAll(ctx context.Context) []model.ParsedFeed {
	return f.feeds
}

type MockSummarizer struct {
	mock.Mock
}

func (m *MockSummarizer) SummarizeAll(ctx context.Context, state *summarizer.RunState, articles []model.Article) model.SummaryMap {
	args := m.Called(ctx, state, articles)
	return args.Get(0).(model.SummaryMap)
}

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendDigest(ctx context.Context, html string, date time.Time) bool {
	args := m.Called(ctx, html, date)
	return args.Bool(0)
}

func at(d time.Duration) *time.Time {
	t := runTime.Add(-d)
	return &t
}

func testFeeds() []model.ParsedFeed {
	return []model.ParsedFeed{
		{Name: "Hacker News - Top Stories", OriginIdentifier: "hn:top", Items: []model.Article{
			{Title: "Rust in the kernel", Link: "https://a.example/rust", PublishedAtResolved: at(time.Hour), ContentSnippet: "rust snippet"},
			{Title: "Old news", Link: "https://a.example/old", PublishedAtResolved: at(40 * time.Hour)},
		}},
		{Name: "Hacker News - Ask", OriginIdentifier: "hn:ask", Items: []model.Article{
			{Title: "Ask HN: best editor?", Link: "https://news.ycombinator.com/item?id=1", PublishedAtResolved: at(2 * time.Hour)},
		}},
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Period:              "24h",
		ArticlesPerCategory: 10,
		Categories:          config.Categories{Tech: []string{"rust"}, Startup: []string{"funding"}},
	}
}

func newTestRunner(sum Summarizer, store storage.Store, mailer Mailer, rec *metrics.Recorder) *Runner {
	return NewRunner(testConfig(), stubFetcher{feeds: testFeeds()}, sum, store, mailer, rec, logging.Discard()).
		WithClock(func() time.Time { return runTime })
}

func TestRun(t *testing.T) {
	sum := &MockSummarizer{}
	sum.On("SummarizeAll", mock.Anything, mock.AnythingOfType("*summarizer.RunState"), mock.MatchedBy(func(articles []model.Article) bool {
		return len(articles) == 2
	})).Return(model.SummaryMap{"https://a.example/rust": "Rust lands in Linux."}).Once()

	store := storage.NewMemoryStore()
	rec := metrics.NewRecorder(prometheus.NewRegistry())
	runner := newTestRunner(sum, store, nil, rec)

	result, err := runner.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, "24h", result.Period)
	assert.Equal(t, 2, result.Feeds)
	assert.Equal(t, 2, result.Articles, "the 40h old article is filtered out")
	assert.Equal(t, 2, result.Summarized, "links shared between buckets are summarized once")
	assert.Equal(t, "digest-2024-06-01.md", result.DigestName)
	assert.Equal(t, "memory://digest-2024-06-01.md", result.Location)
	assert.NotEmpty(t, result.RunID)
	assert.False(t, result.EmailSent)

	saved, err := store.Get(context.Background(), "digest-2024-06-01.md")
	require.NoError(t, err)
	md := string(saved)
	assert.Contains(t, md, "> Rust lands in Linux.")
	assert.Contains(t, md, "### ❓ Ask HN\n\n**Ask HN: best editor?**")
	assert.NotContains(t, md, "Old news")
	assert.Equal(t, 1, strings.Count(md, "### 🖥️ Tech"))

	assert.Equal(t, 1.0, testutil.ToFloat64(rec.RunsTotal.WithLabelValues("ok")))
	assert.Equal(t, 3.0, testutil.ToFloat64(rec.Articles.WithLabelValues("fetched")))
	assert.Equal(t, 2.0, testutil.ToFloat64(rec.Articles.WithLabelValues("recent")))
	sum.AssertExpectations(t)
}

func TestRunInvalidPeriodIsFatal(t *testing.T) {
	sum := &MockSummarizer{}
	rec := metrics.NewRecorder(prometheus.NewRegistry())
	runner := newTestRunner(sum, storage.NewMemoryStore(), nil, rec)

	result, err := runner.Run(context.Background(), Options{Period: "30m"})

	assert.Nil(t, result)
	assert.ErrorIs(t, err, config.ErrInvalidPeriod)
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.RunsTotal.WithLabelValues("error")))
	sum.AssertNotCalled(t, "SummarizeAll", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunOptionsOverrideConfig(t *testing.T) {
	sum := &MockSummarizer{}
	sum.On("SummarizeAll", mock.Anything, mock.Anything, mock.MatchedBy(func(articles []model.Article) bool {
		return len(articles) == 2
	})).Return(model.SummaryMap{}).Once()

	runner := newTestRunner(sum, storage.NewMemoryStore(), nil, nil)

	result, err := runner.Run(context.Background(), Options{Period: "2d", ArticlesPerCategory: 1})
	require.NoError(t, err)

	assert.Equal(t, "2d", result.Period)
	assert.Equal(t, 1, result.ArticlesPerCategory)
	assert.Equal(t, 3, result.Articles)
	assert.Contains(t, result.Markdown, "**Articles per section:** 1")
	sum.AssertExpectations(t)
}

func TestRunEmail(t *testing.T) {
	tests := []struct {
		name string
		sent bool
	}{
		{"delivered", true},
		{"delivery failure is not an error", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sum := &MockSummarizer{}
			sum.On("SummarizeAll", mock.Anything, mock.Anything, mock.Anything).Return(model.SummaryMap{})
			mailer := &MockMailer{}
			mailer.On("SendDigest", mock.Anything, mock.MatchedBy(func(html string) bool {
				return strings.Contains(html, "<!DOCTYPE html>")
			}), runTime).Return(tt.sent).Once()

			store := storage.NewMemoryStore()
			rec := metrics.NewRecorder(prometheus.NewRegistry())
			result, err := newTestRunner(sum, store, mailer, rec).Run(context.Background(), Options{SendEmail: true})

			require.NoError(t, err)
			assert.Equal(t, tt.sent, result.EmailSent)
			names, _ := store.List(context.Background())
			assert.Len(t, names, 1, "the digest is saved regardless of delivery")
			mailer.AssertExpectations(t)
		})
	}
}

func TestRunEmailWithoutMailer(t *testing.T) {
	sum := &MockSummarizer{}
	sum.On("SummarizeAll", mock.Anything, mock.Anything, mock.Anything).Return(model.SummaryMap{})

	result, err := newTestRunner(sum, storage.NewMemoryStore(), nil, nil).Run(context.Background(), Options{SendEmail: true})

	require.NoError(t, err)
	assert.False(t, result.EmailSent)
}

type failingStore struct {
	*storage.MemoryStore
}

func (failingStore) Save(ctx context.Context, name string, body []byte) (string, error) {
	return "", errors.New("disk full")
}

func TestRunSaveFailure(t *testing.T) {
	sum := &MockSummarizer{}
	sum.On("SummarizeAll", mock.Anything, mock.Anything, mock.Anything).Return(model.SummaryMap{})

	result, err := newTestRunner(sum, failingStore{storage.NewMemoryStore()}, nil, nil).Run(context.Background(), Options{})

	assert.ErrorContains(t, err, "disk full")
	require.NotNil(t, result)
	assert.NotEmpty(t, result.Markdown)
}

func TestStrategies(t *testing.T) {
	names := func(cfg *config.Config) []string {
		var out []string
		for _, s := range Strategies(cfg, logging.Discard()) {
			out = append(out, s.Provider.Name())
		}
		return out
	}

	both := config.Secrets{GeminiAPIKey: "g", OpenAIAPIKey: "o"}

	assert.Equal(t, []string{"gemini", "openai"}, names(&config.Config{Secrets: both, LLM: config.LLMConfig{Provider: "gemini"}}))
	assert.Equal(t, []string{"openai", "gemini"}, names(&config.Config{Secrets: both, LLM: config.LLMConfig{Provider: "openai"}}))
	assert.Equal(t, []string{"openai"}, names(&config.Config{Secrets: config.Secrets{OpenAIAPIKey: "o"}}))
	assert.Empty(t, names(&config.Config{}))

	for _, s := range Strategies(&config.Config{Secrets: both}, logging.Discard()) {
		if s.Provider.Name() == "gemini" {
			assert.Equal(t, 3, s.Attempts)
		} else {
			assert.Equal(t, 1, s.Attempts)
		}
	}
}

func TestNewStoreDefaultsToFiles(t *testing.T) {
	store, err := NewStore(context.Background(), &config.Config{OutputDir: t.TempDir()})
	require.NoError(t, err)

	_, ok := store.(*storage.FileStore)
	assert.True(t, ok)
}
