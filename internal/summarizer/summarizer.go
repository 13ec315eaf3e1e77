// Package summarizer turns articles into short summaries using an ordered list
// of LLM providers, falling back to the article snippet.
package summarizer

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pep299/tech-digest/internal/model"
	"github.com/pep299/tech-digest/internal/retry"
)

const (
	// Unavailable is returned when no provider answered and the article has no snippet.
	Unavailable = "Summary unavailable"

	// SourceFallback is reported to the observer when no provider produced text.
	SourceFallback = "fallback"

	defaultBatchSize  = 2
	defaultBatchPause = 2 * time.Second
	quotaStep         = 3 * time.Second
	errorStep         = 2 * time.Second
)

// Provider is one summarization backend.
type Provider interface {
	Name() string
	Summarize(ctx context.Context, article model.Article) (string, error)
}

// Strategy pairs a provider with its attempt budget.
type Strategy struct {
	Provider Provider
	Attempts int
}

// StatusCoder is implemented by provider errors that carry an HTTP status.
type StatusCoder interface {
	StatusCode() int
}

// Observer is told which source produced each summary.
type Observer interface {
	ObserveSummary(source string)
}

// IsQuota reports whether err is a rate or usage limit failure.
func IsQuota(err error) bool {
	if err == nil {
		return false
	}
	var sc StatusCoder
	if errors.As(err, &sc) && sc.StatusCode() == 429 {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "quota") || strings.Contains(msg, "429")
}

// Summarizer runs the provider chain.
type Summarizer struct {
	strategies []Strategy
	batchSize  int
	batchPause time.Duration
	sleep      retry.SleepFunc
	observer   Observer
	logger     *slog.Logger
}

// New creates a Summarizer trying strategies in order.
func New(logger *slog.Logger, strategies ...Strategy) *Summarizer {
	return &Summarizer{
		strategies: strategies,
		batchSize:  defaultBatchSize,
		batchPause: defaultBatchPause,
		logger:     logger,
	}
}

// WithSleep replaces the pause used for retries and between batches.
func (s *Summarizer) WithSleep(sleep retry.SleepFunc) *Summarizer {
	s.sleep = sleep
	return s
}

// WithObserver registers an observer for summary sources.
func (s *Summarizer) WithObserver(o Observer) *Summarizer {
	s.observer = o
	return s
}

// Summarize returns a non-empty summary for article.
func (s *Summarizer) Summarize(ctx context.Context, state *RunState, article model.Article) string {
	for i, strategy := range s.strategies {
		primary := i == 0
		if primary && state.SkipOnQuota && state.QuotaExceeded() {
			s.logger.Debug("skipping provider after quota exhaustion", "provider", strategy.Provider.Name(), "run_id", state.ID())
			continue
		}

		text := s.attempt(ctx, state, strategy, primary, article)
		if text != "" {
			s.observe(strategy.Provider.Name())
			return text
		}
	}

	s.observe(SourceFallback)
	if article.ContentSnippet != "" {
		return model.Truncate(article.ContentSnippet, model.SnippetSummaryLength)
	}
	return Unavailable
}

// attempt runs one strategy's retry loop. Quota failures wait attempt×3s,
// other failures attempt×2s. An empty successful answer is not retried.
func (s *Summarizer) attempt(ctx context.Context, state *RunState, strategy Strategy, primary bool, article model.Article) string {
	name := strategy.Provider.Name()
	attempts := max(strategy.Attempts, 1)
	wait := &retry.Linear{Step: errorStep}

	tries := 0
	text, err := retry.Do(ctx, func() (string, error) {
		tries++
		text, err := strategy.Provider.Summarize(ctx, article)
		if err == nil {
			return strings.TrimSpace(text), nil
		}

		quota := IsQuota(err)
		s.logger.Warn("summarization failed",
			"provider", name,
			"attempt", tries,
			"quota", quota,
			"link", article.Link,
			"run_id", state.ID(),
			"error", err)

		wait.Step = errorStep
		if quota {
			wait.Step = quotaStep
		}
		return "", err
	}, wait, attempts, s.sleep)
	if err != nil {
		if primary && tries == attempts && IsQuota(err) {
			state.markQuotaExceeded()
		}
		return ""
	}
	return text
}

// pause waits between batches.
func (s *Summarizer) pause(ctx context.Context, d time.Duration) error {
	if s.sleep != nil {
		return s.sleep(ctx, d)
	}
	return retry.Sleep(ctx, d)
}

// SummarizeAll summarizes articles in groups of two, pausing between groups.
// Every input link gets a non-empty entry.
func (s *Summarizer) SummarizeAll(ctx context.Context, state *RunState, articles []model.Article) model.SummaryMap {
	summaries := make(model.SummaryMap, len(articles))

	for start := 0; start < len(articles); start += s.batchSize {
		end := min(start+s.batchSize, len(articles))
		batch := articles[start:end]
		results := make([]string, len(batch))

		var g errgroup.Group
		for i, article := range batch {
			g.Go(func() error {
				results[i] = s.Summarize(ctx, state, article)
				return nil
			})
		}
		_ = g.Wait()

		for i, article := range batch {
			summaries[article.Link] = results[i]
		}

		if end < len(articles) {
			if err := s.pause(ctx, s.batchPause); err != nil {
				s.logger.Warn("batch pause interrupted", "run_id", state.ID(), "error", err)
			}
		}
	}

	s.logger.Info("summarized articles", "count", len(summaries), "run_id", state.ID(), "quota_exceeded", state.QuotaExceeded())
	return summaries
}

func (s *Summarizer) observe(source string) {
	if s.observer != nil {
		s.observer.ObserveSummary(source)
	}
}
