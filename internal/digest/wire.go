package digest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pep299/tech-digest/internal/aggregator"
	"github.com/pep299/tech-digest/internal/config"
	"github.com/pep299/tech-digest/internal/gemini"
	"github.com/pep299/tech-digest/internal/hackernews"
	"github.com/pep299/tech-digest/internal/mail"
	"github.com/pep299/tech-digest/internal/metrics"
	"github.com/pep299/tech-digest/internal/openai"
	"github.com/pep299/tech-digest/internal/rss"
	"github.com/pep299/tech-digest/internal/storage"
	"github.com/pep299/tech-digest/internal/summarizer"
)

const (
	geminiAttempts = 3
	openAIAttempts = 1
)

// New builds a production Runner from configuration.
func New(ctx context.Context, cfg *config.Config, rec *metrics.Recorder, logger *slog.Logger) (*Runner, error) {
	agg := aggregator.New(
		hackernews.NewClient("", logger),
		rss.NewClient(logger),
		cfg.RSSSources,
		logger,
	)

	sum := summarizer.New(logger, Strategies(cfg, logger)...)
	if rec != nil {
		sum = sum.WithObserver(rec)
	}

	store, err := NewStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var mailer Mailer
	sender := mail.NewSender(cfg.Secrets, logger)
	if sender.Configured() {
		mailer = sender
	}

	return NewRunner(cfg, agg, sum, store, mailer, rec, logger), nil
}

// Strategies orders the summarization providers. The configured provider goes
// first; providers without an API key are left out.
func Strategies(cfg *config.Config, logger *slog.Logger) []summarizer.Strategy {
	var geminiStrategy, openAIStrategy *summarizer.Strategy
	if cfg.Secrets.GeminiAPIKey != "" {
		geminiStrategy = &summarizer.Strategy{
			Provider: gemini.NewClient(cfg.Secrets.GeminiAPIKey, cfg.LLM.Model),
			Attempts: geminiAttempts,
		}
	}
	if cfg.Secrets.OpenAIAPIKey != "" {
		openAIStrategy = &summarizer.Strategy{
			Provider: openai.NewClient(cfg.Secrets.OpenAIAPIKey, cfg.LLM.OpenAIModel),
			Attempts: openAIAttempts,
		}
	}

	ordered := []*summarizer.Strategy{geminiStrategy, openAIStrategy}
	if cfg.LLM.Provider == "openai" {
		ordered = []*summarizer.Strategy{openAIStrategy, geminiStrategy}
	}

	var strategies []summarizer.Strategy
	for _, s := range ordered {
		if s != nil {
			strategies = append(strategies, *s)
		}
	}
	if len(strategies) == 0 {
		logger.Warn("no LLM API keys configured, summaries will use snippets")
	}
	return strategies
}

// NewStore picks Cloud Storage when a bucket is configured, else the output dir.
func NewStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	if cfg.Storage.Bucket != "" {
		store, err := storage.NewGCSStore(ctx, cfg.Storage.Bucket)
		if err != nil {
			return nil, fmt.Errorf("creating digest store: %w", err)
		}
		return store, nil
	}
	return storage.NewFileStore(cfg.OutputDir), nil
}
