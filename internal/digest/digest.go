// Package digest runs one end-to-end digest: fetch, filter, categorize,
// summarize, render, save and optionally mail.
package digest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pep299/tech-digest/internal/aggregator"
	"github.com/pep299/tech-digest/internal/categorize"
	"github.com/pep299/tech-digest/internal/config"
	"github.com/pep299/tech-digest/internal/logging"
	"github.com/pep299/tech-digest/internal/metrics"
	"github.com/pep299/tech-digest/internal/model"
	"github.com/pep299/tech-digest/internal/report"
	"github.com/pep299/tech-digest/internal/storage"
	"github.com/pep299/tech-digest/internal/summarizer"
)

// Fetcher produces the feeds for a run.
type Fetcher interface {
	FetchAll(ctx context.Context) []model.ParsedFeed
}

// Summarizer produces a summary for every article.
type Summarizer interface {
	SummarizeAll(ctx context.Context, state *summarizer.RunState, articles []model.Article) model.SummaryMap
}

// Mailer delivers a rendered digest.
type Mailer interface {
	SendDigest(ctx context.Context, html string, date time.Time) bool
}

// Options override configuration for a single run. Zero values use the config.
type Options struct {
	Period              string
	ArticlesPerCategory int
	SendEmail           bool
}

// Result describes a finished run.
type Result struct {
	RunID               string    `json:"run_id"`
	Period              string    `json:"period"`
	ArticlesPerCategory int       `json:"articles_per_category"`
	Feeds               int       `json:"feeds"`
	Articles            int       `json:"articles"`
	Summarized          int       `json:"summarized"`
	DigestName          string    `json:"digest_name"`
	Location            string    `json:"location"`
	EmailSent           bool      `json:"email_sent"`
	QuotaExceeded       bool      `json:"quota_exceeded"`
	GeneratedAt         time.Time `json:"generated_at"`
	Markdown            string    `json:"-"`
}

// Runner wires the pipeline together. It holds no per-run state.
type Runner struct {
	cfg        *config.Config
	fetcher    Fetcher
	summarizer Summarizer
	store      storage.Store
	mailer     Mailer
	metrics    *metrics.Recorder
	logger     *slog.Logger
	now        func() time.Time
}

// NewRunner creates a Runner. mailer may be nil when email is not configured.
func NewRunner(cfg *config.Config, fetcher Fetcher, sum Summarizer, store storage.Store, mailer Mailer, rec *metrics.Recorder, logger *slog.Logger) *Runner {
	return &Runner{
		cfg:        cfg,
		fetcher:    fetcher,
		summarizer: sum,
		store:      store,
		mailer:     mailer,
		metrics:    rec,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock replaces the run clock.
func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.now = now
	return r
}

// Run executes one digest. Only configuration problems and a failed save
// are returned as errors; upstream and delivery failures degrade the output.
func (r *Runner) Run(ctx context.Context, opts Options) (*Result, error) {
	start := r.now()

	result, err := r.run(ctx, opts, start)

	status := "ok"
	if err != nil {
		status = "error"
	}
	if r.metrics != nil {
		r.metrics.RecordRun(status, r.now().Sub(start))
	}
	return result, err
}

func (r *Runner) run(ctx context.Context, opts Options, now time.Time) (*Result, error) {
	periodStr := opts.Period
	if periodStr == "" {
		periodStr = r.cfg.Period
	}
	period, err := config.ParsePeriod(periodStr)
	if err != nil {
		return nil, fmt.Errorf("parsing period: %w", err)
	}

	perCategory := opts.ArticlesPerCategory
	if perCategory == 0 {
		perCategory = r.cfg.ArticlesPerCategory
	}
	if perCategory < 0 {
		return nil, &config.ConfigError{Field: "articles_per_category", Message: "must be positive"}
	}

	state := summarizer.NewRunState()
	logger := logging.FromContext(ctx, r.logger).With("run_id", state.ID())
	logger.Info("starting digest run", "period", periodStr, "articles_per_category", perCategory)

	feeds := r.fetcher.FetchAll(ctx)
	articles := aggregator.Flatten(feeds, period, now)
	logger.Info("collected articles", "feeds", len(feeds), "articles", len(articles))

	buckets := categorize.Categorize(articles, categorize.Keywords{
		Tech:    r.cfg.Categories.Tech,
		Startup: r.cfg.Categories.Startup,
	})

	var toSummarize []model.Article
	for _, bucket := range buckets {
		toSummarize = append(toSummarize, bucket.Limit(perCategory)...)
	}
	toSummarize = model.Dedupe(toSummarize)

	state.Reset()
	summaries := r.summarizer.SummarizeAll(ctx, state, toSummarize)

	rep := report.Build(periodStr, perCategory, buckets, summaries, now)
	markdown := rep.Markdown()

	if r.metrics != nil {
		fetched := 0
		for _, feed := range feeds {
			fetched += len(feed.Items)
		}
		r.metrics.FeedsFetched.Set(float64(len(feeds)))
		r.metrics.RecordStage("fetched", fetched)
		r.metrics.RecordStage("recent", len(articles))
		r.metrics.RecordStage("summarized", len(toSummarize))
	}

	result := &Result{
		RunID:               state.ID(),
		Period:              periodStr,
		ArticlesPerCategory: perCategory,
		Feeds:               len(feeds),
		Articles:            len(articles),
		Summarized:          len(toSummarize),
		DigestName:          storage.FileName(now),
		QuotaExceeded:       state.QuotaExceeded(),
		GeneratedAt:         rep.GeneratedAt,
		Markdown:            markdown,
	}

	location, err := r.store.Save(ctx, result.DigestName, []byte(markdown))
	if err != nil {
		return result, fmt.Errorf("saving digest: %w", err)
	}
	result.Location = location
	logger.Info("saved digest", "location", location)

	if opts.SendEmail {
		result.EmailSent = r.sendEmail(ctx, logger, rep)
	}

	logger.Info("digest run finished", "articles", result.Articles, "summarized", result.Summarized, "email_sent", result.EmailSent)
	return result, nil
}

// Store is where digests are saved.
func (r *Runner) Store() storage.Store {
	return r.store
}

// Close releases the store.
func (r *Runner) Close() error {
	return r.store.Close()
}

func (r *Runner) sendEmail(ctx context.Context, logger *slog.Logger, rep report.Report) bool {
	sent := false
	defer func() {
		if r.metrics != nil {
			r.metrics.RecordEmail(sent)
		}
	}()

	if r.mailer == nil {
		logger.Warn("email requested but not configured")
		return false
	}

	html, err := rep.HTML()
	if err != nil {
		logger.Error("rendering email", "error", err)
		return false
	}

	sent = r.mailer.SendDigest(ctx, html, rep.GeneratedAt)
	return sent
}
