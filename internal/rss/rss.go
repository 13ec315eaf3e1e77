package rss

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/mmcdole/gofeed"

	"github.com/pep299/tech-digest/internal/model"
	"github.com/pep299/tech-digest/internal/retry"
)

const (
	// DefaultRetries is the attempt budget for a single feed.
	DefaultRetries = 3

	unknownFeedTitle = "Unknown Feed"
	retryStep        = 2 * time.Second
)

// Client fetches and normalizes RSS, RDF and Atom feeds.
type Client struct {
	parser *gofeed.Parser
	sleep  retry.SleepFunc
	logger *slog.Logger
}

// NewClient creates a new RSS client
func NewClient(logger *slog.Logger) *Client {
	fp := gofeed.NewParser()
	fp.Client = &http.Client{
		Timeout: 10 * time.Second,
	}
	fp.UserAgent = "tech-digest/1.0"

	return &Client{
		parser: fp,
		logger: logger,
	}
}

// WithSleep replaces the library timer used between retries.
func (c *Client) WithSleep(sleep retry.SleepFunc) *Client {
	c.sleep = sleep
	return c
}

// FetchFeed fetches and parses the feed at url. HTTP 429 and 5xx responses are
// retried after attempt × 2s, up to retries attempts in total. Any other failure,
// or running out of attempts, yields an empty feed; FetchFeed never fails.
func (c *Client) FetchFeed(ctx context.Context, url string, retries int) model.ParsedFeed {
	if retries < 1 {
		retries = DefaultRetries
	}

	attempt := 0
	feed, err := retry.Do(ctx, func() (*gofeed.Feed, error) {
		attempt++
		feed, err := c.parser.ParseURLWithContext(url, ctx)
		if err == nil {
			return feed, nil
		}
		status := statusCode(err)
		if !isTransient(status) {
			return nil, backoff.Permanent(err)
		}
		if attempt < retries {
			c.logger.Warn("feed rate limited, retrying", "url", url, "status", status, "attempt", attempt, "wait", time.Duration(attempt)*retryStep)
		}
		return nil, err
	}, &retry.Linear{Step: retryStep}, retries, c.sleep)
	if err == nil {
		return toParsedFeed(url, feed)
	}

	c.logger.Error("feed fetch failed", "url", url, "status", statusCode(err), "attempt", attempt, "error", err)
	return model.ParsedFeed{Name: url, OriginIdentifier: url}
}

func toParsedFeed(url string, feed *gofeed.Feed) model.ParsedFeed {
	title := feed.Title
	if title == "" {
		title = unknownFeedTitle
	}

	items := make([]model.Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		items = append(items, model.FromFeedItem(url, item))
	}

	return model.ParsedFeed{
		Name:             title,
		OriginIdentifier: url,
		Items:            items,
	}
}

// statusCode extracts the HTTP status from a gofeed error, or 0 if there is none.
func statusCode(err error) int {
	var httpErr gofeed.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	var httpErrPtr *gofeed.HTTPError
	if errors.As(err, &httpErrPtr) {
		return httpErrPtr.StatusCode
	}
	return 0
}

func isTransient(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}
