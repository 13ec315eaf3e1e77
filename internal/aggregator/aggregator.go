// Package aggregator collects every configured source into one ordered list of feeds.
package aggregator

import (
	"context"
	"log/slog"
	"time"

	"github.com/pep299/tech-digest/internal/config"
	"github.com/pep299/tech-digest/internal/filter"
	"github.com/pep299/tech-digest/internal/hackernews"
	"github.com/pep299/tech-digest/internal/model"
	"github.com/pep299/tech-digest/internal/retry"
	"github.com/pep299/tech-digest/internal/rss"
)

// rssPause separates consecutive RSS fetches.
const rssPause = 1 * time.Second

// StoryFetcher fetches one Hacker News story list.
type StoryFetcher interface {
	FetchStories(ctx context.Context, kind hackernews.ListKind, limit int) []model.Article
}

// FeedFetcher fetches one RSS or Atom feed.
type FeedFetcher interface {
	FetchFeed(ctx context.Context, url string, retries int) model.ParsedFeed
}

// storyList is one API-style source with its fixed limit.
type storyList struct {
	kind  hackernews.ListKind
	limit int
	name  string
}

var storyLists = []storyList{
	{kind: hackernews.Top, limit: 50, name: "Hacker News - Top Stories"},
	{kind: hackernews.New, limit: 50, name: "Hacker News - New"},
	{kind: hackernews.Ask, limit: 30, name: "Hacker News - Ask"},
	{kind: hackernews.Show, limit: 30, name: "Hacker News - Show"},
}

// Aggregator runs the fetchers in a fixed order.
type Aggregator struct {
	stories StoryFetcher
	feeds   FeedFetcher
	sources config.RSSSources
	sleep   retry.SleepFunc
	logger  *slog.Logger
}

// New creates an Aggregator over the given fetchers and RSS source groups.
func New(stories StoryFetcher, feeds FeedFetcher, sources config.RSSSources, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		stories: stories,
		feeds:   feeds,
		sources: sources,
		sleep:   retry.Sleep,
		logger:  logger,
	}
}

// WithSleep replaces the pause used between RSS fetches.
func (a *Aggregator) WithSleep(sleep retry.SleepFunc) *Aggregator {
	a.sleep = sleep
	return a
}

// FetchAll returns every non-empty feed: the four Hacker News lists first, then
// the RSS groups hn, x and custom, each URL in configured order.
func (a *Aggregator) FetchAll(ctx context.Context) []model.ParsedFeed {
	var feeds []model.ParsedFeed

	for _, list := range storyLists {
		items := a.stories.FetchStories(ctx, list.kind, list.limit)
		a.logger.Info("fetched story list", "list", list.kind, "count", len(items))
		feeds = appendNonEmpty(feeds, model.ParsedFeed{
			Name:             list.name,
			OriginIdentifier: "hn:" + string(list.kind),
			Items:            items,
		})
	}

	groups := []struct {
		name string
		urls []string
	}{
		{"hn", a.sources.HN},
		{"x", a.sources.X},
		{"custom", a.sources.Custom},
	}
	for _, group := range groups {
		for _, url := range group.urls {
			feed := a.feeds.FetchFeed(ctx, url, rss.DefaultRetries)
			a.logger.Info("fetched feed", "group", group.name, "url", url, "count", len(feed.Items))
			feeds = appendNonEmpty(feeds, feed)

			if err := a.sleep(ctx, rssPause); err != nil {
				a.logger.Warn("aggregation interrupted", "error", err)
				return feeds
			}
		}
	}

	return feeds
}

func appendNonEmpty(feeds []model.ParsedFeed, feed model.ParsedFeed) []model.ParsedFeed {
	if len(feed.Items) == 0 {
		return feeds
	}
	return append(feeds, feed)
}

// Flatten applies the recency filter to every feed and tags each surviving
// article with its feed name. Feed order is preserved.
func Flatten(feeds []model.ParsedFeed, period time.Duration, now time.Time) []model.Article {
	var articles []model.Article
	for _, feed := range feeds {
		for _, article := range filter.ByPeriod(feed.Items, period, now) {
			article.SourceName = feed.Name
			articles = append(articles, article)
		}
	}
	return articles
}
