package hackernews

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pep299/tech-digest/internal/model"
)

// DefaultBaseURL is the Hacker News Firebase API root.
const DefaultBaseURL = "https://hacker-news.firebaseio.com/v0"

// ListKind selects one of the story list endpoints.
type ListKind string

const (
	Top  ListKind = "top"
	New  ListKind = "new"
	Ask  ListKind = "ask"
	Show ListKind = "show"
)

func (k ListKind) endpoint() string {
	return string(k) + "stories.json"
}

// requiresURL reports whether items of this list are link posts. Items without
// a URL are dropped from top and new; ask and show are mostly text posts.
func (k ListKind) requiresURL() bool {
	return k == Top || k == New
}

// Client fetches stories from the Hacker News API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
	logger     *slog.Logger
}

// NewClient creates a new Hacker News client. An empty baseURL uses DefaultBaseURL.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		userAgent: "tech-digest/1.0",
		logger:    logger,
	}
}

// itemResult is the outcome of a single item fetch: an item, or an error.
type itemResult struct {
	id   int64
	item *model.HNItem
	err  error
}

// FetchStories returns up to limit stories from the given list, in list order.
// It never fails: a list error yields no articles, a failed item is skipped.
func (c *Client) FetchStories(ctx context.Context, kind ListKind, limit int) []model.Article {
	ids, err := c.fetchIDs(ctx, kind)
	if err != nil {
		c.logger.Warn("HN list fetch failed", "list", kind, "error", err)
		return []model.Article{}
	}

	if limit >= 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	results := c.fetchItems(ctx, ids)

	articles := make([]model.Article, 0, len(results))
	failed := 0
	for _, res := range results {
		if res.err != nil {
			failed++
			c.logger.Debug("HN item fetch failed", "id", res.id, "error", res.err)
			continue
		}
		if res.item == nil {
			continue
		}
		if kind.requiresURL() && res.item.URL == "" {
			continue
		}
		articles = append(articles, model.FromHNItem(*res.item))
	}

	c.logger.Info("HN list fetched", "list", kind, "requested", len(ids), "articles", len(articles), "failed", failed)
	return articles
}

// fetchItems fetches every id concurrently, one request per id, and gathers
// all outcomes in id order.
func (c *Client) fetchItems(ctx context.Context, ids []int64) []itemResult {
	results := make([]itemResult, len(ids))

	var g errgroup.Group
	for i, id := range ids {
		g.Go(func() error {
			item, err := c.fetchItem(ctx, id)
			results[i] = itemResult{id: id, item: item, err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (c *Client) fetchIDs(ctx context.Context, kind ListKind) ([]int64, error) {
	var ids []int64
	if err := c.getJSON(ctx, c.baseURL+"/"+kind.endpoint(), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (c *Client) fetchItem(ctx context.Context, id int64) (*model.HNItem, error) {
	var item *model.HNItem
	if err := c.getJSON(ctx, fmt.Sprintf("%s/item/%d.json", c.baseURL, id), &item); err != nil {
		return nil, err
	}
	return item, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
