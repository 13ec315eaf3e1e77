package categorize

import (
	"sort"

	"github.com/pep299/tech-digest/internal/filter"
	"github.com/pep299/tech-digest/internal/model"
)

// Bucket names, in the order Categorize returns them.
const (
	TopStories = "Top Stories"
	Tech       = "Tech"
	Startup    = "Startup"
	AskHN      = "Ask HN"
	ShowHN     = "Show HN"
)

// Keywords are the configured keyword lists for the keyword buckets.
type Keywords struct {
	Tech    []string
	Startup []string
}

// Caps bounds the size of each bucket.
type Caps struct {
	TopStories int
	Tech       int
	Startup    int
	Ask        int
	Show       int
}

// DefaultCaps are the structural bucket sizes.
var DefaultCaps = Caps{TopStories: 30, Tech: 20, Startup: 20, Ask: 10, Show: 10}

// Categorize builds the digest buckets with DefaultCaps.
func Categorize(articles []model.Article, keywords Keywords) []model.Bucket {
	return CategorizeWithCaps(articles, keywords, DefaultCaps)
}

// CategorizeWithCaps builds the buckets in fixed order. Buckets are independent
// views and may share articles.
func CategorizeWithCaps(articles []model.Article, keywords Keywords, caps Caps) []model.Bucket {
	return []model.Bucket{
		{Name: TopStories, Articles: capped(newestFirst(articles), caps.TopStories)},
		{Name: Tech, Articles: capped(filter.ByCategories(articles, keywords.Tech), caps.Tech)},
		{Name: Startup, Articles: capped(filter.ByCategories(articles, keywords.Startup), caps.Startup)},
		{Name: AskHN, Articles: capped(filter.TitleContains(articles, "ask hn"), caps.Ask)},
		{Name: ShowHN, Articles: capped(filter.TitleContains(articles, "show hn"), caps.Show)},
	}
}

// newestFirst sorts a copy by resolved timestamp, newest first. Articles
// without a resolved timestamp sort as the oldest.
func newestFirst(articles []model.Article) []model.Article {
	sorted := make([]model.Article, len(articles))
	copy(sorted, articles)

	sort.SliceStable(sorted, func(i, j int) bool {
		return resolvedUnixMilli(sorted[i]) > resolvedUnixMilli(sorted[j])
	})
	return sorted
}

func resolvedUnixMilli(a model.Article) int64 {
	if !a.HasResolvedTime() {
		return 0
	}
	return a.PublishedAtResolved.UnixMilli()
}

func capped(articles []model.Article, n int) []model.Article {
	n = max(n, 0)
	if len(articles) > n {
		articles = articles[:n]
	}
	out := make([]model.Article, len(articles))
	copy(out, articles)
	return out
}
