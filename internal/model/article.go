package model

import (
	"fmt"
	"strings"
	"time"
)

const (
	// UntitledPlaceholder is used when a source omits the item title.
	UntitledPlaceholder = "Untitled"

	hnItemURL = "https://news.ycombinator.com/item?id=%d"
)

// Article is a normalized news item. Link is the identity key.
type Article struct {
	Title               string     `json:"title"`
	Link                string     `json:"link"`
	PublishedAt         string     `json:"published_at"`
	PublishedAtResolved *time.Time `json:"published_at_resolved,omitempty"`
	ContentSnippet      string     `json:"content_snippet,omitempty"`
	FullContent         string     `json:"full_content,omitempty"`
	Author              string     `json:"author,omitempty"`
	Categories          []string   `json:"categories,omitempty"`
	SourceName          string     `json:"source_name,omitempty"`
}

// publishedLayouts are tried in order when no resolved timestamp is available.
var publishedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Timestamp returns the resolved publish time, falling back to a best-effort
// parse of PublishedAt. Unparseable dates yield the Unix epoch.
func (a Article) Timestamp() time.Time {
	if a.PublishedAtResolved != nil && !a.PublishedAtResolved.IsZero() {
		return *a.PublishedAtResolved
	}
	if t, err := ParseDate(a.PublishedAt); err == nil {
		return t
	}
	return time.Unix(0, 0).UTC()
}

// HasResolvedTime reports whether the source provided a parsed timestamp.
func (a Article) HasResolvedTime() bool {
	return a.PublishedAtResolved != nil && !a.PublishedAtResolved.IsZero()
}

// ParseDate parses the date formats commonly seen in feeds and APIs.
func ParseDate(dateStr string) (time.Time, error) {
	dateStr = strings.TrimSpace(dateStr)
	for _, layout := range publishedLayouts {
		if t, err := time.Parse(layout, dateStr); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date: %s", dateStr)
}

// ItemLink synthesizes the discussion URL for a Hacker News item id.
func ItemLink(id int64) string {
	return fmt.Sprintf(hnItemURL, id)
}

// ParsedFeed is the output of a single fetch: one upstream source.
type ParsedFeed struct {
	Name             string    `json:"name"`
	OriginIdentifier string    `json:"origin_identifier"`
	Items            []Article `json:"items"`
}

// Dedupe keeps the first article seen for each link.
func Dedupe(articles []Article) []Article {
	seen := make(map[string]bool, len(articles))
	unique := make([]Article, 0, len(articles))
	for _, a := range articles {
		if a.Link == "" || seen[a.Link] {
			continue
		}
		seen[a.Link] = true
		unique = append(unique, a)
	}
	return unique
}
