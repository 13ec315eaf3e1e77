package model

import (
	"crypto/sha256"
	"encoding/hex"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
)

var (
	spaceCollapseRe = regexp.MustCompile(`\s+`)
	strictPolicy    = bluemonday.StrictPolicy()
)

// HNItem is an item as returned by the Hacker News item endpoint.
type HNItem struct {
	ID          int64  `json:"id"`
	Type        string `json:"type"`
	By          string `json:"by"`
	Time        int64  `json:"time"`
	Text        string `json:"text"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	Score       int    `json:"score"`
	Descendants int    `json:"descendants"`
	Dead        bool   `json:"dead"`
	Deleted     bool   `json:"deleted"`
}

// FromHNItem converts a Hacker News item into an Article. Items without a URL
// (Ask HN, text posts) link to their discussion page.
func FromHNItem(item HNItem) Article {
	published := time.Unix(item.Time, 0).UTC()
	link := item.URL
	if link == "" {
		link = ItemLink(item.ID)
	}

	return Article{
		Title:               titleOrPlaceholder(item.Title),
		Link:                link,
		PublishedAt:         published.Format(time.RFC3339),
		PublishedAtResolved: &published,
		ContentSnippet:      PlainText(item.Text),
		FullContent:         item.Text,
		Author:              item.By,
		Categories:          []string{},
	}
}

// FromFeedItem converts a parsed RSS/Atom item from the feed at feedURL into an
// Article. SourceName is left empty; the aggregator assigns it from the feed title.
// An item with neither link nor guid gets a stable link derived from feedURL.
func FromFeedItem(feedURL string, item *gofeed.Item) Article {
	article := Article{
		Title:       titleOrPlaceholder(item.Title),
		Link:        item.Link,
		PublishedAt: item.Published,
		Categories:  item.Categories,
	}

	if article.Link == "" {
		article.Link = item.GUID
	}
	if article.PublishedAt == "" {
		article.PublishedAt = item.Updated
	}
	if article.Link == "" {
		article.Link = syntheticLink(feedURL, item)
	}

	switch {
	case item.PublishedParsed != nil:
		t := item.PublishedParsed.UTC()
		article.PublishedAtResolved = &t
	case item.UpdatedParsed != nil:
		t := item.UpdatedParsed.UTC()
		article.PublishedAtResolved = &t
	}

	article.FullContent = item.Content
	if article.FullContent == "" {
		article.FullContent = item.Description
	}
	article.ContentSnippet = PlainText(article.FullContent)

	if len(item.Authors) > 0 && item.Authors[0] != nil {
		article.Author = item.Authors[0].Name
	} else if item.Author != nil {
		article.Author = item.Author.Name
	}
	if article.Categories == nil {
		article.Categories = []string{}
	}

	return article
}

// syntheticLink identifies a link-less item by its feed and content.
func syntheticLink(feedURL string, item *gofeed.Item) string {
	sum := sha256.Sum256([]byte(item.Title + "\x00" + item.Published + "\x00" + item.Updated + "\x00" + item.Description + "\x00" + item.Content))
	return feedURL + "#" + hex.EncodeToString(sum[:8])
}

// PlainText strips markup from an HTML fragment and collapses whitespace.
func PlainText(rawHTML string) string {
	if rawHTML == "" {
		return ""
	}
	// keep words in adjacent elements apart once the tags are gone
	text := strictPolicy.Sanitize(strings.ReplaceAll(rawHTML, "<", " <"))
	text = html.UnescapeString(text)
	text = spaceCollapseRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

func titleOrPlaceholder(title string) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	return UntitledPlaceholder
}
