// Package report renders a digest as Markdown for the saved file and as HTML
// for email.
package report

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/pep299/tech-digest/internal/model"
)

const (
	// Title heads every digest.
	Title = "Tech News Digest"

	noSummary   = "No summary available"
	defaultIcon = "📰"
)

var icons = map[string]string{
	"Top Stories": "🔥",
	"Newest":      "✨",
	"Tech":        "🖥️",
	"Startup":     "🚀",
	"Ask HN":      "❓",
	"Show HN":     "💡",
}

//go:embed templates/digest.html
var templateFS embed.FS

var htmlTemplate = template.Must(template.ParseFS(templateFS, "templates/digest.html"))

// Entry is one rendered article.
type Entry struct {
	Title       string
	Summary     string
	Link        string
	PublishedAt string
	Source      string
}

// Section is one rendered bucket.
type Section struct {
	Name    string
	Icon    string
	Entries []Entry
}

// Report is the render-ready digest.
type Report struct {
	Title               string
	Period              string
	ArticlesPerCategory int
	GeneratedAt         time.Time
	Sections            []Section
}

// Build turns categorized buckets into a report, showing at most perCategory
// articles from each bucket.
func Build(period string, perCategory int, buckets []model.Bucket, summaries model.SummaryMap, now time.Time) Report {
	sections := make([]Section, 0, len(buckets))
	for _, bucket := range buckets {
		articles := bucket.Limit(perCategory)
		entries := make([]Entry, 0, len(articles))
		for _, a := range articles {
			summary := summaries.Lookup(a.Link, a.ContentSnippet)
			if summary == "" {
				summary = noSummary
			}
			entries = append(entries, Entry{
				Title:       a.Title,
				Summary:     summary,
				Link:        a.Link,
				PublishedAt: a.PublishedAt,
				Source:      a.SourceName,
			})
		}
		sections = append(sections, Section{
			Name:    bucket.Name,
			Icon:    iconFor(bucket.Name),
			Entries: entries,
		})
	}

	return Report{
		Title:               Title,
		Period:              period,
		ArticlesPerCategory: perCategory,
		GeneratedAt:         now.UTC(),
		Sections:            sections,
	}
}

func iconFor(name string) string {
	if icon, ok := icons[name]; ok {
		return icon
	}
	return defaultIcon
}

// Timestamp formats the generation time as "YYYY-MM-DD HH:MM:SSZ".
func (r Report) Timestamp() string {
	return r.GeneratedAt.UTC().Format("2006-01-02 15:04:05") + "Z"
}

// Date is the generation day, used in file names and mail subjects.
func (r Report) Date() string {
	return r.GeneratedAt.UTC().Format("2006-01-02")
}

// NonEmptySections returns the sections that have at least one entry.
func (r Report) NonEmptySections() []Section {
	var out []Section
	for _, s := range r.Sections {
		if len(s.Entries) > 0 {
			out = append(out, s)
		}
	}
	return out
}

// ArticleCount is the number of rendered entries across all sections.
func (r Report) ArticleCount() int {
	n := 0
	for _, s := range r.Sections {
		n += len(s.Entries)
	}
	return n
}

// Markdown renders the report for the saved digest file.
func (r Report) Markdown() string {
	var md strings.Builder

	fmt.Fprintf(&md, "# %s\n\n", r.Title)
	fmt.Fprintf(&md, "**Period:** Last %s | **Articles per section:** %d\n", r.Period, r.ArticlesPerCategory)
	fmt.Fprintf(&md, "**Generated:** %s\n\n---\n\n", r.Timestamp())

	for _, section := range r.NonEmptySections() {
		fmt.Fprintf(&md, "### %s %s\n\n", section.Icon, section.Name)
		for _, e := range section.Entries {
			fmt.Fprintf(&md, "**%s**\n\n", e.Title)
			fmt.Fprintf(&md, "> %s\n\n", e.Summary)
			fmt.Fprintf(&md, "[Read more](%s)\n\n", e.Link)
			md.WriteString("---\n\n")
		}
	}

	fmt.Fprintf(&md, "\n---\n*Generated automatically by %s*\n", r.Title)
	return md.String()
}

// HTML renders the report as an email body. All article fields are escaped.
func (r Report) HTML() (string, error) {
	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, r); err != nil {
		return "", fmt.Errorf("rendering html report: %w", err)
	}
	return buf.String(), nil
}
