package filter

import (
	"strings"
	"time"

	"github.com/pep299/tech-digest/internal/model"
)

// ByPeriod keeps articles published at or after now - period. Articles whose
// date cannot be parsed count as published at the epoch and are dropped.
func ByPeriod(articles []model.Article, period time.Duration, now time.Time) []model.Article {
	cutoff := now.Add(-period)

	filtered := make([]model.Article, 0, len(articles))
	for _, article := range articles {
		if !article.Timestamp().Before(cutoff) {
			filtered = append(filtered, article)
		}
	}
	return filtered
}

// ByCategories keeps articles matching any keyword, case-insensitively: as a
// substring of the title or snippet, or equal to one of the article's categories.
// An empty keyword list keeps everything.
func ByCategories(articles []model.Article, keywords []string) []model.Article {
	if len(keywords) == 0 {
		return articles
	}

	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		lowered = append(lowered, strings.ToLower(k))
	}

	var filtered []model.Article
	for _, article := range articles {
		if matchesAny(article, lowered) {
			filtered = append(filtered, article)
		}
	}
	return filtered
}

// TitleContains keeps articles whose title contains phrase, case-insensitively.
func TitleContains(articles []model.Article, phrase string) []model.Article {
	phrase = strings.ToLower(phrase)

	var filtered []model.Article
	for _, article := range articles {
		if strings.Contains(strings.ToLower(article.Title), phrase) {
			filtered = append(filtered, article)
		}
	}
	return filtered
}

func matchesAny(article model.Article, keywords []string) bool {
	title := strings.ToLower(article.Title)
	snippet := strings.ToLower(article.ContentSnippet)

	for _, keyword := range keywords {
		if strings.Contains(title, keyword) || strings.Contains(snippet, keyword) {
			return true
		}
		for _, category := range article.Categories {
			if strings.ToLower(category) == keyword {
				return true
			}
		}
	}
	return false
}
