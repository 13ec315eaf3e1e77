package model

// Bucket is a named, size-capped view over the article set. Buckets may overlap.
type Bucket struct {
	Name     string
	Articles []Article
}

// Limit returns at most n articles of the bucket. n <= 0 means no limit.
func (b Bucket) Limit(n int) []Article {
	if n <= 0 || len(b.Articles) <= n {
		return b.Articles
	}
	return b.Articles[:n]
}

// SummaryMap maps article link to summary text.
type SummaryMap map[string]string

// Lookup returns the summary for link. A missing key and an empty summary are
// treated the same: the first 150 characters of snippet, or "" if none.
func (m SummaryMap) Lookup(link, snippet string) string {
	if s := m[link]; s != "" {
		return s
	}
	return Truncate(snippet, SnippetSummaryLength)
}

// SnippetSummaryLength is the size of the non-LLM fallback summary.
const SnippetSummaryLength = 150

// Truncate returns the first n characters of s.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
