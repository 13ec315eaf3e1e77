package summarizer

import (
	"fmt"

	"github.com/pep299/tech-digest/internal/model"
)

// contentPromptLength bounds how much full content goes into a prompt when the
// article has no snippet.
const contentPromptLength = 500

// Prompt builds the summarization prompt shared by every provider.
func Prompt(article model.Article) string {
	body := article.ContentSnippet
	if body == "" {
		body = model.Truncate(article.FullContent, contentPromptLength)
	}

	return fmt.Sprintf(`Summarize the following article in 2-3 sentences. Focus on the key insight or value:

Title: %s
%s

Summary:`, article.Title, body)
}
