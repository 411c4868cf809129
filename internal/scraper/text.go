package scraper

import (
	"html"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
)

// toMarkdown converts an HTML fragment to markdown. Plain text passes
// through with entities decoded; a conversion failure falls back to that too.
func toMarkdown(baseURL, fragment string) string {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return ""
	}
	if !strings.Contains(fragment, "<") {
		return strings.TrimSpace(html.UnescapeString(fragment))
	}
	conv := md.NewConverter(baseURL, true, nil)
	out, err := conv.ConvertString(fragment)
	if err != nil {
		return collapseSpace(html.UnescapeString(fragment))
	}
	return strings.TrimSpace(out)
}
