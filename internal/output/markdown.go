package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/searchbeam/searchbeam/internal/core"
)

// MarkdownFormatter renders results as Markdown.
type MarkdownFormatter struct{}

// FormatPage renders a search page as a Markdown section.
func (f *MarkdownFormatter) FormatPage(page *core.SearchPage) (string, error) {
	if page == nil {
		return "", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Search: %s (page %d)\n\n", page.Query, page.Page)

	if len(page.Results) == 0 {
		b.WriteString("_No results._\n")
	} else {
		for i, r := range page.Results {
			if r == nil {
				continue
			}
			fmt.Fprintf(&b, "%d. **%s**", i+1, r.Title)
			if r.URL != "" {
				fmt.Fprintf(&b, " — <%s>", r.URL)
			}
			b.WriteString("\n")
			if r.Snippet != "" {
				fmt.Fprintf(&b, "   %s\n", r.Snippet)
			}
		}
	}

	fmt.Fprintf(&b, "\n_%d results total_", page.Total)
	if page.Provenance.FromCache {
		b.WriteString(" _(cached)_")
	}
	b.WriteString("\n")

	return b.String(), nil
}

// FormatRequests renders content requests as a Markdown list.
func (f *MarkdownFormatter) FormatRequests(requests []*core.ContentRequest) (string, error) {
	var b strings.Builder
	b.WriteString("## Content Requests\n\n")

	if len(requests) == 0 {
		b.WriteString("_None._\n")
		return b.String(), nil
	}

	for _, r := range requests {
		if r == nil {
			continue
		}
		fmt.Fprintf(&b, "- `%s` from %s (%s)\n", r.Query, r.Requester, r.CreatedAt.Format(time.RFC3339))
		if r.Message != "" {
			fmt.Fprintf(&b, "  %s\n", r.Message)
		}
	}

	return b.String(), nil
}
