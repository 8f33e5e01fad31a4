package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/searchbeam/searchbeam/internal/core"
)

const maxSnippetWidth = 60

// TableFormatter renders results as an ASCII table.
type TableFormatter struct{}

// tableStyle is StyleRounded with footer upper-casing disabled so summary
// lines render as authored.
func tableStyle() table.Style {
	style := table.StyleRounded
	style.Format.Footer = text.FormatDefault
	return style
}

// FormatPage renders a search page as a table.
func (f *TableFormatter) FormatPage(page *core.SearchPage) (string, error) {
	if page == nil {
		return "", nil
	}

	t := table.NewWriter()
	t.SetStyle(tableStyle())
	t.AppendHeader(table.Row{"#", "Title", "Score", "Snippet"})

	base := (page.Page - 1) * len(page.Results)
	for i, r := range page.Results {
		if r == nil {
			continue
		}
		t.AppendRow(table.Row{
			base + i + 1,
			r.Title,
			scoreLabel(r.Score),
			truncate(r.Snippet, maxSnippetWidth),
		})
	}

	summary := fmt.Sprintf("%d results total", page.Total)
	if page.Provenance.FromCache {
		summary += " (cached)"
	}
	t.AppendFooter(table.Row{"", "", "", summary})

	return t.Render(), nil
}

// FormatRequests renders content requests as a table.
func (f *TableFormatter) FormatRequests(requests []*core.ContentRequest) (string, error) {
	t := table.NewWriter()
	t.SetStyle(tableStyle())
	t.AppendHeader(table.Row{"ID", "Requester", "Query", "Submitted"})

	for _, r := range requests {
		if r == nil {
			continue
		}
		t.AppendRow(table.Row{
			r.ID,
			r.Requester,
			truncate(r.Query, maxSnippetWidth),
			r.CreatedAt.Format(time.RFC3339),
		})
	}

	return t.Render(), nil
}

func scoreLabel(score float64) string {
	if score == 0 {
		return "-"
	}
	return fmt.Sprintf("%.2f", score)
}

func truncate(value string, width int) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if len(runes) <= width {
		return value
	}
	return string(runes[:width-1]) + "…"
}
