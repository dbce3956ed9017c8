package report

import (
	"fmt"
	"os"
	"strings"

	"github.com/loadpress/loadpress/pkg/errors"
)

// MarkdownRenderer renders a report as a Markdown document.
type MarkdownRenderer struct{}

func (r *MarkdownRenderer) Kind() string      { return "markdown" }
func (r *MarkdownRenderer) Extension() string { return "md" }

func (r *MarkdownRenderer) Render(doc *Document, outPath string) error {
	var b strings.Builder

	fmt.Fprintf(&b, "# Load Test Report - Task %d\n\n", doc.Task.ID)

	b.WriteString("## Summary\n\n")
	b.WriteString("| Metric | Value |\n|---|---|\n")
	for _, pair := range summaryPairs(doc) {
		fmt.Fprintf(&b, "| %s | %s |\n", pair[0], pair[1])
	}
	b.WriteString("\n")

	if doc.Table != nil && len(doc.Table.Headers) > 0 {
		b.WriteString("## Measurements\n\n")
		b.WriteString("| " + strings.Join(doc.Table.Headers, " | ") + " |\n")
		b.WriteString("|" + strings.Repeat("---|", len(doc.Table.Headers)) + "\n")
		for _, row := range doc.Table.Rows {
			b.WriteString("| " + strings.Join(row, " | ") + " |\n")
		}
	}

	if err := os.WriteFile(outPath, []byte(b.String()), 0o644); err != nil {
		return errors.NewInternalError("failed to write markdown report").WithCause(err)
	}
	return nil
}
