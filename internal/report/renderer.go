package report

import (
	"fmt"

	"github.com/loadpress/loadpress/pkg/types"
)

// Document is everything a renderer needs to produce one report file: the
// task being reported on, its structured result, and the runner's tabular
// artifact.
type Document struct {
	Task   *types.Task
	Result *types.Result
	Table  *Table
}

// Renderer produces one report kind from a document. Implementations form a
// closed set; adding a kind means adding one renderer and registering it.
type Renderer interface {
	// Kind returns the report kind this renderer produces
	Kind() string
	// Extension returns the file extension without the dot
	Extension() string
	// Render writes the report file to outPath
	Render(doc *Document, outPath string) error
}

// Renderers returns the full supported renderer set keyed by kind.
func Renderers() map[string]Renderer {
	all := []Renderer{
		&ImageRenderer{},
		&PDFRenderer{},
		&ExcelRenderer{},
		&MarkdownRenderer{},
	}
	byKind := make(map[string]Renderer, len(all))
	for _, r := range all {
		byKind[r.Kind()] = r
	}
	return byKind
}

// metricCell formats an optional float metric for display
func metricCell(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}

// countCell formats an optional count metric for display
func countCell(v *int64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}

// summaryPairs returns the label/value lines shared by every renderer.
func summaryPairs(doc *Document) [][2]string {
	r := doc.Result
	return [][2]string{
		{"Target URL", doc.Task.TargetURL},
		{"Concurrency", fmt.Sprintf("%d", doc.Task.Concurrency)},
		{"Duration", doc.Task.Duration},
		{"QPS", metricCell(r.QPS)},
		{"Avg Latency (ms)", metricCell(r.AvgLatencyMS)},
		{"P95 Latency (ms)", metricCell(r.P95LatencyMS)},
		{"P99 Latency (ms)", metricCell(r.P99LatencyMS)},
		{"Error Rate", metricCell(r.ErrorRate)},
		{"Total Requests", countCell(r.TotalRequests)},
		{"Successful Requests", countCell(r.SuccessfulRequests)},
		{"Failed Requests", countCell(r.FailedRequests)},
	}
}
