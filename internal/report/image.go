package report

import (
	"os"
	"strings"
	"text/template"

	"github.com/loadpress/loadpress/pkg/errors"
)

// ImageRenderer renders a report as a self-contained SVG summary card.
type ImageRenderer struct{}

func (r *ImageRenderer) Kind() string      { return "image" }
func (r *ImageRenderer) Extension() string { return "svg" }

const svgTemplate = `<svg xmlns="http://www.w3.org/2000/svg" width="640" height="{{.Height}}" viewBox="0 0 640 {{.Height}}">
  <rect width="640" height="{{.Height}}" fill="#0f172a" rx="12"/>
  <text x="24" y="40" font-family="Helvetica,Arial,sans-serif" font-size="20" font-weight="bold" fill="#f8fafc">Load Test Report - Task {{.TaskID}}</text>
  <line x1="24" y1="56" x2="616" y2="56" stroke="#334155" stroke-width="1"/>
{{- range .Lines}}
  <text x="24" y="{{.Y}}" font-family="Helvetica,Arial,sans-serif" font-size="14" fill="#94a3b8">{{.Label}}</text>
  <text x="360" y="{{.Y}}" font-family="Helvetica,Arial,sans-serif" font-size="14" fill="#f8fafc">{{.Value}}</text>
{{- end}}
</svg>
`

type svgLine struct {
	Y     int
	Label string
	Value string
}

type svgData struct {
	TaskID int64
	Height int
	Lines  []svgLine
}

var svgTmpl = template.Must(template.New("report").Parse(svgTemplate))

func (r *ImageRenderer) Render(doc *Document, outPath string) error {
	pairs := summaryPairs(doc)

	data := svgData{
		TaskID: doc.Task.ID,
		Height: 80 + len(pairs)*28,
	}
	y := 88
	for _, pair := range pairs {
		data.Lines = append(data.Lines, svgLine{
			Y:     y,
			Label: escapeSVG(pair[0]),
			Value: escapeSVG(pair[1]),
		})
		y += 28
	}

	f, err := os.Create(outPath)
	if err != nil {
		return errors.NewInternalError("failed to create image report").WithCause(err)
	}
	defer f.Close()

	if err := svgTmpl.Execute(f, data); err != nil {
		return errors.NewInternalError("failed to render image report").WithCause(err)
	}
	return nil
}

var svgEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")

func escapeSVG(s string) string {
	return svgEscaper.Replace(s)
}
