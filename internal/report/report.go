package report

import (
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	"io"
	"strconv"
	"text/template"

	"github.com/FranksOps/haggle/internal/listing"
	"gopkg.in/yaml.v3"
)

// Format names an output rendering.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatHTML Format = "html"
)

// Write renders result in the named format.
func Write(w io.Writer, format Format, result *listing.SearchResult) error {
	switch format {
	case FormatText, "":
		return WriteText(w, result)
	case FormatJSON:
		return WriteJSON(w, result)
	case FormatYAML:
		return WriteYAML(w, result)
	case FormatHTML:
		return WriteHTML(w, result)
	}
	return fmt.Errorf("report: unknown format %q", format)
}

// WriteJSON writes the result as indented JSON.
func WriteJSON(w io.Writer, result *listing.SearchResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("report: json: %w", err)
	}
	return nil
}

// WriteYAML writes the result as YAML.
func WriteYAML(w io.Writer, result *listing.SearchResult) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("report: yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("report: yaml: %w", err)
	}
	return nil
}

var funcs = map[string]any{
	"price": func(p *float64) string {
		if p == nil {
			return "-"
		}
		return strconv.FormatFloat(*p, 'f', -1, 64)
	},
	"inc": func(i int) int { return i + 1 },
	"pct": func(score float64) string {
		return strconv.FormatFloat(score*100, 'f', 0, 64) + "%"
	},
}

const textTmpl = `Price comparison: {{.Query}}
------------------
{{- with .Insights}}
Prices found:    {{.Count}}
{{- if .Count}}
Range:           {{.Min}} - {{.Max}}
Average:         {{.Average}}
Suggested price: {{.SuggestedMin}} - {{.SuggestedMax}}
{{- end}}
{{- end}}

Results:
{{- range $i, $r := .Results}}
  {{inc $i}}. [{{$r.Source}}] {{$r.Title}}
     {{$r.Price}} ({{price $r.CleanPrice}}) | {{$r.Location}} | match {{pct $r.MatchScore}}
     {{$r.Link}}
{{- else}}
  None
{{- end}}

Sources:
{{- range .Sources}}
  {{.Source}}: {{.Count}} listings in {{.Duration}}{{if .Failure}} (failed: {{.Failure}}){{end}}
{{- else}}
  None
{{- end}}
`

// WriteText writes a human-readable summary.
func WriteText(w io.Writer, result *listing.SearchResult) error {
	t, err := template.New("textReport").Funcs(funcs).Parse(textTmpl)
	if err != nil {
		return fmt.Errorf("report: text: %w", err)
	}
	if err := t.Execute(w, result); err != nil {
		return fmt.Errorf("report: text: %w", err)
	}
	return nil
}

const htmlTmpl = `<!DOCTYPE html>
<html>
<head>
<title>Price comparison: {{.Query}}</title>
<style>
  body { font-family: sans-serif; margin: 40px; color: #333; }
  h1 { border-bottom: 2px solid #ccc; padding-bottom: 10px; }
  .stat-card { display: inline-block; padding: 20px; margin: 10px 10px 10px 0; background: #f4f4f4; border-radius: 5px; min-width: 150px; }
  .stat-val { font-size: 24px; font-weight: bold; }
  table { border-collapse: collapse; margin-top: 10px; }
  th, td { padding: 8px 12px; border: 1px solid #ccc; text-align: left; }
  th { background: #eaeaea; }
  .failed { color: red; }
</style>
</head>
<body>
  <h1>Price comparison: {{.Query}}</h1>
  {{- with .Insights}}
  <div class="stat-card">
    <div>Prices found</div>
    <div class="stat-val">{{.Count}}</div>
  </div>
  <div class="stat-card">
    <div>Average</div>
    <div class="stat-val">{{.Average}}</div>
  </div>
  <div class="stat-card">
    <div>Range</div>
    <div class="stat-val">{{.Min}} - {{.Max}}</div>
  </div>
  <div class="stat-card">
    <div>Suggested</div>
    <div class="stat-val">{{.SuggestedMin}} - {{.SuggestedMax}}</div>
  </div>
  {{- end}}

  <h3>Results</h3>
  <table>
    <tr><th>Source</th><th>Title</th><th>Price</th><th>Location</th><th>Match</th></tr>
    {{- range .Results}}
    <tr><td>{{.Source}}</td><td><a href="{{.Link}}">{{.Title}}</a></td><td>{{.Price}}</td><td>{{.Location}}</td><td>{{pct .MatchScore}}</td></tr>
    {{- else}}
    <tr><td colspan="5">None</td></tr>
    {{- end}}
  </table>

  <h3>Sources</h3>
  <table>
    <tr><th>Source</th><th>Listings</th><th>Duration</th><th>Failure</th></tr>
    {{- range .Sources}}
    <tr><td>{{.Source}}</td><td>{{.Count}}</td><td>{{.Duration}}</td><td class="failed">{{.Failure}}</td></tr>
    {{- else}}
    <tr><td colspan="4">None</td></tr>
    {{- end}}
  </table>
</body>
</html>
`

// WriteHTML writes a standalone HTML page. Marketplace text is escaped.
func WriteHTML(w io.Writer, result *listing.SearchResult) error {
	t, err := htmltemplate.New("htmlReport").Funcs(funcs).Parse(htmlTmpl)
	if err != nil {
		return fmt.Errorf("report: html: %w", err)
	}
	if err := t.Execute(w, result); err != nil {
		return fmt.Errorf("report: html: %w", err)
	}
	return nil
}
