package report

import (
	"encoding/json"
	"fmt"
	"io"
	"text/template"

	"github.com/FranksOps/pulse/internal/aggregate"
	"github.com/FranksOps/pulse/internal/orchestrator"
)

// Summary contains aggregated metrics about one orchestration run.
type Summary struct {
	RunID            string
	Topic            string
	Status           string
	OK               bool
	Error            string
	TotalItems       int
	ByKind           map[string]int
	VideosIngested   int
	VideoFailures    int
	DiscoverSubItems int
	SkippedItems     int
	TextsExtracted   int
	SentimentOK      bool
	SentimentError   string
	ElapsedMs        int64
}

// Generate processes a run response into summary metrics.
func Generate(resp orchestrator.Response) Summary {
	s := Summary{
		RunID:     resp.Meta.RunID,
		Topic:     resp.Meta.Topic,
		Status:    string(resp.Meta.Status),
		OK:        resp.OK,
		Error:     resp.Error,
		ByKind:    make(map[string]int),
		ElapsedMs: resp.Meta.ElapsedMs,
	}

	for _, it := range resp.Data.Items {
		s.TotalItems++
		s.ByKind[string(it.Kind)]++
		if it.Skipped != "" {
			s.SkippedItems++
		}

		if it.Video != nil {
			if it.Video.OK {
				s.VideosIngested++
			} else {
				s.VideoFailures++
			}
		}
		for _, sub := range it.Videos {
			s.DiscoverSubItems++
			if sub.Video.OK {
				s.VideosIngested++
			} else {
				s.VideoFailures++
			}
		}
	}

	texts, _ := aggregate.ExtractTexts(resp.Data.Items)
	s.TextsExtracted = len(texts)

	if sent := resp.Data.Sentiment; sent != nil {
		s.SentimentOK = sent.OK
		s.SentimentError = sent.Error
	}

	return s
}

// WriteJSON writes the summary to the provided writer in JSON format.
func WriteJSON(w io.Writer, summary Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return nil
}

// WriteText writes a human-readable text summary to the provided writer.
func WriteText(w io.Writer, summary Summary) error {
	const textTmpl = `Pulse Run Summary
-----------------
Run:           {{.RunID}}
Topic:         {{.Topic}}
Status:        {{.Status}}{{if .Error}} ({{.Error}}){{end}}
Elapsed:       {{.ElapsedMs}} ms
Total Items:   {{.TotalItems}}
Skipped:       {{.SkippedItems}}

Items By Kind:
{{- range $kind, $count := .ByKind}}
  {{$kind}}: {{$count}}
{{- else}}
  None
{{- end}}

Videos:        {{.VideosIngested}} ingested, {{.VideoFailures}} failed
Discover Subs: {{.DiscoverSubItems}}
Texts:         {{.TextsExtracted}} extracted
Sentiment:     {{if .SentimentOK}}ok{{else}}{{if .SentimentError}}{{.SentimentError}}{{else}}not run{{end}}{{end}}
`

	t, err := template.New("textReport").Parse(textTmpl)
	if err != nil {
		return fmt.Errorf("parse text template: %w", err)
	}

	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("render text summary: %w", err)
	}

	return nil
}

// WriteHTML writes a basic HTML report to the provided writer.
func WriteHTML(w io.Writer, summary Summary) error {
	const htmlTmpl = `<!DOCTYPE html>
<html>
<head>
<title>Pulse Run Report</title>
<style>
  body { font-family: sans-serif; margin: 40px; color: #333; }
  h1 { border-bottom: 2px solid #ccc; padding-bottom: 10px; }
  .stat-card { display: inline-block; padding: 20px; margin: 10px 10px 10px 0; background: #f4f4f4; border-radius: 5px; min-width: 150px; }
  .stat-val { font-size: 24px; font-weight: bold; }
  table { border-collapse: collapse; margin-top: 10px; }
  th, td { padding: 8px 12px; border: 1px solid #ccc; text-align: left; }
  th { background: #eaeaea; }
</style>
</head>
<body>
  <h1>Pulse Run Report</h1>
  <p><strong>Run:</strong> {{.RunID}}</p>
  <p><strong>Topic:</strong> {{.Topic}} &mdash; {{.Status}} in {{.ElapsedMs}} ms</p>

  <div class="stat-card">
    <div>Total Items</div>
    <div class="stat-val">{{.TotalItems}}</div>
  </div>
  <div class="stat-card">
    <div>Videos Ingested</div>
    <div class="stat-val">{{.VideosIngested}}</div>
  </div>
  <div class="stat-card">
    <div>Video Failures</div>
    <div class="stat-val" style="color: {{if gt .VideoFailures 0}}red{{else}}green{{end}};">{{.VideoFailures}}</div>
  </div>
  <div class="stat-card">
    <div>Texts Extracted</div>
    <div class="stat-val">{{.TextsExtracted}}</div>
  </div>

  <h3>Items By Kind</h3>
  <table>
    <tr><th>Kind</th><th>Count</th></tr>
    {{- range $kind, $count := .ByKind}}
    <tr><td>{{$kind}}</td><td>{{$count}}</td></tr>
    {{- else}}
    <tr><td colspan="2">None</td></tr>
    {{- end}}
  </table>

  <h3>Sentiment</h3>
  <p>{{if .SentimentOK}}ok{{else}}{{if .SentimentError}}{{.SentimentError}}{{else}}not run{{end}}{{end}}</p>
</body>
</html>
`
	t, err := template.New("htmlReport").Parse(htmlTmpl)
	if err != nil {
		return fmt.Errorf("parse html template: %w", err)
	}

	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("render html report: %w", err)
	}

	return nil
}
