package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/FranksOps/pulse/internal/dag"
	"github.com/FranksOps/pulse/internal/orchestrator"
	"github.com/FranksOps/pulse/internal/source"
)

func sampleResponse() orchestrator.Response {
	return orchestrator.Response{
		OK: true,
		Data: orchestrator.Data{
			Items: []source.UnifiedItem{
				{
					URL:     "https://example.com/a",
					Kind:    source.KindArticle,
					Content: "article body",
				},
				{
					URL:   "https://youtu.be/ok",
					Kind:  source.KindYouTubeVideo,
					Video: &source.IngestionResult{OK: true, Data: map[string]any{"analysis": "summary"}},
				},
				{
					URL:  "https://www.tiktok.com/discover/x",
					Kind: source.KindTikTokDiscover,
					Videos: []source.VideoResult{
						{URL: "sub1", Video: source.IngestionResult{OK: true, Data: map[string]any{"analysis": "s1"}}},
						{URL: "sub2", Video: source.IngestionResult{OK: false, Error: "Timeout"}},
					},
				},
				{
					URL:     "https://blocked.example.com",
					Kind:    source.KindArticle,
					Skipped: "domain filtered",
				},
			},
			Sentiment: &source.IngestionResult{OK: true, Data: map[string]any{"overall": "positive"}},
		},
		Meta: orchestrator.Meta{
			RunID:     "run-1",
			Topic:     "hdb resale prices",
			Status:    dag.StatusCompleted,
			ElapsedMs: 1234,
		},
	}
}

func TestGenerate(t *testing.T) {
	summary := Generate(sampleResponse())

	if summary.TotalItems != 4 {
		t.Errorf("expected 4 total items, got %d", summary.TotalItems)
	}
	if summary.SkippedItems != 1 {
		t.Errorf("expected 1 skipped item, got %d", summary.SkippedItems)
	}
	if summary.ByKind["article"] != 2 {
		t.Errorf("expected 2 articles, got %d", summary.ByKind["article"])
	}
	if summary.VideosIngested != 2 {
		t.Errorf("expected 2 ingested videos, got %d", summary.VideosIngested)
	}
	if summary.VideoFailures != 1 {
		t.Errorf("expected 1 video failure, got %d", summary.VideoFailures)
	}
	if summary.DiscoverSubItems != 2 {
		t.Errorf("expected 2 discover sub-items, got %d", summary.DiscoverSubItems)
	}
	if summary.TextsExtracted != 3 {
		t.Errorf("expected 3 extracted texts, got %d", summary.TextsExtracted)
	}
	if !summary.SentimentOK {
		t.Errorf("expected sentiment ok")
	}
	if summary.ElapsedMs != 1234 {
		t.Errorf("expected elapsed 1234, got %d", summary.ElapsedMs)
	}
}

func TestGenerateEmptyRun(t *testing.T) {
	summary := Generate(orchestrator.Response{})

	if summary.TotalItems != 0 {
		t.Errorf("expected 0 items, got %d", summary.TotalItems)
	}
	if summary.SentimentOK {
		t.Errorf("expected sentiment not ok for empty run")
	}
}

func TestWriteJSON(t *testing.T) {
	summary := Summary{
		TotalItems: 5,
	}
	var buf bytes.Buffer
	err := WriteJSON(&buf, summary)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(buf.String(), `"TotalItems": 5`) {
		t.Errorf("expected JSON to contain TotalItems: 5")
	}
}

func TestWriteText(t *testing.T) {
	summary := Generate(sampleResponse())

	var buf bytes.Buffer
	err := WriteText(&buf, summary)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "Topic:         hdb resale prices") {
		t.Errorf("expected text to contain the topic, got:\n%s", out)
	}
	if !strings.Contains(out, "Total Items:   4") {
		t.Errorf("expected text to contain total items, got:\n%s", out)
	}
	if !strings.Contains(out, "2 ingested, 1 failed") {
		t.Errorf("expected text to contain video counts, got:\n%s", out)
	}
}

func TestWriteHTML(t *testing.T) {
	summary := Generate(sampleResponse())

	var buf bytes.Buffer
	err := WriteHTML(&buf, summary)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "<title>Pulse Run Report</title>") {
		t.Errorf("expected HTML title")
	}
	if !strings.Contains(out, "tiktok_discover") {
		t.Errorf("expected HTML to contain item kinds")
	}
}
