// Package ingest defines the per-kind ingestion capabilities and the HTTP
// adapters that implement them against external provider endpoints.
package ingest

import (
	"context"

	"github.com/FranksOps/pulse/internal/source"
)

// VideoIngestor turns a single video URL into an analysis payload. Successful
// payloads carry "analysis" and, when requested, "transcript".
type VideoIngestor interface {
	IngestVideo(ctx context.Context, url, prompt string, returnTranscript bool) source.IngestionResult
}

// DiscoverIngestor expands a discover-page URL into its listed video items.
// Successful payloads carry "items": a list of records with at least "url".
type DiscoverIngestor interface {
	Discover(ctx context.Context, url string, limit int) source.IngestionResult
}

// ArticleIngestor fetches readable text for an article URL. Successful
// payloads carry "content" and optionally "title".
type ArticleIngestor interface {
	IngestArticle(ctx context.Context, url string) source.IngestionResult
}

// SentimentAnalyzer is the downstream consumer of extracted texts. texts and
// sources are index-independent; there is one source ref per processed item.
type SentimentAnalyzer interface {
	Analyze(ctx context.Context, texts []string, sources []source.SourceRef) source.IngestionResult
}

// Envelope is the wire shape every provider endpoint speaks.
type Envelope struct {
	OK    bool           `json:"ok"`
	Data  map[string]any `json:"data"`
	Error string         `json:"error,omitempty"`
}

// ToResult converts a decoded envelope into an IngestionResult for url.
func (e Envelope) ToResult(url string) source.IngestionResult {
	res := source.IngestionResult{URL: url, OK: e.OK, Data: e.Data, Error: e.Error}
	if !res.OK && res.Error == "" {
		res.Error = "unknown error"
	}
	return res
}

// SubURLs extracts the sub-item URLs from a successful discover result,
// preserving order and dropping records without a url field.
func SubURLs(res source.IngestionResult) []string {
	if !res.OK || res.Data == nil {
		return nil
	}
	items, _ := res.Data["items"].([]any)
	var urls []string
	for _, it := range items {
		rec, ok := it.(map[string]any)
		if !ok {
			continue
		}
		if u, ok := rec["url"].(string); ok && u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}
