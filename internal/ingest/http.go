package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/FranksOps/pulse/internal/source"
	"github.com/FranksOps/pulse/pkg/httpclient"
	"github.com/FranksOps/pulse/pkg/ratelimit"
)

// HTTPVideoIngestor calls a video-understanding endpoint. Failures, including
// transport errors, come back as failed results so the retry policy can
// inspect the error text for throttling signatures.
type HTTPVideoIngestor struct {
	endpoint string
	client   *httpclient.Client
	limiter  *ratelimit.Limiter
	logger   *slog.Logger
}

// NewHTTPVideoIngestor creates a video adapter for the given endpoint.
// limiter may be nil for unpaced calls.
func NewHTTPVideoIngestor(endpoint string, client *httpclient.Client, limiter *ratelimit.Limiter, logger *slog.Logger) *HTTPVideoIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPVideoIngestor{endpoint: endpoint, client: client, limiter: limiter, logger: logger}
}

func (v *HTTPVideoIngestor) IngestVideo(ctx context.Context, url, prompt string, returnTranscript bool) source.IngestionResult {
	if v.limiter != nil {
		if err := v.limiter.Wait(ctx); err != nil {
			return source.IngestionResult{URL: url, OK: false, Error: fmt.Sprintf("rate limiter: %v", err)}
		}
	}

	payload := map[string]any{
		"input_path":        url,
		"mode":              "transcribe_to_text",
		"prompt":            prompt,
		"return_transcript": returnTranscript,
	}

	var env Envelope
	if err := v.client.PostJSON(ctx, v.endpoint, payload, &env); err != nil {
		v.logger.Warn("video ingestion call failed", "url", url, "err", err)
		return source.IngestionResult{URL: url, OK: false, Error: err.Error()}
	}
	return env.ToResult(url)
}

// HTTPDiscoverIngestor calls a TikTok discover-scrape endpoint.
type HTTPDiscoverIngestor struct {
	endpoint string
	client   *httpclient.Client
	logger   *slog.Logger
}

func NewHTTPDiscoverIngestor(endpoint string, client *httpclient.Client, logger *slog.Logger) *HTTPDiscoverIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPDiscoverIngestor{endpoint: endpoint, client: client, logger: logger}
}

func (d *HTTPDiscoverIngestor) Discover(ctx context.Context, url string, limit int) source.IngestionResult {
	payload := map[string]any{"url": url, "limit": limit}

	var env Envelope
	if err := d.client.PostJSON(ctx, d.endpoint, payload, &env); err != nil {
		d.logger.Warn("discover call failed", "url", url, "err", err)
		return source.IngestionResult{URL: url, OK: false, Error: err.Error()}
	}
	return env.ToResult(url)
}

// HTTPSentimentAnalyzer calls the sentiment endpoint with extracted texts.
type HTTPSentimentAnalyzer struct {
	endpoint string
	client   *httpclient.Client
	logger   *slog.Logger
}

func NewHTTPSentimentAnalyzer(endpoint string, client *httpclient.Client, logger *slog.Logger) *HTTPSentimentAnalyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPSentimentAnalyzer{endpoint: endpoint, client: client, logger: logger}
}

func (s *HTTPSentimentAnalyzer) Analyze(ctx context.Context, texts []string, sources []source.SourceRef) source.IngestionResult {
	payload := map[string]any{"texts": texts, "sources": sources}

	var env Envelope
	if err := s.client.PostJSON(ctx, s.endpoint, payload, &env); err != nil {
		s.logger.Warn("sentiment call failed", "texts", len(texts), "err", err)
		return source.IngestionResult{OK: false, Error: err.Error()}
	}
	return env.ToResult("")
}

// HTTPQueryBuilder calls a query-builder endpoint that turns structured
// params into a search topic. It satisfies topic.Builder.
type HTTPQueryBuilder struct {
	endpoint string
	client   *httpclient.Client
}

func NewHTTPQueryBuilder(endpoint string, client *httpclient.Client) *HTTPQueryBuilder {
	return &HTTPQueryBuilder{endpoint: endpoint, client: client}
}

func (q *HTTPQueryBuilder) BuildQuery(ctx context.Context, params map[string]any) (any, error) {
	var env Envelope
	if err := q.client.PostJSON(ctx, q.endpoint, map[string]any{"params": params}, &env); err != nil {
		return nil, err
	}
	if !env.OK {
		if env.Error == "" {
			return nil, errors.New("query builder failed")
		}
		return nil, errors.New(env.Error)
	}
	if env.Data == nil {
		return nil, errors.New("query builder returned no data")
	}
	return env.Data, nil
}
