package search

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/FranksOps/pulse/internal/ingest"
	"github.com/FranksOps/pulse/internal/metrics"
	"github.com/FranksOps/pulse/internal/source"
	"github.com/FranksOps/pulse/pkg/httpclient"
)

// HTTPProvider calls a web-search endpoint. A circuit breaker sits in front
// so a flapping provider fails fast instead of stalling every run on
// timeouts.
type HTTPProvider struct {
	endpoint string
	client   *httpclient.Client
	breaker  *gobreaker.CircuitBreaker
	logger   *slog.Logger
}

// NewHTTPProvider creates a search provider for the given endpoint.
func NewHTTPProvider(endpoint string, client *httpclient.Client, logger *slog.Logger) *HTTPProvider {
	if logger == nil {
		logger = slog.Default()
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "websearch",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("search breaker state change", "from", from.String(), "to", to.String())
		},
	})
	return &HTTPProvider{endpoint: endpoint, client: client, breaker: cb, logger: logger}
}

func (p *HTTPProvider) Search(ctx context.Context, topic string, maxResults int, allowDomains, blockDomains []string) (source.IngestionResult, error) {
	payload := map[string]any{
		"topic":       topic,
		"max_results": maxResults,
	}
	if len(allowDomains) > 0 {
		payload["allow_domains"] = allowDomains
	}
	if len(blockDomains) > 0 {
		payload["block_domains"] = blockDomains
	}

	out, err := p.breaker.Execute(func() (any, error) {
		var env ingest.Envelope
		if err := p.client.PostJSON(ctx, p.endpoint, payload, &env); err != nil {
			return nil, err
		}
		return env, nil
	})
	if err != nil {
		metrics.RecordSearch(false)
		p.logger.Warn("search call failed", "topic", topic, "err", err)
		return source.IngestionResult{}, err
	}

	env := out.(ingest.Envelope)
	metrics.RecordSearch(env.OK)
	return env.ToResult(""), nil
}
