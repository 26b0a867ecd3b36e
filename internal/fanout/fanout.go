// Package fanout dispatches classified source items to their per-kind
// ingestion adapters across a bounded worker pool.
package fanout

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/FranksOps/pulse/internal/ingest"
	"github.com/FranksOps/pulse/internal/metrics"
	"github.com/FranksOps/pulse/internal/retry"
	"github.com/FranksOps/pulse/internal/source"
)

// Adapters holds the per-kind ingestion capabilities.
type Adapters struct {
	Video    ingest.VideoIngestor
	Discover ingest.DiscoverIngestor
}

// Config tunes one executor.
type Config struct {
	// MaxWorkers bounds concurrent ingestion calls (default 4).
	MaxWorkers int
	// TopDiscover caps how many sub-items a discover page expands into.
	TopDiscover int
	// VideoPrompt is forwarded verbatim to the video adapter.
	VideoPrompt string
	// ReturnTranscript asks the video adapter to include transcripts.
	ReturnTranscript bool
	// Retry wraps every adapter call.
	Retry retry.Policy
}

// Executor fans ingestion work out over a bounded pool. Each task writes only
// its own result slot, so the output order always matches the input order no
// matter which worker finishes first, and one failed task never cancels its
// siblings — failures are recorded in place as failed results.
type Executor struct {
	cfg      Config
	adapters Adapters
	logger   *slog.Logger
}

// NewExecutor creates an Executor.
func NewExecutor(cfg Config, adapters Adapters, logger *slog.Logger) *Executor {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 4
	}
	if cfg.TopDiscover <= 0 {
		cfg.TopDiscover = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{cfg: cfg, adapters: adapters, logger: logger}
}

// ExpandDiscover resolves every tiktok_discover item into its sub-URL list.
// Discover pages are expanded sequentially relative to each other; their
// sub-items are ingested later, together with the regular video items. The
// returned map is keyed by the item's position in the batch.
func (e *Executor) ExpandDiscover(ctx context.Context, items []source.Item) map[int]source.DiscoverBundle {
	bundles := make(map[int]source.DiscoverBundle)
	for i, it := range items {
		if it.Kind != source.KindTikTokDiscover || it.Skipped != "" {
			continue
		}
		start := time.Now()
		res := e.withRetry(ctx, it.Kind, func(ctx context.Context) source.IngestionResult {
			return e.adapters.Discover.Discover(ctx, it.URL, e.cfg.TopDiscover)
		})
		metrics.RecordIngest(it.Kind, res, time.Since(start))

		bundle := source.DiscoverBundle{ParentURL: it.URL, Result: res}
		if res.OK {
			bundle.SubURLs = ingest.SubURLs(res)
			e.logger.Debug("discover expanded", "url", it.URL, "sub_items", len(bundle.SubURLs))
		} else {
			e.logger.Warn("discover failed", "url", it.URL, "err", res.Error)
		}
		bundles[i] = bundle
	}
	return bundles
}

// Dispatch produces one UnifiedItem per input item. Discover items consume
// their pre-expanded bundle and fan sub-URLs across the pool; video items go
// to the video adapter; articles pass through untouched with a note; skipped
// items are never dispatched.
func (e *Executor) Dispatch(ctx context.Context, items []source.Item, bundles map[int]source.DiscoverBundle) []source.UnifiedItem {
	out := make([]source.UnifiedItem, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MaxWorkers)

	for i, it := range items {
		out[i] = source.UnifiedItem{
			URL:     it.URL,
			Kind:    it.Kind,
			Title:   it.Title,
			Source:  it.Source,
			Content: it.Content,
			Meta:    it.Meta,
			Skipped: it.Skipped,
		}
		if it.Skipped != "" {
			continue
		}

		switch {
		case it.Kind == source.KindTikTokDiscover:
			bundle, ok := bundles[i]
			if !ok {
				bundle = source.DiscoverBundle{
					ParentURL: it.URL,
					Result:    source.IngestionResult{URL: it.URL, OK: false, Error: "discover not expanded"},
				}
			}
			res := bundle.Result
			out[i].Discover = &res
			if !res.OK {
				out[i].Note = "discover failed"
				out[i].Videos = []source.VideoResult{}
				continue
			}
			videos := make([]source.VideoResult, len(bundle.SubURLs))
			out[i].Videos = videos
			for j, subURL := range bundle.SubURLs {
				j, subURL := j, subURL
				g.Go(func() error {
					videos[j] = source.VideoResult{URL: subURL, Video: e.ingestVideo(gctx, source.KindTikTokVideo, subURL)}
					return nil
				})
			}

		case it.Kind.IsVideo():
			i, url, kind := i, it.URL, it.Kind
			g.Go(func() error {
				res := e.ingestVideo(gctx, kind, url)
				out[i].Video = &res
				return nil
			})

		default:
			out[i].Note = "no video ingestion"
		}
	}

	// Workers never return errors; failures live in the result slots.
	_ = g.Wait()
	return out
}

// DispatchAll expands discover items and dispatches the whole batch.
func (e *Executor) DispatchAll(ctx context.Context, items []source.Item) []source.UnifiedItem {
	return e.Dispatch(ctx, items, e.ExpandDiscover(ctx, items))
}

func (e *Executor) ingestVideo(ctx context.Context, kind source.Kind, url string) source.IngestionResult {
	start := time.Now()
	res := e.withRetry(ctx, kind, func(ctx context.Context) source.IngestionResult {
		return e.adapters.Video.IngestVideo(ctx, url, e.cfg.VideoPrompt, e.cfg.ReturnTranscript)
	})
	metrics.RecordIngest(kind, res, time.Since(start))
	if !res.OK {
		e.logger.Warn("video ingestion failed", "kind", kind, "url", url, "err", res.Error)
	}
	return res
}

func (e *Executor) withRetry(ctx context.Context, kind source.Kind, call func(context.Context) source.IngestionResult) source.IngestionResult {
	attempts := 0
	res := retry.Do(ctx, e.cfg.Retry, func(ctx context.Context) source.IngestionResult {
		attempts++
		return call(ctx)
	})
	if attempts > 1 {
		metrics.IngestRetriesTotal.WithLabelValues(string(kind)).Add(float64(attempts - 1))
	}
	return res
}
