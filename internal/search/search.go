// Package search discovers candidate URLs for a topic and normalizes them
// into source items ready for classification and dispatch.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/FranksOps/pulse/internal/source"
)

// ErrUnavailable wraps any search-provider failure. The orchestrator treats
// it as fatal only when the caller supplied no direct URLs.
var ErrUnavailable = errors.New("search unavailable")

// Provider abstracts the external web-search collaborator.
type Provider interface {
	Search(ctx context.Context, topic string, maxResults int, allowDomains, blockDomains []string) (source.IngestionResult, error)
}

// listKeys are the payload keys providers are known to return results under,
// in priority order.
var listKeys = []string{"items", "sources", "results", "urls"}

// Options configures one collection pass.
type Options struct {
	MaxResults   int
	AllowDomains []string
	BlockDomains []string
}

// Collector gathers source items either from direct URLs or from the search
// provider, applies domain filters, and de-duplicates by URL.
type Collector struct {
	provider Provider
}

// NewCollector creates a Collector. provider may be nil when callers only
// ever pass direct URLs.
func NewCollector(provider Provider) *Collector {
	return &Collector{provider: provider}
}

// Collect returns the ordered, de-duplicated, classified batch for a run.
// Direct URLs take precedence over search. Domain-filtered items remain in
// the batch with a skipped marker so the caller can observe them.
func (c *Collector) Collect(ctx context.Context, topic string, urls []string, opts Options) ([]source.Item, error) {
	var items []source.Item
	if len(urls) > 0 {
		for _, u := range urls {
			if u == "" {
				continue
			}
			items = append(items, source.Item{URL: u})
		}
	} else {
		if c.provider == nil {
			return nil, fmt.Errorf("%w: no provider configured", ErrUnavailable)
		}
		res, err := c.provider.Search(ctx, topic, opts.MaxResults, opts.AllowDomains, opts.BlockDomains)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if !res.OK {
			msg := res.Error
			if msg == "" {
				msg = "unknown"
			}
			return nil, fmt.Errorf("%w: %s", ErrUnavailable, msg)
		}
		items = normalize(res.Data)
	}

	items = dedupe(items)
	for i := range items {
		items[i].Kind = source.Classify(items[i].URL)
		if skip := domainFilter(items[i].URL, opts.AllowDomains, opts.BlockDomains); skip != "" {
			items[i].Skipped = skip
		}
	}
	return items, nil
}

// normalize extracts source items from whichever known list key the provider
// used. Records may be bare URL strings or maps with loosely named fields.
func normalize(data map[string]any) []source.Item {
	var items []source.Item
	for _, key := range listKeys {
		arr, ok := data[key].([]any)
		if !ok || len(arr) == 0 {
			continue
		}
		for _, rec := range arr {
			switch v := rec.(type) {
			case string:
				if v != "" {
					items = append(items, source.Item{URL: v})
				}
			case map[string]any:
				if it, ok := normalizeRecord(v); ok {
					items = append(items, it)
				}
			}
		}
		break
	}
	return items
}

var (
	urlKeys     = []string{"url", "link", "href"}
	contentKeys = []string{"content", "text", "summary"}
)

func normalizeRecord(rec map[string]any) (source.Item, bool) {
	it := source.Item{}
	for _, k := range urlKeys {
		if s, ok := rec[k].(string); ok && s != "" {
			it.URL = s
			break
		}
	}
	if it.URL == "" {
		return source.Item{}, false
	}
	for _, k := range contentKeys {
		if s, ok := rec[k].(string); ok && s != "" {
			it.Content = s
			break
		}
	}
	it.Title, _ = rec["title"].(string)
	it.Source, _ = rec["source"].(string)

	consumed := map[string]struct{}{"title": {}, "source": {}}
	for _, k := range urlKeys {
		consumed[k] = struct{}{}
	}
	for _, k := range contentKeys {
		consumed[k] = struct{}{}
	}
	for k, v := range rec {
		if _, ok := consumed[k]; ok {
			continue
		}
		if it.Meta == nil {
			it.Meta = map[string]any{}
		}
		it.Meta[k] = v
	}
	return it, true
}

// dedupe drops repeated URLs, keeping the first occurrence in place.
func dedupe(items []source.Item) []source.Item {
	seen := make(map[string]struct{}, len(items))
	out := items[:0]
	for _, it := range items {
		if _, dup := seen[it.URL]; dup {
			continue
		}
		seen[it.URL] = struct{}{}
		out = append(out, it)
	}
	return out
}

// domainFilter returns a skip reason when the URL fails the allow/block
// lists. Matching is simple substring containment, as the providers hint
// domains rather than exact hosts.
func domainFilter(url string, allow, block []string) string {
	for _, b := range block {
		if b != "" && strings.Contains(url, b) {
			return "domain filtered"
		}
	}
	if len(allow) > 0 {
		for _, a := range allow {
			if a != "" && strings.Contains(url, a) {
				return ""
			}
		}
		return "domain filtered"
	}
	return ""
}
