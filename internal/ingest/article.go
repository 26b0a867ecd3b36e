package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/FranksOps/pulse/internal/fingerprint"
	"github.com/FranksOps/pulse/internal/source"
	"github.com/FranksOps/pulse/pkg/httpclient"
	"github.com/FranksOps/pulse/pkg/ratelimit"
	"github.com/FranksOps/pulse/pkg/useragent"
)

// ArticleConfig configures the article extractor.
type ArticleConfig struct {
	Timeout      time.Duration
	MaxRedirects int
	Fingerprint  fingerprint.Profile
	UAPool       *useragent.Pool
	Limiter      *ratelimit.Limiter
	// MaxContentLen truncates extracted text (0 = default 20000 runes).
	MaxContentLen int
}

// ArticleExtractor fetches article pages and extracts readable text. It sits
// behind the same result-value contract as the other ingestors: fetch or
// parse failures come back as failed results, never as panics.
type ArticleExtractor struct {
	cfg    ArticleConfig
	client *httpclient.Client
}

// NewArticleExtractor builds the extractor. A browser TLS fingerprint is used
// by default since article hosts are the most likely to challenge plain Go
// clients.
func NewArticleExtractor(cfg ArticleConfig) (*ArticleExtractor, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.UAPool == nil {
		cfg.UAPool = useragent.NewPool(nil)
	}
	if string(cfg.Fingerprint) == "" {
		cfg.Fingerprint = fingerprint.ProfileChrome
	}
	if cfg.MaxContentLen <= 0 {
		cfg.MaxContentLen = 20000
	}

	transport, err := fingerprint.Transport(cfg.Fingerprint)
	if err != nil {
		return nil, fmt.Errorf("setup transport: %w", err)
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: cfg.MaxRedirects,
		Transport:    transport,
	})
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	return &ArticleExtractor{cfg: cfg, client: client}, nil
}

func (a *ArticleExtractor) IngestArticle(ctx context.Context, url string) source.IngestionResult {
	if a.cfg.Limiter != nil {
		if err := a.cfg.Limiter.Wait(ctx); err != nil {
			return source.IngestionResult{URL: url, OK: false, Error: fmt.Sprintf("rate limiter: %v", err)}
		}
	}

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return source.IngestionResult{URL: url, OK: false, Error: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("User-Agent", a.cfg.UAPool.GetSequential())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := a.client.Do(ctx, req)
	if err != nil {
		return source.IngestionResult{URL: url, OK: false, Error: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return source.IngestionResult{URL: url, OK: false, Error: fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return source.IngestionResult{URL: url, OK: false, Error: fmt.Sprintf("read body: %v", err)}
	}

	title, content, err := extractReadable(body)
	if err != nil {
		return source.IngestionResult{URL: url, OK: false, Error: fmt.Sprintf("parse html: %v", err)}
	}
	if runes := []rune(content); len(runes) > a.cfg.MaxContentLen {
		content = string(runes[:a.cfg.MaxContentLen])
	}

	data := map[string]any{"content": content}
	if title != "" {
		data["title"] = title
	}
	return source.IngestionResult{URL: url, OK: true, Data: data}
}

// extractReadable pulls the page title and visible paragraph text, skipping
// script/style/nav chrome.
func extractReadable(body []byte) (title, content string, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return "", "", err
	}

	title = strings.TrimSpace(doc.Find("title").First().Text())

	doc.Find("script, style, noscript, nav, header, footer, aside").Remove()

	var parts []string
	doc.Find("article p, main p, p").Each(func(i int, s *goquery.Selection) {
		t := strings.TrimSpace(s.Text())
		if t != "" {
			parts = append(parts, t)
		}
	})
	if len(parts) == 0 {
		// No paragraph structure; fall back to the whole body text.
		t := strings.Join(strings.Fields(doc.Find("body").Text()), " ")
		return title, t, nil
	}

	// p selectors can match the same node twice (article p and p); dedupe
	// consecutive repeats while preserving order.
	seen := make(map[string]struct{}, len(parts))
	var out []string
	for _, p := range parts {
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return title, strings.Join(out, "\n\n"), nil
}
