package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/FranksOps/pulse/internal/api"
	"github.com/FranksOps/pulse/internal/config"
	"github.com/FranksOps/pulse/internal/fingerprint"
	"github.com/FranksOps/pulse/internal/ingest"
	"github.com/FranksOps/pulse/internal/orchestrator"
	"github.com/FranksOps/pulse/internal/report"
	"github.com/FranksOps/pulse/internal/runstore"
	"github.com/FranksOps/pulse/internal/runstore/jsonbackend"
	"github.com/FranksOps/pulse/internal/runstore/postgres"
	"github.com/FranksOps/pulse/internal/runstore/sqlite"
	"github.com/FranksOps/pulse/internal/search"
	"github.com/FranksOps/pulse/pkg/httpclient"
	"github.com/FranksOps/pulse/pkg/ratelimit"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found")
	}

	topic := flag.String("topic", "", "Topic to search and analyze")
	query := flag.String("query", "", "Raw query string (used when -topic is empty)")
	urls := flag.String("urls", "", "Comma-separated URLs to process directly, skipping search")
	serve := flag.Bool("serve", false, "Run the HTTP API server instead of a one-shot run")
	reportFormat := flag.String("report", "text", "One-shot report format: text, json, or html")
	noSentiment := flag.Bool("no-sentiment", false, "Skip the sentiment stage")
	verbose := flag.Bool("v", false, "Enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.FromEnv()
	if err != nil {
		logger.Error("load config", "err", err)
		os.Exit(1)
	}

	orch, err := buildOrchestrator(cfg, logger)
	if err != nil {
		logger.Error("build pipeline", "err", err)
		os.Exit(1)
	}

	store, err := openStore(cfg)
	if err != nil {
		logger.Error("open run store", "err", err)
		os.Exit(1)
	}
	if store != nil {
		defer store.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("received interrupt, shutting down")
		cancel()
	}()

	if *serve {
		runServer(ctx, cfg, orch, store, logger)
		return
	}

	if *topic == "" && *query == "" && *urls == "" {
		fmt.Fprintln(os.Stderr, "Usage: pulse -topic <topic> | -query <query> | -urls <url,url,...>")
		fmt.Fprintln(os.Stderr, "       pulse -serve")
		flag.PrintDefaults()
		os.Exit(1)
	}

	req := orchestrator.Request{
		Topic: *topic,
		Query: *query,
	}
	if *urls != "" {
		for _, u := range strings.Split(*urls, ",") {
			if u = strings.TrimSpace(u); u != "" {
				req.URLs = append(req.URLs, u)
			}
		}
	}
	if *noSentiment {
		off := false
		req.Options.RunSentiment = &off
	}

	resp := orch.Run(ctx, req)
	persistRun(ctx, store, resp, logger)

	summary := report.Generate(resp)
	switch *reportFormat {
	case "json":
		err = report.WriteJSON(os.Stdout, summary)
	case "html":
		err = report.WriteHTML(os.Stdout, summary)
	default:
		err = report.WriteText(os.Stdout, summary)
	}
	if err != nil {
		logger.Error("write report", "err", err)
	}

	if !resp.OK {
		logger.Error("run failed", "err", resp.Error)
		os.Exit(1)
	}
}

// buildOrchestrator wires the configured collaborators. Unset endpoints leave
// the matching capability nil; the pipeline degrades per-item instead of
// refusing to start.
func buildOrchestrator(cfg config.Config, logger *slog.Logger) (*orchestrator.Orchestrator, error) {
	client, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.RequestTimeout,
		MaxRedirects: 5,
		UserAgent:    cfg.UserAgent,
	})
	if err != nil {
		return nil, fmt.Errorf("create http client: %w", err)
	}

	// Video understanding can take minutes; it gets its own timeout.
	videoClient, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.VideoTimeout,
		MaxRedirects: 5,
		UserAgent:    cfg.UserAgent,
	})
	if err != nil {
		return nil, fmt.Errorf("create video http client: %w", err)
	}

	deps := orchestrator.Deps{Logger: logger}
	if cfg.SearchURL != "" {
		deps.Search = search.NewHTTPProvider(cfg.SearchURL, client, logger)
	}
	if cfg.VideoURL != "" {
		var limiter *ratelimit.Limiter
		if cfg.VideoRPS > 0 {
			limiter = ratelimit.NewLimiter(cfg.VideoRPS, 0.2)
		}
		deps.Video = ingest.NewHTTPVideoIngestor(cfg.VideoURL, videoClient, limiter, logger)
	}
	if cfg.DiscoverURL != "" {
		deps.Discover = ingest.NewHTTPDiscoverIngestor(cfg.DiscoverURL, client, logger)
	}
	if cfg.SentimentURL != "" {
		deps.Analyzer = ingest.NewHTTPSentimentAnalyzer(cfg.SentimentURL, client, logger)
	}
	if cfg.QueryBuilderURL != "" {
		deps.QueryBuilder = ingest.NewHTTPQueryBuilder(cfg.QueryBuilderURL, client)
	}

	profile, err := fingerprint.ParseProfile(cfg.TLSProfile)
	if err != nil {
		return nil, err
	}
	articleCfg := ingest.ArticleConfig{
		Timeout:       cfg.RequestTimeout,
		MaxRedirects:  5,
		MaxContentLen: cfg.MaxContentLen,
		Fingerprint:   profile,
	}
	if cfg.ArticleRPS > 0 {
		articleCfg.Limiter = ratelimit.NewLimiter(cfg.ArticleRPS, 0.2)
	}
	article, err := ingest.NewArticleExtractor(articleCfg)
	if err != nil {
		return nil, fmt.Errorf("create article extractor: %w", err)
	}
	deps.Article = article

	return orchestrator.New(deps)
}

func openStore(cfg config.Config) (runstore.Backend, error) {
	switch cfg.StoreDriver {
	case "":
		return nil, nil
	case "json":
		return jsonbackend.New(cfg.StoreDSN)
	case "sqlite":
		return sqlite.New(cfg.StoreDSN)
	case "postgres":
		return postgres.New(context.Background(), cfg.StoreDSN)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func persistRun(ctx context.Context, store runstore.Backend, resp orchestrator.Response, logger *slog.Logger) {
	if store == nil {
		return
	}

	rec := &runstore.RunRecord{
		ID:         resp.Meta.RunID,
		Topic:      resp.Meta.Topic,
		Status:     string(resp.Meta.Status),
		OK:         resp.OK,
		ItemCount:  len(resp.Data.Items),
		Error:      resp.Error,
		DurationMs: resp.Meta.ElapsedMs,
		CreatedAt:  time.Now().UTC(),
	}
	if len(resp.Data.Items) > 0 {
		if items, err := json.Marshal(resp.Data.Items); err == nil {
			rec.Items = items
		}
	}
	if resp.Data.Sentiment != nil {
		if sent, err := json.Marshal(resp.Data.Sentiment); err == nil {
			rec.Sentiment = sent
		}
	}

	if err := store.Save(ctx, rec); err != nil {
		logger.Error("persist run failed", "run_id", rec.ID, "err", err)
	}
}

func runServer(ctx context.Context, cfg config.Config, orch *orchestrator.Orchestrator, store runstore.Backend, logger *slog.Logger) {
	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: api.NewServer(orch, store, logger).Router(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", "addr", cfg.ListenAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}
