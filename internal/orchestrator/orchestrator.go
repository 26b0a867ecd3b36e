// Package orchestrator runs the full aggregation pipeline: topic resolution,
// source collection, classified fan-out ingestion, and sentiment, sequenced
// by a static DAG.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/FranksOps/pulse/internal/aggregate"
	"github.com/FranksOps/pulse/internal/dag"
	"github.com/FranksOps/pulse/internal/fanout"
	"github.com/FranksOps/pulse/internal/ingest"
	"github.com/FranksOps/pulse/internal/metrics"
	"github.com/FranksOps/pulse/internal/retry"
	"github.com/FranksOps/pulse/internal/search"
	"github.com/FranksOps/pulse/internal/source"
	"github.com/FranksOps/pulse/internal/topic"
)

// Node ids of the fixed topology.
const (
	NodeQueryBuild      = "QueryBuild"
	NodeCollect         = "Collect"
	NodeExtractText     = "ExtractText"
	NodeUnderstandVideo = "UnderstandVideo"
	NodeDiscoverExpand  = "DiscoverExpand"
	NodeSentiment       = "Sentiment"
)

const (
	component = "orchestrator"
	version   = "1.1.1"

	// ValidationMsg is the fatal response when nothing can produce a batch.
	ValidationMsg = "Provide either topic/query or urls, or pass query_params for query builder."

	// DefaultVideoPrompt is forwarded to the video adapter unless overridden.
	DefaultVideoPrompt = "Summarize key points, locations, dates, figures, and caveats in bullet points. Highlight the positives and negatives."
)

// Options are the per-run knobs. Zero numeric fields fall back to defaults.
type Options struct {
	TopDiscover      int      `json:"top_discover,omitempty"`
	WebMaxResults    int      `json:"web_max_results,omitempty"`
	AllowDomains     []string `json:"allow_domains,omitempty"`
	BlockDomains     []string `json:"block_domains,omitempty"`
	MaxWorkers       int      `json:"max_workers,omitempty"`
	VideoPrompt      string   `json:"video_prompt,omitempty"`
	ReturnTranscript bool     `json:"return_transcript,omitempty"`
	RetryAttempts    int      `json:"retry_attempts,omitempty"`
	BackoffBase      float64  `json:"backoff_base,omitempty"`
	BackoffJitter    float64  `json:"backoff_jitter,omitempty"`
	// RunSentiment defaults to true when unset.
	RunSentiment *bool `json:"run_sentiment,omitempty"`
}

// DefaultOptions mirrors the historical defaults.
func DefaultOptions() Options {
	return Options{
		TopDiscover:   10,
		WebMaxResults: 10,
		MaxWorkers:    4,
		VideoPrompt:   DefaultVideoPrompt,
		RetryAttempts: 3,
		BackoffBase:   1.8,
		BackoffJitter: 0.25,
		RunSentiment:  boolPtr(true),
	}
}

func boolPtr(b bool) *bool { return &b }

func (o Options) normalized() Options {
	d := DefaultOptions()
	if o.TopDiscover <= 0 {
		o.TopDiscover = d.TopDiscover
	}
	if o.WebMaxResults <= 0 {
		o.WebMaxResults = d.WebMaxResults
	}
	if o.MaxWorkers <= 0 {
		o.MaxWorkers = d.MaxWorkers
	}
	if o.VideoPrompt == "" {
		o.VideoPrompt = d.VideoPrompt
	}
	if o.RetryAttempts <= 0 {
		o.RetryAttempts = d.RetryAttempts
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = d.BackoffBase
	}
	if o.BackoffJitter < 0 {
		o.BackoffJitter = d.BackoffJitter
	}
	if o.RunSentiment == nil {
		o.RunSentiment = d.RunSentiment
	}
	return o
}

// Request is one orchestration request.
type Request struct {
	Topic       string         `json:"topic,omitempty"`
	Query       string         `json:"query,omitempty"`
	URLs        []string       `json:"urls,omitempty"`
	QueryParams map[string]any `json:"query_params,omitempty"`
	Options     Options        `json:"options,omitempty"`
}

// Data is the success payload.
type Data struct {
	Items     []source.UnifiedItem    `json:"items"`
	Sentiment *source.IngestionResult `json:"sentiment,omitempty"`
}

// Meta describes how a run went.
type Meta struct {
	Component      string     `json:"component"`
	Version        string     `json:"version"`
	RunID          string     `json:"run_id"`
	Topic          string     `json:"topic,omitempty"`
	QueryBuilder   topic.Meta `json:"query_builder"`
	Status         dag.Status `json:"status,omitempty"`
	ExecutionOrder []string   `json:"execution_order,omitempty"`
	ElapsedMs      int64      `json:"elapsed_ms"`
}

// Response is the single envelope the orchestrator returns. Item-level
// failures never make OK false; only entry validation and collaborator
// failures that leave no batch to process do.
type Response struct {
	OK    bool   `json:"ok"`
	Data  Data   `json:"data"`
	Meta  Meta   `json:"meta"`
	Error string `json:"error,omitempty"`
}

// Deps are the collaborators. QueryBuilder, Article, and Analyzer may be nil.
type Deps struct {
	QueryBuilder topic.Builder
	Search       search.Provider
	Video        ingest.VideoIngestor
	Discover     ingest.DiscoverIngestor
	Article      ingest.ArticleIngestor
	Analyzer     ingest.SentimentAnalyzer
	Logger       *slog.Logger
}

// Orchestrator owns the static pipeline graph. One instance serves many
// concurrent runs; per-run state travels through the graph seed.
type Orchestrator struct {
	resolver  *topic.Resolver
	collector *search.Collector
	deps      Deps
	graph     *dag.Graph
	logger    *slog.Logger
}

// runState carries one run's request, normalized options and executor.
type runState struct {
	req      Request
	opts     Options
	executor *fanout.Executor
}

const seedKey = "run"

// New builds the orchestrator and its fixed graph. The topology is declared
// once here; a cycle or bad edge is a programming error surfaced at startup.
func New(deps Deps) (*Orchestrator, error) {
	if deps.Search == nil && deps.Video == nil && deps.Discover == nil {
		return nil, fmt.Errorf("no collaborators configured")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	o := &Orchestrator{
		resolver:  topic.NewResolver(deps.QueryBuilder),
		collector: search.NewCollector(deps.Search),
		deps:      deps,
		logger:    logger,
	}

	graph, err := dag.NewBuilder().
		Node(NodeQueryBuild, o.queryBuild).
		Node(NodeCollect, o.collect).
		Node(NodeExtractText, o.extractText).
		Node(NodeUnderstandVideo, o.understandVideo).
		Node(NodeDiscoverExpand, o.discoverExpand).
		Node(NodeSentiment, o.sentiment).
		Edge(NodeQueryBuild, NodeCollect).
		Edge(NodeCollect, NodeExtractText).
		Edge(NodeCollect, NodeUnderstandVideo).
		Edge(NodeCollect, NodeDiscoverExpand).
		Edge(NodeDiscoverExpand, NodeUnderstandVideo).
		Edge(NodeUnderstandVideo, NodeSentiment).
		Edge(NodeExtractText, NodeSentiment).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build pipeline graph: %w", err)
	}
	o.graph = graph
	return o, nil
}

// Run executes one orchestration.
func (o *Orchestrator) Run(ctx context.Context, req Request) Response {
	start := time.Now()
	opts := req.Options.normalized()

	rs := &runState{
		req:  req,
		opts: opts,
		executor: fanout.NewExecutor(fanout.Config{
			MaxWorkers:       opts.MaxWorkers,
			TopDiscover:      opts.TopDiscover,
			VideoPrompt:      opts.VideoPrompt,
			ReturnTranscript: opts.ReturnTranscript,
			Retry: retry.Policy{
				MaxAttempts: opts.RetryAttempts,
				BackoffBase: opts.BackoffBase,
				JitterMax:   opts.BackoffJitter,
			},
		}, fanout.Adapters{Video: o.deps.Video, Discover: o.deps.Discover}, o.logger),
	}

	result := o.graph.Run(ctx, map[string]any{seedKey: rs})
	elapsed := time.Since(start)
	metrics.RecordRun(string(result.Status), elapsed)

	meta := Meta{
		Component:      component,
		Version:        version,
		RunID:          uuid.New().String(),
		Status:         result.Status,
		ExecutionOrder: result.ExecutionOrder,
		ElapsedMs:      elapsed.Milliseconds(),
	}
	if res, ok := result.Results[NodeQueryBuild]; ok {
		if r, ok := res.Output.(topic.Resolution); ok {
			meta.Topic = r.Topic
			meta.QueryBuilder = r.Meta
		}
	}

	if result.Status != dag.StatusCompleted {
		errMsg := firstError(result)
		o.logger.Error("run failed", "run_id", meta.RunID, "err", errMsg)
		return Response{OK: false, Meta: meta, Error: errMsg}
	}

	data, _ := result.Results[NodeSentiment].Output.(Data)
	o.logger.Info("run completed",
		"run_id", meta.RunID, "topic", meta.Topic,
		"items", len(data.Items), "elapsed", elapsed)
	return Response{OK: true, Data: data, Meta: meta}
}

// Order exposes the static topological order, mainly for observability.
func (o *Orchestrator) Order() []string {
	return o.graph.Order()
}

func firstError(result dag.ExecutionResult) string {
	for _, id := range result.ExecutionOrder {
		if out := result.Results[id]; out.Error != "" {
			return out.Error
		}
	}
	return "pipeline failed"
}

func stateFrom(in dag.Inputs) *runState {
	return in[seedKey].(*runState)
}

// queryBuild resolves the effective topic. Missing everything is the one
// fatal validation error of the pipeline.
func (o *Orchestrator) queryBuild(ctx context.Context, in dag.Inputs) (any, error) {
	rs := stateFrom(in)
	res := o.resolver.Resolve(ctx, rs.req.Topic, rs.req.Query, rs.req.QueryParams)
	if res.Meta.BuilderError != "" {
		o.logger.Warn("query builder failed, falling through", "err", res.Meta.BuilderError)
	}
	if res.Topic == "" && len(rs.req.URLs) == 0 {
		return nil, fmt.Errorf("%s", ValidationMsg)
	}
	return res, nil
}

// collect gathers, classifies, filters, and de-duplicates the batch.
func (o *Orchestrator) collect(ctx context.Context, in dag.Inputs) (any, error) {
	rs := stateFrom(in)
	resolution := in[NodeQueryBuild].(topic.Resolution)

	items, err := o.collector.Collect(ctx, resolution.Topic, rs.req.URLs, search.Options{
		MaxResults:   rs.opts.WebMaxResults,
		AllowDomains: rs.opts.AllowDomains,
		BlockDomains: rs.opts.BlockDomains,
	})
	if err != nil {
		return nil, fmt.Errorf("websearch failed: %w", err)
	}
	o.logger.Debug("batch collected", "topic", resolution.Topic, "items", len(items))
	return items, nil
}

// discoverExpand resolves discover pages into their sub-URL lists.
func (o *Orchestrator) discoverExpand(ctx context.Context, in dag.Inputs) (any, error) {
	rs := stateFrom(in)
	items := in[NodeCollect].([]source.Item)
	return rs.executor.ExpandDiscover(ctx, items), nil
}

// understandVideo fans the batch out to the video adapter, consuming the
// discover expansion.
func (o *Orchestrator) understandVideo(ctx context.Context, in dag.Inputs) (any, error) {
	rs := stateFrom(in)
	items := in[NodeCollect].([]source.Item)
	bundles := in[NodeDiscoverExpand].(map[int]source.DiscoverBundle)
	return rs.executor.Dispatch(ctx, items, bundles), nil
}

// extractText fetches readable text for article items the search step left
// without content. Failures stay item-local.
func (o *Orchestrator) extractText(ctx context.Context, in dag.Inputs) (any, error) {
	rs := stateFrom(in)
	items := in[NodeCollect].([]source.Item)

	texts := make(map[int]source.IngestionResult)
	if o.deps.Article == nil {
		return texts, nil
	}

	var (
		g, gctx = errgroup.WithContext(ctx)
		results = make([]source.IngestionResult, len(items))
		wanted  []int
	)
	g.SetLimit(rs.opts.MaxWorkers)
	for i, it := range items {
		if it.Kind != source.KindArticle || it.Skipped != "" || it.Content != "" {
			continue
		}
		i, url := i, it.URL
		wanted = append(wanted, i)
		g.Go(func() error {
			results[i] = o.deps.Article.IngestArticle(gctx, url)
			return nil
		})
	}
	_ = g.Wait()

	for _, i := range wanted {
		texts[i] = results[i]
	}
	return texts, nil
}

// sentiment merges both branches into the final payload and, when enabled
// and configured, calls the sentiment analyzer.
func (o *Orchestrator) sentiment(ctx context.Context, in dag.Inputs) (any, error) {
	rs := stateFrom(in)
	dispatched := in[NodeUnderstandVideo].([]source.UnifiedItem)
	articleTexts := in[NodeExtractText].(map[int]source.IngestionResult)

	// Upstream outputs are read-only; work on a copy before merging.
	items := make([]source.UnifiedItem, len(dispatched))
	copy(items, dispatched)
	for i, res := range articleTexts {
		if i < 0 || i >= len(items) || !res.OK {
			continue
		}
		if items[i].Content == "" {
			items[i].Content = res.Text("content")
		}
		if items[i].Title == "" {
			items[i].Title = res.Text("title")
		}
	}

	data := Data{Items: items}
	if !*rs.opts.RunSentiment {
		return data, nil
	}
	if o.deps.Analyzer == nil {
		data.Sentiment = &source.IngestionResult{OK: false, Error: "sentiment analyzer not available"}
		return data, nil
	}

	texts, sources := aggregate.ExtractTexts(items)
	res := o.deps.Analyzer.Analyze(ctx, texts, sources)
	data.Sentiment = &res
	return data, nil
}
