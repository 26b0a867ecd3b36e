package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FranksOps/pulse/internal/dag"
	"github.com/FranksOps/pulse/internal/source"
)

type fakeSearch struct {
	res    source.IngestionResult
	err    error
	called bool
	topic  string
}

func (f *fakeSearch) Search(_ context.Context, topic string, _ int, _, _ []string) (source.IngestionResult, error) {
	f.called = true
	f.topic = topic
	return f.res, f.err
}

type fakeVideo struct {
	mu    sync.Mutex
	urls  []string
	byURL map[string]source.IngestionResult
}

func (f *fakeVideo) IngestVideo(_ context.Context, url, _ string, _ bool) source.IngestionResult {
	f.mu.Lock()
	f.urls = append(f.urls, url)
	f.mu.Unlock()
	if res, ok := f.byURL[url]; ok {
		return res
	}
	return source.IngestionResult{URL: url, OK: true, Data: map[string]any{"analysis": "summary of " + url}}
}

type fakeDiscover struct {
	subURLs []string
	fail    bool
}

func (f *fakeDiscover) Discover(_ context.Context, url string, limit int) source.IngestionResult {
	if f.fail {
		return source.IngestionResult{URL: url, OK: false, Error: "discover backend down"}
	}
	n := len(f.subURLs)
	if limit < n {
		n = limit
	}
	items := make([]any, 0, n)
	for _, u := range f.subURLs[:n] {
		items = append(items, map[string]any{"url": u})
	}
	return source.IngestionResult{URL: url, OK: true, Data: map[string]any{"items": items}}
}

type fakeArticle struct {
	mu   sync.Mutex
	urls []string
}

func (f *fakeArticle) IngestArticle(_ context.Context, url string) source.IngestionResult {
	f.mu.Lock()
	f.urls = append(f.urls, url)
	f.mu.Unlock()
	return source.IngestionResult{URL: url, OK: true, Data: map[string]any{
		"content": "fetched body for " + url,
		"title":   "Fetched title",
	}}
}

type fakeAnalyzer struct {
	texts   []string
	sources []source.SourceRef
}

func (f *fakeAnalyzer) Analyze(_ context.Context, texts []string, sources []source.SourceRef) source.IngestionResult {
	f.texts = texts
	f.sources = sources
	return source.IngestionResult{OK: true, Data: map[string]any{"overall": "positive"}}
}

type fakeBuilder struct {
	out any
	err error
}

func (f *fakeBuilder) BuildQuery(context.Context, map[string]any) (any, error) {
	return f.out, f.err
}

func searchPayload(items ...any) source.IngestionResult {
	return source.IngestionResult{OK: true, Data: map[string]any{"items": items}}
}

func TestRunFullPipeline(t *testing.T) {
	provider := &fakeSearch{res: searchPayload(
		map[string]any{"url": "https://news.example.com/a", "title": "Article A", "content": "resale prices rose"},
		map[string]any{"url": "https://www.youtube.com/watch?v=abc", "title": "Video"},
		map[string]any{"url": "https://www.tiktok.com/discover/hdb-resale"},
	)}
	video := &fakeVideo{}
	discover := &fakeDiscover{subURLs: []string{
		"https://www.tiktok.com/@u/video/1",
		"https://www.tiktok.com/@u/video/2",
	}}
	analyzer := &fakeAnalyzer{}

	o, err := New(Deps{Search: provider, Video: video, Discover: discover, Analyzer: analyzer})
	require.NoError(t, err)

	resp := o.Run(context.Background(), Request{Topic: "hdb resale prices"})

	require.True(t, resp.OK, "item-level work never fails the run: %s", resp.Error)
	assert.Equal(t, dag.StatusCompleted, resp.Meta.Status)
	assert.Equal(t, "hdb resale prices", resp.Meta.Topic)
	assert.Equal(t, "hdb resale prices", provider.topic)
	assert.NotEmpty(t, resp.Meta.RunID)
	assert.Len(t, resp.Meta.ExecutionOrder, 6)

	require.Len(t, resp.Data.Items, 3, "output preserves the collected batch order")
	assert.Equal(t, source.KindArticle, resp.Data.Items[0].Kind)
	assert.Equal(t, "resale prices rose", resp.Data.Items[0].Content)

	yt := resp.Data.Items[1]
	assert.Equal(t, source.KindYouTubeVideo, yt.Kind)
	require.NotNil(t, yt.Video)
	assert.True(t, yt.Video.OK)

	disc := resp.Data.Items[2]
	assert.Equal(t, source.KindTikTokDiscover, disc.Kind)
	require.Len(t, disc.Videos, 2)
	assert.Equal(t, "https://www.tiktok.com/@u/video/1", disc.Videos[0].URL)

	require.NotNil(t, resp.Data.Sentiment)
	assert.True(t, resp.Data.Sentiment.OK)
	assert.Len(t, analyzer.sources, 3, "one source ref per item")
	assert.NotEmpty(t, analyzer.texts)
}

func TestRunValidationFailsWithoutInputs(t *testing.T) {
	o, err := New(Deps{Search: &fakeSearch{}, Video: &fakeVideo{}, Discover: &fakeDiscover{}})
	require.NoError(t, err)

	resp := o.Run(context.Background(), Request{})

	assert.False(t, resp.OK)
	assert.Equal(t, ValidationMsg, resp.Error)
	assert.Equal(t, dag.StatusFailed, resp.Meta.Status)
	assert.Empty(t, resp.Data.Items)
}

func TestRunDirectURLsSkipSearch(t *testing.T) {
	provider := &fakeSearch{err: errors.New("should not be called")}
	o, err := New(Deps{Search: provider, Video: &fakeVideo{}, Discover: &fakeDiscover{},
		Analyzer: &fakeAnalyzer{}})
	require.NoError(t, err)

	resp := o.Run(context.Background(), Request{URLs: []string{
		"https://youtu.be/xyz",
		"https://example.com/post",
	}})

	require.True(t, resp.OK, resp.Error)
	assert.False(t, provider.called, "direct URLs bypass the search provider")
	require.Len(t, resp.Data.Items, 2)
	assert.Equal(t, source.KindYouTubeVideo, resp.Data.Items[0].Kind)
	assert.Equal(t, source.KindArticle, resp.Data.Items[1].Kind)
	assert.Equal(t, "no video ingestion", resp.Data.Items[1].Note)
}

func TestRunSearchFailureIsFatalWithoutURLs(t *testing.T) {
	provider := &fakeSearch{err: errors.New("connect refused")}
	o, err := New(Deps{Search: provider, Video: &fakeVideo{}, Discover: &fakeDiscover{}})
	require.NoError(t, err)

	resp := o.Run(context.Background(), Request{Topic: "anything"})

	assert.False(t, resp.OK)
	assert.Contains(t, resp.Error, "websearch failed")
	assert.Equal(t, dag.StatusFailed, resp.Meta.Status)
}

func TestRunVideoFailureStaysItemLocal(t *testing.T) {
	video := &fakeVideo{byURL: map[string]source.IngestionResult{
		"https://youtu.be/bad": {URL: "https://youtu.be/bad", OK: false, Error: "Timeout"},
	}}
	o, err := New(Deps{Search: &fakeSearch{}, Video: video, Discover: &fakeDiscover{},
		Analyzer: &fakeAnalyzer{}})
	require.NoError(t, err)

	resp := o.Run(context.Background(), Request{
		URLs:    []string{"https://youtu.be/bad", "https://youtu.be/good"},
		Options: Options{RetryAttempts: 1},
	})

	require.True(t, resp.OK, "a failed item never fails the run")
	require.Len(t, resp.Data.Items, 2)
	require.NotNil(t, resp.Data.Items[0].Video)
	assert.False(t, resp.Data.Items[0].Video.OK)
	assert.Equal(t, "Timeout", resp.Data.Items[0].Video.Error)
	require.NotNil(t, resp.Data.Items[1].Video)
	assert.True(t, resp.Data.Items[1].Video.OK)
}

func TestRunArticleExtractionFillsMissingContent(t *testing.T) {
	provider := &fakeSearch{res: searchPayload(
		map[string]any{"url": "https://news.example.com/full", "content": "already here"},
		map[string]any{"url": "https://news.example.com/empty"},
	)}
	article := &fakeArticle{}
	o, err := New(Deps{Search: provider, Video: &fakeVideo{}, Discover: &fakeDiscover{},
		Article: article, Analyzer: &fakeAnalyzer{}})
	require.NoError(t, err)

	resp := o.Run(context.Background(), Request{Topic: "t"})

	require.True(t, resp.OK, resp.Error)
	assert.Equal(t, []string{"https://news.example.com/empty"}, article.urls,
		"only articles without content get fetched")
	assert.Equal(t, "already here", resp.Data.Items[0].Content)
	assert.Equal(t, "fetched body for https://news.example.com/empty", resp.Data.Items[1].Content)
	assert.Equal(t, "Fetched title", resp.Data.Items[1].Title)
}

func TestRunSentimentDisabled(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	o, err := New(Deps{Search: &fakeSearch{}, Video: &fakeVideo{}, Discover: &fakeDiscover{},
		Analyzer: analyzer})
	require.NoError(t, err)

	resp := o.Run(context.Background(), Request{
		URLs:    []string{"https://youtu.be/abc"},
		Options: Options{RunSentiment: boolPtr(false)},
	})

	require.True(t, resp.OK, resp.Error)
	assert.Nil(t, resp.Data.Sentiment)
	assert.Nil(t, analyzer.sources, "analyzer is never called when disabled")
}

func TestRunSentimentWithoutAnalyzer(t *testing.T) {
	o, err := New(Deps{Search: &fakeSearch{}, Video: &fakeVideo{}, Discover: &fakeDiscover{}})
	require.NoError(t, err)

	resp := o.Run(context.Background(), Request{
		URLs:    []string{"https://youtu.be/abc"},
		Options: Options{RunSentiment: boolPtr(true)},
	})

	require.True(t, resp.OK, resp.Error)
	require.NotNil(t, resp.Data.Sentiment)
	assert.False(t, resp.Data.Sentiment.OK)
	assert.Equal(t, "sentiment analyzer not available", resp.Data.Sentiment.Error)
}

func TestRunQueryBuilderFailureFallsThrough(t *testing.T) {
	provider := &fakeSearch{res: searchPayload("https://example.com/a")}
	o, err := New(Deps{
		QueryBuilder: &fakeBuilder{err: errors.New("builder down")},
		Search:       provider, Video: &fakeVideo{}, Discover: &fakeDiscover{},
		Analyzer: &fakeAnalyzer{},
	})
	require.NoError(t, err)

	resp := o.Run(context.Background(), Request{QueryParams: map[string]any{
		"intent":   "buy",
		"location": "Toa Payoh",
	}})

	require.True(t, resp.OK, "builder failure is not fatal: %s", resp.Error)
	assert.Equal(t, "intent: buy | location: Toa Payoh", resp.Meta.Topic)
	assert.True(t, resp.Meta.QueryBuilder.UsedBuilder)
	assert.Equal(t, "builder down", resp.Meta.QueryBuilder.BuilderError)
}

func TestRunDiscoverFailureStaysItemLocal(t *testing.T) {
	o, err := New(Deps{Search: &fakeSearch{}, Video: &fakeVideo{},
		Discover: &fakeDiscover{fail: true}, Analyzer: &fakeAnalyzer{}})
	require.NoError(t, err)

	resp := o.Run(context.Background(), Request{URLs: []string{
		"https://www.tiktok.com/discover/topic",
		"https://youtu.be/ok",
	}})

	require.True(t, resp.OK, resp.Error)
	disc := resp.Data.Items[0]
	require.NotNil(t, disc.Discover)
	assert.False(t, disc.Discover.OK)
	assert.Equal(t, "discover failed", disc.Note)
	assert.Empty(t, disc.Videos)
	require.NotNil(t, resp.Data.Items[1].Video)
	assert.True(t, resp.Data.Items[1].Video.OK)
}

func TestOrderMatchesFixedTopology(t *testing.T) {
	o, err := New(Deps{Search: &fakeSearch{}, Video: &fakeVideo{}, Discover: &fakeDiscover{}})
	require.NoError(t, err)

	order := o.Order()
	require.Len(t, order, 6)
	assert.Equal(t, NodeQueryBuild, order[0])
	assert.Equal(t, NodeCollect, order[1])
	assert.Equal(t, NodeSentiment, order[5])
}
