package source

// Kind identifies the ingestion path for a discovered URL.
type Kind string

const (
	KindYouTubeVideo   Kind = "youtube_video"
	KindTikTokDiscover Kind = "tiktok_discover"
	KindTikTokVideo    Kind = "tiktok_video"
	KindGenericVideo   Kind = "generic_video"
	KindArticle        Kind = "article"
)

// IsVideo reports whether items of this kind go through video ingestion.
func (k Kind) IsVideo() bool {
	switch k {
	case KindYouTubeVideo, KindTikTokVideo, KindGenericVideo:
		return true
	}
	return false
}

// Item is a single discovered URL, either passed in directly or returned by
// the search provider. URLs are unique within a batch; the kind is assigned
// once by Classify and never changes.
type Item struct {
	URL     string         `json:"url"`
	Kind    Kind           `json:"kind,omitempty"`
	Title   string         `json:"title,omitempty"`
	Source  string         `json:"source,omitempty"`
	Content string         `json:"content,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
	// Skipped is set when a domain filter excluded the item from dispatch.
	// Skipped items stay in the batch for observability.
	Skipped string `json:"skipped,omitempty"`
}

// IngestionResult is the outcome of one dispatched provider call. Failures
// are carried as data, never as panics across the adapter boundary.
type IngestionResult struct {
	URL   string         `json:"url,omitempty"`
	OK    bool           `json:"ok"`
	Data  map[string]any `json:"data,omitempty"`
	Error string         `json:"error,omitempty"`
}

// Succeeded and ErrorText satisfy retry.Outcome.
func (r IngestionResult) Succeeded() bool   { return r.OK }
func (r IngestionResult) ErrorText() string { return r.Error }

// Text returns the string value under key in the payload, or "".
func (r IngestionResult) Text(key string) string {
	if r.Data == nil {
		return ""
	}
	s, _ := r.Data[key].(string)
	return s
}

// VideoResult pairs a discover sub-URL with its ingestion outcome.
type VideoResult struct {
	URL   string          `json:"url"`
	Video IngestionResult `json:"video"`
}

// DiscoverBundle is the expansion of a tiktok_discover item into sub-items.
type DiscoverBundle struct {
	ParentURL string          `json:"parent_url"`
	Result    IngestionResult `json:"result"`
	SubURLs   []string        `json:"sub_urls,omitempty"`
}

// UnifiedItem merges an Item with its ingestion outcome(s). An item is never
// discarded because ingestion failed; the failure is recorded in place.
type UnifiedItem struct {
	URL      string           `json:"url"`
	Kind     Kind             `json:"kind"`
	Title    string           `json:"title,omitempty"`
	Source   string           `json:"source,omitempty"`
	Content  string           `json:"content,omitempty"`
	Meta     map[string]any   `json:"meta,omitempty"`
	Video    *IngestionResult `json:"video,omitempty"`
	Discover *IngestionResult `json:"discover,omitempty"`
	Videos   []VideoResult    `json:"videos,omitempty"`
	Note     string           `json:"note,omitempty"`
	Skipped  string           `json:"skipped,omitempty"`
}

// SourceRef is the lightweight per-item record handed to the sentiment stage.
// There is exactly one per processed item, whether or not it produced text.
type SourceRef struct {
	URL      string `json:"url"`
	Kind     Kind   `json:"kind"`
	Title    string `json:"title,omitempty"`
	HasVideo bool   `json:"has_video"`
}
