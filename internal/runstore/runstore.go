package runstore

import (
	"context"
	"encoding/json"
	"time"
)

// RunRecord is the persisted outcome of one orchestration run. Items and
// Sentiment hold the already-marshaled payloads so backends never need to
// know the pipeline's types.
type RunRecord struct {
	ID         string          `json:"id"`
	Topic      string          `json:"topic"`
	Status     string          `json:"status"`
	OK         bool            `json:"ok"`
	ItemCount  int             `json:"item_count"`
	Items      json.RawMessage `json:"items,omitempty"`
	Sentiment  json.RawMessage `json:"sentiment,omitempty"`
	Error      string          `json:"error,omitempty"`
	DurationMs int64           `json:"duration_ms"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Filter allows querying for specific RunRecords.
type Filter struct {
	Topic  string
	Status string
	OK     *bool
	Since  *time.Time
	Limit  int
	Offset int
}

// Backend defines the interface for storing and querying run records.
// Query returns records newest first.
type Backend interface {
	Save(ctx context.Context, rec *RunRecord) error
	Query(ctx context.Context, filter Filter) ([]*RunRecord, error)
	Close() error
}
