package jsonbackend

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/FranksOps/pulse/internal/runstore"
)

func TestJSONBackend(t *testing.T) {
	tmpDir := t.TempDir()
	filePath := filepath.Join(tmpDir, "pulse.jsonl")

	b, err := New(filePath)
	if err != nil {
		t.Fatalf("Failed to create JSON backend: %v", err)
	}
	defer b.Close()

	ctx := context.Background()
	now := time.Now().Truncate(time.Millisecond).UTC() // JSON marshals with precision limits

	rec1 := &runstore.RunRecord{
		ID:         "json1",
		Topic:      "hdb resale prices",
		Status:     "completed",
		OK:         true,
		ItemCount:  3,
		Items:      json.RawMessage(`[{"url":"https://example.com/a"}]`),
		Sentiment:  json.RawMessage(`{"ok":true}`),
		DurationMs: 900,
		CreatedAt:  now.Add(-2 * time.Hour),
	}

	rec2 := &runstore.RunRecord{
		ID:         "json2",
		Topic:      "coe premiums",
		Status:     "failed",
		OK:         false,
		Error:      "websearch failed: search unavailable",
		DurationMs: 120,
		CreatedAt:  now.Add(-1 * time.Hour),
	}

	err = b.Save(ctx, rec1)
	if err != nil {
		t.Fatalf("Failed to save record 1: %v", err)
	}
	err = b.Save(ctx, rec2)
	if err != nil {
		t.Fatalf("Failed to save record 2: %v", err)
	}

	// Test Topic Filter
	resultsTopic, err := b.Query(ctx, runstore.Filter{Topic: "coe premiums"})
	if err != nil {
		t.Fatalf("Failed to query by topic: %v", err)
	}
	if len(resultsTopic) != 1 {
		t.Fatalf("Expected 1 result for topic filter, got %d", len(resultsTopic))
	}
	if resultsTopic[0].ID != "json2" {
		t.Errorf("Expected ID json2, got %s", resultsTopic[0].ID)
	}

	// Test OK Filter
	boolTrue := true
	resultsOK, err := b.Query(ctx, runstore.Filter{OK: &boolTrue})
	if err != nil {
		t.Fatalf("Failed to query by OK: %v", err)
	}
	if len(resultsOK) != 1 {
		t.Fatalf("Expected 1 result for OK filter, got %d", len(resultsOK))
	}
	if resultsOK[0].ID != "json1" {
		t.Errorf("Expected ID json1, got %s", resultsOK[0].ID)
	}

	// Test Status Filter
	resultsStatus, err := b.Query(ctx, runstore.Filter{Status: "failed"})
	if err != nil {
		t.Fatalf("Failed to query by status: %v", err)
	}
	if len(resultsStatus) != 1 {
		t.Fatalf("Expected 1 result for status filter, got %d", len(resultsStatus))
	}

	// Test Since Filter
	past := now.Add(-90 * time.Minute)
	resultsSince, err := b.Query(ctx, runstore.Filter{Since: &past})
	if err != nil {
		t.Fatalf("Failed to query by Since: %v", err)
	}
	if len(resultsSince) != 1 {
		t.Fatalf("Expected 1 result for Since filter, got %d", len(resultsSince))
	}
	if resultsSince[0].ID != "json2" {
		t.Errorf("Expected ID json2, got %s", resultsSince[0].ID)
	}

	// Test no filters, ordering
	resultsAll, err := b.Query(ctx, runstore.Filter{})
	if err != nil {
		t.Fatalf("Failed to query all: %v", err)
	}
	if len(resultsAll) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(resultsAll))
	}
	// Order should be descending (newest first)
	if resultsAll[0].ID != "json2" {
		t.Errorf("Expected json2 first, got %s", resultsAll[0].ID)
	}
	if string(resultsAll[1].Items) != `[{"url":"https://example.com/a"}]` {
		t.Errorf("Items payload did not round-trip: %s", resultsAll[1].Items)
	}

	// Test limit
	resultsLimit, err := b.Query(ctx, runstore.Filter{Limit: 1})
	if err != nil {
		t.Fatalf("Failed to query limit: %v", err)
	}
	if len(resultsLimit) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(resultsLimit))
	}

	// Test offset
	resultsOffset, err := b.Query(ctx, runstore.Filter{Offset: 1})
	if err != nil {
		t.Fatalf("Failed to query offset: %v", err)
	}
	if len(resultsOffset) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(resultsOffset))
	}
	if resultsOffset[0].ID != "json1" {
		t.Errorf("Expected json1 for offset 1, got %s", resultsOffset[0].ID)
	}
}
