package jsonbackend

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/FranksOps/pulse/internal/runstore"
)

// ensure jsonBackend implements runstore.Backend
var _ runstore.Backend = (*jsonBackend)(nil)

type jsonBackend struct {
	mu   sync.Mutex
	file *os.File
}

// New creates a new NDJSON-backed runstore.Backend.
func New(filePath string) (runstore.Backend, error) {
	// Open file for appending, create if it doesn't exist
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}

	return &jsonBackend{
		file: f,
	}, nil
}

func (b *jsonBackend) Save(ctx context.Context, rec *runstore.RunRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal run record: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	_, err = b.file.Write(append(data, '\n'))
	if err != nil {
		return fmt.Errorf("append run record: %w", err)
	}

	return nil
}

func (b *jsonBackend) Query(ctx context.Context, filter runstore.Filter) ([]*runstore.RunRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Seek to the beginning of the file to read all entries
	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek run store: %w", err)
	}
	defer func() {
		// Restore pointer to end for writing
		_, _ = b.file.Seek(0, io.SeekEnd)
	}()

	scanner := bufio.NewScanner(b.file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	// In a real DB, offset/limit and ordering is handled by the engine.
	// For NDJSON, we read everything, filter in memory, and then slice/reverse.
	var allFiltered []*runstore.RunRecord

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var r runstore.RunRecord
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, fmt.Errorf("decode run record: %w", err)
		}

		// Apply filters
		if filter.Topic != "" && r.Topic != filter.Topic {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.OK != nil && r.OK != *filter.OK {
			continue
		}
		if filter.Since != nil && r.CreatedAt.Before(*filter.Since) {
			continue
		}

		allFiltered = append(allFiltered, &r)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan run store: %w", err)
	}

	// Order by created_at DESC (reverse the slice)
	for i, j := 0, len(allFiltered)-1; i < j; i, j = i+1, j-1 {
		allFiltered[i], allFiltered[j] = allFiltered[j], allFiltered[i]
	}

	// Apply Offset
	if filter.Offset > 0 {
		if filter.Offset >= len(allFiltered) {
			return []*runstore.RunRecord{}, nil
		}
		allFiltered = allFiltered[filter.Offset:]
	}

	// Apply Limit
	if filter.Limit > 0 && filter.Limit < len(allFiltered) {
		allFiltered = allFiltered[:filter.Limit]
	}

	return allFiltered, nil
}

func (b *jsonBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}
