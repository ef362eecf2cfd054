// File path: internal/ingest/ingest.go
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nicodishanthj/accelmatch/internal/common"
	"github.com/nicodishanthj/accelmatch/internal/corpus"
	"github.com/nicodishanthj/accelmatch/internal/sqlite"
	"github.com/nicodishanthj/accelmatch/internal/tokens"
)

// Outcome classifies what Persist did with a submitted request.
type Outcome string

const (
	// OutcomeStored reports the request entered the corpus and the store.
	OutcomeStored Outcome = "stored"
	// OutcomeSkippedEmpty reports a blank submission.
	OutcomeSkippedEmpty Outcome = "skipped_empty"
	// OutcomeSkippedDuplicate reports the request already existed.
	OutcomeSkippedDuplicate Outcome = "skipped_duplicate"
)

// RecordStore is the durable sink for accepted requests. *sqlite.Store
// satisfies it.
type RecordStore interface {
	InsertRequest(ctx context.Context, record sqlite.RequestRecord) (int64, error)
}

// Recorder accepts free-text requests and routes them through the request
// index: dedup, incremental embed, durable insert, and gap tracking, in
// that order. A single failed step leaves both the index and the store
// unchanged.
type Recorder struct {
	index *corpus.Index
	store RecordStore
	gaps  *tokens.GapTracker
}

// NewRecorder wires the recorder. store and gaps may be nil in tests.
func NewRecorder(index *corpus.Index, store RecordStore, gaps *tokens.GapTracker) *Recorder {
	return &Recorder{index: index, store: store, gaps: gaps}
}

// Persist adds one raw request. Blank or duplicate input is reported as a
// skip outcome with a nil error; any other failure returns OutcomeStored
// semantics untouched and a non-nil error.
func (r *Recorder) Persist(ctx context.Context, raw string) (Outcome, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return OutcomeSkippedEmpty, nil
	}
	row := corpus.Row{"description": text}
	var persist func(corpus.Row) error
	if r.store != nil {
		persist = func(row corpus.Row) error {
			if _, err := r.store.InsertRequest(ctx, sqlite.FromRow(row)); err != nil {
				return err
			}
			return nil
		}
	}
	err := r.index.Append(ctx, row, persist)
	switch {
	case errors.Is(err, corpus.ErrEmptyText):
		return OutcomeSkippedEmpty, nil
	case errors.Is(err, corpus.ErrDuplicate):
		common.Logger().Info("ingest: duplicate request skipped", "text", snippet(text))
		return OutcomeSkippedDuplicate, nil
	case err != nil:
		return "", fmt.Errorf("persist request: %w", err)
	}
	if r.gaps != nil {
		r.gaps.Observe(text)
	}
	common.Logger().Info("ingest: request stored", "records", r.index.Len())
	return OutcomeStored, nil
}

func snippet(text string) string {
	runes := []rune(text)
	if len(runes) <= 80 {
		return text
	}
	return string(runes[:80]) + "..."
}
