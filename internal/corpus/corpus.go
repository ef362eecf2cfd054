// File path: internal/corpus/corpus.go
package corpus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/nicodishanthj/accelmatch/internal/cache"
	"github.com/nicodishanthj/accelmatch/internal/common"
	"github.com/nicodishanthj/accelmatch/internal/embedding"
	"github.com/nicodishanthj/accelmatch/internal/vecmath"
)

// FieldSeparator joins the named fields of a row into one record text.
const FieldSeparator = " | "

var (
	// ErrEmptyText reports a record whose joined text is empty.
	ErrEmptyText = errors.New("empty record text")
	// ErrDuplicate reports a record already present in the corpus.
	ErrDuplicate = errors.New("duplicate record")
)

// Row is one supplier record: field name to value.
type Row map[string]string

// JoinFields concatenates the ordered fields of row, skipping empty values.
// The field list is fixed per corpus type, so the same row always yields
// the same text.
func JoinFields(row Row, fields []string) string {
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		value := strings.TrimSpace(row[field])
		if value != "" {
			parts = append(parts, value)
		}
	}
	return strings.Join(parts, FieldSeparator)
}

// NormalizeForDedup lowers and whitespace-collapses text for duplicate
// comparison. The stored text keeps its original casing.
func NormalizeForDedup(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// Index is the in-memory ordered corpus plus its embedding matrix, kept
// consistent with the on-disk cache pair. Row i of the matrix always
// corresponds to texts[i]; every public method preserves that invariant.
// Reads take the shared lock; mutations (append, rebuild) take it
// exclusively, so a reader never observes a matrix whose row count
// disagrees with the text list.
type Index struct {
	mu       sync.RWMutex
	name     string
	fields   []string
	rows     []Row
	texts    []string
	matrix   [][]float32
	cache    *cache.Pair
	embedder *embedding.Service
}

// NewIndex builds an empty index for one corpus type. fields is the fixed
// ordered field list joined into record texts.
func NewIndex(name string, fields []string, pair *cache.Pair, embedder *embedding.Service) *Index {
	return &Index{
		name:     name,
		fields:   append([]string(nil), fields...),
		cache:    pair,
		embedder: embedder,
	}
}

// Name returns the corpus identifier used in logs.
func (ix *Index) Name() string { return ix.name }

// Fields returns the ordered field list for this corpus type.
func (ix *Index) Fields() []string {
	return append([]string(nil), ix.fields...)
}

// Load installs the supplier rows and loads or builds the embedding
// matrix. A missing or stale cache triggers a full re-embed of the corpus
// and a cache overwrite, never a partial patch.
func (ix *Index) Load(ctx context.Context, rows []Row) error {
	logger := common.Logger()
	texts := make([]string, len(rows))
	for i, row := range rows {
		texts[i] = JoinFields(row, ix.fields)
	}

	cachedMatrix, cachedTexts, ok, err := ix.cache.Load()
	if err != nil {
		logger.Warn("corpus: cache unreadable, rebuilding", "corpus", ix.name, "error", err)
		ok = false
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.rows = rows
	ix.texts = texts
	if ok && !cache.Stale(cachedTexts, texts) {
		ix.matrix = cachedMatrix
		logger.Info("corpus: embeddings loaded from cache", "corpus", ix.name, "records", len(texts))
		return nil
	}
	reason := "absent"
	if ok {
		reason = "stale"
	}
	logger.Info("corpus: cache rebuild required", "corpus", ix.name, "reason", reason, "records", len(texts))
	return ix.rebuildLocked(ctx)
}

// Rebuild re-embeds the whole corpus and overwrites the cache.
func (ix *Index) Rebuild(ctx context.Context) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.rebuildLocked(ctx)
}

func (ix *Index) rebuildLocked(ctx context.Context) error {
	if len(ix.texts) == 0 {
		ix.matrix = nil
		return nil
	}
	vectors, err := ix.embedder.Embed(ctx, ix.texts, embedding.TaskDocument)
	if err != nil {
		return fmt.Errorf("embed corpus %s: %w", ix.name, err)
	}
	if len(vectors) != len(ix.texts) {
		return fmt.Errorf("embed corpus %s: got %d vectors for %d texts", ix.name, len(vectors), len(ix.texts))
	}
	ix.matrix = vecmath.Normalize(vectors)
	if err := ix.cache.Save(ix.matrix, ix.texts); err != nil {
		// In-memory state is consistent; the stale cache repairs on next load.
		common.Logger().Warn("corpus: cache save failed", "corpus", ix.name, "error", err)
	}
	return nil
}

// EnsureDim re-embeds the corpus when its matrix dimensionality differs
// from dim. This is the self-healing read-path rebuild: a latency cost, not
// an error, and logged for that reason.
func (ix *Index) EnsureDim(ctx context.Context, dim int) error {
	ix.mu.RLock()
	current := ix.dimLocked()
	ix.mu.RUnlock()
	if current == 0 || current == dim {
		return nil
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if current = ix.dimLocked(); current == 0 || current == dim {
		return nil
	}
	common.Logger().Warn("corpus: dimensionality mismatch, re-embedding",
		"corpus", ix.name, "have", current, "want", dim)
	return ix.rebuildLocked(ctx)
}

// Append adds one record: dedup check, single-text embed, vstack on the
// matching-dimensionality fast path or full corpus re-embed on a model
// change. persist, when non-nil, runs inside the critical section before
// the in-memory state is updated; its failure aborts the append with
// nothing mutated.
func (ix *Index) Append(ctx context.Context, row Row, persist func(Row) error) error {
	text := strings.TrimSpace(JoinFields(row, ix.fields))
	if text == "" {
		return ErrEmptyText
	}
	normalized := NormalizeForDedup(text)

	ix.mu.Lock()
	defer ix.mu.Unlock()
	for _, existing := range ix.texts {
		if NormalizeForDedup(existing) == normalized {
			return ErrDuplicate
		}
	}

	vectors, err := ix.embedder.Embed(ctx, []string{text}, embedding.TaskDocument)
	if err != nil {
		return fmt.Errorf("embed record: %w", err)
	}
	if len(vectors) != 1 {
		return fmt.Errorf("embed record: got %d vectors for one text", len(vectors))
	}
	vector := vecmath.NormalizeVec(vectors[0])

	if dim := ix.dimLocked(); dim != 0 && dim != len(vector) {
		return ix.appendModelChangeLocked(ctx, row, text, persist)
	}

	if persist != nil {
		if err := persist(row); err != nil {
			return fmt.Errorf("persist record: %w", err)
		}
	}
	ix.rows = append(ix.rows, row)
	ix.texts = append(ix.texts, text)
	ix.matrix = append(ix.matrix, vector)
	if err := ix.cache.Save(ix.matrix, ix.texts); err != nil {
		return fmt.Errorf("save cache: %w", err)
	}
	return nil
}

// appendModelChangeLocked handles the slow path: the new vector's
// dimensionality differs from the cached matrix, so the provider has
// changed and the whole corpus is re-embedded including the new record.
func (ix *Index) appendModelChangeLocked(ctx context.Context, row Row, text string, persist func(Row) error) error {
	common.Logger().Warn("corpus: model change detected, re-embedding corpus",
		"corpus", ix.name, "records", len(ix.texts)+1)
	texts := make([]string, 0, len(ix.texts)+1)
	texts = append(texts, ix.texts...)
	texts = append(texts, text)
	vectors, err := ix.embedder.Embed(ctx, texts, embedding.TaskDocument)
	if err != nil {
		return fmt.Errorf("re-embed corpus %s: %w", ix.name, err)
	}
	if len(vectors) != len(texts) {
		return fmt.Errorf("re-embed corpus %s: got %d vectors for %d texts", ix.name, len(vectors), len(texts))
	}
	if persist != nil {
		if err := persist(row); err != nil {
			return fmt.Errorf("persist record: %w", err)
		}
	}
	ix.rows = append(ix.rows, row)
	ix.texts = texts
	ix.matrix = vecmath.Normalize(vectors)
	if err := ix.cache.Save(ix.matrix, ix.texts); err != nil {
		return fmt.Errorf("save cache: %w", err)
	}
	return nil
}

// Snapshot returns the current text list and matrix. The returned slices
// share backing storage with the index and must be treated as read-only;
// mutations replace or extend the slices rather than rewriting rows, so a
// snapshot stays internally consistent.
func (ix *Index) Snapshot() ([]string, [][]float32) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.texts[:len(ix.texts):len(ix.texts)], ix.matrix[:len(ix.matrix):len(ix.matrix)]
}

// Texts returns a copy of the current text list.
func (ix *Index) Texts() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return append([]string(nil), ix.texts...)
}

// Len returns the number of records.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.texts)
}

// Dim returns the embedding dimensionality, 0 for an empty corpus.
func (ix *Index) Dim() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.dimLocked()
}

func (ix *Index) dimLocked() int {
	if len(ix.matrix) == 0 {
		return 0
	}
	return len(ix.matrix[0])
}
