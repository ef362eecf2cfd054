// File path: internal/search/search.go
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nicodishanthj/accelmatch/internal/corpus"
	"github.com/nicodishanthj/accelmatch/internal/embedding"
	"github.com/nicodishanthj/accelmatch/internal/vecmath"
)

// ErrEmptyQuery reports a blank query string.
var ErrEmptyQuery = errors.New("empty query")

// Match is one ranked hit: the record text, its cosine similarity against
// the query, and its position in the corpus.
type Match struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
	Index int     `json:"index"`
}

// Result holds the ranked hits for one corpus. Relevant reports whether the
// best hit cleared the similarity threshold; an empty corpus yields zero
// matches and BestScore 0.
type Result struct {
	Matches   []Match `json:"matches"`
	BestScore float64 `json:"best_score"`
	Relevant  bool    `json:"relevant"`
}

// Ranker embeds queries and ranks them against corpus indexes.
type Ranker struct {
	embedder *embedding.Service
}

// NewRanker wires a ranker over the shared embedding service.
func NewRanker(embedder *embedding.Service) *Ranker {
	return &Ranker{embedder: embedder}
}

// EmbedQuery embeds one query text with the query task type and returns the
// unit-normalized vector. Callers ranking the same query against several
// corpora embed once and pass the vector to RankVector.
func (r *Ranker) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	vectors, err := r.embedder.Embed(ctx, []string{query}, embedding.TaskQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors for one text", len(vectors))
	}
	return vecmath.NormalizeVec(vectors[0]), nil
}

// RankVector scores the query vector against every record of ix and returns
// the top k hits by similarity, ties broken by lower corpus index. A corpus
// whose matrix dimensionality disagrees with the query vector is re-embedded
// before scoring.
func (r *Ranker) RankVector(ctx context.Context, vec []float32, ix *corpus.Index, k int, threshold float64) (Result, error) {
	if err := ix.EnsureDim(ctx, len(vec)); err != nil {
		return Result{}, fmt.Errorf("rank %s: %w", ix.Name(), err)
	}
	texts, matrix := ix.Snapshot()
	if len(texts) == 0 {
		return Result{}, nil
	}
	scores := vecmath.Similarities(vec, matrix)
	matches := make([]Match, 0, k)
	for _, i := range vecmath.TopK(scores, k) {
		matches = append(matches, Match{Text: texts[i], Score: scores[i], Index: i})
	}
	result := Result{Matches: matches}
	if len(matches) > 0 {
		result.BestScore = matches[0].Score
		result.Relevant = result.BestScore >= threshold
	}
	return result, nil
}

// Rank embeds the query and ranks it against one corpus.
func (r *Ranker) Rank(ctx context.Context, query string, ix *corpus.Index, k int, threshold float64) (Result, error) {
	vec, err := r.EmbedQuery(ctx, query)
	if err != nil {
		return Result{}, err
	}
	return r.RankVector(ctx, vec, ix, k, threshold)
}
