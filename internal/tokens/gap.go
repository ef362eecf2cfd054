// File path: internal/tokens/gap.go
package tokens

import (
	"sort"
	"sync"
)

// TokenCount pairs a token with its occurrence count.
type TokenCount struct {
	Token string `json:"token"`
	Count int    `json:"count"`
}

// GapTracker maintains the running table of request-corpus tokens that the
// catalog vocabulary does not cover. The catalog vocabulary is fixed for the
// process lifetime; the request vocabulary grows as new requests are
// persisted. Counts only ever increase.
type GapTracker struct {
	mu       sync.RWMutex
	catalog  Vocabulary
	requests Vocabulary
	counts   map[string]int
}

// NewGapTracker builds a tracker over the two curated vocabularies. The
// tracker takes ownership of copies, so callers may keep mutating theirs.
func NewGapTracker(catalog, requests Vocabulary) *GapTracker {
	return &GapTracker{
		catalog:  catalog.Clone(),
		requests: requests.Clone(),
		counts:   make(map[string]int),
	}
}

// Rebuild recomputes the gap table from scratch over the full request
// corpus. Called once at startup and again after a full reindex.
func (g *GapTracker) Rebuild(texts []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counts = make(map[string]int)
	for _, text := range texts {
		g.observeLocked(text)
	}
}

// Observe unions the text's tokens into the request vocabulary, then
// increments the gap count for every token the catalog vocabulary lacks.
func (g *GapTracker) Observe(text string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.observeLocked(text)
}

func (g *GapTracker) observeLocked(text string) {
	for _, tok := range Tokenize(text) {
		g.requests[tok] = struct{}{}
		if !g.catalog.Contains(tok) {
			g.counts[tok]++
		}
	}
}

// Top returns the n most frequent gap tokens, ordered by count descending
// and alphabetically on ties.
func (g *GapTracker) Top(n int) []TokenCount {
	g.mu.RLock()
	out := make([]TokenCount, 0, len(g.counts))
	for tok, count := range g.counts {
		out = append(out, TokenCount{Token: tok, Count: count})
	}
	g.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Token < out[j].Token
	})
	if n >= 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

// Size returns the number of distinct gap tokens tracked.
func (g *GapTracker) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.counts)
}

// Vocabularies returns copies of the catalog and request vocabularies as of
// this call.
func (g *GapTracker) Vocabularies() (catalog, requests Vocabulary) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.catalog.Clone(), g.requests.Clone()
}
