// File path: internal/coverage/coverage.go
package coverage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/nicodishanthj/accelmatch/internal/common"
	"github.com/nicodishanthj/accelmatch/internal/corpus"
	"github.com/nicodishanthj/accelmatch/internal/tokens"
	"github.com/nicodishanthj/accelmatch/internal/vecmath"
)

// ErrNoData reports a report request against an empty request corpus.
var ErrNoData = errors.New("no request data")

const (
	// DefaultThreshold is the nominal relevance cutoff for coverage.
	DefaultThreshold = 0.15
	// DefaultMargin is the minimum best-minus-runner-up separation for a
	// request to count as decisively covered.
	DefaultMargin = 0.03

	adaptiveTriggerRate = 0.98
	adaptivePercentile  = 80
	coOccurLimit        = 5
	sampleLimit         = 3
	snippetRunes        = 120
	minThemeTokenLen    = 3
)

// Theme source labels reported alongside mined gap themes.
const (
	SourceUncovered = "uncovered"
	SourceWeak      = "weakly_covered"
	SourceGapTable  = "gap_table"
)

// stopwords drops generic business vocabulary from theme mining so themes
// name demand, not filler.
var stopwords = tokens.NewVocabulary(
	"the", "and", "for", "with", "from", "that", "this", "our", "their",
	"will", "would", "should", "could", "can", "have", "has", "had", "are",
	"was", "were", "been", "being", "not", "but", "all", "any", "its",
	"into", "over", "under", "between", "about", "across", "within",
	"need", "needs", "needed", "want", "wants", "wanted", "require",
	"requires", "required", "request", "requests", "requested",
	"help", "please", "like", "also", "use", "using", "used", "new",
	"able", "ability", "allow", "allows", "enable", "enables", "enabled",
	"provide", "provides", "provided", "support", "supports", "supported",
	"solution", "solutions", "tool", "tools", "system", "systems",
	"process", "processes", "team", "teams", "business", "company",
	"user", "users", "customer", "customers", "improve", "improved",
	"better", "create", "creating", "build", "building", "make", "making",
	"way", "ways", "time", "work", "working", "currently", "etc",
)

// Classification labels one request's coverage state.
type Classification string

const (
	Covered       Classification = "covered"
	WeaklyCovered Classification = "weakly_covered"
	Uncovered     Classification = "uncovered"
)

// RequestCoverage is the per-request scoring detail behind the summary.
type RequestCoverage struct {
	Index          int            `json:"index"`
	BestScore      float64        `json:"best_score"`
	SecondScore    float64        `json:"second_score"`
	Margin         float64        `json:"margin"`
	BestCatalog    int            `json:"best_catalog"`
	Classification Classification `json:"classification"`
}

// Summary aggregates the classification counts for one report.
type Summary struct {
	Requests         int     `json:"requests"`
	CatalogItems     int     `json:"catalog_items"`
	Covered          int     `json:"covered"`
	WeaklyCovered    int     `json:"weakly_covered"`
	Uncovered        int     `json:"uncovered"`
	CoverageRate     float64 `json:"coverage_rate"`
	NominalThreshold float64 `json:"nominal_threshold"`
	Threshold        float64 `json:"threshold"`
	MarginDelta      float64 `json:"margin_delta"`
	AdaptiveApplied  bool    `json:"adaptive_applied"`
}

// LeaderboardEntry is one catalog item ranked by decisive coverage hits.
type LeaderboardEntry struct {
	CatalogIndex int    `json:"catalog_index"`
	Text         string `json:"text"`
	Hits         int    `json:"hits"`
}

// Theme is one mined demand topic: the token, how many distinct requests
// mention it, its strongest co-occurring tokens, and sample snippets.
type Theme struct {
	Token       string   `json:"token"`
	Requests    int      `json:"requests"`
	CoOccurring []string `json:"co_occurring"`
	Samples     []string `json:"samples"`
}

// TokenStats compares the two curated-plus-observed vocabularies.
type TokenStats struct {
	RequestOnly int     `json:"request_only"`
	CatalogOnly int     `json:"catalog_only"`
	Overlap     int     `json:"overlap"`
	Jaccard     float64 `json:"jaccard"`
}

// Report is the full coverage report contract.
type Report struct {
	Summary     Summary            `json:"summary"`
	Details     []RequestCoverage  `json:"details"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
	Themes      []Theme            `json:"themes"`
	ThemeSource string             `json:"theme_source"`
	Tokens      TokenStats         `json:"token_stats"`
}

// Analyzer computes coverage reports of the request corpus against the
// catalog corpus. Reports are stateless recomputations over a snapshot.
type Analyzer struct {
	catalog  *corpus.Index
	requests *corpus.Index
	gaps     *tokens.GapTracker
}

// NewAnalyzer wires the analyzer over the two live indexes and the shared
// gap tracker.
func NewAnalyzer(catalog, requests *corpus.Index, gaps *tokens.GapTracker) *Analyzer {
	return &Analyzer{catalog: catalog, requests: requests, gaps: gaps}
}

// Report scores every request against every catalog item and classifies
// each as covered, weakly covered, or uncovered. k bounds both the
// leaderboard and the mined theme list. Corpora whose embedding
// dimensionality has diverged are re-embedded before scoring.
func (a *Analyzer) Report(ctx context.Context, k int, threshold, marginDelta float64) (*Report, error) {
	if err := a.alignDims(ctx); err != nil {
		return nil, err
	}
	requestTexts, requestMatrix := a.requests.Snapshot()
	catalogTexts, catalogMatrix := a.catalog.Snapshot()
	if len(requestTexts) == 0 {
		return nil, ErrNoData
	}

	// Snapshots share storage with the live indexes; normalize copies.
	requestMatrix = vecmath.Normalize(vecmath.CloneMatrix(requestMatrix))
	catalogMatrix = vecmath.Normalize(vecmath.CloneMatrix(catalogMatrix))

	best, second, bestCatalog := scoreAll(requestMatrix, catalogMatrix)

	effective := threshold
	details, covered := classify(best, second, bestCatalog, effective, marginDelta)
	adaptive := false
	if rate := float64(covered) / float64(len(details)); rate > adaptiveTriggerRate {
		if raised := vecmath.Percentile(best, adaptivePercentile); raised > effective {
			common.Logger().Info("coverage: adaptive threshold raised",
				"nominal", threshold, "raised", raised, "rate", rate)
			effective = raised
			adaptive = true
			details, covered = classify(best, second, bestCatalog, effective, marginDelta)
		}
	}

	weak, uncovered := 0, 0
	for _, d := range details {
		switch d.Classification {
		case WeaklyCovered:
			weak++
		case Uncovered:
			uncovered++
		}
	}

	report := &Report{
		Summary: Summary{
			Requests:         len(details),
			CatalogItems:     len(catalogTexts),
			Covered:          covered,
			WeaklyCovered:    weak,
			Uncovered:        uncovered,
			CoverageRate:     float64(covered) / float64(len(details)),
			NominalThreshold: threshold,
			Threshold:        effective,
			MarginDelta:      marginDelta,
			AdaptiveApplied:  adaptive,
		},
		Details:     details,
		Leaderboard: leaderboard(details, catalogTexts, k),
		Tokens:      a.tokenStats(),
	}
	report.Themes, report.ThemeSource = a.mineThemes(details, requestTexts, k)
	return report, nil
}

// alignDims re-embeds whichever corpus has fallen behind a provider
// change, so the similarity matrix never compares vectors of different
// dimensionality. The request corpus mutates more often and so is treated
// as the reference first; if the catalog rebuild lands on a third
// dimensionality the request corpus follows it.
func (a *Analyzer) alignDims(ctx context.Context) error {
	requestDim, catalogDim := a.requests.Dim(), a.catalog.Dim()
	if requestDim == 0 || catalogDim == 0 || requestDim == catalogDim {
		return nil
	}
	common.Logger().Warn("coverage: corpus dimensionality mismatch, re-embedding",
		"catalog", catalogDim, "requests", requestDim)
	if err := a.catalog.EnsureDim(ctx, requestDim); err != nil {
		return fmt.Errorf("align catalog corpus: %w", err)
	}
	if catalogDim = a.catalog.Dim(); catalogDim == a.requests.Dim() {
		return nil
	}
	if err := a.requests.EnsureDim(ctx, catalogDim); err != nil {
		return fmt.Errorf("align request corpus: %w", err)
	}
	if a.requests.Dim() != a.catalog.Dim() {
		return fmt.Errorf("corpus dimensionality mismatch: catalog %d, requests %d",
			a.catalog.Dim(), a.requests.Dim())
	}
	return nil
}

// scoreAll returns, per request row, the best and second-best catalog
// similarity and the best catalog index. An empty catalog yields zeros
// with best index -1.
func scoreAll(requests, catalog [][]float32) (best, second []float64, bestCatalog []int) {
	best = make([]float64, len(requests))
	second = make([]float64, len(requests))
	bestCatalog = make([]int, len(requests))
	for i, req := range requests {
		best[i], second[i] = math.Inf(-1), math.Inf(-1)
		bestCatalog[i] = -1
		for j, item := range catalog {
			score := vecmath.Dot(req, item)
			if score > best[i] {
				second[i] = best[i]
				best[i] = score
				bestCatalog[i] = j
			} else if score > second[i] {
				second[i] = score
			}
		}
		if bestCatalog[i] == -1 {
			best[i] = 0
		}
		if math.IsInf(second[i], -1) {
			second[i] = 0
		}
	}
	return best, second, bestCatalog
}

func classify(best, second []float64, bestCatalog []int, threshold, marginDelta float64) ([]RequestCoverage, int) {
	details := make([]RequestCoverage, len(best))
	covered := 0
	for i := range best {
		margin := best[i] - second[i]
		class := Uncovered
		if best[i] >= threshold {
			if margin >= marginDelta {
				class = Covered
				covered++
			} else {
				class = WeaklyCovered
			}
		}
		details[i] = RequestCoverage{
			Index:          i,
			BestScore:      best[i],
			SecondScore:    second[i],
			Margin:         margin,
			BestCatalog:    bestCatalog[i],
			Classification: class,
		}
	}
	return details, covered
}

// leaderboard counts, per catalog item, the covered requests that chose it
// as best match, ranked by hits descending with catalog order on ties.
func leaderboard(details []RequestCoverage, catalogTexts []string, k int) []LeaderboardEntry {
	hits := make(map[int]int)
	for _, d := range details {
		if d.Classification == Covered && d.BestCatalog >= 0 {
			hits[d.BestCatalog]++
		}
	}
	entries := make([]LeaderboardEntry, 0, len(hits))
	for idx, count := range hits {
		entries = append(entries, LeaderboardEntry{CatalogIndex: idx, Text: catalogTexts[idx], Hits: count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Hits != entries[j].Hits {
			return entries[i].Hits > entries[j].Hits
		}
		return entries[i].CatalogIndex < entries[j].CatalogIndex
	})
	if k >= 0 && k < len(entries) {
		entries = entries[:k]
	}
	return entries
}

// mineThemes picks the candidate pool by the fallback chain (uncovered,
// then weakly covered, then the running gap table) and mines demand tokens
// from it.
func (a *Analyzer) mineThemes(details []RequestCoverage, requestTexts []string, k int) ([]Theme, string) {
	var candidates []int
	source := SourceUncovered
	for _, d := range details {
		if d.Classification == Uncovered {
			candidates = append(candidates, d.Index)
		}
	}
	if len(candidates) == 0 {
		source = SourceWeak
		for _, d := range details {
			if d.Classification == WeaklyCovered {
				candidates = append(candidates, d.Index)
			}
		}
	}
	if len(candidates) == 0 {
		themes := make([]Theme, 0, k)
		for _, tc := range a.gaps.Top(k) {
			themes = append(themes, Theme{Token: tc.Token, Requests: tc.Count})
		}
		return themes, SourceGapTable
	}
	return a.mineCandidates(candidates, requestTexts, k), source
}

func (a *Analyzer) mineCandidates(candidates []int, requestTexts []string, k int) []Theme {
	catalogVocab, _ := a.gaps.Vocabularies()

	// Per candidate request, its surviving distinct token set.
	tokenSets := make([]map[string]struct{}, len(candidates))
	requestCount := make(map[string]int)
	for i, idx := range candidates {
		set := make(map[string]struct{})
		for tok := range tokens.TokenSet(requestTexts[idx]) {
			if len(tok) < minThemeTokenLen || stopwords.Contains(tok) || catalogVocab.Contains(tok) {
				continue
			}
			set[tok] = struct{}{}
		}
		tokenSets[i] = set
		for tok := range set {
			requestCount[tok]++
		}
	}

	ranked := make([]string, 0, len(requestCount))
	for tok := range requestCount {
		ranked = append(ranked, tok)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if requestCount[ranked[i]] != requestCount[ranked[j]] {
			return requestCount[ranked[i]] > requestCount[ranked[j]]
		}
		return ranked[i] < ranked[j]
	})
	if k >= 0 && k < len(ranked) {
		ranked = ranked[:k]
	}

	themes := make([]Theme, 0, len(ranked))
	for _, tok := range ranked {
		cooc := make(map[string]int)
		var samples []string
		for i, set := range tokenSets {
			if _, ok := set[tok]; !ok {
				continue
			}
			for other := range set {
				if other != tok {
					cooc[other]++
				}
			}
			if len(samples) < sampleLimit {
				samples = append(samples, snippet(requestTexts[candidates[i]]))
			}
		}
		themes = append(themes, Theme{
			Token:       tok,
			Requests:    requestCount[tok],
			CoOccurring: topCoOccurring(cooc, coOccurLimit),
			Samples:     samples,
		})
	}
	return themes
}

func topCoOccurring(counts map[string]int, limit int) []string {
	out := make([]string, 0, len(counts))
	for tok := range counts {
		out = append(out, tok)
	}
	sort.Slice(out, func(i, j int) bool {
		if counts[out[i]] != counts[out[j]] {
			return counts[out[i]] > counts[out[j]]
		}
		return out[i] < out[j]
	})
	if limit < len(out) {
		out = out[:limit]
	}
	return out
}

func (a *Analyzer) tokenStats() TokenStats {
	catalog, requests := a.gaps.Vocabularies()
	stats := TokenStats{}
	for tok := range requests {
		if catalog.Contains(tok) {
			stats.Overlap++
		} else {
			stats.RequestOnly++
		}
	}
	stats.CatalogOnly = len(catalog) - stats.Overlap
	if union := stats.RequestOnly + stats.CatalogOnly + stats.Overlap; union > 0 {
		stats.Jaccard = float64(stats.Overlap) / float64(union)
	}
	return stats
}

func snippet(text string) string {
	runes := []rune(text)
	if len(runes) <= snippetRunes {
		return text
	}
	return string(runes[:snippetRunes]) + "..."
}
