// File path: internal/vecmath/vecmath.go
package vecmath

import (
	"fmt"
	"math"
	"sort"
)

// normEpsilon keeps zero vectors finite during normalization instead of
// producing NaN rows.
const normEpsilon = 1e-12

// NormalizeVec scales v to unit L2 length in place and returns it.
func NormalizeVec(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	denom := math.Sqrt(sum) + normEpsilon
	for i := range v {
		v[i] = float32(float64(v[i]) / denom)
	}
	return v
}

// Normalize scales every row of m to unit L2 length in place and returns m.
func Normalize(m [][]float32) [][]float32 {
	for i := range m {
		NormalizeVec(m[i])
	}
	return m
}

// CloneMatrix returns a deep copy of m. Callers that normalize a shared
// matrix defensively must copy first so concurrent readers never observe
// the rewrite.
func CloneMatrix(m [][]float32) [][]float32 {
	if m == nil {
		return nil
	}
	out := make([][]float32, len(m))
	for i, row := range m {
		out[i] = append([]float32(nil), row...)
	}
	return out
}

// Dot returns the inner product of a and b computed in float64. For unit
// vectors this is their cosine similarity. Unequal lengths are a caller
// bug: a truncated product looks like a plausible score, so it panics
// instead.
func Dot(a, b []float32) float64 {
	if len(a) != len(b) {
		panic(fmt.Sprintf("vecmath: dot product length mismatch: %d != %d", len(a), len(b)))
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Similarities returns the inner product of query against every row of
// matrix, one score per row.
func Similarities(query []float32, matrix [][]float32) []float64 {
	scores := make([]float64, len(matrix))
	for i, row := range matrix {
		scores[i] = Dot(query, row)
	}
	return scores
}

// TopK returns the indexes of the k highest scores in descending score
// order. Equal scores keep their original index order, so ranking is
// deterministic for a fixed input.
func TopK(scores []float64, k int) []int {
	idxs := make([]int, len(scores))
	for i := range idxs {
		idxs[i] = i
	}
	sort.SliceStable(idxs, func(a, b int) bool {
		return scores[idxs[a]] > scores[idxs[b]]
	})
	if k >= 0 && k < len(idxs) {
		idxs = idxs[:k]
	}
	return idxs
}

// Percentile returns the p-th percentile (0..100) of values using linear
// interpolation between closest ranks. An empty input yields 0.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
