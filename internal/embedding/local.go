// File path: internal/embedding/local.go
package embedding

import (
	"context"
	"hash/fnv"
	"regexp"
	"strings"

	"github.com/nicodishanthj/accelmatch/internal/vecmath"
)

const defaultLocalDim = 256

var localTokenPattern = regexp.MustCompile(`[a-z0-9]+`)

// LocalProvider is the in-process fallback embedder: a signed
// feature-hashing bag of words. Vectors are deterministic, dimension is
// fixed per provider instance, and token overlap drives cosine similarity.
// Quality is well below a real embedding model; the point is keeping the
// service answering while the remote provider is unavailable.
type LocalProvider struct {
	dim int
}

func NewLocalProvider(dim int) *LocalProvider {
	if dim <= 0 {
		dim = defaultLocalDim
	}
	return &LocalProvider{dim: dim}
}

func (l *LocalProvider) Embed(ctx context.Context, texts []string, task Task) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		vectors[i] = l.embedOne(text)
	}
	return vectors, nil
}

func (l *LocalProvider) embedOne(text string) []float32 {
	vec := make([]float32, l.dim)
	for _, tok := range localTokenPattern.FindAllString(strings.ToLower(text), -1) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum32()
		bucket := int(sum % uint32(l.dim))
		sign := float32(1)
		if sum&0x80000000 != 0 {
			sign = -1
		}
		vec[bucket] += sign
	}
	return vecmath.NormalizeVec(vec)
}

func (l *LocalProvider) Name() string {
	return "local"
}

// Dim returns the fixed output dimensionality of this provider.
func (l *LocalProvider) Dim() int {
	return l.dim
}
