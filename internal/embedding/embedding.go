// File path: internal/embedding/embedding.go
package embedding

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/nicodishanthj/accelmatch/internal/common"
)

// Task is the embedding intent passed through to the provider. Document
// vectors index the corpus; query vectors rank against it.
type Task string

const (
	TaskDocument Task = "RETRIEVAL_DOCUMENT"
	TaskQuery    Task = "RETRIEVAL_QUERY"
)

// ErrQuota classifies rate-limit and quota exhaustion failures so callers
// can distinguish them from other provider errors.
var ErrQuota = errors.New("embedding provider quota exhausted")

// Provider produces one fixed-length vector per input text, in input order.
// Vectors are not guaranteed normalized; callers normalize explicitly.
type Provider interface {
	Embed(ctx context.Context, texts []string, task Task) ([][]float32, error)
	Name() string
}

// Service fronts a primary provider with an optional fallback. The first
// primary failure latches the service onto the fallback for the rest of the
// process, so a degraded remote path is not retried on every call. Reset
// clears the latch.
type Service struct {
	mu       sync.Mutex
	primary  Provider
	fallback Provider
	degraded bool
}

// NewService wraps primary with an optional fallback provider. fallback may
// be nil, in which case primary failures propagate to the caller.
func NewService(primary, fallback Provider) *Service {
	return &Service{primary: primary, fallback: fallback}
}

// NewServiceFromEnv selects providers the way the process is configured:
// GEMINI_API_KEY picks the Gemini primary, otherwise OPENAI_API_KEY picks
// the OpenAI primary, otherwise the local embedder runs alone. The local
// embedder is the fallback for any remote primary unless
// EMBEDDING_FALLBACK=false.
func NewServiceFromEnv(ctx context.Context) (*Service, error) {
	logger := common.Logger()
	local := NewLocalProvider(localDimFromEnv())
	fallbackEnabled := true
	if v := strings.TrimSpace(os.Getenv("EMBEDDING_FALLBACK")); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			fallbackEnabled = parsed
		} else {
			logger.Warn("embedding: invalid EMBEDDING_FALLBACK, keeping default", "value", v)
		}
	}
	var fallback Provider
	if fallbackEnabled {
		fallback = local
	}
	if key := strings.TrimSpace(os.Getenv("GEMINI_API_KEY")); key != "" {
		primary, err := NewGeminiProvider(ctx, key, strings.TrimSpace(os.Getenv("GEMINI_EMBED_MODEL")))
		if err != nil {
			return nil, fmt.Errorf("init gemini provider: %w", err)
		}
		logger.Info("embedding: gemini provider selected", "model", primary.model, "fallback", fallbackEnabled)
		return NewService(primary, fallback), nil
	}
	if key := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); key != "" {
		primary := NewOpenAIProvider(key, strings.TrimSpace(os.Getenv("OPENAI_EMBED_MODEL")))
		logger.Info("embedding: openai provider selected", "model", primary.model, "fallback", fallbackEnabled)
		return NewService(primary, fallback), nil
	}
	logger.Warn("embedding: no remote provider configured; using local embedder")
	return NewService(local, nil), nil
}

func localDimFromEnv() int {
	if v := strings.TrimSpace(os.Getenv("LOCAL_EMBED_DIM")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultLocalDim
}

// Embed produces one vector per text via the active provider. A primary
// failure other than context cancellation latches the fallback when one is
// configured; subsequent calls go straight to the fallback.
func (s *Service) Embed(ctx context.Context, texts []string, task Task) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	s.mu.Lock()
	active := s.primary
	if s.degraded && s.fallback != nil {
		active = s.fallback
	}
	s.mu.Unlock()

	vectors, err := active.Embed(ctx, texts, task)
	if err == nil {
		return vectors, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}
	s.mu.Lock()
	canFallBack := active == s.primary && s.fallback != nil
	if canFallBack {
		s.degraded = true
	}
	s.mu.Unlock()
	if !canFallBack {
		return nil, fmt.Errorf("embedding provider %s: %w", active.Name(), err)
	}
	common.Logger().Warn("embedding: primary provider failed, latching fallback",
		"primary", s.primary.Name(), "fallback", s.fallback.Name(),
		"quota", errors.Is(err, ErrQuota), "error", err)
	vectors, ferr := s.fallback.Embed(ctx, texts, task)
	if ferr != nil {
		return nil, fmt.Errorf("embedding fallback %s: %w", s.fallback.Name(), ferr)
	}
	return vectors, nil
}

// Degraded reports whether the fallback latch is set.
func (s *Service) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

// Reset clears the fallback latch so the next call retries the primary.
func (s *Service) Reset() {
	s.mu.Lock()
	was := s.degraded
	s.degraded = false
	s.mu.Unlock()
	if was {
		common.Logger().Info("embedding: fallback latch cleared", "primary", s.primary.Name())
	}
}

// Name reports the provider currently serving calls.
func (s *Service) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.degraded && s.fallback != nil {
		return s.fallback.Name()
	}
	return s.primary.Name()
}
