// File path: internal/api/server.go
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/nicodishanthj/accelmatch/internal/common"
	"github.com/nicodishanthj/accelmatch/internal/corpus"
	"github.com/nicodishanthj/accelmatch/internal/coverage"
	"github.com/nicodishanthj/accelmatch/internal/embedding"
	"github.com/nicodishanthj/accelmatch/internal/ingest"
	"github.com/nicodishanthj/accelmatch/internal/search"
	"github.com/nicodishanthj/accelmatch/internal/tokens"
)

// Config controls the ranking and coverage defaults the handlers apply
// when a request omits the corresponding parameter.
type Config struct {
	TopK        int
	Threshold   float64
	MarginDelta float64
}

// DefaultConfig returns the standard handler defaults.
func DefaultConfig() Config {
	return Config{
		TopK:        3,
		Threshold:   coverage.DefaultThreshold,
		MarginDelta: coverage.DefaultMargin,
	}
}

// Merge overlays positive override values onto the base configuration.
func (c Config) Merge(override Config) Config {
	result := c
	if override.TopK > 0 {
		result.TopK = override.TopK
	}
	if override.Threshold > 0 {
		result.Threshold = override.Threshold
	}
	if override.MarginDelta > 0 {
		result.MarginDelta = override.MarginDelta
	}
	return result
}

type Server struct {
	router   chi.Router
	cfg      Config
	catalog  *corpus.Index
	requests *corpus.Index
	embedder *embedding.Service
	ranker   *search.Ranker
	recorder *ingest.Recorder
	analyzer *coverage.Analyzer
	gaps     *tokens.GapTracker
}

// NewServer wires the handler set over the two live corpus indexes and
// their supporting services.
func NewServer(catalog, requests *corpus.Index, embedder *embedding.Service, recorder *ingest.Recorder, analyzer *coverage.Analyzer, gaps *tokens.GapTracker, cfg *Config) (*Server, error) {
	if catalog == nil || requests == nil {
		return nil, fmt.Errorf("both corpus indexes required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedding service required")
	}
	if recorder == nil {
		return nil, fmt.Errorf("request recorder required")
	}
	if analyzer == nil {
		return nil, fmt.Errorf("coverage analyzer required")
	}
	configuration := DefaultConfig()
	if cfg != nil {
		configuration = configuration.Merge(*cfg)
	}
	srv := &Server{
		router:   chi.NewRouter(),
		cfg:      configuration,
		catalog:  catalog,
		requests: requests,
		embedder: embedder,
		ranker:   search.NewRanker(embedder),
		recorder: recorder,
		analyzer: analyzer,
		gaps:     gaps,
	}
	srv.routes()
	common.Logger().Info("api: server ready",
		"catalog", catalog.Len(), "requests", requests.Len(), "provider", embedder.Name())
	return srv, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	logger := common.Logger()
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("request", "method", r.Method, "path", r.URL.Path, "dur", time.Since(start), "remote", r.RemoteAddr)
		})
	})

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	s.router.Get("/hello", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "hello, world!"})
	})

	s.router.Get("/v1/query", s.handleQuery)
	s.router.Post("/v1/requests", s.handleRequests)
	s.router.Get("/v1/report", s.handleReport)
	s.router.Post("/v1/reindex", s.handleReindex)
	s.router.Get("/v1/logs", s.handleLogs)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"logs": common.LogEntries()})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	logger := common.Logger()
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
	} else {
		logger.Warn("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
