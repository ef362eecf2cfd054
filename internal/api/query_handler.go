// File path: internal/api/query_handler.go
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/nicodishanthj/accelmatch/internal/common"
	"github.com/nicodishanthj/accelmatch/internal/search"
	"github.com/nicodishanthj/accelmatch/internal/tokens"
)

const snippetRunes = 120

type queryMatch struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

type corpusResult struct {
	Relevant bool         `json:"relevant"`
	Matches  []queryMatch `json:"matches"`
	Message  string       `json:"message,omitempty"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("missing q parameter"))
		return
	}
	k := s.cfg.TopK
	if v := r.URL.Query().Get("k"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			k = parsed
		}
	}
	logger.Info("api: query", "q", query, "k", k)

	vec, err := s.ranker.EmbedQuery(r.Context(), query)
	if err != nil {
		if errors.Is(err, search.ErrEmptyQuery) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeError(w, http.StatusBadGateway, fmt.Errorf("embed query: %w", err))
		return
	}

	catalogResult, err := s.ranker.RankVector(r.Context(), vec, s.catalog, k, s.cfg.Threshold)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	requestResult, err := s.ranker.RankVector(r.Context(), vec, s.requests, k, s.cfg.Threshold)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	// Queries feed the request corpus; a failed insert degrades gap
	// tracking but never the answer.
	outcome, err := s.recorder.Persist(r.Context(), query)
	if err != nil {
		logger.Warn("api: query persist failed", "error", err)
		outcome = ""
	}

	response := map[string]interface{}{
		"query":    query,
		"catalog":  convertResult(catalogResult, "no accelerator matches this request"),
		"requests": convertResult(requestResult, "no similar past request found"),
		"degraded": s.embedder.Degraded(),
	}
	if outcome != "" {
		response["request_outcome"] = string(outcome)
	}
	if hint := s.precisionHint(query); hint != "" {
		response["hint"] = hint
	}
	writeJSON(w, http.StatusOK, response)
}

// precisionHint flags queries whose vocabulary is entirely unknown to both
// corpora; results still come back, just less precise.
func (s *Server) precisionHint(query string) string {
	if s.gaps == nil {
		return ""
	}
	catalog, requests := s.gaps.Vocabularies()
	known := catalog.Union(requests)
	for tok := range tokens.TokenSet(query) {
		if known.Contains(tok) {
			return ""
		}
	}
	return "query terms not seen in either corpus; results may be less precise"
}

func convertResult(result search.Result, emptyMessage string) corpusResult {
	out := corpusResult{Relevant: result.Relevant, Matches: make([]queryMatch, 0, len(result.Matches))}
	for _, match := range result.Matches {
		out.Matches = append(out.Matches, queryMatch{Text: snippet(match.Text), Score: match.Score})
	}
	if !result.Relevant {
		out.Message = emptyMessage
	}
	return out
}

func snippet(text string) string {
	runes := []rune(text)
	if len(runes) <= snippetRunes {
		return text
	}
	return string(runes[:snippetRunes]) + "..."
}
