// File path: internal/api/report_handler.go
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/nicodishanthj/accelmatch/internal/common"
	"github.com/nicodishanthj/accelmatch/internal/coverage"
)

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	k := s.cfg.TopK
	if v := r.URL.Query().Get("k"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			k = parsed
		}
	}
	threshold := s.cfg.Threshold
	if v := r.URL.Query().Get("threshold"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil && parsed > 0 {
			threshold = parsed
		}
	}
	margin := s.cfg.MarginDelta
	if v := r.URL.Query().Get("margin"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil && parsed >= 0 {
			margin = parsed
		}
	}
	common.Logger().Info("api: coverage report", "k", k, "threshold", threshold, "margin", margin)

	report, err := s.analyzer.Report(r.Context(), k, threshold, margin)
	if err != nil {
		if errors.Is(err, coverage.ErrNoData) {
			writeError(w, http.StatusConflict, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
