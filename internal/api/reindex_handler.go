// File path: internal/api/reindex_handler.go
package api

import (
	"fmt"
	"net/http"

	"github.com/nicodishanthj/accelmatch/internal/common"
)

// handleReindex reopens the primary embedding provider and rebuilds both
// corpora from scratch. This is the operator path back from degraded mode
// after a quota window clears.
func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	logger.Info("api: reindex requested", "degraded", s.embedder.Degraded())
	s.embedder.Reset()
	if err := s.catalog.Rebuild(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, fmt.Errorf("rebuild catalog: %w", err))
		return
	}
	if err := s.requests.Rebuild(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, fmt.Errorf("rebuild requests: %w", err))
		return
	}
	if s.gaps != nil {
		s.gaps.Rebuild(s.requests.Texts())
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "reindexed",
		"catalog":  s.catalog.Len(),
		"requests": s.requests.Len(),
		"provider": s.embedder.Name(),
		"degraded": s.embedder.Degraded(),
	})
}
