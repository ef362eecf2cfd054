// File path: internal/api/requests_handler.go
package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/nicodishanthj/accelmatch/internal/common"
)

type persistRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleRequests(w http.ResponseWriter, r *http.Request) {
	var payload persistRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	outcome, err := s.recorder.Persist(r.Context(), payload.Text)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	common.Logger().Info("api: request persisted", "outcome", string(outcome))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"outcome":  string(outcome),
		"requests": s.requests.Len(),
	})
}
