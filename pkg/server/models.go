package server

import (
	"encoding/json"
	"net/http"

	"github.com/kadirpekel/mamba/pkg/config"
)

// ModelInfo is one entry of the model catalog.
type ModelInfo struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Provider      string `json:"provider"`
	Description   string `json:"description,omitempty"`
	ContextWindow int    `json:"context_window,omitempty"`
	SupportsTools bool   `json:"supports_tools"`
}

// ModelsResponse is the body of GET /models.
type ModelsResponse struct {
	Models []ModelInfo `json:"models"`
}

// handleModels lists the configured model catalog.
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	models := make([]ModelInfo, 0, len(s.cfg.Models))
	for _, m := range s.cfg.Models {
		models = append(models, ModelInfo{
			ID:            m.ID,
			Name:          m.Name,
			Provider:      m.Provider,
			Description:   m.Description,
			ContextWindow: m.ContextWindow,
			SupportsTools: config.BoolValue(m.SupportsTools, true),
		})
	}

	writeJSON(w, http.StatusOK, ModelsResponse{Models: models})
}

// writeJSON writes a JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
