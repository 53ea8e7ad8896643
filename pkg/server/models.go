package server

import (
	"net/http"
	"time"

	"heliox-hq/charon/pkg/server/api"
)

// handleModels serves GET /v1/models from the configured catalog.
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, api.NewInvalidRequestError(
			"Use GET for model listing.", "method", "method_not_allowed"))
		return
	}

	created := time.Now().Unix()
	list := api.ModelList{Object: "list"}
	for _, id := range s.config.Models.Catalog {
		list.Data = append(list.Data, api.Model{
			ID:      id,
			Object:  "model",
			Created: created,
			OwnedBy: "charon",
		})
	}

	writeJSON(w, http.StatusOK, list)
}
