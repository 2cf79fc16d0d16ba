package localapi

import (
	"net/http"
	"strings"

	"taskline/internal/taskstore"

	"github.com/go-chi/chi/v5"
)

// aiSettingsPatch leaves a stored field untouched when it is omitted.
type aiSettingsPatch struct {
	APIURL *string `json:"api_url"`
	APIKey *string `json:"api_key"`
	Model  *string `json:"model"`
}

func (s *Server) registerSettingsRoutes(r chi.Router) {
	r.Get("/api/settings/ai", s.handleGetAISettings)
	r.Put("/api/settings/ai", s.handlePutAISettings)
}

func aiSettingsView(in taskstore.AISettings) map[string]any {
	return map[string]any{
		"api_url":     in.APIURL,
		"model":       in.Model,
		"api_key_set": in.Configured(),
	}
}

func (s *Server) handleGetAISettings(w http.ResponseWriter, r *http.Request) {
	ownerID := ownerFromContext(r.Context())
	cur, err := s.deps.Settings.UserAISettings(r.Context(), ownerID)
	if err != nil {
		s.logger.Error("load ai settings failed", "owner_id", ownerID, "err", err)
		respondError(w, http.StatusInternalServerError, "INTERNAL", "Failed to load settings")
		return
	}
	respondOK(w, aiSettingsView(cur))
}

func (s *Server) handlePutAISettings(w http.ResponseWriter, r *http.Request) {
	var patch aiSettingsPatch
	if err := decodeJSON(r, &patch); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "invalid json body")
		return
	}
	ownerID := ownerFromContext(r.Context())
	cur, err := s.deps.Settings.UserAISettings(r.Context(), ownerID)
	if err != nil {
		s.logger.Error("load ai settings failed", "owner_id", ownerID, "err", err)
		respondError(w, http.StatusInternalServerError, "INTERNAL", "Failed to load settings")
		return
	}
	if patch.APIURL != nil {
		cur.APIURL = strings.TrimSpace(*patch.APIURL)
	}
	if patch.APIKey != nil {
		cur.APIKey = strings.TrimSpace(*patch.APIKey)
	}
	if patch.Model != nil {
		cur.Model = strings.TrimSpace(*patch.Model)
	}
	if err := s.deps.Settings.SaveUserAISettings(r.Context(), ownerID, cur); err != nil {
		s.logger.Error("save ai settings failed", "owner_id", ownerID, "err", err)
		respondError(w, http.StatusInternalServerError, "INTERNAL", "Failed to save settings")
		return
	}
	s.logger.Info("ai settings saved", "owner_id", ownerID, "api_key_set", cur.Configured())
	respondOK(w, aiSettingsView(cur))
}
