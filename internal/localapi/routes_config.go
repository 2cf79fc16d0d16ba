package localapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) registerConfigRoutes(r chi.Router) {
	r.Get("/api/config", s.handleGetConfig)
}

// handleGetConfig exposes the non-secret assistant defaults.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	if s.deps.ConfigStore == nil {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "config store unavailable")
		return
	}
	cfg, err := s.deps.ConfigStore.LoadOrInit()
	if err != nil {
		s.logger.Error("load global config failed", "err", err)
		respondError(w, http.StatusInternalServerError, "INTERNAL", "Failed to load config")
		return
	}
	respondOK(w, map[string]any{
		"local_port": cfg.LocalPort,
		"assistant": map[string]any{
			"base_url":          cfg.Assistant.BaseURL,
			"model":             cfg.Assistant.Model,
			"temperature":       cfg.Assistant.Temperature,
			"max_output_tokens": cfg.Assistant.MaxOutputTokens,
			"history_window":    cfg.Assistant.HistoryWindow,
			"timeout_seconds":   cfg.Assistant.TimeoutSeconds,
		},
	})
}
