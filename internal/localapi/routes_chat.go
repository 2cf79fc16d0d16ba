package localapi

import (
	"errors"
	"net/http"
	"time"

	"taskline/internal/chat"

	"github.com/go-chi/chi/v5"
)

type chatMessageRequest struct {
	Message string `json:"message"`
}

type actionResult struct {
	Action  string `json:"action"`
	Success bool   `json:"success"`
	TaskID  int64  `json:"task_id"`
}

type historyMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Server) registerChatRoutes(r chi.Router) {
	r.Post("/api/chat/message", s.handleChatMessage)
	r.Get("/api/chat/history", s.handleChatHistory)
	r.Post("/api/chat/clear", s.handleChatClear)
}

func (s *Server) handleChatMessage(w http.ResponseWriter, r *http.Request) {
	var req chatMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "invalid json body")
		return
	}
	ownerID := ownerFromContext(r.Context())
	res, err := s.deps.Chat.SendMessage(r.Context(), ownerID, req.Message)
	if err != nil {
		s.respondChatError(w, ownerID, err)
		return
	}
	actions := make([]actionResult, 0, len(res.Actions))
	for _, a := range res.Actions {
		actions = append(actions, actionResult{Action: string(a.Kind), Success: a.Success, TaskID: a.TaskID})
	}
	respondOK(w, map[string]any{
		"response":         res.Response,
		"conversation_id":  res.ConversationID,
		"turn_id":          res.TurnID,
		"actions_executed": actions,
	})
}

func (s *Server) respondChatError(w http.ResponseWriter, ownerID int64, err error) {
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		respondError(w, http.StatusBadRequest, "EMPTY_MESSAGE", "Message cannot be empty")
	case errors.Is(err, chat.ErrNotConfigured):
		respondError(w, http.StatusBadRequest, "AI_NOT_CONFIGURED", "AI API not configured. Please set it in Settings.")
	case errors.Is(err, chat.ErrModelFailed):
		s.logger.Error("chat model call failed", "owner_id", ownerID, "err", err)
		respondError(w, http.StatusInternalServerError, "AI_REQUEST_FAILED", "Failed to get AI response. Check your API key and try again.")
	default:
		s.logger.Error("chat turn failed", "owner_id", ownerID, "err", err)
		respondError(w, http.StatusInternalServerError, "INTERNAL", "Failed to process message")
	}
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	ownerID := ownerFromContext(r.Context())
	msgs, err := s.deps.Chat.History(r.Context(), ownerID)
	if err != nil {
		s.logger.Error("load chat history failed", "owner_id", ownerID, "err", err)
		respondError(w, http.StatusInternalServerError, "INTERNAL", "Failed to load chat history")
		return
	}
	out := make([]historyMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, historyMessage{Role: m.Role, Content: m.Content, CreatedAt: m.CreatedAt})
	}
	respondOK(w, map[string]any{"messages": out})
}

func (s *Server) handleChatClear(w http.ResponseWriter, r *http.Request) {
	ownerID := ownerFromContext(r.Context())
	n, err := s.deps.Chat.Clear(r.Context(), ownerID)
	if err != nil {
		s.logger.Error("clear chat history failed", "owner_id", ownerID, "err", err)
		respondError(w, http.StatusInternalServerError, "INTERNAL", "Failed to clear chat history")
		return
	}
	respondOK(w, map[string]any{"cleared": n})
}
