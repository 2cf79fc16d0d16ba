package localapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"taskline/internal/chat"
	"taskline/internal/global"
	"taskline/internal/taskstore"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const maxJSONBodyBytes = 1 << 20

type ChatService interface {
	SendMessage(ctx context.Context, ownerID int64, text string) (chat.TurnResult, error)
	History(ctx context.Context, ownerID int64) ([]chat.Message, error)
	Clear(ctx context.Context, ownerID int64) (int64, error)
}

type SettingsStore interface {
	UserAISettings(ctx context.Context, userID int64) (taskstore.AISettings, error)
	SaveUserAISettings(ctx context.Context, userID int64, in taskstore.AISettings) error
}

type TaskReader interface {
	ListTasks(ctx context.Context, ownerID int64, includeArchived bool) ([]taskstore.Task, error)
	TaskTagNames(ctx context.Context, taskID int64) ([]string, error)
}

type ConfigStore interface {
	LoadOrInit() (global.GlobalConfig, error)
}

type Deps struct {
	Chat           ChatService
	Settings       SettingsStore
	Tasks          TaskReader
	ConfigStore    ConfigStore
	Hub            *WSHub
	HealthCheck    func(ctx context.Context) error
	AllowedOrigins []string
	// WebUIDir, when set, serves a built frontend for every non-api path.
	WebUIDir string
	// DevUserID stands in for the session layer when X-User-ID is absent. Zero disables it.
	DevUserID int64
	Logger    *slog.Logger
}

type Server struct {
	deps   Deps
	router chi.Router
	hub    *WSHub
	logger *slog.Logger
}

func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	hub := deps.Hub
	if hub == nil {
		hub = NewWSHub(logger, deps.AllowedOrigins)
	}
	s := &Server{deps: deps, router: chi.NewRouter(), hub: hub, logger: logger.With("module", "localapi")}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.accessLog)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", ownerHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if dir := strings.TrimSpace(deps.WebUIDir); dir != "" {
		s.router.NotFound(newSPAHandler(dir).ServeHTTP)
	} else {
		s.router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "not found")
		})
	}
	s.router.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})

	s.router.Get("/healthz", s.handleHealth)
	s.router.Group(func(r chi.Router) {
		r.Use(s.requireOwner)
		r.Get("/ws", s.hub.HandleWS)
		s.registerChatRoutes(r)
		s.registerSettingsRoutes(r)
		s.registerTaskRoutes(r)
		s.registerConfigRoutes(r)
	})
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Hub() *WSHub {
	return s.hub
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthCheck != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.HealthCheck(ctx); err != nil {
			s.logger.Warn("health check failed", "err", err)
			respondError(w, http.StatusServiceUnavailable, "UNHEALTHY", "database unavailable")
			return
		}
	}
	respondOK(w, map[string]any{"status": "ok"})
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func respondOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "data": data})
}

func respondError(w http.ResponseWriter, code int, errCode string, msg string) {
	writeJSON(w, code, map[string]any{"ok": false, "error": map[string]any{"code": errCode, "message": msg}})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}
