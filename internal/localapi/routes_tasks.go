package localapi

import (
	"net/http"
	"strconv"
	"time"

	"taskline/internal/taskstore"

	"github.com/go-chi/chi/v5"
)

type taskView struct {
	ID              int64      `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	CategoryID      *int64     `json:"category_id"`
	StatusID        int64      `json:"status_id"`
	Done            bool       `json:"done"`
	Archived        bool       `json:"archived"`
	Priority        bool       `json:"priority"`
	EstimateMinutes *int       `json:"estimate_minutes"`
	DueDate         *time.Time `json:"due_date"`
	ClosedOn        *time.Time `json:"closed_on"`
	Tags            []string   `json:"tags"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (s *Server) registerTaskRoutes(r chi.Router) {
	r.Get("/api/tasks", s.handleListTasks)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	ownerID := ownerFromContext(r.Context())
	includeArchived, _ := strconv.ParseBool(r.URL.Query().Get("include_archived"))
	tasks, err := s.deps.Tasks.ListTasks(r.Context(), ownerID, includeArchived)
	if err != nil {
		s.logger.Error("list tasks failed", "owner_id", ownerID, "err", err)
		respondError(w, http.StatusInternalServerError, "INTERNAL", "Failed to load tasks")
		return
	}
	out := make([]taskView, 0, len(tasks))
	for _, t := range tasks {
		tags, err := s.deps.Tasks.TaskTagNames(r.Context(), t.ID)
		if err != nil {
			s.logger.Error("load task tags failed", "owner_id", ownerID, "task_id", t.ID, "err", err)
			respondError(w, http.StatusInternalServerError, "INTERNAL", "Failed to load tasks")
			return
		}
		out = append(out, newTaskView(t, tags))
	}
	respondOK(w, map[string]any{"tasks": out})
}

func newTaskView(t taskstore.Task, tags []string) taskView {
	if tags == nil {
		tags = []string{}
	}
	return taskView{
		ID:              t.ID,
		Title:           t.Title,
		Description:     t.Description,
		CategoryID:      t.CategoryID,
		StatusID:        t.StatusID,
		Done:            t.Done,
		Archived:        t.Archived,
		Priority:        t.Priority,
		EstimateMinutes: t.EstimateMinutes,
		DueDate:         optionalTime(t.DueDate),
		ClosedOn:        optionalTime(t.ClosedOn),
		Tags:            tags,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
