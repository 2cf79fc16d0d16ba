package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"taskline/internal/taskstore"
)

const (
	contextOverdueLimit = 5
	contextRecentLimit  = 5
	promptOverdueLimit  = 3
)

type OverdueTask struct {
	Title       string `json:"title"`
	DueDate     string `json:"due_date"`
	DaysOverdue int    `json:"days_overdue"`
}

type RecentTask struct {
	Title   string  `json:"title"`
	Done    bool    `json:"done"`
	DueDate *string `json:"due_date"`
}

// UserContext is the snapshot of a user's tasks handed to the model with every turn.
type UserContext struct {
	TotalTasks     int64         `json:"total_tasks"`
	CompletedTasks int64         `json:"completed_tasks"`
	CompletionRate int           `json:"completion_rate"`
	OverdueCount   int           `json:"overdue_count"`
	OverdueTasks   []OverdueTask `json:"overdue_tasks"`
	RecentTasks    []RecentTask  `json:"recent_tasks"`
}

type contextReader interface {
	TaskStats(ctx context.Context, ownerID int64) (taskstore.TaskStats, error)
	OverdueTasks(ctx context.Context, ownerID int64, now time.Time, limit int) ([]taskstore.Task, error)
	RecentTasks(ctx context.Context, ownerID int64, limit int) ([]taskstore.Task, error)
}

func BuildUserContext(ctx context.Context, st contextReader, ownerID int64, now time.Time) (UserContext, error) {
	out := UserContext{OverdueTasks: []OverdueTask{}, RecentTasks: []RecentTask{}}

	stats, err := st.TaskStats(ctx, ownerID)
	if err != nil {
		return out, fmt.Errorf("task stats: %w", err)
	}
	out.TotalTasks = stats.Total
	out.CompletedTasks = stats.Completed
	out.CompletionRate = stats.CompletionRate()

	overdue, err := st.OverdueTasks(ctx, ownerID, now, contextOverdueLimit)
	if err != nil {
		return out, fmt.Errorf("overdue tasks: %w", err)
	}
	for _, task := range overdue {
		out.OverdueTasks = append(out.OverdueTasks, OverdueTask{
			Title:       task.Title,
			DueDate:     task.DueDate.Format(time.DateOnly),
			DaysOverdue: int(now.Sub(task.DueDate).Hours() / 24),
		})
	}
	out.OverdueCount = len(out.OverdueTasks)

	recent, err := st.RecentTasks(ctx, ownerID, contextRecentLimit)
	if err != nil {
		return out, fmt.Errorf("recent tasks: %w", err)
	}
	for _, task := range recent {
		item := RecentTask{Title: task.Title, Done: task.Done}
		if !task.DueDate.IsZero() {
			due := task.DueDate.Format(time.DateOnly)
			item.DueDate = &due
		}
		out.RecentTasks = append(out.RecentTasks, item)
	}
	return out, nil
}

// BuildSystemPrompt renders the assistant instructions, including the action block format
// the engine understands.
func BuildSystemPrompt(uc UserContext, now time.Time) string {
	recent, err := json.MarshalIndent(uc.RecentTasks, "", "  ")
	if err != nil {
		recent = []byte("[]")
	}

	var b strings.Builder
	b.WriteString("You are TaskLine AI, a productivity assistant for task management.\n\n")
	b.WriteString("Your role: help the user manage tasks through conversation. Give insights, prioritization advice ")
	b.WriteString("and coaching based on their actual data.\n\n")

	b.WriteString("User context (current state):\n")
	fmt.Fprintf(&b, "- Total tasks: %d\n", uc.TotalTasks)
	fmt.Fprintf(&b, "- Completed: %d (%d%%)\n", uc.CompletedTasks, uc.CompletionRate)
	fmt.Fprintf(&b, "- Overdue: %d tasks\n", uc.OverdueCount)
	fmt.Fprintf(&b, "- Recent activity: %s\n\n", recent)
	b.WriteString(formatOverdue(uc))
	b.WriteString("\n")

	b.WriteString("Task actions:\n")
	b.WriteString("When the user asks you to create, complete, update or archive a task, include one fenced block per ")
	b.WriteString("action in your reply, tagged json, holding a single JSON object. The blocks are executed and removed ")
	b.WriteString("before the user sees your reply, so also confirm what you did in plain language.\n\n")
	b.WriteString("```json\n{\"action\": \"create_task\", \"title\": \"Call John\", \"due_date\": \"")
	b.WriteString(tomorrowAt(now, 14).Format("2006-01-02T15:04:05"))
	b.WriteString("\", \"description\": \"Follow-up call\", \"category\": \"Work\", \"tags\": [\"calls\"], \"priority\": false, \"estimate_minutes\": 15}\n```\n")
	b.WriteString("```json\n{\"action\": \"complete_task\", \"task_title\": \"Call John\"}\n```\n")
	b.WriteString("```json\n{\"action\": \"update_task\", \"task_title\": \"Call John\", \"priority\": true}\n```\n")
	b.WriteString("```json\n{\"action\": \"archive_task\", \"task_title\": \"Call John\"}\n```\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("- create_task needs title and due_date (ISO-8601). Other fields are optional.\n")
	b.WriteString("- update_task needs task_title and only the fields that change: due_date, priority, category, description, estimate_minutes.\n")
	b.WriteString("- task_title may be part of the title; use the exact title when you know it.\n")
	b.WriteString("- Never emit a block unless the user asked for that change.\n\n")

	b.WriteString("Guidelines: reference the user's data, suggest one or two priorities rather than long lists, ")
	b.WriteString("be concise and encouraging.\n\n")
	fmt.Fprintf(&b, "Current date/time: %s\n", now.Format(time.RFC3339))
	return b.String()
}

func formatOverdue(uc UserContext) string {
	if uc.OverdueCount == 0 {
		return "No overdue tasks.\n"
	}
	var b strings.Builder
	b.WriteString("Overdue tasks (need attention):\n")
	for i, task := range uc.OverdueTasks {
		if i == promptOverdueLimit {
			break
		}
		fmt.Fprintf(&b, "- '%s' (due %s, %d days overdue)\n", task.Title, task.DueDate, task.DaysOverdue)
	}
	return b.String()
}

func tomorrowAt(now time.Time, hour int) time.Time {
	y, m, d := now.AddDate(0, 0, 1).Date()
	return time.Date(y, m, d, hour, 0, 0, 0, now.Location())
}
