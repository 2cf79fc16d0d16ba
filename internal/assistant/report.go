package assistant

import "log/slog"

// Outcome records what happened to one action. CreatedID is set only for create_task;
// TaskID is the task that was created or changed.
type Outcome struct {
	Kind      Kind
	Success   bool
	CreatedID *int64
	TaskID    int64
	Reason    string

	level slog.Level
}

func executed(kind Kind, taskID int64) Outcome {
	return Outcome{Kind: kind, Success: true, TaskID: taskID, level: slog.LevelInfo}
}

func rejected(kind Kind, reason string) Outcome {
	return Outcome{Kind: kind, Reason: reason, level: slog.LevelWarn}
}

// Report lists outcomes in extraction order.
type Report struct {
	Outcomes []Outcome
}

// Executed returns the successful outcomes only.
func (r Report) Executed() []Outcome {
	out := make([]Outcome, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		if o.Success {
			out = append(out, o)
		}
	}
	return out
}

// ChangedTasks reports whether any executed action touched a task.
func (r Report) ChangedTasks() bool {
	for _, o := range r.Outcomes {
		if o.Success {
			return true
		}
	}
	return false
}
