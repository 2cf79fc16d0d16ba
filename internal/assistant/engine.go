package assistant

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"taskline/internal/taskstore"
)

const defaultStatusName = "todo"

// Engine executes the actions embedded in an assistant reply against a store that is bound
// to the caller's transaction. It never commits or rolls back.
type Engine struct {
	logger   *slog.Logger
	resolver *Resolver
	now      func() time.Time
}

func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("module", "assistant")
	return &Engine{
		logger:   logger,
		resolver: NewResolver(logger),
		now:      time.Now,
	}
}

// Run extracts and executes every action in raw, then returns the reply with the blocks
// removed. The sanitized text is returned even when err is non-nil; the caller must roll
// back in that case.
func (e *Engine) Run(ctx context.Context, st Store, ownerID int64, raw string) (string, Report, error) {
	report, err := e.Dispatch(ctx, st, ownerID, Extract(raw))
	return Sanitize(raw), report, err
}

// Dispatch executes actions in order. Rejections are logged and recorded; the first store
// error stops the batch.
func (e *Engine) Dispatch(ctx context.Context, st Store, ownerID int64, actions iter.Seq[Action]) (Report, error) {
	var report Report
	for action := range actions {
		outcome, err := e.dispatch(ctx, st, ownerID, action)
		if err != nil {
			e.logger.Error("assistant action failed", "owner_id", ownerID, "action", string(action.Kind()), "err", err)
			return report, fmt.Errorf("%s: %w", action.Kind(), err)
		}
		report.Outcomes = append(report.Outcomes, outcome)
		e.logOutcome(ctx, ownerID, outcome)
	}
	return report, nil
}

func (e *Engine) logOutcome(ctx context.Context, ownerID int64, o Outcome) {
	if o.Success {
		e.logger.Log(ctx, o.level, "assistant action executed", "owner_id", ownerID, "action", string(o.Kind), "task_id", o.TaskID)
		return
	}
	e.logger.Log(ctx, o.level, "assistant action rejected", "owner_id", ownerID, "action", string(o.Kind), "reason", o.Reason)
}

func (e *Engine) dispatch(ctx context.Context, st Store, ownerID int64, action Action) (Outcome, error) {
	switch a := action.(type) {
	case CreateTask:
		return e.createTask(ctx, st, ownerID, a)
	case CompleteTask:
		return e.completeTask(ctx, st, ownerID, a)
	case UpdateTask:
		return e.updateTask(ctx, st, ownerID, a)
	case ArchiveTask:
		return e.archiveTask(ctx, st, ownerID, a)
	default:
		return rejected(action.Kind(), "unsupported action"), nil
	}
}

func (e *Engine) createTask(ctx context.Context, st Store, ownerID int64, a CreateTask) (Outcome, error) {
	title := strings.TrimSpace(a.Title)
	if title == "" {
		return rejected(KindCreateTask, "missing title"), nil
	}
	due, ok := ParseDueDate(strings.TrimSpace(a.DueDate))
	if !ok {
		return rejected(KindCreateTask, fmt.Sprintf("invalid due_date %q", a.DueDate)), nil
	}

	status, err := st.FindStatusByName(ctx, defaultStatusName)
	if err != nil {
		return Outcome{}, fmt.Errorf("find status: %w", err)
	}
	if status == nil {
		status, err = st.FindAnyStatus(ctx)
		if err != nil {
			return Outcome{}, fmt.Errorf("find any status: %w", err)
		}
	}
	if status == nil {
		out := rejected(KindCreateTask, "no status exists")
		out.level = slog.LevelError
		return out, nil
	}

	var categoryID *int64
	if id, ok, err := e.resolver.ResolveCategory(ctx, st, ownerID, a.Category); err != nil {
		return Outcome{}, err
	} else if ok {
		categoryID = &id
	}

	task, err := st.InsertTask(ctx, taskstore.NewTask{
		OwnerID:         ownerID,
		Title:           title,
		Description:     a.Description,
		CategoryID:      categoryID,
		StatusID:        status.ID,
		Priority:        a.Priority,
		EstimateMinutes: a.EstimateMinutes,
		DueDate:         due,
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("insert task: %w", err)
	}

	seen := make(map[string]struct{}, len(a.Tags))
	for _, raw := range a.Tags {
		name := strings.TrimSpace(raw)
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		tagID, ok, err := e.resolver.ResolveTag(ctx, st, ownerID, name)
		if err != nil {
			return Outcome{}, err
		}
		if !ok {
			continue
		}
		if err := st.AssociateTagWithTask(ctx, task.ID, tagID); err != nil {
			return Outcome{}, fmt.Errorf("associate tag %q: %w", name, err)
		}
	}

	out := executed(KindCreateTask, task.ID)
	out.CreatedID = &task.ID
	return out, nil
}

func (e *Engine) completeTask(ctx context.Context, st Store, ownerID int64, a CompleteTask) (Outcome, error) {
	now := e.now()
	done := true
	return e.patchLocated(ctx, st, ownerID, KindCompleteTask, a.TaskTitle, taskstore.TaskPatch{
		Done:      &done,
		ClosedOn:  &now,
		UpdatedAt: now,
	})
}

func (e *Engine) archiveTask(ctx context.Context, st Store, ownerID int64, a ArchiveTask) (Outcome, error) {
	archived := true
	return e.patchLocated(ctx, st, ownerID, KindArchiveTask, a.TaskTitle, taskstore.TaskPatch{
		Archived:  &archived,
		UpdatedAt: e.now(),
	})
}

func (e *Engine) updateTask(ctx context.Context, st Store, ownerID int64, a UpdateTask) (Outcome, error) {
	if strings.TrimSpace(a.TaskTitle) == "" {
		return rejected(KindUpdateTask, "missing task_title"), nil
	}
	patch := taskstore.TaskPatch{
		Priority:        a.Priority,
		Description:     a.Description,
		EstimateMinutes: a.EstimateMinutes,
		UpdatedAt:       e.now(),
	}
	if a.DueDate != nil {
		if due, ok := ParseDueDate(strings.TrimSpace(*a.DueDate)); ok {
			patch.DueDate = &due
		} else {
			e.logger.Warn("ignoring unparsable due_date", "owner_id", ownerID, "action", string(KindUpdateTask), "due_date", *a.DueDate)
		}
	}

	// The task is located before the category is resolved so a miss creates nothing.
	task, err := Locate(ctx, st, ownerID, a.TaskTitle)
	if err != nil {
		return Outcome{}, fmt.Errorf("locate task: %w", err)
	}
	if task == nil {
		return rejected(KindUpdateTask, fmt.Sprintf("no task matches %q", a.TaskTitle)), nil
	}
	if a.Category != nil {
		id, ok, err := e.resolver.ResolveCategory(ctx, st, ownerID, *a.Category)
		if err != nil {
			return Outcome{}, err
		}
		if ok {
			patch.CategoryID = &id
		}
	}
	return e.applyPatch(ctx, st, ownerID, KindUpdateTask, task, patch)
}

func (e *Engine) patchLocated(ctx context.Context, st Store, ownerID int64, kind Kind, title string, patch taskstore.TaskPatch) (Outcome, error) {
	if strings.TrimSpace(title) == "" {
		return rejected(kind, "missing task_title"), nil
	}
	task, err := Locate(ctx, st, ownerID, title)
	if err != nil {
		return Outcome{}, fmt.Errorf("locate task: %w", err)
	}
	if task == nil {
		return rejected(kind, fmt.Sprintf("no task matches %q", title)), nil
	}
	return e.applyPatch(ctx, st, ownerID, kind, task, patch)
}

func (e *Engine) applyPatch(ctx context.Context, st Store, ownerID int64, kind Kind, task *taskstore.Task, patch taskstore.TaskPatch) (Outcome, error) {
	if err := st.UpdateTaskFields(ctx, ownerID, task.ID, patch); err != nil {
		if errors.Is(err, taskstore.ErrTaskNotFound) {
			return rejected(kind, fmt.Sprintf("task %d vanished", task.ID)), nil
		}
		return Outcome{}, fmt.Errorf("update task %d: %w", task.ID, err)
	}
	return executed(kind, task.ID), nil
}
