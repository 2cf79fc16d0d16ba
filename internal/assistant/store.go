package assistant

import (
	"context"

	"taskline/internal/taskstore"
)

// Store is the slice of the task store the engine needs. Every call joins the caller's
// transaction; *taskstore.Store satisfies it.
type Store interface {
	FindStatusByName(ctx context.Context, name string) (*taskstore.Status, error)
	FindAnyStatus(ctx context.Context) (*taskstore.Status, error)
	FindCategoryByName(ctx context.Context, ownerID int64, name string, lock bool) (*taskstore.Category, error)
	InsertCategory(ctx context.Context, c taskstore.Category, description string) (*taskstore.Category, error)
	FindTagByName(ctx context.Context, ownerID int64, name string, lock bool) (*taskstore.Tag, error)
	InsertTag(ctx context.Context, t taskstore.Tag, description string) (*taskstore.Tag, error)
	AssociateTagWithTask(ctx context.Context, taskID, tagID int64) error
	FindTaskByExactTitle(ctx context.Context, ownerID int64, title string) (*taskstore.Task, error)
	FindTaskByTitleSubstring(ctx context.Context, ownerID int64, query string) (*taskstore.Task, error)
	InsertTask(ctx context.Context, in taskstore.NewTask) (*taskstore.Task, error)
	UpdateTaskFields(ctx context.Context, ownerID, taskID int64, patch taskstore.TaskPatch) error
}

var _ Store = (*taskstore.Store)(nil)
