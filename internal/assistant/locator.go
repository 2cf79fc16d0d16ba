package assistant

import (
	"context"
	"strings"

	"taskline/internal/taskstore"
)

// Locate finds a non-archived task of ownerID by exact title, then by case-insensitive
// substring. A miss is (nil, nil).
func Locate(ctx context.Context, st Store, ownerID int64, titleQuery string) (*taskstore.Task, error) {
	q := strings.TrimSpace(titleQuery)
	if q == "" {
		return nil, nil
	}
	task, err := st.FindTaskByExactTitle(ctx, ownerID, q)
	if err != nil || task != nil {
		return task, err
	}
	return st.FindTaskByTitleSubstring(ctx, ownerID, q)
}
