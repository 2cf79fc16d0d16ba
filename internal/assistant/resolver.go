package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"taskline/internal/taskstore"
)

const (
	DefaultCategoryColor = "6B7280"
	DefaultTagColor      = "9CA3AF"
)

// ErrResolveInconsistent means an insert hit the uniqueness constraint but the winning row
// could not be read back.
var ErrResolveInconsistent = errors.New("entity resolver: row missing after unique violation")

// entityKind binds the find/insert pair for one entity table.
type entityKind struct {
	name   string
	find   func(ctx context.Context, st Store, ownerID int64, name string) (int64, bool, error)
	insert func(ctx context.Context, st Store, ownerID int64, name string) (int64, error)
}

var categoryEntity = entityKind{
	name: "category",
	find: func(ctx context.Context, st Store, ownerID int64, name string) (int64, bool, error) {
		c, err := st.FindCategoryByName(ctx, ownerID, name, true)
		if err != nil || c == nil {
			return 0, false, err
		}
		return c.ID, true, nil
	},
	insert: func(ctx context.Context, st Store, ownerID int64, name string) (int64, error) {
		c, err := st.InsertCategory(ctx, taskstore.Category{OwnerID: ownerID, Name: name, ColorHex: DefaultCategoryColor}, "")
		if err != nil {
			return 0, err
		}
		return c.ID, nil
	},
}

var tagEntity = entityKind{
	name: "tag",
	find: func(ctx context.Context, st Store, ownerID int64, name string) (int64, bool, error) {
		t, err := st.FindTagByName(ctx, ownerID, name, true)
		if err != nil || t == nil {
			return 0, false, err
		}
		return t.ID, true, nil
	},
	insert: func(ctx context.Context, st Store, ownerID int64, name string) (int64, error) {
		t, err := st.InsertTag(ctx, taskstore.Tag{OwnerID: ownerID, Name: name, ColorHex: DefaultTagColor}, "")
		if err != nil {
			return 0, err
		}
		return t.ID, nil
	},
}

// Resolver maps a free-text category or tag name to its id, creating the row on first use.
// It keeps no state: serialization comes from the row lock and the (owner, name) unique index.
type Resolver struct {
	logger        *slog.Logger
	isUniqueError func(error) bool
}

func NewResolver(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{logger: logger, isUniqueError: taskstore.IsUniqueViolation}
}

// ResolveCategory returns ok=false for a blank name.
func (r *Resolver) ResolveCategory(ctx context.Context, st Store, ownerID int64, name string) (id int64, ok bool, err error) {
	return r.resolve(ctx, st, categoryEntity, ownerID, name)
}

func (r *Resolver) ResolveTag(ctx context.Context, st Store, ownerID int64, name string) (id int64, ok bool, err error) {
	return r.resolve(ctx, st, tagEntity, ownerID, name)
}

func (r *Resolver) resolve(ctx context.Context, st Store, kind entityKind, ownerID int64, name string) (int64, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, false, nil
	}
	id, found, err := kind.find(ctx, st, ownerID, name)
	if err != nil {
		return 0, false, fmt.Errorf("find %s %q: %w", kind.name, name, err)
	}
	if found {
		return id, true, nil
	}

	id, insertErr := kind.insert(ctx, st, ownerID, name)
	if insertErr == nil {
		return id, true, nil
	}
	if !r.isUniqueError(insertErr) {
		return 0, false, fmt.Errorf("insert %s %q: %w", kind.name, name, insertErr)
	}

	r.logger.Debug("entity insert lost race, re-reading", "entity", kind.name, "owner_id", ownerID, "name", name)
	id, found, err = kind.find(ctx, st, ownerID, name)
	if err != nil {
		return 0, false, fmt.Errorf("re-read %s %q: %w", kind.name, name, err)
	}
	if !found {
		return 0, false, fmt.Errorf("%w: %s %q for owner %d: %v", ErrResolveInconsistent, kind.name, name, ownerID, insertErr)
	}
	return id, true, nil
}
