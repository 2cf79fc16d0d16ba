package taskstore

import (
	"context"
	"errors"
	"strings"
	"time"

	dbmodel "taskline/internal/db"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store reads and writes task records through a gorm handle. When the handle is a
// transaction every call joins it; the caller owns commit and rollback.
type Store struct {
	db     *gorm.DB
	now    func() time.Time
	sealer Sealer
}

func New(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// WithSealer returns a copy that encrypts stored API keys with sealer.
func (s *Store) WithSealer(sealer Sealer) *Store {
	out := *s
	out.sealer = sealer
	return &out
}

// Transaction runs fn with a Store bound to a fresh transaction (or a savepoint when s is
// already transactional).
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	gdb, err := s.conn(ctx)
	if err != nil {
		return err
	}
	return gdb.Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx, now: s.now, sealer: s.sealer})
	})
}

func (s *Store) conn(ctx context.Context) (*gorm.DB, error) {
	if s == nil || s.db == nil {
		return nil, ErrStoreClosed
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return s.db.WithContext(ctx), nil
}

// FindStatusByName matches the status title case-insensitively.
func (s *Store) FindStatusByName(ctx context.Context, name string) (*Status, error) {
	gdb, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	var row dbmodel.Status
	err = gdb.Where("LOWER(title) = ?", strings.ToLower(strings.TrimSpace(name))).Order("id ASC").Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &Status{ID: row.ID, Title: row.Title}, nil
}

// FindAnyStatus returns the status with the lowest id.
func (s *Store) FindAnyStatus(ctx context.Context) (*Status, error) {
	gdb, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	var row dbmodel.Status
	err = gdb.Order("id ASC").Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &Status{ID: row.ID, Title: row.Title}, nil
}

func (s *Store) FindCategoryByName(ctx context.Context, ownerID int64, name string, lock bool) (*Category, error) {
	gdb, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	q := gdb.Where("created_by = ? AND name = ?", ownerID, name)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var row dbmodel.Category
	err = q.Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &Category{ID: row.ID, OwnerID: row.CreatedBy, Name: row.Name, ColorHex: row.ColorHex}, nil
}

// InsertCategory runs inside a savepoint so a uniqueness failure leaves the enclosing
// transaction usable.
func (s *Store) InsertCategory(ctx context.Context, c Category, description string) (*Category, error) {
	gdb, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC().Unix()
	row := dbmodel.Category{
		CreatedBy:   c.OwnerID,
		Name:        c.Name,
		Description: description,
		ColorHex:    c.ColorHex,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := gdb.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&row).Error
	}); err != nil {
		return nil, err
	}
	return &Category{ID: row.ID, OwnerID: row.CreatedBy, Name: row.Name, ColorHex: row.ColorHex}, nil
}

func (s *Store) FindTagByName(ctx context.Context, ownerID int64, name string, lock bool) (*Tag, error) {
	gdb, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	q := gdb.Where("created_by = ? AND name = ?", ownerID, name)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var row dbmodel.Tag
	err = q.Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &Tag{ID: row.ID, OwnerID: row.CreatedBy, Name: row.Name, ColorHex: row.ColorHex}, nil
}

func (s *Store) InsertTag(ctx context.Context, t Tag, description string) (*Tag, error) {
	gdb, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC().Unix()
	row := dbmodel.Tag{
		CreatedBy:   t.OwnerID,
		Name:        t.Name,
		Description: description,
		ColorHex:    t.ColorHex,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := gdb.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&row).Error
	}); err != nil {
		return nil, err
	}
	return &Tag{ID: row.ID, OwnerID: row.CreatedBy, Name: row.Name, ColorHex: row.ColorHex}, nil
}

// AssociateTagWithTask is a no-op when the pair already exists.
func (s *Store) AssociateTagWithTask(ctx context.Context, taskID, tagID int64) error {
	gdb, err := s.conn(ctx)
	if err != nil {
		return err
	}
	return gdb.Clauses(clause.OnConflict{DoNothing: true}).Create(&dbmodel.TaskTag{TaskID: taskID, TagID: tagID}).Error
}

func (s *Store) FindTaskByExactTitle(ctx context.Context, ownerID int64, title string) (*Task, error) {
	gdb, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	var row dbmodel.Task
	err = gdb.
		Where("created_by = ? AND archived = ? AND title = ?", ownerID, false, title).
		Order("updated_at DESC").Order("id DESC").
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return taskFromRow(row), nil
}

// FindTaskByTitleSubstring matches case-insensitively; the most recently updated task wins.
func (s *Store) FindTaskByTitleSubstring(ctx context.Context, ownerID int64, query string) (*Task, error) {
	gdb, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	if query == "" {
		return nil, nil
	}
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	var row dbmodel.Task
	err = gdb.
		Where("created_by = ? AND archived = ?", ownerID, false).
		Where(dbmodel.FoldFunc+"(title) LIKE ? ESCAPE '\\'", pattern).
		Order("updated_at DESC").Order("id DESC").
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return taskFromRow(row), nil
}

func (s *Store) InsertTask(ctx context.Context, in NewTask) (*Task, error) {
	gdb, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC().Unix()
	row := dbmodel.Task{
		CreatedBy:       in.OwnerID,
		Title:           in.Title,
		Description:     in.Description,
		CategoryID:      in.CategoryID,
		StatusID:        in.StatusID,
		Priority:        in.Priority,
		EstimateMinutes: in.EstimateMinutes,
		DueDate:         timeToUnix(in.DueDate),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := gdb.Create(&row).Error; err != nil {
		return nil, err
	}
	return taskFromRow(row), nil
}

// UpdateTaskFields writes the patch to a task owned by ownerID.
func (s *Store) UpdateTaskFields(ctx context.Context, ownerID, taskID int64, patch TaskPatch) error {
	gdb, err := s.conn(ctx)
	if err != nil {
		return err
	}
	updatedAt := patch.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = s.now()
	}
	assignments := map[string]any{
		"updated_at": updatedAt.UTC().Unix(),
	}
	if patch.Title != nil {
		assignments["title"] = *patch.Title
	}
	if patch.Description != nil {
		assignments["description"] = *patch.Description
	}
	if patch.CategoryID != nil {
		assignments["category_id"] = *patch.CategoryID
	}
	if patch.Done != nil {
		assignments["done"] = *patch.Done
	}
	if patch.Archived != nil {
		assignments["archived"] = *patch.Archived
	}
	if patch.Priority != nil {
		assignments["priority"] = *patch.Priority
	}
	if patch.EstimateMinutes != nil {
		assignments["estimate_minutes"] = *patch.EstimateMinutes
	}
	if patch.DueDate != nil {
		assignments["due_date"] = timeToUnix(*patch.DueDate)
	}
	if patch.ClosedOn != nil {
		assignments["closed_on"] = timeToUnix(*patch.ClosedOn)
	}
	res := gdb.Model(&dbmodel.Task{}).Where("id = ? AND created_by = ?", taskID, ownerID).Updates(assignments)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func (s *Store) GetTask(ctx context.Context, ownerID, taskID int64) (*Task, error) {
	gdb, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	var row dbmodel.Task
	err = gdb.Where("id = ? AND created_by = ?", taskID, ownerID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return taskFromRow(row), nil
}

func (s *Store) ListTasks(ctx context.Context, ownerID int64, includeArchived bool) ([]Task, error) {
	gdb, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	q := gdb.Where("created_by = ?", ownerID)
	if !includeArchived {
		q = q.Where("archived = ?", false)
	}
	rows := make([]dbmodel.Task, 0)
	if err := q.Order("created_at ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return tasksFromRows(rows), nil
}

func (s *Store) TaskTagNames(ctx context.Context, taskID int64) ([]string, error) {
	gdb, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0)
	err = gdb.Model(&dbmodel.Tag{}).
		Joins("JOIN task_tags ON task_tags.tag_id = tags.id").
		Where("task_tags.task_id = ?", taskID).
		Order("tags.name ASC").
		Pluck("tags.name", &names).Error
	if err != nil {
		return nil, err
	}
	return names, nil
}

func (s *Store) CategoryByID(ctx context.Context, ownerID, categoryID int64) (*Category, error) {
	gdb, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	var row dbmodel.Category
	err = gdb.Where("id = ? AND created_by = ?", categoryID, ownerID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &Category{ID: row.ID, OwnerID: row.CreatedBy, Name: row.Name, ColorHex: row.ColorHex}, nil
}

func (s *Store) TaskStats(ctx context.Context, ownerID int64) (TaskStats, error) {
	gdb, err := s.conn(ctx)
	if err != nil {
		return TaskStats{}, err
	}
	var stats TaskStats
	if err := gdb.Model(&dbmodel.Task{}).
		Where("created_by = ? AND archived = ?", ownerID, false).
		Count(&stats.Total).Error; err != nil {
		return TaskStats{}, err
	}
	if err := gdb.Model(&dbmodel.Task{}).
		Where("created_by = ? AND archived = ? AND done = ?", ownerID, false, true).
		Count(&stats.Completed).Error; err != nil {
		return TaskStats{}, err
	}
	return stats, nil
}

// OverdueTasks lists open tasks due before now, oldest due date first.
func (s *Store) OverdueTasks(ctx context.Context, ownerID int64, now time.Time, limit int) ([]Task, error) {
	gdb, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 5
	}
	rows := make([]dbmodel.Task, 0, limit)
	err = gdb.
		Where("created_by = ? AND done = ? AND archived = ? AND due_date > 0 AND due_date < ?", ownerID, false, false, now.UTC().Unix()).
		Order("due_date ASC").Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return tasksFromRows(rows), nil
}

func (s *Store) RecentTasks(ctx context.Context, ownerID int64, limit int) ([]Task, error) {
	gdb, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 5
	}
	rows := make([]dbmodel.Task, 0, limit)
	err = gdb.
		Where("created_by = ? AND archived = ?", ownerID, false).
		Order("updated_at DESC").Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return tasksFromRows(rows), nil
}

func escapeLike(v string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(v)
}

func taskFromRow(row dbmodel.Task) *Task {
	return &Task{
		ID:              row.ID,
		OwnerID:         row.CreatedBy,
		Title:           row.Title,
		Description:     row.Description,
		CategoryID:      row.CategoryID,
		StatusID:        row.StatusID,
		Done:            row.Done,
		Archived:        row.Archived,
		Priority:        row.Priority,
		EstimateMinutes: row.EstimateMinutes,
		DueDate:         unixOrZero(row.DueDate),
		ClosedOn:        unixOrZero(row.ClosedOn),
		CreatedAt:       unixOrZero(row.CreatedAt),
		UpdatedAt:       unixOrZero(row.UpdatedAt),
	}
}

func tasksFromRows(rows []dbmodel.Task) []Task {
	out := make([]Task, 0, len(rows))
	for _, row := range rows {
		out = append(out, *taskFromRow(row))
	}
	return out
}
