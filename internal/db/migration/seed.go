package migration

import (
	"time"

	"gorm.io/gorm"
)

// SystemUserID owns the seeded statuses.
const SystemUserID int64 = 0

// DefaultStatuses are seeded on first migration. Task creation prefers "todo".
var DefaultStatuses = []struct {
	Title       string
	Description string
}{
	{Title: "todo", Description: "Not started"},
	{Title: "in_progress", Description: "Being worked on"},
	{Title: "done", Description: "Finished"},
}

// The seed steps write through raw tables so they do not depend on the model package.
func seedSystemUser(m *Migration) error {
	var n int64
	if err := m.DB.Table("users").Where("id = ?", SystemUserID).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	m.Log("creating system user")
	return m.DB.Table("users").Create(map[string]any{
		"id":         SystemUserID,
		"username":   "system",
		"email":      "system@example.com",
		"created_at": time.Now().UTC().Unix(),
	}).Error
}

func seedDefaultStatuses(m *Migration) error {
	now := time.Now().UTC().Unix()
	return m.DB.Transaction(func(tx *gorm.DB) error {
		for _, st := range DefaultStatuses {
			var n int64
			if err := tx.Table("statuses").Where("title = ?", st.Title).Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				continue
			}
			m.Log("seeding status ", st.Title)
			if err := tx.Table("statuses").Create(map[string]any{
				"title":       st.Title,
				"description": st.Description,
				"created_by":  SystemUserID,
				"created_at":  now,
				"updated_at":  now,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
