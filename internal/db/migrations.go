package db

import (
	"errors"

	"taskline/internal/db/migration"

	"gorm.io/gorm"
)

// SyncSchema creates/updates tables and indexes from models. Table structure changes do not use versioned migrations.
func SyncSchema(db *gorm.DB) error {
	if db == nil {
		return errors.New("db is required")
	}
	if err := db.AutoMigrate(
		&User{},
		&Status{},
		&Category{},
		&Tag{},
		&Task{},
		&TaskTag{},
		&Conversation{},
		&Message{},
		&UserSettings{},
	); err != nil {
		return err
	}
	for _, stmt := range []string{
		`CREATE INDEX IF NOT EXISTS idx_tasks_owner_archived_title ON tasks(created_by, archived, title);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_owner_updated ON tasks(created_by, updated_at DESC, id DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_task_tags_tag_id ON task_tags(tag_id);`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_user_updated ON conversations(user_id, updated_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation_created ON messages(conversation_id, created_at, id);`,
	} {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

// MigrateUp syncs schema then runs the data migrations (seed rows).
func MigrateUp(db *gorm.DB) error {
	if err := SyncSchema(db); err != nil {
		return err
	}
	migration.Init()
	return migration.RunAll(db)
}
