package assistant

import (
	"bytes"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	dbmodel "taskline/internal/db"
	"taskline/internal/taskstore"

	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	gdb, err := dbmodel.OpenSQLite(filepath.Join(t.TempDir(), "taskline.db"))
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	t.Cleanup(func() { _ = dbmodel.Close(gdb) })
	if err := dbmodel.SyncSchema(gdb); err != nil {
		t.Fatalf("sync schema failed: %v", err)
	}
	return gdb
}

func seedStatus(t *testing.T, gdb *gorm.DB, title string) int64 {
	t.Helper()

	row := dbmodel.Status{Title: title}
	if err := gdb.Create(&row).Error; err != nil {
		t.Fatalf("seed status %q failed: %v", title, err)
	}
	return row.ID
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

// runTurn executes raw in one transaction the way the chat service does.
func runTurn(t *testing.T, gdb *gorm.DB, engine *Engine, owner int64, raw string) (string, Report) {
	t.Helper()

	var (
		clean  string
		report Report
	)
	err := gdb.Transaction(func(tx *gorm.DB) error {
		var runErr error
		clean, report, runErr = engine.Run(t.Context(), taskstore.New(tx), owner, raw)
		return runErr
	})
	if err != nil {
		t.Fatalf("run turn failed: %v", err)
	}
	return clean, report
}

func mustFindTask(t *testing.T, gdb *gorm.DB, owner int64, title string) *taskstore.Task {
	t.Helper()

	task, err := taskstore.New(gdb).FindTaskByExactTitle(t.Context(), owner, title)
	if err != nil {
		t.Fatalf("find task %q failed: %v", title, err)
	}
	if task == nil {
		t.Fatalf("task %q not found", title)
	}
	return task
}
