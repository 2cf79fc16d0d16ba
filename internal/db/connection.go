package db

import (
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// connParams apply to every connection the pool opens. BEGIN IMMEDIATE takes the write lock
// up front, so concurrent writers (including other processes) queue on busy_timeout instead
// of failing mid-transaction with SQLITE_BUSY.
const connParams = "_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

// OpenSQLiteGORMWithMigrations opens the database file and applies schema and seeds.
func OpenSQLiteGORMWithMigrations(path string) (*gorm.DB, error) {
	gdb, err := OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	if err := MigrateUp(gdb); err != nil {
		closeGORM(gdb)
		return nil, err
	}
	return gdb, nil
}

// OpenSQLite opens the database without running migrations. The pool is pinned to one
// connection; cross-process writers are serialized by the immediate transaction lock.
func OpenSQLite(path string) (*gorm.DB, error) {
	if !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	gdb, err := gorm.Open(sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        sqliteDSN(path),
	}, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	return gdb, nil
}

func sqliteDSN(path string) string {
	dsn := path
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&" + connParams
	}
	return dsn + "?" + connParams
}

// Close releases the pool behind gdb.
func Close(gdb *gorm.DB) error {
	if gdb == nil {
		return nil
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func closeGORM(gdb *gorm.DB) {
	_ = Close(gdb)
}
