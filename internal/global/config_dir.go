package global

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultConfigDir returns ~/.config/taskline.
func DefaultConfigDir() (string, error) {
	if override := strings.TrimSpace(os.Getenv("TASKLINE_CONFIG_DIR")); override != "" {
		return override, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "taskline"), nil
}

// DefaultDatabasePath is the SQLite file used when the config does not name one.
func DefaultDatabasePath(configDir string) string {
	return filepath.Join(configDir, "taskline.db")
}
