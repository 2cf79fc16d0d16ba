package global

import (
	"path/filepath"
	"testing"
)

func TestDefaultConfigDir_UsesOverride(t *testing.T) {
	t.Setenv("TASKLINE_CONFIG_DIR", "/tmp/taskline-config-test")
	got, err := DefaultConfigDir()
	if err != nil {
		t.Fatalf("DefaultConfigDir returned error: %v", err)
	}
	if got != "/tmp/taskline-config-test" {
		t.Fatalf("expected override path, got %q", got)
	}
}

func TestDefaultConfigDir_FallsBackToHome(t *testing.T) {
	t.Setenv("TASKLINE_CONFIG_DIR", "")
	home := t.TempDir()
	t.Setenv("HOME", home)
	got, err := DefaultConfigDir()
	if err != nil {
		t.Fatalf("DefaultConfigDir returned error: %v", err)
	}
	if want := filepath.Join(home, ".config", "taskline"); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
