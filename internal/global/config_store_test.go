package global

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigStore_LoadOrInit_CreatesDefaultFile(t *testing.T) {
	dir := t.TempDir()
	store := NewConfigStore(dir)

	cfg, err := store.LoadOrInit()
	if err != nil {
		t.Fatalf("LoadOrInit failed: %v", err)
	}
	if cfg.LocalPort != DefaultLocalPort {
		t.Fatalf("expected default local port %d, got %d", DefaultLocalPort, cfg.LocalPort)
	}

	b, err := os.ReadFile(filepath.Join(dir, "config.toml"))
	if err != nil {
		t.Fatalf("read config.toml failed: %v", err)
	}
	text := string(b)
	if !strings.Contains(text, "local_port = 4621") {
		t.Fatalf("expected local_port in toml, got: %s", text)
	}
	if !strings.Contains(text, "[assistant]") || !strings.Contains(text, "[cors]") {
		t.Fatalf("expected assistant and cors tables in toml, got: %s", text)
	}
	if !strings.Contains(text, "model = 'gpt-4o-mini'") && !strings.Contains(text, "model = \"gpt-4o-mini\"") {
		t.Fatalf("expected assistant.model in toml, got: %s", text)
	}
	if !strings.Contains(text, "history_window = 10") {
		t.Fatalf("expected assistant.history_window in toml, got: %s", text)
	}
	if strings.Contains(text, "database_path") {
		t.Fatalf("empty database_path should be omitted, got: %s", text)
	}
	if cfg.Assistant.MaxOutputTokens != DefaultMaxOutputTokens || cfg.Assistant.TimeoutSeconds != DefaultTimeoutSeconds {
		t.Fatalf("unexpected assistant defaults %+v", cfg.Assistant)
	}
	if len(cfg.CORS.AllowedOrigins) != 1 || cfg.CORS.AllowedOrigins[0] != "http://localhost:5173" {
		t.Fatalf("unexpected cors origins %v", cfg.CORS.AllowedOrigins)
	}
}

func TestConfigStore_SaveThenLoad_NormalizesValues(t *testing.T) {
	dir := t.TempDir()
	store := NewConfigStore(dir)

	err := store.Save(GlobalConfig{
		LocalPort:    9000,
		DatabasePath: "  /var/lib/taskline/app.db ",
		Assistant:    AssistantDefaults{Model: " gpt-4.1 ", Temperature: 5, HistoryWindow: 4},
		CORS:         CORSConfig{AllowedOrigins: []string{"https://app.example/", "https://app.example", " "}},
	})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	cfg, err := store.LoadOrInit()
	if err != nil {
		t.Fatalf("LoadOrInit failed: %v", err)
	}
	if cfg.LocalPort != 9000 || cfg.DatabasePath != "/var/lib/taskline/app.db" {
		t.Fatalf("unexpected top-level config %+v", cfg)
	}
	if cfg.Assistant.Model != "gpt-4.1" || cfg.Assistant.Temperature != DefaultTemperature || cfg.Assistant.HistoryWindow != 4 {
		t.Fatalf("unexpected assistant config %+v", cfg.Assistant)
	}
	if len(cfg.CORS.AllowedOrigins) != 1 || cfg.CORS.AllowedOrigins[0] != "https://app.example" {
		t.Fatalf("expected deduped origins, got %v", cfg.CORS.AllowedOrigins)
	}
	if _, err := os.Stat(filepath.Join(dir, "config.toml.tmp")); !os.IsNotExist(err) {
		t.Fatalf("expected temp file to be renamed away, stat err=%v", err)
	}
}

func TestConfigStore_LoadOrInit_RejectsBrokenTOML(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte("local_port = ["), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewConfigStore(dir).LoadOrInit(); err == nil {
		t.Fatal("expected parse error")
	}
}
