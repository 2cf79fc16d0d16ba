package global

import (
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	configTOMLFileName = "config.toml"

	DefaultLocalPort       = 4621
	DefaultModel           = "gpt-4o-mini"
	DefaultTemperature     = 0.7
	DefaultMaxOutputTokens = 1000
	DefaultHistoryWindow   = 10
	DefaultTimeoutSeconds  = 30
)

// AssistantDefaults apply to users that have not saved their own AI settings. The API key
// never lives in this file; it comes from the environment or the user's settings.
type AssistantDefaults struct {
	BaseURL         string  `json:"base_url" toml:"base_url"`
	Model           string  `json:"model" toml:"model"`
	Temperature     float64 `json:"temperature" toml:"temperature"`
	MaxOutputTokens int     `json:"max_output_tokens" toml:"max_output_tokens"`
	HistoryWindow   int     `json:"history_window" toml:"history_window"`
	TimeoutSeconds  int     `json:"timeout_seconds" toml:"timeout_seconds"`
}

type CORSConfig struct {
	AllowedOrigins []string `json:"allowed_origins" toml:"allowed_origins"`
}

type GlobalConfig struct {
	LocalPort    int               `json:"local_port" toml:"local_port"`
	DatabasePath string            `json:"database_path,omitempty" toml:"database_path,omitempty"`
	Assistant    AssistantDefaults `json:"assistant" toml:"assistant"`
	CORS         CORSConfig        `json:"cors" toml:"cors"`
}

type ConfigStore struct {
	dir string
}

func NewConfigStore(dir string) *ConfigStore {
	return &ConfigStore{dir: dir}
}

func (s *ConfigStore) Dir() string {
	return s.dir
}

func (s *ConfigStore) LoadOrInit() (GlobalConfig, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return GlobalConfig{}, err
	}

	path := filepath.Join(s.dir, configTOMLFileName)
	if b, err := os.ReadFile(path); err == nil {
		var cfg GlobalConfig
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return GlobalConfig{}, err
		}
		return normalizeConfig(cfg), nil
	} else if !os.IsNotExist(err) {
		return GlobalConfig{}, err
	}

	cfg := normalizeConfig(GlobalConfig{})
	if err := writeTOMLAtomically(path, cfg); err != nil {
		return GlobalConfig{}, err
	}
	return cfg, nil
}

func (s *ConfigStore) Save(cfg GlobalConfig) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	return writeTOMLAtomically(filepath.Join(s.dir, configTOMLFileName), normalizeConfig(cfg))
}

func normalizeConfig(cfg GlobalConfig) GlobalConfig {
	if cfg.LocalPort <= 0 {
		cfg.LocalPort = DefaultLocalPort
	}
	cfg.DatabasePath = strings.TrimSpace(cfg.DatabasePath)
	cfg.Assistant = normalizeAssistant(cfg.Assistant)
	cfg.CORS.AllowedOrigins = normalizeOrigins(cfg.CORS.AllowedOrigins)
	return cfg
}

func normalizeAssistant(a AssistantDefaults) AssistantDefaults {
	a.BaseURL = strings.TrimSpace(a.BaseURL)
	a.Model = strings.TrimSpace(a.Model)
	if a.Model == "" {
		a.Model = DefaultModel
	}
	if a.Temperature < 0 || a.Temperature > 2 {
		a.Temperature = DefaultTemperature
	}
	if a.MaxOutputTokens <= 0 {
		a.MaxOutputTokens = DefaultMaxOutputTokens
	}
	if a.HistoryWindow <= 0 {
		a.HistoryWindow = DefaultHistoryWindow
	}
	if a.TimeoutSeconds <= 0 {
		a.TimeoutSeconds = DefaultTimeoutSeconds
	}
	return a
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, origin := range in {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "" {
			continue
		}
		if _, ok := seen[origin]; ok {
			continue
		}
		seen[origin] = struct{}{}
		out = append(out, origin)
	}
	if len(out) == 0 {
		out = append(out, "http://localhost:5173")
	}
	return out
}

func writeTOMLAtomically(path string, v any) error {
	b, err := toml.Marshal(v)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
