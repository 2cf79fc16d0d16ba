package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process environment. File-backed settings live in global.GlobalConfig;
// values here win when both are set.
type Config struct {
	LogLevel       string
	LocalHost      string
	LocalPort      int
	ConfigDir      string
	DatabasePath   string
	OpenAIEndpoint string
	OpenAIModel    string
	OpenAIAPIKey   string
	DevUserID      int64
	WebUIDir       string
}

var (
	cacheTTL   = 10 * time.Second
	nowFunc    = time.Now
	cacheMu    sync.RWMutex
	cachedCfg  Config
	cachedAt   time.Time
	cacheValid bool

	// defaultLocalPort may be set at build time with -ldflags "-X".
	defaultLocalPort = ""
	dotenvOnce       sync.Once
)

// LoadDotenv reads .env files into the environment without overriding variables that are
// already set. Missing files are ignored.
func LoadDotenv(paths ...string) {
	dotenvOnce.Do(func() {
		if len(paths) == 0 {
			paths = []string{".env"}
		}
		for _, p := range paths {
			if _, err := os.Stat(p); err != nil {
				continue
			}
			_ = godotenv.Load(p)
		}
	})
}

func LoadConfig() Config {
	cfg := loadFromEnv()
	cacheMu.Lock()
	cachedCfg = cfg
	cachedAt = nowFunc()
	cacheValid = true
	cacheMu.Unlock()
	return cfg
}

func GetConfig() *Config {
	now := nowFunc()
	cacheMu.RLock()
	valid := cacheValid && now.Sub(cachedAt) < cacheTTL
	if valid {
		out := cachedCfg
		cacheMu.RUnlock()
		return &out
	}
	cacheMu.RUnlock()

	cfg := loadFromEnv()
	cacheMu.Lock()
	cachedCfg = cfg
	cachedAt = now
	cacheValid = true
	cacheMu.Unlock()

	out := cfg
	return &out
}

func loadFromEnv() Config {
	level := os.Getenv("TASKLINE_LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	localHost := os.Getenv("TASKLINE_LOCAL_HOST")
	if localHost == "" {
		localHost = "127.0.0.1"
	}
	localPort := atoiOrDefault(defaultLocalPort, 0)
	if p := os.Getenv("TASKLINE_LOCAL_PORT"); p != "" {
		if n := atoiOrDefault(p, 0); n > 0 {
			localPort = n
		}
	}

	return Config{
		LogLevel:       level,
		LocalHost:      localHost,
		LocalPort:      localPort,
		ConfigDir:      strings.TrimSpace(os.Getenv("TASKLINE_CONFIG_DIR")),
		DatabasePath:   strings.TrimSpace(os.Getenv("TASKLINE_DB_PATH")),
		OpenAIEndpoint: strings.TrimSpace(os.Getenv("OPENAI_ENDPOINT")),
		OpenAIModel:    strings.TrimSpace(os.Getenv("OPENAI_MODEL")),
		OpenAIAPIKey:   strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		DevUserID:      int64(atoiOrDefault(os.Getenv("TASKLINE_DEV_USER_ID"), 0)),
		WebUIDir:       strings.TrimSpace(os.Getenv("TASKLINE_WEBUI_DIR")),
	}
}

func atoiOrDefault(v string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
