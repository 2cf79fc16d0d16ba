package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"taskline/internal/assistant"
	"taskline/internal/chat"
	"taskline/internal/command"
	"taskline/internal/config"
	dbmodel "taskline/internal/db"
	"taskline/internal/global"
	"taskline/internal/keyring"
	"taskline/internal/lifecycle"
	"taskline/internal/llm"
	"taskline/internal/localapi"
	"taskline/internal/logging"
	"taskline/internal/taskstore"
)

var version = "dev"
var buildTime = "unknown"

const secretFileName = ".secret"

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config.LoadDotenv()
	app := command.BuildApp(command.Deps{
		LoadConfig: config.LoadConfig,
		RunServe: func(ctx context.Context, cfg config.Config) error {
			return runServe(ctx, os.Stdout, cfg)
		},
		RunMigrateUp: runMigrateUp,
	})
	if err := app.RunContext(rootCtx, os.Args); err != nil {
		logging.NewLogger(logging.Options{Level: "error", Writer: os.Stderr, Component: "taskline"}).Error("taskline failed", "err", err)
		os.Exit(1)
	}
}

func newRuntimeLogger(cfg config.Config) *slog.Logger {
	return logging.NewLogger(logging.Options{Level: cfg.LogLevel, Writer: os.Stderr, Component: "taskline"})
}

type resolvedPaths struct {
	configDir string
	dbPath    string
}

// resolvePaths picks the config directory and database file: env first, then config.toml,
// then the default under the config directory.
func resolvePaths(cfg config.Config, fileCfg global.GlobalConfig, configDir string) resolvedPaths {
	dbPath := strings.TrimSpace(cfg.DatabasePath)
	if dbPath == "" {
		dbPath = strings.TrimSpace(fileCfg.DatabasePath)
	}
	if dbPath == "" {
		dbPath = global.DefaultDatabasePath(configDir)
	}
	return resolvedPaths{configDir: configDir, dbPath: dbPath}
}

func loadGlobalConfig(cfg config.Config) (*global.ConfigStore, global.GlobalConfig, error) {
	configDir := strings.TrimSpace(cfg.ConfigDir)
	if configDir == "" {
		dir, err := global.DefaultConfigDir()
		if err != nil {
			return nil, global.GlobalConfig{}, err
		}
		configDir = dir
	}
	store := global.NewConfigStore(configDir)
	fileCfg, err := store.LoadOrInit()
	if err != nil {
		return nil, global.GlobalConfig{}, fmt.Errorf("load %s: %w", filepath.Join(configDir, "config.toml"), err)
	}
	return store, fileCfg, nil
}

func runMigrateUp(_ context.Context, cfg config.Config) error {
	logger := newRuntimeLogger(cfg).With("module", "migrate")
	store, fileCfg, err := loadGlobalConfig(cfg)
	if err != nil {
		return err
	}
	paths := resolvePaths(cfg, fileCfg, store.Dir())
	gdb, err := dbmodel.OpenSQLiteGORMWithMigrations(paths.dbPath)
	if err != nil {
		return err
	}
	logger.Info("database migrated", "path", paths.dbPath)
	return dbmodel.Close(gdb)
}

// chatDefaults merges env overrides into the config.toml assistant defaults.
func chatDefaults(cfg config.Config, fileCfg global.GlobalConfig) chat.Defaults {
	a := fileCfg.Assistant
	settings := llm.Settings{
		BaseURL:         a.BaseURL,
		Model:           a.Model,
		Temperature:     a.Temperature,
		MaxOutputTokens: a.MaxOutputTokens,
		APIKey:          cfg.OpenAIAPIKey,
	}
	if cfg.OpenAIEndpoint != "" {
		settings.BaseURL = cfg.OpenAIEndpoint
	}
	if cfg.OpenAIModel != "" {
		settings.Model = cfg.OpenAIModel
	}
	return chat.Defaults{
		Settings:      settings,
		HistoryWindow: a.HistoryWindow,
		Timeout:       time.Duration(a.TimeoutSeconds) * time.Second,
	}
}

func runServe(ctx context.Context, out io.Writer, cfg config.Config) error {
	logger := newRuntimeLogger(cfg)
	store, fileCfg, err := loadGlobalConfig(cfg)
	if err != nil {
		return err
	}
	paths := resolvePaths(cfg, fileCfg, store.Dir())
	gdb, err := dbmodel.OpenSQLiteGORMWithMigrations(paths.dbPath)
	if err != nil {
		return fmt.Errorf("open database %s: %w", paths.dbPath, err)
	}
	ring, err := keyring.LoadOrCreate(filepath.Join(paths.configDir, secretFileName))
	if err != nil {
		_ = dbmodel.Close(gdb)
		return fmt.Errorf("load keyring: %w", err)
	}

	hub := localapi.NewWSHub(logger, fileCfg.CORS.AllowedOrigins)
	chatSvc := chat.NewService(chat.Options{
		DB:       gdb,
		LLM:      llm.NewClient(&http.Client{}),
		Engine:   assistant.NewEngine(logger),
		Defaults: chatDefaults(cfg, fileCfg),
		Notifier: hub,
		Secrets:  ring,
		Logger:   logger,
	})
	tasks := taskstore.New(gdb).WithSealer(ring)
	server := localapi.NewServer(localapi.Deps{
		Chat:           chatSvc,
		Settings:       tasks,
		Tasks:          tasks,
		ConfigStore:    store,
		Hub:            hub,
		AllowedOrigins: fileCfg.CORS.AllowedOrigins,
		DevUserID:      cfg.DevUserID,
		WebUIDir:       cfg.WebUIDir,
		Logger:         logger,
		HealthCheck: func(ctx context.Context) error {
			sqlDB, err := gdb.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	})

	port := cfg.LocalPort
	if port <= 0 {
		port = fileCfg.LocalPort
	}
	addr := net.JoinHostPort(cfg.LocalHost, strconv.Itoa(port))
	_, _ = fmt.Fprintf(out, "taskline api listening at http://%s (version=%s built=%s)\n", addr, version, buildTime)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	mgr := lifecycle.NewManager(logger)
	mgr.AddRun("http-server", func(runCtx context.Context) error {
		go func() {
			<-runCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = httpServer.Shutdown(shutdownCtx)
		}()
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	mgr.AddShutdown("close-database", func(context.Context) error {
		return dbmodel.Close(gdb)
	})
	mgr.AddShutdown("http-server-shutdown", func(shutdownCtx context.Context) error {
		err := httpServer.Shutdown(shutdownCtx)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	logger.Info("serving", "addr", addr, "database", paths.dbPath, "model", chatDefaults(cfg, fileCfg).Settings.Model)
	return mgr.StartAndWait(ctx)
}
