package app

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/modsync/internal/catalog"
	"github.com/blackwell-systems/modsync/internal/config"
	"github.com/blackwell-systems/modsync/internal/log"
	"github.com/blackwell-systems/modsync/internal/matcher"
	"github.com/blackwell-systems/modsync/internal/metrics"
	"github.com/blackwell-systems/modsync/internal/refresh"
	"github.com/blackwell-systems/modsync/internal/scanner"
	"github.com/blackwell-systems/modsync/internal/store"
	"github.com/blackwell-systems/modsync/internal/updater"
)

// env is the set of services a command works with.
type env struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *store.Store
	metrics *metrics.Metrics
	catalog *catalog.Client
	refresh *refresh.Service
	updater *updater.Installer
}

// openEnv opens the database and wires the services from cfg.
func openEnv(cfg *config.Config, logger *slog.Logger) (*env, error) {
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := store.New(cfg.DBPath, store.WithCacheTTL(cfg.CacheTTL()))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Create schema if needed
	if err := db.CreateSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create database schema: %w", err)
	}

	m := metrics.New()

	cat := catalog.New(catalog.Options{
		BaseURL:  cfg.CurseForge.BaseURL,
		APIKey:   cfg.CurseForge.APIKey,
		GameID:   cfg.CurseForge.GameID,
		Logger:   log.Component(logger, "curseforge"),
		Observer: m.CatalogRequest,
	})

	svc := refresh.NewService(
		refresh.Config{
			ModsPath:  cfg.ModsPath,
			RateLimit: cfg.RateLimit(),
			PageSize:  cfg.CurseForge.PageSize,
			MaxOffset: cfg.CurseForge.MaxOffset,
		},
		scanner.New(log.Component(logger, "scanner")),
		cat,
		db,
		matcher.New(cfg.Matcher.FuzzyThreshold),
		refresh.WithRecorder(m),
		refresh.WithLogger(log.Component(logger, "refresh")),
	)

	inst := updater.New(cfg.ModsPath, cat, svc, db,
		updater.WithRecorder(m),
		updater.WithLogger(log.Component(logger, "updater")),
	)

	return &env{
		cfg:     cfg,
		logger:  logger,
		store:   db,
		metrics: m,
		catalog: cat,
		refresh: svc,
		updater: inst,
	}, nil
}

// Close releases the database.
func (e *env) Close() error {
	return e.store.Close()
}

// openCommandEnv loads the configuration and opens the services for a
// one-shot command.
func openCommandEnv(cmd *cobra.Command) (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cmd.ErrOrStderr(), cfg, true)
	if err != nil {
		return nil, err
	}
	return openEnv(cfg, logger)
}
