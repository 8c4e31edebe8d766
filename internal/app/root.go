package app

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/modsync/internal/config"
	"github.com/blackwell-systems/modsync/internal/log"
)

var (
	configPath string
	dbPath     string
	modsPath   string
	logLevel   string

	// RootCmd is the root command for modsync
	RootCmd = &cobra.Command{
		Use:   "modsync",
		Short: "Keep Hytale server mods in sync with CurseForge",
		Long: `modsync reads the mods installed on a Hytale server, finds each of them
on CurseForge and reports which ones have a newer release.

Mods are resolved in order from the URL in their manifest, a manual URL
override, the local cache and finally a CurseForge search by author and by
browsing the catalog. Found mods can be updated in place; downloads are
verified against the published file hash before replacing the installed
archive.

Quick Start:
  1. modsync scan
  2. modsync list --updates
  3. modsync update --all

Run 'modsync serve' to keep a daemon refreshing on a schedule and expose
the HTTP API.

Examples:
  # Refresh and show which mods are outdated
  modsync scan

  # Pin a mod that cannot be found automatically
  modsync override set "Admin UI" https://www.curseforge.com/hytale/mods/admin-ui

  # Update one mod
  modsync update AdminUI-1.0.3.jar

  # Run the API in the background
  modsync serve --daemon`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	// Global flags
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: ~/.config/modsync/config.yaml)")
	RootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (default: ~/.config/modsync/modsync.db)")
	RootCmd.PersistentFlags().StringVar(&modsPath, "mods", "", "mods directory (default: /app/mods)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	// Enable cobra's built-in suggestion feature for unknown subcommands
	RootCmd.SuggestionsMinimumDistance = 2

	// Register subcommands
	RootCmd.AddCommand(scanCmd)
	RootCmd.AddCommand(listCmd)
	RootCmd.AddCommand(updateCmd)
	RootCmd.AddCommand(overrideCmd)
	RootCmd.AddCommand(statusCmd)
	RootCmd.AddCommand(serveCmd)
}

// Execute runs the root command
func Execute() error {
	return RootCmd.Execute()
}

// loadConfig loads the config file and applies command-line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if modsPath != "" {
		cfg.ModsPath = modsPath
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

// newLogger builds the logger for a command. One-shot commands only show
// warnings unless a level was asked for on the command line.
func newLogger(w io.Writer, cfg *config.Config, oneShot bool) (*slog.Logger, error) {
	name := cfg.Log.Level
	if oneShot && logLevel == "" {
		name = "warn"
	}
	level, err := log.ParseLevel(name)
	if err != nil {
		return nil, err
	}
	return log.New(w, level), nil
}

// getDefaultPIDFile returns the default PID file path
func getDefaultPIDFile() (string, error) {
	return stateFile("serve.pid")
}

// getDefaultLogFile returns the default log file path
func getDefaultLogFile() (string, error) {
	return stateFile("serve.log")
}

func stateFile(name string) (string, error) {
	dir, err := config.Dir()
	if err != nil {
		return "", fmt.Errorf("failed to get config directory: %w", err)
	}

	// Create the config directory if it doesn't exist
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create modsync directory: %w", err)
	}

	return filepath.Join(dir, name), nil
}
