package app

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/modsync/internal/daemon"
	"github.com/blackwell-systems/modsync/internal/log"
	"github.com/blackwell-systems/modsync/internal/output"
	"github.com/blackwell-systems/modsync/internal/scheduler"
	"github.com/blackwell-systems/modsync/internal/server"
	"github.com/blackwell-systems/modsync/internal/watcher"
)

var (
	serveDaemon      bool
	serveDaemonChild bool
	servePIDFile     string
	serveLogFile     string
	serveStop        bool
	serveListen      string

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with scheduled refreshes",
		Long: `Serve the modsync HTTP API and keep the mod list fresh.

While serving, modsync:
  • Refreshes on startup and then on the configured CRON schedule
  • Refreshes when mod archives are added, replaced or removed
  • Exposes mods, updates and URL overrides under /api
  • Exposes Prometheus metrics on /metrics

Serve modes:
  • Foreground (default): Run in current terminal with Ctrl+C to stop
  • Daemon: Run as background process
  • Stop: Stop a running daemon`,
		Example: `  # Run in foreground (Ctrl+C to stop)
  modsync serve

  # Run as background daemon
  modsync serve --daemon

  # Stop running daemon
  modsync serve --stop

  # Listen on another address
  modsync serve --listen 127.0.0.1:9090`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
)

func init() {
	serveCmd.Flags().BoolVar(&serveDaemon, "daemon", false, "run as background daemon")
	serveCmd.Flags().BoolVar(&serveDaemonChild, strings.TrimPrefix(daemon.ChildFlag, "--"), false, "internal flag for daemon child process")
	serveCmd.Flags().StringVar(&servePIDFile, "pid-file", "", "PID file path (default: ~/.config/modsync/serve.pid)")
	serveCmd.Flags().StringVar(&serveLogFile, "log-file", "", "log file path (default: ~/.config/modsync/serve.log)")
	serveCmd.Flags().BoolVar(&serveStop, "stop", false, "stop running daemon")
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "listen address (default: :8080)")

	// Hide the internal daemon-child flag from help
	serveCmd.Flags().MarkHidden(strings.TrimPrefix(daemon.ChildFlag, "--"))
}

func runServe(cmd *cobra.Command, args []string) error {
	// Get default paths if not specified
	if servePIDFile == "" {
		defaultPID, err := getDefaultPIDFile()
		if err != nil {
			return fmt.Errorf("failed to get default PID file path: %w", err)
		}
		servePIDFile = defaultPID
	}

	if serveLogFile == "" {
		defaultLog, err := getDefaultLogFile()
		if err != nil {
			return fmt.Errorf("failed to get default log file path: %w", err)
		}
		serveLogFile = defaultLog
	}

	// Handle stop command
	if serveStop {
		return stopServeDaemon(cmd)
	}

	// Handle daemon mode
	if serveDaemon && !serveDaemonChild {
		return startServeDaemon(cmd)
	}

	if serveDaemonChild {
		defer daemon.RemovePID(servePIDFile)
	}

	return runServeForeground(cmd)
}

func stopServeDaemon(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()

	// Check if daemon is running
	running, err := daemon.IsRunning(servePIDFile)
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}

	if !running {
		fmt.Fprintln(out, "Daemon is not running")
		return nil
	}

	spinner := output.NewSpinner("Stopping daemon")
	spinner.SetWriter(out)
	spinner.Start()
	if err := daemon.Stop(servePIDFile); err != nil {
		spinner.Stop()
		return fmt.Errorf("failed to stop daemon: %w", err)
	}
	spinner.StopWithMessage("✓ Daemon stopped")

	return nil
}

func startServeDaemon(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()

	pid, err := daemon.Start(servePIDFile, serveLogFile, childArgs(os.Args[1:])...)
	if err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	fmt.Fprintf(out, "✓ modsync daemon started (PID %d)\n", pid)
	fmt.Fprintf(out, "  PID file: %s\n", servePIDFile)
	fmt.Fprintf(out, "  Log file: %s\n", serveLogFile)
	fmt.Fprintf(out, "\nTo stop: modsync serve --stop\n")

	return nil
}

// childArgs drops the --daemon flag so the child runs in the foreground.
func childArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		if a == "--daemon" || a == "--daemon=true" {
			continue
		}
		out = append(out, a)
	}
	return out
}

func runServeForeground(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveListen != "" {
		cfg.Listen = serveListen
	}
	logger, err := newLogger(cmd.ErrOrStderr(), cfg, false)
	if err != nil {
		return err
	}

	e, err := openEnv(cfg, logger)
	if err != nil {
		return err
	}
	defer e.Close()

	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched := scheduler.New(cfg.Scheduler.Cron, cfg.Scheduler.Timezone, e.refresh, log.Component(logger, "scheduler"))
	sched.Start(cfg.Scheduler.RefreshOnStart)
	defer sched.Stop()

	if cfg.Watch.Enabled {
		w, err := watcher.New(cfg.ModsPath, e.refresh, cfg.Debounce(), log.Component(logger, "watcher"))
		if err != nil {
			return fmt.Errorf("failed to create watcher: %w", err)
		}
		if err := w.Start(ctx); err != nil {
			logger.Warn("mods directory is not watched", "error", err)
		} else {
			defer w.Stop()
		}
	}

	srv := server.New(server.Deps{
		Refresher: e.refresh,
		Updater:   e.updater,
		Overrides: e.store,
		Scheduler: sched,
		Metrics:   e.metrics.Handler(),
	}, log.Component(logger, "http"))

	err = srv.ListenAndServe(ctx, cfg.Listen)
	logger.Info("shutting down")
	return err
}
