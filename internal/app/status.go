package app

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/modsync/internal/daemon"
	"github.com/blackwell-systems/modsync/internal/scheduler"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon, cache and schedule status",
	Long: `Display the current state of modsync.

Shows:
  • Whether the serve daemon is running
  • Mods directory and database location
  • Installed, resolved and outdated mod counts from the cache
  • Cache and override counts
  • Last completed refresh and the next scheduled one`,
	Example: `  # Check status
  modsync status`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	e, err := openCommandEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	out := cmd.OutOrStdout()

	daemonStatus := "stopped"
	if pidFile, err := getDefaultPIDFile(); err == nil {
		if running, err := daemon.IsRunning(pidFile); err == nil && running {
			daemonStatus = "running (" + pidFile + ")"
		}
	}

	all, err := e.refresh.Local()
	if err != nil {
		return fmt.Errorf("failed to read mods: %w", err)
	}
	resolved, updates := 0, 0
	for _, m := range all {
		if m.Resolved() {
			resolved++
		}
		if m.HasUpdate() {
			updates++
		}
	}

	cached, notFound, err := e.store.CacheCounts()
	if err != nil {
		return fmt.Errorf("failed to read cache: %w", err)
	}
	overrides, err := e.store.ListOverrides()
	if err != nil {
		return fmt.Errorf("failed to read overrides: %w", err)
	}

	lastRefresh := "never"
	if t := e.refresh.LastUpdated(); t != nil {
		lastRefresh = t.Local().Format(time.RFC3339)
	}

	var nextRun string
	if sched, loc, err := scheduler.Parse(e.cfg.Scheduler.Cron, e.cfg.Scheduler.Timezone); err != nil {
		nextRun = "invalid schedule: " + err.Error()
	} else {
		nextRun = sched.Next(time.Now().In(loc)).Format(time.RFC3339)
	}

	fmt.Fprintf(out, "Daemon:        %s\n", daemonStatus)
	fmt.Fprintf(out, "Mods dir:      %s\n", e.cfg.ModsPath)
	fmt.Fprintf(out, "Database:      %s\n", e.cfg.DBPath)
	fmt.Fprintf(out, "Mods:          %d installed, %d on CurseForge, %d outdated\n", len(all), resolved, updates)
	fmt.Fprintf(out, "Cache:         %d found, %d not found (TTL %s)\n", cached, notFound, e.cfg.CacheTTL())
	fmt.Fprintf(out, "Overrides:     %d\n", len(overrides))
	fmt.Fprintf(out, "Last refresh:  %s\n", lastRefresh)
	fmt.Fprintf(out, "Next refresh:  %s (%s, %s)\n", nextRun, e.cfg.Scheduler.Cron, e.cfg.Scheduler.Timezone)
	return nil
}
