package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/modsync/internal/mods"
	"github.com/blackwell-systems/modsync/internal/output"
	"github.com/blackwell-systems/modsync/internal/refresh"
)

var (
	scanForce bool
	scanQuiet bool

	scanCmd = &cobra.Command{
		Use:   "scan",
		Short: "Refresh installed mods against CurseForge",
		Long: `Read every mod archive in the mods directory and look each one up on
CurseForge.

Mods are resolved from their manifest URL, a URL override or the cache
first. The rest are searched on CurseForge by author and then by browsing
the catalog, which is paced to stay within the API rate limit. Results are
cached so later scans only search for new or unknown mods.

The scan can be interrupted with Ctrl+C; mods resolved so far stay cached.`,
		Example: `  # Refresh using the cache
  modsync scan

  # Ignore the cache and search everything again
  modsync scan --force

  # Scan quietly (suppress output)
  modsync scan --quiet`,
		RunE: runScan,
	}
)

func init() {
	scanCmd.Flags().BoolVar(&scanForce, "force", false, "ignore cached resolutions")
	scanCmd.Flags().BoolVar(&scanQuiet, "quiet", false, "suppress output")
}

func runScan(cmd *cobra.Command, args []string) error {
	e, err := openCommandEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	if !scanQuiet {
		fmt.Fprintf(out, "Scanning %s...\n", e.cfg.ModsPath)
	}

	all, err := refreshWithProgress(ctx, e.refresh, scanForce, scanQuiet, cmd)
	if err != nil {
		return fmt.Errorf("failed to refresh mods: %w", err)
	}

	if scanQuiet {
		return nil
	}

	fmt.Fprintln(out)
	fmt.Fprint(out, output.RenderSummary(all, e.refresh.LastUpdated()))
	fmt.Fprintln(out)
	fmt.Fprint(out, output.RenderModTable(all, false))
	return nil
}

// refreshWithProgress runs a refresh while drawing its progress.
func refreshWithProgress(ctx context.Context, svc *refresh.Service, force, quiet bool, cmd *cobra.Command) ([]mods.Mod, error) {
	if quiet {
		return svc.Refresh(ctx, force)
	}

	bar := output.NewProgress()
	bar.SetWriter(cmd.OutOrStdout())

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if p := svc.Progress(); p != nil {
					bar.Set(p.Processed, p.Total, p.CurrentMod)
				}
			}
		}
	}()

	all, err := svc.Refresh(ctx, force)
	close(done)
	bar.Finish()
	return all, err
}
