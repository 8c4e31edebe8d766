package app

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/modsync/internal/output"
	"github.com/blackwell-systems/modsync/internal/refresh"
	"github.com/blackwell-systems/modsync/internal/updater"
)

var (
	updateAll bool

	updateCmd = &cobra.Command{
		Use:   "update [file]",
		Short: "Install the latest CurseForge release of a mod",
		Long: `Download the newest CurseForge file of an installed mod and replace the
installed archive.

The download is written next to the mods and checked against the MD5 (or
SHA-1) hash CurseForge publishes before it replaces the installed file.
The installed file is left untouched when anything fails.

Mods are refreshed first so the latest release information is current.`,
		Example: `  # Update one mod by its file name
  modsync update AdminUI-1.0.3.jar

  # Update every mod with a newer release
  modsync update --all`,
		Args: func(cmd *cobra.Command, args []string) error {
			if updateAll && len(args) > 0 {
				return errors.New("--all does not take a file name")
			}
			if !updateAll && len(args) != 1 {
				return errors.New("specify a mod file name or --all")
			}
			return nil
		},
		RunE: runUpdate,
	}
)

func init() {
	updateCmd.Flags().BoolVar(&updateAll, "all", false, "update every mod with a newer release")
}

func runUpdate(cmd *cobra.Command, args []string) error {
	e, err := openCommandEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()

	spinner := output.NewSpinner("Checking for updates")
	spinner.SetWriter(out)
	spinner.Start()
	if _, err := e.refresh.Refresh(ctx, false); err != nil && !errors.Is(err, refresh.ErrInProgress) {
		spinner.Stop()
		return fmt.Errorf("failed to refresh mods: %w", err)
	}
	spinner.Stop()

	if updateAll {
		res, err := e.updater.UpdateAll(ctx)
		if err != nil {
			return fmt.Errorf("bulk update interrupted: %w", err)
		}
		for _, r := range res.Updated {
			fmt.Fprintf(out, "✓ %s: %s → %s\n", r.Mod, r.OldFileName, r.NewFileName)
		}
		for _, f := range res.Failed {
			fmt.Fprintf(out, "✗ %s: %s\n", f.FileName, f.Error)
		}
		if len(res.Updated) == 0 && len(res.Failed) == 0 {
			fmt.Fprintln(out, "All mods are up to date.")
			return nil
		}
		fmt.Fprintf(out, "\n%d updated, %d failed\n", len(res.Updated), len(res.Failed))
		if len(res.Failed) > 0 {
			return fmt.Errorf("%d updates failed", len(res.Failed))
		}
		return nil
	}

	res, err := e.updater.Update(ctx, args[0], updater.Options{})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ Updated %s to %s (%s)\n", res.Mod, res.Version, res.NewFileName)
	return nil
}
