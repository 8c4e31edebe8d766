package app

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/modsync/internal/output"
)

var (
	listUpdates bool
	listJSON    bool

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List installed mods and what is known about them",
		Long: `List installed mods with their CurseForge match and latest version.

list does not search CurseForge. It shows what the manifests, URL
overrides and the cache already know; run 'modsync scan' to look up the
rest.`,
		Example: `  # All mods
  modsync list

  # Only mods with a newer release
  modsync list --updates

  # Machine-readable output
  modsync list --json`,
		Args: cobra.NoArgs,
		RunE: runList,
	}
)

func init() {
	listCmd.Flags().BoolVar(&listUpdates, "updates", false, "only show mods with a newer release")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "print mods as JSON")
}

func runList(cmd *cobra.Command, args []string) error {
	e, err := openCommandEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	all, err := e.refresh.Local()
	if err != nil {
		return fmt.Errorf("failed to list mods: %w", err)
	}

	out := cmd.OutOrStdout()
	if listJSON {
		if listUpdates {
			filtered := all[:0]
			for _, m := range all {
				if m.HasUpdate() {
					filtered = append(filtered, m)
				}
			}
			all = filtered
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(all)
	}

	fmt.Fprint(out, output.RenderModTable(all, listUpdates))
	fmt.Fprintln(out)
	fmt.Fprint(out, output.RenderSummary(all, e.refresh.LastUpdated()))
	return nil
}
