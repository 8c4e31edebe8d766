package app

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/modsync/internal/config"
	"github.com/blackwell-systems/modsync/internal/output"
	"github.com/blackwell-systems/modsync/internal/server"
)

var (
	overrideCmd = &cobra.Command{
		Use:   "override",
		Short: "Manage manual CurseForge URLs for mods",
		Long: `Pin the CurseForge URL of a mod that cannot be found automatically, or
correct a wrong match.

An override takes precedence over the cache and over searching. Mod names
are the names shown by 'modsync list'. Changes apply on the next scan.`,
		Example: `  modsync override ls
  modsync override set "Admin UI" https://www.curseforge.com/hytale/mods/admin-ui
  modsync override rm "Admin UI"
  modsync override import overrides.txt`,
	}

	overrideListCmd = &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List URL overrides",
		Args:    cobra.NoArgs,
		RunE:    runOverrideList,
	}

	overrideSetCmd = &cobra.Command{
		Use:   "set <mod name> <url>",
		Short: "Create or replace a URL override",
		Args:  cobra.ExactArgs(2),
		RunE:  runOverrideSet,
	}

	overrideRemoveCmd = &cobra.Command{
		Use:     "rm <mod name>",
		Aliases: []string{"remove", "delete"},
		Short:   "Remove a URL override",
		Args:    cobra.ExactArgs(1),
		RunE:    runOverrideRemove,
	}

	overrideImportCmd = &cobra.Command{
		Use:   "import <file>",
		Short: "Set URL overrides from a file",
		Long: `Set URL overrides from a file with one "mod name = url" per line.
Lines starting with # are comments.`,
		Example: `  # overrides.txt
  Admin UI = https://www.curseforge.com/hytale/mods/admin-ui
  Better Map = https://www.curseforge.com/hytale/mods/better-map`,
		Args: cobra.ExactArgs(1),
		RunE: runOverrideImport,
	}
)

func init() {
	overrideCmd.AddCommand(overrideListCmd, overrideSetCmd, overrideRemoveCmd, overrideImportCmd)
}

func runOverrideList(cmd *cobra.Command, args []string) error {
	e, err := openCommandEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	overrides, err := e.store.ListOverrides()
	if err != nil {
		return fmt.Errorf("failed to list overrides: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), output.RenderOverrideTable(overrides))
	return nil
}

func runOverrideSet(cmd *cobra.Command, args []string) error {
	name, url := args[0], args[1]
	if err := server.ValidateOverrideURL(url); err != nil {
		return err
	}

	e, err := openCommandEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	if _, err := e.store.SetOverride(name, url); err != nil {
		return fmt.Errorf("failed to set override: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ %s → %s\n", name, url)
	return nil
}

func runOverrideRemove(cmd *cobra.Command, args []string) error {
	e, err := openCommandEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	deleted, err := e.store.DeleteOverride(args[0])
	if err != nil {
		return fmt.Errorf("failed to remove override: %w", err)
	}
	if !deleted {
		return fmt.Errorf("no override for %q", args[0])
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Removed override for %s\n", args[0])
	return nil
}

func runOverrideImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", args[0], err)
	}
	defer f.Close()

	entries, err := config.ParseOverrides(f)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(entries))
	for name, url := range entries {
		if err := server.ValidateOverrideURL(url); err != nil {
			return fmt.Errorf("override for %q: %w", name, err)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	e, err := openCommandEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	for _, name := range names {
		if _, err := e.store.SetOverride(name, entries[name]); err != nil {
			return fmt.Errorf("failed to set override for %s: %w", name, err)
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Imported %d overrides\n", len(names))
	return nil
}
