// Package output provides terminal output utilities for modsync.
//
// This package includes:
//   - Table rendering for mods and URL overrides
//   - A progress bar for refreshes and a spinner for downloads
//   - Human-readable formatting for versions and dates
//
// Tables use plain characters and ANSI colour codes when stdout is a
// terminal. Progress indicators are safe for concurrent use.
package output

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/blackwell-systems/modsync/internal/mods"
	"github.com/blackwell-systems/modsync/internal/store"
)

const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorGray   = "\033[90m"
)

// IsColorEnabled returns true if ANSI color codes should be emitted.
// It checks that os.Stdout is a TTY and that the NO_COLOR env var is not set.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

func colorize(color, text string) string {
	if IsColorEnabled() {
		return color + text + colorReset
	}
	return text
}

// RenderModTable renders installed mods in the given order. With
// updatesOnly, mods without a newer release are left out.
func RenderModTable(all []mods.Mod, updatesOnly bool) string {
	var rows []mods.Mod
	for _, m := range all {
		if !updatesOnly || m.HasUpdate() {
			rows = append(rows, m)
		}
	}
	if len(rows) == 0 {
		if updatesOnly {
			return "All mods are up to date.\n"
		}
		return "No mods found.\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-28s %-14s %-14s %-8s %s\n",
		"Mod", "Version", "Latest", "Update", "Found Via"))
	sb.WriteString(strings.Repeat("─", 80))
	sb.WriteString("\n")

	for _, m := range rows {
		update := ""
		if m.HasUpdate() {
			update = colorize(colorGreen, pad("yes", 8))
		} else {
			update = pad("", 8)
		}

		sb.WriteString(fmt.Sprintf("%-28s %-14s %-14s %s %s\n",
			truncate(m.Name, 28),
			truncate(formatVersion(m.Version), 14),
			truncate(formatVersion(m.LatestVersion), 14),
			update,
			formatVia(m.FoundVia)))
	}

	return sb.String()
}

// RenderSummary renders a one-line count of resolved mods and updates.
func RenderSummary(all []mods.Mod, lastUpdated *time.Time) string {
	resolved, updates := 0, 0
	for _, m := range all {
		if m.Resolved() {
			resolved++
		}
		if m.HasUpdate() {
			updates++
		}
	}

	last := "never"
	if lastUpdated != nil {
		last = formatRelativeTime(*lastUpdated)
	}

	updateStr := fmt.Sprintf("%d updates available", updates)
	if updates == 1 {
		updateStr = "1 update available"
	}
	if updates > 0 {
		updateStr = colorize(colorYellow, updateStr)
	}

	return fmt.Sprintf("%d mods · %d on CurseForge · %s · last refresh %s\n",
		len(all), resolved, updateStr, last)
}

// RenderOverrideTable renders URL overrides.
func RenderOverrideTable(overrides []*store.Override) string {
	if len(overrides) == 0 {
		return "No URL overrides.\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-28s %-50s %s\n", "Mod", "URL", "Changed"))
	sb.WriteString(strings.Repeat("─", 92))
	sb.WriteString("\n")

	for _, o := range overrides {
		changed := o.CreatedAt
		if o.UpdatedAt != nil {
			changed = *o.UpdatedAt
		}
		sb.WriteString(fmt.Sprintf("%-28s %-50s %s\n",
			truncate(o.Name, 28),
			truncate(o.URL, 50),
			formatRelativeTime(changed)))
	}

	return sb.String()
}

// formatVersion shows unknown versions as N/A.
func formatVersion(v string) string {
	if v == "" {
		return "N/A"
	}
	return v
}

// formatVia labels the resolution method; fuzzy matches are highlighted
// since they are worth a second look.
func formatVia(via mods.Method) string {
	switch {
	case via == mods.MethodNone:
		return colorize(colorGray, "not found")
	case via.IsFuzzy():
		return colorize(colorYellow, string(via))
	default:
		return string(via)
	}
}

// formatRelativeTime converts a timestamp to relative time (e.g., "2 days ago").
func formatRelativeTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	diff := time.Since(t)
	plural := func(n int, unit string) string {
		if n == 1 {
			return "1 " + unit + " ago"
		}
		return fmt.Sprintf("%d %ss ago", n, unit)
	}

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute")
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour")
	case diff < 30*24*time.Hour:
		return plural(int(diff.Hours()/24), "day")
	case diff < 365*24*time.Hour:
		return plural(int(diff.Hours()/24/30), "month")
	default:
		return plural(int(diff.Hours()/24/365), "year")
	}
}

// truncate shortens s to maxLen runes, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

func pad(s string, width int) string {
	if n := len([]rune(s)); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}
