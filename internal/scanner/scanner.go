// Package scanner builds the inventory of installed mods by reading the
// manifest.json embedded in every .jar and .zip archive of a directory.
package scanner

import (
	"io"
	"log/slog"
)

// Scanner reads installed mod archives.
type Scanner struct {
	logger *slog.Logger
}

// New creates a new Scanner. A nil logger discards output.
func New(logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Scanner{logger: logger}
}
