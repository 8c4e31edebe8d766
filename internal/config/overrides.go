package config

import (
	"bufio"
	"io"
	"strings"
)

// ParseOverrides reads "Mod Name = https://..." lines as used by
// `modsync override import`. The first "=" separates name from URL.
// Blank lines, comments and malformed lines are skipped. Later lines win.
func ParseOverrides(r io.Reader) (map[string]string, error) {
	overrides := make(map[string]string)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		idx := strings.IndexByte(line, '=')
		if idx <= 0 {
			continue
		}

		name := strings.TrimSpace(line[:idx])
		url := strings.TrimSpace(line[idx+1:])
		if name == "" || url == "" {
			continue
		}

		overrides[name] = url
	}

	if err := scanner.Err(); err != nil {
		return overrides, err
	}
	return overrides, nil
}
