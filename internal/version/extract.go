package version

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Patterns are anchored at the end of the file stem and require a "-" or
// "_" separator before the version token.
var fileNamePatterns = []*regexp.Regexp{
	// AdminUI-1.0.4, ModName_v2.3.1-beta
	regexp.MustCompile(`(?i)[-_]v?(\d+\.\d+\.\d+(?:-[a-z0-9]+(?:\.[a-z0-9]+)*)?)$`),
	// Aures_Horses_13.01.2026
	regexp.MustCompile(`[-_](\d{1,2}\.\d{1,2}\.\d{4})$`),
	// ModName_2026-01-13
	regexp.MustCompile(`[-_](\d{4}-\d{2}-\d{2})$`),
	// Mod-1.0-SNAPSHOT, Mod-1.0-beta
	regexp.MustCompile(`(?i)[-_]v?(\d+\.\d+(?:-[a-z0-9]+(?:\.[a-z0-9]+)*)?)$`),
}

// FromFileName extracts a trailing version token from an archive name such
// as "AdminUI-1.0.4.jar". It returns "" when the name carries no version.
func FromFileName(name string) string {
	name = strings.TrimSpace(filepath.Base(name))
	if name == "" || name == "." {
		return ""
	}
	stem := strings.TrimSuffix(name, filepath.Ext(name))

	for _, re := range fileNamePatterns {
		if m := re.FindStringSubmatch(stem); m != nil {
			return m[1]
		}
	}
	return ""
}
