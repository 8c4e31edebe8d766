package catalog

import (
	"regexp"
	"strings"
)

// modsSegment marks catalog URLs that point at mods rather than
// modpacks, worlds or other project types.
const modsSegment = "/mods/"

var versionToken = regexp.MustCompile(`(?i)v?(\d+(?:\.\d+)+(?:-[a-z0-9]+(?:\.[a-z0-9]+)*)?)`)

// toEntries keeps mods whose website URL contains the mods segment and
// reduces them to entries.
func toEntries(data []ModDetail) []Entry {
	entries := make([]Entry, 0, len(data))
	for _, m := range data {
		if m.Links == nil || !strings.Contains(m.Links.WebsiteURL, modsSegment) {
			continue
		}

		authors := make([]string, 0, len(m.Authors))
		for _, a := range m.Authors {
			authors = append(authors, a.Name)
		}

		entries = append(entries, Entry{
			ID:            m.ID,
			Name:          m.Name,
			Slug:          m.Slug,
			URL:           m.Links.WebsiteURL,
			Authors:       authors,
			LatestVersion: LatestVersion(m.LatestFiles),
		})
	}
	return entries
}

// LatestFile returns the most recently dated file. Files without a date
// sort last; ties keep the first listed. It returns nil for no files.
func LatestFile(files []File) *File {
	var latest *File
	for i := range files {
		f := &files[i]
		if latest == nil {
			latest = f
			continue
		}
		if f.FileDate == nil {
			continue
		}
		if latest.FileDate == nil || f.FileDate.After(*latest.FileDate) {
			latest = f
		}
	}
	return latest
}

// LatestVersion extracts a version token from the newest file's display
// name, falling back to its file name. It returns "" when neither holds
// something version-shaped.
func LatestVersion(files []File) string {
	f := LatestFile(files)
	if f == nil {
		return ""
	}
	if v := extractVersion(f.DisplayName); v != "" {
		return v
	}
	return extractVersion(f.FileName)
}

func extractVersion(s string) string {
	if s == "" {
		return ""
	}
	// Drop a trailing archive extension so "1.2.jar" does not end in ".jar".
	for _, ext := range []string{".jar", ".zip"} {
		if len(s) > len(ext) && strings.EqualFold(s[len(s)-len(ext):], ext) {
			s = s[:len(s)-len(ext)]
			break
		}
	}
	m := versionToken.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return m[1]
}
