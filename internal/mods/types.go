// Package mods defines the installed mod record shared across modsync.
package mods

import (
	"strings"

	"github.com/blackwell-systems/modsync/internal/version"
)

// Method records how a mod's catalog URL was determined.
type Method string

const (
	MethodNone      Method = ""
	MethodManifest  Method = "manifest"
	MethodOverride  Method = "override"
	MethodCache     Method = "cache"
	MethodExact     Method = "exact"
	MethodSlug      Method = "slug"
	MethodSubstring Method = "substring"
)

// UnknownAuthor is the placeholder author that is never searched for.
const UnknownAuthor = "Unknown"

// Mod is an installed mod archive and what is known about it on the catalog.
type Mod struct {
	Name          string   `json:"name"`
	FileName      string   `json:"fileName"`
	Version       string   `json:"version"`
	Description   string   `json:"description,omitempty"`
	Website       string   `json:"website,omitempty"`
	Authors       []string `json:"authors"`
	CatalogURL    string   `json:"curseForgeUrl,omitempty"`
	LatestVersion string   `json:"latestCurseForgeVersion,omitempty"`
	FoundVia      Method   `json:"foundVia,omitempty"`
}

// Resolved reports whether the mod has a catalog URL.
func (m *Mod) Resolved() bool {
	return m.CatalogURL != ""
}

// Resolve sets the catalog URL, latest version and method together.
func (m *Mod) Resolve(url, latestVersion string, via Method) {
	m.CatalogURL = url
	m.LatestVersion = latestVersion
	m.FoundVia = via
}

// HasAuthor reports whether name is among the mod's authors.
func (m *Mod) HasAuthor(name string) bool {
	for _, a := range m.Authors {
		if a == name {
			return true
		}
	}
	return false
}

// HasUpdate reports whether the catalog knows a strictly newer version.
func (m *Mod) HasUpdate() bool {
	return m.Resolved() && version.HasNewer(m.Version, m.LatestVersion)
}

// IsFuzzy reports whether the URL came from a fuzzy name match.
func (m Method) IsFuzzy() bool {
	return strings.HasPrefix(string(m), "fuzzy:")
}

// Clone returns a deep copy of ms.
func Clone(ms []Mod) []Mod {
	if ms == nil {
		return nil
	}
	out := make([]Mod, len(ms))
	for i, m := range ms {
		m.Authors = append([]string(nil), m.Authors...)
		out[i] = m
	}
	return out
}
