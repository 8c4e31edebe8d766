package catalog

import "time"

// Entry is a catalog search result reduced to what matching needs.
type Entry struct {
	ID            int
	Name          string
	Slug          string
	URL           string
	Authors       []string
	LatestVersion string
}

// HasAuthor reports whether name is listed among the entry's authors.
func (e Entry) HasAuthor(name string) bool {
	for _, a := range e.Authors {
		if a == name {
			return true
		}
	}
	return false
}

// Hash algorithms as numbered by the CurseForge API.
const (
	HashAlgoSHA1 = 1
	HashAlgoMD5  = 2
)

// FileHash is a checksum published for a release file.
type FileHash struct {
	Value string `json:"value"`
	Algo  int    `json:"algo"`
}

// File is a release file of a catalog mod.
type File struct {
	ID          int        `json:"id"`
	DisplayName string     `json:"displayName"`
	FileName    string     `json:"fileName"`
	FileDate    *time.Time `json:"fileDate"`
	DownloadURL string     `json:"downloadUrl"`
	Hashes      []FileHash `json:"hashes"`
}

// Hash returns the published checksum for algo, or "".
func (f File) Hash(algo int) string {
	for _, h := range f.Hashes {
		if h.Algo == algo && h.Value != "" {
			return h.Value
		}
	}
	return ""
}

// ModDetail is the full catalog record of a single mod.
type ModDetail struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Slug        string   `json:"slug"`
	Links       *Links   `json:"links"`
	Authors     []Author `json:"authors"`
	LatestFiles []File   `json:"latestFiles"`
}

// Links holds the public URLs of a catalog mod.
type Links struct {
	WebsiteURL string `json:"websiteUrl"`
}

// Author is a catalog mod author.
type Author struct {
	Name string `json:"name"`
}

// searchResponse is the envelope of /mods/search.
type searchResponse struct {
	Data []ModDetail `json:"data"`
}

// stringResponse is the envelope of /files/{id}/download-url.
type stringResponse struct {
	Data string `json:"data"`
}
