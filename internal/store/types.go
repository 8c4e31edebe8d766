package store

import "time"

// CacheEntry is the remembered outcome of resolving a mod name.
type CacheEntry struct {
	Name          string
	URL           string // empty when NotFound
	NotFound      bool
	LatestVersion string
	CachedAt      time.Time
}

// Override is a catalog URL pinned manually for a mod name.
type Override struct {
	Name      string
	URL       string
	CreatedAt time.Time
	UpdatedAt *time.Time
}
