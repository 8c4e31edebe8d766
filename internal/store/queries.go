package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Cache operations

// GetCachedMod returns the cache entry for name, or nil when there is none.
func (s *Store) GetCachedMod(name string) (*CacheEntry, error) {
	query := `
		SELECT name, url, not_found, latest_version, cached_at
		FROM mod_cache
		WHERE name = ?
	`

	var entry CacheEntry
	var url, latest sql.NullString
	var cachedAt string

	err := s.db.QueryRow(query, name).Scan(&entry.Name, &url, &entry.NotFound, &latest, &cachedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr(err, "failed to get cache entry for %s", name)
	}

	entry.URL = url.String
	entry.LatestVersion = latest.String
	entry.CachedAt, err = time.Parse(time.RFC3339Nano, cachedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse cached_at for %s: %w", name, err)
	}

	return &entry, nil
}

// CacheMod records a resolution outcome for name with a fresh timestamp.
// A not-found outcome clears the URL and latest version.
func (s *Store) CacheMod(name, url, latestVersion string, notFound bool) error {
	if notFound {
		url, latestVersion = "", ""
	}

	query := `
		INSERT OR REPLACE INTO mod_cache (name, url, not_found, latest_version, cached_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		name,
		nullString(url),
		notFound,
		nullString(latestVersion),
		s.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return wrapErr(err, "failed to cache mod %s", name)
	}
	return nil
}

// IsCacheValid reports whether entry is younger than the cache TTL.
func (s *Store) IsCacheValid(entry *CacheEntry) bool {
	if entry == nil {
		return false
	}
	return entry.CachedAt.After(s.now().Add(-s.ttl))
}

// InvalidateMod removes the cache entry for name. Removing a missing
// entry is not an error.
func (s *Store) InvalidateMod(name string) error {
	if _, err := s.db.Exec(`DELETE FROM mod_cache WHERE name = ?`, name); err != nil {
		return wrapErr(err, "failed to invalidate cache for %s", name)
	}
	return nil
}

// CacheCounts returns the number of resolved and not-found cache rows.
func (s *Store) CacheCounts() (resolved, notFound int, err error) {
	query := `
		SELECT
			COALESCE(SUM(CASE WHEN not_found THEN 0 ELSE 1 END), 0),
			COALESCE(SUM(CASE WHEN not_found THEN 1 ELSE 0 END), 0)
		FROM mod_cache
	`
	if err := s.db.QueryRow(query).Scan(&resolved, &notFound); err != nil {
		return 0, 0, wrapErr(err, "failed to count cache entries")
	}
	return resolved, notFound, nil
}

// Override operations

// GetOverride returns the override for name, or nil when there is none.
func (s *Store) GetOverride(name string) (*Override, error) {
	query := `SELECT name, url, created_at, updated_at FROM url_overrides WHERE name = ?`

	o, err := scanOverride(s.db.QueryRow(query, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr(err, "failed to get override for %s", name)
	}
	return o, nil
}

// SetOverride creates or updates the override for name. Updating keeps
// the original creation time.
func (s *Store) SetOverride(name, url string) (*Override, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.now().UTC()
	existing, err := scanOverride(tx.QueryRow(
		`SELECT name, url, created_at, updated_at FROM url_overrides WHERE name = ?`, name))

	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.Exec(
			`INSERT INTO url_overrides (name, url, created_at, updated_at) VALUES (?, ?, ?, NULL)`,
			name, url, now.Format(time.RFC3339Nano))
		existing = &Override{Name: name, URL: url, CreatedAt: now}
	case err != nil:
		return nil, wrapErr(err, "failed to read override for %s", name)
	default:
		_, err = tx.Exec(
			`UPDATE url_overrides SET url = ?, updated_at = ? WHERE name = ?`,
			url, now.Format(time.RFC3339Nano), name)
		existing.URL = url
		existing.UpdatedAt = &now
	}
	if err != nil {
		return nil, wrapErr(err, "failed to write override for %s", name)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit override for %s: %w", name, err)
	}
	return existing, nil
}

// DeleteOverride removes the override for name and reports whether one
// existed.
func (s *Store) DeleteOverride(name string) (bool, error) {
	result, err := s.db.Exec(`DELETE FROM url_overrides WHERE name = ?`, name)
	if err != nil {
		return false, wrapErr(err, "failed to delete override for %s", name)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// ListOverrides returns all overrides ordered by name.
func (s *Store) ListOverrides() ([]*Override, error) {
	rows, err := s.db.Query(`SELECT name, url, created_at, updated_at FROM url_overrides ORDER BY name`)
	if err != nil {
		return nil, wrapErr(err, "failed to list overrides")
	}
	defer rows.Close()

	var overrides []*Override
	for rows.Next() {
		o, err := scanOverride(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan override row: %w", err)
		}
		overrides = append(overrides, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating overrides: %w", err)
	}

	return overrides, nil
}

// Metadata operations

const lastUpdatedKey = "last_updated"

// SetLastUpdated records the completion time of a refresh.
func (s *Store) SetLastUpdated(t time.Time) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`,
		lastUpdatedKey, t.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return wrapErr(err, "failed to set last updated")
	}
	return nil
}

// LastUpdated returns the completion time of the last refresh, or nil
// when none has completed yet.
func (s *Store) LastUpdated() (*time.Time, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = ?`, lastUpdatedKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr(err, "failed to get last updated")
	}

	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return nil, fmt.Errorf("failed to parse last updated: %w", err)
	}
	return &t, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOverride(row rowScanner) (*Override, error) {
	var o Override
	var createdAt string
	var updatedAt sql.NullString

	if err := row.Scan(&o.Name, &o.URL, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	o.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at for %s: %w", o.Name, err)
	}

	if updatedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, updatedAt.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse updated_at for %s: %w", o.Name, err)
		}
		o.UpdatedAt = &t
	}

	return &o, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
