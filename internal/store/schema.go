package store

const schema = `
CREATE TABLE IF NOT EXISTS mod_cache (
    name TEXT PRIMARY KEY,
    url TEXT,
    not_found BOOLEAN NOT NULL DEFAULT 0,
    latest_version TEXT,
    cached_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS url_overrides (
    name TEXT PRIMARY KEY,
    url TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cache_cached_at ON mod_cache(cached_at);
`
