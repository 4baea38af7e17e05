package storage

const schemaSQL = `
-- One row per processed page. Append-only: the journal reports what a run
-- did, it is never read back to decide what to fetch.
CREATE TABLE IF NOT EXISTS pages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    archived_url TEXT NOT NULL,
    original_url TEXT NOT NULL,
    level INTEGER NOT NULL,
    outcome TEXT NOT NULL CHECK (outcome IN ('downloaded', 'skipped', 'failed')),
    local_path TEXT,
    asset_count INTEGER NOT NULL DEFAULT 0,
    fetched_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_pages_outcome ON pages(outcome);
CREATE INDEX IF NOT EXISTS idx_pages_level ON pages(level);

CREATE TABLE IF NOT EXISTS crawl_errors (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    url TEXT NOT NULL,
    error_type TEXT NOT NULL,
    error_message TEXT,
    occurred_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_errors_type ON crawl_errors(error_type);

-- Run parameters (target, timestamp, depth) as key-value pairs.
CREATE TABLE IF NOT EXISTS run_meta (
    key TEXT PRIMARY KEY NOT NULL,
    value TEXT NOT NULL
);

CREATE VIEW IF NOT EXISTS run_summary AS
SELECT
    outcome,
    COUNT(*) AS count,
    MIN(fetched_at) AS first,
    MAX(fetched_at) AS last
FROM pages
GROUP BY outcome;
`
