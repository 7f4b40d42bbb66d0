package store

// schemaVersion1 is the current schema.
const schemaVersion1 = 1

var schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);

CREATE TABLE IF NOT EXISTS rulesets (
	version    INTEGER PRIMARY KEY,
	doc        BLOB NOT NULL,
	created_at TEXT NOT NULL
);

-- Append-only: rows are inserted and read, never updated or deleted.
CREATE TABLE IF NOT EXISTS feedback (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	kind           TEXT NOT NULL,
	pattern_id     TEXT NOT NULL,
	pattern        TEXT NOT NULL,
	conflicts_with TEXT,
	category       TEXT,
	axis           INTEGER,
	lookback_ms    INTEGER NOT NULL DEFAULT 0,
	lookahead_ms   INTEGER NOT NULL DEFAULT 0,
	submitted_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS index_cache (
	fingerprint TEXT PRIMARY KEY,
	payload     BLOB NOT NULL,
	created_at  TEXT NOT NULL
);
`
