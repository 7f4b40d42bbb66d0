package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// nowUTC returns the current UTC time as an ISO 8601 string.
func nowUTC() string { return time.Now().UTC().Format(time.RFC3339) }

// SqlStore implements Store with SQLite.
type SqlStore struct {
	db *sql.DB
}

// Open opens or creates a SQLite DB at path and runs migrations.
// Creates the parent directory (e.g. .ohtscope) if it does not exist.
func Open(path string) (*SqlStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &SqlStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SqlStore) migrate() error {
	var tableCount int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableCount)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableCount == 0 {
		if _, err := s.db.Exec(schemaV1); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_version (version) VALUES (?)", schemaVersion1); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return nil
	}
	var version int
	if err := s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion1 {
		return fmt.Errorf("unsupported schema version %d (want %d)", version, schemaVersion1)
	}
	return nil
}

// Close closes the underlying DB.
func (s *SqlStore) Close() error { return s.db.Close() }

func (s *SqlStore) SaveRuleSet(version int, doc []byte) error {
	_, err := s.db.Exec(
		"INSERT INTO rulesets (version, doc, created_at) VALUES (?, ?, ?)",
		version, doc, nowUTC(),
	)
	if err != nil {
		return fmt.Errorf("save ruleset v%d: %w", version, err)
	}
	return nil
}

func (s *SqlStore) LatestRuleSet() (int, []byte, error) {
	var version int
	var doc []byte
	err := s.db.QueryRow(
		"SELECT version, doc FROM rulesets ORDER BY version DESC LIMIT 1",
	).Scan(&version, &doc)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil, ErrNotFound
	}
	if err != nil {
		return 0, nil, fmt.Errorf("load latest ruleset: %w", err)
	}
	return version, doc, nil
}

func (s *SqlStore) RuleSetVersions() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM rulesets ORDER BY version ASC")
	if err != nil {
		return nil, fmt.Errorf("list ruleset versions: %w", err)
	}
	defer rows.Close()
	var out []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *SqlStore) AppendFeedback(e *FeedbackEntry) (int64, error) {
	if e.SubmittedAt == "" {
		e.SubmittedAt = nowUTC()
	}
	var axis sql.NullInt64
	if e.Axis != nil {
		axis = sql.NullInt64{Int64: int64(*e.Axis), Valid: true}
	}
	res, err := s.db.Exec(
		`INSERT INTO feedback
		 (kind, pattern_id, pattern, conflicts_with, category, axis, lookback_ms, lookahead_ms, submitted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Kind, e.PatternID, e.Pattern, e.ConflictsWith, e.Category, axis,
		e.LookbackMS, e.LookaheadMS, e.SubmittedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("append feedback: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	e.ID = id
	return id, nil
}

func (s *SqlStore) ListFeedback() ([]*FeedbackEntry, error) {
	rows, err := s.db.Query(
		`SELECT id, kind, pattern_id, pattern, conflicts_with, category, axis,
		        lookback_ms, lookahead_ms, submitted_at
		 FROM feedback ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	defer rows.Close()
	var out []*FeedbackEntry
	for rows.Next() {
		var e FeedbackEntry
		var conflicts, category sql.NullString
		var axis sql.NullInt64
		if err := rows.Scan(&e.ID, &e.Kind, &e.PatternID, &e.Pattern, &conflicts,
			&category, &axis, &e.LookbackMS, &e.LookaheadMS, &e.SubmittedAt); err != nil {
			return nil, err
		}
		e.ConflictsWith = conflicts.String
		e.Category = category.String
		if axis.Valid {
			v := int(axis.Int64)
			e.Axis = &v
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (s *SqlStore) SaveIndexCache(fingerprint string, payload []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO index_cache (fingerprint, payload, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(fingerprint) DO UPDATE SET payload=excluded.payload, created_at=excluded.created_at`,
		fingerprint, payload, nowUTC(),
	)
	if err != nil {
		return fmt.Errorf("save index cache: %w", err)
	}
	return nil
}

func (s *SqlStore) LoadIndexCache(fingerprint string) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRow(
		"SELECT payload FROM index_cache WHERE fingerprint = ?", fingerprint,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load index cache: %w", err)
	}
	return payload, nil
}
