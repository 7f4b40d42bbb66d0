// Package store persists analyzer state: versioned rule-set documents, the
// append-only operator feedback log, and the error-code index cache keyed by
// a content fingerprint of the two source collections. Engine and CLI code
// use only the Store interface; the implementation is SQLite or in-memory.
package store

import "errors"

// DefaultDBPath is the default relative path for the SQLite DB
// (per-workspace). Open() creates the parent dir (e.g. .ohtscope).
const DefaultDBPath = ".ohtscope/ohtscope.db"

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// FeedbackEntry is one operator submission, recorded before the pattern is
// merged into a new rule-set version. The feedback log is append-only and
// never rewritten.
type FeedbackEntry struct {
	ID            int64
	Kind          string // "precursor" or "confusable"
	PatternID     string // precursor id, or the conflicting id for confusables
	Pattern       string
	ConflictsWith string
	Category      string
	Axis          *int
	LookbackMS    int64
	LookaheadMS   int64
	SubmittedAt   string // RFC3339
}

// Store is the persistence facade.
type Store interface {
	// SaveRuleSet stores one rule-set document under its version number.
	// Versions are write-once; saving an existing version is an error.
	SaveRuleSet(version int, doc []byte) error
	// LatestRuleSet returns the highest-versioned document, or ErrNotFound.
	LatestRuleSet() (version int, doc []byte, err error)
	// RuleSetVersions lists stored versions in ascending order.
	RuleSetVersions() ([]int, error)

	// AppendFeedback appends one entry to the feedback log.
	AppendFeedback(e *FeedbackEntry) (int64, error)
	// ListFeedback returns the full feedback log in append order.
	ListFeedback() ([]*FeedbackEntry, error)

	// SaveIndexCache stores a built index payload under its fingerprint.
	SaveIndexCache(fingerprint string, payload []byte) error
	// LoadIndexCache returns the cached payload, or ErrNotFound.
	LoadIndexCache(fingerprint string) ([]byte, error)

	Close() error
}
