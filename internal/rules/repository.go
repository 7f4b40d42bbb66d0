package rules

import (
	"fmt"
	"log/slog"
	"sync"

	"ohtscope/internal/logging"
)

// Repository holds the current rule-set version and hands out immutable
// snapshots. Mutations never touch a snapshot in use: a candidate version is
// built, validated, persisted by the caller, then promoted with a pointer
// swap. An in-flight analysis pass keeps its snapshot untouched.
type Repository struct {
	mu      sync.RWMutex
	current *RuleSet
	log     *slog.Logger
}

// NewRepository wraps a compiled rule set.
func NewRepository(rs *RuleSet) (*Repository, error) {
	if rs == nil || !rs.Compiled() {
		return nil, fmt.Errorf("repository requires a compiled ruleset")
	}
	return &Repository{current: rs, log: logging.New("rules")}, nil
}

// Snapshot returns the current rule set. The returned value is immutable by
// discipline: promotions swap the pointer, never mutate in place.
func (r *Repository) Snapshot() *RuleSet {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Version returns the current rule-set version.
func (r *Repository) Version() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current.Version
}

// WithPrecursor builds and validates a candidate rule set with p appended
// and the version incremented. The current version is untouched; promote the
// candidate after it has been persisted.
func (r *Repository) WithPrecursor(p PrecursorPattern) (*RuleSet, error) {
	r.mu.RLock()
	cand := r.current.Clone()
	r.mu.RUnlock()

	cand.Precursors = append(cand.Precursors, p)
	cand.Version++
	if err := cand.Compile(); err != nil {
		return nil, err
	}
	return cand, nil
}

// WithConfusable builds and validates a candidate rule set with c appended
// and the version incremented.
func (r *Repository) WithConfusable(c ConfusablePattern) (*RuleSet, error) {
	r.mu.RLock()
	cand := r.current.Clone()
	r.mu.RUnlock()

	cand.Confusables = append(cand.Confusables, c)
	cand.Version++
	if err := cand.Compile(); err != nil {
		return nil, err
	}
	return cand, nil
}

// Promote installs a persisted candidate as the current version. The
// candidate must be compiled and must carry exactly the next version number;
// anything else means a concurrent mutation won and the promotion is refused.
func (r *Repository) Promote(cand *RuleSet) error {
	if cand == nil || !cand.Compiled() {
		return fmt.Errorf("promote: candidate is not compiled")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if cand.Version != r.current.Version+1 {
		return fmt.Errorf("promote: candidate version %d, want %d", cand.Version, r.current.Version+1)
	}
	r.current = cand
	r.log.Info("ruleset promoted", "version", cand.Version,
		"precursors", len(cand.Precursors), "confusables", len(cand.Confusables))
	return nil
}
