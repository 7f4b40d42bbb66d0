// Package orchestrate wires one analysis session: the rule repository loaded
// from the store, the error-code index (built or served from the fingerprint
// cache), the normalized record sequence, and the engine pass over them.
package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"ohtscope/internal/codeindex"
	"ohtscope/internal/engine"
	"ohtscope/internal/ingest"
	"ohtscope/internal/learn"
	"ohtscope/internal/logging"
	"ohtscope/internal/record"
	"ohtscope/internal/rules"
	"ohtscope/internal/store"
)

// Session holds the state of one analysis session. Findings are recomputed
// fully on every pass; a rule-set merge marks them stale until the next
// Analyze call.
type Session struct {
	st   store.Store
	repo *rules.Repository
	loop *learn.Loop
	log  *slog.Logger

	mu              sync.Mutex
	records         []record.Record
	index           *codeindex.Index
	findings        []record.Finding
	findingsVersion int
	haveFindings    bool
}

// NewSession loads the latest persisted rule-set version, or the factory
// defaults when the store holds none, and returns a ready session. A
// malformed persisted document is an error: no pass may start on it.
func NewSession(st store.Store) (*Session, error) {
	log := logging.New("session")

	var rs *rules.RuleSet
	version, doc, err := st.LatestRuleSet()
	switch {
	case errors.Is(err, store.ErrNotFound):
		rs = rules.Default()
		log.Info("no persisted ruleset, using defaults", "version", rs.Version)
	case err != nil:
		return nil, err
	default:
		rs, err = rules.Load(doc, ".yaml")
		if err != nil {
			return nil, fmt.Errorf("persisted ruleset v%d: %w", version, err)
		}
		log.Info("ruleset loaded", "version", rs.Version)
	}

	repo, err := rules.NewRepository(rs)
	if err != nil {
		return nil, err
	}
	return &Session{
		st:   st,
		repo: repo,
		loop: learn.NewLoop(repo, st),
		log:  log,
	}, nil
}

// Rules returns the repository backing this session.
func (s *Session) Rules() *rules.Repository { return s.repo }

// LoadOrBuildIndex returns the error-code index for the two source
// collections, reusing a cached build when the content fingerprint matches.
// A cached payload that fails the dual-component invariant is discarded and
// rebuilt rather than used.
func (s *Session) LoadOrBuildIndex(ctx context.Context, vehiclePath, motionPath string, excludes []string) (*codeindex.Index, bool, error) {
	fp, err := codeindex.Fingerprint(ctx, vehiclePath, motionPath, excludes)
	if err != nil {
		return nil, false, err
	}
	if payload, err := s.st.LoadIndexCache(fp); err == nil {
		if idx, err := codeindex.FromCache(payload); err == nil {
			s.setIndex(idx)
			s.log.Info("index cache hit", "fingerprint", fp[:12], "entries", idx.Len())
			return idx, true, nil
		}
		s.log.Warn("index cache entry invalid, rebuilding", "fingerprint", fp[:12])
	}

	idx, err := codeindex.Build(ctx, vehiclePath, motionPath, excludes)
	if err != nil {
		return nil, false, err
	}
	payload, err := idx.Marshal()
	if err != nil {
		return nil, false, err
	}
	if err := s.st.SaveIndexCache(idx.Fingerprint, payload); err != nil {
		return nil, false, err
	}
	s.setIndex(idx)
	return idx, false, nil
}

// SetIndex installs an already-validated index.
func (s *Session) SetIndex(idx *codeindex.Index) error {
	if err := idx.Validate(); err != nil {
		return err
	}
	s.setIndex(idx)
	return nil
}

func (s *Session) setIndex(idx *codeindex.Index) {
	s.mu.Lock()
	s.index = idx
	s.mu.Unlock()
}

// LoadLogs normalizes the given log bundles into the session's record
// sequence, categorized by the current rule set.
func (s *Session) LoadLogs(paths []string) (int, error) {
	records, err := ingest.LoadBundles(paths, s.repo.Snapshot())
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	s.records = records
	s.mu.Unlock()
	return len(records), nil
}

// SetRecords installs an already-normalized record sequence.
func (s *Session) SetRecords(records []record.Record) {
	s.mu.Lock()
	s.records = records
	s.mu.Unlock()
}

// Analyze runs one full engine pass over the session's records against the
// current rule-set snapshot and index. On failure no findings are kept, not
// even prior ones: stale evidence is never re-shown as if re-validated.
func (s *Session) Analyze(ctx context.Context, opts engine.Options) ([]record.Finding, error) {
	snap := s.repo.Snapshot()

	s.mu.Lock()
	records := s.records
	idx := s.index
	s.mu.Unlock()

	findings, err := engine.Run(ctx, records, snap, idx, opts)
	if err != nil {
		s.mu.Lock()
		s.findings = nil
		s.haveFindings = false
		s.mu.Unlock()
		return nil, err
	}

	s.mu.Lock()
	s.findings = findings
	s.findingsVersion = snap.Version
	s.haveFindings = true
	s.mu.Unlock()
	return findings, nil
}

// Findings returns the last pass output, the rule-set version it was
// computed against, and whether it is stale (a newer rule-set version has
// been promoted since).
func (s *Session) Findings() ([]record.Finding, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.haveFindings {
		return nil, 0, false
	}
	return s.findings, s.findingsVersion, s.findingsVersion != s.repo.Version()
}

// SubmitFeedback runs the learning loop on one submission. On success the
// session's findings become stale; re-running Analyze is the only refresh.
func (s *Session) SubmitFeedback(sub learn.Submission) (int, error) {
	return s.loop.Submit(sub)
}
