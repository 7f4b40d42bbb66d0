package store

import (
	"fmt"
	"sort"
	"sync"
)

// MemStore is an in-memory Store for tests and the MCP server's ephemeral
// sessions.
type MemStore struct {
	mu       sync.Mutex
	rulesets map[int][]byte
	feedback []*FeedbackEntry
	nextID   int64
	caches   map[string][]byte
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		rulesets: make(map[int][]byte),
		caches:   make(map[string][]byte),
		nextID:   1,
	}
}

func (m *MemStore) Close() error { return nil }

func (m *MemStore) SaveRuleSet(version int, doc []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rulesets[version]; ok {
		return fmt.Errorf("save ruleset v%d: version exists", version)
	}
	m.rulesets[version] = append([]byte(nil), doc...)
	return nil
}

func (m *MemStore) LatestRuleSet() (int, []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	best := -1
	for v := range m.rulesets {
		if v > best {
			best = v
		}
	}
	if best < 0 {
		return 0, nil, ErrNotFound
	}
	return best, append([]byte(nil), m.rulesets[best]...), nil
}

func (m *MemStore) RuleSetVersions() ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, 0, len(m.rulesets))
	for v := range m.rulesets {
		out = append(out, v)
	}
	sort.Ints(out)
	return out, nil
}

func (m *MemStore) AppendFeedback(e *FeedbackEntry) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.SubmittedAt == "" {
		e.SubmittedAt = nowUTC()
	}
	cp := *e
	cp.ID = m.nextID
	m.nextID++
	m.feedback = append(m.feedback, &cp)
	e.ID = cp.ID
	return cp.ID, nil
}

func (m *MemStore) ListFeedback() ([]*FeedbackEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*FeedbackEntry, len(m.feedback))
	for i, e := range m.feedback {
		cp := *e
		out[i] = &cp
	}
	return out, nil
}

func (m *MemStore) SaveIndexCache(fingerprint string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caches[fingerprint] = append([]byte(nil), payload...)
	return nil
}

func (m *MemStore) LoadIndexCache(fingerprint string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	payload, ok := m.caches[fingerprint]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), payload...), nil
}
