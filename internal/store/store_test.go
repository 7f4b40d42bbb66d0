package store

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
)

// conformance runs the Store contract against one implementation.
func conformance(t *testing.T, open func(t *testing.T) Store) {
	t.Run("rulesets", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		if _, _, err := s.LatestRuleSet(); !errors.Is(err, ErrNotFound) {
			t.Fatalf("empty LatestRuleSet: got %v, want ErrNotFound", err)
		}
		if err := s.SaveRuleSet(1, []byte("v1")); err != nil {
			t.Fatalf("SaveRuleSet(1): %v", err)
		}
		if err := s.SaveRuleSet(2, []byte("v2")); err != nil {
			t.Fatalf("SaveRuleSet(2): %v", err)
		}
		if err := s.SaveRuleSet(1, []byte("rewrite")); err == nil {
			t.Fatal("rewriting version 1 accepted; versions are write-once")
		}

		version, doc, err := s.LatestRuleSet()
		if err != nil {
			t.Fatalf("LatestRuleSet: %v", err)
		}
		if version != 2 || !bytes.Equal(doc, []byte("v2")) {
			t.Errorf("latest: got (%d, %q)", version, doc)
		}
		versions, err := s.RuleSetVersions()
		if err != nil {
			t.Fatalf("RuleSetVersions: %v", err)
		}
		if len(versions) != 2 || versions[0] != 1 || versions[1] != 2 {
			t.Errorf("versions: got %v", versions)
		}
	})

	t.Run("feedback", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		axis := 1
		first := &FeedbackEntry{
			Kind:        "precursor",
			PatternID:   "phy-reset",
			Pattern:     `phy\s*reset`,
			Category:    "comm",
			Axis:        &axis,
			LookbackMS:  3000,
			LookaheadMS: 1000,
		}
		id, err := s.AppendFeedback(first)
		if err != nil {
			t.Fatalf("AppendFeedback: %v", err)
		}
		if id == 0 || first.SubmittedAt == "" {
			t.Errorf("append: id=%d submitted_at=%q", id, first.SubmittedAt)
		}
		if _, err := s.AppendFeedback(&FeedbackEntry{
			Kind:          "confusable",
			PatternID:     "comm-timeout",
			Pattern:       `ui\s*timeout`,
			ConflictsWith: "comm-timeout",
		}); err != nil {
			t.Fatalf("AppendFeedback: %v", err)
		}

		list, err := s.ListFeedback()
		if err != nil {
			t.Fatalf("ListFeedback: %v", err)
		}
		if len(list) != 2 {
			t.Fatalf("feedback entries: got %d, want 2", len(list))
		}
		got := list[0]
		if got.Kind != "precursor" || got.PatternID != "phy-reset" || got.LookbackMS != 3000 {
			t.Errorf("first entry: got %+v", got)
		}
		if got.Axis == nil || *got.Axis != 1 {
			t.Errorf("axis: got %v, want 1", got.Axis)
		}
		if list[1].Axis != nil {
			t.Errorf("confusable axis: got %v, want nil", list[1].Axis)
		}
		if list[1].ConflictsWith != "comm-timeout" {
			t.Errorf("conflicts_with: got %q", list[1].ConflictsWith)
		}
		if list[0].ID >= list[1].ID {
			t.Errorf("ids not in append order: %d, %d", list[0].ID, list[1].ID)
		}
	})

	t.Run("index cache", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		if _, err := s.LoadIndexCache("fp"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("empty cache: got %v, want ErrNotFound", err)
		}
		if err := s.SaveIndexCache("fp", []byte("one")); err != nil {
			t.Fatalf("SaveIndexCache: %v", err)
		}
		// Same fingerprint is an upsert, not an error.
		if err := s.SaveIndexCache("fp", []byte("two")); err != nil {
			t.Fatalf("SaveIndexCache upsert: %v", err)
		}
		payload, err := s.LoadIndexCache("fp")
		if err != nil {
			t.Fatalf("LoadIndexCache: %v", err)
		}
		if !bytes.Equal(payload, []byte("two")) {
			t.Errorf("payload: got %q", payload)
		}
	})
}

func TestSqlStore(t *testing.T) {
	conformance(t, func(t *testing.T) Store {
		s, err := Open(filepath.Join(t.TempDir(), "scope", "test.db"))
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		return s
	})
}

func TestMemStore(t *testing.T) {
	conformance(t, func(t *testing.T) Store {
		return NewMemStore()
	})
}

func TestSqlStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.SaveRuleSet(1, []byte("doc")); err != nil {
		t.Fatalf("SaveRuleSet: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	version, doc, err := s2.LatestRuleSet()
	if err != nil {
		t.Fatalf("LatestRuleSet after reopen: %v", err)
	}
	if version != 1 || string(doc) != "doc" {
		t.Errorf("after reopen: got (%d, %q)", version, doc)
	}
}
