package rules

import (
	"testing"
	"time"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	rs := testRuleSet()
	if err := rs.Compile(); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	repo, err := NewRepository(rs)
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}
	return repo
}

func TestNewRepositoryRequiresCompiled(t *testing.T) {
	if _, err := NewRepository(testRuleSet()); err == nil {
		t.Fatal("NewRepository accepted an uncompiled rule set")
	}
	if _, err := NewRepository(nil); err == nil {
		t.Fatal("NewRepository accepted nil")
	}
}

func TestWithPrecursorLeavesCurrentUntouched(t *testing.T) {
	repo := newTestRepo(t)
	before := repo.Snapshot()

	cand, err := repo.WithPrecursor(PrecursorPattern{
		ID:       "phy-reset",
		Pattern:  `phy\s*reset`,
		Lookback: Duration(3 * time.Second),
	})
	if err != nil {
		t.Fatalf("WithPrecursor: %v", err)
	}
	if cand.Version != before.Version+1 {
		t.Errorf("candidate version: got %d, want %d", cand.Version, before.Version+1)
	}
	if repo.Version() != before.Version {
		t.Errorf("current version changed to %d before promotion", repo.Version())
	}
	if _, ok := repo.Snapshot().PrecursorByID("phy-reset"); ok {
		t.Error("current snapshot sees unpromoted precursor")
	}

	if err := repo.Promote(cand); err != nil {
		t.Fatalf("Promote: %v", err)
	}
	if _, ok := repo.Snapshot().PrecursorByID("phy-reset"); !ok {
		t.Error("promoted precursor missing from new snapshot")
	}
	// Snapshot handed out before the promotion is unchanged.
	if _, ok := before.PrecursorByID("phy-reset"); ok {
		t.Error("pre-promotion snapshot mutated")
	}
}

func TestWithPrecursorRejectsDuplicate(t *testing.T) {
	repo := newTestRepo(t)
	v := repo.Version()
	if _, err := repo.WithPrecursor(PrecursorPattern{ID: "frame-loss", Pattern: "x"}); err == nil {
		t.Fatal("duplicate id accepted")
	}
	if repo.Version() != v {
		t.Errorf("version changed after rejection: %d", repo.Version())
	}
}

func TestWithConfusableRequiresResolvableConflict(t *testing.T) {
	repo := newTestRepo(t)
	if _, err := repo.WithConfusable(ConfusablePattern{Pattern: "x", ConflictsWith: "nope"}); err == nil {
		t.Fatal("unresolvable conflicts_with accepted")
	}

	cand, err := repo.WithConfusable(ConfusablePattern{Pattern: `link\s*flap`, ConflictsWith: "frame-loss"})
	if err != nil {
		t.Fatalf("WithConfusable: %v", err)
	}
	if err := repo.Promote(cand); err != nil {
		t.Fatalf("Promote: %v", err)
	}
	if got := repo.Snapshot().ConfusablesFor("frame-loss"); len(got) != 1 {
		t.Errorf("ConfusablesFor after promote: got %d, want 1", len(got))
	}
}

func TestPromoteRefusesStaleCandidate(t *testing.T) {
	repo := newTestRepo(t)

	a, err := repo.WithPrecursor(PrecursorPattern{ID: "a", Pattern: "a"})
	if err != nil {
		t.Fatalf("WithPrecursor: %v", err)
	}
	b, err := repo.WithPrecursor(PrecursorPattern{ID: "b", Pattern: "b"})
	if err != nil {
		t.Fatalf("WithPrecursor: %v", err)
	}
	if err := repo.Promote(a); err != nil {
		t.Fatalf("Promote(a): %v", err)
	}
	// b was built against the old version; its number is no longer next.
	if err := repo.Promote(b); err == nil {
		t.Fatal("stale candidate promoted")
	}
	if repo.Version() != a.Version {
		t.Errorf("version: got %d, want %d", repo.Version(), a.Version)
	}
}

func TestPromoteRequiresCompiled(t *testing.T) {
	repo := newTestRepo(t)
	cand := repo.Snapshot().Clone()
	cand.Version++
	if err := repo.Promote(cand); err == nil {
		t.Fatal("uncompiled candidate promoted")
	}
}
