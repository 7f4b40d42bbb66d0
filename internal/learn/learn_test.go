package learn

import (
	"errors"
	"testing"
	"time"

	"ohtscope/internal/rules"
	"ohtscope/internal/store"
)

func newLoop(t *testing.T) (*Loop, *rules.Repository, *store.MemStore) {
	t.Helper()
	rs := rules.Default()
	repo, err := rules.NewRepository(rs)
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}
	st := store.NewMemStore()
	return NewLoop(repo, st), repo, st
}

func TestSubmitPrecursor(t *testing.T) {
	loop, repo, st := newLoop(t)
	before := repo.Version()

	version, err := loop.Submit(Submission{
		Kind: KindPrecursor,
		Precursor: &rules.PrecursorPattern{
			ID:        "encoder-glitch",
			Pattern:   `encoder\s*glitch`,
			Category:  "drive",
			Lookback:  rules.Duration(3 * time.Second),
			Lookahead: rules.Duration(time.Second),
		},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if version != before+1 || repo.Version() != version {
		t.Errorf("version: submit=%d repo=%d, want %d", version, repo.Version(), before+1)
	}
	if _, ok := repo.Snapshot().PrecursorByID("encoder-glitch"); !ok {
		t.Error("merged precursor missing from snapshot")
	}

	// Feedback was logged and the new version persisted.
	list, err := st.ListFeedback()
	if err != nil || len(list) != 1 {
		t.Fatalf("ListFeedback: (%v, %d entries)", err, len(list))
	}
	e := list[0]
	if e.Kind != "precursor" || e.PatternID != "encoder-glitch" || e.LookbackMS != 3000 {
		t.Errorf("feedback entry: got %+v", e)
	}
	if e.SubmittedAt == "" {
		t.Error("submitted_at not stamped")
	}
	persisted, doc, err := st.LatestRuleSet()
	if err != nil {
		t.Fatalf("LatestRuleSet: %v", err)
	}
	if persisted != version {
		t.Errorf("persisted version: got %d, want %d", persisted, version)
	}
	back, err := rules.Load(doc, ".yaml")
	if err != nil {
		t.Fatalf("reload persisted doc: %v", err)
	}
	if _, ok := back.PrecursorByID("encoder-glitch"); !ok {
		t.Error("persisted document missing merged precursor")
	}
}

func TestSubmitConfusable(t *testing.T) {
	loop, repo, _ := newLoop(t)

	target := repo.Snapshot().Precursors[0].ID
	version, err := loop.Submit(Submission{
		Kind: KindConfusable,
		Confusable: &rules.ConfusablePattern{
			Pattern:       `scheduled\s*maintenance`,
			ConflictsWith: target,
		},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if repo.Version() != version {
		t.Errorf("repo version: got %d, want %d", repo.Version(), version)
	}
	if got := repo.Snapshot().ConfusablesFor(target); len(got) == 0 {
		t.Error("merged confusable missing from snapshot")
	}
}

func TestRejectionLeavesVersionUnchanged(t *testing.T) {
	loop, repo, st := newLoop(t)
	before := repo.Version()
	existing := repo.Snapshot().Precursors[0].ID

	_, err := loop.Submit(Submission{
		Kind:      KindPrecursor,
		Precursor: &rules.PrecursorPattern{ID: existing, Pattern: "x"},
	})
	var verr *rules.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("want *rules.ValidationError, got %T: %v", err, err)
	}
	if repo.Version() != before {
		t.Errorf("version changed on rejection: %d", repo.Version())
	}
	// A rejected submission leaves no trace in the feedback log either.
	list, _ := st.ListFeedback()
	if len(list) != 0 {
		t.Errorf("feedback logged for rejected submission: %+v", list)
	}
	if _, _, err := st.LatestRuleSet(); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("ruleset persisted for rejected submission: %v", err)
	}
}

func TestSubmitEmptyPayloadRejected(t *testing.T) {
	loop, repo, _ := newLoop(t)
	before := repo.Version()

	if _, err := loop.Submit(Submission{Kind: KindPrecursor}); err == nil {
		t.Error("precursor submission without payload accepted")
	}
	if _, err := loop.Submit(Submission{Kind: KindConfusable}); err == nil {
		t.Error("confusable submission without payload accepted")
	}
	if _, err := loop.Submit(Submission{Kind: "unknown"}); err == nil {
		t.Error("unknown submission kind accepted")
	}
	if repo.Version() != before {
		t.Errorf("version changed: %d", repo.Version())
	}
}

func TestSubmittedAtPreserved(t *testing.T) {
	loop, _, st := newLoop(t)
	at := time.Date(2026, 8, 12, 9, 30, 0, 0, time.UTC)

	if _, err := loop.Submit(Submission{
		Kind: KindPrecursor,
		Precursor: &rules.PrecursorPattern{
			ID:      "one-off",
			Pattern: "one off",
		},
		SubmittedAt: at,
	}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	list, _ := st.ListFeedback()
	if len(list) != 1 || list[0].SubmittedAt != "2026-08-12T09:30:00Z" {
		t.Errorf("submitted_at: got %+v", list)
	}
}
