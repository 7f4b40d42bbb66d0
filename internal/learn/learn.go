// Package learn implements the operator feedback loop: a proposed precursor
// or confusable pattern is validated against the current rule set, recorded
// in the append-only feedback log, and merged into a new rule-set version.
// Any rejection leaves the rule set at its prior version; partial merges do
// not happen. After a successful merge all previously computed findings are
// stale and a full re-run is the only way to refresh them.
package learn

import (
	"fmt"
	"log/slog"
	"time"

	"ohtscope/internal/logging"
	"ohtscope/internal/rules"
	"ohtscope/internal/store"
)

// Kind selects the submitted pattern type.
type Kind string

const (
	KindPrecursor  Kind = "precursor"
	KindConfusable Kind = "confusable"
)

// Submission is one proposed pattern plus provenance.
type Submission struct {
	Kind        Kind
	Precursor   *rules.PrecursorPattern
	Confusable  *rules.ConfusablePattern
	Category    string // free-text provenance
	SubmittedAt time.Time
}

// Loop wires the rule repository to the persistence boundary.
type Loop struct {
	repo *rules.Repository
	st   store.Store
	log  *slog.Logger
}

// NewLoop returns a feedback loop over repo and st.
func NewLoop(repo *rules.Repository, st store.Store) *Loop {
	return &Loop{repo: repo, st: st, log: logging.New("learn")}
}

// Submit validates and merges one submission, returning the new rule-set
// version. The sequence is: validate against the current rules, append to
// the feedback log, persist the new rule-set document, then promote it.
// A failure at any step before promotion leaves the current version
// authoritative and untouched.
func (l *Loop) Submit(sub Submission) (int, error) {
	cand, entry, err := l.stage(sub)
	if err != nil {
		return 0, err
	}

	if _, err := l.st.AppendFeedback(entry); err != nil {
		return 0, fmt.Errorf("record feedback: %w", err)
	}

	doc, err := rules.Marshal(cand)
	if err != nil {
		return 0, err
	}
	if err := l.st.SaveRuleSet(cand.Version, doc); err != nil {
		return 0, fmt.Errorf("persist ruleset v%d: %w", cand.Version, err)
	}
	if err := l.repo.Promote(cand); err != nil {
		return 0, err
	}

	l.log.Info("feedback merged", "kind", string(sub.Kind), "version", cand.Version)
	return cand.Version, nil
}

func (l *Loop) stage(sub Submission) (*rules.RuleSet, *store.FeedbackEntry, error) {
	submittedAt := sub.SubmittedAt
	if submittedAt.IsZero() {
		submittedAt = time.Now().UTC()
	}
	entry := &store.FeedbackEntry{
		Kind:        string(sub.Kind),
		Category:    sub.Category,
		SubmittedAt: submittedAt.UTC().Format(time.RFC3339),
	}

	switch sub.Kind {
	case KindPrecursor:
		if sub.Precursor == nil {
			return nil, nil, &rules.ValidationError{Kind: "precursor", Reason: "submission carries no precursor"}
		}
		cand, err := l.repo.WithPrecursor(*sub.Precursor)
		if err != nil {
			return nil, nil, err
		}
		entry.PatternID = sub.Precursor.ID
		entry.Pattern = sub.Precursor.Pattern
		entry.LookbackMS = sub.Precursor.Lookback.Std().Milliseconds()
		entry.LookaheadMS = sub.Precursor.Lookahead.Std().Milliseconds()
		if sub.Precursor.Axis != nil {
			axis := *sub.Precursor.Axis
			entry.Axis = &axis
		}
		if entry.Category == "" {
			entry.Category = sub.Precursor.Category
		}
		return cand, entry, nil

	case KindConfusable:
		if sub.Confusable == nil {
			return nil, nil, &rules.ValidationError{Kind: "confusable", Reason: "submission carries no confusable"}
		}
		cand, err := l.repo.WithConfusable(*sub.Confusable)
		if err != nil {
			return nil, nil, err
		}
		entry.PatternID = sub.Confusable.ConflictsWith
		entry.Pattern = sub.Confusable.Pattern
		entry.ConflictsWith = sub.Confusable.ConflictsWith
		return cand, entry, nil
	}
	return nil, nil, &rules.ValidationError{Kind: string(sub.Kind), Reason: "unknown submission kind"}
}
