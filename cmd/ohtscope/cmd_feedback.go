package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ohtscope/internal/learn"
	"ohtscope/internal/rules"
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Submit engineer feedback into the rule set",
	Long: `Feedback merges an engineer-proposed pattern into the rule set.
A valid submission is appended to the feedback log and produces a new
rule-set version; a rejected one changes nothing. Findings from earlier
analyses are stale after a merge and need a fresh run.`,
}

var precursorFlags struct {
	id        string
	pattern   string
	category  string
	axis      int
	lookback  string
	lookahead string
	note      string
}

var feedbackPrecursorCmd = &cobra.Command{
	Use:   "precursor",
	Short: "Propose a new precursor pattern",
	RunE:  runFeedbackPrecursor,
}

var confusableFlags struct {
	pattern       string
	conflictsWith string
	note          string
}

var feedbackConfusableCmd = &cobra.Command{
	Use:   "confusable",
	Short: "Propose a new confusable pattern",
	RunE:  runFeedbackConfusable,
}

func init() {
	pf := feedbackPrecursorCmd.Flags()
	pf.StringVar(&precursorFlags.id, "id", "", "Unique precursor identifier")
	pf.StringVar(&precursorFlags.pattern, "pattern", "", "Case-insensitive regular expression")
	pf.StringVar(&precursorFlags.category, "category", "", "Restrict matching to one log category")
	pf.IntVar(&precursorFlags.axis, "axis", -1, "Motion axis this precursor concerns (omit for none)")
	pf.StringVar(&precursorFlags.lookback, "lookback", "3s", "Window before the anchor")
	pf.StringVar(&precursorFlags.lookahead, "lookahead", "1s", "Window after the anchor")
	pf.StringVar(&precursorFlags.note, "note", "", "Free-text provenance recorded with the feedback")
	_ = feedbackPrecursorCmd.MarkFlagRequired("id")
	_ = feedbackPrecursorCmd.MarkFlagRequired("pattern")

	cf := feedbackConfusableCmd.Flags()
	cf.StringVar(&confusableFlags.pattern, "pattern", "", "Case-insensitive regular expression")
	cf.StringVar(&confusableFlags.conflictsWith, "conflicts-with", "", "Precursor id this pattern confuses")
	cf.StringVar(&confusableFlags.note, "note", "", "Free-text provenance recorded with the feedback")
	_ = feedbackConfusableCmd.MarkFlagRequired("pattern")
	_ = feedbackConfusableCmd.MarkFlagRequired("conflicts-with")

	feedbackCmd.AddCommand(feedbackPrecursorCmd)
	feedbackCmd.AddCommand(feedbackConfusableCmd)
}

func runFeedbackPrecursor(cmd *cobra.Command, _ []string) error {
	lookback, err := time.ParseDuration(precursorFlags.lookback)
	if err != nil {
		return fmt.Errorf("parse --lookback: %w", err)
	}
	lookahead, err := time.ParseDuration(precursorFlags.lookahead)
	if err != nil {
		return fmt.Errorf("parse --lookahead: %w", err)
	}
	p := rules.PrecursorPattern{
		ID:        precursorFlags.id,
		Pattern:   precursorFlags.pattern,
		Category:  precursorFlags.category,
		Lookback:  rules.Duration(lookback),
		Lookahead: rules.Duration(lookahead),
	}
	if precursorFlags.axis >= 0 {
		axis := precursorFlags.axis
		p.Axis = &axis
	}
	return submitFeedback(cmd, learn.Submission{
		Kind:      learn.KindPrecursor,
		Precursor: &p,
		Category:  precursorFlags.note,
	})
}

func runFeedbackConfusable(cmd *cobra.Command, _ []string) error {
	return submitFeedback(cmd, learn.Submission{
		Kind: learn.KindConfusable,
		Confusable: &rules.ConfusablePattern{
			Pattern:       confusableFlags.pattern,
			ConflictsWith: confusableFlags.conflictsWith,
		},
		Category: confusableFlags.note,
	})
}

func submitFeedback(cmd *cobra.Command, sub learn.Submission) error {
	sess, st, err := openSession()
	if err != nil {
		return err
	}
	defer st.Close()

	version, err := sess.SubmitFeedback(sub)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "merged: rule set now v%d\n", version)
	return nil
}
