package main

import (
	"fmt"
	"io"
	"time"

	"ohtscope/internal/orchestrate"
	"ohtscope/internal/record"
	"ohtscope/internal/report"
	"ohtscope/internal/rules"
	"ohtscope/internal/store"
)

// openSession opens the workspace store and loads the current rule set.
func openSession() (*orchestrate.Session, *store.SqlStore, error) {
	st, err := store.Open(rootFlags.dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	sess, err := orchestrate.NewSession(st)
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}
	return sess, st, nil
}

func renderReport(w io.Writer, findings []record.Finding, rs *rules.RuleSet) error {
	return report.RenderText(w, findings, rs.Version, time.Duration(rs.AnchorMerge))
}
