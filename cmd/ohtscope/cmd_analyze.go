package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ohtscope/internal/engine"
)

var analyzeFlags struct {
	vehicleSrc string
	motionSrc  string
	excludes   []string
	codes      []string
	workers    int
	output     string
	asJSON     bool
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <bundle>...",
	Short: "Run a full correlation pass over one or more log bundles",
	Long: `Analyze normalizes the given log bundles (directories, ZIPs, or single
files), scans them for fault anchors, correlates precursors in each
anchor's time window, and writes a report.

Both control source collections are required: fault-code resolution
needs entries from the vehicle AND the motion program, and the pass
refuses to start when either is missing.

Examples:
  ohtscope analyze logs/2026-08-12/ --vehicle vehicle_control.zip --motion motion_control.zip
  ohtscope analyze bundle.zip --vehicle veh/ --motion mot/ --code E960 --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	f := analyzeCmd.Flags()
	f.StringVar(&analyzeFlags.vehicleSrc, "vehicle", "", "Vehicle control source collection (dir or ZIP)")
	f.StringVar(&analyzeFlags.motionSrc, "motion", "", "Motion control source collection (dir or ZIP)")
	f.StringSliceVar(&analyzeFlags.excludes, "exclude", nil, "Path fragment to exclude from source indexing (repeatable)")
	f.StringSliceVar(&analyzeFlags.codes, "code", nil, "Restrict to fault code, e.g. E960 (repeatable)")
	f.IntVar(&analyzeFlags.workers, "workers", 4, "Parallel correlation workers")
	f.StringVarP(&analyzeFlags.output, "output", "o", "", "Report output path (default: stdout)")
	f.BoolVar(&analyzeFlags.asJSON, "json", false, "Emit findings as JSON instead of the text report")
	_ = analyzeCmd.MarkFlagRequired("vehicle")
	_ = analyzeCmd.MarkFlagRequired("motion")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	sess, st, err := openSession()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	if _, _, err := sess.LoadOrBuildIndex(ctx, analyzeFlags.vehicleSrc, analyzeFlags.motionSrc, analyzeFlags.excludes); err != nil {
		return err
	}
	if _, err := sess.LoadLogs(args); err != nil {
		return err
	}
	findings, err := sess.Analyze(ctx, engine.Options{
		TargetCodes: analyzeFlags.codes,
		Workers:     analyzeFlags.workers,
	})
	if err != nil {
		return err
	}

	out := os.Stdout
	if analyzeFlags.output != "" {
		f, err := os.Create(analyzeFlags.output)
		if err != nil {
			return fmt.Errorf("create report: %w", err)
		}
		defer f.Close()
		out = f
	}

	snap := sess.Rules().Snapshot()
	if analyzeFlags.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			RuleSetVersion int `json:"ruleset_version"`
			Findings       any `json:"findings"`
		}{snap.Version, findings})
	}
	return renderReport(out, findings, snap)
}
