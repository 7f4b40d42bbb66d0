package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ohtscope/internal/codeindex"
)

var indexFlags struct {
	vehicleSrc string
	motionSrc  string
	excludes   []string
	rebuild    bool
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build or refresh the fault-code index from control sources",
	Long: `Index scans the vehicle and motion control source collections for
ERR_* fault-code constants and caches the result keyed by a content
fingerprint. Unchanged sources reuse the cached index on later runs.`,
	RunE: runIndex,
}

func init() {
	f := indexCmd.Flags()
	f.StringVar(&indexFlags.vehicleSrc, "vehicle", "", "Vehicle control source collection (dir or ZIP)")
	f.StringVar(&indexFlags.motionSrc, "motion", "", "Motion control source collection (dir or ZIP)")
	f.StringSliceVar(&indexFlags.excludes, "exclude", nil, "Path fragment to exclude from indexing (repeatable)")
	f.BoolVar(&indexFlags.rebuild, "rebuild", false, "Rebuild even when a cached index matches the fingerprint")
	_ = indexCmd.MarkFlagRequired("vehicle")
	_ = indexCmd.MarkFlagRequired("motion")
}

func runIndex(cmd *cobra.Command, _ []string) error {
	sess, st, err := openSession()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	var (
		idx    *codeindex.Index
		cached bool
	)
	if indexFlags.rebuild {
		idx, err = codeindex.Build(ctx, indexFlags.vehicleSrc, indexFlags.motionSrc, indexFlags.excludes)
		if err != nil {
			return err
		}
		doc, merr := idx.Marshal()
		if merr != nil {
			return merr
		}
		if err := st.SaveIndexCache(idx.Fingerprint, doc); err != nil {
			return err
		}
	} else {
		idx, cached, err = sess.LoadOrBuildIndex(ctx, indexFlags.vehicleSrc, indexFlags.motionSrc, indexFlags.excludes)
		if err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "fingerprint: %s\n", idx.Fingerprint)
	fmt.Fprintf(out, "cached: %v\n", cached)
	for _, comp := range []codeindex.Component{codeindex.ComponentVehicle, codeindex.ComponentMotion} {
		fmt.Fprintf(out, "%s: %d entries\n", comp, idx.Count(comp))
	}
	return nil
}
