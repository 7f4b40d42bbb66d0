// Package engine implements the evidence correlation pass: anchor scan,
// cross-source code resolution, bounded time-window precursor correlation,
// confusable flagging, and conservative verdict derivation. A pass is a pure
// computation over an immutable rule-set snapshot and a validated code
// index; identical inputs always produce identical findings.
package engine

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"ohtscope/internal/codeindex"
	"ohtscope/internal/logging"
	"ohtscope/internal/record"
	"ohtscope/internal/rules"
)

// ControlCycle is the fixed inter-process communication cycle of the vehicle
// and motion control programs. It documents the expected granularity of
// precursor windows; Δt values are never clamped or rounded to it.
const ControlCycle = time.Millisecond

// DefaultDriveWindow bounds how far around an anchor drive-log samples are
// collected as supporting evidence.
const DefaultDriveWindow = 10 * time.Second

// Options tune one analysis pass.
type Options struct {
	// TargetCodes restricts findings to the given fault codes. Codes may be
	// written with or without the leading E ("E960" or "960"); empty means
	// all codes.
	TargetCodes []string
	// Workers caps the parallel per-anchor correlation goroutines.
	// Values below 1 mean serial.
	Workers int
	// DriveWindow overrides DefaultDriveWindow when positive.
	DriveWindow time.Duration
}

var axisRx = regexp.MustCompile(`AXIS(\d)`)

// Run executes one full analysis pass. It refuses to start on an uncompiled
// rule-set snapshot or an index failing the dual-component invariant; in
// either case no findings are produced at all.
func Run(ctx context.Context, records []record.Record, rs *rules.RuleSet, idx *codeindex.Index, opts Options) ([]record.Finding, error) {
	if rs == nil || !rs.Compiled() {
		return nil, &rules.ValidationError{Kind: "snapshot", Reason: "rule set snapshot is not compiled"}
	}
	if idx == nil {
		return nil, &codeindex.ValidationError{Missing: []codeindex.Component{codeindex.ComponentVehicle, codeindex.ComponentMotion}}
	}
	if err := idx.Validate(); err != nil {
		return nil, err
	}

	log := logging.New("engine")
	tl := buildTimeline(records)
	adjacent := untimedBySourceSeq(records)
	filter := normalizeTargetCodes(opts.TargetCodes)

	anchors := scanAnchors(records, rs, filter)
	log.Info("anchor scan complete", "records", len(records), "anchors", len(anchors))

	driveWindow := opts.DriveWindow
	if driveWindow <= 0 {
		driveWindow = DefaultDriveWindow
	}

	findings := make([]record.Finding, len(anchors))
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range anchors {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			findings[i] = correlate(anchors[i], tl, adjacent, rs, idx, driveWindow)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i].Anchor, findings[j].Anchor
		if a.TimeMS != b.TimeMS {
			return a.TimeMS < b.TimeMS
		}
		if a.Ref.Source != b.Ref.Source {
			return a.Ref.Source < b.Ref.Source
		}
		if a.Ref.Seq != b.Ref.Seq {
			return a.Ref.Seq < b.Ref.Seq
		}
		return a.Code < b.Code
	})
	return findings, nil
}

// scanAnchors iterates the record sequence once, testing every anchor
// pattern per record. Untimed records cannot anchor a window search and
// produce no occurrence.
func scanAnchors(records []record.Record, rs *rules.RuleSet, filter map[int]bool) []record.Anchor {
	var out []record.Anchor
	for _, rec := range records {
		if !rec.Timed {
			continue
		}
		for i := range rs.Anchors {
			code, ok := rs.Anchors[i].Match(rec.Text)
			if !ok {
				continue
			}
			if filter != nil && !filter[code] {
				continue
			}
			out = append(out, record.Anchor{
				Code:     code,
				Category: rs.Anchors[i].Category,
				TimeMS:   rec.TimeMS,
				Ref:      record.RefOf(rec),
				Text:     rec.Text,
			})
		}
	}
	return out
}

// correlate assembles the finding for one anchor. Each anchor's window
// search is independent of every other's, so this runs on any worker with
// identical output.
func correlate(anchor record.Anchor, tl timeline, adjacent map[record.Ref]record.Record, rs *rules.RuleSet, idx *codeindex.Index, driveWindow time.Duration) record.Finding {
	if e, ok := idx.Resolve(anchor.Code); ok {
		anchor.Name = e.Name
		anchor.Component = string(e.Component)
		if m := axisRx.FindStringSubmatch(e.Name); m != nil {
			n, _ := strconv.Atoi(m[1])
			if label, ok := rs.AxisLabel(n); ok {
				anchor.Axis = label
			}
		}
	}

	var correlations []record.Correlation
	var confusableHits []record.Evidence
	for i := range rs.Precursors {
		p := &rs.Precursors[i]
		lo := anchor.TimeMS - p.Lookback.Std().Milliseconds()
		hi := anchor.TimeMS + p.Lookahead.Std().Milliseconds()

		var matched []record.Correlation
		for _, rec := range tl.rangeQuery(lo, hi) {
			if !p.Matches(rec.Text) {
				continue
			}
			matched = append(matched, record.Correlation{
				PrecursorID: p.ID,
				Category:    p.Category,
				TimeMS:      rec.TimeMS,
				DeltaMS:     rec.TimeMS - anchor.TimeMS,
				Ref:         record.RefOf(rec),
				Text:        rec.Text,
			})
		}
		if len(matched) == 0 {
			continue
		}

		// A confusable firing in the same window means these matches could
		// equally be explained by an unrelated condition. Keep them, flag
		// them, and let the verdict policy discount them.
		for _, c := range rs.ConfusablesFor(p.ID) {
			hit := false
			for _, rec := range tl.rangeQuery(lo, hi) {
				if c.Matches(rec.Text) {
					confusableHits = append(confusableHits, record.Evidence{
						TimeMS: rec.TimeMS,
						Timed:  true,
						Ref:    record.RefOf(rec),
						Text:   rec.Text,
					})
					hit = true
				}
			}
			if hit {
				for j := range matched {
					matched[j].Ambiguous = true
				}
			}
		}
		correlations = append(correlations, matched...)
	}

	// Closest-in-time first; this ordering is the headline tie-break.
	sort.SliceStable(correlations, func(i, j int) bool {
		ai, aj := absMS(correlations[i].DeltaMS), absMS(correlations[j].DeltaMS)
		if ai != aj {
			return ai < aj
		}
		if correlations[i].DeltaMS != correlations[j].DeltaMS {
			return correlations[i].DeltaMS < correlations[j].DeltaMS
		}
		if correlations[i].Ref.Source != correlations[j].Ref.Source {
			return correlations[i].Ref.Source < correlations[j].Ref.Source
		}
		if correlations[i].Ref.Seq != correlations[j].Ref.Seq {
			return correlations[i].Ref.Seq < correlations[j].Ref.Seq
		}
		return correlations[i].PrecursorID < correlations[j].PrecursorID
	})

	driveSamples := collectDrive(anchor, tl, rs, driveWindow)

	verdict := record.VerdictUndetermined
	for _, c := range correlations {
		if !c.Ambiguous {
			verdict = record.VerdictDetermined
			break
		}
	}

	return record.Finding{
		Anchor:       anchor,
		Precursors:   correlations,
		DriveSamples: driveSamples,
		Verdict:      verdict,
		Rationale:    rationale(anchor, correlations, confusableHits, adjacent),
	}
}

func collectDrive(anchor record.Anchor, tl timeline, rs *rules.RuleSet, window time.Duration) []record.Evidence {
	if len(rs.DriveHints) == 0 {
		return nil
	}
	w := window.Milliseconds()
	var out []record.Evidence
	for _, rec := range tl.rangeQuery(anchor.TimeMS-w, anchor.TimeMS+w) {
		if rs.DriveHit(rec.Text) {
			out = append(out, record.Evidence{
				TimeMS: rec.TimeMS,
				Timed:  true,
				Ref:    record.RefOf(rec),
				Text:   rec.Text,
			})
		}
	}
	return out
}

// rationale orders the evidence trail: the anchor itself, correlated
// precursors, confusable hits, then untimed lines textually adjacent to the
// anchor (operators value raw context even when it cannot be time-ordered).
func rationale(anchor record.Anchor, correlations []record.Correlation, confusableHits []record.Evidence, adjacent map[record.Ref]record.Record) []record.Ref {
	refs := []record.Ref{anchor.Ref}
	seen := map[record.Ref]bool{anchor.Ref: true}
	add := func(r record.Ref) {
		if !seen[r] {
			seen[r] = true
			refs = append(refs, r)
		}
	}
	for _, c := range correlations {
		add(c.Ref)
	}
	sort.SliceStable(confusableHits, func(i, j int) bool {
		if confusableHits[i].TimeMS != confusableHits[j].TimeMS {
			return confusableHits[i].TimeMS < confusableHits[j].TimeMS
		}
		if confusableHits[i].Ref.Source != confusableHits[j].Ref.Source {
			return confusableHits[i].Ref.Source < confusableHits[j].Ref.Source
		}
		return confusableHits[i].Ref.Seq < confusableHits[j].Ref.Seq
	})
	for _, e := range confusableHits {
		add(e.Ref)
	}
	for _, d := range []int{-1, 1} {
		ref := record.Ref{Source: anchor.Ref.Source, Seq: anchor.Ref.Seq + d}
		if _, ok := adjacent[ref]; ok {
			add(ref)
		}
	}
	return refs
}

func untimedBySourceSeq(records []record.Record) map[record.Ref]record.Record {
	out := make(map[record.Ref]record.Record)
	for _, rec := range records {
		if !rec.Timed {
			out[record.RefOf(rec)] = rec
		}
	}
	return out
}

func normalizeTargetCodes(codes []string) map[int]bool {
	var out map[int]bool
	for _, raw := range codes {
		text := strings.TrimSpace(raw)
		if text == "" {
			continue
		}
		if strings.HasPrefix(strings.ToUpper(text), "E") {
			text = text[1:]
		}
		code, err := strconv.Atoi(text)
		if err != nil {
			continue
		}
		if out == nil {
			out = make(map[int]bool)
		}
		out[code] = true
	}
	return out
}

func absMS(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
