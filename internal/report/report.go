// Package report renders engine findings into the operator-facing text
// report: a per-code banner followed by one section per finding. It consumes
// only the finding contract.
package report

import (
	"fmt"
	"io"
	"sort"
	"time"

	"ohtscope/internal/record"
)

// MSToHMS formats milliseconds since midnight as hh:mm:ss.mmm.
func MSToHMS(ms int64) string {
	hh := ms / 3600000
	ms %= 3600000
	mm := ms / 60000
	ms %= 60000
	ss := ms / 1000
	ms %= 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", hh, mm, ss, ms)
}

// BannerLine summarizes one fault code across the whole pass.
type BannerLine struct {
	Code      int
	Name      string
	Count     int
	Episodes  int // anchor clusters separated by more than the merge gap
	FirstMS   int64
	LastMS    int64
	Precursor bool // any non-ambiguous precursor correlation
	Drive     bool // any drive-log evidence
}

// Banner groups findings per fault code. Anchors of one code closer than
// merge are counted as one episode, the way repeated raise/clear cycles of
// the same fault read as one field event.
func Banner(findings []record.Finding, merge time.Duration) []BannerLine {
	byCode := make(map[int][]record.Finding)
	for _, f := range findings {
		byCode[f.Anchor.Code] = append(byCode[f.Anchor.Code], f)
	}
	codes := make([]int, 0, len(byCode))
	for code := range byCode {
		codes = append(codes, code)
	}
	sort.Ints(codes)

	gap := merge.Milliseconds()
	var out []BannerLine
	for _, code := range codes {
		group := byCode[code]
		line := BannerLine{
			Code:    code,
			Name:    group[0].Anchor.Name,
			Count:   len(group),
			FirstMS: group[0].Anchor.TimeMS,
			LastMS:  group[0].Anchor.TimeMS,
		}
		episodes := 1
		prev := group[0].Anchor.TimeMS
		for _, f := range group {
			ts := f.Anchor.TimeMS
			if ts < line.FirstMS {
				line.FirstMS = ts
			}
			if ts > line.LastMS {
				line.LastMS = ts
			}
			if ts-prev > gap {
				episodes++
			}
			prev = ts
			if f.Anchor.Name != "" {
				line.Name = f.Anchor.Name
			}
			for _, c := range f.Precursors {
				if !c.Ambiguous {
					line.Precursor = true
				}
			}
			if len(f.DriveSamples) > 0 {
				line.Drive = true
			}
		}
		line.Episodes = episodes
		out = append(out, line)
	}
	return out
}

// RenderText writes the full text report.
func RenderText(w io.Writer, findings []record.Finding, rulesVersion int, merge time.Duration) error {
	fmt.Fprintf(w, "analysis report (ruleset v%d, findings %d)\n\n", rulesVersion, len(findings))

	if len(findings) == 0 {
		fmt.Fprintln(w, "no fault anchors found")
		return nil
	}

	fmt.Fprintln(w, "== banner ==")
	for _, b := range Banner(findings, merge) {
		name := ""
		if b.Name != "" {
			name = fmt.Sprintf(" (%s)", b.Name)
		}
		fmt.Fprintf(w, "- E%d%s: count=%d episodes=%d window=%s ~ %s | precursor=%s | driving=%s\n",
			b.Code, name, b.Count, b.Episodes,
			MSToHMS(b.FirstMS), MSToHMS(b.LastMS),
			yesNo(b.Precursor), yesUnsure(b.Drive))
	}
	fmt.Fprintln(w)

	for i, f := range findings {
		fmt.Fprintf(w, "== finding %d: E%d @ %s ==\n", i+1, f.Anchor.Code, MSToHMS(f.Anchor.TimeMS))
		if f.Anchor.Name != "" {
			fmt.Fprintf(w, "name: %s (%s)\n", f.Anchor.Name, f.Anchor.Component)
		} else {
			fmt.Fprintln(w, "name: unresolved")
		}
		if f.Anchor.Axis != "" {
			fmt.Fprintf(w, "axis: %s\n", f.Anchor.Axis)
		}
		fmt.Fprintf(w, "anchor: [%s] %s :: %s\n", MSToHMS(f.Anchor.TimeMS), f.Anchor.Ref.Source, f.Anchor.Text)
		fmt.Fprintf(w, "verdict: %s\n", f.Verdict)
		for _, c := range f.Precursors {
			flag := ""
			if c.Ambiguous {
				flag = " [ambiguous]"
			}
			fmt.Fprintf(w, "precursor %s (Δt=%+dms)%s: %s :: %s\n",
				c.PrecursorID, c.DeltaMS, flag, c.Ref.Source, c.Text)
		}
		for j, d := range f.DriveSamples {
			if j == 3 {
				fmt.Fprintf(w, "drive: ... %d more\n", len(f.DriveSamples)-3)
				break
			}
			fmt.Fprintf(w, "drive: [%s] %s :: %s\n", MSToHMS(d.TimeMS), d.Ref.Source, d.Text)
		}
		fmt.Fprintf(w, "rationale: %d record(s)\n\n", len(f.Rationale))
	}
	return nil
}

func yesNo(v bool) string {
	if v {
		return "YES"
	}
	return "NO"
}

func yesUnsure(v bool) string {
	if v {
		return "YES"
	}
	return "UNSURE"
}
