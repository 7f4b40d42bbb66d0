package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"ohtscope/internal/record"
)

func finding(code int, name string, ms int64) record.Finding {
	return record.Finding{
		Anchor: record.Anchor{
			Code:   code,
			Name:   name,
			TimeMS: ms,
			Ref:    record.Ref{Source: "master.log", Seq: int(ms / 100)},
			Text:   "fault line",
		},
		Verdict:   record.VerdictUndetermined,
		Rationale: []record.Ref{{Source: "master.log", Seq: int(ms / 100)}},
	}
}

func TestMSToHMS(t *testing.T) {
	cases := map[int64]string{
		0:                             "00:00:00.000",
		((13*60+5)*60+7)*1000 + 250:   "13:05:07.250",
		((23*60+59)*60+59)*1000 + 999: "23:59:59.999",
	}
	for ms, want := range cases {
		if got := MSToHMS(ms); got != want {
			t.Errorf("MSToHMS(%d) = %q, want %q", ms, got, want)
		}
	}
}

func TestBannerEpisodeMerging(t *testing.T) {
	// Three E960 anchors: two within the 2s merge gap, one far later.
	findings := []record.Finding{
		finding(960, "ERR_COMM", 1000),
		finding(960, "ERR_COMM", 2500),
		finding(960, "ERR_COMM", 60000),
		finding(214, "", 5000),
	}
	lines := Banner(findings, 2*time.Second)
	if len(lines) != 2 {
		t.Fatalf("banner lines: got %d, want 2", len(lines))
	}
	// Codes ascend.
	if lines[0].Code != 214 || lines[1].Code != 960 {
		t.Errorf("code order: got %d, %d", lines[0].Code, lines[1].Code)
	}
	b := lines[1]
	if b.Count != 3 || b.Episodes != 2 {
		t.Errorf("E960: count=%d episodes=%d, want 3 and 2", b.Count, b.Episodes)
	}
	if b.FirstMS != 1000 || b.LastMS != 60000 {
		t.Errorf("E960 window: %d ~ %d", b.FirstMS, b.LastMS)
	}
	if b.Name != "ERR_COMM" {
		t.Errorf("E960 name: got %q", b.Name)
	}
}

func TestBannerFlags(t *testing.T) {
	clean := finding(960, "", 1000)
	clean.Precursors = []record.Correlation{{PrecursorID: "frame-loss", DeltaMS: -300}}
	clean.DriveSamples = []record.Evidence{{TimeMS: 900}}

	ambiguous := finding(214, "", 2000)
	ambiguous.Precursors = []record.Correlation{{PrecursorID: "comm-timeout", Ambiguous: true}}

	lines := Banner([]record.Finding{clean, ambiguous}, 2*time.Second)
	if !lines[1].Precursor || !lines[1].Drive {
		t.Errorf("E960 flags: %+v", lines[1])
	}
	// Ambiguous-only evidence does not set the precursor flag.
	if lines[0].Precursor || lines[0].Drive {
		t.Errorf("E214 flags: %+v", lines[0])
	}
}

func TestRenderText(t *testing.T) {
	f := finding(960, "ERR_OHT_DRIVING_ABNORMAL_COMM", ((13*60+5)*60+7)*1000)
	f.Anchor.Component = "vehicle"
	f.Anchor.Axis = "drive"
	f.Verdict = record.VerdictDetermined
	f.Precursors = []record.Correlation{
		{PrecursorID: "frame-loss", DeltaMS: -300, Ref: record.Ref{Source: "comm.log", Seq: 4}, Text: "frame loss"},
		{PrecursorID: "comm-timeout", DeltaMS: 500, Ambiguous: true, Ref: record.Ref{Source: "comm.log", Seq: 9}, Text: "comm timeout"},
	}
	for i := 0; i < 5; i++ {
		f.DriveSamples = append(f.DriveSamples, record.Evidence{
			TimeMS: int64(1000 * i), Ref: record.Ref{Source: "drive.log", Seq: i}, Text: "VEL=100",
		})
	}

	var buf bytes.Buffer
	if err := RenderText(&buf, []record.Finding{f}, 3, 2*time.Second); err != nil {
		t.Fatalf("RenderText: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"analysis report (ruleset v3, findings 1)",
		"- E960 (ERR_OHT_DRIVING_ABNORMAL_COMM): count=1 episodes=1 window=13:05:07.000 ~ 13:05:07.000 | precursor=YES | driving=YES",
		"name: ERR_OHT_DRIVING_ABNORMAL_COMM (vehicle)",
		"axis: drive",
		"verdict: determined",
		"precursor frame-loss (Δt=-300ms): comm.log :: frame loss",
		"precursor comm-timeout (Δt=+500ms) [ambiguous]: comm.log :: comm timeout",
		"drive: ... 2 more",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestRenderTextEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderText(&buf, nil, 1, time.Second); err != nil {
		t.Fatalf("RenderText: %v", err)
	}
	if !strings.Contains(buf.String(), "no fault anchors found") {
		t.Errorf("empty report: %q", buf.String())
	}
}

func TestRenderTextUnresolved(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderText(&buf, []record.Finding{finding(777, "", 1000)}, 1, time.Second); err != nil {
		t.Fatalf("RenderText: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "name: unresolved") {
		t.Errorf("unresolved name missing:\n%s", out)
	}
	if !strings.Contains(out, "precursor=NO | driving=UNSURE") {
		t.Errorf("banner flags missing:\n%s", out)
	}
}
