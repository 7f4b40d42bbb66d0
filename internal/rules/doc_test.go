package rules

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const docYAML = `version: 3
anchor_merge: 2s
anchors:
  - pattern: '\[E\s*(\d{3})\]'
    category: bracketed
precursors:
  - id: frame-loss
    pattern: 'frame\s*loss'
    lookback: 3s
    lookahead: 1000
axis_map:
  0: drive
`

func TestLoadYAML(t *testing.T) {
	rs, err := Load([]byte(docYAML), ".yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rs.Version != 3 {
		t.Errorf("version: got %d, want 3", rs.Version)
	}
	if rs.AnchorMerge.Std() != 2*time.Second {
		t.Errorf("anchor_merge: got %v", rs.AnchorMerge.Std())
	}
	p, ok := rs.PrecursorByID("frame-loss")
	if !ok {
		t.Fatal("frame-loss missing")
	}
	if p.Lookback.Std() != 3*time.Second {
		t.Errorf("lookback: got %v, want 3s", p.Lookback.Std())
	}
	// Bare integers are milliseconds.
	if p.Lookahead.Std() != time.Second {
		t.Errorf("lookahead: got %v, want 1s", p.Lookahead.Std())
	}
}

func TestLoadDetectJSON(t *testing.T) {
	doc := `{"version":2,"anchor_merge":"2s","axis_map":{"0":"drive"},` +
		`"anchors":[{"pattern":"Error\\s*[:=]\\s*(\\d{3})","category":"keyed"}],` +
		`"precursors":[{"id":"x","pattern":"x","lookback":"500ms","lookahead":"1s"}]}`
	rs, err := Load([]byte(doc), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rs.Version != 2 {
		t.Errorf("version: got %d, want 2", rs.Version)
	}
	p, _ := rs.PrecursorByID("x")
	if p.Lookback.Std() != 500*time.Millisecond {
		t.Errorf("lookback: got %v", p.Lookback.Std())
	}
}

func TestLoadRejectsInvalidDocument(t *testing.T) {
	if _, err := Load([]byte("version: 1\naxis_map: {0: drive}\n"), ".yaml"); err == nil {
		t.Fatal("document without anchors accepted")
	}
	if _, err := Load([]byte("{nope"), ""); err == nil {
		t.Fatal("malformed document accepted")
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	rs, err := Load([]byte(docYAML), ".yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	data, err := Marshal(rs)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	back, err := Load(data, ".yaml")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if back.Version != rs.Version || len(back.Precursors) != len(rs.Precursors) {
		t.Errorf("round trip lost content: %+v", back)
	}
	p, _ := back.PrecursorByID("frame-loss")
	if p.Lookahead.Std() != time.Second {
		t.Errorf("lookahead after round trip: got %v", p.Lookahead.Std())
	}
}

func TestLoadFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yml")
	if err := os.WriteFile(path, []byte(docYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	rs, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if rs.Version != 3 {
		t.Errorf("version: got %d", rs.Version)
	}
}
