package record

// Verdict is the outcome of correlating one anchor. The policy is
// conservative: absent at least one non-ambiguous precursor correlation the
// verdict stays Undetermined rather than guessing.
type Verdict string

const (
	VerdictDetermined   Verdict = "determined"
	VerdictUndetermined Verdict = "undetermined"
)

// Anchor is one fault-anchor occurrence: a log line matching a known
// fault-code pattern. Name is empty when the code has no entry in the merged
// error-code index; a resolution miss is not an error.
type Anchor struct {
	Code      int    `json:"code"`
	Name      string `json:"name,omitempty"`
	Component string `json:"component,omitempty"` // vehicle or motion, when resolved
	Axis      string `json:"axis,omitempty"`      // axis label when Name carries AXIS<n>
	Category  string `json:"category"`            // anchor pattern category
	TimeMS    int64  `json:"time_ms"`
	Ref       Ref    `json:"ref"`
	Text      string `json:"text"`
}

// Correlation is one precursor match inside an anchor's time window.
// DeltaMS is signed: negative means the precursor precedes the anchor.
// Ambiguous marks matches that a confusable pattern also explains; ambiguous
// evidence is retained but cannot promote a verdict to Determined.
type Correlation struct {
	PrecursorID string `json:"precursor_id"`
	Category    string `json:"category"`
	TimeMS      int64  `json:"time_ms"`
	DeltaMS     int64  `json:"delta_ms"`
	Ref         Ref    `json:"ref"`
	Text        string `json:"text"`
	Ambiguous   bool   `json:"ambiguous,omitempty"`
}

// Evidence is a supporting record that is not itself a correlation: drive-log
// samples near the anchor, confusable matches, untimed adjacent lines.
type Evidence struct {
	TimeMS int64  `json:"time_ms"`
	Timed  bool   `json:"timed"`
	Ref    Ref    `json:"ref"`
	Text   string `json:"text"`
}

// Finding is the engine's output for one anchor: the resolved anchor, all
// precursor correlations ordered closest-in-time first, drive evidence, the
// verdict, and the ordered evidence trail backing it.
type Finding struct {
	Anchor       Anchor        `json:"anchor"`
	Precursors   []Correlation `json:"precursors,omitempty"`
	DriveSamples []Evidence    `json:"drive_samples,omitempty"`
	Verdict      Verdict       `json:"verdict"`
	Rationale    []Ref         `json:"rationale"`
}
