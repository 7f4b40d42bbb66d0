// Package rules holds the authoritative, versioned rule set: anchor matchers,
// precursor matchers, confusable conflicts, drive hints, and the axis map.
// A RuleSet is immutable once compiled; every mutation path produces a new
// version through the Repository.
package rules

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
)

// AnchorPattern matches a log line carrying a numeric fault code. The pattern
// must contain one capturing group holding the code digits.
type AnchorPattern struct {
	Pattern  string `yaml:"pattern" json:"pattern"`
	Category string `yaml:"category" json:"category"`

	rx *regexp.Regexp
}

// Match reports the numeric code captured from line, if any.
func (a *AnchorPattern) Match(line string) (int, bool) {
	m := a.rx.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	code, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return code, true
}

// PrecursorPattern matches an event that may precede or explain an anchor
// within its time window. Window bounds are durations, not record counts.
type PrecursorPattern struct {
	ID        string   `yaml:"id" json:"id"`
	Pattern   string   `yaml:"pattern" json:"pattern"`
	Category  string   `yaml:"category" json:"category"`
	Axis      *int     `yaml:"axis,omitempty" json:"axis,omitempty"`
	Lookback  Duration `yaml:"lookback" json:"lookback"`
	Lookahead Duration `yaml:"lookahead" json:"lookahead"`

	rx *regexp.Regexp
}

// Matches reports whether line matches this precursor.
func (p *PrecursorPattern) Matches(line string) bool { return p.rx.MatchString(line) }

// ConfusablePattern marks lines that can be mistaken for a given precursor.
// A confusable match inside the same window flags that precursor's matches
// as ambiguous evidence.
type ConfusablePattern struct {
	Pattern       string `yaml:"pattern" json:"pattern"`
	ConflictsWith string `yaml:"conflicts_with" json:"conflicts_with"`

	rx *regexp.Regexp
}

// Matches reports whether line matches this confusable.
func (c *ConfusablePattern) Matches(line string) bool { return c.rx.MatchString(line) }

// RuleSet is one immutable rule-set version. Exported fields carry the
// document form; Compile builds the matchers and must succeed before use.
type RuleSet struct {
	Version     int                 `yaml:"version" json:"version"`
	Anchors     []AnchorPattern     `yaml:"anchors" json:"anchors"`
	Precursors  []PrecursorPattern  `yaml:"precursors" json:"precursors"`
	Confusables []ConfusablePattern `yaml:"confusables,omitempty" json:"confusables,omitempty"`
	DriveHints  []string            `yaml:"drive_hints,omitempty" json:"drive_hints,omitempty"`
	Categories  map[string]string   `yaml:"categories,omitempty" json:"categories,omitempty"`
	AxisMap     map[int]string      `yaml:"axis_map" json:"axis_map"`
	AnchorMerge Duration            `yaml:"anchor_merge" json:"anchor_merge"`

	driveRx  []*regexp.Regexp
	catNames []string
	catRx    []*regexp.Regexp
	byID     map[string]*PrecursorPattern
	compiled bool
}

// ci compiles pattern case-insensitively, matching the field log convention
// where severity and subsystem tags vary in casing.
func ci(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile("(?i)" + pattern)
}

// Compile validates the rule set and builds all matchers. It returns a
// *ValidationError naming the offending entry on any structural defect.
func (rs *RuleSet) Compile() error {
	if err := rs.validate(); err != nil {
		return err
	}

	for i := range rs.Anchors {
		rx, _ := ci(rs.Anchors[i].Pattern)
		rs.Anchors[i].rx = rx
	}
	rs.byID = make(map[string]*PrecursorPattern, len(rs.Precursors))
	for i := range rs.Precursors {
		rx, _ := ci(rs.Precursors[i].Pattern)
		rs.Precursors[i].rx = rx
		rs.byID[rs.Precursors[i].ID] = &rs.Precursors[i]
	}
	for i := range rs.Confusables {
		rx, _ := ci(rs.Confusables[i].Pattern)
		rs.Confusables[i].rx = rx
	}
	rs.driveRx = rs.driveRx[:0]
	for _, p := range rs.DriveHints {
		rx, _ := ci(p)
		rs.driveRx = append(rs.driveRx, rx)
	}

	// Category match order must not depend on map iteration.
	rs.catNames = rs.catNames[:0]
	for name := range rs.Categories {
		rs.catNames = append(rs.catNames, name)
	}
	sort.Strings(rs.catNames)
	rs.catRx = rs.catRx[:0]
	for _, name := range rs.catNames {
		rx, _ := ci(rs.Categories[name])
		rs.catRx = append(rs.catRx, rx)
	}

	rs.compiled = true
	return nil
}

// Compiled reports whether Compile has succeeded on this rule set.
func (rs *RuleSet) Compiled() bool { return rs.compiled }

// Categorize returns the log category for a source file name, or "misc" when
// no category pattern matches.
func (rs *RuleSet) Categorize(filename string) string {
	for i, rx := range rs.catRx {
		if rx.MatchString(filename) {
			return rs.catNames[i]
		}
	}
	return "misc"
}

// DriveHit reports whether line matches any drive-hint pattern.
func (rs *RuleSet) DriveHit(line string) bool {
	for _, rx := range rs.driveRx {
		if rx.MatchString(line) {
			return true
		}
	}
	return false
}

// AxisLabel returns the axis label for an axis index.
func (rs *RuleSet) AxisLabel(idx int) (string, bool) {
	label, ok := rs.AxisMap[idx]
	return label, ok
}

// PrecursorByID returns the precursor with the given id.
func (rs *RuleSet) PrecursorByID(id string) (*PrecursorPattern, bool) {
	p, ok := rs.byID[id]
	return p, ok
}

// ConfusablesFor returns the confusables conflicting with precursor id.
func (rs *RuleSet) ConfusablesFor(id string) []*ConfusablePattern {
	var out []*ConfusablePattern
	for i := range rs.Confusables {
		if rs.Confusables[i].ConflictsWith == id {
			out = append(out, &rs.Confusables[i])
		}
	}
	return out
}

// Clone returns a deep, uncompiled copy of the rule set document.
func (rs *RuleSet) Clone() *RuleSet {
	out := &RuleSet{
		Version:     rs.Version,
		Anchors:     append([]AnchorPattern(nil), rs.Anchors...),
		Precursors:  make([]PrecursorPattern, len(rs.Precursors)),
		Confusables: append([]ConfusablePattern(nil), rs.Confusables...),
		DriveHints:  append([]string(nil), rs.DriveHints...),
		AnchorMerge: rs.AnchorMerge,
	}
	for i, p := range rs.Precursors {
		out.Precursors[i] = p
		if p.Axis != nil {
			axis := *p.Axis
			out.Precursors[i].Axis = &axis
		}
		out.Precursors[i].rx = nil
	}
	for i := range out.Anchors {
		out.Anchors[i].rx = nil
	}
	for i := range out.Confusables {
		out.Confusables[i].rx = nil
	}
	if rs.Categories != nil {
		out.Categories = make(map[string]string, len(rs.Categories))
		for k, v := range rs.Categories {
			out.Categories[k] = v
		}
	}
	if rs.AxisMap != nil {
		out.AxisMap = make(map[int]string, len(rs.AxisMap))
		for k, v := range rs.AxisMap {
			out.AxisMap[k] = v
		}
	}
	return out
}

func (rs *RuleSet) validate() error {
	if len(rs.Anchors) == 0 {
		return &ValidationError{Kind: "anchor", Reason: "at least one anchor pattern is required"}
	}
	if len(rs.AxisMap) == 0 {
		return &ValidationError{Kind: "axis_map", Reason: "axis map must not be empty"}
	}
	for _, a := range rs.Anchors {
		rx, err := ci(a.Pattern)
		if err != nil {
			return &ValidationError{Kind: "anchor", ID: a.Pattern, Reason: fmt.Sprintf("invalid pattern: %v", err)}
		}
		if rx.NumSubexp() < 1 {
			return &ValidationError{Kind: "anchor", ID: a.Pattern, Reason: "pattern must capture the numeric code"}
		}
	}
	seen := make(map[string]bool, len(rs.Precursors))
	for _, p := range rs.Precursors {
		if p.ID == "" {
			return &ValidationError{Kind: "precursor", Reason: "precursor id must not be empty"}
		}
		if seen[p.ID] {
			return &ValidationError{Kind: "precursor", ID: p.ID, Reason: "duplicate precursor id"}
		}
		seen[p.ID] = true
		if _, err := ci(p.Pattern); err != nil {
			return &ValidationError{Kind: "precursor", ID: p.ID, Reason: fmt.Sprintf("invalid pattern: %v", err)}
		}
		if p.Lookback < 0 || p.Lookahead < 0 {
			return &ValidationError{Kind: "precursor", ID: p.ID, Reason: "window durations must not be negative"}
		}
		if p.Axis != nil {
			if _, ok := rs.AxisMap[*p.Axis]; !ok {
				return &ValidationError{Kind: "precursor", ID: p.ID, Reason: fmt.Sprintf("axis %d outside axis map domain", *p.Axis)}
			}
		}
	}
	for _, c := range rs.Confusables {
		if !seen[c.ConflictsWith] {
			return &ValidationError{Kind: "confusable", ID: c.ConflictsWith, Reason: "conflicts_with does not resolve to a precursor id"}
		}
		if _, err := ci(c.Pattern); err != nil {
			return &ValidationError{Kind: "confusable", ID: c.ConflictsWith, Reason: fmt.Sprintf("invalid pattern: %v", err)}
		}
	}
	for name, p := range rs.Categories {
		if _, err := ci(p); err != nil {
			return &ValidationError{Kind: "category", ID: name, Reason: fmt.Sprintf("invalid pattern: %v", err)}
		}
	}
	for _, p := range rs.DriveHints {
		if _, err := ci(p); err != nil {
			return &ValidationError{Kind: "drive_hint", ID: p, Reason: fmt.Sprintf("invalid pattern: %v", err)}
		}
	}
	return nil
}

// ValidationError names a structural defect in a rule set document or
// submission. It is never partially applied: the rule set stays at its prior
// version when one is returned.
type ValidationError struct {
	Kind   string // anchor, precursor, confusable, category, drive_hint, axis_map
	ID     string // offending id or pattern, when known
	Reason string
}

func (e *ValidationError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("ruleset validation: %s %q: %s", e.Kind, e.ID, e.Reason)
	}
	return fmt.Sprintf("ruleset validation: %s: %s", e.Kind, e.Reason)
}
