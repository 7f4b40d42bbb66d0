// Package record holds the shared data model of an analysis pass: normalized
// log records, fault anchors, precursor correlations, and findings.
package record

// Record is one normalized log line. Records are immutable once produced by
// the normalizer. TimeMS is milliseconds since midnight; logs carry only a
// time of day, never a date, so cross-midnight bundles are not correlated.
type Record struct {
	Source   string `json:"source"`   // bundle-relative file identity, e.g. "logs.zip:master.log"
	Seq      int    `json:"seq"`      // insertion order within Source
	Category string `json:"category"` // filename-derived log category
	TimeMS   int64  `json:"time_ms"`
	Timed    bool   `json:"timed"` // false when no timestamp could be parsed
	Text     string `json:"text"`
}

// Ref identifies a Record without carrying its text.
type Ref struct {
	Source string `json:"source"`
	Seq    int    `json:"seq"`
}

// RefOf returns the Ref for r.
func RefOf(r Record) Ref { return Ref{Source: r.Source, Seq: r.Seq} }

// Less is the deterministic cross-source ordering: timestamp, then source
// identity, then sequence index. Untimed records sort after timed ones.
func Less(a, b Record) bool {
	if a.Timed != b.Timed {
		return a.Timed
	}
	if a.Timed && a.TimeMS != b.TimeMS {
		return a.TimeMS < b.TimeMS
	}
	if a.Source != b.Source {
		return a.Source < b.Source
	}
	return a.Seq < b.Seq
}
