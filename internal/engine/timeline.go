package engine

import (
	"sort"

	"ohtscope/internal/record"
)

// timeline is the sorted-by-timestamp view of the timed records, built once
// per pass so every anchor's window search is a range query instead of a
// full rescan. Ties sort by source identity then sequence index, keeping
// window output stable across runs and workers.
type timeline struct {
	recs []record.Record
}

func buildTimeline(records []record.Record) timeline {
	recs := make([]record.Record, 0, len(records))
	for _, r := range records {
		if r.Timed {
			recs = append(recs, r)
		}
	}
	sort.SliceStable(recs, func(i, j int) bool { return record.Less(recs[i], recs[j]) })
	return timeline{recs: recs}
}

// rangeQuery returns the records with lo <= TimeMS <= hi, a closed interval:
// boundary-equal timestamps are included.
func (t timeline) rangeQuery(lo, hi int64) []record.Record {
	start := sort.Search(len(t.recs), func(i int) bool { return t.recs[i].TimeMS >= lo })
	end := start
	for end < len(t.recs) && t.recs[end].TimeMS <= hi {
		end++
	}
	return t.recs[start:end]
}
