package ingest

import (
	"regexp"
	"strconv"
	"strings"

	"ohtscope/internal/logging"
	"ohtscope/internal/record"
)

// timeRx matches the controller time-of-day stamp, e.g. [13:05:07.250].
// Fractional milliseconds are optional and left-justified.
var timeRx = regexp.MustCompile(`\[(\d{2}):(\d{2}):(\d{2})(?:\.(\d{1,3}))?\]`)

// TimeOfDayMS extracts the time-of-day stamp from a log line as milliseconds
// since midnight. ok is false when the line carries no parseable stamp.
func TimeOfDayMS(line string) (int64, bool) {
	m := timeRx.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	h, _ := strconv.ParseInt(m[1], 10, 64)
	mi, _ := strconv.ParseInt(m[2], 10, 64)
	s, _ := strconv.ParseInt(m[3], 10, 64)
	if h > 23 || mi > 59 || s > 59 {
		return 0, false
	}
	var ms int64
	if m[4] != "" {
		frac := m[4] + strings.Repeat("0", 3-len(m[4]))
		ms, _ = strconv.ParseInt(frac, 10, 64)
	}
	return ((h*60+mi)*60+s)*1000 + ms, true
}

// Categorizer assigns a log category from a source file name. The rule set
// implements this over its configured filename patterns.
type Categorizer interface {
	Categorize(filename string) string
}

// LoadBundles normalizes every log bundle in paths into one record slice.
// Within a source, record order is file order; Seq is the insertion index.
// Records without a parseable timestamp are kept with Timed=false so they
// remain available as adjacent evidence.
func LoadBundles(paths []string, cat Categorizer) ([]record.Record, error) {
	log := logging.New("ingest")
	var records []record.Record
	files := 0
	for _, path := range paths {
		err := WalkBundle(path, func(name string, data []byte) error {
			if !texty(name) {
				return nil
			}
			files++
			records = append(records, normalizeFile(name, data, cat)...)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	log.Info("bundles normalized", "paths", len(paths), "files", files, "records", len(records))
	return records, nil
}

func normalizeFile(name string, data []byte, cat Categorizer) []record.Record {
	category := "misc"
	if cat != nil {
		category = cat.Categorize(baseName(name))
	}
	var out []record.Record
	seq := 0
	for _, line := range strings.Split(DecodeText(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		rec := record.Record{
			Source:   name,
			Seq:      seq,
			Category: category,
			Text:     line,
		}
		if ms, ok := TimeOfDayMS(line); ok {
			rec.TimeMS = ms
			rec.Timed = true
		}
		out = append(out, rec)
		seq++
	}
	return out
}

// baseName strips ZIP qualification and directories from a bundle-relative
// name so category patterns match the plain log file name.
func baseName(name string) string {
	if i := strings.LastIndex(name, ":"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return name
}
