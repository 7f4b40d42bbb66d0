// Package codeindex builds the merged error-code index from the two control
// source trees. The vehicle program and the motion program exchange state on
// a fixed cycle; either tree alone yields incomplete code semantics, so an
// index missing one component is rejected outright rather than used for
// degraded resolution.
package codeindex

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"ohtscope/internal/logging"
)

// Component names one of the two control programs.
type Component string

const (
	ComponentVehicle Component = "vehicle"
	ComponentMotion  Component = "motion"
)

// Entry maps one symbolic error identifier to its numeric code, with the
// defining source location kept for evidence display.
type Entry struct {
	Name      string    `json:"name"`
	Code      int       `json:"code"`
	Component Component `json:"component"`
	File      string    `json:"file"`
	Line      int       `json:"line"`
}

// Index is the merged numeric-code lookup over both components.
type Index struct {
	Entries     []Entry `json:"entries"`
	Fingerprint string  `json:"fingerprint"`

	byCode map[int]Entry
	counts map[Component]int
}

// ValidationError reports an index missing one or both required components.
// An index that fails validation must not be used for resolution.
type ValidationError struct {
	Missing []Component
}

func (e *ValidationError) Error() string {
	names := make([]string, len(e.Missing))
	for i, c := range e.Missing {
		names[i] = string(c)
	}
	return fmt.Sprintf("error-code index missing component entries: %s", strings.Join(names, ", "))
}

// Build scans the vehicle and motion source collections concurrently and
// merges them into one validated index. Paths matched by any exclusion
// fragment (case-insensitive substring) are skipped. Either component
// yielding zero entries is a validation failure, not a partial index.
func Build(ctx context.Context, vehiclePath, motionPath string, excludes []string) (*Index, error) {
	log := logging.New("codeindex")

	var vehicle, motion scanResult
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		vehicle, err = scanCollection(ctx, ComponentVehicle, vehiclePath, excludes)
		return err
	})
	g.Go(func() error {
		var err error
		motion, err = scanCollection(ctx, ComponentMotion, motionPath, excludes)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	idx := &Index{
		Entries:     append(append([]Entry(nil), vehicle.entries...), motion.entries...),
		Fingerprint: combineFingerprints(vehicle.fingerprint, motion.fingerprint),
	}
	idx.buildLookup()
	if err := idx.Validate(); err != nil {
		return nil, err
	}
	log.Info("index built",
		"vehicle_entries", len(vehicle.entries),
		"motion_entries", len(motion.entries),
		"fingerprint", idx.Fingerprint[:12])
	return idx, nil
}

// New assembles a validated index from pre-scanned entries.
func New(entries []Entry, fingerprint string) (*Index, error) {
	idx := &Index{
		Entries:     append([]Entry(nil), entries...),
		Fingerprint: fingerprint,
	}
	idx.buildLookup()
	if err := idx.Validate(); err != nil {
		return nil, err
	}
	return idx, nil
}

// buildLookup merges entries keyed by numeric code, last-write-wins in entry
// order (vehicle first, then motion, each in stable scan order).
func (x *Index) buildLookup() {
	x.byCode = make(map[int]Entry, len(x.Entries))
	x.counts = make(map[Component]int)
	for _, e := range x.Entries {
		x.byCode[e.Code] = e
		x.counts[e.Component]++
	}
}

// Validate checks the dual-component invariant. It returns a
// *ValidationError naming every missing component.
func (x *Index) Validate() error {
	var missing []Component
	for _, c := range []Component{ComponentVehicle, ComponentMotion} {
		if x.counts[c] == 0 {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}

// Resolve looks up a numeric code in the merged index.
func (x *Index) Resolve(code int) (Entry, bool) {
	e, ok := x.byCode[code]
	return e, ok
}

// Len returns the number of merged entries.
func (x *Index) Len() int { return len(x.Entries) }

// Count returns the number of entries contributed by one component.
func (x *Index) Count(c Component) int { return x.counts[c] }

// Marshal renders the index for the fingerprint-keyed cache.
func (x *Index) Marshal() ([]byte, error) {
	return json.Marshal(x)
}

// FromCache rebuilds a cached index payload and re-validates it. A cache
// entry that no longer satisfies the dual-component invariant is rejected.
func FromCache(payload []byte) (*Index, error) {
	var idx Index
	if err := json.Unmarshal(payload, &idx); err != nil {
		return nil, fmt.Errorf("decode index cache: %w", err)
	}
	idx.buildLookup()
	if err := idx.Validate(); err != nil {
		return nil, err
	}
	return &idx, nil
}

func combineFingerprints(a, b string) string {
	sum := sha256.Sum256([]byte(a + "\x00" + b))
	return hex.EncodeToString(sum[:])
}
