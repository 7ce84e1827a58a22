package ingest

import (
	"maps"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Degradation counts cells that were present but unparseable, per field.
// The first few failures of each field are logged as warnings. A nil
// *Degradation discards everything.
type Degradation struct {
	mu     sync.Mutex
	sample int
	counts map[string]int
}

// NewDegradation creates a counter that logs up to sample warnings per field.
func NewDegradation(sample int) *Degradation {
	return &Degradation{sample: sample, counts: make(map[string]int)}
}

// Record tallies one degraded cell. key identifies the contract for the log.
func (d *Degradation) Record(field, key, raw string) {
	if d == nil {
		return
	}
	d.mu.Lock()
	d.counts[field]++
	n := d.counts[field]
	d.mu.Unlock()

	if n <= d.sample {
		zap.L().Warn("ingest: unparseable value replaced with default",
			zap.String("field", field),
			zap.String("contract_key", key),
			zap.String("raw", raw),
		)
	}
}

// Observe records raw when outcome is Degraded and reports whether it was.
func (d *Degradation) Observe(outcome ParseOutcome, field, key, raw string) bool {
	if outcome != Degraded {
		return false
	}
	d.Record(field, key, raw)
	return true
}

// Counts returns a copy of the per-field tallies.
func (d *Degradation) Counts() map[string]int {
	if d == nil {
		return map[string]int{}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return maps.Clone(d.counts)
}

// Total returns the number of degraded cells across all fields.
func (d *Degradation) Total() int {
	total := 0
	for _, n := range d.Counts() {
		total += n
	}
	return total
}

// Fields returns the names of fields with at least one degraded cell, sorted.
func (d *Degradation) Fields() []string {
	counts := d.Counts()
	fields := make([]string, 0, len(counts))
	for f := range counts {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}
