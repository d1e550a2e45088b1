// Package compare schedules visual comparisons of captured creatives across
// browser configurations and aggregates their severities.
package compare

import (
	"encoding/json"
	"sync"

	"github.com/jonathan/tagcompare/internal/severity"
)

// Result counts comparison units per severity level. It is safe for
// concurrent use; the per-level counts always sum to Total.
type Result struct {
	mu     sync.Mutex
	counts map[severity.Level]int
	total  int
}

// NewResult returns an empty Result.
func NewResult() *Result {
	return &Result{counts: make(map[severity.Level]int, len(severity.Levels()))}
}

// Add records one unit at level l.
func (r *Result) Add(l severity.Level) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[l]++
	r.total++
}

// Count returns the number of units recorded at level l.
func (r *Result) Count(l severity.Level) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[l]
}

// Total returns the number of units recorded.
func (r *Result) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

// Counts returns a snapshot with an entry for every level.
func (r *Result) Counts() map[severity.Level]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[severity.Level]int, len(severity.Levels()))
	for _, l := range severity.Levels() {
		out[l] = r.counts[l]
	}
	return out
}

// AtLeast returns the number of units at level min or above.
func (r *Result) AtLeast(min severity.Level) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for l, c := range r.counts {
		if l >= min {
			n += c
		}
	}
	return n
}

type resultJSON struct {
	Counts map[severity.Level]int `json:"counts"`
	Total  int                    `json:"total"`
}

// MarshalJSON encodes the snapshot as {"counts": {...}, "total": n}.
func (r *Result) MarshalJSON() ([]byte, error) {
	r.mu.Lock()
	snapshot := resultJSON{Counts: make(map[severity.Level]int, len(r.counts)), Total: r.total}
	for l, c := range r.counts {
		snapshot.Counts[l] = c
	}
	r.mu.Unlock()
	return json.Marshal(snapshot)
}
