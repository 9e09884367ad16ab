// Package ids generates lexicographically sortable message identifiers.
package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator issues ULIDs that sort in issue order, including several IDs
// issued within the same millisecond.
type Generator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	last    time.Time
}

// NewGenerator returns a ready Generator.
func NewGenerator() *Generator {
	return &Generator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// Next returns a new ID together with a timestamp that never goes backwards
// relative to previous calls, even when the wall clock does.
func (g *Generator) Next(now time.Time) (string, time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if now.Before(g.last) {
		now = g.last
	}
	g.last = now

	return ulid.MustNew(ulid.Timestamp(now), g.entropy).String(), now
}

// Observe raises the generator's floor to t, used when resuming from stored
// state.
func (g *Generator) Observe(t time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if t.After(g.last) {
		g.last = t
	}
}
