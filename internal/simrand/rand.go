// Package simrand provides the seeded pseudo-random source consumed by
// the simulated network's link oracle. It is the sole source of
// randomness the simulator touches, so that a run is fully determined
// by its seed and the order in which events consult it.
package simrand

import (
	"math/rand"
	"time"
)

// Source is a seeded, single-threaded PRNG. It is not safe for
// concurrent use — callers that share a Source across goroutines must
// serialize access themselves, the same way the simulated network
// guards it behind its own lock.
type Source struct {
	rng *rand.Rand
}

// New creates a Source seeded with the given value. Two Sources created
// with the same seed and consulted in the same order produce identical
// sequences.
func New(seed int64) *Source {
	return &Source{rng: rand.New(rand.NewSource(seed))} //nolint:gosec
}

// Float64 returns a pseudo-random number in [0, 1).
func (s *Source) Float64() float64 {
	return s.rng.Float64()
}

// DurationIn draws a duration uniformly from the half-open interval
// [lo, hi). Panics if hi <= lo, since the interval would otherwise be
// empty or inverted.
func (s *Source) DurationIn(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		panic("simrand: empty or inverted interval")
	}
	span := int64(hi - lo)
	return lo + time.Duration(s.rng.Int63n(span))
}

// Intn returns a pseudo-random integer in [0, n).
func (s *Source) Intn(n int) int {
	return s.rng.Intn(n)
}
