package simrand

import (
	"testing"
	"time"
)

func TestDeterministicSequence(t *testing.T) {
	a := New(42)
	b := New(42)

	for i := 0; i < 100; i++ {
		fa := a.Float64()
		fb := b.Float64()
		if fa != fb {
			t.Fatalf("draw %d diverged: %v != %v", i, fa, fb)
		}
	}
}

func TestDurationInBounds(t *testing.T) {
	s := New(7)
	lo, hi := time.Millisecond, 10*time.Millisecond
	for i := 0; i < 1000; i++ {
		d := s.DurationIn(lo, hi)
		if d < lo || d >= hi {
			t.Fatalf("draw %v out of bounds [%v, %v)", d, lo, hi)
		}
	}
}

func TestDurationInPanicsOnEmptyInterval(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for hi <= lo")
		}
	}()
	New(1).DurationIn(5*time.Millisecond, 5*time.Millisecond)
}

func TestDifferentSeedsDiverge(t *testing.T) {
	a := New(1)
	b := New(2)
	same := true
	for i := 0; i < 20; i++ {
		if a.Float64() != b.Float64() {
			same = false
			break
		}
	}
	if same {
		t.Fatal("expected different seeds to diverge within 20 draws")
	}
}
