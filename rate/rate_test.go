package rate

import (
	"math"
	"testing"
)

func TestTickDecaysTowardsLimit(t *testing.T) {
	r := New(5, 60)

	r.Tick(0)
	if !r.IsUnderLimit() {
		t.Fatalf("expected under limit after first tick, count=%v", r.count)
	}

	for i := 1; i <= 10; i++ {
		r.Tick(float64(i))
	}

	if r.IsUnderLimit() {
		t.Fatalf("expected over limit after 11 ticks within the window, count=%v", r.count)
	}
}

func TestTickDecaysOverTime(t *testing.T) {
	r := New(1, 10)

	r.Tick(0)
	r.Tick(0.001)
	r.Tick(0.002)

	if r.IsUnderLimit() {
		t.Fatalf("expected over limit, count=%v", r.count)
	}

	// Let most of a window pass; decay should bring the count back down.
	r.Tick(1000)

	if !r.IsUnderLimit() {
		t.Fatalf("expected under limit after long decay, count=%v", r.count)
	}
}

func TestCollectionIsAndOfConstituents(t *testing.T) {
	c := NewCollection(New(1000, 60), New(1, 60))

	c.Tick(0)
	c.Tick(0)

	if c.IsUnderLimit() {
		t.Fatalf("expected collection over limit once any constituent is over")
	}
}

func TestCollectionFromStringRoundTrips(t *testing.T) {
	c, err := NewCollectionFromString("60=10;3600=100")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if len(c.rates) != 2 {
		t.Fatalf("expected 2 rates, got %d", len(c.rates))
	}

	if c.rates[0].window != 60 || c.rates[0].maxCount != 10 {
		t.Fatalf("unexpected first rate: %+v", c.rates[0])
	}

	if c.rates[1].window != 3600 || c.rates[1].maxCount != 100 {
		t.Fatalf("unexpected second rate: %+v", c.rates[1])
	}
}

func TestCollectionFromStringEmpty(t *testing.T) {
	c, err := NewCollectionFromString("")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if !c.IsUnderLimit() {
		t.Fatalf("empty collection should always be under limit")
	}
}

func TestCollectionFromStringMalformed(t *testing.T) {
	if _, err := NewCollectionFromString("not-a-rate"); err == nil {
		t.Fatalf("expected error for malformed rate string")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	c := NewCollection(New(1, 60))
	c.Tick(0)

	clone := c.Clone()
	clone.Tick(0)
	clone.Tick(0)

	if c.IsOverLimit() {
		t.Fatalf("original collection must not be affected by clone ticks")
	}

	if !clone.IsOverLimit() {
		t.Fatalf("clone should be over limit after extra ticks")
	}
}

func TestPerSecond(t *testing.T) {
	r := New(10, 100)
	r.Tick(0)

	if math.Abs(r.PerSecond()-0.01) > 1e-9 {
		t.Fatalf("unexpected per-second rate: %v", r.PerSecond())
	}
}
