package uid

import (
	"testing"

	"github.com/jmhodges/clock"
)

func TestNextIsPositiveAndCarriesShard(t *testing.T) {
	clk := clock.NewFake()
	g, err := New(clk, 0, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 5; i++ {
		id := g.Next()
		if id <= 0 {
			t.Fatalf("expected positive id, got %d", id)
		}
		if id&0x7F != 3 {
			t.Fatalf("expected shard bits 3, got %d", id&0x7F)
		}
	}
}

func TestNextStrictlyIncreasingSameMillisecond(t *testing.T) {
	clk := clock.NewFake()
	g, err := New(clk, 0, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a := g.Next()
	b := g.Next()
	c := g.Next()
	if !(a < b && b < c) {
		t.Fatalf("expected strictly increasing ids, got %d, %d, %d", a, b, c)
	}
	if a&0x7F != b&0x7F || b&0x7F != c&0x7F {
		t.Fatalf("expected identical shard bits across calls")
	}
}

func TestNewRejectsInvalidShard(t *testing.T) {
	clk := clock.NewFake()
	if _, err := New(clk, 0, -1); err == nil {
		t.Fatalf("expected negative shard id to fail")
	}
	if _, err := New(clk, 0, 128); err == nil {
		t.Fatalf("expected shard id 128 to fail")
	}
}

func TestNewRejectsNegativeEpoch(t *testing.T) {
	clk := clock.NewFake()
	if _, err := New(clk, -1, 0); err == nil {
		t.Fatalf("expected negative epoch to fail")
	}
}
