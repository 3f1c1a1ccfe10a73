package publish

import (
	"context"
	"testing"

	"github.com/go-logr/logr"
)

type memTarget struct {
	name string
	got  [][]byte
}

func (m *memTarget) Name() string { return m.name }

func (m *memTarget) Submit(_ context.Context, _ string, der []byte) error {
	m.got = append(m.got, append([]byte(nil), der...))
	return nil
}

func TestNewDrainerAppliesDefaults(t *testing.T) {
	d := NewDrainer(nil, 1, &memTarget{name: "t"}, 0, 0, logr.Discard())
	if d.parallelism != 4 {
		t.Fatalf("expected default parallelism 4, got %d", d.parallelism)
	}
	if d.pageSize != 100 {
		t.Fatalf("expected default page size 100, got %d", d.pageSize)
	}
}

func TestNewDrainerHonorsExplicitValues(t *testing.T) {
	d := NewDrainer(nil, 1, &memTarget{name: "t"}, 8, 50, logr.Discard())
	if d.parallelism != 8 || d.pageSize != 50 {
		t.Fatalf("expected explicit parallelism/pageSize to be honored, got %d/%d", d.parallelism, d.pageSize)
	}
}

func TestMemTargetSatisfiesInterface(t *testing.T) {
	var target Target = &memTarget{name: "mem"}
	if err := target.Submit(context.Background(), "ca", []byte("der")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if target.Name() != "mem" {
		t.Fatalf("expected name 'mem', got %q", target.Name())
	}
}
