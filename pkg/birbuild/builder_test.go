package birbuild

import (
	"strings"
	"testing"

	"github.com/rhdl/rhdl/pkg/bir"
)

func TestCounterBuilds(t *testing.T) {
	b := New("counter")
	b.Input("clk", 1, 0)
	q := b.Register("q", 4, 0, "clk")
	out := b.Output("q_out", 4)
	b.Assign(out, q.Ref())
	b.Sequential("clk", func(s *SeqBuilder) {
		s.Next(q, Add(q.Ref(), bir.Lit(1, 4)))
	})
	c, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(c.Registers) != 1 || c.Registers[0].Name != "q" {
		t.Fatalf("unexpected registers: %+v", c.Registers)
	}
	if len(c.Clocks) != 1 || c.Clocks[0] != "clk" {
		t.Fatalf("unexpected clocks: %+v", c.Clocks)
	}
}

func TestMultiDriverIsError(t *testing.T) {
	b := New("bad")
	w := b.Wire("w", 1)
	b.Assign(w, bir.Lit(0, 1))
	b.Assign(w, bir.Lit(1, 1))
	_, err := b.Build()
	if err == nil || !strings.Contains(err.Error(), "more than one driver") {
		t.Fatalf("expected multi-driver error, got %v", err)
	}
}

func TestUndrivenOutputIsError(t *testing.T) {
	b := New("bad")
	b.Output("o", 1)
	_, err := b.Build()
	if err == nil || !strings.Contains(err.Error(), "no driver") {
		t.Fatalf("expected undriven-output error, got %v", err)
	}
}

func TestWidthMismatchIsError(t *testing.T) {
	b := New("bad")
	out := b.Output("o", 8)
	b.Assign(out, bir.Lit(1, 4))
	_, err := b.Build()
	if err == nil || !strings.Contains(err.Error(), "width") {
		t.Fatalf("expected width-mismatch error, got %v", err)
	}
}

func TestUnresolvedSignalIsError(t *testing.T) {
	b := New("bad")
	out := b.Output("o", 4)
	b.Assign(out, bir.Sig("nope", 4))
	_, err := b.Build()
	if err == nil || !strings.Contains(err.Error(), "unresolved") {
		t.Fatalf("expected unresolved-signal error, got %v", err)
	}
}

func TestCombinationalCycleIsError(t *testing.T) {
	b := New("bad")
	w1 := b.Wire("w1", 1)
	w2 := b.Wire("w2", 1)
	b.Assign(w1, w2.Ref())
	b.Assign(w2, w1.Ref())
	_, err := b.Build()
	if err == nil || !strings.Contains(err.Error(), "cycle") {
		t.Fatalf("expected cycle error, got %v", err)
	}
}

func TestRegisterNeedsSequentialRule(t *testing.T) {
	b := New("bad")
	b.Register("q", 4, 0, "clk")
	_, err := b.Build()
	if err == nil || !strings.Contains(err.Error(), "sequential rule") {
		t.Fatalf("expected missing-sequential-rule error, got %v", err)
	}
}

func TestDesignBuilderRejectsUnknownTop(t *testing.T) {
	d := NewDesign()
	if _, err := d.Build("nope"); err == nil {
		t.Fatal("expected error for unknown top")
	}
}
