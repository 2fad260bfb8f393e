package elab_test

import (
	"testing"

	"github.com/rhdl/rhdl/internal/fixtures"
	"github.com/rhdl/rhdl/pkg/elab"
)

func TestFlattenHierCounter(t *testing.T) {
	design, err := fixtures.HierCounter()
	if err != nil {
		t.Fatalf("HierCounter: %v", err)
	}
	flat, err := elab.Elaborate(design, "top")
	if err != nil {
		t.Fatalf("Elaborate: %v", err)
	}
	if len(flat.Registers) != 1 {
		t.Fatalf("expected 1 flattened register, got %d: %+v", len(flat.Registers), flat.Registers)
	}
	if flat.Registers[0].Name != "cell.q" {
		t.Errorf("expected prefixed register name 'cell.q', got %q", flat.Registers[0].Name)
	}
	if w, ok := flat.PortWidth("q_out"); !ok || w != 4 {
		t.Errorf("top-level output q_out should survive flattening unprefixed, got width=%d ok=%v", w, ok)
	}
}

func TestFlattenFlatDesignIsIdentity(t *testing.T) {
	design, err := fixtures.Counter()
	if err != nil {
		t.Fatalf("Counter: %v", err)
	}
	flat, err := elab.Elaborate(design, "counter")
	if err != nil {
		t.Fatalf("Elaborate: %v", err)
	}
	if len(flat.Registers) != 1 || flat.Registers[0].Name != "q" {
		t.Fatalf("flat design should keep register name unprefixed, got %+v", flat.Registers)
	}
}
