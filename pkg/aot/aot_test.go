package aot_test

import (
	"testing"

	"github.com/rhdl/rhdl/internal/fixtures"
	"github.com/rhdl/rhdl/pkg/aot"
	"github.com/rhdl/rhdl/pkg/bir"
	"github.com/rhdl/rhdl/pkg/bitvec"
	"github.com/rhdl/rhdl/pkg/elab"
	"github.com/rhdl/rhdl/pkg/interp"
)

func flatten(t *testing.T, design *bir.Design, top string) *bir.Component {
	t.Helper()
	flat, err := elab.Elaborate(design, top)
	if err != nil {
		t.Fatalf("Elaborate: %v", err)
	}
	return flat
}

func peekBoth(t *testing.T, ref *interp.Interpreter, m *aot.Machine, name string) (uint64, uint64) {
	t.Helper()
	rv, err := ref.Peek(name)
	if err != nil {
		t.Fatalf("interp Peek(%q): %v", name, err)
	}
	av, err := m.Peek(name)
	if err != nil {
		t.Fatalf("aot Peek(%q): %v", name, err)
	}
	return rv.Uint64(), av.Uint64()
}

func TestCounterParity(t *testing.T) {
	design, err := fixtures.Counter()
	if err != nil {
		t.Fatalf("Counter: %v", err)
	}
	flat := flatten(t, design, "counter")
	ref, err := interp.New(flat)
	if err != nil {
		t.Fatalf("interp.New: %v", err)
	}
	m, err := aot.New(flat)
	if err != nil {
		t.Fatalf("aot.New: %v", err)
	}
	for i := 0; i < 40; i++ {
		ref.Tick()
		m.Tick()
		rv, av := peekBoth(t, ref, m, "q_out")
		if rv != av {
			t.Fatalf("tick %d: interp q_out=%d aot q_out=%d diverge", i, rv, av)
		}
	}
	if ref.TickCount("clk") != m.TickCount("clk") {
		t.Fatalf("tick count diverge: interp=%d aot=%d", ref.TickCount("clk"), m.TickCount("clk"))
	}
}

func TestRegFileParity(t *testing.T) {
	design, err := fixtures.RegFile()
	if err != nil {
		t.Fatalf("RegFile: %v", err)
	}
	flat := flatten(t, design, "regfile")
	ref, err := interp.New(flat)
	if err != nil {
		t.Fatalf("interp.New: %v", err)
	}
	m, err := aot.New(flat)
	if err != nil {
		t.Fatalf("aot.New: %v", err)
	}

	seq := []struct {
		waddr, wdata, we, raddr uint64
	}{
		{3, 0x5a, 1, 0},
		{3, 0x5a, 0, 3},
		{7, 0x11, 1, 3},
		{7, 0x11, 0, 7},
	}
	for i, s := range seq {
		ref.Poke("waddr", bitvec.New(s.waddr, 5))
		m.Poke("waddr", bitvec.New(s.waddr, 5))
		ref.Poke("wdata", bitvec.New(s.wdata, 8))
		m.Poke("wdata", bitvec.New(s.wdata, 8))
		ref.Poke("we", bitvec.New(s.we, 1))
		m.Poke("we", bitvec.New(s.we, 1))
		ref.Poke("raddr", bitvec.New(s.raddr, 5))
		m.Poke("raddr", bitvec.New(s.raddr, 5))
		ref.Tick()
		m.Tick()
		rv, av := peekBoth(t, ref, m, "rdata")
		if rv != av {
			t.Fatalf("step %d: interp rdata=%#x aot rdata=%#x diverge", i, rv, av)
		}
	}
}

func TestALUFlagsParity(t *testing.T) {
	design, err := fixtures.ALUFlags()
	if err != nil {
		t.Fatalf("ALUFlags: %v", err)
	}
	flat := flatten(t, design, "alu_add")
	ref, err := interp.New(flat)
	if err != nil {
		t.Fatalf("interp.New: %v", err)
	}
	m, err := aot.New(flat)
	if err != nil {
		t.Fatalf("aot.New: %v", err)
	}

	cases := []struct{ a, b uint64 }{
		{0, 0}, {0xff, 1}, {0x7f, 1}, {0x80, 0x80}, {0x55, 0xaa},
	}
	for _, c := range cases {
		ref.Poke("a", bitvec.New(c.a, 8))
		m.Poke("a", bitvec.New(c.a, 8))
		ref.Poke("b", bitvec.New(c.b, 8))
		m.Poke("b", bitvec.New(c.b, 8))
		ref.Tick()
		m.Tick()
		for _, sig := range []string{"result", "zero", "negative", "overflow", "carry"} {
			rv, av := peekBoth(t, ref, m, sig)
			if rv != av {
				t.Fatalf("a=%#x b=%#x signal %s: interp=%d aot=%d diverge", c.a, c.b, sig, rv, av)
			}
		}
	}
}

func TestResetMatchesInterp(t *testing.T) {
	design, err := fixtures.Counter()
	if err != nil {
		t.Fatalf("Counter: %v", err)
	}
	flat := flatten(t, design, "counter")
	m, err := aot.New(flat)
	if err != nil {
		t.Fatalf("aot.New: %v", err)
	}
	m.RunTicks(9)
	m.Reset()
	v, err := m.Peek("q_out")
	if err != nil {
		t.Fatalf("Peek: %v", err)
	}
	if v.Uint64() != 0 {
		t.Fatalf("after Reset q_out = %d, want 0", v.Uint64())
	}
}

func TestSharedProgramIndependentState(t *testing.T) {
	design, err := fixtures.Counter()
	if err != nil {
		t.Fatalf("Counter: %v", err)
	}
	flat := flatten(t, design, "counter")
	prog, err := aot.Compile(flat)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	m1 := aot.NewFromProgram(prog)
	m2 := aot.NewFromProgram(prog)
	m1.RunTicks(3)
	v1, _ := m1.Peek("q_out")
	v2, _ := m2.Peek("q_out")
	if v1.Uint64() != 3 || v2.Uint64() != 0 {
		t.Fatalf("machines over a shared Program should have independent state, got m1=%d m2=%d", v1.Uint64(), v2.Uint64())
	}
}
