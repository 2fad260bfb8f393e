package bytecode_test

import (
	"testing"

	"github.com/rhdl/rhdl/internal/fixtures"
	"github.com/rhdl/rhdl/pkg/bir"
	"github.com/rhdl/rhdl/pkg/bitvec"
	"github.com/rhdl/rhdl/pkg/bytecode"
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

func peekBoth(t *testing.T, ref *interp.Interpreter, vm *bytecode.VM, name string) (uint64, uint64) {
	t.Helper()
	rv, err := ref.Peek(name)
	if err != nil {
		t.Fatalf("interp Peek(%q): %v", name, err)
	}
	bv, err := vm.Peek(name)
	if err != nil {
		t.Fatalf("bytecode Peek(%q): %v", name, err)
	}
	return rv.Uint64(), bv.Uint64()
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
	vm, err := bytecode.New(flat)
	if err != nil {
		t.Fatalf("bytecode.New: %v", err)
	}
	for i := 0; i < 40; i++ {
		ref.Tick()
		vm.Tick()
		rv, bv := peekBoth(t, ref, vm, "q_out")
		if rv != bv {
			t.Fatalf("tick %d: interp q_out=%d bytecode q_out=%d diverge", i, rv, bv)
		}
	}
	if ref.TickCount("clk") != vm.TickCount("clk") {
		t.Fatalf("tick count diverge: interp=%d bytecode=%d", ref.TickCount("clk"), vm.TickCount("clk"))
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
	vm, err := bytecode.New(flat)
	if err != nil {
		t.Fatalf("bytecode.New: %v", err)
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
		vm.Poke("waddr", bitvec.New(s.waddr, 5))
		ref.Poke("wdata", bitvec.New(s.wdata, 8))
		vm.Poke("wdata", bitvec.New(s.wdata, 8))
		ref.Poke("we", bitvec.New(s.we, 1))
		vm.Poke("we", bitvec.New(s.we, 1))
		ref.Poke("raddr", bitvec.New(s.raddr, 5))
		vm.Poke("raddr", bitvec.New(s.raddr, 5))
		ref.Tick()
		vm.Tick()
		rv, bv := peekBoth(t, ref, vm, "rdata")
		if rv != bv {
			t.Fatalf("step %d: interp rdata=%#x bytecode rdata=%#x diverge", i, rv, bv)
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
	vm, err := bytecode.New(flat)
	if err != nil {
		t.Fatalf("bytecode.New: %v", err)
	}

	cases := []struct{ a, b uint64 }{
		{0, 0}, {0xff, 1}, {0x7f, 1}, {0x80, 0x80}, {0x55, 0xaa},
	}
	for _, c := range cases {
		ref.Poke("a", bitvec.New(c.a, 8))
		vm.Poke("a", bitvec.New(c.a, 8))
		ref.Poke("b", bitvec.New(c.b, 8))
		vm.Poke("b", bitvec.New(c.b, 8))
		ref.Tick()
		vm.Tick()
		for _, sig := range []string{"result", "zero", "negative", "overflow", "carry"} {
			rv, bv := peekBoth(t, ref, vm, sig)
			if rv != bv {
				t.Fatalf("a=%#x b=%#x signal %s: interp=%d bytecode=%d diverge", c.a, c.b, sig, rv, bv)
			}
		}
	}
}

func TestMux2Parity(t *testing.T) {
	design, err := fixtures.Mux2()
	if err != nil {
		t.Fatalf("Mux2: %v", err)
	}
	flat := flatten(t, design, "mux2")
	ref, err := interp.New(flat)
	if err != nil {
		t.Fatalf("interp.New: %v", err)
	}
	vm, err := bytecode.New(flat)
	if err != nil {
		t.Fatalf("bytecode.New: %v", err)
	}
	ref.Poke("a", bitvec.New(0x11, 8))
	vm.Poke("a", bitvec.New(0x11, 8))
	ref.Poke("b", bitvec.New(0x22, 8))
	vm.Poke("b", bitvec.New(0x22, 8))
	for _, sel := range []uint64{0, 1, 0} {
		ref.Poke("sel", bitvec.New(sel, 1))
		vm.Poke("sel", bitvec.New(sel, 1))
		ref.Tick()
		vm.Tick()
		rv, bv := peekBoth(t, ref, vm, "out")
		if rv != bv {
			t.Fatalf("sel=%d: interp out=%#x bytecode out=%#x diverge", sel, rv, bv)
		}
	}
}

func TestResetMatchesInterp(t *testing.T) {
	design, err := fixtures.Counter()
	if err != nil {
		t.Fatalf("Counter: %v", err)
	}
	flat := flatten(t, design, "counter")
	vm, err := bytecode.New(flat)
	if err != nil {
		t.Fatalf("bytecode.New: %v", err)
	}
	vm.RunTicks(9)
	vm.Reset()
	v, err := vm.Peek("q_out")
	if err != nil {
		t.Fatalf("Peek: %v", err)
	}
	if v.Uint64() != 0 {
		t.Fatalf("after Reset q_out = %d, want 0", v.Uint64())
	}
	if vm.TickCount("clk") != 0 {
		t.Fatalf("after Reset TickCount = %d, want 0", vm.TickCount("clk"))
	}
}

func TestMemoryByteAccess(t *testing.T) {
	design, err := fixtures.RegFile()
	if err != nil {
		t.Fatalf("RegFile: %v", err)
	}
	flat := flatten(t, design, "regfile")
	vm, err := bytecode.New(flat)
	if err != nil {
		t.Fatalf("bytecode.New: %v", err)
	}
	if err := vm.MemoryWriteByte("cells", 5, 0x77); err != nil {
		t.Fatalf("MemoryWriteByte: %v", err)
	}
	b, err := vm.MemoryReadByte("cells", 5)
	if err != nil {
		t.Fatalf("MemoryReadByte: %v", err)
	}
	if b != 0x77 {
		t.Fatalf("read back %#x, want 0x77", b)
	}
}
