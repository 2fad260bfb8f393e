package interp_test

import (
	"testing"

	"github.com/rhdl/rhdl/internal/fixtures"
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

func peek(t *testing.T, it *interp.Interpreter, name string) uint64 {
	t.Helper()
	v, err := it.Peek(name)
	if err != nil {
		t.Fatalf("Peek(%q): %v", name, err)
	}
	return v.Uint64()
}

func TestCounterTicks(t *testing.T) {
	design, err := fixtures.Counter()
	if err != nil {
		t.Fatalf("Counter: %v", err)
	}
	flat := flatten(t, design, "counter")
	it, err := interp.New(flat)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	it.Poke("clk", bitvec.New(0, 1))
	if got := peek(t, it, "q_out"); got != 0 {
		t.Fatalf("reset q_out = %d, want 0", got)
	}
	it.RunTicks(5)
	if got := peek(t, it, "q_out"); got != 5 {
		t.Fatalf("after 5 ticks q_out = %d, want 5", got)
	}
	it.RunTicks(12)
	if got := peek(t, it, "q_out"); got != 1 {
		t.Fatalf("after 17 ticks q_out = %d, want 1 (17 mod 16)", got)
	}
	if it.TickCount("clk") != 17 {
		t.Fatalf("TickCount = %d, want 17", it.TickCount("clk"))
	}
}

func TestCounterResetRestoresZero(t *testing.T) {
	design, err := fixtures.Counter()
	if err != nil {
		t.Fatalf("Counter: %v", err)
	}
	flat := flatten(t, design, "counter")
	it, err := interp.New(flat)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	it.RunTicks(9)
	it.Reset()
	if got := peek(t, it, "q_out"); got != 0 {
		t.Fatalf("after Reset q_out = %d, want 0", got)
	}
	if it.TickCount("clk") != 0 {
		t.Fatalf("after Reset TickCount = %d, want 0", it.TickCount("clk"))
	}
}

func TestRegFileSyncReadLagsOneCycle(t *testing.T) {
	design, err := fixtures.RegFile()
	if err != nil {
		t.Fatalf("RegFile: %v", err)
	}
	flat := flatten(t, design, "regfile")
	it, err := interp.New(flat)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	it.Poke("waddr", bitvec.New(3, 5))
	it.Poke("wdata", bitvec.New(0x5a, 8))
	it.Poke("we", bitvec.New(1, 1))
	it.Poke("raddr", bitvec.New(3, 5))
	it.Tick()
	// Write commits on this edge; the synchronous read output still
	// reflects the pre-edge (zero) contents.
	if got := peek(t, it, "rdata"); got != 0 {
		t.Fatalf("rdata immediately after write = %d, want 0 (registered read lags)", got)
	}
	it.Poke("we", bitvec.New(0, 1))
	it.Tick()
	if got := peek(t, it, "rdata"); got != 0x5a {
		t.Fatalf("rdata one cycle later = %#x, want 0x5a", got)
	}
}

func TestAsyncRegFileReadIsCombinational(t *testing.T) {
	design, err := fixtures.AsyncRegFile()
	if err != nil {
		t.Fatalf("AsyncRegFile: %v", err)
	}
	flat := flatten(t, design, "async_regfile")
	it, err := interp.New(flat)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	it.Poke("waddr", bitvec.New(7, 5))
	it.Poke("wdata", bitvec.New(0x42, 8))
	it.Poke("we", bitvec.New(1, 1))
	it.Poke("raddr", bitvec.New(7, 5))
	it.Tick()
	it.Poke("we", bitvec.New(0, 1))
	if got := peek(t, it, "rdata"); got != 0x42 {
		t.Fatalf("async rdata = %#x, want 0x42 immediately after write commits", got)
	}
}

func TestALUFlagsZeroAndCarry(t *testing.T) {
	design, err := fixtures.ALUFlags()
	if err != nil {
		t.Fatalf("ALUFlags: %v", err)
	}
	flat := flatten(t, design, "alu_add")
	it, err := interp.New(flat)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	it.Poke("a", bitvec.New(0, 8))
	it.Poke("b", bitvec.New(0, 8))
	it.Tick()
	if got := peek(t, it, "zero"); got != 1 {
		t.Fatalf("zero flag for 0+0 = %d, want 1", got)
	}

	it.Poke("a", bitvec.New(0xff, 8))
	it.Poke("b", bitvec.New(0x01, 8))
	it.Tick()
	if got := peek(t, it, "result"); got != 0 {
		t.Fatalf("result for 0xff+0x01 = %#x, want 0", got)
	}
	if got := peek(t, it, "carry"); got != 1 {
		t.Fatalf("carry for 0xff+0x01 = %d, want 1", got)
	}
	if got := peek(t, it, "zero"); got != 1 {
		t.Fatalf("zero for 0xff+0x01 = %d, want 1", got)
	}

	it.Poke("a", bitvec.New(0x7f, 8))
	it.Poke("b", bitvec.New(0x01, 8))
	it.Tick()
	if got := peek(t, it, "overflow"); got != 1 {
		t.Fatalf("overflow for 0x7f+0x01 = %d, want 1 (signed overflow)", got)
	}
	if got := peek(t, it, "negative"); got != 1 {
		t.Fatalf("negative for 0x7f+0x01 = %d, want 1", got)
	}
}

func TestMux2SelectsOperand(t *testing.T) {
	design, err := fixtures.Mux2()
	if err != nil {
		t.Fatalf("Mux2: %v", err)
	}
	flat := flatten(t, design, "mux2")
	it, err := interp.New(flat)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	it.Poke("a", bitvec.New(0x11, 8))
	it.Poke("b", bitvec.New(0x22, 8))

	it.Poke("sel", bitvec.New(0, 1))
	it.Tick()
	if got := peek(t, it, "out"); got != 0x22 {
		t.Fatalf("sel=0 out = %#x, want 0x22", got)
	}

	it.Poke("sel", bitvec.New(1, 1))
	it.Tick()
	if got := peek(t, it, "out"); got != 0x11 {
		t.Fatalf("sel=1 out = %#x, want 0x11", got)
	}
}

func TestMemoryByteAccess(t *testing.T) {
	design, err := fixtures.RegFile()
	if err != nil {
		t.Fatalf("RegFile: %v", err)
	}
	flat := flatten(t, design, "regfile")
	it, err := interp.New(flat)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := it.MemoryWriteByte("cells", 2, 0x99); err != nil {
		t.Fatalf("MemoryWriteByte: %v", err)
	}
	b, err := it.MemoryReadByte("cells", 2)
	if err != nil {
		t.Fatalf("MemoryReadByte: %v", err)
	}
	if b != 0x99 {
		t.Fatalf("read back %#x, want 0x99", b)
	}
	if _, _, err := it.MemorySize("cells"); err != nil {
		t.Fatalf("MemorySize: %v", err)
	}
}
