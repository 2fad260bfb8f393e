// Package aot implements the ahead-of-time simulation backend (§4.F):
// each signal's driving expression is compiled once into a Go closure
// over a flat register file, so a tick pays only the closure calls
// data dependencies actually require — no per-tick type-switch
// dispatch (pkg/interp) and no per-tick opcode fetch/decode
// (pkg/bytecode). Like pkg/bytecode, this package is written
// independently of pkg/interp so that backend-parity checks compare
// two genuinely separate implementations.
package aot

import (
	"github.com/rhdl/rhdl/pkg/bir"
	"github.com/rhdl/rhdl/pkg/bitvec"
)

// Frame is the flat register file a compiled Program reads and writes.
// Slot indices are assigned at compile time; see Program.signalSlot.
type Frame struct {
	slots []bitvec.BitVector
}

// compiledExpr is one signal's driving expression, compiled once; it
// never touches memory arrays directly (BIR has no "read memory"
// expression node — only ReadPort does, which is why memArr access is
// bridged separately, via combDriver).
type compiledExpr func(f *Frame) bitvec.BitVector

// combDriver is one entry of the combinational settle order. Plain
// Assignments compile to an exprDriver; asynchronous memory read ports
// need the machine's memory store too, so they compile to a
// memReadDriver instead.
type combDriver interface {
	run(f *Frame, mems map[string]*memArr)
}

type exprDriver struct {
	slot int
	fn   compiledExpr
}

func (d exprDriver) run(f *Frame, _ map[string]*memArr) { f.slots[d.slot] = d.fn(f) }

type memReadDriver struct {
	slot int
	mem  string
	addr compiledExpr
}

func (d memReadDriver) run(f *Frame, mems map[string]*memArr) {
	f.slots[d.slot] = readMem(mems, d.mem, d.addr(f))
}

func readMem(mems map[string]*memArr, name string, addr bitvec.BitVector) bitvec.BitVector {
	ma := mems[name]
	idx := addr.Uint64()
	if idx >= uint64(len(ma.data)) {
		return bitvec.Zero(ma.width)
	}
	return ma.data[idx]
}

type memArr struct {
	width int
	data  []bitvec.BitVector
}

type seqRuleCompiled struct {
	clock    string
	regSlot  int
	fn       compiledExpr
	resetBy  *bir.ResetSpec
	resetVal bitvec.BitVector
}

type syncReadCompiled struct {
	clock   string
	outSlot int
	mem     string
	addr    compiledExpr
}

type writePortCompiled struct {
	clock  string
	mem    string
	addr   compiledExpr
	data   compiledExpr
	enable compiledExpr // nil means always enabled
}

type memDef struct {
	depth, width int
}

// Program is the compiled, immutable form of one flattened Component.
// A single Program can back many independent Machines.
type Program struct {
	comp *bir.Component

	numSlots int

	comb []combDriver // run every settle(), in dependency order (exprDriver or memReadDriver)

	signalSlot map[string]int
	slotSignal []string

	clocks   []string
	seqRules []seqRuleCompiled
	syncRead []syncReadCompiled
	writes   []writePortCompiled

	memories      map[string]memDef
	inputDefaults map[string]bitvec.BitVector
	registerReset map[string]bitvec.BitVector
}
