// Package bytecode implements the JIT simulation backend (§4.E): a
// flattened bir.Component is compiled once into a linear stream of
// opcodes over an indexed slot file, then executed tick after tick by
// a small virtual machine. It is written independently of pkg/interp
// (its own topological order, its own expression lowering) so that
// backend-parity tests exercise two genuinely different code paths
// arriving at the same answer, not one backend calling the other.
package bytecode

import (
	"github.com/rhdl/rhdl/pkg/bir"
	"github.com/rhdl/rhdl/pkg/bitvec"
)

// OpCode identifies one bytecode instruction. Instr.Dst always names
// the slot the instruction writes.
type OpCode int

const (
	OpConst      OpCode = iota // Dst = Const
	OpCopy                     // Dst = slots[A]
	OpSlice                    // Dst = slots[A][High:Low]
	OpConcat                   // Dst = concat(slots[Operands...]), MSB-first
	OpBinary                   // Dst = slots[A] BinOp slots[B]
	OpUnary                    // Dst = UnOp slots[A]
	OpMux                      // Dst = slots[Sel] != 0 ? slots[A] : slots[B]
	OpCaseSelect               // Dst = match slots[A] against CaseKeys, else slots[B] (default)
	OpReadMem                  // Dst = memory[Mem][slots[A]], zero if out of range
)

// Instr is one bytecode instruction. Only the fields relevant to Code
// are meaningful; this mirrors the single-struct instruction shape
// widely used in small register-machine VMs.
type Instr struct {
	Code      OpCode
	Dst       int
	A, B      int
	Sel       int
	Operands  []int
	Const     bitvec.BitVector
	Width     int
	High, Low int
	BinOp     bir.BinOp
	UnOp      bir.UnOp
	CaseKeys  []bitvec.BitVector
	CaseVals  []int
	Mem       string
}

// seqRuleProg is one compiled sequential rule: RhsOps compute the
// register's next-state value (against the pre-edge frame) into
// ValueSlot; RegSlot is committed from ValueSlot at edge time.
type seqRuleProg struct {
	clock     string
	regName   string
	regSlot   int
	rhsOps    []Instr
	valueSlot int
	resetBy   *bir.ResetSpec
	resetVal  bitvec.BitVector
}

type syncReadProg struct {
	clock   string
	outSlot int
	mem     string
	addrOps []Instr
	addrSlot int
}

type writePortProg struct {
	clock      string
	mem        string
	addrOps    []Instr
	addrSlot   int
	dataOps    []Instr
	dataSlot   int
	enableOps  []Instr
	enableSlot int // only meaningful if enableOps != nil
	hasEnable  bool
}

type memDef struct {
	depth, width int
}

// Program is the compiled, immutable form of one flattened Component.
// A single Program can back many independent VMs.
type Program struct {
	comp *bir.Component

	numSlots int

	combOps []Instr // run every settle(): combinational assigns + async reads, in dependency order

	signalSlot map[string]int // port/wire/register name -> its slot
	slotSignal []string       // inverse of signalSlot, "" for temp slots

	clocks   []string
	seqRules []seqRuleProg
	syncRead []syncReadProg
	writes   []writePortProg

	memories      map[string]memDef
	inputDefaults map[string]bitvec.BitVector
	registerReset map[string]bitvec.BitVector
}
