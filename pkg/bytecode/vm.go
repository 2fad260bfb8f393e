package bytecode

import (
	"fmt"
	"sort"

	"github.com/rhdl/rhdl/pkg/bir"
	"github.com/rhdl/rhdl/pkg/bitvec"
)

// VM executes a compiled Program. It satisfies the same tick/peek/poke
// surface as pkg/interp.Interpreter, so pkg/simctl can drive either
// behind one Engine interface.
type VM struct {
	prog  *Program
	frame []bitvec.BitVector
	mems  map[string]*memArr
	ticks map[string]uint64

	signalIdx []string
}

type memArr struct {
	width int
	data  []bitvec.BitVector
}

// New compiles comp and returns a ready-to-run VM, reset to its
// declared initial state.
func New(comp *bir.Component) (*VM, error) {
	prog, err := Compile(comp)
	if err != nil {
		return nil, err
	}
	return NewFromProgram(prog), nil
}

// NewFromProgram builds a VM over an already-compiled Program, useful
// when many VM instances share one compilation (§3.4, §3.5).
func NewFromProgram(prog *Program) *VM {
	vm := &VM{prog: prog, ticks: map[string]uint64{}}
	vm.signalIdx = buildSignalIndex(prog.comp)
	vm.Reset()
	return vm
}

// buildSignalIndex matches pkg/interp's own signal-index ordering
// (inputs, outputs, wires, registers, sorted) so the two backends
// expose identical PeekByIdx addressing for parity tests.
func buildSignalIndex(comp *bir.Component) []string {
	var names []string
	for _, p := range comp.Inputs {
		names = append(names, p.Name)
	}
	for _, p := range comp.Outputs {
		names = append(names, p.Name)
	}
	for _, w := range comp.Wires {
		names = append(names, w.Name)
	}
	for _, r := range comp.Registers {
		names = append(names, r.Name)
	}
	sort.Strings(names)
	return names
}

// Reset restores every register to its declared reset value, every
// memory to all-zero, every input to its declared default, and zeroes
// all clock tick counters, then settles.
func (vm *VM) Reset() {
	vm.frame = make([]bitvec.BitVector, vm.prog.numSlots)
	vm.mems = map[string]*memArr{}
	for name, def := range vm.prog.memories {
		ma := &memArr{width: def.width, data: make([]bitvec.BitVector, def.depth)}
		for i := range ma.data {
			ma.data[i] = bitvec.Zero(def.width)
		}
		vm.mems[name] = ma
	}
	for name, slot := range vm.prog.signalSlot {
		if v, ok := vm.prog.registerReset[name]; ok {
			vm.frame[slot] = v
		}
	}
	for name, def := range vm.prog.inputDefaults {
		vm.frame[vm.prog.signalSlot[name]] = def
	}
	for _, clk := range vm.prog.clocks {
		vm.ticks[clk] = 0
	}
	vm.settle()
}

// Component returns the flattened component this VM simulates.
func (vm *VM) Component() *bir.Component { return vm.prog.comp }

func (vm *VM) exec(ops []Instr) {
	for _, in := range ops {
		switch in.Code {
		case OpConst:
			vm.frame[in.Dst] = in.Const
		case OpCopy:
			vm.frame[in.Dst] = vm.frame[in.A]
		case OpSlice:
			vm.frame[in.Dst] = bitvec.Slice(vm.frame[in.A], in.High, in.Low)
		case OpConcat:
			vals := make([]bitvec.BitVector, len(in.Operands))
			for i, s := range in.Operands {
				vals[i] = vm.frame[s]
			}
			vm.frame[in.Dst] = bitvec.Concat(vals...)
		case OpBinary:
			vm.frame[in.Dst] = evalBinary(in.BinOp, vm.frame[in.A], vm.frame[in.B], in.Width)
		case OpUnary:
			vm.frame[in.Dst] = evalUnary(in.UnOp, vm.frame[in.A], in.Width)
		case OpMux:
			if vm.frame[in.Sel].Uint64() != 0 {
				vm.frame[in.Dst] = vm.frame[in.A]
			} else {
				vm.frame[in.Dst] = vm.frame[in.B]
			}
		case OpCaseSelect:
			sel := vm.frame[in.A]
			matched := false
			for i, k := range in.CaseKeys {
				if k.Uint64() == sel.Uint64() {
					vm.frame[in.Dst] = vm.frame[in.CaseVals[i]]
					matched = true
					break
				}
			}
			if !matched {
				vm.frame[in.Dst] = vm.frame[in.B]
			}
		case OpReadMem:
			vm.frame[in.Dst] = vm.readMem(in.Mem, vm.frame[in.A])
		default:
			panic(fmt.Sprintf("bytecode: unknown opcode %v", in.Code))
		}
	}
}

func (vm *VM) readMem(name string, addr bitvec.BitVector) bitvec.BitVector {
	ma := vm.mems[name]
	idx := addr.Uint64()
	if idx >= uint64(len(ma.data)) {
		return bitvec.Zero(ma.width)
	}
	return ma.data[idx]
}

func (vm *VM) settle() {
	vm.exec(vm.prog.combOps)
}

// edge advances clock by one edge. See pkg/interp/edge.go for the
// cycle semantics this independently reproduces.
func (vm *VM) edge(clock string) {
	vm.settle()

	nextRegs := map[int]bitvec.BitVector{}
	for _, sr := range vm.prog.seqRules {
		if sr.clock != clock {
			continue
		}
		vm.exec(sr.rhsOps)
		val := vm.frame[sr.valueSlot]
		if sr.resetBy != nil && !sr.resetBy.Async {
			if resetAsserted(vm.frame[vm.prog.signalSlot[sr.resetBy.Signal]], sr.resetBy.ActiveHigh) {
				val = sr.resetVal
			}
		}
		nextRegs[sr.regSlot] = val
	}

	syncVals := map[int]bitvec.BitVector{}
	for _, sr := range vm.prog.syncRead {
		if sr.clock != clock {
			continue
		}
		vm.exec(sr.addrOps)
		syncVals[sr.outSlot] = vm.readMem(sr.mem, vm.frame[sr.addrSlot])
	}

	for _, sr := range vm.prog.seqRules {
		if sr.resetBy == nil || !sr.resetBy.Async {
			continue
		}
		if resetAsserted(vm.frame[vm.prog.signalSlot[sr.resetBy.Signal]], sr.resetBy.ActiveHigh) {
			nextRegs[sr.regSlot] = sr.resetVal
		}
	}

	for slot, v := range nextRegs {
		vm.frame[slot] = v
	}
	for slot, v := range syncVals {
		vm.frame[slot] = v
	}

	for _, wp := range vm.prog.writes {
		if wp.clock != clock {
			continue
		}
		if wp.hasEnable {
			vm.exec(wp.enableOps)
			if vm.frame[wp.enableSlot].Uint64() == 0 {
				continue
			}
		}
		vm.exec(wp.addrOps)
		vm.exec(wp.dataOps)
		addr := vm.frame[wp.addrSlot].Uint64()
		ma := vm.mems[wp.mem]
		if addr < uint64(len(ma.data)) {
			ma.data[addr] = vm.frame[wp.dataSlot]
		}
	}

	vm.ticks[clock]++
	vm.settle()
}

// Poke sets an external input for the next settle.
func (vm *VM) Poke(name string, v bitvec.BitVector) {
	vm.frame[vm.prog.signalSlot[name]] = v
}

// Peek returns the current value of a named signal.
func (vm *VM) Peek(name string) (bitvec.BitVector, error) {
	slot, ok := vm.prog.signalSlot[name]
	if !ok {
		return bitvec.BitVector{}, fmt.Errorf("bytecode: unknown signal %q", name)
	}
	return vm.frame[slot], nil
}

// PeekByIdx addresses the same values as Peek via a stable index.
func (vm *VM) PeekByIdx(i int) (bitvec.BitVector, error) {
	if i < 0 || i >= len(vm.signalIdx) {
		return bitvec.BitVector{}, fmt.Errorf("bytecode: index %d out of range", i)
	}
	return vm.Peek(vm.signalIdx[i])
}

// SignalNames returns the stable PeekByIdx-ordered signal name list.
func (vm *VM) SignalNames() []string { return vm.signalIdx }

// TickCount returns the number of edges advanced on clock.
func (vm *VM) TickCount(clock string) uint64 { return vm.ticks[clock] }

func (vm *VM) defaultClock() string {
	if len(vm.prog.clocks) == 0 {
		return ""
	}
	return vm.prog.clocks[0]
}

// Tick advances the default clock by one edge, or just re-settles if
// the component declares no clock.
func (vm *VM) Tick() {
	clk := vm.defaultClock()
	if clk == "" {
		vm.settle()
		return
	}
	vm.RunClockTicks(clk, 1)
}

// RunTicks advances the default clock by n edges.
func (vm *VM) RunTicks(n int) {
	clk := vm.defaultClock()
	if clk == "" {
		for i := 0; i < n; i++ {
			vm.settle()
		}
		return
	}
	vm.RunClockTicks(clk, n)
}

// RunClockTicks advances the named clock by n edges.
func (vm *VM) RunClockTicks(clock string, n int) {
	for i := 0; i < n; i++ {
		vm.edge(clock)
	}
}

func (vm *VM) memBytesPerWord(name string) (*memArr, int, error) {
	ma, ok := vm.mems[name]
	if !ok {
		return nil, 0, fmt.Errorf("bytecode: unknown memory %q", name)
	}
	if ma.width%8 != 0 {
		return nil, 0, fmt.Errorf("bytecode: memory %q width %d is not byte-addressable", name, ma.width)
	}
	return ma, ma.width / 8, nil
}

// MemoryReadByte reads one byte at an absolute byte offset into name.
func (vm *VM) MemoryReadByte(name string, offset int) (byte, error) {
	ma, bpw, err := vm.memBytesPerWord(name)
	if err != nil {
		return 0, err
	}
	word := offset / bpw
	shift := uint(offset%bpw) * 8
	if word < 0 || word >= len(ma.data) {
		return 0, fmt.Errorf("bytecode: memory %q offset %d out of range", name, offset)
	}
	return byte(ma.data[word].Uint64() >> shift), nil
}

// MemoryWriteByte overwrites one byte at an absolute byte offset into
// name, leaving the rest of that word untouched.
func (vm *VM) MemoryWriteByte(name string, offset int, b byte) error {
	ma, bpw, err := vm.memBytesPerWord(name)
	if err != nil {
		return err
	}
	word := offset / bpw
	shift := uint(offset%bpw) * 8
	if word < 0 || word >= len(ma.data) {
		return fmt.Errorf("bytecode: memory %q offset %d out of range", name, offset)
	}
	old := ma.data[word].Uint64()
	cleared := old &^ (uint64(0xff) << shift)
	ma.data[word] = bitvec.New(cleared|(uint64(b)<<shift), ma.width)
	return nil
}

// MemorySize returns the declared depth and word width (bits) of name.
func (vm *VM) MemorySize(name string) (depth, width int, err error) {
	ma, ok := vm.mems[name]
	if !ok {
		return 0, 0, fmt.Errorf("bytecode: unknown memory %q", name)
	}
	return len(ma.data), ma.width, nil
}
