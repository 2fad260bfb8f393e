package aot

import (
	"fmt"
	"sort"

	"github.com/rhdl/rhdl/pkg/bir"
	"github.com/rhdl/rhdl/pkg/bitvec"
)

// Machine executes a compiled Program. It satisfies the same
// tick/peek/poke surface as pkg/interp.Interpreter and pkg/bytecode.VM,
// so pkg/simctl can drive any of the three behind one Engine interface.
type Machine struct {
	prog  *Program
	frame *Frame
	mems  map[string]*memArr
	ticks map[string]uint64

	signalIdx []string
}

// New compiles comp and returns a ready-to-run Machine, reset to its
// declared initial state.
func New(comp *bir.Component) (*Machine, error) {
	prog, err := Compile(comp)
	if err != nil {
		return nil, err
	}
	return NewFromProgram(prog), nil
}

// NewFromProgram builds a Machine over an already-compiled Program,
// useful when many instances share one compilation (§3.4, §3.5).
func NewFromProgram(prog *Program) *Machine {
	m := &Machine{prog: prog, ticks: map[string]uint64{}}
	m.signalIdx = buildSignalIndex(prog.comp)
	m.Reset()
	return m
}

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
func (m *Machine) Reset() {
	m.frame = &Frame{slots: make([]bitvec.BitVector, m.prog.numSlots)}
	m.mems = map[string]*memArr{}
	for name, def := range m.prog.memories {
		ma := &memArr{width: def.width, data: make([]bitvec.BitVector, def.depth)}
		for i := range ma.data {
			ma.data[i] = bitvec.Zero(def.width)
		}
		m.mems[name] = ma
	}
	for name, slot := range m.prog.signalSlot {
		if v, ok := m.prog.registerReset[name]; ok {
			m.frame.slots[slot] = v
		}
	}
	for name, def := range m.prog.inputDefaults {
		m.frame.slots[m.prog.signalSlot[name]] = def
	}
	for _, clk := range m.prog.clocks {
		m.ticks[clk] = 0
	}
	m.settle()
}

// Component returns the flattened component this Machine simulates.
func (m *Machine) Component() *bir.Component { return m.prog.comp }

func (m *Machine) settle() {
	for _, d := range m.prog.comb {
		d.run(m.frame, m.mems)
	}
}

// edge advances clock by one edge. See pkg/interp/edge.go for the
// cycle semantics this independently reproduces.
func (m *Machine) edge(clock string) {
	m.settle()

	nextRegs := map[int]bitvec.BitVector{}
	for _, sr := range m.prog.seqRules {
		if sr.clock != clock {
			continue
		}
		val := sr.fn(m.frame)
		if sr.resetBy != nil && !sr.resetBy.Async {
			if resetAsserted(m.frame.slots[m.prog.signalSlot[sr.resetBy.Signal]], sr.resetBy.ActiveHigh) {
				val = sr.resetVal
			}
		}
		nextRegs[sr.regSlot] = val
	}

	syncVals := map[int]bitvec.BitVector{}
	for _, sr := range m.prog.syncRead {
		if sr.clock != clock {
			continue
		}
		addr := sr.addr(m.frame)
		syncVals[sr.outSlot] = readMem(m.mems, sr.mem, addr)
	}

	for _, sr := range m.prog.seqRules {
		if sr.resetBy == nil || !sr.resetBy.Async {
			continue
		}
		if resetAsserted(m.frame.slots[m.prog.signalSlot[sr.resetBy.Signal]], sr.resetBy.ActiveHigh) {
			nextRegs[sr.regSlot] = sr.resetVal
		}
	}

	for slot, v := range nextRegs {
		m.frame.slots[slot] = v
	}
	for slot, v := range syncVals {
		m.frame.slots[slot] = v
	}

	for _, wp := range m.prog.writes {
		if wp.clock != clock {
			continue
		}
		if wp.enable != nil && wp.enable(m.frame).Uint64() == 0 {
			continue
		}
		addr := wp.addr(m.frame).Uint64()
		ma := m.mems[wp.mem]
		if addr < uint64(len(ma.data)) {
			ma.data[addr] = wp.data(m.frame)
		}
	}

	m.ticks[clock]++
	m.settle()
}

// Poke sets an external input for the next settle.
func (m *Machine) Poke(name string, v bitvec.BitVector) {
	m.frame.slots[m.prog.signalSlot[name]] = v
}

// Peek returns the current value of a named signal.
func (m *Machine) Peek(name string) (bitvec.BitVector, error) {
	slot, ok := m.prog.signalSlot[name]
	if !ok {
		return bitvec.BitVector{}, fmt.Errorf("aot: unknown signal %q", name)
	}
	return m.frame.slots[slot], nil
}

// PeekByIdx addresses the same values as Peek via a stable index.
func (m *Machine) PeekByIdx(i int) (bitvec.BitVector, error) {
	if i < 0 || i >= len(m.signalIdx) {
		return bitvec.BitVector{}, fmt.Errorf("aot: index %d out of range", i)
	}
	return m.Peek(m.signalIdx[i])
}

// SignalNames returns the stable PeekByIdx-ordered signal name list.
func (m *Machine) SignalNames() []string { return m.signalIdx }

// TickCount returns the number of edges advanced on clock.
func (m *Machine) TickCount(clock string) uint64 { return m.ticks[clock] }

func (m *Machine) defaultClock() string {
	if len(m.prog.clocks) == 0 {
		return ""
	}
	return m.prog.clocks[0]
}

// Tick advances the default clock by one edge, or just re-settles if
// the component declares no clock.
func (m *Machine) Tick() {
	clk := m.defaultClock()
	if clk == "" {
		m.settle()
		return
	}
	m.RunClockTicks(clk, 1)
}

// RunTicks advances the default clock by n edges.
func (m *Machine) RunTicks(n int) {
	clk := m.defaultClock()
	if clk == "" {
		for i := 0; i < n; i++ {
			m.settle()
		}
		return
	}
	m.RunClockTicks(clk, n)
}

// RunClockTicks advances the named clock by n edges.
func (m *Machine) RunClockTicks(clock string, n int) {
	for i := 0; i < n; i++ {
		m.edge(clock)
	}
}

func (m *Machine) memBytesPerWord(name string) (*memArr, int, error) {
	ma, ok := m.mems[name]
	if !ok {
		return nil, 0, fmt.Errorf("aot: unknown memory %q", name)
	}
	if ma.width%8 != 0 {
		return nil, 0, fmt.Errorf("aot: memory %q width %d is not byte-addressable", name, ma.width)
	}
	return ma, ma.width / 8, nil
}

// MemoryReadByte reads one byte at an absolute byte offset into name.
func (m *Machine) MemoryReadByte(name string, offset int) (byte, error) {
	ma, bpw, err := m.memBytesPerWord(name)
	if err != nil {
		return 0, err
	}
	word := offset / bpw
	shift := uint(offset%bpw) * 8
	if word < 0 || word >= len(ma.data) {
		return 0, fmt.Errorf("aot: memory %q offset %d out of range", name, offset)
	}
	return byte(ma.data[word].Uint64() >> shift), nil
}

// MemoryWriteByte overwrites one byte at an absolute byte offset into
// name, leaving the rest of that word untouched.
func (m *Machine) MemoryWriteByte(name string, offset int, b byte) error {
	ma, bpw, err := m.memBytesPerWord(name)
	if err != nil {
		return err
	}
	word := offset / bpw
	shift := uint(offset%bpw) * 8
	if word < 0 || word >= len(ma.data) {
		return fmt.Errorf("aot: memory %q offset %d out of range", name, offset)
	}
	old := ma.data[word].Uint64()
	cleared := old &^ (uint64(0xff) << shift)
	ma.data[word] = bitvec.New(cleared|(uint64(b)<<shift), ma.width)
	return nil
}

// MemorySize returns the declared depth and word width (bits) of name.
func (m *Machine) MemorySize(name string) (depth, width int, err error) {
	ma, ok := m.mems[name]
	if !ok {
		return 0, 0, fmt.Errorf("aot: unknown memory %q", name)
	}
	return len(ma.data), ma.width, nil
}
