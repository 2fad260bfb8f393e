// Package interp implements the BIR reference interpreter: the
// definitional cycle-accurate simulator every other backend (bytecode
// JIT, AOT) must reproduce bit-for-bit (§4.D).
package interp

import (
	"fmt"
	"sort"

	"github.com/rhdl/rhdl/pkg/bir"
	"github.com/rhdl/rhdl/pkg/bitvec"
)

// Interpreter is the reference simulator over a single flattened
// bir.Component (see pkg/elab). It owns all register and memory
// state; two Interpreters over the same Component are independent
// (§3.4, §3.5).
type Interpreter struct {
	comp *bir.Component

	regs  map[string]bitvec.BitVector
	wires map[string]bitvec.BitVector // settled snapshot: inputs, outputs, wires, sync-read port outputs
	mems  map[string]*memState

	topoOrder  []string             // combinational driver names (assigns + async reads), in dependency order
	driverExpr map[string]bir.Expr  // name -> driving expression, for plain Assignments only
	asyncReads map[string]asyncRead // name -> async memory read port, for names not in driverExpr
	signalIdx  []string             // stable PeekByIdx ordering

	ticks map[string]uint64 // per-clock tick counters
}

type memState struct {
	def  bir.Memory
	data []bitvec.BitVector
}

// asyncRead identifies the memory backing an asynchronous (combinational)
// read port so settle() can fetch its current contents by address.
type asyncRead struct {
	mem  string
	port bir.ReadPort
}

// New builds an Interpreter over comp and resets it to its declared
// initial state.
func New(comp *bir.Component) (*Interpreter, error) {
	order, err := topoSort(comp)
	if err != nil {
		return nil, err
	}
	it := &Interpreter{
		comp:      comp,
		topoOrder: order,
		ticks:     map[string]uint64{},
	}
	it.driverExpr = map[string]bir.Expr{}
	for _, a := range comp.Assigns {
		it.driverExpr[a.Lhs] = a.Rhs
	}
	it.asyncReads = map[string]asyncRead{}
	for _, m := range comp.Memories {
		for _, rp := range m.ReadPorts {
			if rp.Mode == bir.ReadAsync {
				it.asyncReads[rp.Name] = asyncRead{mem: m.Name, port: rp}
			}
		}
	}
	it.signalIdx = it.buildSignalIndex()
	it.Reset()
	return it, nil
}

func (it *Interpreter) buildSignalIndex() []string {
	var names []string
	for _, p := range it.comp.Inputs {
		names = append(names, p.Name)
	}
	for _, p := range it.comp.Outputs {
		names = append(names, p.Name)
	}
	for _, w := range it.comp.Wires {
		names = append(names, w.Name)
	}
	for _, r := range it.comp.Registers {
		names = append(names, r.Name)
	}
	sort.Strings(names)
	return names
}

// Reset restores all registers and memories to declared reset values
// and zeroes every clock's tick counter (§4.D, §6 reset()).
func (it *Interpreter) Reset() {
	it.regs = map[string]bitvec.BitVector{}
	for _, r := range it.comp.Registers {
		it.regs[r.Name] = r.Reset
	}
	it.mems = map[string]*memState{}
	for _, m := range it.comp.Memories {
		ms := &memState{def: m, data: make([]bitvec.BitVector, m.Depth)}
		for i := range ms.data {
			ms.data[i] = bitvec.Zero(m.Width)
		}
		it.mems[m.Name] = ms
	}
	for _, clk := range it.comp.Clocks {
		it.ticks[clk] = 0
	}
	it.wires = map[string]bitvec.BitVector{}
	for _, p := range it.comp.Inputs {
		it.wires[p.Name] = p.Default
	}
	it.settle()
}

// Component returns the flattened component this interpreter simulates.
func (it *Interpreter) Component() *bir.Component { return it.comp }

// Poke sets an external input for the next settle.
func (it *Interpreter) Poke(name string, v bitvec.BitVector) {
	it.wires[name] = v
}

// Peek returns the most recent settled combinational value or current
// register value.
func (it *Interpreter) Peek(name string) (bitvec.BitVector, error) {
	if v, ok := it.regs[name]; ok {
		return v, nil
	}
	if v, ok := it.wires[name]; ok {
		return v, nil
	}
	return bitvec.BitVector{}, fmt.Errorf("interp: unknown signal %q", name)
}

// PeekByIdx returns the same value as Peek, addressed by a stable
// integer handle assigned at construction time.
func (it *Interpreter) PeekByIdx(i int) (bitvec.BitVector, error) {
	if i < 0 || i >= len(it.signalIdx) {
		return bitvec.BitVector{}, fmt.Errorf("interp: index %d out of range", i)
	}
	return it.Peek(it.signalIdx[i])
}

// SignalNames returns the stable PeekByIdx-ordered signal name list.
func (it *Interpreter) SignalNames() []string { return it.signalIdx }

// TickCount returns the number of edges advanced on clock.
func (it *Interpreter) TickCount(clock string) uint64 { return it.ticks[clock] }

// Tick advances the default clock (the component's Clocks[0]) by one
// edge. Components with no declared clock (purely combinational) treat
// Tick as a settle-only no-op.
func (it *Interpreter) Tick() {
	clk := it.defaultClock()
	if clk == "" {
		it.settle()
		return
	}
	it.RunClockTicks(clk, 1)
}

func (it *Interpreter) defaultClock() string {
	if len(it.comp.Clocks) == 0 {
		return ""
	}
	return it.comp.Clocks[0]
}

// RunTicks advances the default clock by n edges.
func (it *Interpreter) RunTicks(n int) {
	clk := it.defaultClock()
	if clk == "" {
		for i := 0; i < n; i++ {
			it.settle()
		}
		return
	}
	it.RunClockTicks(clk, n)
}

// RunClockTicks advances the named clock by n edges, per §4.D's
// multi-clock model: each clock has its own independent cadence.
func (it *Interpreter) RunClockTicks(clock string, n int) {
	for i := 0; i < n; i++ {
		it.edge(clock)
	}
}

// settle evaluates every combinational driver (Assignments plus async
// memory reads) in dependency order and writes the results into the
// current wire snapshot (§4.D step 1). Registers are left untouched;
// settle never advances state, only re-derives combinational outputs
// from it.
func (it *Interpreter) settle() {
	for _, name := range it.topoOrder {
		if expr, ok := it.driverExpr[name]; ok {
			it.wires[name] = it.eval(expr, nil)
			continue
		}
		ar := it.asyncReads[name]
		addr := it.eval(ar.port.Addr, nil)
		it.wires[name] = it.readMem(ar.mem, addr)
	}
}

// readMem returns the value stored at addr in the named memory,
// zero-valued if addr is out of range (§4.D: out-of-range addresses
// read as zero rather than trapping mid-simulation).
func (it *Interpreter) readMem(name string, addr bitvec.BitVector) bitvec.BitVector {
	ms := it.mems[name]
	idx := addr.Uint64()
	if idx >= uint64(len(ms.data)) {
		return bitvec.Zero(ms.def.Width)
	}
	return ms.data[idx]
}
