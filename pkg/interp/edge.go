package interp

import (
	"github.com/rhdl/rhdl/pkg/bir"
	"github.com/rhdl/rhdl/pkg/bitvec"
)

// edge advances clock by one edge, implementing the full §4.D cycle:
// combinational settle, sequential sample (against pre-edge state),
// async reset override, atomic commit, memory writes in declaration
// order, then a re-settle so Peek reflects post-edge values
// immediately. Registers and memory ports on other clocks are
// untouched.
func (it *Interpreter) edge(clock string) {
	it.settle()

	nextRegs := map[string]bitvec.BitVector{}
	for _, r := range it.comp.Registers {
		if r.Clock != clock {
			continue
		}
		nextRegs[r.Name] = it.nextRegisterValue(r, clock)
	}

	// Sync read ports sample the pre-write memory contents at the
	// pre-edge address: a same-cycle write to the same address is not
	// observed until the following edge.
	syncReads := map[string]bitvec.BitVector{}
	for _, m := range it.comp.Memories {
		for _, rp := range m.ReadPorts {
			if rp.Mode != bir.ReadSync || rp.Clock != clock {
				continue
			}
			addr := it.eval(rp.Addr, nil)
			syncReads[rp.Name] = it.readMem(m.Name, addr)
		}
	}

	// Asynchronous reset overrides the sampled next-state regardless of
	// whether this edge belongs to the register's own clock domain: an
	// async reset takes effect the instant it is asserted.
	for _, r := range it.comp.Registers {
		if r.ResetBy == nil || !r.ResetBy.Async {
			continue
		}
		if resetAsserted(it.lookup(r.ResetBy.Signal), r.ResetBy.ActiveHigh) {
			nextRegs[r.Name] = r.Reset
		}
	}

	for name, v := range nextRegs {
		it.regs[name] = v
	}
	for name, v := range syncReads {
		it.wires[name] = v
	}

	// Memory writes commit in declaration order; a later write port to
	// the same address within the same edge wins.
	for _, m := range it.comp.Memories {
		ms := it.mems[m.Name]
		for _, wp := range m.WritePorts {
			if wp.Clock != clock {
				continue
			}
			if wp.Enable != nil && it.eval(wp.Enable, nil).Uint64() == 0 {
				continue
			}
			idx := it.eval(wp.Addr, nil).Uint64()
			if idx < uint64(len(ms.data)) {
				ms.data[idx] = it.eval(wp.Data, nil)
			}
		}
	}

	it.ticks[clock]++
	it.settle()
}

func (it *Interpreter) nextRegisterValue(r bir.Register, clock string) bitvec.BitVector {
	val := it.regs[r.Name]
	for _, sr := range it.comp.Seq {
		if sr.Lhs == r.Name && sr.Clock == clock {
			val = it.eval(sr.Rhs, nil)
			break
		}
	}
	if r.ResetBy != nil && !r.ResetBy.Async {
		if resetAsserted(it.lookup(r.ResetBy.Signal), r.ResetBy.ActiveHigh) {
			val = r.Reset
		}
	}
	return val
}

func resetAsserted(v bitvec.BitVector, activeHigh bool) bool {
	bit := v.Uint64() != 0
	if activeHigh {
		return bit
	}
	return !bit
}
