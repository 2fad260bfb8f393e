// Package simctl implements the §4.I simulation control surface: a
// uniform tick/run/peek/poke/trace/breakpoint API over any of the
// three backends (interpreter, bytecode JIT, AOT), so callers — the
// CLI, the control-protocol host, tests — never need to know which
// backend a Handle wraps.
package simctl

import (
	"github.com/rhdl/rhdl/pkg/bir"
	"github.com/rhdl/rhdl/pkg/bitvec"
)

// Engine is the method set pkg/interp.Interpreter, pkg/bytecode.VM,
// and pkg/aot.Machine all independently implement (§4.D/E/F:
// "this backend must ... produce ... bit-identical" results to the
// others). A Handle drives any Engine without caring which one.
type Engine interface {
	Component() *bir.Component
	Reset()
	Poke(name string, v bitvec.BitVector)
	Peek(name string) (bitvec.BitVector, error)
	PeekByIdx(i int) (bitvec.BitVector, error)
	SignalNames() []string
	TickCount(clock string) uint64
	Tick()
	RunTicks(n int)
	RunClockTicks(clock string, n int)
	MemoryReadByte(name string, offset int) (byte, error)
	MemoryWriteByte(name string, offset int, b byte) error
	MemorySize(name string) (depth, width int, err error)
}
