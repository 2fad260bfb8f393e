// Package birbuild provides the component builder: a construction
// function receives a *Builder and makes explicit method calls to
// declare ports, wires, registers, and memories, and to attach
// combinational and sequential behavior. This replaces the
// metaprogramming-DSL style of declaring a component as side effects
// of class-body calls: components here are plain values produced by
// plain functions.
package birbuild

import (
	"fmt"
	"sort"

	"github.com/rhdl/rhdl/pkg/bir"
	"github.com/rhdl/rhdl/pkg/bitvec"
)

// Handle is a typed reference to a declared signal, returned by every
// declaration method so callers build expressions against it instead
// of reaching for a name by hand.
type Handle struct {
	name  string
	width int
}

// Name returns the handle's signal name.
func (h Handle) Name() string { return h.name }

// Width returns the handle's declared width.
func (h Handle) Width() int { return h.width }

// Ref turns the handle into a Signal expression.
func (h Handle) Ref() *bir.Signal { return bir.Sig(h.name, h.width) }

// Slice extracts bits [high:low] of the handle as an expression.
func (h Handle) Slice(high, low int) *bir.Slice {
	return &bir.Slice{Operand: h.Ref(), High: high, Low: low}
}

// MemoryHandle is a typed reference to a declared memory array.
type MemoryHandle struct {
	name  string
	depth int
	width int
}

func (m MemoryHandle) Name() string  { return m.name }
func (m MemoryHandle) Depth() int    { return m.depth }
func (m MemoryHandle) Width() int    { return m.width }

// Builder accumulates one component's declarations and behavior.
type Builder struct {
	name      string
	inputs    []bir.Port
	outputs   []bir.Port
	wires     []bir.Wire
	registers []bir.Register
	memories  []bir.Memory
	assigns   []bir.Assignment
	seq       []bir.SeqRule
	instances []bir.Instance

	declared map[string]bool
	driven   map[string]bool // wires/outputs with a driver already attached
	warnings []string
	errs     []error
}

// New starts a builder for a component named name.
func New(name string) *Builder {
	return &Builder{
		name:     name,
		declared: map[string]bool{},
		driven:   map[string]bool{},
	}
}

func (b *Builder) fail(format string, args ...any) {
	b.errs = append(b.errs, fmt.Errorf(format, args...))
}

func (b *Builder) checkUnique(name string) {
	if b.declared[name] {
		b.fail("component %q: signal %q declared more than once", b.name, name)
		return
	}
	b.declared[name] = true
}

// Input declares an input port with a default value used before any
// poke (and at reset).
func (b *Builder) Input(name string, width int, def uint64) Handle {
	b.checkUnique(name)
	b.inputs = append(b.inputs, bir.Port{Name: name, Width: width, Default: bitvec.New(def, width)})
	return Handle{name: name, width: width}
}

// Output declares an output port. The caller must attach exactly one
// combinational Assign or one Sequential rule driving it.
func (b *Builder) Output(name string, width int) Handle {
	b.checkUnique(name)
	b.outputs = append(b.outputs, bir.Port{Name: name, Width: width})
	return Handle{name: name, width: width}
}

// Wire declares an internal combinational signal.
func (b *Builder) Wire(name string, width int) Handle {
	b.checkUnique(name)
	b.wires = append(b.wires, bir.Wire{Name: name, Width: width})
	return Handle{name: name, width: width}
}

// RegOption configures a Register declaration.
type RegOption func(*bir.Register)

// WithReset attaches a reset signal. async selects asynchronous reset
// (forces the register regardless of clock edge); otherwise the reset
// only takes effect on the declared clock's edge.
func WithReset(signal string, activeHigh, async bool) RegOption {
	return func(r *bir.Register) {
		r.ResetBy = &bir.ResetSpec{Signal: signal, ActiveHigh: activeHigh, Async: async}
	}
}

// Register declares a clocked storage element with the given reset
// value, clock domain, and optional reset behavior.
func (b *Builder) Register(name string, width int, reset uint64, clock string, opts ...RegOption) Handle {
	b.checkUnique(name)
	r := bir.Register{Name: name, Width: width, Reset: bitvec.New(reset, width), Clock: clock}
	for _, opt := range opts {
		opt(&r)
	}
	b.registers = append(b.registers, r)
	// A register is always driven (by its sequential rule, attached
	// later via Sequential); mark it undriven now and let Sequential
	// clear it, the same single-driver discipline as wires/outputs.
	return Handle{name: name, width: width}
}

// Memory declares a typed memory array with no ports yet; attach ports
// with ReadPort/WritePort.
func (b *Builder) Memory(name string, depth, width int) *MemoryHandle {
	b.checkUnique(name)
	b.memories = append(b.memories, bir.Memory{Name: name, Depth: depth, Width: width})
	return &MemoryHandle{name: name, depth: depth, width: width}
}

func (b *Builder) memIndex(name string) int {
	for i := range b.memories {
		if b.memories[i].Name == name {
			return i
		}
	}
	return -1
}

// ReadPort adds a read port to mem, declaring outName as a wire (or
// binding it to an already-declared output/wire name) that carries the
// port's data. mode selects synchronous (registered, one-cycle
// latency) or asynchronous (combinational) read timing; clock is
// required for synchronous ports.
func (b *Builder) ReadPort(mem *MemoryHandle, outName string, addr bir.Expr, mode bir.ReadMode, clock string) Handle {
	idx := b.memIndex(mem.name)
	if idx < 0 {
		b.fail("component %q: read port on unknown memory %q", b.name, mem.name)
		return Handle{name: outName, width: mem.width}
	}
	b.checkUnique(outName)
	b.memories[idx].ReadPorts = append(b.memories[idx].ReadPorts, bir.ReadPort{
		Name: outName, Addr: addr, Mode: mode, Clock: clock,
	})
	b.driven[outName] = true
	return Handle{name: outName, width: mem.width}
}

// WritePort adds a write port to mem. enable may be nil for an
// always-enabled port.
func (b *Builder) WritePort(mem *MemoryHandle, addr, data bir.Expr, clock string, enable bir.Expr) {
	idx := b.memIndex(mem.name)
	if idx < 0 {
		b.fail("component %q: write port on unknown memory %q", b.name, mem.name)
		return
	}
	b.memories[idx].WritePorts = append(b.memories[idx].WritePorts, bir.WritePort{
		Addr: addr, Data: data, Clock: clock, Enable: enable,
	})
}

// Assign attaches a combinational driver to a wire or output. Each
// wire/output may have exactly one driver (combinational or
// sequential); a second Assign to the same target is a multi-driver
// error reported at Build.
func (b *Builder) Assign(target Handle, expr bir.Expr) {
	if b.driven[target.name] {
		b.fail("component %q: %q has more than one driver", b.name, target.name)
		return
	}
	b.driven[target.name] = true
	if expr.Width() != target.width {
		b.fail("component %q: assignment to %q has width %d, target is width %d",
			b.name, target.name, expr.Width(), target.width)
	}
	b.assigns = append(b.assigns, bir.Assignment{Lhs: target.name, Rhs: expr})
}

// SeqBuilder scopes sequential rule declarations to a single clock.
type SeqBuilder struct {
	b     *Builder
	clock string
}

// Sequential opens a sequential block on the given clock. fn should
// call Next on the returned SeqBuilder for each register it drives.
func (b *Builder) Sequential(clock string, fn func(s *SeqBuilder)) {
	fn(&SeqBuilder{b: b, clock: clock})
}

// Next declares that target takes the value of expr on this block's
// clock edge. target must be a Register.
func (s *SeqBuilder) Next(target Handle, expr bir.Expr) {
	b := s.b
	if b.driven[target.name] {
		b.fail("component %q: %q has more than one driver", b.name, target.name)
		return
	}
	b.driven[target.name] = true
	if expr.Width() != target.width {
		b.fail("component %q: sequential rule for %q has width %d, register is width %d",
			b.name, target.name, expr.Width(), target.width)
	}
	b.seq = append(b.seq, bir.SeqRule{Clock: s.clock, Lhs: target.name, Rhs: expr})
}

// Instance declares a child component instance. child must already be
// built (components are declared once, leaves first). bindings maps
// the child's input port names to parent-side expressions, and the
// child's output port names to the parent-side *bir.Signal that
// should receive them. Instance marks every output binding's target
// as driven, the same as Assign does for a combinational driver.
func (b *Builder) Instance(instName string, child *bir.Component, bindings map[string]bir.Expr) {
	pb := make([]bir.PortBinding, 0, len(bindings))
	// Deterministic order keeps generated netlists/Verilog stable
	// across runs for the same input, per §4.H's stability guarantee.
	keys := make([]string, 0, len(bindings))
	for k := range bindings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		expr := bindings[k]
		pb = append(pb, bir.PortBinding{ChildPort: k, Expr: expr})
		if isChildOutput(child, k) {
			if sig, ok := expr.(*bir.Signal); ok {
				if b.driven[sig.Name] {
					b.fail("component %q: %q has more than one driver", b.name, sig.Name)
				} else {
					b.driven[sig.Name] = true
				}
			} else {
				b.fail("component %q: instance %q output binding for %q must be a signal reference",
					b.name, instName, k)
			}
		}
	}
	b.instances = append(b.instances, bir.Instance{Name: instName, Component: child.Name, Bindings: pb})
}

func isChildOutput(child *bir.Component, portName string) bool {
	for _, p := range child.Outputs {
		if p.Name == portName {
			return true
		}
	}
	return false
}

// Warnings returns the builder's non-fatal diagnostics. Neither the
// declaration methods nor Build add any, so the result is always empty;
// a second component under an existing name is rejected as an error by
// DesignBuilder.Add rather than reported here.
func (b *Builder) Warnings() []string { return b.warnings }
