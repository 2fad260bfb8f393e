// Package elab flattens a hierarchical bir.Design into a single
// bir.Component, so the interpreter, JIT, AOT, and SIR lowering passes
// only ever need to understand one flat component (§3.4: "the BIR for
// a top-level design is frozen before simulation begins").
package elab

import (
	"fmt"

	"github.com/rhdl/rhdl/pkg/bir"
)

// Elaborate flattens design's top component, recursively inlining
// every child instance. Internal signal names are prefixed with their
// instance path ("path.signal") to keep them unique; the top
// component's own ports and wires keep their bare names so callers
// (interp/bytecode/aot/sir, peek/poke, codegen) see the names the
// author wrote.
func Elaborate(design *bir.Design, top string) (*bir.Component, error) {
	root, ok := design.Components[top]
	if !ok {
		return nil, fmt.Errorf("elab: unknown top component %q", top)
	}
	f := &flattener{design: design, seen: map[string]bool{}}
	return f.flatten(root, "", nil)
}

type flattener struct {
	design *bir.Design
	seen   map[string]bool // instance path stack, for recursive-instantiation detection
}

// flatten inlines c into a new Component, under prefix (empty for the
// top level). subst maps c's own port names to the expressions that
// replace them in the parent's frame (for a non-top c): inputs map to
// the parent-side expression bound to them; outputs are rewritten to
// the prefixed internal signal name, and the caller is responsible for
// wiring the parent's binding signal to that prefixed name (done by
// the caller after flatten returns, by adding an Assignment aliasing
// the parent-declared net to prefix+".outputname").
func (f *flattener) flatten(c *bir.Component, prefix string, subst map[string]bir.Expr) (*bir.Component, error) {
	path := prefix + "/" + c.Name
	if f.seen[path] {
		return nil, fmt.Errorf("elab: recursive instantiation cycle through %q", path)
	}
	f.seen[path] = true
	defer delete(f.seen, path)

	out := &bir.Component{Name: c.Name}
	rename := func(name string) string {
		if prefix == "" {
			return name
		}
		return prefix + "." + name
	}
	sub := func(e bir.Expr) bir.Expr { return substitute(e, subst, rename) }

	if prefix == "" {
		out.Inputs = c.Inputs
		out.Outputs = c.Outputs
	} else {
		// Non-top inputs/outputs become internal wires of the flattened
		// top: inputs are replaced by their binding expression wherever
		// referenced, so they need no storage; outputs become wires
		// under their prefixed name.
		for _, p := range c.Outputs {
			out.Wires = append(out.Wires, bir.Wire{Name: rename(p.Name), Width: p.Width})
		}
	}

	for _, w := range c.Wires {
		out.Wires = append(out.Wires, bir.Wire{Name: rename(w.Name), Width: w.Width})
	}
	for _, r := range c.Registers {
		reg := r
		reg.Name = rename(r.Name)
		if r.ResetBy != nil {
			rb := *r.ResetBy
			rb.Signal = renameRef(r.ResetBy.Signal, subst, rename)
			reg.ResetBy = &rb
		}
		out.Registers = append(out.Registers, reg)
	}
	for _, m := range c.Memories {
		mem := bir.Memory{Name: rename(m.Name), Depth: m.Depth, Width: m.Width}
		for _, rp := range m.ReadPorts {
			mem.ReadPorts = append(mem.ReadPorts, bir.ReadPort{
				Name: rename(rp.Name), Addr: sub(rp.Addr), Mode: rp.Mode, Clock: rp.Clock,
			})
		}
		for _, wp := range m.WritePorts {
			var en bir.Expr
			if wp.Enable != nil {
				en = sub(wp.Enable)
			}
			mem.WritePorts = append(mem.WritePorts, bir.WritePort{
				Addr: sub(wp.Addr), Data: sub(wp.Data), Clock: wp.Clock, Enable: en,
			})
		}
		out.Memories = append(out.Memories, mem)
	}
	for _, a := range c.Assigns {
		out.Assigns = append(out.Assigns, bir.Assignment{Lhs: rename(a.Lhs), Rhs: sub(a.Rhs)})
	}
	for _, s := range c.Seq {
		out.Seq = append(out.Seq, bir.SeqRule{Clock: s.Clock, Lhs: rename(s.Lhs), Rhs: sub(s.Rhs)})
	}

	for _, inst := range c.Instances {
		child, ok := f.design.Components[inst.Component]
		if !ok {
			return nil, fmt.Errorf("elab: component %q: instance %q references unknown component %q",
				c.Name, inst.Name, inst.Component)
		}
		childSubst := map[string]bir.Expr{}
		var outputBindings []bir.PortBinding
		for _, pb := range inst.Bindings {
			if isOutputPort(child, pb.ChildPort) {
				outputBindings = append(outputBindings, pb)
				continue
			}
			childSubst[pb.ChildPort] = sub(pb.Expr)
		}
		childPrefix := rename(inst.Name)
		flat, err := f.flatten(child, childPrefix, childSubst)
		if err != nil {
			return nil, err
		}
		mergeInto(out, flat)

		// Wire the parent-declared net for each output binding to the
		// child's now-prefixed output wire.
		for _, pb := range outputBindings {
			targetSig, ok := pb.Expr.(*bir.Signal)
			if !ok {
				return nil, fmt.Errorf("elab: component %q: instance %q output binding for %q is not a signal",
					c.Name, inst.Name, pb.ChildPort)
			}
			w, _ := child.PortWidth(pb.ChildPort)
			out.Assigns = append(out.Assigns, bir.Assignment{
				Lhs: rename(targetSig.Name),
				Rhs: bir.Sig(childPrefix+"."+pb.ChildPort, w),
			})
		}
	}

	out.Clocks = mergeClocks(out)
	return out, nil
}

// mergeInto appends flat's declarations (already fully prefixed) into
// out, without re-processing out's own top-level ports (flat, being a
// non-top flatten result, never has any).
func mergeInto(out, flat *bir.Component) {
	out.Wires = append(out.Wires, flat.Wires...)
	out.Registers = append(out.Registers, flat.Registers...)
	out.Memories = append(out.Memories, flat.Memories...)
	out.Assigns = append(out.Assigns, flat.Assigns...)
	out.Seq = append(out.Seq, flat.Seq...)
}

func isOutputPort(c *bir.Component, name string) bool {
	for _, p := range c.Outputs {
		if p.Name == name {
			return true
		}
	}
	return false
}

func mergeClocks(c *bir.Component) []string {
	seen := map[string]bool{}
	var out []string
	add := func(clk string) {
		if clk != "" && !seen[clk] {
			seen[clk] = true
			out = append(out, clk)
		}
	}
	for _, r := range c.Registers {
		add(r.Clock)
	}
	for _, s := range c.Seq {
		add(s.Clock)
	}
	for _, m := range c.Memories {
		for _, rp := range m.ReadPorts {
			if rp.Mode == bir.ReadSync {
				add(rp.Clock)
			}
		}
		for _, wp := range m.WritePorts {
			add(wp.Clock)
		}
	}
	return out
}

// substitute rewrites every Signal in e: if its name is a key in
// subst, it is replaced wholesale by the bound expression (an input
// port reference becomes whatever the parent bound it to); otherwise
// its name is passed through rename (prefixing it into the flattened
// namespace).
func substitute(e bir.Expr, subst map[string]bir.Expr, rename func(string) string) bir.Expr {
	switch n := e.(type) {
	case *bir.Literal:
		return n
	case *bir.Signal:
		if repl, ok := subst[n.Name]; ok {
			return repl
		}
		return bir.Sig(rename(n.Name), n.W)
	case *bir.Slice:
		return &bir.Slice{Operand: substitute(n.Operand, subst, rename), High: n.High, Low: n.Low}
	case *bir.Concat:
		ops := make([]bir.Expr, len(n.Operands))
		for i, o := range n.Operands {
			ops[i] = substitute(o, subst, rename)
		}
		return &bir.Concat{Operands: ops}
	case *bir.Binary:
		return &bir.Binary{Op: n.Op, Left: substitute(n.Left, subst, rename), Right: substitute(n.Right, subst, rename), W: n.W}
	case *bir.Unary:
		return &bir.Unary{Op: n.Op, Operand: substitute(n.Operand, subst, rename), W: n.W}
	case *bir.Mux:
		return &bir.Mux{Sel: substitute(n.Sel, subst, rename), Then: substitute(n.Then, subst, rename), Else: substitute(n.Else, subst, rename)}
	case *bir.CaseSelect:
		cases := make([]bir.CaseArm, len(n.Cases))
		for i, ca := range n.Cases {
			cases[i] = bir.CaseArm{Key: ca.Key, Value: substitute(ca.Value, subst, rename)}
		}
		return &bir.CaseSelect{Selector: substitute(n.Selector, subst, rename), Cases: cases, Default: substitute(n.Default, subst, rename)}
	case *bir.Let:
		return &bir.Let{Name: n.Name, Value: substitute(n.Value, subst, rename), Body: substitute(n.Body, subst, rename)}
	case *bir.LetRef:
		return n
	default:
		return n
	}
}

func renameRef(name string, subst map[string]bir.Expr, rename func(string) string) string {
	if repl, ok := subst[name]; ok {
		if sig, ok := repl.(*bir.Signal); ok {
			return sig.Name
		}
		// A non-signal expression bound to a reset line can't be
		// named; fall back to the renamed local name so elaboration
		// still produces a (likely-unresolved, diagnosable) component
		// rather than panicking.
		return rename(name)
	}
	return rename(name)
}
