package birbuild

import (
	"fmt"
	"sort"

	"github.com/rhdl/rhdl/pkg/bir"
)

// Build finalizes the component: checks structural integrity (every
// reference resolves, every assignment's width matches its target,
// every output/wire has exactly one driver, the combinational
// dependency graph is acyclic) and returns the frozen *bir.Component.
// Elaboration errors (§7.1) are returned as a single joined error
// naming every offending declaration; Build never returns a partially
// valid component alongside an error.
func (b *Builder) Build() (*bir.Component, error) {
	errs := append([]error(nil), b.errs...)

	c := &bir.Component{
		Name:      b.name,
		Inputs:    b.inputs,
		Outputs:   b.outputs,
		Wires:     b.wires,
		Registers: b.registers,
		Memories:  b.memories,
		Assigns:   b.assigns,
		Seq:       b.seq,
		Instances: b.instances,
		Clocks:    collectClocks(b),
	}

	errs = append(errs, checkUndriven(b, c)...)
	errs = append(errs, checkResolution(c)...)
	errs = append(errs, checkAcyclic(c)...)

	if len(errs) > 0 {
		return nil, joinErrors(errs)
	}
	return c, nil
}

func collectClocks(b *Builder) []string {
	seen := map[string]bool{}
	var out []string
	add := func(clk string) {
		if clk != "" && !seen[clk] {
			seen[clk] = true
			out = append(out, clk)
		}
	}
	for _, r := range b.registers {
		add(r.Clock)
	}
	for _, s := range b.seq {
		add(s.Clock)
	}
	for _, m := range b.memories {
		for _, rp := range m.ReadPorts {
			if rp.Mode == bir.ReadSync {
				add(rp.Clock)
			}
		}
		for _, wp := range m.WritePorts {
			add(wp.Clock)
		}
	}
	sort.Strings(out)
	return out
}

// checkUndriven reports outputs and wires with zero drivers. (Multiple
// drivers are already caught at Assign/Next time.)
func checkUndriven(b *Builder, c *bir.Component) []error {
	var errs []error
	for _, p := range c.Outputs {
		if !b.driven[p.Name] {
			errs = append(errs, fmt.Errorf("component %q: output %q has no driver", c.Name, p.Name))
		}
	}
	for _, w := range c.Wires {
		if !b.driven[w.Name] {
			errs = append(errs, fmt.Errorf("component %q: wire %q has no driver", c.Name, w.Name))
		}
	}
	for _, r := range c.Registers {
		if !b.driven[r.Name] {
			errs = append(errs, fmt.Errorf("component %q: register %q has no sequential rule", c.Name, r.Name))
		}
	}
	return errs
}

// checkResolution verifies every Signal reference in every expression
// resolves to a declared name on c (a port, wire, register, or memory
// read-port output).
func checkResolution(c *bir.Component) []error {
	var errs []error
	check := func(context string, e bir.Expr) {
		for _, name := range bir.SignalRefs(e) {
			if _, ok := c.SignalWidth(name); !ok {
				errs = append(errs, fmt.Errorf("component %q: %s references unresolved signal %q", c.Name, context, name))
			}
		}
	}
	for _, a := range c.Assigns {
		check(fmt.Sprintf("assignment to %q", a.Lhs), a.Rhs)
	}
	for _, s := range c.Seq {
		check(fmt.Sprintf("sequential rule for %q", s.Lhs), s.Rhs)
	}
	for _, m := range c.Memories {
		for _, rp := range m.ReadPorts {
			check(fmt.Sprintf("read port %q address", rp.Name), rp.Addr)
		}
		for i, wp := range m.WritePorts {
			check(fmt.Sprintf("memory %q write port %d address", m.Name, i), wp.Addr)
			check(fmt.Sprintf("memory %q write port %d data", m.Name, i), wp.Data)
			if wp.Enable != nil {
				check(fmt.Sprintf("memory %q write port %d enable", m.Name, i), wp.Enable)
			}
		}
	}
	return errs
}

// checkAcyclic verifies the directed graph of purely combinational
// dependencies (Assignment Lhs -> the wires/outputs its Rhs reads) has
// no cycles. Registers break the cycle (a sequential rule reads
// "current" register state, not a combinational dependency), so
// register names are not part of this graph.
func checkAcyclic(c *bir.Component) []error {
	deps := map[string][]string{}
	for _, a := range c.Assigns {
		for _, ref := range bir.SignalRefs(a.Rhs) {
			if !c.IsRegister(ref) {
				deps[a.Lhs] = append(deps[a.Lhs], ref)
			}
		}
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := map[string]int{}
	var cyclePath []string
	var visit func(n string) bool
	visit = func(n string) bool {
		switch color[n] {
		case black:
			return false
		case gray:
			cyclePath = append(cyclePath, n)
			return true
		}
		color[n] = gray
		for _, dep := range deps[n] {
			if visit(dep) {
				cyclePath = append(cyclePath, n)
				return true
			}
		}
		color[n] = black
		return false
	}

	names := make([]string, 0, len(deps))
	for n := range deps {
		names = append(names, n)
	}
	sort.Strings(names)

	for _, n := range names {
		if color[n] == white {
			cyclePath = nil
			if visit(n) {
				return []error{fmt.Errorf("component %q: combinational cycle detected: %v", c.Name, cyclePath)}
			}
		}
	}
	return nil
}

func joinErrors(errs []error) error {
	if len(errs) == 1 {
		return errs[0]
	}
	msg := fmt.Sprintf("%d elaboration errors:", len(errs))
	for _, e := range errs {
		msg += "\n  - " + e.Error()
	}
	return fmt.Errorf("%s", msg)
}
