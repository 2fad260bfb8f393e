package interp

import (
	"fmt"
	"sort"

	"github.com/rhdl/rhdl/pkg/bir"
)

// topoSort orders comp's combinational Assignments so that each
// assignment's dependencies are evaluated before it — the ordering
// §4.D step 1 requires. Memory read ports (async mode) are treated as
// combinational too and included in the same graph so their outputs
// settle before anything reading them.
func topoSort(comp *bir.Component) ([]string, error) {
	type node struct {
		lhs  string
		expr bir.Expr
	}
	var nodes []node
	for _, a := range comp.Assigns {
		nodes = append(nodes, node{a.Lhs, a.Rhs})
	}
	for _, m := range comp.Memories {
		for _, rp := range m.ReadPorts {
			if rp.Mode == bir.ReadAsync {
				nodes = append(nodes, node{rp.Name, rp.Addr})
			}
		}
	}

	byLhs := map[string]bir.Expr{}
	for _, n := range nodes {
		byLhs[n.lhs] = n.expr
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := map[string]int{}
	var order []string
	var visit func(name string) error
	visit = func(name string) error {
		switch color[name] {
		case black:
			return nil
		case gray:
			return fmt.Errorf("interp: combinational cycle through %q", name)
		}
		expr, ok := byLhs[name]
		if !ok {
			// Register, input, or sync-read output: a leaf for
			// combinational-dependency purposes.
			return nil
		}
		color[name] = gray
		for _, dep := range bir.SignalRefs(expr) {
			if comp.IsRegister(dep) {
				continue
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		color[name] = black
		order = append(order, name)
		return nil
	}

	names := make([]string, 0, len(nodes))
	for _, n := range nodes {
		names = append(names, n.lhs)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return order, nil
}
