package bir

// Children returns the immediate sub-expressions of e, in evaluation
// order. Used by dependency analysis (cycle detection, topological
// sort) and by every backend that needs to recurse without a big type
// switch duplicated in each package.
func Children(e Expr) []Expr {
	switch n := e.(type) {
	case *Literal:
		return nil
	case *Signal:
		return nil
	case *Slice:
		return []Expr{n.Operand}
	case *Concat:
		return n.Operands
	case *Binary:
		return []Expr{n.Left, n.Right}
	case *Unary:
		return []Expr{n.Operand}
	case *Mux:
		return []Expr{n.Sel, n.Then, n.Else}
	case *CaseSelect:
		out := make([]Expr, 0, 2+len(n.Cases))
		out = append(out, n.Selector)
		for _, c := range n.Cases {
			out = append(out, c.Value)
		}
		out = append(out, n.Default)
		return out
	case *Let:
		return []Expr{n.Value, n.Body}
	case *LetRef:
		return nil
	default:
		return nil
	}
}

// SignalRefs returns the set of distinct Signal names referenced
// anywhere within e (not descending into Let bindings' own LetRef
// uses, which are local, not signal references).
func SignalRefs(e Expr) []string {
	seen := map[string]bool{}
	var order []string
	var visit func(Expr)
	visit = func(x Expr) {
		if sig, ok := x.(*Signal); ok {
			if !seen[sig.Name] {
				seen[sig.Name] = true
				order = append(order, sig.Name)
			}
			return
		}
		for _, c := range Children(x) {
			visit(c)
		}
	}
	visit(e)
	return order
}
