// Package codegen emits synthesizable Verilog and VHDL from BIR
// (behavioral, §4.H) and structural Verilog from SIR (§4.G's gate
// lowering). Both emitters are pure: BIR/SIR in, text out, no
// simulation state involved (§3.4).
package codegen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rhdl/rhdl/pkg/bir"
)

// Verilog renders design's top component and every component it
// (transitively) instantiates as one behavioral Verilog source,
// leaves-first so every module is defined before it is used.
func Verilog(design *bir.Design) (string, error) {
	top := design.TopComponent()
	if top == nil {
		return "", fmt.Errorf("codegen: design has no top component %q", design.Top)
	}
	var order []string
	seen := map[string]bool{}
	var visit func(name string) error
	visit = func(name string) error {
		if seen[name] {
			return nil
		}
		c, ok := design.Components[name]
		if !ok {
			return fmt.Errorf("codegen: unknown component %q", name)
		}
		seen[name] = true
		for _, inst := range c.Instances {
			if err := visit(inst.Component); err != nil {
				return err
			}
		}
		order = append(order, name)
		return nil
	}
	if err := visit(design.Top); err != nil {
		return "", err
	}

	var b strings.Builder
	for _, name := range order {
		b.WriteString(verilogModule(design.Components[name]))
		b.WriteString("\n")
	}
	return b.String(), nil
}

func verilogModule(c *bir.Component) string {
	var b strings.Builder
	name := Sanitize(c.Name)
	fmt.Fprintf(&b, "module %s (\n", name)

	var ports []string
	for _, p := range c.Inputs {
		ports = append(ports, fmt.Sprintf("  input %s%s", vwire(p.Width), Sanitize(p.Name)))
	}
	for _, p := range c.Outputs {
		ports = append(ports, fmt.Sprintf("  output %s%s", vwire(p.Width), Sanitize(p.Name)))
	}
	b.WriteString(strings.Join(ports, ",\n"))
	b.WriteString("\n);\n\n")

	for _, w := range c.Wires {
		fmt.Fprintf(&b, "  wire %s%s;\n", vwire(w.Width), Sanitize(w.Name))
	}
	for _, r := range c.Registers {
		fmt.Fprintf(&b, "  reg %s%s;\n", vwire(r.Width), Sanitize(r.Name))
	}
	for _, m := range c.Memories {
		fmt.Fprintf(&b, "  reg %s%s [0:%d];\n", vwire(m.Width), Sanitize(m.Name), m.Depth-1)
		for _, rp := range m.ReadPorts {
			if rp.Mode == bir.ReadSync {
				fmt.Fprintf(&b, "  reg %s%s;\n", vwire(m.Width), Sanitize(rp.Name))
			} else {
				fmt.Fprintf(&b, "  wire %s%s;\n", vwire(m.Width), Sanitize(rp.Name))
			}
		}
	}
	b.WriteString("\n")

	for _, a := range c.Assigns {
		fmt.Fprintf(&b, "  assign %s = %s;\n", Sanitize(a.Lhs), verilogExpr(a.Rhs, nil))
	}
	for _, m := range c.Memories {
		for _, rp := range m.ReadPorts {
			if rp.Mode == bir.ReadAsync {
				fmt.Fprintf(&b, "  assign %s = %s[%s];\n", Sanitize(rp.Name), Sanitize(m.Name), verilogExpr(rp.Addr, nil))
			}
		}
	}
	b.WriteString("\n")

	for _, clk := range c.Clocks {
		writeVerilogAlways(&b, c, clk)
	}

	for _, inst := range c.Instances {
		fmt.Fprintf(&b, "  %s %s (\n", Sanitize(inst.Component), Sanitize(inst.Name))
		var binds []string
		for _, pb := range inst.Bindings {
			binds = append(binds, fmt.Sprintf("    .%s(%s)", Sanitize(pb.ChildPort), verilogExpr(pb.Expr, nil)))
		}
		b.WriteString(strings.Join(binds, ",\n"))
		b.WriteString("\n  );\n")
	}

	b.WriteString("endmodule\n")
	return b.String()
}

func writeVerilogAlways(b *strings.Builder, c *bir.Component, clk string) {
	var regs []bir.Register
	for _, r := range c.Registers {
		if r.Clock == clk {
			regs = append(regs, r)
		}
	}
	var syncReads []bir.ReadPort
	var memName = map[string]string{}
	for _, m := range c.Memories {
		for _, rp := range m.ReadPorts {
			if rp.Mode == bir.ReadSync && rp.Clock == clk {
				syncReads = append(syncReads, rp)
				memName[rp.Name] = m.Name
			}
		}
	}
	if len(regs) == 0 && len(syncReads) == 0 {
		return
	}

	sens := "posedge " + Sanitize(clk)
	for _, r := range regs {
		if r.ResetBy != nil && r.ResetBy.Async {
			kw := "posedge"
			if !r.ResetBy.ActiveHigh {
				kw = "negedge"
			}
			sens += " or " + kw + " " + Sanitize(r.ResetBy.Signal)
		}
	}
	fmt.Fprintf(b, "  always @(%s) begin\n", sens)
	for _, r := range regs {
		rhs := seqRhs(c, r.Name, clk)
		name := Sanitize(r.Name)
		if r.ResetBy != nil {
			cond := Sanitize(r.ResetBy.Signal)
			if !r.ResetBy.ActiveHigh {
				cond = "!" + cond
			}
			fmt.Fprintf(b, "    if (%s)\n      %s <= %s;\n    else\n      %s <= %s;\n",
				cond, name, verilogLit(r.Reset.Uint64(), r.Reset.Width()), name, verilogExpr(rhs, nil))
		} else {
			fmt.Fprintf(b, "    %s <= %s;\n", name, verilogExpr(rhs, nil))
		}
	}
	for _, rp := range syncReads {
		fmt.Fprintf(b, "    %s <= %s[%s];\n", Sanitize(rp.Name), Sanitize(memName[rp.Name]), verilogExpr(rp.Addr, nil))
	}
	for _, m := range c.Memories {
		for _, wp := range m.WritePorts {
			if wp.Clock != clk {
				continue
			}
			line := fmt.Sprintf("%s[%s] <= %s;", Sanitize(m.Name), verilogExpr(wp.Addr, nil), verilogExpr(wp.Data, nil))
			if wp.Enable != nil {
				fmt.Fprintf(b, "    if (%s)\n      %s\n", verilogExpr(wp.Enable, nil), line)
			} else {
				fmt.Fprintf(b, "    %s\n", line)
			}
		}
	}
	b.WriteString("  end\n\n")
}

func seqRhs(c *bir.Component, reg, clk string) bir.Expr {
	for _, s := range c.Seq {
		if s.Lhs == reg && s.Clock == clk {
			return s.Rhs
		}
	}
	return bir.Sig(reg, func() int { w, _ := c.SignalWidth(reg); return w }())
}

func vwire(width int) string {
	if width == 1 {
		return ""
	}
	return fmt.Sprintf("[%d:0] ", width-1)
}

// verilogLit renders a sized literal per §6: 1'b0/1'b1 for single-bit,
// <w>'d<n> otherwise.
func verilogLit(value uint64, width int) string {
	if width == 1 {
		if value == 0 {
			return "1'b0"
		}
		return "1'b1"
	}
	return fmt.Sprintf("%d'd%d", width, value)
}

// env threads Let-bound names to their already-rendered Verilog text.
type env map[string]string

func verilogExpr(e bir.Expr, en env) string {
	switch n := e.(type) {
	case *bir.Literal:
		return verilogLit(n.Value.Uint64(), n.Value.Width())
	case *bir.Signal:
		return Sanitize(n.Name)
	case *bir.Slice:
		op := verilogExpr(n.Operand, en)
		if n.High == n.Low {
			return fmt.Sprintf("%s[%d]", op, n.Low)
		}
		return fmt.Sprintf("%s[%d:%d]", op, n.High, n.Low)
	case *bir.Concat:
		parts := make([]string, len(n.Operands))
		for i, o := range n.Operands {
			parts[i] = verilogExpr(o, en)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case *bir.Binary:
		return fmt.Sprintf("(%s %s %s)", verilogExpr(n.Left, en), n.Op.String(), verilogExpr(n.Right, en))
	case *bir.Unary:
		return verilogUnary(n, en)
	case *bir.Mux:
		return fmt.Sprintf("(%s ? %s : %s)", verilogExpr(n.Sel, en), verilogExpr(n.Then, en), verilogExpr(n.Else, en))
	case *bir.CaseSelect:
		sel := verilogExpr(n.Selector, en)
		keys := append([]bir.CaseArm(nil), n.Cases...)
		sort.Slice(keys, func(i, j int) bool { return keys[i].Key.Uint64() < keys[j].Key.Uint64() })
		s := verilogExpr(n.Default, en)
		for i := len(keys) - 1; i >= 0; i-- {
			s = fmt.Sprintf("(%s == %s) ? %s : %s", sel, verilogLit(keys[i].Key.Uint64(), n.Selector.Width()), verilogExpr(keys[i].Value, en), s)
		}
		return "(" + s + ")"
	case *bir.Let:
		next := env{}
		for k, v := range en {
			next[k] = v
		}
		next[n.Name] = verilogExpr(n.Value, en)
		return verilogExpr(n.Body, next)
	case *bir.LetRef:
		return en[n.Name]
	default:
		return "/* unknown */"
	}
}

func verilogUnary(n *bir.Unary, en env) string {
	op := verilogExpr(n.Operand, en)
	w := n.Operand.Width()
	switch n.Op {
	case bir.OpNot:
		return fmt.Sprintf("(~%s)", op)
	case bir.OpNeg:
		return fmt.Sprintf("(-%s)", op)
	case bir.OpReduceAnd:
		return fmt.Sprintf("(&%s)", op)
	case bir.OpReduceOr:
		return fmt.Sprintf("(|%s)", op)
	case bir.OpReduceXor:
		return fmt.Sprintf("(^%s)", op)
	case bir.OpRotateLeft:
		if w == 1 {
			return op
		}
		return fmt.Sprintf("{%s[%d:0], %s[%d]}", op, w-2, op, w-1)
	case bir.OpRotateRight:
		if w == 1 {
			return op
		}
		return fmt.Sprintf("{%s[0], %s[%d:1]}", op, op, w-1)
	case bir.OpSExt:
		if n.W == w {
			return op
		}
		return fmt.Sprintf("{{%d{%s[%d]}}, %s}", n.W-w, op, w-1, op)
	default:
		return "/* unknown unary */"
	}
}
