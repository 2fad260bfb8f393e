package codegen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rhdl/rhdl/pkg/bir"
)

// VHDL renders design the same way Verilog does: leaves-first, one
// entity/architecture pair per component, using std_logic_vector for
// multi-bit signals and std_logic for single-bit ones, numeric_std for
// arithmetic (§6).
func VHDL(design *bir.Design) (string, error) {
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
	b.WriteString(vhdlUtilPackage)
	for _, name := range order {
		b.WriteString(vhdlUnit(design.Components[name]))
		b.WriteString("\n")
	}
	return b.String(), nil
}

// vhdlUtilPackage provides to_std_logic, used by every unit below to
// fold a VHDL boolean (the result of a comparison or and/or/xor
// reduction) back into a std_logic bit, since numeric_std has no
// built-in conversion.
const vhdlUtilPackage = `library ieee;
use ieee.std_logic_1164.all;

package rhdl_util is
  function to_std_logic(b : boolean) return std_logic;
end package rhdl_util;

package body rhdl_util is
  function to_std_logic(b : boolean) return std_logic is
  begin
    if b then
      return '1';
    else
      return '0';
    end if;
  end function;
end package body rhdl_util;

`

func vtype(width int) string {
	if width == 1 {
		return "std_logic"
	}
	return fmt.Sprintf("std_logic_vector(%d downto 0)", width-1)
}

func vhdlUnit(c *bir.Component) string {
	name := Sanitize(c.Name)
	var b strings.Builder
	b.WriteString("library ieee;\n")
	b.WriteString("use ieee.std_logic_1164.all;\n")
	b.WriteString("use ieee.numeric_std.all;\n")
	b.WriteString("use work.rhdl_util.all;\n\n")
	fmt.Fprintf(&b, "entity %s is\n  port (\n", name)

	var ports []string
	for _, p := range c.Inputs {
		ports = append(ports, fmt.Sprintf("    %s : in %s", Sanitize(p.Name), vtype(p.Width)))
	}
	for _, p := range c.Outputs {
		ports = append(ports, fmt.Sprintf("    %s : out %s", Sanitize(p.Name), vtype(p.Width)))
	}
	b.WriteString(strings.Join(ports, ";\n"))
	b.WriteString("\n  );\n")
	fmt.Fprintf(&b, "end entity %s;\n\n", name)

	fmt.Fprintf(&b, "architecture rtl of %s is\n", name)
	for _, w := range c.Wires {
		fmt.Fprintf(&b, "  signal %s : %s;\n", Sanitize(w.Name), vtype(w.Width))
	}
	for _, r := range c.Registers {
		fmt.Fprintf(&b, "  signal %s : %s;\n", Sanitize(r.Name), vtype(r.Width))
	}
	for _, m := range c.Memories {
		fmt.Fprintf(&b, "  type %s_mem_t is array (0 to %d) of %s;\n", Sanitize(m.Name), m.Depth-1, vtype(m.Width))
		fmt.Fprintf(&b, "  signal %s : %s_mem_t;\n", Sanitize(m.Name), Sanitize(m.Name))
		for _, rp := range m.ReadPorts {
			fmt.Fprintf(&b, "  signal %s : %s;\n", Sanitize(rp.Name), vtype(m.Width))
		}
	}
	b.WriteString("begin\n\n")

	for _, a := range c.Assigns {
		fmt.Fprintf(&b, "  %s <= %s;\n", Sanitize(a.Lhs), vhdlExpr(a.Rhs, vtypeKind(c, a.Lhs), nil))
	}
	for _, m := range c.Memories {
		for _, rp := range m.ReadPorts {
			if rp.Mode == bir.ReadAsync {
				fmt.Fprintf(&b, "  %s <= %s(to_integer(unsigned(%s)));\n",
					Sanitize(rp.Name), Sanitize(m.Name), vhdlExpr(rp.Addr, kUnsigned, nil))
			}
		}
	}
	b.WriteString("\n")

	for _, clk := range c.Clocks {
		writeVhdlProcess(&b, c, clk)
	}

	for _, inst := range c.Instances {
		fmt.Fprintf(&b, "  %s : entity work.%s\n    port map (\n", Sanitize(inst.Name), Sanitize(inst.Component))
		var binds []string
		for _, pb := range inst.Bindings {
			binds = append(binds, fmt.Sprintf("      %s => %s", Sanitize(pb.ChildPort), vhdlExpr(pb.Expr, kRaw, nil)))
		}
		b.WriteString(strings.Join(binds, ",\n"))
		b.WriteString("\n    );\n")
	}

	fmt.Fprintf(&b, "end architecture rtl;\n")
	return b.String()
}

func writeVhdlProcess(b *strings.Builder, c *bir.Component, clk string) {
	var regs []bir.Register
	for _, r := range c.Registers {
		if r.Clock == clk {
			regs = append(regs, r)
		}
	}
	var syncReads []bir.ReadPort
	memName := map[string]string{}
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

	clkName := Sanitize(clk)
	fmt.Fprintf(b, "  process(%s)\n  begin\n", clkName)
	fmt.Fprintf(b, "    if rising_edge(%s) then\n", clkName)
	for _, r := range regs {
		rhs := seqRhs(c, r.Name, clk)
		name := Sanitize(r.Name)
		if r.ResetBy != nil && !r.ResetBy.Async {
			cond := Sanitize(r.ResetBy.Signal) + " = '1'"
			if !r.ResetBy.ActiveHigh {
				cond = Sanitize(r.ResetBy.Signal) + " = '0'"
			}
			fmt.Fprintf(b, "      if %s then\n        %s <= %s;\n      else\n        %s <= %s;\n      end if;\n",
				cond, name, vhdlLit(r.Reset.Uint64(), r.Reset.Width()), name, vhdlExpr(rhs, kindOf(c, r.Width), nil))
		} else {
			fmt.Fprintf(b, "      %s <= %s;\n", name, vhdlExpr(rhs, kindOf(c, r.Width), nil))
		}
	}
	for _, rp := range syncReads {
		fmt.Fprintf(b, "      %s <= %s(to_integer(unsigned(%s)));\n",
			Sanitize(rp.Name), Sanitize(memName[rp.Name]), vhdlExpr(rp.Addr, kUnsigned, nil))
	}
	for _, m := range c.Memories {
		for _, wp := range m.WritePorts {
			if wp.Clock != clk {
				continue
			}
			line := fmt.Sprintf("%s(to_integer(unsigned(%s))) <= %s;",
				Sanitize(m.Name), vhdlExpr(wp.Addr, kUnsigned, nil), vhdlExpr(wp.Data, kindOf(c, m.Width), nil))
			if wp.Enable != nil {
				fmt.Fprintf(b, "      if %s = '1' then\n        %s\n      end if;\n", vhdlExpr(wp.Enable, kStdLogic, nil), line)
			} else {
				fmt.Fprintf(b, "      %s\n", line)
			}
		}
	}
	for _, r := range regs {
		if r.ResetBy != nil && r.ResetBy.Async {
			// Asynchronous reset is emitted inside the rising_edge
			// branch, after the clocked assignments above so it takes
			// priority over them. The process is sensitive to the clock
			// only, so in the emitted VHDL the reset acts on a clock edge.
			cond := Sanitize(r.ResetBy.Signal)
			if !r.ResetBy.ActiveHigh {
				cond += " = '0'"
			} else {
				cond += " = '1'"
			}
			fmt.Fprintf(b, "      if %s then\n        %s <= %s;\n      end if;\n",
				cond, Sanitize(r.Name), vhdlLit(r.Reset.Uint64(), r.Reset.Width()))
		}
	}
	b.WriteString("    end if;\n  end process;\n\n")
}

func kindOf(c *bir.Component, width int) exprKind {
	if width == 1 {
		return kStdLogic
	}
	return kRaw
}

func vtypeKind(c *bir.Component, name string) exprKind {
	w, _ := c.SignalWidth(name)
	return kindOf(c, w)
}

type exprKind int

const (
	kRaw exprKind = iota
	kStdLogic
	kUnsigned
)

func vhdlLit(value uint64, width int) string {
	if width == 1 {
		if value == 0 {
			return "'0'"
		}
		return "'1'"
	}
	bits := make([]byte, width)
	for i := 0; i < width; i++ {
		if value&(1<<uint(width-1-i)) != 0 {
			bits[i] = '1'
		} else {
			bits[i] = '0'
		}
	}
	return fmt.Sprintf("\"%s\"", string(bits))
}

// vhdlExpr renders e as VHDL source text. Arithmetic/comparison
// operands are wrapped in unsigned(...) so numeric_std resolves the
// operator; the result is cast back with std_logic_vector(...) unless
// kind asks for the bare unsigned form (memory/array index contexts).
func vhdlExpr(e bir.Expr, kind exprKind, en map[string]string) string {
	switch n := e.(type) {
	case *bir.Literal:
		return vhdlLit(n.Value.Uint64(), n.Value.Width())
	case *bir.Signal:
		return Sanitize(n.Name)
	case *bir.Slice:
		op := vhdlExpr(n.Operand, kRaw, en)
		if n.High == n.Low {
			return fmt.Sprintf("%s(%d)", op, n.Low)
		}
		return fmt.Sprintf("%s(%d downto %d)", op, n.High, n.Low)
	case *bir.Concat:
		parts := make([]string, len(n.Operands))
		for i, o := range n.Operands {
			parts[i] = vhdlExpr(o, kRaw, en)
		}
		return strings.Join(parts, " & ")
	case *bir.Binary:
		l := vhdlExpr(n.Left, kRaw, en)
		r := vhdlExpr(n.Right, kRaw, en)
		if n.Op.IsComparison() {
			op := vhdlCompareOp(n.Op)
			return fmt.Sprintf("to_std_logic(unsigned(%s) %s unsigned(%s))", l, op, r)
		}
		if n.Op == bir.OpShl || n.Op == bir.OpShr {
			fn := "shift_left"
			if n.Op == bir.OpShr {
				fn = "shift_right"
			}
			return fmt.Sprintf("std_logic_vector(%s(unsigned(%s), to_integer(unsigned(%s))))", fn, l, r)
		}
		op := vhdlArithOp(n.Op)
		return fmt.Sprintf("std_logic_vector(unsigned(%s) %s unsigned(%s))", l, op, r)
	case *bir.Unary:
		return vhdlUnary(n, en)
	case *bir.Mux:
		sel := vhdlExpr(n.Sel, kStdLogic, en)
		then := vhdlExpr(n.Then, kRaw, en)
		els := vhdlExpr(n.Else, kRaw, en)
		return fmt.Sprintf("(%s when %s = '1' else %s)", then, sel, els)
	case *bir.CaseSelect:
		sel := vhdlExpr(n.Selector, kRaw, en)
		keys := append([]bir.CaseArm(nil), n.Cases...)
		sort.Slice(keys, func(i, j int) bool { return keys[i].Key.Uint64() < keys[j].Key.Uint64() })
		s := vhdlExpr(n.Default, kRaw, en)
		for i := len(keys) - 1; i >= 0; i-- {
			s = fmt.Sprintf("%s when %s = %s else %s",
				vhdlExpr(keys[i].Value, kRaw, en), sel, vhdlLit(keys[i].Key.Uint64(), n.Selector.Width()), s)
		}
		return "(" + s + ")"
	case *bir.Let:
		next := map[string]string{}
		for k, v := range en {
			next[k] = v
		}
		next[n.Name] = vhdlExpr(n.Value, kRaw, en)
		return vhdlExpr(n.Body, kRaw, next)
	case *bir.LetRef:
		return en[n.Name]
	default:
		return "-- unknown"
	}
}

func vhdlCompareOp(op bir.BinOp) string {
	switch op {
	case bir.OpEq:
		return "="
	case bir.OpNe:
		return "/="
	case bir.OpLt:
		return "<"
	case bir.OpLe:
		return "<="
	case bir.OpGt:
		return ">"
	case bir.OpGe:
		return ">="
	}
	return "="
}

func vhdlArithOp(op bir.BinOp) string {
	switch op {
	case bir.OpAdd:
		return "+"
	case bir.OpSub:
		return "-"
	case bir.OpAnd:
		return "and"
	case bir.OpOr:
		return "or"
	case bir.OpXor:
		return "xor"
	}
	return "+"
}

func vhdlUnary(n *bir.Unary, en map[string]string) string {
	op := vhdlExpr(n.Operand, kRaw, en)
	w := n.Operand.Width()
	switch n.Op {
	case bir.OpNot:
		return fmt.Sprintf("not %s", op)
	case bir.OpNeg:
		return fmt.Sprintf("std_logic_vector(-unsigned(%s))", op)
	case bir.OpReduceAnd:
		return fmt.Sprintf("to_std_logic(and %s)", op)
	case bir.OpReduceOr:
		return fmt.Sprintf("to_std_logic(or %s)", op)
	case bir.OpReduceXor:
		return fmt.Sprintf("to_std_logic(xor %s)", op)
	case bir.OpRotateLeft:
		if w == 1 {
			return op
		}
		return fmt.Sprintf("std_logic_vector(rotate_left(unsigned(%s), 1))", op)
	case bir.OpRotateRight:
		if w == 1 {
			return op
		}
		return fmt.Sprintf("std_logic_vector(rotate_right(unsigned(%s), 1))", op)
	case bir.OpSExt:
		if n.W == w {
			return op
		}
		return fmt.Sprintf("std_logic_vector(resize(signed(%s), %d))", op, n.W)
	default:
		return "-- unknown unary"
	}
}
