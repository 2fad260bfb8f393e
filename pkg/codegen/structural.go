package codegen

import (
	"fmt"
	"strings"

	"github.com/rhdl/rhdl/pkg/sir"
)

// StructuralVerilog renders a flat gate-and-flip-flop netlist (§4.G,
// §6): one module, per-bit nets declared as 1-bit wires, one gate
// primitive instance per Gate, and one DFF modeled as an always block
// per flip-flop (Verilog has no built-in DFF primitive, so each one is
// emitted as its own single-bit always block — the idiomatic way an
// RTL generator represents a gate-level flip-flop in Verilog text).
func StructuralVerilog(n *sir.Netlist) string {
	var b strings.Builder
	name := Sanitize(n.Name)
	fmt.Fprintf(&b, "module %s (\n", name)

	var ports []string
	for _, p := range n.Inputs {
		for i := 0; i < p.Width; i++ {
			ports = append(ports, fmt.Sprintf("  input %s", structNet(p.Name, p.Width, i)))
		}
	}
	for _, p := range n.Outputs {
		for i := 0; i < p.Width; i++ {
			ports = append(ports, fmt.Sprintf("  output %s", structNet(p.Name, p.Width, i)))
		}
	}
	b.WriteString(strings.Join(ports, ",\n"))
	b.WriteString("\n);\n\n")

	declared := map[string]bool{}
	declare := func(net string) {
		if declared[net] || isPortNet(n, net) {
			return
		}
		declared[net] = true
		fmt.Fprintf(&b, "  wire %s;\n", structIdent(net))
	}
	for _, g := range n.Gates {
		declare(g.Out)
		if g.A != "" {
			declare(g.A)
		}
		if g.B != "" {
			declare(g.B)
		}
	}
	for _, f := range n.FFs {
		declare(f.D)
		declare(f.Q)
		if f.Reset != nil {
			declare(f.Reset.Signal)
			declare(f.Reset.Value)
		}
	}
	b.WriteString("\n")

	for i, g := range n.Gates {
		instName := fmt.Sprintf("g%d", i)
		switch g.Kind {
		case sir.GateNot, sir.GateBuf:
			fmt.Fprintf(&b, "  %s %s (%s, %s);\n", gatePrim(g.Kind), instName, structIdent(g.Out), structIdent(g.A))
		case sir.GateConst0:
			fmt.Fprintf(&b, "  assign %s = 1'b0;\n", structIdent(g.Out))
		case sir.GateConst1:
			fmt.Fprintf(&b, "  assign %s = 1'b1;\n", structIdent(g.Out))
		default:
			fmt.Fprintf(&b, "  %s %s (%s, %s, %s);\n", gatePrim(g.Kind), instName, structIdent(g.Out), structIdent(g.A), structIdent(g.B))
		}
	}
	b.WriteString("\n")

	for i, f := range n.FFs {
		fmt.Fprintf(&b, "  // dff %d\n", i)
		if f.Reset != nil {
			kw := "posedge"
			if !f.Reset.ActiveHigh {
				kw = "negedge"
			}
			sens := "posedge " + structIdent(f.Clock)
			if f.Reset.Async {
				sens += " or " + kw + " " + structIdent(f.Reset.Signal)
			}
			fmt.Fprintf(&b, "  always @(%s) begin\n", sens)
			cond := structIdent(f.Reset.Signal)
			if !f.Reset.ActiveHigh {
				cond = "!" + cond
			}
			fmt.Fprintf(&b, "    if (%s)\n      %s <= %s;\n    else\n      %s <= %s;\n  end\n",
				cond, structIdent(f.Q), structIdent(f.Reset.Value), structIdent(f.Q), structIdent(f.D))
		} else {
			fmt.Fprintf(&b, "  always @(posedge %s) begin\n    %s <= %s;\n  end\n", structIdent(f.Clock), structIdent(f.Q), structIdent(f.D))
		}
	}
	b.WriteString("\n")

	for _, m := range n.Mems {
		writeStructuralMem(&b, m)
	}

	b.WriteString("endmodule\n")
	return b.String()
}

func isPortNet(n *sir.Netlist, net string) bool {
	for _, p := range n.Inputs {
		for i := 0; i < p.Width; i++ {
			if sir.BitNet(p.Name, i) == net {
				return true
			}
		}
		if p.Width == 1 && p.Name == net {
			return true
		}
	}
	for _, p := range n.Outputs {
		for i := 0; i < p.Width; i++ {
			if sir.BitNet(p.Name, i) == net {
				return true
			}
		}
		if p.Width == 1 && p.Name == net {
			return true
		}
	}
	return false
}

func structNet(name string, width, bit int) string {
	if width == 1 {
		return structIdent(name)
	}
	return structIdent(sir.BitNet(name, bit))
}

// structIdent sanitizes a per-bit net name (e.g. "q[3]") into a valid
// Verilog identifier without disturbing readability: brackets become
// underscores, everything else follows Sanitize.
func structIdent(net string) string {
	net = strings.ReplaceAll(net, "[", "_")
	net = strings.ReplaceAll(net, "]", "")
	return Sanitize(net)
}

func gatePrim(k sir.GateKind) string {
	switch k {
	case sir.GateAnd:
		return "and"
	case sir.GateOr:
		return "or"
	case sir.GateNot:
		return "not"
	case sir.GateXor:
		return "xor"
	case sir.GateNand:
		return "nand"
	case sir.GateNor:
		return "nor"
	case sir.GateXnor:
		return "xnor"
	case sir.GateBuf:
		return "buf"
	default:
		return "buf"
	}
}

// writeStructuralMem emits a memory primitive as a documented
// black-box (§4.G: large memories are emitted as a primitive with
// gate-level address decoding on each port, not bit-blasted into
// flip-flops).
func writeStructuralMem(b *strings.Builder, m sir.MemPrimitive) {
	name := Sanitize(m.Name)
	fmt.Fprintf(b, "  // memory primitive %q: depth %d, width %d, gate-level address decode on each port\n", m.Name, m.Depth, m.Width)
	fmt.Fprintf(b, "  reg [%d:0] %s [0:%d];\n", m.Width-1, name, m.Depth-1)
	for pi, rp := range m.ReadPorts {
		addrBits := make([]string, len(rp.AddrBits))
		for i, a := range rp.AddrBits {
			addrBits[len(rp.AddrBits)-1-i] = structIdent(a)
		}
		addr := "{" + strings.Join(addrBits, ", ") + "}"
		for i, ob := range rp.OutBits {
			if rp.Sync {
				fmt.Fprintf(b, "  always @(posedge %s) %s <= %s[%s][%d];\n", structIdent(rp.Clock), structIdent(ob), name, addr, i)
			} else {
				fmt.Fprintf(b, "  assign %s = %s[%s][%d];\n", structIdent(ob), name, addr, i)
			}
		}
		_ = pi
	}
	for _, wp := range m.WritePorts {
		addrBits := make([]string, len(wp.AddrBits))
		for i, a := range wp.AddrBits {
			addrBits[len(wp.AddrBits)-1-i] = structIdent(a)
		}
		addr := "{" + strings.Join(addrBits, ", ") + "}"
		dataBits := make([]string, len(wp.DataBits))
		for i, d := range wp.DataBits {
			dataBits[len(wp.DataBits)-1-i] = structIdent(d)
		}
		data := "{" + strings.Join(dataBits, ", ") + "}"
		fmt.Fprintf(b, "  always @(posedge %s) begin\n", structIdent(wp.Clock))
		if wp.EnableBit != "" {
			fmt.Fprintf(b, "    if (%s)\n      %s[%s] <= %s;\n", structIdent(wp.EnableBit), name, addr, data)
		} else {
			fmt.Fprintf(b, "    %s[%s] <= %s;\n", name, addr, data)
		}
		b.WriteString("  end\n")
	}
}
