// Package irfile implements the §6 JSON IR wire format: the document
// three backends (interpreter, JIT, AOT) and the external code
// generators all agree on. It is a pure serializer: bir.Component in,
// JSON out, and back.
package irfile

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/rhdl/rhdl/pkg/bir"
	"github.com/rhdl/rhdl/pkg/bitvec"
)

// PortDoc is one ports[] entry.
type PortDoc struct {
	Name      string `json:"name"`
	Width     int    `json:"width"`
	Direction string `json:"direction"` // "input" | "output"
}

// NetDoc is one nets[] entry (an internal wire).
type NetDoc struct {
	Name  string `json:"name"`
	Width int    `json:"width"`
}

// RegDoc is one regs[] entry.
type RegDoc struct {
	Name    string  `json:"name"`
	Width   int     `json:"width"`
	Reset   uint64  `json:"reset"`
	Clock   string  `json:"clock"`
	ResetBy *RstDoc `json:"resetBy,omitempty"`
}

// RstDoc mirrors bir.ResetSpec.
type RstDoc struct {
	Signal     string `json:"signal"`
	ActiveHigh bool   `json:"activeHigh"`
	Async      bool   `json:"async"`
}

// MemPortDoc is one read or write port on a MemDoc.
type MemPortDoc struct {
	Kind   string `json:"kind"` // "read" | "write"
	Name   string `json:"name,omitempty"`
	Addr   json.RawMessage `json:"addr"`
	Data   json.RawMessage `json:"data,omitempty"`
	Enable json.RawMessage `json:"enable,omitempty"`
	Mode   string `json:"mode,omitempty"` // "sync" | "async", read ports only
	Clock  string `json:"clock,omitempty"`
}

// MemDoc is one memories[] entry.
type MemDoc struct {
	Name  string       `json:"name"`
	Depth int          `json:"depth"`
	Width int          `json:"width"`
	Ports []MemPortDoc `json:"ports"`
}

// AssignDoc is one assignments[] entry.
type AssignDoc struct {
	Lhs  string          `json:"lhs"`
	Expr json.RawMessage `json:"expr"`
}

// RuleDoc is one processes[].rules[] entry.
type RuleDoc struct {
	Lhs   string          `json:"lhs"`
	Expr  json.RawMessage `json:"expr"`
	Reset *RstDoc         `json:"reset,omitempty"`
}

// ProcessDoc is one processes[] entry (all sequential rules on one clock).
type ProcessDoc struct {
	Clock string    `json:"clock"`
	Rules []RuleDoc `json:"rules"`
}

// BindingDoc is one instances[].bindings[] entry.
type BindingDoc struct {
	Port string          `json:"port"`
	Expr json.RawMessage `json:"expr"`
}

// InstanceDoc is one instances[] entry.
type InstanceDoc struct {
	Name      string       `json:"name"`
	Component string       `json:"component"`
	Bindings  []BindingDoc `json:"bindings"`
}

// Doc is the top-level §6 IR document for a single flattened component.
type Doc struct {
	Name        string        `json:"name"`
	Ports       []PortDoc     `json:"ports"`
	Nets        []NetDoc      `json:"nets"`
	Regs        []RegDoc      `json:"regs"`
	Memories    []MemDoc      `json:"memories"`
	Assignments []AssignDoc   `json:"assignments"`
	Processes   []ProcessDoc  `json:"processes"`
	Instances   []InstanceDoc `json:"instances"`
}

// FromComponent renders c as a Doc.
func FromComponent(c *bir.Component) (*Doc, error) {
	doc := &Doc{Name: c.Name}

	for _, p := range c.Inputs {
		doc.Ports = append(doc.Ports, PortDoc{Name: p.Name, Width: p.Width, Direction: "input"})
	}
	for _, p := range c.Outputs {
		doc.Ports = append(doc.Ports, PortDoc{Name: p.Name, Width: p.Width, Direction: "output"})
	}
	for _, w := range c.Wires {
		doc.Nets = append(doc.Nets, NetDoc{Name: w.Name, Width: w.Width})
	}
	for _, r := range c.Registers {
		rd := RegDoc{Name: r.Name, Width: r.Width, Reset: r.Reset.Uint64(), Clock: r.Clock}
		if r.ResetBy != nil {
			rd.ResetBy = &RstDoc{Signal: r.ResetBy.Signal, ActiveHigh: r.ResetBy.ActiveHigh, Async: r.ResetBy.Async}
		}
		doc.Regs = append(doc.Regs, rd)
	}
	for _, m := range c.Memories {
		md := MemDoc{Name: m.Name, Depth: m.Depth, Width: m.Width}
		for _, rp := range m.ReadPorts {
			addr, err := marshalExpr(rp.Addr)
			if err != nil {
				return nil, err
			}
			mode := "async"
			if rp.Mode == bir.ReadSync {
				mode = "sync"
			}
			md.Ports = append(md.Ports, MemPortDoc{Kind: "read", Name: rp.Name, Addr: addr, Mode: mode, Clock: rp.Clock})
		}
		for _, wp := range m.WritePorts {
			addr, err := marshalExpr(wp.Addr)
			if err != nil {
				return nil, err
			}
			data, err := marshalExpr(wp.Data)
			if err != nil {
				return nil, err
			}
			pd := MemPortDoc{Kind: "write", Addr: addr, Data: data, Clock: wp.Clock}
			if wp.Enable != nil {
				en, err := marshalExpr(wp.Enable)
				if err != nil {
					return nil, err
				}
				pd.Enable = en
			}
			md.Ports = append(md.Ports, pd)
		}
		doc.Memories = append(doc.Memories, md)
	}
	for _, a := range c.Assigns {
		e, err := marshalExpr(a.Rhs)
		if err != nil {
			return nil, err
		}
		doc.Assignments = append(doc.Assignments, AssignDoc{Lhs: a.Lhs, Expr: e})
	}
	for _, clk := range c.Clocks {
		proc := ProcessDoc{Clock: clk}
		for _, s := range c.Seq {
			if s.Clock != clk {
				continue
			}
			e, err := marshalExpr(s.Rhs)
			if err != nil {
				return nil, err
			}
			rd := RuleDoc{Lhs: s.Lhs, Expr: e}
			for _, r := range c.Registers {
				if r.Name == s.Lhs && r.ResetBy != nil {
					rd.Reset = &RstDoc{Signal: r.ResetBy.Signal, ActiveHigh: r.ResetBy.ActiveHigh, Async: r.ResetBy.Async}
				}
			}
			proc.Rules = append(proc.Rules, rd)
		}
		doc.Processes = append(doc.Processes, proc)
	}
	for _, inst := range c.Instances {
		id := InstanceDoc{Name: inst.Name, Component: inst.Component}
		for _, pb := range inst.Bindings {
			e, err := marshalExpr(pb.Expr)
			if err != nil {
				return nil, err
			}
			id.Bindings = append(id.Bindings, BindingDoc{Port: pb.ChildPort, Expr: e})
		}
		doc.Instances = append(doc.Instances, id)
	}
	return doc, nil
}

// ToComponent rebuilds a *bir.Component from doc. Width metadata on
// every signal is recovered from ports/nets/regs/memories so that
// Signal expressions (which only carry a name and width inline) can be
// rehydrated without a second pass.
func (doc *Doc) ToComponent() (*bir.Component, error) {
	widths := map[string]int{}
	c := &bir.Component{Name: doc.Name}
	for _, p := range doc.Ports {
		widths[p.Name] = p.Width
		port := bir.Port{Name: p.Name, Width: p.Width}
		if p.Direction == "input" {
			c.Inputs = append(c.Inputs, port)
		} else {
			c.Outputs = append(c.Outputs, port)
		}
	}
	for _, n := range doc.Nets {
		widths[n.Name] = n.Width
		c.Wires = append(c.Wires, bir.Wire{Name: n.Name, Width: n.Width})
	}
	for _, r := range doc.Regs {
		widths[r.Name] = r.Width
		reg := bir.Register{Name: r.Name, Width: r.Width, Reset: bitvec.New(r.Reset, r.Width), Clock: r.Clock}
		if r.ResetBy != nil {
			reg.ResetBy = &bir.ResetSpec{Signal: r.ResetBy.Signal, ActiveHigh: r.ResetBy.ActiveHigh, Async: r.ResetBy.Async}
		}
		c.Registers = append(c.Registers, reg)
	}
	for _, m := range doc.Memories {
		mem := bir.Memory{Name: m.Name, Depth: m.Depth, Width: m.Width}
		for _, p := range m.Ports {
			switch p.Kind {
			case "read":
				widths[p.Name] = m.Width
				addr, err := unmarshalExpr(p.Addr, widths)
				if err != nil {
					return nil, err
				}
				mode := bir.ReadAsync
				if p.Mode == "sync" {
					mode = bir.ReadSync
				}
				mem.ReadPorts = append(mem.ReadPorts, bir.ReadPort{Name: p.Name, Addr: addr, Mode: mode, Clock: p.Clock})
			case "write":
				addr, err := unmarshalExpr(p.Addr, widths)
				if err != nil {
					return nil, err
				}
				data, err := unmarshalExpr(p.Data, widths)
				if err != nil {
					return nil, err
				}
				var enable bir.Expr
				if len(p.Enable) > 0 {
					enable, err = unmarshalExpr(p.Enable, widths)
					if err != nil {
						return nil, err
					}
				}
				mem.WritePorts = append(mem.WritePorts, bir.WritePort{Addr: addr, Data: data, Clock: p.Clock, Enable: enable})
			default:
				return nil, fmt.Errorf("irfile: unknown memory port kind %q", p.Kind)
			}
		}
		c.Memories = append(c.Memories, mem)
	}
	for _, a := range doc.Assignments {
		e, err := unmarshalExpr(a.Expr, widths)
		if err != nil {
			return nil, err
		}
		c.Assigns = append(c.Assigns, bir.Assignment{Lhs: a.Lhs, Rhs: e})
	}
	clockSet := map[string]bool{}
	for _, proc := range doc.Processes {
		clockSet[proc.Clock] = true
		for _, rule := range proc.Rules {
			e, err := unmarshalExpr(rule.Expr, widths)
			if err != nil {
				return nil, err
			}
			c.Seq = append(c.Seq, bir.SeqRule{Clock: proc.Clock, Lhs: rule.Lhs, Rhs: e})
		}
	}
	for clk := range clockSet {
		c.Clocks = append(c.Clocks, clk)
	}
	sort.Strings(c.Clocks)
	for _, inst := range doc.Instances {
		in := bir.Instance{Name: inst.Name, Component: inst.Component}
		for _, b := range inst.Bindings {
			e, err := unmarshalExpr(b.Expr, widths)
			if err != nil {
				return nil, err
			}
			in.Bindings = append(in.Bindings, bir.PortBinding{ChildPort: b.Port, Expr: e})
		}
		c.Instances = append(c.Instances, in)
	}
	return c, nil
}

// Write serializes c to w as indented JSON.
func Write(w io.Writer, c *bir.Component) error {
	doc, err := FromComponent(c)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// Read parses a §6 IR document from r and rebuilds its *bir.Component.
func Read(r io.Reader) (*bir.Component, error) {
	var doc Doc
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("irfile: decode: %w", err)
	}
	return doc.ToComponent()
}
