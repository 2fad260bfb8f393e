package bir

import "github.com/rhdl/rhdl/pkg/bitvec"

// Port is an input or output of a component.
type Port struct {
	Name  string
	Width int
	// Default is the reset-time value of an input port before any
	// poke; only meaningful for inputs.
	Default bitvec.BitVector
}

// Wire is an internal combinational signal.
type Wire struct {
	Name  string
	Width int
}

// ResetSpec describes a register's reset behavior.
type ResetSpec struct {
	Signal     string // name of the reset signal
	ActiveHigh bool
	Async      bool // true = asynchronous reset, false = synchronous
}

// Register is a clocked storage element.
type Register struct {
	Name    string
	Width   int
	Reset   bitvec.BitVector
	Clock   string
	ResetBy *ResetSpec // nil if the register has no reset
}

// ReadMode names the timing of a memory read port.
type ReadMode int

const (
	ReadAsync ReadMode = iota // combinational: output reflects current address
	ReadSync                  // registered: output lags the address by one cycle
)

// ReadPort is a memory read port.
type ReadPort struct {
	Name  string // the wire/output this port drives
	Addr  Expr
	Mode  ReadMode
	Clock string // required when Mode == ReadSync
}

// WritePort is a memory write port.
type WritePort struct {
	Addr   Expr
	Data   Expr
	Clock  string
	Enable Expr // nil means "always enabled"
}

// Memory is a typed memory array.
type Memory struct {
	Name       string
	Depth      int
	Width      int
	ReadPorts  []ReadPort
	WritePorts []WritePort
}

// Assignment is a combinational driver: Lhs (a wire or output name) is
// continuously assigned Rhs.
type Assignment struct {
	Lhs string
	Rhs Expr
}

// SeqRule is a clocked update: on an edge of Clock (gated by Reset, if
// set, per ResetSpec semantics), Lhs (a register name) takes Rhs.
type SeqRule struct {
	Clock string
	Lhs   string
	Rhs   Expr
}

// PortBinding binds a child instance's port name to an expression (for
// inputs) or to the parent signal name that should receive the child's
// output (for outputs, Expr is a *Signal naming the parent-side net).
type PortBinding struct {
	ChildPort string
	Expr      Expr
}

// Instance is a child component instantiation.
type Instance struct {
	Name      string // instance name, unique within the parent
	Component string // referenced component name in the owning Design
	Bindings  []PortBinding
}

// Component is a single design unit: ports, internal storage,
// combinational/sequential behavior, and child instances.
type Component struct {
	Name       string
	Inputs     []Port
	Outputs    []Port
	Wires      []Wire
	Registers  []Register
	Memories   []Memory
	Assigns    []Assignment
	Seq        []SeqRule
	Instances  []Instance
	// Clocks lists every clock domain name used by this component's
	// registers/memory ports/instances; Clocks[0] is the default clock.
	// birbuild's Build and irfile's Read list the names sorted;
	// elab.Elaborate lists them in order of first use (registers, then
	// sequential rules, then memory ports).
	Clocks []string
}

// Design is a named collection of components plus a distinguished top.
type Design struct {
	Components map[string]*Component
	Top        string
}

// TopComponent returns the top-level component, or nil if Top is unset
// or unknown.
func (d *Design) TopComponent() *Component {
	if d == nil {
		return nil
	}
	return d.Components[d.Top]
}

// PortWidth returns the width of a named input or output port, and
// whether it was found.
func (c *Component) PortWidth(name string) (int, bool) {
	for _, p := range c.Inputs {
		if p.Name == name {
			return p.Width, true
		}
	}
	for _, p := range c.Outputs {
		if p.Name == name {
			return p.Width, true
		}
	}
	return 0, false
}

// SignalWidth returns the width of any named signal (port, wire, or
// register) declared directly on c (not recursing into instances).
func (c *Component) SignalWidth(name string) (int, bool) {
	if w, ok := c.PortWidth(name); ok {
		return w, true
	}
	for _, w := range c.Wires {
		if w.Name == name {
			return w.Width, true
		}
	}
	for _, r := range c.Registers {
		if r.Name == name {
			return r.Width, true
		}
	}
	for _, m := range c.Memories {
		for _, rp := range m.ReadPorts {
			if rp.Name == name {
				return m.Width, true
			}
		}
	}
	return 0, false
}

// IsRegister reports whether name is a declared register on c.
func (c *Component) IsRegister(name string) bool {
	for _, r := range c.Registers {
		if r.Name == name {
			return true
		}
	}
	return false
}

// OutputNames returns the names of c's output ports in order.
func (c *Component) OutputNames() []string {
	names := make([]string, len(c.Outputs))
	for i, p := range c.Outputs {
		names[i] = p.Name
	}
	return names
}
