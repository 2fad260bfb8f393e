package birbuild

import (
	"fmt"

	"github.com/rhdl/rhdl/pkg/bir"
)

// DesignBuilder accumulates named components into a bir.Design.
type DesignBuilder struct {
	components map[string]*bir.Component
	order      []string
}

// NewDesign starts an empty design.
func NewDesign() *DesignBuilder {
	return &DesignBuilder{components: map[string]*bir.Component{}}
}

// Add registers a finished component under its own name. It is an
// error to add two components with the same name.
func (d *DesignBuilder) Add(c *bir.Component) error {
	if _, exists := d.components[c.Name]; exists {
		return fmt.Errorf("design: component %q already registered", c.Name)
	}
	d.components[c.Name] = c
	d.order = append(d.order, c.Name)
	return nil
}

// Build finalizes the design with the given top-level component name.
// It verifies every Instance in every component refers to a
// registered component name (this is also re-checked, per-path, by
// elab.Elaborate, but failing fast here gives a better diagnostic
// before any flattening is attempted).
func (d *DesignBuilder) Build(top string) (*bir.Design, error) {
	if _, ok := d.components[top]; !ok {
		return nil, fmt.Errorf("design: unknown top component %q", top)
	}
	var errs []error
	for _, name := range d.order {
		c := d.components[name]
		for _, inst := range c.Instances {
			if _, ok := d.components[inst.Component]; !ok {
				errs = append(errs, fmt.Errorf("component %q: instance %q references unknown component %q",
					c.Name, inst.Name, inst.Component))
			}
		}
	}
	if len(errs) > 0 {
		return nil, joinErrors(errs)
	}
	return &bir.Design{Components: d.components, Top: top}, nil
}
