package model

import "fmt"

// PortDefinition describes one port on a NodeType or Pattern.
type PortDefinition struct {
	Name          string        `yaml:"name"`
	Direction     PortDirection `yaml:"direction"`
	Kind          PortKind      `yaml:"kind"`
	Label         string        `yaml:"label,omitempty"`
	Default       string        `yaml:"default,omitempty"`
	Optional      bool          `yaml:"optional,omitempty"`
	Expression    string        `yaml:"expression,omitempty"`
	Scope         string        `yaml:"scope,omitempty"`
	IsControlFlow bool          `yaml:"isControlFlow,omitempty"`
	Failure       bool          `yaml:"failure,omitempty"`
	Hidden        bool          `yaml:"hidden,omitempty"`
	TSType        string        `yaml:"tsType,omitempty"`
	Order         *int          `yaml:"order,omitempty"`
	Placement     Placement     `yaml:"placement,omitempty"`
}

// Validate checks invariants that hold for any single port regardless of
// which node it is attached to.
func (p *PortDefinition) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("port: name is required")
	}
	if p.Direction != Input && p.Direction != Output {
		return fmt.Errorf("port %s: invalid direction %q", p.Name, p.Direction)
	}
	switch p.Kind {
	case Step, Boolean, Number, String, Array, Object, Func, Any:
	default:
		return fmt.Errorf("port %s: invalid kind %q", p.Name, p.Kind)
	}
	if p.IsScoped() {
		switch p.Name {
		case ScopeStart, ScopeSuccess, ScopeFailure:
			if p.Kind != Step {
				return fmt.Errorf("port %s: reserved scope port must be STEP-typed", p.Name)
			}
		}
	}
	return nil
}

// IsScoped reports whether the port is a closure parameter/return field of
// some FUNCTION port rather than a direct node port.
func (p *PortDefinition) IsScoped() bool {
	return p.Scope != ""
}
