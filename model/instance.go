package model

import "fmt"

// ParentRef places a NodeInstance inside a scope owned by another instance
//.
type ParentRef struct {
	ID    string `yaml:"id"`
	Scope string `yaml:"scope"`
}

// PortConfig overrides per-instance presentation/behavior for a single port,
// keyed by portName within NodeInstance.Config.PortConfigs.
type PortConfig struct {
	PortName   string        `yaml:"portName"`
	Direction  PortDirection `yaml:"direction,omitempty"`
	Order      *int          `yaml:"order,omitempty"`
	Label      string        `yaml:"label,omitempty"`
	Expression string        `yaml:"expression,omitempty"`
}

// InstanceConfig is the editor/runtime configuration attached to a
// NodeInstance.
type InstanceConfig struct {
	Label         string       `yaml:"label,omitempty"`
	X, Y          float64      `yaml:"x,omitempty"`
	Width, Height float64      `yaml:"width,omitempty"`
	PortConfigs   []PortConfig `yaml:"portConfigs,omitempty"`
	PullExecution string       `yaml:"pullExecution,omitempty"`
	Color         string       `yaml:"color,omitempty"`
	Icon          string       `yaml:"icon,omitempty"`
	Tags          []string     `yaml:"tags,omitempty"`
	Minimized     bool         `yaml:"minimized,omitempty"`
}

// PortConfigFor returns the override for a port, or nil.
func (c *InstanceConfig) PortConfigFor(name string) *PortConfig {
	for i := range c.PortConfigs {
		if c.PortConfigs[i].PortName == name {
			return &c.PortConfigs[i]
		}
	}
	return nil
}

// NodeInstance is a single placed, configured occurrence of a NodeType
// within a Workflow or Pattern.
type NodeInstance struct {
	ID       string         `yaml:"id"`
	NodeType string         `yaml:"nodeType"`
	Parent   *ParentRef     `yaml:"parent,omitempty"`
	Config   InstanceConfig `yaml:"config,omitempty"`
}

// Validate checks the instance's own shape; resolving NodeType by name and
// checking reserved ids is the validator's job, not the model's.
func (n *NodeInstance) Validate() error {
	if n.ID == "" {
		return fmt.Errorf("instance: id is required")
	}
	if n.NodeType == "" {
		return fmt.Errorf("instance %s: nodeType is required", n.ID)
	}
	return nil
}
