package model

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Describe renders a Workflow as deterministic YAML, used for debug output
// and for golden-file testing of the parser/macro-expander/validator
// pipeline.
func (w *Workflow) Describe() (string, error) {
	out, err := yaml.Marshal(w)
	if err != nil {
		return "", fmt.Errorf("describe workflow %s: %w", w.DisplayName(), err)
	}
	return string(out), nil
}

// Describe renders a Pattern as deterministic YAML.
func (p *Pattern) Describe() (string, error) {
	out, err := yaml.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("describe pattern %s: %w", p.Name, err)
	}
	return string(out), nil
}

// MarshalYAML renders a PortSet as an ordered sequence of port definitions;
// a plain map would lose the insertion order callers rely on.
func (s *PortSet) MarshalYAML() (any, error) {
	return s.List(), nil
}

// UnmarshalYAML rebuilds the index from a sequence of port definitions,
// restoring the order they were written in.
func (s *PortSet) UnmarshalYAML(value *yaml.Node) error {
	var ports []*PortDefinition
	if err := value.Decode(&ports); err != nil {
		return err
	}
	*s = *NewPortSet()
	for _, p := range ports {
		s.Add(p)
	}
	return nil
}
