package model

import "fmt"

// Endpoint is one side of a Connection.
type Endpoint struct {
	Node  string `yaml:"node"`
	Port  string `yaml:"port"`
	Scope string `yaml:"scope,omitempty"`
}

// Key returns a string uniquely identifying the endpoint for dedup/lookup,
// used by the macro expander and the
// validator's DUPLICATE_CONNECTION check.
func (e Endpoint) Key() string {
	if e.Scope != "" {
		return e.Node + "." + e.Port + ":" + e.Scope
	}
	return e.Node + "." + e.Port
}

// Connection is a directed edge between two endpoints.
type Connection struct {
	From Endpoint `yaml:"from"`
	To   Endpoint `yaml:"to"`

	// CoveredBy names the macro (if any) that introduced this connection,
	// so the regenerator can skip re-emitting it as a raw @connect.
	CoveredBy string `yaml:"coveredBy,omitempty"`
}

// Key uniquely identifies a connection for dedup purposes.
func (c Connection) Key() string {
	return c.From.Key() + "->" + c.To.Key()
}

// Validate checks the invariant that a scope, when set, must match on
// both endpoints.
func (c *Connection) Validate() error {
	if c.From.Node == "" || c.From.Port == "" {
		return fmt.Errorf("connection: from endpoint is incomplete")
	}
	if c.To.Node == "" || c.To.Port == "" {
		return fmt.Errorf("connection: to endpoint is incomplete")
	}
	if c.From.Scope != c.To.Scope {
		return fmt.Errorf("connection %s->%s: scope mismatch (%q vs %q)",
			c.From.Key(), c.To.Key(), c.From.Scope, c.To.Scope)
	}
	return nil
}
