package model

import "fmt"

// SourceLocation pins a NodeType or Macro back to the doc-comment span it was
// parsed from, for diagnostics and for regeneration's functionText fallback.
type SourceLocation struct {
	File  string `yaml:"file"`
	Start int    `yaml:"start"`
	End   int    `yaml:"end"`
}

// Visuals is the editor-facing presentation metadata carried alongside a
// NodeType; none of it affects compilation.
type Visuals struct {
	Label       string   `yaml:"label,omitempty"`
	Description string   `yaml:"description,omitempty"`
	Color       string   `yaml:"color,omitempty"`
	Icon        string   `yaml:"icon,omitempty"`
	Tags        []string `yaml:"tags,omitempty"`
}

// NodeType is a callable unit: a function-like declaration, an imported
// workflow, or one of the synthetic variants the macro expander introduces
//.
type NodeType struct {
	Name         string      `yaml:"name"`
	FunctionName string      `yaml:"functionName"`
	Variant      NodeVariant `yaml:"variant"`

	Inputs  *PortSet `yaml:"inputs"`
	Outputs *PortSet `yaml:"outputs"`

	HasSuccessPort bool        `yaml:"hasSuccessPort"`
	HasFailurePort bool        `yaml:"hasFailurePort"`
	IsAsync        bool        `yaml:"isAsync,omitempty"`
	ExecuteWhen    ExecuteWhen `yaml:"executeWhen,omitempty"`
	CustomExpr     string      `yaml:"customExpr,omitempty"`
	Expression     bool        `yaml:"expression,omitempty"`

	Scope  string   `yaml:"scope,omitempty"`
	Scopes []string `yaml:"scopes,omitempty"`

	ImportSource string `yaml:"importSource,omitempty"`
	FunctionText string `yaml:"functionText,omitempty"`

	SourceLocation *SourceLocation `yaml:"sourceLocation,omitempty"`
	Visuals        Visuals         `yaml:"visuals,omitempty"`
	DefaultConfig  map[string]any  `yaml:"defaultConfig,omitempty"`
}

// DisplayName returns Name, defaulting to FunctionName.
func (n *NodeType) DisplayName() string {
	if n.Name != "" {
		return n.Name
	}
	return n.FunctionName
}

// EnsureControlFlow synthesizes the execute/onSuccess/onFailure triad for
// non-expression variants if it is missing.
func (n *NodeType) EnsureControlFlow() {
	if n.Expression {
		return
	}
	if n.Inputs == nil {
		n.Inputs = NewPortSet()
	}
	if n.Outputs == nil {
		n.Outputs = NewPortSet()
	}
	if !n.Inputs.Has(PortExecute) {
		n.Inputs.Add(&PortDefinition{Name: PortExecute, Direction: Input, Kind: Step, IsControlFlow: true})
	}
	if !n.Outputs.Has(PortOnSuccess) {
		n.Outputs.Add(&PortDefinition{Name: PortOnSuccess, Direction: Output, Kind: Step, IsControlFlow: true})
		n.HasSuccessPort = true
	}
	if !n.Outputs.Has(PortOnFailure) {
		n.Outputs.Add(&PortDefinition{Name: PortOnFailure, Direction: Output, Kind: Step, IsControlFlow: true, Failure: true})
		n.HasFailurePort = true
	}
}

// Validate checks the invariant that every non-expression NodeType
// carries the control-flow triad with the right flags set.
func (n *NodeType) Validate() error {
	if n.FunctionName == "" {
		return fmt.Errorf("nodetype %s: functionName is required", n.DisplayName())
	}
	switch n.Variant {
	case VariantFunction, VariantImportedWorkflow, VariantMapIterator, VariantCoercion, VariantStub:
	default:
		return fmt.Errorf("nodetype %s: invalid variant %q", n.DisplayName(), n.Variant)
	}
	if n.Variant == VariantImportedWorkflow && n.ImportSource == "" {
		return fmt.Errorf("nodetype %s: IMPORTED_WORKFLOW requires importSource", n.DisplayName())
	}
	if n.Expression {
		return nil
	}
	if n.Inputs == nil || !n.Inputs.Has(PortExecute) {
		return fmt.Errorf("nodetype %s: missing execute input", n.DisplayName())
	}
	if exec := n.Inputs.Get(PortExecute); exec.Kind != Step || !exec.IsControlFlow {
		return fmt.Errorf("nodetype %s: execute input must be STEP control-flow", n.DisplayName())
	}
	if n.Outputs == nil || !n.Outputs.Has(PortOnSuccess) {
		return fmt.Errorf("nodetype %s: missing onSuccess output", n.DisplayName())
	}
	if n.Outputs == nil || !n.Outputs.Has(PortOnFailure) {
		return fmt.Errorf("nodetype %s: missing onFailure output", n.DisplayName())
	}
	fail := n.Outputs.Get(PortOnFailure)
	if fail.Kind != Step || !fail.IsControlFlow || !fail.Failure {
		return fmt.Errorf("nodetype %s: onFailure output must be STEP control-flow failure port", n.DisplayName())
	}
	return nil
}

// Clone deep-copies the node type, including its port sets.
func (n *NodeType) Clone() *NodeType {
	clone := *n
	if n.Inputs != nil {
		clone.Inputs = n.Inputs.Clone()
	}
	if n.Outputs != nil {
		clone.Outputs = n.Outputs.Clone()
	}
	if n.Scopes != nil {
		clone.Scopes = append([]string(nil), n.Scopes...)
	}
	if n.DefaultConfig != nil {
		clone.DefaultConfig = make(map[string]any, len(n.DefaultConfig))
		for k, v := range n.DefaultConfig {
			clone.DefaultConfig[k] = v
		}
	}
	return &clone
}
