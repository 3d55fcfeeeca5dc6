package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPortSetOrderPreserved(t *testing.T) {
	s := NewPortSet()
	s.Add(&PortDefinition{Name: "b", Direction: Input, Kind: String})
	s.Add(&PortDefinition{Name: "a", Direction: Input, Kind: Number})
	s.Add(&PortDefinition{Name: "b", Direction: Input, Kind: Boolean})

	assert.Equal(t, []string{"b", "a"}, s.Names())
	assert.Equal(t, Boolean, s.Get("b").Kind)
	assert.Equal(t, 2, s.Len())
}

func TestPortSetCloneIsIndependent(t *testing.T) {
	s := NewPortSet()
	s.Add(&PortDefinition{Name: "x", Direction: Output, Kind: String})

	clone := s.Clone()
	clone.Get("x").Kind = Number

	assert.Equal(t, String, s.Get("x").Kind)
	assert.Equal(t, Number, clone.Get("x").Kind)
}

func TestNodeTypeEnsureControlFlow(t *testing.T) {
	nt := &NodeType{Name: "doThing", FunctionName: "doThing", Variant: VariantFunction}
	nt.EnsureControlFlow()

	require.NoError(t, nt.Validate())
	assert.True(t, nt.Inputs.Get(PortExecute).IsControlFlow)
	assert.True(t, nt.Outputs.Get(PortOnFailure).Failure)
}

func TestNodeTypeExpressionSkipsControlFlow(t *testing.T) {
	nt := &NodeType{Name: "addOne", FunctionName: "addOne", Variant: VariantFunction, Expression: true}
	nt.EnsureControlFlow()

	assert.NoError(t, nt.Validate())
	assert.Nil(t, nt.Inputs)
}

func TestConnectionValidateScopeMismatch(t *testing.T) {
	c := &Connection{
		From: Endpoint{Node: "a", Port: "out", Scope: "iterate"},
		To:   Endpoint{Node: "b", Port: "in"},
	}
	assert.Error(t, c.Validate())
}

func TestWorkflowAddConnectionDedups(t *testing.T) {
	w := &Workflow{Name: "flow"}
	c1 := &Connection{From: Endpoint{Node: "a", Port: "onSuccess"}, To: Endpoint{Node: "b", Port: "execute"}}
	c2 := &Connection{From: Endpoint{Node: "a", Port: "onSuccess"}, To: Endpoint{Node: "b", Port: "execute"}}

	assert.True(t, w.AddConnection(c1))
	assert.False(t, w.AddConnection(c2))
	assert.Len(t, w.Connections, 1)
}

func TestWorkflowLookupNodeType(t *testing.T) {
	w := &Workflow{NodeTypes: []*NodeType{
		{Name: "alpha", FunctionName: "alpha"},
		{FunctionName: "beta"},
	}}

	assert.Equal(t, "alpha", w.LookupNodeType("alpha").FunctionName)
	assert.Equal(t, "beta", w.LookupNodeType("beta").FunctionName)
	assert.Nil(t, w.LookupNodeType("missing"))
}

func TestDiagnosticPromoteRespectsAdvisory(t *testing.T) {
	advisory := &Diagnostic{Code: AgentLLMMissingErrorHandler, Severity: SeverityWarning}
	advisory.Promote(true)
	assert.Equal(t, SeverityWarning, advisory.Severity)

	strict := &Diagnostic{Code: TypeMismatch, Severity: SeverityWarning}
	strict.Promote(true)
	assert.Equal(t, SeverityError, strict.Severity)
}

func TestWorkflowDescribeRoundTrips(t *testing.T) {
	w := &Workflow{
		Name:         "sample",
		FunctionName: "Sample",
		StartPorts:   NewPortSet(),
		ExitPorts:    NewPortSet(),
	}
	w.StartPorts.Add(&PortDefinition{Name: "id", Direction: Output, Kind: String})

	out, err := w.Describe()
	require.NoError(t, err)
	assert.Contains(t, out, "sample")
	assert.Contains(t, out, "id")
}
