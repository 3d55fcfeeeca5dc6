package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutionIndicesPerInstance(t *testing.T) {
	ctx := NewContext(context.Background(), nil)
	assert.Equal(t, 0, ctx.NewExecutionIndex("a"))
	assert.Equal(t, 1, ctx.NewExecutionIndex("a"))
	assert.Equal(t, 0, ctx.NewExecutionIndex("b"))
}

func TestVariableStore(t *testing.T) {
	ctx := NewContext(context.Background(), nil)
	ref := VarRef{InstanceID: "n1", Port: "total", NodeTypeName: "double"}

	_, ok := ctx.GetVariable(ref)
	assert.False(t, ok)

	ctx.SetVariable(ref, 42.0)
	v, ok := ctx.GetVariable(ref)
	require.True(t, ok)
	assert.Equal(t, 42.0, v)

	// A different execution index is a different slot.
	other := ref
	other.ExecutionIndex = 1
	_, ok = ctx.GetVariable(other)
	assert.False(t, ok)
}

func TestScopeIsolationAndMerge(t *testing.T) {
	parent := NewContext(context.Background(), nil)
	parentRef := VarRef{InstanceID: "p", Port: "x"}
	parent.SetVariable(parentRef, "outer")

	scope := parent.CreateScope("p", 0, "iterate", true)
	_, ok := scope.GetVariable(parentRef)
	assert.False(t, ok, "a clean scope starts empty")

	childRef := VarRef{InstanceID: "c", Port: "y"}
	scope.SetVariable(childRef, 7)
	_, ok = parent.GetVariable(childRef)
	assert.False(t, ok, "scope writes stay isolated until merge")

	scope.Merge()
	v, ok := parent.GetVariable(childRef)
	require.True(t, ok)
	assert.Equal(t, 7, v)
}

func TestScopeIterationsDoNotLeak(t *testing.T) {
	parent := NewContext(context.Background(), nil)
	ref := VarRef{InstanceID: "c", Port: "y"}

	first := parent.CreateScope("p", 0, "iterate", true)
	first.SetVariable(ref, 1)
	first.Merge()

	second := parent.CreateScope("p", 0, "iterate", true)
	_, ok := second.GetVariable(ref)
	assert.False(t, ok, "each iteration gets a fresh namespace")
}

func TestDirtyScopeSeesParentVariables(t *testing.T) {
	parent := NewContext(context.Background(), nil)
	ref := VarRef{InstanceID: "p", Port: "x"}
	parent.SetVariable(ref, "outer")

	scope := parent.CreateScope("p", 0, "iterate", false)
	v, ok := scope.GetVariable(ref)
	require.True(t, ok)
	assert.Equal(t, "outer", v)
}

func TestCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rt := NewContext(ctx, nil)
	assert.False(t, rt.Cancelled())

	cancel()
	assert.True(t, rt.Cancelled())

	err := &CancellationError{NodeID: "n1"}
	assert.Contains(t, err.Error(), "n1")
}

func TestFunctionRegistry(t *testing.T) {
	rt := NewContext(context.Background(), nil)
	rt.RegisterFunction("double", func(x float64) float64 { return x * 2 })

	fn, ok := rt.ResolveFunction("double")
	require.True(t, ok)
	assert.Equal(t, 4.0, fn.(func(float64) float64)(2))

	_, ok = rt.ResolveFunction("missing")
	assert.False(t, ok)
}
