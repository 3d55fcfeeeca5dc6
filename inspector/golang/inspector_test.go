package golang

import (
	"testing"

	"github.com/flowweaver/fw/inspector/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `package demo

import "strings"

// Upper shouts.
// @flowWeaver nodeType
func Upper(execute bool, text string) (onSuccess, onFailure bool, shouted string) {
	return true, false, strings.ToUpper(text)
}

func each(execute bool, items []float64, iterate func(item float64) (success, failure bool, processed float64)) (onSuccess, onFailure bool, results []float64) {
	return true, false, nil
}

func single(x int) int { return x }

type ignored struct{}

func (ignored) Method() {}
`

func inspectSample(t *testing.T) *graph.File {
	t.Helper()
	insp := NewInspector(&graph.Config{IncludeUnexported: true})
	file, err := insp.InspectSource([]byte(sample))
	require.NoError(t, err)
	return file
}

func TestInspectSourceExtractsFunctions(t *testing.T) {
	file := inspectSample(t)

	require.True(t, file.HasFunction("Upper"))
	require.True(t, file.HasFunction("each"))
	require.True(t, file.HasFunction("single"))
	assert.Nil(t, file.LookupFunction("Method"), "methods are not function-like declarations here")

	upper := file.LookupFunction("Upper")
	require.NotNil(t, upper.Doc)
	assert.Contains(t, upper.Doc.Text, "@flowWeaver nodeType")

	require.Len(t, upper.Params, 2)
	assert.Equal(t, "execute", upper.Params[0].Name)
	assert.Equal(t, "bool", upper.Params[0].TypeText)
	assert.Equal(t, "string", upper.Params[1].TypeText)

	require.Len(t, upper.Results, 3)
	assert.Equal(t, "shouted", upper.Results[2].Name)
}

func TestInspectCallbackTypeTextKeepsNamedResults(t *testing.T) {
	file := inspectSample(t)
	each := file.LookupFunction("each")

	require.Len(t, each.Params, 3)
	iterate := each.Params[2]
	assert.Equal(t, "iterate", iterate.Name)
	assert.Equal(t, "func(item float64) (success bool, failure bool, processed float64)", iterate.TypeText)
}

func TestInspectUnnamedSingleResultBecomesResult(t *testing.T) {
	file := inspectSample(t)
	single := file.LookupFunction("single")

	require.Len(t, single.Results, 1)
	assert.Equal(t, "result", single.Results[0].Name)
	assert.Equal(t, "int", single.Results[0].TypeText)
}

func TestInspectCapturesVerbatimSpan(t *testing.T) {
	file := inspectSample(t)
	upper := file.LookupFunction("Upper")

	require.NotNil(t, upper.Location)
	assert.Contains(t, upper.Location.Raw, "// Upper shouts.")
	assert.Contains(t, upper.Location.Raw, "strings.ToUpper(text)")
	assert.NotZero(t, upper.Hash)
}

func TestExprText(t *testing.T) {
	file := inspectSample(t)
	// exercised indirectly through TypeText above; the exported helper must
	// agree with what the inspector rendered.
	each := file.LookupFunction("each")
	assert.Contains(t, each.Params[1].TypeText, "[]float64")
}

func TestInspectSkipsUnexportedWhenConfigured(t *testing.T) {
	insp := NewInspector(&graph.Config{})
	file, err := insp.InspectSource([]byte(sample))
	require.NoError(t, err)

	assert.True(t, file.HasFunction("Upper"))
	assert.False(t, file.HasFunction("each"))
}
