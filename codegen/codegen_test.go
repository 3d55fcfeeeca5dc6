package codegen

import (
	"go/parser"
	"go/token"
	"strings"
	"testing"

	"github.com/flowweaver/fw/macro"
	"github.com/flowweaver/fw/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func portSet(ports ...*model.PortDefinition) *model.PortSet {
	s := model.NewPortSet()
	for _, p := range ports {
		s.Add(p)
	}
	return s
}

func dataPort(name string, dir model.PortDirection, kind model.PortKind, tsType string) *model.PortDefinition {
	return &model.PortDefinition{Name: name, Direction: dir, Kind: kind, TSType: tsType}
}

func nodeType(name string, inputs, outputs []*model.PortDefinition) *model.NodeType {
	nt := &model.NodeType{
		Name: name, FunctionName: name, Variant: model.VariantFunction,
		Inputs: portSet(inputs...), Outputs: portSet(outputs...),
	}
	nt.EnsureControlFlow()
	return nt
}

func conn(fromNode, fromPort, toNode, toPort string) *model.Connection {
	return &model.Connection{
		From: model.Endpoint{Node: fromNode, Port: fromPort},
		To:   model.Endpoint{Node: toNode, Port: toPort},
	}
}

func pipelineWorkflow() *model.Workflow {
	wf := &model.Workflow{
		Name:         "pipeline",
		FunctionName: "Pipeline",
		StartPorts:   portSet(dataPort("amount", model.Output, model.Number, "float64")),
		ExitPorts:    portSet(dataPort("total", model.Input, model.Number, "float64")),
	}
	wf.NodeTypes = append(wf.NodeTypes, nodeType("Double",
		[]*model.PortDefinition{dataPort("amount", model.Input, model.Number, "float64")},
		[]*model.PortDefinition{dataPort("total", model.Output, model.Number, "float64")}))
	wf.Instances = append(wf.Instances, &model.NodeInstance{ID: "d", NodeType: "Double"})
	wf.IndexNodeTypes()
	wf.IndexInstances()
	wf.Connections = append(wf.Connections,
		conn(model.StartNode, model.PortExecute, "d", model.PortExecute),
		conn(model.StartNode, "amount", "d", "amount"),
		conn("d", model.PortOnSuccess, model.ExitNode, model.PortOnSuccess),
		conn("d", "total", model.ExitNode, "total"),
	)
	return wf
}

func TestGeneratePipelineBody(t *testing.T) {
	result, err := Generate(pipelineWorkflow())
	require.NoError(t, err)

	body := result.Body
	assert.Contains(t, body, "rt := fwruntime.NewContext(ctx, nil)")
	assert.Contains(t, body, "var dOnSuccess, dOnFailure bool")
	assert.Contains(t, body, "dOnSuccess, dOnFailure, dOut_total = Double(true, amount)",
		"Start ports resolve to the function's own parameters")
	assert.Contains(t, body, "total = dOut_total")
	assert.Contains(t, body, "fwruntime.StatusRunning")
	assert.Contains(t, body, "fwruntime.StatusSucceeded")
	assert.Contains(t, body, `SetVariable(fwruntime.VarRef{InstanceID: "d", Port: "total"`)
}

func TestGenerateFailureBranchGuardsOnFailureFlag(t *testing.T) {
	wf := pipelineWorkflow()
	wf.NodeTypes = append(wf.NodeTypes, nodeType("Handler", nil,
		[]*model.PortDefinition{dataPort("message", model.Output, model.String, "string")}))
	wf.Instances = append(wf.Instances, &model.NodeInstance{ID: "h", NodeType: "Handler"})
	wf.IndexNodeTypes()
	wf.IndexInstances()
	wf.Connections = append(wf.Connections,
		conn("d", model.PortOnFailure, "h", model.PortExecute),
	)

	result, err := Generate(wf)
	require.NoError(t, err)

	assert.Contains(t, result.Body, "if dOnFailure {",
		"an onFailure route guards on the failure flag, not the success flag")
}

func TestGenerateRethrowOnlyWithoutFailureHandler(t *testing.T) {
	wf := pipelineWorkflow()
	result, err := Generate(wf)
	require.NoError(t, err)
	assert.Contains(t, result.Body, "panic(r)", "no onFailure connection: the error propagates")

	wf = pipelineWorkflow()
	wf.NodeTypes = append(wf.NodeTypes, nodeType("Handler", nil, nil))
	wf.Instances = append(wf.Instances, &model.NodeInstance{ID: "h", NodeType: "Handler"})
	wf.IndexNodeTypes()
	wf.IndexInstances()
	wf.Connections = append(wf.Connections, conn("d", model.PortOnFailure, "h", model.PortExecute))

	result, err = Generate(wf)
	require.NoError(t, err)
	dFrame := result.Body[:strings.Index(result.Body, "if dOnFailure")]
	assert.NotContains(t, dFrame, "panic(r)", "a handled failure must not rethrow")
}

func TestGenerateMapIterator(t *testing.T) {
	wf := &model.Workflow{
		Name:         "each",
		FunctionName: "Each",
		StartPorts:   portSet(dataPort("items", model.Output, model.Array, "[]float64")),
		ExitPorts:    portSet(dataPort("results", model.Input, model.Array, "")),
	}
	double := &model.NodeType{
		Name: "doubleValue", FunctionName: "doubleValue", Variant: model.VariantFunction, Expression: true,
		Inputs:  portSet(dataPort("item", model.Input, model.Number, "float64")),
		Outputs: portSet(dataPort("result", model.Output, model.Number, "float64")),
	}
	wf.NodeTypes = append(wf.NodeTypes, double)
	wf.Instances = append(wf.Instances, &model.NodeInstance{ID: "dv", NodeType: "doubleValue"})
	wf.IndexNodeTypes()
	wf.IndexInstances()
	wf.Macros = append(wf.Macros, model.Macro{Kind: model.MacroMap, Map: &model.MapMacro{
		InstanceID: "loop",
		ChildID:    "dv",
		Source:     model.Endpoint{Node: model.StartNode, Port: "items"},
	}})
	require.Empty(t, macro.Expand(wf))
	wf.AddConnection(conn("loop", "results", model.ExitNode, "results"))

	result, err := Generate(wf)
	require.NoError(t, err)

	body := result.Body
	assert.Contains(t, body, "for fwI, fwItem := range items")
	assert.Contains(t, body, `CreateScope("loop"`)
	assert.Contains(t, body, "fwScope.Merge()")
	assert.Contains(t, body, "append(loopOut_results")
	assert.Contains(t, body, "results = ")
}

func TestGenerateCoercion(t *testing.T) {
	wf := &model.Workflow{
		Name:         "convert",
		FunctionName: "Convert",
		StartPorts:   portSet(dataPort("raw", model.Output, model.String, "string")),
		ExitPorts:    portSet(dataPort("value", model.Input, model.Number, "float64")),
	}
	wf.Macros = append(wf.Macros, model.Macro{Kind: model.MacroCoerce, Coerce: &model.CoerceMacro{
		InstanceID: "c1",
		Source:     model.Endpoint{Node: model.StartNode, Port: "raw"},
		Target:     model.Endpoint{Node: model.ExitNode, Port: "value"},
		Kind:       model.CoerceNumber,
	}})
	require.Empty(t, macro.Expand(wf))

	result, err := Generate(wf)
	require.NoError(t, err)
	assert.Contains(t, result.Body, "fwCoerceNumber(")
	assert.Contains(t, result.Body, "value = c1Out_result")
}

func TestGenerateRefusesCycle(t *testing.T) {
	wf := pipelineWorkflow()
	wf.NodeTypes = append(wf.NodeTypes, nodeType("Other", nil, nil))
	wf.Instances = append(wf.Instances, &model.NodeInstance{ID: "o", NodeType: "Other"})
	wf.IndexNodeTypes()
	wf.IndexInstances()
	wf.Connections = append(wf.Connections,
		conn("d", model.PortOnSuccess, "o", model.PortExecute),
		conn("o", model.PortOnSuccess, "d", model.PortExecute),
	)

	_, err := Generate(wf)
	require.Error(t, err)
}

func TestGenerateEmptyWorkflowForwardsStartToExit(t *testing.T) {
	wf := &model.Workflow{
		Name:         "empty",
		FunctionName: "Empty",
		StartPorts:   portSet(),
		ExitPorts:    portSet(),
	}
	result, err := Generate(wf)
	require.NoError(t, err)
	assert.Contains(t, result.Body, "onSuccess, onFailure = true, false")
}

func TestSanitizeIdent(t *testing.T) {
	cases := map[string]string{
		"plain":    "plain",
		"has-dash": "has_dash",
		"1leading": "_1leading",
		"dots.too": "dots_too",
		"":         "_",
	}
	for in, want := range cases {
		assert.Equal(t, want, sanitizeIdent(in), "sanitizeIdent(%q)", in)
	}
}

func TestGenerateCustomExecuteWhenGuard(t *testing.T) {
	wf := pipelineWorkflow()
	gate := nodeType("Gate", nil, nil)
	gate.ExecuteWhen = model.Custom
	gate.CustomExpr = "d"
	wf.NodeTypes = append(wf.NodeTypes, gate)
	wf.Instances = append(wf.Instances, &model.NodeInstance{ID: "g", NodeType: "Gate"})
	wf.IndexNodeTypes()
	wf.IndexInstances()
	wf.Connections = append(wf.Connections, conn("d", model.PortOnSuccess, "g", model.PortExecute))

	result, err := Generate(wf)
	require.NoError(t, err)
	assert.Contains(t, result.Body, `fwEvalCustom("d", map[string]bool{"d": dOnSuccess})`)
}

func TestGeneratePullExecution(t *testing.T) {
	cases := []struct {
		name  string
		pull  string
		dRuns int
	}{
		{name: "pull-marked input re-runs its source", pull: "execute", dRuns: 2},
		{name: "no pull mark runs the source once", pull: "", dRuns: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			wf := pipelineWorkflow()
			wf.NodeTypes = append(wf.NodeTypes, nodeType("Sink", nil,
				[]*model.PortDefinition{dataPort("echo", model.Output, model.Number, "float64")}))
			wf.Instances = append(wf.Instances, &model.NodeInstance{
				ID: "s", NodeType: "Sink",
				Config: model.InstanceConfig{PullExecution: tc.pull},
			})
			wf.IndexNodeTypes()
			wf.IndexInstances()
			wf.Connections = append(wf.Connections,
				conn("d", model.PortOnSuccess, "s", model.PortExecute),
			)

			result, err := Generate(wf)
			require.NoError(t, err)

			assert.Equal(t, tc.dRuns, strings.Count(result.Body, `rt.NewExecutionIndex("d")`),
				"the pulled source's frame is re-emitted before the pulling node")
			requireParsableBody(t, result.Body)
		})
	}
}

// requireParsableBody wraps a generated body in a workflow-shaped function
// and syntax-checks it, so emission bugs (unterminated literals, unbalanced
// braces) fail here rather than in a downstream compile of user source.
func requireParsableBody(t *testing.T, body string) {
	t.Helper()
	wrapped := "package p\n\nfunc w(execute bool, amount float64) (onSuccess, onFailure bool, total float64) {\n" +
		body + "}\n"
	fset := token.NewFileSet()
	_, err := parser.ParseFile(fset, "", wrapped, 0)
	require.NoError(t, err, "generated body must be syntactically valid Go")
}

func TestPreludeIsStable(t *testing.T) {
	assert.Equal(t, Prelude(), Prelude())
	assert.Contains(t, Prelude(), "func fwGetVar[T any]")
	assert.Contains(t, Prelude(), "func fwCast[T any]")
}
