package macro

import (
	"testing"

	"github.com/flowweaver/fw/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nodeType(name string, inputs, outputs []*model.PortDefinition) *model.NodeType {
	in, out := model.NewPortSet(), model.NewPortSet()
	for _, p := range inputs {
		in.Add(p)
	}
	for _, p := range outputs {
		out.Add(p)
	}
	nt := &model.NodeType{Name: name, FunctionName: name, Variant: model.VariantFunction, Inputs: in, Outputs: out}
	nt.EnsureControlFlow()
	return nt
}

func dataPort(name string, dir model.PortDirection, kind model.PortKind) *model.PortDefinition {
	return &model.PortDefinition{Name: name, Direction: dir, Kind: kind}
}

func baseWorkflow() *model.Workflow {
	wf := &model.Workflow{
		Name:       "demo",
		StartPorts: model.NewPortSet(),
		ExitPorts:  model.NewPortSet(),
	}
	wf.StartPorts.Add(dataPort("amount", model.Output, model.Number))
	wf.ExitPorts.Add(dataPort("total", model.Input, model.Number))
	return wf
}

func TestExpandPathWiresControlAndData(t *testing.T) {
	wf := baseWorkflow()
	wf.NodeTypes = append(wf.NodeTypes, nodeType("double", []*model.PortDefinition{
		dataPort("amount", model.Input, model.Number),
	}, []*model.PortDefinition{
		dataPort("total", model.Output, model.Number),
	}))
	wf.Instances = append(wf.Instances, &model.NodeInstance{ID: "n1", NodeType: "double"})
	wf.IndexNodeTypes()
	wf.IndexInstances()

	wf.Macros = append(wf.Macros, model.Macro{
		Kind: model.MacroPath,
		Path: &model.PathMacro{Steps: []model.PathStep{
			{Node: model.StartNode},
			{Node: "n1"},
			{Node: model.ExitNode},
		}},
	})

	diags := Expand(wf)
	require.Empty(t, diags)

	assertHasConn(t, wf, model.StartNode, model.PortExecute, "n1", model.PortExecute)
	assertHasConn(t, wf, model.StartNode, "amount", "n1", "amount")
}

func assertHasConn(t *testing.T, wf *model.Workflow, fromNode, fromPort, toNode, toPort string) {
	t.Helper()
	for _, c := range wf.Connections {
		if c.From.Node == fromNode && c.From.Port == fromPort && c.To.Node == toNode && c.To.Port == toPort {
			return
		}
	}
	t.Fatalf("expected connection %s.%s -> %s.%s", fromNode, fromPort, toNode, toPort)
}

func TestExpandPathExitRoute(t *testing.T) {
	wf := baseWorkflow()
	wf.NodeTypes = append(wf.NodeTypes, nodeType("double", []*model.PortDefinition{
		dataPort("amount", model.Input, model.Number),
	}, []*model.PortDefinition{
		dataPort("total", model.Output, model.Number),
	}))
	wf.Instances = append(wf.Instances, &model.NodeInstance{ID: "n1", NodeType: "double"})
	wf.IndexNodeTypes()
	wf.IndexInstances()

	wf.Macros = append(wf.Macros, model.Macro{
		Kind: model.MacroPath,
		Path: &model.PathMacro{Steps: []model.PathStep{
			{Node: model.StartNode},
			{Node: "n1"},
			{Node: model.ExitNode},
		}},
	})

	diags := Expand(wf)
	require.Empty(t, diags)

	found := false
	for _, c := range wf.Connections {
		if c.From.Node == "n1" && c.From.Port == model.PortOnSuccess && c.To.Node == model.ExitNode && c.To.Port == model.PortOnSuccess {
			found = true
		}
	}
	assert.True(t, found, "expected n1.onSuccess -> Exit.onSuccess")

	foundData := false
	for _, c := range wf.Connections {
		if c.From.Node == "n1" && c.From.Port == "total" && c.To.Node == model.ExitNode && c.To.Port == "total" {
			foundData = true
		}
	}
	assert.True(t, foundData, "expected n1.total -> Exit.total")
}

func TestExpandMapSynthesizesIteratorAndScope(t *testing.T) {
	wf := baseWorkflow()
	wf.NodeTypes = append(wf.NodeTypes, nodeType("transform", []*model.PortDefinition{
		dataPort("item", model.Input, model.Number),
	}, []*model.PortDefinition{
		dataPort("item", model.Output, model.Number),
	}))
	wf.Instances = append(wf.Instances, &model.NodeInstance{ID: "child1", NodeType: "transform"})
	wf.IndexNodeTypes()
	wf.IndexInstances()

	wf.Macros = append(wf.Macros, model.Macro{
		Kind: model.MacroMap,
		Map: &model.MapMacro{
			InstanceID: "loop1",
			ChildID:    "child1",
			Source:     model.Endpoint{Node: model.StartNode, Port: "amount"},
		},
	})

	diags := Expand(wf)
	require.Empty(t, diags)

	iterType := wf.LookupNodeType("__fw_map_loop1__")
	require.NotNil(t, iterType)
	assert.Equal(t, model.VariantMapIterator, iterType.Variant)

	iterInst := wf.LookupInstance("loop1")
	require.NotNil(t, iterInst)
	assert.Equal(t, "__fw_map_loop1__", iterInst.NodeType)

	child := wf.LookupInstance("child1")
	require.NotNil(t, child.Parent)
	assert.Equal(t, "loop1", child.Parent.ID)
	assert.Equal(t, "iterate", child.Parent.Scope)

	assert.ElementsMatch(t, []string{"child1"}, wf.Scopes["loop1.iterate"])

	for _, c := range wf.Connections {
		assert.NotEmpty(t, c.CoveredBy, "macro-produced connection must be covered")
	}
}

func TestExpandFanOutDefaultsTargetPort(t *testing.T) {
	wf := baseWorkflow()
	wf.NodeTypes = append(wf.NodeTypes,
		nodeType("a", nil, []*model.PortDefinition{dataPort("amount", model.Output, model.Number)}),
		nodeType("b", []*model.PortDefinition{dataPort("amount", model.Input, model.Number)}, nil),
		nodeType("c", []*model.PortDefinition{dataPort("amount", model.Input, model.Number)}, nil),
	)
	wf.Instances = append(wf.Instances,
		&model.NodeInstance{ID: "n1", NodeType: "a"},
		&model.NodeInstance{ID: "n2", NodeType: "b"},
		&model.NodeInstance{ID: "n3", NodeType: "c"},
	)
	wf.IndexNodeTypes()
	wf.IndexInstances()

	wf.Macros = append(wf.Macros, model.Macro{
		Kind: model.MacroFanOut,
		FanOut: &model.FanOutMacro{
			Source:  model.Endpoint{Node: "n1", Port: "amount"},
			Targets: []model.Endpoint{{Node: "n2"}, {Node: "n3"}},
		},
	})

	diags := Expand(wf)
	require.Empty(t, diags)
	assert.Len(t, wf.Connections, 2)
	for _, c := range wf.Connections {
		assert.Equal(t, "amount", c.To.Port)
		assert.Equal(t, "fanOut:n1.amount", c.CoveredBy)
	}
}

func TestExpandCoerceInsertsSyntheticInstance(t *testing.T) {
	wf := baseWorkflow()
	wf.NodeTypes = append(wf.NodeTypes,
		nodeType("a", nil, []*model.PortDefinition{dataPort("raw", model.Output, model.Any)}),
		nodeType("b", []*model.PortDefinition{dataPort("value", model.Input, model.Number)}, nil),
	)
	wf.Instances = append(wf.Instances,
		&model.NodeInstance{ID: "n1", NodeType: "a"},
		&model.NodeInstance{ID: "n2", NodeType: "b"},
	)
	wf.IndexNodeTypes()
	wf.IndexInstances()

	wf.Macros = append(wf.Macros, model.Macro{
		Kind: model.MacroCoerce,
		Coerce: &model.CoerceMacro{
			InstanceID: "c1",
			Source:     model.Endpoint{Node: "n1", Port: "raw"},
			Target:     model.Endpoint{Node: "n2", Port: "value"},
			Kind:       model.CoerceNumber,
		},
	})

	diags := Expand(wf)
	require.Empty(t, diags)

	nt := wf.LookupNodeType("__fw_to_number__")
	require.NotNil(t, nt)
	assert.True(t, nt.Expression)
	assert.Equal(t, model.Number, nt.Outputs.Get("result").Kind)

	inst := wf.LookupInstance("c1")
	require.NotNil(t, inst)
	assert.Equal(t, "__fw_to_number__", inst.NodeType)
}

func TestAutoConnectWiresDeclarationOrder(t *testing.T) {
	wf := baseWorkflow()
	wf.Options.AutoConnect = true
	wf.NodeTypes = append(wf.NodeTypes, nodeType("double", []*model.PortDefinition{
		dataPort("amount", model.Input, model.Number),
	}, []*model.PortDefinition{
		dataPort("total", model.Output, model.Number),
	}))
	wf.Instances = append(wf.Instances, &model.NodeInstance{ID: "n1", NodeType: "double"})
	wf.IndexNodeTypes()
	wf.IndexInstances()

	diags := Expand(wf)
	require.Empty(t, diags)

	found := map[string]bool{}
	for _, c := range wf.Connections {
		found[c.From.Node+">"+c.To.Node] = true
	}
	assert.True(t, found[model.StartNode+">n1"])
	assert.True(t, found["n1>"+model.ExitNode])
}

func TestExpandPathPipesExpressionChain(t *testing.T) {
	wf := &model.Workflow{
		Name:       "calc",
		StartPorts: model.NewPortSet(),
		ExitPorts:  model.NewPortSet(),
	}
	wf.StartPorts.Add(dataPort("x", model.Output, model.Number))
	wf.ExitPorts.Add(dataPort("result", model.Input, model.Number))

	double := &model.NodeType{
		Name: "double", FunctionName: "double", Variant: model.VariantFunction, Expression: true,
		Inputs:  model.NewPortSet(),
		Outputs: model.NewPortSet(),
	}
	double.Inputs.Add(dataPort("x", model.Input, model.Number))
	double.Outputs.Add(dataPort("result", model.Output, model.Number))
	add1 := &model.NodeType{
		Name: "add1", FunctionName: "add1", Variant: model.VariantFunction, Expression: true,
		Inputs:  model.NewPortSet(),
		Outputs: model.NewPortSet(),
	}
	add1.Inputs.Add(dataPort("x", model.Input, model.Number))
	add1.Outputs.Add(dataPort("result", model.Output, model.Number))

	wf.NodeTypes = append(wf.NodeTypes, double, add1)
	wf.Instances = append(wf.Instances,
		&model.NodeInstance{ID: "d", NodeType: "double"},
		&model.NodeInstance{ID: "a", NodeType: "add1"},
	)
	wf.IndexNodeTypes()
	wf.IndexInstances()

	wf.Macros = append(wf.Macros, model.Macro{
		Kind: model.MacroPath,
		Path: &model.PathMacro{Steps: []model.PathStep{
			{Node: model.StartNode}, {Node: "d"}, {Node: "a"}, {Node: model.ExitNode},
		}},
	})

	require.Empty(t, Expand(wf))

	assertHasConn(t, wf, model.StartNode, "x", "d", "x")
	assertHasConn(t, wf, "d", "result", "a", "x")
	assertHasConn(t, wf, "a", "result", model.ExitNode, "result")

	for _, c := range wf.Connections {
		assert.NotEqual(t, model.PortExecute, c.To.Port,
			"expression steps carry no control edges: %s -> %s", c.From.Key(), c.To.Key())
	}
}
