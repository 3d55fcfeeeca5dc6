package regen

import (
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

func dataPort(name string, dir model.PortDirection, kind model.PortKind) *model.PortDefinition {
	return &model.PortDefinition{Name: name, Direction: dir, Kind: kind}
}

func nodeType(name string, inputs, outputs []*model.PortDefinition) *model.NodeType {
	nt := &model.NodeType{
		Name: name, FunctionName: name, Variant: model.VariantFunction,
		Inputs: portSet(inputs...), Outputs: portSet(outputs...),
	}
	nt.EnsureControlFlow()
	return nt
}

func mapWorkflow(t *testing.T) *model.Workflow {
	t.Helper()
	wf := &model.Workflow{
		Name:         "each",
		FunctionName: "Each",
		StartPorts:   portSet(dataPort("items", model.Output, model.Array)),
		ExitPorts:    portSet(dataPort("results", model.Input, model.Array)),
	}
	wf.NodeTypes = append(wf.NodeTypes, nodeType("doubleValue",
		[]*model.PortDefinition{dataPort("item", model.Input, model.Number)},
		[]*model.PortDefinition{dataPort("out", model.Output, model.Number)}))
	wf.Instances = append(wf.Instances, &model.NodeInstance{ID: "dv", NodeType: "doubleValue"})
	wf.IndexNodeTypes()
	wf.IndexInstances()
	wf.Macros = append(wf.Macros, model.Macro{Kind: model.MacroMap, Map: &model.MapMacro{
		InstanceID: "loop",
		ChildID:    "dv",
		Source:     model.Endpoint{Node: model.StartNode, Port: "items"},
	}})
	require.Empty(t, macro.Expand(wf))
	return wf
}

func TestWorkflowEmitsMapAsSingleLine(t *testing.T) {
	wf := mapWorkflow(t)
	out := Workflow(wf)

	assert.Contains(t, out, "@map loop dv over Start.items")
	assert.NotContains(t, out, "@connect loop.start", "the six canonical map edges stay behind the macro")
	assert.NotContains(t, out, "@connect Start.items", "the items edge is covered by @map")
	assert.NotContains(t, out, "@scope loop.iterate", "the map scope is covered by @map")
	assert.NotContains(t, out, "@node loop", "the synthetic iterator instance is not re-emitted")
	assert.Contains(t, out, "@node dv doubleValue loop.iterate")
}

func TestStaleMacroIsDropped(t *testing.T) {
	wf := mapWorkflow(t)

	// Remove every connection the macro introduced; the macro no longer
	// holds.
	var kept []*model.Connection
	for _, c := range wf.Connections {
		if c.CoveredBy == "" {
			kept = append(kept, c)
		}
	}
	wf.Connections = kept

	out := Workflow(wf)
	assert.NotContains(t, out, "@map")
}

func TestWorkflowDetectsPathSugar(t *testing.T) {
	wf := &model.Workflow{
		Name:         "chain",
		FunctionName: "Chain",
		StartPorts:   portSet(),
		ExitPorts:    portSet(dataPort("out", model.Input, model.String)),
	}
	wf.NodeTypes = append(wf.NodeTypes, nodeType("a", nil, nil), nodeType("b", nil, nil))
	wf.Instances = append(wf.Instances,
		&model.NodeInstance{ID: "a1", NodeType: "a"},
		&model.NodeInstance{ID: "b1", NodeType: "b"},
	)
	wf.IndexNodeTypes()
	wf.IndexInstances()
	wf.Connections = append(wf.Connections,
		&model.Connection{From: model.Endpoint{Node: model.StartNode, Port: model.PortExecute}, To: model.Endpoint{Node: "a1", Port: model.PortExecute}},
		&model.Connection{From: model.Endpoint{Node: "a1", Port: model.PortOnSuccess}, To: model.Endpoint{Node: "b1", Port: model.PortExecute}},
	)

	out := Workflow(wf)
	assert.Contains(t, out, "@path Start -> a1 -> b1")
}

func TestWorkflowCanonicalTagOrder(t *testing.T) {
	wf := mapWorkflow(t)
	wf.Options.StrictTypes = true
	out := Workflow(wf)

	flowIdx := strings.Index(out, "@flowWeaver workflow")
	strictIdx := strings.Index(out, "@strictTypes")
	nodeIdx := strings.Index(out, "@node ")
	mapIdx := strings.Index(out, "@map ")
	paramIdx := strings.Index(out, "@param ")

	require.True(t, flowIdx >= 0 && strictIdx >= 0 && nodeIdx >= 0 && mapIdx >= 0 && paramIdx >= 0)
	assert.Less(t, flowIdx, strictIdx)
	assert.Less(t, strictIdx, nodeIdx)
	assert.Less(t, nodeIdx, mapIdx)
	assert.Less(t, mapIdx, paramIdx)
}

func TestNodeLineCarriesPortOverrides(t *testing.T) {
	two := 2
	inst := &model.NodeInstance{
		ID:       "n1",
		NodeType: "double",
		Config: model.InstanceConfig{
			Label:         "first",
			PullExecution: "execute",
			PortConfigs: []model.PortConfig{
				{PortName: "amount", Order: &two, Label: "in"},
			},
			X: 10, Y: 20,
		},
	}
	line := nodeLine(inst)
	assert.Contains(t, line, `label:"first"`)
	assert.Contains(t, line, "portOrder:amount=2")
	assert.Contains(t, line, `portLabel:amount="in"`)
	assert.Contains(t, line, "pullExecution:execute")
	assert.Contains(t, line, "position:10 20")
}

func TestNodeTypeBlockRoundTripShape(t *testing.T) {
	nt := nodeType("double",
		[]*model.PortDefinition{dataPort("amount", model.Input, model.Number)},
		[]*model.PortDefinition{dataPort("total", model.Output, model.Number)})
	nt.Visuals.Label = "Double"

	out := NodeType(nt)
	assert.Contains(t, out, "@flowWeaver nodeType")
	assert.Contains(t, out, `@label "Double"`)
	assert.Contains(t, out, "@input amount")
	assert.Contains(t, out, "@output total")
	assert.NotContains(t, out, "@input execute", "the control-flow triad is implied")
}

func TestPatternBlock(t *testing.T) {
	pat := &model.Pattern{
		Name:        "retry",
		InputPorts:  portSet(dataPort("value", model.Output, model.Any)),
		OutputPorts: portSet(dataPort("value", model.Input, model.Any)),
		Instances:   []*model.NodeInstance{{ID: "a", NodeType: "double"}},
		Connections: []*model.Connection{
			{From: model.Endpoint{Node: model.PatternIn, Port: "value"}, To: model.Endpoint{Node: "a", Port: "amount"}},
		},
	}
	out := Pattern(pat)
	assert.Contains(t, out, "@flowWeaver pattern")
	assert.Contains(t, out, "@connect IN.value -> a.amount")
	assert.Contains(t, out, "@port IN.value")
	assert.Contains(t, out, "@port OUT.value")
}
