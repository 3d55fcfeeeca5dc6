// Package macro implements the sugar expander: it lowers `@map`,
// `@path`, `@fanOut`, `@fanIn`, `@coerce`, and the `@autoConnect` workflow
// option into canonical instances/connections/scope entries on the
// workflow's model.Workflow, tagging every connection it introduces with
// the macro that produced it (Connection.CoveredBy) so the regenerator
// can re-emit sugar instead of raw `@connect` lines.
package macro

import (
	"fmt"

	"github.com/flowweaver/fw/model"
)

// Expand runs every macro recorded on wf in order, plus `@autoConnect` when
// no macro or explicit `@connect` already wired the workflow. It mutates wf
// in place and returns any expansion-time diagnostics.
func Expand(wf *model.Workflow) []*model.Diagnostic {
	var diags []*model.Diagnostic
	hadExplicitConnect := len(wf.Connections) > 0

	for i := range wf.Macros {
		m := &wf.Macros[i]
		var err error
		switch m.Kind {
		case model.MacroMap:
			err = expandMap(wf, m.Map, fmt.Sprintf("map:%s", m.Map.InstanceID))
		case model.MacroPath:
			err = expandPath(wf, m.Path, fmt.Sprintf("path:%d", i))
		case model.MacroFanOut:
			err = expandFanOut(wf, m.FanOut, fmt.Sprintf("fanOut:%s", m.FanOut.Source.Key()))
		case model.MacroFanIn:
			err = expandFanIn(wf, m.FanIn, fmt.Sprintf("fanIn:%s", m.FanIn.Target.Key()))
		case model.MacroCoerce:
			err = expandCoerce(wf, m.Coerce, fmt.Sprintf("coerce:%s", m.Coerce.InstanceID))
		}
		if err != nil {
			diags = append(diags, &model.Diagnostic{
				Code:     model.UndefinedNode,
				Message:  fmt.Sprintf("macro %s: %v", m.Kind, err),
				Severity: model.SeverityError,
			})
		}
	}

	if wf.Options.AutoConnect && !hadExplicitConnect && len(wf.Macros) == 0 {
		autoConnect(wf)
	}

	return diags
}

func addConn(wf *model.Workflow, fromNode, fromPort, toNode, toPort, scope, coveredBy string) {
	wf.AddConnection(&model.Connection{
		From:      model.Endpoint{Node: fromNode, Port: fromPort, Scope: scope},
		To:        model.Endpoint{Node: toNode, Port: toPort, Scope: scope},
		CoveredBy: coveredBy,
	})
}

// nodeOutputs returns the output ports visible for data-wiring purposes:
// Start's params for the Start pseudo-node, a real instance's node type
// outputs otherwise, nil for Exit (it has no outputs).
func nodeOutputs(wf *model.Workflow, name string) *model.PortSet {
	switch name {
	case model.StartNode:
		return wf.StartPorts
	case model.ExitNode:
		return nil
	default:
		inst := wf.LookupInstance(name)
		if inst == nil {
			return nil
		}
		nt := wf.LookupNodeType(inst.NodeType)
		if nt == nil {
			return nil
		}
		return nt.Outputs
	}
}

// nodeInputs is nodeOutputs' mirror: Exit's return ports for the Exit
// pseudo-node, a real instance's node type inputs otherwise, nil for Start.
func nodeInputs(wf *model.Workflow, name string) *model.PortSet {
	switch name {
	case model.ExitNode:
		return wf.ExitPorts
	case model.StartNode:
		return nil
	default:
		inst := wf.LookupInstance(name)
		if inst == nil {
			return nil
		}
		nt := wf.LookupNodeType(inst.NodeType)
		if nt == nil {
			return nil
		}
		return nt.Inputs
	}
}

// controlSourcePort resolves which STEP output port a path step's control
// edge departs from: Start's literal "execute" output, or onSuccess/
// onFailure/custom chosen by the step's route.
func controlSourcePort(node, route string) string {
	if node == model.StartNode {
		return model.PortExecute
	}
	switch route {
	case "", "ok":
		return model.PortOnSuccess
	case "fail":
		return model.PortOnFailure
	default:
		return route
	}
}

// wireChain emits the canonical control + backward-looking data edges for a
// consecutive node chain (used by both `@path` and `@autoConnect`). Control
// edges are only emitted between endpoints that carry the control-flow
// triad; expression steps participate in the chain through data edges
// alone. Data wiring matches by name against the nearest preceding step,
// falling back to the immediate predecessor's sole data output for the
// first still-unwired input, so single-value expression chains thread
// without shared port names.
func wireChain(wf *model.Workflow, steps []model.PathStep, coveredBy string) {
	for i := 0; i < len(steps)-1; i++ {
		cur, next := steps[i], steps[i+1]
		srcPort := controlSourcePort(cur.Node, cur.Route)

		srcExpr := isExpressionNode(wf, cur.Node)
		dstExpr := isExpressionNode(wf, next.Node)
		if !srcExpr {
			if next.Node == model.ExitNode {
				addConn(wf, cur.Node, srcPort, model.ExitNode, exitSinkPort(srcPort), "", coveredBy)
			} else if !dstExpr {
				addConn(wf, cur.Node, srcPort, next.Node, model.PortExecute, "", coveredBy)
			}
		}

		targetInputs := nodeInputs(wf, next.Node)
		if targetInputs == nil {
			continue
		}
		firstUnwired := true
		for _, p := range targetInputs.List() {
			if p.IsControlFlow || p.Name == model.PortOnSuccess || p.Name == model.PortOnFailure {
				continue
			}
			wired := false
			for j := i; j >= 0 && !wired; j-- {
				outs := nodeOutputs(wf, steps[j].Node)
				if outs != nil && outs.Has(p.Name) {
					addConn(wf, steps[j].Node, p.Name, next.Node, p.Name, "", coveredBy)
					wired = true
				}
				if !wired && j == i && firstUnwired {
					// The pipe fallback beats a farther-back name match:
					// a single-output step feeds the next step's first
					// input whatever the names are.
					if out, ok := soleDataOutput(wf, cur.Node); ok {
						addConn(wf, cur.Node, out, next.Node, p.Name, "", coveredBy)
						wired = true
					}
				}
			}
			if wired {
				firstUnwired = false
			}
		}
	}
}

// isExpressionNode reports whether an instance's node type is an expression
// variant; Start and Exit are never expressions.
func isExpressionNode(wf *model.Workflow, name string) bool {
	if name == model.StartNode || name == model.ExitNode {
		return false
	}
	inst := wf.LookupInstance(name)
	if inst == nil {
		return false
	}
	nt := wf.LookupNodeType(inst.NodeType)
	return nt != nil && nt.Expression
}

// soleDataOutput returns the single non-control data output of a chain
// step, ok=false when the step has zero or several.
func soleDataOutput(wf *model.Workflow, name string) (string, bool) {
	outs := nodeOutputs(wf, name)
	if outs == nil {
		return "", false
	}
	found := ""
	for _, p := range outs.List() {
		if p.IsControlFlow || p.IsScoped() {
			continue
		}
		if found != "" {
			return "", false
		}
		found = p.Name
	}
	return found, found != ""
}

func exitSinkPort(srcPort string) string {
	switch srcPort {
	case model.PortOnSuccess, model.PortOnFailure:
		return srcPort
	default:
		return srcPort
	}
}

func expandPath(wf *model.Workflow, m *model.PathMacro, coveredBy string) error {
	if len(m.Steps) < 2 {
		return fmt.Errorf("@path requires at least two steps")
	}
	wireChain(wf, m.Steps, coveredBy)
	return nil
}

// autoConnect wires Start -> first -> ... -> last -> Exit by declaration
// order when the workflow opts in and nothing else wired it explicitly
//.
func autoConnect(wf *model.Workflow) {
	if len(wf.Instances) == 0 {
		return
	}
	steps := make([]model.PathStep, 0, len(wf.Instances)+2)
	steps = append(steps, model.PathStep{Node: model.StartNode})
	for _, inst := range wf.Instances {
		steps = append(steps, model.PathStep{Node: inst.ID})
	}
	steps = append(steps, model.PathStep{Node: model.ExitNode})
	wireChain(wf, steps, "autoConnect")
}

func appendUnique(list []string, item string) []string {
	for _, v := range list {
		if v == item {
			return list
		}
	}
	return append(list, item)
}

// firstDataPort returns the first non-control-flow port in a set, used to
// default a `@map` child's data port when no explicit rename is given.
func firstDataPort(set *model.PortSet) string {
	if set == nil {
		return ""
	}
	for _, p := range set.List() {
		if !p.IsControlFlow {
			return p.Name
		}
	}
	return ""
}

// expandMap synthesizes a MAP_ITERATOR node type owning one scope "iterate"
// and reparents the child instance into it.
func expandMap(wf *model.Workflow, m *model.MapMacro, coveredBy string) error {
	childInst := wf.LookupInstance(m.ChildID)
	if childInst == nil {
		return fmt.Errorf("child instance %q not found", m.ChildID)
	}
	var childType *model.NodeType
	if childInst != nil {
		childType = wf.LookupNodeType(childInst.NodeType)
	}

	inPort, outPort := m.Rename.In, m.Rename.Out
	if childType != nil {
		if inPort == "" {
			inPort = firstDataPort(childType.Inputs)
		}
		if outPort == "" {
			outPort = firstDataPort(childType.Outputs)
		}
	}

	itemKind, processedKind := model.Any, model.Any
	if childType != nil {
		if p := childType.Inputs.Get(inPort); p != nil {
			itemKind = p.Kind
		}
		if p := childType.Outputs.Get(outPort); p != nil {
			processedKind = p.Kind
		}
	}

	iterTypeName := "__fw_map_" + m.InstanceID + "__"
	if wf.LookupNodeType(iterTypeName) == nil {
		iterType := &model.NodeType{
			Name: iterTypeName, FunctionName: iterTypeName, Variant: model.VariantMapIterator,
			Scope: "iterate", Scopes: []string{"iterate"},
			Inputs: model.NewPortSet(), Outputs: model.NewPortSet(),
		}
		iterType.Inputs.Add(&model.PortDefinition{Name: model.PortExecute, Direction: model.Input, Kind: model.Step, IsControlFlow: true})
		iterType.Inputs.Add(&model.PortDefinition{Name: "items", Direction: model.Input, Kind: model.Array})
		iterType.Inputs.Add(&model.PortDefinition{Name: model.ScopeSuccess, Direction: model.Input, Kind: model.Step, Scope: "iterate", IsControlFlow: true})
		iterType.Inputs.Add(&model.PortDefinition{Name: model.ScopeFailure, Direction: model.Input, Kind: model.Step, Scope: "iterate", IsControlFlow: true})
		iterType.Inputs.Add(&model.PortDefinition{Name: "processed", Direction: model.Input, Kind: processedKind, Scope: "iterate"})
		iterType.Outputs.Add(&model.PortDefinition{Name: model.PortOnSuccess, Direction: model.Output, Kind: model.Step, IsControlFlow: true})
		iterType.Outputs.Add(&model.PortDefinition{Name: model.PortOnFailure, Direction: model.Output, Kind: model.Step, IsControlFlow: true, Failure: true})
		iterType.Outputs.Add(&model.PortDefinition{Name: "results", Direction: model.Output, Kind: model.Array})
		iterType.Outputs.Add(&model.PortDefinition{Name: model.ScopeStart, Direction: model.Output, Kind: model.Step, Scope: "iterate", IsControlFlow: true})
		iterType.Outputs.Add(&model.PortDefinition{Name: "item", Direction: model.Output, Kind: itemKind, Scope: "iterate"})
		wf.NodeTypes = append(wf.NodeTypes, iterType)
		wf.IndexNodeTypes()
	}

	iterInst := wf.LookupInstance(m.InstanceID)
	if iterInst == nil {
		iterInst = &model.NodeInstance{ID: m.InstanceID, NodeType: iterTypeName}
		wf.Instances = append(wf.Instances, iterInst)
		wf.IndexInstances()
	} else {
		iterInst.NodeType = iterTypeName
	}

	childInst.Parent = &model.ParentRef{ID: m.InstanceID, Scope: "iterate"}
	if wf.Scopes == nil {
		wf.Scopes = map[string][]string{}
	}
	key := m.InstanceID + ".iterate"
	wf.Scopes[key] = appendUnique(wf.Scopes[key], m.ChildID)

	addConn(wf, m.Source.Node, m.Source.Port, m.InstanceID, "items", "", coveredBy)
	addConn(wf, m.InstanceID, "item", m.ChildID, inPort, "iterate", coveredBy)
	addConn(wf, m.ChildID, outPort, m.InstanceID, "processed", "iterate", coveredBy)
	if childType == nil || !childType.Expression {
		// An expression child has no control-flow triad to wire.
		addConn(wf, m.InstanceID, model.ScopeStart, m.ChildID, model.PortExecute, "iterate", coveredBy)
		addConn(wf, m.ChildID, model.PortOnSuccess, m.InstanceID, model.ScopeSuccess, "iterate", coveredBy)
		addConn(wf, m.ChildID, model.PortOnFailure, m.InstanceID, model.ScopeFailure, "iterate", coveredBy)
	}
	return nil
}

// expandFanOut produces the 1-to-N edges of `@fanOut`, defaulting a missing
// target port to the source port's name.
func expandFanOut(wf *model.Workflow, m *model.FanOutMacro, coveredBy string) error {
	if m.Source.Port == "" {
		return fmt.Errorf("fanOut source requires a port")
	}
	for _, t := range m.Targets {
		port := t.Port
		if port == "" {
			port = m.Source.Port
		}
		addConn(wf, m.Source.Node, m.Source.Port, t.Node, port, "", coveredBy)
	}
	return nil
}

// expandFanIn produces the N-to-1 edges of `@fanIn`, defaulting a missing
// source port to the target port's name.
func expandFanIn(wf *model.Workflow, m *model.FanInMacro, coveredBy string) error {
	if m.Target.Port == "" {
		return fmt.Errorf("fanIn target requires a port")
	}
	for _, s := range m.Sources {
		port := s.Port
		if port == "" {
			port = m.Target.Port
		}
		addConn(wf, s.Node, port, m.Target.Node, m.Target.Port, "", coveredBy)
	}
	return nil
}

// coerceKindPort returns the PortKind a coercion target kind carries.
func coerceKindPort(kind model.CoerceKind) model.PortKind {
	switch kind {
	case model.CoerceString:
		return model.String
	case model.CoerceNumber:
		return model.Number
	case model.CoerceBoolean:
		return model.Boolean
	case model.CoerceJSON, model.CoerceObject:
		return model.Object
	default:
		return model.Any
	}
}

// expandCoerce inserts a synthetic COERCION instance between two ports
//.
func expandCoerce(wf *model.Workflow, m *model.CoerceMacro, coveredBy string) error {
	typeName := m.Kind.CoercionNodeTypeName()
	if wf.LookupNodeType(typeName) == nil {
		nt := &model.NodeType{
			Name: typeName, FunctionName: typeName, Variant: model.VariantCoercion, Expression: true,
			Inputs:  model.NewPortSet(),
			Outputs: model.NewPortSet(),
		}
		nt.Inputs.Add(&model.PortDefinition{Name: "value", Direction: model.Input, Kind: model.Any})
		nt.Outputs.Add(&model.PortDefinition{Name: "result", Direction: model.Output, Kind: coerceKindPort(m.Kind)})
		wf.NodeTypes = append(wf.NodeTypes, nt)
		wf.IndexNodeTypes()
	}

	if wf.LookupInstance(m.InstanceID) == nil {
		wf.Instances = append(wf.Instances, &model.NodeInstance{ID: m.InstanceID, NodeType: typeName})
		wf.IndexInstances()
	}

	addConn(wf, m.Source.Node, m.Source.Port, m.InstanceID, "value", "", coveredBy)
	addConn(wf, m.InstanceID, "result", m.Target.Node, m.Target.Port, "", coveredBy)
	return nil
}
