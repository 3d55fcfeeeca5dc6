// Package validate implements the validator: it runs on the canonical
// (macro-expanded) workflow AST and emits stable-coded diagnostics for
// structural, connectivity, typing, annotation/signature, scope, and
// agent-pattern concerns. Cycle detection runs Kahn's algorithm over the
// compile-time control-flow graph. CUSTOM executeWhen expressions compile
// through exprcache and are reported when they fail to compile.
package validate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/flowweaver/fw/exprcache"
	"github.com/flowweaver/fw/model"
)

// Options controls validator behavior.
type Options struct {
	// Cache holds compiled CUSTOM executeWhen programs. A caller running many
	// validations should share one Cache across calls.
	Cache *exprcache.Cache
}

// Validate runs every check against wf and returns its diagnostics,
// already promoted per wf.Options.StrictTypes.
func Validate(wf *model.Workflow, opts Options) []*model.Diagnostic {
	if opts.Cache == nil {
		opts.Cache = exprcache.New(0)
	}

	var diags []*model.Diagnostic
	diags = append(diags, validateStructural(wf)...)
	diags = append(diags, validateConnectivity(wf)...)
	diags = append(diags, validatePorts(wf)...)
	diags = append(diags, validateTyping(wf, opts)...)
	diags = append(diags, validateCoercions(wf)...)
	diags = append(diags, validateScopes(wf)...)
	diags = append(diags, validateAgentPatterns(wf)...)

	for _, d := range diags {
		d.Promote(wf.Options.StrictTypes)
	}
	return diags
}

func diag(code model.DiagnosticCode, severity model.Severity, nodeID, format string, args ...any) *model.Diagnostic {
	return &model.Diagnostic{
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		NodeID:   nodeID,
		Severity: severity,
	}
}

// --- structural -------------------------------------------------------

func validateStructural(wf *model.Workflow) []*model.Diagnostic {
	var diags []*model.Diagnostic

	if wf.Name == "" && wf.FunctionName == "" {
		diags = append(diags, diag(model.MissingWorkflowName, model.SeverityError, "", "workflow is missing a name"))
	}

	seenInstance := map[string]bool{}
	for _, inst := range wf.Instances {
		if inst.ID == model.StartNode || inst.ID == model.ExitNode {
			diags = append(diags, diag(model.ReservedInstanceID, model.SeverityError, inst.ID,
				"instance id %q is reserved for the pseudo-node of the same name", inst.ID))
		}
		if seenInstance[inst.ID] {
			diags = append(diags, diag(model.DuplicateInstanceID, model.SeverityError, inst.ID,
				"duplicate instance id %q", inst.ID))
		}
		seenInstance[inst.ID] = true

		if inst.NodeType == "" || wf.LookupNodeType(inst.NodeType) == nil {
			diags = append(diags, diag(model.UnknownNodeType, model.SeverityError, inst.ID,
				"instance %q references unknown node type %q", inst.ID, inst.NodeType))
		}
	}

	seenNodeType := map[string]bool{}
	for _, nt := range wf.NodeTypes {
		name := nt.DisplayName()
		if nt.FunctionName == "" {
			diags = append(diags, diag(model.MissingFunctionName, model.SeverityError, name, "node type %q is missing a functionName", name))
		}
		for _, set := range []*model.PortSet{nt.Inputs, nt.Outputs} {
			if set == nil {
				continue
			}
			for _, p := range set.List() {
				if err := p.Validate(); err != nil {
					diags = append(diags, diag(model.InvalidPortType, model.SeverityError, name, "%v", err))
				}
			}
		}
		if seenNodeType[name] {
			diags = append(diags, diag(model.DuplicateNodeName, model.SeverityError, name, "duplicate node type name %q", name))
		}
		seenNodeType[name] = true
		if name == model.StartNode || name == model.ExitNode {
			diags = append(diags, diag(model.ReservedNodeName, model.SeverityError, name, "node type name %q is reserved", name))
		}
	}

	seenConn := map[string]bool{}
	for _, c := range wf.Connections {
		if err := c.Validate(); err != nil {
			diags = append(diags, diag(model.UndefinedNode, model.SeverityError, "", "%v", err))
			continue
		}
		key := c.Key()
		if seenConn[key] {
			diags = append(diags, diag(model.DuplicateConnection, model.SeverityWarning, c.From.Node,
				"duplicate connection %s -> %s", c.From.Key(), c.To.Key()))
		}
		seenConn[key] = true

		checkEndpoint(wf, c.From, true, &diags)
		checkEndpoint(wf, c.To, false, &diags)
	}

	return diags
}

func checkEndpoint(wf *model.Workflow, ep model.Endpoint, isSource bool, diags *[]*model.Diagnostic) {
	var ports *model.PortSet
	switch ep.Node {
	case model.StartNode:
		if !isSource {
			*diags = append(*diags, diag(model.UnknownTargetNode, model.SeverityError, ep.Node, "Start cannot be a connection target"))
			return
		}
		if ep.Port == model.PortExecute {
			return // Start always exposes its execute trigger
		}
		ports = wf.StartPorts
	case model.ExitNode:
		if isSource {
			*diags = append(*diags, diag(model.UnknownSourceNode, model.SeverityError, ep.Node, "Exit cannot be a connection source"))
			return
		}
		if ep.Port == model.PortOnSuccess || ep.Port == model.PortOnFailure {
			return // Exit always exposes the control-flow sinks
		}
		ports = wf.ExitPorts
	default:
		inst := wf.LookupInstance(ep.Node)
		if inst == nil {
			code := model.UnknownTargetNode
			if isSource {
				code = model.UnknownSourceNode
			}
			*diags = append(*diags, diag(code, model.SeverityError, ep.Node, "node %q is not declared", ep.Node))
			return
		}
		nt := wf.LookupNodeType(inst.NodeType)
		if nt == nil {
			return // already reported by validateStructural's UNKNOWN_NODE_TYPE
		}
		if isSource {
			ports = nt.Outputs
		} else {
			ports = nt.Inputs
		}
	}
	if ports != nil && !ports.Has(ep.Port) {
		code := model.UnknownTargetPort
		if isSource {
			code = model.UnknownSourcePort
		}
		*diags = append(*diags, diag(code, model.SeverityError, ep.Node, "node %q has no port %q", ep.Node, ep.Port))
	}
}

// --- connectivity -------------------------------------------------------

func nodeOutputs(wf *model.Workflow, name string) *model.PortSet {
	switch name {
	case model.StartNode:
		return wf.StartPorts
	case model.ExitNode:
		return nil
	default:
		if inst := wf.LookupInstance(name); inst != nil {
			if nt := wf.LookupNodeType(inst.NodeType); nt != nil {
				return nt.Outputs
			}
		}
		return nil
	}
}

func nodeInputs(wf *model.Workflow, name string) *model.PortSet {
	switch name {
	case model.ExitNode:
		return wf.ExitPorts
	case model.StartNode:
		return nil
	default:
		if inst := wf.LookupInstance(name); inst != nil {
			if nt := wf.LookupNodeType(inst.NodeType); nt != nil {
				return nt.Inputs
			}
		}
		return nil
	}
}

// isControlFlowConn reports whether c is a STEP edge participating in the
// control-flow graph; scoped edges never count.
func isControlFlowConn(wf *model.Workflow, c *model.Connection) bool {
	if c.From.Scope != "" || c.To.Scope != "" {
		return false
	}
	if c.To.Port != model.PortExecute {
		return false
	}
	if c.From.Node == model.StartNode {
		return c.From.Port == model.PortExecute
	}
	outs := nodeOutputs(wf, c.From.Node)
	if outs == nil {
		return false
	}
	p := outs.Get(c.From.Port)
	return p != nil && p.Kind == model.Step && p.IsControlFlow
}

func validateConnectivity(wf *model.Workflow) []*model.Diagnostic {
	var diags []*model.Diagnostic

	nodes := map[string]bool{model.StartNode: true, model.ExitNode: true}
	for _, inst := range wf.Instances {
		nodes[inst.ID] = true
	}

	edges := map[string][]string{}
	indegree := map[string]int{}
	for n := range nodes {
		indegree[n] = 0
	}
	for _, c := range wf.Connections {
		if !isControlFlowConn(wf, c) {
			continue
		}
		edges[c.From.Node] = append(edges[c.From.Node], c.To.Node)
		indegree[c.To.Node]++
	}

	if len(edges[model.StartNode]) == 0 {
		diags = append(diags, diag(model.NoStartConnections, model.SeverityWarning, model.StartNode, "Start has no outgoing control-flow connections"))
	}
	reachesExit := false
	for _, c := range wf.Connections {
		if c.To.Node == model.ExitNode && c.To.Scope == "" {
			reachesExit = true
			break
		}
	}
	if !reachesExit {
		diags = append(diags, diag(model.NoExitConnections, model.SeverityWarning, model.ExitNode, "no connection reaches Exit"))
	}

	// Kahn's algorithm over the control-flow graph (scoped edges excluded).
	degree := make(map[string]int, len(indegree))
	for k, v := range indegree {
		degree[k] = v
	}
	queue := zeroDegreeNodes(degree)
	processed := 0
	for len(queue) > 0 {
		sort.Strings(queue)
		next := queue[0]
		queue = queue[1:]
		delete(degree, next)
		processed++
		for _, child := range edges[next] {
			degree[child]--
			if degree[child] == 0 {
				queue = append(queue, child)
			}
		}
	}
	if processed < len(nodes) {
		var remaining []string
		for n := range degree {
			remaining = append(remaining, n)
		}
		sort.Strings(remaining)
		diags = append(diags, diag(model.CycleDetected, model.SeverityError, strings.Join(remaining, ","),
			"control-flow cycle detected among: %s", strings.Join(remaining, ", ")))
	}

	// Reachability / unused-node / multiple-connections-to-input checks.
	reached := map[string]bool{model.StartNode: true}
	frontier := []string{model.StartNode}
	for len(frontier) > 0 {
		cur := frontier[0]
		frontier = frontier[1:]
		for _, child := range edges[cur] {
			if !reached[child] {
				reached[child] = true
				frontier = append(frontier, child)
			}
		}
	}
	for _, inst := range wf.Instances {
		if reached[inst.ID] || inst.Parent != nil {
			continue
		}
		if nt := wf.LookupNodeType(inst.NodeType); nt != nil && nt.Expression {
			// Expression instances run on data demand, not control flow.
			continue
		}
		diags = append(diags, diag(model.UnusedNode, model.SeverityWarning, inst.ID, "instance %q is never reached by control flow", inst.ID))
	}

	dataInDegree := map[string]int{}
	for _, c := range wf.Connections {
		if isControlFlowConn(wf, c) || c.To.Scope != "" {
			continue
		}
		ins := nodeInputs(wf, c.To.Node)
		if ins == nil {
			continue
		}
		p := ins.Get(c.To.Port)
		if p == nil || p.IsControlFlow {
			continue
		}
		key := c.To.Node + "." + c.To.Port
		dataInDegree[key]++
		if dataInDegree[key] == 2 {
			diags = append(diags, diag(model.MultipleConnectionsToInput, model.SeverityError, c.To.Node,
				"input %s.%s has more than one data source", c.To.Node, c.To.Port))
		}
	}

	return diags
}

func zeroDegreeNodes(degree map[string]int) []string {
	var out []string
	for n, d := range degree {
		if d == 0 {
			out = append(out, n)
		}
	}
	return out
}

// --- typing -------------------------------------------------------

func compatibleKinds(src, dst model.PortKind) bool {
	if src == model.Any || dst == model.Any {
		return true
	}
	return src == dst
}

func validateTyping(wf *model.Workflow, opts Options) []*model.Diagnostic {
	var diags []*model.Diagnostic
	for _, c := range wf.Connections {
		outs := nodeOutputs(wf, c.From.Node)
		ins := nodeInputs(wf, c.To.Node)
		if outs == nil || ins == nil {
			continue
		}
		srcPort, dstPort := outs.Get(c.From.Port), ins.Get(c.To.Port)
		if srcPort == nil || dstPort == nil {
			continue
		}
		if srcPort.Kind == model.Step || dstPort.Kind == model.Step {
			if srcPort.Kind != dstPort.Kind {
				diags = append(diags, diag(model.StepPortTypeMismatch, model.SeverityError, c.To.Node,
					"%s.%s is STEP but %s.%s is not", c.From.Node, c.From.Port, c.To.Node, c.To.Port))
			}
			continue
		}
		if !compatibleKinds(srcPort.Kind, dstPort.Kind) {
			if c.From.Scope != "" {
				diags = append(diags, diag(model.ScopePortTypeMismatch, model.SeverityWarning, c.To.Node,
					"scoped connection %s.%s (%s) -> %s.%s (%s) carries mismatched kinds", c.From.Node, c.From.Port, srcPort.Kind, c.To.Node, c.To.Port, dstPort.Kind))
			} else if srcPort.Kind == model.Func || dstPort.Kind == model.Func {
				diags = append(diags, diag(model.TypeIncompatible, model.SeverityError, c.To.Node,
					"%s.%s (%s) cannot feed %s.%s (%s)", c.From.Node, c.From.Port, srcPort.Kind, c.To.Node, c.To.Port, dstPort.Kind))
			} else if (srcPort.Kind == model.Object) != (dstPort.Kind == model.Object) {
				diags = append(diags, diag(model.ObjectTypeMismatch, model.SeverityWarning, c.To.Node,
					"%s.%s (%s) connects to %s.%s (%s)", c.From.Node, c.From.Port, srcPort.Kind, c.To.Node, c.To.Port, dstPort.Kind))
			} else {
				diags = append(diags, diag(model.TypeMismatch, model.SeverityWarning, c.To.Node,
					"%s.%s (%s) connects to %s.%s (%s)", c.From.Node, c.From.Port, srcPort.Kind, c.To.Node, c.To.Port, dstPort.Kind))
			}
		}
	}

	for _, nt := range wf.NodeTypes {
		if nt.ExecuteWhen != model.Custom {
			continue
		}
		if nt.CustomExpr == "" {
			diags = append(diags, diag(model.InvalidExecuteWhen, model.SeverityError, nt.DisplayName(), "executeWhen CUSTOM requires a non-empty expression"))
			continue
		}
		env := predecessorEnv(wf, nt.DisplayName())
		if _, err := opts.Cache.CompileBool(nt.CustomExpr, env); err != nil {
			diags = append(diags, diag(model.InvalidExecuteWhen, model.SeverityError, nt.DisplayName(),
				"executeWhen expression %q failed to compile: %v", nt.CustomExpr, err))
		}
	}

	for _, ep := range wf.ExitPorts.List() {
		if ep.Kind == model.Func {
			diags = append(diags, diag(model.InvalidExitPortType, model.SeverityError, model.ExitNode,
				"exit port %q cannot carry a FUNCTION value", ep.Name))
		}
	}

	return diags
}

// predecessorEnv builds a name->bool environment for compiling a CUSTOM
// executeWhen expression: one entry per instance with a control-flow edge
// into nodeName.
func predecessorEnv(wf *model.Workflow, nodeName string) map[string]any {
	env := map[string]any{}
	for _, c := range wf.Connections {
		if c.To.Node == nodeName && c.To.Port == model.PortExecute {
			env[sanitizeIdent(c.From.Node)] = true
		}
	}
	return env
}

func sanitizeIdent(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	out := b.String()
	if out == "" || (out[0] >= '0' && out[0] <= '9') {
		out = "_" + out
	}
	return out
}

// --- scopes -------------------------------------------------------

func validateScopes(wf *model.Workflow) []*model.Diagnostic {
	var diags []*model.Diagnostic
	for key, children := range wf.Scopes {
		parts := strings.SplitN(key, ".", 2)
		if len(parts) != 2 {
			continue
		}
		parentID, scopeName := parts[0], parts[1]
		parentInst := wf.LookupInstance(parentID)
		if parentInst == nil {
			diags = append(diags, diag(model.ScopeOrphanedChild, model.SeverityError, parentID, "scope %q references unknown parent %q", key, parentID))
			continue
		}
		parentType := wf.LookupNodeType(parentInst.NodeType)
		if parentType == nil {
			continue
		}
		ownsScope := false
		for _, s := range parentType.Scopes {
			if s == scopeName {
				ownsScope = true
			}
		}
		if !ownsScope {
			diags = append(diags, diag(model.ScopeWrongScopeName, model.SeverityError, parentID,
				"%q does not declare a scope named %q", parentID, scopeName))
		}
		if len(children) == 0 {
			diags = append(diags, diag(model.ScopeEmpty, model.SeverityWarning, parentID, "scope %q has no children", key))
		}
		for _, childID := range children {
			child := wf.LookupInstance(childID)
			if child == nil {
				diags = append(diags, diag(model.ScopeOrphanedChild, model.SeverityError, childID, "scope %q references unknown child %q", key, childID))
				continue
			}
			if child.Parent == nil || child.Parent.ID != parentID || child.Parent.Scope != scopeName {
				diags = append(diags, diag(model.ScopeInconsistent, model.SeverityError, childID,
					"instance %q is listed under scope %q but its own parent ref disagrees", childID, key))
			}
		}
	}

	for _, inst := range wf.Instances {
		if inst.Parent == nil {
			continue
		}
		key := inst.Parent.ID + "." + inst.Parent.Scope
		found := false
		for _, c := range wf.Scopes[key] {
			if c == inst.ID {
				found = true
			}
		}
		if !found {
			diags = append(diags, diag(model.ScopeConsistencyError, model.SeverityError, inst.ID,
				"instance %q claims parent scope %q but is not listed among its children", inst.ID, key))
		}
	}

	for _, c := range wf.Connections {
		if c.From.Scope == "" && c.To.Scope == "" {
			continue
		}
		if c.From.Scope != c.To.Scope {
			diags = append(diags, diag(model.ScopeConnectionOutside, model.SeverityError, c.From.Node,
				"connection %s -> %s crosses scope boundary (%q vs %q)", c.From.Key(), c.To.Key(), c.From.Scope, c.To.Scope))
			continue
		}
		checkScopedEndpoint(wf, c.From, c.From.Scope, true, &diags)
		checkScopedEndpoint(wf, c.To, c.To.Scope, false, &diags)
	}

	diags = append(diags, validateScopePortUsage(wf)...)

	return diags
}

// checkScopedEndpoint verifies that a scoped connection endpoint lands on a
// port the scope actually exposes: a scope owner contributes only its
// scope-tagged ports, a child contributes its regular ports.
func checkScopedEndpoint(wf *model.Workflow, ep model.Endpoint, scopeName string, isSource bool, diags *[]*model.Diagnostic) {
	inst := wf.LookupInstance(ep.Node)
	if inst == nil {
		return // already reported structurally
	}
	nt := wf.LookupNodeType(inst.NodeType)
	if nt == nil {
		return
	}
	ownsScope := false
	for _, s := range nt.Scopes {
		if s == scopeName {
			ownsScope = true
		}
	}
	ports := nt.Inputs
	if isSource {
		ports = nt.Outputs
	}
	p := ports.Get(ep.Port)
	if p == nil {
		return // UNKNOWN_*_PORT already covers absent ports
	}
	if ownsScope && p.Scope != scopeName {
		*diags = append(*diags, diag(model.ScopeUnknownPort, model.SeverityError, ep.Node,
			"port %s.%s is not part of scope %q", ep.Node, ep.Port, scopeName))
	}
}

// validateScopePortUsage warns when a scope owner's scoped ports are left
// dangling: a scoped data input no child feeds, or a scoped output no child
// consumes.
func validateScopePortUsage(wf *model.Workflow) []*model.Diagnostic {
	var diags []*model.Diagnostic
	for _, inst := range wf.Instances {
		nt := wf.LookupNodeType(inst.NodeType)
		if nt == nil || len(nt.Scopes) == 0 {
			continue
		}
		for _, p := range nt.Inputs.List() {
			if !p.IsScoped() || p.Kind == model.Step {
				continue
			}
			if !hasScopedConn(wf, inst.ID, p.Name, p.Scope, false) {
				diags = append(diags, diag(model.ScopeMissingRequiredInput, model.SeverityWarning, inst.ID,
					"scoped input %s.%s collects nothing from scope %q", inst.ID, p.Name, p.Scope))
			}
		}
		for _, p := range nt.Outputs.List() {
			if !p.IsScoped() || p.Kind == model.Step {
				continue
			}
			if !hasScopedConn(wf, inst.ID, p.Name, p.Scope, true) {
				diags = append(diags, diag(model.ScopeUnusedInput, model.SeverityWarning, inst.ID,
					"scoped output %s.%s is never consumed inside scope %q", inst.ID, p.Name, p.Scope))
			}
		}
	}
	return diags
}

func hasScopedConn(wf *model.Workflow, nodeID, port, scopeName string, asSource bool) bool {
	for _, c := range wf.Connections {
		if asSource && c.From.Node == nodeID && c.From.Port == port && c.From.Scope == scopeName {
			return true
		}
		if !asSource && c.To.Node == nodeID && c.To.Port == port && c.To.Scope == scopeName {
			return true
		}
	}
	return false
}

// --- agent-pattern advisories -------------------------------------------------------

func validateAgentPatterns(wf *model.Workflow) []*model.Diagnostic {
	var diags []*model.Diagnostic
	for _, inst := range wf.Instances {
		nt := wf.LookupNodeType(inst.NodeType)
		if nt == nil {
			continue
		}
		name := strings.ToLower(nt.DisplayName())
		isLLM := strings.Contains(name, "llm") || strings.Contains(name, "agent") || strings.Contains(name, "chat")
		isTool := strings.Contains(name, "tool") || strings.Contains(name, "executor")
		isLoop := nt.Variant == model.VariantMapIterator || strings.Contains(name, "loop")

		if isLLM {
			if !nt.HasFailurePort || !hasOutgoing(wf, inst.ID, model.PortOnFailure) {
				diags = append(diags, diag(model.AgentLLMMissingErrorHandler, model.SeverityWarning, inst.ID,
					"LLM-like node %q has no onFailure handler", inst.ID))
			}
			if !hasFallbackBranch(wf, inst.ID) {
				diags = append(diags, diag(model.AgentLLMNoFallback, model.SeverityWarning, inst.ID,
					"LLM-like node %q has no alternate/fallback branch", inst.ID))
			}
		}
		if isTool && !hasOutgoing(wf, inst.ID, model.PortOnFailure) {
			diags = append(diags, diag(model.AgentUnguardedToolExecutor, model.SeverityWarning, inst.ID,
				"tool executor %q is not guarded by an onFailure branch", inst.ID))
		}
		if isTool && !hasAnyDataOutgoing(wf, inst.ID) {
			diags = append(diags, diag(model.AgentToolNoOutputHandling, model.SeverityWarning, inst.ID,
				"tool executor %q output is never consumed", inst.ID))
		}
		if isLoop {
			if scopeChildren := wf.Scopes[inst.ID+".iterate"]; !anyChildReadsMemory(wf, scopeChildren) {
				diags = append(diags, diag(model.AgentMissingMemoryInLoop, model.SeverityWarning, inst.ID,
					"loop %q has no memory/accumulator node among its children", inst.ID))
			}
		}
	}
	return diags
}

func hasOutgoing(wf *model.Workflow, nodeID, port string) bool {
	for _, c := range wf.Connections {
		if c.From.Node == nodeID && c.From.Port == port {
			return true
		}
	}
	return false
}

func hasAnyDataOutgoing(wf *model.Workflow, nodeID string) bool {
	for _, c := range wf.Connections {
		if c.From.Node == nodeID && c.From.Port != model.PortOnSuccess && c.From.Port != model.PortOnFailure {
			return true
		}
	}
	return false
}

func hasFallbackBranch(wf *model.Workflow, nodeID string) bool {
	count := 0
	for _, c := range wf.Connections {
		if c.From.Node == nodeID && (c.From.Port == model.PortOnSuccess || c.From.Port == model.PortOnFailure) {
			count++
		}
	}
	return count >= 2
}

func anyChildReadsMemory(wf *model.Workflow, children []string) bool {
	for _, id := range children {
		inst := wf.LookupInstance(id)
		if inst == nil {
			continue
		}
		nt := wf.LookupNodeType(inst.NodeType)
		if nt == nil {
			continue
		}
		if strings.Contains(strings.ToLower(nt.DisplayName()), "memory") || strings.Contains(strings.ToLower(nt.DisplayName()), "accumulat") {
			return true
		}
	}
	return false
}

// --- ports -------------------------------------------------------

// colorOK accepts #rgb / #rrggbb hex colors, the only form the editor
// renders.
func colorOK(c string) bool {
	if len(c) != 4 && len(c) != 7 {
		return false
	}
	if c[0] != '#' {
		return false
	}
	for _, r := range c[1:] {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

func iconOK(icon string) bool {
	for _, r := range icon {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return icon != ""
}

// validatePorts covers per-port concerns that need the full connection set:
// required inputs with no source, data outputs nobody reads, exit ports
// never reached or reached twice, and cosmetic attribute sanity.
func validatePorts(wf *model.Workflow) []*model.Diagnostic {
	var diags []*model.Diagnostic

	incoming := map[string]int{}
	outgoing := map[string]int{}
	for _, c := range wf.Connections {
		incoming[c.To.Node+"\x00"+c.To.Port]++
		outgoing[c.From.Node+"\x00"+c.From.Port]++
	}

	for _, inst := range wf.Instances {
		nt := wf.LookupNodeType(inst.NodeType)
		if nt == nil {
			continue
		}
		for _, p := range nt.Inputs.List() {
			if p.IsControlFlow || p.IsScoped() || p.Optional || p.Default != "" || p.Expression != "" {
				continue
			}
			if pc := inst.Config.PortConfigFor(p.Name); pc != nil && pc.Expression != "" {
				continue
			}
			if incoming[inst.ID+"\x00"+p.Name] == 0 {
				diags = append(diags, diag(model.MissingRequiredInput, model.SeverityError, inst.ID,
					"required input %s.%s has no connection, default, or expression", inst.ID, p.Name))
			}
		}
		for _, p := range nt.Outputs.List() {
			if p.IsControlFlow || p.IsScoped() || p.Hidden {
				continue
			}
			if outgoing[inst.ID+"\x00"+p.Name] == 0 {
				diags = append(diags, diag(model.UnusedOutputPort, model.SeverityWarning, inst.ID,
					"output %s.%s is never consumed", inst.ID, p.Name))
			}
		}
		if inst.Config.Color != "" && !colorOK(inst.Config.Color) {
			diags = append(diags, diag(model.InvalidColor, model.SeverityWarning, inst.ID,
				"color %q is not a #rgb or #rrggbb hex color", inst.Config.Color))
		}
		if inst.Config.Icon != "" && !iconOK(inst.Config.Icon) {
			diags = append(diags, diag(model.InvalidIcon, model.SeverityWarning, inst.ID,
				"icon %q is not a valid icon name", inst.Config.Icon))
		}
	}

	for _, nt := range wf.NodeTypes {
		if nt.Visuals.Color != "" && !colorOK(nt.Visuals.Color) {
			diags = append(diags, diag(model.InvalidColor, model.SeverityWarning, nt.DisplayName(),
				"color %q is not a #rgb or #rrggbb hex color", nt.Visuals.Color))
		}
		if nt.Visuals.Icon != "" && !iconOK(nt.Visuals.Icon) {
			diags = append(diags, diag(model.InvalidIcon, model.SeverityWarning, nt.DisplayName(),
				"icon %q is not a valid icon name", nt.Visuals.Icon))
		}
	}

	for _, p := range wf.ExitPorts.List() {
		n := incoming[model.ExitNode+"\x00"+p.Name]
		if n == 0 {
			diags = append(diags, diag(model.UnreachableExitPort, model.SeverityWarning, model.ExitNode,
				"exit port %q has no incoming connection", p.Name))
		}
		if n > 1 {
			diags = append(diags, diag(model.MultipleExitConnections, model.SeverityError, model.ExitNode,
				"exit port %q has %d incoming connections", p.Name, n))
		}
	}

	return diags
}

// --- coercion advisories -------------------------------------------------------

// validateCoercions flags @coerce macros whose conversion drops or distorts
// information: collapsing to a boolean, parsing arbitrary strings as
// numbers, and similar.
func validateCoercions(wf *model.Workflow) []*model.Diagnostic {
	var diags []*model.Diagnostic
	for _, m := range wf.Macros {
		if m.Kind != model.MacroCoerce || m.Coerce == nil {
			continue
		}
		outs := nodeOutputs(wf, m.Coerce.Source.Node)
		if outs == nil {
			continue
		}
		src := outs.Get(m.Coerce.Source.Port)
		if src == nil || src.Kind == model.Any {
			continue
		}
		switch {
		case m.Coerce.Kind == model.CoerceBoolean && src.Kind != model.Boolean:
			diags = append(diags, diag(model.LossyTypeCoercion, model.SeverityWarning, m.Coerce.InstanceID,
				"coercing %s to boolean keeps only truthiness", src.Kind))
		case m.Coerce.Kind == model.CoerceNumber && (src.Kind == model.Object || src.Kind == model.Array):
			diags = append(diags, diag(model.LossyTypeCoercion, model.SeverityWarning, m.Coerce.InstanceID,
				"coercing %s to number discards structure", src.Kind))
		case src.Kind == model.Func:
			diags = append(diags, diag(model.UnusualTypeCoercion, model.SeverityWarning, m.Coerce.InstanceID,
				"coercing a FUNCTION value to %s is rarely meaningful", m.Coerce.Kind))
		case src.Kind == model.Boolean && (m.Coerce.Kind == model.CoerceObject || m.Coerce.Kind == model.CoerceJSON):
			diags = append(diags, diag(model.UnusualTypeCoercion, model.SeverityWarning, m.Coerce.InstanceID,
				"coercing a boolean to %s is rarely meaningful", m.Coerce.Kind))
		}
	}
	return diags
}
