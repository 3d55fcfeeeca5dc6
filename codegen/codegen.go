// Package codegen turns a validated, macro-expanded
// model.Workflow into the Go statements that go inside the BODY_* spliced
// region of the workflow's function. Execution order comes from the
// same Kahn's-algorithm control-flow graph the validator builds
// (validate.go), generalized here to also group independent branches into
// waves so an async workflow can run them as goroutine siblings. CUSTOM
// executeWhen merge expressions reuse exprcache, the same compiled-program
// cache the validator shares.
package codegen

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/flowweaver/fw/hosttype"
	"github.com/flowweaver/fw/model"
)

// Import is one import line the generated body requires; the caller
// (splice.Apply) merges it into the file's import block, adding only paths
// that are missing and leaving existing imports as the user wrote them.
type Import struct {
	Alias string
	Path  string
}

// Result is the generated body plus the imports and shared runtime helpers
// it depends on.
type Result struct {
	Body    string
	Imports []Import
	// Prelude is the package-level helper source the Body calls into
	// (fwGetVar, fwAsError, fwEvalCustom, the fwCoerce* family, and the
	// shared fwExprCache instance). splice.Apply places exactly one copy of
	// this per file inside the RUNTIME_* region; it is identical
	// across every workflow function in a file, so splice deduplicates by
	// presence rather than by calling back into codegen per function.
	Prelude string
}

// Prelude returns the package-level helper source every generated body
// depends on. It is a pure function of the package's dependency set, not
// of any one workflow, so callers needing just the text (e.g. splice,
// when merging a second workflow into a file that already has one) can
// call it directly instead of going through Generate.
func Prelude() string {
	return strings.TrimLeft(`
var fwExprCache = exprcache.New(0)

func fwGetVar[T any](rt *fwruntime.Context, ref fwruntime.VarRef, zero T) T {
	v, ok := rt.GetVariable(ref)
	if !ok {
		return zero
	}
	t, ok := v.(T)
	if !ok {
		return zero
	}
	return t
}

func fwAsError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("%v", r)
}

func fwEvalCustom(source string, env map[string]bool) bool {
	ok, err := fwExprCache.Run(source, env)
	if err != nil {
		return false
	}
	return ok
}

func fwCoerceNumber(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	case bool:
		if t {
			return 1
		}
		return 0
	default:
		return 0
	}
}

func fwCoerceBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t != "" && t != "false" && t != "0"
	case float64:
		return t != 0
	case nil:
		return false
	default:
		return true
	}
}

func fwCast[T any](v any) T {
	if t, ok := v.(T); ok {
		return t
	}
	var out T
	b, err := json.Marshal(v)
	if err != nil {
		return out
	}
	_ = json.Unmarshal(b, &out)
	return out
}

func fwCoerceObject(v any) map[string]any {
	switch t := v.(type) {
	case map[string]any:
		return t
	case string:
		var m map[string]any
		if json.Unmarshal([]byte(t), &m) == nil {
			return m
		}
		return map[string]any{"value": t}
	default:
		return map[string]any{"value": v}
	}
}
`, "\n")
}

const (
	runtimeAlias  = "fwruntime"
	runtimePath   = "github.com/flowweaver/fw/runtime"
	exprcachePath = "github.com/flowweaver/fw/exprcache"
)

func requiredImports(usedSync bool) []Import {
	imports := []Import{
		{Path: "context"},
		{Path: "fmt"},
		{Path: "strconv"},
		{Path: "encoding/json"},
		{Alias: runtimeAlias, Path: runtimePath},
		{Path: exprcachePath},
	}
	if usedSync {
		imports = append(imports, Import{Path: "sync"})
	}
	return imports
}

// Generate produces the Go statements for wf's BODY_* region. wf must
// already be macro-expanded and should generally be free of
// validator errors; Generate does not re-validate.
func Generate(wf *model.Workflow) (*Result, error) {
	g := &genState{
		wf:     wf,
		outVar: map[string]map[string]string{},
		idxVar: map[string]string{},
		sidOf:  map[string]string{},
	}
	for _, inst := range wf.Instances {
		g.sidOf[inst.ID] = sanitizeIdent(inst.ID)
	}

	waves, err := g.buildWaves()
	if err != nil {
		return nil, fmt.Errorf("codegen: %w", err)
	}

	var b strings.Builder
	b.WriteString("ctx := context.Background()\n")
	b.WriteString("rt := fwruntime.NewContext(ctx, nil)\n")
	b.WriteString("_ = rt\n")
	b.WriteString("onSuccess, onFailure = true, false\n")

	g.declareOutputVars(&b, topLevelInstances(wf))

	for _, id := range g.orderedExpressionInstances() {
		g.emitNode(&b, id, "rt", "")
	}

	for _, wave := range waves {
		g.emitWave(&b, wave, "rt", "")
	}

	g.emitExitWiring(&b)

	return &Result{Body: b.String(), Imports: requiredImports(g.usedSync), Prelude: Prelude()}, nil
}

// genState carries the mutable bookkeeping used while walking the
// workflow's instances: per-instance sanitized identifiers, the Go
// variable names holding each instance's outputs, and execution indices.
type genState struct {
	wf      *model.Workflow
	outVar  map[string]map[string]string // instanceID -> port -> go expr
	idxVar  map[string]string            // instanceID -> go variable name holding its execution index
	sidOf   map[string]string            // instanceID -> sanitized Go identifier stem
	pulling map[string]bool              // instances currently re-emitted through pullExecution

	usedSync bool // an async wave was emitted; the body needs the sync import
}

// topLevelInstances returns wf.Instances that are not reparented into a
// scope, i.e. the ones that run in the outer control-flow
// graph rather than inside a scope closure.
func topLevelInstances(wf *model.Workflow) []*model.NodeInstance {
	var out []*model.NodeInstance
	for _, inst := range wf.Instances {
		if inst.Parent == nil {
			out = append(out, inst)
		}
	}
	return out
}

// buildWaves runs Kahn's algorithm over the outer control-flow graph (the
// same edge definition the validator uses: STEP outputs into execute
// inputs), grouping same-layer nodes into waves; nodes
// with no control predecessors other than Start share the first wave and
// sort by id for a stable tie-break.
func (g *genState) buildWaves() ([][]string, error) {
	wf := g.wf
	nodes := map[string]bool{}
	for _, inst := range topLevelInstances(wf) {
		nt := wf.LookupNodeType(inst.NodeType)
		if nt != nil && nt.Expression {
			// Expression-variant instances (e.g. a synthesized COERCION) carry
			// no execute/onSuccess/onFailure triad and sit outside the
			// control-flow graph entirely; orderedExpressionInstances schedules
			// them by data dependency instead.
			continue
		}
		nodes[inst.ID] = true
	}

	edges := map[string][]string{}
	indegree := map[string]int{}
	for n := range nodes {
		indegree[n] = 0
	}
	for _, c := range wf.Connections {
		if !g.isControlFlowConn(c) {
			continue
		}
		if c.To.Node == model.ExitNode || c.From.Node == model.StartNode {
			if c.From.Node != model.StartNode {
				continue
			}
		}
		if !nodes[c.To.Node] {
			continue
		}
		from := c.From.Node
		if from == model.StartNode {
			// Start edges seed the first wave; no indegree contribution.
			continue
		}
		if !nodes[from] {
			continue
		}
		edges[from] = append(edges[from], c.To.Node)
		indegree[c.To.Node]++
	}

	degree := map[string]int{}
	for k, v := range indegree {
		degree[k] = v
	}

	var waves [][]string
	remaining := len(nodes)
	for remaining > 0 {
		var wave []string
		for n, d := range degree {
			if d == 0 {
				wave = append(wave, n)
			}
		}
		if len(wave) == 0 {
			return nil, fmt.Errorf("control-flow cycle among remaining nodes (validator should have caught this)")
		}
		sort.Strings(wave)
		for _, n := range wave {
			delete(degree, n)
			remaining--
			for _, child := range edges[n] {
				degree[child]--
			}
		}
		waves = append(waves, wave)
	}
	return waves, nil
}

// orderedExpressionInstances returns top-level Expression-variant instance
// ids (COERCION and any other value-only node) in data-dependency order,
// so a coercion chain evaluates its source before its consumer even
// though neither participates in the control-flow graph.
func (g *genState) orderedExpressionInstances() []string {
	wf := g.wf
	var ids []string
	for _, inst := range topLevelInstances(wf) {
		nt := wf.LookupNodeType(inst.NodeType)
		if nt != nil && nt.Expression {
			ids = append(ids, inst.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	set := map[string]bool{}
	for _, id := range ids {
		set[id] = true
	}
	indegree := map[string]int{}
	edges := map[string][]string{}
	for _, id := range ids {
		indegree[id] = 0
	}
	for _, c := range wf.Connections {
		if !set[c.To.Node] || !set[c.From.Node] || c.From.Scope != "" || c.To.Scope != "" {
			continue
		}
		edges[c.From.Node] = append(edges[c.From.Node], c.To.Node)
		indegree[c.To.Node]++
	}
	var ordered []string
	remaining := len(ids)
	degree := map[string]int{}
	for k, v := range indegree {
		degree[k] = v
	}
	for remaining > 0 {
		var ready []string
		for n, d := range degree {
			if d == 0 {
				ready = append(ready, n)
			}
		}
		if len(ready) == 0 {
			for n := range degree {
				ready = append(ready, n)
			}
		}
		sort.Strings(ready)
		for _, n := range ready {
			if _, ok := degree[n]; !ok {
				continue
			}
			delete(degree, n)
			remaining--
			ordered = append(ordered, n)
			for _, child := range edges[n] {
				degree[child]--
			}
		}
	}
	return ordered
}

// isControlFlowConn mirrors validate.go's rule: a STEP edge into `execute`
// with no scope on either endpoint.
func (g *genState) isControlFlowConn(c *model.Connection) bool {
	if c.From.Scope != "" || c.To.Scope != "" {
		return false
	}
	return c.To.Port == model.PortExecute
}

// declareOutputVars emits zero-initialized `var` declarations for every
// instance's control-flow and data outputs up front, so later waves and
// the Exit-wiring pass can reference any instance's outputs regardless of
// ordering quirks in how they were populated.
func (g *genState) declareOutputVars(b *strings.Builder, instances []*model.NodeInstance) {
	for _, inst := range instances {
		nt := g.wf.LookupNodeType(inst.NodeType)
		if nt == nil {
			continue
		}
		sid := g.sidOf[inst.ID]
		if g.outVar[inst.ID] == nil {
			g.outVar[inst.ID] = map[string]string{}
		}
		if !nt.Expression {
			fmt.Fprintf(b, "var %sOnSuccess, %sOnFailure bool\n", sid, sid)
			g.outVar[inst.ID][model.PortOnSuccess] = sid + "OnSuccess"
			g.outVar[inst.ID][model.PortOnFailure] = sid + "OnFailure"
		}
		for _, p := range nt.Outputs.List() {
			if p.IsControlFlow || p.Scope != "" {
				continue
			}
			goType := hosttype.GoType(p.Kind, p.TSType)
			varName := sid + "Out_" + sanitizeIdent(p.Name)
			fmt.Fprintf(b, "var %s %s\n", varName, goType)
			g.outVar[inst.ID][p.Name] = varName
		}
	}
}

// emitWave writes one wave of instances, wrapping them in goroutines with a
// sync.WaitGroup when the workflow is async and the wave holds more than
// one independent node.
func (g *genState) emitWave(b *strings.Builder, wave []string, rtVar, scope string) {
	async := g.wf.UserSpecifiedAsync && len(wave) > 1
	if !async {
		for _, id := range wave {
			g.emitNode(b, id, rtVar, scope)
		}
		return
	}
	g.usedSync = true
	b.WriteString("{\n")
	b.WriteString("var wg sync.WaitGroup\n")
	fmt.Fprintf(b, "wg.Add(%d)\n", len(wave))
	for _, id := range wave {
		b.WriteString("go func() {\n")
		b.WriteString("defer wg.Done()\n")
		g.emitNode(b, id, rtVar, scope)
		b.WriteString("}()\n")
	}
	b.WriteString("wg.Wait()\n")
	b.WriteString("}\n")
}

// predEdge is one STEP edge into a node's execute input: which node fires
// it and through which of its control outputs.
type predEdge struct {
	node string
	port string
}

// predecessors returns every STEP edge feeding inst's `execute` input, and
// whether Start is among the sources.
func (g *genState) predecessors(instID string) (preds []predEdge, fromStart bool) {
	for _, c := range g.wf.Connections {
		if c.To.Node != instID || c.To.Port != model.PortExecute || c.From.Scope != "" || c.To.Scope != "" {
			continue
		}
		if c.From.Node == model.StartNode {
			fromStart = true
			continue
		}
		preds = append(preds, predEdge{node: c.From.Node, port: c.From.Port})
	}
	sort.Slice(preds, func(i, j int) bool {
		if preds[i].node != preds[j].node {
			return preds[i].node < preds[j].node
		}
		return preds[i].port < preds[j].port
	})
	return preds, fromStart
}

// guardExpr returns a Go boolean expression deciding whether inst should
// run this wave, or "" if it should run unconditionally (no predecessors,
// or its only predecessor is Start).
func (g *genState) guardExpr(inst *model.NodeInstance, nt *model.NodeType) string {
	preds, fromStart := g.predecessors(inst.ID)
	if len(preds) == 0 {
		return ""
	}
	terms := make([]string, 0, len(preds))
	env := map[string]string{}
	for _, p := range preds {
		sid := g.sidOf[p.node]
		if sid == "" {
			sid = sanitizeIdent(p.node)
		}
		varName := sid + "OnSuccess"
		if p.port == model.PortOnFailure {
			varName = sid + "OnFailure"
		}
		terms = append(terms, varName)
		env[sanitizeIdent(p.node)] = varName
	}
	_ = fromStart

	switch nt.ExecuteWhen {
	case model.Disjunction:
		return strings.Join(terms, " || ")
	case model.Custom:
		var envParts []string
		for name, v := range env {
			envParts = append(envParts, fmt.Sprintf("%q: %s", name, v))
		}
		sort.Strings(envParts)
		return fmt.Sprintf("fwEvalCustom(%q, map[string]bool{%s})", nt.CustomExpr, strings.Join(envParts, ", "))
	default: // CONJUNCTION, or unset
		return strings.Join(terms, " && ")
	}
}

// emitNode dispatches node-frame generation by NodeType.Variant: real functions and imported workflows call
// through to their Go function; MAP_ITERATOR and COERCION are synthetic
// variants the macro expander introduces with no user-written Go
// counterpart, so codegen synthesizes their behavior directly.
func (g *genState) emitNode(b *strings.Builder, instID, rtVar, scope string) {
	inst := g.wf.LookupInstance(instID)
	if inst == nil {
		return
	}
	nt := g.wf.LookupNodeType(inst.NodeType)
	if nt == nil {
		return
	}
	sid := g.sidOf[instID]

	g.emitPullExecution(b, inst, rtVar, scope)

	guard := g.guardExpr(inst, nt)
	if guard != "" {
		fmt.Fprintf(b, "if %s {\n", guard)
	}

	switch nt.Variant {
	case model.VariantMapIterator:
		g.emitMapIterator(b, inst, nt, rtVar)
	case model.VariantCoercion:
		g.emitCoercion(b, inst, nt, rtVar)
	default:
		g.emitFunctionCall(b, inst, nt, rtVar, scope)
	}

	if guard != "" {
		b.WriteString("}\n")
	}
	_ = sid
}

// emitFunctionCall handles VariantFunction, VariantImportedWorkflow, and
// VariantStub: all three call a real Go function by name, differing only
// in whose function that is.
func (g *genState) emitFunctionCall(b *strings.Builder, inst *model.NodeInstance, nt *model.NodeType, rtVar, scope string) {
	sid := g.sidOf[inst.ID]
	fn := nt.FunctionName
	for _, imp := range g.wf.Imports {
		if imp.Name == nt.Name {
			fn = imp.FunctionName
		}
	}

	if !nt.Expression {
		fmt.Fprintf(b, "%sIdx := %s.NewExecutionIndex(%q)\n", sid, rtVar, inst.ID)
		g.idxVar[inst.ID] = sid + "Idx"
		fmt.Fprintf(b, "if %s.Cancelled() {\n", rtVar)
		fmt.Fprintf(b, "%s.SendStatusChangedEvent(fwruntime.StatusEvent{NodeID: %q, ExecutionIndex: %sIdx, Status: fwruntime.StatusFailed, Err: &fwruntime.CancellationError{NodeID: %q}})\n", rtVar, inst.ID, sid, inst.ID)
		fmt.Fprintf(b, "panic(&fwruntime.CancellationError{NodeID: %q})\n", inst.ID)
		b.WriteString("}\n")
		fmt.Fprintf(b, "%s.SendStatusChangedEvent(fwruntime.StatusEvent{NodeID: %q, ExecutionIndex: %sIdx, Status: fwruntime.StatusRunning})\n", rtVar, inst.ID, sid)
	}

	hasFailureHandler := g.hasOutgoing(inst.ID, model.PortOnFailure)

	b.WriteString("func() {\n")
	if !nt.Expression {
		b.WriteString("defer func() {\n")
		b.WriteString("if r := recover(); r != nil {\n")
		b.WriteString("err := fwAsError(r)\n")
		fmt.Fprintf(b, "%s.SendStatusChangedEvent(fwruntime.StatusEvent{NodeID: %q, ExecutionIndex: %sIdx, Status: fwruntime.StatusFailed, Err: err})\n", rtVar, inst.ID, sid)
		fmt.Fprintf(b, "%sOnSuccess, %sOnFailure = false, true\n", sid, sid)
		if !hasFailureHandler {
			b.WriteString("panic(r)\n")
		}
		b.WriteString("}\n")
		b.WriteString("}()\n")
	}

	args := g.callArgs(inst, nt, rtVar, scope)
	dataOutputs := g.dataOutputPorts(nt)

	var targets []string
	if !nt.Expression {
		// Non-expression node functions return (onSuccess, onFailure bool,
		// data...) ahead of their data results.
		targets = append(targets, sid+"OnSuccess", sid+"OnFailure")
	}
	for _, p := range dataOutputs {
		targets = append(targets, g.outVar[inst.ID][p.Name])
	}

	if len(targets) > 0 {
		fmt.Fprintf(b, "%s = %s(%s)\n", strings.Join(targets, ", "), fn, strings.Join(args, ", "))
	} else {
		fmt.Fprintf(b, "%s(%s)\n", fn, strings.Join(args, ", "))
	}

	for _, p := range dataOutputs {
		varName := g.outVar[inst.ID][p.Name]
		fmt.Fprintf(b, "%s.SetVariable(fwruntime.VarRef{InstanceID: %q, Port: %q, NodeTypeName: %q}, %s)\n",
			rtVar, inst.ID, p.Name, nt.DisplayName(), varName)
	}

	if !nt.Expression {
		fmt.Fprintf(b, "%s.SendStatusChangedEvent(fwruntime.StatusEvent{NodeID: %q, ExecutionIndex: %sIdx, Status: fwruntime.StatusSucceeded})\n", rtVar, inst.ID, sid)
	}
	b.WriteString("}()\n")
}

// dataOutputPorts returns nt's non-control, non-scoped output ports in
// declared order — the positional result list the real Go function
// returns.
func (g *genState) dataOutputPorts(nt *model.NodeType) []*model.PortDefinition {
	var out []*model.PortDefinition
	for _, p := range nt.Outputs.List() {
		if p.IsControlFlow || p.Scope != "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// callArgs resolves every non-control input port's value expression, in
// signature order, using resolveInput's priority chain.
func (g *genState) callArgs(inst *model.NodeInstance, nt *model.NodeType, rtVar, scope string) []string {
	var args []string
	if !nt.Expression {
		args = append(args, "true")
	}
	for _, p := range nt.Inputs.List() {
		if p.IsControlFlow || p.Scope != "" {
			continue
		}
		args = append(args, g.resolveInput(inst, nt, p, rtVar, scope))
	}
	return args
}

// resolveInput resolves one input port's value expression using a fixed
// priority chain: instance-level expression override, incoming connection,
// the node type's own default expression, a literal default, an optional
// port's zero value, or finally a typed zero-value sentinel.
func (g *genState) resolveInput(inst *model.NodeInstance, nt *model.NodeType, port *model.PortDefinition, rtVar, scope string) string {
	if pc := inst.Config.PortConfigFor(port.Name); pc != nil && pc.Expression != "" {
		return pc.Expression
	}

	if expr, ok := g.connectionValue(inst.ID, port.Name, scope, rtVar, port); ok {
		return expr
	}

	if port.Expression != "" {
		return port.Expression
	}

	if port.Default != "" {
		return g.literalFor(port, port.Default)
	}

	if port.Optional {
		return hosttype.ZeroLiteral(port.Kind, port.TSType)
	}

	return hosttype.ZeroLiteral(port.Kind, port.TSType)
}

// connectionValue resolves an input port's value from an incoming
// connection, if any, within the given scope ("" at the outer workflow
// level, a scope name for nodes reparented into a closure). Values always
// travel through the runtime Context's variable store rather than a
// direct Go identifier reference, so a source and its consumer can sit in
// different Go blocks (e.g. across a scope-closure boundary) without a
// scoping conflict, and a kind/Go-type mismatch is resolved by
// fwGetVar's type assertion instead of a compile error.
func (g *genState) connectionValue(nodeID, portName, scope, rtVar string, port *model.PortDefinition) (string, bool) {
	for _, c := range g.wf.Connections {
		if c.To.Node != nodeID || c.To.Port != portName || c.To.Scope != scope {
			continue
		}
		if c.From.Node == model.StartNode {
			// Start ports are the enclosing function's own parameters.
			return sanitizeIdent(c.From.Port), true
		}
		if _, ok := g.outVar[c.From.Node][c.From.Port]; !ok {
			continue
		}
		srcNT := ""
		if srcInst := g.wf.LookupInstance(c.From.Node); srcInst != nil {
			if nt := g.wf.LookupNodeType(srcInst.NodeType); nt != nil {
				srcNT = nt.DisplayName()
			}
		}
		goType := hosttype.GoType(port.Kind, port.TSType)
		zero := hosttype.ZeroLiteral(port.Kind, port.TSType)
		expr := fmt.Sprintf("fwGetVar[%s](%s, fwruntime.VarRef{InstanceID: %q, Port: %q, NodeTypeName: %q}, %s)",
			goType, rtVar, c.From.Node, c.From.Port, srcNT, zero)
		return expr, true
	}
	return "", false
}

// literalFor renders a default-literal string as Go source, quoting it for
// STRING ports whose text isn't already a quoted literal.
func (g *genState) literalFor(port *model.PortDefinition, lit string) string {
	if port.Kind == model.String {
		trimmed := strings.TrimSpace(lit)
		if len(trimmed) >= 2 && (trimmed[0] == '"' || trimmed[0] == '`') {
			return trimmed
		}
		return strconv.Quote(trimmed)
	}
	return lit
}

// emitMapIterator synthesizes a MAP_ITERATOR instance's behavior inline:
// iterate over its `items` input, running the scoped child chain once per
// element in an isolated ScopeContext, and collecting `processed` values
// into `results`.
func (g *genState) emitMapIterator(b *strings.Builder, inst *model.NodeInstance, nt *model.NodeType, rtVar string) {
	sid := g.sidOf[inst.ID]
	itemsPort := nt.Inputs.Get("items")
	itemsExpr := g.resolveInput(inst, nt, itemsPort, rtVar, "")

	fmt.Fprintf(b, "%sIdx := %s.NewExecutionIndex(%q)\n", sid, rtVar, inst.ID)
	g.idxVar[inst.ID] = sid + "Idx"
	fmt.Fprintf(b, "if %s.Cancelled() {\n", rtVar)
	fmt.Fprintf(b, "panic(&fwruntime.CancellationError{NodeID: %q})\n", inst.ID)
	b.WriteString("}\n")
	fmt.Fprintf(b, "%s.SendStatusChangedEvent(fwruntime.StatusEvent{NodeID: %q, ExecutionIndex: %sIdx, Status: fwruntime.StatusRunning})\n", rtVar, inst.ID, sid)

	resultsVar := g.outVar[inst.ID]["results"]
	itemKind := "any"
	if ip := nt.Outputs.Get("item"); ip != nil {
		itemKind = hosttype.GoType(ip.Kind, ip.TSType)
	}
	fmt.Fprintf(b, "for fwI, fwItem := range %s {\n", itemsExpr)
	fmt.Fprintf(b, "fwScope := %s.CreateScope(%q, %sIdx, \"iterate\", true)\n", rtVar, inst.ID, sid)
	fmt.Fprintf(b, "fwItemTyped, _ := any(fwItem).(%s)\n", itemKind)
	fmt.Fprintf(b, "_ = fwI\n")
	fmt.Fprintf(b, "fwScope.SetVariable(fwruntime.VarRef{InstanceID: %q, Port: \"item\", NodeTypeName: %q}, fwItemTyped)\n", inst.ID, nt.DisplayName())
	g.outVar[inst.ID]["item"] = "fwItemTyped"

	children := g.scopedChildren(inst.ID, "iterate")
	childWaves := g.buildWavesAmong(children)
	g.declareOutputVars(b, g.instancesByIDs(children))
	for _, wave := range childWaves {
		g.emitWave(b, wave, "fwScope.Context", "iterate")
	}

	processedVar, hasProcessed := g.scopeInputSource(inst.ID, "processed", "iterate")
	successFlag, hasSuccess := g.scopeInputSource(inst.ID, model.ScopeSuccess, "iterate")
	if hasProcessed && hasSuccess {
		fmt.Fprintf(b, "if %s {\n", successFlag)
		fmt.Fprintf(b, "%s = append(%s, %s)\n", resultsVar, resultsVar, processedVar)
		b.WriteString("}\n")
	} else if hasProcessed {
		fmt.Fprintf(b, "%s = append(%s, %s)\n", resultsVar, resultsVar, processedVar)
	}
	b.WriteString("fwScope.Merge()\n")
	b.WriteString("}\n")

	fmt.Fprintf(b, "%s.SetVariable(fwruntime.VarRef{InstanceID: %q, Port: \"results\", NodeTypeName: %q}, %s)\n",
		rtVar, inst.ID, nt.DisplayName(), resultsVar)
	fmt.Fprintf(b, "%sOnSuccess, %sOnFailure = true, false\n", sid, sid)
	fmt.Fprintf(b, "%s.SendStatusChangedEvent(fwruntime.StatusEvent{NodeID: %q, ExecutionIndex: %sIdx, Status: fwruntime.StatusSucceeded})\n", rtVar, inst.ID, sid)
}

// scopedChildren returns the instance IDs directly parented into
// ownerID's named scope.
func (g *genState) scopedChildren(ownerID, scopeName string) []string {
	var out []string
	for _, inst := range g.wf.Instances {
		if inst.Parent != nil && inst.Parent.ID == ownerID && inst.Parent.Scope == scopeName {
			out = append(out, inst.ID)
		}
	}
	sort.Strings(out)
	return out
}

func (g *genState) instancesByIDs(ids []string) []*model.NodeInstance {
	var out []*model.NodeInstance
	for _, id := range ids {
		if inst := g.wf.LookupInstance(id); inst != nil {
			out = append(out, inst)
		}
	}
	return out
}

// buildWavesAmong runs the same Kahn layering as buildWaves but restricted
// to a scope's child node set, using scope-tagged control edges.
func (g *genState) buildWavesAmong(ids []string) [][]string {
	nodes := map[string]bool{}
	for _, id := range ids {
		nodes[id] = true
	}
	edges := map[string][]string{}
	degree := map[string]int{}
	for n := range nodes {
		degree[n] = 0
	}
	for _, c := range g.wf.Connections {
		if c.To.Port != model.PortExecute || c.From.Scope == "" || c.To.Scope == "" {
			continue
		}
		if !nodes[c.To.Node] || !nodes[c.From.Node] {
			continue
		}
		edges[c.From.Node] = append(edges[c.From.Node], c.To.Node)
		degree[c.To.Node]++
	}
	var waves [][]string
	remaining := len(nodes)
	for remaining > 0 {
		var wave []string
		for n, d := range degree {
			if d == 0 {
				wave = append(wave, n)
			}
		}
		if len(wave) == 0 {
			break
		}
		sort.Strings(wave)
		for _, n := range wave {
			delete(degree, n)
			remaining--
			for _, child := range edges[n] {
				degree[child]--
			}
		}
		waves = append(waves, wave)
	}
	return waves
}

// scopeInputSource finds the Go expression feeding ownerID's scoped input
// port (fed by a scoped child's output), e.g. the "processed"/"success"
// ports a @map-synthesized MAP_ITERATOR reads back from its wrapped child.
func (g *genState) scopeInputSource(ownerID, portName, scopeName string) (string, bool) {
	for _, c := range g.wf.Connections {
		if c.To.Node != ownerID || c.To.Port != portName || c.To.Scope != scopeName {
			continue
		}
		if v, ok := g.outVar[c.From.Node][c.From.Port]; ok {
			return v, true
		}
	}
	return "", false
}

// emitCoercion synthesizes a COERCION instance's value conversion inline;
// like MAP_ITERATOR, the macro expander creates these with no backing Go
// function.
func (g *genState) emitCoercion(b *strings.Builder, inst *model.NodeInstance, nt *model.NodeType, rtVar string) {
	valuePort := nt.Inputs.Get("value")
	valueExpr := g.resolveInput(inst, nt, valuePort, rtVar, "")
	resultVar := g.outVar[inst.ID]["result"]
	kind := strings.TrimSuffix(strings.TrimPrefix(nt.Name, "__fw_to_"), "__")

	switch model.CoerceKind(kind) {
	case model.CoerceString:
		fmt.Fprintf(b, "%s = fmt.Sprintf(\"%%v\", %s)\n", resultVar, valueExpr)
	case model.CoerceNumber:
		fmt.Fprintf(b, "%s = fwCoerceNumber(%s)\n", resultVar, valueExpr)
	case model.CoerceBoolean:
		fmt.Fprintf(b, "%s = fwCoerceBool(%s)\n", resultVar, valueExpr)
	case model.CoerceJSON, model.CoerceObject:
		fmt.Fprintf(b, "%s = fwCoerceObject(%s)\n", resultVar, valueExpr)
	default:
		fmt.Fprintf(b, "%s = %s\n", resultVar, valueExpr)
	}
	fmt.Fprintf(b, "%s.SetVariable(fwruntime.VarRef{InstanceID: %q, Port: \"result\", NodeTypeName: %q}, %s)\n",
		rtVar, inst.ID, nt.DisplayName(), resultVar)
}

// emitExitWiring assigns the workflow's Exit port values from whichever
// instance feeds them, casting back to the declared exit-port type when the
// source variable's Go type differs, and sets the top-level
// onSuccess/onFailure return values from the terminal nodes' own outcome.
func (g *genState) emitExitWiring(b *strings.Builder) {
	for _, c := range g.wf.Connections {
		if c.To.Node != model.ExitNode || c.To.Scope != "" {
			continue
		}
		srcVar, ok := g.outVar[c.From.Node][c.From.Port]
		if !ok {
			continue
		}
		switch c.To.Port {
		case model.PortOnSuccess:
			fmt.Fprintf(b, "onSuccess = %s\n", srcVar)
		case model.PortOnFailure:
			fmt.Fprintf(b, "onFailure = %s\n", srcVar)
		default:
			exitType := ""
			if p := g.wf.ExitPorts.Get(c.To.Port); p != nil {
				exitType = hosttype.GoType(p.Kind, p.TSType)
			}
			srcType := g.sourceGoType(c.From.Node, c.From.Port)
			if exitType != "" && srcType != "" && exitType != srcType && exitType != "any" {
				fmt.Fprintf(b, "%s = fwCast[%s](%s)\n", sanitizeIdent(c.To.Port), exitType, srcVar)
			} else {
				fmt.Fprintf(b, "%s = %s\n", sanitizeIdent(c.To.Port), srcVar)
			}
		}
	}
}

// sourceGoType returns the Go type of an instance's output port, "" when
// unknown.
func (g *genState) sourceGoType(nodeID, port string) string {
	inst := g.wf.LookupInstance(nodeID)
	if inst == nil {
		return ""
	}
	nt := g.wf.LookupNodeType(inst.NodeType)
	if nt == nil {
		return ""
	}
	p := nt.Outputs.Get(port)
	if p == nil {
		return ""
	}
	return hosttype.GoType(p.Kind, p.TSType)
}

// emitPullExecution re-runs the node feeding an instance's pull-marked
// STEP input just before the instance itself, so a data-dependent
// re-trigger sees a fresh value. The re-run is wrapped in its own block so
// the source's execution-index variable shadows cleanly, and a pulling set
// breaks mutual-pull cycles.
func (g *genState) emitPullExecution(b *strings.Builder, inst *model.NodeInstance, rtVar, scope string) {
	port := inst.Config.PullExecution
	if port == "" {
		return
	}
	if g.pulling == nil {
		g.pulling = map[string]bool{}
	}
	for _, c := range g.wf.Connections {
		if c.To.Node != inst.ID || c.To.Port != port || c.To.Scope != scope {
			continue
		}
		src := c.From.Node
		if src == model.StartNode || g.pulling[src] {
			continue
		}
		g.pulling[src] = true
		b.WriteString("{\n")
		g.emitNode(b, src, rtVar, scope)
		b.WriteString("}\n")
		delete(g.pulling, src)
	}
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

func (g *genState) hasOutgoing(nodeID, port string) bool {
	for _, c := range g.wf.Connections {
		if c.From.Node == nodeID && c.From.Port == port {
			return true
		}
	}
	return false
}
