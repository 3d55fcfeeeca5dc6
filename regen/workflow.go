package regen

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/flowweaver/fw/model"
)

// Workflow emits a `@flowWeaver workflow` doc-comment block for wf in the
// canonical order: @flowWeaver workflow,
// options, @name (if it differs from functionName), @node lines for
// non-synthetic instances, sugar-macro lines, @position for Start/Exit,
// @connect lines (skipping anything a macro covers), @param/@returns, and
// @scope declarations (skipping scopes a `@map` already covers).
// model.Workflow carries no description, so no description line is
// emitted.
//
// Before emitting, it filters stale macros and, for the connections no macro
// claims, runs a light sugar-detection pass that re-materializes obvious
// `@path` chains so a workflow built purely from raw `@connect` edges still
// round-trips through sugar where the shape allows it.
func Workflow(wf *model.Workflow) string {
	live := filterStaleMacros(wf)
	live = append(live, detectPathSugar(wf, live)...)
	covered := coveredConnectionKeys(wf, live)
	coveredScopes := coveredScopeKeys(live)

	var b strings.Builder
	writeDocLine(&b, "@flowWeaver workflow")
	if wf.Options.StrictTypes {
		writeDocLine(&b, "@strictTypes")
	}
	if wf.Options.AutoConnect {
		writeDocLine(&b, "@autoConnect")
	}
	for _, imp := range wf.Imports {
		writeDocLine(&b, fmt.Sprintf("@fwImport %s %s from %s", imp.Name, imp.FunctionName, quoteIfNeeded(imp.Module)))
	}
	if wf.Options.TriggerEvent != "" || wf.Options.TriggerCron != "" {
		writeDocLine(&b, "@trigger "+kvAttrs(map[string]string{"event": wf.Options.TriggerEvent, "cron": wf.Options.TriggerCron}))
	}
	if wf.Options.CancelOnEvent != "" {
		writeDocLine(&b, "@cancelOn "+kvAttrs(map[string]string{"event": wf.Options.CancelOnEvent, "match": wf.Options.CancelOnMatch, "timeout": wf.Options.CancelOnTimeout}))
	}
	if wf.Options.Retries != 0 {
		writeDocLine(&b, fmt.Sprintf("@retries %d", wf.Options.Retries))
	}
	if wf.Options.Timeout != "" {
		writeDocLine(&b, fmt.Sprintf("@timeout %q", wf.Options.Timeout))
	}
	if wf.Options.ThrottleLimit != 0 {
		writeDocLine(&b, "@throttle "+kvAttrs(map[string]string{"limit": strconv.Itoa(wf.Options.ThrottleLimit), "period": wf.Options.ThrottlePeriod}))
	}
	if wf.Name != "" && wf.Name != wf.FunctionName {
		writeDocLine(&b, "@name "+wf.Name)
	}

	for _, inst := range sortedInstances(wf) {
		if isSynthetic(wf, inst) {
			continue
		}
		writeDocLine(&b, "@node "+nodeLine(inst))
	}

	for _, m := range live {
		writeDocLine(&b, macroLine(m))
	}

	if wf.UI.StartNode != nil {
		writeDocLine(&b, fmt.Sprintf("@position %s %s %s", model.StartNode, trimFloat(wf.UI.StartNode.X), trimFloat(wf.UI.StartNode.Y)))
	}
	if wf.UI.ExitNode != nil {
		writeDocLine(&b, fmt.Sprintf("@position %s %s %s", model.ExitNode, trimFloat(wf.UI.ExitNode.X), trimFloat(wf.UI.ExitNode.Y)))
	}

	for _, c := range sortedConnections(wf) {
		if covered[c.Key()] {
			continue
		}
		writeDocLine(&b, "@connect "+connectLine(c))
	}

	for _, p := range wf.StartPorts.List() {
		writeDocLine(&b, "@param "+paramLine(p))
	}
	for _, p := range wf.ExitPorts.List() {
		writeDocLine(&b, "@returns "+paramLine(p))
	}

	for _, name := range sortedScopeNames(wf) {
		if coveredScopes[name] {
			continue
		}
		children := wf.Scopes[name]
		writeDocLine(&b, "@scope "+name+" "+strings.Join(children, ", "))
	}

	return b.String()
}

func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func kvAttrs(attrs map[string]string) string {
	var keys []string
	for k, v := range attrs {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	var parts []string
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%q", k, attrs[k]))
	}
	return strings.Join(parts, " ")
}

func sortedInstances(wf *model.Workflow) []*model.NodeInstance {
	out := append([]*model.NodeInstance{}, wf.Instances...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sortedConnections(wf *model.Workflow) []*model.Connection {
	out := append([]*model.Connection{}, wf.Connections...)
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

func sortedScopeNames(wf *model.Workflow) []string {
	var names []string
	for name := range wf.Scopes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// isSynthetic reports whether inst was introduced by the macro expander
// (its node type variant has no user-authored counterpart), so `@node`
// itself is never re-emitted for it — only the owning macro tag is.
func isSynthetic(wf *model.Workflow, inst *model.NodeInstance) bool {
	nt := wf.LookupNodeType(inst.NodeType)
	if nt == nil {
		return false
	}
	return nt.Variant == model.VariantMapIterator || nt.Variant == model.VariantCoercion
}

func nodeLine(inst *model.NodeInstance) string {
	var b strings.Builder
	b.WriteString(inst.ID)
	b.WriteByte(' ')
	b.WriteString(inst.NodeType)
	if inst.Parent != nil {
		fmt.Fprintf(&b, " %s.%s", inst.Parent.ID, inst.Parent.Scope)
	}
	if inst.Config.Label != "" {
		fmt.Fprintf(&b, " label:%q", inst.Config.Label)
	}
	if inst.Config.Color != "" {
		fmt.Fprintf(&b, " color:%q", inst.Config.Color)
	}
	if inst.Config.Icon != "" {
		fmt.Fprintf(&b, " icon:%q", inst.Config.Icon)
	}
	if inst.Config.Minimized {
		b.WriteString(" minimized")
	}
	var orders, labels, exprs []string
	for _, pc := range inst.Config.PortConfigs {
		if pc.Order != nil {
			orders = append(orders, fmt.Sprintf("%s=%d", pc.PortName, *pc.Order))
		}
		if pc.Label != "" {
			labels = append(labels, fmt.Sprintf("%s=%q", pc.PortName, pc.Label))
		}
		if pc.Expression != "" {
			exprs = append(exprs, fmt.Sprintf("%s=%q", pc.PortName, pc.Expression))
		}
	}
	if len(orders) > 0 {
		b.WriteString(" portOrder:" + strings.Join(orders, ","))
	}
	if len(labels) > 0 {
		b.WriteString(" portLabel:" + strings.Join(labels, ","))
	}
	if len(exprs) > 0 {
		b.WriteString(" expr:" + strings.Join(exprs, ","))
	}
	if inst.Config.PullExecution != "" {
		b.WriteString(" pullExecution:" + inst.Config.PullExecution)
	}
	if len(inst.Config.Tags) > 0 {
		var quoted []string
		for _, t := range inst.Config.Tags {
			quoted = append(quoted, fmt.Sprintf("%q", t))
		}
		b.WriteString(" tags:" + strings.Join(quoted, ", "))
	}
	if inst.Config.Width != 0 || inst.Config.Height != 0 {
		fmt.Fprintf(&b, " size:%s %s", trimFloat(inst.Config.Width), trimFloat(inst.Config.Height))
	}
	if inst.Config.X != 0 || inst.Config.Y != 0 {
		fmt.Fprintf(&b, " position:%s %s", trimFloat(inst.Config.X), trimFloat(inst.Config.Y))
	}
	return b.String()
}

func connectLine(c *model.Connection) string {
	from := c.From.Node + "." + c.From.Port
	if c.From.Scope != "" {
		from += ":" + c.From.Scope
	}
	to := c.To.Node + "." + c.To.Port
	if c.To.Scope != "" {
		to += ":" + c.To.Scope
	}
	return from + " -> " + to
}

func paramLine(p *model.PortDefinition) string {
	if p.Label != "" {
		return p.Name + " - " + p.Label
	}
	return p.Name
}
