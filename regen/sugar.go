package regen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/flowweaver/fw/model"
)

// filterStaleMacros is the "stale-macro filtering" step: a macro with a
// CoveredBy key (see macro.Expand and macroKey) is kept while at least one
// connection in wf.Connections still carries that key, and dropped rather
// than re-emitted once none does. A macro with only some of its
// connections removed is kept. @path macros have no key here and are
// always kept.
func filterStaleMacros(wf *model.Workflow) []model.Macro {
	present := map[string]bool{}
	for _, c := range wf.Connections {
		if c.CoveredBy != "" {
			present[c.CoveredBy] = true
		}
	}
	var live []model.Macro
	for _, m := range wf.Macros {
		key := macroKey(m)
		if key == "" || present[key] {
			live = append(live, m)
		}
	}
	return live
}

// macroKey reconstructs the CoveredBy key macro.Expand tags its connections
// with, so staleness and coverage can be checked without re-running
// expansion.
func macroKey(m model.Macro) string {
	switch m.Kind {
	case model.MacroMap:
		if m.Map != nil {
			return "map:" + m.Map.InstanceID
		}
	case model.MacroFanOut:
		if m.FanOut != nil {
			return "fanOut:" + m.FanOut.Source.Key()
		}
	case model.MacroFanIn:
		if m.FanIn != nil {
			return "fanIn:" + m.FanIn.Target.Key()
		}
	case model.MacroCoerce:
		if m.Coerce != nil {
			return "coerce:" + m.Coerce.InstanceID
		}
	}
	return ""
}

// coveredConnectionKeys returns the set of wf connection keys any live macro
// already claims (via Connection.CoveredBy), so Workflow can skip emitting
// them as raw `@connect` lines. @path macros recovered by detectPathSugar
// carry no CoveredBy tag of their own (they were raw connections a moment
// ago), so they are matched by the control-flow/data shape wireChain would
// have produced instead.
func coveredConnectionKeys(wf *model.Workflow, live []model.Macro) map[string]bool {
	out := map[string]bool{}
	keys := map[string]bool{}
	for _, m := range live {
		if key := macroKey(m); key != "" {
			keys[key] = true
		}
	}
	for _, c := range wf.Connections {
		if c.CoveredBy != "" && keys[c.CoveredBy] {
			out[c.Key()] = true
		}
	}
	for _, m := range live {
		if m.Kind != model.MacroPath {
			continue
		}
		markPathConnections(wf, m.Path, out)
	}
	return out
}

// markPathConnections marks every connection macro.wireChain would produce
// for a @path chain as covered, mirroring its own edge-construction rule
// without re-running expansion.
func markPathConnections(wf *model.Workflow, m *model.PathMacro, out map[string]bool) {
	for i := 0; i < len(m.Steps)-1; i++ {
		cur, next := m.Steps[i], m.Steps[i+1]
		for _, c := range wf.Connections {
			if c.From.Scope != "" || c.To.Scope != "" {
				continue
			}
			if c.From.Node != cur.Node {
				continue
			}
			if next.Node == model.ExitNode && c.To.Node == model.ExitNode {
				out[c.Key()] = true
			} else if c.To.Node == next.Node && c.To.Port == model.PortExecute {
				out[c.Key()] = true
			} else if c.To.Node == next.Node {
				out[c.Key()] = true
			}
		}
	}
}

// coveredScopeKeys returns "ownerId.scopeName" keys that a live `@map`
// macro owns, so Workflow skips re-emitting a redundant raw `@scope`
// declaration for them.
func coveredScopeKeys(live []model.Macro) map[string]bool {
	out := map[string]bool{}
	for _, m := range live {
		if m.Kind == model.MacroMap && m.Map != nil {
			out[m.Map.InstanceID+".iterate"] = true
		}
	}
	return out
}

// macroLine renders one macro as its sugar tag text, the inverse of
// docparser's parseMapTag/parsePathTag/parseFanOutTag/parseFanInTag/
// parseCoerceTag.
func macroLine(m model.Macro) string {
	switch m.Kind {
	case model.MacroMap:
		mm := m.Map
		rename := ""
		if mm.Rename.In != "" || mm.Rename.Out != "" {
			rename = fmt.Sprintf("(%s -> %s)", mm.Rename.In, mm.Rename.Out)
		}
		return fmt.Sprintf("@map %s %s%s over %s", mm.InstanceID, mm.ChildID, rename, endpointText(mm.Source))
	case model.MacroPath:
		var steps []string
		for _, s := range m.Path.Steps {
			if s.Route != "" && s.Route != "ok" {
				steps = append(steps, s.Node+":"+s.Route)
			} else {
				steps = append(steps, s.Node)
			}
		}
		return "@path " + strings.Join(steps, " -> ")
	case model.MacroFanOut:
		fo := m.FanOut
		var targets []string
		for _, t := range fo.Targets {
			targets = append(targets, endpointText(t))
		}
		return fmt.Sprintf("@fanOut %s -> %s", endpointText(fo.Source), strings.Join(targets, ", "))
	case model.MacroFanIn:
		fi := m.FanIn
		var sources []string
		for _, s := range fi.Sources {
			sources = append(sources, endpointText(s))
		}
		return fmt.Sprintf("@fanIn %s -> %s", strings.Join(sources, ", "), endpointText(fi.Target))
	case model.MacroCoerce:
		cm := m.Coerce
		return fmt.Sprintf("@coerce %s %s -> %s as %s", cm.InstanceID, endpointText(cm.Source), endpointText(cm.Target), cm.Kind)
	}
	return ""
}

func endpointText(e model.Endpoint) string {
	s := e.Node
	if e.Port != "" {
		s += "." + e.Port
	}
	if e.Scope != "" {
		s += ":" + e.Scope
	}
	return s
}

// detectPathSugar scans connections not already claimed by a live macro for
// the control-flow runs a `@path` chain would produce (onSuccess or execute
// into the next step's execute, or into Exit) and materializes a PathMacro
// for each maximal run. Only the control-flow edges are followed; the data
// edges between the steps are not checked.
// Connections with a scope on either endpoint never participate: `@path`
// only ever wires the outer control-flow graph.
func detectPathSugar(wf *model.Workflow, already []model.Macro) []model.Macro {
	covered := map[string]bool{}
	for _, m := range already {
		if key := macroKey(m); key != "" {
			for _, c := range wf.Connections {
				if c.CoveredBy == key {
					covered[c.Key()] = true
				}
			}
		}
		if m.Kind == model.MacroPath && m.Path != nil {
			markPathConnections(wf, m.Path, covered)
		}
	}

	next := map[string]string{} // fromNode -> toNode, control-flow only
	for _, c := range wf.Connections {
		if covered[c.Key()] || c.From.Scope != "" || c.To.Scope != "" {
			continue
		}
		if c.To.Port != model.PortExecute && !(c.From.Node != model.StartNode && c.To.Node == model.ExitNode) {
			continue
		}
		if c.From.Port != model.PortOnSuccess && c.From.Port != model.PortExecute {
			continue
		}
		next[c.From.Node] = c.To.Node
	}
	if len(next) == 0 {
		return nil
	}

	isTarget := map[string]bool{}
	for _, to := range next {
		isTarget[to] = true
	}
	var heads []string
	for from := range next {
		if !isTarget[from] {
			heads = append(heads, from)
		}
	}
	sort.Strings(heads)

	var macros []model.Macro
	for _, head := range heads {
		chain := []model.PathStep{{Node: head}}
		cur := head
		for {
			to, ok := next[cur]
			if !ok {
				break
			}
			chain = append(chain, model.PathStep{Node: to})
			cur = to
		}
		if len(chain) >= 2 {
			macros = append(macros, model.Macro{Kind: model.MacroPath, Path: &model.PathMacro{Steps: chain}})
		}
	}
	return macros
}
