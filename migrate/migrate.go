// Package migrate holds the edge-case migration registry: a strictly
// ordered list of named, idempotent workflow transforms applied after parse
// and before validation. A migration is added only when a format change
// cannot be absorbed by the annotation round-trip itself; the registry
// exists so old source keeps parsing into the current model without the
// parser growing per-version branches.
package migrate

import (
	"sort"
	"strings"

	"github.com/flowweaver/fw/model"
)

// Migration is one named transform. Apply must be idempotent: running it on
// an already-migrated workflow is a no-op.
type Migration struct {
	Name  string
	Apply func(wf *model.Workflow)
}

// Registry is the ordered migration list. Order is part of the contract:
// later entries may rely on earlier ones having run.
var Registry = []Migration{
	{Name: "normalize-path-route-aliases", Apply: normalizePathRouteAliases},
	{Name: "dedupe-scope-children", Apply: dedupeScopeChildren},
	{Name: "drop-empty-port-configs", Apply: dropEmptyPortConfigs},
}

// Run applies every registered migration to wf in order and returns the
// names of the ones that changed it.
func Run(wf *model.Workflow) []string {
	var applied []string
	for _, m := range Registry {
		before := fingerprint(wf)
		m.Apply(wf)
		if fingerprint(wf) != before {
			applied = append(applied, m.Name)
		}
	}
	return applied
}

// fingerprint is a cheap structural digest used only to report whether a
// migration changed anything; it intentionally ignores fields no migration
// touches.
func fingerprint(wf *model.Workflow) string {
	var b strings.Builder
	for _, m := range wf.Macros {
		if m.Kind == model.MacroPath && m.Path != nil {
			for _, s := range m.Path.Steps {
				b.WriteString(s.Node)
				b.WriteByte(':')
				b.WriteString(s.Route)
				b.WriteByte(' ')
			}
		}
	}
	keys := make([]string, 0, len(wf.Scopes))
	for key := range wf.Scopes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		children := wf.Scopes[key]
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(strings.Join(children, ","))
		b.WriteByte(' ')
	}
	for _, inst := range wf.Instances {
		b.WriteString(inst.ID)
		for _, pc := range inst.Config.PortConfigs {
			b.WriteByte('.')
			b.WriteString(pc.PortName)
		}
		b.WriteByte(' ')
	}
	return b.String()
}

// normalizePathRouteAliases rewrites the legacy @path route spellings
// "success" and "failure" to the current "ok"/"fail" forms so the expander
// and regenerator only ever see one spelling.
func normalizePathRouteAliases(wf *model.Workflow) {
	for i := range wf.Macros {
		m := &wf.Macros[i]
		if m.Kind != model.MacroPath || m.Path == nil {
			continue
		}
		for j := range m.Path.Steps {
			switch m.Path.Steps[j].Route {
			case "success":
				m.Path.Steps[j].Route = "ok"
			case "failure":
				m.Path.Steps[j].Route = "fail"
			}
		}
	}
}

// dedupeScopeChildren removes repeated ids from each scope's child list,
// keeping first occurrence order. Early annotation emitters duplicated a
// child when it appeared in both a @scope line and a @node parentScope.
func dedupeScopeChildren(wf *model.Workflow) {
	for key, children := range wf.Scopes {
		seen := make(map[string]bool, len(children))
		out := children[:0]
		for _, id := range children {
			if seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
		wf.Scopes[key] = out
	}
}

// dropEmptyPortConfigs removes per-instance port configs that carry no
// override at all, which older @node parsers emitted for every port named
// anywhere on the line.
func dropEmptyPortConfigs(wf *model.Workflow) {
	for _, inst := range wf.Instances {
		out := inst.Config.PortConfigs[:0]
		for _, pc := range inst.Config.PortConfigs {
			if pc.Order == nil && pc.Label == "" && pc.Expression == "" && pc.Direction == "" {
				continue
			}
			out = append(out, pc)
		}
		if len(out) == 0 {
			inst.Config.PortConfigs = nil
		} else {
			inst.Config.PortConfigs = out
		}
	}
}
