// Package regen implements the annotation regenerator: given a
// canonical (macro-expanded) model.Workflow or model.NodeType, it emits the
// doc-comment text that would re-parse (via docparser) into an equal AST.
// Sugar re-detection runs before connection emission so the output prefers
// `@map`/`@path`/`@fanOut`/`@fanIn` over raw `@connect` lines whenever the
// canonical connections still match a macro's shape, and stale macros (ones
// whose underlying connections no longer exist) are dropped rather than
// re-emitted.
package regen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/flowweaver/fw/model"
)

// NodeType emits a `@flowWeaver nodeType` doc-comment block for nt. If
// nt.FunctionText is set (the common case: a real user function parsed from
// source), the caller should prefer splicing the function verbatim instead
// of calling NodeType — this function exists for synthetic/imported node
// types and for previewing what the regenerator would produce.
func NodeType(nt *model.NodeType) string {
	var b strings.Builder
	if nt.Visuals.Description != "" {
		writeDocLine(&b, nt.Visuals.Description)
	}
	writeDocLine(&b, "@flowWeaver nodeType")
	if nt.Name != "" && nt.Name != nt.FunctionName {
		writeDocLine(&b, "@name "+nt.Name)
	}
	if nt.Visuals.Label != "" {
		writeDocLine(&b, fmt.Sprintf("@label %q", nt.Visuals.Label))
	}
	if nt.Visuals.Description != "" {
		writeDocLine(&b, fmt.Sprintf("@description %q", nt.Visuals.Description))
	}
	if nt.Visuals.Color != "" {
		writeDocLine(&b, fmt.Sprintf("@color %q", nt.Visuals.Color))
	}
	if nt.Visuals.Icon != "" {
		writeDocLine(&b, fmt.Sprintf("@icon %q", nt.Visuals.Icon))
	}
	for _, tag := range nt.Visuals.Tags {
		writeDocLine(&b, fmt.Sprintf("@tag %q", tag))
	}
	if nt.ExecuteWhen != "" && nt.ExecuteWhen != model.Conjunction {
		writeDocLine(&b, "@executeWhen "+strings.ToLower(string(nt.ExecuteWhen)))
	}
	for _, s := range nt.Scopes {
		writeDocLine(&b, "@scope "+s)
	}
	if nt.Expression {
		writeDocLine(&b, "@expression")
	}
	if nt.Inputs != nil {
		for _, p := range nt.Inputs.List() {
			if p.IsControlFlow && !p.IsScoped() {
				continue
			}
			writeDocLine(&b, "@input "+portLine(p))
		}
	}
	if nt.Outputs != nil {
		for _, p := range nt.Outputs.List() {
			if p.IsControlFlow && !p.IsScoped() {
				continue
			}
			writeDocLine(&b, "@output "+portLine(p))
		}
	}
	return b.String()
}

// portLine renders a single port's annotation body, the inverse of
// docparser.parsePortLine.
func portLine(p *model.PortDefinition) string {
	var b strings.Builder
	b.WriteString(p.Name)
	if p.Default != "" {
		b.WriteString("=")
		b.WriteString(p.Default)
	}
	if p.Scope != "" {
		fmt.Fprintf(&b, " scope:%s", p.Scope)
	}
	if p.Order != nil {
		fmt.Fprintf(&b, " [order:%d]", *p.Order)
	}
	if p.Placement != "" {
		fmt.Fprintf(&b, " [placement:%s]", p.Placement)
	}
	if p.Expression != "" {
		fmt.Fprintf(&b, " - Expression: %s", p.Expression)
	} else if p.Label != "" {
		fmt.Fprintf(&b, " - %s", p.Label)
	}
	return b.String()
}

func writeDocLine(b *strings.Builder, line string) {
	b.WriteString("// ")
	b.WriteString(line)
	b.WriteString("\n")
}

func quoteIfNeeded(s string) string {
	if s == "" {
		return `""`
	}
	return strconv.Quote(s)
}
