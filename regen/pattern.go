package regen

import (
	"strings"

	"github.com/flowweaver/fw/model"
)

// Pattern emits a `@flowWeaver pattern` doc-comment block for p. Patterns carry no macros or Start/Exit ports of
// their own, so this is a reduced form of Workflow: instances, @connect
// lines (IN/OUT stand in for Start/Exit), and @port declarations
// for the abstract input/output ports.
func Pattern(p *model.Pattern) string {
	var b strings.Builder
	writeDocLine(&b, "@flowWeaver pattern")
	if p.Name != "" {
		writeDocLine(&b, "@name "+p.Name)
	}
	if p.Description != "" {
		writeDocLine(&b, "@description "+quoteIfNeeded(p.Description))
	}

	ids := append([]*model.NodeInstance{}, p.Instances...)
	for _, inst := range ids {
		writeDocLine(&b, "@node "+nodeLine(inst))
	}

	conns := append([]*model.Connection{}, p.Connections...)
	for _, c := range conns {
		writeDocLine(&b, "@connect "+connectLine(c))
	}

	if p.InputPorts != nil {
		for _, port := range p.InputPorts.List() {
			writeDocLine(&b, "@port IN."+port.Name)
		}
	}
	if p.OutputPorts != nil {
		for _, port := range p.OutputPorts.List() {
			writeDocLine(&b, "@port OUT."+port.Name)
		}
	}

	return b.String()
}
