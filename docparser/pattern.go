package docparser

import (
	"github.com/flowweaver/fw/annotation"
	"github.com/flowweaver/fw/model"
	"github.com/flowweaver/fw/inspector/graph"
)

// buildPattern parses a `@flowWeaver pattern` block: same shape as a
// workflow minus start/exit port synthesis, with `IN`/`OUT` standing in for
// Start/Exit as abstract pseudo-nodes.
func buildPattern(fn *graph.Function, tags []annotation.Tag) (*model.Pattern, []*model.Diagnostic) {
	pat := &model.Pattern{
		Name:        fn.Name,
		InputPorts:  model.NewPortSet(),
		OutputPorts: model.NewPortSet(),
	}

	var diags []*model.Diagnostic

	for _, tag := range tags {
		switch tag.Name {
		case "name":
			pat.Name = tag.Body
		case "description":
			pat.Description = tag.Body
		case "node":
			if inst, err := parseNodeTag(tag.Body); err == nil {
				pat.Instances = append(pat.Instances, inst)
			} else {
				diags = append(diags, &model.Diagnostic{
					Code:     model.MissingWorkflowName,
					Message:  "@node: " + err.Error(),
					Severity: model.SeverityError,
				})
			}
		case "position":
			if id, x, y, err := parsePositionTag(tag.Body); err == nil {
				for _, inst := range pat.Instances {
					if inst.ID == id {
						inst.Config.X, inst.Config.Y = x, y
					}
				}
			}
		case "connect":
			if conn, err := parseConnectTag(tag.Body); err == nil {
				pat.Connections = append(pat.Connections, conn)
			} else {
				diags = append(diags, &model.Diagnostic{
					Code:     model.MissingWorkflowName,
					Message:  "@connect: " + err.Error(),
					Severity: model.SeverityError,
				})
			}
		case "port":
			parsePatternPort(pat, tag.Body)
		}
	}

	return pat, diags
}

// parsePatternPort parses `@port IN.<name> | OUT.<name>`.
func parsePatternPort(pat *model.Pattern, body string) {
	toks, err := annotation.Tokenize(body)
	if err != nil || len(toks) == 0 {
		return
	}
	if toks[0].Kind != annotation.TokenWord {
		return
	}
	side := toks[0].Text
	if len(toks) < 3 || toks[1].Kind != annotation.TokenDot {
		return
	}
	name := toks[2].Text
	switch side {
	case model.PatternIn:
		pat.InputPorts.Add(&model.PortDefinition{Name: name, Direction: model.Output, Kind: model.Any})
	case model.PatternOut:
		pat.OutputPorts.Add(&model.PortDefinition{Name: name, Direction: model.Input, Kind: model.Any})
	}
}
