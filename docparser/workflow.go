package docparser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/flowweaver/fw/annotation"
	"github.com/flowweaver/fw/hosttype"
	"github.com/flowweaver/fw/model"
	"github.com/flowweaver/fw/inspector/graph"
)

// buildWorkflow parses `@node/@connect/@scope/@position` tags into
// instances/connections/scopes, collects the sugar macro tags verbatim
// (expansion is macro.Expand's job), and derives startPorts/exitPorts
// from `@param`/`@returns` against fn's signature.
func buildWorkflow(fn *graph.Function, tags []annotation.Tag, sourceFile string, availableNames []string) (*model.Workflow, []*model.Diagnostic) {
	wf := &model.Workflow{
		FunctionName:           fn.Name,
		SourceFile:             sourceFile,
		StartPorts:             model.NewPortSet(),
		ExitPorts:              model.NewPortSet(),
		AvailableFunctionNames: availableNames,
	}

	var diags []*model.Diagnostic
	addErr := func(format string, args ...any) {
		diags = append(diags, &model.Diagnostic{
			Code:     model.MissingWorkflowName,
			Message:  strings.TrimSpace(fmt.Sprintf(format, args...)),
			Severity: model.SeverityError,
		})
	}

	paramFields := make(map[string]string, len(fn.Params))
	for _, p := range fn.Params {
		if p.Name != "" && p.Name != "execute" {
			paramFields[p.Name] = p.TypeText
		}
	}
	resultFields := make(map[string]string, len(fn.Results))
	for _, r := range fn.Results {
		if r.Name != "" && r.Name != model.PortOnSuccess && r.Name != model.PortOnFailure {
			resultFields[r.Name] = r.TypeText
		}
	}

	for _, tag := range tags {
		switch tag.Name {
		case "name":
			wf.Name = tag.Body
		case "description":
			// prose only; no dedicated field on Workflow beyond what
			// regen reconstructs from the function's leading prose.
		case "strictTypes":
			wf.Options.StrictTypes = true
		case "autoConnect":
			wf.Options.AutoConnect = true
		case "fwImport":
			if imp, err := parseImport(tag.Body); err == nil {
				wf.Imports = append(wf.Imports, imp)
			} else {
				addErr("@fwImport: %v", err)
			}
		case "node":
			if inst, err := parseNodeTag(tag.Body); err == nil {
				wf.Instances = append(wf.Instances, inst)
			} else {
				addErr("@node: %v", err)
			}
		case "connect":
			if conn, err := parseConnectTag(tag.Body); err == nil {
				wf.AddConnection(conn)
			} else {
				addErr("@connect: %v", err)
			}
		case "scope":
			name, children, err := parseScopeTag(tag.Body)
			if err != nil {
				addErr("@scope: %v", err)
				continue
			}
			if wf.Scopes == nil {
				wf.Scopes = map[string][]string{}
			}
			wf.Scopes[name] = children
		case "map":
			if m, err := parseMapTag(tag.Body); err == nil {
				wf.Macros = append(wf.Macros, model.Macro{Kind: model.MacroMap, Map: m})
			} else {
				addErr("@map: %v", err)
			}
		case "path":
			if m, err := parsePathTag(tag.Body); err == nil {
				wf.Macros = append(wf.Macros, model.Macro{Kind: model.MacroPath, Path: m})
			} else {
				addErr("@path: %v", err)
			}
		case "fanOut":
			if m, err := parseFanOutTag(tag.Body); err == nil {
				wf.Macros = append(wf.Macros, model.Macro{Kind: model.MacroFanOut, FanOut: m})
			} else {
				addErr("@fanOut: %v", err)
			}
		case "fanIn":
			if m, err := parseFanInTag(tag.Body); err == nil {
				wf.Macros = append(wf.Macros, model.Macro{Kind: model.MacroFanIn, FanIn: m})
			} else {
				addErr("@fanIn: %v", err)
			}
		case "coerce":
			if m, err := parseCoerceTag(tag.Body); err == nil {
				wf.Macros = append(wf.Macros, model.Macro{Kind: model.MacroCoerce, Coerce: m})
			} else {
				addErr("@coerce: %v", err)
			}
		case "trigger":
			attrs := parseKVAttrs(tag.Body)
			wf.Options.TriggerEvent = attrs["event"]
			wf.Options.TriggerCron = attrs["cron"]
		case "cancelOn":
			attrs := parseKVAttrs(tag.Body)
			wf.Options.CancelOnEvent = attrs["event"]
			wf.Options.CancelOnMatch = attrs["match"]
			wf.Options.CancelOnTimeout = attrs["timeout"]
		case "retries":
			if n, err := strconv.Atoi(strings.TrimSpace(tag.Body)); err == nil {
				wf.Options.Retries = n
			}
		case "timeout":
			wf.Options.Timeout = unquote(tag.Body)
		case "throttle":
			attrs := parseKVAttrs(tag.Body)
			if n, err := strconv.Atoi(attrs["limit"]); err == nil {
				wf.Options.ThrottleLimit = n
			}
			wf.Options.ThrottlePeriod = attrs["period"]
		case "param":
			name, desc := firstWordRest(tag.Body)
			port := &model.PortDefinition{Name: name, Direction: model.Output, Label: desc, Kind: model.Any}
			if t, ok := paramFields[name]; ok {
				port.Kind = hosttype.Infer(t)
				port.TSType = t
			}
			wf.StartPorts.Add(port)
		case "returns":
			name, desc := firstWordRest(tag.Body)
			port := &model.PortDefinition{Name: name, Direction: model.Input, Label: desc, Kind: model.Any}
			if t, ok := resultFields[name]; ok {
				port.Kind = hosttype.Infer(t)
				port.TSType = t
			}
			wf.ExitPorts.Add(port)
		case "position":
			if id, x, y, err := parsePositionTag(tag.Body); err == nil {
				applyPosition(wf, id, x, y)
			}
		}
	}

	return wf, diags
}

func applyPosition(wf *model.Workflow, id string, x, y float64) {
	switch id {
	case model.StartNode:
		if wf.UI.StartNode == nil {
			wf.UI.StartNode = &model.InstanceConfig{}
		}
		wf.UI.StartNode.X, wf.UI.StartNode.Y = x, y
	case model.ExitNode:
		if wf.UI.ExitNode == nil {
			wf.UI.ExitNode = &model.InstanceConfig{}
		}
		wf.UI.ExitNode.X, wf.UI.ExitNode.Y = x, y
	default:
		for _, inst := range wf.Instances {
			if inst.ID == id {
				inst.Config.X, inst.Config.Y = x, y
				return
			}
		}
	}
}

func firstWordRest(body string) (word, rest string) {
	body = strings.TrimSpace(body)
	i := strings.IndexAny(body, " \t")
	if i < 0 {
		return body, ""
	}
	rest = strings.TrimSpace(body[i:])
	rest = strings.TrimPrefix(rest, "- ")
	return body[:i], rest
}

func parseImport(body string) (model.ImportDecl, error) {
	toks, err := annotation.Tokenize(body)
	if err != nil {
		return model.ImportDecl{}, err
	}
	var decl model.ImportDecl
	i := 0
	if i < len(toks) {
		decl.Name = toks[i].Text
		i++
	}
	if i < len(toks) {
		decl.FunctionName = toks[i].Text
		i++
	}
	// skip the "from" keyword
	if i < len(toks) && toks[i].Kind == annotation.TokenWord && toks[i].Text == "from" {
		i++
	}
	if i < len(toks) && toks[i].Kind == annotation.TokenString {
		decl.Module = toks[i].Text
	}
	return decl, nil
}

func parseScopeTag(body string) (name string, children []string, err error) {
	toks, err := annotation.Tokenize(body)
	if err != nil {
		return "", nil, err
	}
	if len(toks) == 0 {
		return "", nil, fmt.Errorf("empty @scope")
	}
	name = toks[0].Text
	for _, t := range toks[1:] {
		if t.Kind == annotation.TokenWord {
			children = append(children, t.Text)
		}
	}
	return name, children, nil
}

func parsePositionTag(body string) (id string, x, y float64, err error) {
	toks, err := annotation.Tokenize(body)
	if err != nil {
		return "", 0, 0, err
	}
	if len(toks) < 3 {
		return "", 0, 0, fmt.Errorf("@position needs id x y")
	}
	id = toks[0].Text
	x, _ = strconv.ParseFloat(toks[1].Text, 64)
	y, _ = strconv.ParseFloat(toks[2].Text, 64)
	return id, x, y, nil
}

// parseKVAttrs parses a flat `key="value" key2="value2"` or `key=value`
// sequence into a map, used by @trigger/@cancelOn/@throttle.
func parseKVAttrs(body string) map[string]string {
	out := map[string]string{}
	toks, err := annotation.Tokenize(body)
	if err != nil {
		return out
	}
	i := 0
	for i < len(toks) {
		if toks[i].Kind != annotation.TokenWord {
			i++
			continue
		}
		key := toks[i].Text
		if i+1 < len(toks) && toks[i+1].Kind == annotation.TokenEquals && i+2 < len(toks) {
			out[key] = toks[i+2].Text
			i += 3
			continue
		}
		i++
	}
	return out
}
