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

// buildNodeType merges annotated ports with the signature-inferred ports of
// fn. Precedence: explicit @input/@output attributes
// override inference; scoped ports take their type from the matching
// callback; otherwise the same-named parameter/return-field's host type
// wins; otherwise ANY.
func buildNodeType(fn *graph.Function, tags []annotation.Tag) (*model.NodeType, []*model.Diagnostic, error) {
	nt := &model.NodeType{
		FunctionName: fn.Name,
		Variant:      model.VariantFunction,
		Inputs:       model.NewPortSet(),
		Outputs:      model.NewPortSet(),
	}
	if fn.Location != nil {
		nt.FunctionText = fn.Location.Raw
	}

	sigInputs, sigOutputs := signaturePorts(fn)

	var explicitInput, explicitOutput []*model.PortDefinition
	var scopeNames []string

	for _, tag := range tags {
		switch tag.Name {
		case "name":
			nt.Name = tag.Body
		case "label":
			nt.Visuals.Label = unquote(tag.Body)
		case "description":
			nt.Visuals.Description = unquote(tag.Body)
		case "color":
			nt.Visuals.Color = unquote(tag.Body)
		case "icon":
			nt.Visuals.Icon = unquote(tag.Body)
		case "tag":
			nt.Visuals.Tags = append(nt.Visuals.Tags, unquote(tag.Body))
		case "executeWhen":
			nt.ExecuteWhen = model.ExecuteWhen(strings.ToUpper(strings.TrimSpace(tag.Body)))
		case "scope":
			name := strings.Fields(tag.Body)
			if len(name) > 0 {
				scopeNames = append(scopeNames, name[0])
			}
		case "expression":
			nt.Expression = true
		case "pullExecution":
			// recorded per-instance at @node time, not on the node type itself
		case "input":
			p, err := parsePortLine(tag.Body, model.Input)
			if err != nil {
				return nil, nil, fmt.Errorf("@input: %w", err)
			}
			explicitInput = append(explicitInput, p)
		case "output":
			p, err := parsePortLine(tag.Body, model.Output)
			if err != nil {
				return nil, nil, fmt.Errorf("@output: %w", err)
			}
			explicitOutput = append(explicitOutput, p)
		case "step":
			p, err := parsePortLine(tag.Body, model.Input)
			if err != nil {
				return nil, nil, fmt.Errorf("@step: %w", err)
			}
			p.Kind = model.Step
			p.IsControlFlow = true
			explicitInput = append(explicitInput, p)
		}
	}
	nt.Scopes = scopeNames

	// A scope's callback parameter is the scope itself, not a FUNCTION
	// data input.
	if len(scopeNames) > 0 {
		filtered := sigInputs[:0]
		for _, p := range sigInputs {
			isScope := false
			for _, s := range scopeNames {
				if p.Name == s {
					isScope = true
				}
			}
			if !isScope {
				filtered = append(filtered, p)
			}
		}
		sigInputs = filtered
	}

	mergePorts(nt.Inputs, explicitInput, sigInputs)
	mergePorts(nt.Outputs, explicitOutput, sigOutputs)

	if nt.Expression {
		// Expression node types with no explicit data ports take theirs
		// from the raw signature; there is no execute parameter to skip.
		if len(explicitInput) == 0 {
			for _, p := range sigInputs {
				nt.Inputs.Add(p)
			}
		}
		if len(explicitOutput) == 0 {
			for _, p := range sigOutputs {
				nt.Outputs.Add(p)
			}
		}
	} else {
		nt.EnsureControlFlow()
	}

	assignImplicitOrder(nt.Inputs)
	assignImplicitOrder(nt.Outputs)

	diags := resolveScopedPortTypes(fn, nt)
	diags = append(diags, checkAnnotationSignature(fn, nt)...)

	if err := nt.Validate(); err != nil {
		return nil, diags, err
	}
	return nt, diags, nil
}

// mergePorts adds explicit ports first (they win on name collision; an
// untyped one takes its kind and type text from the same-named signature
// port), then fills in any signature port not already present.
func mergePorts(set *model.PortSet, explicit, signature []*model.PortDefinition) {
	for _, p := range explicit {
		if p.Kind == model.Any && p.TSType == "" && !p.IsScoped() {
			for _, s := range signature {
				if s.Name == p.Name {
					p.Kind, p.TSType = s.Kind, s.TSType
					break
				}
			}
		}
		set.Add(p)
	}
	for _, p := range signature {
		if !set.Has(p.Name) {
			set.Add(p)
		}
	}
}

// signaturePorts derives INPUT ports from parameters and OUTPUT ports from
// return fields, inferring PortKind from the rendered type text. A parameter literally named "execute" is the control-flow input
// and is not duplicated as a data port.
func signaturePorts(fn *graph.Function) (inputs, outputs []*model.PortDefinition) {
	for _, p := range fn.Params {
		if p.Name == "execute" {
			continue
		}
		inputs = append(inputs, &model.PortDefinition{
			Name:      p.Name,
			Direction: model.Input,
			Kind:      hosttype.Infer(p.TypeText),
			TSType:    p.TypeText,
		})
	}
	for _, r := range fn.Results {
		if r.Name == "" {
			continue
		}
		if r.Name == model.PortOnSuccess || r.Name == model.PortOnFailure {
			// The leading (onSuccess, onFailure bool) results are the
			// control-flow triad, not data outputs.
			continue
		}
		outputs = append(outputs, &model.PortDefinition{
			Name:      r.Name,
			Direction: model.Output,
			Kind:      hosttype.Infer(r.TypeText),
			TSType:    r.TypeText,
		})
	}
	return inputs, outputs
}

// assignImplicitOrder assigns negative slots [-k .. -1] to mandatory ports
// without an explicit order so they sort before any user-specified order:0
// port, then fills the remaining ports into non-negative slots, skipping
// occupied indices. Running it again is a no-op: every port leaves with an
// order.
func assignImplicitOrder(set *model.PortSet) {
	occupied := make(map[int]bool)
	var mandatory, unordered []*model.PortDefinition
	for _, p := range set.List() {
		switch {
		case p.Order != nil:
			occupied[*p.Order] = true
		case isMandatoryPort(p):
			mandatory = append(mandatory, p)
		default:
			unordered = append(unordered, p)
		}
	}
	for i, p := range mandatory {
		order := i - len(mandatory)
		p.Order = &order
		occupied[order] = true
	}
	next := 0
	for _, p := range unordered {
		for occupied[next] {
			next++
		}
		order := next
		p.Order = &order
		occupied[next] = true
		next++
	}
}

// isMandatoryPort reports whether a port belongs to the external
// control-flow triad or the scoped mandatory triad.
func isMandatoryPort(p *model.PortDefinition) bool {
	if p.IsControlFlow && !p.IsScoped() {
		return true
	}
	if p.IsScoped() {
		switch p.Name {
		case model.ScopeStart, model.ScopeSuccess, model.ScopeFailure:
			return true
		}
	}
	return false
}

// parsePortLine parses the port-line grammar:
// `name [scope:<s>] [order:N] [placement:TOP|BOTTOM] [- description]`
// or `name=default`. A description beginning with "Expression:" marks the
// port as an expression port rather than a data port.
func parsePortLine(body string, dir model.PortDirection) (*model.PortDefinition, error) {
	toks, err := annotation.Tokenize(body)
	if err != nil {
		return nil, err
	}
	if len(toks) == 0 {
		return nil, fmt.Errorf("empty port declaration")
	}

	p := &model.PortDefinition{Direction: dir, Kind: model.Any}
	i := 0
	p.Name = toks[i].Text
	i++

	if i < len(toks) && toks[i].Kind == annotation.TokenEquals {
		i++
		if i < len(toks) {
			p.Default = toks[i].Text
			p.Optional = true
			i++
		}
	}

	for i < len(toks) {
		switch {
		case toks[i].Kind == annotation.TokenWord && toks[i].Text == "scope" && i+2 < len(toks) && toks[i+1].Kind == annotation.TokenColon:
			p.Scope = toks[i+2].Text
			i += 3
		case toks[i].Kind == annotation.TokenWord && toks[i].Text == "order" && i+2 < len(toks) && toks[i+1].Kind == annotation.TokenColon:
			if n, err := strconv.Atoi(toks[i+2].Text); err == nil {
				p.Order = &n
			}
			i += 3
		case toks[i].Kind == annotation.TokenWord && toks[i].Text == "placement" && i+2 < len(toks) && toks[i+1].Kind == annotation.TokenColon:
			p.Placement = model.Placement(strings.ToUpper(toks[i+2].Text))
			i += 3
		default:
			// Brackets around attributes are decorative; everything else
			// before the description separator is ignored.
			i++
		}
	}

	if p.IsScoped() {
		switch p.Name {
		case model.ScopeStart, model.ScopeSuccess, model.ScopeFailure:
			p.Kind = model.Step
			p.IsControlFlow = true
		}
	}

	desc := descriptionFrom(body)
	if strings.HasPrefix(desc, "Expression:") {
		p.Expression = strings.TrimSpace(strings.TrimPrefix(desc, "Expression:"))
	} else if desc != "" {
		p.Label = desc
	}

	return p, nil
}

func descriptionFrom(body string) string {
	idx := strings.Index(body, " - ")
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(body[idx+3:])
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		if v, err := strconv.Unquote(s); err == nil {
			return v
		}
	}
	return s
}

// InferNodeType synthesizes a node type for an unannotated function that a
// workflow's @node references by name. The function is treated as an
// expression node unless its first parameter is literally `execute`, in
// which case it participates in control flow like any annotated node.
func InferNodeType(fn *graph.Function) *model.NodeType {
	expression := len(fn.Params) == 0 || fn.Params[0].Name != "execute"
	nt := &model.NodeType{
		FunctionName: fn.Name,
		Variant:      model.VariantFunction,
		Expression:   expression,
		Inputs:       model.NewPortSet(),
		Outputs:      model.NewPortSet(),
	}
	if fn.Location != nil {
		nt.FunctionText = fn.Location.Raw
	}
	sigInputs, sigOutputs := signaturePorts(fn)
	for _, p := range sigInputs {
		nt.Inputs.Add(p)
	}
	for _, p := range sigOutputs {
		nt.Outputs.Add(p)
	}
	if !expression {
		nt.EnsureControlFlow()
	}
	assignImplicitOrder(nt.Inputs)
	assignImplicitOrder(nt.Outputs)
	return nt
}
