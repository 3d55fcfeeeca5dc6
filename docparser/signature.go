package docparser

import (
	"go/ast"
	"go/parser"

	"github.com/flowweaver/fw/hosttype"
	"github.com/flowweaver/fw/inspector/golang"
	"github.com/flowweaver/fw/inspector/graph"
	"github.com/flowweaver/fw/model"
)

// resolveScopedPortTypes fills in the types of scoped ports from the
// callback parameter named after their scope: the callback's parameters
// supply the scope's OUTPUT port types (closure parameters), its named
// results supply the INPUT port types (closure return fields). A scope with
// no resolvable callback raises a warning and leaves the ports ANY-typed.
func resolveScopedPortTypes(fn *graph.Function, nt *model.NodeType) []*model.Diagnostic {
	var diags []*model.Diagnostic

	callbacks := map[string]*ast.FuncType{}
	for _, scope := range nt.Scopes {
		var typeText string
		for _, p := range fn.Params {
			if p.Name == scope {
				typeText = p.TypeText
				break
			}
		}
		ft := parseFuncType(typeText)
		if ft == nil {
			diags = append(diags, &model.Diagnostic{
				Code:     model.AnnotationSignatureMismatch,
				Severity: model.SeverityWarning,
				NodeID:   nt.DisplayName(),
				Message:  "scope \"" + scope + "\" has no resolvable callback parameter; scoped port types default to ANY",
			})
			continue
		}
		callbacks[scope] = ft
	}

	apply := func(set *model.PortSet, resolve func(ft *ast.FuncType, name string) string) {
		for _, p := range set.List() {
			if !p.IsScoped() || p.Kind == model.Step {
				continue
			}
			ft, ok := callbacks[p.Scope]
			if !ok {
				continue
			}
			if text := resolve(ft, p.Name); text != "" {
				p.Kind = hosttype.Infer(text)
				p.TSType = text
			}
		}
	}
	apply(nt.Outputs, callbackParamType)
	apply(nt.Inputs, callbackResultType)

	return diags
}

func parseFuncType(typeText string) *ast.FuncType {
	if typeText == "" {
		return nil
	}
	expr, err := parser.ParseExpr(typeText)
	if err != nil {
		return nil
	}
	ft, ok := expr.(*ast.FuncType)
	if !ok {
		return nil
	}
	return ft
}

func callbackParamType(ft *ast.FuncType, name string) string {
	return fieldTypeByName(ft.Params, name)
}

func callbackResultType(ft *ast.FuncType, name string) string {
	return fieldTypeByName(ft.Results, name)
}

func fieldTypeByName(fields *ast.FieldList, name string) string {
	if fields == nil {
		return ""
	}
	for _, field := range fields.List {
		for _, n := range field.Names {
			if n.Name == name {
				return golang.ExprText(field.Type)
			}
		}
	}
	return ""
}

// checkAnnotationSignature compares a node type's annotated ports with the
// backing function signature: an explicit port the signature does not back
// is a mismatch warning, and an annotated kind that contradicts the
// signature-inferred kind is a type-mismatch warning. Scoped ports and the
// control-flow triad are excluded; they are not positional signature slots.
func checkAnnotationSignature(fn *graph.Function, nt *model.NodeType) []*model.Diagnostic {
	var diags []*model.Diagnostic

	sigParams := map[string]string{}
	for _, p := range fn.Params {
		sigParams[p.Name] = p.TypeText
	}
	sigResults := map[string]string{}
	for _, r := range fn.Results {
		sigResults[r.Name] = r.TypeText
	}

	check := func(set *model.PortSet, sig map[string]string, side string) {
		for _, p := range set.List() {
			if p.IsControlFlow || p.IsScoped() {
				continue
			}
			text, ok := sig[p.Name]
			if !ok {
				diags = append(diags, &model.Diagnostic{
					Code:     model.AnnotationSignatureMismatch,
					Severity: model.SeverityWarning,
					NodeID:   nt.DisplayName(),
					Message:  "annotated " + side + " port \"" + p.Name + "\" has no matching signature " + side,
				})
				continue
			}
			if p.TSType == "" && p.Kind != model.Any && p.Kind != hosttype.Infer(text) {
				diags = append(diags, &model.Diagnostic{
					Code:     model.AnnotationSignatureTypeMismatch,
					Severity: model.SeverityWarning,
					NodeID:   nt.DisplayName(),
					Message:  "annotated " + side + " port \"" + p.Name + "\" is " + string(p.Kind) + " but the signature infers " + string(hosttype.Infer(text)),
				})
			}
		}
	}
	check(nt.Inputs, sigParams, "input")
	check(nt.Outputs, sigResults, "output")

	return diags
}
