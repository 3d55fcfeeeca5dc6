package golang

import (
	"go/ast"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/flowweaver/fw/inspector/repository"
)

// buildImportMap maps a file's local import names to their full paths, used
// to render qualified type names in exprToString.
func buildImportMap(file *ast.File) map[string]string {
	importMap := make(map[string]string, len(file.Imports))
	for _, imp := range file.Imports {
		path := strings.Trim(imp.Path.Value, `"`)
		name := ""
		if imp.Name != nil {
			name = imp.Name.Name
		} else {
			parts := strings.Split(path, "/")
			name = parts[len(parts)-1]
		}
		importMap[name] = path
	}
	return importMap
}

// exprToString renders a Go type expression back to its source text. This is
// the host-type text hosttype.Infer consumes and the signature
// extractor relies on for parameter/result type text.
func exprToString(expr ast.Expr, importMap map[string]string) string {
	if expr == nil {
		return ""
	}
	switch e := expr.(type) {
	case *ast.Ident:
		return e.Name
	case *ast.SelectorExpr:
		pkg := exprToString(e.X, importMap)
		return pkg + "." + e.Sel.Name
	case *ast.StarExpr:
		return "*" + exprToString(e.X, importMap)
	case *ast.ArrayType:
		if e.Len == nil {
			return "[]" + exprToString(e.Elt, importMap)
		}
		return "[" + exprToString(e.Len, importMap) + "]" + exprToString(e.Elt, importMap)
	case *ast.MapType:
		return "map[" + exprToString(e.Key, importMap) + "]" + exprToString(e.Value, importMap)
	case *ast.InterfaceType:
		if e.Methods == nil || len(e.Methods.List) == 0 {
			return "interface{}"
		}
		return "interface{...}"
	case *ast.StructType:
		return "struct{...}"
	case *ast.ChanType:
		switch e.Dir {
		case ast.SEND:
			return "chan<- " + exprToString(e.Value, importMap)
		case ast.RECV:
			return "<-chan " + exprToString(e.Value, importMap)
		default:
			return "chan " + exprToString(e.Value, importMap)
		}
	case *ast.FuncType:
		return formatFuncType(e, importMap)
	case *ast.Ellipsis:
		return "..." + exprToString(e.Elt, importMap)
	case *ast.IndexExpr:
		return exprToString(e.X, importMap) + "[" + exprToString(e.Index, importMap) + "]"
	case *ast.IndexListExpr:
		parts := make([]string, len(e.Indices))
		for i, idx := range e.Indices {
			parts[i] = exprToString(idx, importMap)
		}
		return exprToString(e.X, importMap) + "[" + strings.Join(parts, ", ") + "]"
	case *ast.ParenExpr:
		return "(" + exprToString(e.X, importMap) + ")"
	case *ast.BasicLit:
		return e.Value
	case *ast.UnaryExpr:
		return e.Op.String() + exprToString(e.X, importMap)
	case *ast.BinaryExpr:
		return exprToString(e.X, importMap) + " " + e.Op.String() + " " + exprToString(e.Y, importMap)
	}
	return "any"
}

// formatFuncType renders a function type expression, including named
// results, which is how a callback's parameter and return-field types
// are recovered.
func formatFuncType(ft *ast.FuncType, importMap map[string]string) string {
	var b strings.Builder
	b.WriteString("func(")
	if ft.Params != nil {
		writeFieldList(&b, ft.Params, importMap)
	}
	b.WriteByte(')')
	if ft.Results != nil && len(ft.Results.List) > 0 {
		b.WriteByte(' ')
		multi := len(ft.Results.List) > 1 || len(ft.Results.List[0].Names) > 1
		if multi {
			b.WriteByte('(')
		}
		writeFieldList(&b, ft.Results, importMap)
		if multi {
			b.WriteByte(')')
		}
	}
	return b.String()
}

func writeFieldList(b *strings.Builder, fields *ast.FieldList, importMap map[string]string) {
	first := true
	for _, field := range fields.List {
		typeText := exprToString(field.Type, importMap)
		if len(field.Names) == 0 {
			if !first {
				b.WriteString(", ")
			}
			b.WriteString(typeText)
			first = false
			continue
		}
		for _, name := range field.Names {
			if !first {
				b.WriteString(", ")
			}
			b.WriteString(name.Name)
			b.WriteByte(' ')
			b.WriteString(typeText)
			first = false
		}
	}
}

// extractBaseTypeName strips pointer and generic-instantiation decoration
// from a rendered type name, e.g. "*Foo[int]" -> "Foo".
func extractBaseTypeName(typeName string) string {
	name := strings.TrimPrefix(typeName, "*")
	if idx := strings.IndexByte(name, '['); idx >= 0 {
		name = name[:idx]
	}
	if idx := strings.LastIndexByte(name, '.'); idx >= 0 {
		name = name[idx+1:]
	}
	return name
}

// getImportPath derives a best-effort package import path from a file path
// by combining it with the enclosing module's path, falling back to the
// directory name when no go.mod can be found.
func getImportPath(filename string) string {
	return importPathForDir(filepath.Dir(filename))
}

func importPathForDir(dir string) string {
	detector := repository.New()
	project, err := detector.DetectProject(dir)
	if err != nil || project.Name == "" || project.Type != "go" {
		return filepath.Base(dir)
	}
	rel := strings.TrimPrefix(filepath.ToSlash(dir), filepath.ToSlash(project.RootPath))
	rel = strings.TrimPrefix(rel, "/")
	if rel == "" {
		return project.Name
	}
	return project.Name + "/" + rel
}

func quote(s string) string {
	return strconv.Quote(s)
}

// ExprText renders a type expression with no import qualification, for
// callers that re-parse captured type text (e.g. callback signatures)
// outside a full file context.
func ExprText(expr ast.Expr) string {
	return exprToString(expr, nil)
}
