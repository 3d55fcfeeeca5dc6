// Package golang implements the Go-dialect host-source oracle: it extracts
// function declarations, their doc comments, and their signatures from Go
// source, which is everything the signature extractor and the doc-comment
// parser need from the host language.
package golang

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"

	"github.com/flowweaver/fw/inspector/graph"
)

// Inspector walks Go source and extracts function declarations.
type Inspector struct {
	fset   *token.FileSet
	config *graph.Config
	src    []byte
}

// NewInspector creates an Inspector with the given configuration.
func NewInspector(config *graph.Config) *Inspector {
	if config == nil {
		config = &graph.Config{}
	}
	return &Inspector{
		fset:   token.NewFileSet(),
		config: config,
	}
}

const defaultFilename = "source.go"

// InspectSource parses Go source from a byte slice and extracts its functions.
func (i *Inspector) InspectSource(src []byte) (*graph.File, error) {
	i.src = src
	file, err := parser.ParseFile(i.fset, defaultFilename, src, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("failed to parse source: %w", err)
	}
	return i.processFile(file, defaultFilename)
}

// InspectFile parses a Go source file from disk and extracts its functions.
func (i *Inspector) InspectFile(filename string) (*graph.File, error) {
	src, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filename, err)
	}
	i.src = src
	file, err := parser.ParseFile(i.fset, filename, src, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("failed to parse file %s: %w", filename, err)
	}
	return i.processFile(file, filename)
}

func (i *Inspector) processFile(file *ast.File, filename string) (*graph.File, error) {
	importMap := buildImportMap(file)
	imports := ParseImports(file)

	infoFile := &graph.File{
		Name:       filepath.Base(filename),
		Path:       filename,
		Package:    file.Name.Name,
		ImportPath: getImportPath(filename),
		Imports:    make([]graph.Import, len(imports)),
	}
	for idx, imp := range imports {
		infoFile.Imports[idx] = graph.Import{Name: imp.Name, Path: imp.Path}
	}

	for _, decl := range file.Decls {
		funcDecl, ok := decl.(*ast.FuncDecl)
		if !ok {
			continue
		}
		if funcDecl.Recv != nil {
			// Flow Weaver annotates package-level functions only.
			continue
		}
		if !i.config.IncludeUnexported && !funcDecl.Name.IsExported() {
			continue
		}
		infoFile.Functions = append(infoFile.Functions, i.processFunction(funcDecl, importMap))
	}
	infoFile.IndexFunctions()

	return infoFile, nil
}

func (i *Inspector) processFunction(decl *ast.FuncDecl, importMap map[string]string) *graph.Function {
	fn := &graph.Function{
		Name:       decl.Name.Name,
		IsExported: decl.Name.IsExported(),
		Params:     i.processFields(decl.Type.Params, importMap),
		Results:    i.processFields(decl.Type.Results, importMap),
		BodyStart:  -1,
	}

	if decl.Type.Params != nil {
		fields := decl.Type.Params.List
		if n := len(fields); n > 0 {
			if _, ok := fields[n-1].Type.(*ast.Ellipsis); ok {
				fn.IsVariadic = true
			}
		}
	}

	if decl.Doc != nil {
		fn.Doc = &graph.LocationNode{
			Text: decl.Doc.Text(),
			Location: graph.Location{
				Start: i.fset.Position(decl.Doc.Pos()).Offset,
				End:   i.fset.Position(decl.Doc.End()).Offset,
				Raw:   i.sliceRaw(decl.Doc.Pos(), decl.Doc.End()),
			},
		}
	}

	start := decl.Pos()
	if decl.Doc != nil {
		start = decl.Doc.Pos()
	}
	fn.Location = &graph.Location{
		Start: i.fset.Position(start).Offset,
		End:   i.fset.Position(decl.End()).Offset,
		Raw:   i.sliceRaw(start, decl.End()),
	}
	if decl.Body != nil {
		fn.BodyStart = i.fset.Position(decl.Body.Pos()).Offset
	}

	hash, _ := graph.Hash([]byte(fn.Location.Raw))
	fn.Hash = hash

	return fn
}

// processFields converts a parameter or result field list into named
// Parameters. Unnamed results are exposed as a single field named "result"
// so the single return value maps onto a port without a name of its own.
func (i *Inspector) processFields(fields *ast.FieldList, importMap map[string]string) []*graph.Parameter {
	if fields == nil {
		return nil
	}
	var result []*graph.Parameter
	for _, field := range fields.List {
		typeText := exprToString(field.Type, importMap)
		if len(field.Names) == 0 {
			name := ""
			if len(fields.List) == 1 {
				name = "result"
			}
			result = append(result, &graph.Parameter{Name: name, TypeText: typeText})
			continue
		}
		for _, name := range field.Names {
			result = append(result, &graph.Parameter{Name: name.Name, TypeText: typeText})
		}
	}
	return result
}

func (i *Inspector) sliceRaw(from, to token.Pos) string {
	if i.src == nil {
		return ""
	}
	start := i.fset.Position(from).Offset
	end := i.fset.Position(to).Offset
	if start < 0 || end > len(i.src) || start > end {
		return ""
	}
	return string(i.src[start:end])
}
