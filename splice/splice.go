// Package splice implements the in-place splice: replacing the two
// machine-owned region kinds a compiled file carries — RUNTIME_* (one
// package-level prelude block per file) and BODY_* (one generated body per
// workflow function) — without disturbing any user-authored byte outside
// them. Region bytes are sliced out of the raw source rather than
// re-printed through go/printer, so line endings, comment formatting, and
// unrelated declarations survive a recompile untouched.
package splice

import (
	"bytes"
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/printer"
	"go/token"
	"sort"
	"strings"

	"github.com/viant/afs"
	"golang.org/x/tools/go/ast/astutil"

	"github.com/flowweaver/fw/codegen"
)

// Sentinel markers delimiting machine-owned regions. Their exact text is
// part of the file format and is never altered once chosen.
const (
	runtimeBegin = "// flowweaver:RUNTIME:begin -- generated, do not edit"
	runtimeEnd   = "// flowweaver:RUNTIME:end"
	bodyBeginFmt = "// flowweaver:BODY:begin %s -- generated, do not edit"
	bodyEndFmt   = "// flowweaver:BODY:end %s"
)

// Request is one function's compiled output to splice into a file.
type Request struct {
	// FuncName is the workflow function whose BODY_* region is rewritten.
	FuncName string
	// Result is codegen's output for that function.
	Result *codegen.Result
}

// Apply splices the RUNTIME_* prelude and each request's BODY_* region into
// src, returning the updated source. It supports both first-time compile
// (no markers present: the prelude is inserted at file scope after the
// import declarations and each
// function's body is inserted at its closing brace) and recompile (markers
// present: only their interior is replaced). Import lines the results
// require are merged into the file's import block via
// golang.org/x/tools/go/ast/astutil so only that block's byte span is
// touched.
func Apply(src []byte, reqs []Request) ([]byte, error) {
	out, err := applyRuntime(src, reqs)
	if err != nil {
		return nil, err
	}
	for _, req := range reqs {
		out, err = applyBody(out, req)
		if err != nil {
			return nil, fmt.Errorf("splice: body region for %s: %w", req.FuncName, err)
		}
	}
	out, err = mergeImports(out, reqs)
	if err != nil {
		return nil, fmt.Errorf("splice: import merge: %w", err)
	}
	return out, nil
}

// applyRuntime replaces (or inserts, if absent) the single package-level
// RUNTIME_* region. Every request's Prelude is textually identical per
// codegen.Prelude's contract, so the first non-empty one is
// used; duplicates across requests are not re-emitted.
func applyRuntime(src []byte, reqs []Request) ([]byte, error) {
	prelude := ""
	for _, r := range reqs {
		if r.Result != nil && r.Result.Prelude != "" {
			prelude = r.Result.Prelude
			break
		}
	}
	if prelude == "" {
		return src, nil
	}
	block := runtimeBegin + "\n" + strings.TrimRight(prelude, "\n") + "\n" + runtimeEnd + "\n"

	start, end, ok := findRegion(src, runtimeBegin, runtimeEnd)
	if ok {
		var buf bytes.Buffer
		buf.Write(src[:start])
		buf.WriteString(block)
		buf.Write(src[end:])
		return buf.Bytes(), nil
	}

	insertAt, err := packageClauseEnd(src)
	if err != nil {
		return nil, err
	}
	// Imports must precede other declarations: go past the last import decl.
	fset := token.NewFileSet()
	if f, perr := parser.ParseFile(fset, "", src, parser.ImportsOnly); perr == nil {
		for _, d := range f.Decls {
			if gd, ok := d.(*ast.GenDecl); ok && gd.Tok == token.IMPORT {
				insertAt = fset.File(gd.Pos()).Offset(gd.End())
				for insertAt < len(src) && src[insertAt-1] != '\n' {
					insertAt++
				}
			}
		}
	}
	var buf bytes.Buffer
	buf.Write(src[:insertAt])
	buf.WriteString("\n")
	buf.WriteString(block)
	buf.Write(src[insertAt:])
	return buf.Bytes(), nil
}

// applyBody replaces (or inserts) req.FuncName's BODY_* region, which lives
// as the sole content of that function's block statement. On first-time
// compile the function must already exist (hand-declared by the user with
// an empty or placeholder body) so splice can locate its brace span;
// splice never creates a new
// function declaration.
func applyBody(src []byte, req Request) ([]byte, error) {
	begin := fmt.Sprintf(bodyBeginFmt, req.FuncName)
	end := fmt.Sprintf(bodyEndFmt, req.FuncName)
	body := begin + "\n" + strings.TrimRight(req.Result.Body, "\n") + "\n" + end + "\n"

	if start, stop, ok := findRegion(src, begin, end); ok {
		var buf bytes.Buffer
		buf.Write(src[:start])
		buf.WriteString(body)
		buf.Write(src[stop:])
		return buf.Bytes(), nil
	}

	openBrace, closeBrace, err := funcBodySpan(src, req.FuncName)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.Write(src[:openBrace+1])
	buf.WriteString("\n")
	buf.WriteString(body)
	buf.Write(src[closeBrace:])
	return buf.Bytes(), nil
}

// findRegion locates the byte span of a marker pair, including the marker
// lines themselves, so the caller can slice it out wholesale. It reports
// ok=false if begin is absent, and also when begin has no matching end, so
// a file hand-edited into a broken state falls back to first-time-compile
// insertion; no separate error is reported for the stray marker.
func findRegion(src []byte, begin, end string) (start, stop int, ok bool) {
	bi := bytes.Index(src, []byte(begin))
	if bi < 0 {
		return 0, 0, false
	}
	ei := bytes.Index(src[bi:], []byte(end))
	if ei < 0 {
		return 0, 0, false
	}
	stop = bi + ei + len(end)
	if stop < len(src) && src[stop] == '\n' {
		stop++
	}
	return bi, stop, true
}

// packageClauseEnd returns the byte offset just after the `package X`
// clause's line, the insertion point for a new import block and, in a
// file without imports, for the first-ever RUNTIME_* block.
func packageClauseEnd(src []byte) (int, error) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "", src, parser.PackageClauseOnly)
	if err != nil {
		return 0, fmt.Errorf("splice: parse package clause: %w", err)
	}
	tf := fset.File(f.Package)
	offset := tf.Offset(f.Name.End())
	for offset < len(src) && src[offset] != '\n' {
		offset++
	}
	if offset < len(src) {
		offset++
	}
	return offset, nil
}

// funcBodySpan returns the byte offsets of a top-level function's opening
// and closing braces.
func funcBodySpan(src []byte, funcName string) (open, close int, err error) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "", src, parser.ParseComments)
	if err != nil {
		return 0, 0, fmt.Errorf("splice: parse source: %w", err)
	}
	for _, decl := range f.Decls {
		fd, isFunc := decl.(*ast.FuncDecl)
		if !isFunc || fd.Name.Name != funcName || fd.Body == nil {
			continue
		}
		tf := fset.File(fd.Pos())
		return tf.Offset(fd.Body.Lbrace), tf.Offset(fd.Body.Rbrace), nil
	}
	return 0, 0, fmt.Errorf("splice: function %s not found", funcName)
}

// mergeImports ensures every import codegen's results require is present
// in src's import block, adding any missing ones via astutil.AddNamedImport
// and leaving every other byte of the file untouched. Imports already
// present (by path) are left exactly as the user wrote them, alias
// included, so a user-chosen alias is never silently overridden.
func mergeImports(src []byte, reqs []Request) ([]byte, error) {
	type want struct{ alias, path string }
	var wants []want
	seen := map[string]bool{}
	for _, r := range reqs {
		if r.Result == nil {
			continue
		}
		for _, imp := range r.Result.Imports {
			if seen[imp.Path] {
				continue
			}
			seen[imp.Path] = true
			wants = append(wants, want{imp.Alias, imp.Path})
		}
	}
	if len(wants) == 0 {
		return src, nil
	}
	sort.Slice(wants, func(i, j int) bool { return wants[i].path < wants[j].path })

	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "", src, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("splice: parse for import merge: %w", err)
	}

	before := importDeclSpan(fset, f)

	changed := false
	for _, w := range wants {
		if hasImport(f, w.path) {
			continue
		}
		alias := w.alias
		if alias == pathBase(w.path) {
			alias = ""
		}
		if astutil.AddNamedImport(fset, f, alias, w.path) {
			changed = true
		}
	}
	if !changed {
		return src, nil
	}

	decl := importDecl(f)
	if decl == nil {
		return src, nil
	}
	var buf bytes.Buffer
	if err := printer.Fprint(&buf, fset, decl); err != nil {
		return nil, fmt.Errorf("splice: print merged imports: %w", err)
	}
	newBlock := buf.Bytes()

	if before.ok {
		var out bytes.Buffer
		out.Write(src[:before.start])
		out.Write(newBlock)
		out.Write(src[before.end:])
		return out.Bytes(), nil
	}

	insertAt, err := packageClauseEnd(src)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	out.Write(src[:insertAt])
	out.WriteString("\n")
	out.Write(newBlock)
	out.WriteString("\n")
	out.Write(src[insertAt:])
	return out.Bytes(), nil
}

type byteSpan struct {
	start, end int
	ok         bool
}

// importDeclSpan returns the original byte span of f's first import
// declaration, before any modification, or ok=false if the file has none.
func importDeclSpan(fset *token.FileSet, f *ast.File) byteSpan {
	decl := importDecl(f)
	if decl == nil {
		return byteSpan{}
	}
	tf := fset.File(decl.Pos())
	return byteSpan{start: tf.Offset(decl.Pos()), end: tf.Offset(decl.End()), ok: true}
}

func importDecl(f *ast.File) *ast.GenDecl {
	for _, decl := range f.Decls {
		if gd, ok := decl.(*ast.GenDecl); ok && gd.Tok == token.IMPORT {
			return gd
		}
	}
	return nil
}

func hasImport(f *ast.File, path string) bool {
	for _, imp := range f.Imports {
		if strings.Trim(imp.Path.Value, `"`) == path {
			return true
		}
	}
	return false
}

func pathBase(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

// Strip removes every RUNTIME_* and BODY_* region from src, returning the
// user-authored text docparser classifies, so user annotations are seen
// untouched. Unlike Apply this never re-parses to AST; it is a pure
// byte-span operation so it tolerates files whose generated regions are
// momentarily inconsistent with valid Go (e.g. mid-edit).
func Strip(src []byte) []byte {
	out := src
	for {
		start, stop, ok := findRegion(out, runtimeBegin, runtimeEnd)
		if !ok {
			break
		}
		out = append(append([]byte{}, out[:start]...), out[stop:]...)
	}
	for {
		start, stop, ok := findAnyBodyRegion(out)
		if !ok {
			break
		}
		out = append(append([]byte{}, out[:start]...), out[stop:]...)
	}
	return out
}

// findAnyBodyRegion locates the first BODY_* region regardless of which
// function owns it, since Strip does not know function names in advance.
func findAnyBodyRegion(src []byte) (start, stop int, ok bool) {
	const prefix = "// flowweaver:BODY:begin "
	bi := bytes.Index(src, []byte(prefix))
	if bi < 0 {
		return 0, 0, false
	}
	lineEnd := bytes.IndexByte(src[bi:], '\n')
	if lineEnd < 0 {
		return 0, 0, false
	}
	beginLine := string(src[bi : bi+lineEnd])
	fields := strings.Fields(strings.TrimPrefix(beginLine, "// flowweaver:BODY:begin "))
	if len(fields) == 0 {
		return 0, 0, false
	}
	funcName := fields[0]
	end := fmt.Sprintf(bodyEndFmt, funcName)
	ei := bytes.Index(src[bi:], []byte(end))
	if ei < 0 {
		return 0, 0, false
	}
	stop = bi + ei + len(end)
	if stop < len(src) && src[stop] == '\n' {
		stop++
	}
	return bi, stop, true
}

// LoadSource downloads the Go source at url via fs, so compiled sources
// can live on any afs-supported scheme, not just the local "file://"
// default.
func LoadSource(ctx context.Context, fs afs.Service, url string) ([]byte, error) {
	if fs == nil {
		fs = afs.New()
	}
	data, err := fs.DownloadWithURL(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("splice: download %s: %w", url, err)
	}
	return data, nil
}

// StoreSource uploads the spliced source back to url via fs;
// afs.Service.Upload generalizes the write to any backing store.
func StoreSource(ctx context.Context, fs afs.Service, url string, content []byte) error {
	if fs == nil {
		fs = afs.New()
	}
	if err := fs.Upload(ctx, url, 0644, bytes.NewReader(content)); err != nil {
		return fmt.Errorf("splice: upload %s: %w", url, err)
	}
	return nil
}
