package golang

import (
	"go/ast"
	"os"
	"path/filepath"
	"strings"

	"github.com/flowweaver/fw/inspector/repository"
)

// ImportSpec is one import clause of an inspected file: the name it binds
// locally and the path it resolves.
type ImportSpec struct {
	Name string
	Path string
}

// ParseImports lists a file's import clauses, defaulting the local name to
// the path's last segment when no alias is given.
func ParseImports(file *ast.File) []ImportSpec {
	specs := make([]ImportSpec, 0, len(file.Imports))
	for _, imp := range file.Imports {
		path := strings.Trim(imp.Path.Value, `"`)
		name := path
		if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
			name = path[idx+1:]
		}
		if imp.Name != nil {
			name = imp.Name.Name
		}
		specs = append(specs, ImportSpec{Name: name, Path: path})
	}
	return specs
}

// FindPackageDir locates the directory backing a package import path, for
// the resolver's non-relative specifiers. Lookup order: a package inside
// the enclosing module (module path prefix stripped, remainder joined onto
// the detected module root), then the GOROOT/GOPATH source trees, then a
// best-effort scan of the module cache for any downloaded version of the
// path. The cache scan does not undo the cache's case-escaping; an
// uppercase import path that is only present in the cache stays unresolved.
func FindPackageDir(importPath string) (string, error) {
	if wd, err := os.Getwd(); err == nil {
		if dir, ok := dirWithinModule(wd, importPath); ok {
			return dir, nil
		}
	}

	for _, root := range []string{os.Getenv("GOROOT"), os.Getenv("GOPATH")} {
		if root == "" {
			continue
		}
		dir := filepath.Join(root, "src", filepath.FromSlash(importPath))
		if dirExists(dir) {
			return dir, nil
		}
	}

	if dir, ok := dirInModCache(importPath); ok {
		return dir, nil
	}
	return "", os.ErrNotExist
}

// dirWithinModule resolves an import path that belongs to the module
// enclosing startDir, using the same project detection the rest of the
// inspector relies on.
func dirWithinModule(startDir, importPath string) (string, bool) {
	project, err := repository.New().DetectProject(startDir)
	if err != nil || project.Type != "go" || project.Name == "" {
		return "", false
	}
	rel, ok := strings.CutPrefix(importPath, project.Name)
	if !ok {
		return "", false
	}
	dir := filepath.Join(project.RootPath, filepath.FromSlash(strings.TrimPrefix(rel, "/")))
	if !dirExists(dir) {
		return "", false
	}
	return dir, true
}

// dirInModCache scans the module cache for a versioned directory matching
// the import path's last segment, e.g. ".../go/pkg/mod/a/b/c@v1.2.3" for
// "a/b/c".
func dirInModCache(importPath string) (string, bool) {
	cache := filepath.Join(os.Getenv("HOME"), "go", "pkg", "mod")
	if gp := os.Getenv("GOPATH"); gp != "" {
		cache = filepath.Join(gp, "pkg", "mod")
	}

	base := importPath
	parent := cache
	if idx := strings.LastIndexByte(importPath, '/'); idx >= 0 {
		base = importPath[idx+1:]
		parent = filepath.Join(cache, filepath.FromSlash(importPath[:idx]))
	}

	entries, err := os.ReadDir(parent)
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), base+"@") {
			return filepath.Join(parent, e.Name()), true
		}
	}
	return "", false
}

// dirExists checks if a directory exists
func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
