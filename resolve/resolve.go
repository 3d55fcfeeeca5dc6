// Package resolve implements the import resolver and cache: relative
// and package-style `@fwImport` specifiers are resolved to a parsed
// graph.File, results are cached by (mtime, content hash), and a per-parse
// import stack detects cycles and reports the full chain. Package
// resolution walks project markers via inspector/repository; cache keys
// hash content through inspector/graph.Hash.
package resolve

import (
	"container/list"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/flowweaver/fw/inspector/golang"
	"github.com/flowweaver/fw/inspector/graph"
	"github.com/viant/afs"
)

// CycleError reports an import cycle with its full chain.
type CycleError struct {
	Chain []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("import cycle: %s", strings.Join(e.Chain, " -> "))
}

type cacheEntry struct {
	path  string
	mtime time.Time
	hash  uint64
	file  *graph.File
}

// Resolver resolves `@fwImport` specifiers to parsed graph.Files, caching
// results keyed by resolved absolute path.
type Resolver struct {
	config   *graph.Config
	fs       afs.Service
	capacity int

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List
}

// New returns a Resolver. A non-positive capacity defaults to 512 cached
// files.
func New(config *graph.Config, capacity int) *Resolver {
	if capacity <= 0 {
		capacity = 512
	}
	return &Resolver{
		config:   config,
		fs:       afs.New(),
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Resolve resolves specifier as imported from fromFile, parsing (or reusing
// a cached parse of) the target file. stack is the chain of paths already
// being resolved in this call tree, used for cycle detection; pass nil at
// the top level.
func (r *Resolver) Resolve(fromFile, specifier string, stack []string) (*graph.File, error) {
	resolvedPath, err := resolvePath(fromFile, specifier, r.config)
	if err != nil {
		return nil, fmt.Errorf("resolve %q from %q: %w", specifier, fromFile, err)
	}

	for _, seen := range stack {
		if seen == resolvedPath {
			chain := append(append([]string{}, stack...), resolvedPath)
			return nil, &CycleError{Chain: chain}
		}
	}

	return r.load(resolvedPath)
}

// ResolveExternal parses specifier without touching the cache.
func (r *Resolver) ResolveExternal(fromFile, specifier string) (*graph.File, error) {
	resolvedPath, err := resolvePath(fromFile, specifier, r.config)
	if err != nil {
		return nil, fmt.Errorf("resolve %q from %q: %w", specifier, fromFile, err)
	}
	content, err := os.ReadFile(resolvedPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", resolvedPath, err)
	}
	return parseSource(resolvedPath, content, r.config)
}

// load applies the fast paths in order: unchanged mtime, reuse; unchanged
// content hash ⇒ touch mtime and reuse; otherwise full re-parse.
func (r *Resolver) load(path string) (*graph.File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	mtime := info.ModTime()

	r.mu.Lock()
	if el, ok := r.entries[path]; ok {
		entry := el.Value.(*cacheEntry)
		if entry.mtime.Equal(mtime) {
			r.order.MoveToFront(el)
			r.mu.Unlock()
			return entry.file, nil
		}
	}
	r.mu.Unlock()

	content, err := r.readAll(path)
	if err != nil {
		return nil, err
	}
	hash, err := graph.Hash(content)
	if err != nil {
		return nil, fmt.Errorf("hash %s: %w", path, err)
	}

	r.mu.Lock()
	if el, ok := r.entries[path]; ok {
		entry := el.Value.(*cacheEntry)
		if entry.hash == hash {
			entry.mtime = mtime
			r.order.MoveToFront(el)
			r.mu.Unlock()
			return entry.file, nil
		}
	}
	r.mu.Unlock()

	file, err := parseSource(path, content, r.config)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if el, ok := r.entries[path]; ok {
		r.order.MoveToFront(el)
		entry := el.Value.(*cacheEntry)
		entry.mtime, entry.hash, entry.file = mtime, hash, file
	} else {
		el := r.order.PushFront(&cacheEntry{path: path, mtime: mtime, hash: hash, file: file})
		r.entries[path] = el
		if r.order.Len() > r.capacity {
			r.evictOldest()
		}
	}
	return file, nil
}

func (r *Resolver) evictOldest() {
	oldest := r.order.Back()
	if oldest == nil {
		return
	}
	r.order.Remove(oldest)
	delete(r.entries, oldest.Value.(*cacheEntry).path)
}

func (r *Resolver) readAll(path string) ([]byte, error) {
	content, err := r.fs.DownloadWithURL(context.Background(), path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return content, nil
}

// Len reports how many parsed files are currently cached.
func (r *Resolver) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.order.Len()
}

func parseSource(path string, content []byte, config *graph.Config) (*graph.File, error) {
	if config == nil {
		config = &graph.Config{}
	}
	inspector := golang.NewInspector(config)
	file, err := inspector.InspectSource(content)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	file.Path = path
	file.Name = filepath.Base(path)
	return file, nil
}

// resolvePath resolves a specifier, adapted to a Go-only
// host: relative specifiers resolve against the importing file's directory,
// trying a sibling ".go" file then a directory lookup (preferring a
// package-"main" or directory-named file, the Go analogue of
// "directory with package main, then index.*"); non-relative specifiers are
// resolved as package import paths via the Go toolchain's module/GOPATH
// search (inspector/golang.FindPackageDir).
func resolvePath(fromFile, specifier string, config *graph.Config) (string, error) {
	if strings.HasPrefix(specifier, ".") {
		baseDir := filepath.Dir(fromFile)
		candidate := filepath.Join(baseDir, specifier)

		if direct := candidate + ".go"; fileExists(direct) {
			return filepath.Abs(direct)
		}
		if fileExists(candidate) && !isDir(candidate) {
			return filepath.Abs(candidate)
		}
		if isDir(candidate) {
			picked, err := pickPackageFile(candidate, config)
			if err != nil {
				return "", err
			}
			return filepath.Abs(picked)
		}
		return "", fmt.Errorf("no such file or directory: %s", candidate)
	}

	dir, err := golang.FindPackageDir(specifier)
	if err != nil {
		return "", fmt.Errorf("package %q not found: %w", specifier, err)
	}
	picked, err := pickPackageFile(dir, config)
	if err != nil {
		return "", err
	}
	return filepath.Abs(picked)
}

// pickPackageFile chooses the one file within dir that stands in for the
// package, preferring "main.go", then "<dirbase>.go", then the
// lexicographically first remaining ".go" file.
func pickPackageFile(dir string, config *graph.Config) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read dir %s: %w", dir, err)
	}
	var candidates []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".go") {
			continue
		}
		if config != nil && config.SkipTests && strings.HasSuffix(e.Name(), "_test.go") {
			continue
		}
		candidates = append(candidates, e.Name())
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("no Go files in %s", dir)
	}
	sort.Strings(candidates)

	base := filepath.Base(dir) + ".go"
	for _, name := range []string{"main.go", base} {
		for _, c := range candidates {
			if c == name {
				return filepath.Join(dir, c), nil
			}
		}
	}
	return filepath.Join(dir, candidates[0]), nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
