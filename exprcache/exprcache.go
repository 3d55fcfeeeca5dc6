// Package exprcache is a thread-safe LRU cache of compiled expr-lang
// programs, shared by the validator and code generator for `executeWhen:
// CUSTOM` expressions, so each distinct expression compiles once per
// process rather than once per consumer.
package exprcache

import (
	"container/list"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Cache is a capacity-bounded LRU cache mapping expression source to its
// compiled *vm.Program.
type Cache struct {
	capacity int
	entries  map[string]*list.Element
	order    *list.List
	mu       sync.RWMutex
}

type entry struct {
	key     string
	program *vm.Program
}

// New returns a Cache holding at most capacity compiled programs. A
// non-positive capacity defaults to 256.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = 256
	}
	return &Cache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Get returns the compiled program for source, if cached.
func (c *Cache) Get(source string) (*vm.Program, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[source]; ok {
		c.order.MoveToFront(el)
		return el.Value.(*entry).program, true
	}
	return nil, false
}

// Put stores a compiled program for source, evicting the least-recently-used
// entry if the cache is over capacity.
func (c *Cache) Put(source string, program *vm.Program) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[source]; ok {
		c.order.MoveToFront(el)
		el.Value.(*entry).program = program
		return
	}
	el := c.order.PushFront(&entry{key: source, program: program})
	c.entries[source] = el
	if c.order.Len() > c.capacity {
		c.evictOldest()
	}
}

func (c *Cache) evictOldest() {
	oldest := c.order.Back()
	if oldest == nil {
		return
	}
	c.order.Remove(oldest)
	delete(c.entries, oldest.Value.(*entry).key)
}

// Len returns the number of cached programs.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.order.Len()
}

// CompileBool compiles source as a boolean-valued expression against env,
// caching (and reusing) the result keyed by source text.
func (c *Cache) CompileBool(source string, env any) (*vm.Program, error) {
	if program, ok := c.Get(source); ok {
		return program, nil
	}
	program, err := expr.Compile(source, expr.Env(env), expr.AsBool())
	if err != nil {
		return nil, err
	}
	c.Put(source, program)
	return program, nil
}

// Run evaluates a cached/compiled boolean expression against env.
func (c *Cache) Run(source string, env map[string]bool) (bool, error) {
	anyEnv := make(map[string]any, len(env))
	for k, v := range env {
		anyEnv[k] = v
	}
	program, err := c.CompileBool(source, anyEnv)
	if err != nil {
		return false, err
	}
	out, err := expr.Run(program, anyEnv)
	if err != nil {
		return false, err
	}
	b, _ := out.(bool)
	return b, nil
}
