// Package runtime defines the minimal contract the generated workflow body
// is written against: per-execution indices, output-variable
// storage, status events, scope contexts, and cooperative cancellation. The
// execution engine that schedules checkpoints, persists them, and fans
// status events out to observers/mocks is explicitly out of scope; this
// package is the call surface codegen emits against: a RUNNING/SUCCEEDED/
// FAILED status lifecycle and a per-execution variable store, reduced to
// what one compiled function needs at call time.
package runtime

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Status is the per-node lifecycle a generated body reports.
type Status string

const (
	StatusRunning   Status = "RUNNING"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
)

// StatusEvent is one RUNNING/SUCCEEDED/FAILED transition for a single node
// instance within a single workflow execution.
type StatusEvent struct {
	NodeID         string
	ExecutionIndex int
	Status         Status
	Err            error
}

// VarRef addresses one stored output variable by instance id, port name,
// execution index, and node type name.
type VarRef struct {
	InstanceID     string
	Port           string
	ExecutionIndex int
	NodeTypeName   string
}

func (r VarRef) key() string {
	return fmt.Sprintf("%s.%s#%d", r.InstanceID, r.Port, r.ExecutionIndex)
}

// CancellationError is raised before every node call when the enclosing
// context.Context is already done.
type CancellationError struct {
	NodeID string
}

func (e *CancellationError) Error() string {
	return fmt.Sprintf("workflow cancelled before node %q", e.NodeID)
}

// Logger is the subset of a structured logger's API the generated code and
// this package need. ZerologAdapter (logger_zerolog.go) implements it over
// github.com/rs/zerolog, the ambient logging choice this repository uses
// everywhere else; it is an interface here so callers may substitute a
// no-op logger in tests without importing zerolog.
type Logger interface {
	Debug(msg string, fields map[string]any)
	Error(msg string, err error, fields map[string]any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, map[string]any)       {}
func (nopLogger) Error(string, error, map[string]any) {}

// Context is the per-execution runtime handle the generated body threads
// through every node call. A fresh root Context is created once
// per top-level workflow invocation; ScopeContext layers an isolated
// namespace over it for each scope-closure invocation (e.g. one @map
// iteration), merged back into the parent on completion so variables never
// leak across iterations.
type Context struct {
	ctx context.Context
	log Logger

	mu       sync.Mutex
	vars     map[string]any
	counts   map[string]int
	registry map[string]any
}

// NewContext creates a fresh root Context for one workflow invocation. A
// nil log discards every status event.
func NewContext(ctx context.Context, log Logger) *Context {
	if log == nil {
		log = nopLogger{}
	}
	return &Context{
		ctx:      ctx,
		log:      log,
		vars:     make(map[string]any),
		counts:   make(map[string]int),
		registry: make(map[string]any),
	}
}

// NewExecutionIndex allocates the next execution index for instanceID,
// starting at 0, used to disambiguate re-entrant invocations of the same
// node instance across loop iterations.
func (c *Context) NewExecutionIndex(instanceID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := c.counts[instanceID]
	c.counts[instanceID] = idx + 1
	return idx
}

// SetVariable stores one output port's value.
func (c *Context) SetVariable(ref VarRef, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vars[ref.key()] = value
}

// GetVariable retrieves a previously stored output port value.
func (c *Context) GetVariable(ref VarRef) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.vars[ref.key()]
	return v, ok
}

// RegisterFunction makes a FUNCTION-kind value resolvable by name, backing
// "connection (with FUNCTION-type registry resolution)" input resolution
// for data ports that carry callables between nodes (not to be
// confused with scope closures, which are generated as direct Go closures).
func (c *Context) RegisterFunction(name string, fn any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.registry[name] = fn
}

// ResolveFunction looks up a previously registered FUNCTION-kind value.
func (c *Context) ResolveFunction(name string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn, ok := c.registry[name]
	return fn, ok
}

// SendStatusChangedEvent is the generated body's observability hook; the
// default Context only logs it. A real execution engine (out of scope
// here) would fan this out to observers, mocks, and checkpoint writers.
func (c *Context) SendStatusChangedEvent(ev StatusEvent) {
	fields := map[string]any{"nodeId": ev.NodeID, "executionIndex": ev.ExecutionIndex, "status": string(ev.Status)}
	if ev.Err != nil {
		c.log.Error("node status changed", ev.Err, fields)
		return
	}
	c.log.Debug("node status changed", fields)
}

// Cancelled reports whether the enclosing context.Context has already been
// cancelled.
func (c *Context) Cancelled() bool {
	if c.ctx == nil {
		return false
	}
	select {
	case <-c.ctx.Done():
		return true
	default:
		return false
	}
}

// Checkpoint is the per-node progress record an execution engine persists
// after each node completes. This package only produces it; scheduling,
// storage, and resume are the engine's concern.
type Checkpoint struct {
	Version          int            `yaml:"version"`
	WorkflowHash     uint64         `yaml:"workflowHash"`
	CompletedNodes   []string       `yaml:"completedNodes"`
	ExecutionOrder   []string       `yaml:"executionOrder"`
	Position         int            `yaml:"position"`
	Variables        map[string]any `yaml:"variables"`
	ExecutionCounter int            `yaml:"executionCounter"`
	NodeExecutions   map[string]int `yaml:"nodeExecutionCounts"`
	UnsafeNodes      []string       `yaml:"unsafeNodes,omitempty"`
}

// Snapshot captures the context's current variable and execution state as a
// Checkpoint. Node boundaries in the generated body make this well-defined:
// it is only called between node frames, never mid-call.
func (c *Context) Snapshot(workflowHash uint64, executionOrder []string, position int) *Checkpoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	vars := make(map[string]any, len(c.vars))
	for k, v := range c.vars {
		vars[k] = v
	}
	counts := make(map[string]int, len(c.counts))
	total := 0
	var completed []string
	for k, v := range c.counts {
		counts[k] = v
		total += v
		completed = append(completed, k)
	}
	sort.Strings(completed)
	return &Checkpoint{
		Version:          1,
		WorkflowHash:     workflowHash,
		CompletedNodes:   completed,
		ExecutionOrder:   executionOrder,
		Position:         position,
		Variables:        vars,
		ExecutionCounter: total,
		NodeExecutions:   counts,
	}
}

// ScopeContext is a per-call scoped variable namespace, created fresh for
// every closure invocation and merged back into the parent afterward.
type ScopeContext struct {
	*Context
	parent *Context
}

// CreateScope opens an isolated scope context for one closure invocation
// parentID, parentIdx, and scopeName identify the call site for diagnostics/checkpointing; they are
// not otherwise interpreted here since checkpoint persistence is out of
// scope.
func (c *Context) CreateScope(parentID string, parentIdx int, scopeName string, cleanScope bool) *ScopeContext {
	child := NewContext(c.ctx, c.log)
	if !cleanScope {
		c.mu.Lock()
		for k, v := range c.vars {
			child.vars[k] = v
		}
		c.mu.Unlock()
	}
	return &ScopeContext{Context: child, parent: c}
}

// Merge folds the scope's variables back into the parent Context.
func (s *ScopeContext) Merge() {
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()
	s.Context.mu.Lock()
	defer s.Context.mu.Unlock()
	for k, v := range s.Context.vars {
		s.parent.vars[k] = v
	}
}
