package model

import "fmt"

// ImportDecl is one `@fwImport` tag resolved into a Workflow.
type ImportDecl struct {
	Name         string `yaml:"name"`
	FunctionName string `yaml:"functionName"`
	Module       string `yaml:"module"`
}

// WorkflowOptions carries the workflow-level `@strictTypes`, `@autoConnect`,
// `@trigger`, `@cancelOn`, `@retries`, `@timeout`, `@throttle` tags.
type WorkflowOptions struct {
	StrictTypes bool `yaml:"strictTypes,omitempty"`
	AutoConnect bool `yaml:"autoConnect,omitempty"`

	TriggerEvent string `yaml:"triggerEvent,omitempty"`
	TriggerCron  string `yaml:"triggerCron,omitempty"`

	CancelOnEvent   string `yaml:"cancelOnEvent,omitempty"`
	CancelOnMatch   string `yaml:"cancelOnMatch,omitempty"`
	CancelOnTimeout string `yaml:"cancelOnTimeout,omitempty"`

	Retries int    `yaml:"retries,omitempty"`
	Timeout string `yaml:"timeout,omitempty"`

	ThrottleLimit  int    `yaml:"throttleLimit,omitempty"`
	ThrottlePeriod string `yaml:"throttlePeriod,omitempty"`
}

// UIHints are cosmetic positions for the Start/Exit pseudo-nodes.
type UIHints struct {
	StartNode *InstanceConfig `yaml:"startNode,omitempty"`
	ExitNode  *InstanceConfig `yaml:"exitNode,omitempty"`
}

// Workflow is one compiled `@flowWeaver workflow` block.
type Workflow struct {
	Name         string `yaml:"name"`
	FunctionName string `yaml:"functionName"`
	SourceFile   string `yaml:"sourceFile"`

	NodeTypes   []*NodeType     `yaml:"nodeTypes"`
	Instances   []*NodeInstance `yaml:"instances"`
	Connections []*Connection   `yaml:"connections"`

	// Scopes maps "parentId.scopeName" to the ids of instances reparented
	// into that scope.
	Scopes map[string][]string `yaml:"scopes,omitempty"`

	StartPorts *PortSet `yaml:"startPorts"`
	ExitPorts  *PortSet `yaml:"exitPorts"`

	Imports []ImportDecl `yaml:"imports,omitempty"`
	Macros  []Macro      `yaml:"macros,omitempty"`

	UI      UIHints         `yaml:"ui,omitempty"`
	Options WorkflowOptions `yaml:"options,omitempty"`

	UserSpecifiedAsync bool `yaml:"userSpecifiedAsync,omitempty"`

	// AvailableFunctionNames lists every same-file function name, consulted
	// by the auto-inference rule for unannotated @node references.
	AvailableFunctionNames []string `yaml:"availableFunctionNames,omitempty"`

	nodeTypeIndex map[string]int
	instanceIndex map[string]int
}

// IndexNodeTypes builds the by-name lookup index; call after mutating
// NodeTypes in bulk (mirrors graph.File.IndexFunctions).
func (w *Workflow) IndexNodeTypes() {
	w.nodeTypeIndex = make(map[string]int, len(w.NodeTypes))
	for i, nt := range w.NodeTypes {
		w.nodeTypeIndex[nt.DisplayName()] = i
	}
}

// LookupNodeType returns the node type by name, or nil.
func (w *Workflow) LookupNodeType(name string) *NodeType {
	if w.nodeTypeIndex == nil {
		w.IndexNodeTypes()
	}
	if idx, ok := w.nodeTypeIndex[name]; ok {
		return w.NodeTypes[idx]
	}
	return nil
}

// IndexInstances builds the by-id lookup index; call after mutating
// Instances in bulk.
func (w *Workflow) IndexInstances() {
	w.instanceIndex = make(map[string]int, len(w.Instances))
	for i, inst := range w.Instances {
		w.instanceIndex[inst.ID] = i
	}
}

// LookupInstance returns the instance by id, or nil.
func (w *Workflow) LookupInstance(id string) *NodeInstance {
	if w.instanceIndex == nil {
		w.IndexInstances()
	}
	if idx, ok := w.instanceIndex[id]; ok {
		return w.Instances[idx]
	}
	return nil
}

// AddConnection appends a connection, deduping by Key.
func (w *Workflow) AddConnection(c *Connection) bool {
	key := c.Key()
	for _, existing := range w.Connections {
		if existing.Key() == key {
			return false
		}
	}
	w.Connections = append(w.Connections, c)
	return true
}

// Validate checks structural invariants the model itself can enforce
// without cross-referencing the full registry (full structural/typing/scope
// checks are the validator's job).
func (w *Workflow) Validate() error {
	if w.Name == "" && w.FunctionName == "" {
		return fmt.Errorf("workflow: name or functionName is required")
	}
	seen := make(map[string]bool, len(w.Instances))
	for _, inst := range w.Instances {
		if err := inst.Validate(); err != nil {
			return err
		}
		if seen[inst.ID] {
			return fmt.Errorf("workflow %s: duplicate instance id %q", w.DisplayName(), inst.ID)
		}
		seen[inst.ID] = true
	}
	for _, c := range w.Connections {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("workflow %s: %w", w.DisplayName(), err)
		}
	}
	return nil
}

// DisplayName returns Name, defaulting to FunctionName.
func (w *Workflow) DisplayName() string {
	if w.Name != "" {
		return w.Name
	}
	return w.FunctionName
}
