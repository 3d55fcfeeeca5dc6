// Package model defines the Flow Weaver workflow AST: ports, node types, node
// instances, connections, workflows, patterns, macros, and diagnostics. Every
// type here is a plain value with deterministic YAML serialization; the
// parser, validator, and generator all operate on these types without
// mutating shared state.
package model

// PortDirection is the direction data flows through a port.
type PortDirection string

const (
	Input  PortDirection = "INPUT"
	Output PortDirection = "OUTPUT"
)

// PortKind is the port type universe. STEP carries control flow only;
// FUNCTION carries a scope closure reference.
type PortKind string

const (
	Step    PortKind = "STEP"
	Boolean PortKind = "BOOLEAN"
	Number  PortKind = "NUMBER"
	String  PortKind = "STRING"
	Array   PortKind = "ARRAY"
	Object  PortKind = "OBJECT"
	Func    PortKind = "FUNCTION"
	Any     PortKind = "ANY"
)

// Placement is where an unordered port visually sorts.
type Placement string

const (
	Top    Placement = "TOP"
	Bottom Placement = "BOTTOM"
)

// NodeVariant discriminates the node-type tagged union: functions,
// imported workflows, synthetic map iterators, coercions, and stubs each
// carry their own construction invariants, checked in NodeType.Validate.
type NodeVariant string

const (
	VariantFunction         NodeVariant = "FUNCTION"
	VariantImportedWorkflow NodeVariant = "IMPORTED_WORKFLOW"
	VariantMapIterator      NodeVariant = "MAP_ITERATOR"
	VariantCoercion         NodeVariant = "COERCION"
	VariantStub             NodeVariant = "STUB"
)

// ExecuteWhen is the merge strategy for multiple incoming STEP edges.
type ExecuteWhen string

const (
	Conjunction ExecuteWhen = "CONJUNCTION"
	Disjunction ExecuteWhen = "DISJUNCTION"
	Custom      ExecuteWhen = "CUSTOM"
)

// Severity is a diagnostic's severity level.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Reserved names.
const (
	StartNode = "Start"
	ExitNode  = "Exit"

	PortExecute   = "execute"
	PortOnSuccess = "onSuccess"
	PortOnFailure = "onFailure"

	ScopeStart   = "start"
	ScopeSuccess = "success"
	ScopeFailure = "failure"
)
