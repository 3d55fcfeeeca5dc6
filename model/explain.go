package model

import "fmt"

// explanations maps diagnostic codes to their human-readable companion
// records. Codes without an entry here fall through to the diagnostic's raw message in
// Explain.
var explanations = map[DiagnosticCode]Explanation{
	MissingWorkflowName: {
		Title:       "Workflow has no name",
		Explanation: "Every workflow needs a name, either from @name or from the function it annotates.",
		Fix:         "Add a @name tag or attach the @flowWeaver workflow block to a named function.",
	},
	MissingFunctionName: {
		Title:       "Node type has no function",
		Explanation: "A node type must be bound to a function so the generated body can call it.",
		Fix:         "Attach the @flowWeaver nodeType block to a function declaration.",
	},
	DuplicateNodeName: {
		Title:       "Duplicate node type name",
		Explanation: "Two node types share the same name, so @node references are ambiguous.",
		Fix:         "Rename one of them with @name.",
	},
	ReservedNodeName: {
		Title:       "Reserved node type name",
		Explanation: "Start and Exit are pseudo-nodes the compiler synthesizes; a node type cannot take their names.",
		Fix:         "Pick a different @name.",
	},
	DuplicateInstanceID: {
		Title:       "Duplicate instance id",
		Explanation: "Instance ids must be unique within a workflow.",
		Fix:         "Rename one of the @node ids.",
	},
	ReservedInstanceID: {
		Title:       "Reserved instance id",
		Explanation: "Start and Exit are pseudo-nodes; @node cannot redeclare them.",
		Fix:         "Pick a different @node id.",
	},
	UnknownNodeType: {
		Title:       "Unknown node type",
		Explanation: "An instance references a node type that is neither declared in this file nor imported.",
		Fix:         "Declare the node type, add an @fwImport for it, or fix the spelling.",
	},
	UnknownSourceNode: {
		Title:       "Unknown connection source",
		Explanation: "A @connect line names a source node that is not declared.",
		Fix:         "Declare the node with @node or fix the spelling.",
	},
	UnknownTargetNode: {
		Title:       "Unknown connection target",
		Explanation: "A @connect line names a target node that is not declared.",
		Fix:         "Declare the node with @node or fix the spelling.",
	},
	UnknownSourcePort: {
		Title:       "Unknown source port",
		Explanation: "The source node has no output port by that name.",
		Fix:         "Check the node type's @output declarations and the function's named results.",
	},
	UnknownTargetPort: {
		Title:       "Unknown target port",
		Explanation: "The target node has no input port by that name.",
		Fix:         "Check the node type's @input declarations and the function's parameters.",
	},
	DuplicateConnection: {
		Title:       "Duplicate connection",
		Explanation: "The same edge is declared more than once; only the first takes effect.",
		Fix:         "Remove the duplicate @connect line.",
	},
	InvalidExecuteWhen: {
		Title:       "Invalid executeWhen",
		Explanation: "executeWhen must be conjunction, disjunction, or custom with a compilable expression.",
		Fix:         "Fix the @executeWhen value or the custom expression.",
	},
	InferredNodeType: {
		Title:       "Node type was inferred",
		Explanation: "The instance references an unannotated function; its ports were inferred from the signature alone.",
		Fix:         "Add a @flowWeaver nodeType block to make the ports explicit.",
	},
	NoStartConnections: {
		Title:       "Nothing starts",
		Explanation: "No control-flow edge leaves Start, so no node will ever execute.",
		Fix:         "Connect Start.execute to the first node, or use @path Start -> ...",
	},
	NoExitConnections: {
		Title:       "Nothing reaches Exit",
		Explanation: "No connection feeds Exit, so the workflow produces no result.",
		Fix:         "Route a terminal node to Exit.",
	},
	UnusedNode: {
		Title:       "Unreachable node",
		Explanation: "Control flow never reaches this instance.",
		Fix:         "Connect it into a path from Start, or remove it.",
	},
	UnusedOutputPort: {
		Title:       "Unused output",
		Explanation: "A data output is never consumed by any connection.",
		Fix:         "Connect it, or ignore this warning if the value is intentionally dropped.",
	},
	UnreachableExitPort: {
		Title:       "Exit port never set",
		Explanation: "A declared @returns port has no incoming connection, so it always holds its zero value.",
		Fix:         "Connect a node output to the exit port.",
	},
	MultipleExitConnections: {
		Title:       "Exit port set twice",
		Explanation: "Two connections feed the same exit port; the result is ambiguous.",
		Fix:         "Keep a single connection per exit port.",
	},
	MultipleConnectionsToInput: {
		Title:       "Input has two sources",
		Explanation: "Data inputs are single-source; only STEP inputs merge under an executeWhen strategy.",
		Fix:         "Remove one of the connections or insert a merge node.",
	},
	CycleDetected: {
		Title:       "Control-flow cycle",
		Explanation: "The control-flow graph contains a cycle, so no execution order exists. Iteration belongs in a scope (@map), not in a graph cycle.",
		Fix:         "Break the cycle, or express the loop with @map.",
	},
	TypeMismatch: {
		Title:       "Port type mismatch",
		Explanation: "The connected ports carry different kinds; the value will pass through a runtime assertion.",
		Fix:         "Align the types or insert a @coerce.",
	},
	TypeIncompatible: {
		Title:       "Incompatible port types",
		Explanation: "No implicit conversion exists between the connected kinds.",
		Fix:         "Insert a @coerce or change one of the ports.",
	},
	LossyTypeCoercion: {
		Title:       "Lossy coercion",
		Explanation: "The coercion can lose information (e.g. number to boolean).",
		Fix:         "Coerce to a wider kind, or accept the loss knowingly.",
	},
	UnusualTypeCoercion: {
		Title:       "Unusual coercion",
		Explanation: "The coercion is legal but rarely what was meant.",
		Fix:         "Double-check the source and target ports.",
	},
	StepPortTypeMismatch: {
		Title:       "STEP wired to data",
		Explanation: "A STEP port carries control flow only; it cannot feed or be fed by a data port.",
		Fix:         "Connect STEP ports to STEP ports.",
	},
	InvalidExitPortType: {
		Title:       "Invalid exit port type",
		Explanation: "Exit ports carry values out of the workflow; a FUNCTION-kind value cannot cross that boundary.",
		Fix:         "Return a data value instead.",
	},
	AnnotationSignatureMismatch: {
		Title:       "Annotation disagrees with signature",
		Explanation: "An @input/@output names a port the function signature does not have.",
		Fix:         "Rename the port or the parameter so they match.",
	},
	AnnotationSignatureTypeMismatch: {
		Title:       "Annotated type disagrees with signature",
		Explanation: "The port's annotated kind conflicts with the kind inferred from the function signature.",
		Fix:         "Drop the annotation override or change the parameter type.",
	},
	MissingRequiredInput: {
		Title:       "Required input unset",
		Explanation: "A non-optional input has no connection, no default, and no expression.",
		Fix:         "Connect it, give it a default, or mark it optional.",
	},
	ScopeEmpty: {
		Title:       "Empty scope",
		Explanation: "The scope declares no children, so its closure does nothing.",
		Fix:         "Reparent the iterated nodes into the scope, or remove it.",
	},
	ScopeInconsistent: {
		Title:       "Scope membership inconsistent",
		Explanation: "A child listed under a scope disagrees with its own parent reference.",
		Fix:         "Make the @scope list and the @node parentScope agree.",
	},
	ScopeConsistencyError: {
		Title:       "Scope membership missing",
		Explanation: "An instance claims a parent scope that does not list it.",
		Fix:         "Add the instance to the @scope declaration.",
	},
	ScopeWrongScopeName: {
		Title:       "Unknown scope name",
		Explanation: "The parent node type declares no scope by that name.",
		Fix:         "Use one of the parent's @scope names.",
	},
	ScopeConnectionOutside: {
		Title:       "Connection crosses scope boundary",
		Explanation: "Both endpoints of a scoped connection must carry the same scope.",
		Fix:         "Keep scoped connections inside the scope; pass values through the parent's scoped ports.",
	},
	ScopeUnknownPort: {
		Title:       "Unknown scoped port",
		Explanation: "A scoped connection references a port the scope owner does not declare for that scope.",
		Fix:         "Check the scoped port names on the parent node type.",
	},
	ScopeOrphanedChild: {
		Title:       "Orphaned scope child",
		Explanation: "A scope entry references an instance or parent that does not exist.",
		Fix:         "Fix the @scope declaration.",
	},
	ScopeMissingRequiredInput: {
		Title:       "Scoped input unset",
		Explanation: "A scoped input collects a child's output, but no child connection feeds it.",
		Fix:         "Connect a child output to the scoped input.",
	},
	ScopeUnusedInput: {
		Title:       "Scoped output unused",
		Explanation: "A scoped output supplies the closure's parameter, but no child consumes it.",
		Fix:         "Connect the scoped output to a child input, or remove the port.",
	},
}

// Explain rewrites a diagnostic into its human-readable companion record.
// Codes with no registered record fall through to the raw message, so new
// codes degrade gracefully rather than panicking or going silent.
func Explain(d *Diagnostic) Explanation {
	if e, ok := explanations[d.Code]; ok {
		return e
	}
	return Explanation{
		Title:       string(d.Code),
		Explanation: d.Message,
	}
}

// Format renders a diagnostic for terminal output: severity, code, message,
// and the node it concerns when known.
func (d *Diagnostic) Format() string {
	if d.NodeID != "" {
		return fmt.Sprintf("%s [%s] %s (node %s)", d.Severity, d.Code, d.Message, d.NodeID)
	}
	return fmt.Sprintf("%s [%s] %s", d.Severity, d.Code, d.Message)
}
