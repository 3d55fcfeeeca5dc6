// Package hosttype maps host types into the port universe: a
// Go type-text string, as produced by inspector/golang's exprToString, to a
// PortKind.
package hosttype

import (
	"strings"

	"github.com/flowweaver/fw/model"
)

// Infer maps a Go type expression's rendered text to a PortKind. Rules are
// applied in order; the first match wins.
func Infer(typeText string) model.PortKind {
	t := strings.TrimSpace(typeText)
	t = strings.TrimPrefix(t, "*")

	switch t {
	case "bool":
		return model.Boolean
	case "string":
		return model.String
	case "any", "interface{}", "interface{...}":
		return model.Any
	}

	if isNumeric(t) {
		return model.Number
	}
	if strings.HasPrefix(t, "[]") || strings.HasPrefix(t, "[") {
		return model.Array
	}
	if strings.HasPrefix(t, "func(") {
		return model.Func
	}
	if strings.HasPrefix(t, "map[") || strings.HasPrefix(t, "struct{") || t == "struct{...}" {
		return model.Object
	}

	// Anything else is an unqualified or qualified identifier: a named
	// struct, a named interface, or an unresolved type alias. Flow Weaver
	// treats these as OBJECT unless they're one of the scalar aliases
	// handled above. Named types land on OBJECT since Go has no
	// anonymous "number"/"string" primitives beyond the ones already
	// matched.
	return model.Object
}

var numericKinds = map[string]bool{
	"int": true, "int8": true, "int16": true, "int32": true, "int64": true,
	"uint": true, "uint8": true, "uint16": true, "uint32": true, "uint64": true, "uintptr": true,
	"float32": true, "float64": true,
	"byte": true, "rune": true,
	"complex64": true, "complex128": true,
}

func isNumeric(t string) bool {
	return numericKinds[t]
}

// DefaultGoType returns the Go type the code generator falls back to for a
// port when no TSType (verbatim host-language type text) was captured,
// e.g. for a synthetic port introduced by the macro expander. This
// is the Infer mapping run in reverse.
func DefaultGoType(kind model.PortKind) string {
	switch kind {
	case model.Boolean:
		return "bool"
	case model.Number:
		return "float64"
	case model.String:
		return "string"
	case model.Array:
		return "[]any"
	case model.Object:
		return "map[string]any"
	case model.Func:
		return "func(...any) any"
	case model.Step:
		return "bool"
	default:
		return "any"
	}
}

// GoType returns a port's Go type, preferring its captured TSType (the
// verbatim signature text) and falling back to DefaultGoType.
func GoType(kind model.PortKind, tsType string) string {
	if tsType != "" {
		return tsType
	}
	return DefaultGoType(kind)
}

// ZeroLiteral returns a Go zero-value literal for a port, used by codegen's
// "typed undefined sentinel" resolution step.
func ZeroLiteral(kind model.PortKind, tsType string) string {
	switch kind {
	case model.Boolean, model.Step:
		return "false"
	case model.Number:
		return "0"
	case model.String:
		return `""`
	case model.Array, model.Object, model.Func, model.Any:
		return "nil"
	default:
		return "nil"
	}
}
