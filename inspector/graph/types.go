package graph

import "strings"

// Location captures a verbatim source span so callers can reconstruct the
// original bytes without re-printing the AST.
type Location struct {
	Start int
	End   int
	Raw   string
}

// LocationNode pairs extracted text with the span it came from.
type LocationNode struct {
	Text string
	Location
}

func NewNodeLocation(text string) *LocationNode {
	return &LocationNode{Text: text}
}

// Config holds the inspector options the compiler reads.
type Config struct {
	IncludeUnexported bool
	SkipTests         bool
	SkipAsset         bool
}

// Parameter represents a function parameter or a named result.
type Parameter struct {
	Name     string
	TypeText string // verbatim host-language type expression, e.g. "func(item int) (bool, bool, int)"
}

// Function represents a top-level function declaration extracted from a Go
// source file. Flow Weaver only annotates function-like declarations, so
// there is no parallel Type/Field/Constant/Variable model to keep in sync.
type Function struct {
	Name       string
	Doc        *LocationNode // raw doc-comment text and its span, for annotation scanning
	Params     []*Parameter
	Results    []*Parameter // named results, exposed to port inference as return-object fields
	IsExported bool
	IsVariadic bool
	Location   *Location // full declaration span, including doc comment
	BodyStart  int       // byte offset of the opening '{' of the body, -1 if absent
	Hash       uint64
}

// Content returns the verbatim source text of the function declaration.
func (f *Function) Content() string {
	if f.Location == nil {
		return ""
	}
	return f.Location.Raw
}

func (f *Function) String() string {
	var b strings.Builder
	b.WriteString(f.Name)
	b.WriteByte('(')
	for i, p := range f.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Name)
		b.WriteByte(' ')
		b.WriteString(p.TypeText)
	}
	b.WriteByte(')')
	return b.String()
}
