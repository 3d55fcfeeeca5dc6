package golang

import (
	"fmt"
	"strings"

	"github.com/flowweaver/fw/inspector/graph"
)

// Emitter reconstructs a Go source file from its extracted functions and
// imports, implementing graph.ContentGenerator. It is a whole-file
// reconstruction; compiled output instead goes through splice.Apply, which
// rewrites only the sentinel regions and the import block.
type Emitter struct{}

func (g *Emitter) Emit(file *graph.File) ([]byte, error) {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("package %s\n\n", file.Package))

	if len(file.Imports) > 0 {
		b.WriteString("import (\n")
		for _, imp := range file.Imports {
			if imp.Name != "" {
				b.WriteString(fmt.Sprintf("\t%s %s\n", imp.Name, quote(imp.Path)))
			} else {
				b.WriteString(fmt.Sprintf("\t%s\n", quote(imp.Path)))
			}
		}
		b.WriteString(")\n\n")
	}

	for _, fn := range file.Functions {
		if fn.Location != nil && fn.Location.Raw != "" {
			b.WriteString(fn.Location.Raw)
			b.WriteString("\n\n")
		}
	}

	return []byte(b.String()), nil
}
