// Package docparser classifies each function-like
// declaration's doc comment by its leading `@flowWeaver <kind>` tag and
// builds a model.NodeType, model.Workflow, or model.Pattern by merging
// annotated ports with the signature extracted by inspector/golang.
package docparser

import (
	"fmt"

	"github.com/flowweaver/fw/annotation"
	"github.com/flowweaver/fw/model"
	"github.com/flowweaver/fw/inspector/graph"
)

// Kind is the `@flowWeaver` first-word classification.
type Kind string

const (
	KindNodeType Kind = "nodeType"
	KindNode     Kind = "node"
	KindWorkflow Kind = "workflow"
	KindPattern  Kind = "pattern"
)

// File is the parsed result of one source file: every node type, workflow,
// and pattern found in it, plus diagnostics buffered along the way.
type File struct {
	NodeTypes   []*model.NodeType
	Workflows   []*model.Workflow
	Patterns    []*model.Pattern
	Diagnostics []*model.Diagnostic
}

func (f *File) addError(format string, args ...any) {
	f.Diagnostics = append(f.Diagnostics, &model.Diagnostic{
		Code:     model.MissingFunctionName,
		Message:  fmt.Sprintf(format, args...),
		Severity: model.SeverityError,
	})
}

// ParseFile classifies every function in a graph.File and builds the
// corresponding Flow Weaver entities.
func ParseFile(file *graph.File) *File {
	result := &File{}

	var availableNames []string
	for _, fn := range file.Functions {
		availableNames = append(availableNames, fn.Name)
	}

	for _, fn := range file.Functions {
		if fn.Doc == nil || fn.Doc.Text == "" {
			continue
		}
		_, tags := annotation.Split(fn.Doc.Text)
		kind, rest := classify(tags)
		if kind == "" {
			continue
		}
		switch kind {
		case KindNodeType, KindNode:
			nt, diags, err := buildNodeType(fn, rest)
			result.Diagnostics = append(result.Diagnostics, diags...)
			if err != nil {
				result.addError("%s: %v", fn.Name, err)
				continue
			}
			result.NodeTypes = append(result.NodeTypes, nt)
		case KindWorkflow:
			wf, diags := buildWorkflow(fn, rest, file.Name, availableNames)
			result.Workflows = append(result.Workflows, wf)
			result.Diagnostics = append(result.Diagnostics, diags...)
		case KindPattern:
			pat, diags := buildPattern(fn, rest)
			result.Patterns = append(result.Patterns, pat)
			result.Diagnostics = append(result.Diagnostics, diags...)
		}
	}

	return result
}

// classify returns the first `@flowWeaver` tag's kind and the remaining
// tags from the same doc block.
func classify(tags []annotation.Tag) (Kind, []annotation.Tag) {
	for i, tag := range tags {
		if tag.Name != "flowWeaver" {
			continue
		}
		switch Kind(tag.Body) {
		case KindNodeType, KindNode, KindWorkflow, KindPattern:
			return Kind(tag.Body), append(append([]annotation.Tag{}, tags[:i]...), tags[i+1:]...)
		}
	}
	return "", nil
}
