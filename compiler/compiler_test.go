package compiler

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/flowweaver/fw/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pipelineSource = `package demo

// Doubles an amount.
// @flowWeaver nodeType
func Double(execute bool, amount float64) (onSuccess, onFailure bool, total float64) {
	return true, false, amount * 2
}

// A one-step pipeline.
// @flowWeaver workflow
// @node d Double
// @path Start -> d -> Exit
// @param amount
// @returns total
func Pipeline(execute bool, amount float64) (onSuccess, onFailure bool, total float64) {
	return
}
`

func compileString(t *testing.T, path, src string) (*Session, *FileReport, []byte) {
	t.Helper()
	session := New(Options{})
	file, err := session.Inspect(context.Background(), path, []byte(src))
	require.NoError(t, err)
	out, report, err := session.CompileAndSplice(path, file, []byte(src))
	require.NoError(t, err)
	return session, report, out
}

func errorsOf(diags []*model.Diagnostic) []*model.Diagnostic {
	var out []*model.Diagnostic
	for _, d := range diags {
		if d.Severity == model.SeverityError {
			out = append(out, d)
		}
	}
	return out
}

func TestCompilePipelineEndToEnd(t *testing.T) {
	_, report, out := compileString(t, "demo.go", pipelineSource)

	require.Len(t, report.Workflows, 1)
	wr := report.Workflows[0]
	assert.Empty(t, errorsOf(wr.Diagnostics), "clean pipeline must compile without errors")
	require.NotNil(t, wr.Splice)

	text := string(out)
	assert.Contains(t, text, "flowweaver:RUNTIME:begin")
	assert.Contains(t, text, "flowweaver:BODY:begin Pipeline")
	assert.Contains(t, text, "Double(true, amount)")
	assert.Contains(t, text, "// Doubles an amount.", "user comments survive the splice")
}

func TestCompileIsIdempotentOnSource(t *testing.T) {
	session := New(Options{})
	src := []byte(pipelineSource)

	file, err := session.Inspect(context.Background(), "demo.go", src)
	require.NoError(t, err)
	once, _, err := session.CompileAndSplice("demo.go", file, src)
	require.NoError(t, err)

	file2, err := session.Inspect(context.Background(), "demo.go", once)
	require.NoError(t, err)
	twice, _, err := session.CompileAndSplice("demo.go", file2, once)
	require.NoError(t, err)

	assert.Equal(t, string(once), string(twice), "recompiling compiled output must be a fixed point")
}

func TestRoundTripLaw(t *testing.T) {
	session := New(Options{})
	file, err := session.Inspect(context.Background(), "demo.go", []byte(pipelineSource))
	require.NoError(t, err)
	report := session.CompileSource("demo.go", file)
	require.Len(t, report.Workflows, 1)
	first := report.Workflows[0]
	require.NotEmpty(t, first.Regen)

	// Rebuild the source with the regenerated workflow block and parse it
	// again: the canonical connection set must come back unchanged.
	nodeTypeText := strings.SplitN(pipelineSource, "// A one-step pipeline.", 2)[0]
	rebuilt := nodeTypeText + first.Regen +
		"func Pipeline(execute bool, amount float64) (onSuccess, onFailure bool, total float64) {\n\treturn\n}\n"

	file2, err := session.Inspect(context.Background(), "demo.go", []byte(rebuilt))
	require.NoError(t, err)
	report2 := session.CompileSource("demo.go", file2)
	require.Len(t, report2.Workflows, 1)
	second := report2.Workflows[0]
	assert.Empty(t, errorsOf(second.Diagnostics))

	keys := func(wf *model.Workflow) map[string]bool {
		out := map[string]bool{}
		for _, c := range wf.Connections {
			out[c.Key()] = true
		}
		return out
	}
	assert.Equal(t, keys(first.Workflow), keys(second.Workflow))
	assert.Equal(t, len(first.Workflow.Instances), len(second.Workflow.Instances))
	assert.Equal(t, first.Workflow.StartPorts.Names(), second.Workflow.StartPorts.Names())
	assert.Equal(t, first.Workflow.ExitPorts.Names(), second.Workflow.ExitPorts.Names())
}

func TestCompileInfersUnannotatedNodeType(t *testing.T) {
	src := `package demo

func Helper(execute bool, amount float64) (onSuccess, onFailure bool, total float64) {
	return true, false, amount
}

// @flowWeaver workflow
// @node h Helper
// @path Start -> h -> Exit
// @param amount
// @returns total
func Flow(execute bool, amount float64) (onSuccess, onFailure bool, total float64) {
	return
}
`
	_, report, _ := compileString(t, "demo.go", src)
	require.Len(t, report.Workflows, 1)
	wr := report.Workflows[0]

	assert.Empty(t, errorsOf(wr.Diagnostics))
	inferred := false
	for _, d := range wr.Diagnostics {
		if d.Code == model.InferredNodeType {
			inferred = true
			assert.Equal(t, model.SeverityWarning, d.Severity)
		}
	}
	assert.True(t, inferred, "an unannotated same-file function is inferred with a warning")
}

func TestCompileUnknownNodeTypeIsBlocking(t *testing.T) {
	src := `package demo

// @flowWeaver workflow
// @node g Ghost
// @param amount
func Flow(execute bool, amount float64) (onSuccess, onFailure bool) {
	return
}
`
	_, report, _ := compileString(t, "demo.go", src)
	require.Len(t, report.Workflows, 1)
	wr := report.Workflows[0]
	assert.True(t, wr.Blocking())
	assert.Nil(t, wr.Splice, "blocking diagnostics must prevent codegen")
}

func TestCompileResolvesFwImport(t *testing.T) {
	dir := t.TempDir()
	lib := `package demo

// @flowWeaver nodeType
func Triple(execute bool, amount float64) (onSuccess, onFailure bool, total float64) {
	return true, false, amount * 3
}
`
	main := `package demo

// @flowWeaver workflow
// @fwImport triple Triple from "./lib"
// @node t triple
// @path Start -> t -> Exit
// @param amount
// @returns total
func Flow(execute bool, amount float64) (onSuccess, onFailure bool, total float64) {
	return
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lib.go"), []byte(lib), 0644))
	mainPath := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(mainPath, []byte(main), 0644))

	session := New(Options{})
	file, err := session.Inspect(context.Background(), mainPath, []byte(main))
	require.NoError(t, err)
	report := session.CompileSource(mainPath, file)
	require.Len(t, report.Workflows, 1)
	wr := report.Workflows[0]

	assert.Empty(t, errorsOf(wr.Diagnostics))
	nt := wr.Workflow.LookupNodeType("triple")
	require.NotNil(t, nt)
	assert.Equal(t, "Triple", nt.FunctionName)
}

func TestCompileMissingImportIsBlocking(t *testing.T) {
	src := `package demo

// @flowWeaver workflow
// @fwImport ghost Ghost from "./nope"
// @node g ghost
// @param amount
func Flow(execute bool, amount float64) (onSuccess, onFailure bool) {
	return
}
`
	_, report, _ := compileString(t, filepath.Join(t.TempDir(), "main.go"), src)
	require.Len(t, report.Workflows, 1)
	assert.True(t, report.Workflows[0].Blocking())
}

func TestCompileAppliesMigrations(t *testing.T) {
	src := `package demo

// @flowWeaver nodeType
func Check(execute bool, amount float64) (onSuccess, onFailure bool, total float64) {
	return true, false, amount
}

// @flowWeaver workflow
// @node c Check
// @path Start -> c:success -> Exit
// @param amount
// @returns total
func Flow(execute bool, amount float64) (onSuccess, onFailure bool, total float64) {
	return
}
`
	_, report, _ := compileString(t, "demo.go", src)
	require.Len(t, report.Workflows, 1)
	wr := report.Workflows[0]
	assert.Empty(t, errorsOf(wr.Diagnostics))

	steps := wr.Workflow.Macros[0].Path.Steps
	assert.Equal(t, "ok", steps[1].Route, "the legacy success route spelling is migrated")
}
