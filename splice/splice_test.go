package splice

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowweaver/fw/codegen"
)

func TestApplyFirstTimeCompileInsertsMarkers(t *testing.T) {
	src := []byte(`package workflows

import "fmt"

// DoThing is hand-authored above the function; only its body is owned.
func DoThing(ctx *Context) error {
}

func helper() { fmt.Println("kept") }
`)

	reqs := []Request{{
		FuncName: "DoThing",
		Result: &codegen.Result{
			Body:    "return nil",
			Prelude: "var fwExprCache = 1",
		},
	}}

	out, err := Apply(src, reqs)
	require.NoError(t, err)

	text := string(out)
	assert.Contains(t, text, runtimeBegin)
	assert.Contains(t, text, runtimeEnd)
	assert.Contains(t, text, "var fwExprCache = 1")
	assert.Contains(t, text, "// flowweaver:BODY:begin DoThing -- generated, do not edit")
	assert.Contains(t, text, "return nil")
	assert.Contains(t, text, "// flowweaver:BODY:end DoThing")
	assert.Contains(t, text, `fmt.Println("kept")`, "unrelated declarations survive untouched")
}

func TestApplyRecompileReplacesOnlyMarkedRegions(t *testing.T) {
	src := []byte(`package workflows

// flowweaver:RUNTIME:begin -- generated, do not edit
var fwExprCache = 0
// flowweaver:RUNTIME:end

// DoThing is hand-authored.
func DoThing(ctx *Context) error {
	// flowweaver:BODY:begin DoThing -- generated, do not edit
	return oldBody()
	// flowweaver:BODY:end DoThing
}
`)
	reqs := []Request{{
		FuncName: "DoThing",
		Result: &codegen.Result{
			Body:    "return newBody()",
			Prelude: "var fwExprCache = 0",
		},
	}}

	out, err := Apply(src, reqs)
	require.NoError(t, err)

	text := string(out)
	assert.Contains(t, text, "return newBody()")
	assert.NotContains(t, text, "oldBody")
	assert.Contains(t, text, "// DoThing is hand-authored.", "user doc comment preserved byte-for-byte")
	assert.Equal(t, 1, strings.Count(text, runtimeBegin), "runtime block is not duplicated on recompile")
}

func TestStripRemovesGeneratedRegionsOnly(t *testing.T) {
	src := []byte(`package workflows

// flowweaver:RUNTIME:begin -- generated, do not edit
var fwExprCache = 0
// flowweaver:RUNTIME:end

// @flowWeaver workflow
func DoThing(ctx *Context) error {
	// flowweaver:BODY:begin DoThing -- generated, do not edit
	return nil
	// flowweaver:BODY:end DoThing
}
`)
	stripped := string(Strip(src))
	assert.NotContains(t, stripped, "fwExprCache")
	assert.NotContains(t, stripped, "flowweaver:RUNTIME")
	assert.NotContains(t, stripped, "flowweaver:BODY")
	assert.Contains(t, stripped, "@flowWeaver workflow")
	assert.Contains(t, stripped, "func DoThing(ctx *Context) error {")
}

func TestMergeImportsAddsMissingPathLeavingExistingAliasesAlone(t *testing.T) {
	src := []byte(`package workflows

import (
	"context"

	myzero "github.com/rs/zerolog"
)

func DoThing() {}
`)
	reqs := []Request{{
		FuncName: "DoThing",
		Result: &codegen.Result{
			Imports: []codegen.Import{
				{Path: "github.com/rs/zerolog"},
				{Path: "github.com/flowweaver/fw/runtime", Alias: "fwruntime"},
			},
		},
	}}

	out, err := Apply(src, reqs)
	require.NoError(t, err)

	text := string(out)
	assert.Contains(t, text, `myzero "github.com/rs/zerolog"`, "existing user alias is never overridden")
	assert.Contains(t, text, `fwruntime "github.com/flowweaver/fw/runtime"`)
	assert.Contains(t, text, `"context"`)
}
