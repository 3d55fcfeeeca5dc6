// Package compiler wires the parse, expand, validate, generate, and
// regenerate stages into the one operation the CLI
// and editor integrations actually call: take a host source file, resolve
// everything it annotates, and return either diagnostics or a spliced
// replacement for it.
package compiler

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/flowweaver/fw/codegen"
	"github.com/flowweaver/fw/docparser"
	"github.com/flowweaver/fw/exprcache"
	"github.com/flowweaver/fw/inspector/golang"
	"github.com/flowweaver/fw/inspector/graph"
	"github.com/flowweaver/fw/macro"
	"github.com/flowweaver/fw/migrate"
	"github.com/flowweaver/fw/model"
	"github.com/flowweaver/fw/regen"
	"github.com/flowweaver/fw/resolve"
	fwruntime "github.com/flowweaver/fw/runtime"
	"github.com/flowweaver/fw/splice"
	"github.com/flowweaver/fw/validate"
)

// Options configures one Session. Logger defaults to a disabled zerolog
// logger, so observability stays opt-in.
type Options struct {
	Config *graph.Config
	// ResolverCap sizes the import resolver's LRU cache (default 128).
	ResolverCap int
	// Logger receives compile-session events. Nil (the default) uses
	// zerolog.Nop(), matching the ambient stack's "logging is opt-in"
	// posture.
	Logger *zerolog.Logger
	// ExprCacheSize sizes the CUSTOM executeWhen program cache the
	// validator compiles into (default 64).
	ExprCacheSize int
	// External supplies pre-built node types (e.g. an editor's unsaved
	// overlay). They take precedence over file-local declarations and are
	// never cached: overlays must not poison the file-keyed resolver cache.
	External []*model.NodeType
}

// Session is a compile-session: one resolver (so its LRU cache is shared
// across every file compiled through it) plus the exprcache the validator
// uses for CUSTOM executeWhen expressions.
type Session struct {
	resolver *resolve.Resolver
	exprs    *exprcache.Cache
	log      zerolog.Logger
	config   *graph.Config
	external []*model.NodeType
}

// New builds a Session. A zero Options is valid: it yields a 128-entry
// resolver cache, a 64-entry expression cache, and a disabled logger.
func New(opts Options) *Session {
	cfg := opts.Config
	if cfg == nil {
		cfg = &graph.Config{}
	}
	resolverCap := opts.ResolverCap
	if resolverCap <= 0 {
		resolverCap = 128
	}
	exprCap := opts.ExprCacheSize
	if exprCap <= 0 {
		exprCap = 64
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	return &Session{
		resolver: resolve.New(cfg, resolverCap),
		exprs:    exprcache.New(exprCap),
		log:      log,
		config:   cfg,
		external: opts.External,
	}
}

// FileReport is the outcome of compiling one source file: every workflow
// and pattern it declared, the diagnostics raised for each, and (when a
// workflow compiled clean) the splice.Request ready for splice.Apply.
type FileReport struct {
	Path        string
	NodeTypes   []*model.NodeType
	Patterns    []*model.Pattern
	Workflows   []*WorkflowReport
	Diagnostics []*model.Diagnostic
}

// WorkflowReport is one compiled `@flowWeaver workflow` function's result.
type WorkflowReport struct {
	Workflow    *model.Workflow
	Diagnostics []*model.Diagnostic
	Splice      *splice.Request // nil if blocking diagnostics prevented codegen
	Regen       string          // the annotation text regen.Workflow would re-emit
}

// Blocking reports whether any diagnostic in the report is a blocking
// error.
func (r *WorkflowReport) Blocking() bool {
	for _, d := range r.Diagnostics {
		if d.Severity == model.SeverityError {
			return true
		}
	}
	return false
}

// CompileSource runs the full pipeline over already-inspected source: parse
// doc comments, resolve each workflow's `@fwImport`s into its node
// type registry, expand sugar macros, validate, and —
// for every workflow with no blocking diagnostic — generate code and
// compute the annotation regenerator's output. Splicing the result
// back into source bytes is the caller's job (splice.Apply), since a caller
// compiling many files in one pass may want to batch all of a file's
// workflow bodies into a single Apply call.
func (s *Session) CompileSource(path string, file *graph.File) *FileReport {
	parsed := docparser.ParseFile(file)
	report := &FileReport{
		Path:        path,
		NodeTypes:   parsed.NodeTypes,
		Patterns:    parsed.Patterns,
		Diagnostics: parsed.Diagnostics,
	}

	localTypes := make(map[string]*model.NodeType, len(parsed.NodeTypes)+len(s.external))
	for _, nt := range parsed.NodeTypes {
		localTypes[nt.DisplayName()] = nt
	}
	for _, nt := range s.external {
		localTypes[nt.DisplayName()] = nt.Clone()
	}

	for _, wf := range parsed.Workflows {
		wr := s.compileWorkflow(path, file, wf, localTypes)
		report.Workflows = append(report.Workflows, wr)
	}
	return report
}

func (s *Session) compileWorkflow(path string, file *graph.File, wf *model.Workflow, localTypes map[string]*model.NodeType) *WorkflowReport {
	wr := &WorkflowReport{Workflow: wf}

	if applied := migrate.Run(wf); len(applied) > 0 {
		s.log.Debug().Str("workflow", wf.DisplayName()).Strs("migrations", applied).Msg("migrated")
	}

	s.assembleNodeTypes(path, file, wf, localTypes, wr)
	if wr.Blocking() {
		s.log.Debug().Str("workflow", wf.DisplayName()).Msg("import resolution failed, skipping macro expansion")
		return wr
	}

	wr.Diagnostics = append(wr.Diagnostics, macro.Expand(wf)...)
	if wr.Blocking() {
		s.log.Debug().Str("workflow", wf.DisplayName()).Msg("macro expansion raised blocking diagnostics")
		return wr
	}

	diags := validate.Validate(wf, validate.Options{Cache: s.exprs})
	wr.Diagnostics = append(wr.Diagnostics, diags...)
	s.log.Debug().Str("workflow", wf.DisplayName()).Int("diagnostics", len(diags)).Msg("validated")
	if wr.Blocking() {
		return wr
	}

	result, err := codegen.Generate(wf)
	if err != nil {
		wr.Diagnostics = append(wr.Diagnostics, &model.Diagnostic{
			Code:     model.CycleDetected,
			Severity: model.SeverityError,
			Message:  fmt.Sprintf("codegen: %v", err),
			NodeID:   wf.DisplayName(),
		})
		return wr
	}
	wr.Splice = &splice.Request{FuncName: wf.FunctionName, Result: result}
	wr.Regen = regen.Workflow(wf)
	s.log.Info().Str("workflow", wf.DisplayName()).Msg("compiled")
	return wr
}

// assembleNodeTypes fills wf.NodeTypes from the file-local types every
// instance might reference plus, for any instance naming an `@fwImport`
// alias instead, the resolved import's node type. A name matching neither
// falls back to same-file unannotated functions, synthesizing an inferred
// node type with a warning. Resolution failures are recorded as blocking
// diagnostics rather than returned as a Go error, so the rest of the
// file's workflows still compile.
func (s *Session) assembleNodeTypes(path string, file *graph.File, wf *model.Workflow, localTypes map[string]*model.NodeType, wr *WorkflowReport) {
	imports := make(map[string]model.ImportDecl, len(wf.Imports))
	for _, imp := range wf.Imports {
		imports[imp.Name] = imp
	}

	seen := map[string]bool{}
	add := func(nt *model.NodeType) {
		if nt == nil || seen[nt.DisplayName()] {
			return
		}
		seen[nt.DisplayName()] = true
		wf.NodeTypes = append(wf.NodeTypes, nt)
	}

	for _, inst := range wf.Instances {
		if inst.NodeType == model.StartNode || inst.NodeType == model.ExitNode {
			continue
		}
		if nt, ok := localTypes[inst.NodeType]; ok {
			add(nt)
			continue
		}
		imp, ok := imports[inst.NodeType]
		if !ok {
			if fn := file.LookupFunction(inst.NodeType); fn != nil {
				add(docparser.InferNodeType(fn))
				wr.Diagnostics = append(wr.Diagnostics, &model.Diagnostic{
					Code:     model.InferredNodeType,
					Severity: model.SeverityWarning,
					Message:  fmt.Sprintf("node %q: node type %q inferred from the unannotated function of the same name", inst.ID, inst.NodeType),
					NodeID:   inst.ID,
				})
				continue
			}
			wr.Diagnostics = append(wr.Diagnostics, &model.Diagnostic{
				Code:     model.UnknownNodeType,
				Severity: model.SeverityError,
				Message:  fmt.Sprintf("node %q: no local node type, @fwImport, or same-file function named %q", inst.ID, inst.NodeType),
				NodeID:   inst.ID,
			})
			continue
		}
		nt, err := s.resolveImport(path, imp)
		if err != nil {
			wr.Diagnostics = append(wr.Diagnostics, &model.Diagnostic{
				Code:     model.UnknownNodeType,
				Severity: model.SeverityError,
				Message:  fmt.Sprintf("node %q: %v", inst.ID, err),
				NodeID:   inst.ID,
			})
			continue
		}
		nt.Name = imp.Name
		add(nt)
	}
	wf.IndexNodeTypes()
}

// resolveImport resolves one `@fwImport` to the model.NodeType it names,
// caching nothing itself — the resolver's own LRU (keyed on mtime+hash)
// already makes repeated resolution of the same module free.
func (s *Session) resolveImport(fromFile string, imp model.ImportDecl) (*model.NodeType, error) {
	resolved, err := s.resolver.Resolve(fromFile, imp.Module, nil)
	if err != nil {
		return nil, fmt.Errorf("@fwImport %s from %q: %w", imp.Name, imp.Module, err)
	}
	s.log.Debug().Str("module", imp.Module).Str("function", imp.FunctionName).Msg("import resolved")

	parsed := docparser.ParseFile(resolved)
	for _, nt := range parsed.NodeTypes {
		if nt.FunctionName == imp.FunctionName {
			return nt, nil
		}
	}
	for _, other := range parsed.Workflows {
		if other.FunctionName == imp.FunctionName {
			return importedWorkflowNodeType(other, imp.Module), nil
		}
	}
	return nil, fmt.Errorf("function %q not found in %q", imp.FunctionName, imp.Module)
}

// importedWorkflowNodeType adapts a resolved workflow's own start/exit
// ports into the callable shape an IMPORTED_WORKFLOW node type presents to
// its importer.
func importedWorkflowNodeType(wf *model.Workflow, module string) *model.NodeType {
	nt := &model.NodeType{
		FunctionName:   wf.FunctionName,
		Variant:        model.VariantImportedWorkflow,
		Inputs:         wf.StartPorts,
		Outputs:        wf.ExitPorts,
		HasSuccessPort: true,
		HasFailurePort: true,
		ImportSource:   module,
	}
	nt.EnsureControlFlow()
	return nt
}

// CompileAndSplice runs CompileSource and, for every workflow whose
// compile produced no blocking diagnostics, splices its generated body
// into src in one Apply call. Workflows with blocking diagnostics leave
// their function's BODY_* region (if any) untouched; the caller surfaces
// their Diagnostics instead.
func (s *Session) CompileAndSplice(path string, file *graph.File, src []byte) ([]byte, *FileReport, error) {
	report := s.CompileSource(path, file)

	var reqs []splice.Request
	for _, wr := range report.Workflows {
		if wr.Splice != nil {
			reqs = append(reqs, *wr.Splice)
		}
	}
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].FuncName < reqs[j].FuncName })
	if len(reqs) == 0 {
		return src, report, nil
	}
	out, err := splice.Apply(src, reqs)
	if err != nil {
		return nil, report, fmt.Errorf("splice: %w", err)
	}
	return out, report, nil
}

// Inspect parses Go source bytes into the plain-value graph.File the
// pipeline operates on — a thin pass-through to inspector/golang kept
// here so callers only need to import compiler and graph.
func (s *Session) Inspect(ctx context.Context, filename string, src []byte) (*graph.File, error) {
	insp := golang.NewInspector(s.config)
	file, err := insp.InspectSource(src)
	if err != nil {
		return nil, err
	}
	file.Path = filename
	return file, nil
}

// NewRuntimeLogger adapts the session's zerolog.Logger to the
// runtime.Logger interface generated code calls into, so a host program
// wiring a Session can reuse the same sink for compile-time and run-time
// messages instead of constructing its own ZerologAdapter.
func (s *Session) NewRuntimeLogger() fwruntime.Logger {
	return fwruntime.ZerologAdapter{Logger: s.log}
}
