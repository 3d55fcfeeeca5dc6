package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/flowweaver/fw/compiler"
	"github.com/flowweaver/fw/inspector/graph"
	"github.com/flowweaver/fw/model"
	"github.com/flowweaver/fw/splice"
)

// Build-time variables - can be set via ldflags
var (
	Version   string = "dev"
	GitCommit string = "unknown"
)

// Exit codes: 0 success, 1 validation errors, 2 usage error, 3 I/O error.
const (
	exitOK         = 0
	exitValidation = 1
	exitUsage      = 2
	exitIO         = 3
)

// Global flags
var (
	strict     bool
	unexported bool
	verbose    bool
	dryRun     bool
	friendly   bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitUsage)
	}
}

var rootCmd = &cobra.Command{
	Use:   "flowweaver",
	Short: "Compile annotated Go source into executable workflow graphs",
	Long: `flowweaver reads @flowWeaver doc-comment annotations from Go source files,
builds a validated workflow graph, and splices the generated execution body
back into the source in place, leaving every user-authored byte untouched.`,
	SilenceUsage: true,
}

var compileCmd = &cobra.Command{
	Use:   "compile <file>...",
	Short: "Compile workflow annotations and splice generated bodies in place",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(compileFiles(args, !dryRun))
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate <file>...",
	Short: "Validate workflow annotations without writing anything",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(compileFiles(args, false))
	},
}

var describeCmd = &cobra.Command{
	Use:   "describe <file>",
	Short: "Print each workflow's canonical form as YAML",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(describeFile(args[0]))
	},
}

var stripCmd = &cobra.Command{
	Use:   "strip <file>...",
	Short: "Remove generated regions, leaving only user-authored source",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(stripFiles(args))
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("flowweaver %s (%s)\n", Version, GitCommit)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log compile-session events")
	rootCmd.PersistentFlags().BoolVar(&unexported, "unexported", true, "include unexported functions")
	rootCmd.PersistentFlags().BoolVar(&friendly, "friendly", false, "explain diagnostics with title/explanation/fix")
	compileCmd.Flags().BoolVar(&dryRun, "dry-run", false, "compile but do not write files")
	compileCmd.Flags().BoolVar(&strict, "strict", false, "treat type warnings as errors in every workflow")
	validateCmd.Flags().BoolVar(&strict, "strict", false, "treat type warnings as errors in every workflow")

	rootCmd.AddCommand(compileCmd, validateCmd, describeCmd, stripCmd, versionCmd)
}

func newSession() *compiler.Session {
	opts := compiler.Options{
		Config: &graph.Config{IncludeUnexported: unexported},
	}
	if verbose {
		log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
		opts.Logger = &log
	}
	return compiler.New(opts)
}

func compileFiles(paths []string, write bool) int {
	session := newSession()
	code := exitOK
	for _, path := range paths {
		src, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "flowweaver: %v\n", err)
			return exitIO
		}
		stripped := splice.Strip(src)
		file, err := session.Inspect(context.Background(), path, stripped)
		if err != nil {
			fmt.Fprintf(os.Stderr, "flowweaver: %s: %v\n", path, err)
			code = exitValidation
			continue
		}
		out, report, err := session.CompileAndSplice(path, file, src)
		if err != nil {
			fmt.Fprintf(os.Stderr, "flowweaver: %s: %v\n", path, err)
			return exitIO
		}
		if printReport(path, report) {
			code = exitValidation
		}
		if write && code == exitOK {
			if err := os.WriteFile(path, out, 0644); err != nil {
				fmt.Fprintf(os.Stderr, "flowweaver: write %s: %v\n", path, err)
				return exitIO
			}
		}
	}
	return code
}

// printReport writes diagnostics grouped by workflow, errors before
// warnings, and reports whether any blocking error (or, under --strict, any
// warning at all) was present. Per-workflow @strictTypes promotion already
// happened inside the validator; --strict is the CI-wide equivalent.
func printReport(path string, report *compiler.FileReport) bool {
	failed := false
	emit := func(scope string, diags []*model.Diagnostic) {
		var errs, warns []*model.Diagnostic
		for _, d := range diags {
			if d.Severity == model.SeverityError {
				errs = append(errs, d)
			} else {
				warns = append(warns, d)
			}
		}
		if len(errs) > 0 || (strict && len(warns) > 0) {
			failed = true
		}
		for _, d := range append(errs, warns...) {
			if friendly {
				e := model.Explain(d)
				fmt.Fprintf(os.Stderr, "%s: %s: %s\n  %s\n", path, scope, e.Title, e.Explanation)
				if e.Fix != "" {
					fmt.Fprintf(os.Stderr, "  fix: %s\n", e.Fix)
				}
				continue
			}
			fmt.Fprintf(os.Stderr, "%s: %s: %s\n", path, scope, d.Format())
		}
	}
	emit("file", report.Diagnostics)
	for _, wr := range report.Workflows {
		emit(wr.Workflow.DisplayName(), wr.Diagnostics)
	}
	return failed
}

func describeFile(path string) int {
	session := newSession()
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "flowweaver: %v\n", err)
		return exitIO
	}
	file, err := session.Inspect(context.Background(), path, splice.Strip(src))
	if err != nil {
		fmt.Fprintf(os.Stderr, "flowweaver: %s: %v\n", path, err)
		return exitValidation
	}
	report := session.CompileSource(path, file)
	hadErr := printReport(path, report)
	for _, wr := range report.Workflows {
		text, err := wr.Workflow.Describe()
		if err != nil {
			fmt.Fprintf(os.Stderr, "flowweaver: %s: %v\n", path, err)
			return exitIO
		}
		fmt.Printf("---\n%s", text)
	}
	if hadErr {
		return exitValidation
	}
	return exitOK
}

func stripFiles(paths []string) int {
	for _, path := range paths {
		src, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "flowweaver: %v\n", err)
			return exitIO
		}
		if err := os.WriteFile(path, splice.Strip(src), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "flowweaver: write %s: %v\n", path, err)
			return exitIO
		}
	}
	return exitOK
}
