// Command swc is the thin driver over the backend code generator: it maps
// command-line flags onto a codegen.Config, runs the pipeline, and renders
// diagnostics. The full compiler front end (lexer, parser, sema) is an
// external collaborator; the emit subcommand carries a stand-in expression
// parser just wide enough to drive the pipeline end to end.
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"swc/internal/backend"
	"swc/internal/codegen"
	"swc/internal/diag"
	"swc/internal/micro"
)

// Exit codes, per the driver contract.
const (
	exitSuccess           = 0
	exitErrorCmdLine      = -1
	exitHardwareException = -2
	exitPanicBox          = -3
	exitErrorCommand      = -4
)

type cliFlags struct {
	passStages     []string
	backendOpt     string
	debugInfo      bool
	arch           string
	cpu            string
	numCores       int
	diagOneLine    bool
	diagAbsolute   bool
	diagID         bool
	logColor       bool
	diagMaxColumn  int
	randomize      bool
	randomizeSeed  int64
}

func optimizationLevel(s string) (backend.OptimizationLevel, error) {
	switch s {
	case "O0", "":
		return backend.O0, nil
	case "O1":
		return backend.O1, nil
	case "O2":
		return backend.O2, nil
	case "O3":
		return backend.O3, nil
	case "Os":
		return backend.Os, nil
	case "Oz":
		return backend.Oz, nil
	default:
		return backend.O0, fmt.Errorf("unknown optimization level %q", s)
	}
}

func (f *cliFlags) toConfig() (codegen.Config, error) {
	level, err := optimizationLevel(f.backendOpt)
	if err != nil {
		return codegen.Config{}, err
	}
	stages := make(map[string]bool, len(f.passStages))
	for _, s := range f.passStages {
		stages[s] = true
	}
	numCores := f.numCores
	if numCores <= 0 {
		numCores = runtime.NumCPU()
	}
	cfg := codegen.Config{
		Optimize:  level,
		DebugInfo: f.debugInfo,
		Arch:      f.arch,
		CPU:       f.cpu,
		PassPrint: stages,
		CallConv:  micro.CallConvHost,
		NumCores:  numCores,
		Randomize: f.randomize,
		Seed:      f.randomizeSeed,
		Diag: diag.RenderOptions{
			OneLine:      f.diagOneLine,
			AbsolutePath: f.diagAbsolute,
			ShowID:       f.diagID,
			Color:        f.logColor,
			MaxColumn:    f.diagMaxColumn,
		},
	}
	return cfg, cfg.Validate()
}

func main() {
	var flags cliFlags

	root := &cobra.Command{
		Use:           "swc",
		Short:         "swc is the Swag compiler's backend driver",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringArrayVar(&flags.passStages, "pass", nil, "print IR at a pipeline stage (repeatable): pre-regalloc, post-regalloc, pre-prolog-epilog, post-prolog-epilog, pre-legalize, post-legalize, pre-encode, post-encode")
	pf.StringVar(&flags.backendOpt, "backend-optimize", "O0", "optimization level: O0|O1|O2|O3|Os|Oz")
	pf.BoolVar(&flags.debugInfo, "debug-info", false, "attach source refs to every emitted instruction")
	pf.StringVar(&flags.arch, "arch", "x86_64", "target architecture (only x86_64 is recognized)")
	pf.StringVar(&flags.cpu, "cpu", "", "target cpu string, passed through to the encoder")
	pf.IntVar(&flags.numCores, "num-cores", 0, "worker threads for codegen jobs (0 = hardware concurrency)")
	pf.BoolVar(&flags.diagOneLine, "diag-one-line", false, "render each diagnostic on a single line")
	pf.BoolVar(&flags.diagAbsolute, "diag-absolute", false, "render absolute paths in diagnostics")
	pf.BoolVar(&flags.diagID, "diag-id", false, "show diagnostic identifiers")
	pf.BoolVar(&flags.logColor, "log-color", false, "colorize diagnostics and logs")
	pf.IntVar(&flags.diagMaxColumn, "diag-max-column", 0, "truncate source lines wider than this (0 = never)")
	pf.BoolVar(&flags.randomize, "randomize", false, "randomized single-threaded scheduling for reproduction")
	pf.Int64Var(&flags.randomizeSeed, "seed", 0, "scheduling seed used with --randomize")

	emit := &cobra.Command{
		Use:   "emit <expression>",
		Short: "compile one integer expression to x86-64 machine code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.toConfig()
			if err != nil {
				return err // configuration errors map to ErrorCmdLine
			}
			if err := runEmit(cmd, cfg, args[0]); err != nil {
				return commandError{err}
			}
			return nil
		},
	}
	root.AddCommand(emit)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "swc:", err)
		if _, ok := err.(commandError); ok {
			exitWith(exitErrorCommand)
		}
		// Everything else Execute surfaces is a flag/usage problem.
		exitWith(exitErrorCmdLine)
	}
	exitWith(exitSuccess)
}

// commandError tags failures of the command's work itself, as opposed to
// the flag/usage errors that map to ErrorCmdLine.
type commandError struct{ error }

// exitWith maps the driver's signed exit-code contract onto the process
// exit status.
func exitWith(code int) {
	os.Exit(code & 0xFF)
}

func runEmit(cmd *cobra.Command, cfg codegen.Config, src string) error {
	env := codegen.NewEnv(cfg.Diag)
	env.Logger = diag.NewLogger(cmd.ErrOrStderr(), false, cfg.Diag.Color)

	fn, err := parseExprFunction(src, env)
	if err != nil {
		env.Reporter.Report(diag.Errorf(
			diag.SourceSpan{File: "<expr>", Line: 1, Column: 1, Len: len(src)},
			"E-parse", "%v", err))
		env.Reporter.Flush(cmd.ErrOrStderr())
		return fmt.Errorf("parse failed")
	}

	artifacts := codegen.CompileAll([]*codegen.Function{fn}, cfg, env)
	env.Reporter.Flush(cmd.ErrOrStderr())
	if env.Reporter.HasErrors() || artifacts[0] == nil {
		return fmt.Errorf("code generation failed")
	}

	art := artifacts[0]
	for _, dump := range art.Dumps {
		fmt.Fprintln(cmd.OutOrStdout(), dump)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d bytes:\n%s\n", len(art.Code), formatHex(art.Code))
	for _, r := range art.Relocations {
		fmt.Fprintf(cmd.OutOrStdout(), "reloc kind=%d offset=%#x size=%d\n", r.Kind, r.Offset, r.Size)
	}
	return nil
}

func formatHex(code []byte) string {
	const perLine = 16
	var sb strings.Builder
	for off := 0; off < len(code); off += perLine {
		end := off + perLine
		if end > len(code) {
			end = len(code)
		}
		fmt.Fprintf(&sb, "%08x  %s\n", off, hex.EncodeToString(code[off:end]))
	}
	return sb.String()
}
