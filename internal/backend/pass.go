package backend

import (
	"swc/internal/callconv"
	"swc/internal/micro/builder"
)

// OptimizationLevel selects the optimization-iteration limit the pass
// manager's fixed-point stages use.
type OptimizationLevel uint8

const (
	O0 OptimizationLevel = iota
	O1
	O2
	O3
	Os
	Oz
)

// IterationLimit returns the pre/post-optimization fixed-point iteration
// cap for level.
func (level OptimizationLevel) IterationLimit() int {
	switch level {
	case O0:
		return 1
	case O1:
		return 2
	case O2:
		return 4
	case O3:
		return 8
	case Os:
		return 4
	case Oz:
		return 6
	default:
		return 1
	}
}

// PrintMode controls whether a pass's before/after dump (when requested via
// --pass) shows virtual or concrete physical register names.
type PrintMode uint8

const (
	PrintModeNone PrintMode = iota
	PrintModeVirtual
	PrintModeConcrete
)

// MicroPassContext bundles everything a MicroPass needs: the builder whose
// stream is being transformed, the function's calling convention, the
// optimization level, and the requested pass-print stages.
type MicroPassContext struct {
	Builder  *builder.MicroBuilder
	CallConv callconv.CallConv
	Level    OptimizationLevel

	// PassPrintOptions is the set of stage tokens requested via --pass
	// (e.g. "pre-regalloc", "post-legalize"); Dumps accumulates the
	// rendered text for each requested stage in pipeline order, as each
	// stage is reached.
	PassPrintOptions map[string]bool
	Dumps            []string

	// EncodeErr records a failure from the final encode stage; pass Run
	// methods report only a changed flag, so the error travels on the
	// context for the driver to turn into a diagnostic.
	EncodeErr error

	lastChanged bool
}

func (ctx *MicroPassContext) dump(stage string, mode PrintMode) {
	if !ctx.PassPrintOptions[stage] {
		return
	}
	_ = mode // virtual vs concrete register naming is already handled by FormatRegisterName
	ctx.Dumps = append(ctx.Dumps, stage+":\n"+builder.FormatInstructions(ctx.Builder, builder.PrintOptions{}))
}

// MicroPass is one stage of the backend pipeline.
type MicroPass interface {
	Name() string
	Run(ctx *MicroPassContext) (changed bool)
	PrintModeBefore() PrintMode
	PrintModeAfter() PrintMode
}

// MicroPassManager runs four ordered lists: pre-optimization to fixed
// point, the mandatory linear list, post-optimization to fixed point, then
// the final linear list.
type MicroPassManager struct {
	PreOptimization  []MicroPass
	Mandatory        []MicroPass
	PostOptimization []MicroPass
	Final            []MicroPass
}

// DefaultMandatory returns the mandatory linear list in its fixed order:
// RegisterAllocation, PrologEpilog, Legalize.
func DefaultMandatory() []MicroPass {
	return []MicroPass{
		NewRegisterAllocationPass(),
		NewPrologEpilogPass(),
		NewLegalizePass(),
	}
}

// DefaultPreOptimization returns the constant-propagation pass.
func DefaultPreOptimization() []MicroPass {
	return []MicroPass{NewConstantPropagationPass()}
}

// DefaultPostOptimization returns the post-mandatory fixed-point list.
// Constant propagation runs again over the allocated stream: the prolog,
// parameter and legalization expansions introduce fresh immediate loads
// worth folding.
func DefaultPostOptimization() []MicroPass {
	return []MicroPass{NewConstantPropagationPass()}
}

// DefaultFinal returns the final linear list: Encode.
func DefaultFinal(enc Encoder) []MicroPass {
	return []MicroPass{NewEncodePass(enc)}
}

func runFixedPoint(ctx *MicroPassContext, passes []MicroPass, limit int) {
	for iter := 0; iter < limit; iter++ {
		anyChanged := false
		for _, p := range passes {
			runPassWithDumps(ctx, p)
			if ctx.lastChanged {
				anyChanged = true
			}
		}
		if !anyChanged {
			return
		}
	}
}

func runPassWithDumps(ctx *MicroPassContext, p MicroPass) {
	ctx.dump("pre-"+p.Name(), p.PrintModeBefore())
	changed := p.Run(ctx)
	ctx.dump("post-"+p.Name(), p.PrintModeAfter())
	ctx.lastChanged = changed
}

// Run executes the four stages in order against ctx.
func (m *MicroPassManager) Run(ctx *MicroPassContext) {
	runFixedPoint(ctx, m.PreOptimization, ctx.Level.IterationLimit())
	for _, p := range m.Mandatory {
		runPassWithDumps(ctx, p)
	}
	runFixedPoint(ctx, m.PostOptimization, ctx.Level.IterationLimit())
	for _, p := range m.Final {
		runPassWithDumps(ctx, p)
	}
}

// Encoder is the capability the Encode pass needs from the machine-code
// backend, satisfied by internal/encoder/amd64.Encoder. Defined here
// (rather than imported from the encoder package) so that backend does not
// need to depend on the concrete ISA package.
type Encoder interface {
	Encode(b *builder.MicroBuilder) error
}
