package backend

import (
	"testing"

	"github.com/stretchr/testify/require"

	"swc/internal/micro"
	"swc/internal/micro/builder"
)

type countingPass struct {
	name    string
	runs    int
	changed func(run int) bool
}

func (p *countingPass) Name() string               { return p.name }
func (p *countingPass) PrintModeBefore() PrintMode { return PrintModeVirtual }
func (p *countingPass) PrintModeAfter() PrintMode  { return PrintModeVirtual }
func (p *countingPass) Run(*MicroPassContext) bool {
	p.runs++
	return p.changed(p.runs)
}

func TestIterationLimits(t *testing.T) {
	for level, want := range map[OptimizationLevel]int{
		O0: 1, O1: 2, O2: 4, O3: 8, Os: 4, Oz: 6,
	} {
		require.Equal(t, want, level.IterationLimit())
	}
}

func TestFixedPointStopsWhenNothingChanges(t *testing.T) {
	p := &countingPass{name: "p", changed: func(run int) bool { return run < 3 }}
	ctx := &MicroPassContext{Builder: builder.New(builder.DebugInfoOff), Level: O3}
	m := &MicroPassManager{PreOptimization: []MicroPass{p}}
	m.Run(ctx)
	// Two changing iterations plus the quiescent one that confirms the fixed
	// point; well under O3's cap of eight.
	require.Equal(t, 3, p.runs)
}

func TestFixedPointHonorsIterationCap(t *testing.T) {
	p := &countingPass{name: "p", changed: func(int) bool { return true }}
	ctx := &MicroPassContext{Builder: builder.New(builder.DebugInfoOff), Level: O1}
	m := &MicroPassManager{PreOptimization: []MicroPass{p}}
	m.Run(ctx)
	require.Equal(t, O1.IterationLimit(), p.runs)
}

func TestMandatoryPassesRunOnceInOrder(t *testing.T) {
	var order []string
	mk := func(name string) *countingPass {
		return &countingPass{name: name, changed: func(int) bool {
			order = append(order, name)
			return true // changed must not trigger re-runs in a linear list
		}}
	}
	a, b, c := mk("a"), mk("b"), mk("c")
	ctx := &MicroPassContext{Builder: builder.New(builder.DebugInfoOff), Level: O2}
	m := &MicroPassManager{Mandatory: []MicroPass{a, b, c}}
	m.Run(ctx)
	require.Equal(t, []string{"a", "b", "c"}, order)
}

func TestDefaultMandatoryOrder(t *testing.T) {
	passes := DefaultMandatory()
	require.Len(t, passes, 3)
	require.Equal(t, "regalloc", passes[0].Name())
	require.Equal(t, "prolog-epilog", passes[1].Name())
	require.Equal(t, "legalize", passes[2].Name())
}

func TestPassPrintDumpsRequestedStages(t *testing.T) {
	b := builder.New(builder.DebugInfoOff)
	b.EmitLoadRegImm(micro.IntPhysReg(micro.RAX), 7, micro.B64)

	p := &countingPass{name: "regalloc", changed: func(int) bool { return false }}
	ctx := &MicroPassContext{
		Builder:          b,
		Level:            O0,
		PassPrintOptions: map[string]bool{"pre-regalloc": true},
	}
	m := &MicroPassManager{Mandatory: []MicroPass{p}}
	m.Run(ctx)

	require.Len(t, ctx.Dumps, 1)
	require.Contains(t, ctx.Dumps[0], "pre-regalloc")
	require.Contains(t, ctx.Dumps[0], "rax := 7")
}
