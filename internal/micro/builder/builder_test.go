package builder

import (
	"testing"

	"github.com/stretchr/testify/require"

	"swc/internal/callconv"
	"swc/internal/micro"
)

func TestVirtualRegisterCounters(t *testing.T) {
	b := New(DebugInfoOff)
	v0 := b.VirtualIntReg()
	v1 := b.VirtualIntReg()
	f0 := b.VirtualFloatReg()
	require.Equal(t, uint32(0), v0.Index())
	require.Equal(t, uint32(1), v1.Index())
	// Float virtuals count in their own namespace.
	require.Equal(t, uint32(0), f0.Index())
	require.True(t, v0.IsInt() && v0.IsVirtual())
	require.True(t, f0.IsFloat() && f0.IsVirtual())
}

func TestEmitLoadRegImmLayout(t *testing.T) {
	b := New(DebugInfoOff)
	dst := b.VirtualIntReg()
	_, ref := b.EmitLoadRegImm(dst, 0x1234, micro.B64)

	instr := b.Instructions.Get(ref)
	require.Equal(t, micro.LoadRegImm, instr.Op)
	require.Equal(t, uint8(3), instr.NumOperands)
	ops := instr.Ops(b.Operands)
	require.Equal(t, dst, ops[0].Reg)
	require.Equal(t, micro.B64, ops[1].OpBits)
	require.Equal(t, uint64(0x1234), ops[2].ValueU64)
}

func TestEmitOpBinaryRegRegLayout(t *testing.T) {
	b := New(DebugInfoOff)
	dst, src := b.VirtualIntReg(), b.VirtualIntReg()
	_, ref := b.EmitOpBinaryRegReg(dst, src, micro.OpAdd, micro.B32)

	ops := b.Instructions.Get(ref).Ops(b.Operands)
	require.Equal(t, dst, ops[0].Reg)
	require.Equal(t, src, ops[1].Reg)
	require.Equal(t, micro.B32, ops[2].OpBits)
	require.Equal(t, micro.OpAdd, ops[3].MicroOp)
}

func TestEmitOpUnaryRegRejectsBinaryOp(t *testing.T) {
	b := New(DebugInfoOff)
	require.Panics(t, func() { b.EmitOpUnaryReg(b.VirtualIntReg(), micro.OpAdd, micro.B32) })
}

func TestEmitLoadAmcRegMemValidatesScale(t *testing.T) {
	b := New(DebugInfoOff)
	dst, base, mul := b.VirtualIntReg(), b.VirtualIntReg(), b.VirtualIntReg()
	require.Panics(t, func() {
		b.EmitLoadAmcRegMem(dst, micro.B64, micro.AMC{Base: base, Mul: mul, Scale: 3}, micro.B64)
	})
	// NoBase index skips the scale check entirely.
	b.EmitLoadAmcRegMem(dst, micro.B64, micro.AMC{Base: base, Mul: micro.NoBase, Scale: 0}, micro.B64)
}

func TestForbiddenPhysRegs(t *testing.T) {
	b := New(DebugInfoOff)
	v := b.VirtualIntReg()
	rdx := micro.IntPhysReg(micro.RDX)
	b.AddVirtualRegForbiddenPhysReg(v, rdx)
	require.Equal(t, []micro.MicroReg{rdx}, b.ForbiddenPhysRegs(v))
	require.Empty(t, b.ForbiddenPhysRegs(b.VirtualIntReg()))
}

func TestForwardJumpResolvesAtPlaceLabel(t *testing.T) {
	b := New(DebugInfoOff)
	l := b.CreateLabel()
	_, placed := b.LabelInstr(l)
	require.False(t, placed)

	_, jumpRef := b.EmitJumpToLabel(micro.CondEqual, micro.B32, l)
	require.Equal(t, micro.JumpCond, b.Instructions.Get(jumpRef).Op)

	b.EmitNop()
	b.PlaceLabel(l)

	labelRef, placed := b.LabelInstr(l)
	require.True(t, placed)
	require.Equal(t, micro.Label, b.Instructions.Get(labelRef).Op)

	// The patch record appended by PlaceLabel points the jump at the label.
	var patch *micro.MicroInstr
	var patchOps []micro.MicroInstrOperand
	for i := 0; i < b.Instructions.Count(); i++ {
		instr := b.Instructions.Get(micro.Ref(i))
		if instr.Op == micro.PatchJump {
			patch = instr
			patchOps = instr.Ops(b.Operands)
		}
	}
	require.NotNil(t, patch)
	require.Equal(t, uint64(jumpRef), patchOps[0].ValueU64)
	require.Equal(t, uint64(labelRef), patchOps[1].ValueU64)
}

func TestBackwardJumpEmitsResolvedForm(t *testing.T) {
	b := New(DebugInfoOff)
	l := b.CreateLabel()
	b.PlaceLabel(l)
	labelRef, _ := b.LabelInstr(l)

	_, jumpRef := b.EmitJumpToLabel(micro.CondUnconditional, micro.B32, l)
	instr := b.Instructions.Get(jumpRef)
	require.Equal(t, micro.JumpCondImm, instr.Op)
	require.Equal(t, uint64(labelRef), instr.Ops(b.Operands)[2].ValueU64)
}

func TestDebugInfoSnapshotsCurrentSourceRef(t *testing.T) {
	b := New(DebugInfoOn)
	src := micro.SourceCodeRef{ViewRef: 1, Line: 42, Column: 7, Len: 3}
	b.SetCurrentSourceRef(src)
	_, ref := b.EmitLoadRegImm(b.VirtualIntReg(), 1, micro.B64)

	got, ok := b.DebugInfo.Get(ref)
	require.True(t, ok)
	require.Equal(t, src, got)
}

func TestDebugInfoOffAttachesNothing(t *testing.T) {
	b := New(DebugInfoOff)
	b.SetCurrentSourceRef(micro.SourceCodeRef{Line: 1})
	_, ref := b.EmitLoadRegImm(b.VirtualIntReg(), 1, micro.B64)
	_, ok := b.DebugInfo.Get(ref)
	require.False(t, ok)
}

func TestEmitCallParamsSplitsRegisterAndStack(t *testing.T) {
	b := New(DebugInfoOff)
	params := make([]CallParam, 8)
	for i := range params {
		params[i] = CallParam{Src: b.VirtualIntReg(), Bits: micro.B64}
	}
	b.EmitCallParams(callconv.C, params)

	var loads, stores int
	for i := 0; i < b.Instructions.Count(); i++ {
		switch b.Instructions.Get(micro.Ref(i)).Op {
		case micro.LoadCallParam:
			loads++
		case micro.StoreCallParam:
			stores++
		}
	}
	// SysV has six integer argument registers; the remaining two go to the
	// stack.
	require.Equal(t, 6, loads)
	require.Equal(t, 2, stores)
}

func TestEmitLoadSymbolRelocAddressRecordsRelocation(t *testing.T) {
	b := New(DebugInfoOff)
	sym := micro.IdentifierRef(5)
	_, ref := b.EmitLoadSymbolRelocAddress(b.VirtualIntReg(), sym, micro.RelocForeignFunctionAddress, micro.B64)

	entries := b.Relocations.Entries()
	require.Len(t, entries, 1)
	require.Equal(t, micro.RelocForeignFunctionAddress, entries[0].Kind)
	require.Equal(t, ref, entries[0].InstructionRef)
	require.Equal(t, sym, entries[0].TargetSymbol)
}

func TestFormatInstructionsSkipsIgnored(t *testing.T) {
	b := New(DebugInfoOff)
	_, keep := b.EmitLoadRegImm(micro.IntPhysReg(micro.RAX), 7, micro.B64)
	_, drop := b.EmitLoadRegImm(micro.IntPhysReg(micro.RCX), 8, micro.B64)
	b.Instructions.Get(drop).Op = micro.Ignore

	out := FormatInstructions(b, PrintOptions{})
	require.Contains(t, out, "rax := 7")
	require.NotContains(t, out, "rcx")
	_ = keep
}
