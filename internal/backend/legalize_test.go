package backend

import (
	"testing"

	"github.com/stretchr/testify/require"

	"swc/internal/micro"
	"swc/internal/micro/builder"
)

func runLegalize(t *testing.T, b *builder.MicroBuilder) bool {
	t.Helper()
	ctx := &MicroPassContext{Builder: b}
	return NewLegalizePass().Run(ctx)
}

func opcodes(b *builder.MicroBuilder) []micro.MicroInstrOpcode {
	instrs := b.Instructions.View()
	out := make([]micro.MicroInstrOpcode, len(instrs))
	for i := range instrs {
		out[i] = instrs[i].Op
	}
	return out
}

func TestLegalizeShiftCountMovesToRCX(t *testing.T) {
	b := builder.New(builder.DebugInfoOff)
	rax, rbx := micro.IntPhysReg(micro.RAX), micro.IntPhysReg(micro.RBX)
	b.EmitOpBinaryRegReg(rax, rbx, micro.OpShiftLeft, micro.B64)

	require.True(t, runLegalize(t, b))
	require.Equal(t, []micro.MicroInstrOpcode{micro.LoadRegReg, micro.OpBinaryRegReg}, opcodes(b))

	mov := b.Instructions.Get(0).Ops(b.Operands)
	require.Equal(t, micro.IntPhysReg(micro.RCX), mov[0].Reg)
	require.Equal(t, rbx, mov[1].Reg)

	shift := b.Instructions.Get(1).Ops(b.Operands)
	require.Equal(t, rax, shift[0].Reg)
	require.Equal(t, micro.IntPhysReg(micro.RCX), shift[1].Reg)
}

func TestLegalizeShiftAlreadyInRCXIsUntouched(t *testing.T) {
	b := builder.New(builder.DebugInfoOff)
	rax, rcx := micro.IntPhysReg(micro.RAX), micro.IntPhysReg(micro.RCX)
	b.EmitOpBinaryRegReg(rax, rcx, micro.OpShiftRight, micro.B64)

	require.False(t, runLegalize(t, b))
	require.Equal(t, []micro.MicroInstrOpcode{micro.OpBinaryRegReg}, opcodes(b))
}

func TestLegalizeSignedDivisionMaterializesRAXRDX(t *testing.T) {
	b := builder.New(builder.DebugInfoOff)
	rdi, rsi := micro.IntPhysReg(micro.RDI), micro.IntPhysReg(micro.RSI)
	b.EmitOpBinaryRegReg(rdi, rsi, micro.OpDivideSigned, micro.B64)

	require.True(t, runLegalize(t, b))
	require.Equal(t, []micro.MicroInstrOpcode{
		micro.Push,       // save rax
		micro.Push,       // save rdx
		micro.LoadRegReg, // rax := rdi
		micro.OpUnaryReg, // cqo
		micro.OpUnaryReg, // idiv rsi
		micro.LoadRegReg, // rdi := rax
		micro.Pop,        // restore rdx
		micro.Pop,        // restore rax
	}, opcodes(b))

	rax := micro.IntPhysReg(micro.RAX)
	require.Equal(t, rax, b.Instructions.Get(2).Ops(b.Operands)[0].Reg)
	require.Equal(t, rdi, b.Instructions.Get(2).Ops(b.Operands)[1].Reg)

	cqo := b.Instructions.Get(3).Ops(b.Operands)
	require.Equal(t, micro.OpMoveSignExtend, cqo[2].MicroOp)

	div := b.Instructions.Get(4).Ops(b.Operands)
	require.Equal(t, rsi, div[0].Reg)
	require.Equal(t, micro.OpDivideSigned, div[2].MicroOp)

	back := b.Instructions.Get(5).Ops(b.Operands)
	require.Equal(t, rdi, back[0].Reg)
	require.Equal(t, rax, back[1].Reg)

	// The restores come back in reverse push order.
	require.Equal(t, micro.IntPhysReg(micro.RDX), b.Instructions.Get(6).Ops(b.Operands)[0].Reg)
	require.Equal(t, rax, b.Instructions.Get(7).Ops(b.Operands)[0].Reg)
}

func TestLegalizeUnsignedModuloTakesRDXAndClearsIt(t *testing.T) {
	b := builder.New(builder.DebugInfoOff)
	rdi, rsi := micro.IntPhysReg(micro.RDI), micro.IntPhysReg(micro.RSI)
	b.EmitOpBinaryRegReg(rdi, rsi, micro.OpModuloUnsigned, micro.B64)

	require.True(t, runLegalize(t, b))
	require.Equal(t, []micro.MicroInstrOpcode{
		micro.Push, micro.Push,
		micro.LoadRegReg, micro.ClearReg, micro.OpUnaryReg, micro.LoadRegReg,
		micro.Pop, micro.Pop,
	}, opcodes(b))

	rdx := micro.IntPhysReg(micro.RDX)
	require.Equal(t, rdx, b.Instructions.Get(3).Ops(b.Operands)[0].Reg)
	// The remainder comes back out of rdx.
	require.Equal(t, rdx, b.Instructions.Get(5).Ops(b.Operands)[1].Reg)
}

func TestLegalizeHoistsOversized64BitImmediate(t *testing.T) {
	b := builder.New(builder.DebugInfoOff)
	rax := micro.IntPhysReg(micro.RAX)
	big := uint64(0x1_0000_0000)
	b.EmitOpBinaryRegImm(rax, big, micro.OpAdd, micro.B64)

	require.True(t, runLegalize(t, b))
	require.Equal(t, []micro.MicroInstrOpcode{micro.LoadRegImm, micro.OpBinaryRegReg}, opcodes(b))

	load := b.Instructions.Get(0).Ops(b.Operands)
	require.Equal(t, big, load[2].ValueU64)

	add := b.Instructions.Get(1).Ops(b.Operands)
	require.Equal(t, rax, add[0].Reg)
	require.Equal(t, load[0].Reg, add[1].Reg)
	require.Equal(t, micro.OpAdd, add[3].MicroOp)
}

func TestLegalizeKeepsFittingImmediates(t *testing.T) {
	b := builder.New(builder.DebugInfoOff)
	rax := micro.IntPhysReg(micro.RAX)
	b.EmitOpBinaryRegImm(rax, 0x7FFFFFFF, micro.OpAdd, micro.B64)
	// Negative 32-bit values sign-extend fine too.
	b.EmitCmpRegImm(rax, uint64(0xFFFFFFFF80000000), micro.B64)

	require.False(t, runLegalize(t, b))
	require.Equal(t, []micro.MicroInstrOpcode{micro.OpBinaryRegImm, micro.CmpRegImm}, opcodes(b))
}

func TestLegalizeHoistsOversizedCompareImmediate(t *testing.T) {
	b := builder.New(builder.DebugInfoOff)
	rax := micro.IntPhysReg(micro.RAX)
	b.EmitCmpRegImm(rax, 0x123456789A, micro.B64)

	require.True(t, runLegalize(t, b))
	require.Equal(t, []micro.MicroInstrOpcode{micro.LoadRegImm, micro.CmpRegReg}, opcodes(b))
}
