package amd64

import (
	"encoding/binary"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"

	"swc/internal/micro"
	"swc/internal/micro/builder"
)

func encode(t *testing.T, b *builder.MicroBuilder) *Encoder {
	t.Helper()
	e := New()
	require.NoError(t, e.Encode(b))
	return e
}

func TestEncodeSimpleSequence(t *testing.T) {
	b := builder.New(builder.DebugInfoOff)
	rax, rcx := micro.IntPhysReg(micro.RAX), micro.IntPhysReg(micro.RCX)
	b.EmitLoadRegImm(rax, 0x1234, micro.B64)
	b.EmitOpBinaryRegReg(rax, rcx, micro.OpAdd, micro.B64)
	b.EmitRet()

	e := encode(t, b)
	require.Equal(t, "48b834120000000000004801c8c3", hex.EncodeToString(e.Code))
	require.Equal(t, byte(0xC3), e.Code[len(e.Code)-1])

	// Per-instruction offsets stay monotonic and map back into the buffer.
	require.Equal(t, []uint32{0, 10, 13}, e.InstrOffsets)
}

func TestEncodeForms(t *testing.T) {
	rax := micro.IntPhysReg(micro.RAX)
	rcx := micro.IntPhysReg(micro.RCX)
	rdx := micro.IntPhysReg(micro.RDX)
	rbp := micro.IntPhysReg(micro.RBP)
	rsi := micro.IntPhysReg(micro.RSI)
	r12 := micro.IntPhysReg(micro.R12)
	neg8 := int64(-8)

	for _, tc := range []struct {
		name  string
		setup func(b *builder.MicroBuilder)
		want  string
	}{
		{
			name:  "mov ecx imm32",
			setup: func(b *builder.MicroBuilder) { b.EmitLoadRegImm(rcx, 0x1234, micro.B32) },
			want:  "b934120000",
		},
		{
			name:  "clear reg uses 32-bit xor",
			setup: func(b *builder.MicroBuilder) { b.EmitClearReg(rax, micro.B64) },
			want:  "31c0",
		},
		{
			name:  "push rbp",
			setup: func(b *builder.MicroBuilder) { b.EmitPush(rbp) },
			want:  "55",
		},
		{
			name:  "push r12 needs rex.b",
			setup: func(b *builder.MicroBuilder) { b.EmitPush(r12) },
			want:  "4154",
		},
		{
			name:  "pop rbp",
			setup: func(b *builder.MicroBuilder) { b.EmitPop(rbp) },
			want:  "5d",
		},
		{
			name:  "load from rbp-8",
			setup: func(b *builder.MicroBuilder) { b.EmitLoadRegMem(rax, rbp, uint64(neg8), micro.B64) },
			want:  "488b45f8",
		},
		{
			name:  "store to rbp-8",
			setup: func(b *builder.MicroBuilder) { b.EmitLoadMemReg(rbp, uint64(neg8), rcx, micro.B64) },
			want:  "48894df8",
		},
		{
			name:  "cmp reg reg",
			setup: func(b *builder.MicroBuilder) { b.EmitCmpRegReg(rax, rcx, micro.B64) },
			want:  "4839c8",
		},
		{
			name:  "cmp reg small imm uses sign-extended imm8",
			setup: func(b *builder.MicroBuilder) { b.EmitCmpRegImm(rax, 10, micro.B64) },
			want:  "4883f80a",
		},
		{
			name:  "setcc zero-extends",
			setup: func(b *builder.MicroBuilder) { b.EmitSetCondReg(rax, micro.CondEqual) },
			want:  "0f94c00fb6c0",
		},
		{
			name:  "cmovne",
			setup: func(b *builder.MicroBuilder) { b.EmitLoadCondRegReg(rax, rcx, micro.CondNotEqual, micro.B64) },
			want:  "480f45c1",
		},
		{
			name:  "lea rax rcx+16",
			setup: func(b *builder.MicroBuilder) { b.EmitLoadAddressRegMem(rax, rcx, 16, micro.B64) },
			want:  "488d4110",
		},
		{
			name: "amc load with sib",
			setup: func(b *builder.MicroBuilder) {
				b.EmitLoadAmcRegMem(rax, micro.B64, micro.AMC{Base: rcx, Mul: rdx, Scale: 4, Displacement: 8}, micro.B64)
			},
			want: "488b449108",
		},
		{
			name: "idiv",
			setup: func(b *builder.MicroBuilder) {
				b.EmitOpUnaryReg(rsi, micro.OpDivideSigned, micro.B64)
			},
			want: "48f7fe",
		},
		{
			name: "cqo",
			setup: func(b *builder.MicroBuilder) {
				b.EmitOpUnaryReg(rax, micro.OpMoveSignExtend, micro.B64)
			},
			want: "4899",
		},
		{
			name: "shl rax by cl",
			setup: func(b *builder.MicroBuilder) {
				b.EmitOpBinaryRegReg(rax, rcx, micro.OpShiftLeft, micro.B64)
			},
			want: "48d3e0",
		},
		{
			name:  "neg rax",
			setup: func(b *builder.MicroBuilder) { b.EmitOpUnaryReg(rax, micro.OpNegate, micro.B64) },
			want:  "48f7d8",
		},
		{
			name:  "imul rax rcx",
			setup: func(b *builder.MicroBuilder) { b.EmitOpBinaryRegReg(rax, rcx, micro.OpMultiplySigned, micro.B64) },
			want:  "480fafc1",
		},
		{
			name:  "add eax imm8",
			setup: func(b *builder.MicroBuilder) { b.EmitOpBinaryRegImm(rax, 5, micro.OpAdd, micro.B32) },
			want:  "83c005",
		},
		{
			name:  "call indirect",
			setup: func(b *builder.MicroBuilder) { b.EmitCallReg(rax, micro.CallConvC) },
			want:  "ffd0",
		},
		{
			name:  "jump indirect",
			setup: func(b *builder.MicroBuilder) { b.EmitJumpReg(rax) },
			want:  "ffe0",
		},
		{
			name:  "movsx rax from cl",
			setup: func(b *builder.MicroBuilder) { b.EmitLoadSignedExtRegReg(rax, rcx, micro.B64, micro.B8) },
			want:  "480fbec1",
		},
		{
			name:  "movzx eax from cx",
			setup: func(b *builder.MicroBuilder) { b.EmitLoadZeroExtRegReg(rax, rcx, micro.B32, micro.B16) },
			want:  "0fb7c1",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			b := builder.New(builder.DebugInfoOff)
			tc.setup(b)
			e := encode(t, b)
			require.Equal(t, tc.want, hex.EncodeToString(e.Code))
		})
	}
}

func TestForwardJumpShortForm(t *testing.T) {
	b := builder.New(builder.DebugInfoOff)
	rax := micro.IntPhysReg(micro.RAX)
	l := b.CreateLabel()
	b.EmitJumpToLabel(micro.CondEqual, micro.B32, l)
	for i := 0; i < 2; i++ {
		b.EmitLoadRegImm(rax, 1, micro.B64) // 10 bytes each
	}
	b.PlaceLabel(l)
	b.EmitRet()

	e := encode(t, b)
	require.Equal(t, byte(0x74), e.Code[0])
	require.Equal(t, byte(20), e.Code[1])
	require.Equal(t, 2+20+1, len(e.Code))
}

func TestForwardJumpLongForm(t *testing.T) {
	b := builder.New(builder.DebugInfoOff)
	rax := micro.IntPhysReg(micro.RAX)
	l := b.CreateLabel()
	b.EmitJumpToLabel(micro.CondEqual, micro.B32, l)
	for i := 0; i < 20; i++ {
		b.EmitLoadRegImm(rax, 1, micro.B64) // 200 bytes in total
	}
	b.PlaceLabel(l)
	b.EmitRet()

	e := encode(t, b)
	require.Equal(t, byte(0x0F), e.Code[0])
	require.Equal(t, byte(0x84), e.Code[1])
	require.Equal(t, uint32(200), binary.LittleEndian.Uint32(e.Code[2:6]))
	require.Equal(t, 6+200+1, len(e.Code))
}

func TestBackwardJump(t *testing.T) {
	b := builder.New(builder.DebugInfoOff)
	rax := micro.IntPhysReg(micro.RAX)
	l := b.CreateLabel()
	b.PlaceLabel(l)
	b.EmitLoadRegImm(rax, 1, micro.B64)
	b.EmitJumpToLabel(micro.CondEqual, micro.B32, l)

	e := encode(t, b)
	// The loop body is 10 bytes, the short jump itself 2: displacement -12.
	require.Equal(t, byte(0x74), e.Code[10])
	require.Equal(t, byte(0xF4), e.Code[11])
}

func TestUnconditionalJumpForms(t *testing.T) {
	b := builder.New(builder.DebugInfoOff)
	l := b.CreateLabel()
	b.PlaceLabel(l)
	b.EmitJumpToLabel(micro.CondUnconditional, micro.B32, l)

	e := encode(t, b)
	require.Equal(t, "ebfe", hex.EncodeToString(e.Code))
}

func TestRelocationsStayInsideBuffer(t *testing.T) {
	b := builder.New(builder.DebugInfoOff)
	rax := micro.IntPhysReg(micro.RAX)
	b.EmitLoadSymbolRelocAddress(rax, micro.IdentifierRef(3), micro.RelocForeignFunctionAddress, micro.B64)
	b.EmitCallLocal(micro.IdentifierRef(4), micro.CallConvC)
	b.EmitRet()

	e := encode(t, b)
	require.Len(t, e.Relocations, 2)

	addr := e.Relocations[0]
	require.Equal(t, micro.RelocForeignFunctionAddress, addr.Kind)
	require.Equal(t, uint32(2), addr.Offset) // movabs imm64 field
	require.Equal(t, uint8(8), addr.Size)
	require.Equal(t, micro.IdentifierRef(3), addr.TargetSymbol)

	call := e.Relocations[1]
	require.Equal(t, micro.RelocLocalFunctionAddress, call.Kind)
	require.Equal(t, uint32(11), call.Offset) // rel32 of the E8 at offset 10
	require.Equal(t, uint8(4), call.Size)
	require.Equal(t, micro.IdentifierRef(4), call.TargetSymbol)

	for _, r := range e.Relocations {
		require.LessOrEqual(t, int(r.Offset)+int(r.Size), len(e.Code))
	}
}

func TestIgnoredInstructionsEmitNoBytes(t *testing.T) {
	b := builder.New(builder.DebugInfoOff)
	rax := micro.IntPhysReg(micro.RAX)
	b.EmitLoadRegImm(rax, 1, micro.B64)
	_, dropped := b.EmitLoadRegImm(rax, 2, micro.B64)
	b.Instructions.Get(dropped).Op = micro.Ignore
	b.EmitRet()

	e := encode(t, b)
	require.Equal(t, 11, len(e.Code))
	// The ignored slot shares its offset with the following instruction.
	require.Equal(t, []uint32{0, 10, 10}, e.InstrOffsets)
}

func TestEncodeRejectsUnexpandedEnter(t *testing.T) {
	b := builder.New(builder.DebugInfoOff)
	b.EmitEnter()
	b.EmitRet()
	require.Error(t, New().Encode(b))
}
