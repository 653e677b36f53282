package backend

import (
	"testing"

	"github.com/stretchr/testify/require"

	"swc/internal/callconv"
	"swc/internal/micro"
	"swc/internal/micro/builder"
)

func runPrologEpilog(t *testing.T, b *builder.MicroBuilder, cc callconv.CallConv) {
	t.Helper()
	ctx := &MicroPassContext{Builder: b, CallConv: cc}
	NewPrologEpilogPass().Run(ctx)
}

func TestPrologueShape(t *testing.T) {
	b := builder.New(builder.DebugInfoOff)
	b.EmitEnter()
	b.EmitRet()

	runPrologEpilog(t, b, callconv.C)

	ops := opcodes(b)
	// push rbp; mov rbp, rsp; then the epilogue's mov rsp, rbp; pop rbp; ret.
	require.Equal(t, []micro.MicroInstrOpcode{
		micro.Push, micro.LoadRegReg,
		micro.LoadRegReg, micro.Pop, micro.Ret,
	}, ops)

	rbp, rsp := micro.IntPhysReg(micro.RBP), micro.IntPhysReg(micro.RSP)
	require.Equal(t, rbp, b.Instructions.Get(0).Ops(b.Operands)[0].Reg)
	mov := b.Instructions.Get(1).Ops(b.Operands)
	require.Equal(t, rbp, mov[0].Reg)
	require.Equal(t, rsp, mov[1].Reg)
}

func TestPrologueReservesFrameAndSavesClobbered(t *testing.T) {
	b := builder.New(builder.DebugInfoOff)
	b.Frame.AllocateSpillSlot()
	b.Frame.ClobberedIntRegs = []micro.MicroReg{micro.IntPhysReg(micro.RBX)}
	b.EmitEnter()
	b.EmitRet()

	runPrologEpilog(t, b, callconv.C)

	instrs := b.Instructions.View()
	// push rbp; mov; sub rsp, 16; push rbx; ... pop rbx; mov; pop rbp; ret
	require.Equal(t, micro.OpBinaryRegImm, instrs[2].Op)
	sub := b.Instructions.Get(2).Ops(b.Operands)
	require.Equal(t, micro.OpSubtract, sub[2].MicroOp)
	// One 8-byte slot rounded up to the 16-byte alignment.
	require.Equal(t, uint64(16), sub[3].ValueU64)

	require.Equal(t, micro.Push, instrs[3].Op)
	require.Equal(t, micro.IntPhysReg(micro.RBX), b.Instructions.Get(3).Ops(b.Operands)[0].Reg)

	// The epilogue restores in reverse order before ret.
	retIdx := len(instrs) - 1
	require.Equal(t, micro.Ret, instrs[retIdx].Op)
	require.Equal(t, micro.Pop, instrs[retIdx-1].Op) // pop rbp
	require.Equal(t, micro.Pop, instrs[retIdx-3].Op) // pop rbx
	require.Equal(t, micro.IntPhysReg(micro.RBX), b.Instructions.Get(micro.Ref(retIdx-3)).Ops(b.Operands)[0].Reg)
}

func TestWindowsCallStackAdjustment(t *testing.T) {
	b := builder.New(builder.DebugInfoOff)
	b.EmitEnter()

	// Five integer arguments: four in registers, one on the stack.
	params := make([]builder.CallParam, 5)
	for i := range params {
		params[i] = builder.CallParam{Src: micro.IntPhysReg(micro.RAX), Bits: micro.B64}
	}
	b.EmitCallParams(callconv.WindowsX64, params)
	b.EmitCallExtern(micro.IdentifierRef(1), micro.CallConvWindowsX64)
	b.EmitRet()

	runPrologEpilog(t, b, callconv.WindowsX64)

	// 32-byte shadow space + one 8-byte stack argument, aligned to 16 -> 48.
	var subVal, addVal uint64
	subIdx, callIdx, addIdx := -1, -1, -1
	instrs := b.Instructions.View()
	for i := range instrs {
		if instrs[i].Op == micro.CallExtern {
			callIdx = i
			continue
		}
		if instrs[i].Op != micro.OpBinaryRegImm {
			continue
		}
		ops := b.Instructions.Get(micro.Ref(i)).Ops(b.Operands)
		if ops[0].Reg != micro.IntPhysReg(micro.RSP) {
			continue
		}
		switch ops[2].MicroOp {
		case micro.OpSubtract:
			subVal, subIdx = ops[3].ValueU64, i
		case micro.OpAdd:
			addVal, addIdx = ops[3].ValueU64, i
		}
	}
	require.Equal(t, uint64(48), subVal)
	require.Equal(t, uint64(48), addVal)

	// The bracket must enclose the call: sub before it, add after it, so the
	// return-address push lands below the argument area.
	require.GreaterOrEqual(t, callIdx, 0)
	require.Less(t, subIdx, callIdx)
	require.Greater(t, addIdx, callIdx)

	// The stack argument stores into [rsp + shadow space].
	var stackStore []micro.MicroInstrOperand
	for i := range instrs {
		if instrs[i].Op == micro.LoadMemReg {
			ops := b.Instructions.Get(micro.Ref(i)).Ops(b.Operands)
			if ops[0].Reg == micro.IntPhysReg(micro.RSP) {
				stackStore = ops
			}
		}
	}
	require.NotNil(t, stackStore)
	require.Equal(t, uint64(32), stackStore[3].ValueU64)
}

func TestCallParamsResolveAgainstCallSiteConvention(t *testing.T) {
	b := builder.New(builder.DebugInfoOff)
	b.EmitEnter()
	b.EmitCallParams(callconv.C, []builder.CallParam{
		{Src: micro.IntPhysReg(micro.RAX), Bits: micro.B64},
	})
	b.EmitCallLocal(micro.IdentifierRef(1), micro.CallConvC)
	b.EmitRet()

	runPrologEpilog(t, b, callconv.C)

	// SysV's first integer argument register is rdi.
	var argMove []micro.MicroInstrOperand
	instrs := b.Instructions.View()
	for i := range instrs {
		if instrs[i].Op == micro.LoadRegReg {
			ops := b.Instructions.Get(micro.Ref(i)).Ops(b.Operands)
			if ops[0].Reg == micro.IntPhysReg(micro.RDI) {
				argMove = ops
			}
		}
	}
	require.NotNil(t, argMove)
	require.Equal(t, micro.IntPhysReg(micro.RAX), argMove[1].Reg)

	// No stack bracket for a register-only SysV call (no shadow space).
	for i := range instrs {
		require.NotEqual(t, micro.OpBinaryRegImm, instrs[i].Op)
	}
}
