package backend

import (
	"swc/internal/callconv"
	"swc/internal/micro"
	"swc/internal/micro/builder"
)

// PrologEpilogPass expands the Enter/Leave structural markers into a
// concrete stack frame and the LoadCallParam/LoadCallAddrParam/
// LoadCallZeroExtParam/StoreCallParam pseudo-instructions a call site buffers
// into concrete LoadRegReg/LoadRegMem/LoadMemReg plus the matching
// sub-rsp/add-rsp stack-argument bracket.
// It runs after RegisterAllocation, so Frame.ClobberedIntRegs/
// ClobberedFloatRegs and every spill slot are already final.
type PrologEpilogPass struct{}

// NewPrologEpilogPass returns the mandatory prolog/epilogue pass.
func NewPrologEpilogPass() *PrologEpilogPass { return &PrologEpilogPass{} }

func (p *PrologEpilogPass) Name() string              { return "prolog-epilog" }
func (p *PrologEpilogPass) PrintModeBefore() PrintMode { return PrintModeConcrete }
func (p *PrologEpilogPass) PrintModeAfter() PrintMode  { return PrintModeConcrete }

// pendingParam is one buffered call-parameter pseudo-instruction, held until
// the call site it belongs to is reached.
type pendingParam struct {
	op  micro.MicroInstrOpcode
	ops []micro.MicroInstrOperand
}

// Run replays the instruction stream, expanding Enter at the first
// instruction, every Ret's implicit epilogue, and every call site's
// buffered parameter pseudo-ops, into their concrete final forms.
func (p *PrologEpilogPass) Run(ctx *MicroPassContext) bool {
	b := ctx.Builder
	oldInstrs := b.Instructions.View()

	cc := ctx.CallConv
	if cc == nil {
		cc = callconv.C
	}

	newInstrs := micro.NewInstrStore()
	newOperands := micro.NewOperandStore()
	oldToNew := make(map[micro.Ref]micro.Ref, len(oldInstrs))
	changed := false

	floatSlots := make([]int64, len(b.Frame.ClobberedFloatRegs))
	for n := range b.Frame.ClobberedFloatRegs {
		floatSlots[n] = b.Frame.AllocateSpillSlot()
	}
	frameSize := alignedFrameSize(cc, b)

	var pending []pendingParam

	for i := range oldInstrs {
		instr := &oldInstrs[i]
		oldRef := micro.Ref(i)
		ops := instr.Ops(b.Operands)

		switch instr.Op {
		case micro.Enter:
			emitPrologue(newInstrs, newOperands, cc, b, frameSize, floatSlots)
			changed = true

		case micro.Leave:
			// The Ret-triggered expansion below is the single source of
			// epilogue emission; a standalone Leave marker (if codegen ever
			// emits one directly rather than via Ret) carries no bytes of
			// its own.

		case micro.Ret:
			emitEpilogue(newInstrs, newOperands, cc, b, frameSize, floatSlots)
			appendInstr(newInstrs, newOperands, micro.Ret, instr.EmitFlags)
			changed = true

		case micro.LoadCallParam, micro.LoadCallAddrParam, micro.LoadCallZeroExtParam, micro.StoreCallParam:
			pending = append(pending, pendingParam{op: instr.Op, ops: append([]micro.MicroInstrOperand(nil), ops...)})
			changed = true

		case micro.CallLocal, micro.CallExtern, micro.CallIndirect:
			callCC := callconv.ByKind(ops[len(ops)-1].CallConv)
			stackSize := flushCallParams(newInstrs, newOperands, callCC, pending)
			pending = nil
			appendInstr(newInstrs, newOperands, instr.Op, instr.EmitFlags, ops...)
			if stackSize > 0 {
				// Close the bracket only once the call has consumed its
				// arguments; releasing earlier would let the return-address
				// push land on the argument area.
				appendInstr(newInstrs, newOperands, micro.OpBinaryRegImm, 0,
					micro.MicroInstrOperand{Reg: callCC.StackPointer()}, micro.MicroInstrOperand{OpBits: micro.B64},
					micro.MicroInstrOperand{MicroOp: micro.OpAdd}, micro.MicroInstrOperand{ValueU64: uint64(stackSize)})
			}

		default:
			rewritten := make([]micro.MicroInstrOperand, len(ops))
			copy(rewritten, ops)
			if instr.Op == micro.PatchJump {
				rewritten[0].ValueU64 = uint64(oldToNew[micro.Ref(rewritten[0].ValueU64)])
				rewritten[1].ValueU64 = uint64(oldToNew[micro.Ref(rewritten[1].ValueU64)])
			} else if instr.Op == micro.JumpCondImm {
				rewritten[2].ValueU64 = uint64(oldToNew[micro.Ref(rewritten[2].ValueU64)])
			}
			appendInstr(newInstrs, newOperands, instr.Op, instr.EmitFlags, rewritten...)
		}

		if n := newInstrs.Count(); n > 0 {
			oldToNew[oldRef] = micro.Ref(n - 1)
		}
	}

	b.RemapInstructionRefs(oldToNew)
	b.Instructions = newInstrs
	b.Operands = newOperands
	return changed
}

// alignedFrameSize sums the allocator's spill slots and the builder's
// caller-reserved stack space, rounded up to cc's required alignment.
func alignedFrameSize(cc callconv.CallConv, b *builder.MicroBuilder) int64 {
	raw := b.Frame.SpillSlots*8 + b.Frame.UserReservedSize
	if raw == 0 {
		return 0
	}
	align := cc.StackAlignment()
	return (raw + align - 1) &^ (align - 1)
}

// emitPrologue appends `push rbp`, `mov rbp, rsp`, the frame-size
// subtraction, and a push/store for every clobbered callee-saved register,
// in that order.
func emitPrologue(instrs *micro.InstrStore, operands *micro.OperandStore, cc callconv.CallConv, b *builder.MicroBuilder, frameSize int64, floatSlots []int64) {
	rbp, rsp := cc.FramePointer(), cc.StackPointer()

	appendInstr(instrs, operands, micro.Push, 0, micro.MicroInstrOperand{Reg: rbp})
	appendInstr(instrs, operands, micro.LoadRegReg, 0,
		micro.MicroInstrOperand{Reg: rbp}, micro.MicroInstrOperand{Reg: rsp}, micro.MicroInstrOperand{OpBits: micro.B64})

	if frameSize > 0 {
		appendInstr(instrs, operands, micro.OpBinaryRegImm, 0,
			micro.MicroInstrOperand{Reg: rsp}, micro.MicroInstrOperand{OpBits: micro.B64},
			micro.MicroInstrOperand{MicroOp: micro.OpSubtract}, micro.MicroInstrOperand{ValueU64: uint64(frameSize)})
	}

	for _, r := range b.Frame.ClobberedIntRegs {
		appendInstr(instrs, operands, micro.Push, 0, micro.MicroInstrOperand{Reg: r})
	}
	for n, r := range b.Frame.ClobberedFloatRegs {
		disp := uint64(-b.Frame.SpillSlotOffset(floatSlots[n]))
		appendInstr(instrs, operands, micro.LoadMemReg, 0,
			micro.MicroInstrOperand{Reg: rbp}, micro.MicroInstrOperand{Reg: r},
			micro.MicroInstrOperand{OpBits: micro.B64}, micro.MicroInstrOperand{ValueU64: disp})
	}
}

// emitEpilogue appends the symmetric teardown: restore every clobbered
// callee-saved register (reverse order for the integer pushes, matching a
// stack discipline), then `mov rsp, rbp` and `pop rbp`. The caller appends
// the actual Ret.
func emitEpilogue(instrs *micro.InstrStore, operands *micro.OperandStore, cc callconv.CallConv, b *builder.MicroBuilder, frameSize int64, floatSlots []int64) {
	rbp, rsp := cc.FramePointer(), cc.StackPointer()

	for n := len(b.Frame.ClobberedFloatRegs) - 1; n >= 0; n-- {
		r := b.Frame.ClobberedFloatRegs[n]
		disp := uint64(-b.Frame.SpillSlotOffset(floatSlots[n]))
		appendInstr(instrs, operands, micro.LoadRegMem, 0,
			micro.MicroInstrOperand{Reg: r}, micro.MicroInstrOperand{Reg: rbp},
			micro.MicroInstrOperand{OpBits: micro.B64}, micro.MicroInstrOperand{ValueU64: disp})
	}
	for n := len(b.Frame.ClobberedIntRegs) - 1; n >= 0; n-- {
		appendInstr(instrs, operands, micro.Pop, 0, micro.MicroInstrOperand{Reg: b.Frame.ClobberedIntRegs[n]})
	}
	_ = frameSize // frame is released by mov rsp, rbp below, not an explicit add

	appendInstr(instrs, operands, micro.LoadRegReg, 0,
		micro.MicroInstrOperand{Reg: rsp}, micro.MicroInstrOperand{Reg: rbp}, micro.MicroInstrOperand{OpBits: micro.B64})
	appendInstr(instrs, operands, micro.Pop, 0, micro.MicroInstrOperand{Reg: rbp})
}

// flushCallParams resolves every buffered parameter pseudo-instruction
// against cc's register/stack assignment and emits the concrete sequence:
// the opening `sub rsp, N` of the stack-argument bracket, then each
// argument's load into its register or stack slot, in emission order. It
// returns the bracket's size so the caller can emit the matching
// `add rsp, N` after the call instruction itself. It does not attempt
// parallel-move cycle-breaking: if a later argument's source register is
// the destination of an earlier one, the earlier move clobbers it. Real
// call sites never produce such a cycle because every argument register is
// distinct from every virtual register still live past this point (the
// allocator spills or reassigns anything that would collide), but the
// simplification is worth naming plainly rather than silently.
func flushCallParams(instrs *micro.InstrStore, operands *micro.OperandStore, cc callconv.CallConv, pending []pendingParam) int64 {
	intRegs, floatRegs := cc.IntArgRegs(), cc.FloatArgRegs()
	rsp := cc.StackPointer()

	numStack := 0
	for _, pp := range pending {
		if pp.op == micro.StoreCallParam {
			numStack++
		}
	}
	stackSize := callconv.AlignedStackArgsSize(cc, int64(numStack))
	if stackSize > 0 {
		appendInstr(instrs, operands, micro.OpBinaryRegImm, 0,
			micro.MicroInstrOperand{Reg: rsp}, micro.MicroInstrOperand{OpBits: micro.B64},
			micro.MicroInstrOperand{MicroOp: micro.OpSubtract}, micro.MicroInstrOperand{ValueU64: uint64(stackSize)})
	}

	intIdx, floatIdx, stackIdx := 0, 0, 0
	for _, pp := range pending {
		switch pp.op {
		case micro.LoadCallParam:
			src, bits := pp.ops[0].Reg, pp.ops[1].OpBits
			dst := nextArgReg(src, intRegs, floatRegs, &intIdx, &floatIdx)
			appendInstr(instrs, operands, micro.LoadRegReg, 0,
				micro.MicroInstrOperand{Reg: dst}, micro.MicroInstrOperand{Reg: src}, micro.MicroInstrOperand{OpBits: bits})

		case micro.LoadCallAddrParam:
			src, disp := pp.ops[0].Reg, pp.ops[1].ValueU64
			dst := nextArgReg(src, intRegs, floatRegs, &intIdx, &floatIdx)
			appendInstr(instrs, operands, micro.LoadAddrRegMem, 0,
				micro.MicroInstrOperand{Reg: dst}, micro.MicroInstrOperand{Reg: src},
				micro.MicroInstrOperand{OpBits: micro.B64}, micro.MicroInstrOperand{ValueU64: disp})

		case micro.LoadCallZeroExtParam:
			src, dstBits, srcBits := pp.ops[0].Reg, pp.ops[1].OpBits, pp.ops[4].OpBits
			dst := nextArgReg(src, intRegs, floatRegs, &intIdx, &floatIdx)
			appendInstr(instrs, operands, micro.LoadZeroExtRegReg, 0,
				micro.MicroInstrOperand{Reg: dst}, micro.MicroInstrOperand{Reg: src},
				micro.MicroInstrOperand{OpBits: dstBits}, micro.MicroInstrOperand{OpBits: srcBits})

		case micro.StoreCallParam:
			src, bits := pp.ops[1].Reg, pp.ops[2].OpBits
			offset := uint64(cc.StackShadowSpace() + int64(stackIdx)*cc.StackSlotSize())
			appendInstr(instrs, operands, micro.LoadMemReg, 0,
				micro.MicroInstrOperand{Reg: rsp}, micro.MicroInstrOperand{Reg: src},
				micro.MicroInstrOperand{OpBits: bits}, micro.MicroInstrOperand{ValueU64: offset})
			stackIdx++
		}
	}

	return stackSize
}

func nextArgReg(src micro.MicroReg, intRegs, floatRegs []micro.MicroReg, intIdx, floatIdx *int) micro.MicroReg {
	if src.IsFloat() {
		r := floatRegs[*floatIdx]
		*floatIdx++
		return r
	}
	r := intRegs[*intIdx]
	*intIdx++
	return r
}
