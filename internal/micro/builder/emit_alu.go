package builder

import "swc/internal/micro"

// EmitOpUnaryReg appends an in-place unary op on a register (e.g. neg, not,
// bswap, popcnt), or one of the one-operand forms that use RAX/RDX
// implicitly: the four div/mod ops with reg as the divisor, and
// MoveSignExtend (cdq/cqo).
func (b *MicroBuilder) EmitOpUnaryReg(reg micro.MicroReg, op micro.MicroOp, bits micro.MicroOpBits) (micro.EncodeResult, micro.Ref) {
	if !op.IsUnary() && !op.IsDivOrMod() && op != micro.OpMoveSignExtend {
		panic("BUG: EmitOpUnaryReg called with a non-unary MicroOp")
	}
	ref := b.addInstruction(micro.OpUnaryReg, 0,
		micro.MicroInstrOperand{Reg: reg},
		micro.MicroInstrOperand{OpBits: bits},
		micro.MicroInstrOperand{MicroOp: op},
	)
	return micro.EncodeResultZero, ref
}

// EmitOpUnaryMem appends an in-place unary op on a memory operand.
func (b *MicroBuilder) EmitOpUnaryMem(base micro.MicroReg, disp uint64, op micro.MicroOp, bits micro.MicroOpBits) (micro.EncodeResult, micro.Ref) {
	ref := b.addInstruction(micro.OpUnaryMem, 0,
		micro.MicroInstrOperand{Reg: base},
		micro.MicroInstrOperand{OpBits: bits},
		micro.MicroInstrOperand{MicroOp: op},
		micro.MicroInstrOperand{ValueU64: disp},
	)
	return micro.EncodeResultZero, ref
}

// EmitOpBinaryRegReg appends the two-operand form `dst = op(dst, src)`.
func (b *MicroBuilder) EmitOpBinaryRegReg(dst, src micro.MicroReg, op micro.MicroOp, bits micro.MicroOpBits) (micro.EncodeResult, micro.Ref) {
	ref := b.addInstruction(micro.OpBinaryRegReg, 0,
		micro.MicroInstrOperand{Reg: dst},
		micro.MicroInstrOperand{Reg: src},
		micro.MicroInstrOperand{OpBits: bits},
		micro.MicroInstrOperand{MicroOp: op},
	)
	return micro.EncodeResultZero, ref
}

// EmitOpBinaryRegMem appends `dst = op(dst, [base+disp])`.
func (b *MicroBuilder) EmitOpBinaryRegMem(dst, base micro.MicroReg, disp uint64, op micro.MicroOp, bits micro.MicroOpBits) (micro.EncodeResult, micro.Ref) {
	ref := b.addInstruction(micro.OpBinaryRegMem, 0,
		micro.MicroInstrOperand{Reg: dst},
		micro.MicroInstrOperand{Reg: base},
		micro.MicroInstrOperand{OpBits: bits},
		micro.MicroInstrOperand{MicroOp: op},
		micro.MicroInstrOperand{ValueU64: disp},
	)
	return micro.EncodeResultZero, ref
}

// EmitOpBinaryMemReg appends `[base+disp] = op([base+disp], src)`.
func (b *MicroBuilder) EmitOpBinaryMemReg(base micro.MicroReg, disp uint64, src micro.MicroReg, op micro.MicroOp, bits micro.MicroOpBits) (micro.EncodeResult, micro.Ref) {
	ref := b.addInstruction(micro.OpBinaryMemReg, 0,
		micro.MicroInstrOperand{Reg: base},
		micro.MicroInstrOperand{Reg: src},
		micro.MicroInstrOperand{OpBits: bits},
		micro.MicroInstrOperand{MicroOp: op},
		micro.MicroInstrOperand{ValueU64: disp},
	)
	return micro.EncodeResultZero, ref
}

// EmitOpBinaryRegImm appends `dst = op(dst, imm)`. Callers must have already
// legalized imm to fit the target encoding; the legalize pass re-checks and
// hoists oversized immediates to a scratch register.
func (b *MicroBuilder) EmitOpBinaryRegImm(dst micro.MicroReg, value uint64, op micro.MicroOp, bits micro.MicroOpBits) (micro.EncodeResult, micro.Ref) {
	ref := b.addInstruction(micro.OpBinaryRegImm, 0,
		micro.MicroInstrOperand{Reg: dst},
		micro.MicroInstrOperand{OpBits: bits},
		micro.MicroInstrOperand{MicroOp: op},
		micro.MicroInstrOperand{ValueU64: value},
	)
	return micro.EncodeResultZero, ref
}

// EmitOpBinaryMemImm appends `[base+disp] = op([base+disp], imm)`.
func (b *MicroBuilder) EmitOpBinaryMemImm(base micro.MicroReg, disp, value uint64, op micro.MicroOp, bits micro.MicroOpBits) (micro.EncodeResult, micro.Ref) {
	ref := b.addInstruction(micro.OpBinaryMemImm, 0,
		micro.MicroInstrOperand{Reg: base},
		micro.MicroInstrOperand{OpBits: bits},
		micro.MicroInstrOperand{MicroOp: op},
		micro.MicroInstrOperand{ValueU64: disp},
		micro.MicroInstrOperand{ValueU64: value},
	)
	return micro.EncodeResultZero, ref
}

// EmitOpTernaryRegRegReg appends a three-register op such as MultiplyAdd.
func (b *MicroBuilder) EmitOpTernaryRegRegReg(r0, r1, r2 micro.MicroReg, op micro.MicroOp, bits micro.MicroOpBits) (micro.EncodeResult, micro.Ref) {
	ref := b.addInstruction(micro.OpTernaryRegRegReg, 0,
		micro.MicroInstrOperand{Reg: r0},
		micro.MicroInstrOperand{Reg: r1},
		micro.MicroInstrOperand{Reg: r2},
		micro.MicroInstrOperand{OpBits: bits},
		micro.MicroInstrOperand{MicroOp: op},
	)
	return micro.EncodeResultZero, ref
}

// EmitCmpRegReg appends a register-register comparison that sets CPU flags.
func (b *MicroBuilder) EmitCmpRegReg(a, bb micro.MicroReg, bits micro.MicroOpBits) (micro.EncodeResult, micro.Ref) {
	ref := b.addInstruction(micro.CmpRegReg, 0,
		micro.MicroInstrOperand{Reg: a},
		micro.MicroInstrOperand{Reg: bb},
		micro.MicroInstrOperand{OpBits: bits},
	)
	return micro.EncodeResultZero, ref
}

// EmitCmpRegImm appends a register-immediate comparison.
func (b *MicroBuilder) EmitCmpRegImm(reg micro.MicroReg, value uint64, bits micro.MicroOpBits) (micro.EncodeResult, micro.Ref) {
	ref := b.addInstruction(micro.CmpRegImm, 0,
		micro.MicroInstrOperand{Reg: reg},
		micro.MicroInstrOperand{OpBits: bits},
		micro.MicroInstrOperand{ValueU64: value},
	)
	return micro.EncodeResultZero, ref
}

// EmitCmpMemReg appends a memory-register comparison.
func (b *MicroBuilder) EmitCmpMemReg(base micro.MicroReg, disp uint64, reg micro.MicroReg, bits micro.MicroOpBits) (micro.EncodeResult, micro.Ref) {
	ref := b.addInstruction(micro.CmpMemReg, 0,
		micro.MicroInstrOperand{Reg: base},
		micro.MicroInstrOperand{Reg: reg},
		micro.MicroInstrOperand{OpBits: bits},
		micro.MicroInstrOperand{ValueU64: disp},
	)
	return micro.EncodeResultZero, ref
}

// EmitCmpMemImm appends a memory-immediate comparison.
func (b *MicroBuilder) EmitCmpMemImm(base micro.MicroReg, disp, value uint64, bits micro.MicroOpBits) (micro.EncodeResult, micro.Ref) {
	ref := b.addInstruction(micro.CmpMemImm, 0,
		micro.MicroInstrOperand{Reg: base},
		micro.MicroInstrOperand{OpBits: bits},
		micro.MicroInstrOperand{ValueU64: disp},
		micro.MicroInstrOperand{ValueU64: value},
	)
	return micro.EncodeResultZero, ref
}

// EmitSetCondReg appends `dst = (cond ? 1 : 0)` zero-extended to dst's
// recorded width (setcc).
func (b *MicroBuilder) EmitSetCondReg(dst micro.MicroReg, cond micro.MicroCond) (micro.EncodeResult, micro.Ref) {
	ref := b.addInstruction(micro.SetCondReg, 0,
		micro.MicroInstrOperand{Reg: dst},
		micro.MicroInstrOperand{Cond: cond},
	)
	return micro.EncodeResultZero, ref
}

// EmitLoadCondRegReg appends a conditional move `dst = cond ? src : dst`.
func (b *MicroBuilder) EmitLoadCondRegReg(dst, src micro.MicroReg, cond micro.MicroCond, bits micro.MicroOpBits) (micro.EncodeResult, micro.Ref) {
	ref := b.addInstruction(micro.LoadCondRegReg, 0,
		micro.MicroInstrOperand{Reg: dst},
		micro.MicroInstrOperand{Reg: src},
		micro.MicroInstrOperand{Cond: cond},
		micro.MicroInstrOperand{OpBits: bits},
	)
	return micro.EncodeResultZero, ref
}
