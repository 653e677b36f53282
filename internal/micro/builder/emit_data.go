package builder

import "swc/internal/micro"

// EmitLoadRegImm appends `dst = imm` at the given width (LoadRegImm).
func (b *MicroBuilder) EmitLoadRegImm(dst micro.MicroReg, value uint64, bits micro.MicroOpBits) (micro.EncodeResult, micro.Ref) {
	ref := b.addInstruction(micro.LoadRegImm, 0,
		micro.MicroInstrOperand{Reg: dst},
		micro.MicroInstrOperand{OpBits: bits},
		micro.MicroInstrOperand{ValueU64: value},
	)
	return micro.EncodeResultZero, ref
}

// EmitLoadRegReg appends `dst = src` (LoadRegReg). dst and src must share a
// register class (int or float) and a compatible width.
func (b *MicroBuilder) EmitLoadRegReg(dst, src micro.MicroReg, bits micro.MicroOpBits) (micro.EncodeResult, micro.Ref) {
	ref := b.addInstruction(micro.LoadRegReg, 0,
		micro.MicroInstrOperand{Reg: dst},
		micro.MicroInstrOperand{Reg: src},
		micro.MicroInstrOperand{OpBits: bits},
	)
	return micro.EncodeResultZero, ref
}

// EmitLoadRegMem appends `dst = [base + disp]` (LoadRegMem).
func (b *MicroBuilder) EmitLoadRegMem(dst, base micro.MicroReg, disp uint64, bits micro.MicroOpBits) (micro.EncodeResult, micro.Ref) {
	ref := b.addInstruction(micro.LoadRegMem, 0,
		micro.MicroInstrOperand{Reg: dst},
		micro.MicroInstrOperand{Reg: base},
		micro.MicroInstrOperand{OpBits: bits},
		micro.MicroInstrOperand{ValueU64: disp},
	)
	return micro.EncodeResultZero, ref
}

// EmitLoadMemReg appends `[base + disp] = src` (LoadMemReg).
func (b *MicroBuilder) EmitLoadMemReg(base micro.MicroReg, disp uint64, src micro.MicroReg, bits micro.MicroOpBits) (micro.EncodeResult, micro.Ref) {
	ref := b.addInstruction(micro.LoadMemReg, 0,
		micro.MicroInstrOperand{Reg: base},
		micro.MicroInstrOperand{Reg: src},
		micro.MicroInstrOperand{OpBits: bits},
		micro.MicroInstrOperand{ValueU64: disp},
	)
	return micro.EncodeResultZero, ref
}

// EmitLoadMemImm appends `[base + disp] = imm` (LoadMemImm).
func (b *MicroBuilder) EmitLoadMemImm(base micro.MicroReg, disp, value uint64, bits micro.MicroOpBits) (micro.EncodeResult, micro.Ref) {
	ref := b.addInstruction(micro.LoadMemImm, 0,
		micro.MicroInstrOperand{Reg: base},
		micro.MicroInstrOperand{OpBits: bits},
		micro.MicroInstrOperand{ValueU64: disp},
		micro.MicroInstrOperand{ValueU64: value},
	)
	return micro.EncodeResultZero, ref
}

// EmitLoadAddressRegMem appends `dst = &[base + disp]` (LoadAddrRegMem, an
// LEA).
func (b *MicroBuilder) EmitLoadAddressRegMem(dst, base micro.MicroReg, disp uint64, bits micro.MicroOpBits) (micro.EncodeResult, micro.Ref) {
	ref := b.addInstruction(micro.LoadAddrRegMem, 0,
		micro.MicroInstrOperand{Reg: dst},
		micro.MicroInstrOperand{Reg: base},
		micro.MicroInstrOperand{OpBits: bits},
		micro.MicroInstrOperand{ValueU64: disp},
	)
	return micro.EncodeResultZero, ref
}

// EmitLoadAmcRegMem appends `dst = [base + mul*scale + disp]` (LoadAmcRegMem).
// scale must be one of {1, 2, 4, 8}.
func (b *MicroBuilder) EmitLoadAmcRegMem(dst micro.MicroReg, dstBits micro.MicroOpBits, amc micro.AMC, srcBits micro.MicroOpBits) (micro.EncodeResult, micro.Ref) {
	if !amc.Mul.IsNoBase() && !micro.ValidScale(amc.Scale) {
		panic("BUG: invalid AMC scale")
	}
	ref := b.addInstruction(micro.LoadAmcRegMem, 0,
		micro.MicroInstrOperand{Reg: dst},
		micro.MicroInstrOperand{Reg: amc.Base},
		micro.MicroInstrOperand{Reg: amc.Mul},
		micro.MicroInstrOperand{OpBits: dstBits},
		micro.MicroInstrOperand{OpBits: srcBits},
		micro.MicroInstrOperand{ValueU64: uint64(amc.Scale)},
		micro.MicroInstrOperand{ValueU64: amc.Displacement},
	)
	return micro.EncodeResultZero, ref
}

// EmitLoadAmcMemReg appends `[base + mul*scale + disp] = src` (LoadAmcMemReg).
func (b *MicroBuilder) EmitLoadAmcMemReg(amc micro.AMC, baseMulBits micro.MicroOpBits, src micro.MicroReg, srcBits micro.MicroOpBits) (micro.EncodeResult, micro.Ref) {
	ref := b.addInstruction(micro.LoadAmcMemReg, 0,
		micro.MicroInstrOperand{Reg: amc.Base},
		micro.MicroInstrOperand{Reg: amc.Mul},
		micro.MicroInstrOperand{Reg: src},
		micro.MicroInstrOperand{OpBits: baseMulBits},
		micro.MicroInstrOperand{OpBits: srcBits},
		micro.MicroInstrOperand{ValueU64: uint64(amc.Scale)},
		micro.MicroInstrOperand{ValueU64: amc.Displacement},
	)
	return micro.EncodeResultZero, ref
}

// EmitLoadAmcMemImm appends `[base + mul*scale + disp] = imm` (LoadAmcMemImm).
func (b *MicroBuilder) EmitLoadAmcMemImm(amc micro.AMC, baseMulBits micro.MicroOpBits, value uint64, valueBits micro.MicroOpBits) (micro.EncodeResult, micro.Ref) {
	ref := b.addInstruction(micro.LoadAmcMemImm, 0,
		micro.MicroInstrOperand{Reg: amc.Base},
		micro.MicroInstrOperand{Reg: amc.Mul},
		micro.MicroInstrOperand{},
		micro.MicroInstrOperand{OpBits: baseMulBits},
		micro.MicroInstrOperand{OpBits: valueBits},
		micro.MicroInstrOperand{ValueU64: uint64(amc.Scale)},
		micro.MicroInstrOperand{ValueU64: amc.Displacement},
		micro.MicroInstrOperand{ValueU64: value},
	)
	return micro.EncodeResultZero, ref
}

// EmitLoadAddressAmcRegMem appends `dst = &[base + mul*scale + disp]`
// (LoadAddrAmcRegMem, an AMC-form LEA).
func (b *MicroBuilder) EmitLoadAddressAmcRegMem(dst micro.MicroReg, dstBits micro.MicroOpBits, amc micro.AMC, valueBits micro.MicroOpBits) (micro.EncodeResult, micro.Ref) {
	ref := b.addInstruction(micro.LoadAddrAmcRegMem, 0,
		micro.MicroInstrOperand{Reg: dst},
		micro.MicroInstrOperand{Reg: amc.Base},
		micro.MicroInstrOperand{Reg: amc.Mul},
		micro.MicroInstrOperand{OpBits: dstBits},
		micro.MicroInstrOperand{OpBits: valueBits},
		micro.MicroInstrOperand{ValueU64: uint64(amc.Scale)},
		micro.MicroInstrOperand{ValueU64: amc.Displacement},
	)
	return micro.EncodeResultZero, ref
}

// EmitLoadSignedExtRegMem appends a sign-extending load from memory.
func (b *MicroBuilder) EmitLoadSignedExtRegMem(dst, base micro.MicroReg, disp uint64, dstBits, srcBits micro.MicroOpBits) (micro.EncodeResult, micro.Ref) {
	ref := b.addInstruction(micro.LoadSignedExtRegMem, 0,
		micro.MicroInstrOperand{Reg: dst},
		micro.MicroInstrOperand{Reg: base},
		micro.MicroInstrOperand{OpBits: dstBits},
		micro.MicroInstrOperand{OpBits: srcBits},
		micro.MicroInstrOperand{ValueU64: disp},
	)
	return micro.EncodeResultZero, ref
}

// EmitLoadSignedExtRegReg appends a sign-extending register-to-register move.
func (b *MicroBuilder) EmitLoadSignedExtRegReg(dst, src micro.MicroReg, dstBits, srcBits micro.MicroOpBits) (micro.EncodeResult, micro.Ref) {
	ref := b.addInstruction(micro.LoadSignedExtRegReg, 0,
		micro.MicroInstrOperand{Reg: dst},
		micro.MicroInstrOperand{Reg: src},
		micro.MicroInstrOperand{OpBits: dstBits},
		micro.MicroInstrOperand{OpBits: srcBits},
	)
	return micro.EncodeResultZero, ref
}

// EmitLoadZeroExtRegMem appends a zero-extending load from memory.
func (b *MicroBuilder) EmitLoadZeroExtRegMem(dst, base micro.MicroReg, disp uint64, dstBits, srcBits micro.MicroOpBits) (micro.EncodeResult, micro.Ref) {
	ref := b.addInstruction(micro.LoadZeroExtRegMem, 0,
		micro.MicroInstrOperand{Reg: dst},
		micro.MicroInstrOperand{Reg: base},
		micro.MicroInstrOperand{OpBits: dstBits},
		micro.MicroInstrOperand{OpBits: srcBits},
		micro.MicroInstrOperand{ValueU64: disp},
	)
	return micro.EncodeResultZero, ref
}

// EmitLoadZeroExtRegReg appends a zero-extending register-to-register move.
func (b *MicroBuilder) EmitLoadZeroExtRegReg(dst, src micro.MicroReg, dstBits, srcBits micro.MicroOpBits) (micro.EncodeResult, micro.Ref) {
	ref := b.addInstruction(micro.LoadZeroExtRegReg, 0,
		micro.MicroInstrOperand{Reg: dst},
		micro.MicroInstrOperand{Reg: src},
		micro.MicroInstrOperand{OpBits: dstBits},
		micro.MicroInstrOperand{OpBits: srcBits},
	)
	return micro.EncodeResultZero, ref
}

// EmitClearReg appends `dst = 0` (ClearReg), the idiom the constant
// propagation pass treats as recording an exact zero.
func (b *MicroBuilder) EmitClearReg(dst micro.MicroReg, bits micro.MicroOpBits) (micro.EncodeResult, micro.Ref) {
	ref := b.addInstruction(micro.ClearReg, 0,
		micro.MicroInstrOperand{Reg: dst},
		micro.MicroInstrOperand{OpBits: bits},
	)
	return micro.EncodeResultZero, ref
}
