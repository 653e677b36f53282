package builder

import "swc/internal/micro"

// EmitNop appends a structural no-op.
func (b *MicroBuilder) EmitNop() micro.Ref { return b.addInstruction(micro.Nop, 0) }

// EmitEnter appends the function-entry marker the prolog/epilogue pass
// expands into the push-rbp/mov-rbp,rsp/sub-rsp sequence.
func (b *MicroBuilder) EmitEnter() micro.Ref { return b.addInstruction(micro.Enter, 0) }

// EmitLeave appends the function-exit marker expanded symmetrically by
// PrologEpilog.
func (b *MicroBuilder) EmitLeave() micro.Ref { return b.addInstruction(micro.Leave, 0) }

// EmitRet appends a return.
func (b *MicroBuilder) EmitRet() (micro.EncodeResult, micro.Ref) {
	return micro.EncodeResultZero, b.addInstruction(micro.Ret, 0)
}

// EmitPush appends a push of reg.
func (b *MicroBuilder) EmitPush(reg micro.MicroReg) (micro.EncodeResult, micro.Ref) {
	ref := b.addInstruction(micro.Push, 0, micro.MicroInstrOperand{Reg: reg})
	return micro.EncodeResultZero, ref
}

// EmitPop appends a pop into reg.
func (b *MicroBuilder) EmitPop(reg micro.MicroReg) (micro.EncodeResult, micro.Ref) {
	ref := b.addInstruction(micro.Pop, 0, micro.MicroInstrOperand{Reg: reg})
	return micro.EncodeResultZero, ref
}

// EmitJumpReg appends an indirect jump through reg (e.g. a jump-table
// dispatch).
func (b *MicroBuilder) EmitJumpReg(reg micro.MicroReg) (micro.EncodeResult, micro.Ref) {
	ref := b.addInstruction(micro.JumpReg, 0, micro.MicroInstrOperand{Reg: reg})
	return micro.EncodeResultZero, ref
}

// EmitJumpTable appends a jump-table dispatch: indexes into a table of
// RIP-relative 32-bit offsets materialized at the end of the code buffer.
func (b *MicroBuilder) EmitJumpTable(tableReg, offsetReg micro.MicroReg, currentIP int32, offsetTable, numEntries uint32) (micro.EncodeResult, micro.Ref) {
	ref := b.addInstruction(micro.JumpTable, 0,
		micro.MicroInstrOperand{Reg: tableReg},
		micro.MicroInstrOperand{Reg: offsetReg},
		micro.MicroInstrOperand{ValueI32: currentIP},
		micro.MicroInstrOperand{ValueU32: offsetTable},
		micro.MicroInstrOperand{ValueU32: numEntries},
	)
	return micro.EncodeResultZero, ref
}

// EmitJump appends a forward-jump placeholder and returns the MicroJump
// handle the caller must later resolve with EmitPatchJump once the
// destination is known — the low-level two-phase-patch primitive behind
// EmitJumpToLabel.
func (b *MicroBuilder) EmitJump(cond micro.MicroCond, bits micro.MicroOpBits) (micro.EncodeResult, MicroJump, micro.Ref) {
	offsetStart := micro.Ref(b.Instructions.Count())
	ref := b.addInstruction(micro.JumpCond, 0,
		micro.MicroInstrOperand{JumpType: cond},
		micro.MicroInstrOperand{OpBits: bits},
	)
	return micro.EncodeResultZero, MicroJump{OffsetStart: offsetStart, OpBits: bits}, ref
}

// EmitPatchJump appends a PatchJump instruction recording that the jump at
// jump.OffsetStart resolves to destInstr. PatchJump is the sole instruction
// permitted to mutate previously emitted bytes, and only the encoder acts on
// it.
func (b *MicroBuilder) EmitPatchJump(jump MicroJump, destInstr micro.Ref) (micro.EncodeResult, micro.Ref) {
	ref := b.addInstruction(micro.PatchJump, 0,
		micro.MicroInstrOperand{ValueU64: uint64(jump.OffsetStart)},
		micro.MicroInstrOperand{ValueU64: uint64(destInstr)},
		micro.MicroInstrOperand{ValueU64: 1},
	)
	return micro.EncodeResultZero, ref
}

// EmitJumpCondImm appends a jump whose destination instruction is already
// known (a backward jump to an already-placed label), emitted directly in
// final form with no later patch needed.
func (b *MicroBuilder) EmitJumpCondImm(cond micro.MicroCond, bits micro.MicroOpBits, destInstr micro.Ref) (micro.EncodeResult, micro.Ref) {
	ref := b.addInstruction(micro.JumpCondImm, 0,
		micro.MicroInstrOperand{JumpType: cond},
		micro.MicroInstrOperand{OpBits: bits},
		micro.MicroInstrOperand{ValueU64: uint64(destInstr)},
	)
	return micro.EncodeResultZero, ref
}

// PlaceLabel resolves label to the current emission position: a Label
// structural instruction is appended there, and every forward jump
// previously targeting this label via EmitJumpToLabel is patched now.
func (b *MicroBuilder) PlaceLabel(l Label) {
	ref := b.addInstruction(micro.Label, 0)
	b.labels[l] = labelState{placed: true, instr: ref}
	for _, jump := range b.pendingJumps[l] {
		b.EmitPatchJump(jump, ref)
	}
	delete(b.pendingJumps, l)
}

// EmitJumpToLabel is the label-table convenience built atop EmitJump/
// EmitJumpCondImm/PlaceLabel: a backward jump (label already placed) is
// emitted directly in final form; a forward jump is recorded as pending and
// patched automatically when PlaceLabel(l) runs.
func (b *MicroBuilder) EmitJumpToLabel(cond micro.MicroCond, bits micro.MicroOpBits, l Label) (micro.EncodeResult, micro.Ref) {
	if instr, placed := b.LabelInstr(l); placed {
		return b.EmitJumpCondImm(cond, bits, instr)
	}
	_, jump, ref := b.EmitJump(cond, bits)
	b.pendingJumps[l] = append(b.pendingJumps[l], jump)
	return micro.EncodeResultZero, ref
}

// CallParam describes one argument being lowered for a call site, before the
// calling convention has decided register-vs-stack placement.
type CallParam struct {
	Src       micro.MicroReg
	Bits      micro.MicroOpBits
	IsAddress bool
	// ZeroExtendFromBits, if non-zero, requests LoadCallZeroExtParam instead
	// of LoadCallParam/LoadCallAddrParam.
	ZeroExtendFromBits micro.MicroOpBits
}

// EmitLoadCallParam appends a LoadCallParam pseudo-instruction recording
// {src, destination param index}; the PrologEpilog pass replaces it with a
// concrete LoadRegReg/LoadMemReg once the calling convention's concrete
// argument slot is known.
func (b *MicroBuilder) EmitLoadCallParam(src micro.MicroReg, bits micro.MicroOpBits, paramIndex uint32) micro.Ref {
	return b.addInstruction(micro.LoadCallParam, 0,
		micro.MicroInstrOperand{Reg: src},
		micro.MicroInstrOperand{OpBits: bits},
		micro.MicroInstrOperand{ValueU32: paramIndex},
	)
}

// EmitLoadCallAddrParam is EmitLoadCallParam's address-of-src variant, used
// when an argument is passed by reference (e.g. a large struct under
// ClassifyStructReturnPassing == ByReference).
func (b *MicroBuilder) EmitLoadCallAddrParam(src micro.MicroReg, disp uint64, paramIndex uint32) micro.Ref {
	return b.addInstruction(micro.LoadCallAddrParam, 0,
		micro.MicroInstrOperand{Reg: src},
		micro.MicroInstrOperand{ValueU64: disp},
		micro.MicroInstrOperand{ValueU32: paramIndex},
	)
}

// EmitLoadCallZeroExtParam is EmitLoadCallParam's zero-extending variant,
// for small integer arguments passed in a wider argument register.
func (b *MicroBuilder) EmitLoadCallZeroExtParam(src micro.MicroReg, srcBits, dstBits micro.MicroOpBits, paramIndex uint32) micro.Ref {
	return b.addInstruction(micro.LoadCallZeroExtParam, 0,
		micro.MicroInstrOperand{Reg: src},
		micro.MicroInstrOperand{OpBits: dstBits},
		micro.MicroInstrOperand{ValueU32: paramIndex},
		micro.MicroInstrOperand{JumpType: 0},
		micro.MicroInstrOperand{OpBits: srcBits},
	)
}

// EmitStoreCallParam appends a stack-passed argument store, for parameters
// beyond the calling convention's register count.
func (b *MicroBuilder) EmitStoreCallParam(paramIndex uint32, src micro.MicroReg, bits micro.MicroOpBits) micro.Ref {
	return b.addInstruction(micro.StoreCallParam, 0,
		micro.MicroInstrOperand{ValueU32: paramIndex},
		micro.MicroInstrOperand{Reg: src},
		micro.MicroInstrOperand{OpBits: bits},
	)
}

// EmitCallParams lowers params against cc, emitting the right pseudo-
// instruction per argument. Integer and float argument-register counts are
// tracked independently, matching the calling convention's own independent
// int/float argument classes.
func (b *MicroBuilder) EmitCallParams(cc interface {
	IntArgRegs() []micro.MicroReg
	FloatArgRegs() []micro.MicroReg
}, params []CallParam) {
	nInt, nFloat := len(cc.IntArgRegs()), len(cc.FloatArgRegs())
	intIdx, floatIdx, stackIdx := 0, 0, 0
	for i, p := range params {
		isFloat := p.Src.IsFloat()
		var regSlots, idx *int
		if isFloat {
			regSlots, idx = &nFloat, &floatIdx
		} else {
			regSlots, idx = &nInt, &intIdx
		}
		if *idx < *regSlots {
			switch {
			case p.IsAddress:
				b.EmitLoadCallAddrParam(p.Src, 0, uint32(i))
			case p.ZeroExtendFromBits != 0:
				b.EmitLoadCallZeroExtParam(p.Src, p.ZeroExtendFromBits, p.Bits, uint32(i))
			default:
				b.EmitLoadCallParam(p.Src, p.Bits, uint32(i))
			}
			*idx++
		} else {
			b.EmitStoreCallParam(uint32(stackIdx), p.Src, p.Bits)
			stackIdx++
		}
	}
}

// EmitCallLocal appends a direct call to a local (module-internal) function.
func (b *MicroBuilder) EmitCallLocal(name micro.IdentifierRef, cc micro.CallConvKind) (micro.EncodeResult, micro.Ref) {
	ref := b.addInstruction(micro.CallLocal, 0,
		micro.MicroInstrOperand{Name: name},
		micro.MicroInstrOperand{CallConv: cc},
	)
	return micro.EncodeResultZero, ref
}

// EmitCallExtern appends a call to an externally-linked function.
func (b *MicroBuilder) EmitCallExtern(name micro.IdentifierRef, cc micro.CallConvKind) (micro.EncodeResult, micro.Ref) {
	ref := b.addInstruction(micro.CallExtern, 0,
		micro.MicroInstrOperand{Name: name},
		micro.MicroInstrOperand{CallConv: cc},
	)
	return micro.EncodeResultZero, ref
}

// EmitCallReg appends an indirect call through reg.
func (b *MicroBuilder) EmitCallReg(reg micro.MicroReg, cc micro.CallConvKind) (micro.EncodeResult, micro.Ref) {
	ref := b.addInstruction(micro.CallIndirect, 0,
		micro.MicroInstrOperand{Reg: reg},
		micro.MicroInstrOperand{CallConv: cc},
	)
	return micro.EncodeResultZero, ref
}
