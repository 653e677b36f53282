package backend

import "swc/internal/micro"

// legalizeScratch is the physical register Legalize reserves for hoisting an
// immediate that cannot be encoded in place. It reuses the register
// allocator's own lowest scratch index:
// by the time Legalize runs, nothing is live in it across an instruction
// boundary, the same property that makes it safe for spill reload/store.
var legalizeScratch = micro.IntPhysReg(scratchIndices[0])

// maxSigned32 / minSigned32 bound the range a 32-bit sign-extended
// immediate can represent; values outside it need hoisting to a register.
const (
	maxSigned32 = int64(1)<<31 - 1
	minSigned32 = -(int64(1) << 31)
)

// fitsImm32 reports whether v, read as a two's-complement value at bits,
// still fits after x86's mandatory sign-extension from a 32-bit immediate
// field.
func fitsImm32(bits micro.MicroOpBits, v uint64) bool {
	if bits == micro.B64 {
		signed := int64(v)
		return signed >= minSigned32 && signed <= maxSigned32
	}
	return true
}

// LegalizePass rewrites instruction shapes the encoder cannot directly emit:
// oversized immediates, non-RCX shift counts, and integer division/modulo's
// RAX/RDX materialization. It runs last in the mandatory
// list, after RegisterAllocation and PrologEpilog, so every register operand
// it sees is already physical.
type LegalizePass struct{}

// NewLegalizePass returns the mandatory legalize pass.
func NewLegalizePass() *LegalizePass { return &LegalizePass{} }

func (p *LegalizePass) Name() string              { return "legalize" }
func (p *LegalizePass) PrintModeBefore() PrintMode { return PrintModeConcrete }
func (p *LegalizePass) PrintModeAfter() PrintMode  { return PrintModeConcrete }

// Run replays the instruction stream into a fresh store, expanding any
// instruction that needs legalizing into its multi-instruction form and
// leaving everything else untouched, then remaps every Ref-keyed side table
// to the new indices exactly as RegisterAllocation does.
func (p *LegalizePass) Run(ctx *MicroPassContext) bool {
	b := ctx.Builder
	oldInstrs := b.Instructions.View()

	newInstrs := micro.NewInstrStore()
	newOperands := micro.NewOperandStore()
	oldToNew := make(map[micro.Ref]micro.Ref, len(oldInstrs))
	changed := false

	for i := range oldInstrs {
		instr := &oldInstrs[i]
		oldRef := micro.Ref(i)
		ops := instr.Ops(b.Operands)

		switch {
		case instr.Op == micro.OpBinaryRegReg && ops[3].MicroOp.IsShift():
			if legalizeShift(newInstrs, newOperands, ops) {
				changed = true
			}

		case instr.Op == micro.OpBinaryRegReg && ops[3].MicroOp.IsDivOrMod():
			legalizeDivMod(newInstrs, newOperands, ops)
			changed = true
			oldToNew[oldRef] = micro.Ref(newInstrs.Count() - 1)
			continue

		case instr.Op == micro.OpBinaryRegImm && !fitsImm32(ops[1].OpBits, ops[3].ValueU64):
			appendInstr(newInstrs, newOperands, micro.LoadRegImm, 0,
				micro.MicroInstrOperand{Reg: legalizeScratch}, micro.MicroInstrOperand{OpBits: micro.B64},
				micro.MicroInstrOperand{ValueU64: ops[3].ValueU64})
			appendInstr(newInstrs, newOperands, micro.OpBinaryRegReg, instr.EmitFlags,
				ops[0], micro.MicroInstrOperand{Reg: legalizeScratch}, ops[1], ops[2])
			changed = true
			oldToNew[oldRef] = micro.Ref(newInstrs.Count() - 1)
			continue

		case instr.Op == micro.CmpRegImm && !fitsImm32(ops[1].OpBits, ops[2].ValueU64):
			appendInstr(newInstrs, newOperands, micro.LoadRegImm, 0,
				micro.MicroInstrOperand{Reg: legalizeScratch}, micro.MicroInstrOperand{OpBits: micro.B64},
				micro.MicroInstrOperand{ValueU64: ops[2].ValueU64})
			appendInstr(newInstrs, newOperands, micro.CmpRegReg, instr.EmitFlags,
				ops[0], micro.MicroInstrOperand{Reg: legalizeScratch}, ops[1])
			changed = true
			oldToNew[oldRef] = micro.Ref(newInstrs.Count() - 1)
			continue

		case instr.Op == micro.OpBinaryMemImm && !fitsImm32(ops[1].OpBits, ops[4].ValueU64):
			appendInstr(newInstrs, newOperands, micro.LoadRegImm, 0,
				micro.MicroInstrOperand{Reg: legalizeScratch}, micro.MicroInstrOperand{OpBits: micro.B64},
				micro.MicroInstrOperand{ValueU64: ops[4].ValueU64})
			appendInstr(newInstrs, newOperands, micro.OpBinaryMemReg, instr.EmitFlags,
				ops[0], micro.MicroInstrOperand{Reg: legalizeScratch}, ops[1], ops[2], ops[3])
			changed = true
			oldToNew[oldRef] = micro.Ref(newInstrs.Count() - 1)
			continue

		case instr.Op == micro.CmpMemImm && !fitsImm32(ops[1].OpBits, ops[3].ValueU64):
			appendInstr(newInstrs, newOperands, micro.LoadRegImm, 0,
				micro.MicroInstrOperand{Reg: legalizeScratch}, micro.MicroInstrOperand{OpBits: micro.B64},
				micro.MicroInstrOperand{ValueU64: ops[3].ValueU64})
			appendInstr(newInstrs, newOperands, micro.CmpMemReg, instr.EmitFlags,
				ops[0], micro.MicroInstrOperand{Reg: legalizeScratch}, ops[1], ops[2])
			changed = true
			oldToNew[oldRef] = micro.Ref(newInstrs.Count() - 1)
			continue

		case instr.Op == micro.LoadMemImm && !fitsImm32(ops[1].OpBits, ops[3].ValueU64):
			appendInstr(newInstrs, newOperands, micro.LoadRegImm, 0,
				micro.MicroInstrOperand{Reg: legalizeScratch}, micro.MicroInstrOperand{OpBits: micro.B64},
				micro.MicroInstrOperand{ValueU64: ops[3].ValueU64})
			appendInstr(newInstrs, newOperands, micro.LoadMemReg, instr.EmitFlags,
				ops[0], micro.MicroInstrOperand{Reg: legalizeScratch}, ops[1], ops[2])
			changed = true
			oldToNew[oldRef] = micro.Ref(newInstrs.Count() - 1)
			continue

		default:
			rewritten := make([]micro.MicroInstrOperand, len(ops))
			copy(rewritten, ops)
			if instr.Op == micro.PatchJump {
				rewritten[0].ValueU64 = uint64(oldToNew[micro.Ref(rewritten[0].ValueU64)])
				rewritten[1].ValueU64 = uint64(oldToNew[micro.Ref(rewritten[1].ValueU64)])
			} else if instr.Op == micro.JumpCondImm {
				rewritten[2].ValueU64 = uint64(oldToNew[micro.Ref(rewritten[2].ValueU64)])
			}
			ref := appendInstr(newInstrs, newOperands, instr.Op, instr.EmitFlags, rewritten...)
			oldToNew[oldRef] = ref
			continue
		}

		oldToNew[oldRef] = micro.Ref(newInstrs.Count() - 1)
	}

	b.RemapInstructionRefs(oldToNew)
	b.Instructions = newInstrs
	b.Operands = newOperands
	return changed
}

// legalizeShift appends ops's OpBinaryRegReg shift as-is if its count
// register is already RCX, or precedes it with a LoadRegReg into RCX and
// rewrites the shift's source slot otherwise.
func legalizeShift(instrs *micro.InstrStore, operands *micro.OperandStore, ops []micro.MicroInstrOperand) bool {
	rcx := micro.IntPhysReg(micro.RCX)
	if ops[1].Reg == rcx {
		appendInstr(instrs, operands, micro.OpBinaryRegReg, 0, ops...)
		return false
	}
	appendInstr(instrs, operands, micro.LoadRegReg, 0,
		micro.MicroInstrOperand{Reg: rcx}, ops[1], micro.MicroInstrOperand{OpBits: micro.B8})
	appendInstr(instrs, operands, micro.OpBinaryRegReg, 0, ops[0], micro.MicroInstrOperand{Reg: rcx}, ops[2], ops[3])
	return true
}

// legalizeDivMod expands `dst = dst op src` (op one of the four div/mod
// variants) into the RAX/RDX dance x86 idiv/div require: save whichever of
// RAX/RDX the result does not land in, move the dividend into RAX, sign- or
// zero-extend it into RDX, divide, move the quotient (divide) or remainder
// (modulo) back into dst, then restore. The saves keep
// unrelated values the allocator may have parked in RAX/RDX intact; the
// divisor register itself must not be RAX or RDX, which MicroBuilder call
// sites that lower division enforce via AddVirtualRegForbiddenPhysReg.
func legalizeDivMod(instrs *micro.InstrStore, operands *micro.OperandStore, ops []micro.MicroInstrOperand) {
	dst, src, op, bits := ops[0].Reg, ops[1].Reg, ops[3].MicroOp, ops[2].OpBits
	rax, rdx := micro.IntPhysReg(micro.RAX), micro.IntPhysReg(micro.RDX)

	var saved []micro.MicroReg
	for _, r := range []micro.MicroReg{rax, rdx} {
		if dst != r {
			appendInstr(instrs, operands, micro.Push, 0, micro.MicroInstrOperand{Reg: r})
			saved = append(saved, r)
		}
	}

	appendInstr(instrs, operands, micro.LoadRegReg, 0,
		micro.MicroInstrOperand{Reg: rax}, micro.MicroInstrOperand{Reg: dst}, micro.MicroInstrOperand{OpBits: bits})

	if op.IsSigned() {
		appendInstr(instrs, operands, micro.OpUnaryReg, 0,
			micro.MicroInstrOperand{Reg: rax}, micro.MicroInstrOperand{OpBits: bits}, micro.MicroInstrOperand{MicroOp: micro.OpMoveSignExtend})
	} else {
		appendInstr(instrs, operands, micro.ClearReg, 0,
			micro.MicroInstrOperand{Reg: rdx}, micro.MicroInstrOperand{OpBits: bits})
	}

	appendInstr(instrs, operands, micro.OpUnaryReg, 0,
		micro.MicroInstrOperand{Reg: src}, micro.MicroInstrOperand{OpBits: bits}, micro.MicroInstrOperand{MicroOp: op})

	result := rax
	if op == micro.OpModuloSigned || op == micro.OpModuloUnsigned {
		result = rdx
	}
	appendInstr(instrs, operands, micro.LoadRegReg, 0,
		micro.MicroInstrOperand{Reg: dst}, micro.MicroInstrOperand{Reg: result}, micro.MicroInstrOperand{OpBits: bits})

	for i := len(saved) - 1; i >= 0; i-- {
		appendInstr(instrs, operands, micro.Pop, 0, micro.MicroInstrOperand{Reg: saved[i]})
	}
}
