package backend

import "swc/internal/micro"

// constValue is what ConstantPropagation knows about one register: the
// literal bit pattern it holds and the width it was recorded at. MicroReg
// already packs class+index, so it serves directly as the tracking-map
// key.
type constValue struct {
	value uint64
	width micro.MicroOpBits
}

// ConstantPropagationPass folds chained immediate arithmetic per extended
// basic block, tracking ClearReg zeroing alongside immediate loads and
// invalidating everything it knows at call sites.
type ConstantPropagationPass struct{}

// NewConstantPropagationPass returns the pre-optimization constant
// propagation pass.
func NewConstantPropagationPass() *ConstantPropagationPass { return &ConstantPropagationPass{} }

func (p *ConstantPropagationPass) Name() string              { return "constprop" }
func (p *ConstantPropagationPass) PrintModeBefore() PrintMode { return PrintModeVirtual }
func (p *ConstantPropagationPass) PrintModeAfter() PrintMode  { return PrintModeVirtual }

// Run walks the instruction stream once, resetting its tracked-value map
// at every label, terminator and call site (the extended-basic-block
// boundaries). It reports changed = true the moment any instruction is
// rewritten; a single Run call folds a whole chain of adds.
func (p *ConstantPropagationPass) Run(ctx *MicroPassContext) bool {
	b := ctx.Builder
	instrs := b.Instructions.View()
	known := make(map[micro.MicroReg]constValue)
	changed := false

	for i := range instrs {
		instr := &instrs[i]
		if instr.IsDeleted() {
			continue
		}
		if instr.Op == micro.Label {
			clear(known)
			continue
		}

		ops := instr.Ops(b.Operands)
		switch instr.Op {
		case micro.LoadRegImm:
			known[ops[0].Reg] = constValue{value: ops[2].ValueU64, width: ops[1].OpBits}

		case micro.ClearReg:
			known[ops[0].Reg] = constValue{value: 0, width: ops[1].OpBits}

		case micro.LoadRegReg:
			if cv, ok := known[ops[1].Reg]; ok {
				// LoadRegReg's layout is {dst, src, bits}; LoadRegImm's is
				// {dst, bits, value} — dst stays put, but bits moves from
				// slot 2 to slot 1 and the src reg slot becomes the value.
				bits := ops[2].OpBits
				b.Operands.Set(instr.OpsRef, 1, micro.MicroInstrOperand{OpBits: bits})
				b.Operands.Set(instr.OpsRef, 2, micro.MicroInstrOperand{ValueU64: cv.value})
				b.Instructions.Get(micro.Ref(i)).Op = micro.LoadRegImm
				known[ops[0].Reg] = constValue{value: cv.value, width: bits}
				changed = true
			} else {
				delete(known, ops[0].Reg)
			}

		case micro.OpBinaryRegImm:
			if cv, ok := known[ops[0].Reg]; ok {
				bits := ops[1].OpBits
				if folded, ok := ops[2].MicroOp.FoldBinary(bits, cv.value, ops[3].ValueU64); ok {
					b.Operands.Set(instr.OpsRef, 2, micro.MicroInstrOperand{ValueU64: folded})
					newInstr := b.Instructions.Get(micro.Ref(i))
					newInstr.Op = micro.LoadRegImm
					newInstr.NumOperands = 3
					// Canonical LoadRegImm layout is {dst, bits, value}; the
					// OpBinaryRegImm layout already has dst at 0 and bits at
					// 1, so only operand slot 2 (MicroOp -> value) changes.
					known[ops[0].Reg] = constValue{value: folded, width: bits}
					changed = true
				} else {
					delete(known, ops[0].Reg)
				}
			}

		default:
			if instr.Op.IsCall() {
				clear(known)
				continue
			}
			ud := CollectUseDef(instr, ops)
			for _, d := range ud.Defs {
				delete(known, d)
			}
		}

		if instr.Op.IsTerminator() {
			clear(known)
		}
	}

	return changed
}
