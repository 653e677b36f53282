package backend

import (
	"swc/internal/callconv"
	"swc/internal/micro"
	"swc/internal/micro/builder"
)

// interval is a virtual register's live range over instruction indices
// [start, end], computed as first-touch..last-touch.
type interval struct {
	vreg  micro.MicroReg
	class micro.RegClass
	start int
	end   int

	colored bool
	phys    micro.MicroReg
	spilled bool
	slot    int64
}

// scratchIndices are the physical register indices reserved out of general
// allocation so a spilled virtual can always be reloaded/stored even when an
// instruction touches more than one spilled operand at once.
var scratchIndices = [3]uint32{13, 14, 15} // R13-R15 / xmm13-xmm15

// RegisterAllocationPass is a linear scan over the instruction stream
// treated as a single extended basic block: control flow inside a function
// is already lowered to forward/backward jumps, so one interval domain
// covers the whole stream. Spilled virtuals are always
// reloaded into one of a handful of reserved scratch registers immediately
// before use and stored back immediately after a def, which sidesteps the
// need to redefine per-opcode memory-operand shapes mid-pipeline: the
// rewritten stream only ever contains register operands, and legalize
// runs on genuinely simple shapes as a result.
type RegisterAllocationPass struct{}

// NewRegisterAllocationPass returns the mandatory register-allocation pass.
func NewRegisterAllocationPass() *RegisterAllocationPass { return &RegisterAllocationPass{} }

func (p *RegisterAllocationPass) Name() string              { return "regalloc" }
func (p *RegisterAllocationPass) PrintModeBefore() PrintMode { return PrintModeVirtual }
func (p *RegisterAllocationPass) PrintModeAfter() PrintMode  { return PrintModeConcrete }

// Run performs linear-scan register allocation, then replays the
// instruction stream into a fresh InstrStore/OperandStore with every
// virtual-register operand resolved to a physical register (spilling
// through an explicit reload/store sequence around the instruction that
// touches it), remapping every Ref-keyed side table (labels, pending jumps,
// debug info, relocations) to the new instruction indices.
func (p *RegisterAllocationPass) Run(ctx *MicroPassContext) bool {
	b := ctx.Builder
	oldInstrs := b.Instructions.View()

	byVReg := buildIntervals(oldInstrs, b.Operands)
	if len(byVReg) == 0 {
		return false
	}

	cc := ctx.CallConv
	if cc == nil {
		cc = callconv.C
	}
	ls := newLinearScan(b, cc)
	for i := range oldInstrs {
		instr := &oldInstrs[i]
		if instr.IsDeleted() {
			continue
		}
		ops := instr.Ops(b.Operands)
		ud := CollectUseDef(instr, ops)

		ls.expire(i)
		if ud.IsCall {
			ls.handleCallSite(i)
		}
		for _, r := range ud.Uses {
			if r.IsVirtual() && !byVReg[r].colored {
				ls.color(byVReg[r], i)
			}
		}
		for _, r := range ud.Defs {
			if r.IsVirtual() && !byVReg[r].colored {
				ls.color(byVReg[r], i)
			}
		}
	}

	recordClobbered(b, cc, byVReg)
	replaySpilled(b, oldInstrs, byVReg)
	return true
}

// recordClobbered populates b.Frame's callee-saved register lists with every
// persistent physical register this allocation run actually assigned, plus
// the reserved scratch registers whenever any virtual spilled (replaySpilled
// addresses those directly, bypassing coloring, so they never show up via
// iv.phys). PrologEpilog reads these lists to emit the matching push/pop
// pairs.
func recordClobbered(b *builder.MicroBuilder, cc callconv.CallConv, byVReg map[micro.MicroReg]*interval) {
	intPersistent := regSetFromRegs(cc.IntPersistentRegs())
	floatPersistent := regSetFromRegs(cc.FloatPersistentRegs())
	var usedInt, usedFloat RegSet

	for _, iv := range byVReg {
		if iv.spilled || !iv.phys.IsValid() {
			continue
		}
		if iv.class == micro.RegClassFloatVirtual {
			if floatPersistent.Has(iv.phys.Index()) {
				usedFloat = usedFloat.Add(iv.phys.Index())
			}
		} else if intPersistent.Has(iv.phys.Index()) {
			usedInt = usedInt.Add(iv.phys.Index())
		}
	}
	if b.Frame.SpillSlots > 0 {
		for _, idx := range scratchIndices {
			if intPersistent.Has(idx) {
				usedInt = usedInt.Add(idx)
			}
		}
	}
	for i := uint32(0); i < 16; i++ {
		if usedInt.Has(i) {
			b.Frame.ClobberedIntRegs = append(b.Frame.ClobberedIntRegs, micro.IntPhysReg(i))
		}
		if usedFloat.Has(i) {
			b.Frame.ClobberedFloatRegs = append(b.Frame.ClobberedFloatRegs, micro.FloatPhysReg(i))
		}
	}
}

func buildIntervals(instrs []micro.MicroInstr, arena *micro.OperandStore) map[micro.MicroReg]*interval {
	byVReg := make(map[micro.MicroReg]*interval)
	touch := func(r micro.MicroReg, idx int) {
		if !r.IsVirtual() {
			return
		}
		iv, ok := byVReg[r]
		if !ok {
			iv = &interval{vreg: r, class: r.Class(), start: idx, end: idx}
			byVReg[r] = iv
		}
		if idx < iv.start {
			iv.start = idx
		}
		if idx > iv.end {
			iv.end = idx
		}
	}
	for i := range instrs {
		instr := &instrs[i]
		if instr.IsDeleted() {
			continue
		}
		ops := instr.Ops(arena)
		ud := CollectUseDef(instr, ops)
		for _, r := range ud.Uses {
			touch(r, i)
		}
		for _, r := range ud.Defs {
			touch(r, i)
		}
	}
	return byVReg
}

// linearScan holds the class-partitioned active lists and free sets for one
// allocation run.
type linearScan struct {
	frame *builder.FrameInfo
	b     *builder.MicroBuilder
	cc    callconv.CallConv

	intFree     RegSet
	floatFree   RegSet
	intActive   []*interval
	floatActive []*interval
}

func newLinearScan(b *builder.MicroBuilder, cc callconv.CallConv) *linearScan {
	sp, fp := cc.StackPointer(), cc.FramePointer()
	scratch := NewRegSet(scratchIndices[0], scratchIndices[1], scratchIndices[2])
	intFree := AllPhysical.Remove(sp.Index()).Remove(fp.Index()).Sub(scratch)
	floatFree := AllPhysical.Sub(scratch)
	return &linearScan{b: b, frame: b.Frame, cc: cc, intFree: intFree, floatFree: floatFree}
}

func (ls *linearScan) freeSetFor(class micro.RegClass) *RegSet {
	if class == micro.RegClassFloatVirtual {
		return &ls.floatFree
	}
	return &ls.intFree
}

func (ls *linearScan) activeFor(class micro.RegClass) *[]*interval {
	if class == micro.RegClassFloatVirtual {
		return &ls.floatActive
	}
	return &ls.intActive
}

// expire releases physical registers of intervals whose end is before idx.
func (ls *linearScan) expire(idx int) {
	for _, class := range [2]micro.RegClass{micro.RegClassIntVirtual, micro.RegClassFloatVirtual} {
		active := ls.activeFor(class)
		kept := (*active)[:0]
		for _, iv := range *active {
			if iv.end < idx {
				if !iv.spilled {
					*ls.freeSetFor(class) = ls.freeSetFor(class).Add(iv.phys.Index())
				}
				continue
			}
			kept = append(kept, iv)
		}
		*active = kept
	}
}

// handleCallSite clobbers caller-saved registers for intervals live across
// the call at idx, moving them to a free persistent register when one
// exists and spilling to a stack slot otherwise.
func (ls *linearScan) handleCallSite(idx int) {
	for _, class := range [2]micro.RegClass{micro.RegClassIntVirtual, micro.RegClassFloatVirtual} {
		active := ls.activeFor(class)
		persistent := ls.cc.IntPersistentRegs()
		physClass := micro.RegClassIntPhysical
		isFloat := class == micro.RegClassFloatVirtual
		if isFloat {
			persistent = ls.cc.FloatPersistentRegs()
			physClass = micro.RegClassFloatPhysical
		}
		callerSaved := regSetFromRegs(callconv.CallerSaved(ls.cc, physClass))

		for _, iv := range *active {
			if iv.spilled || iv.end <= idx || !callerSaved.Has(iv.phys.Index()) {
				continue
			}
			if dest, ok := ls.firstFreePersistent(persistent, class); ok {
				*ls.freeSetFor(class) = ls.freeSetFor(class).Add(iv.phys.Index())
				iv.phys = dest
				*ls.freeSetFor(class) = ls.freeSetFor(class).Remove(dest.Index())
				continue
			}
			ls.spill(iv, class)
		}
	}
}

func (ls *linearScan) firstFreePersistent(persistent []micro.MicroReg, class micro.RegClass) (micro.MicroReg, bool) {
	free := *ls.freeSetFor(class)
	for _, r := range persistent {
		if free.Has(r.Index()) {
			return r, true
		}
	}
	return micro.Invalid, false
}

func (ls *linearScan) spill(iv *interval, class micro.RegClass) {
	if !iv.spilled {
		*ls.freeSetFor(class) = ls.freeSetFor(class).Add(iv.phys.Index())
	}
	iv.spilled = true
	iv.slot = ls.frame.AllocateSpillSlot()
	iv.phys = micro.Invalid
}

// color assigns a physical register (or spills) to iv, which first needs
// coloring at instruction idx.
func (ls *linearScan) color(iv *interval, idx int) {
	free := ls.freeSetFor(iv.class)
	active := ls.activeFor(iv.class)

	forbidden := ls.b.ForbiddenPhysRegs(iv.vreg)
	candidates := *free
	for _, f := range forbidden {
		candidates = candidates.Remove(f.Index())
	}

	if lowest, ok := candidates.Lowest(); ok {
		iv.phys = iv.vreg.WithPhysical(lowest)
		iv.colored = true
		*free = free.Remove(lowest)
		*active = append(*active, iv)
		return
	}

	// No free register: furthest-first spill heuristic.
	// Already-spilled intervals hold no register and can't be victims, and
	// a victim whose register is forbidden for iv is no use either.
	isForbidden := func(r micro.MicroReg) bool {
		for _, f := range forbidden {
			if f.Index() == r.Index() {
				return true
			}
		}
		return false
	}
	spillAt, furthestEnd := -1, idx-1
	for i, cand := range *active {
		if cand.spilled || isForbidden(cand.phys) {
			continue
		}
		if cand.end > furthestEnd {
			furthestEnd = cand.end
			spillAt = i
		}
	}
	iv.colored = true
	if spillAt < 0 || (*active)[spillAt].end <= iv.end {
		ls.spill(iv, iv.class)
		return
	}
	victim := (*active)[spillAt]
	stolen := victim.phys
	*active = append((*active)[:spillAt], (*active)[spillAt+1:]...)
	ls.spill(victim, victim.class)
	iv.phys = stolen
	*ls.freeSetFor(iv.class) = ls.freeSetFor(iv.class).Remove(stolen.Index())
	*active = append(*active, iv)
}

// replaySpilled rebuilds b's instruction/operand stores, reloading each
// spilled virtual into a reserved scratch register immediately before a use
// and storing it back immediately after a def, then remaps every Ref-keyed
// side table to the new instruction indices.
func replaySpilled(b *builder.MicroBuilder, oldInstrs []micro.MicroInstr, byVReg map[micro.MicroReg]*interval) {
	newInstrs := micro.NewInstrStore()
	newOperands := micro.NewOperandStore()
	oldToNew := make(map[micro.Ref]micro.Ref, len(oldInstrs))

	scratchCursor := 0
	nextScratch := func(class micro.RegClass) micro.MicroReg {
		idx := scratchIndices[scratchCursor%len(scratchIndices)]
		scratchCursor++
		if class == micro.RegClassFloatVirtual {
			return micro.FloatPhysReg(idx)
		}
		return micro.IntPhysReg(idx)
	}

	for i := range oldInstrs {
		instr := &oldInstrs[i]
		oldRef := micro.Ref(i)
		scratchCursor = 0
		ops := instr.Ops(b.Operands)
		ud := CollectUseDef(instr, ops)
		isUse := make(map[micro.MicroReg]bool, len(ud.Uses))
		for _, u := range ud.Uses {
			isUse[u] = true
		}

		rewritten := make([]micro.MicroInstrOperand, len(ops))
		copy(rewritten, ops)

		var reloads []micro.MicroInstrOperand

		for j := range rewritten {
			r := rewritten[j].Reg
			if !r.IsValid() || !r.IsVirtual() {
				continue
			}
			iv := byVReg[r]
			if !iv.spilled {
				rewritten[j].Reg = iv.phys
				continue
			}
			scratch := nextScratch(iv.class)
			rewritten[j].Reg = scratch
			if isUse[r] {
				disp := uint64(-b.Frame.SpillSlotOffset(iv.slot))
				reloads = append(reloads, micro.MicroInstrOperand{Reg: scratch}, micro.MicroInstrOperand{Reg: b.Frame.SpillBaseReg()}, micro.MicroInstrOperand{ValueU64: disp})
			}
		}

		// Emit reload(s) for spilled operands this instruction reads.
		for k := 0; k < len(reloads); k += 3 {
			appendInstr(newInstrs, newOperands, micro.LoadRegMem, 0,
				reloads[k], reloads[k+1], micro.MicroInstrOperand{OpBits: micro.B64}, reloads[k+2])
		}

		// PatchJump and JumpCondImm embed instruction-index operands
		// (from_offset/to_offset, resp. a resolved destination) that must
		// follow the same old-index -> new-index remapping as every other
		// Ref-keyed side table, since the replay above may have inserted
		// reload/store instructions ahead of their targets.
		switch instr.Op {
		case micro.PatchJump:
			rewritten[0].ValueU64 = uint64(oldToNew[micro.Ref(rewritten[0].ValueU64)])
			rewritten[1].ValueU64 = uint64(oldToNew[micro.Ref(rewritten[1].ValueU64)])
		case micro.JumpCondImm:
			rewritten[2].ValueU64 = uint64(oldToNew[micro.Ref(rewritten[2].ValueU64)])
		}

		newRef := appendInstr(newInstrs, newOperands, instr.Op, instr.EmitFlags, rewritten...)
		oldToNew[oldRef] = newRef

		// Emit store-back for spilled operands this instruction defines.
		for _, d := range ud.Defs {
			if !d.IsVirtual() {
				continue
			}
			iv := byVReg[d]
			if !iv.spilled {
				continue
			}
			scratch := findScratchFor(rewritten, ops, d)
			disp := uint64(-b.Frame.SpillSlotOffset(iv.slot))
			appendInstr(newInstrs, newOperands, micro.LoadMemReg, 0,
				micro.MicroInstrOperand{Reg: b.Frame.SpillBaseReg()},
				micro.MicroInstrOperand{Reg: scratch},
				micro.MicroInstrOperand{OpBits: micro.B64},
				micro.MicroInstrOperand{ValueU64: disp})
		}
	}

	remapRefTables(b, oldToNew)
	b.Instructions = newInstrs
	b.Operands = newOperands
}

// findScratchFor locates the scratch register the rewrite loop assigned to
// the operand slot that originally held vreg.
func findScratchFor(rewritten, original []micro.MicroInstrOperand, vreg micro.MicroReg) micro.MicroReg {
	for i := range original {
		if original[i].Reg == vreg {
			return rewritten[i].Reg
		}
	}
	return micro.Invalid
}

func appendInstr(instrs *micro.InstrStore, operands *micro.OperandStore, op micro.MicroInstrOpcode, flags micro.EncodeFlags, ops ...micro.MicroInstrOperand) micro.Ref {
	n := uint8(len(ops))
	opsRef := micro.InvalidRef
	if n > 0 {
		opsRef = operands.AppendN(n)
		for i, o := range ops {
			operands.Set(opsRef, i, o)
		}
	}
	return instrs.Append(op, flags, n, opsRef)
}

// remapRefTables rewrites every Ref recorded against the old instruction
// stream (labels, debug info, relocation instruction refs) to point at the
// replayed stream's indices. Patch and jump-target operands are rewritten in
// the replay loop itself.
func remapRefTables(b *builder.MicroBuilder, oldToNew map[micro.Ref]micro.Ref) {
	b.RemapInstructionRefs(oldToNew)
}
