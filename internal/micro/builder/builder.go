// Package builder implements MicroBuilder, the AST-driven emission API the
// code generator drives and every backend pass transforms.
package builder

import "swc/internal/micro"

// Label is an opaque, builder-allocated identifier that a jump may target
// before or after it is placed.
type Label uint32

type labelState struct {
	placed bool
	instr  micro.Ref
}

// MicroJump is the lower-level two-phase-patch handle returned by EmitJump,
// for callers (CodeGen) that want to patch a jump manually instead of
// through the label table — e.g. an if/else where the destination is simply
// "wherever emission currently stands" once the alternate branch is lowered.
type MicroJump struct {
	OffsetStart micro.Ref
	OpBits      micro.MicroOpBits
}

// FrameInfo tracks the stack frame being built up by the register allocator
// (spill slots) and by the caller-side stack-argument area; PrologEpilog
// reads it to size the prolog's `sub rsp, frameSize`.
type FrameInfo struct {
	SpillSlots       int64 // count of 8-byte spill slots reserved so far
	UserReservedSize int64 // additional caller-requested stack space
	ClobberedIntRegs []micro.MicroReg
	ClobberedFloatRegs []micro.MicroReg
}

// SpillSlotOffset returns the [rbp - offset] displacement for the n-th spill
// slot (0-based), growing downward from the frame pointer.
func (f *FrameInfo) SpillSlotOffset(n int64) int64 {
	return (n + 1) * 8
}

// AllocateSpillSlot reserves a fresh 8-byte stack slot and returns its index.
func (f *FrameInfo) AllocateSpillSlot() int64 {
	idx := f.SpillSlots
	f.SpillSlots++
	return idx
}

// SpillBaseReg is the frame-relative base every spill slot's [base - offset]
// addressing form is computed against. PrologEpilog establishes RBP as the
// frame pointer before any spilled virtual can be live, so reload/store
// sequences the register allocator emits always address off RBP.
func (f *FrameInfo) SpillBaseReg() micro.MicroReg { return micro.IntPhysReg(micro.RBP) }

// DebugInfoMode controls whether emitted instructions get a debug-info
// side-table entry.
type DebugInfoMode bool

const (
	DebugInfoOff DebugInfoMode = false
	DebugInfoOn  DebugInfoMode = true
)

// MicroBuilder owns one function's worth of instruction/operand storage,
// virtual-register counters, labels, debug info and relocations. A
// MicroBuilder is exclusive to the job lowering its function; no
// cross-function mutation occurs.
type MicroBuilder struct {
	Instructions *micro.InstrStore
	Operands     *micro.OperandStore
	DebugInfo    *micro.MicroInstrDebugInfo
	Relocations  *micro.RelocationTable

	debugInfoMode    DebugInfoMode
	currentSourceRef micro.SourceCodeRef

	nextIntVirtual   uint32
	nextFloatVirtual uint32

	forbidden map[micro.MicroReg][]micro.MicroReg

	labels        []labelState
	pendingJumps  map[Label][]MicroJump

	Frame *FrameInfo
}

// New returns an empty MicroBuilder for a single function.
func New(debugInfo DebugInfoMode) *MicroBuilder {
	return &MicroBuilder{
		Instructions: micro.NewInstrStore(),
		Operands:     micro.NewOperandStore(),
		DebugInfo:    micro.NewMicroInstrDebugInfo(),
		Relocations:  &micro.RelocationTable{},
		debugInfoMode: debugInfo,
		forbidden:    make(map[micro.MicroReg][]micro.MicroReg),
		pendingJumps: make(map[Label][]MicroJump),
		Frame:        &FrameInfo{},
	}
}

// SetCurrentSourceRef snapshots the AST source-code reference that the next
// emitted instruction's debug-info entry will carry, when debug info is on.
func (b *MicroBuilder) SetCurrentSourceRef(ref micro.SourceCodeRef) {
	b.currentSourceRef = ref
}

// VirtualIntReg returns a fresh virtual integer register.
func (b *MicroBuilder) VirtualIntReg() micro.MicroReg {
	r := micro.NewReg(micro.RegClassIntVirtual, b.nextIntVirtual)
	b.nextIntVirtual++
	return r
}

// VirtualFloatReg returns a fresh virtual float register.
func (b *MicroBuilder) VirtualFloatReg() micro.MicroReg {
	r := micro.NewReg(micro.RegClassFloatVirtual, b.nextFloatVirtual)
	b.nextFloatVirtual++
	return r
}

// AddVirtualRegForbiddenPhysReg records that the allocator must not color
// vreg with preg, used by division lowering to keep the divisor out of
// RAX/RDX, for instance.
func (b *MicroBuilder) AddVirtualRegForbiddenPhysReg(vreg, preg micro.MicroReg) {
	b.forbidden[vreg] = append(b.forbidden[vreg], preg)
}

// ForbiddenPhysRegs returns the physical registers vreg may not be colored
// with.
func (b *MicroBuilder) ForbiddenPhysRegs(vreg micro.MicroReg) []micro.MicroReg {
	return b.forbidden[vreg]
}

// CreateLabel allocates a fresh, as-yet-unplaced label.
func (b *MicroBuilder) CreateLabel() Label {
	b.labels = append(b.labels, labelState{})
	return Label(len(b.labels) - 1)
}

// LabelInstr returns the instruction ref a placed label resolves to, and
// whether it has been placed yet.
func (b *MicroBuilder) LabelInstr(l Label) (micro.Ref, bool) {
	st := b.labels[l]
	return st.instr, st.placed
}

// RemapInstructionRefs rewrites every Ref-keyed side table (labels, debug
// info, relocations) under oldToNew, the renumbering a replay pass such as
// register allocation applies when it rebuilds the instruction stream into
// a fresh store. Pending forward jumps are not remapped: by the time any
// pass runs, every label has been placed and PlaceLabel has already
// resolved its pendingJumps, so the map is always empty here.
func (b *MicroBuilder) RemapInstructionRefs(oldToNew map[micro.Ref]micro.Ref) {
	for i := range b.labels {
		if !b.labels[i].placed {
			continue
		}
		if n, ok := oldToNew[b.labels[i].instr]; ok {
			b.labels[i].instr = n
		}
	}
	b.DebugInfo.Remap(oldToNew)
	b.Relocations.Remap(oldToNew)
}

// addInstruction appends an instruction with its operands and returns its
// Ref, mirroring MicroInstrBuilder::addInstruction.
func (b *MicroBuilder) addInstruction(op micro.MicroInstrOpcode, flags micro.EncodeFlags, operands ...micro.MicroInstrOperand) micro.Ref {
	n := uint8(len(operands))
	opsRef := micro.InvalidRef
	if n > 0 {
		opsRef = b.Operands.AppendN(n)
		for i, o := range operands {
			b.Operands.Set(opsRef, i, o)
		}
	}
	ref := b.Instructions.Append(op, flags, n, opsRef)
	if b.debugInfoMode == DebugInfoOn {
		b.DebugInfo.Set(ref, b.currentSourceRef)
	}
	return ref
}
