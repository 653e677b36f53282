package micro

// InstrStore is the paged, append-only instruction container. Handles are
// stable across appends and across in-place opcode
// rewrites; slot reuse after "deletion" is not supported — passes rewrite a
// removed instruction's opcode to Ignore instead (see MicroInstr.IsDeleted).
type InstrStore struct {
	pool Pool[MicroInstr]
}

// NewInstrStore returns an empty InstrStore.
func NewInstrStore() *InstrStore {
	s := &InstrStore{pool: NewPool[MicroInstr]()}
	return s
}

// Append adds a new instruction record and returns its stable Ref.
func (s *InstrStore) Append(op MicroInstrOpcode, flags EncodeFlags, numOperands uint8, opsRef Ref) Ref {
	idx := s.pool.Allocated()
	inst := s.pool.Allocate()
	inst.Op = op
	inst.EmitFlags = flags
	inst.NumOperands = numOperands
	inst.OpsRef = opsRef
	return Ref(idx)
}

// Get returns a pointer to the instruction at ref, which callers may mutate
// in place (opcode rewriting, the only mutation passes are allowed to do to
// the instruction record itself).
func (s *InstrStore) Get(ref Ref) *MicroInstr { return s.pool.View(int(ref)) }

// Count returns the number of instructions ever appended (including those
// since rewritten to Ignore).
func (s *InstrStore) Count() int { return s.pool.Allocated() }

// View returns every instruction in emission order, including Ignored ones;
// callers filter with MicroInstr.IsDeleted.
func (s *InstrStore) View() []MicroInstr {
	out := make([]MicroInstr, s.Count())
	for i := range out {
		out[i] = *s.Get(Ref(i))
	}
	return out
}

// OperandStore is the append-only operand arena. Appending n operands
// yields a handle; fields within an already-appended range may be mutated
// in place, but the range's length can never change.
type OperandStore struct {
	pool Pool[MicroInstrOperand]
}

// NewOperandStore returns an empty OperandStore.
func NewOperandStore() *OperandStore {
	return &OperandStore{pool: NewPool[MicroInstrOperand]()}
}

// AppendN reserves n contiguous operand slots and returns the Ref to the
// first one.
func (s *OperandStore) AppendN(n uint8) Ref {
	if n == 0 {
		return InvalidRef
	}
	index, _ := s.pool.AllocateN(int(n))
	return Ref(index)
}

// slice returns the n operands starting at ref.
func (s *OperandStore) slice(ref Ref, n int) []MicroInstrOperand {
	out := make([]MicroInstrOperand, n)
	for i := 0; i < n; i++ {
		out[i] = *s.pool.View(int(ref) + i)
	}
	return out
}

// Set overwrites the i-th operand (0-based within the instruction's range)
// starting at ref, the in-place mutation passes use to rewrite operand
// fields (e.g. register allocation substituting a virtual for a physical).
func (s *OperandStore) Set(ref Ref, i int, v MicroInstrOperand) {
	*s.pool.View(int(ref)+i) = v
}

// At returns a pointer to the i-th operand starting at ref, for passes that
// need to mutate a single field without reading/writing the whole struct.
func (s *OperandStore) At(ref Ref, i int) *MicroInstrOperand {
	return s.pool.View(int(ref) + i)
}
