package micro

// SourceCodeRef is an opaque handle into the (externally owned) source view
// manager, carried purely for debug-info attachment.
type SourceCodeRef struct {
	ViewRef uint32
	Line    uint32
	Column  uint32
	Len     uint32
}

// MicroInstrDebugInfo maps an instruction handle to the AST source-code
// reference active when it was emitted.
type MicroInstrDebugInfo struct {
	byInstr map[Ref]SourceCodeRef
}

// NewMicroInstrDebugInfo returns an empty debug-info side table.
func NewMicroInstrDebugInfo() *MicroInstrDebugInfo {
	return &MicroInstrDebugInfo{byInstr: make(map[Ref]SourceCodeRef)}
}

// Set records src as the debug info for instr.
func (d *MicroInstrDebugInfo) Set(instr Ref, src SourceCodeRef) { d.byInstr[instr] = src }

// Get returns the debug info for instr, if any was recorded.
func (d *MicroInstrDebugInfo) Get(instr Ref) (SourceCodeRef, bool) {
	src, ok := d.byInstr[instr]
	return src, ok
}

// Remap rebuilds the side table under oldToNew, the instruction-index
// renumbering a pass like register allocation applies when it replays the
// instruction stream into a fresh store. Handle stability holds only until
// such a replay; callers must remap explicitly.
func (d *MicroInstrDebugInfo) Remap(oldToNew map[Ref]Ref) {
	next := make(map[Ref]SourceCodeRef, len(d.byInstr))
	for old, src := range d.byInstr {
		if n, ok := oldToNew[old]; ok {
			next[n] = src
		}
	}
	d.byInstr = next
}

// RelocationKind classifies what kind of address a relocation resolves.
type RelocationKind uint8

const (
	RelocForeignFunctionAddress RelocationKind = iota
	RelocConstantAddress
	RelocLocalFunctionAddress
)

// ConstantRef is an opaque handle into the externally owned constant
// manager.
type ConstantRef uint32

// MicroRelocation records that an instruction contributes a fix-up once its
// final code address is known.
type MicroRelocation struct {
	Kind          RelocationKind
	InstructionRef Ref
	TargetSymbol  IdentifierRef
	ConstantRef   ConstantRef
	TargetAddress uint64
}

// RelocationTable accumulates MicroRelocation entries in emission order.
type RelocationTable struct {
	entries []MicroRelocation
}

// Add appends a relocation and returns its index.
func (t *RelocationTable) Add(r MicroRelocation) int {
	t.entries = append(t.entries, r)
	return len(t.entries) - 1
}

// Entries returns every recorded relocation in emission order.
func (t *RelocationTable) Entries() []MicroRelocation { return t.entries }

// Remap rewrites every entry's InstructionRef under oldToNew, for the same
// reason MicroInstrDebugInfo.Remap exists.
func (t *RelocationTable) Remap(oldToNew map[Ref]Ref) {
	for i := range t.entries {
		if n, ok := oldToNew[t.entries[i].InstructionRef]; ok {
			t.entries[i].InstructionRef = n
		}
	}
}
