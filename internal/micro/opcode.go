package micro

// MicroInstrOpcode is the abstract, machine-independent instruction opcode
// catalog. Each opcode has a canonical operand layout, shared between the
// builder, the printer and the encoder's dispatch table.
type MicroInstrOpcode uint8

const (
	OpcodeInvalid MicroInstrOpcode = iota

	// Structural.
	Label
	Enter
	Leave
	Nop
	End
	Ignore
	Debug

	// Data move.
	LoadRegReg
	LoadRegImm
	LoadRegMem
	LoadMemReg
	LoadMemImm
	LoadAddrRegMem
	LoadAmcRegMem
	LoadAmcMemReg
	LoadAmcMemImm
	LoadAddrAmcRegMem
	LoadSignedExtRegMem
	LoadSignedExtRegReg
	LoadZeroExtRegMem
	LoadZeroExtRegReg
	ClearReg

	// Arithmetic.
	OpUnaryReg
	OpUnaryMem
	OpBinaryRegReg
	OpBinaryRegMem
	OpBinaryMemReg
	OpBinaryRegImm
	OpBinaryMemImm
	OpTernaryRegRegReg

	// Comparison.
	CmpRegReg
	CmpRegImm
	CmpMemReg
	CmpMemImm
	SetCondReg
	LoadCondRegReg

	// Control.
	JumpReg
	JumpCond
	JumpCondImm
	JumpTable
	PatchJump
	Ret
	Push
	Pop
	CallLocal
	CallExtern
	CallIndirect

	// Parameter.
	LoadCallParam
	LoadCallAddrParam
	LoadCallZeroExtParam
	StoreCallParam

	// Relocation.
	SymbolRelocAddr
	SymbolRelocValue
)

var opcodeNames = [...]string{
	OpcodeInvalid: "invalid", Label: "label", Enter: "enter", Leave: "leave", Nop: "nop",
	End: "end", Ignore: "ignore", Debug: "debug",
	LoadRegReg: "load_reg_reg", LoadRegImm: "load_reg_imm", LoadRegMem: "load_reg_mem",
	LoadMemReg: "load_mem_reg", LoadMemImm: "load_mem_imm", LoadAddrRegMem: "load_addr_reg_mem",
	LoadAmcRegMem: "load_amc_reg_mem", LoadAmcMemReg: "load_amc_mem_reg", LoadAmcMemImm: "load_amc_mem_imm",
	LoadAddrAmcRegMem: "load_addr_amc_reg_mem", LoadSignedExtRegMem: "load_signed_ext_reg_mem",
	LoadSignedExtRegReg: "load_signed_ext_reg_reg", LoadZeroExtRegMem: "load_zero_ext_reg_mem",
	LoadZeroExtRegReg: "load_zero_ext_reg_reg", ClearReg: "clear_reg",
	OpUnaryReg: "op_unary_reg", OpUnaryMem: "op_unary_mem", OpBinaryRegReg: "op_binary_reg_reg",
	OpBinaryRegMem: "op_binary_reg_mem", OpBinaryMemReg: "op_binary_mem_reg",
	OpBinaryRegImm: "op_binary_reg_imm", OpBinaryMemImm: "op_binary_mem_imm",
	OpTernaryRegRegReg: "op_ternary_reg_reg_reg",
	CmpRegReg:          "cmp_reg_reg", CmpRegImm: "cmp_reg_imm", CmpMemReg: "cmp_mem_reg", CmpMemImm: "cmp_mem_imm",
	SetCondReg: "set_cond_reg", LoadCondRegReg: "load_cond_reg_reg",
	JumpReg: "jump_reg", JumpCond: "jump_cond", JumpCondImm: "jump_cond_imm", JumpTable: "jump_table",
	PatchJump: "patch_jump", Ret: "ret", Push: "push", Pop: "pop",
	CallLocal: "call_local", CallExtern: "call_extern", CallIndirect: "call_indirect",
	LoadCallParam: "load_call_param", LoadCallAddrParam: "load_call_addr_param",
	LoadCallZeroExtParam: "load_call_zero_ext_param", StoreCallParam: "store_call_param",
	SymbolRelocAddr: "symbol_reloc_addr", SymbolRelocValue: "symbol_reloc_value",
}

func (op MicroInstrOpcode) String() string {
	if int(op) < len(opcodeNames) && opcodeNames[op] != "" {
		return opcodeNames[op]
	}
	return "unknown"
}

// IsTerminator reports whether op ends an extended basic block for the
// purposes of constant propagation and the register
// allocator's interval computation.
func (op MicroInstrOpcode) IsTerminator() bool {
	switch op {
	case JumpCond, JumpCondImm, JumpReg, JumpTable, Ret:
		return true
	default:
		return false
	}
}

// IsCall reports whether op transfers control to another function.
func (op MicroInstrOpcode) IsCall() bool {
	switch op {
	case CallLocal, CallExtern, CallIndirect:
		return true
	default:
		return false
	}
}

// EncodeFlagsE enumerates the individual bits of EncodeFlags.
type EncodeFlagsE uint8

const (
	FlagLock EncodeFlagsE = 1 << iota
	FlagOverflow
	FlagB64
	FlagCanEncode
)

// EncodeFlags is the per-instruction bitset carrying both encoder hints
// (CanEncode, B64) and semantic flags (Lock, Overflow) in one field.
type EncodeFlags uint8

func (f EncodeFlags) Has(bit EncodeFlagsE) bool { return f&EncodeFlags(bit) != 0 }
func (f EncodeFlags) With(bit EncodeFlagsE) EncodeFlags { return f | EncodeFlags(bit) }
func (f EncodeFlags) Without(bit EncodeFlagsE) EncodeFlags { return f &^ EncodeFlags(bit) }
func (f EncodeFlags) None() bool { return f == 0 }

// EncodeResult is the return value of every builder emit* operation. It is
// always Zero at emission time; failures surface through the diagnostic
// channel, not the return value.
type EncodeResult uint8

const EncodeResultZero EncodeResult = 0
