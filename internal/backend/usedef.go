package backend

import "swc/internal/micro"

// UseDef is the result of CollectUseDef: the virtual/physical registers an
// instruction reads, the ones it writes, and whether it is a call site.
type UseDef struct {
	Uses   []micro.MicroReg
	Defs   []micro.MicroReg
	IsCall bool
}

func addIfReg(list []micro.MicroReg, r micro.MicroReg) []micro.MicroReg {
	if r.IsValid() && !r.IsInstructionPointer() && !r.IsNoBase() {
		return append(list, r)
	}
	return list
}

// CollectUseDef returns the polymorphic use/def classification of instr's
// operands, per the canonical per-opcode layouts MicroBuilder emits.
func CollectUseDef(instr *micro.MicroInstr, ops []micro.MicroInstrOperand) UseDef {
	var ud UseDef
	reg := func(i int) micro.MicroReg { return ops[i].Reg }
	use := func(i int) { ud.Uses = addIfReg(ud.Uses, reg(i)) }
	def := func(i int) { ud.Defs = addIfReg(ud.Defs, reg(i)) }
	useDef := func(i int) { use(i); def(i) }

	switch instr.Op {
	case micro.LoadRegImm, micro.ClearReg, micro.SymbolRelocAddr, micro.SymbolRelocValue:
		def(0)
	case micro.LoadRegReg, micro.LoadSignedExtRegReg, micro.LoadZeroExtRegReg:
		def(0)
		use(1)
	case micro.LoadRegMem, micro.LoadAddrRegMem, micro.LoadSignedExtRegMem, micro.LoadZeroExtRegMem:
		def(0)
		use(1)
	case micro.LoadMemReg:
		use(0)
		use(1)
	case micro.LoadMemImm:
		use(0)
	case micro.LoadAmcRegMem:
		def(0)
		use(1)
		use(2)
	case micro.LoadAmcMemReg:
		use(0)
		use(1)
		use(2)
	case micro.LoadAmcMemImm:
		use(0)
		use(1)
	case micro.LoadAddrAmcRegMem:
		def(0)
		use(1)
		use(2)
	case micro.OpUnaryReg:
		useDef(0)
	case micro.OpUnaryMem:
		use(0)
	case micro.OpBinaryRegReg:
		useDef(0)
		use(1)
	case micro.OpBinaryRegMem:
		useDef(0)
		use(1)
	case micro.OpBinaryMemReg:
		use(0)
		use(1)
	case micro.OpBinaryRegImm:
		useDef(0)
	case micro.OpBinaryMemImm:
		use(0)
	case micro.OpTernaryRegRegReg:
		useDef(0)
		use(1)
		use(2)
	case micro.CmpRegReg:
		use(0)
		use(1)
	case micro.CmpRegImm:
		use(0)
	case micro.CmpMemReg:
		use(0)
		use(1)
	case micro.CmpMemImm:
		use(0)
	case micro.SetCondReg:
		def(0)
	case micro.LoadCondRegReg:
		useDef(0)
		use(1)
	case micro.Push:
		use(0)
	case micro.Pop:
		def(0)
	case micro.JumpReg:
		use(0)
	case micro.JumpTable:
		use(0)
		use(1)
	case micro.LoadCallParam, micro.LoadCallAddrParam, micro.LoadCallZeroExtParam:
		use(0)
	case micro.StoreCallParam:
		use(1)
	case micro.CallLocal, micro.CallExtern:
		ud.IsCall = true
	case micro.CallIndirect:
		use(0)
		ud.IsCall = true
	}
	return ud
}
