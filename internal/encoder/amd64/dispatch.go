package amd64

import (
	"fmt"

	"swc/internal/micro"
)

// layout is the per-function jump/offset state shared by the sizing
// iterations and the final emission pass. offsets[i] is instruction i's byte
// offset under the current short/long form assignment; offsets[len(instrs)]
// is the buffer's total length. dest maps a jump's instruction index to its
// target instruction index (gathered from PatchJump records and JumpCondImm
// operands); short tracks which jumps are still assumed to fit a disp8.
type layout struct {
	offsets []int
	dest    map[int]int
	short   map[int]bool
	final   bool
}

// jumpDisp computes the displacement a jump at instruction idx must encode,
// measured from the end of the jump's own bytes.
func (lo *layout) jumpDisp(idx int, cond micro.MicroCond) (int64, error) {
	dest, ok := lo.dest[idx]
	if !ok {
		return 0, fmt.Errorf("jump at instruction %d has no placed target label", idx)
	}
	return int64(lo.offsets[dest] - (lo.offsets[idx] + jumpLen(cond, lo.short[idx]))), nil
}

// encodeOne appends instr's bytes to buf. During sizing passes lo.final is
// false and every displacement is written as zero; only the byte count
// matters, and that is fully determined by the short/long form assignment in
// lo. The final pass computes real displacements from lo.offsets.
func encodeOne(buf *codeBuffer, instr *micro.MicroInstr, ops []micro.MicroInstrOperand, idx int, lo *layout) error {
	switch instr.Op {
	case micro.Label, micro.Nop, micro.End, micro.Debug, micro.PatchJump:
		return nil

	case micro.Enter, micro.Leave:
		// PrologEpilog always expands these before Encode runs; if Encode
		// sees one directly it is being asked to encode un-lowered IR.
		return fmt.Errorf("%s reached the encoder unexpanded (PrologEpilog must run first)", instr.Op)

	case micro.LoadRegReg:
		return encodeLoadRegReg(buf, ops[0].Reg, ops[1].Reg, ops[2].OpBits)

	case micro.LoadRegImm:
		return encodeLoadRegImm(buf, ops[0].Reg, ops[1].OpBits, ops[2].ValueU64)

	case micro.LoadRegMem:
		return encodeMovRegMem(buf, 0x8B, ops[0].Reg, ops[1].Reg, micro.NoBase, 0, int64(ops[3].ValueU64), ops[2].OpBits, true)

	case micro.LoadMemReg:
		return encodeMovRegMem(buf, 0x89, ops[1].Reg, ops[0].Reg, micro.NoBase, 0, int64(ops[3].ValueU64), ops[2].OpBits, true)

	case micro.LoadMemImm:
		return encodeMemImm(buf, ops[0].Reg, int64(ops[2].ValueU64), ops[3].ValueU64, ops[1].OpBits)

	case micro.LoadAddrRegMem:
		return encodeLEA(buf, ops[0].Reg, ops[1].Reg, micro.NoBase, 0, int64(ops[3].ValueU64), ops[2].OpBits)

	case micro.LoadAmcRegMem:
		return encodeMovRegMem(buf, 0x8B, ops[0].Reg, ops[1].Reg, ops[2].Reg, ops[5].ValueU64, int64(ops[6].ValueU64), ops[3].OpBits, true)

	case micro.LoadAmcMemReg:
		return encodeMovRegMem(buf, 0x89, ops[2].Reg, ops[0].Reg, ops[1].Reg, ops[5].ValueU64, int64(ops[6].ValueU64), ops[3].OpBits, true)

	case micro.LoadAmcMemImm:
		return encodeAmcMemImm(buf, ops[0].Reg, ops[1].Reg, ops[5].ValueU64, int64(ops[6].ValueU64), ops[7].ValueU64, ops[4].OpBits)

	case micro.LoadAddrAmcRegMem:
		return encodeLEA(buf, ops[0].Reg, ops[1].Reg, ops[2].Reg, ops[5].ValueU64, int64(ops[6].ValueU64), ops[3].OpBits)

	case micro.LoadSignedExtRegMem:
		return encodeExtRegMem(buf, ops[0].Reg, ops[1].Reg, int64(ops[4].ValueU64), ops[2].OpBits, ops[3].OpBits, true)

	case micro.LoadSignedExtRegReg:
		return encodeExtRegReg(buf, ops[0].Reg, ops[1].Reg, ops[2].OpBits, ops[3].OpBits, true)

	case micro.LoadZeroExtRegMem:
		return encodeExtRegMem(buf, ops[0].Reg, ops[1].Reg, int64(ops[4].ValueU64), ops[2].OpBits, ops[3].OpBits, false)

	case micro.LoadZeroExtRegReg:
		return encodeExtRegReg(buf, ops[0].Reg, ops[1].Reg, ops[2].OpBits, ops[3].OpBits, false)

	case micro.ClearReg:
		return encodeClearReg(buf, ops[0].Reg)

	case micro.OpUnaryReg:
		return encodeUnaryReg(buf, ops[0].Reg, ops[2].MicroOp, ops[1].OpBits)

	case micro.OpUnaryMem:
		return encodeUnaryMem(buf, ops[0].Reg, ops[2].MicroOp, int64(ops[3].ValueU64), ops[1].OpBits)

	case micro.OpBinaryRegReg:
		return encodeBinaryRegReg(buf, ops[0].Reg, ops[1].Reg, ops[3].MicroOp, ops[2].OpBits)

	case micro.OpBinaryRegMem:
		return encodeBinaryRegMem(buf, ops[0].Reg, ops[1].Reg, ops[3].MicroOp, int64(ops[4].ValueU64), ops[2].OpBits)

	case micro.OpBinaryMemReg:
		return encodeBinaryMemReg(buf, ops[0].Reg, ops[1].Reg, ops[3].MicroOp, int64(ops[4].ValueU64), ops[2].OpBits)

	case micro.OpBinaryRegImm:
		return encodeBinaryRegImm(buf, ops[0].Reg, ops[2].MicroOp, ops[3].ValueU64, ops[1].OpBits)

	case micro.OpBinaryMemImm:
		return encodeBinaryMemImm(buf, ops[0].Reg, ops[2].MicroOp, int64(ops[3].ValueU64), ops[4].ValueU64, ops[1].OpBits)

	case micro.OpTernaryRegRegReg:
		return fmt.Errorf("OpTernaryRegRegReg (%s) needs a VEX-encoded FMA form this encoder does not yet emit", ops[4].MicroOp)

	case micro.CmpRegReg:
		return encodeCmpRegReg(buf, ops[0].Reg, ops[1].Reg, ops[2].OpBits)

	case micro.CmpRegImm:
		return encodeCmpRegImm(buf, ops[0].Reg, ops[2].ValueU64, ops[1].OpBits)

	case micro.CmpMemReg:
		return encodeCmpMemReg(buf, ops[0].Reg, ops[1].Reg, int64(ops[3].ValueU64), ops[2].OpBits)

	case micro.CmpMemImm:
		return encodeCmpMemImm(buf, ops[0].Reg, int64(ops[2].ValueU64), ops[3].ValueU64, ops[1].OpBits)

	case micro.SetCondReg:
		return encodeSetCondReg(buf, ops[0].Reg, ops[1].Cond)

	case micro.LoadCondRegReg:
		return encodeCmovReg(buf, ops[0].Reg, ops[1].Reg, ops[2].Cond, ops[3].OpBits)

	case micro.JumpReg:
		return encodeJumpReg(buf, ops[0].Reg)

	case micro.JumpCond, micro.JumpCondImm:
		cond := ops[0].JumpType
		var disp int64
		if lo.final {
			var err error
			if disp, err = lo.jumpDisp(idx, cond); err != nil {
				return err
			}
		}
		return encodeJumpBytes(buf, cond, lo.short[idx], disp)

	case micro.JumpTable:
		return encodeJumpTable(buf, ops[0].Reg, ops[1].Reg)

	case micro.Ret:
		buf.u8(0xC3)
		return nil

	case micro.Push:
		return encodePush(buf, ops[0].Reg)

	case micro.Pop:
		return encodePop(buf, ops[0].Reg)

	case micro.CallLocal, micro.CallExtern:
		buf.u8(0xE8)
		buf.u32(0) // rel32 resolved through the relocation this call records
		return nil

	case micro.CallIndirect:
		return encodeCallIndirect(buf, ops[0].Reg)

	case micro.LoadCallParam, micro.LoadCallAddrParam, micro.LoadCallZeroExtParam, micro.StoreCallParam:
		return fmt.Errorf("%s reached the encoder unresolved (PrologEpilog must run first)", instr.Op)

	case micro.SymbolRelocAddr:
		return encodeLoadRegImm(buf, ops[0].Reg, micro.B64, 0)

	case micro.SymbolRelocValue:
		// movabs the patched address, then dereference it in place.
		if err := encodeLoadRegImm(buf, ops[0].Reg, micro.B64, 0); err != nil {
			return err
		}
		return encodeMovRegMem(buf, 0x8B, ops[0].Reg, ops[0].Reg, micro.NoBase, 0, 0, ops[1].OpBits, true)

	default:
		return fmt.Errorf("unsupported opcode %s", instr.Op)
	}
}

// scanJumpTargets collects every jump's target instruction index: PatchJump
// records carry a {from, to} pair for two-phase forward jumps, while
// JumpCondImm embeds its already-resolved backward target directly. Every
// jump starts in short form; relaxation only ever grows it.
func scanJumpTargets(instrs []micro.MicroInstr, arena *micro.OperandStore) *layout {
	lo := &layout{dest: make(map[int]int), short: make(map[int]bool)}
	for i := range instrs {
		instr := &instrs[i]
		if instr.IsDeleted() {
			continue
		}
		switch instr.Op {
		case micro.PatchJump:
			ops := instr.Ops(arena)
			lo.dest[int(ops[0].ValueU64)] = int(ops[1].ValueU64)
		case micro.JumpCondImm:
			ops := instr.Ops(arena)
			lo.dest[i] = int(ops[2].ValueU64)
			lo.short[i] = true
		case micro.JumpCond:
			lo.short[i] = true
		}
	}
	return lo
}
