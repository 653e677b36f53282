package amd64

import (
	"fmt"

	"swc/internal/micro"
)

// sizeTraits splits a MicroOpBits into the three encoding decisions every
// GPR instruction makes: REX.W, the 0x66 operand-size prefix, and the 8-bit
// opcode variant.
func sizeTraits(bits micro.MicroOpBits) (w, prefix66, is8 bool, err error) {
	switch bits {
	case micro.B8:
		return false, false, true, nil
	case micro.B16:
		return false, true, false, nil
	case micro.B32:
		return false, false, false, nil
	case micro.B64:
		return true, false, false, nil
	default:
		return false, false, false, fmt.Errorf("width %s has no GPR encoding", bits)
	}
}

func enc(r micro.MicroReg) regEnc { return regEnc(r.Index()) }

// force8 reports whether an 8-bit access to either register requires a REX
// prefix to select SPL/BPL/SIL/DIL instead of the legacy AH/CH/DH/BH bank.
func force8(is8 bool, regs ...micro.MicroReg) bool {
	if !is8 {
		return false
	}
	for _, r := range regs {
		if idx := r.Index(); idx >= 4 && idx <= 7 {
			return true
		}
	}
	return false
}

// memRexBits extracts the REX.X/REX.B source registers out of a memory
// operand's base/index, mapping the RIP and NoBase sentinels to "no bit".
func memRexBits(base, index micro.MicroReg) (x, b regEnc) {
	if index.IsValid() && !index.IsNoBase() {
		x = enc(index)
	}
	if base.IsValid() && !base.IsNoBase() && !base.IsInstructionPointer() {
		b = enc(base)
	}
	return x, b
}

// emitMemOperand appends the ModRM.mod/rm, SIB and displacement bytes for a
// [base + index*scale + disp] operand, with reg already chosen as the
// ModRM.reg field. Prefixes, REX and the opcode must already be in buf.
func emitMemOperand(buf *codeBuffer, reg regEnc, base, index micro.MicroReg, scale uint64, disp int64) error {
	hasIndex := index.IsValid() && !index.IsNoBase()
	if hasIndex && index.Index() == micro.RSP {
		return fmt.Errorf("rsp cannot be a SIB index register")
	}
	if hasIndex && !micro.ValidScale(uint8(scale)) {
		return fmt.Errorf("invalid SIB scale %d", scale)
	}

	if base.IsInstructionPointer() {
		if hasIndex {
			return fmt.Errorf("rip-relative addressing cannot carry an index register")
		}
		buf.u8(modRM(0, reg.encoding(), 5))
		buf.i32(int32(disp))
		return nil
	}

	noBase := !base.IsValid() || base.IsNoBase()
	if noBase {
		// Absolute disp32: SIB form with base=101, mod=00.
		idxEnc := byte(4)
		scl := byte(0)
		if hasIndex {
			idxEnc = enc(index).encoding()
			scl = scaleEncoding(uint8(scale))
		}
		buf.u8(modRM(0, reg.encoding(), 4))
		buf.u8(sib(scl, idxEnc, 5))
		buf.i32(int32(disp))
		return nil
	}

	baseEnc := enc(base)
	needSIB := hasIndex || baseEnc.encoding() == 4 // rsp/r12 as base force SIB

	// rbp/r13 as base cannot use mod=00 (that slot means disp32/RIP), so a
	// zero displacement still emits as disp8.
	mod := byte(0)
	switch {
	case disp == 0 && baseEnc.encoding() != 5:
	case fitsInt8(disp):
		mod = 1
	default:
		mod = 2
	}

	if needSIB {
		idxEnc := byte(4)
		scl := byte(0)
		if hasIndex {
			idxEnc = enc(index).encoding()
			scl = scaleEncoding(uint8(scale))
		}
		buf.u8(modRM(mod, reg.encoding(), 4))
		buf.u8(sib(scl, idxEnc, baseEnc.encoding()))
	} else {
		buf.u8(modRM(mod, reg.encoding(), baseEnc.encoding()))
	}

	switch mod {
	case 1:
		buf.u8(byte(int8(disp)))
	case 2:
		buf.i32(int32(disp))
	}
	return nil
}

// emitGPRRegReg emits a classic `opcode /r` two-register instruction with
// dst in ModRM.rm and src in ModRM.reg, handling the 0x66 prefix, REX and
// the 8-bit opcode variant.
func emitGPRRegReg(buf *codeBuffer, opcode8, opcode byte, src, dst micro.MicroReg, bits micro.MicroOpBits) error {
	w, prefix66, is8, err := sizeTraits(bits)
	if err != nil {
		return err
	}
	if prefix66 {
		buf.u8(0x66)
	}
	emitREX(buf, w, enc(src), 0, enc(dst), force8(is8, src, dst))
	if is8 {
		buf.u8(opcode8)
	} else {
		buf.u8(opcode)
	}
	buf.u8(modRM(3, enc(src).encoding(), enc(dst).encoding()))
	return nil
}

// emitGPRRegMem emits `opcode /r` with a memory r/m operand and reg in
// ModRM.reg.
func emitGPRRegMem(buf *codeBuffer, opcode8, opcode byte, reg, base, index micro.MicroReg, scale uint64, disp int64, bits micro.MicroOpBits) error {
	w, prefix66, is8, err := sizeTraits(bits)
	if err != nil {
		return err
	}
	if prefix66 {
		buf.u8(0x66)
	}
	x, b := memRexBits(base, index)
	emitREX(buf, w, enc(reg), x, b, force8(is8, reg))
	if is8 {
		buf.u8(opcode8)
	} else {
		buf.u8(opcode)
	}
	return emitMemOperand(buf, enc(reg), base, index, scale, disp)
}

// emitSSERegReg emits `prefix 0F xx /r` with reg in ModRM.reg and rm in
// ModRM.rm. prefix 0 means none (e.g. movaps).
func emitSSERegReg(buf *codeBuffer, prefix byte, opcode uint16, reg, rm micro.MicroReg) {
	if prefix != 0 {
		buf.u8(prefix)
	}
	emitREX(buf, false, enc(reg), 0, enc(rm), false)
	buf.u8(byte(opcode >> 8))
	buf.u8(byte(opcode))
	buf.u8(modRM(3, enc(reg).encoding(), enc(rm).encoding()))
}

func emitSSERegMem(buf *codeBuffer, prefix byte, opcode uint16, reg, base, index micro.MicroReg, scale uint64, disp int64) error {
	if prefix != 0 {
		buf.u8(prefix)
	}
	x, b := memRexBits(base, index)
	emitREX(buf, false, enc(reg), x, b, false)
	buf.u8(byte(opcode >> 8))
	buf.u8(byte(opcode))
	return emitMemOperand(buf, enc(reg), base, index, scale, disp)
}

// sseMovOpcodes picks the scalar/vector SSE move for a float load or store
// at the given width: movss/movsd for the scalar widths, movdqu for B128.
func sseMovOpcodes(bits micro.MicroOpBits, store bool) (prefix byte, opcode uint16, err error) {
	var load, st uint16
	switch bits {
	case micro.B32:
		prefix, load, st = 0xF3, 0x0F10, 0x0F11
	case micro.B64:
		prefix, load, st = 0xF2, 0x0F10, 0x0F11
	case micro.B128:
		prefix, load, st = 0xF3, 0x0F6F, 0x0F7F
	default:
		return 0, 0, fmt.Errorf("width %s has no XMM move encoding", bits)
	}
	if store {
		return prefix, st, nil
	}
	return prefix, load, nil
}

func encodeLoadRegReg(buf *codeBuffer, dst, src micro.MicroReg, bits micro.MicroOpBits) error {
	switch {
	case dst.IsFloat() && src.IsFloat():
		emitSSERegReg(buf, 0, 0x0F28, dst, src) // movaps
		return nil
	case dst.IsFloat() && src.IsInt():
		// movq xmm, r64
		buf.u8(0x66)
		emitREX(buf, bits == micro.B64, enc(dst), 0, enc(src), false)
		buf.u8(0x0F)
		buf.u8(0x6E)
		buf.u8(modRM(3, enc(dst).encoding(), enc(src).encoding()))
		return nil
	case dst.IsInt() && src.IsFloat():
		// movq r64, xmm
		buf.u8(0x66)
		emitREX(buf, bits == micro.B64, enc(src), 0, enc(dst), false)
		buf.u8(0x0F)
		buf.u8(0x7E)
		buf.u8(modRM(3, enc(src).encoding(), enc(dst).encoding()))
		return nil
	default:
		return emitGPRRegReg(buf, 0x88, 0x89, src, dst, bits)
	}
}

func encodeLoadRegImm(buf *codeBuffer, dst micro.MicroReg, bits micro.MicroOpBits, value uint64) error {
	if dst.IsFloat() {
		return fmt.Errorf("float immediates are materialized through memory, not LoadRegImm")
	}
	w, prefix66, is8, err := sizeTraits(bits)
	if err != nil {
		return err
	}
	if prefix66 {
		buf.u8(0x66)
	}
	emitREX(buf, w, 0, 0, enc(dst), force8(is8, dst))
	switch {
	case is8:
		buf.u8(0xB0 + enc(dst).encoding())
		buf.u8(byte(value))
	case bits == micro.B16:
		buf.u8(0xB8 + enc(dst).encoding())
		buf.u16(uint16(value))
	case bits == micro.B32:
		buf.u8(0xB8 + enc(dst).encoding())
		buf.u32(uint32(value))
	default:
		// movabs keeps the imm64 field at a fixed +2 offset so SymbolRelocAddr
		// patch sites are position-computable without re-measuring.
		buf.u8(0xB8 + enc(dst).encoding())
		buf.u64(value)
	}
	return nil
}

// loadRegImm64FieldOffset is the byte distance from a B64 LoadRegImm's first
// byte to its imm64 field (REX.W + B8+rd).
const loadRegImm64FieldOffset = 2

func encodeMovRegMem(buf *codeBuffer, opcode byte, reg, base, index micro.MicroReg, scale uint64, disp int64, bits micro.MicroOpBits, _ bool) error {
	if reg.IsFloat() {
		prefix, sseOp, err := sseMovOpcodes(bits, opcode == 0x89)
		if err != nil {
			return err
		}
		return emitSSERegMem(buf, prefix, sseOp, reg, base, index, scale, disp)
	}
	return emitGPRRegMem(buf, opcode-1, opcode, reg, base, index, scale, disp, bits)
}

func encodeMemImm(buf *codeBuffer, base micro.MicroReg, disp int64, value uint64, bits micro.MicroOpBits) error {
	return encodeAmcMemImm(buf, base, micro.NoBase, 0, disp, value, bits)
}

func encodeAmcMemImm(buf *codeBuffer, base, index micro.MicroReg, scale uint64, disp int64, value uint64, bits micro.MicroOpBits) error {
	w, prefix66, is8, err := sizeTraits(bits)
	if err != nil {
		return err
	}
	if prefix66 {
		buf.u8(0x66)
	}
	x, b := memRexBits(base, index)
	emitREX(buf, w, 0, x, b, false)
	if is8 {
		buf.u8(0xC6)
	} else {
		buf.u8(0xC7)
	}
	if err := emitMemOperand(buf, 0, base, index, scale, disp); err != nil {
		return err
	}
	switch bits {
	case micro.B8:
		buf.u8(byte(value))
	case micro.B16:
		buf.u16(uint16(value))
	default:
		buf.u32(uint32(value)) // sign-extended by the CPU for B64
	}
	return nil
}

func encodeLEA(buf *codeBuffer, dst, base, index micro.MicroReg, scale uint64, disp int64, bits micro.MicroOpBits) error {
	w := bits != micro.B32
	x, b := memRexBits(base, index)
	emitREX(buf, w, enc(dst), x, b, false)
	buf.u8(0x8D)
	return emitMemOperand(buf, enc(dst), base, index, scale, disp)
}

// extOpcode selects the movsx/movzx/movsxd opcode for an extension from
// srcBits. B32 zero-extension is a plain 32-bit mov, which the CPU zero
// extends for free.
func extOpcode(srcBits micro.MicroOpBits, signed bool) (opcode uint16, plainMov32 bool, err error) {
	switch srcBits {
	case micro.B8:
		if signed {
			return 0x0FBE, false, nil
		}
		return 0x0FB6, false, nil
	case micro.B16:
		if signed {
			return 0x0FBF, false, nil
		}
		return 0x0FB7, false, nil
	case micro.B32:
		if signed {
			return 0x63, false, nil // movsxd
		}
		return 0, true, nil
	default:
		return 0, false, fmt.Errorf("no extension from width %s", srcBits)
	}
}

func encodeExtRegReg(buf *codeBuffer, dst, src micro.MicroReg, dstBits, srcBits micro.MicroOpBits, signed bool) error {
	opcode, plainMov32, err := extOpcode(srcBits, signed)
	if err != nil {
		return err
	}
	if plainMov32 {
		return emitGPRRegReg(buf, 0x88, 0x89, src, dst, micro.B32)
	}
	w := dstBits == micro.B64
	emitREX(buf, w, enc(dst), 0, enc(src), force8(srcBits == micro.B8, src))
	if opcode > 0xFF {
		buf.u8(byte(opcode >> 8))
	}
	buf.u8(byte(opcode))
	buf.u8(modRM(3, enc(dst).encoding(), enc(src).encoding()))
	return nil
}

func encodeExtRegMem(buf *codeBuffer, dst, base micro.MicroReg, disp int64, dstBits, srcBits micro.MicroOpBits, signed bool) error {
	opcode, plainMov32, err := extOpcode(srcBits, signed)
	if err != nil {
		return err
	}
	if plainMov32 {
		return emitGPRRegMem(buf, 0x8A, 0x8B, dst, base, micro.NoBase, 0, disp, micro.B32)
	}
	w := dstBits == micro.B64
	x, b := memRexBits(base, micro.NoBase)
	emitREX(buf, w, enc(dst), x, b, false)
	if opcode > 0xFF {
		buf.u8(byte(opcode >> 8))
	}
	buf.u8(byte(opcode))
	return emitMemOperand(buf, enc(dst), base, micro.NoBase, 0, disp)
}

func encodeClearReg(buf *codeBuffer, reg micro.MicroReg) error {
	if reg.IsFloat() {
		emitSSERegReg(buf, 0, 0x0F57, reg, reg) // xorps
		return nil
	}
	// 32-bit xor zero-extends to the full register.
	return emitGPRRegReg(buf, 0x30, 0x31, reg, reg, micro.B32)
}

func encodeUnaryReg(buf *codeBuffer, reg micro.MicroReg, op micro.MicroOp, bits micro.MicroOpBits) error {
	switch op {
	case micro.OpFloatSqrt:
		emitSSERegReg(buf, 0xF2, 0x0F51, reg, reg) // sqrtsd
		return nil
	case micro.OpMoveSignExtend:
		// cdq/cqo: RAX's sign into RDX, no ModRM.
		if bits == micro.B64 {
			buf.u8(0x48)
		}
		buf.u8(0x99)
		return nil
	case micro.OpPopCount, micro.OpBitScanForward, micro.OpBitScanReverse:
		var prefix byte
		var opcode uint16
		switch op {
		case micro.OpPopCount:
			prefix, opcode = 0xF3, 0x0FB8
		case micro.OpBitScanForward:
			prefix, opcode = 0, 0x0FBC
		default:
			prefix, opcode = 0, 0x0FBD
		}
		w, prefix66, _, err := sizeTraits(bits)
		if err != nil {
			return err
		}
		if prefix66 {
			buf.u8(0x66)
		}
		if prefix != 0 {
			buf.u8(prefix)
		}
		emitREX(buf, w, enc(reg), 0, enc(reg), false)
		buf.u8(byte(opcode >> 8))
		buf.u8(byte(opcode))
		buf.u8(modRM(3, enc(reg).encoding(), enc(reg).encoding()))
		return nil
	case micro.OpByteSwap:
		w := bits == micro.B64
		emitREX(buf, w, 0, 0, enc(reg), false)
		buf.u8(0x0F)
		buf.u8(0xC8 + enc(reg).encoding())
		return nil
	}

	var digit byte
	switch op {
	case micro.OpBitwiseNot:
		digit = 2
	case micro.OpNegate:
		digit = 3
	case micro.OpMultiplyUnsigned:
		digit = 4
	case micro.OpMultiplySigned:
		digit = 5
	case micro.OpDivideUnsigned, micro.OpModuloUnsigned:
		digit = 6
	case micro.OpDivideSigned, micro.OpModuloSigned:
		digit = 7
	default:
		return fmt.Errorf("unary op %s has no encoding", op)
	}
	w, prefix66, is8, err := sizeTraits(bits)
	if err != nil {
		return err
	}
	if prefix66 {
		buf.u8(0x66)
	}
	emitREX(buf, w, 0, 0, enc(reg), force8(is8, reg))
	if is8 {
		buf.u8(0xF6)
	} else {
		buf.u8(0xF7)
	}
	buf.u8(modRM(3, digit, enc(reg).encoding()))
	return nil
}

func encodeUnaryMem(buf *codeBuffer, base micro.MicroReg, op micro.MicroOp, disp int64, bits micro.MicroOpBits) error {
	var digit byte
	switch op {
	case micro.OpBitwiseNot:
		digit = 2
	case micro.OpNegate:
		digit = 3
	default:
		return fmt.Errorf("unary op %s has no memory-operand encoding", op)
	}
	w, prefix66, is8, err := sizeTraits(bits)
	if err != nil {
		return err
	}
	if prefix66 {
		buf.u8(0x66)
	}
	x, b := memRexBits(base, micro.NoBase)
	emitREX(buf, w, 0, x, b, false)
	if is8 {
		buf.u8(0xF6)
	} else {
		buf.u8(0xF7)
	}
	return emitMemOperand(buf, regEnc(digit), base, micro.NoBase, 0, disp)
}

func encodeBinaryRegReg(buf *codeBuffer, dst, src micro.MicroReg, op micro.MicroOp, bits micro.MicroOpBits) error {
	if prefix, sseOp, ok := sseScalarOpcode(op); ok {
		emitSSERegReg(buf, prefix, sseOp, dst, src)
		return nil
	}
	if alu, ok := intAluOpcodes[op]; ok {
		return emitGPRRegReg(buf, alu.opRM8, alu.opRM8|1, src, dst, bits)
	}
	switch {
	case op == micro.OpMultiplySigned || op == micro.OpMultiplyUnsigned:
		// Low bits of signed and unsigned multiply agree; both use imul /r.
		w, prefix66, _, err := sizeTraits(bits)
		if err != nil {
			return err
		}
		if prefix66 {
			buf.u8(0x66)
		}
		emitREX(buf, w, enc(dst), 0, enc(src), false)
		buf.u8(0x0F)
		buf.u8(0xAF)
		buf.u8(modRM(3, enc(dst).encoding(), enc(src).encoding()))
		return nil
	case op.IsShift():
		// Legalize guarantees the count is in CL by now.
		w, prefix66, is8, err := sizeTraits(bits)
		if err != nil {
			return err
		}
		if prefix66 {
			buf.u8(0x66)
		}
		emitREX(buf, w, 0, 0, enc(dst), force8(is8, dst))
		if is8 {
			buf.u8(0xD2)
		} else {
			buf.u8(0xD3)
		}
		buf.u8(modRM(3, shiftDigit(op), enc(dst).encoding()))
		return nil
	case op == micro.OpExchange:
		return emitGPRRegReg(buf, 0x86, 0x87, src, dst, bits)
	case op == micro.OpCompareExchange:
		w, prefix66, is8, err := sizeTraits(bits)
		if err != nil {
			return err
		}
		if prefix66 {
			buf.u8(0x66)
		}
		emitREX(buf, w, enc(src), 0, enc(dst), force8(is8, src, dst))
		buf.u8(0x0F)
		if is8 {
			buf.u8(0xB0)
		} else {
			buf.u8(0xB1)
		}
		buf.u8(modRM(3, enc(src).encoding(), enc(dst).encoding()))
		return nil
	default:
		return fmt.Errorf("binary op %s has no reg-reg encoding", op)
	}
}

func encodeBinaryRegMem(buf *codeBuffer, dst, base micro.MicroReg, op micro.MicroOp, disp int64, bits micro.MicroOpBits) error {
	if prefix, sseOp, ok := sseScalarOpcode(op); ok {
		return emitSSERegMem(buf, prefix, sseOp, dst, base, micro.NoBase, 0, disp)
	}
	if alu, ok := intAluOpcodes[op]; ok {
		return emitGPRRegMem(buf, alu.opMR8, alu.opMR8|1, dst, base, micro.NoBase, 0, disp, bits)
	}
	if op == micro.OpMultiplySigned || op == micro.OpMultiplyUnsigned {
		w, prefix66, _, err := sizeTraits(bits)
		if err != nil {
			return err
		}
		if prefix66 {
			buf.u8(0x66)
		}
		x, b := memRexBits(base, micro.NoBase)
		emitREX(buf, w, enc(dst), x, b, false)
		buf.u8(0x0F)
		buf.u8(0xAF)
		return emitMemOperand(buf, enc(dst), base, micro.NoBase, 0, disp)
	}
	return fmt.Errorf("binary op %s has no reg-mem encoding", op)
}

func encodeBinaryMemReg(buf *codeBuffer, base, src micro.MicroReg, op micro.MicroOp, disp int64, bits micro.MicroOpBits) error {
	if alu, ok := intAluOpcodes[op]; ok {
		return emitGPRRegMem(buf, alu.opRM8, alu.opRM8|1, src, base, micro.NoBase, 0, disp, bits)
	}
	return fmt.Errorf("binary op %s has no mem-reg encoding", op)
}

// emitGroup1RegImm emits the 0x81/0x83 `op r/m, imm` family with the given
// ModRM /digit, preferring the sign-extended imm8 form when the value fits.
func emitGroup1RegImm(buf *codeBuffer, digit byte, reg micro.MicroReg, value uint64, bits micro.MicroOpBits) error {
	w, prefix66, is8, err := sizeTraits(bits)
	if err != nil {
		return err
	}
	if prefix66 {
		buf.u8(0x66)
	}
	emitREX(buf, w, 0, 0, enc(reg), force8(is8, reg))
	signed := bits.SignExtend64(value)
	switch {
	case is8:
		buf.u8(0x80)
		buf.u8(modRM(3, digit, enc(reg).encoding()))
		buf.u8(byte(value))
	case fitsInt8(signed):
		buf.u8(0x83)
		buf.u8(modRM(3, digit, enc(reg).encoding()))
		buf.u8(byte(int8(signed)))
	case bits == micro.B16:
		buf.u8(0x81)
		buf.u8(modRM(3, digit, enc(reg).encoding()))
		buf.u16(uint16(value))
	default:
		buf.u8(0x81)
		buf.u8(modRM(3, digit, enc(reg).encoding()))
		buf.u32(uint32(value))
	}
	return nil
}

func emitGroup1MemImm(buf *codeBuffer, digit byte, base micro.MicroReg, disp int64, value uint64, bits micro.MicroOpBits) error {
	w, prefix66, is8, err := sizeTraits(bits)
	if err != nil {
		return err
	}
	if prefix66 {
		buf.u8(0x66)
	}
	x, b := memRexBits(base, micro.NoBase)
	emitREX(buf, w, 0, x, b, false)
	if is8 {
		buf.u8(0x80)
	} else {
		buf.u8(0x81)
	}
	if err := emitMemOperand(buf, regEnc(digit), base, micro.NoBase, 0, disp); err != nil {
		return err
	}
	switch bits {
	case micro.B8:
		buf.u8(byte(value))
	case micro.B16:
		buf.u16(uint16(value))
	default:
		buf.u32(uint32(value))
	}
	return nil
}

func encodeBinaryRegImm(buf *codeBuffer, dst micro.MicroReg, op micro.MicroOp, value uint64, bits micro.MicroOpBits) error {
	if alu, ok := intAluOpcodes[op]; ok {
		return emitGroup1RegImm(buf, alu.opImmDigit, dst, value, bits)
	}
	if op.IsShift() {
		w, prefix66, is8, err := sizeTraits(bits)
		if err != nil {
			return err
		}
		if prefix66 {
			buf.u8(0x66)
		}
		emitREX(buf, w, 0, 0, enc(dst), force8(is8, dst))
		if is8 {
			buf.u8(0xC0)
		} else {
			buf.u8(0xC1)
		}
		buf.u8(modRM(3, shiftDigit(op), enc(dst).encoding()))
		buf.u8(byte(value))
		return nil
	}
	if op == micro.OpMultiplySigned || op == micro.OpMultiplyUnsigned {
		// imul r, r/m, imm32 with r == r/m.
		w, prefix66, _, err := sizeTraits(bits)
		if err != nil {
			return err
		}
		if prefix66 {
			buf.u8(0x66)
		}
		emitREX(buf, w, enc(dst), 0, enc(dst), false)
		signed := bits.SignExtend64(value)
		if fitsInt8(signed) {
			buf.u8(0x6B)
			buf.u8(modRM(3, enc(dst).encoding(), enc(dst).encoding()))
			buf.u8(byte(int8(signed)))
		} else {
			buf.u8(0x69)
			buf.u8(modRM(3, enc(dst).encoding(), enc(dst).encoding()))
			buf.u32(uint32(value))
		}
		return nil
	}
	return fmt.Errorf("binary op %s has no reg-imm encoding", op)
}

func encodeBinaryMemImm(buf *codeBuffer, base micro.MicroReg, op micro.MicroOp, disp int64, value uint64, bits micro.MicroOpBits) error {
	if alu, ok := intAluOpcodes[op]; ok {
		return emitGroup1MemImm(buf, alu.opImmDigit, base, disp, value, bits)
	}
	return fmt.Errorf("binary op %s has no mem-imm encoding", op)
}

func encodeCmpRegReg(buf *codeBuffer, a, b micro.MicroReg, bits micro.MicroOpBits) error {
	if a.IsFloat() {
		// ucomisd/ucomiss sets the unsigned-style flags float jumps expect.
		if bits == micro.B32 {
			emitSSERegReg(buf, 0, 0x0F2E, a, b)
		} else {
			emitSSERegReg(buf, 0x66, 0x0F2E, a, b)
		}
		return nil
	}
	return emitGPRRegReg(buf, 0x38, 0x39, b, a, bits)
}

func encodeCmpRegImm(buf *codeBuffer, reg micro.MicroReg, value uint64, bits micro.MicroOpBits) error {
	return emitGroup1RegImm(buf, cmpImmDigit, reg, value, bits)
}

func encodeCmpMemReg(buf *codeBuffer, base, reg micro.MicroReg, disp int64, bits micro.MicroOpBits) error {
	return emitGPRRegMem(buf, 0x38, 0x39, reg, base, micro.NoBase, 0, disp, bits)
}

func encodeCmpMemImm(buf *codeBuffer, base micro.MicroReg, disp int64, value uint64, bits micro.MicroOpBits) error {
	return emitGroup1MemImm(buf, cmpImmDigit, base, disp, value, bits)
}

func encodeSetCondReg(buf *codeBuffer, reg micro.MicroReg, cond micro.MicroCond) error {
	emitREX(buf, false, 0, 0, enc(reg), force8(true, reg))
	buf.u8(0x0F)
	buf.u8(0x90 + condCode(cond))
	buf.u8(modRM(3, 0, enc(reg).encoding()))
	// Zero-extend the freshly written byte to the full register.
	emitREX(buf, false, enc(reg), 0, enc(reg), force8(true, reg))
	buf.u8(0x0F)
	buf.u8(0xB6)
	buf.u8(modRM(3, enc(reg).encoding(), enc(reg).encoding()))
	return nil
}

func encodeCmovReg(buf *codeBuffer, dst, src micro.MicroReg, cond micro.MicroCond, bits micro.MicroOpBits) error {
	w, prefix66, _, err := sizeTraits(bits)
	if err != nil {
		return err
	}
	if bits == micro.B8 {
		return fmt.Errorf("cmov has no 8-bit form")
	}
	if prefix66 {
		buf.u8(0x66)
	}
	emitREX(buf, w, enc(dst), 0, enc(src), false)
	buf.u8(0x0F)
	buf.u8(0x40 + condCode(cond))
	buf.u8(modRM(3, enc(dst).encoding(), enc(src).encoding()))
	return nil
}

func encodeJumpReg(buf *codeBuffer, reg micro.MicroReg) error {
	emitREX(buf, false, 0, 0, enc(reg), false)
	buf.u8(0xFF)
	buf.u8(modRM(3, 4, enc(reg).encoding()))
	return nil
}

func encodeCallIndirect(buf *codeBuffer, reg micro.MicroReg) error {
	emitREX(buf, false, 0, 0, enc(reg), false)
	buf.u8(0xFF)
	buf.u8(modRM(3, 2, enc(reg).encoding()))
	return nil
}

func encodePush(buf *codeBuffer, reg micro.MicroReg) error {
	if reg.IsFloat() {
		return fmt.Errorf("xmm registers have no push form")
	}
	emitREX(buf, false, 0, 0, enc(reg), false)
	buf.u8(0x50 + enc(reg).encoding())
	return nil
}

func encodePop(buf *codeBuffer, reg micro.MicroReg) error {
	if reg.IsFloat() {
		return fmt.Errorf("xmm registers have no pop form")
	}
	emitREX(buf, false, 0, 0, enc(reg), false)
	buf.u8(0x58 + enc(reg).encoding())
	return nil
}

// jumpLen returns the byte length of a conditional/unconditional jump in its
// short or long form.
func jumpLen(cond micro.MicroCond, short bool) int {
	if short {
		return 2 // EB/7x disp8
	}
	if cond == micro.CondUnconditional {
		return 5 // E9 disp32
	}
	return 6 // 0F 8x disp32
}

// encodeJumpBytes emits the chosen form with the given displacement, which
// is measured from the end of the jump instruction.
func encodeJumpBytes(buf *codeBuffer, cond micro.MicroCond, short bool, disp int64) error {
	if short {
		if !fitsInt8(disp) {
			return fmt.Errorf("short jump displacement %d out of range", disp)
		}
		if cond == micro.CondUnconditional {
			buf.u8(0xEB)
		} else {
			buf.u8(0x70 + condCode(cond))
		}
		buf.u8(byte(int8(disp)))
		return nil
	}
	if cond == micro.CondUnconditional {
		buf.u8(0xE9)
	} else {
		buf.u8(0x0F)
		buf.u8(0x80 + condCode(cond))
	}
	buf.i32(int32(disp))
	return nil
}

// encodeJumpTable lowers the JumpTable dispatch: sign-extend the selected
// 32-bit table entry, add it to the table base, and jump there. The table
// base register is loaded beforehand through SymbolRelocAddr.
func encodeJumpTable(buf *codeBuffer, tableReg, offsetReg micro.MicroReg) error {
	// movsxd offsetReg, dword [tableReg + offsetReg*4]
	x, b := memRexBits(tableReg, offsetReg)
	emitREX(buf, true, enc(offsetReg), x, b, false)
	buf.u8(0x63)
	if err := emitMemOperand(buf, enc(offsetReg), tableReg, offsetReg, 4, 0); err != nil {
		return err
	}
	// add tableReg, offsetReg
	if err := emitGPRRegReg(buf, 0x00, 0x01, offsetReg, tableReg, micro.B64); err != nil {
		return err
	}
	return encodeJumpReg(buf, tableReg)
}
