package builder

import "swc/internal/micro"

// EmitLoadSymbolRelocAddress appends `dst = &symbol` and records a
// RelocForeignFunctionAddress/RelocLocalFunctionAddress fix-up the encoder
// resolves once final code addresses are known.
func (b *MicroBuilder) EmitLoadSymbolRelocAddress(dst micro.MicroReg, symbol micro.IdentifierRef, kind micro.RelocationKind, bits micro.MicroOpBits) (micro.EncodeResult, micro.Ref) {
	ref := b.addInstruction(micro.SymbolRelocAddr, 0,
		micro.MicroInstrOperand{Reg: dst},
		micro.MicroInstrOperand{Name: symbol},
		micro.MicroInstrOperand{OpBits: bits},
	)
	b.Relocations.Add(micro.MicroRelocation{
		Kind:           kind,
		InstructionRef: ref,
		TargetSymbol:   symbol,
	})
	return micro.EncodeResultZero, ref
}

// EmitLoadSymbolRelocValue appends `dst = *(&constant)`, loading the value a
// constant resolves to rather than its address, and records a
// RelocConstantAddress fix-up.
func (b *MicroBuilder) EmitLoadSymbolRelocValue(dst micro.MicroReg, constant micro.ConstantRef, bits micro.MicroOpBits) (micro.EncodeResult, micro.Ref) {
	ref := b.addInstruction(micro.SymbolRelocValue, 0,
		micro.MicroInstrOperand{Reg: dst},
		micro.MicroInstrOperand{OpBits: bits},
		micro.MicroInstrOperand{ValueU64: uint64(constant)},
	)
	b.Relocations.Add(micro.MicroRelocation{
		Kind:           micro.RelocConstantAddress,
		InstructionRef: ref,
		ConstantRef:    constant,
	})
	return micro.EncodeResultZero, ref
}
