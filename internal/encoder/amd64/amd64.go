// Package amd64 implements the x86-64 machine-code encoder: the final
// pass-manager stage that turns a fully legalized, fully allocated
// MicroBuilder instruction stream into a flat byte buffer plus a resolved
// relocation list.
package amd64

import (
	"fmt"

	"swc/internal/micro"
	"swc/internal/micro/builder"
)

// ResolvedRelocation is one fixup site in the emitted Code buffer: Offset
// points at the first byte of the rel32/imm64 field the linker (or, for a
// self-contained JIT, the loader) must patch once TargetSymbol/ConstantRef's
// final address is known.
type ResolvedRelocation struct {
	Kind          micro.RelocationKind
	Offset        uint32
	Size          uint8
	TargetSymbol  micro.IdentifierRef
	ConstantRef   micro.ConstantRef
	TargetAddress uint64
}

// Encoder accumulates one function's machine code and relocations. A fresh
// Encoder must be used per function; the one-MicroBuilder-per-function
// granularity carries through to encoding.
type Encoder struct {
	Code        []byte
	Relocations []ResolvedRelocation

	// InstrOffsets maps an instruction's Ref (as an array index) to its
	// first byte's offset in Code, for a disassembler or debugger to
	// correlate bytes back to source. Ignored instructions have the same
	// offset as the instruction immediately following them.
	InstrOffsets []uint32
}

// New returns an empty Encoder.
func New() *Encoder { return &Encoder{} }

// Encode implements backend.Encoder. Jump layout runs as a relaxation loop:
// every jump starts in short (disp8) form, instruction offsets are measured
// under the current assignment, and any jump whose displacement no longer
// fits an i8 is widened to the 5/6-byte rel32 form. Widening only grows
// offsets, so the loop reaches a fixed point in at most one iteration per
// jump. The final pass then emits real bytes with every displacement
// known, in place of byte-patching an optimistically short form after the
// fact.
func (e *Encoder) Encode(b *builder.MicroBuilder) error {
	instrs := b.Instructions.View()
	lo := scanJumpTargets(instrs, b.Operands)

	for {
		offsets := make([]int, len(instrs)+1)
		sizing := &codeBuffer{}
		for i := range instrs {
			instr := &instrs[i]
			offsets[i] = sizing.len()
			if instr.IsDeleted() {
				continue
			}
			ops := instr.Ops(b.Operands)
			if err := encodeOne(sizing, instr, ops, i, lo); err != nil {
				return fmt.Errorf("sizing instruction %d (%s): %w", i, instr.Op, err)
			}
		}
		offsets[len(instrs)] = sizing.len()
		lo.offsets = offsets

		widened := false
		for idx, short := range lo.short {
			if !short {
				continue
			}
			cond := instrs[idx].Ops(b.Operands)[0].JumpType
			disp, err := lo.jumpDisp(idx, cond)
			if err != nil {
				return fmt.Errorf("laying out instruction %d (%s): %w", idx, instrs[idx].Op, err)
			}
			if !fitsInt8(disp) {
				lo.short[idx] = false
				widened = true
			}
		}
		if !widened {
			break
		}
	}

	relocByInstr := make(map[micro.Ref]micro.MicroRelocation, len(b.Relocations.Entries()))
	for _, r := range b.Relocations.Entries() {
		relocByInstr[r.InstructionRef] = r
	}

	lo.final = true
	final := &codeBuffer{}
	finalOffsets := make([]uint32, len(instrs))
	var relocs []ResolvedRelocation
	for i := range instrs {
		instr := &instrs[i]
		finalOffsets[i] = uint32(final.len())
		if instr.IsDeleted() {
			continue
		}
		ops := instr.Ops(b.Operands)
		before := final.len()
		if err := encodeOne(final, instr, ops, i, lo); err != nil {
			return fmt.Errorf("encoding instruction %d (%s): %w", i, instr.Op, err)
		}

		switch instr.Op {
		case micro.CallLocal, micro.CallExtern:
			relocs = append(relocs, ResolvedRelocation{
				Kind:         callRelocKind(instr.Op),
				Offset:       uint32(final.len() - 4),
				Size:         4,
				TargetSymbol: ops[0].Name,
			})
		case micro.SymbolRelocAddr, micro.SymbolRelocValue:
			r := relocByInstr[micro.Ref(i)]
			relocs = append(relocs, ResolvedRelocation{
				Kind:          r.Kind,
				Offset:        uint32(before + loadRegImm64FieldOffset),
				Size:          8,
				TargetSymbol:  r.TargetSymbol,
				ConstantRef:   r.ConstantRef,
				TargetAddress: r.TargetAddress,
			})
		}
	}

	e.Code = final.bytes()
	e.Relocations = relocs
	e.InstrOffsets = finalOffsets
	return nil
}

func callRelocKind(op micro.MicroInstrOpcode) micro.RelocationKind {
	if op == micro.CallExtern {
		return micro.RelocForeignFunctionAddress
	}
	return micro.RelocLocalFunctionAddress
}
