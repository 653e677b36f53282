package builder

import (
	"fmt"
	"io"
	"strings"

	"swc/internal/micro"
)

// PrintOptions controls FormatInstructions's two-column rendering.
type PrintOptions struct {
	Color bool
}

// FormatInstructions renders every live instruction in b as two columns: a
// left mnemonic/operand dump and a right natural-expression form, the
// layout the --pass dumps use. Deleted instructions (Op == Ignore) are
// skipped.
func FormatInstructions(b *MicroBuilder, opts PrintOptions) string {
	var sb strings.Builder
	instrs := b.Instructions.View()
	for i := range instrs {
		instr := &instrs[i]
		if instr.IsDeleted() {
			continue
		}
		left := formatMnemonic(instr, b.Operands)
		right := formatExpression(instr, b.Operands)
		if opts.Color {
			fmt.Fprintf(&sb, "\033[2m%4d:\033[0m %-32s \033[36m; %s\033[0m\n", i, left, right)
		} else {
			fmt.Fprintf(&sb, "%4d: %-32s ; %s\n", i, left, right)
		}
	}
	return sb.String()
}

func formatMnemonic(instr *micro.MicroInstr, arena *micro.OperandStore) string {
	ops := instr.Ops(arena)
	parts := make([]string, 0, len(ops)+1)
	parts = append(parts, instr.Op.String())
	for _, o := range ops {
		parts = append(parts, formatOperand(instr.Op, o))
	}
	return strings.Join(parts, " ")
}

func formatOperand(op micro.MicroInstrOpcode, o micro.MicroInstrOperand) string {
	switch {
	case o.Reg.IsValid():
		return micro.FormatRegisterName(o.Reg)
	case o.MicroOp != micro.OpInvalid:
		return o.MicroOp.String()
	case o.Cond != micro.CondInvalid:
		return o.Cond.String()
	case o.OpBits != micro.Zero:
		return o.OpBits.String()
	default:
		return fmt.Sprintf("%d", o.ValueU64)
	}
}

// formatExpression renders the natural left := right reading for the
// opcodes whose shape makes that legible; opcodes with no obvious
// expression form fall back to the mnemonic column's own text, matching
// the printer's own "not every instruction has a cute rendering" texture.
func formatExpression(instr *micro.MicroInstr, arena *micro.OperandStore) string {
	ops := instr.Ops(arena)
	reg := func(i int) string { return micro.FormatRegisterName(ops[i].Reg) }
	switch instr.Op {
	case micro.LoadRegImm:
		return fmt.Sprintf("%s := %d", reg(0), ops[2].ValueU64)
	case micro.LoadRegReg:
		return fmt.Sprintf("%s := %s", reg(0), reg(1))
	case micro.LoadRegMem:
		return fmt.Sprintf("%s := [%s+%d]", reg(0), reg(1), ops[3].ValueU64)
	case micro.LoadMemReg:
		return fmt.Sprintf("[%s+%d] := %s", reg(0), ops[3].ValueU64, reg(1))
	case micro.ClearReg:
		return fmt.Sprintf("%s := 0", reg(0))
	case micro.OpBinaryRegReg:
		return fmt.Sprintf("%s := %s %s %s", reg(0), reg(0), ops[3].MicroOp, reg(1))
	case micro.OpBinaryRegImm:
		return fmt.Sprintf("%s := %s %s %d", reg(0), reg(0), ops[2].MicroOp, ops[3].ValueU64)
	case micro.CmpRegReg:
		return fmt.Sprintf("flags := cmp(%s, %s)", reg(0), reg(1))
	case micro.JumpCond:
		return fmt.Sprintf("if %s jump ????", ops[0].JumpType)
	case micro.JumpCondImm:
		return fmt.Sprintf("if %s jump %d", ops[0].JumpType, ops[2].ValueU64)
	case micro.CallLocal, micro.CallExtern:
		return "call <sym>"
	case micro.Ret:
		return "return"
	default:
		return instr.Op.String()
	}
}

// PrintInstructions writes FormatInstructions's output to w.
func PrintInstructions(w io.Writer, b *MicroBuilder, opts PrintOptions) error {
	_, err := io.WriteString(w, FormatInstructions(b, opts))
	return err
}
