package micro

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFoldBinary(t *testing.T) {
	for _, tc := range []struct {
		name string
		op   MicroOp
		bits MicroOpBits
		a, b uint64
		want uint64
		ok   bool
	}{
		{"add", OpAdd, B32, 10, 5, 15, true},
		{"add wraps at width", OpAdd, B8, 0xFF, 1, 0, true},
		{"sub", OpSubtract, B32, 10, 5, 5, true},
		{"sub wraps at width", OpSubtract, B16, 0, 1, 0xFFFF, true},
		{"and", OpAnd, B64, 0xF0F0, 0xFF00, 0xF000, true},
		{"or", OpOr, B32, 0xF0, 0x0F, 0xFF, true},
		{"xor", OpXor, B32, 0xFF, 0x0F, 0xF0, true},
		{"shl", OpShiftLeft, B32, 1, 4, 16, true},
		{"shl masks at width", OpShiftLeft, B8, 0x81, 1, 0x02, true},
		{"shr", OpShiftRight, B32, 16, 4, 1, true},
		{"shr is logical", OpShiftRight, B8, 0x80, 1, 0x40, true},
		{"sar keeps sign at width", OpShiftArithmeticRight, B8, 0x80, 1, 0xC0, true},
		{"sar on positive", OpShiftArithmeticRight, B8, 0x40, 1, 0x20, true},
		{"shift amount clamps to width-1", OpShiftRight, B8, 0x80, 200, 0x01, true},
		{"mul is not folded", OpMultiplySigned, B32, 3, 4, 0, false},
		{"div is not folded", OpDivideSigned, B32, 8, 2, 0, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := tc.op.FoldBinary(tc.bits, tc.a, tc.b)
			require.Equal(t, tc.ok, ok)
			if tc.ok {
				require.Equal(t, tc.want, got)
			}
		})
	}
}

func TestOpClassification(t *testing.T) {
	require.True(t, OpAdd.IsBinary())
	require.True(t, OpNegate.IsUnary())
	require.False(t, OpNegate.IsBinary())
	require.True(t, OpShiftArithmeticRight.IsShift())
	require.True(t, OpModuloUnsigned.IsDivOrMod())
	require.True(t, OpDivideSigned.IsSigned())
	require.False(t, OpDivideUnsigned.IsSigned())
}

func TestSignExtend64(t *testing.T) {
	require.Equal(t, int64(-1), B8.SignExtend64(0xFF))
	require.Equal(t, int64(127), B8.SignExtend64(0x7F))
	require.Equal(t, int64(-1), B32.SignExtend64(0xFFFFFFFF))
	require.Equal(t, int64(-1), B64.SignExtend64(0xFFFFFFFFFFFFFFFF))
}

func TestCondNegate(t *testing.T) {
	pairs := map[MicroCond]MicroCond{
		CondAbove:   CondBelowOrEqual,
		CondEqual:   CondNotEqual,
		CondLess:    CondGreaterOrEqual,
		CondGreater: CondLessOrEqual,
		CondZero:    CondNotZero,
		CondParity:  CondNotParity,
	}
	for c, want := range pairs {
		require.Equal(t, want, c.Negate())
		require.Equal(t, c, want.Negate())
	}
	require.Panics(t, func() { CondUnconditional.Negate() })
}
