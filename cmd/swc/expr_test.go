package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"swc/internal/codegen"
	"swc/internal/diag"
	"swc/internal/micro"
)

func TestParseExprFunction(t *testing.T) {
	for _, tc := range []struct {
		src     string
		wantOp  micro.MicroOp
		wantErr bool
	}{
		{src: "1 + 2", wantOp: micro.OpAdd},
		{src: "10 * (2 - 3)", wantOp: micro.OpMultiplySigned},
		{src: "100 / 7", wantOp: micro.OpDivideSigned},
		{src: "100 % 7", wantOp: micro.OpModuloSigned},
		{src: "-5", wantOp: micro.OpSubtract},
		{src: "1 +", wantErr: true},
		{src: "(1", wantErr: true},
		{src: "1 2", wantErr: true},
		{src: "", wantErr: true},
	} {
		t.Run(tc.src, func(t *testing.T) {
			env := codegen.NewEnv(diag.RenderOptions{})
			fn, err := parseExprFunction(tc.src, env)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, codegen.NodeReturn, fn.Body.Kind)
			require.Equal(t, tc.wantOp, fn.Body.Children[0].Op)
		})
	}
}

func TestParseComparison(t *testing.T) {
	env := codegen.NewEnv(diag.RenderOptions{})
	fn, err := parseExprFunction("1 < 2", env)
	require.NoError(t, err)
	root := fn.Body.Children[0]
	require.Equal(t, codegen.NodeCompare, root.Kind)
	require.Equal(t, micro.CondLess, root.Cond)
}

func TestParsedExpressionCompiles(t *testing.T) {
	env := codegen.NewEnv(diag.RenderOptions{})
	fn, err := parseExprFunction("(1 + 2) * 3 - 4 / 2", env)
	require.NoError(t, err)

	art, cerr := codegen.CompileFunction(fn, codegen.Config{}, env)
	require.NoError(t, cerr)
	require.NotEmpty(t, art.Code)
	require.Equal(t, byte(0xC3), art.Code[len(art.Code)-1])
}

func TestOptimizationLevelFlag(t *testing.T) {
	for _, s := range []string{"O0", "O1", "O2", "O3", "Os", "Oz"} {
		_, err := optimizationLevel(s)
		require.NoError(t, err)
	}
	_, err := optimizationLevel("O9")
	require.Error(t, err)
}
