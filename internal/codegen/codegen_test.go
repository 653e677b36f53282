package codegen

import (
	"testing"

	"github.com/stretchr/testify/require"

	"swc/internal/backend"
	"swc/internal/diag"
	"swc/internal/micro"
)

func testEnv() *Env { return NewEnv(diag.RenderOptions{}) }

func i64Of(env *Env) TypeRef {
	return env.Types.AddType(TypeInfo{Name: "s64", Size: 8})
}

func TestCompileSimpleExpression(t *testing.T) {
	env := testEnv()
	i64 := i64Of(env)
	fn := &Function{
		Name:       env.Idents.Intern("three"),
		ReturnType: i64,
		Body:       Return(Binary(micro.OpAdd, IntLit(1, i64), IntLit(2, i64), i64)),
	}

	art, err := CompileFunction(fn, Config{Optimize: backend.O0}, env)
	require.NoError(t, err)
	require.NotEmpty(t, art.Code)
	// The prologue opens with push rbp; the stream ends on ret.
	require.Equal(t, byte(0x55), art.Code[0])
	require.Equal(t, byte(0xC3), art.Code[len(art.Code)-1])
}

func TestCompileDivisionConstrainsDivisor(t *testing.T) {
	env := testEnv()
	i64 := i64Of(env)
	fn := &Function{
		Name:       env.Idents.Intern("div"),
		ReturnType: i64,
		Body:       Return(Binary(micro.OpDivideSigned, IntLit(100, i64), IntLit(7, i64), i64)),
	}

	art, err := CompileFunction(fn, Config{Optimize: backend.O0}, env)
	require.NoError(t, err)
	require.NotEmpty(t, art.Code)
}

func TestCompileIfElseAndComparison(t *testing.T) {
	env := testEnv()
	i64 := i64Of(env)
	boolTy := env.Types.AddType(TypeInfo{Name: "bool", Size: 1})
	fn := &Function{
		Name:       env.Idents.Intern("max"),
		NumParams:  2,
		NumLocals:  2,
		ReturnType: i64,
		Body: If(
			Compare(micro.CondGreater, LocalRef(0, i64), LocalRef(1, i64), boolTy),
			Return(LocalRef(0, i64)),
			Return(LocalRef(1, i64)),
		),
	}

	art, err := CompileFunction(fn, Config{Optimize: backend.O2}, env)
	require.NoError(t, err)
	require.NotEmpty(t, art.Code)
}

func TestCompileCallRecordsRelocation(t *testing.T) {
	env := testEnv()
	i64 := i64Of(env)
	callee := env.Idents.Intern("callee")
	fn := &Function{
		Name:       env.Idents.Intern("caller"),
		ReturnType: i64,
		Body:       Return(Call(callee, i64, IntLit(1, i64), IntLit(2, i64))),
	}

	art, err := CompileFunction(fn, Config{Optimize: backend.O0, CallConv: micro.CallConvC}, env)
	require.NoError(t, err)

	require.Len(t, art.Relocations, 1)
	r := art.Relocations[0]
	require.Equal(t, micro.RelocLocalFunctionAddress, r.Kind)
	require.Equal(t, callee, r.TargetSymbol)
	require.LessOrEqual(t, int(r.Offset)+int(r.Size), len(art.Code))
}

func TestCompileRejectsUnknownArch(t *testing.T) {
	env := testEnv()
	i64 := i64Of(env)
	fn := &Function{Name: env.Idents.Intern("f"), ReturnType: i64, Body: Return(IntLit(1, i64))}
	_, err := CompileFunction(fn, Config{Arch: "arm64"}, env)
	require.Error(t, err)
}

func TestCompileAttachesDebugInfoWhenEnabled(t *testing.T) {
	env := testEnv()
	i64 := i64Of(env)
	body := Return(IntLit(5, i64))
	body.Src = micro.SourceCodeRef{ViewRef: 1, Line: 3, Column: 9, Len: 1}
	fn := &Function{Name: env.Idents.Intern("f"), ReturnType: i64, Body: body}

	art, err := CompileFunction(fn, Config{DebugInfo: true}, env)
	require.NoError(t, err)

	found := false
	for i := range art.InstrOffsets {
		if src, ok := art.DebugInfo.Get(micro.Ref(i)); ok && src.Line == 3 {
			found = true
		}
	}
	require.True(t, found, "some instruction must carry the return's source ref")
}

func TestCompilePassDumps(t *testing.T) {
	env := testEnv()
	i64 := i64Of(env)
	fn := &Function{Name: env.Idents.Intern("f"), ReturnType: i64, Body: Return(IntLit(5, i64))}

	art, err := CompileFunction(fn, Config{
		PassPrint: map[string]bool{"pre-regalloc": true, "post-legalize": true},
	}, env)
	require.NoError(t, err)
	require.Len(t, art.Dumps, 2)
	require.Contains(t, art.Dumps[0], "pre-regalloc")
	require.Contains(t, art.Dumps[1], "post-legalize")
}

func TestCompileAllMatchesSequentialResults(t *testing.T) {
	build := func(env *Env) []*Function {
		i64 := i64Of(env)
		fns := make([]*Function, 6)
		for i := range fns {
			fns[i] = &Function{
				Name:       env.Idents.Intern("f"),
				ReturnType: i64,
				Body: Return(Binary(micro.OpAdd,
					IntLit(uint64(i), i64), IntLit(uint64(i*3), i64), i64)),
			}
		}
		return fns
	}

	envA := testEnv()
	seq := CompileAll(build(envA), Config{NumCores: 1}, envA)
	envB := testEnv()
	par := CompileAll(build(envB), Config{NumCores: 4}, envB)

	require.Len(t, par, len(seq))
	for i := range seq {
		require.NotNil(t, seq[i])
		require.NotNil(t, par[i])
		require.Equal(t, seq[i].Code, par[i].Code, "function %d", i)
	}
	require.False(t, envA.Reporter.HasErrors())
}

func TestManagersInternConcurrently(t *testing.T) {
	env := testEnv()
	done := make(chan TypeRef, 16)
	for i := 0; i < 16; i++ {
		go func() {
			done <- env.Types.AddType(TypeInfo{Name: "s32", Size: 4})
		}()
	}
	first := <-done
	for i := 1; i < 16; i++ {
		require.Equal(t, first, <-done)
	}
	require.Equal(t, int64(4), env.Types.Get(first).Size)

	require.Equal(t, env.Idents.Intern("x"), env.Idents.Intern("x"))
	require.NotEqual(t, env.Idents.Intern("x"), env.Idents.Intern("y"))
	require.Equal(t, env.Constants.AddConstant(5), env.Constants.AddConstant(5))
	require.Equal(t, uint64(5), env.Constants.Get(env.Constants.AddConstant(5)))
}
