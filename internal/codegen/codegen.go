// Package codegen lowers typed AST functions through the MicroBuilder and
// the backend pass pipeline into machine code.
package codegen

import (
	"fmt"

	"swc/internal/backend"
	"swc/internal/callconv"
	"swc/internal/diag"
	"swc/internal/encoder/amd64"
	"swc/internal/micro"
	"swc/internal/micro/builder"
)

// Config is the build configuration the driver resolves from its command
// line and threads through every codegen job.
type Config struct {
	Optimize  backend.OptimizationLevel
	DebugInfo bool
	Arch      string
	CPU       string
	PassPrint map[string]bool
	CallConv  micro.CallConvKind

	NumCores  int
	Randomize bool
	Seed      int64

	Diag diag.RenderOptions
}

// Validate rejects configurations the backend cannot honor; only x86_64 is
// recognized.
func (c Config) Validate() error {
	if c.Arch != "" && c.Arch != "x86_64" {
		return fmt.Errorf("unsupported architecture %q: only x86_64 is recognized", c.Arch)
	}
	return nil
}

func (c Config) callConvKind() micro.CallConvKind {
	if c.CallConv == micro.CallConvInvalid {
		return micro.CallConvHost
	}
	return c.CallConv
}

// Env bundles the shared read-only managers every codegen job reads:
// interned types, constants and identifiers, plus the serialized
// diagnostic sinks.
type Env struct {
	Types     *TypeManager
	Constants *ConstantManager
	Idents    *IdentifierManager
	Reporter  *diag.Reporter
	Logger    *diag.Logger
}

// NewEnv returns a fresh Env with empty managers and a reporter rendering
// with opts.
func NewEnv(opts diag.RenderOptions) *Env {
	return &Env{
		Types:     NewTypeManager(),
		Constants: NewConstantManager(),
		Idents:    NewIdentifierManager(),
		Reporter:  diag.NewReporter(opts),
	}
}

// Artifact is one function's emitted result: the code
// buffer, the relocation table, the per-instruction debug map and the pass
// dumps the configuration requested.
type Artifact struct {
	Name         micro.IdentifierRef
	Code         []byte
	Relocations  []amd64.ResolvedRelocation
	InstrOffsets []uint32
	DebugInfo    *micro.MicroInstrDebugInfo
	Dumps        []string
}

// CodeGen visits one function's AST and drives a MicroBuilder. It is
// exclusive to its job; only the Env managers are shared.
type CodeGen struct {
	b      *builder.MicroBuilder
	env    *Env
	cfg    Config
	cc     callconv.CallConv
	fn     *Function
	locals []micro.MicroReg
}

// View resolves the SemaNodeView for n.
func (g *CodeGen) View(n *AstNode) SemaNodeView {
	v := SemaNodeView{TypeRef: n.Type, Sym: n.Sym}
	if n.Type != InvalidTypeRef {
		v.Type = g.env.Types.Get(n.Type)
	}
	if n.Kind == NodeIntLit {
		v.Cst = n.Value
		v.CstRef = g.env.Constants.AddConstant(n.Value)
	}
	return v
}

func (g *CodeGen) bitsOf(n *AstNode) micro.MicroOpBits {
	if n.Type == InvalidTypeRef {
		return micro.B64
	}
	return g.env.Types.Get(n.Type).Bits()
}

func (g *CodeGen) setSrc(n *AstNode) {
	if g.cfg.DebugInfo {
		g.b.SetCurrentSourceRef(n.Src)
	}
}

// gen lowers n and returns the payload its parent consumes. Statements
// return a zero payload.
func (g *CodeGen) gen(n *AstNode) CodeGenNodePayload {
	g.setSrc(n)
	switch n.Kind {
	case NodeIntLit:
		bits := g.bitsOf(n)
		dst := g.b.VirtualIntReg()
		g.b.EmitLoadRegImm(dst, n.Value, bits)
		return CodeGenNodePayload{Kind: PayloadPlainValue, Reg: dst, TypeRef: n.Type, Storage: StorageValue, ValueU64: n.Value}

	case NodeLocal:
		return CodeGenNodePayload{Kind: PayloadPlainValue, Reg: g.locals[n.Local], TypeRef: n.Type, Storage: StorageValue}

	case NodeBinary:
		lhs := g.gen(n.Children[0])
		rhs := g.gen(n.Children[1])
		bits := g.bitsOf(n)
		dst := g.b.VirtualIntReg()
		g.b.EmitLoadRegReg(dst, lhs.Reg, bits)
		if n.Op.IsDivOrMod() {
			// idiv/div claims RAX and RDX; the divisor and both values
			// around the division must live elsewhere.
			for _, r := range []micro.MicroReg{rhs.Reg, lhs.Reg, dst} {
				if r.IsVirtual() {
					g.b.AddVirtualRegForbiddenPhysReg(r, micro.IntPhysReg(micro.RAX))
					g.b.AddVirtualRegForbiddenPhysReg(r, micro.IntPhysReg(micro.RDX))
				}
			}
		}
		g.b.EmitOpBinaryRegReg(dst, rhs.Reg, n.Op, bits)
		return CodeGenNodePayload{Kind: PayloadPlainValue, Reg: dst, TypeRef: n.Type, Storage: StorageValue}

	case NodeCompare:
		lhs := g.gen(n.Children[0])
		rhs := g.gen(n.Children[1])
		g.b.EmitCmpRegReg(lhs.Reg, rhs.Reg, g.bitsOf(n.Children[0]))
		dst := g.b.VirtualIntReg()
		g.b.EmitSetCondReg(dst, n.Cond)
		return CodeGenNodePayload{Kind: PayloadPlainValue, Reg: dst, TypeRef: n.Type, Storage: StorageValue}

	case NodeCall:
		params := make([]builder.CallParam, 0, len(n.Children))
		for _, arg := range n.Children {
			p := g.gen(arg)
			params = append(params, builder.CallParam{Src: p.Reg, Bits: g.bitsOf(arg)})
		}
		g.setSrc(n)
		g.b.EmitCallParams(g.cc, params)
		g.b.EmitCallLocal(n.Sym, g.cc.Kind())
		dst := g.b.VirtualIntReg()
		g.b.EmitLoadRegReg(dst, g.cc.IntReturn(), g.bitsOf(n))
		return CodeGenNodePayload{Kind: PayloadPlainValue, Reg: dst, TypeRef: n.Type, Storage: StorageValue}

	case NodeAssign:
		p := g.gen(n.Children[0])
		g.b.EmitLoadRegReg(g.locals[n.Local], p.Reg, g.bitsOf(n.Children[0]))
		return CodeGenNodePayload{}

	case NodeReturn:
		if len(n.Children) > 0 {
			p := g.gen(n.Children[0])
			g.setSrc(n)
			g.b.EmitLoadRegReg(g.cc.IntReturn(), p.Reg, g.bitsOf(n.Children[0]))
		}
		g.b.EmitRet()
		return CodeGenNodePayload{}

	case NodeIf:
		cond := g.gen(n.Children[0])
		g.b.EmitCmpRegImm(cond.Reg, 0, micro.B32)
		elseLabel := g.b.CreateLabel()
		g.b.EmitJumpToLabel(micro.CondEqual, micro.B32, elseLabel)
		g.gen(n.Children[1])
		if len(n.Children) > 2 {
			endLabel := g.b.CreateLabel()
			g.b.EmitJumpToLabel(micro.CondUnconditional, micro.B32, endLabel)
			g.b.PlaceLabel(elseLabel)
			g.gen(n.Children[2])
			g.b.PlaceLabel(endLabel)
		} else {
			g.b.PlaceLabel(elseLabel)
		}
		return CodeGenNodePayload{}

	case NodeBlock:
		for _, stmt := range n.Children {
			g.gen(stmt)
		}
		return CodeGenNodePayload{}

	default:
		panic("BUG: codegen visited an invalid AST node")
	}
}

// CompileFunction lowers fn through the full pipeline: emission, the pass
// manager's four stages, and encoding. Diagnostics go to env.Reporter; the
// returned error is reserved for driver-level failures (bad configuration,
// an unencodable stream surviving legalize).
func CompileFunction(fn *Function, cfg Config, env *Env) (*Artifact, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cc := callconv.ByKind(cfg.callConvKind())

	g := &CodeGen{
		b:   builder.New(builder.DebugInfoMode(cfg.DebugInfo)),
		env: env,
		cfg: cfg,
		cc:  cc,
		fn:  fn,
	}

	g.b.EmitEnter()
	g.locals = make([]micro.MicroReg, fn.NumLocals)
	for i := range g.locals {
		g.locals[i] = g.b.VirtualIntReg()
	}
	intArgs := cc.IntArgRegs()
	for i := 0; i < fn.NumParams && i < len(intArgs); i++ {
		g.b.EmitLoadRegReg(g.locals[i], intArgs[i], micro.B64)
	}

	g.gen(fn.Body)
	g.b.EmitRet()

	enc := amd64.New()
	ctx := &backend.MicroPassContext{
		Builder:          g.b,
		CallConv:         cc,
		Level:            cfg.Optimize,
		PassPrintOptions: cfg.PassPrint,
	}
	mgr := &backend.MicroPassManager{
		PreOptimization:  backend.DefaultPreOptimization(),
		Mandatory:        backend.DefaultMandatory(),
		PostOptimization: backend.DefaultPostOptimization(),
		Final:            backend.DefaultFinal(enc),
	}
	mgr.Run(ctx)
	if ctx.EncodeErr != nil {
		return nil, fmt.Errorf("encoding %s: %w", env.Idents.Name(fn.Name), ctx.EncodeErr)
	}

	return &Artifact{
		Name:         fn.Name,
		Code:         enc.Code,
		Relocations:  enc.Relocations,
		InstrOffsets: enc.InstrOffsets,
		DebugInfo:    g.b.DebugInfo,
		Dumps:        ctx.Dumps,
	}, nil
}
