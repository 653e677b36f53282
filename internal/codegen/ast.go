package codegen

import "swc/internal/micro"

// The real frontend (lexer, parser, semantic analyzer) is an external
// collaborator; this file carries the minimal typed-AST surface the code
// generator consumes from it, enough to drive every MicroBuilder emit path
// end to end.

// NodeKind discriminates AstNode.
type NodeKind uint8

const (
	NodeInvalid NodeKind = iota
	NodeIntLit
	NodeLocal
	NodeBinary
	NodeCompare
	NodeCall
	NodeAssign
	NodeReturn
	NodeIf
	NodeBlock
)

// AstNode is one typed AST node as the semantic analyzer hands it over.
// Children's meaning depends on Kind: Binary/Compare take {lhs, rhs},
// Assign takes {value}, Return takes {value}, If takes {cond, then, else?},
// Call takes its arguments, Block takes its statements.
type AstNode struct {
	Kind     NodeKind
	Value    uint64
	Local    int
	Op       micro.MicroOp
	Cond     micro.MicroCond
	Sym      micro.IdentifierRef
	Type     TypeRef
	Src      micro.SourceCodeRef
	Children []*AstNode
}

// SemaNodeView is the read-only per-node view the code generator sees: the
// resolved type, the folded constant if the analyzer produced one, and the
// symbol a reference resolves to.
type SemaNodeView struct {
	Type    *TypeInfo
	TypeRef TypeRef
	Cst     uint64
	CstRef  micro.ConstantRef
	Sym     micro.IdentifierRef
	SymList []micro.IdentifierRef
}

// PayloadKind classifies what a CodeGenNodePayload's register holds.
type PayloadKind uint8

const (
	PayloadAddressValue PayloadKind = iota
	PayloadPlainValue
	PayloadExternalFunctionAddress
	PayloadPointerStorageU64
	PayloadDerefPointerStorageU64
)

// StorageKind distinguishes a payload carrying an address from one carrying
// the value itself.
type StorageKind uint8

const (
	StorageAddress StorageKind = iota
	StorageValue
)

// CodeGenNodePayload is produced per AST node to carry downstream
// information to parents.
type CodeGenNodePayload struct {
	Kind     PayloadKind
	Reg      micro.MicroReg
	TypeRef  TypeRef
	Storage  StorageKind
	ValueU64 uint64
}

// Function is one function's worth of typed AST handed to a codegen job.
type Function struct {
	Name       micro.IdentifierRef
	NumParams  int
	NumLocals  int
	ReturnType TypeRef
	Body       *AstNode
}

// IntLit builds an integer-literal node.
func IntLit(v uint64, ty TypeRef) *AstNode { return &AstNode{Kind: NodeIntLit, Value: v, Type: ty} }

// LocalRef builds a local-variable reference node.
func LocalRef(slot int, ty TypeRef) *AstNode { return &AstNode{Kind: NodeLocal, Local: slot, Type: ty} }

// Binary builds an arithmetic/logic node over lhs and rhs.
func Binary(op micro.MicroOp, lhs, rhs *AstNode, ty TypeRef) *AstNode {
	return &AstNode{Kind: NodeBinary, Op: op, Type: ty, Children: []*AstNode{lhs, rhs}}
}

// Compare builds a comparison node yielding 0/1.
func Compare(cond micro.MicroCond, lhs, rhs *AstNode, boolTy TypeRef) *AstNode {
	return &AstNode{Kind: NodeCompare, Cond: cond, Type: boolTy, Children: []*AstNode{lhs, rhs}}
}

// Call builds a call node.
func Call(sym micro.IdentifierRef, ty TypeRef, args ...*AstNode) *AstNode {
	return &AstNode{Kind: NodeCall, Sym: sym, Type: ty, Children: args}
}

// Assign builds a store into a local slot.
func Assign(slot int, value *AstNode) *AstNode {
	return &AstNode{Kind: NodeAssign, Local: slot, Children: []*AstNode{value}}
}

// Return builds a return statement; value may be nil for a bare return.
func Return(value *AstNode) *AstNode {
	n := &AstNode{Kind: NodeReturn}
	if value != nil {
		n.Children = []*AstNode{value}
	}
	return n
}

// If builds a conditional; elseBlock may be nil.
func If(cond, thenBlock, elseBlock *AstNode) *AstNode {
	n := &AstNode{Kind: NodeIf, Children: []*AstNode{cond, thenBlock}}
	if elseBlock != nil {
		n.Children = append(n.Children, elseBlock)
	}
	return n
}

// Block builds a statement sequence.
func Block(stmts ...*AstNode) *AstNode { return &AstNode{Kind: NodeBlock, Children: stmts} }
