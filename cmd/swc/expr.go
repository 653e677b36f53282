package main

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"swc/internal/codegen"
	"swc/internal/micro"
)

// parseExprFunction wraps the emit subcommand's integer-expression grammar
// into a single returning function. It stands in for the real front end and
// exists only to give the driver something to push through the pipeline.
//
//	expr   := cmp
//	cmp    := sum (("=="|"!="|"<"|"<="|">"|">=") sum)?
//	sum    := prod (("+"|"-") prod)*
//	prod   := unary (("*"|"/"|"%") unary)*
//	unary  := "-" unary | atom
//	atom   := integer | "(" expr ")"
func parseExprFunction(src string, env *codegen.Env) (*codegen.Function, error) {
	i64 := env.Types.AddType(codegen.TypeInfo{Name: "s64", Size: 8})
	boolTy := env.Types.AddType(codegen.TypeInfo{Name: "bool", Size: 1})

	p := &exprParser{src: src, i64: i64, boolTy: boolTy}
	root, err := p.parseCmp()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return nil, fmt.Errorf("unexpected %q at offset %d", p.src[p.pos], p.pos)
	}
	return &codegen.Function{
		Name:       env.Idents.Intern("expr"),
		ReturnType: i64,
		Body:       codegen.Return(root),
	}, nil
}

type exprParser struct {
	src    string
	pos    int
	i64    codegen.TypeRef
	boolTy codegen.TypeRef
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func (p *exprParser) accept(tok string) bool {
	p.skipSpace()
	if strings.HasPrefix(p.src[p.pos:], tok) {
		p.pos += len(tok)
		return true
	}
	return false
}

func (p *exprParser) parseCmp() (*codegen.AstNode, error) {
	lhs, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	for _, op := range []struct {
		tok  string
		cond micro.MicroCond
	}{
		{"==", micro.CondEqual}, {"!=", micro.CondNotEqual},
		{"<=", micro.CondLessOrEqual}, {">=", micro.CondGreaterOrEqual},
		{"<", micro.CondLess}, {">", micro.CondGreater},
	} {
		if p.accept(op.tok) {
			rhs, err := p.parseSum()
			if err != nil {
				return nil, err
			}
			return codegen.Compare(op.cond, lhs, rhs, p.boolTy), nil
		}
	}
	return lhs, nil
}

func (p *exprParser) parseSum() (*codegen.AstNode, error) {
	lhs, err := p.parseProd()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.accept("+"):
			rhs, err := p.parseProd()
			if err != nil {
				return nil, err
			}
			lhs = codegen.Binary(micro.OpAdd, lhs, rhs, p.i64)
		case p.accept("-"):
			rhs, err := p.parseProd()
			if err != nil {
				return nil, err
			}
			lhs = codegen.Binary(micro.OpSubtract, lhs, rhs, p.i64)
		default:
			return lhs, nil
		}
	}
}

func (p *exprParser) parseProd() (*codegen.AstNode, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.accept("*"):
			rhs, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			lhs = codegen.Binary(micro.OpMultiplySigned, lhs, rhs, p.i64)
		case p.accept("/"):
			rhs, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			lhs = codegen.Binary(micro.OpDivideSigned, lhs, rhs, p.i64)
		case p.accept("%"):
			rhs, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			lhs = codegen.Binary(micro.OpModuloSigned, lhs, rhs, p.i64)
		default:
			return lhs, nil
		}
	}
}

func (p *exprParser) parseUnary() (*codegen.AstNode, error) {
	if p.accept("-") {
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return codegen.Binary(micro.OpSubtract, codegen.IntLit(0, p.i64), operand, p.i64), nil
	}
	return p.parseAtom()
}

func (p *exprParser) parseAtom() (*codegen.AstNode, error) {
	if p.accept("(") {
		inner, err := p.parseCmp()
		if err != nil {
			return nil, err
		}
		if !p.accept(")") {
			return nil, fmt.Errorf("missing ')' at offset %d", p.pos)
		}
		return inner, nil
	}
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) && unicode.IsDigit(rune(p.src[p.pos])) {
		p.pos++
	}
	if start == p.pos {
		return nil, fmt.Errorf("expected an integer at offset %d", start)
	}
	v, err := strconv.ParseUint(p.src[start:p.pos], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad integer literal %q: %w", p.src[start:p.pos], err)
	}
	return codegen.IntLit(v, p.i64), nil
}
