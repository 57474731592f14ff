// Package parser builds syntax trees from tokens.
//
// Binary expressions are parsed by precedence climbing. Operator
// precedence is read from the operator table every time an operator token
// is seen, so declarations made by earlier units (or earlier in the same
// unit) affect everything parsed after them.
package parser

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/strager/kaleido/ast"
	"github.com/strager/kaleido/lexer"
	"github.com/strager/kaleido/logutil"
	"github.com/strager/kaleido/optable"
)

var logger = logutil.GetLogger("[parser] ")

// Error is a parse error.
type Error struct {
	Expected string
	Found    lexer.Token
	Pos      lexer.Pos
	// Err is an underlying cause, such as an *optable.ArityError.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse error at %s: %v", e.Pos, e.Err)
	}
	return fmt.Sprintf("parse error at %s: expected %s but found %s", e.Pos, e.Expected, e.Found)
}

func (e *Error) Unwrap() error { return e.Err }

// Incomplete reports whether the input ended in the middle of a unit, so
// more input could make it valid.
func (e *Error) Incomplete() bool {
	return e.Err == nil && e.Found.Kind == lexer.EOF
}

// IsIncomplete reports whether err is a parse error caused by input ending
// early.
func IsIncomplete(err error) bool {
	var perr *Error
	return errors.As(err, &perr) && perr.Incomplete()
}

// Parser reads top-level units from a source string.
type Parser struct {
	lex *lexer.Lexer
	ops *optable.Table

	// Lookahead buffer. buf[0] is the current token.
	buf     []lexer.Token
	lastEnd int
	// lexErr is sticky until recover so a bad character seen during
	// lookahead is reported when the parser reaches it.
	lexErr error

	from, to int
}

// New returns a parser over src that reads and declares operators in ops.
func New(src string, ops *optable.Table) *Parser {
	return &Parser{lex: lexer.New(src), ops: ops}
}

// Span returns the byte range of the unit most recently returned or
// rejected by ParseTopLevel.
func (p *Parser) Span() (from, to int) { return p.from, p.to }

func (p *Parser) peek(i int) (lexer.Token, error) {
	for len(p.buf) <= i {
		if p.lexErr != nil {
			return lexer.Token{}, p.lexErr
		}
		tok, err := p.lex.Next()
		if err != nil {
			p.lexErr = err
			return lexer.Token{}, err
		}
		p.buf = append(p.buf, tok)
	}
	return p.buf[i], nil
}

func (p *Parser) cur() (lexer.Token, error) { return p.peek(0) }

func (p *Parser) advance(n int) {
	for i := 0; i < n && len(p.buf) > 0; i++ {
		p.lastEnd = p.buf[0].End
		p.buf = p.buf[1:]
	}
}

func (p *Parser) errorf(expected string, found lexer.Token) error {
	return &Error{Expected: expected, Found: found, Pos: found.Pos}
}

// expect consumes the current token if it matches; otherwise it returns an
// error naming what was wanted.
func (p *Parser) expect(kind lexer.Kind, text string) error {
	tok, err := p.cur()
	if err != nil {
		return err
	}
	if !tok.Is(kind, text) {
		return p.errorf("'"+text+"'", tok)
	}
	p.advance(1)
	return nil
}

// ParseTopLevel parses the next unit: a definition, an extern, or a bare
// expression wrapped in an anonymous function. It returns io.EOF when the
// input is exhausted.
//
// On error the operator table is restored to its state before the unit
// and the parser skips past the next ';' so the following unit can be
// parsed.
func (p *Parser) ParseTopLevel() (ast.TopLevel, error) {
	for {
		tok, err := p.cur()
		if err != nil {
			p.from = p.lex.Offset()
			var lerr *lexer.Error
			if errors.As(err, &lerr) {
				p.from = lerr.Pos.Offset
			}
			p.to = p.errorEnd(err, p.from)
			p.recover()
			return nil, err
		}
		if tok.Is(lexer.Symbol, ";") {
			p.advance(1)
			continue
		}
		if tok.Kind == lexer.EOF {
			p.from, p.to = tok.Pos.Offset, tok.Pos.Offset
			return nil, io.EOF
		}
		p.from = tok.Pos.Offset
		break
	}

	snap := p.ops.Snapshot()
	node, err := p.parseUnit()
	if err == nil {
		err = p.finishUnit()
	}
	p.to = p.lastEnd
	if err != nil {
		logger.Printf("unit at %d rejected: %v", p.from, err)
		p.to = p.errorEnd(err, p.to)
		p.ops.Restore(snap)
		p.recover()
		return nil, err
	}
	return node, nil
}

// errorEnd extends a unit's span to cover the token an error points at.
func (p *Parser) errorEnd(err error, to int) int {
	var perr *Error
	if errors.As(err, &perr) && perr.Found.End > to {
		to = perr.Found.End
	}
	var lerr *lexer.Error
	if errors.As(err, &lerr) && lerr.Pos.Offset+1 > to {
		to = lerr.Pos.Offset + 1
	}
	if to < p.from {
		to = p.from
	}
	return to
}

func (p *Parser) parseUnit() (ast.TopLevel, error) {
	tok, err := p.cur()
	if err != nil {
		return nil, err
	}
	switch {
	case tok.Is(lexer.Keyword, lexer.KwDef):
		return p.parseDefinition()
	case tok.Is(lexer.Keyword, lexer.KwExtern):
		return p.parseExtern()
	default:
		return p.parseTopLevelExpr()
	}
}

// finishUnit requires a unit to end at ';' or at the end of input.
func (p *Parser) finishUnit() error {
	tok, err := p.cur()
	if err != nil {
		return err
	}
	switch {
	case tok.Is(lexer.Symbol, ";"):
		p.advance(1)
		return nil
	case tok.Kind == lexer.EOF:
		return nil
	default:
		return p.errorf("';'", tok)
	}
}

// recover discards input through the next ';'.
func (p *Parser) recover() {
	p.lexErr = nil
	for len(p.buf) > 0 {
		tok := p.buf[0]
		if tok.Kind == lexer.EOF {
			return
		}
		p.advance(1)
		if tok.Is(lexer.Symbol, ";") {
			return
		}
	}
	p.lex.SkipPast(';')
	p.lastEnd = p.lex.Offset()
}

// definition ::= 'def' prototype expression
func (p *Parser) parseDefinition() (ast.TopLevel, error) {
	p.advance(1)
	proto, err := p.parsePrototype()
	if err != nil {
		return nil, err
	}
	body, err := p.ParseExpression()
	if err != nil {
		return nil, err
	}
	return &ast.Function{Proto: proto, Body: body}, nil
}

// external ::= 'extern' prototype
func (p *Parser) parseExtern() (ast.TopLevel, error) {
	p.advance(1)
	return p.parsePrototype()
}

// toplevelexpr ::= expression
func (p *Parser) parseTopLevelExpr() (ast.TopLevel, error) {
	body, err := p.ParseExpression()
	if err != nil {
		return nil, err
	}
	return &ast.Function{Proto: &ast.Prototype{Name: ast.AnonName}, Body: body}, nil
}

// prototype
//
//	::= id '(' id* ')'
//	::= 'unary' SYMBOL '(' id ')'
//	::= 'binary' SYMBOL NUMBER? '(' id id ')'
func (p *Parser) parsePrototype() (*ast.Prototype, error) {
	tok, err := p.cur()
	if err != nil {
		return nil, err
	}

	proto := &ast.Prototype{}
	switch {
	case tok.Kind == lexer.Identifier:
		proto.Name = tok.Text
		p.advance(1)

	case tok.Is(lexer.Keyword, lexer.KwUnary), tok.Is(lexer.Keyword, lexer.KwBinary):
		p.advance(1)
		sym, err := p.parseOperatorSymbol()
		if err != nil {
			return nil, err
		}
		proto.Op = sym
		if tok.Text == lexer.KwUnary {
			proto.Kind = ast.UnaryProto
			proto.Name = ast.UnaryName(sym)
		} else {
			proto.Kind = ast.BinaryProto
			proto.Name = ast.BinaryName(sym)
			proto.Precedence = optable.DefaultPrecedence
			prec, err := p.cur()
			if err != nil {
				return nil, err
			}
			if prec.Kind == lexer.Number {
				if prec.Num < optable.MinPrecedence || prec.Num > optable.MaxPrecedence || prec.Num != math.Trunc(prec.Num) {
					return nil, p.errorf(fmt.Sprintf("an integer precedence in %d..%d", optable.MinPrecedence, optable.MaxPrecedence), prec)
				}
				proto.Precedence = int(prec.Num)
				p.advance(1)
			}
		}

	default:
		return nil, p.errorf("function name in prototype", tok)
	}

	if err := p.expect(lexer.Symbol, "("); err != nil {
		return nil, err
	}
	for {
		tok, err := p.cur()
		if err != nil {
			return nil, err
		}
		if tok.Kind != lexer.Identifier {
			break
		}
		proto.Params = append(proto.Params, tok.Text)
		p.advance(1)
	}
	closing, err := p.cur()
	if err != nil {
		return nil, err
	}
	if err := p.expect(lexer.Symbol, ")"); err != nil {
		return nil, err
	}

	switch proto.Kind {
	case ast.UnaryProto:
		if len(proto.Params) != 1 {
			return nil, p.errorf("exactly 1 operand for unary operator", closing)
		}
		err = p.ops.Declare(proto.Op, optable.Unary, 0)
	case ast.BinaryProto:
		if len(proto.Params) != 2 {
			return nil, p.errorf("exactly 2 operands for binary operator", closing)
		}
		err = p.ops.Declare(proto.Op, optable.Binary, proto.Precedence)
	}
	if err != nil {
		return nil, &Error{Expected: "operator declaration", Found: tok, Pos: tok.Pos, Err: err}
	}
	if proto.IsOperator() {
		logger.Printf("declared operator %q for %s", proto.Op, proto.Name)
	}
	return proto, nil
}

// parseOperatorSymbol reads the symbol being declared by a 'unary' or
// 'binary' prototype. Adjacent punctuation characters join into one
// symbol.
func (p *Parser) parseOperatorSymbol() (string, error) {
	tok, err := p.cur()
	if err != nil {
		return "", err
	}
	if tok.Kind != lexer.Symbol || optable.Reserved(tok.Text) {
		return "", p.errorf("operator symbol", tok)
	}
	sym := tok.Text
	end := tok.End
	p.advance(1)
	for {
		next, err := p.cur()
		if err != nil {
			return "", err
		}
		if next.Kind != lexer.Symbol || optable.Reserved(next.Text) || next.Pos.Offset != end {
			return sym, nil
		}
		sym += next.Text
		end = next.End
		p.advance(1)
	}
}

// matchOperator finds the longest run of adjacent symbol tokens starting
// at the current token that spells an operator accepted by ok. It returns
// the symbol and the number of tokens it spans, or n == 0 if there is no
// match.
func (p *Parser) matchOperator(ok func(string) bool) (sym string, n int, err error) {
	tok, err := p.cur()
	if err != nil {
		return "", 0, err
	}
	if tok.Kind != lexer.Symbol || optable.Reserved(tok.Text) {
		return "", 0, nil
	}
	cand := tok.Text
	end := tok.End
	if ok(cand) {
		sym, n = cand, 1
	}
	for i := 1; len(cand) < p.ops.MaxLen(); i++ {
		next, err := p.peek(i)
		if err != nil {
			// A bad character after the operator is reported when the
			// parser reaches it, not here.
			break
		}
		if next.Kind != lexer.Symbol || optable.Reserved(next.Text) || next.Pos.Offset != end {
			break
		}
		cand += next.Text
		end = next.End
		if ok(cand) {
			sym, n = cand, i+1
		}
	}
	return sym, n, nil
}

// binOp returns the binary operator at the current position and its
// current precedence, or a precedence of -1.
func (p *Parser) binOp() (string, int, int, error) {
	sym, n, err := p.matchOperator(p.ops.IsBinaryOperator)
	if err != nil || n == 0 {
		return "", 0, -1, err
	}
	return sym, n, p.ops.PrecedenceOf(sym), nil
}

// ParseExpression parses one expression.
func (p *Parser) ParseExpression() (ast.Expr, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return p.parseBinOpRHS(0, lhs)
}

// binoprhs ::= (binop unary)*
func (p *Parser) parseBinOpRHS(exprPrec int, lhs ast.Expr) (ast.Expr, error) {
	for {
		op, n, prec, err := p.binOp()
		if err != nil {
			return nil, err
		}
		// Only consume operators that bind at least as tightly as the
		// current one.
		if prec < exprPrec {
			return lhs, nil
		}
		p.advance(n)

		rhs, err := p.parseUnary()
		if err != nil {
			return nil, err
		}

		// If the next operator binds tighter, it takes rhs as its lhs.
		_, _, nextPrec, err := p.binOp()
		if err != nil {
			return nil, err
		}
		if prec < nextPrec {
			rhs, err = p.parseBinOpRHS(prec+1, rhs)
			if err != nil {
				return nil, err
			}
		}

		lhs = &ast.Binary{Op: op, LHS: lhs, RHS: rhs}
	}
}

// unary
//
//	::= primary
//	::= unaryop unary
func (p *Parser) parseUnary() (ast.Expr, error) {
	op, n, err := p.matchOperator(p.ops.IsUnaryOperator)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return p.parsePrimary()
	}
	p.advance(n)
	operand, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &ast.Unary{Op: op, Operand: operand}, nil
}

// primary
//
//	::= numberexpr
//	::= parenexpr
//	::= identifierexpr
//	::= ifexpr
//	::= forexpr
//	::= varexpr
func (p *Parser) parsePrimary() (ast.Expr, error) {
	tok, err := p.cur()
	if err != nil {
		return nil, err
	}
	switch {
	case tok.Kind == lexer.Number:
		p.advance(1)
		return &ast.Number{Value: tok.Num}, nil
	case tok.Is(lexer.Symbol, "("):
		return p.parseParenExpr()
	case tok.Kind == lexer.Identifier:
		return p.parseIdentifierExpr()
	case tok.Is(lexer.Keyword, lexer.KwIf):
		return p.parseIfExpr()
	case tok.Is(lexer.Keyword, lexer.KwFor):
		return p.parseForExpr()
	case tok.Is(lexer.Keyword, lexer.KwVar):
		return p.parseVarExpr()
	default:
		return nil, p.errorf("expression", tok)
	}
}

// parenexpr ::= '(' expression ')'
func (p *Parser) parseParenExpr() (ast.Expr, error) {
	p.advance(1)
	v, err := p.ParseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expect(lexer.Symbol, ")"); err != nil {
		return nil, err
	}
	return v, nil
}

// identifierexpr
//
//	::= identifier
//	::= identifier '(' (expression (',' expression)*)? ')'
func (p *Parser) parseIdentifierExpr() (ast.Expr, error) {
	name, _ := p.cur()
	p.advance(1)

	tok, err := p.cur()
	if err != nil {
		return nil, err
	}
	if !tok.Is(lexer.Symbol, "(") {
		return &ast.Variable{Name: name.Text}, nil
	}
	p.advance(1)

	call := &ast.Call{Callee: name.Text, Args: []ast.Expr{}}
	tok, err = p.cur()
	if err != nil {
		return nil, err
	}
	if tok.Is(lexer.Symbol, ")") {
		p.advance(1)
		return call, nil
	}
	for {
		arg, err := p.ParseExpression()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)

		tok, err := p.cur()
		if err != nil {
			return nil, err
		}
		if tok.Is(lexer.Symbol, ")") {
			p.advance(1)
			return call, nil
		}
		if !tok.Is(lexer.Symbol, ",") {
			return nil, p.errorf("')' or ',' in argument list", tok)
		}
		p.advance(1)
	}
}

// ifexpr ::= 'if' expression 'then' expression 'else' expression
func (p *Parser) parseIfExpr() (ast.Expr, error) {
	p.advance(1)
	cond, err := p.ParseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expect(lexer.Keyword, lexer.KwThen); err != nil {
		return nil, err
	}
	then, err := p.ParseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expect(lexer.Keyword, lexer.KwElse); err != nil {
		return nil, err
	}
	els, err := p.ParseExpression()
	if err != nil {
		return nil, err
	}
	return &ast.If{Cond: cond, Then: then, Else: els}, nil
}

// forexpr ::= 'for' identifier '=' expr ',' expr (',' expr)? 'in' expression
func (p *Parser) parseForExpr() (ast.Expr, error) {
	p.advance(1)
	tok, err := p.cur()
	if err != nil {
		return nil, err
	}
	if tok.Kind != lexer.Identifier {
		return nil, p.errorf("identifier after 'for'", tok)
	}
	p.advance(1)
	loop := &ast.For{Var: tok.Text}

	if err := p.expect(lexer.Symbol, "="); err != nil {
		return nil, err
	}
	if loop.Start, err = p.ParseExpression(); err != nil {
		return nil, err
	}
	if err := p.expect(lexer.Symbol, ","); err != nil {
		return nil, err
	}
	if loop.Cond, err = p.ParseExpression(); err != nil {
		return nil, err
	}

	tok, err = p.cur()
	if err != nil {
		return nil, err
	}
	if tok.Is(lexer.Symbol, ",") {
		p.advance(1)
		if loop.Step, err = p.ParseExpression(); err != nil {
			return nil, err
		}
	} else {
		loop.Step = &ast.Number{Value: 1}
	}

	if err := p.expect(lexer.Keyword, lexer.KwIn); err != nil {
		return nil, err
	}
	if loop.Body, err = p.ParseExpression(); err != nil {
		return nil, err
	}
	return loop, nil
}

// varexpr ::= 'var' identifier ('=' expression)?
//
//	(',' identifier ('=' expression)?)* 'in' expression
func (p *Parser) parseVarExpr() (ast.Expr, error) {
	p.advance(1)
	v := &ast.VarBinding{}
	for {
		tok, err := p.cur()
		if err != nil {
			return nil, err
		}
		if tok.Kind != lexer.Identifier {
			return nil, p.errorf("identifier after 'var'", tok)
		}
		p.advance(1)

		b := ast.Binding{Name: tok.Text, Init: &ast.Number{Value: 0}}
		tok, err = p.cur()
		if err != nil {
			return nil, err
		}
		if tok.Is(lexer.Symbol, "=") {
			p.advance(1)
			if b.Init, err = p.ParseExpression(); err != nil {
				return nil, err
			}
		}
		v.Vars = append(v.Vars, b)

		tok, err = p.cur()
		if err != nil {
			return nil, err
		}
		if !tok.Is(lexer.Symbol, ",") {
			break
		}
		p.advance(1)
	}

	if err := p.expect(lexer.Keyword, lexer.KwIn); err != nil {
		return nil, err
	}
	body, err := p.ParseExpression()
	if err != nil {
		return nil, err
	}
	v.Body = body
	return v, nil
}
