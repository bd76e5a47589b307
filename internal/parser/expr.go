package parser

import (
	"fmt"
	"strconv"

	"github.com/mumei-lang/mumei/internal/ast"
	"github.com/mumei-lang/mumei/internal/errors"
	"github.com/mumei-lang/mumei/internal/lexer"
	"github.com/mumei-lang/mumei/internal/position"
)

// parseBlock parses `{ stmt* [resultExpr] }`.
func (p *parser) parseBlock() (*ast.Block, error) {
	start, err := p.expect(lexer.TokenLBrace)
	if err != nil {
		return nil, err
	}

	b := &ast.Block{}
	b.Sp.Start = start.Span.Start

	for !p.at(lexer.TokenRBrace) {
		if p.at(lexer.TokenLet) {
			s, err := p.parseLetStmt()
			if err != nil {
				return nil, err
			}

			b.Stmts = append(b.Stmts, s)

			continue
		}

		if p.at(lexer.TokenWhile) {
			s, err := p.parseWhileStmt()
			if err != nil {
				return nil, err
			}

			b.Stmts = append(b.Stmts, s)

			continue
		}

		if p.at(lexer.TokenIdentifier) && p.peek.Type == lexer.TokenAssign {
			s, err := p.parseAssignStmt()
			if err != nil {
				return nil, err
			}

			b.Stmts = append(b.Stmts, s)

			continue
		}

		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}

		if p.at(lexer.TokenSemicolon) {
			p.advance()

			b.Stmts = append(b.Stmts, &ast.ExprStmt{X: e})

			continue
		}

		// No trailing semicolon: this is the block's result expression, and
		// must be the last thing before the closing brace.
		b.Result = e

		break
	}

	end, err := p.expect(lexer.TokenRBrace)
	if err != nil {
		return nil, err
	}

	b.Sp.End = end.Span.End

	return b, nil
}

func (p *parser) parseLetStmt() (ast.Stmt, error) {
	start := p.cur.Span.Start
	p.advance() // let

	name, err := p.expect(lexer.TokenIdentifier)
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(lexer.TokenAssign); err != nil {
		return nil, err
	}

	val, err := p.parseExpr()
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(lexer.TokenSemicolon); err != nil {
		return nil, err
	}

	s := &ast.LetStmt{Name: name.Literal, Value: val}
	s.Sp = position.Span{Start: start, End: p.cur.Span.End}

	return s, nil
}

func (p *parser) parseAssignStmt() (ast.Stmt, error) {
	start := p.cur.Span.Start

	name, err := p.expect(lexer.TokenIdentifier)
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(lexer.TokenAssign); err != nil {
		return nil, err
	}

	val, err := p.parseExpr()
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(lexer.TokenSemicolon); err != nil {
		return nil, err
	}

	s := &ast.AssignStmt{Name: name.Literal, Value: val}
	s.Sp = position.Span{Start: start, End: p.cur.Span.End}

	return s, nil
}

func (p *parser) parseWhileStmt() (ast.Stmt, error) {
	start := p.cur.Span.Start
	p.advance() // while

	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}

	w := &ast.WhileStmt{Cond: cond}

clauses:
	for {
		switch p.cur.Type {
		case lexer.TokenInvariant:
			p.advance()

			w.Invariant, err = p.parseExpr()
			if err != nil {
				return nil, err
			}
		case lexer.TokenDecreases:
			p.advance()

			w.Decreases, err = p.parseExpr()
			if err != nil {
				return nil, err
			}
		default:
			break clauses
		}
	}

	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}

	w.Body = body
	w.Sp = position.Span{Start: start, End: p.cur.Span.End}

	return w, nil
}

// Precedence-climbing expression parser. Lowest to highest: implies (=>,
// right-assoc), or, and, comparisons (non-chaining), additive,
// multiplicative, unary, postfix, primary.

func (p *parser) parseExpr() (ast.Expr, error) { return p.parseImplies() }

func (p *parser) parseImplies() (ast.Expr, error) {
	lhs, err := p.parseOr()
	if err != nil {
		return nil, err
	}

	if p.at(lexer.TokenArrow) {
		p.advance()

		rhs, err := p.parseImplies() // right-associative
		if err != nil {
			return nil, err
		}

		return &ast.BinaryExpr{Op: ast.OpImplies, L: lhs, R: rhs}, nil
	}

	return lhs, nil
}

func (p *parser) parseOr() (ast.Expr, error) {
	lhs, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	for p.at(lexer.TokenOrOr) {
		p.advance()

		rhs, err := p.parseAnd()
		if err != nil {
			return nil, err
		}

		lhs = &ast.BinaryExpr{Op: ast.OpOr, L: lhs, R: rhs}
	}

	return lhs, nil
}

func (p *parser) parseAnd() (ast.Expr, error) {
	lhs, err := p.parseComparison()
	if err != nil {
		return nil, err
	}

	for p.at(lexer.TokenAndAnd) {
		p.advance()

		rhs, err := p.parseComparison()
		if err != nil {
			return nil, err
		}

		lhs = &ast.BinaryExpr{Op: ast.OpAnd, L: lhs, R: rhs}
	}

	return lhs, nil
}

var cmpOps = map[lexer.TokenType]ast.BinOp{
	lexer.TokenFatEq: ast.OpEq, lexer.TokenNe: ast.OpNe,
	lexer.TokenLt: ast.OpLt, lexer.TokenLe: ast.OpLe,
	lexer.TokenGt: ast.OpGt, lexer.TokenGe: ast.OpGe,
}

func (p *parser) parseComparison() (ast.Expr, error) {
	lhs, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}

	if op, ok := cmpOps[p.cur.Type]; ok {
		p.advance()

		rhs, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}

		return &ast.BinaryExpr{Op: op, L: lhs, R: rhs}, nil
	}

	return lhs, nil
}

func (p *parser) parseAdditive() (ast.Expr, error) {
	lhs, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}

	for p.at(lexer.TokenPlus) || p.at(lexer.TokenMinus) {
		op := ast.OpAdd
		if p.at(lexer.TokenMinus) {
			op = ast.OpSub
		}

		p.advance()

		rhs, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}

		lhs = &ast.BinaryExpr{Op: op, L: lhs, R: rhs}
	}

	return lhs, nil
}

func (p *parser) parseMultiplicative() (ast.Expr, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for p.at(lexer.TokenStar) || p.at(lexer.TokenSlash) || p.at(lexer.TokenPercent) {
		var op ast.BinOp

		switch p.cur.Type {
		case lexer.TokenStar:
			op = ast.OpMul
		case lexer.TokenSlash:
			op = ast.OpDiv
		default:
			op = ast.OpMod
		}

		p.advance()

		rhs, err := p.parseUnary()
		if err != nil {
			return nil, err
		}

		lhs = &ast.BinaryExpr{Op: op, L: lhs, R: rhs}
	}

	return lhs, nil
}

func (p *parser) parseUnary() (ast.Expr, error) {
	switch p.cur.Type {
	case lexer.TokenMinus:
		p.advance()

		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}

		return &ast.UnaryExpr{Op: ast.OpNeg, X: x}, nil
	case lexer.TokenBang:
		p.advance()

		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}

		return &ast.UnaryExpr{Op: ast.OpNot, X: x}, nil
	default:
		return p.parsePostfix()
	}
}

func (p *parser) parsePostfix() (ast.Expr, error) {
	x, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	for {
		switch p.cur.Type {
		case lexer.TokenDot:
			p.advance()

			field, err := p.expect(lexer.TokenIdentifier)
			if err != nil {
				return nil, err
			}

			x = &ast.FieldExpr{X: x, Field: field.Literal}
		case lexer.TokenLBracket:
			p.advance()

			idx, err := p.parseExpr()
			if err != nil {
				return nil, err
			}

			if _, err := p.expect(lexer.TokenRBracket); err != nil {
				return nil, err
			}

			x = &ast.IndexExpr{Array: x, Index: idx}
		default:
			return x, nil
		}
	}
}

// parsePrimary parses atoms of the expression grammar, including call
// expressions (identifier followed directly by '('), possibly qualified by
// `::`.
func (p *parser) parsePrimary() (ast.Expr, error) {
	switch p.cur.Type {
	case lexer.TokenInteger:
		lit := p.cur.Literal
		p.advance()

		n, _ := strconv.ParseInt(lit, 10, 64)

		return &ast.IntLit{Value: n}, nil
	case lexer.TokenFloat:
		lit := p.cur.Literal
		p.advance()

		f, _ := strconv.ParseFloat(lit, 64)

		return &ast.FloatLit{Value: f}, nil
	case lexer.TokenTrue:
		p.advance()
		return &ast.BoolLit{Value: true}, nil
	case lexer.TokenFalse:
		p.advance()
		return &ast.BoolLit{Value: false}, nil
	case lexer.TokenSelf:
		p.advance()
		return &ast.SelfExpr{}, nil
	case lexer.TokenResult:
		p.advance()
		return &ast.ResultExpr{}, nil
	case lexer.TokenLParen:
		p.advance()

		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}

		if _, err := p.expect(lexer.TokenRParen); err != nil {
			return nil, err
		}

		return x, nil
	case lexer.TokenLBrace:
		return p.parseBlock()
	case lexer.TokenIf:
		return p.parseIf()
	case lexer.TokenMatch:
		return p.parseMatch()
	case lexer.TokenForall, lexer.TokenExists:
		return p.parseQuantifier()
	case lexer.TokenAcquire:
		return p.parseAcquire()
	case lexer.TokenAwait:
		p.advance()

		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}

		return &ast.AwaitExpr{X: x}, nil
	case lexer.TokenIdentifier:
		name := p.cur.Literal
		p.advance()

		for p.at(lexer.TokenColonColon) {
			p.advance()

			part, err := p.expect(lexer.TokenIdentifier)
			if err != nil {
				return nil, err
			}

			name = name + "::" + part.Literal
		}

		if p.at(lexer.TokenLParen) {
			return p.parseCallArgs(name)
		}

		if p.at(lexer.TokenLBrace) {
			// Only `Name {}` or `Name { field: ...` is a struct literal; any
			// other `{` (a match, if, or while body) is left for the caller.
			ahead := *p.lex
			if p.peek.Type == lexer.TokenRBrace || (p.peek.Type == lexer.TokenIdentifier && ahead.NextToken().Type == lexer.TokenColon) {
				return p.parseStructInit(name)
			}
		}

		return &ast.VarExpr{Name: name}, nil
	default:
		return nil, errors.ParseError(
			fmt.Sprintf("unexpected token %s %q in expression", p.cur.Type, p.cur.Literal), p.cur.Span)
	}
}

func (p *parser) parseCallArgs(name string) (ast.Expr, error) {
	p.advance() // (

	var args []ast.Expr

	for !p.at(lexer.TokenRParen) {
		a, err := p.parseExpr()
		if err != nil {
			return nil, err
		}

		args = append(args, a)

		if p.at(lexer.TokenComma) {
			p.advance()
		}
	}

	p.advance() // )

	return &ast.CallExpr{FQN: name, Args: args}, nil
}

func (p *parser) parseStructInit(typeName string) (ast.Expr, error) {
	p.advance() // {

	fields := make(map[string]ast.Expr)

	for !p.at(lexer.TokenRBrace) {
		fname, err := p.expect(lexer.TokenIdentifier)
		if err != nil {
			return nil, err
		}

		if _, err := p.expect(lexer.TokenColon); err != nil {
			return nil, err
		}

		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}

		fields[fname.Literal] = val

		if p.at(lexer.TokenComma) {
			p.advance()
		}
	}

	p.advance() // }

	return &ast.StructInitExpr{Type: typeName, Fields: fields}, nil
}

func (p *parser) parseIf() (ast.Expr, error) {
	p.advance() // if

	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}

	then, err := p.parseBlock()
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(lexer.TokenElse); err != nil {
		return nil, err
	}

	var elseExpr ast.Expr

	if p.at(lexer.TokenIf) {
		elseExpr, err = p.parseIf()
	} else {
		elseExpr, err = p.parseBlock()
	}

	if err != nil {
		return nil, err
	}

	return &ast.IfExpr{Cond: cond, Then: then, Else: elseExpr}, nil
}

func (p *parser) parseQuantifier() (ast.Expr, error) {
	kind := ast.Forall
	if p.at(lexer.TokenExists) {
		kind = ast.Exists
	}

	p.advance()

	if _, err := p.expect(lexer.TokenLParen); err != nil {
		return nil, err
	}

	v, err := p.expect(lexer.TokenIdentifier)
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(lexer.TokenComma); err != nil {
		return nil, err
	}

	lo, err := p.parseExpr()
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(lexer.TokenComma); err != nil {
		return nil, err
	}

	hi, err := p.parseExpr()
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(lexer.TokenComma); err != nil {
		return nil, err
	}

	pred, err := p.parseExpr()
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(lexer.TokenRParen); err != nil {
		return nil, err
	}

	return &ast.QuantifierExpr{Kind: kind, Var: v.Literal, Lo: lo, Hi: hi, Pred: pred}, nil
}

func (p *parser) parseAcquire() (ast.Expr, error) {
	p.advance() // acquire

	res, err := p.expect(lexer.TokenIdentifier)
	if err != nil {
		return nil, err
	}

	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}

	return &ast.AcquireExpr{Resource: res.Literal, Body: body}, nil
}

func (p *parser) parseMatch() (ast.Expr, error) {
	p.advance() // match

	scrut, err := p.parseExpr()
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(lexer.TokenLBrace); err != nil {
		return nil, err
	}

	m := &ast.MatchExpr{Scrutinee: scrut}

	for !p.at(lexer.TokenRBrace) {
		pat, err := p.parsePattern()
		if err != nil {
			return nil, err
		}

		var guard ast.Expr

		if p.at(lexer.TokenIf) {
			p.advance()

			guard, err = p.parseExpr()
			if err != nil {
				return nil, err
			}
		}

		if _, err := p.expect(lexer.TokenArrow); err != nil {
			return nil, err
		}

		body, err := p.parseExpr()
		if err != nil {
			return nil, err
		}

		m.Arms = append(m.Arms, ast.MatchArm{Pattern: pat, Guard: guard, Body: body})

		if p.at(lexer.TokenComma) {
			p.advance()
		}
	}

	p.advance() // }

	return m, nil
}

func (p *parser) parsePattern() (ast.Pattern, error) {
	switch p.cur.Type {
	case lexer.TokenUnderscore:
		p.advance()
		return &ast.WildcardPattern{}, nil
	case lexer.TokenInteger:
		lit := p.cur.Literal
		p.advance()

		n, _ := strconv.ParseInt(lit, 10, 64)

		return &ast.LitPattern{Value: n}, nil
	case lexer.TokenTrue:
		p.advance()
		return &ast.LitPattern{Value: true}, nil
	case lexer.TokenFalse:
		p.advance()
		return &ast.LitPattern{Value: false}, nil
	case lexer.TokenIdentifier:
		name := p.cur.Literal
		p.advance()

		if p.at(lexer.TokenColonColon) {
			p.advance()

			variant, err := p.expect(lexer.TokenIdentifier)
			if err != nil {
				return nil, err
			}

			vp := &ast.VariantPattern{Enum: name, Variant: variant.Literal}

			if p.at(lexer.TokenLParen) {
				p.advance()

				for !p.at(lexer.TokenRParen) {
					sub, err := p.parsePattern()
					if err != nil {
						return nil, err
					}

					vp.Fields = append(vp.Fields, sub)

					if p.at(lexer.TokenComma) {
						p.advance()
					}
				}

				p.advance() // )
			}

			return vp, nil
		}

		return &ast.VarPattern{Name: name}, nil
	default:
		return nil, errors.ParseError(fmt.Sprintf("unexpected pattern token %s", p.cur.Type), p.cur.Span)
	}
}
