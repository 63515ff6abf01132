// Package parser builds a typed AST from the preprocessed token stream. It
// is a hand-written recursive-descent parser that resolves types, fields,
// and symbol references against nested lexical scopes while parsing;
// speculation happens on cheap cursor copies, never on shared state.
package parser

import (
	"fmt"

	"github.com/slaide/pacc/internal/cc"
	"github.com/slaide/pacc/internal/cc/lexer"
)

// Parse consumes the whole token stream into a translation-unit block
// prepopulated with the builtin types and symbols. Leftover tokens after the
// last statement are an error.
func Parse(tokens []lexer.Token) (*Block, error) {
	root := NewTranslationUnitBlock()

	t := newCursor(tokens)
	if err := root.Parse(&t); err != nil {
		return nil, err
	}

	if !t.empty() {
		return nil, root.unexpectedTokenError("leftover tokens at end of file", t.peek())
	}

	return root, nil
}

// unexpectedTokenError builds a parse error for a token no rule could
// consume. When the token is identifier-shaped, a near-miss from the visible
// symbols and types is suggested.
func (b *Block) unexpectedTokenError(context string, tok lexer.Token) error {
	suffix := ""
	if tok.Type == lexer.TokenType_Symbol {
		suffix = didYouMean(tok.S, append(b.symbolNames(), b.typeNames()...))
	}
	return fmt.Errorf("%w: %s: %v%s", cc.ErrParse, context, tok, suffix)
}

// parseStatement parses one terminated statement. It returns nil when the
// cursor does not start a statement, e.g. at the closing brace of the
// enclosing block.
func (b *Block) parseStatement(t *cursor) (Statement, error) {
	switch t.peek().S {
	case ";":
		t.advance()
		return &EmptyStatement{}, nil

	case "{":
		t.advance()

		inner := NewBlock(b)
		if err := inner.Parse(t); err != nil {
			return nil, err
		}

		if t.peek().S != "}" {
			return nil, inner.unexpectedTokenError("expected } to close block", t.peek())
		}
		t.advance()
		return inner, nil

	case "typedef":
		t.advance()

		symDef, err := b.parseSymbolDefinition(t, true, true)
		if err != nil {
			return nil, err
		}

		if t.peek().S != ";" {
			return nil, fmt.Errorf("%w: expected ; after typedef, got %v", cc.ErrParse, t.peek())
		}
		t.advance()

		if symDef == nil {
			// "typedef;" with no type at all is a no-op
			return &Typedef{}, nil
		}

		typedef := &Typedef{}
		for _, declared := range symDef.Symbols {
			if declared.Init != nil {
				return nil, fmt.Errorf("%w: assigning a value in a typedef is not allowed", cc.ErrParse)
			}
			typedef.Symbols = append(typedef.Symbols, declared.Sym)
		}
		return typedef, nil

	case "switch":
		t.advance()

		if t.peek().S != "(" {
			return nil, fmt.Errorf("%w: expected ( after switch, got %v", cc.ErrParse, t.peek())
		}
		t.advance()

		cond, err := b.parseValue(t, nil)
		if err != nil {
			return nil, err
		}
		if cond == nil {
			return nil, fmt.Errorf("%w: invalid switch value at %v", cc.ErrParse, t.peek())
		}

		if t.peek().S != ")" {
			return nil, fmt.Errorf("%w: expected ) after switch value, got %v", cc.ErrParse, t.peek())
		}
		t.advance()

		body, err := b.parseStatement(t)
		if err != nil {
			return nil, err
		}
		if body == nil {
			return nil, fmt.Errorf("%w: invalid switch body at %v", cc.ErrParse, t.peek())
		}
		return &Switch{Value: cond, Body: body}, nil

	case "case":
		t.advance()

		value, err := b.parseValue(t, nil)
		if err != nil {
			return nil, err
		}
		if value == nil {
			return nil, fmt.Errorf("%w: invalid case value at %v", cc.ErrParse, t.peek())
		}

		if t.peek().S != ":" {
			return nil, fmt.Errorf("%w: expected : after case value, got %v", cc.ErrParse, t.peek())
		}
		t.advance()
		return &Case{Value: value}, nil

	case "default":
		t.advance()
		if t.peek().S != ":" {
			return nil, fmt.Errorf("%w: expected : after default, got %v", cc.ErrParse, t.peek())
		}
		t.advance()
		return &Default{}, nil

	case "break":
		t.advance()
		if t.peek().S != ";" {
			return nil, fmt.Errorf("%w: expected ; after break, got %v", cc.ErrParse, t.peek())
		}
		t.advance()
		return &Break{}, nil

	case "continue":
		t.advance()
		if t.peek().S != ";" {
			return nil, fmt.Errorf("%w: expected ; after continue, got %v", cc.ErrParse, t.peek())
		}
		t.advance()
		return &Continue{}, nil

	case "if":
		t.advance()

		if t.peek().S != "(" {
			return nil, fmt.Errorf("%w: expected ( after if, got %v", cc.ErrParse, t.peek())
		}
		t.advance()

		cond, err := b.parseValue(t, nil)
		if err != nil {
			return nil, err
		}
		if cond == nil {
			return nil, fmt.Errorf("%w: invalid if condition at %v", cc.ErrParse, t.peek())
		}

		if t.peek().S != ")" {
			return nil, fmt.Errorf("%w: expected ) after if condition, got %v", cc.ErrParse, t.peek())
		}
		t.advance()

		thenStmt, err := b.parseStatement(t)
		if err != nil {
			return nil, err
		}
		if thenStmt == nil {
			return nil, fmt.Errorf("%w: invalid if body at %v", cc.ErrParse, t.peek())
		}

		var elseStmt Statement
		if t.peek().S == "else" {
			t.advance()
			elseStmt, err = b.parseStatement(t)
			if err != nil {
				return nil, err
			}
			if elseStmt == nil {
				return nil, fmt.Errorf("%w: invalid else statement at %v", cc.ErrParse, t.peek())
			}
		}

		return &If{Cond: cond, Then: thenStmt, Else: elseStmt}, nil

	case "do":
		t.advance()

		body, err := b.parseStatement(t)
		if err != nil {
			return nil, err
		}
		if body == nil {
			return nil, fmt.Errorf("%w: invalid do-while body at %v", cc.ErrParse, t.peek())
		}

		if t.peek().S != "while" {
			return nil, fmt.Errorf("%w: expected while after do body, got %v", cc.ErrParse, t.peek())
		}
		t.advance()

		if t.peek().S != "(" {
			return nil, fmt.Errorf("%w: expected ( after while, got %v", cc.ErrParse, t.peek())
		}
		t.advance()

		cond, err := b.parseValue(t, nil)
		if err != nil {
			return nil, err
		}
		if cond == nil {
			return nil, fmt.Errorf("%w: invalid do-while condition at %v", cc.ErrParse, t.peek())
		}

		if t.peek().S != ")" {
			return nil, fmt.Errorf("%w: expected ) after do-while condition, got %v", cc.ErrParse, t.peek())
		}
		t.advance()

		return &WhileLoop{Cond: cond, Body: body, DoWhile: true}, nil

	case "while":
		t.advance()

		if t.peek().S != "(" {
			return nil, fmt.Errorf("%w: expected ( after while, got %v", cc.ErrParse, t.peek())
		}
		t.advance()

		cond, err := b.parseValue(t, nil)
		if err != nil {
			return nil, err
		}
		if cond == nil {
			return nil, fmt.Errorf("%w: invalid while condition at %v", cc.ErrParse, t.peek())
		}

		if t.peek().S != ")" {
			return nil, fmt.Errorf("%w: expected ) after while condition, got %v", cc.ErrParse, t.peek())
		}
		t.advance()

		body, err := b.parseStatement(t)
		if err != nil {
			return nil, err
		}
		if body == nil {
			return nil, fmt.Errorf("%w: invalid while body at %v", cc.ErrParse, t.peek())
		}

		return &WhileLoop{Cond: cond, Body: body}, nil

	case "for":
		return b.parseForLoop(t)

	case "return":
		t.advance()

		value, err := b.parseValue(t, nil)
		if err != nil {
			return nil, err
		}

		if t.peek().S != ";" {
			return nil, fmt.Errorf("%w: expected ; after return, got %v", cc.ErrParse, t.peek())
		}
		t.advance()
		return &Return{Value: value}, nil

	case "goto":
		t.advance()

		labelTok := t.peek()
		if labelTok.Type != lexer.TokenType_Symbol {
			return nil, fmt.Errorf("%w: expected label after goto, got %v", cc.ErrParse, labelTok)
		}
		t.advance()

		if t.peek().S != ";" {
			return nil, fmt.Errorf("%w: expected ; after goto, got %v", cc.ErrParse, t.peek())
		}
		t.advance()
		return &Goto{Label: labelTok}, nil
	}

	// declaration, label, or expression statement
	symDef, err := b.parseSymbolDefinition(t, true, true)
	if err != nil {
		return nil, err
	}
	if symDef != nil {
		for _, declared := range symDef.Symbols {
			b.AddSymbol(declared.Sym)

			symType := declared.Sym.Type.Flatten()
			if symType.Kind == CTypeKind_Function && t.peek().S == "{" {
				funcDef, err := b.parseFunctionDefinition(symType, t)
				if err != nil {
					return nil, err
				}
				return funcDef, nil
			}
		}

		if t.peek().S != ";" {
			return nil, fmt.Errorf("%w: expected ; after declaration, got %v", cc.ErrParse, t.peek())
		}
		t.advance()
		return symDef, nil
	}

	if t.peek().Type == lexer.TokenType_Symbol && t.at(1).S == ":" && b.LookupSymbol(t.peek().S) == nil {
		labelTok := t.take()
		t.advance() // the colon
		return &Label{Name: labelTok}, nil
	}

	value, err := b.parseValue(t, nil)
	if err != nil {
		return nil, err
	}
	if value != nil {
		if t.peek().S != ";" {
			return nil, fmt.Errorf("%w: expected ; after expression, got %v", cc.ErrParse, t.peek())
		}
		t.advance()
		return &ExpressionStatement{Value: value}, nil
	}

	return nil, nil
}

// parseForLoop parses a for statement. The loop owns a scope so symbols
// declared in the init statement stay local to the loop.
func (b *Block) parseForLoop(t *cursor) (Statement, error) {
	t.advance() // for

	if t.peek().S != "(" {
		return nil, fmt.Errorf("%w: expected ( after for, got %v", cc.ErrParse, t.peek())
	}
	t.advance()

	forLoop := &ForLoop{Block: NewBlock(b)}

	// the init statement parses in the loop's own scope, so its symbols are
	// visible to the condition, step, and body but not to the enclosing block
	initStmt, err := forLoop.Block.parseStatement(t)
	if err != nil {
		return nil, err
	}
	if initStmt == nil {
		return nil, fmt.Errorf("%w: invalid for-loop init statement at %v", cc.ErrParse, t.peek())
	}
	forLoop.Init = initStmt
	forLoop.AddStatement(initStmt, true)

	cond, err := forLoop.Block.parseValue(t, nil)
	if err != nil {
		return nil, err
	}
	forLoop.Cond = cond

	if t.peek().S != ";" {
		return nil, fmt.Errorf("%w: expected ; after for condition, got %v", cc.ErrParse, t.peek())
	}
	t.advance()

	step, err := forLoop.Block.parseValue(t, nil)
	if err != nil {
		return nil, err
	}
	forLoop.Step = step

	if t.peek().S != ")" {
		return nil, fmt.Errorf("%w: expected ) after for header, got %v", cc.ErrParse, t.peek())
	}
	t.advance()

	body, err := forLoop.Block.parseStatement(t)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, fmt.Errorf("%w: invalid for body at %v", cc.ErrParse, t.peek())
	}
	forLoop.Body = body
	forLoop.AddStatement(body, true)

	return forLoop, nil
}

// parseFunctionDefinition parses a function body block, its scope seeded
// with the parameter symbols.
func (b *Block) parseFunctionDefinition(funcType *CType, t *cursor) (*Function, error) {
	if t.peek().S != "{" {
		return nil, fmt.Errorf("%w: expected { to open function body, got %v", cc.ErrParse, t.peek())
	}
	t.advance()

	fn := &Function{Block: NewBlock(b), FuncType: funcType}
	for _, param := range funcType.Params {
		fn.Block.AddSymbol(param)
	}

	if err := fn.Block.Parse(t); err != nil {
		return nil, err
	}

	if t.peek().S != "}" {
		return nil, fn.Block.unexpectedTokenError("expected } to close function body", t.peek())
	}
	t.advance()

	return fn, nil
}
