package parser

import (
	"fmt"

	"github.com/slaide/pacc/internal/cc"
	"github.com/slaide/pacc/internal/cc/lexer"
)

// parseValue parses an expression, resolving symbol and field references
// against this scope. It returns nil (with the cursor untouched at the
// failing position) when no value starts at the cursor. targetType is the
// declared type a braced compound literal should resolve .field initializers
// against; it is nil outside initializer positions.
//
// Unary and binary readings of the ambiguous operators (* & + -) are
// distinguished by whether a left operand has been parsed yet.
func (b *Block) parseValue(t *cursor, targetType *CType) (AstValue, error) {
	var ret AstValue

loop:
	for !t.empty() {
		tok := t.peek()

		switch tok.Type {
		case lexer.TokenType_LiteralChar:
			if ret != nil {
				break loop
			}
			charType := b.LookupType("char", TagNamespace_None)
			ret = &ValueLiteral{Value: tok.S, Type: charType}
			t.advance()

		case lexer.TokenType_LiteralNumber:
			if ret != nil {
				break loop
			}
			// suffix interpretation is deferred; every integer literal is int
			intType := b.LookupType("int", TagNamespace_None)
			ret = &ValueLiteral{Value: tok.S, Type: intType}
			t.advance()

		case lexer.TokenType_LiteralString:
			if ret != nil {
				break loop
			}
			charType := b.LookupType("char", TagNamespace_None)
			ret = &ValueLiteral{Value: tok.S, Type: PointerTo(charType)}
			t.advance()

		case lexer.TokenType_Symbol:
			if ret != nil {
				break loop
			}

			switch tok.S {
			case "false":
				ret = &ValueLiteral{Value: "0", Type: Primitive("bool")}
				t.advance()
				continue
			case "true":
				ret = &ValueLiteral{Value: "1", Type: Primitive("bool")}
				t.advance()
				continue
			}

			sym := b.LookupSymbol(tok.S)
			if sym == nil {
				break loop
			}
			ret = &ValueSymbolRef{Sym: sym}
			t.advance()

		case lexer.TokenType_OperatorPunctuation:
			var err error
			var done bool
			ret, done, err = b.parseValueOperator(t, ret, targetType)
			if err != nil {
				return nil, err
			}
			if done {
				break loop
			}

		default:
			return nil, fmt.Errorf("%w: unimplemented token %v in expression", cc.ErrInternal, tok)
		}
	}

	return ret, nil
}

// parseValueOperator handles one operator token inside parseValue. It
// returns the (possibly extended) value, and done=true when the operator
// cannot extend the current value and expression parsing should stop.
func (b *Block) parseValueOperator(t *cursor, ret AstValue, targetType *CType) (AstValue, bool, error) {
	binary := func(op OpKind) (AstValue, bool, error) {
		if ret == nil {
			return nil, true, nil
		}
		t.advance()
		rhv, err := b.parseValue(t, nil)
		if err != nil {
			return nil, false, err
		}
		if rhv == nil {
			return ret, true, nil
		}
		return &Operation{Op: op, A: ret, B: rhv}, false, nil
	}

	// assignment operators require a right-hand value
	assign := func(op OpKind) (AstValue, bool, error) {
		if ret == nil {
			return nil, true, nil
		}
		t.advance()
		rhv, err := b.parseValue(t, nil)
		if err != nil {
			return nil, false, err
		}
		if rhv == nil {
			return nil, false, fmt.Errorf("%w: invalid value on right side of assignment at %v", cc.ErrParse, t.peek())
		}
		return &Operation{Op: op, A: ret, B: rhv}, false, nil
	}

	prefixUnary := func(op OpKind) (AstValue, bool, error) {
		if ret != nil {
			return ret, true, nil
		}
		t.advance()
		rhv, err := b.parseValue(t, nil)
		if err != nil {
			return nil, false, err
		}
		if rhv == nil {
			return nil, true, nil
		}
		return &Operation{Op: op, A: rhv}, false, nil
	}

	tok := t.peek()
	switch tok.S {
	case "+":
		if ret == nil {
			return prefixUnary(Op_UnaryPlus)
		}
		return binary(Op_Add)

	case "-":
		if ret == nil {
			return prefixUnary(Op_UnaryMinus)
		}
		return binary(Op_Subtract)

	case "*":
		if ret == nil {
			return prefixUnary(Op_Dereference)
		}
		return binary(Op_Multiply)

	case "&":
		if ret == nil {
			return prefixUnary(Op_AddrOf)
		}
		return binary(Op_BitwiseAnd)

	case "/":
		return binary(Op_Divide)
	case "%":
		return binary(Op_Modulo)
	case "!":
		return prefixUnary(Op_LogicalNot)
	case "~":
		return prefixUnary(Op_BitwiseNot)
	case "<":
		return binary(Op_LessThan)
	case "<=":
		return binary(Op_LessThanOrEqual)
	case ">":
		return binary(Op_GreaterThan)
	case ">=":
		return binary(Op_GreaterThanOrEqual)
	case "==":
		return binary(Op_Equal)
	case "!=":
		return binary(Op_Unequal)
	case "&&":
		return binary(Op_LogicalAnd)
	case "||":
		return binary(Op_LogicalOr)
	case "|":
		return binary(Op_BitwiseOr)
	case "^":
		return binary(Op_BitwiseXor)
	case "<<":
		return binary(Op_ShiftLeft)
	case ">>":
		return binary(Op_ShiftRight)

	case "=":
		return assign(Op_Assign)
	case "+=":
		return assign(Op_AddAssign)
	case "-=":
		return assign(Op_SubAssign)
	case "/=":
		return assign(Op_DivAssign)
	case "*=":
		return assign(Op_MultAssign)
	case "%=":
		return assign(Op_ModAssign)
	case "^=":
		return assign(Op_XorAssign)
	case "|=":
		return assign(Op_BitwiseOrAssign)
	case "&=":
		return assign(Op_BitwiseAndAssign)
	case "<<=":
		return assign(Op_ShiftLeftAssign)
	case ">>=":
		return assign(Op_ShiftRightAssign)

	case "++":
		t.advance()
		if ret != nil {
			return &Operation{Op: Op_PostfixIncrement, A: ret}, false, nil
		}
		rhv, err := b.parseValue(t, nil)
		if err != nil {
			return nil, false, err
		}
		if rhv == nil {
			return nil, true, nil
		}
		return &Operation{Op: Op_PrefixIncrement, A: rhv}, false, nil

	case "--":
		t.advance()
		if ret != nil {
			return &Operation{Op: Op_PostfixDecrement, A: ret}, false, nil
		}
		rhv, err := b.parseValue(t, nil)
		if err != nil {
			return nil, false, err
		}
		if rhv == nil {
			return nil, true, nil
		}
		return &Operation{Op: Op_PrefixDecrement, A: rhv}, false, nil

	case ".":
		if ret == nil {
			return nil, true, nil
		}
		t.advance()
		return b.parseFieldAccess(t, ret, Op_Dot)

	case "->":
		if ret == nil {
			return nil, true, nil
		}
		t.advance()
		return b.parseFieldAccess(t, ret, Op_Arrow)

	case "[":
		if ret == nil {
			return nil, true, nil
		}
		t.advance()

		indexValue, err := b.parseValue(t, nil)
		if err != nil {
			return nil, false, err
		}
		if indexValue == nil {
			return nil, false, fmt.Errorf("%w: invalid subscript index at %v", cc.ErrParse, t.peek())
		}
		if t.peek().S != "]" {
			return nil, false, fmt.Errorf("%w: expected ], got %v", cc.ErrParse, t.peek())
		}
		t.advance()
		return &Operation{Op: Op_Subscript, A: ret, B: indexValue}, false, nil

	case "?":
		if ret == nil {
			return nil, true, nil
		}
		t.advance()

		thenValue, err := b.parseValue(t, nil)
		if err != nil {
			return nil, false, err
		}
		if thenValue == nil {
			return ret, true, nil
		}
		if t.peek().S != ":" {
			return nil, false, fmt.Errorf("%w: expected : in conditional expression, got %v", cc.ErrParse, t.peek())
		}
		t.advance()

		elseValue, err := b.parseValue(t, nil)
		if err != nil {
			return nil, false, err
		}
		if elseValue == nil {
			return ret, true, nil
		}
		return &Operation{Op: Op_Ternary, A: ret, B: thenValue, C: elseValue}, false, nil

	case "{":
		if targetType == nil {
			return ret, true, nil
		}
		t.advance()

		literal, err := b.parseCompoundLiteral(t, targetType)
		if err != nil {
			return nil, false, err
		}
		return literal, false, nil

	case "(":
		t.advance()
		return b.parseParen(t, ret)

	case ";":
		return ret, true, nil

	default:
		return ret, true, nil
	}
}

// parseFieldAccess resolves the field name after a . or -> operator against
// the aggregate type of value.
func (b *Block) parseFieldAccess(t *cursor, value AstValue, op OpKind) (AstValue, bool, error) {
	nameTok := t.peek()
	if nameTok.Type != lexer.TokenType_Symbol {
		return nil, false, fmt.Errorf("%w: expected field name, got %v", cc.ErrParse, nameTok)
	}

	valueType, err := value.ResultType()
	if err != nil {
		return nil, false, err
	}
	resolved := valueType.Flatten()

	if op == Op_Dot {
		if resolved.Kind != CTypeKind_Struct && resolved.Kind != CTypeKind_Union {
			return nil, false, fmt.Errorf("%w: cannot use . on non-struct, non-union type %s at %s", cc.ErrType, resolved, nameTok.SrcLoc)
		}
	}

	field, err := resolved.FieldByName(nameTok.S)
	if err != nil {
		return nil, false, err
	}
	if field == nil {
		return nil, false, fmt.Errorf("%w: no field %q in type %s%s at %s",
			cc.ErrType, nameTok.S, resolved, didYouMean(nameTok.S, resolved.FieldNames()), nameTok.SrcLoc)
	}
	t.advance()

	return &Operation{Op: op, A: value, B: &ValueField{Field: field}}, false, nil
}

// parseCompoundLiteral parses the body of a braced initializer after the
// opening brace, resolving .field targets against targetType.
func (b *Block) parseCompoundLiteral(t *cursor, targetType *CType) (AstValue, error) {
	var inits []FieldInit

	for !t.empty() && t.peek().S != "}" {
		var fieldTarget *CType

		if t.peek().S == "." {
			t.advance()
			nameTok := t.peek()

			field, err := targetType.FieldByName(nameTok.S)
			if err != nil {
				return nil, err
			}
			if field == nil {
				return nil, fmt.Errorf("%w: no field %q in type %s%s at %s",
					cc.ErrType, nameTok.S, targetType.Flatten(), didYouMean(nameTok.S, targetType.FieldNames()), nameTok.SrcLoc)
			}
			fieldTarget = field
			t.advance()

			if t.peek().S != "=" {
				return nil, fmt.Errorf("%w: expected = after field designator, got %v", cc.ErrParse, t.peek())
			}
			t.advance()
		}

		value, err := b.parseValue(t, nil)
		if err != nil {
			return nil, err
		}
		if value == nil {
			return nil, fmt.Errorf("%w: expected value in initializer, got %v", cc.ErrParse, t.peek())
		}

		inits = append(inits, FieldInit{Target: fieldTarget, Value: value})

		if t.peek().S == "," {
			t.advance()
			continue
		}
		break
	}

	if t.peek().S != "}" {
		return nil, fmt.Errorf("%w: expected } in initializer, got %v", cc.ErrParse, t.peek())
	}
	t.advance()

	return &CompoundLiteral{Inits: inits}, nil
}

// parseParen handles the three readings of ( in value position: a call when
// a value was already parsed, otherwise a cast when a type-only declarator
// parses, otherwise grouping.
func (b *Block) parseParen(t *cursor, ret AstValue) (AstValue, bool, error) {
	if ret == nil {
		speculative := *t
		symDef, err := b.parseSymbolDefinition(&speculative, false, false)
		if err != nil {
			return nil, false, err
		}
		if symDef != nil {
			// cast
			*t = speculative

			if len(symDef.Symbols) != 1 {
				return nil, false, fmt.Errorf("%w: invalid cast target at %v", cc.ErrParse, t.peek())
			}
			sym := symDef.Symbols[0].Sym
			if sym.Name != nil {
				return nil, false, fmt.Errorf("%w: cast to a declaration is invalid at %s", cc.ErrParse, sym.Name.SrcLoc)
			}

			if t.peek().S != ")" {
				return nil, false, fmt.Errorf("%w: expected ) after cast type, got %v", cc.ErrParse, t.peek())
			}
			t.advance()

			castValue, err := b.parseValue(t, sym.Type)
			if err != nil {
				return nil, false, err
			}
			if castValue == nil {
				return nil, false, fmt.Errorf("%w: expected value after cast, got %v", cc.ErrParse, t.peek())
			}

			return &Cast{To: sym.Type, Value: castValue}, false, nil
		}

		// grouping
		nestedValue, err := b.parseValue(t, nil)
		if err != nil {
			return nil, false, err
		}
		if nestedValue == nil {
			return nil, false, fmt.Errorf("%w: invalid parenthesised value at %v", cc.ErrParse, t.peek())
		}
		if t.peek().S != ")" {
			return nil, false, fmt.Errorf("%w: expected ), got %v", cc.ErrParse, t.peek())
		}
		t.advance()
		return nestedValue, false, nil
	}

	// call
	calleeType, err := ret.ResultType()
	if err != nil {
		return nil, false, err
	}
	funcType := calleeType.Flatten()
	if !funcType.IsFunctionKind() {
		return nil, false, fmt.Errorf("%w: calling non-function type %s at %v", cc.ErrType, funcType, t.peek())
	}

	var args []AstValue
	argIndex := -1
	for !t.empty() && t.peek().S != ")" {
		argIndex++

		if argIndex >= len(funcType.Params) && !funcType.HasVararg {
			return nil, false, fmt.Errorf("%w: too many arguments to function of type %s at %v", cc.ErrType, funcType, t.peek())
		}

		var typeAsArg AstValue
		if argIndex < len(funcType.Params) {
			param := funcType.Params[argIndex]

			// parameters of the marker types receive a type instead of a
			// value; __type is strict, __ty_any falls back to a value
			if Primitive(PrimitiveType).CanBeAssignedTo(param.Type) {
				speculative := *t
				symDef, err := b.parseSymbolDefinition(&speculative, false, false)
				if err != nil {
					return nil, false, err
				}
				if symDef == nil {
					if param.Type.CanBeAssignedTo(Primitive(PrimitiveType)) {
						return nil, false, fmt.Errorf("%w: expected a type argument at %v", cc.ErrParse, t.peek())
					}
				} else {
					typeAsArg = &ValueType{Type: symDef.Symbols[0].Sym.Type}
					*t = speculative
				}
			}
		}

		var argValue AstValue
		if typeAsArg != nil {
			argValue = typeAsArg
		} else {
			argValue, err = b.parseValue(t, nil)
			if err != nil {
				return nil, false, err
			}
			if argValue == nil {
				break
			}
		}

		args = append(args, argValue)

		if t.peek().S == "," {
			t.advance()
			continue
		}
		break
	}

	if t.peek().S != ")" {
		return nil, false, fmt.Errorf("%w: expected ) after call arguments, got %v", cc.ErrParse, t.peek())
	}
	t.advance()

	if funcType.Kind == CTypeKind_ConstFunc {
		if funcType.EvalFn == nil {
			return nil, false, fmt.Errorf("%w: compile-time function without evaluator", cc.ErrInternal)
		}
		result, err := funcType.EvalFn(b, args)
		if err != nil {
			return nil, false, err
		}
		return result, false, nil
	}

	return &FunctionCall{Callee: ret, Args: args}, false, nil
}
