package parser

import (
	"fmt"

	"github.com/slaide/pacc/internal/cc"
	"github.com/slaide/pacc/internal/cc/lexer"
)

// parseSymbolDefinition attempts to parse one or more declarators sharing a
// base type, e.g. "int a, *b, c[4]". It returns nil (with the cursor
// restored) when no declaration starts at the cursor, which is how callers
// speculate: try a declaration, fall back to a value.
//
// The builder type accumulates specifiers, then a kernel (primitive name,
// struct/union/enum, or typedef name). Pointer stars, array suffixes, and
// parameter lists compose onto the declarator's symbol in postfix order.
// Parenthesised declarators bind those modifiers to the symbol instead of
// the base type; the builder is shared by pointer, so wrapping it in place
// updates every type that was derived from it.
func (b *Block) parseSymbolDefinition(t *cursor, allowMultiple, allowInit bool) (*SymbolDef, error) {
	tIn := *t

	var baseCType *CType
	var declared []DeclaredSymbol

declarators:
	for {
		var symbol *Symbol
		var symInit AstValue
		ctype := &CType{Kind: CTypeKind_Empty}

		if baseCType != nil {
			ctype.Base = baseCType
		}

		// open parentheses of the current declarator
		nestingDepth := 0

	tokens:
		for !t.empty() {
			tok := t.peek()

			switch tok.S {
			case "extern":
				ctype.IsExtern = true
				t.advance()
				continue

			case "_Noreturn":
				ctype.IsNoreturn = true
				t.advance()
				continue

			case "thread_local":
				ctype.IsThreadLocal = true
				t.advance()
				continue

			case "const":
				ctype.IsConst = true
				t.advance()
				continue

			case "static":
				ctype.IsStatic = true
				t.advance()
				continue

			case "signed":
				ctype.Signed = Signedness_Signed
				t.advance()
				continue

			case "unsigned":
				ctype.Signed = Signedness_Unsigned
				t.advance()
				continue

			case "long":
				if ctype.LengthMod == 0 {
					ctype.LengthMod = 1
				} else {
					ctype.LengthMod++
				}
				t.advance()
				continue

			case "short":
				if ctype.LengthMod == 0 {
					ctype.LengthMod = -1
				} else {
					ctype.LengthMod--
				}
				t.advance()
				continue

			case "*":
				if nestingDepth > 0 {
					if symbol == nil {
						symbol = &Symbol{Type: ctype}
					}
					symbol.WrapCType(PointerTo)
					t.advance()
					continue
				}

				// cannot point to nothing
				if ctype.IsEmptyDefault() {
					break tokens
				}

				if baseCType == nil {
					baseCType = ctype.Copy()
				}
				if symbol == nil {
					symbol = &Symbol{Type: ctype}
				}
				symbol.WrapCType(PointerTo)
				t.advance()
				continue

			case "[":
				t.advance()

				lengthIsStatic := t.peek().S == "static"
				if lengthIsStatic {
					t.advance()
				}

				arrayLen, err := b.parseValue(t, nil)
				if err != nil {
					return nil, err
				}

				// anonymous arrays are allowed in certain contexts
				if symbol == nil {
					symbol = &Symbol{Type: ctype}
				}
				if baseCType == nil {
					baseCType = ctype.Copy()
				}

				symbol.WrapCType(func(c *CType) *CType {
					return &CType{Kind: CTypeKind_Array, Base: c, Length: arrayLen, LengthIsStatic: lengthIsStatic}
				})

				if t.peek().S != "]" {
					return nil, fmt.Errorf("%w: expected ], got %v", cc.ErrParse, t.peek())
				}
				t.advance()
				continue

			case "struct":
				t.advance()
				if err := b.parseAggregateKernel(t, ctype, CTypeKind_Struct); err != nil {
					return nil, err
				}
				continue

			case "union":
				t.advance()
				if err := b.parseAggregateKernel(t, ctype, CTypeKind_Union); err != nil {
					return nil, err
				}
				continue

			case "enum":
				t.advance()
				if err := b.parseEnumKernel(t, ctype); err != nil {
					return nil, err
				}
				continue

			case "(":
				t.advance()

				// a parameter list makes this declarator a function; any
				// other content is a nested declarator grouping
				funcDecl, args, hasVararg, err := b.tryParseParameterList(t)
				if err != nil {
					return nil, err
				}

				if funcDecl {
					ctype.Nest()
					ctype.Base = &CType{
						Kind:      CTypeKind_Function,
						Return:    ctype.Base,
						Params:    args,
						HasVararg: hasVararg,
					}

					if symbol == nil {
						symbol = &Symbol{Type: ctype}
					}
					continue
				}

				nestingDepth++
				if symbol == nil {
					symbol = &Symbol{Type: ctype}
				}
				continue

			default:
				if tok.S == ")" && nestingDepth > 0 {
					t.advance()
					nestingDepth--
					continue
				}

				if existing := b.LookupType(tok.S, TagNamespace_None); existing != nil {
					ctype.Base = existing
					t.advance()
					continue
				}

				if tok.S == "=" && allowInit && symbol != nil {
					t.advance()
					value, err := b.parseValue(t, symbol.Type)
					if err != nil {
						return nil, err
					}
					if value == nil {
						return nil, fmt.Errorf("%w: no value for symbol initialisation at %v", cc.ErrParse, t.peek())
					}
					symInit = value
					continue
				}

				if !tok.IsValidSymbol() {
					break tokens
				}
				if ctype.IsEmptyDefault() {
					break tokens
				}

				if baseCType == nil {
					baseCType = ctype.Copy()
				}

				nameTok := tok
				if symbol != nil && symbol.Name == nil {
					symbol.Name = &nameTok
				} else {
					symbol = &Symbol{Type: ctype, Name: &nameTok}
				}

				t.advance()
				continue
			}
		}

		if ctype.IsEmptyDefault() {
			break declarators
		}

		if nestingDepth > 0 {
			return nil, fmt.Errorf("%w: unclosed parenthesis in declarator at %v", cc.ErrParse, t.peek())
		}

		// a type without a name declares an anonymous symbol
		if symbol == nil {
			symbol = &Symbol{Type: ctype}
		}

		// invalid compositions like a pointer to nothing end the declaration
		if err := symbol.Type.Validate(); err != nil {
			break declarators
		}

		symbol.Type = symbol.Type.Flatten()

		declared = append(declared, DeclaredSymbol{Sym: symbol, Init: symInit})

		if t.peek().S == "," && allowMultiple {
			t.advance()
			if baseCType == nil {
				return nil, fmt.Errorf("%w: declarator list without a base type at %v", cc.ErrParse, t.peek())
			}
			continue
		}

		break
	}

	if len(declared) == 0 {
		*t = tIn
		return nil, nil
	}

	return &SymbolDef{Symbols: declared}, nil
}

// parseAggregateKernel parses the struct/union kernel after its keyword: an
// optional tag, then either an inline field list or a reference to a
// previously declared complete type.
func (b *Block) parseAggregateKernel(t *cursor, ctype *CType, kind CTypeKind) error {
	ns := TagNamespace_Struct
	if kind == CTypeKind_Union {
		ns = TagNamespace_Union
	}

	var tagName *lexer.Token
	if t.peek().Type == lexer.TokenType_Symbol {
		nameTok := t.peek()
		tagName = &nameTok
		t.advance()
	}

	// incomplete until an inline body provides the fields
	aggregate := &CType{Kind: kind, Name: tagName}
	ctype.Base = aggregate

	if t.peek().S == "{" {
		t.advance()

		fields := []*CType{}
		for {
			fieldDef, err := b.parseSymbolDefinition(t, true, false)
			if err != nil {
				return err
			}
			if fieldDef == nil {
				break
			}

			if t.peek().S != ";" {
				return fmt.Errorf("%w: expected ; after field, got %v", cc.ErrParse, t.peek())
			}
			t.advance()

			for _, declared := range fieldDef.Symbols {
				fields = append(fields, &CType{
					Kind:      CTypeKind_Field,
					Name:      declared.Sym.Name,
					FieldType: declared.Sym.Type,
					Parent:    aggregate,
				})
			}
		}
		aggregate.Fields = fields

		if t.peek().S != "}" {
			return fmt.Errorf("%w: expected } after fields, got %v", cc.ErrParse, t.peek())
		}
		t.advance()
		return nil
	}

	// no inline body, so the tag must name the type; an already known
	// complete type replaces the incomplete reference
	if tagName == nil {
		return fmt.Errorf("%w: aggregate without tag or body at %v", cc.ErrParse, t.peek())
	}
	if complete := b.LookupType(tagName.S, ns); complete != nil {
		ctype.Base = complete
	}
	return nil
}

// parseEnumKernel parses the enum kernel after its keyword. Enumerators
// without an explicit value continue from the previous value plus one.
func (b *Block) parseEnumKernel(t *cursor, ctype *CType) error {
	intType := b.LookupType("int", TagNamespace_None)
	if intType == nil {
		return fmt.Errorf("%w: int type not available", cc.ErrInternal)
	}

	var tagName *lexer.Token
	if t.peek().Type == lexer.TokenType_Symbol {
		nameTok := t.peek()
		tagName = &nameTok
		t.advance()
	}

	var members []EnumMember

	if t.peek().S == "{" {
		t.advance()
		members = []EnumMember{}

		var lastValue AstValue = &ValueLiteral{Value: "0", Type: intType}
		for !t.empty() && t.peek().S != "}" {
			nameTok := t.peek()
			if nameTok.Type != lexer.TokenType_Symbol {
				return fmt.Errorf("%w: expected enumerator name, got %v", cc.ErrParse, nameTok)
			}
			t.advance()

			var value AstValue
			if t.peek().S == "=" {
				t.advance()

				parsed, err := b.parseValue(t, nil)
				if err != nil {
					return err
				}
				if parsed == nil {
					return fmt.Errorf("%w: expected enumerator value, got %v", cc.ErrParse, t.peek())
				}
				value = parsed
			}

			if value == nil {
				value = &Operation{Op: Op_Add, A: lastValue, B: &ValueLiteral{Value: "1", Type: intType}}
			}
			lastValue = value

			members = append(members, EnumMember{
				Sym:   &Symbol{Name: &nameTok, Type: intType},
				Value: value,
			})

			if t.peek().S == "," {
				t.advance()
				continue
			}
			break
		}

		if t.peek().S != "}" {
			return fmt.Errorf("%w: expected } after enumerators, got %v", cc.ErrParse, t.peek())
		}
		t.advance()
	}

	ctype.Base = &CType{Kind: CTypeKind_Enum, Name: tagName, Base: intType, Members: members}
	return nil
}

// tryParseParameterList attempts to read a function parameter list after an
// opening parenthesis. When the content is not a parameter list the cursor
// is restored to just after the parenthesis and funcDecl is false, leaving
// the parenthesis to be treated as declarator grouping. On success the
// closing parenthesis is consumed.
func (b *Block) tryParseParameterList(t *cursor) (funcDecl bool, args []*Symbol, hasVararg bool, err error) {
	before := *t

	for !t.empty() && t.peek().S != ")" {
		if t.peek().S == VarargName {
			hasVararg = true
			t.advance()
			// the vararg ellipsis must be last
			break
		}

		paramDef, err := b.parseSymbolDefinition(t, false, false)
		if err != nil {
			return false, nil, false, err
		}
		if paramDef == nil {
			break
		}

		args = append(args, paramDef.Symbols[0].Sym)

		if t.peek().S == "," {
			t.advance()
			continue
		}
		break
	}

	if t.peek().S != ")" {
		*t = before
		return false, nil, false, nil
	}
	t.advance()
	return true, args, hasVararg, nil
}

// VarargName is the ellipsis spelling of a variadic parameter.
const VarargName = "..."
