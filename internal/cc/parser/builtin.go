package parser

import (
	"fmt"

	"github.com/slaide/pacc/internal/cc"
	"github.com/slaide/pacc/internal/cc/lexer"
)

func builtinToken(name string) *lexer.Token {
	return &lexer.Token{S: name, Type: lexer.TokenType_Symbol, SrcLoc: lexer.Placeholder(), LogLoc: lexer.Placeholder()}
}

// sizeofType builds the compile-time sizeof function: one parameter of the
// lenient marker type __ty_any, evaluated in the parser to a numeric
// literal. Size computation is not modelled, so every type reports the same
// placeholder width.
func sizeofType() *CType {
	return &CType{
		Kind:   CTypeKind_ConstFunc,
		Return: Primitive("int"),
		Params: []*Symbol{{Type: Primitive(PrimitiveTyAny)}},
		EvalFn: func(b *Block, args []AstValue) (AstValue, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("%w: sizeof takes exactly one argument", cc.ErrParse)
			}
			intType := b.LookupType("int", TagNamespace_None)
			if intType == nil {
				return nil, fmt.Errorf("%w: int type not available", cc.ErrInternal)
			}
			return &ValueLiteral{Value: "4", Type: intType}, nil
		},
	}
}

func builtinFunction(returnType *CType, params ...*CType) *CType {
	symbols := make([]*Symbol, len(params))
	for i, param := range params {
		symbols[i] = &Symbol{Type: param}
	}
	return &CType{Kind: CTypeKind_Function, Return: returnType, Params: symbols}
}

// NewTranslationUnitBlock creates the top-level scope with the primitive
// type names and the builtin symbols available without any include.
func NewTranslationUnitBlock() *Block {
	b := NewBlock(nil)

	b.Types["void"] = Primitive("void")
	b.Types["int"] = Primitive("int")
	b.Types["char"] = Primitive("char")
	b.Types["float"] = Primitive("float")
	b.Types["double"] = Primitive("double")
	b.Types["bool"] = Primitive("bool")
	b.Types["__builtin_va_list"] = Primitive("__builtin_va_list")

	b.Symbols["sizeof"] = &Symbol{Name: builtinToken("sizeof"), Type: sizeofType()}

	b.Symbols["nullptr"] = &Symbol{
		Name: builtinToken("nullptr"),
		Type: PointerTo(Primitive("void")),
	}

	b.Symbols["__builtin_va_start"] = &Symbol{
		Name: builtinToken("__builtin_va_start"),
		Type: builtinFunction(Primitive("void"), Primitive("__builtin_va_list"), Primitive(PrimitiveAny)),
	}
	b.Symbols["__builtin_va_end"] = &Symbol{
		Name: builtinToken("__builtin_va_end"),
		Type: builtinFunction(Primitive("void"), Primitive("__builtin_va_list")),
	}
	b.Symbols["__builtin_va_arg"] = &Symbol{
		Name: builtinToken("__builtin_va_arg"),
		Type: builtinFunction(Primitive("void"), Primitive("__builtin_va_list"), Primitive(PrimitiveType)),
	}
	b.Symbols["__builtin_va_copy"] = &Symbol{
		Name: builtinToken("__builtin_va_copy"),
		Type: builtinFunction(Primitive("void"), Primitive("__builtin_va_list"), Primitive("__builtin_va_list")),
	}

	return b
}
