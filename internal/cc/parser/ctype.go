package parser

import (
	"fmt"
	"strings"

	"github.com/slaide/pacc/internal/cc"
	"github.com/slaide/pacc/internal/cc/lexer"
)

// CTypeKind discriminates the CType variants.
type CTypeKind int

const (
	// CTypeKind_Empty is the declaration builder: it carries only qualifier
	// and storage flags plus an optional Base. A declaration accumulates
	// specifiers into an Empty type before the kernel type is known.
	CTypeKind_Empty CTypeKind = iota
	CTypeKind_Primitive
	CTypeKind_Pointer
	CTypeKind_Array
	CTypeKind_Function
	CTypeKind_Struct
	CTypeKind_Union
	CTypeKind_Enum
	CTypeKind_Field
	// CTypeKind_ConstFunc is a function evaluated by the parser at parse
	// time (e.g. sizeof). It uses the Function payload plus EvalFn.
	CTypeKind_ConstFunc
)

// Signedness is the tri-state signed/unsigned specifier.
type Signedness int

const (
	Signedness_Unspecified Signedness = iota
	Signedness_Signed
	Signedness_Unsigned
)

// Names of the builtin primitive types, including the parser-internal marker
// types: __type accepts only type values, __ty_any accepts any type, __any
// accepts any value.
const (
	PrimitiveType  = "__type"
	PrimitiveTyAny = "__ty_any"
	PrimitiveAny   = "__any"
)

// EnumMember is one enumerator and its value expression.
type EnumMember struct {
	Sym   *Symbol
	Value AstValue
}

// CType is a C type, modelled as a tagged union: Kind selects which payload
// fields are meaningful. The qualifier block is valid on every variant.
type CType struct {
	Kind CTypeKind

	IsStatic      bool
	IsExtern      bool
	IsThreadLocal bool
	IsNoreturn    bool
	IsAtomic      bool
	IsConst       bool

	// LengthMod counts long (+1 each) and short (-1 each) specifiers;
	// 0 means unmodified. The valid range is [-2, 2].
	LengthMod int
	Signed    Signedness

	// Base is the nested type: the builder's kernel, a pointer's pointee, an
	// array's element type, or an enum's underlying type.
	Base *CType

	// Primitive payload.
	PrimitiveName string

	// Struct/union/enum tag or field name. May be nil (anonymous).
	Name *lexer.Token

	// Array payload.
	Length         AstValue
	LengthIsStatic bool

	// Function payload, also used by ConstFunc.
	Return    *CType
	Params    []*Symbol
	HasVararg bool
	// EvalFn evaluates a ConstFunc invocation in place of emitting a call.
	EvalFn func(b *Block, args []AstValue) (AstValue, error)

	// Struct/union payload: Field-kind entries. nil means the type is
	// incomplete; a complete type with no fields holds an allocated empty
	// slice.
	Fields []*CType

	// Enum payload.
	Members []EnumMember

	// Field payload. Parent is a non-owning back-reference to the struct or
	// union that owns this field.
	FieldType *CType
	Parent    *CType
}

// Primitive returns a primitive type with the given name.
func Primitive(name string) *CType {
	return &CType{Kind: CTypeKind_Primitive, PrimitiveName: name}
}

// PointerTo returns a pointer to base.
func PointerTo(base *CType) *CType {
	return &CType{Kind: CTypeKind_Pointer, Base: base}
}

// Copy returns a shallow copy. Payload pointers are shared, which matches the
// aliasing the declaration parser relies on.
func (c *CType) Copy() *CType {
	copied := *c
	return &copied
}

// Nest pushes the current content of c one level down: c becomes an empty
// builder whose Base is the previous content. The parser uses this to wrap a
// partially built type in place, keeping every existing alias of c valid.
func (c *CType) Nest() {
	inner := *c
	*c = CType{Kind: CTypeKind_Empty}
	c.Base = &inner
}

// Flatten resolves builder nesting: a bare builder collapses to its Base.
// Qualifiers held by the builder itself are not propagated, matching the
// declaration parser's behaviour.
func (c *CType) Flatten() *CType {
	if c.Kind != CTypeKind_Empty {
		return c
	}
	if c.Base == nil {
		return c
	}
	return c.Base.Flatten()
}

// IsEmptyDefault reports whether the type is a builder with every field at
// its default, meaning no specifier or kernel was parsed at all.
func (c *CType) IsEmptyDefault() bool {
	if c.Kind != CTypeKind_Empty {
		return false
	}
	return !c.IsStatic && !c.IsExtern && !c.IsThreadLocal && !c.IsNoreturn &&
		!c.IsAtomic && !c.IsConst &&
		c.Signed == Signedness_Unspecified && c.LengthMod == 0 && c.Base == nil
}

// IsIncomplete reports whether a struct/union/enum has no member list yet.
func (c *CType) IsIncomplete() bool {
	switch c.Kind {
	case CTypeKind_Struct, CTypeKind_Union:
		return c.Fields == nil
	case CTypeKind_Enum:
		return c.Members == nil
	default:
		return false
	}
}

// IsFunctionKind reports whether the type can be called.
func (c *CType) IsFunctionKind() bool {
	return c.Kind == CTypeKind_Function || c.Kind == CTypeKind_ConstFunc
}

// Validate returns an error when the type cannot exist: a length modifier out
// of range, a pointer to nothing, or a bare builder with no kernel.
func (c *CType) Validate() error {
	if c.LengthMod < -2 {
		return fmt.Errorf("%w: type cannot be shorter than short short", cc.ErrType)
	}
	if c.LengthMod > 2 {
		return fmt.Errorf("%w: type cannot be longer than long long", cc.ErrType)
	}

	switch c.Kind {
	case CTypeKind_Empty:
		if c.IsEmptyDefault() {
			return fmt.Errorf("%w: type is empty", cc.ErrType)
		}
		if c.Base != nil {
			return c.Base.Validate()
		}
		return nil

	case CTypeKind_Pointer:
		if c.Base == nil {
			return fmt.Errorf("%w: pointer to nothing is invalid", cc.ErrType)
		}
		return c.Base.Validate()

	case CTypeKind_Array:
		if c.Base == nil {
			return fmt.Errorf("%w: array of nothing is invalid", cc.ErrType)
		}
		return c.Base.Validate()

	case CTypeKind_Function, CTypeKind_ConstFunc:
		if err := c.Return.Validate(); err != nil {
			return err
		}
		for _, param := range c.Params {
			if err := param.Type.Validate(); err != nil {
				return err
			}
		}
		return nil

	default:
		return nil
	}
}

// FieldByName resolves a field on a struct or union, looking through builder
// and pointer nesting. Returns nil without error when the aggregate does not
// have the field; returns an error when the type has no fields at all or is
// incomplete.
func (c *CType) FieldByName(name string) (*CType, error) {
	switch c.Kind {
	case CTypeKind_Struct, CTypeKind_Union:
		if c.Fields == nil {
			return nil, fmt.Errorf("%w: type %s is incomplete, cannot access fields", cc.ErrType, c.describeTag())
		}
		for _, field := range c.Fields {
			if field.Name != nil && field.Name.S == name {
				return field, nil
			}
		}
		return nil, nil

	case CTypeKind_Empty, CTypeKind_Pointer:
		if c.Base != nil {
			return c.Base.FieldByName(name)
		}
		return nil, fmt.Errorf("%w: type does not have any fields", cc.ErrType)

	default:
		return nil, fmt.Errorf("%w: type does not have any fields", cc.ErrType)
	}
}

// FieldNames lists the named fields of an aggregate, for diagnostics.
func (c *CType) FieldNames() []string {
	resolved := c
	for (resolved.Kind == CTypeKind_Empty || resolved.Kind == CTypeKind_Pointer) && resolved.Base != nil {
		resolved = resolved.Base
	}
	var names []string
	for _, field := range resolved.Fields {
		if field.Name != nil {
			names = append(names, field.Name.S)
		}
	}
	return names
}

// CanBeAssignedTo reports whether a value of type c can be used where other
// is expected. Only the primitive cases the parser needs are covered: name
// equality, and the __type marker feeding a __ty_any parameter.
func (c *CType) CanBeAssignedTo(other *CType) bool {
	if c.Kind != CTypeKind_Primitive || other.Kind != CTypeKind_Primitive {
		return false
	}
	if c.PrimitiveName == other.PrimitiveName {
		return true
	}
	return c.PrimitiveName == PrimitiveType && other.PrimitiveName == PrimitiveTyAny
}

func (c *CType) describeTag() string {
	if c.Name != nil {
		return c.Name.S
	}
	return "<anon>"
}

// String renders a short human-readable description for diagnostics.
func (c *CType) String() string {
	var b strings.Builder
	if c.IsStatic {
		b.WriteString("static ")
	}
	if c.IsExtern {
		b.WriteString("extern ")
	}
	if c.IsAtomic {
		b.WriteString("atomic ")
	}
	if c.IsConst {
		b.WriteString("const ")
	}
	switch c.Signed {
	case Signedness_Signed:
		b.WriteString("signed ")
	case Signedness_Unsigned:
		b.WriteString("unsigned ")
	}
	switch c.LengthMod {
	case 2:
		b.WriteString("long long ")
	case 1:
		b.WriteString("long ")
	case -1:
		b.WriteString("short ")
	case -2:
		b.WriteString("short short ")
	}

	switch c.Kind {
	case CTypeKind_Primitive:
		b.WriteString(c.PrimitiveName)
	case CTypeKind_Pointer:
		b.WriteString("ptr to " + c.Base.String())
	case CTypeKind_Array:
		b.WriteString("array of " + c.Base.String())
	case CTypeKind_Function, CTypeKind_ConstFunc:
		b.WriteString("fn returning " + c.Return.String())
	case CTypeKind_Struct:
		b.WriteString("struct " + c.describeTag())
	case CTypeKind_Union:
		b.WriteString("union " + c.describeTag())
	case CTypeKind_Enum:
		b.WriteString("enum " + c.describeTag())
	case CTypeKind_Field:
		b.WriteString("field " + c.describeTag())
	case CTypeKind_Empty:
		if c.Base != nil {
			b.WriteString(c.Base.String())
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// Symbol binds an optional name token to a type.
type Symbol struct {
	Name *lexer.Token
	Type *CType
}

// WrapCType replaces the symbol's type with a type derived from it, e.g.
// wrapping the current type in a pointer or array.
func (s *Symbol) WrapCType(wrap func(*CType) *CType) {
	s.Type = wrap(s.Type)
}

func (s *Symbol) String() string {
	if s.Name != nil {
		return fmt.Sprintf("%s: %s", s.Name.S, s.Type)
	}
	return fmt.Sprintf("<anon>: %s", s.Type)
}
