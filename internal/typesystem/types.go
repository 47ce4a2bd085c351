package typesystem

import (
	"fmt"
	"strings"
)

// DefID identifies a declaration (constant, function, closure body) in the
// def map supplied by the name-resolution collaborator. IDs are fully
// qualified names, e.g. "Adder::VAL" or "core::option::unwrap_or".
type DefID string

// Kind discriminates the resolved type forms the evaluator understands.
type Kind int

const (
	KindBool Kind = iota
	KindChar
	KindInt   // signed two's-complement, width in Bits
	KindUint  // unsigned, width in Bits
	KindFloat // IEEE-754, width in Bits
	KindRef   // &T or &mut T; fat when Elem is unsized
	KindRawPtr
	KindArray // [T; Len]
	KindSlice // [T], unsized
	KindStr   // str, unsized
	KindTuple
	KindStruct
	KindUnion
	KindEnum
	KindFnPtr   // fn(..) -> _; the value is a function id word
	KindClosure // captured-environment aggregate; Def names the body
	KindDyn     // dyn Trait, unsized
	KindNever
)

// PtrSize is the pointer width of the synthetic target. The evaluator is
// 64-bit regardless of the host.
const PtrSize = 8

// Field is a named (or positional) member of an aggregate, with its byte
// offset already computed. Offsets inside enum variants are absolute within
// the whole enum value, tag included.
type Field struct {
	Name   string
	Type   *Type
	Offset int
}

// Variant is one enum variant: a discriminant value plus payload fields.
type Variant struct {
	Name   string
	Discr  int64
	Fields []Field
}

// Type is a fully resolved type together with its layout facts. Construct
// types through the New* helpers so sizes and offsets are computed once.
type Type struct {
	Kind     Kind
	Name     string // struct/enum/union/closure name, or trait name for dyn
	Bits     int    // scalar width for int/uint/float
	Elem     *Type  // pointee or element type
	Len      int    // array length
	Fields   []Field
	Variants []Variant
	Sig      *FnSig
	Def      DefID // closure body

	size  int
	align int
}

// FnSig is the signature carried by function-pointer types.
type FnSig struct {
	Params []*Type
	Ret    *Type
}

// Prebuilt scalar types. usize/isize are 64-bit on the synthetic target.
var (
	Bool  = &Type{Kind: KindBool, size: 1, align: 1}
	Char  = &Type{Kind: KindChar, size: 4, align: 4}
	I8    = &Type{Kind: KindInt, Bits: 8, size: 1, align: 1}
	I16   = &Type{Kind: KindInt, Bits: 16, size: 2, align: 2}
	I32   = &Type{Kind: KindInt, Bits: 32, size: 4, align: 4}
	I64   = &Type{Kind: KindInt, Bits: 64, size: 8, align: 8}
	Isize = &Type{Kind: KindInt, Bits: 64, size: 8, align: 8}
	U8    = &Type{Kind: KindUint, Bits: 8, size: 1, align: 1}
	U16   = &Type{Kind: KindUint, Bits: 16, size: 2, align: 2}
	U32   = &Type{Kind: KindUint, Bits: 32, size: 4, align: 4}
	U64   = &Type{Kind: KindUint, Bits: 64, size: 8, align: 8}
	Usize = &Type{Kind: KindUint, Bits: 64, size: 8, align: 8}
	F32   = &Type{Kind: KindFloat, Bits: 32, size: 4, align: 4}
	F64   = &Type{Kind: KindFloat, Bits: 64, size: 8, align: 8}
	Str   = &Type{Kind: KindStr, size: -1, align: 1}
	Never = &Type{Kind: KindNever, size: 0, align: 1}
	Unit  = &Type{Kind: KindTuple, size: 0, align: 1}
)

// Sized reports whether values of this type have a static size.
func (t *Type) Sized() bool { return t.size >= 0 }

// Size returns the static byte size, or -1 for unsized types.
func (t *Type) Size() int { return t.size }

// Align returns the byte alignment.
func (t *Type) Align() int { return t.align }

// IsFat reports whether a pointer to this type needs a metadata word.
func (t *Type) IsFat() bool {
	return t.Kind == KindSlice || t.Kind == KindStr || t.Kind == KindDyn
}

// Signed reports whether the type is a signed integer.
func (t *Type) Signed() bool { return t.Kind == KindInt }

// IsPointer reports whether the type is a reference or raw pointer.
func (t *Type) IsPointer() bool {
	return t.Kind == KindRef || t.Kind == KindRawPtr
}

// IsScalarInt reports whether the type is readable as an integer scalar
// (including bool, char, thin pointers and function pointers).
func (t *Type) IsScalarInt() bool {
	switch t.Kind {
	case KindBool, KindChar, KindInt, KindUint, KindFnPtr:
		return true
	case KindRef, KindRawPtr:
		return !t.Elem.IsFat()
	}
	return false
}

// NewRef builds a reference type. The same layout is used for raw pointers
// via NewRawPtr; both are thin unless the pointee is unsized.
func NewRef(elem *Type) *Type {
	return newPtr(KindRef, elem)
}

// NewRawPtr builds a *const/*mut pointer type.
func NewRawPtr(elem *Type) *Type {
	return newPtr(KindRawPtr, elem)
}

func newPtr(k Kind, elem *Type) *Type {
	size := PtrSize
	if elem.IsFat() {
		size = 2 * PtrSize
	}
	return &Type{Kind: k, Elem: elem, size: size, align: PtrSize}
}

// NewArray builds [elem; n].
func NewArray(elem *Type, n int) *Type {
	return &Type{Kind: KindArray, Elem: elem, Len: n, size: elem.size * n, align: elem.align}
}

// NewSlice builds the unsized slice type [elem].
func NewSlice(elem *Type) *Type {
	return &Type{Kind: KindSlice, Elem: elem, size: -1, align: elem.align}
}

// NewDyn builds the unsized trait-object type for the named trait.
func NewDyn(trait string) *Type {
	return &Type{Kind: KindDyn, Name: trait, size: -1, align: 1}
}

// NewFnPtr builds a function-pointer type.
func NewFnPtr(params []*Type, ret *Type) *Type {
	return &Type{Kind: KindFnPtr, Sig: &FnSig{Params: params, Ret: ret}, size: PtrSize, align: PtrSize}
}

// NewTuple lays out an anonymous tuple.
func NewTuple(elems ...*Type) *Type {
	t := &Type{Kind: KindTuple}
	for i, e := range elems {
		t.Fields = append(t.Fields, Field{Name: fmt.Sprintf("%d", i), Type: e})
	}
	layoutFields(t)
	return t
}

// NewStruct lays out a named struct. Field order is declaration order; no
// reordering optimizations are applied.
func NewStruct(name string, fields ...Field) *Type {
	t := &Type{Kind: KindStruct, Name: name, Fields: fields}
	layoutFields(t)
	return t
}

// NewUnion lays out a union: every field at offset zero, size of the widest.
func NewUnion(name string, fields ...Field) *Type {
	t := &Type{Kind: KindUnion, Name: name, Fields: fields, align: 1}
	for i := range t.Fields {
		t.Fields[i].Offset = 0
		f := t.Fields[i].Type
		if f.size > t.size {
			t.size = f.size
		}
		if f.align > t.align {
			t.align = f.align
		}
	}
	t.size = alignUp(t.size, t.align)
	return t
}

// NewClosure lays out a captured-environment aggregate. def names the MIR
// body the evaluator runs when the closure value is called.
func NewClosure(name string, def DefID, captures ...Field) *Type {
	t := &Type{Kind: KindClosure, Name: name, Def: def, Fields: captures}
	layoutFields(t)
	return t
}

// EnumTagSize is the width of the discriminant tag. Niche packing is not
// modeled; every enum carries an explicit 8-byte tag at offset zero.
const EnumTagSize = 8

// NewEnum lays out an enum. Variant payload fields share a common start
// offset after the tag; their offsets are absolute within the enum value.
func NewEnum(name string, variants ...Variant) *Type {
	t := &Type{Kind: KindEnum, Name: name, Variants: variants, align: EnumTagSize}
	maxAlign := 1
	for _, v := range variants {
		for _, f := range v.Fields {
			if f.Type.align > maxAlign {
				maxAlign = f.Type.align
			}
		}
	}
	payload := alignUp(EnumTagSize, maxAlign)
	end := payload
	for vi := range t.Variants {
		off := payload
		for fi := range t.Variants[vi].Fields {
			f := &t.Variants[vi].Fields[fi]
			off = alignUp(off, f.Type.align)
			f.Offset = off
			off += f.Type.size
		}
		if off > end {
			end = off
		}
	}
	if maxAlign > t.align {
		t.align = maxAlign
	}
	t.size = alignUp(end, t.align)
	return t
}

// VariantByDiscr finds the variant carrying the given discriminant value.
func (t *Type) VariantByDiscr(d int64) (int, bool) {
	for i, v := range t.Variants {
		if v.Discr == d {
			return i, true
		}
	}
	return 0, false
}

func layoutFields(t *Type) {
	off := 0
	t.align = 1
	for i := range t.Fields {
		f := &t.Fields[i]
		off = alignUp(off, f.Type.align)
		f.Offset = off
		off += f.Type.size
		if f.Type.align > t.align {
			t.align = f.Type.align
		}
	}
	t.size = alignUp(off, t.align)
}

func alignUp(n, align int) int {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}

// String renders a canonical form used in cache keys and diagnostics.
func (t *Type) String() string {
	switch t.Kind {
	case KindBool:
		return "bool"
	case KindChar:
		return "char"
	case KindInt:
		return fmt.Sprintf("i%d", t.Bits)
	case KindUint:
		return fmt.Sprintf("u%d", t.Bits)
	case KindFloat:
		return fmt.Sprintf("f%d", t.Bits)
	case KindRef:
		return "&" + t.Elem.String()
	case KindRawPtr:
		return "*" + t.Elem.String()
	case KindArray:
		return fmt.Sprintf("[%s; %d]", t.Elem, t.Len)
	case KindSlice:
		return "[" + t.Elem.String() + "]"
	case KindStr:
		return "str"
	case KindTuple:
		parts := make([]string, len(t.Fields))
		for i, f := range t.Fields {
			parts[i] = f.Type.String()
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case KindStruct, KindUnion, KindEnum, KindClosure:
		return t.Name
	case KindFnPtr:
		parts := make([]string, len(t.Sig.Params))
		for i, p := range t.Sig.Params {
			parts[i] = p.String()
		}
		return "fn(" + strings.Join(parts, ", ") + ") -> " + t.Sig.Ret.String()
	case KindDyn:
		return "dyn " + t.Name
	case KindNever:
		return "!"
	}
	return "<unknown>"
}
