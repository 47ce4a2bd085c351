package evaluator

import (
	"github.com/cruxlang/crux/internal/mir"
	"github.com/cruxlang/crux/internal/typesystem"
)

func (e *Evaluator) evalRvalue(f *frame, rv mir.Rvalue) (Value, error) {
	switch r := rv.(type) {
	case mir.Use:
		return e.evalOperand(f, r.X)

	case mir.Ref:
		return e.evalRef(f, r.Place)

	case mir.BinaryOp:
		l, err := e.evalOperand(f, r.L)
		if err != nil {
			return Value{}, err
		}
		rhs, err := e.evalOperand(f, r.R)
		if err != nil {
			return Value{}, err
		}
		return e.evalBinOp(r.Op, l, rhs)

	case mir.UnaryOp:
		x, err := e.evalOperand(f, r.X)
		if err != nil {
			return Value{}, err
		}
		return evalUnOp(r.Op, x)

	case mir.Cast:
		x, err := e.evalOperand(f, r.X)
		if err != nil {
			return Value{}, err
		}
		return e.evalCast(r.Kind, x, r.To)

	case mir.Aggregate:
		return e.evalAggregate(f, r)

	case mir.Discriminant:
		rp, err := e.resolvePlace(f, r.Place)
		if err != nil {
			return Value{}, err
		}
		if rp.ty.Kind != typesystem.KindEnum {
			return Value{}, &mir.InvalidBodyError{Def: f.body.Def, Msg: "discriminant of non-enum place"}
		}
		tag, err := e.mem.Read(rp.addr, typesystem.EnumTagSize)
		if err != nil {
			return Value{}, err
		}
		return Value{Bytes: tag, Type: typesystem.I64}, nil

	case mir.Len:
		rp, err := e.resolvePlace(f, r.Place)
		if err != nil {
			return Value{}, err
		}
		var n uint64
		switch {
		case rp.ty.Kind == typesystem.KindArray:
			n = uint64(rp.ty.Len)
		case rp.hasMeta:
			n = rp.meta
		default:
			return Value{}, &mir.InvalidBodyError{Def: f.body.Def, Msg: "len of place without length"}
		}
		return Value{Bytes: typesystem.EncodeUint(n, typesystem.Usize.Size()), Type: typesystem.Usize}, nil

	default:
		return Value{}, &mir.InvalidBodyError{Def: f.body.Def, Msg: "unknown rvalue"}
	}
}

// evalRef takes a place's address. References to unsized places carry the
// metadata the place was resolved with, producing a fat pointer.
func (e *Evaluator) evalRef(f *frame, p mir.Place) (Value, error) {
	r, err := e.resolvePlace(f, p)
	if err != nil {
		return Value{}, err
	}
	refTy := typesystem.NewRef(r.ty)
	if r.ty.IsFat() {
		if !r.hasMeta {
			return Value{}, &mir.InvalidBodyError{Def: f.body.Def, Msg: "reference to unsized place without metadata"}
		}
		bytes := make([]byte, 2*typesystem.PtrSize)
		copy(bytes, r.addr.Encode())
		copy(bytes[typesystem.PtrSize:], typesystem.EncodeUint(r.meta, typesystem.PtrSize))
		return Value{Bytes: bytes, Type: refTy}, nil
	}
	return Value{Bytes: r.addr.Encode(), Type: refTy}, nil
}

func (e *Evaluator) evalCast(kind mir.CastKind, x Value, to *typesystem.Type) (Value, error) {
	switch kind {
	case mir.CastNumeric:
		if x.Type.Kind == typesystem.KindFloat {
			v := typesystem.DecodeFloat(x.Bytes)
			if to.Kind == typesystem.KindFloat {
				return Value{Bytes: typesystem.EncodeFloat(v, to.Size()), Type: to}, nil
			}
			return Value{Bytes: typesystem.EncodeInt(int64(v), to.Size()), Type: to}, nil
		}
		s, u := typesystem.DecodeScalar(x.Bytes, x.Type)
		if to.Kind == typesystem.KindFloat {
			if x.Type.Signed() {
				return Value{Bytes: typesystem.EncodeFloat(float64(s), to.Size()), Type: to}, nil
			}
			return Value{Bytes: typesystem.EncodeFloat(float64(u), to.Size()), Type: to}, nil
		}
		// Sign- or zero-extension happened in the decode; storing truncates.
		return Value{Bytes: typesystem.EncodeInt(s, to.Size()), Type: to}, nil

	case mir.CastEnumToInt:
		tag := typesystem.DecodeInt(x.Bytes[:typesystem.EnumTagSize])
		return Value{Bytes: typesystem.EncodeInt(tag, to.Size()), Type: to}, nil

	case mir.CastPtrToPtr:
		// Address and, when both sides are fat, metadata are preserved
		// verbatim: casting a [i32] pointer to a [u8] pointer keeps the
		// original element count, not a byte-rescaled one.
		out := make([]byte, to.Size())
		copy(out, x.Bytes)
		return Value{Bytes: out, Type: to}, nil

	case mir.CastPtrToInt:
		v := typesystem.DecodeUint(x.Bytes[:typesystem.PtrSize])
		return Value{Bytes: typesystem.EncodeUint(v, to.Size()), Type: to}, nil

	case mir.CastIntToPtr:
		_, u := typesystem.DecodeScalar(x.Bytes, x.Type)
		return Value{Bytes: typesystem.EncodeUint(u, typesystem.PtrSize), Type: to}, nil

	case mir.CastUnsizeSlice:
		// &[T; N] -> &[T]: the static length becomes runtime metadata.
		if x.Type.Elem == nil || x.Type.Elem.Kind != typesystem.KindArray {
			return Value{}, &mir.InvalidBodyError{Msg: "unsize of non-array pointer"}
		}
		bytes := make([]byte, 2*typesystem.PtrSize)
		copy(bytes, x.Bytes[:typesystem.PtrSize])
		copy(bytes[typesystem.PtrSize:], typesystem.EncodeUint(uint64(x.Type.Elem.Len), typesystem.PtrSize))
		return Value{Bytes: bytes, Type: to}, nil

	case mir.CastUnsizeDyn:
		// &T -> &dyn Trait: attach the vtable registered for T.
		if to.Elem == nil || to.Elem.Kind != typesystem.KindDyn {
			return Value{}, &mir.InvalidBodyError{Msg: "dyn unsize to non-dyn pointer"}
		}
		vt, err := e.reg.VtableFor(x.Type.Elem, to.Elem.Name)
		if err != nil {
			return Value{}, err
		}
		bytes := make([]byte, 2*typesystem.PtrSize)
		copy(bytes, x.Bytes[:typesystem.PtrSize])
		copy(bytes[typesystem.PtrSize:], typesystem.EncodeUint(vt, typesystem.PtrSize))
		return Value{Bytes: bytes, Type: to}, nil

	default:
		return Value{}, &mir.InvalidBodyError{Msg: "unknown cast kind"}
	}
}

func (e *Evaluator) evalAggregate(f *frame, agg mir.Aggregate) (Value, error) {
	ty := agg.Type
	buf := make([]byte, ty.Size())

	writeElem := func(offset int, op mir.Operand) error {
		v, err := e.evalOperand(f, op)
		if err != nil {
			return err
		}
		copy(buf[offset:], v.Bytes)
		return nil
	}

	switch ty.Kind {
	case typesystem.KindTuple, typesystem.KindStruct, typesystem.KindClosure:
		if len(agg.Elems) != len(ty.Fields) {
			return Value{}, &mir.InvalidBodyError{Def: f.body.Def, Msg: "aggregate arity mismatch"}
		}
		for i, op := range agg.Elems {
			if err := writeElem(ty.Fields[i].Offset, op); err != nil {
				return Value{}, err
			}
		}

	case typesystem.KindArray:
		for i, op := range agg.Elems {
			if err := writeElem(i*ty.Elem.Size(), op); err != nil {
				return Value{}, err
			}
		}

	case typesystem.KindUnion:
		// Variant selects the written field; reads reinterpret freely.
		if agg.Variant < 0 || agg.Variant >= len(ty.Fields) || len(agg.Elems) != 1 {
			return Value{}, &mir.InvalidBodyError{Def: f.body.Def, Msg: "union aggregate needs one field"}
		}
		if err := writeElem(ty.Fields[agg.Variant].Offset, agg.Elems[0]); err != nil {
			return Value{}, err
		}

	case typesystem.KindEnum:
		if agg.Variant < 0 || agg.Variant >= len(ty.Variants) {
			return Value{}, &mir.InvalidBodyError{Def: f.body.Def, Msg: "enum aggregate without variant"}
		}
		v := ty.Variants[agg.Variant]
		copy(buf, typesystem.EncodeInt(v.Discr, typesystem.EnumTagSize))
		if len(agg.Elems) != len(v.Fields) {
			return Value{}, &mir.InvalidBodyError{Def: f.body.Def, Msg: "variant arity mismatch"}
		}
		for i, op := range agg.Elems {
			if err := writeElem(v.Fields[i].Offset, op); err != nil {
				return Value{}, err
			}
		}

	default:
		return Value{}, &mir.InvalidBodyError{Def: f.body.Def, Msg: "aggregate of non-aggregate type"}
	}
	return Value{Bytes: buf, Type: ty}, nil
}
