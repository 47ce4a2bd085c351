package evaluator

import (
	"bytes"

	"github.com/cruxlang/crux/internal/memory"
	"github.com/cruxlang/crux/internal/mir"
	"github.com/cruxlang/crux/internal/typesystem"
)

// Binary and unary operator evaluation. Integer arithmetic is computed in
// 64 bits and truncated to the result width on store; that truncation is the
// defined wrapping behavior, and it is also why an oversized shift like
// `1 << 8` at i8 silently becomes 0 instead of reporting a panic. Known
// deviation, kept deliberately.

func boolValue(b bool) Value {
	v := []byte{0}
	if b {
		v[0] = 1
	}
	return Value{Bytes: v, Type: typesystem.Bool}
}

func (e *Evaluator) evalBinOp(op mir.BinOp, l, r Value) (Value, error) {
	t := l.Type

	if t.Kind == typesystem.KindFloat {
		return evalFloatBinOp(op, l, r)
	}

	// Comparing references to unsized data (str/slice patterns lowered to
	// equality tests) compares the pointed-at bytes.
	if t.IsPointer() && t.Elem != nil && t.Elem.IsFat() && (op == mir.BinEq || op == mir.BinNe) {
		eq, err := e.fatPointeeEqual(l, r)
		if err != nil {
			return Value{}, err
		}
		if op == mir.BinNe {
			eq = !eq
		}
		return boolValue(eq), nil
	}

	ls, lu := typesystem.DecodeScalar(l.Bytes, t)
	rs, ru := typesystem.DecodeScalar(r.Bytes, r.Type)
	size := t.Size()

	switch op {
	case mir.BinEq:
		return boolValue(lu == ru), nil
	case mir.BinNe:
		return boolValue(lu != ru), nil
	case mir.BinLt, mir.BinLe, mir.BinGt, mir.BinGe:
		var lt, eq bool
		if t.Signed() {
			lt, eq = ls < rs, ls == rs
		} else {
			lt, eq = lu < ru, lu == ru
		}
		switch op {
		case mir.BinLt:
			return boolValue(lt), nil
		case mir.BinLe:
			return boolValue(lt || eq), nil
		case mir.BinGt:
			return boolValue(!lt && !eq), nil
		default:
			return boolValue(!lt), nil
		}
	}

	var out uint64
	if t.Signed() {
		var v int64
		switch op {
		case mir.BinAdd:
			v = ls + rs
		case mir.BinSub:
			v = ls - rs
		case mir.BinMul:
			v = ls * rs
		case mir.BinDiv:
			if rs == 0 {
				return Value{}, ErrDivisionByZero
			}
			v = ls / rs
		case mir.BinRem:
			if rs == 0 {
				return Value{}, ErrDivisionByZero
			}
			v = ls % rs
		case mir.BinBitAnd:
			v = ls & rs
		case mir.BinBitOr:
			v = ls | rs
		case mir.BinBitXor:
			v = ls ^ rs
		case mir.BinShl:
			v = ls << (ru & 63)
			if ru >= 64 {
				v = 0
			}
		case mir.BinShr:
			v = ls >> min64(ru, 63)
		default:
			return Value{}, &mir.InvalidBodyError{Msg: "unknown binary operator"}
		}
		out = uint64(v)
	} else {
		switch op {
		case mir.BinAdd:
			out = lu + ru
		case mir.BinSub:
			out = lu - ru
		case mir.BinMul:
			out = lu * ru
		case mir.BinDiv:
			if ru == 0 {
				return Value{}, ErrDivisionByZero
			}
			out = lu / ru
		case mir.BinRem:
			if ru == 0 {
				return Value{}, ErrDivisionByZero
			}
			out = lu % ru
		case mir.BinBitAnd:
			out = lu & ru
		case mir.BinBitOr:
			out = lu | ru
		case mir.BinBitXor:
			out = lu ^ ru
		case mir.BinShl:
			if ru >= 64 {
				out = 0
			} else {
				out = lu << ru
			}
		case mir.BinShr:
			if ru >= 64 {
				out = 0
			} else {
				out = lu >> ru
			}
		default:
			return Value{}, &mir.InvalidBodyError{Msg: "unknown binary operator"}
		}
	}
	return Value{Bytes: typesystem.EncodeUint(out, size), Type: t}, nil
}

func evalFloatBinOp(op mir.BinOp, l, r Value) (Value, error) {
	lv, rv := typesystem.DecodeFloat(l.Bytes), typesystem.DecodeFloat(r.Bytes)
	switch op {
	case mir.BinAdd:
		return Value{Bytes: typesystem.EncodeFloat(lv+rv, l.Type.Size()), Type: l.Type}, nil
	case mir.BinSub:
		return Value{Bytes: typesystem.EncodeFloat(lv-rv, l.Type.Size()), Type: l.Type}, nil
	case mir.BinMul:
		return Value{Bytes: typesystem.EncodeFloat(lv*rv, l.Type.Size()), Type: l.Type}, nil
	case mir.BinDiv:
		return Value{Bytes: typesystem.EncodeFloat(lv/rv, l.Type.Size()), Type: l.Type}, nil
	case mir.BinEq:
		return boolValue(lv == rv), nil
	case mir.BinNe:
		return boolValue(lv != rv), nil
	case mir.BinLt:
		return boolValue(lv < rv), nil
	case mir.BinLe:
		return boolValue(lv <= rv), nil
	case mir.BinGt:
		return boolValue(lv > rv), nil
	case mir.BinGe:
		return boolValue(lv >= rv), nil
	default:
		return Value{}, &mir.InvalidBodyError{Msg: "unsupported float operator"}
	}
}

func evalUnOp(op mir.UnOp, x Value) (Value, error) {
	t := x.Type
	switch op {
	case mir.UnNeg:
		if t.Kind == typesystem.KindFloat {
			return Value{Bytes: typesystem.EncodeFloat(-typesystem.DecodeFloat(x.Bytes), t.Size()), Type: t}, nil
		}
		s, _ := typesystem.DecodeScalar(x.Bytes, t)
		return Value{Bytes: typesystem.EncodeInt(-s, t.Size()), Type: t}, nil
	case mir.UnNot:
		if t.Kind == typesystem.KindBool {
			return boolValue(x.Bytes[0] == 0), nil
		}
		_, u := typesystem.DecodeScalar(x.Bytes, t)
		return Value{Bytes: typesystem.EncodeUint(^u, t.Size()), Type: t}, nil
	default:
		return Value{}, &mir.InvalidBodyError{Msg: "unknown unary operator"}
	}
}

// fatPointeeEqual compares the byte ranges two fat pointers designate.
func (e *Evaluator) fatPointeeEqual(l, r Value) (bool, error) {
	la, lm := splitFat(l.Bytes)
	ra, rm := splitFat(r.Bytes)
	if lm != rm {
		return false, nil
	}
	elemSize := 1
	if l.Type.Elem.Kind == typesystem.KindSlice {
		elemSize = l.Type.Elem.Elem.Size()
	}
	n := int(lm) * elemSize
	lb, err := e.mem.Read(la, n)
	if err != nil {
		return false, err
	}
	rb, err := e.mem.Read(ra, n)
	if err != nil {
		return false, err
	}
	return bytes.Equal(lb, rb), nil
}

func splitFat(b []byte) (memory.Address, uint64) {
	return memory.DecodeAddress(b[:typesystem.PtrSize]), typesystem.DecodeUint(b[typesystem.PtrSize:])
}

func min64(a uint64, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
