package evaluator

import (
	"fmt"

	"github.com/cruxlang/crux/internal/memory"
	"github.com/cruxlang/crux/internal/mir"
	"github.com/cruxlang/crux/internal/typesystem"
)

// resolvedPlace is an addressed location plus its type. For unsized places
// (reached by dereferencing a fat pointer) meta carries the runtime length
// or vtable word that sized the place.
type resolvedPlace struct {
	addr    memory.Address
	ty      *typesystem.Type
	meta    uint64
	hasMeta bool
}

// resolvePlace walks a place path: field offsets, indices, dereferences and
// enum-variant downcasts. Pattern matching has no logic here; lowering
// compiled it into these projections plus switch terminators.
func (e *Evaluator) resolvePlace(f *frame, p mir.Place) (resolvedPlace, error) {
	if int(p.Local) >= len(f.locals) {
		return resolvedPlace{}, &mir.InvalidBodyError{Def: f.body.Def, Msg: "place roots at missing local"}
	}
	r := resolvedPlace{addr: f.locals[p.Local], ty: f.body.Locals[p.Local].Type}
	variant := -1

	for _, proj := range p.Proj {
		switch proj.Kind {
		case mir.ProjField:
			var fld typesystem.Field
			if r.ty.Kind == typesystem.KindEnum {
				if variant < 0 || proj.Field >= len(r.ty.Variants[variant].Fields) {
					return resolvedPlace{}, &mir.InvalidBodyError{Def: f.body.Def, Msg: "field access without variant downcast"}
				}
				fld = r.ty.Variants[variant].Fields[proj.Field]
			} else {
				if proj.Field >= len(r.ty.Fields) {
					return resolvedPlace{}, &mir.InvalidBodyError{Def: f.body.Def, Msg: "field index out of range"}
				}
				fld = r.ty.Fields[proj.Field]
			}
			r.addr = r.addr.Add(fld.Offset)
			r.ty = fld.Type
			variant = -1

		case mir.ProjDowncast:
			if r.ty.Kind != typesystem.KindEnum || proj.Variant >= len(r.ty.Variants) {
				return resolvedPlace{}, &mir.InvalidBodyError{Def: f.body.Def, Msg: "downcast of non-enum place"}
			}
			variant = proj.Variant

		case mir.ProjDeref:
			if !r.ty.IsPointer() {
				return resolvedPlace{}, &mir.InvalidBodyError{Def: f.body.Def, Msg: "deref of non-pointer place"}
			}
			elem := r.ty.Elem
			size := typesystem.PtrSize
			if elem.IsFat() {
				size = 2 * typesystem.PtrSize
			}
			ptr, err := e.mem.Read(r.addr, size)
			if err != nil {
				return resolvedPlace{}, err
			}
			r.addr = memory.DecodeAddress(ptr[:typesystem.PtrSize])
			if r.addr.Alloc < memory.RawAllocBase {
				return resolvedPlace{}, &UndefinedBehaviorError{Msg: "dereference of null or fabricated pointer"}
			}
			if elem.IsFat() {
				r.meta = typesystem.DecodeUint(ptr[typesystem.PtrSize:])
				r.hasMeta = true
			} else {
				r.hasMeta = false
			}
			r.ty = elem

		case mir.ProjIndex:
			idxBytes, err := e.mem.Read(f.locals[proj.Index], typesystem.Usize.Size())
			if err != nil {
				return resolvedPlace{}, err
			}
			idx := typesystem.DecodeUint(idxBytes)

			var n uint64
			var elem *typesystem.Type
			switch r.ty.Kind {
			case typesystem.KindArray:
				n, elem = uint64(r.ty.Len), r.ty.Elem
			case typesystem.KindSlice:
				if !r.hasMeta {
					return resolvedPlace{}, &mir.InvalidBodyError{Def: f.body.Def, Msg: "slice place without length metadata"}
				}
				// Sized by the runtime metadata, not the static type.
				n, elem = r.meta, r.ty.Elem
			case typesystem.KindStr:
				if !r.hasMeta {
					return resolvedPlace{}, &mir.InvalidBodyError{Def: f.body.Def, Msg: "str place without length metadata"}
				}
				n, elem = r.meta, typesystem.U8
			default:
				return resolvedPlace{}, &mir.InvalidBodyError{Def: f.body.Def, Msg: "index into non-indexable place"}
			}
			if idx >= n {
				return resolvedPlace{}, &IndexOutOfBoundsError{Index: idx, Len: n}
			}
			r.addr = r.addr.Add(int(idx) * elem.Size())
			r.ty = elem
			r.hasMeta = false

		default:
			return resolvedPlace{}, &mir.InvalidBodyError{Def: f.body.Def, Msg: "unknown projection"}
		}
	}
	return r, nil
}

// readPlace loads size(type) bytes at the place's resolved address.
func (e *Evaluator) readPlace(f *frame, p mir.Place) (Value, error) {
	r, err := e.resolvePlace(f, p)
	if err != nil {
		return Value{}, err
	}
	if !r.ty.Sized() {
		return Value{}, &mir.InvalidBodyError{Def: f.body.Def, Msg: "copy of unsized place"}
	}
	bytes, err := e.mem.Read(r.addr, r.ty.Size())
	if err != nil {
		return Value{}, err
	}
	return Value{Bytes: bytes, Type: r.ty}, nil
}

// writePlace stores bytes of exactly the place's width.
func (e *Evaluator) writePlace(f *frame, p mir.Place, bytes []byte) error {
	r, err := e.resolvePlace(f, p)
	if err != nil {
		return err
	}
	return e.mem.Write(r.addr, bytes)
}

// evalOperand produces the operand's value.
func (e *Evaluator) evalOperand(f *frame, op mir.Operand) (Value, error) {
	switch op.Kind {
	case mir.OpCopy:
		return e.readPlace(f, op.Place)

	case mir.OpConst:
		return Value{Bytes: op.Bytes, Type: op.Type}, nil

	case mir.OpLiteralRef:
		// "Static" promotion: the literal's backing allocation lives for the
		// whole request, so the reference stays valid after the frame pops.
		addr := e.mem.AllocateBytes(op.Bytes)
		if op.Type.Elem != nil && op.Type.Elem.IsFat() {
			n := len(op.Bytes)
			if op.Type.Elem.Kind == typesystem.KindSlice {
				n = len(op.Bytes) / op.Type.Elem.Elem.Size()
			}
			bytes := make([]byte, 2*typesystem.PtrSize)
			copy(bytes, addr.Encode())
			copy(bytes[typesystem.PtrSize:], typesystem.EncodeUint(uint64(n), typesystem.PtrSize))
			return Value{Bytes: bytes, Type: op.Type}, nil
		}
		return Value{Bytes: addr.Encode(), Type: op.Type}, nil

	case mir.OpConstRef:
		if e.consts == nil {
			return Value{}, &mir.InvalidBodyError{Def: f.body.Def, Msg: "constant reference without resolver"}
		}
		if e.tracer != nil {
			e.tracer.Note(fmt.Sprintf("const %s%s", op.Def, op.Subst.Key()))
		}
		val, snap, err := e.consts.ResolveConst(op.Def, op.Subst)
		if err != nil {
			return Value{}, err
		}
		// Whatever memory the constant's value points into is promoted into
		// this request.
		e.mem.Import(snap)
		return val, nil

	default:
		return Value{}, &mir.InvalidBodyError{Def: f.body.Def, Msg: "unknown operand"}
	}
}
