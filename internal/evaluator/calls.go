package evaluator

import (
	"github.com/cruxlang/crux/internal/memory"
	"github.com/cruxlang/crux/internal/mir"
	"github.com/cruxlang/crux/internal/typesystem"
)

// call dispatches one Call terminator. The four kinds are resolved from
// data the lowering/trait-solving collaborators already supplied; nothing
// here re-runs inference.
func (e *Evaluator) call(f *frame, target mir.CallTarget, argOps []mir.Operand) (Value, error) {
	args := make([]Value, len(argOps))
	for i, op := range argOps {
		v, err := e.evalOperand(f, op)
		if err != nil {
			return Value{}, err
		}
		args[i] = v
	}

	var def typesystem.DefID
	var subst typesystem.Substitution

	switch target.Kind {
	case mir.CallDirect:
		def, subst = target.Def, target.Subst

	case mir.CallTraitMethod:
		// Static trait dispatch: monomorphized against the receiver's
		// concrete type. The receiver type doubles as the substitution so
		// generic impls can recover their parameters from it.
		d, err := e.reg.TraitImpl(target.Trait, target.Method, target.RecvType)
		if err != nil {
			return Value{}, err
		}
		def = d
		subst = typesystem.Substitution{typesystem.TypeArg(target.RecvType)}

	case mir.CallVirtual:
		// Dynamic dispatch: the receiver is a fat &dyn pointer carrying a
		// vtable id; the callee sees a thin pointer to the concrete data.
		if len(args) == 0 || len(args[0].Bytes) != 2*typesystem.PtrSize {
			return Value{}, &mir.InvalidBodyError{Def: f.body.Def, Msg: "virtual call without trait-object receiver"}
		}
		addr, vt := splitFat(args[0].Bytes)
		d, err := e.reg.VtableMethod(vt, target.MethodIndex)
		if err != nil {
			return Value{}, err
		}
		def = d
		concrete, ok := e.reg.VtableConcrete(vt)
		if !ok {
			return Value{}, &mir.InvalidBodyError{Def: f.body.Def, Msg: "unknown vtable"}
		}
		args[0] = Value{Bytes: addr.Encode(), Type: typesystem.NewRef(concrete)}
		subst = typesystem.Substitution{typesystem.TypeArg(concrete)}

	case mir.CallValue:
		fn, err := e.evalOperand(f, target.Fn)
		if err != nil {
			return Value{}, err
		}
		switch fn.Type.Kind {
		case typesystem.KindFnPtr:
			id := typesystem.DecodeUint(fn.Bytes)
			d, ok := e.reg.FunctionByID(id)
			if !ok {
				return Value{}, &mir.InvalidBodyError{Def: f.body.Def, Msg: "call through unknown function pointer"}
			}
			def = d
		case typesystem.KindClosure:
			// The captured-environment aggregate is the implicit receiver.
			def = fn.Type.Def
			args = append([]Value{fn}, args...)
		default:
			return Value{}, &mir.InvalidBodyError{Def: f.body.Def, Msg: "call of non-callable value"}
		}

	default:
		return Value{}, &mir.InvalidBodyError{Def: f.body.Def, Msg: "unknown call kind"}
	}

	body, err := e.reg.FunctionBody(def, subst)
	if err != nil {
		return Value{}, &InFunctionError{Def: def, Err: err}
	}

	if e.tracer != nil {
		e.tracer.Call(def, e.depth)
	}
	log.Debugf("call %s depth=%d", def, e.depth)

	ret, err := e.runBody(body, args)
	if err != nil {
		return Value{}, &InFunctionError{Def: def, Err: err}
	}
	return ret, nil
}

// CollectReachable walks a value's type structure and gathers every
// allocation its pointers transitively reference. The result is the memory
// that must be promoted out of the request along with the value.
func (e *Evaluator) CollectReachable(v Value) (memory.Snapshot, error) {
	ids := make(map[memory.AllocID]bool)
	if err := e.collect(v.Bytes, v.Type, ids); err != nil {
		return memory.Snapshot{}, err
	}
	return e.mem.Capture(ids), nil
}

func (e *Evaluator) collect(b []byte, t *typesystem.Type, ids map[memory.AllocID]bool) error {
	switch t.Kind {
	case typesystem.KindRef, typesystem.KindRawPtr:
		addr := memory.DecodeAddress(b[:typesystem.PtrSize])
		if addr.Alloc < memory.RawAllocBase || ids[addr.Alloc] {
			return nil
		}
		if e.mem.AllocSize(addr.Alloc) < 0 {
			// Raw address fabricated from an integer cast; nothing to carry.
			return nil
		}
		ids[addr.Alloc] = true
		elem := t.Elem
		switch elem.Kind {
		case typesystem.KindStr:
			return nil
		case typesystem.KindSlice:
			n := typesystem.DecodeUint(b[typesystem.PtrSize:])
			for i := uint64(0); i < n; i++ {
				eb, err := e.mem.Read(addr.Add(int(i)*elem.Elem.Size()), elem.Elem.Size())
				if err != nil {
					return err
				}
				if err := e.collect(eb, elem.Elem, ids); err != nil {
					return err
				}
			}
			return nil
		case typesystem.KindDyn:
			vt := typesystem.DecodeUint(b[typesystem.PtrSize:])
			concrete, ok := e.reg.VtableConcrete(vt)
			if !ok {
				return nil
			}
			eb, err := e.mem.Read(addr, concrete.Size())
			if err != nil {
				return err
			}
			return e.collect(eb, concrete, ids)
		default:
			eb, err := e.mem.Read(addr, elem.Size())
			if err != nil {
				return err
			}
			return e.collect(eb, elem, ids)
		}

	case typesystem.KindTuple, typesystem.KindStruct, typesystem.KindClosure:
		for _, fld := range t.Fields {
			if err := e.collect(b[fld.Offset:fld.Offset+fld.Type.Size()], fld.Type, ids); err != nil {
				return err
			}
		}
		return nil

	case typesystem.KindArray:
		es := t.Elem.Size()
		for i := 0; i < t.Len; i++ {
			if err := e.collect(b[i*es:(i+1)*es], t.Elem, ids); err != nil {
				return err
			}
		}
		return nil

	case typesystem.KindEnum:
		tag := typesystem.DecodeInt(b[:typesystem.EnumTagSize])
		vi, ok := t.VariantByDiscr(tag)
		if !ok {
			return nil
		}
		for _, fld := range t.Variants[vi].Fields {
			if err := e.collect(b[fld.Offset:fld.Offset+fld.Type.Size()], fld.Type, ids); err != nil {
				return err
			}
		}
		return nil
	}
	// Scalars and unions carry no traceable pointers.
	return nil
}
