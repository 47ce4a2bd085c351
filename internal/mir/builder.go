package mir

import (
	"github.com/cruxlang/crux/internal/typesystem"
)

// BodyBuilder assembles a Body block by block. It is the construction API
// the lowering collaborator targets; tests use it to hand-lower fixtures.
type BodyBuilder struct {
	body *Body
	cur  BlockID
}

// NewBody starts a body with the given return type and parameter types.
// Local 0 is the return place; parameters follow. Block 0 is current.
func NewBody(def typesystem.DefID, ret *typesystem.Type, params ...*typesystem.Type) *BodyBuilder {
	b := &BodyBuilder{body: &Body{Def: def, ArgCount: len(params)}}
	b.body.Locals = append(b.body.Locals, Local{Type: ret, Name: "ret"})
	for _, p := range params {
		b.body.Locals = append(b.body.Locals, Local{Type: p})
	}
	b.body.Blocks = append(b.body.Blocks, &Block{})
	return b
}

// Local declares a new temporary and returns its id.
func (b *BodyBuilder) Local(t *typesystem.Type) LocalID {
	b.body.Locals = append(b.body.Locals, Local{Type: t})
	return LocalID(len(b.body.Locals) - 1)
}

// Block appends a new empty block and returns its id without switching to it.
func (b *BodyBuilder) Block() BlockID {
	b.body.Blocks = append(b.body.Blocks, &Block{})
	return BlockID(len(b.body.Blocks) - 1)
}

// At makes the given block current for subsequent statements.
func (b *BodyBuilder) At(id BlockID) *BodyBuilder {
	b.cur = id
	return b
}

// Assign appends place = rvalue to the current block.
func (b *BodyBuilder) Assign(p Place, rv Rvalue) *BodyBuilder {
	blk := b.body.Blocks[b.cur]
	blk.Stmts = append(blk.Stmts, Statement{Place: p, Rvalue: rv})
	return b
}

// Goto terminates the current block with an unconditional jump.
func (b *BodyBuilder) Goto(target BlockID) *BodyBuilder {
	b.body.Blocks[b.cur].Term = Goto{Target: target}
	return b
}

// If terminates the current block branching on a boolean operand.
func (b *BodyBuilder) If(cond Operand, then, els BlockID) *BodyBuilder {
	b.body.Blocks[b.cur].Term = SwitchInt{Discr: cond, Values: []uint64{0}, Targets: []BlockID{els}, Otherwise: then}
	return b
}

// Switch terminates the current block with a multi-way scalar match.
func (b *BodyBuilder) Switch(discr Operand, values []uint64, targets []BlockID, otherwise BlockID) *BodyBuilder {
	b.body.Blocks[b.cur].Term = SwitchInt{Discr: discr, Values: values, Targets: targets, Otherwise: otherwise}
	return b
}

// Return terminates the current block.
func (b *BodyBuilder) Return() *BodyBuilder {
	b.body.Blocks[b.cur].Term = Return{}
	return b
}

// Unreachable terminates the current block.
func (b *BodyBuilder) Unreachable() *BodyBuilder {
	b.body.Blocks[b.cur].Term = Unreachable{}
	return b
}

// Call terminates the current block with a call whose result lands in dest.
func (b *BodyBuilder) Call(target CallTarget, args []Operand, dest Place, next BlockID) *BodyBuilder {
	b.body.Blocks[b.cur].Term = Call{Target: target, Args: args, Dest: dest, Next: next}
	return b
}

// Finish returns the assembled body.
func (b *BodyBuilder) Finish() *Body {
	return b.body
}

// Place and operand construction helpers.

// PlaceOf roots a place at a local with optional projections.
func PlaceOf(l LocalID, proj ...Projection) Place {
	return Place{Local: l, Proj: proj}
}

// Deref projects through a pointer.
func Deref() Projection { return Projection{Kind: ProjDeref} }

// FieldProj projects to aggregate field i.
func FieldProj(i int) Projection { return Projection{Kind: ProjField, Field: i} }

// IndexProj projects to the element selected by the usize held in l.
func IndexProj(l LocalID) Projection { return Projection{Kind: ProjIndex, Index: l} }

// DowncastProj views an enum place as one of its variants.
func DowncastProj(variant int) Projection { return Projection{Kind: ProjDowncast, Variant: variant} }

// Copy reads a place.
func Copy(p Place) Operand { return Operand{Kind: OpCopy, Place: p} }

// CopyL reads a bare local.
func CopyL(l LocalID) Operand { return Operand{Kind: OpCopy, Place: Place{Local: l}} }

// ConstBytes is a literal operand with explicit bytes.
func ConstBytes(b []byte, t *typesystem.Type) Operand {
	return Operand{Kind: OpConst, Bytes: b, Type: t}
}

// ConstUint is an unsigned literal of t's width.
func ConstUint(v uint64, t *typesystem.Type) Operand {
	return ConstBytes(typesystem.EncodeUint(v, t.Size()), t)
}

// ConstInt is a signed literal of t's width.
func ConstInt(v int64, t *typesystem.Type) Operand {
	return ConstBytes(typesystem.EncodeInt(v, t.Size()), t)
}

// ConstBool is a boolean literal.
func ConstBool(v bool) Operand {
	b := byte(0)
	if v {
		b = 1
	}
	return ConstBytes([]byte{b}, typesystem.Bool)
}

// ConstUsize is a usize literal.
func ConstUsize(v uint64) Operand { return ConstUint(v, typesystem.Usize) }

// ConstFloat is a float literal of the given float type.
func ConstFloat(v float64, t *typesystem.Type) Operand {
	return ConstBytes(typesystem.EncodeFloat(v, t.Size()), t)
}

// ConstUnit is the zero-sized unit literal.
func ConstUnit() Operand { return ConstBytes(nil, typesystem.Unit) }

// FnConst is a function-pointer literal carrying the function id word
// assigned by the def map.
func FnConst(fnID uint64, t *typesystem.Type) Operand {
	return ConstBytes(typesystem.EncodeUint(fnID, typesystem.PtrSize), t)
}

// LiteralRef promotes literal data (string or byte-string contents) into a
// request-long allocation and yields a pointer of the given type to it.
func LiteralRef(data []byte, ptrTy *typesystem.Type) Operand {
	return Operand{Kind: OpLiteralRef, Bytes: data, Type: ptrTy}
}

// ConstOf reads another constant's value, recursing into constant
// resolution (and its cycle guard) at evaluation time.
func ConstOf(def typesystem.DefID, subst typesystem.Substitution, t *typesystem.Type) Operand {
	return Operand{Kind: OpConstRef, Def: def, Subst: subst, Type: t}
}

// Direct builds a direct call target.
func Direct(def typesystem.DefID, subst typesystem.Substitution) CallTarget {
	return CallTarget{Kind: CallDirect, Def: def, Subst: subst}
}

// TraitCall builds a statically resolved trait-method call target.
func TraitCall(trait, method string, recv *typesystem.Type) CallTarget {
	return CallTarget{Kind: CallTraitMethod, Trait: trait, Method: method, RecvType: recv}
}

// VirtualCall builds a vtable-dispatched call target.
func VirtualCall(methodIndex int) CallTarget {
	return CallTarget{Kind: CallVirtual, MethodIndex: methodIndex}
}

// ValueCall builds a call through a first-class function value.
func ValueCall(fn Operand) CallTarget {
	return CallTarget{Kind: CallValue, Fn: fn}
}
