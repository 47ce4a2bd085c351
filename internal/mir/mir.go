package mir

import (
	"github.com/cruxlang/crux/internal/typesystem"
)

// The mid-level IR consumed by the interpreter: a graph of basic blocks over
// typed locals. Lowering has already desugared surface control flow (labeled
// loops, break-with-value, early return, ?/try blocks, pattern matches) into
// this graph; the interpreter only ever follows block terminators, which is
// what makes its termination accounting uniform.

// LocalID indexes a body's locals. Local 0 is the return place; locals
// 1..ArgCount are the parameters.
type LocalID int

// ReturnLocal is the designated return place of every body.
const ReturnLocal LocalID = 0

// BlockID indexes a body's basic blocks. Execution starts at block 0.
type BlockID int

// Local is one typed slot in a frame.
type Local struct {
	Type *typesystem.Type
	Name string // debug only
}

// Body is one lowered function or constant initializer.
type Body struct {
	Def      typesystem.DefID
	Locals   []Local
	ArgCount int
	Blocks   []*Block
}

// Block is a straight-line statement list ending in exactly one terminator.
type Block struct {
	Stmts []Statement
	Term  Terminator
}

// Statement is an assignment; storage markers are not modeled.
type Statement struct {
	Place  Place
	Rvalue Rvalue
}

// ProjKind discriminates place projections.
type ProjKind int

const (
	ProjDeref ProjKind = iota
	ProjField          // field offset within struct/tuple/closure/variant
	ProjIndex          // array/slice index held in a local
	ProjDowncast       // enum variant view; following ProjField picks variant fields
)

// Projection is one step of a place path.
type Projection struct {
	Kind    ProjKind
	Field   int     // ProjField
	Index   LocalID // ProjIndex
	Variant int     // ProjDowncast
}

// Place is a path rooted at a local.
type Place struct {
	Local LocalID
	Proj  []Projection
}

// OperandKind discriminates operands.
type OperandKind int

const (
	OpCopy       OperandKind = iota // read a place
	OpConst                         // literal bytes
	OpConstRef                      // value of another constant; recurses into consteval
	OpLiteralRef                    // &literal: promote Bytes into request-long memory
)

// Operand produces a value.
type Operand struct {
	Kind  OperandKind
	Place Place
	Bytes []byte
	Type  *typesystem.Type // OpConst / OpConstRef: the value's type
	Def   typesystem.DefID // OpConstRef
	Subst typesystem.Substitution
}

// BinOp enumerates binary operators.
type BinOp int

const (
	BinAdd BinOp = iota
	BinSub
	BinMul
	BinDiv
	BinRem
	BinBitAnd
	BinBitOr
	BinBitXor
	BinShl
	BinShr
	BinEq
	BinNe
	BinLt
	BinLe
	BinGt
	BinGe
)

// UnOp enumerates unary operators.
type UnOp int

const (
	UnNeg UnOp = iota
	UnNot
)

// CastKind enumerates the cast forms lowering emits.
type CastKind int

const (
	CastNumeric    CastKind = iota // int/uint/char/bool -> int/uint, truncate or extend
	CastEnumToInt                  // read the discriminant value
	CastPtrToPtr                   // reinterpret; metadata preserved verbatim
	CastPtrToInt                   // address word as integer
	CastIntToPtr                   // integer as raw address
	CastUnsizeSlice                // &[T; N] -> &[T]: attach element count metadata
	CastUnsizeDyn                  // &T -> &dyn Trait: attach vtable metadata
)

// Rvalue computes a value to store into a place.
type Rvalue interface{ rvalue() }

// Use forwards an operand unchanged.
type Use struct{ X Operand }

// Ref takes the address of a place. For unsized places the produced pointer
// is fat, carrying the metadata the place was resolved with.
type Ref struct{ Place Place }

// BinaryOp applies Op to two scalars of the same numeric type.
type BinaryOp struct {
	Op   BinOp
	L, R Operand
}

// UnaryOp applies Op to one scalar.
type UnaryOp struct {
	Op UnOp
	X  Operand
}

// Cast converts X to type To under the given kind.
type Cast struct {
	Kind CastKind
	X    Operand
	To   *typesystem.Type
}

// Aggregate builds a tuple, struct, array, closure environment, or enum
// variant (Variant >= 0 selects the variant; -1 otherwise).
type Aggregate struct {
	Type    *typesystem.Type
	Variant int
	Elems   []Operand
}

// Discriminant reads an enum place's tag value.
type Discriminant struct{ Place Place }

// Len reads the runtime length of a slice/str place (from fat-pointer
// metadata) or the static length of an array place.
type Len struct{ Place Place }

func (Use) rvalue()          {}
func (Ref) rvalue()          {}
func (BinaryOp) rvalue()     {}
func (UnaryOp) rvalue()      {}
func (Cast) rvalue()         {}
func (Aggregate) rvalue()    {}
func (Discriminant) rvalue() {}
func (Len) rvalue()          {}

// CallKind discriminates the four dispatch forms of a Call terminator.
type CallKind int

const (
	CallDirect      CallKind = iota // known body, possibly generic
	CallTraitMethod                 // statically resolved against the receiver's concrete type
	CallVirtual                     // through the receiver fat pointer's vtable
	CallValue                       // first-class fn pointer or closure value
)

// CallTarget carries the dispatch information resolved by the trait-solving
// collaborator. It is plain data: the interpreter performs lookups, never
// inference.
type CallTarget struct {
	Kind CallKind

	Def   typesystem.DefID // CallDirect
	Subst typesystem.Substitution

	Trait    string // CallTraitMethod
	Method   string
	RecvType *typesystem.Type // concrete receiver type chosen by trait solving

	MethodIndex int // CallVirtual: slot in the receiver's vtable

	Fn Operand // CallValue
}

// Terminator ends a block.
type Terminator interface{ term() }

// Goto jumps unconditionally.
type Goto struct{ Target BlockID }

// SwitchInt selects a successor by matching a scalar against Values, falling
// through to Otherwise. Lowering uses it for bool branches, integer matches
// and enum discriminant matches alike.
type SwitchInt struct {
	Discr     Operand
	Values    []uint64
	Targets   []BlockID
	Otherwise BlockID
}

// Return ends the body; the result is whatever was written to local 0.
type Return struct{}

// Unreachable marks control flow lowering proved impossible.
type Unreachable struct{}

// Call invokes a callee and stores its result into Dest before continuing
// at Next.
type Call struct {
	Target CallTarget
	Args   []Operand
	Dest   Place
	Next   BlockID
}

func (Goto) term()        {}
func (SwitchInt) term()   {}
func (Return) term()      {}
func (Unreachable) term() {}
func (Call) term()        {}
