package evaluator

import (
	"github.com/tliron/commonlog"

	"github.com/cruxlang/crux/internal/memory"
	"github.com/cruxlang/crux/internal/mir"
	"github.com/cruxlang/crux/internal/typesystem"
)

var log = commonlog.GetLogger("crux.evaluator")

// Value is a scalar produced by evaluation: raw little-endian bytes tagged
// with their type. Its length always equals the type's size.
type Value struct {
	Bytes []byte
	Type  *typesystem.Type
}

// Registry is the evaluator's view of the def map: lowered bodies, trait
// impl tables, vtables and function ids, all resolved data supplied by the
// lowering and trait-solving collaborators.
type Registry interface {
	// FunctionBody returns the lowered body of a function under a
	// substitution. It may fail with lowering-tier errors.
	FunctionBody(def typesystem.DefID, subst typesystem.Substitution) (*mir.Body, error)

	// TraitImpl resolves a statically dispatched trait method against the
	// receiver's concrete type. Missing impl is mir.ErrIncompleteExpr.
	TraitImpl(trait, method string, recv *typesystem.Type) (typesystem.DefID, error)

	// VtableFor returns the vtable id registered for a concrete type and
	// trait, used by unsizing casts.
	VtableFor(concrete *typesystem.Type, trait string) (uint64, error)

	// VtableMethod returns the body id in the given vtable slot.
	VtableMethod(id uint64, index int) (typesystem.DefID, error)

	// VtableConcrete returns the concrete type a vtable was built for.
	VtableConcrete(id uint64) (*typesystem.Type, bool)

	// FunctionByID maps a function-pointer word back to its body id.
	FunctionByID(id uint64) (typesystem.DefID, bool)
}

// ConstResolver re-enters constant resolution for the value of another
// constant (associated const, const used in an initializer). The cycle
// guard lives on the other side of this interface.
type ConstResolver interface {
	ResolveConst(def typesystem.DefID, subst typesystem.Substitution) (Value, memory.Snapshot, error)
}

// Budget is the global step counter of one top-level evaluation request.
// Nested constant resolutions share it, so the whole call tree of a request
// is bounded by one limit.
type Budget struct {
	Steps     int
	StepLimit int
}

// Evaluator executes MIR bodies against one request's memory. It is
// request-local; nothing here is shared across concurrent requests.
type Evaluator struct {
	mem    *memory.Memory
	reg    Registry
	consts ConstResolver
	budget *Budget

	depth    int
	maxDepth int

	tracer *Tracer
}

// New creates an evaluator over request-local memory. consts may be nil for
// bodies that reference no other constants.
func New(mem *memory.Memory, reg Registry, consts ConstResolver, budget *Budget, maxDepth int) *Evaluator {
	return &Evaluator{mem: mem, reg: reg, consts: consts, budget: budget, maxDepth: maxDepth}
}

// SetTracer attaches an optional human-readable execution trace.
func (e *Evaluator) SetTracer(t *Tracer) { e.tracer = t }

// Memory exposes the request memory, for promoting results.
func (e *Evaluator) Memory() *memory.Memory { return e.mem }

// frame is the execution state of one function invocation: one allocation
// per local. Locals are dropped with the frame; the allocations stay in the
// request arena (use-after-pop is a borrow-check concern handled upstream).
type frame struct {
	body   *mir.Body
	locals []memory.Address
}

// Run executes a body with the given arguments and returns the scalar
// written to the return place. It is the entry used for the top-level
// constant body; errors from nested calls arrive wrapped in InFunctionError.
func (e *Evaluator) Run(body *mir.Body, args []Value) (Value, error) {
	return e.runBody(body, args)
}

func (e *Evaluator) runBody(body *mir.Body, args []Value) (Value, error) {
	if e.depth >= e.maxDepth {
		return Value{}, ErrStackOverflow
	}
	e.depth++
	defer func() { e.depth-- }()

	if len(args) != body.ArgCount {
		return Value{}, &mir.InvalidBodyError{Def: body.Def, Msg: "argument count mismatch"}
	}

	f := &frame{body: body, locals: make([]memory.Address, len(body.Locals))}
	for i, l := range body.Locals {
		if !l.Type.Sized() {
			return Value{}, &mir.InvalidBodyError{Def: body.Def, Msg: "unsized local"}
		}
		f.locals[i] = e.mem.Allocate(l.Type.Size(), l.Type.Align())
	}
	for i, a := range args {
		if err := e.mem.Write(f.locals[i+1], a.Bytes); err != nil {
			return Value{}, err
		}
	}

	block := mir.BlockID(0)
	for {
		if int(block) >= len(body.Blocks) {
			return Value{}, &mir.InvalidBodyError{Def: body.Def, Msg: "jump to missing block"}
		}
		blk := body.Blocks[block]

		// One step per statement plus one for the terminator, charged at
		// block entry so limit failures are deterministic for a given input.
		e.budget.Steps += len(blk.Stmts) + 1
		if e.budget.Steps > e.budget.StepLimit {
			return Value{}, ErrExecutionLimitExceeded
		}

		for i := range blk.Stmts {
			if err := e.execStmt(f, &blk.Stmts[i]); err != nil {
				return Value{}, err
			}
		}

		switch t := blk.Term.(type) {
		case mir.Goto:
			block = t.Target

		case mir.SwitchInt:
			discr, err := e.evalOperand(f, t.Discr)
			if err != nil {
				return Value{}, err
			}
			v := typesystem.DecodeUint(discr.Bytes)
			block = t.Otherwise
			for i, val := range t.Values {
				if v == val {
					block = t.Targets[i]
					break
				}
			}

		case mir.Return:
			ret := body.Locals[mir.ReturnLocal].Type
			bytes, err := e.mem.Read(f.locals[mir.ReturnLocal], ret.Size())
			if err != nil {
				return Value{}, err
			}
			return Value{Bytes: bytes, Type: ret}, nil

		case mir.Unreachable:
			return Value{}, ErrUnreachable

		case mir.Call:
			val, err := e.call(f, t.Target, t.Args)
			if err != nil {
				return Value{}, err
			}
			if err := e.writePlace(f, t.Dest, val.Bytes); err != nil {
				return Value{}, err
			}
			block = t.Next

		case nil:
			return Value{}, &mir.InvalidBodyError{Def: body.Def, Msg: "block without terminator"}

		default:
			return Value{}, &mir.InvalidBodyError{Def: body.Def, Msg: "unknown terminator"}
		}
	}
}

func (e *Evaluator) execStmt(f *frame, s *mir.Statement) error {
	val, err := e.evalRvalue(f, s.Rvalue)
	if err != nil {
		return err
	}
	return e.writePlace(f, s.Place, val.Bytes)
}
