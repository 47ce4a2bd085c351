package consteval

import (
	"errors"
	"os"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/cruxlang/crux/internal/config"
	"github.com/cruxlang/crux/internal/evaluator"
	"github.com/cruxlang/crux/internal/memory"
	"github.com/cruxlang/crux/internal/mir"
	"github.com/cruxlang/crux/internal/typesystem"
)

var log = commonlog.GetLogger("crux.consteval")

// ConstValue is the result of evaluating a constant: its scalar bytes, its
// type and a snapshot of every allocation the bytes point into. The snapshot
// makes the value self-contained, so a later evaluation can import it into
// its own memory and dereference straight through.
type ConstValue struct {
	Bytes  []byte
	Type   *typesystem.Type
	Memory memory.Snapshot
}

// Provider is the engine's view of the def map. It adds constant lowering
// on top of everything the interpreter needs.
type Provider interface {
	evaluator.Registry

	// ConstBody lowers a constant's initializer under a substitution. It
	// reports declared-vs-initializer disagreement as mir.TypeMismatchError
	// and constants lowering cannot reach as mir.ErrIncompleteExpr.
	ConstBody(def typesystem.DefID, subst typesystem.Substitution) (*mir.Body, error)

	// ConstType returns a constant's declared type.
	ConstType(def typesystem.DefID) (*typesystem.Type, bool)
}

// Engine is the entry point for constant evaluation. It is safe for
// concurrent use; per-request state (cycle guard, step budget, memory)
// lives in the request, not here.
type Engine struct {
	reg   Provider
	opts  *config.Options
	cache *cache
	store Store
}

// NewEngine creates an engine over a def map. When opts names a cache path,
// the persistent store is opened there.
func NewEngine(reg Provider, opts *config.Options) (*Engine, error) {
	e := &Engine{reg: reg, opts: opts, cache: newCache()}
	if opts.CachePath != "" {
		store, err := OpenSQLiteStore(opts.CachePath)
		if err != nil {
			return nil, err
		}
		e.store = store
	}
	return e, nil
}

// Close releases the persistent store, if any.
func (e *Engine) Close() error {
	if e.store == nil {
		return nil
	}
	return e.store.Close()
}

// Evaluate computes the value of a constant. Each call is one request: a
// fresh cycle guard and one step budget shared by every constant the request
// reaches, directly or through the interpreter.
func (e *Engine) Evaluate(def typesystem.DefID, subst typesystem.Substitution) (ConstValue, error) {
	r := &request{
		eng:    e,
		id:     uuid.New(),
		guard:  make(map[string]bool),
		budget: &evaluator.Budget{StepLimit: e.opts.StepLimit},
	}
	log.Debugf("request %s: evaluate %s", r.id, def)
	return r.resolve(def, subst)
}

// request is the state of one top-level Evaluate call. It implements
// evaluator.ConstResolver, so constant reads made by the interpreter come
// back through the same guard and budget.
type request struct {
	eng    *Engine
	id     uuid.UUID
	guard  map[string]bool
	budget *evaluator.Budget
}

func cacheKey(def typesystem.DefID, subst typesystem.Substitution) string {
	return string(def) + "@" + subst.Key()
}

func (r *request) resolve(def typesystem.DefID, subst typesystem.Substitution) (ConstValue, error) {
	key := cacheKey(def, subst)
	// The guard must be consulted before the cache: a cyclic re-entry would
	// otherwise park on its own in-flight entry.
	if r.guard[key] {
		return ConstValue{}, &ConstError{Def: def, Err: mir.ErrLoop}
	}
	nested := len(r.guard) > 0
	r.guard[key] = true
	defer delete(r.guard, key)

	return r.eng.cache.do(key, nested, func() (ConstValue, error, bool) {
		return r.compute(def, subst, key)
	})
}

// compute evaluates one constant outside the cache fast path. The returned
// bool is whether the result may stay cached: successes and lowering
// failures are deterministic facts about the program and stick, execution
// failures may depend on the request's shared budget and are retried.
func (r *request) compute(def typesystem.DefID, subst typesystem.Substitution, key string) (ConstValue, error, bool) {
	if cv, ok := r.loadStored(def, key); ok {
		return cv, nil, true
	}

	body, err := r.eng.reg.ConstBody(def, subst)
	if err != nil {
		return ConstValue{}, &ConstError{Def: def, Err: err}, true
	}

	mem := memory.New()
	ev := evaluator.New(mem, r.eng.reg, r, r.budget, r.eng.opts.MaxCallDepth)
	if r.eng.opts.Trace {
		ev.SetTracer(evaluator.NewTracer(os.Stderr))
	}

	val, err := ev.Run(body, nil)
	if err != nil {
		wrapped := &ConstError{Def: def, Err: err}
		return ConstValue{}, wrapped, isLoweringError(err)
	}

	snap, err := ev.CollectReachable(val)
	if err != nil {
		return ConstValue{}, &ConstError{Def: def, Err: err}, false
	}
	cv := ConstValue{Bytes: val.Bytes, Type: val.Type, Memory: snap}
	r.persist(key, cv)
	return cv, nil, true
}

// isLoweringError reports whether the failure, possibly raised inside a
// nested constant or callee, is a lowering-tier fact rather than a runtime
// condition.
func isLoweringError(err error) bool {
	if errors.Is(err, mir.ErrLoop) || errors.Is(err, mir.ErrIncompleteExpr) {
		return true
	}
	var tm *mir.TypeMismatchError
	var ib *mir.InvalidBodyError
	return errors.As(err, &tm) || errors.As(err, &ib)
}

func (r *request) loadStored(def typesystem.DefID, key string) (ConstValue, bool) {
	if r.eng.store == nil {
		return ConstValue{}, false
	}
	raw, ok, err := r.eng.store.Get(key)
	if err != nil {
		log.Warningf("request %s: cache read for %s: %v", r.id, key, err)
		return ConstValue{}, false
	}
	if !ok {
		return ConstValue{}, false
	}
	sc, err := decodeStored(raw)
	if err != nil {
		return ConstValue{}, false
	}
	ty, ok := r.eng.reg.ConstType(def)
	if !ok || ty.String() != sc.Type || len(sc.Bytes) != ty.Size() {
		return ConstValue{}, false
	}
	return ConstValue{Bytes: sc.Bytes, Type: ty}, true
}

// persist writes a self-contained value through to the store. Values that
// carry allocations are skipped; their addresses mean nothing to another
// process.
func (r *request) persist(key string, cv ConstValue) {
	if r.eng.store == nil || !cv.Memory.Empty() {
		return
	}
	raw, err := encodeStored(cv.Bytes, cv.Type.String())
	if err != nil {
		return
	}
	if err := r.eng.store.Put(key, raw); err != nil {
		log.Warningf("request %s: cache write for %s: %v", r.id, key, err)
	}
}

// ResolveConst serves nested constant reads from the interpreter.
func (r *request) ResolveConst(def typesystem.DefID, subst typesystem.Substitution) (evaluator.Value, memory.Snapshot, error) {
	cv, err := r.resolve(def, subst)
	if err != nil {
		return evaluator.Value{}, memory.Snapshot{}, err
	}
	return evaluator.Value{Bytes: cv.Bytes, Type: cv.Type}, cv.Memory, nil
}
