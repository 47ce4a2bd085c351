package defmap

import (
	"sync"

	"github.com/cruxlang/crux/internal/mir"
	"github.com/cruxlang/crux/internal/typesystem"
)

// Registry is the in-memory def map: the seam where the parsing,
// name-resolution, type-inference and lowering collaborators hand their
// results to constant evaluation. It holds constant declarations, function
// bodies (possibly generic, lowered on demand under a substitution), trait
// impl tables and vtables.
//
// The host query layer populates one Registry per module; tests populate it
// with hand-lowered fixtures.
type Registry struct {
	mu sync.RWMutex

	consts map[typesystem.DefID]*ConstDecl
	fns    map[typesystem.DefID]LowerFunc
	fnIDs  map[typesystem.DefID]uint64
	fnByID map[uint64]typesystem.DefID
	nextFn uint64

	impls map[implKey]typesystem.DefID

	vtables map[vtKey]uint64
	vtData  map[uint64]*vtable
	nextVt  uint64
}

// LowerFunc lowers a declaration's body under a substitution. It stands in
// for the AST-to-MIR lowering collaborator and may fail the way lowering
// fails: with mir.ErrIncompleteExpr or a mir.TypeMismatchError.
type LowerFunc func(subst typesystem.Substitution) (*mir.Body, error)

// ConstDecl is one constant declaration. A nil Lower marks an associated
// constant reachable only through a trait bound, which lowering cannot
// complete in constant context.
type ConstDecl struct {
	Type  *typesystem.Type
	Lower LowerFunc
}

type implKey struct {
	trait, method, recv string
}

type vtKey struct {
	recv, trait string
}

type vtable struct {
	concrete *typesystem.Type
	methods  []typesystem.DefID
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		consts:  make(map[typesystem.DefID]*ConstDecl),
		fns:     make(map[typesystem.DefID]LowerFunc),
		fnIDs:   make(map[typesystem.DefID]uint64),
		fnByID:  make(map[uint64]typesystem.DefID),
		impls:   make(map[implKey]typesystem.DefID),
		vtables: make(map[vtKey]uint64),
		vtData:  make(map[uint64]*vtable),
	}
}

// RegisterConst declares a constant with its lowering.
func (r *Registry) RegisterConst(def typesystem.DefID, ty *typesystem.Type, lower LowerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.consts[def] = &ConstDecl{Type: ty, Lower: lower}
}

// RegisterConstBody declares a constant with a fixed, non-generic body.
func (r *Registry) RegisterConstBody(def typesystem.DefID, ty *typesystem.Type, body *mir.Body) {
	r.RegisterConst(def, ty, func(typesystem.Substitution) (*mir.Body, error) { return body, nil })
}

// RegisterTraitConst declares an associated constant visible only through a
// trait bound; lowering it always fails with mir.ErrIncompleteExpr.
func (r *Registry) RegisterTraitConst(def typesystem.DefID, ty *typesystem.Type) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.consts[def] = &ConstDecl{Type: ty}
}

// RegisterFn declares a function body and returns the function-pointer word
// that identifies it in memory.
func (r *Registry) RegisterFn(def typesystem.DefID, lower LowerFunc) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fns[def] = lower
	r.nextFn++
	r.fnIDs[def] = r.nextFn
	r.fnByID[r.nextFn] = def
	return r.nextFn
}

// RegisterFnBody declares a non-generic function body.
func (r *Registry) RegisterFnBody(def typesystem.DefID, body *mir.Body) uint64 {
	return r.RegisterFn(def, func(typesystem.Substitution) (*mir.Body, error) { return body, nil })
}

// FunctionID returns the function-pointer word for a registered body.
func (r *Registry) FunctionID(def typesystem.DefID) (uint64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.fnIDs[def]
	return id, ok
}

// RegisterImpl records that recv implements trait's method with the given
// body. The receiver key is the type's canonical string, so impls may be
// registered for scalars ("u8"), named aggregates ("Succ") and trait
// objects ("dyn Foo") alike.
func (r *Registry) RegisterImpl(trait, method string, recv *typesystem.Type, def typesystem.DefID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.impls[implKey{trait: trait, method: method, recv: recv.String()}] = def
}

// RegisterVtable builds the dispatch table used when recv is unsized to
// dyn trait. Method order must match the trait's declaration order; slots
// for methods the impl omits should name the trait's default body.
func (r *Registry) RegisterVtable(recv *typesystem.Type, trait string, methods []typesystem.DefID) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextVt++
	r.vtables[vtKey{recv: recv.String(), trait: trait}] = r.nextVt
	r.vtData[r.nextVt] = &vtable{concrete: recv, methods: methods}
	return r.nextVt
}

// FunctionBody lowers a function under a substitution.
func (r *Registry) FunctionBody(def typesystem.DefID, subst typesystem.Substitution) (*mir.Body, error) {
	r.mu.RLock()
	lower, ok := r.fns[def]
	r.mu.RUnlock()
	if !ok {
		return nil, mir.ErrIncompleteExpr
	}
	return lower(subst)
}

// ConstBody lowers a constant's initializer under a substitution and checks
// the declared type against the initializer's result type.
func (r *Registry) ConstBody(def typesystem.DefID, subst typesystem.Substitution) (*mir.Body, error) {
	r.mu.RLock()
	decl, ok := r.consts[def]
	r.mu.RUnlock()
	if !ok || decl.Lower == nil {
		return nil, mir.ErrIncompleteExpr
	}
	body, err := decl.Lower(subst)
	if err != nil {
		return nil, err
	}
	actual := body.Locals[mir.ReturnLocal].Type
	if actual.String() != decl.Type.String() {
		return nil, &mir.TypeMismatchError{Expected: decl.Type, Actual: actual}
	}
	return body, nil
}

// ConstType returns a constant's declared type.
func (r *Registry) ConstType(def typesystem.DefID) (*typesystem.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	decl, ok := r.consts[def]
	if !ok {
		return nil, false
	}
	return decl.Type, true
}

// TraitImpl resolves static trait dispatch against the receiver's concrete
// type.
func (r *Registry) TraitImpl(trait, method string, recv *typesystem.Type) (typesystem.DefID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.impls[implKey{trait: trait, method: method, recv: recv.String()}]
	if !ok {
		return "", mir.ErrIncompleteExpr
	}
	return def, nil
}

// VtableFor returns the vtable id for unsizing recv to dyn trait.
func (r *Registry) VtableFor(recv *typesystem.Type, trait string) (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.vtables[vtKey{recv: recv.String(), trait: trait}]
	if !ok {
		return 0, mir.ErrIncompleteExpr
	}
	return id, nil
}

// VtableMethod returns the body in the given vtable slot.
func (r *Registry) VtableMethod(id uint64, index int) (typesystem.DefID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	vt, ok := r.vtData[id]
	if !ok || index >= len(vt.methods) {
		return "", mir.ErrIncompleteExpr
	}
	return vt.methods[index], nil
}

// VtableConcrete returns the concrete type a vtable was built for.
func (r *Registry) VtableConcrete(id uint64) (*typesystem.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	vt, ok := r.vtData[id]
	if !ok {
		return nil, false
	}
	return vt.concrete, true
}

// FunctionByID maps a function-pointer word back to its body.
func (r *Registry) FunctionByID(id uint64) (typesystem.DefID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.fnByID[id]
	return def, ok
}
