package mir

import (
	"errors"
	"fmt"

	"github.com/cruxlang/crux/internal/typesystem"
)

// Lowering-tier errors. These are structural: the input cannot be evaluated
// at all under current capabilities, they are deterministic for a given
// source, and they are safe to cache permanently.

// ErrLoop reports a dependency cycle among constant declarations.
var ErrLoop = errors.New("cyclic dependency between constants")

// ErrIncompleteExpr reports a construct lowering cannot represent in
// constant context, e.g. an associated constant reachable only through a
// trait bound with no concrete implementing type.
var ErrIncompleteExpr = errors.New("expression is incomplete in constant context")

// TypeMismatchError reports that the declared type of a constant disagrees
// with the type of its initializer.
type TypeMismatchError struct {
	Expected *typesystem.Type
	Actual   *typesystem.Type
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch: declared %s, initializer has %s", e.Expected, e.Actual)
}

// InvalidBodyError reports malformed MIR; the interpreter surfaces these
// instead of panicking.
type InvalidBodyError struct {
	Def typesystem.DefID
	Msg string
}

func (e *InvalidBodyError) Error() string {
	return fmt.Sprintf("invalid MIR in %s: %s", e.Def, e.Msg)
}
