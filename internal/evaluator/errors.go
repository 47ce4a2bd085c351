package evaluator

import (
	"errors"
	"fmt"

	"github.com/cruxlang/crux/internal/typesystem"
)

// Execution-tier errors: the program ran and hit a guard. These depend on
// call-site state and are never cached.

// ErrExecutionLimitExceeded reports that the step budget ran out; it is how
// unbounded loops terminate.
var ErrExecutionLimitExceeded = errors.New("execution limit exceeded")

// ErrStackOverflow reports that the call-depth budget ran out; it is how
// unbounded recursion terminates.
var ErrStackOverflow = errors.New("stack overflow")

// ErrDivisionByZero reports integer division or remainder by zero.
var ErrDivisionByZero = errors.New("division by zero")

// ErrUnreachable reports that control flow reached a terminator lowering
// proved impossible.
var ErrUnreachable = errors.New("entered unreachable code")

// UndefinedBehaviorError reports an operation the language defines no
// behavior for, such as dereferencing a null pointer or one fabricated from
// an arbitrary integer.
type UndefinedBehaviorError struct {
	Msg string
}

func (e *UndefinedBehaviorError) Error() string {
	return "undefined behavior: " + e.Msg
}

// IndexOutOfBoundsError reports indexing past an array's static length or a
// slice's runtime length metadata.
type IndexOutOfBoundsError struct {
	Index uint64
	Len   uint64
}

func (e *IndexOutOfBoundsError) Error() string {
	return fmt.Sprintf("index out of bounds: the length is %d but the index is %d", e.Len, e.Index)
}

// InFunctionError wraps an error raised while executing inside a callee
// frame with the identity of the function being executed, so a top-level
// report can show the synthetic call chain. Unwrap recursively (RootCause)
// to compare against the underlying kind.
type InFunctionError struct {
	Def typesystem.DefID
	Err error
}

func (e *InFunctionError) Error() string {
	return fmt.Sprintf("in %s: %v", e.Def, e.Err)
}

func (e *InFunctionError) Unwrap() error { return e.Err }

// RootCause strips InFunction wrapping recursively.
func RootCause(err error) error {
	for {
		var inFn *InFunctionError
		if errors.As(err, &inFn) {
			err = inFn.Err
			continue
		}
		return err
	}
}
