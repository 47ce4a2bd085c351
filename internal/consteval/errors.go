package consteval

import (
	"errors"
	"fmt"

	"github.com/cruxlang/crux/internal/evaluator"
	"github.com/cruxlang/crux/internal/typesystem"
)

// ConstError wraps a failure with the constant whose evaluation raised it.
// Nested constant reads stack these, so the chain reads like a path from the
// requested constant down to the one that actually failed.
type ConstError struct {
	Def typesystem.DefID
	Err error
}

func (e *ConstError) Error() string {
	return fmt.Sprintf("evaluating %s: %v", e.Def, e.Err)
}

func (e *ConstError) Unwrap() error { return e.Err }

// RootCause strips the per-constant and per-function wrapping and returns
// the innermost failure, such as one of the mir or evaluator sentinels.
func RootCause(err error) error {
	for {
		var ce *ConstError
		if errors.As(err, &ce) {
			err = ce.Err
			continue
		}
		var fe *evaluator.InFunctionError
		if errors.As(err, &fe) {
			err = fe.Err
			continue
		}
		return err
	}
}
