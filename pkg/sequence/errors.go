package sequence

import (
	"errors"
	"fmt"
)

// ErrPlanUnsupported is returned when a provider cannot express an
// operation against its source.
var ErrPlanUnsupported = errors.New("operation not supported by sequence provider")

// PlanError reports an operation rejected by a provider.
type PlanError struct {
	// Op is the rejected operation
	Op OpKind

	// Provider is the name of the provider that rejected it
	Provider string

	// Err is the provider's reason, usually wrapping ErrPlanUnsupported
	Err error
}

// Error implements the error interface.
func (e *PlanError) Error() string {
	return fmt.Sprintf("%s: cannot apply %s: %v", e.Provider, e.Op, e.Err)
}

// Unwrap returns the underlying cause for error unwrapping.
func (e *PlanError) Unwrap() error {
	return e.Err
}

// Unsupported wraps ErrPlanUnsupported with a reason.
func Unsupported(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrPlanUnsupported, fmt.Sprintf(format, args...))
}
