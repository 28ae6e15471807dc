/*
errors.go - Error types for the payoff engine

PURPOSE:
  The engine raises exactly one kind of error: invalid argument. Malformed
  input (a due day outside 1-28, an unknown strategy, an account whose kind
  does not match its terms) fails fast. Empty or zero-valued data never
  fails; it produces zero accruals, empty plans, or an unresolved simulation.

USAGE:
  Callers translate the condition into their own messages:

    if errors.Is(err, engine.ErrInvalidArgument) {
        // 400 Bad Request
    }

SEE ALSO:
  - portfolio/errors.go: Service-level errors that wrap these
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

// ErrInvalidArgument is the root of every error the engine returns.
var ErrInvalidArgument = errors.New("invalid argument")

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidArgumentError names the offending field and value.
type InvalidArgumentError struct {
	Field  string
	Value  any
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

func (e *InvalidArgumentError) Unwrap() error {
	return ErrInvalidArgument
}

// IsInvalidArgument reports whether err stems from malformed input.
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}
