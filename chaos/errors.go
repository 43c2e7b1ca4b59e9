package chaos

import (
	"errors"
	"fmt"
)

// ErrEnabledInProduction is returned by both constructors when the final
// configuration enables fault injection while the runtime environment is
// production. There is no override.
var ErrEnabledInProduction = errors.New("fault injection must not be enabled in production")

// Error is the one failure type raised for injected faults. Catchers separate
// rehearsal noise from genuine store defects with errors.As against this
// type; string matching is never part of the contract.
type Error struct {
	FaultID   string
	Scope     Scope
	Operation string
}

func (e *Error) Error() string {
	return fmt.Sprintf("injected fault %s (scope=%s operation=%s)", e.FaultID, e.Scope, e.Operation)
}

// IsInjected reports whether err, or anything it wraps, is an injected fault.
func IsInjected(err error) bool {
	var e *Error
	return errors.As(err, &e)
}
