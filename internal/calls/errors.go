package calls

import (
	"errors"
)

var (
	// ErrInvalidRequest rejects malformed input before any state change.
	ErrInvalidRequest = errors.New("invalid call request")
	// ErrNotAllowed rejects callers blocked by privacy settings or acting
	// on a call they are not a party to.
	ErrNotAllowed = errors.New("call not allowed")
	// ErrNotFound means the call id is unknown or another transition
	// already resolved the call. Losing a delete race surfaces as this.
	ErrNotFound = errors.New("call not found")
	// ErrConflict rejects a transition that would leave a party in two
	// calls at once.
	ErrConflict = errors.New("call conflict")
)
