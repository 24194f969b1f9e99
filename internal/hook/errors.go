package hook

import "errors"

var (
	// ErrInvariantViolation signals that the contract between the host pool
	// and a hook was broken (e.g. after-swap observed without a prior
	// before-swap snapshot). The enclosing operation must abort; callers
	// never recover from it silently.
	ErrInvariantViolation = errors.New("hook invariant violation")

	// ErrInvalidRequest signals a caller mistake (wrong order state, wrong
	// owner, re-entrant call). The request is rejected with no state change.
	ErrInvalidRequest = errors.New("invalid hook request")
)
