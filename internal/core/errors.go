package core

import "errors"

// Error kinds the registry and issuer return to the facade. Adapters match
// with errors.Is and map each kind to a distinct response, so "this class
// has ended", "this class is full" and "this class doesn't exist" stay
// distinguishable at the client.
var (
	ErrValidation    = errors.New("invalid input")
	ErrNotFound      = errors.New("session not found")
	ErrSessionEnded  = errors.New("session has ended")
	ErrCapacity      = errors.New("session is full")
	ErrNotInSession  = errors.New("not a session participant")
	ErrConfiguration = errors.New("media transport not configured")
)
