package repository

import "errors"

// Sentinel errors of the runner cache.
var (
	ErrNotFound      = errors.New("runner not found")
	ErrPersist       = errors.New("persist runner cache")
	ErrMalformed     = errors.New("malformed runner cache")
	ErrUnknownDriver = errors.New("unknown store driver")
)
