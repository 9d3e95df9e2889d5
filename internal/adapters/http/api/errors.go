package api

import (
	"errors"
	"fmt"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrInvalidLimit = errors.New("invalid limit")
	ErrBackpressure = errors.New("backpressure")
)

// wrapKind tags err with the operation and the API error kind.
func wrapKind(op string, kind, err error) error {
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}
