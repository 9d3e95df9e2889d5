package source

import "errors"

// Sentinel kinds for page source errors.
var (
	ErrNotFound = errors.New("runner page not found")
	ErrUpstream = errors.New("upstream page source error")
)
