package normalize

import "errors"

// Sentinel kinds for normalization errors.
var (
	ErrNoHeader   = errors.New("runner header missing")
	ErrInvalidBib = errors.New("invalid bib number")
)
