package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted     = errors.New("service not started")
	ErrNoSource       = errors.New("no page source configured")
	ErrEmptyBatch     = errors.New("no valid bib in batch")
	ErrBatchNotFound  = errors.New("scan batch not found")
	ErrUnknownView    = errors.New("unknown analytics view")
	ErrMissingSection = errors.New("section is required")
	ErrNoBibsFile     = errors.New("no bibs file configured")
)
