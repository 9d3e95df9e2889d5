package queue

import "errors"

// Sentinel kinds for enqueue errors.
var (
	ErrQueueFull = errors.New("scan queue full")
	ErrClosed    = errors.New("scan queue closed")
)
