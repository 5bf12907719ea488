package engine

import "errors"

// Sentinel kinds for engine errors.
var (
	ErrIllegalMove = errors.New("illegal move")
	ErrEngine      = errors.New("engine failure")
	ErrClosed      = errors.New("engine closed")
)
