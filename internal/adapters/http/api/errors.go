package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrBackpressure = errors.New("queue full")
	ErrDuplicate    = errors.New("player already queued or being processed")
	ErrUnavailable  = errors.New("in-memory feed disabled")
	ErrUnhealthy    = errors.New("dependency unhealthy")
)
