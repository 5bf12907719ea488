package lichess

import "errors"

// Sentinel kinds for remote API errors.
var (
	ErrUnexpectedStatus = errors.New("unexpected status")
	ErrNoJob            = errors.New("no player queued")
	ErrDecode           = errors.New("decode response failed")
)
