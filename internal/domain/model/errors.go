package model

import "errors"

// Sentinel error kinds for domain payloads.
var (
	ErrInvalidPayload = errors.New("invalid player payload")
)
