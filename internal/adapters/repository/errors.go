package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrClosed  = errors.New("repository closed")
	ErrEncode  = errors.New("encode record failed")
	ErrDecode  = errors.New("decode record failed")
	ErrMissing = errors.New("record has no id")
)
