// Package dedupe tracks player ids that are queued or being processed.
package dedupe

// Option applies a configuration option to InFlight.
type Option func(*InFlight)

// WithMaxSize caps the number of simultaneously claimed ids.
// If maxSize <= 0 the set is unbounded.
func WithMaxSize(maxSize int) Option {
	return func(d *InFlight) {
		d.maxSize = maxSize
	}
}
