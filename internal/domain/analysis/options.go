package analysis

import "math/rand/v2"

// Option applies a configuration option to the Cache.
type Option func(*Cache)

// WithRand sets the random source used for sampling. Nil keeps the
// automatically seeded global source.
func WithRand(r *rand.Rand) Option {
	return func(c *Cache) {
		if r != nil {
			c.rng = r
		}
	}
}
