// Package analysis provides the per-player merge of stored and freshly
// fetched games with their engine analyses.
//
// A Cache lives for exactly one worker iteration and is never shared between
// goroutines, so it carries no locking.
package analysis

import (
	"math/rand/v2"
	"sort"

	"github.com/okian/irwin/internal/domain/model"
)

// Cache holds the games known for one player and the analyses already
// produced for them, both keyed by game id.
type Cache struct {
	userID   string
	games    map[string]model.Game
	analyses map[string]model.Analysis
	rng      *rand.Rand
}

// New creates an empty cache for userID.
func New(userID string, opts ...Option) *Cache {
	c := &Cache{
		userID:   userID,
		games:    make(map[string]model.Game),
		analyses: make(map[string]model.Analysis),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// UserID returns the player this cache belongs to.
func (c *Cache) UserID() string { return c.userID }

// AddGames inserts games under their id. The first write for an id wins:
// a later game with the same id is ignored. Returns the number inserted.
func (c *Cache) AddGames(games ...model.Game) int {
	added := 0
	for _, g := range games {
		if _, exists := c.games[g.ID]; exists {
			continue
		}
		c.games[g.ID] = g
		added++
	}
	return added
}

// AddAnalyses inserts analyses under their game id with the same
// first-write-wins rule as AddGames. An analysis may be added for a game the
// cache does not hold. Returns the number inserted.
func (c *Cache) AddAnalyses(analyses ...model.Analysis) int {
	added := 0
	for _, a := range analyses {
		if _, exists := c.analyses[a.GameID]; exists {
			continue
		}
		c.analyses[a.GameID] = a
		added++
	}
	return added
}

// Unanalysed returns the ids of games without an analysis, sorted.
func (c *Cache) Unanalysed() []string {
	ids := make([]string, 0, len(c.games))
	for id := range c.games {
		if _, ok := c.analyses[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Sample returns min(limit, len(Unanalysed())) distinct unanalysed games
// chosen uniformly at random. Each call draws a fresh sample.
func (c *Cache) Sample(limit int) []model.Game {
	ids := c.Unanalysed()
	if limit <= 0 || len(ids) == 0 {
		return nil
	}
	if limit > len(ids) {
		limit = len(ids)
	}

	// Partial Fisher-Yates: the first limit slots end up a uniform sample.
	for i := 0; i < limit; i++ {
		j := i + c.intN(len(ids)-i)
		ids[i], ids[j] = ids[j], ids[i]
	}

	sample := make([]model.Game, limit)
	for i, id := range ids[:limit] {
		sample[i] = c.games[id]
	}
	return sample
}

// Game returns the game stored under id.
func (c *Cache) Game(id string) (model.Game, bool) {
	g, ok := c.games[id]
	return g, ok
}

// Analysis returns the analysis stored under a game id.
func (c *Cache) Analysis(id string) (model.Analysis, bool) {
	a, ok := c.analyses[id]
	return a, ok
}

// Games returns every game, ordered by id.
func (c *Cache) Games() []model.Game {
	out := make([]model.Game, 0, len(c.games))
	for _, g := range c.games {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Analyses returns every analysis, ordered by game id.
func (c *Cache) Analyses() []model.Analysis {
	out := make([]model.Analysis, 0, len(c.analyses))
	for _, a := range c.analyses {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GameID < out[j].GameID })
	return out
}

// Lists exposes the full contents for persistence and reporting.
func (c *Cache) Lists() ([]model.Game, []model.Analysis) {
	return c.Games(), c.Analyses()
}

// Len returns the number of games and analyses held.
func (c *Cache) Len() (games, analyses int) {
	return len(c.games), len(c.analyses)
}

func (c *Cache) intN(n int) int {
	if c.rng != nil {
		return c.rng.IntN(n)
	}
	return rand.IntN(n) //nolint:gosec // sampling does not need a cryptographic source
}
