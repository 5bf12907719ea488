// Package report turns a player's analysed games into a suspicion report.
//
// Each analysed game gets an activation between 0 and 100 from its average
// centipawn loss: a logistic curve centred on 25 centipawns, so accurate
// play activates strongly. The player's activation is the mean of their
// three most activated games.
package report

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/okian/irwin/internal/domain/analysis"
	"github.com/okian/irwin/internal/domain/model"
)

const (
	// acplMidpoint is the average loss at which a game activates 50.
	acplMidpoint = 25.0
	// acplSpread controls how quickly activation falls off around the midpoint.
	acplSpread = 8.0
	// topGames is how many games contribute to the player activation.
	topGames = 3
)

// ErrUserMismatch is returned when the cache belongs to another player.
var ErrUserMismatch = errors.New("cache belongs to another player")

// Builder builds reports. The zero value is not usable; use New.
type Builder struct {
	now   func() time.Time
	newID func() string
}

// Option applies a configuration option to the Builder.
type Option func(*Builder)

// WithClock overrides the time stamped on reports.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		if now != nil {
			b.now = now
		}
	}
}

// WithIDs overrides the report id generator.
func WithIDs(newID func() string) Option {
	return func(b *Builder) {
		if newID != nil {
			b.newID = newID
		}
	}
}

// New creates a Builder.
func New(opts ...Option) *Builder {
	b := &Builder{
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build reads the cache and returns the report for userID. Only analyses of
// games held by the cache are reported. The cache is not modified.
func (b *Builder) Build(_ context.Context, userID string, cache *analysis.Cache) (model.Report, error) {
	if cache.UserID() != userID {
		return model.Report{}, fmt.Errorf("%w: %s != %s", ErrUserMismatch, cache.UserID(), userID)
	}

	games := cache.Games()
	reports := make([]model.GameReport, 0, len(games))
	for _, g := range games {
		a, ok := cache.Analysis(g.ID)
		if !ok {
			continue
		}
		loss := a.AverageLoss()
		reports = append(reports, model.GameReport{
			GameID:      a.GameID,
			Activation:  GameActivation(a),
			AverageLoss: math.Round(loss*100) / 100,
			Moves:       len(a.Moves),
		})
	}

	sort.Slice(reports, func(i, j int) bool {
		if reports[i].Activation != reports[j].Activation {
			return reports[i].Activation > reports[j].Activation
		}
		return reports[i].GameID < reports[j].GameID
	})

	return model.Report{
		ID:            b.newID(),
		UserID:        userID,
		Activation:    PlayerActivation(reports),
		GamesTotal:    len(games),
		GamesAnalysed: len(reports),
		Games:         reports,
		GeneratedAt:   b.now().UTC(),
	}, nil
}

// GameActivation maps a game's average centipawn loss to 0..100. A game
// without analysed moves does not activate.
func GameActivation(a model.Analysis) int {
	if len(a.Moves) == 0 {
		return 0
	}
	x := (a.AverageLoss() - acplMidpoint) / acplSpread
	return int(math.Round(100 / (1 + math.Exp(x))))
}

// PlayerActivation is the rounded mean activation of the top games. games
// must be sorted by activation, highest first.
func PlayerActivation(games []model.GameReport) int {
	n := min(len(games), topGames)
	if n == 0 {
		return 0
	}
	total := 0
	for _, g := range games[:n] {
		total += g.Activation
	}
	return int(math.Round(float64(total) / float64(n)))
}
