// Package repository persists games and their engine analyses.
//
// Both repositories upsert by id: saving a record whose id already exists
// replaces it, and ordering across ids is not guaranteed.
package repository

import (
	"context"

	"github.com/okian/irwin/internal/domain/model"
)

// GameRepository stores games keyed by game id.
type GameRepository interface {
	// ByUser returns every game stored for userID, ordered by id.
	ByUser(ctx context.Context, userID string) ([]model.Game, error)
	// Save upserts games by id.
	Save(ctx context.Context, games []model.Game) error
}

// AnalysisRepository stores analyses keyed by game id.
type AnalysisRepository interface {
	// ByUser returns every analysis stored for userID, ordered by game id.
	ByUser(ctx context.Context, userID string) ([]model.Analysis, error)
	// Save upserts analyses by game id.
	Save(ctx context.Context, analyses []model.Analysis) error
}
