package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/okian/irwin/internal/domain/model"
)

// MemoryGames is an in-process GameRepository.
type MemoryGames struct {
	mu    sync.RWMutex
	games map[string]model.Game
}

// NewMemoryGames creates an empty in-memory game repository.
func NewMemoryGames() *MemoryGames {
	return &MemoryGames{games: make(map[string]model.Game)}
}

// ByUser returns the user's games ordered by id.
func (r *MemoryGames) ByUser(_ context.Context, userID string) ([]model.Game, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []model.Game
	for _, g := range r.games {
		if g.UserID == userID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Save upserts games by id.
func (r *MemoryGames) Save(_ context.Context, games []model.Game) error {
	for _, g := range games {
		if g.ID == "" {
			return ErrMissing
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, g := range games {
		r.games[g.ID] = g
	}
	return nil
}

// Len returns the number of stored games.
func (r *MemoryGames) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.games)
}

// MemoryAnalyses is an in-process AnalysisRepository.
type MemoryAnalyses struct {
	mu       sync.RWMutex
	analyses map[string]model.Analysis
}

// NewMemoryAnalyses creates an empty in-memory analysis repository.
func NewMemoryAnalyses() *MemoryAnalyses {
	return &MemoryAnalyses{analyses: make(map[string]model.Analysis)}
}

// ByUser returns the user's analyses ordered by game id.
func (r *MemoryAnalyses) ByUser(_ context.Context, userID string) ([]model.Analysis, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []model.Analysis
	for _, a := range r.analyses {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GameID < out[j].GameID })
	return out, nil
}

// Save upserts analyses by game id.
func (r *MemoryAnalyses) Save(_ context.Context, analyses []model.Analysis) error {
	for _, a := range analyses {
		if a.GameID == "" {
			return ErrMissing
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range analyses {
		r.analyses[a.GameID] = a
	}
	return nil
}

// Len returns the number of stored analyses.
func (r *MemoryAnalyses) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.analyses)
}
