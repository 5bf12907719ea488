// Package model contains domain models passed between layers.
package model

import "time"

// Game is one scoreable game belonging to a player. Games are immutable
// once built and are identified by an id that is unique across the system.
type Game struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	// White reports whether UserID played the white pieces; analysis is
	// done from that side's perspective.
	White       bool     `json:"white"`
	WhitePlayer string   `json:"whitePlayer"`
	BlackPlayer string   `json:"blackPlayer"`
	Moves       []string `json:"moves"` // SAN, in play order
	Emts        []int    `json:"emts,omitempty"`
}

// PlayerMoves returns the plies (0-based) that were played by the owner.
func (g Game) PlayerMoves() []int {
	start := 1
	if g.White {
		start = 0
	}
	plies := make([]int, 0, len(g.Moves)/2+1)
	for ply := start; ply < len(g.Moves); ply += 2 {
		plies = append(plies, ply)
	}
	return plies
}

// Job is a unit handed out by a source feed: one player to process.
type Job struct {
	PlayerID string
	// QueuedAt is when the player entered the queue; zero if unknown.
	QueuedAt time.Time
}
