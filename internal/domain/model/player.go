package model

import "fmt"

// RawGame is one game as fetched from the remote provider, before
// eligibility filtering. InitialFen and Variant are kept untyped: any
// non-null value marks the game as non-standard.
type RawGame struct {
	White      string `json:"white"`
	Black      string `json:"black"`
	PGN        string `json:"pgn"`
	Emts       []int  `json:"emts,omitempty"`
	InitialFen any    `json:"initialFen,omitempty"`
	Variant    any    `json:"variant,omitempty"`
}

// PlayerData is the payload returned by the provider for one player.
// Games is nil when the payload carried no games collection.
type PlayerData struct {
	Games map[string]RawGame `json:"games"`
}

// Validate checks the payload shape.
func (p PlayerData) Validate() error {
	if p.Games == nil {
		return fmt.Errorf("%w: missing games collection", ErrInvalidPayload)
	}
	return nil
}
