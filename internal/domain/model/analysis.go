package model

import "time"

// mateScore is the centipawn value given to a forced mate. Closer mates
// score higher so that losses between mating lines stay ordered.
const (
	mateScore    = 10_000
	maxMateMoves = 100
)

// Score is an engine evaluation from the perspective of one side.
// Exactly one of CP or Mate is meaningful; Mate is non-zero for forced mates
// (positive when that side mates).
type Score struct {
	CP   int `json:"cp"`
	Mate int `json:"mate,omitempty"`
}

// Centipawns folds mate scores into the centipawn scale.
func (s Score) Centipawns() int {
	if s.Mate == 0 {
		return s.CP
	}
	n := s.Mate
	if n < 0 {
		n = -n
	}
	if n > maxMateMoves {
		n = maxMateMoves
	}
	v := mateScore - n*10
	if s.Mate < 0 {
		return -v
	}
	return v
}

// Negate flips the perspective of the score.
func (s Score) Negate() Score {
	return Score{CP: -s.CP, Mate: -s.Mate}
}

// MoveAnalysis is the evaluation of one move played by the analysed player.
type MoveAnalysis struct {
	Ply    int    `json:"ply"`
	Move   string `json:"move"`
	Best   Score  `json:"best"`
	Played Score  `json:"played"`
	// Loss is the centipawn loss of the played move, never negative.
	Loss int `json:"loss"`
}

// Analysis is the engine output for one game. It shares its id with the game
// it scores and is produced once per game.
type Analysis struct {
	GameID     string         `json:"gameId"`
	UserID     string         `json:"userId"`
	White      bool           `json:"white"`
	Nodes      int            `json:"nodes"`
	Moves      []MoveAnalysis `json:"moves"`
	AnalysedAt time.Time      `json:"analysedAt"`
}

// AverageLoss returns the mean centipawn loss over analysed moves, or zero
// when no move was analysed.
func (a Analysis) AverageLoss() float64 {
	if len(a.Moves) == 0 {
		return 0
	}
	total := 0
	for _, m := range a.Moves {
		total += m.Loss
	}
	return float64(total) / float64(len(a.Moves))
}
