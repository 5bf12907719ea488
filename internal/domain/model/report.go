package model

import "time"

// GameReport summarises one analysed game inside a report.
type GameReport struct {
	GameID      string  `json:"gameId"`
	Activation  int     `json:"activation"`
	AverageLoss float64 `json:"averageLoss"`
	Moves       int     `json:"moves"`
}

// Report is the suspicion report posted for a player.
type Report struct {
	ID            string       `json:"id"`
	UserID        string       `json:"userId"`
	Activation    int          `json:"activation"`
	GamesTotal    int          `json:"gamesTotal"`
	GamesAnalysed int          `json:"gamesAnalysed"`
	Games         []GameReport `json:"games"`
	GeneratedAt   time.Time    `json:"generatedAt"`
}
