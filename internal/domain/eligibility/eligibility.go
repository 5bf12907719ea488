// Package eligibility decides which fetched games become units of work.
//
// Engine evaluation assumes an orthodox game from the standard start, so any
// game that declares a starting position or a variant is rejected.
package eligibility

import (
	"sort"
	"strings"

	"github.com/okian/irwin/internal/domain/model"
)

// Admit reports whether a raw game is eligible for analysis.
func Admit(raw model.RawGame) bool {
	return raw.InitialFen == nil && raw.Variant == nil
}

// Convert builds a Game for userID from an admitted raw game.
func Convert(id, userID string, raw model.RawGame) model.Game {
	return model.Game{
		ID:          id,
		UserID:      userID,
		White:       raw.White == userID,
		WhitePlayer: raw.White,
		BlackPlayer: raw.Black,
		Moves:       strings.Fields(raw.PGN),
		Emts:        raw.Emts,
	}
}

// Games filters and converts every raw game in data. Admitted games are
// returned in id order; rejected counts the games that were dropped.
func Games(userID string, data model.PlayerData) (admitted []model.Game, rejected int) {
	ids := make([]string, 0, len(data.Games))
	for id := range data.Games {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	admitted = make([]model.Game, 0, len(ids))
	for _, id := range ids {
		raw := data.Games[id]
		if !Admit(raw) {
			rejected++
			continue
		}
		admitted = append(admitted, Convert(id, userID, raw))
	}
	return admitted, rejected
}
