// Package engine scores games with a UCI chess engine.
//
// For every move played by the analysed side the engine evaluates the
// position before the move (the best the player could do) and the position
// after it (what the player achieved). Both are expressed from the player's
// perspective and their difference is the centipawn loss of the move.
package engine

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/notnil/chess"
	"github.com/notnil/chess/uci"

	"github.com/okian/irwin/internal/domain/model"
	"github.com/okian/irwin/pkg/logger"
)

// Default engine configuration constants.
const (
	defaultThreads = 4
	defaultHash    = 2048
	// terminalScore marks a side to move that is already checkmated. It is
	// beyond every mate-in-n value so a mating move never shows a loss.
	terminalScore = 10_000
)

// searcher evaluates a position from the side to move.
type searcher interface {
	search(pos *chess.Position, nodes int) (model.Score, error)
	close() error
}

// Engine wraps one engine process. Searches are serialised, so a worker
// should own its Engine.
type Engine struct {
	threads int
	hash    int
	logger  logger.Logger
	now     func() time.Time

	mu     sync.Mutex
	search searcher
}

// New starts the engine binary at path and configures it.
func New(path string, opts ...Option) (*Engine, error) {
	e := newEngine(opts...)

	eng, err := uci.New(path)
	if err != nil {
		return nil, fmt.Errorf("%w: start %s: %w", ErrEngine, path, err)
	}

	setup := []uci.Cmd{
		uci.CmdUCI,
		uci.CmdIsReady,
		uci.CmdSetOption{Name: "Threads", Value: strconv.Itoa(e.threads)},
		uci.CmdSetOption{Name: "Hash", Value: strconv.Itoa(e.hash)},
		uci.CmdUCINewGame,
		uci.CmdIsReady,
	}
	if err := eng.Run(setup...); err != nil {
		_ = eng.Close()
		return nil, fmt.Errorf("%w: configure: %w", ErrEngine, err)
	}

	e.search = &uciSearcher{eng: eng}
	e.logger.Info(context.Background(), "engine started",
		logger.String("path", path),
		logger.Int("threads", e.threads),
		logger.Int("hash", e.hash),
	)
	return e, nil
}

func newEngine(opts ...Option) *Engine {
	e := &Engine{
		threads: defaultThreads,
		hash:    defaultHash,
		logger:  logger.Get().Named("engine"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate analyses the moves of game played by the white or black side
// within a node budget per position. Cancellation is checked between
// searches; a search in progress runs to its node limit.
func (e *Engine) Evaluate(ctx context.Context, game model.Game, white bool, nodes int) (model.Analysis, error) {
	positions, err := replay(game.Moves)
	if err != nil {
		return model.Analysis{}, fmt.Errorf("game %s: %w", game.ID, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.search == nil {
		return model.Analysis{}, ErrClosed
	}

	scores := make(map[int]model.Score, len(positions))
	scoreAt := func(i int) (model.Score, error) {
		if s, ok := scores[i]; ok {
			return s, nil
		}
		if err := ctx.Err(); err != nil {
			return model.Score{}, err
		}
		s, err := e.evaluatePosition(positions[i], nodes)
		if err != nil {
			return model.Score{}, err
		}
		scores[i] = s
		return s, nil
	}

	side := game
	side.White = white
	plies := side.PlayerMoves()

	moves := make([]model.MoveAnalysis, 0, len(plies))
	for _, ply := range plies {
		best, err := scoreAt(ply)
		if err != nil {
			return model.Analysis{}, fmt.Errorf("game %s ply %d: %w", game.ID, ply, err)
		}
		after, err := scoreAt(ply + 1)
		if err != nil {
			return model.Analysis{}, fmt.Errorf("game %s ply %d: %w", game.ID, ply+1, err)
		}
		played := after.Negate()
		moves = append(moves, model.MoveAnalysis{
			Ply:    ply,
			Move:   game.Moves[ply],
			Best:   best,
			Played: played,
			Loss:   Loss(best, played),
		})
	}

	return model.Analysis{
		GameID:     game.ID,
		UserID:     game.UserID,
		White:      white,
		Nodes:      nodes,
		Moves:      moves,
		AnalysedAt: e.now().UTC(),
	}, nil
}

// evaluatePosition scores pos for the side to move. Finished positions are
// scored without asking the engine.
func (e *Engine) evaluatePosition(pos *chess.Position, nodes int) (model.Score, error) {
	switch pos.Status() {
	case chess.Checkmate:
		return model.Score{CP: -terminalScore}, nil
	case chess.Stalemate:
		return model.Score{}, nil
	}

	s, err := e.search.search(pos, nodes)
	if err != nil {
		return model.Score{}, fmt.Errorf("%w: %w", ErrEngine, err)
	}
	return s, nil
}

// Close stops the engine process.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.search == nil {
		return nil
	}
	err := e.search.close()
	e.search = nil
	return err
}

// Loss is the centipawn loss of playing a move scored played when the best
// move scores best, both from the mover's perspective. It is never negative.
func Loss(best, played model.Score) int {
	loss := best.Centipawns() - played.Centipawns()
	if loss < 0 {
		return 0
	}
	return loss
}

// replay plays SAN moves from the standard start and returns every position,
// including the initial and the final one.
func replay(moves []string) ([]*chess.Position, error) {
	g := chess.NewGame()
	positions := make([]*chess.Position, 0, len(moves)+1)
	positions = append(positions, g.Position())
	for i, san := range moves {
		if err := g.MoveStr(san); err != nil {
			return nil, fmt.Errorf("%w: ply %d %q: %w", ErrIllegalMove, i, san, err)
		}
		positions = append(positions, g.Position())
	}
	return positions, nil
}

type uciSearcher struct {
	eng *uci.Engine
}

func (s *uciSearcher) search(pos *chess.Position, nodes int) (model.Score, error) {
	if err := s.eng.Run(uci.CmdPosition{Position: pos}, uci.CmdGo{Nodes: nodes}); err != nil {
		return model.Score{}, err
	}
	info := s.eng.SearchResults().Info
	return model.Score{CP: info.Score.CP, Mate: info.Score.Mate}, nil
}

func (s *uciSearcher) close() error {
	return s.eng.Close()
}
