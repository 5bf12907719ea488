package worker

import "errors"

// Sentinel kinds for iteration failures. Process wraps one of these so Run
// can classify the outcome.
var (
	ErrFetch           = errors.New("fetch player data failed")
	ErrHydrate         = errors.New("load stored state failed")
	ErrPersistGames    = errors.New("save games failed")
	ErrPersistAnalyses = errors.New("save analyses failed")
	ErrReport          = errors.New("build report failed")
	ErrPublish         = errors.New("publish report failed")
	ErrPanic           = errors.New("iteration panicked")
)
