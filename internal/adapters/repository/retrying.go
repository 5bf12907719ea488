package repository

import (
	"context"
	"errors"

	"github.com/okian/irwin/internal/domain/model"
	"github.com/okian/irwin/pkg/retry"
)

// RetryingGames retries a GameRepository with backoff. Both operations are
// idempotent by id.
type RetryingGames struct {
	next   GameRepository
	policy retry.Policy
}

// NewRetryingGames wraps next with policy.
func NewRetryingGames(next GameRepository, policy retry.Policy) *RetryingGames {
	return &RetryingGames{next: next, policy: policy}
}

// ByUser reads with retries.
func (r *RetryingGames) ByUser(ctx context.Context, userID string) ([]model.Game, error) {
	return retry.Value(ctx, r.policy, "games_by_user", func(ctx context.Context) ([]model.Game, error) {
		games, err := r.next.ByUser(ctx, userID)
		return games, classify(err)
	})
}

// Save writes with retries.
func (r *RetryingGames) Save(ctx context.Context, games []model.Game) error {
	return retry.Do(ctx, r.policy, "save_games", func(ctx context.Context) error {
		return classify(r.next.Save(ctx, games))
	})
}

// RetryingAnalyses retries an AnalysisRepository with backoff.
type RetryingAnalyses struct {
	next   AnalysisRepository
	policy retry.Policy
}

// NewRetryingAnalyses wraps next with policy.
func NewRetryingAnalyses(next AnalysisRepository, policy retry.Policy) *RetryingAnalyses {
	return &RetryingAnalyses{next: next, policy: policy}
}

// ByUser reads with retries.
func (r *RetryingAnalyses) ByUser(ctx context.Context, userID string) ([]model.Analysis, error) {
	return retry.Value(ctx, r.policy, "analyses_by_user", func(ctx context.Context) ([]model.Analysis, error) {
		analyses, err := r.next.ByUser(ctx, userID)
		return analyses, classify(err)
	})
}

// Save writes with retries.
func (r *RetryingAnalyses) Save(ctx context.Context, analyses []model.Analysis) error {
	return retry.Do(ctx, r.policy, "save_analyses", func(ctx context.Context) error {
		return classify(r.next.Save(ctx, analyses))
	})
}

// classify marks errors that another attempt cannot fix as permanent.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrClosed), errors.Is(err, ErrMissing),
		errors.Is(err, ErrEncode), errors.Is(err, ErrDecode),
		errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return retry.Permanent(err)
	default:
		return err
	}
}
