// Package leaderboard maintains named persistent rankings in sorted sets.
// Unlike trending sets, leaderboards carry no TTL: they live until cleared.
package leaderboard

import (
	"context"

	"github.com/psmlab/realtime/pkg/keys"
	"github.com/psmlab/realtime/pkg/observability"
	"github.com/psmlab/realtime/pkg/store"
)

// Entry is one ranked member with its score.
type Entry struct {
	Member string  `json:"member"`
	Score  float64 `json:"score"`
}

// Service reads and writes named leaderboards.
type Service struct {
	store *store.Client
	log   *observability.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger attaches a logger.
func WithLogger(log *observability.Logger) Option {
	return func(s *Service) { s.log = log }
}

// NewService creates a leaderboard service on top of the store client.
func NewService(st *store.Client, opts ...Option) *Service {
	s := &Service{
		store: st,
		log:   observability.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Set writes member's score, replacing any previous value.
func (s *Service) Set(ctx context.Context, name, member string, score float64) error {
	return s.store.ZAdd(ctx, keys.Leaderboard(name), member, score, 0)
}

// Bump adds delta to member's score and returns the new score. A member with
// no prior score starts from zero.
func (s *Service) Bump(ctx context.Context, name, member string, delta float64) (float64, error) {
	return s.store.ZIncrBy(ctx, keys.Leaderboard(name), member, delta, 0)
}

// Top returns up to limit members ordered by score, descending by default or
// ascending when asc is set.
func (s *Service) Top(ctx context.Context, name string, limit int, asc bool) ([]Entry, error) {
	if limit <= 0 {
		return nil, nil
	}

	var (
		zs  []store.ZEntry
		err error
	)
	if asc {
		zs, err = s.store.ZRange(ctx, keys.Leaderboard(name), 0, int64(limit-1))
	} else {
		zs, err = s.store.ZRevRange(ctx, keys.Leaderboard(name), 0, int64(limit-1))
	}
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, len(zs))
	for i, z := range zs {
		entries[i] = Entry{Member: z.Member, Score: z.Score}
	}
	return entries, nil
}

// Rank returns member's 0-based rank in the chosen direction, or ok=false if
// the member is not on the board.
func (s *Service) Rank(ctx context.Context, name, member string, asc bool) (int64, bool, error) {
	var (
		rank int64
		err  error
	)
	if asc {
		rank, err = s.store.ZRank(ctx, keys.Leaderboard(name), member)
	} else {
		rank, err = s.store.ZRevRank(ctx, keys.Leaderboard(name), member)
	}
	if store.IsNotFound(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return rank, true, nil
}

// Score returns member's score, or ok=false if the member is not on the board.
func (s *Service) Score(ctx context.Context, name, member string) (float64, bool, error) {
	score, err := s.store.ZScore(ctx, keys.Leaderboard(name), member)
	if store.IsNotFound(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return score, true, nil
}

// Remove deletes members from the board. Returns how many were actually removed.
func (s *Service) Remove(ctx context.Context, name string, members ...string) (int64, error) {
	return s.store.ZRem(ctx, keys.Leaderboard(name), members...)
}

// Size returns the number of members on the board.
func (s *Service) Size(ctx context.Context, name string) (int64, error) {
	return s.store.ZCard(ctx, keys.Leaderboard(name))
}

// Clear deletes the entire board.
func (s *Service) Clear(ctx context.Context, name string) error {
	_, err := s.store.Del(ctx, keys.Leaderboard(name))
	return err
}
