package karma

import (
	"context"
	"time"
)

// =============================================================================
// AGGREGATOR - Derived views, computed fresh from the ledger
// =============================================================================

// Aggregator answers karma questions by aggregating ledger entries and like
// rows on every call. It never reads or writes a cached total.
type Aggregator struct {
	Store Store
	Clock func() time.Time
}

func NewAggregator(store Store) *Aggregator {
	return &Aggregator{
		Store: store,
		Clock: func() time.Time { return time.Now().UTC() },
	}
}

// TotalKarma is the lifetime sum of amount over the user's entries.
func (a *Aggregator) TotalKarma(ctx context.Context, user UserID) (int64, error) {
	return a.Store.SumKarma(ctx, user)
}

// Leaderboard ranks users by karma earned in [now-window, now], highest
// first with ties broken by user id ascending. Users without entries in the
// window are absent. A non-positive limit yields an empty board.
func (a *Aggregator) Leaderboard(ctx context.Context, window time.Duration, limit int) ([]LeaderboardRow, error) {
	if limit <= 0 {
		return []LeaderboardRow{}, nil
	}
	since := a.Clock().UTC().Add(-window)
	rows, err := a.Store.SumKarmaSince(ctx, since, limit)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []LeaderboardRow{}
	}
	return rows, nil
}

func (a *Aggregator) LikeCount(ctx context.Context, target Target) (int64, error) {
	return a.Store.CountLikes(ctx, target)
}

func (a *Aggregator) PostCount(ctx context.Context, user UserID) (int64, error) {
	return a.Store.CountPostsByAuthor(ctx, user)
}

// Profile is the per-user summary served by /me.
type Profile struct {
	User      User
	PostCount int64
	Karma     int64
}

func (a *Aggregator) Profile(ctx context.Context, id UserID) (Profile, error) {
	user, err := a.Store.GetUser(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	posts, err := a.PostCount(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	karma, err := a.TotalKarma(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	return Profile{User: user, PostCount: posts, Karma: karma}, nil
}
