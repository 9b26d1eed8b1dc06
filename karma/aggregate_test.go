package karma_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/karma-engine/karma"
	"github.com/warp/karma-engine/karma/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type ledgerFixture struct {
	store      *store.TxMemory
	aggregator *karma.Aggregator
	post       karma.PostID
}

func newLedgerFixture(t *testing.T, users ...string) *ledgerFixture {
	t.Helper()
	s := store.NewTxMemory()
	for _, name := range users {
		newUser(t, s, name)
	}
	post, err := s.InsertPost(context.Background(), karma.Post{AuthorID: 1, Content: "p", CreatedAt: now})
	require.NoError(t, err)

	agg := karma.NewAggregator(s)
	agg.Clock = func() time.Time { return now }
	return &ledgerFixture{store: s, aggregator: agg, post: post.ID}
}

// grant appends an entry for recipient created ago before now.
func (f *ledgerFixture) grant(t *testing.T, recipient karma.UserID, amount int64, ago time.Duration) {
	t.Helper()
	target := karma.Target{Kind: karma.TargetPost, PostID: f.post, AuthorID: recipient}
	_, err := f.store.AppendEntry(context.Background(), karma.EntryFor(target, amount, now.Add(-ago)))
	require.NoError(t, err)
}

// =============================================================================
// TOTALS
// =============================================================================

func TestAggregator_TotalKarma(t *testing.T) {
	f := newLedgerFixture(t, "alice", "bob")
	ctx := context.Background()

	total, err := f.aggregator.TotalKarma(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, total, "no entries means zero, not an error")

	f.grant(t, 1, 5, 48*time.Hour)
	f.grant(t, 1, 1, time.Hour)
	f.grant(t, 2, 5, time.Hour)

	total, err = f.aggregator.TotalKarma(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(6), total, "lifetime total ignores the window")
}

func TestAggregator_Profile(t *testing.T) {
	f := newLedgerFixture(t, "alice")
	f.grant(t, 1, 5, time.Hour)

	p, err := f.aggregator.Profile(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "alice", p.User.Username)
	assert.Equal(t, int64(1), p.PostCount)
	assert.Equal(t, int64(5), p.Karma)

	_, err = f.aggregator.Profile(context.Background(), 99)
	assert.ErrorIs(t, err, karma.ErrUserNotFound)
}

// =============================================================================
// LEADERBOARD
// =============================================================================

func TestAggregator_Leaderboard_Window(t *testing.T) {
	// GIVEN:
	//   A: 5 at t-30h (outside), 5 at t-1h
	//   B: 11 at t-2h
	// THEN: [(B, 11), (A, 5)]

	f := newLedgerFixture(t, "alice", "bob")
	f.grant(t, 1, 5, 30*time.Hour)
	f.grant(t, 1, 5, time.Hour)
	f.grant(t, 2, 11, 2*time.Hour)

	rows, err := f.aggregator.Leaderboard(context.Background(), 24*time.Hour, 5)
	require.NoError(t, err)
	assert.Equal(t, []karma.LeaderboardRow{
		{UserID: 2, Username: "bob", Karma: 11},
		{UserID: 1, Username: "alice", Karma: 5},
	}, rows)
}

func TestAggregator_Leaderboard_WindowBoundaryInclusive(t *testing.T) {
	f := newLedgerFixture(t, "alice")
	f.grant(t, 1, 3, 24*time.Hour)

	rows, err := f.aggregator.Leaderboard(context.Background(), 24*time.Hour, 5)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(3), rows[0].Karma)
}

func TestAggregator_Leaderboard_TiesByUserID(t *testing.T) {
	f := newLedgerFixture(t, "alice", "bob", "carol")
	f.grant(t, 3, 5, time.Hour)
	f.grant(t, 1, 5, time.Hour)
	f.grant(t, 2, 5, time.Hour)

	rows, err := f.aggregator.Leaderboard(context.Background(), 24*time.Hour, 5)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, karma.UserID(1), rows[0].UserID)
	assert.Equal(t, karma.UserID(2), rows[1].UserID)
	assert.Equal(t, karma.UserID(3), rows[2].UserID)
}

func TestAggregator_Leaderboard_Limit(t *testing.T) {
	f := newLedgerFixture(t, "u1", "u2", "u3", "u4", "u5", "u6", "u7")
	for id := karma.UserID(1); id <= 7; id++ {
		f.grant(t, id, int64(id), time.Hour)
	}

	rows, err := f.aggregator.Leaderboard(context.Background(), 24*time.Hour, 5)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, karma.UserID(7), rows[0].UserID)
	assert.Equal(t, karma.UserID(3), rows[4].UserID)

	rows, err = f.aggregator.Leaderboard(context.Background(), 24*time.Hour, 0)
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestAggregator_Leaderboard_Empty(t *testing.T) {
	f := newLedgerFixture(t, "alice")
	f.grant(t, 1, 5, 72*time.Hour)

	rows, err := f.aggregator.Leaderboard(context.Background(), 24*time.Hour, 5)
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

// =============================================================================
// LEDGER CONSTRAINTS
// =============================================================================

func TestLedgerEntry_CheckConstraints(t *testing.T) {
	post := karma.PostID(1)
	comment := karma.CommentID(1)

	tests := []struct {
		name       string
		entry      karma.LedgerEntry
		constraint string
	}{
		{"zero amount", karma.LedgerEntry{RecipientID: 1, PostID: &post, Amount: 0}, karma.ConstraintAmountPositive},
		{"negative amount", karma.LedgerEntry{RecipientID: 1, PostID: &post, Amount: -5}, karma.ConstraintAmountPositive},
		{"both targets", karma.LedgerEntry{RecipientID: 1, PostID: &post, CommentID: &comment, Amount: 1}, karma.ConstraintExactlyOneTarget},
		{"no target", karma.LedgerEntry{RecipientID: 1, Amount: 1}, karma.ConstraintExactlyOneTarget},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.entry.CheckConstraints()
			var cerr *karma.LedgerConstraintError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.constraint, cerr.Constraint)
			assert.ErrorIs(t, err, karma.ErrLedgerConstraint)
		})
	}

	assert.NoError(t, karma.LedgerEntry{RecipientID: 1, CommentID: &comment, Amount: 1}.CheckConstraints())
}

func TestMemoryLedger_RejectsInvalidEntries(t *testing.T) {
	f := newLedgerFixture(t, "alice")
	_, err := f.store.AppendEntry(context.Background(), karma.LedgerEntry{RecipientID: 1, Amount: 1, CreatedAt: now})
	assert.ErrorIs(t, err, karma.ErrLedgerConstraint)

	entries, err := f.store.Entries(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
