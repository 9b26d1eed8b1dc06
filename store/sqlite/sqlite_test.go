package sqlite

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/karma-engine/karma"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var now = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

type fixture struct {
	alice, bob karma.User
	post       karma.Post
	comment    karma.Comment
}

func seed(t *testing.T, s *Store) fixture {
	t.Helper()
	ctx := context.Background()

	alice, err := s.CreateUser(ctx, "alice", "hash")
	require.NoError(t, err)
	bob, err := s.CreateUser(ctx, "bob", "hash")
	require.NoError(t, err)

	post, err := s.InsertPost(ctx, karma.Post{AuthorID: bob.ID, Content: "post", CreatedAt: now})
	require.NoError(t, err)
	comment, err := s.InsertComment(ctx, karma.Comment{PostID: post.ID, AuthorID: alice.ID, Content: "comment", CreatedAt: now})
	require.NoError(t, err)

	return fixture{alice: alice, bob: bob, post: post, comment: comment}
}

// =============================================================================
// LEDGER CONSTRAINTS
// =============================================================================

func TestLedger_CheckConstraints(t *testing.T) {
	s := newTestStore(t)
	f := seed(t, s)
	ctx := context.Background()

	post := f.post.ID
	comment := f.comment.ID

	tests := []struct {
		name       string
		entry      karma.LedgerEntry
		constraint string
	}{
		{"both targets", karma.LedgerEntry{RecipientID: f.bob.ID, PostID: &post, CommentID: &comment, Amount: 1, CreatedAt: now}, karma.ConstraintExactlyOneTarget},
		{"no target", karma.LedgerEntry{RecipientID: f.bob.ID, Amount: 1, CreatedAt: now}, karma.ConstraintExactlyOneTarget},
		{"zero amount", karma.LedgerEntry{RecipientID: f.bob.ID, PostID: &post, Amount: 0, CreatedAt: now}, karma.ConstraintAmountPositive},
		{"negative amount", karma.LedgerEntry{RecipientID: f.bob.ID, PostID: &post, Amount: -3, CreatedAt: now}, karma.ConstraintAmountPositive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.AppendEntry(ctx, tt.entry)
			var cerr *karma.LedgerConstraintError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.constraint, cerr.Constraint)
		})
	}

	entries, err := s.Entries(ctx, f.bob.ID)
	require.NoError(t, err)
	assert.Empty(t, entries, "rejected entries must not be stored")
}

func TestLedger_AppendAndRead(t *testing.T) {
	s := newTestStore(t)
	f := seed(t, s)
	ctx := context.Background()

	at := now.Add(123456789 * time.Nanosecond)
	e, err := s.AppendEntry(ctx, karma.EntryFor(karma.CommentTarget(f.comment), 1, at))
	require.NoError(t, err)
	assert.NotZero(t, e.ID)

	entries, err := s.Entries(ctx, f.alice.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, at, entries[0].CreatedAt, "timestamps round-trip at nanosecond precision")
	require.NotNil(t, entries[0].CommentID)
	assert.Equal(t, f.comment.ID, *entries[0].CommentID)
	assert.Nil(t, entries[0].PostID)
}

func TestLedger_UpdateRejected(t *testing.T) {
	s := newTestStore(t)
	f := seed(t, s)
	ctx := context.Background()

	_, err := s.AppendEntry(ctx, karma.EntryFor(karma.PostTarget(f.post), 5, now))
	require.NoError(t, err)

	_, err = s.db.ExecContext(ctx, `UPDATE karma_ledger SET amount = 500`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "append-only")

	total, err := s.SumKarma(ctx, f.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
}

func TestLedger_MissingRecipient(t *testing.T) {
	s := newTestStore(t)
	f := seed(t, s)

	target := karma.Target{Kind: karma.TargetPost, PostID: f.post.ID, AuthorID: 999}
	_, err := s.AppendEntry(context.Background(), karma.EntryFor(target, 5, now))
	assert.ErrorIs(t, err, karma.ErrNotFound)
}

func TestLedger_SumKarmaSince(t *testing.T) {
	// GIVEN:
	//   alice: 5 at t-30h, 5 at t-1h
	//   bob:   11 at t-2h
	// THEN: since t-24h -> [(bob, 11), (alice, 5)]

	s := newTestStore(t)
	f := seed(t, s)
	ctx := context.Background()

	grant := func(user karma.UserID, amount int64, ago time.Duration) {
		target := karma.Target{Kind: karma.TargetPost, PostID: f.post.ID, AuthorID: user}
		_, err := s.AppendEntry(ctx, karma.EntryFor(target, amount, now.Add(-ago)))
		require.NoError(t, err)
	}
	grant(f.alice.ID, 5, 30*time.Hour)
	grant(f.alice.ID, 5, time.Hour)
	grant(f.bob.ID, 11, 2*time.Hour)

	rows, err := s.SumKarmaSince(ctx, now.Add(-24*time.Hour), 5)
	require.NoError(t, err)
	assert.Equal(t, []karma.LeaderboardRow{
		{UserID: f.bob.ID, Username: "bob", Karma: 11},
		{UserID: f.alice.ID, Username: "alice", Karma: 5},
	}, rows)

	rows, err = s.SumKarmaSince(ctx, now.Add(-24*time.Hour), 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, f.bob.ID, rows[0].UserID)

	rows, err = s.SumKarmaSince(ctx, now.Add(time.Hour), 5)
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)

	total, err := s.SumKarma(ctx, f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), total)
}

func TestLedger_SumKarmaSince_TiesByUserID(t *testing.T) {
	s := newTestStore(t)
	f := seed(t, s)
	ctx := context.Background()

	for _, user := range []karma.UserID{f.bob.ID, f.alice.ID} {
		target := karma.Target{Kind: karma.TargetPost, PostID: f.post.ID, AuthorID: user}
		_, err := s.AppendEntry(ctx, karma.EntryFor(target, 5, now))
		require.NoError(t, err)
	}

	rows, err := s.SumKarmaSince(ctx, now.Add(-time.Hour), 5)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, f.alice.ID, rows[0].UserID)
	assert.Equal(t, f.bob.ID, rows[1].UserID)
}

// =============================================================================
// LIKES
// =============================================================================

func TestLikes_UniquePerPair(t *testing.T) {
	s := newTestStore(t)
	f := seed(t, s)
	ctx := context.Background()

	for _, target := range []karma.Target{karma.PostTarget(f.post), karma.CommentTarget(f.comment)} {
		require.NoError(t, s.InsertLike(ctx, f.alice.ID, target, now))

		err := s.InsertLike(ctx, f.alice.ID, target, now)
		assert.ErrorIs(t, err, karma.ErrDuplicateLike, target.String())

		require.NoError(t, s.InsertLike(ctx, f.bob.ID, target, now))

		liked, err := s.HasLike(ctx, f.alice.ID, target)
		require.NoError(t, err)
		assert.True(t, liked)

		n, err := s.CountLikes(ctx, target)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	}
}

func TestLikes_MissingTarget(t *testing.T) {
	s := newTestStore(t)
	f := seed(t, s)
	ctx := context.Background()

	err := s.InsertLike(ctx, f.alice.ID, karma.Target{Kind: karma.TargetPost, PostID: 404}, now)
	assert.ErrorIs(t, err, karma.ErrPostNotFound)

	err = s.InsertLike(ctx, f.alice.ID, karma.Target{Kind: karma.TargetComment, CommentID: 404}, now)
	assert.ErrorIs(t, err, karma.ErrCommentNotFound)
}

func TestWithTx_RollbackOnError(t *testing.T) {
	s := newTestStore(t)
	f := seed(t, s)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx karma.Store) error {
		if err := tx.InsertLike(ctx, f.alice.ID, karma.PostTarget(f.post), now); err != nil {
			return err
		}
		// Invalid entry aborts the whole transaction.
		_, err := tx.AppendEntry(ctx, karma.LedgerEntry{RecipientID: f.bob.ID, Amount: 5, CreatedAt: now})
		return err
	})
	assert.ErrorIs(t, err, karma.ErrLedgerConstraint)

	liked, err := s.HasLike(ctx, f.alice.ID, karma.PostTarget(f.post))
	require.NoError(t, err)
	assert.False(t, liked)
}

// =============================================================================
// USERS AND CONTENT
// =============================================================================

func TestUsers_UsernameTaken(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "alice", "hash")
	require.NoError(t, err)

	_, err = s.CreateUser(ctx, "alice", "other")
	assert.ErrorIs(t, err, karma.ErrUsernameTaken)

	got, err := s.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "hash", got.PasswordHash)

	_, err = s.GetUser(ctx, 42)
	assert.ErrorIs(t, err, karma.ErrUserNotFound)
}

func TestContent_Views(t *testing.T) {
	s := newTestStore(t)
	f := seed(t, s)
	ctx := context.Background()

	later, err := s.InsertPost(ctx, karma.Post{AuthorID: f.alice.ID, Content: "later", CreatedAt: now.Add(time.Minute)})
	require.NoError(t, err)
	reply, err := s.InsertComment(ctx, karma.Comment{
		PostID: f.post.ID, AuthorID: f.bob.ID, ParentID: &f.comment.ID, Content: "reply", CreatedAt: now.Add(time.Second),
	})
	require.NoError(t, err)

	require.NoError(t, s.InsertLike(ctx, f.alice.ID, karma.PostTarget(f.post), now))
	require.NoError(t, s.InsertLike(ctx, f.bob.ID, karma.CommentTarget(f.comment), now))

	posts, err := s.ListPostViews(ctx, f.alice.ID)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, later.ID, posts[0].ID, "newest first")
	assert.Equal(t, f.post.ID, posts[1].ID)
	assert.Equal(t, "bob", posts[1].AuthorName)
	assert.Equal(t, int64(1), posts[1].LikeCount)
	assert.Equal(t, int64(2), posts[1].CommentCount)
	assert.True(t, posts[1].LikedByMe)
	assert.False(t, posts[0].LikedByMe)

	view, err := s.GetPostView(ctx, f.post.ID, 0)
	require.NoError(t, err)
	assert.False(t, view.LikedByMe, "anonymous viewer never likes")

	_, err = s.GetPostView(ctx, 404, 0)
	assert.ErrorIs(t, err, karma.ErrPostNotFound)

	comments, err := s.ListCommentViews(ctx, f.post.ID, f.bob.ID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, f.comment.ID, comments[0].ID)
	assert.Nil(t, comments[0].ParentID)
	assert.True(t, comments[0].LikedByMe)
	assert.Equal(t, int64(1), comments[0].LikeCount)
	assert.Equal(t, reply.ID, comments[1].ID)
	require.NotNil(t, comments[1].ParentID)
	assert.Equal(t, f.comment.ID, *comments[1].ParentID)

	tree, err := karma.BuildTree(comments)
	require.NoError(t, err)
	require.Len(t, tree.Roots, 1)
	assert.Len(t, tree.ChildrenOf(f.comment.ID), 1)

	n, err := s.CountPostsByAuthor(ctx, f.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestContent_CommentOrderTiesByID(t *testing.T) {
	s := newTestStore(t)
	f := seed(t, s)
	ctx := context.Background()

	var ids []karma.CommentID
	ids = append(ids, f.comment.ID)
	for i := 0; i < 3; i++ {
		c, err := s.InsertComment(ctx, karma.Comment{PostID: f.post.ID, AuthorID: f.bob.ID, Content: "same instant", CreatedAt: now})
		require.NoError(t, err)
		ids = append(ids, c.ID)
	}

	comments, err := s.ListCommentViews(ctx, f.post.ID, 0)
	require.NoError(t, err)
	var got []karma.CommentID
	for _, c := range comments {
		got = append(got, c.ID)
	}
	assert.Equal(t, ids, got)
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestEngine_ConcurrentLikes_FileDatabase(t *testing.T) {
	// GIVEN: A file database shared by a connection pool
	// WHEN: 20 goroutines like the same post as the same user
	// THEN: Exactly one like row and one ledger entry exist

	store, err := New(filepath.Join(t.TempDir(), "karma.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	f := seed(t, store)
	ctx := context.Background()
	engine := karma.NewEngine(store, karma.DefaultPolicy())

	var granted atomic.Int64
	var g errgroup.Group
	for i := 0; i < 20; i++ {
		g.Go(func() error {
			res, err := engine.LikePost(ctx, f.alice.ID, f.post.ID)
			if err != nil {
				return err
			}
			if res.Granted {
				granted.Add(1)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int64(1), granted.Load())

	n, err := store.CountLikes(ctx, karma.PostTarget(f.post))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	total, err := store.SumKarma(ctx, f.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
}

func TestFormatTime_SortsChronologically(t *testing.T) {
	a := formatTime(time.Date(2025, 1, 1, 9, 0, 0, 5, time.UTC))
	b := formatTime(time.Date(2025, 1, 1, 10, 0, 0, 0, time.FixedZone("X", 3600)))
	c := formatTime(time.Date(2025, 1, 1, 9, 30, 0, 0, time.UTC))
	assert.Equal(t, "2025-01-01T09:00:00.000000000Z", b, "normalized to UTC")
	assert.Less(t, b, a)
	assert.Less(t, a, c)
}

func TestRevokedTokens(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	revoked, err := s.IsTokenRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, s.RevokeToken(ctx, "jti-1", time.Now().Add(time.Hour)))
	require.NoError(t, s.RevokeToken(ctx, "jti-1", time.Now().Add(time.Hour)), "revoking twice is a no-op")

	revoked, err = s.IsTokenRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	// Expired revocations are pruned on the next revoke.
	require.NoError(t, s.RevokeToken(ctx, "jti-old", time.Now().Add(-time.Hour)))
	require.NoError(t, s.RevokeToken(ctx, "jti-2", time.Now().Add(time.Hour)))
	revoked, err = s.IsTokenRevoked(ctx, "jti-old")
	require.NoError(t, err)
	assert.False(t, revoked)
}
