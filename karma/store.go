/*
store.go - Persistence interfaces for content, likes and the karma ledger

PURPOSE:
  Defines the boundary between the engine and the database. The engine
  never touches SQL; it relies on three store capabilities:
    1. Atomic multi-row transactions (TxStore.WithTx)
    2. A uniqueness constraint on (user, target) likes, reported as
       ErrDuplicateLike at insert time
    3. Sum / count / grouped-sum queries over the ledger

APPEND-ONLY CONTRACT:
  LedgerStore has exactly one write method, AppendEntry. There is no
  Update or Delete. Totals are always aggregated from entries.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite with declarative constraints
  - karma/store/memory.go: In-memory for tests and local development

SEE ALSO:
  - engine.go: Uses TxStore for the like transaction
  - aggregate.go: Uses LedgerStore / LikeStore for derived views
*/
package karma

import (
	"context"
	"time"
)

// =============================================================================
// USERS
// =============================================================================

type UserStore interface {
	// CreateUser fails with ErrUsernameTaken if the username exists.
	CreateUser(ctx context.Context, username, passwordHash string) (User, error)
	GetUser(ctx context.Context, id UserID) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
}

// =============================================================================
// CONTENT
// =============================================================================

type ContentStore interface {
	InsertPost(ctx context.Context, p Post) (Post, error)
	GetPost(ctx context.Context, id PostID) (Post, error)
	CountPostsByAuthor(ctx context.Context, author UserID) (int64, error)

	// ListPostViews returns all posts newest first, annotated for viewer.
	// A zero viewer is anonymous (LikedByMe is always false).
	ListPostViews(ctx context.Context, viewer UserID) ([]PostView, error)
	GetPostView(ctx context.Context, id PostID, viewer UserID) (PostView, error)

	InsertComment(ctx context.Context, c Comment) (Comment, error)
	GetComment(ctx context.Context, id CommentID) (Comment, error)

	// ListCommentViews returns every comment of the post in one fetch,
	// ordered by (created_at, id) ascending and annotated for viewer.
	ListCommentViews(ctx context.Context, post PostID, viewer UserID) ([]CommentView, error)
}

// =============================================================================
// LIKES - Uniqueness guard
// =============================================================================

type LikeStore interface {
	HasLike(ctx context.Context, user UserID, target Target) (bool, error)

	// InsertLike returns ErrDuplicateLike if a row for (user, target) exists,
	// including when a concurrent transaction inserted it first.
	InsertLike(ctx context.Context, user UserID, target Target, at time.Time) error

	CountLikes(ctx context.Context, target Target) (int64, error)
}

// =============================================================================
// LEDGER - Append-only
// =============================================================================

type LedgerStore interface {
	// AppendEntry persists an entry. Returns ErrLedgerConstraint (wrapped in
	// *LedgerConstraintError) when a CHECK constraint rejects it.
	AppendEntry(ctx context.Context, e LedgerEntry) (LedgerEntry, error)

	// Entries returns a recipient's entries in creation order.
	Entries(ctx context.Context, recipient UserID) ([]LedgerEntry, error)

	// SumKarma is the sum of amount over a recipient's entries, 0 if none.
	SumKarma(ctx context.Context, recipient UserID) (int64, error)

	// SumKarmaSince groups entries with created_at >= since by recipient,
	// ordered by sum DESC then user id ASC, truncated to limit.
	SumKarmaSince(ctx context.Context, since time.Time, limit int) ([]LeaderboardRow, error)
}

// =============================================================================
// COMPOSITE + TRANSACTIONAL
// =============================================================================

type Store interface {
	UserStore
	ContentStore
	LikeStore
	LedgerStore
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
