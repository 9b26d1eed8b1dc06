/*
Package karma provides the karma ledger engine for the community backend.

PURPOSE:
  Users publish posts, reply in comment threads and like each other's
  content. Every successful like credits the liked content's author with
  karma. This package owns the rules for that exchange: the append-only
  ledger, the once-per-pair like guarantee, the derived aggregations and
  the comment-tree materialization.

KEY CONCEPTS IN THIS FILE (types.go):
  - IDs: Type-safe identifiers for users, posts, comments, ledger entries
  - Post / Comment: User content
  - PostLike / CommentLike: One row per (user, target), never updated
  - LedgerEntry: An immutable karma grant naming its cause
  - Target: What a like points at (post or comment) and who owns it

DESIGN PRINCIPLES:
  1. Ledger over counters: there is no "karma" column anywhere
  2. Uniqueness constraint as the lock: the store serializes likes per pair
  3. Type safety: a PostID cannot be passed where a CommentID is expected

SEE ALSO:
  - engine.go: Like engine and content creation
  - aggregate.go: Totals and leaderboard
  - tree.go: Comment tree builder
  - store.go: Persistence interfaces
*/
package karma

import (
	"fmt"
	"time"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID int64
type PostID int64
type CommentID int64
type EntryID int64

// =============================================================================
// CONTENT
// =============================================================================

// User is the minimal identity record the engine needs.
type User struct {
	ID           UserID
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Post is immutable after creation.
type Post struct {
	ID        PostID
	AuthorID  UserID
	Content   string
	CreatedAt time.Time
}

// Comment belongs to exactly one post. ParentID is nil for root comments.
// A reply always shares its parent's PostID.
type Comment struct {
	ID        CommentID
	PostID    PostID
	AuthorID  UserID
	ParentID  *CommentID
	Content   string
	CreatedAt time.Time
}

// IsRoot reports whether the comment starts a thread.
func (c Comment) IsRoot() bool { return c.ParentID == nil }

// =============================================================================
// LIKES
// =============================================================================

type PostLike struct {
	UserID    UserID
	PostID    PostID
	CreatedAt time.Time
}

type CommentLike struct {
	UserID    UserID
	CommentID CommentID
	CreatedAt time.Time
}

// =============================================================================
// TARGET - What a like points at
// =============================================================================

type TargetKind string

const (
	TargetPost    TargetKind = "post"
	TargetComment TargetKind = "comment"
)

// Target identifies likeable content and its author (the karma recipient).
// Exactly one of PostID / CommentID is meaningful, selected by Kind.
type Target struct {
	Kind      TargetKind
	PostID    PostID
	CommentID CommentID
	AuthorID  UserID
}

func PostTarget(p Post) Target {
	return Target{Kind: TargetPost, PostID: p.ID, AuthorID: p.AuthorID}
}

func CommentTarget(c Comment) Target {
	return Target{Kind: TargetComment, CommentID: c.ID, AuthorID: c.AuthorID}
}

func (t Target) String() string {
	switch t.Kind {
	case TargetPost:
		return fmt.Sprintf("post:%d", t.PostID)
	case TargetComment:
		return fmt.Sprintf("comment:%d", t.CommentID)
	default:
		return "unknown"
	}
}

// =============================================================================
// LEDGER ENTRY - Immutable karma grant
// =============================================================================

// LedgerEntry records one karma grant.
//
// INVARIANTS (enforced by the store, not by this struct):
//   - Amount > 0
//   - Exactly one of PostID / CommentID is set
//   - Never updated, never deleted
type LedgerEntry struct {
	ID          EntryID
	RecipientID UserID
	PostID      *PostID
	CommentID   *CommentID
	Amount      int64
	CreatedAt   time.Time
}

// EntryFor builds the ledger entry a successful like on target produces.
func EntryFor(target Target, amount int64, at time.Time) LedgerEntry {
	e := LedgerEntry{
		RecipientID: target.AuthorID,
		Amount:      amount,
		CreatedAt:   at,
	}
	switch target.Kind {
	case TargetPost:
		id := target.PostID
		e.PostID = &id
	case TargetComment:
		id := target.CommentID
		e.CommentID = &id
	}
	return e
}

// CheckConstraints reports the first ledger invariant the entry violates.
// Stores without declarative CHECK support call this before writing.
func (e LedgerEntry) CheckConstraints() error {
	if e.Amount <= 0 {
		return &LedgerConstraintError{Constraint: ConstraintAmountPositive}
	}
	if (e.PostID == nil) == (e.CommentID == nil) {
		return &LedgerConstraintError{Constraint: ConstraintExactlyOneTarget}
	}
	return nil
}

// =============================================================================
// RESULTS
// =============================================================================

// LikeResult is the outcome of a like action. A duplicate like is a normal
// result (Granted=false), not an error.
type LikeResult struct {
	Granted   bool
	LikeCount int64
}

// LeaderboardRow is one ranked user within the window.
type LeaderboardRow struct {
	UserID   UserID
	Username string
	Karma    int64
}

// PostView is a post annotated for rendering.
type PostView struct {
	Post
	AuthorName   string
	LikeCount    int64
	CommentCount int64
	LikedByMe    bool
}

// CommentView is a comment annotated with everything rendering needs, so a
// tree built from a slice of views requires no further lookups.
type CommentView struct {
	Comment
	AuthorName string
	LikeCount  int64
	LikedByMe  bool
}
