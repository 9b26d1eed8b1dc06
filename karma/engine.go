/*
engine.go - Like engine and content creation

PURPOSE:
  Orchestrates the "grant karma once" transaction and guards the
  comment-thread invariant at its single insertion point.

LIKE TRANSACTION:
  Inside ONE store transaction:
    1. Pre-check for an existing like row     -> found: ErrDuplicateLike
    2. Insert the like row                    -> unique violation: ErrDuplicateLike
    3. Append a ledger entry for the author
  ErrDuplicateLike rolls the transaction back and is reported as
  LikeResult{Granted: false}. A pre-check hit and a lost insert race are
  indistinguishable to the caller.

  The like row and its ledger entry commit together or not at all.
  There is no in-process lock: the store's uniqueness constraint is the
  only serialization point, scoped to one (user, target) pair.

SELF-LIKES:
  Allowed. Whether an author may earn karma from their own content is a
  product decision for the caller.

SEE ALSO:
  - store.go: TxStore / LikeStore contracts
  - aggregate.go: LikeCount used in results
*/
package karma

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
)

// Engine applies likes and creates content.
type Engine struct {
	Store      TxStore
	Policy     Policy
	Aggregator *Aggregator
	Clock      func() time.Time
}

func NewEngine(store TxStore, policy Policy) *Engine {
	return &Engine{
		Store:      store,
		Policy:     policy,
		Aggregator: NewAggregator(store),
		Clock:      func() time.Time { return time.Now().UTC() },
	}
}

func (e *Engine) now() time.Time {
	return e.Clock().UTC()
}

// =============================================================================
// LIKES
// =============================================================================

// GrantLikeKarma records actor's like on target and credits the target's
// author with the policy amount for its kind. Across any number of
// concurrent calls for the same pair exactly one observes Granted=true.
func (e *Engine) GrantLikeKarma(ctx context.Context, actor UserID, target Target) (LikeResult, error) {
	amount := e.Policy.AmountFor(target.Kind)
	fields := log.Fields{"actor": actor, "target": target.String(), "amount": amount}

	err := e.Store.WithTx(ctx, func(s Store) error {
		liked, err := s.HasLike(ctx, actor, target)
		if err != nil {
			return err
		}
		if liked {
			return ErrDuplicateLike
		}

		at := e.now()
		if err := s.InsertLike(ctx, actor, target, at); err != nil {
			return err
		}
		_, err = s.AppendEntry(ctx, EntryFor(target, amount, at))
		return err
	})

	switch {
	case err == nil:
		log.WithFields(fields).Debug("like granted")
		return LikeResult{Granted: true}, nil
	case errors.Is(err, ErrDuplicateLike):
		log.WithFields(fields).Debug("already liked")
		return LikeResult{Granted: false}, nil
	case IsNotFound(err):
		return LikeResult{}, err
	default:
		log.WithFields(fields).WithError(err).Error("like transaction failed")
		return LikeResult{}, &StorageError{Op: "grant like karma", Err: err}
	}
}

// LikePost likes a post and reports the post's like count afterwards.
func (e *Engine) LikePost(ctx context.Context, actor UserID, id PostID) (LikeResult, error) {
	post, err := e.Store.GetPost(ctx, id)
	if err != nil {
		return LikeResult{}, err
	}
	return e.likeAndCount(ctx, actor, PostTarget(post))
}

// LikeComment likes a comment and reports the comment's like count afterwards.
func (e *Engine) LikeComment(ctx context.Context, actor UserID, id CommentID) (LikeResult, error) {
	comment, err := e.Store.GetComment(ctx, id)
	if err != nil {
		return LikeResult{}, err
	}
	return e.likeAndCount(ctx, actor, CommentTarget(comment))
}

func (e *Engine) likeAndCount(ctx context.Context, actor UserID, target Target) (LikeResult, error) {
	res, err := e.GrantLikeKarma(ctx, actor, target)
	if err != nil {
		return LikeResult{}, err
	}
	res.LikeCount, err = e.Aggregator.LikeCount(ctx, target)
	if err != nil {
		return LikeResult{}, err
	}
	return res, nil
}

// =============================================================================
// CONTENT
// =============================================================================

func (e *Engine) CreatePost(ctx context.Context, author UserID, content string) (Post, error) {
	content, err := NormalizeContent(content, e.Policy.MaxContentLength)
	if err != nil {
		return Post{}, err
	}
	return e.Store.InsertPost(ctx, Post{
		AuthorID:  author,
		Content:   content,
		CreatedAt: e.now(),
	})
}

// CreateComment adds a comment to a post. When parentID is set, the parent
// must exist and belong to the same post; otherwise a *ValidationError on
// field "parent_id" is returned and nothing is written.
func (e *Engine) CreateComment(ctx context.Context, postID PostID, author UserID, content string, parentID *CommentID) (Comment, error) {
	post, err := e.Store.GetPost(ctx, postID)
	if err != nil {
		return Comment{}, err
	}

	content, err = NormalizeContent(content, e.Policy.MaxContentLength)
	if err != nil {
		return Comment{}, err
	}

	if parentID != nil {
		parent, err := e.Store.GetComment(ctx, *parentID)
		if errors.Is(err, ErrCommentNotFound) {
			return Comment{}, &ValidationError{Field: "parent_id", Message: "parent comment does not exist"}
		}
		if err != nil {
			return Comment{}, err
		}
		if parent.PostID != post.ID {
			return Comment{}, &ValidationError{Field: "parent_id", Message: "parent comment must belong to the same post"}
		}
	}

	return e.Store.InsertComment(ctx, Comment{
		PostID:    post.ID,
		AuthorID:  author,
		ParentID:  parentID,
		Content:   content,
		CreatedAt: e.now(),
	})
}

// PostThread loads a post and its full comment tree for viewer with two
// store reads: the post view and one bulk comment fetch.
func (e *Engine) PostThread(ctx context.Context, id PostID, viewer UserID) (PostView, Tree, error) {
	post, err := e.Store.GetPostView(ctx, id, viewer)
	if err != nil {
		return PostView{}, Tree{}, err
	}
	comments, err := e.Store.ListCommentViews(ctx, id, viewer)
	if err != nil {
		return PostView{}, Tree{}, err
	}
	tree, err := BuildTree(comments)
	if err != nil {
		return PostView{}, Tree{}, err
	}
	return post, tree, nil
}
