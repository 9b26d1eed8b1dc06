package karma

import (
	"fmt"
	"time"
)

// =============================================================================
// POLICY - Pure parameters consumed by the engine
// =============================================================================

const (
	DefaultPostLikeKarma     = 5
	DefaultCommentLikeKarma  = 1
	DefaultLeaderboardWindow = 24 * time.Hour
	DefaultLeaderboardLimit  = 5
	DefaultMaxContentLength  = 10000
)

// Policy holds the karma rules. It carries no environment logic; the config
// package fills it in.
type Policy struct {
	PostLikeKarma     int64
	CommentLikeKarma  int64
	LeaderboardWindow time.Duration
	LeaderboardLimit  int
	MaxContentLength  int
}

func DefaultPolicy() Policy {
	return Policy{
		PostLikeKarma:     DefaultPostLikeKarma,
		CommentLikeKarma:  DefaultCommentLikeKarma,
		LeaderboardWindow: DefaultLeaderboardWindow,
		LeaderboardLimit:  DefaultLeaderboardLimit,
		MaxContentLength:  DefaultMaxContentLength,
	}
}

// AmountFor returns the karma a like on the given kind grants.
func (p Policy) AmountFor(kind TargetKind) int64 {
	switch kind {
	case TargetPost:
		return p.PostLikeKarma
	case TargetComment:
		return p.CommentLikeKarma
	default:
		return 0
	}
}

func (p Policy) Validate() error {
	if p.PostLikeKarma <= 0 {
		return fmt.Errorf("post like karma must be positive, got %d", p.PostLikeKarma)
	}
	if p.CommentLikeKarma <= 0 {
		return fmt.Errorf("comment like karma must be positive, got %d", p.CommentLikeKarma)
	}
	if p.LeaderboardWindow <= 0 {
		return fmt.Errorf("leaderboard window must be positive, got %v", p.LeaderboardWindow)
	}
	if p.LeaderboardLimit <= 0 {
		return fmt.Errorf("leaderboard limit must be positive, got %d", p.LeaderboardLimit)
	}
	if p.MaxContentLength <= 0 {
		return fmt.Errorf("max content length must be positive, got %d", p.MaxContentLength)
	}
	return nil
}
