/*
dto.go - Data Transfer Objects for API requests and responses

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Action results

VALIDATION:
  Validation is done by the karma engine and auth service, not in DTOs.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/karma-engine/karma"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CreatePostRequest struct {
	Content string `json:"content"`
}

type CreateCommentRequest struct {
	Content  string `json:"content"`
	ParentID *int64 `json:"parent_id"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

type TokenResponse struct {
	Token string `json:"token"`
}

type UserBriefDTO struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type MeDTO struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	PostCount int64  `json:"post_count"`
	Karma     int64  `json:"karma"`
}

type PostDTO struct {
	ID           int64        `json:"id"`
	Author       UserBriefDTO `json:"author"`
	Content      string       `json:"content"`
	ContentHTML  string       `json:"content_html"`
	CreatedAt    string       `json:"created_at"`
	LikeCount    int64        `json:"like_count"`
	LikedByMe    bool         `json:"liked_by_me"`
	CommentCount int64        `json:"comment_count"`
}

type PostDetailDTO struct {
	PostDTO
	Comments []CommentDTO `json:"comments"`
}

type CommentDTO struct {
	ID          int64        `json:"id"`
	Post        int64        `json:"post"`
	Author      UserBriefDTO `json:"author"`
	Parent      *int64       `json:"parent"`
	Content     string       `json:"content"`
	ContentHTML string       `json:"content_html"`
	CreatedAt   string       `json:"created_at"`
	LikeCount   int64        `json:"like_count"`
	LikedByMe   bool         `json:"liked_by_me"`
	Children    []CommentDTO `json:"children"`
}

type CreatedDTO struct {
	ID        int64  `json:"id"`
	CreatedAt string `json:"created_at"`
}

// LikeResponse reports a like action. Repeating a like is not an error:
// Created is false and AlreadyLiked true.
type LikeResponse struct {
	Created      bool  `json:"created"`
	AlreadyLiked bool  `json:"already_liked"`
	LikeCount    int64 `json:"like_count"`
}

type LeaderboardEntryDTO struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Karma    int64  `json:"karma"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Field   string `json:"field,omitempty"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func toPostDTO(v karma.PostView) PostDTO {
	return PostDTO{
		ID:           int64(v.ID),
		Author:       UserBriefDTO{ID: int64(v.AuthorID), Username: v.AuthorName},
		Content:      v.Content,
		ContentHTML:  RenderMarkdown(v.Content),
		CreatedAt:    formatTime(v.CreatedAt),
		LikeCount:    v.LikeCount,
		LikedByMe:    v.LikedByMe,
		CommentCount: v.CommentCount,
	}
}

func toCommentDTO(c karma.CommentView, tree karma.Tree) CommentDTO {
	dto := CommentDTO{
		ID:          int64(c.ID),
		Post:        int64(c.PostID),
		Author:      UserBriefDTO{ID: int64(c.AuthorID), Username: c.AuthorName},
		Content:     c.Content,
		ContentHTML: RenderMarkdown(c.Content),
		CreatedAt:   formatTime(c.CreatedAt),
		LikeCount:   c.LikeCount,
		LikedByMe:   c.LikedByMe,
		Children:    []CommentDTO{},
	}
	if c.ParentID != nil {
		p := int64(*c.ParentID)
		dto.Parent = &p
	}
	for _, child := range tree.ChildrenOf(c.ID) {
		dto.Children = append(dto.Children, toCommentDTO(child, tree))
	}
	return dto
}

func toCommentDTOs(tree karma.Tree) []CommentDTO {
	dtos := make([]CommentDTO, 0, len(tree.Roots))
	for _, root := range tree.Roots {
		dtos = append(dtos, toCommentDTO(root, tree))
	}
	return dtos
}
