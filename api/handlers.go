/*
handlers.go - HTTP API handlers for the community backend

ENDPOINTS:
  Auth:
    POST   /api/auth/signup            Create account, returns token
    POST   /api/auth/login             Returns token
    POST   /api/auth/logout            Revoke the presented token (204)
    GET    /api/me                     Profile with post_count and karma

  Posts:
    GET    /api/posts                  List posts (newest first)
    POST   /api/posts                  Create post
    GET    /api/posts/{id}             Post with nested comment tree
    POST   /api/posts/{id}/comments    Create comment (optional parent_id)
    POST   /api/posts/{id}/like        Like post

  Comments:
    POST   /api/comments/{id}/like     Like comment

  Leaderboard:
    GET    /api/leaderboard            Top users by karma in the window

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors (with "field"), invalid input
  - 401: Missing or bad credentials
  - 404: Resource not found
  - 409: Username taken
  - 500: Internal errors

  Liking twice is not an error: 200 with already_liked=true.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
	"github.com/warp/karma-engine/auth"
	"github.com/warp/karma-engine/karma"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine     *karma.Engine
	Aggregator *karma.Aggregator
	Auth       *auth.Service
	Metrics    *Metrics
}

func NewHandler(engine *karma.Engine, authService *auth.Service, metrics *Metrics) *Handler {
	return &Handler{
		Engine:     engine,
		Aggregator: engine.Aggregator,
		Auth:       authService,
		Metrics:    metrics,
	}
}

// =============================================================================
// AUTH HANDLERS
// =============================================================================

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	_, token, err := h.Auth.Signup(r.Context(), req.Username, req.Password)
	if err != nil {
		writeDomainError(w, "Failed to sign up", err)
		return
	}
	writeJSON(w, http.StatusCreated, TokenResponse{Token: token})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	_, token, err := h.Auth.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "Invalid username or password", nil)
		return
	}
	if err != nil {
		writeDomainError(w, "Failed to log in", err)
		return
	}
	writeJSON(w, http.StatusOK, TokenResponse{Token: token})
}

// Logout revokes only the token used for this request.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	session, _ := auth.SessionFromContext(r.Context())

	err := h.Auth.Logout(r.Context(), session)
	if errors.Is(err, auth.ErrInvalidToken) {
		writeError(w, http.StatusUnauthorized, "Token required", nil)
		return
	}
	if err != nil {
		writeDomainError(w, "Failed to log out", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the caller's profile. Karma is aggregated from the ledger.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	profile, err := h.Aggregator.Profile(r.Context(), userID)
	if err != nil {
		writeDomainError(w, "Failed to load profile", err)
		return
	}
	writeJSON(w, http.StatusOK, MeDTO{
		ID:        int64(profile.User.ID),
		Username:  profile.User.Username,
		PostCount: profile.PostCount,
		Karma:     profile.Karma,
	})
}

// =============================================================================
// POST HANDLERS
// =============================================================================

func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	viewer, _ := auth.UserIDFromContext(r.Context())

	posts, err := h.Engine.Store.ListPostViews(r.Context(), viewer)
	if err != nil {
		writeDomainError(w, "Failed to list posts", err)
		return
	}

	dtos := make([]PostDTO, len(posts))
	for i, p := range posts {
		dtos[i] = toPostDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	author, _ := auth.UserIDFromContext(r.Context())

	var req CreatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	post, err := h.Engine.CreatePost(r.Context(), author, req.Content)
	if err != nil {
		writeDomainError(w, "Failed to create post", err)
		return
	}
	h.Metrics.ContentCreated.WithLabelValues("post").Inc()

	view, err := h.Engine.Store.GetPostView(r.Context(), post.ID, author)
	if err != nil {
		writeDomainError(w, "Failed to load post", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPostDTO(view))
}

// GetPost returns the post with its comment tree. All comments are fetched
// in one query and nested in memory.
func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	viewer, _ := auth.UserIDFromContext(r.Context())

	post, tree, err := h.Engine.PostThread(r.Context(), karma.PostID(id), viewer)
	if err != nil {
		writeDomainError(w, "Failed to load post", err)
		return
	}

	writeJSON(w, http.StatusOK, PostDetailDTO{
		PostDTO:  toPostDTO(post),
		Comments: toCommentDTOs(tree),
	})
}

func (h *Handler) CreateComment(w http.ResponseWriter, r *http.Request) {
	postID, ok := parseID(w, r)
	if !ok {
		return
	}
	author, _ := auth.UserIDFromContext(r.Context())

	var req CreateCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var parentID *karma.CommentID
	if req.ParentID != nil {
		p := karma.CommentID(*req.ParentID)
		parentID = &p
	}

	comment, err := h.Engine.CreateComment(r.Context(), karma.PostID(postID), author, req.Content, parentID)
	if err != nil {
		writeDomainError(w, "Failed to create comment", err)
		return
	}
	h.Metrics.ContentCreated.WithLabelValues("comment").Inc()

	writeJSON(w, http.StatusCreated, CreatedDTO{
		ID:        int64(comment.ID),
		CreatedAt: formatTime(comment.CreatedAt),
	})
}

// =============================================================================
// LIKE HANDLERS
// =============================================================================

func (h *Handler) LikePost(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	actor, _ := auth.UserIDFromContext(r.Context())

	res, err := h.Engine.LikePost(r.Context(), actor, karma.PostID(id))
	if err != nil {
		writeDomainError(w, "Failed to like post", err)
		return
	}
	h.Metrics.ObserveLike(string(karma.TargetPost), res.Granted)
	writeJSON(w, http.StatusOK, toLikeResponse(res))
}

func (h *Handler) LikeComment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	actor, _ := auth.UserIDFromContext(r.Context())

	res, err := h.Engine.LikeComment(r.Context(), actor, karma.CommentID(id))
	if err != nil {
		writeDomainError(w, "Failed to like comment", err)
		return
	}
	h.Metrics.ObserveLike(string(karma.TargetComment), res.Granted)
	writeJSON(w, http.StatusOK, toLikeResponse(res))
}

func toLikeResponse(res karma.LikeResult) LikeResponse {
	return LikeResponse{
		Created:      res.Granted,
		AlreadyLiked: !res.Granted,
		LikeCount:    res.LikeCount,
	}
}

// =============================================================================
// LEADERBOARD
// =============================================================================

func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	policy := h.Engine.Policy

	rows, err := h.Aggregator.Leaderboard(r.Context(), policy.LeaderboardWindow, policy.LeaderboardLimit)
	if err != nil {
		writeDomainError(w, "Failed to load leaderboard", err)
		return
	}

	dtos := make([]LeaderboardEntryDTO, len(rows))
	for i, row := range rows {
		dtos[i] = LeaderboardEntryDTO{
			UserID:   int64(row.UserID),
			Username: row.Username,
			Karma:    row.Karma,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid id", err)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps engine errors to HTTP status codes.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	var verr *karma.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: message, Field: verr.Field, Details: verr.Message})
	case karma.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, karma.ErrUsernameTaken):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: message, Field: "username", Details: err.Error()})
	default:
		log.WithError(err).Error(message)
		writeError(w, http.StatusInternalServerError, message, nil)
	}
}
