// Package store provides in-memory Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/karma-engine/karma"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	state   memoryState
	revoked map[string]time.Time
}

type postLikeKey struct {
	User karma.UserID
	Post karma.PostID
}

type commentLikeKey struct {
	User    karma.UserID
	Comment karma.CommentID
}

type memoryState struct {
	users        []karma.User
	posts        []karma.Post
	comments     []karma.Comment
	postLikes    map[postLikeKey]karma.PostLike
	commentLikes map[commentLikeKey]karma.CommentLike
	ledger       []karma.LedgerEntry
}

func newMemoryState() memoryState {
	return memoryState{
		postLikes:    make(map[postLikeKey]karma.PostLike),
		commentLikes: make(map[commentLikeKey]karma.CommentLike),
	}
}

func (s memoryState) clone() memoryState {
	c := memoryState{
		users:        append([]karma.User{}, s.users...),
		posts:        append([]karma.Post{}, s.posts...),
		comments:     append([]karma.Comment{}, s.comments...),
		ledger:       append([]karma.LedgerEntry{}, s.ledger...),
		postLikes:    make(map[postLikeKey]karma.PostLike, len(s.postLikes)),
		commentLikes: make(map[commentLikeKey]karma.CommentLike, len(s.commentLikes)),
	}
	for k, v := range s.postLikes {
		c.postLikes[k] = v
	}
	for k, v := range s.commentLikes {
		c.commentLikes[k] = v
	}
	return c
}

func NewMemory() *Memory {
	return &Memory{state: newMemoryState(), revoked: make(map[string]time.Time)}
}

// =============================================================================
// USERS
// =============================================================================

func (m *Memory) CreateUser(_ context.Context, username, passwordHash string) (karma.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.createUser(username, passwordHash)
}

func (m *Memory) GetUser(_ context.Context, id karma.UserID) (karma.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.user(id)
}

func (m *Memory) GetUserByUsername(_ context.Context, username string) (karma.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.userByName(username)
}

func (s *memoryState) createUser(username, passwordHash string) (karma.User, error) {
	if _, err := s.userByName(username); err == nil {
		return karma.User{}, karma.ErrUsernameTaken
	}
	u := karma.User{
		ID:           karma.UserID(len(s.users) + 1),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	s.users = append(s.users, u)
	return u, nil
}

func (s *memoryState) user(id karma.UserID) (karma.User, error) {
	if id <= 0 || int(id) > len(s.users) {
		return karma.User{}, karma.ErrUserNotFound
	}
	return s.users[id-1], nil
}

func (s *memoryState) userByName(username string) (karma.User, error) {
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return karma.User{}, karma.ErrUserNotFound
}

// =============================================================================
// CONTENT
// =============================================================================

func (m *Memory) InsertPost(_ context.Context, p karma.Post) (karma.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.insertPost(p)
}

func (m *Memory) GetPost(_ context.Context, id karma.PostID) (karma.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.post(id)
}

func (m *Memory) CountPostsByAuthor(_ context.Context, author karma.UserID) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.countPostsByAuthor(author), nil
}

func (m *Memory) ListPostViews(_ context.Context, viewer karma.UserID) ([]karma.PostView, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.listPostViews(viewer), nil
}

func (m *Memory) GetPostView(_ context.Context, id karma.PostID, viewer karma.UserID) (karma.PostView, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.postView(id, viewer)
}

func (m *Memory) InsertComment(_ context.Context, c karma.Comment) (karma.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.insertComment(c)
}

func (m *Memory) GetComment(_ context.Context, id karma.CommentID) (karma.Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.comment(id)
}

func (m *Memory) ListCommentViews(_ context.Context, post karma.PostID, viewer karma.UserID) ([]karma.CommentView, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.listCommentViews(post, viewer), nil
}

func (s *memoryState) insertPost(p karma.Post) (karma.Post, error) {
	if _, err := s.user(p.AuthorID); err != nil {
		return karma.Post{}, err
	}
	p.ID = karma.PostID(len(s.posts) + 1)
	s.posts = append(s.posts, p)
	return p, nil
}

func (s *memoryState) post(id karma.PostID) (karma.Post, error) {
	if id <= 0 || int(id) > len(s.posts) {
		return karma.Post{}, karma.ErrPostNotFound
	}
	return s.posts[id-1], nil
}

func (s *memoryState) countPostsByAuthor(author karma.UserID) int64 {
	var n int64
	for _, p := range s.posts {
		if p.AuthorID == author {
			n++
		}
	}
	return n
}

func (s *memoryState) postView(id karma.PostID, viewer karma.UserID) (karma.PostView, error) {
	p, err := s.post(id)
	if err != nil {
		return karma.PostView{}, err
	}
	author, _ := s.user(p.AuthorID)
	v := karma.PostView{Post: p, AuthorName: author.Username}
	for k := range s.postLikes {
		if k.Post == id {
			v.LikeCount++
			if k.User == viewer {
				v.LikedByMe = true
			}
		}
	}
	for _, c := range s.comments {
		if c.PostID == id {
			v.CommentCount++
		}
	}
	return v, nil
}

func (s *memoryState) listPostViews(viewer karma.UserID) []karma.PostView {
	views := make([]karma.PostView, 0, len(s.posts))
	for i := len(s.posts) - 1; i >= 0; i-- {
		v, _ := s.postView(s.posts[i].ID, viewer)
		views = append(views, v)
	}
	sort.SliceStable(views, func(i, j int) bool {
		return views[i].CreatedAt.After(views[j].CreatedAt)
	})
	return views
}

func (s *memoryState) insertComment(c karma.Comment) (karma.Comment, error) {
	if _, err := s.post(c.PostID); err != nil {
		return karma.Comment{}, err
	}
	if _, err := s.user(c.AuthorID); err != nil {
		return karma.Comment{}, err
	}
	if c.ParentID != nil {
		if _, err := s.comment(*c.ParentID); err != nil {
			return karma.Comment{}, err
		}
	}
	c.ID = karma.CommentID(len(s.comments) + 1)
	s.comments = append(s.comments, c)
	return c, nil
}

func (s *memoryState) comment(id karma.CommentID) (karma.Comment, error) {
	if id <= 0 || int(id) > len(s.comments) {
		return karma.Comment{}, karma.ErrCommentNotFound
	}
	return s.comments[id-1], nil
}

func (s *memoryState) listCommentViews(post karma.PostID, viewer karma.UserID) []karma.CommentView {
	views := []karma.CommentView{}
	for _, c := range s.comments {
		if c.PostID != post {
			continue
		}
		author, _ := s.user(c.AuthorID)
		v := karma.CommentView{Comment: c, AuthorName: author.Username}
		for k := range s.commentLikes {
			if k.Comment == c.ID {
				v.LikeCount++
				if k.User == viewer {
					v.LikedByMe = true
				}
			}
		}
		views = append(views, v)
	}
	sort.SliceStable(views, func(i, j int) bool {
		if !views[i].CreatedAt.Equal(views[j].CreatedAt) {
			return views[i].CreatedAt.Before(views[j].CreatedAt)
		}
		return views[i].ID < views[j].ID
	})
	return views
}

// =============================================================================
// LIKES
// =============================================================================

func (m *Memory) HasLike(_ context.Context, user karma.UserID, target karma.Target) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.hasLike(user, target), nil
}

func (m *Memory) InsertLike(_ context.Context, user karma.UserID, target karma.Target, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.insertLike(user, target, at)
}

func (m *Memory) CountLikes(_ context.Context, target karma.Target) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.countLikes(target), nil
}

func (s *memoryState) hasLike(user karma.UserID, target karma.Target) bool {
	switch target.Kind {
	case karma.TargetPost:
		_, ok := s.postLikes[postLikeKey{User: user, Post: target.PostID}]
		return ok
	case karma.TargetComment:
		_, ok := s.commentLikes[commentLikeKey{User: user, Comment: target.CommentID}]
		return ok
	}
	return false
}

func (s *memoryState) insertLike(user karma.UserID, target karma.Target, at time.Time) error {
	if s.hasLike(user, target) {
		return karma.ErrDuplicateLike
	}
	switch target.Kind {
	case karma.TargetPost:
		if _, err := s.post(target.PostID); err != nil {
			return err
		}
		s.postLikes[postLikeKey{User: user, Post: target.PostID}] = karma.PostLike{UserID: user, PostID: target.PostID, CreatedAt: at}
	case karma.TargetComment:
		if _, err := s.comment(target.CommentID); err != nil {
			return err
		}
		s.commentLikes[commentLikeKey{User: user, Comment: target.CommentID}] = karma.CommentLike{UserID: user, CommentID: target.CommentID, CreatedAt: at}
	}
	return nil
}

func (s *memoryState) countLikes(target karma.Target) int64 {
	var n int64
	switch target.Kind {
	case karma.TargetPost:
		for k := range s.postLikes {
			if k.Post == target.PostID {
				n++
			}
		}
	case karma.TargetComment:
		for k := range s.commentLikes {
			if k.Comment == target.CommentID {
				n++
			}
		}
	}
	return n
}

// =============================================================================
// LEDGER
// =============================================================================

func (m *Memory) AppendEntry(_ context.Context, e karma.LedgerEntry) (karma.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.appendEntry(e)
}

func (m *Memory) Entries(_ context.Context, recipient karma.UserID) ([]karma.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.entries(recipient), nil
}

func (m *Memory) SumKarma(_ context.Context, recipient karma.UserID) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.sumKarma(recipient), nil
}

func (m *Memory) SumKarmaSince(_ context.Context, since time.Time, limit int) ([]karma.LeaderboardRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.sumKarmaSince(since, limit), nil
}

// appendEntry applies the same CHECK constraints the SQL schema declares.
func (s *memoryState) appendEntry(e karma.LedgerEntry) (karma.LedgerEntry, error) {
	if err := e.CheckConstraints(); err != nil {
		return karma.LedgerEntry{}, err
	}
	if _, err := s.user(e.RecipientID); err != nil {
		return karma.LedgerEntry{}, err
	}
	e.ID = karma.EntryID(len(s.ledger) + 1)
	s.ledger = append(s.ledger, e)
	return e, nil
}

func (s *memoryState) entries(recipient karma.UserID) []karma.LedgerEntry {
	var result []karma.LedgerEntry
	for _, e := range s.ledger {
		if e.RecipientID == recipient {
			result = append(result, e)
		}
	}
	return result
}

func (s *memoryState) sumKarma(recipient karma.UserID) int64 {
	var total int64
	for _, e := range s.ledger {
		if e.RecipientID == recipient {
			total += e.Amount
		}
	}
	return total
}

func (s *memoryState) sumKarmaSince(since time.Time, limit int) []karma.LeaderboardRow {
	sums := make(map[karma.UserID]int64)
	for _, e := range s.ledger {
		if !e.CreatedAt.Before(since) {
			sums[e.RecipientID] += e.Amount
		}
	}

	rows := make([]karma.LeaderboardRow, 0, len(sums))
	for id, total := range sums {
		u, _ := s.user(id)
		rows = append(rows, karma.LeaderboardRow{UserID: id, Username: u.Username, Karma: total})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Karma != rows[j].Karma {
			return rows[i].Karma > rows[j].Karma
		}
		return rows[i].UserID < rows[j].UserID
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

// =============================================================================
// TOKEN REVOCATION
// =============================================================================

func (m *Memory) RevokeToken(_ context.Context, tokenID string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[tokenID] = expiresAt
	return nil
}

func (m *Memory) IsTokenRevoked(_ context.Context, tokenID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.revoked[tokenID]
	return ok, nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
// Transactions are serialized, which gives the same outcome as a database
// unique index: the first committed like wins.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(karma.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.state.clone()

	view := &txMemoryView{state: &tm.state}
	if err := fn(view); err != nil {
		tm.state = snapshot
		return err
	}
	return nil
}

// txMemoryView operates on the locked state without re-acquiring the lock.
type txMemoryView struct {
	state *memoryState
}

func (v *txMemoryView) CreateUser(_ context.Context, username, passwordHash string) (karma.User, error) {
	return v.state.createUser(username, passwordHash)
}

func (v *txMemoryView) GetUser(_ context.Context, id karma.UserID) (karma.User, error) {
	return v.state.user(id)
}

func (v *txMemoryView) GetUserByUsername(_ context.Context, username string) (karma.User, error) {
	return v.state.userByName(username)
}

func (v *txMemoryView) InsertPost(_ context.Context, p karma.Post) (karma.Post, error) {
	return v.state.insertPost(p)
}

func (v *txMemoryView) GetPost(_ context.Context, id karma.PostID) (karma.Post, error) {
	return v.state.post(id)
}

func (v *txMemoryView) CountPostsByAuthor(_ context.Context, author karma.UserID) (int64, error) {
	return v.state.countPostsByAuthor(author), nil
}

func (v *txMemoryView) ListPostViews(_ context.Context, viewer karma.UserID) ([]karma.PostView, error) {
	return v.state.listPostViews(viewer), nil
}

func (v *txMemoryView) GetPostView(_ context.Context, id karma.PostID, viewer karma.UserID) (karma.PostView, error) {
	return v.state.postView(id, viewer)
}

func (v *txMemoryView) InsertComment(_ context.Context, c karma.Comment) (karma.Comment, error) {
	return v.state.insertComment(c)
}

func (v *txMemoryView) GetComment(_ context.Context, id karma.CommentID) (karma.Comment, error) {
	return v.state.comment(id)
}

func (v *txMemoryView) ListCommentViews(_ context.Context, post karma.PostID, viewer karma.UserID) ([]karma.CommentView, error) {
	return v.state.listCommentViews(post, viewer), nil
}

func (v *txMemoryView) HasLike(_ context.Context, user karma.UserID, target karma.Target) (bool, error) {
	return v.state.hasLike(user, target), nil
}

func (v *txMemoryView) InsertLike(_ context.Context, user karma.UserID, target karma.Target, at time.Time) error {
	return v.state.insertLike(user, target, at)
}

func (v *txMemoryView) CountLikes(_ context.Context, target karma.Target) (int64, error) {
	return v.state.countLikes(target), nil
}

func (v *txMemoryView) AppendEntry(_ context.Context, e karma.LedgerEntry) (karma.LedgerEntry, error) {
	return v.state.appendEntry(e)
}

func (v *txMemoryView) Entries(_ context.Context, recipient karma.UserID) ([]karma.LedgerEntry, error) {
	return v.state.entries(recipient), nil
}

func (v *txMemoryView) SumKarma(_ context.Context, recipient karma.UserID) (int64, error) {
	return v.state.sumKarma(recipient), nil
}

func (v *txMemoryView) SumKarmaSince(_ context.Context, since time.Time, limit int) ([]karma.LeaderboardRow, error) {
	return v.state.sumKarmaSince(since, limit), nil
}
