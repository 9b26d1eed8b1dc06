/*
Package sqlite provides a SQLite-backed implementation of karma.TxStore.

PURPOSE:
  Durable storage for users, posts, comments, likes and the karma ledger.
  The engine's correctness rests on three things this package declares in
  the schema rather than in Go code.

CONSTRAINTS:
  uniq_post_like_user_post        One like per (user, post)
  uniq_comment_like_user_comment  One like per (user, comment)
  karma_ledger_amount_positive    amount > 0
  karma_ledger_exactly_one_target exactly one of post_id / comment_id
  karma_ledger_append_only        UPDATE on karma_ledger is rejected

  revoked_tokens holds logged-out token ids for auth.RevocationStore.

  Driver errors are translated by extended result code:
    SQLITE_CONSTRAINT_UNIQUE      -> karma.ErrDuplicateLike / ErrUsernameTaken
    SQLITE_CONSTRAINT_CHECK       -> *karma.LedgerConstraintError
    SQLITE_CONSTRAINT_FOREIGNKEY  -> karma.Err*NotFound

CONCURRENCY:
  No Go-level locking. File databases are opened in WAL mode with
  _txlock=immediate so a like transaction takes the write lock at BEGIN,
  and _busy_timeout so competing writers wait instead of failing.
  ":memory:" databases exist per connection, so the pool is capped at one.

TIMESTAMPS:
  Stored as fixed-width UTC text (nanosecond precision). Lexical order is
  chronological order, so range predicates work on the raw column.

USAGE:
  store, err := sqlite.New("./data/karma.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := karma.NewEngine(store, karma.DefaultPolicy())

SEE ALSO:
  - karma/store.go: Interface definitions
  - karma/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/warp/karma-engine/karma"
)

const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements karma.TxStore using SQLite.
type Store struct {
	queries
	db *sql.DB
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	dsn := dbPath + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate"
	if dbPath == ":memory:" {
		dsn = "file::memory:?_foreign_keys=on"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{queries: queries{q: db}, db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS posts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		author_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		content TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts(created_at);
	CREATE INDEX IF NOT EXISTS idx_posts_author ON posts(author_id);

	CREATE TABLE IF NOT EXISTS comments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		post_id INTEGER NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
		author_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		parent_id INTEGER REFERENCES comments(id) ON DELETE CASCADE,
		content TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_comments_post_parent ON comments(post_id, parent_id);
	CREATE INDEX IF NOT EXISTS idx_comments_post_created ON comments(post_id, created_at);

	-- Uniqueness guard: the concurrency primitive for likes
	CREATE TABLE IF NOT EXISTS post_likes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		post_id INTEGER NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS uniq_post_like_user_post
		ON post_likes(user_id, post_id);
	CREATE INDEX IF NOT EXISTS idx_post_likes_post ON post_likes(post_id);

	CREATE TABLE IF NOT EXISTS comment_likes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		comment_id INTEGER NOT NULL REFERENCES comments(id) ON DELETE CASCADE,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS uniq_comment_like_user_comment
		ON comment_likes(user_id, comment_id);
	CREATE INDEX IF NOT EXISTS idx_comment_likes_comment ON comment_likes(comment_id);

	-- Karma ledger (append-only, source of truth for all totals)
	CREATE TABLE IF NOT EXISTS karma_ledger (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		post_id INTEGER REFERENCES posts(id) ON DELETE CASCADE,
		comment_id INTEGER REFERENCES comments(id) ON DELETE CASCADE,
		amount INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		CONSTRAINT karma_ledger_amount_positive CHECK (amount > 0),
		CONSTRAINT karma_ledger_exactly_one_target
			CHECK ((post_id IS NULL) <> (comment_id IS NULL))
	);

	CREATE INDEX IF NOT EXISTS idx_karma_ledger_created_at ON karma_ledger(created_at);
	CREATE INDEX IF NOT EXISTS idx_karma_ledger_user_created ON karma_ledger(user_id, created_at);

	-- Logged-out token ids, kept until the token would have expired
	CREATE TABLE IF NOT EXISTS revoked_tokens (
		token_id TEXT PRIMARY KEY,
		expires_at TEXT NOT NULL
	);

	CREATE TRIGGER IF NOT EXISTS karma_ledger_append_only
		BEFORE UPDATE ON karma_ledger
	BEGIN
		SELECT RAISE(ABORT, 'karma_ledger is append-only');
	END;
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store karma.Store) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{queries: queries{q: sqlTx}}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type txStore struct {
	queries
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries holds every statement; Store runs them on the pool and txStore
// inside a transaction.
type queries struct {
	q querier
}

// =============================================================================
// USERS
// =============================================================================

func (s queries) CreateUser(ctx context.Context, username, passwordHash string) (karma.User, error) {
	now := time.Now().UTC()
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?)`,
		username, passwordHash, formatTime(now))
	if err != nil {
		if constraintCode(err) == sqlite3.ErrConstraintUnique {
			return karma.User{}, karma.ErrUsernameTaken
		}
		return karma.User{}, fmt.Errorf("failed to create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return karma.User{}, err
	}
	return karma.User{ID: karma.UserID(id), Username: username, PasswordHash: passwordHash, CreatedAt: now}, nil
}

func (s queries) GetUser(ctx context.Context, id karma.UserID) (karma.User, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (s queries) GetUserByUsername(ctx context.Context, username string) (karma.User, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE username = ?`, username)
	return scanUser(row)
}

func scanUser(row *sql.Row) (karma.User, error) {
	var u karma.User
	var createdAt string
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return karma.User{}, karma.ErrUserNotFound
		}
		return karma.User{}, fmt.Errorf("failed to get user: %w", err)
	}
	u.CreatedAt = parseTime(createdAt)
	return u, nil
}

// =============================================================================
// POSTS
// =============================================================================

func (s queries) InsertPost(ctx context.Context, p karma.Post) (karma.Post, error) {
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO posts (author_id, content, created_at) VALUES (?, ?, ?)`,
		p.AuthorID, p.Content, formatTime(p.CreatedAt))
	if err != nil {
		if constraintCode(err) == sqlite3.ErrConstraintForeignKey {
			return karma.Post{}, karma.ErrUserNotFound
		}
		return karma.Post{}, fmt.Errorf("failed to insert post: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return karma.Post{}, err
	}
	p.ID = karma.PostID(id)
	p.CreatedAt = p.CreatedAt.UTC()
	return p, nil
}

func (s queries) GetPost(ctx context.Context, id karma.PostID) (karma.Post, error) {
	var p karma.Post
	var createdAt string
	err := s.q.QueryRowContext(ctx,
		`SELECT id, author_id, content, created_at FROM posts WHERE id = ?`, id).
		Scan(&p.ID, &p.AuthorID, &p.Content, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return karma.Post{}, karma.ErrPostNotFound
		}
		return karma.Post{}, fmt.Errorf("failed to get post: %w", err)
	}
	p.CreatedAt = parseTime(createdAt)
	return p, nil
}

func (s queries) CountPostsByAuthor(ctx context.Context, author karma.UserID) (int64, error) {
	var n int64
	err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts WHERE author_id = ?`, author).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count posts: %w", err)
	}
	return n, nil
}

const postViewSelect = `
	SELECT p.id, p.author_id, p.content, p.created_at, u.username,
	       (SELECT COUNT(*) FROM post_likes pl WHERE pl.post_id = p.id) AS like_count,
	       (SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id) AS comment_count,
	       EXISTS (SELECT 1 FROM post_likes pl WHERE pl.post_id = p.id AND pl.user_id = ?) AS liked_by_me
	FROM posts p
	JOIN users u ON u.id = p.author_id
`

func (s queries) ListPostViews(ctx context.Context, viewer karma.UserID) ([]karma.PostView, error) {
	rows, err := s.q.QueryContext(ctx, postViewSelect+` ORDER BY p.created_at DESC, p.id DESC`, viewer)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	views := []karma.PostView{}
	for rows.Next() {
		v, err := scanPostView(rows)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

func (s queries) GetPostView(ctx context.Context, id karma.PostID, viewer karma.UserID) (karma.PostView, error) {
	rows, err := s.q.QueryContext(ctx, postViewSelect+` WHERE p.id = ?`, viewer, id)
	if err != nil {
		return karma.PostView{}, fmt.Errorf("failed to get post: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return karma.PostView{}, err
		}
		return karma.PostView{}, karma.ErrPostNotFound
	}
	return scanPostView(rows)
}

func scanPostView(rows *sql.Rows) (karma.PostView, error) {
	var v karma.PostView
	var createdAt string
	if err := rows.Scan(&v.ID, &v.AuthorID, &v.Content, &createdAt, &v.AuthorName,
		&v.LikeCount, &v.CommentCount, &v.LikedByMe); err != nil {
		return karma.PostView{}, fmt.Errorf("failed to scan post: %w", err)
	}
	v.CreatedAt = parseTime(createdAt)
	return v, nil
}

// =============================================================================
// COMMENTS
// =============================================================================

func (s queries) InsertComment(ctx context.Context, c karma.Comment) (karma.Comment, error) {
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO comments (post_id, author_id, parent_id, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.PostID, c.AuthorID, nullCommentID(c.ParentID), c.Content, formatTime(c.CreatedAt))
	if err != nil {
		if constraintCode(err) == sqlite3.ErrConstraintForeignKey {
			return karma.Comment{}, fmt.Errorf("comment references missing row: %w", karma.ErrNotFound)
		}
		return karma.Comment{}, fmt.Errorf("failed to insert comment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return karma.Comment{}, err
	}
	c.ID = karma.CommentID(id)
	c.CreatedAt = c.CreatedAt.UTC()
	return c, nil
}

func (s queries) GetComment(ctx context.Context, id karma.CommentID) (karma.Comment, error) {
	var c karma.Comment
	var parent sql.NullInt64
	var createdAt string
	err := s.q.QueryRowContext(ctx,
		`SELECT id, post_id, author_id, parent_id, content, created_at FROM comments WHERE id = ?`, id).
		Scan(&c.ID, &c.PostID, &c.AuthorID, &parent, &c.Content, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return karma.Comment{}, karma.ErrCommentNotFound
		}
		return karma.Comment{}, fmt.Errorf("failed to get comment: %w", err)
	}
	c.ParentID = commentIDPtr(parent)
	c.CreatedAt = parseTime(createdAt)
	return c, nil
}

// ListCommentViews fetches the whole thread in a single query; like counts
// and the viewer's like flag are computed in the same statement.
func (s queries) ListCommentViews(ctx context.Context, post karma.PostID, viewer karma.UserID) ([]karma.CommentView, error) {
	query := `
		SELECT c.id, c.post_id, c.author_id, c.parent_id, c.content, c.created_at, u.username,
		       (SELECT COUNT(*) FROM comment_likes cl WHERE cl.comment_id = c.id) AS like_count,
		       EXISTS (SELECT 1 FROM comment_likes cl WHERE cl.comment_id = c.id AND cl.user_id = ?) AS liked_by_me
		FROM comments c
		JOIN users u ON u.id = c.author_id
		WHERE c.post_id = ?
		ORDER BY c.created_at ASC, c.id ASC
	`
	rows, err := s.q.QueryContext(ctx, query, viewer, post)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	views := []karma.CommentView{}
	for rows.Next() {
		var v karma.CommentView
		var parent sql.NullInt64
		var createdAt string
		if err := rows.Scan(&v.ID, &v.PostID, &v.AuthorID, &parent, &v.Content, &createdAt,
			&v.AuthorName, &v.LikeCount, &v.LikedByMe); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		v.ParentID = commentIDPtr(parent)
		v.CreatedAt = parseTime(createdAt)
		views = append(views, v)
	}
	return views, rows.Err()
}

// =============================================================================
// LIKES
// =============================================================================

func (s queries) HasLike(ctx context.Context, user karma.UserID, target karma.Target) (bool, error) {
	var query string
	var id int64
	switch target.Kind {
	case karma.TargetPost:
		query, id = `SELECT EXISTS (SELECT 1 FROM post_likes WHERE user_id = ? AND post_id = ?)`, int64(target.PostID)
	case karma.TargetComment:
		query, id = `SELECT EXISTS (SELECT 1 FROM comment_likes WHERE user_id = ? AND comment_id = ?)`, int64(target.CommentID)
	default:
		return false, fmt.Errorf("unknown target kind %q", target.Kind)
	}

	var exists bool
	if err := s.q.QueryRowContext(ctx, query, user, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check like: %w", err)
	}
	return exists, nil
}

func (s queries) InsertLike(ctx context.Context, user karma.UserID, target karma.Target, at time.Time) error {
	var query string
	var id int64
	var missing error
	switch target.Kind {
	case karma.TargetPost:
		query, id, missing = `INSERT INTO post_likes (user_id, post_id, created_at) VALUES (?, ?, ?)`, int64(target.PostID), karma.ErrPostNotFound
	case karma.TargetComment:
		query, id, missing = `INSERT INTO comment_likes (user_id, comment_id, created_at) VALUES (?, ?, ?)`, int64(target.CommentID), karma.ErrCommentNotFound
	default:
		return fmt.Errorf("unknown target kind %q", target.Kind)
	}

	_, err := s.q.ExecContext(ctx, query, user, id, formatTime(at))
	switch constraintCode(err) {
	case 0:
		if err != nil {
			return fmt.Errorf("failed to insert like: %w", err)
		}
		return nil
	case sqlite3.ErrConstraintUnique:
		return karma.ErrDuplicateLike
	case sqlite3.ErrConstraintForeignKey:
		return missing
	default:
		return fmt.Errorf("failed to insert like: %w", err)
	}
}

func (s queries) CountLikes(ctx context.Context, target karma.Target) (int64, error) {
	var query string
	var id int64
	switch target.Kind {
	case karma.TargetPost:
		query, id = `SELECT COUNT(*) FROM post_likes WHERE post_id = ?`, int64(target.PostID)
	case karma.TargetComment:
		query, id = `SELECT COUNT(*) FROM comment_likes WHERE comment_id = ?`, int64(target.CommentID)
	default:
		return 0, fmt.Errorf("unknown target kind %q", target.Kind)
	}

	var n int64
	if err := s.q.QueryRowContext(ctx, query, id).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count likes: %w", err)
	}
	return n, nil
}

// =============================================================================
// LEDGER
// =============================================================================

// AppendEntry adds an entry to the ledger. The CHECK constraints are left
// to SQLite; violations come back as *karma.LedgerConstraintError.
func (s queries) AppendEntry(ctx context.Context, e karma.LedgerEntry) (karma.LedgerEntry, error) {
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO karma_ledger (user_id, post_id, comment_id, amount, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.RecipientID, nullPostID(e.PostID), nullCommentID(e.CommentID), e.Amount, formatTime(e.CreatedAt))
	if err != nil {
		switch constraintCode(err) {
		case sqlite3.ErrConstraintCheck:
			return karma.LedgerEntry{}, &karma.LedgerConstraintError{Constraint: checkConstraintName(err)}
		case sqlite3.ErrConstraintForeignKey:
			return karma.LedgerEntry{}, fmt.Errorf("ledger entry references missing row: %w", karma.ErrNotFound)
		}
		return karma.LedgerEntry{}, fmt.Errorf("failed to append ledger entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return karma.LedgerEntry{}, err
	}
	e.ID = karma.EntryID(id)
	e.CreatedAt = e.CreatedAt.UTC()
	return e, nil
}

func (s queries) Entries(ctx context.Context, recipient karma.UserID) ([]karma.LedgerEntry, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, user_id, post_id, comment_id, amount, created_at
		FROM karma_ledger
		WHERE user_id = ?
		ORDER BY created_at ASC, id ASC
	`, recipient)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}
	defer rows.Close()

	var entries []karma.LedgerEntry
	for rows.Next() {
		var e karma.LedgerEntry
		var post, comment sql.NullInt64
		var createdAt string
		if err := rows.Scan(&e.ID, &e.RecipientID, &post, &comment, &e.Amount, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		if post.Valid {
			id := karma.PostID(post.Int64)
			e.PostID = &id
		}
		e.CommentID = commentIDPtr(comment)
		e.CreatedAt = parseTime(createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s queries) SumKarma(ctx context.Context, recipient karma.UserID) (int64, error) {
	var total int64
	err := s.q.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM karma_ledger WHERE user_id = ?`, recipient).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum karma: %w", err)
	}
	return total, nil
}

func (s queries) SumKarmaSince(ctx context.Context, since time.Time, limit int) ([]karma.LeaderboardRow, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT k.user_id, u.username, SUM(k.amount) AS karma
		FROM karma_ledger k
		JOIN users u ON u.id = k.user_id
		WHERE k.created_at >= ?
		GROUP BY k.user_id, u.username
		ORDER BY karma DESC, k.user_id ASC
		LIMIT ?
	`, formatTime(since), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate leaderboard: %w", err)
	}
	defer rows.Close()

	result := []karma.LeaderboardRow{}
	for rows.Next() {
		var r karma.LeaderboardRow
		if err := rows.Scan(&r.UserID, &r.Username, &r.Karma); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// =============================================================================
// TOKEN REVOCATION
// =============================================================================

// RevokeToken records a logged-out token id and drops revocations whose
// tokens have expired since.
func (s queries) RevokeToken(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if _, err := s.q.ExecContext(ctx,
		`DELETE FROM revoked_tokens WHERE expires_at < ?`, formatTime(time.Now())); err != nil {
		return fmt.Errorf("failed to prune revoked tokens: %w", err)
	}
	_, err := s.q.ExecContext(ctx,
		`INSERT OR IGNORE INTO revoked_tokens (token_id, expires_at) VALUES (?, ?)`,
		tokenID, formatTime(expiresAt))
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

func (s queries) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	var revoked bool
	err := s.q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE token_id = ?)`, tokenID).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("failed to check revoked token: %w", err)
	}
	return revoked, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t.UTC()
}

func nullPostID(id *karma.PostID) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*id), Valid: true}
}

func nullCommentID(id *karma.CommentID) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*id), Valid: true}
}

func commentIDPtr(n sql.NullInt64) *karma.CommentID {
	if !n.Valid {
		return nil
	}
	id := karma.CommentID(n.Int64)
	return &id
}

// constraintCode returns the extended constraint code of a SQLite error, or
// 0 when err is nil or not a constraint violation.
func constraintCode(err error) sqlite3.ErrNoExtended {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return sqliteErr.ExtendedCode
	}
	return 0
}

// checkConstraintName extracts the constraint name from
// "CHECK constraint failed: <name>".
func checkConstraintName(err error) string {
	for _, name := range []string{karma.ConstraintAmountPositive, karma.ConstraintExactlyOneTarget} {
		if strings.Contains(err.Error(), name) {
			return name
		}
	}
	return "unknown"
}
