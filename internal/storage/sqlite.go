package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"reddit_alert/internal/model"
	"reddit_alert/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// CreateKeyword inserts a new keyword and populates its ID and CreatedAt.
func (s *SQLite) CreateKeyword(ctx context.Context, kw *model.Keyword) error {
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO keywords (term, is_active, created_at) VALUES (?, ?, ?)`,
		kw.Term, boolToInt(kw.IsActive), now,
	)
	if err != nil {
		return fmt.Errorf("insert keyword: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	kw.ID = id
	kw.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// ListActiveKeywords returns all active keywords ordered by ID.
func (s *SQLite) ListActiveKeywords(ctx context.Context) ([]model.Keyword, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, term, is_active, last_post_id, last_comment_id, locked_until, created_at
		 FROM keywords WHERE is_active = 1 ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query keywords: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var keywords []model.Keyword
	for rows.Next() {
		kw, err := scanKeyword(rows)
		if err != nil {
			return nil, err
		}
		keywords = append(keywords, kw)
	}
	return keywords, rows.Err()
}

// AcquireLease atomically claims the scan lease on a keyword.
func (s *SQLite) AcquireLease(ctx context.Context, keywordID int64, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE keywords SET locked_until = ?
		 WHERE id = ? AND (locked_until IS NULL OR locked_until <= ?)`,
		now.Add(ttl).Format(timeLayout), keywordID, now.Format(timeLayout),
	)
	if err != nil {
		return false, fmt.Errorf("acquire lease: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// ReleaseLease clears the lease unconditionally.
func (s *SQLite) ReleaseLease(ctx context.Context, keywordID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE keywords SET locked_until = NULL WHERE id = ?`, keywordID,
	)
	if err != nil {
		return fmt.Errorf("release lease: %w", err)
	}
	return nil
}

// ReadCursor returns the stored per-kind cursors for a keyword. Unset
// sides come back as "".
func (s *SQLite) ReadCursor(ctx context.Context, keywordID int64) (model.Cursor, error) {
	var post, comment sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT last_post_id, last_comment_id FROM keywords WHERE id = ?`, keywordID,
	).Scan(&post, &comment)
	if err != nil {
		return model.Cursor{}, fmt.Errorf("read cursor: %w", err)
	}
	return model.Cursor{PostID: post.String, CommentID: comment.String}, nil
}

// AdvanceCursor stores newID if it is strictly newer than the current
// cursor of its kind. The comparison (base-36: length, then value)
// runs inside the UPDATE so concurrent advances cannot regress the
// cursor. Both values in a column share the same type prefix, so the
// length comparison stays valid on the prefixed form.
func (s *SQLite) AdvanceCursor(ctx context.Context, keywordID int64, kind model.ItemKind, newID string) error {
	if newID == "" {
		return nil
	}
	col := "last_post_id"
	if kind == model.KindComment {
		col = "last_comment_id"
	}
	query := fmt.Sprintf(`UPDATE keywords SET %[1]s = ?
		 WHERE id = ? AND (%[1]s IS NULL
		   OR length(?) > length(%[1]s)
		   OR (length(?) = length(%[1]s) AND ? > %[1]s))`, col)
	_, err := s.db.ExecContext(ctx, query, newID, keywordID, newID, newID, newID)
	if err != nil {
		return fmt.Errorf("advance cursor: %w", err)
	}
	return nil
}

// CreateUser inserts a user.
func (s *SQLite) CreateUser(ctx context.Context, u *model.User) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, created_at) VALUES (?, ?, ?)`,
		u.ID, u.Email, now,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	u.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// EmailsByUserIDs resolves user IDs to emails in a single query.
func (s *SQLite) EmailsByUserIDs(ctx context.Context, ids []string) (map[string]string, error) {
	emails := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return emails, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := `SELECT id, email FROM users WHERE id IN (?` + strings.Repeat(",?", len(ids)-1) + `)`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query emails: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id, email string
		if err := rows.Scan(&id, &email); err != nil {
			return nil, fmt.Errorf("scan email: %w", err)
		}
		emails[id] = email
	}
	return emails, rows.Err()
}

// CreateSubscription inserts a subscription.
func (s *SQLite) CreateSubscription(ctx context.Context, sub *model.Subscription) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscriptions (user_id, keyword_id, is_active, whole_word, match_posts, match_comments, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sub.UserID, sub.KeywordID, boolToInt(sub.IsActive), boolToInt(sub.WholeWord),
		boolToInt(sub.MatchPosts), boolToInt(sub.MatchComments), now,
	)
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	sub.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// ListSubscribers returns the active subscriptions for a keyword.
func (s *SQLite) ListSubscribers(ctx context.Context, keywordID int64) ([]model.Subscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, keyword_id, is_active, whole_word, match_posts, match_comments, created_at
		 FROM subscriptions WHERE keyword_id = ? AND is_active = 1 ORDER BY user_id`,
		keywordID,
	)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var subs []model.Subscription
	for rows.Next() {
		var sub model.Subscription
		var active, whole, posts, comments int
		var created string
		err := rows.Scan(&sub.UserID, &sub.KeywordID, &active, &whole, &posts, &comments, &created)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		sub.IsActive = active == 1
		sub.WholeWord = whole == 1
		sub.MatchPosts = posts == 1
		sub.MatchComments = comments == 1
		sub.CreatedAt, _ = time.Parse(timeLayout, created)
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// EnqueueAlerts appends records to the backlog in pending status.
// It never inspects or mutates existing rows.
func (s *SQLite) EnqueueAlerts(ctx context.Context, recs []model.AlertRecord) (int, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(timeLayout)
	for i := range recs {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO alert_queue (user_id, keyword_term, post_title, post_url, post_preview, status, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			recs[i].UserID, recs[i].KeywordTerm, recs[i].Post.Title, recs[i].Post.URL,
			recs[i].Post.Preview, string(model.StatusPending), now,
		)
		if err != nil {
			return 0, fmt.Errorf("insert alert: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("last insert id: %w", err)
		}
		recs[i].ID = id
		recs[i].Status = model.StatusPending
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(recs), nil
}

// SelectPending returns up to limit pending records, oldest first.
func (s *SQLite) SelectPending(ctx context.Context, limit int) ([]model.AlertRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, keyword_term, post_title, post_url, post_preview, status, created_at
		 FROM alert_queue WHERE status = ? ORDER BY id LIMIT ?`,
		string(model.StatusPending), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query pending: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var recs []model.AlertRecord
	for rows.Next() {
		var rec model.AlertRecord
		var status, created string
		err := rows.Scan(&rec.ID, &rec.UserID, &rec.KeywordTerm,
			&rec.Post.Title, &rec.Post.URL, &rec.Post.Preview, &status, &created)
		if err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		rec.Status = model.Status(status)
		rec.CreatedAt, _ = time.Parse(timeLayout, created)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// MarkStatus sets the status of the given records in one statement.
func (s *SQLite) MarkStatus(ctx context.Context, ids []int64, status model.Status) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, string(status))
	for _, id := range ids {
		args = append(args, id)
	}
	query := `UPDATE alert_queue SET status = ? WHERE id IN (?` + strings.Repeat(",?", len(ids)-1) + `)`
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark status: %w", err)
	}
	return nil
}

// CountByStatus returns the number of backlog records in the given status.
func (s *SQLite) CountByStatus(ctx context.Context, status model.Status) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM alert_queue WHERE status = ?`, string(status),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count by status: %w", err)
	}
	return count, nil
}

// ReadGlobalCursor returns the firehose cursor.
func (s *SQLite) ReadGlobalCursor(ctx context.Context) (model.GlobalCursor, error) {
	var gc model.GlobalCursor
	err := s.db.QueryRowContext(ctx,
		`SELECT last_post_id, last_comment_id FROM global_cursor WHERE id = 1`,
	).Scan(&gc.LastPostID, &gc.LastCommentID)
	if err != nil {
		return gc, fmt.Errorf("read global cursor: %w", err)
	}
	return gc, nil
}

// SetGlobalCursor advances the firehose cursor. Sides that are empty or
// not newer than the stored value keep their stored value. Only one
// firehose cycle runs at a time, so read-compare-write suffices here.
func (s *SQLite) SetGlobalCursor(ctx context.Context, gc model.GlobalCursor) error {
	cur, err := s.ReadGlobalCursor(ctx)
	if err != nil {
		return err
	}
	if model.ItemIDAfter(gc.LastPostID, cur.LastPostID) {
		cur.LastPostID = gc.LastPostID
	}
	if model.ItemIDAfter(gc.LastCommentID, cur.LastCommentID) {
		cur.LastCommentID = gc.LastCommentID
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE global_cursor SET last_post_id = ?, last_comment_id = ? WHERE id = 1`,
		cur.LastPostID, cur.LastCommentID,
	)
	if err != nil {
		return fmt.Errorf("set global cursor: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type scannable interface {
	Scan(dest ...any) error
}

func scanKeyword(row scannable) (model.Keyword, error) {
	var kw model.Keyword
	var isActive int
	var lastPost, lastComment, lockedUntil, created sql.NullString
	err := row.Scan(&kw.ID, &kw.Term, &isActive, &lastPost, &lastComment, &lockedUntil, &created)
	if err != nil {
		return kw, fmt.Errorf("scan keyword: %w", err)
	}
	kw.IsActive = isActive == 1
	if lastPost.Valid {
		v := lastPost.String
		kw.LastPostID = &v
	}
	if lastComment.Valid {
		v := lastComment.String
		kw.LastCommentID = &v
	}
	if lockedUntil.Valid {
		t, _ := time.Parse(timeLayout, lockedUntil.String)
		kw.LockedUntil = &t
	}
	if created.Valid {
		kw.CreatedAt, _ = time.Parse(timeLayout, created.String)
	}
	return kw, nil
}
