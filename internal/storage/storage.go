// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"time"

	"reddit_alert/internal/model"
)

// Storage is the interface for all persistence operations.
type Storage interface {
	CreateKeyword(ctx context.Context, kw *model.Keyword) error
	ListActiveKeywords(ctx context.Context) ([]model.Keyword, error)

	// AcquireLease claims the scan lease on a keyword. It succeeds only
	// if no lease is held or the held lease has expired, and then sets
	// locked_until to now+ttl in one atomic conditional update.
	AcquireLease(ctx context.Context, keywordID int64, ttl time.Duration) (bool, error)
	// ReleaseLease clears the lease unconditionally.
	ReleaseLease(ctx context.Context, keywordID int64) error

	// ReadCursor returns the keyword's per-kind cursor positions.
	ReadCursor(ctx context.Context, keywordID int64) (model.Cursor, error)
	// AdvanceCursor stores newID as the keyword's cursor for kind. It
	// is a no-op when newID is not strictly newer than the stored value
	// of that kind.
	AdvanceCursor(ctx context.Context, keywordID int64, kind model.ItemKind, newID string) error

	CreateUser(ctx context.Context, u *model.User) error
	// EmailsByUserIDs resolves user IDs to email addresses in one query.
	// Unknown IDs are simply absent from the result.
	EmailsByUserIDs(ctx context.Context, ids []string) (map[string]string, error)

	CreateSubscription(ctx context.Context, sub *model.Subscription) error
	ListSubscribers(ctx context.Context, keywordID int64) ([]model.Subscription, error)

	EnqueueAlerts(ctx context.Context, recs []model.AlertRecord) (int, error)
	SelectPending(ctx context.Context, limit int) ([]model.AlertRecord, error)
	MarkStatus(ctx context.Context, ids []int64, status model.Status) error
	CountByStatus(ctx context.Context, status model.Status) (int, error)

	ReadGlobalCursor(ctx context.Context) (model.GlobalCursor, error)
	// SetGlobalCursor advances the firehose cursor. Either side that is
	// empty or not newer than the stored value is left unchanged.
	SetGlobalCursor(ctx context.Context, gc model.GlobalCursor) error

	Close() error
}
