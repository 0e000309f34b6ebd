// Package model defines the domain types used across the application.
package model

import (
	"strings"
	"time"
)

// Keyword is a search term users can subscribe to. LastPostID and
// LastCommentID are the feed cursors: the newest item of each kind
// evaluated by a completed scan. Post and comment IDs come from
// disjoint counters, so each kind keeps its own position.
// LockedUntil is the scan lease expiry; a nil or past value means the
// keyword is free to scan.
type Keyword struct {
	ID            int64
	Term          string
	IsActive      bool
	LastPostID    *string
	LastCommentID *string
	LockedUntil   *time.Time
	CreatedAt     time.Time
}

// Cursor holds a keyword's per-kind scan positions. IDs carry their
// "tN_" type prefix, matching what the search feed reports.
type Cursor struct {
	PostID    string
	CommentID string
}

// Subscription links a user to a keyword with per-user match preferences.
type Subscription struct {
	UserID        string
	KeywordID     int64
	IsActive      bool
	WholeWord     bool
	MatchPosts    bool
	MatchComments bool
	CreatedAt     time.Time
}

// User is the delivery target for alerts.
type User struct {
	ID        string
	Email     string
	CreatedAt time.Time
}

// ItemKind distinguishes posts from comments in the feed.
type ItemKind string

// Supported feed item kinds.
const (
	KindPost    ItemKind = "post"
	KindComment ItemKind = "comment"
)

// FeedItem is a single entry pulled from the feed. It is transient:
// produced by the fetcher, evaluated once, then discarded.
type FeedItem struct {
	ID    string
	Kind  ItemKind
	Title string
	Body  string
	URL   string
}

// Status is the delivery state of an alert record. Transitions are
// monotone: pending -> processing -> sent or failed.
type Status string

// Alert record statuses.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
)

// PostData is the matched-item snapshot embedded in an alert record.
type PostData struct {
	Title   string
	URL     string
	Preview string
}

// AlertRecord is one queued notification for one user about one matched item.
type AlertRecord struct {
	ID          int64
	UserID      string
	KeywordTerm string
	Post        PostData
	Status      Status
	CreatedAt   time.Time
}

// GlobalCursor tracks the newest post and comment IDs seen by the
// firehose scan path. IDs are bare base-36 (no type prefix).
type GlobalCursor struct {
	LastPostID    string
	LastCommentID string
}

// ItemIDAfter reports whether feed item ID a is strictly newer than b.
// IDs are base-36 counters, optionally carrying a "tN_" type prefix;
// the prefix is ignored and the payloads compare by length then value.
// An empty b means any a is newer; an empty a never is.
func ItemIDAfter(a, b string) bool {
	a = stripTypePrefix(a)
	b = stripTypePrefix(b)
	if a == "" {
		return false
	}
	if b == "" {
		return true
	}
	if len(a) != len(b) {
		return len(a) > len(b)
	}
	return a > b
}

func stripTypePrefix(id string) string {
	if i := strings.IndexByte(id, '_'); i >= 0 {
		return id[i+1:]
	}
	return id
}
