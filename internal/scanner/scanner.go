// Package scanner runs the scan half of the pipeline: lease a keyword,
// fetch new feed items since the cursor, match, and fan out pending
// alerts to the backlog.
package scanner

import (
	"context"
	"fmt"
	"log/slog"

	"reddit_alert/internal/fetcher"
	"reddit_alert/internal/lease"
	"reddit_alert/internal/matcher"
	"reddit_alert/internal/model"
	"reddit_alert/internal/storage"
)

// Mode selects the scan strategy. The two modes use different cursor
// schemes and must not run in the same process.
type Mode string

// Scan modes.
const (
	ModeKeyword  Mode = "keyword"
	ModeFirehose Mode = "firehose"
)

// Feed is the slice of the fetcher the scanner depends on.
type Feed interface {
	Search(ctx context.Context, keyword string, kind model.ItemKind) ([]model.FeedItem, error)
	FetchBlock(ctx context.Context, gc model.GlobalCursor) ([]model.FeedItem, model.GlobalCursor, error)
}

// Summary reports what one scan cycle did. FeedErrors counts failures
// reaching or reading the feed; StoreErrors counts storage failures, so
// the two are distinguishable to callers judging feed health.
type Summary struct {
	Keywords    int `json:"keywords"`
	Items       int `json:"items"`
	Enqueued    int `json:"enqueued"`
	FeedErrors  int `json:"feed_errors"`
	StoreErrors int `json:"store_errors"`
}

// Scanner drives one scan cycle per invocation.
type Scanner struct {
	store  storage.Storage
	feed   Feed
	leases *lease.Manager
	mode   Mode
	log    *slog.Logger
}

// New creates a Scanner.
func New(store storage.Storage, feed Feed, leases *lease.Manager, mode Mode, log *slog.Logger) *Scanner {
	return &Scanner{store: store, feed: feed, leases: leases, mode: mode, log: log}
}

// Run executes one scan cycle in the configured mode.
func (s *Scanner) Run(ctx context.Context) (Summary, error) {
	if s.mode == ModeFirehose {
		return s.scanFirehose(ctx)
	}
	return s.scanKeywords(ctx)
}

// scanKeywords processes active keywords one at a time, each under its
// own lease. Per-keyword failures are counted and logged; they never
// abort the cycle.
func (s *Scanner) scanKeywords(ctx context.Context) (Summary, error) {
	var sum Summary

	keywords, err := s.store.ListActiveKeywords(ctx)
	if err != nil {
		return sum, fmt.Errorf("list keywords: %w", err)
	}

	for _, kw := range keywords {
		if ctx.Err() != nil {
			return sum, ctx.Err()
		}
		sum.Keywords++

		l, ok, err := s.leases.Acquire(ctx, kw.ID)
		if err != nil {
			s.log.Error("acquire lease", "keyword", kw.Term, "error", err)
			sum.StoreErrors++
			continue
		}
		if !ok {
			s.log.Debug("lease held, skipping", "keyword", kw.Term)
			continue
		}

		if err := s.scanOne(ctx, kw, &sum); err != nil {
			s.log.Error("scan keyword", "keyword", kw.Term, "error", err)
			sum.FeedErrors++
		}

		// Release on success and failure alike, so an errored scan
		// leaves the keyword retryable next cycle.
		if err := s.leases.Release(ctx, l); err != nil {
			s.log.Error("release lease", "keyword", kw.Term, "error", err)
		}
	}
	return sum, nil
}

// scanOne fetches, matches and enqueues for a single leased keyword.
// The cursors advance only after every fetched item has been evaluated;
// a partial failure leaves them untouched so nothing is silently skipped.
func (s *Scanner) scanOne(ctx context.Context, kw model.Keyword, sum *Summary) error {
	subs, err := s.store.ListSubscribers(ctx, kw.ID)
	if err != nil {
		return fmt.Errorf("list subscribers: %w", err)
	}
	if len(subs) == 0 {
		s.log.Debug("no subscribers", "keyword", kw.Term)
		return nil
	}

	wantPosts, wantComments := false, false
	for _, sub := range subs {
		wantPosts = wantPosts || sub.MatchPosts
		wantComments = wantComments || sub.MatchComments
	}

	cursor, err := s.store.ReadCursor(ctx, kw.ID)
	if err != nil {
		return fmt.Errorf("read cursor: %w", err)
	}

	// Posts and comments live in disjoint ID spaces, so each kind cuts
	// at and advances its own cursor.
	var newPosts, newComments []model.FeedItem
	if wantPosts {
		posts, err := s.feed.Search(ctx, kw.Term, model.KindPost)
		if err != nil {
			return fmt.Errorf("search posts: %w", err)
		}
		newPosts = fetcher.SinceCursor(posts, cursor.PostID)
	}
	if wantComments {
		comments, err := s.feed.Search(ctx, kw.Term, model.KindComment)
		if err != nil {
			return fmt.Errorf("search comments: %w", err)
		}
		newComments = fetcher.SinceCursor(comments, cursor.CommentID)
	}
	fetched := append(append([]model.FeedItem(nil), newPosts...), newComments...)
	sum.Items += len(fetched)

	recs := fanOut(kw.Term, fetched, subs)
	n, err := s.store.EnqueueAlerts(ctx, recs)
	if err != nil {
		return fmt.Errorf("enqueue alerts: %w", err)
	}
	sum.Enqueued += n

	if newest := fetcher.NewestID(newPosts); newest != "" {
		if err := s.store.AdvanceCursor(ctx, kw.ID, model.KindPost, newest); err != nil {
			return fmt.Errorf("advance post cursor: %w", err)
		}
	}
	if newest := fetcher.NewestID(newComments); newest != "" {
		if err := s.store.AdvanceCursor(ctx, kw.ID, model.KindComment, newest); err != nil {
			return fmt.Errorf("advance comment cursor: %w", err)
		}
	}
	return nil
}

// scanFirehose scans a contiguous ID block against every active keyword
// with one automaton pass per item, then advances the global cursor once.
func (s *Scanner) scanFirehose(ctx context.Context) (Summary, error) {
	var sum Summary

	keywords, err := s.store.ListActiveKeywords(ctx)
	if err != nil {
		return sum, fmt.Errorf("list keywords: %w", err)
	}
	sum.Keywords = len(keywords)
	if len(keywords) == 0 {
		return sum, nil
	}

	gc, err := s.store.ReadGlobalCursor(ctx)
	if err != nil {
		return sum, fmt.Errorf("read global cursor: %w", err)
	}

	items, next, err := s.feed.FetchBlock(ctx, gc)
	if err != nil {
		sum.FeedErrors++
		return sum, fmt.Errorf("fetch block: %w", err)
	}
	sum.Items = len(items)

	terms := make([]string, len(keywords))
	byTerm := make(map[string]model.Keyword, len(keywords))
	for i, kw := range keywords {
		terms[i] = kw.Term
		byTerm[kw.Term] = kw
	}
	auto := matcher.New(terms)

	// The scan text mirrors itemMatches: title, body, and permalink all
	// count as matching surface.
	hits := make(map[int64][]model.FeedItem)
	for _, item := range items {
		for _, term := range auto.Scan(item.Title + "\n" + item.Body + "\n" + item.URL) {
			kw := byTerm[term]
			hits[kw.ID] = append(hits[kw.ID], item)
		}
	}

	var recs []model.AlertRecord
	for _, kw := range keywords {
		matched := hits[kw.ID]
		if len(matched) == 0 {
			continue
		}
		subs, err := s.store.ListSubscribers(ctx, kw.ID)
		if err != nil {
			return sum, fmt.Errorf("list subscribers: %w", err)
		}
		recs = append(recs, fanOut(kw.Term, matched, subs)...)
	}

	n, err := s.store.EnqueueAlerts(ctx, recs)
	if err != nil {
		return sum, fmt.Errorf("enqueue alerts: %w", err)
	}
	sum.Enqueued = n

	if err := s.store.SetGlobalCursor(ctx, next); err != nil {
		return sum, fmt.Errorf("set global cursor: %w", err)
	}
	return sum, nil
}
