// Package fetcher retrieves new posts and comments from the Reddit feed.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/sethvargo/go-retry"

	"reddit_alert/internal/model"
)

// ErrFeedUnavailable marks a fetch that failed at the HTTP level.
// Callers treat it as retryable next cycle, not fatal.
var ErrFeedUnavailable = errors.New("feed unavailable")

const searchBaseURL = "https://www.reddit.com/search.rss"

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher downloads and parses feed responses.
type Fetcher struct {
	client    HTTPClient
	userAgent string
}

// New creates a Fetcher. The user agent must be descriptive: the feed
// rejects generic or missing identifiers with non-200 responses.
func New(client HTTPClient, userAgent string) *Fetcher {
	if userAgent == "" {
		userAgent = "reddit-alert/1.0 (keyword notifier)"
	}
	return &Fetcher{client: client, userAgent: userAgent}
}

// Search fetches the newest items matching keyword, newest first.
// Posts come from the post search, comments from the comment search.
// A non-200 status or unparseable body yields ErrFeedUnavailable.
func (f *Fetcher) Search(ctx context.Context, keyword string, kind model.ItemKind) ([]model.FeedItem, error) {
	q := url.Values{}
	q.Set("q", keyword)
	q.Set("sort", "new")
	if kind == model.KindComment {
		q.Set("type", "comment")
	}
	body, err := f.get(ctx, searchBaseURL+"?"+q.Encode())
	if err != nil {
		return nil, err
	}

	feed, err := gofeed.NewParser().ParseString(body)
	if err != nil {
		return nil, fmt.Errorf("%w: parse feed: %v", ErrFeedUnavailable, err)
	}

	items := make([]model.FeedItem, 0, len(feed.Items))
	for _, entry := range feed.Items {
		item, ok := toFeedItem(entry, kind)
		if !ok {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// get performs the request with one bounded retry on transport errors.
// HTTP-level failures are not retried: the next scan cycle handles them.
func (f *Fetcher) get(ctx context.Context, rawURL string) (string, error) {
	var body string
	backoff := retry.WithMaxRetries(2, retry.NewConstant(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", f.userAgent)

		resp, err := f.client.Do(req)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("%w: %v", ErrFeedUnavailable, err))
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%w: unexpected status %d", ErrFeedUnavailable, resp.StatusCode)
		}

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 5*1024*1024))
		if err != nil {
			return retry.RetryableError(fmt.Errorf("%w: read body: %v", ErrFeedUnavailable, err))
		}
		body = string(raw)
		return nil
	})
	return body, err
}

// SinceCursor returns the newest-first prefix of items strictly before
// the stored cursor ID. An empty or unknown cursor keeps the whole page.
func SinceCursor(items []model.FeedItem, cursorID string) []model.FeedItem {
	if cursorID == "" {
		return items
	}
	for i, item := range items {
		if item.ID == cursorID {
			return items[:i]
		}
	}
	return items
}

// NewestID returns the newest feed item ID across items, or "".
func NewestID(items []model.FeedItem) string {
	newest := ""
	for _, item := range items {
		if model.ItemIDAfter(item.ID, newest) {
			newest = item.ID
		}
	}
	return newest
}

func toFeedItem(entry *gofeed.Item, kind model.ItemKind) (model.FeedItem, bool) {
	if entry.GUID == "" || entry.Link == "" {
		return model.FeedItem{}, false
	}
	// Search results mix in subreddit and user pages; only real posts
	// carry a /comments/ permalink.
	if kind == model.KindPost && !strings.Contains(entry.Link, "/comments/") {
		return model.FeedItem{}, false
	}
	body := entry.Content
	if body == "" {
		body = entry.Description
	}
	return model.FeedItem{
		ID:    entry.GUID,
		Kind:  kind,
		Title: entry.Title,
		Body:  Preview(body),
		URL:   entry.Link,
	}, true
}

var (
	tagRe   = regexp.MustCompile(`<[^>]*>`)
	spaceRe = regexp.MustCompile(`\s+`)
)

// Preview strips HTML tags, collapses whitespace, and truncates to 200
// runes, matching what is stored with an alert record.
func Preview(s string) string {
	s = tagRe.ReplaceAllString(s, "")
	s = strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
	runes := []rune(s)
	if len(runes) > 200 {
		return string(runes[:200])
	}
	return s
}
