package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"reddit_alert/internal/model"
)

const (
	infoBaseURL = "https://www.reddit.com/api/info.json"

	// Per kind: firehoseBatches lookups of firehoseBatchSize IDs each,
	// all in flight at once with a single join barrier.
	firehoseBatches   = 10
	firehoseBatchSize = 100
)

// infoListing is the subset of the ID-lookup response the scan needs.
type infoListing struct {
	Data struct {
		Children []struct {
			Kind string `json:"kind"`
			Data struct {
				Name      string `json:"name"`
				Title     string `json:"title"`
				SelfText  string `json:"selftext"`
				Body      string `json:"body"`
				LinkTitle string `json:"link_title"`
				Permalink string `json:"permalink"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// FetchBlock fetches the next contiguous block of candidate IDs after
// the given cursor, for both posts and comments. Individual batches
// that fail or return a non-JSON body are dropped silently; this is a
// best-effort scan, not an exactly-complete one. The returned cursor
// holds the newest ID actually observed per kind (unchanged sides keep
// the input value). A cursor side that is empty is skipped: the
// firehose needs a seed ID to count from.
func (f *Fetcher) FetchBlock(ctx context.Context, gc model.GlobalCursor) ([]model.FeedItem, model.GlobalCursor, error) {
	type batch struct {
		kind     model.ItemKind
		prefix   string
		fullname []string
	}

	var batches []batch
	for _, span := range []struct {
		kind   model.ItemKind
		prefix string
		from   string
	}{
		{model.KindPost, "t3", gc.LastPostID},
		{model.KindComment, "t1", gc.LastCommentID},
	} {
		ids := nextIDs(span.from, firehoseBatches*firehoseBatchSize)
		for start := 0; start < len(ids); start += firehoseBatchSize {
			end := min(start+firehoseBatchSize, len(ids))
			names := make([]string, 0, end-start)
			for _, id := range ids[start:end] {
				names = append(names, span.prefix+"_"+id)
			}
			batches = append(batches, batch{kind: span.kind, prefix: span.prefix, fullname: names})
		}
	}
	if len(batches) == 0 {
		return nil, gc, fmt.Errorf("firehose cursor is unseeded")
	}

	var (
		mu    sync.Mutex
		items []model.FeedItem
		wg    sync.WaitGroup
	)
	for _, b := range batches {
		wg.Add(1)
		go func(b batch) {
			defer wg.Done()
			got, err := f.fetchInfoBatch(ctx, b.kind, b.fullname)
			if err != nil {
				return
			}
			mu.Lock()
			items = append(items, got...)
			mu.Unlock()
		}(b)
	}
	wg.Wait()

	next := gc
	for _, item := range items {
		id := strings.TrimPrefix(item.ID, "t3_")
		id = strings.TrimPrefix(id, "t1_")
		switch item.Kind {
		case model.KindPost:
			if model.ItemIDAfter(id, next.LastPostID) {
				next.LastPostID = id
			}
		case model.KindComment:
			if model.ItemIDAfter(id, next.LastCommentID) {
				next.LastCommentID = id
			}
		}
	}
	return items, next, nil
}

func (f *Fetcher) fetchInfoBatch(ctx context.Context, kind model.ItemKind, fullnames []string) ([]model.FeedItem, error) {
	body, err := f.get(ctx, infoBaseURL+"?id="+strings.Join(fullnames, ","))
	if err != nil {
		return nil, err
	}

	var listing infoListing
	if err := json.Unmarshal([]byte(body), &listing); err != nil {
		return nil, fmt.Errorf("decode listing: %w", err)
	}

	items := make([]model.FeedItem, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		d := child.Data
		if d.Name == "" {
			continue
		}
		item := model.FeedItem{
			ID:   d.Name,
			Kind: kind,
			URL:  "https://www.reddit.com" + d.Permalink,
		}
		switch kind {
		case model.KindPost:
			item.Title = d.Title
			item.Body = Preview(d.SelfText)
		case model.KindComment:
			item.Title = "Comment match: " + d.LinkTitle
			item.Body = Preview(d.Body)
		}
		items = append(items, item)
	}
	return items, nil
}

// nextIDs returns count consecutive base-36 IDs following last.
// An empty or malformed seed yields nil.
func nextIDs(last string, count int) []string {
	if last == "" {
		return nil
	}
	v, err := strconv.ParseUint(last, 36, 64)
	if err != nil {
		return nil
	}
	ids := make([]string, count)
	for i := range ids {
		v++
		ids[i] = strconv.FormatUint(v, 36)
	}
	return ids
}
