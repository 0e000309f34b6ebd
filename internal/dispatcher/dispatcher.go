// Package dispatcher drains the alert backlog into batched emails.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"

	"reddit_alert/internal/mailer"
	"reddit_alert/internal/model"
	"reddit_alert/internal/storage"
)

// Summary reports what one dispatch cycle did. Sent and Failed count
// records; EmailsSent counts delivered messages.
type Summary struct {
	Selected   int `json:"selected"`
	EmailsSent int `json:"emails_sent"`
	Sent       int `json:"sent"`
	Failed     int `json:"failed"`
	Stuck      int `json:"stuck_processing"`
}

// Dispatcher drains pending alert records in bounded batches.
type Dispatcher struct {
	store     storage.Storage
	sender    mailer.Sender
	from      string
	batchSize int
	log       *slog.Logger
}

// New creates a Dispatcher. from is the sending address; batchSize
// bounds per-cycle work.
func New(store storage.Storage, sender mailer.Sender, from string, batchSize int, log *slog.Logger) *Dispatcher {
	return &Dispatcher{store: store, sender: sender, from: from, batchSize: batchSize, log: log}
}

type groupKey struct {
	userID string
	term   string
}

// Drain runs one dispatch cycle. Selected records flip to processing
// before any external call, so a concurrent cycle cannot pick them up
// again. Each (user, keyword) group gets exactly one email; a group's
// records move to sent or failed together. A failing group never blocks
// the others.
func (d *Dispatcher) Drain(ctx context.Context) (Summary, error) {
	var sum Summary

	recs, err := d.store.SelectPending(ctx, d.batchSize)
	if err != nil {
		return sum, fmt.Errorf("select pending: %w", err)
	}
	sum.Selected = len(recs)
	if len(recs) == 0 {
		return sum, nil
	}

	ids := make([]int64, len(recs))
	for i, rec := range recs {
		ids[i] = rec.ID
	}
	if err := d.store.MarkStatus(ctx, ids, model.StatusProcessing); err != nil {
		return sum, fmt.Errorf("mark processing: %w", err)
	}

	// One batched address lookup for all users in the batch.
	var userIDs []string
	seen := make(map[string]bool)
	for _, rec := range recs {
		if !seen[rec.UserID] {
			seen[rec.UserID] = true
			userIDs = append(userIDs, rec.UserID)
		}
	}
	emails, err := d.store.EmailsByUserIDs(ctx, userIDs)
	if err != nil {
		return sum, fmt.Errorf("resolve emails: %w", err)
	}

	groups := make(map[groupKey][]model.AlertRecord)
	var order []groupKey
	for _, rec := range recs {
		key := groupKey{userID: rec.UserID, term: rec.KeywordTerm}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], rec)
	}

	for _, key := range order {
		group := groups[key]
		groupIDs := make([]int64, len(group))
		for i, rec := range group {
			groupIDs[i] = rec.ID
		}

		to, ok := emails[key.userID]
		if !ok || to == "" {
			d.log.Error("user has no resolvable email", "user_id", key.userID, "records", len(group))
			d.markGroup(ctx, groupIDs, model.StatusFailed)
			sum.Failed += len(group)
			continue
		}

		subject, htmlBody, err := renderEmail(key.term, group)
		if err != nil {
			d.log.Error("render email", "user_id", key.userID, "keyword", key.term, "error", err)
			d.markGroup(ctx, groupIDs, model.StatusFailed)
			sum.Failed += len(group)
			continue
		}

		from := fmt.Sprintf("Reddit Alert <%s>", d.from)
		if err := d.sender.Send(ctx, from, to, subject, htmlBody); err != nil {
			d.log.Error("send email", "user_id", key.userID, "keyword", key.term, "error", err)
			d.markGroup(ctx, groupIDs, model.StatusFailed)
			sum.Failed += len(group)
			continue
		}

		d.markGroup(ctx, groupIDs, model.StatusSent)
		sum.Sent += len(group)
		sum.EmailsSent++
		d.log.Info("email sent", "user_id", key.userID, "keyword", key.term, "matches", len(group))
	}

	// Records stranded in processing by an earlier crash are never
	// requeued automatically; surface the count so operators notice.
	if stuck, err := d.store.CountByStatus(ctx, model.StatusProcessing); err == nil {
		sum.Stuck = stuck
	}
	return sum, nil
}

func (d *Dispatcher) markGroup(ctx context.Context, ids []int64, status model.Status) {
	if err := d.store.MarkStatus(ctx, ids, status); err != nil {
		d.log.Error("mark status", "status", status, "error", err)
	}
}
