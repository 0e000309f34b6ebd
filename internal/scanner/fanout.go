package scanner

import (
	"reddit_alert/internal/matcher"
	"reddit_alert/internal/model"
)

// fanOut expands matched items into one pending alert record per
// (subscriber, item) pair whose preferences accept the item. Each
// subscriber's own whole-word flag decides the match, so two
// subscribers to the same keyword may disagree on a given item.
// The result is append-only input for the backlog; deduplication
// happens later, in the dispatcher's grouping step.
func fanOut(term string, items []model.FeedItem, subs []model.Subscription) []model.AlertRecord {
	var recs []model.AlertRecord
	for _, item := range items {
		for _, sub := range subs {
			if !sub.IsActive {
				continue
			}
			if item.Kind == model.KindPost && !sub.MatchPosts {
				continue
			}
			if item.Kind == model.KindComment && !sub.MatchComments {
				continue
			}
			if !itemMatches(item, term, sub.WholeWord) {
				continue
			}
			recs = append(recs, model.AlertRecord{
				UserID:      sub.UserID,
				KeywordTerm: term,
				Post: model.PostData{
					Title:   item.Title,
					URL:     item.URL,
					Preview: item.Body,
				},
				Status: model.StatusPending,
			})
		}
	}
	return recs
}

// itemMatches mirrors the original matching surface: title, body, or
// permalink may carry the keyword.
func itemMatches(item model.FeedItem, term string, wholeWord bool) bool {
	return matcher.MatchesOne(item.Title, term, wholeWord) ||
		matcher.MatchesOne(item.Body, term, wholeWord) ||
		matcher.MatchesOne(item.URL, term, wholeWord)
}
