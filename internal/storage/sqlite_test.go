package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"reddit_alert/internal/model"
)

var ignoreRecordTS = cmpopts.IgnoreFields(model.AlertRecord{}, "CreatedAt")

func newTestDB(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func createKeyword(t *testing.T, s *SQLite, term string) model.Keyword {
	t.Helper()
	kw := model.Keyword{Term: term, IsActive: true}
	if err := s.CreateKeyword(context.Background(), &kw); err != nil {
		t.Fatalf("create keyword: %v", err)
	}
	return kw
}

func TestListActiveKeywords(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	active := createKeyword(t, s, "launch")
	inactive := model.Keyword{Term: "retired", IsActive: false}
	if err := s.CreateKeyword(ctx, &inactive); err != nil {
		t.Fatalf("create keyword: %v", err)
	}

	got, err := s.ListActiveKeywords(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 active keyword, got %d", len(got))
	}
	if diff := cmp.Diff(active.Term, got[0].Term); diff != "" {
		t.Errorf("term mismatch (-want +got):\n%s", diff)
	}
}

func TestLeaseMutualExclusion(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)
	kw := createKeyword(t, s, "launch")

	ok, err := s.AcquireLease(ctx, kw.ID, 5*time.Minute)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !ok {
		t.Fatal("first acquire should succeed")
	}

	ok, err = s.AcquireLease(ctx, kw.ID, 5*time.Minute)
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if ok {
		t.Fatal("second acquire within the lease duration should fail")
	}
}

func TestLeaseExpiryAllowsReacquire(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)
	kw := createKeyword(t, s, "launch")

	if ok, err := s.AcquireLease(ctx, kw.ID, 5*time.Minute); err != nil || !ok {
		t.Fatalf("acquire: ok=%v err=%v", ok, err)
	}

	// Backdate the lease to one minute in the past.
	stale := time.Now().UTC().Add(-time.Minute).Format(timeLayout)
	if _, err := s.db.ExecContext(ctx, `UPDATE keywords SET locked_until = ? WHERE id = ?`, stale, kw.ID); err != nil {
		t.Fatalf("backdate lease: %v", err)
	}

	ok, err := s.AcquireLease(ctx, kw.ID, 5*time.Minute)
	if err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	if !ok {
		t.Fatal("acquire after expiry should succeed")
	}
}

func TestReleaseLease(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)
	kw := createKeyword(t, s, "launch")

	if ok, _ := s.AcquireLease(ctx, kw.ID, 5*time.Minute); !ok {
		t.Fatal("acquire should succeed")
	}
	if err := s.ReleaseLease(ctx, kw.ID); err != nil {
		t.Fatalf("release: %v", err)
	}
	ok, err := s.AcquireLease(ctx, kw.ID, 5*time.Minute)
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	if !ok {
		t.Fatal("acquire after release should succeed")
	}
}

func TestCursorMonotonicity(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)
	kw := createKeyword(t, s, "launch")

	// Steps run in sequence: each kind advances independently and never
	// regresses, no matter what the other kind does.
	steps := []struct {
		name    string
		kind    model.ItemKind
		advance string
		want    model.Cursor
	}{
		{name: "seed posts", kind: model.KindPost, advance: "t3_1k9v01", want: model.Cursor{PostID: "t3_1k9v01"}},
		{name: "seed comments", kind: model.KindComment, advance: "t1_m4aa01", want: model.Cursor{PostID: "t3_1k9v01", CommentID: "t1_m4aa01"}},
		{name: "newer post wins", kind: model.KindPost, advance: "t3_1k9xp2", want: model.Cursor{PostID: "t3_1k9xp2", CommentID: "t1_m4aa01"}},
		{name: "older post rejected", kind: model.KindPost, advance: "t3_1k9wm8", want: model.Cursor{PostID: "t3_1k9xp2", CommentID: "t1_m4aa01"}},
		{name: "shorter post id rejected", kind: model.KindPost, advance: "t3_zzzzz", want: model.Cursor{PostID: "t3_1k9xp2", CommentID: "t1_m4aa01"}},
		{name: "longer comment id wins", kind: model.KindComment, advance: "t1_10000000", want: model.Cursor{PostID: "t3_1k9xp2", CommentID: "t1_10000000"}},
		{name: "empty id is a no-op", kind: model.KindPost, advance: "", want: model.Cursor{PostID: "t3_1k9xp2", CommentID: "t1_10000000"}},
	}

	for _, tt := range steps {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.AdvanceCursor(ctx, kw.ID, tt.kind, tt.advance); err != nil {
				t.Fatalf("advance: %v", err)
			}
			got, err := s.ReadCursor(ctx, kw.ID)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("cursor mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSubscriptions(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)
	kw := createKeyword(t, s, "launch")
	other := createKeyword(t, s, "rust")

	if err := s.CreateUser(ctx, &model.User{ID: "u-1", Email: "one@example.com"}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	subs := []model.Subscription{
		{UserID: "u-1", KeywordID: kw.ID, IsActive: true, WholeWord: true, MatchPosts: true},
		{UserID: "u-2", KeywordID: kw.ID, IsActive: true, MatchPosts: true, MatchComments: true},
		{UserID: "u-3", KeywordID: kw.ID, IsActive: false, MatchPosts: true},
		{UserID: "u-1", KeywordID: other.ID, IsActive: true, MatchPosts: true},
	}
	for i := range subs {
		if err := s.CreateSubscription(ctx, &subs[i]); err != nil {
			t.Fatalf("create subscription %d: %v", i, err)
		}
	}

	got, err := s.ListSubscribers(ctx, kw.ID)
	if err != nil {
		t.Fatalf("list subscribers: %v", err)
	}

	var gotUsers []string
	for _, sub := range got {
		gotUsers = append(gotUsers, sub.UserID)
	}
	// u-3 is inactive, u-1's second subscription is for another keyword.
	if diff := cmp.Diff([]string{"u-1", "u-2"}, gotUsers); diff != "" {
		t.Errorf("subscribers mismatch (-want +got):\n%s", diff)
	}
	if !got[0].WholeWord {
		t.Error("expected u-1 whole_word preference to round-trip")
	}
}

func TestEmailsByUserIDs(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	for _, u := range []model.User{
		{ID: "u-1", Email: "one@example.com"},
		{ID: "u-2", Email: "two@example.com"},
	} {
		u := u
		if err := s.CreateUser(ctx, &u); err != nil {
			t.Fatalf("create user: %v", err)
		}
	}

	got, err := s.EmailsByUserIDs(ctx, []string{"u-1", "u-2", "u-missing"})
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	want := map[string]string{"u-1": "one@example.com", "u-2": "two@example.com"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("emails mismatch (-want +got):\n%s", diff)
	}

	empty, err := s.EmailsByUserIDs(ctx, nil)
	if err != nil {
		t.Fatalf("empty lookup: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected empty map, got %v", empty)
	}
}

func TestBacklogLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	recs := []model.AlertRecord{
		{UserID: "u-1", KeywordTerm: "launch", Post: model.PostData{Title: "A", URL: "https://a", Preview: "p"}},
		{UserID: "u-1", KeywordTerm: "launch", Post: model.PostData{Title: "B", URL: "https://b"}},
		{UserID: "u-2", KeywordTerm: "rust", Post: model.PostData{Title: "C", URL: "https://c"}},
	}
	n, err := s.EnqueueAlerts(ctx, recs)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 enqueued, got %d", n)
	}

	pending, err := s.SelectPending(ctx, 10)
	if err != nil {
		t.Fatalf("select pending: %v", err)
	}
	want := []model.AlertRecord{
		{ID: pending[0].ID, UserID: "u-1", KeywordTerm: "launch", Post: model.PostData{Title: "A", URL: "https://a", Preview: "p"}, Status: model.StatusPending},
		{ID: pending[1].ID, UserID: "u-1", KeywordTerm: "launch", Post: model.PostData{Title: "B", URL: "https://b"}, Status: model.StatusPending},
		{ID: pending[2].ID, UserID: "u-2", KeywordTerm: "rust", Post: model.PostData{Title: "C", URL: "https://c"}, Status: model.StatusPending},
	}
	if diff := cmp.Diff(want, pending, ignoreRecordTS); diff != "" {
		t.Errorf("pending mismatch (-want +got):\n%s", diff)
	}

	if err := s.MarkStatus(ctx, []int64{pending[0].ID, pending[1].ID}, model.StatusSent); err != nil {
		t.Fatalf("mark sent: %v", err)
	}

	remaining, err := s.SelectPending(ctx, 10)
	if err != nil {
		t.Fatalf("select pending: %v", err)
	}
	if len(remaining) != 1 || remaining[0].KeywordTerm != "rust" {
		t.Fatalf("expected only the rust record pending, got %+v", remaining)
	}

	sent, err := s.CountByStatus(ctx, model.StatusSent)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if sent != 2 {
		t.Errorf("expected 2 sent, got %d", sent)
	}
}

func TestSelectPendingBounded(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	var recs []model.AlertRecord
	for i := 0; i < 30; i++ {
		recs = append(recs, model.AlertRecord{UserID: "u-1", KeywordTerm: "launch", Post: model.PostData{Title: "T", URL: "https://t"}})
	}
	if _, err := s.EnqueueAlerts(ctx, recs); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	got, err := s.SelectPending(ctx, 20)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(got) != 20 {
		t.Errorf("expected batch of 20, got %d", len(got))
	}
}

func TestGlobalCursorAdvanceOnly(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	tests := []struct {
		name string
		set  model.GlobalCursor
		want model.GlobalCursor
	}{
		{
			name: "seed both sides",
			set:  model.GlobalCursor{LastPostID: "z0001", LastCommentID: "m0001"},
			want: model.GlobalCursor{LastPostID: "z0001", LastCommentID: "m0001"},
		},
		{
			name: "advance posts only",
			set:  model.GlobalCursor{LastPostID: "z0009"},
			want: model.GlobalCursor{LastPostID: "z0009", LastCommentID: "m0001"},
		},
		{
			name: "regression rejected",
			set:  model.GlobalCursor{LastPostID: "z0002", LastCommentID: "a9999"},
			want: model.GlobalCursor{LastPostID: "z0009", LastCommentID: "m0001"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.SetGlobalCursor(ctx, tt.set); err != nil {
				t.Fatalf("set: %v", err)
			}
			got, err := s.ReadGlobalCursor(ctx)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("cursor mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// Ensure the Storage interface is satisfied.
var _ Storage = (*SQLite)(nil)
