package matcher

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMatchesOneWholeWord(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		keyword   string
		wholeWord bool
		want      bool
	}{
		{name: "substring inside word", text: "catfish", keyword: "cat", wholeWord: true, want: false},
		{name: "word with space boundary", text: "cat fish", keyword: "cat", wholeWord: true, want: true},
		{name: "substring mode matches inside word", text: "catfish", keyword: "cat", wholeWord: false, want: true},
		{name: "start of string", text: "cat is here", keyword: "cat", wholeWord: true, want: true},
		{name: "end of string", text: "here is a cat", keyword: "cat", wholeWord: true, want: true},
		{name: "punctuation boundaries", text: "really? cat!", keyword: "cat", wholeWord: true, want: true},
		{name: "case insensitive", text: "CAT fish", keyword: "cat", wholeWord: true, want: true},
		{name: "case insensitive keyword", text: "cat fish", keyword: "CAT", wholeWord: true, want: true},
		{name: "metacharacters treated literally", text: "learning c++ today", keyword: "c++", wholeWord: false, want: true},
		{name: "metacharacters whole word", text: "learning c++ today", keyword: "c++", wholeWord: true, want: true},
		{name: "metacharacters no false positive", text: "learning cpp today", keyword: "c++", wholeWord: false, want: false},
		{name: "dot is literal", text: "nodejs", keyword: "n.de", wholeWord: false, want: false},
		{name: "empty text", text: "", keyword: "cat", wholeWord: false, want: false},
		{name: "empty keyword", text: "cat", keyword: "", wholeWord: false, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MatchesOne(tt.text, tt.keyword, tt.wholeWord)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("MatchesOne mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// TestScanMatchesUnionOfSingles verifies the automaton returns exactly
// the keywords that MatchesOne finds individually, never more or less.
func TestScanMatchesUnionOfSingles(t *testing.T) {
	keywords := []string{"launch", "rust", "go", "kubernetes", "c++", "Postgres", "postgres"}

	texts := []string{
		"Big launch day for our Go keyword tool",
		"Rocket launch telemetry in Rust",
		"nothing relevant here",
		"postgres 18 is out, the LAUNCH went smoothly",
		"I write c++ and rust for a living",
		"",
		"gopher (substring of go is everywhere: going, cargo)",
	}

	for _, text := range texts {
		auto := New(keywords)
		got := auto.Scan(text)
		sort.Strings(got)

		var want []string
		for _, k := range keywords {
			if MatchesOne(text, k, false) {
				want = append(want, k)
			}
		}
		sort.Strings(want)

		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Scan(%q) mismatch (-want +got):\n%s", text, diff)
		}
	}
}

func TestScanEmptyCorpus(t *testing.T) {
	auto := New(nil)
	if got := auto.Scan("anything at all"); got != nil {
		t.Errorf("expected nil for empty corpus, got %v", got)
	}
}

// Keywords that differ only by case share one trie pattern; a hit must
// report every original spelling, matching the per-keyword results.
func TestScanReportsAllCaseFoldedForms(t *testing.T) {
	auto := New([]string{"Go", "go", "rust"})
	got := auto.Scan("we ship go and rust to production")
	sort.Strings(got)

	want := []string{"Go", "go", "rust"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Scan mismatch (-want +got):\n%s", diff)
	}
}

func TestScanPreservesOriginalKeywordForm(t *testing.T) {
	auto := New([]string{"Postgres"})
	got := auto.Scan("we migrated to postgres last year")
	want := []string{"Postgres"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Scan mismatch (-want +got):\n%s", diff)
	}
}
