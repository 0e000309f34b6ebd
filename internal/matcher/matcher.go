// Package matcher implements keyword matching against feed text.
package matcher

import (
	"regexp"
	"strings"

	"github.com/cloudflare/ahocorasick"
)

// Automaton matches many keywords against a text in a single pass.
// Build it once per keyword corpus and reuse it across items.
type Automaton struct {
	trie *ahocorasick.Matcher
	// forms holds the original keyword spellings per folded pattern:
	// keywords that differ only by case share one trie node and must
	// all be reported on a hit.
	forms [][]string
}

// New builds an automaton over the given keywords. Matching is
// case-insensitive; the returned keyword strings keep their original form.
func New(keywords []string) *Automaton {
	var patterns []string
	var forms [][]string
	index := make(map[string]int, len(keywords))
	for _, k := range keywords {
		folded := strings.ToLower(k)
		if i, ok := index[folded]; ok {
			forms[i] = append(forms[i], k)
			continue
		}
		index[folded] = len(patterns)
		patterns = append(patterns, folded)
		forms = append(forms, []string{k})
	}
	return &Automaton{
		trie:  ahocorasick.NewStringMatcher(patterns),
		forms: forms,
	}
}

// Scan returns every keyword occurring in text, each at most once.
// The result equals running MatchesOne(text, k, false) for every keyword,
// but takes one pass over text regardless of keyword count.
func (a *Automaton) Scan(text string) []string {
	if text == "" || len(a.forms) == 0 {
		return nil
	}
	hits := a.trie.Match([]byte(strings.ToLower(text)))
	if len(hits) == 0 {
		return nil
	}
	found := make([]string, 0, len(hits))
	for _, idx := range hits {
		found = append(found, a.forms[idx]...)
	}
	return found
}

// MatchesOne reports whether keyword occurs in text, case-insensitively.
// In whole-word mode the keyword must be delimited by non-word characters
// or the string boundaries on both sides. The keyword is always treated
// as a literal, even when it contains regex metacharacters.
func MatchesOne(text, keyword string, wholeWord bool) bool {
	if text == "" || keyword == "" {
		return false
	}
	text = strings.ToLower(text)
	keyword = strings.ToLower(keyword)

	if !wholeWord {
		return strings.Contains(text, keyword)
	}

	re, err := regexp.Compile(`(?:\A|\W)` + regexp.QuoteMeta(keyword) + `(?:\W|\z)`)
	if err != nil {
		return false
	}
	return re.MatchString(text)
}
