// Package moderation provides the content filters applied to comments before
// a verdict is resolved. Each filter screens text for one offense category and
// reports the fixed verdict configured for that category.
package moderation

import (
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/whisper/moderator/internal/verdict"
)

// Filter is a single moderation rule applied to comment text.
type Filter interface {
	Category() string
	Apply(text string) verdict.Verdict
}

// WordList is an immutable, versioned list of offense words or phrases.
// Replace it as a whole; never mutate a list that has been handed to a filter.
type WordList struct {
	Version string   `json:"version"`
	Words   []string `json:"words"`
}

// Definition describes a lexical filter: the category it screens, the verdict
// it reports on a match and an optional built-in seed list used until a
// remote or cached list is available.
type Definition struct {
	Category string
	OnMatch  verdict.Verdict
	Seed     []string
}

// LexicalFilter matches comment text against a word list by case-insensitive
// substring search. Matching is deliberately not word-boundary aware: short
// fragments match inside longer words too.
type LexicalFilter struct {
	category string
	onMatch  verdict.Verdict
	words    atomic.Pointer[WordList]
	logger   *slog.Logger
}

// NewLexicalFilter creates a filter from def, loaded with the seed list.
func NewLexicalFilter(def Definition, logger *slog.Logger) *LexicalFilter {
	if logger == nil {
		logger = slog.Default()
	}
	f := &LexicalFilter{
		category: def.Category,
		onMatch:  def.OnMatch,
		logger:   logger.With("component", "filter", "category", def.Category),
	}
	f.Swap(WordList{Version: "0", Words: def.Seed})
	return f
}

// Category returns the offense category name.
func (f *LexicalFilter) Category() string {
	return f.category
}

// OnMatch returns the verdict reported when a word matches.
func (f *LexicalFilter) OnMatch() verdict.Verdict {
	return f.onMatch
}

// Words returns the word list currently in use.
func (f *LexicalFilter) Words() WordList {
	return *f.words.Load()
}

// Swap atomically replaces the word list. Terms are lowercased and blank
// entries dropped; concurrent Apply calls see either the old or the new list.
func (f *LexicalFilter) Swap(list WordList) {
	terms := make([]string, 0, len(list.Words))
	for _, w := range list.Words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		terms = append(terms, w)
	}
	f.words.Store(&WordList{Version: list.Version, Words: terms})
}

// Match returns the first term found in text, in list order.
func (f *LexicalFilter) Match(text string) (string, bool) {
	list := f.words.Load()
	if len(list.Words) == 0 || text == "" {
		return "", false
	}
	lower := strings.ToLower(text)
	for _, term := range list.Words {
		if strings.Contains(lower, term) {
			return term, true
		}
	}
	return "", false
}

// Apply returns the filter's verdict when text contains any term, else ACCEPT.
func (f *LexicalFilter) Apply(text string) verdict.Verdict {
	term, ok := f.Match(text)
	if !ok {
		return verdict.Accept
	}
	f.logger.Debug("offensive content detected", "term", term, "verdict", f.onMatch)
	return f.onMatch
}
