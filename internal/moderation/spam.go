package moderation

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"github.com/whisper/moderator/internal/verdict"
)

// SpamCategory is the category name reported by SpamFilter.
const SpamCategory = "spam"

// Compiled regex patterns for spam detection.
// These are compiled once at package init and reused for every call,
// making them safe and efficient for concurrent use.
var (
	// urlPattern matches http/https URLs, www. URLs, and common TLD patterns.
	// The bare-domain variant requires a trailing "/" to avoid false positives
	// on version strings like "v2.0" or decimal numbers like "3.14".
	urlPattern = regexp.MustCompile(`(?i)(https?://\S+|www\.\S+|\S+\.(com|net|org|io|co|xyz|info|biz|ru|cn|tk|ml|ga|cf)/\S*)`)

	// phonePattern matches various phone number formats such as:
	//   +1-555-123-4567, (555) 123-4567, 555.123.4567
	// Anchored to whitespace/string boundaries to avoid matching random digit
	// sequences embedded in normal words or short numbers like "100".
	phonePattern = regexp.MustCompile(`(?:^|\s)(\+?\d{1,3}[-.\s]?)?\(?\d{2,4}\)?[-.\s]?\d{3,4}[-.\s]?\d{3,4}(?:\s|$)`)
)

// spamCheck pairs a detection function with metadata used for reporting.
type spamCheck struct {
	name   string
	reason string
	match  func(string) bool
}

// spamChecks is the ordered list of spam checks applied by SpamFilter.
// Order matters: the first match wins.
var spamChecks = []spamCheck{
	{name: "url", reason: "URLs are not allowed", match: func(text string) bool {
		return urlPattern.MatchString(text)
	}},
	{name: "phone", reason: "Phone numbers are not allowed", match: func(text string) bool {
		return phonePattern.MatchString(text)
	}},
	{name: "char_flood", reason: "Character flooding detected", match: hasCharFlood},
	{name: "word_flood", reason: "Repeated word flooding detected", match: hasWordFlood},
}

// hasCharFlood returns true if text contains 5 or more consecutive identical
// characters. Go's regexp package (RE2) does not support backreferences, so
// this is implemented as a simple linear scan which is both correct and fast.
func hasCharFlood(text string) bool {
	const threshold = 5

	count := 1
	prev := rune(-1)
	for _, r := range text {
		if r == prev {
			count++
			if count >= threshold {
				return true
			}
		} else {
			count = 1
			prev = r
		}
	}
	return false
}

// hasWordFlood returns true if the same word appears 3 or more times
// consecutively (case-insensitive). Words are delimited by whitespace.
// Go's regexp package (RE2) does not support backreferences, so this is
// implemented with a simple token scan.
func hasWordFlood(text string) bool {
	const threshold = 3

	words := strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r)
	})
	if len(words) < threshold {
		return false
	}

	count := 1
	prev := ""
	for _, w := range words {
		lower := strings.ToLower(w)
		if lower == prev {
			count++
			if count >= threshold {
				return true
			}
		} else {
			count = 1
			prev = lower
		}
	}
	return false
}

// SpamFilter flags link, phone number and flooding spam. It carries no word
// list and is safe for concurrent use.
type SpamFilter struct {
	onMatch verdict.Verdict
	logger  *slog.Logger
}

// NewSpamFilter returns a spam filter reporting onMatch when a pattern hits.
func NewSpamFilter(onMatch verdict.Verdict, logger *slog.Logger) *SpamFilter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SpamFilter{
		onMatch: onMatch,
		logger:  logger.With("component", "filter", "category", SpamCategory),
	}
}

// Category returns SpamCategory.
func (f *SpamFilter) Category() string {
	return SpamCategory
}

// Match runs every spam check against text and returns the name of the first
// one that matches.
func (f *SpamFilter) Match(text string) (string, bool) {
	for _, sc := range spamChecks {
		if sc.match(text) {
			return sc.name, true
		}
	}
	return "", false
}

// Apply returns the configured verdict on the first matching check, else
// ACCEPT.
func (f *SpamFilter) Apply(text string) verdict.Verdict {
	name, ok := f.Match(text)
	if !ok {
		return verdict.Accept
	}
	f.logger.Debug("spam pattern detected", "check", name, "reason", spamReason(name))
	return f.onMatch
}

func spamReason(name string) string {
	for _, sc := range spamChecks {
		if sc.name == name {
			return sc.reason
		}
	}
	return ""
}
