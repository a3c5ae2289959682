package moderation

import (
	"fmt"
	"unicode/utf8"
)

const (
	MaxCommentBytes = 16384 // 16KB max payload text
	MaxCommentChars = 8000  // max character count
)

// ValidateComment checks that comment text is well formed. Empty text is
// valid and moderates to ACCEPT.
func ValidateComment(text string) error {
	if len(text) > MaxCommentBytes {
		return fmt.Errorf("comment exceeds %d byte limit", MaxCommentBytes)
	}
	if !utf8.ValidString(text) {
		return fmt.Errorf("comment contains invalid UTF-8")
	}
	if utf8.RuneCountInString(text) > MaxCommentChars {
		return fmt.Errorf("comment exceeds %d character limit", MaxCommentChars)
	}
	return nil
}
