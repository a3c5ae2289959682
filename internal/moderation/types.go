package moderation

import "fmt"

// Certainty thresholds outside [MinThreshold, MaxThreshold] are rejected.
const (
	MinThreshold = 51.0
	MaxThreshold = 100.0
)

// ValidateThreshold checks a classifier certainty threshold in percent.
func ValidateThreshold(t float64) error {
	if t < MinThreshold || t > MaxThreshold {
		return fmt.Errorf("threshold %.2f outside [%g, %g]", t, MinThreshold, MaxThreshold)
	}
	return nil
}

// OwnerFilter names one filter category an account owner has enabled.
type OwnerFilter struct {
	Name string `json:"name"`
}

// OwnerConfig carries per-account moderation settings stored alongside the
// page or media owner. A nil OwnerConfig means the deployment defaults.
type OwnerConfig struct {
	// Filters restricts the lexical filters to the named categories. Empty
	// means every registered filter.
	Filters []OwnerFilter `json:"filters,omitempty"`
	// Threshold overrides the classifier certainty threshold (percent).
	Threshold *float64 `json:"threshold,omitempty"`
	// MaxHide hides REMOVE and BAN verdicts and queues them for review
	// instead of removing the comment.
	MaxHide bool `json:"max_hide,omitempty"`
}

// Enabled reports whether category is allowed by the owner config.
func (c *OwnerConfig) Enabled(category string) bool {
	if c == nil || len(c.Filters) == 0 {
		return true
	}
	for _, f := range c.Filters {
		if f.Name == category {
			return true
		}
	}
	return false
}

// Validate checks the owner's threshold override.
func (c *OwnerConfig) Validate() error {
	if c == nil || c.Threshold == nil {
		return nil
	}
	return ValidateThreshold(*c.Threshold)
}

// ModerationRequest is published to moderation.check by the webhook
// handlers when a comment arrives from a platform.
type ModerationRequest struct {
	CommentID   string       `json:"comment_id"`
	AuthorID    string       `json:"author_id,omitempty"`
	Platform    string       `json:"platform,omitempty"`
	Text        string       `json:"text"`
	Interactive bool         `json:"interactive,omitempty"`
	Owner       *OwnerConfig `json:"owner_config,omitempty"`
	Ts          int64        `json:"ts"`
}

// ModerationResult is published back on moderation.result.<comment_id> with
// the final verdict and the platform action to take.
type ModerationResult struct {
	CommentID  string `json:"comment_id"`
	Verdict    int    `json:"verdict"`
	VerdictStr string `json:"verdict_name"`
	Label      int    `json:"label"`
	Action     string `json:"action"`
	Reason     string `json:"reason,omitempty"`
	Term       string `json:"term,omitempty"`
	// AuthorBanned is set when the author is currently banned, either by
	// this comment or by earlier ones.
	AuthorBanned bool `json:"author_banned,omitempty"`
	BanSeconds   int  `json:"ban_seconds,omitempty"`
}
