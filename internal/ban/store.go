// Package ban tracks comment authors whose comments keep drawing severe
// verdicts. Records live in Redis with TTL-based expiry:
//
//	Key:   modban:<author>      Value: <reason>   TTL: ban duration
//	Key:   modstrikes:<author>  Value: <count>    TTL: StrikesTTL
//
// A BAN verdict escalates the author immediately. A REMOVE verdict is a
// strike; AutoBanThreshold strikes inside StrikesTTL escalate as well.
package ban

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/whisper/moderator/internal/verdict"
)

const (
	BanPrefix     = "modban:"
	StrikesPrefix = "modstrikes:"

	// Escalating ban durations.
	Ban15Min  = 15 * time.Minute // 1st offense
	Ban1Hour  = 1 * time.Hour    // 2nd offense
	Ban24Hour = 24 * time.Hour   // 3rd+ offense

	// StrikesTTL is the window offenses are counted in. The window is
	// fixed at the first offense and does not slide.
	StrikesTTL = 24 * time.Hour

	// AutoBanThreshold is the number of REMOVE strikes that bans an author.
	AutoBanThreshold = 3
)

// Status describes an author's current ban.
type Status struct {
	Banned    bool          `json:"banned"`
	Remaining time.Duration `json:"remaining"`
	Reason    string        `json:"reason,omitempty"`
}

// Outcome reports what Apply did.
type Outcome struct {
	Strikes  int           `json:"strikes"`
	Banned   bool          `json:"banned"`
	Duration time.Duration `json:"duration,omitempty"`
}

// Store manages author records in Redis.
type Store struct {
	client *redis.Client
}

// NewStore creates a new ban store using the provided Redis client.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// Status returns the author's ban. Redis errors are returned so callers can
// fail open.
func (s *Store) Status(ctx context.Context, author string) (Status, error) {
	key := BanPrefix + author

	reason, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, err
	}

	st := Status{Banned: true, Reason: reason}
	// A ban whose TTL cannot be read is still reported.
	if ttl, err := s.client.TTL(ctx, key).Result(); err == nil && ttl > 0 {
		st.Remaining = ttl
	}
	return st, nil
}

// Ban bans an author for duration.
func (s *Store) Ban(ctx context.Context, author string, duration time.Duration, reason string) error {
	return s.client.Set(ctx, BanPrefix+author, reason, duration).Err()
}

// Lift removes an author's ban immediately. Strikes are kept.
func (s *Store) Lift(ctx context.Context, author string) error {
	return s.client.Del(ctx, BanPrefix+author).Err()
}

func escalationDuration(offenses int) time.Duration {
	switch {
	case offenses <= 1:
		return Ban15Min
	case offenses == 2:
		return Ban1Hour
	default:
		return Ban24Hour
	}
}

// Strikes returns the author's offense count in the current window.
func (s *Store) Strikes(ctx context.Context, author string) (int, error) {
	n, err := s.client.Get(ctx, StrikesPrefix+author).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}

// strike creates the counter with its TTL and increments it in one
// transaction, so a counter never outlives its window.
func (s *Store) strike(ctx context.Context, author string) (int, error) {
	key := StrikesPrefix + author
	pipe := s.client.TxPipeline()
	pipe.SetNX(ctx, key, 0, StrikesTTL)
	incr := pipe.Incr(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("ban: strike: %w", err)
	}
	return int(incr.Val()), nil
}

// Escalate records an offense and bans the author for a duration that grows
// with the offense count: 15 minutes, 1 hour, then 24 hours.
func (s *Store) Escalate(ctx context.Context, author, reason string) (Outcome, error) {
	n, err := s.strike(ctx, author)
	if err != nil {
		return Outcome{}, err
	}
	d := escalationDuration(n)
	if err := s.Ban(ctx, author, d, reason); err != nil {
		return Outcome{}, fmt.Errorf("ban: escalate: %w", err)
	}
	return Outcome{Strikes: n, Banned: true, Duration: d}, nil
}

// Strike records an offense and bans only once AutoBanThreshold is reached.
func (s *Store) Strike(ctx context.Context, author, reason string) (Outcome, error) {
	n, err := s.strike(ctx, author)
	if err != nil {
		return Outcome{}, err
	}
	if n < AutoBanThreshold {
		return Outcome{Strikes: n}, nil
	}
	d := escalationDuration(n)
	if err := s.Ban(ctx, author, d, reason); err != nil {
		return Outcome{}, fmt.Errorf("ban: strike ban: %w", err)
	}
	return Outcome{Strikes: n, Banned: true, Duration: d}, nil
}

// Apply updates the author's record for a final verdict. Verdicts other than
// BAN and REMOVE leave the record alone.
func (s *Store) Apply(ctx context.Context, author string, v verdict.Verdict, reason string) (Outcome, error) {
	if author == "" {
		return Outcome{}, nil
	}
	switch v {
	case verdict.Ban:
		return s.Escalate(ctx, author, reason)
	case verdict.Remove:
		return s.Strike(ctx, author, reason)
	}
	return Outcome{}, nil
}
