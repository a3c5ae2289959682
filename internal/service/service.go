// Package service is the moderation daemon's core loop. It consumes comment
// check requests from NATS, runs them through the engine, maps verdicts to
// platform actions, escalates repeat offenders and publishes the result.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/whisper/moderator/internal/action"
	"github.com/whisper/moderator/internal/ban"
	"github.com/whisper/moderator/internal/engine"
	"github.com/whisper/moderator/internal/moderation"
	"github.com/whisper/moderator/internal/verdict"
)

var (
	// ErrDuplicate is returned for a comment id that was already moderated.
	ErrDuplicate = errors.New("service: comment already moderated")
	// ErrInvalidRequest wraps validation failures.
	ErrInvalidRequest = errors.New("service: invalid request")
)

// DefaultMaxInFlight bounds concurrent passes started from NATS. Interactive
// passes can wait on a reviewer, so they must not run on the subscription
// goroutine.
const DefaultMaxInFlight = 64

// Moderator is the engine as seen by the service.
type Moderator interface {
	Moderate(ctx context.Context, req engine.Request) engine.Outcome
}

// Bus is the subset of the NATS client the service uses.
type Bus interface {
	SubscribeModerationCheck(handler func(data []byte)) error
	SubscribeReviewDecision(handler func(data []byte)) error
	PublishModerationResult(commentID string, data []byte) error
}

// BanStore escalates authors. *ban.Store implements it.
type BanStore interface {
	Status(ctx context.Context, author string) (ban.Status, error)
	Apply(ctx context.Context, author string, v verdict.Verdict, reason string) (ban.Outcome, error)
}

// DecisionHandler accepts reviewer decisions from the bus. *review.Queue
// implements it.
type DecisionHandler interface {
	HandleDecision(data []byte) error
}

// Config holds the service dependencies. Only Engine is required.
type Config struct {
	Engine      Moderator
	Bus         Bus
	Decisions   DecisionHandler
	Bans        BanStore
	Dedup       Dedup
	History     *History
	Mode        action.Mode
	MaxInFlight int
	Logger      *slog.Logger
}

// Service handles moderation checks.
type Service struct {
	engine    Moderator
	bus       Bus
	decisions DecisionHandler
	bans      BanStore
	dedup     Dedup
	history   *History
	mode      action.Mode
	sem       chan struct{}
	wg        sync.WaitGroup
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a service.
func New(cfg Config) *Service {
	if cfg.Mode == "" {
		cfg.Mode = action.Full
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = DefaultMaxInFlight
	}
	if cfg.History == nil {
		cfg.History = NewHistory()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		engine:    cfg.Engine,
		bus:       cfg.Bus,
		decisions: cfg.Decisions,
		bans:      cfg.Bans,
		dedup:     cfg.Dedup,
		history:   cfg.History,
		mode:      cfg.Mode,
		sem:       make(chan struct{}, cfg.MaxInFlight),
		logger:    cfg.Logger.With("component", "moderator"),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// History returns the per-author outcome history.
func (s *Service) History() *History { return s.history }

// Start subscribes to the check and decision subjects.
func (s *Service) Start() error {
	if s.bus == nil {
		return errors.New("service: no bus configured")
	}
	if err := s.bus.SubscribeModerationCheck(s.handleCheck); err != nil {
		return err
	}
	if s.decisions != nil {
		if err := s.bus.SubscribeReviewDecision(s.handleDecision); err != nil {
			return err
		}
	}
	s.logger.Info("service started", "mode", string(s.mode))
	return nil
}

// Stop cancels in-flight passes and waits for them to finish.
func (s *Service) Stop() {
	s.cancel()
	s.wg.Wait()
	s.logger.Info("service stopped")
}

func (s *Service) handleDecision(data []byte) {
	if err := s.decisions.HandleDecision(data); err != nil {
		s.logger.Warn("review decision rejected", "err", err)
	}
}

func (s *Service) handleCheck(data []byte) {
	var req moderation.ModerationRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.logger.Warn("failed to unmarshal request", "err", err)
		return
	}

	select {
	case s.sem <- struct{}{}:
	case <-s.ctx.Done():
		return
	}
	s.wg.Add(1)
	go func() {
		defer func() {
			<-s.sem
			s.wg.Done()
		}()
		s.process(s.ctx, req)
	}()
}

func (s *Service) process(ctx context.Context, req moderation.ModerationRequest) {
	res, _, err := s.Check(ctx, req)
	switch {
	case errors.Is(err, ErrDuplicate):
		s.logger.Debug("skipping processed comment", "comment_id", req.CommentID)
		return
	case err != nil:
		s.logger.Warn("rejected request", "comment_id", req.CommentID, "err", err)
		return
	}

	if req.CommentID == "" {
		return
	}
	data, err := json.Marshal(res)
	if err != nil {
		s.logger.Error("failed to marshal result", "err", err)
		return
	}
	if err := s.bus.PublishModerationResult(req.CommentID, data); err != nil {
		s.logger.Warn("failed to publish result", "comment_id", req.CommentID, "err", err)
	}
}

// Check moderates one request end to end. It is shared by the NATS consumer
// and the HTTP API.
func (s *Service) Check(ctx context.Context, req moderation.ModerationRequest) (moderation.ModerationResult, engine.Outcome, error) {
	if err := moderation.ValidateComment(req.Text); err != nil {
		return moderation.ModerationResult{}, engine.Outcome{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := req.Owner.Validate(); err != nil {
		return moderation.ModerationResult{}, engine.Outcome{}, fmt.Errorf("%w: owner config: %v", ErrInvalidRequest, err)
	}

	if s.dedup != nil && req.CommentID != "" {
		first, err := s.dedup.FirstSeen(ctx, platformKey(req.Platform, req.CommentID))
		if err != nil {
			s.logger.Warn("dedup unavailable, processing anyway", "comment_id", req.CommentID, "err", err)
		} else if !first {
			return moderation.ModerationResult{}, engine.Outcome{}, ErrDuplicate
		}
	}

	out := s.engine.Moderate(ctx, engine.Request{
		Text:        req.Text,
		Interactive: req.Interactive,
		Owner:       req.Owner,
		CommentID:   req.CommentID,
		AuthorID:    req.AuthorID,
		Platform:    req.Platform,
	})

	mode := s.mode
	if req.Owner != nil && req.Owner.MaxHide {
		mode = action.MaxHide
	}
	act, err := action.For(out.Verdict, mode)
	if err != nil {
		// Unreachable for verdicts produced by the engine.
		return moderation.ModerationResult{}, out, err
	}

	res := moderation.ModerationResult{
		CommentID:  req.CommentID,
		Verdict:    out.Verdict.Code(),
		VerdictStr: out.Verdict.String(),
		Label:      out.Label,
		Action:     string(act),
		Reason:     out.Category,
		Term:       out.Term,
	}

	author := platformKey(req.Platform, req.AuthorID)
	s.escalate(ctx, author, out, &res)
	s.history.Add(author, HistoryEntry{
		CommentID: req.CommentID,
		Verdict:   res.VerdictStr,
		Action:    res.Action,
		Category:  out.Category,
		Ts:        time.Now().Unix(),
	})

	s.logger.Info("comment moderated", "comment_id", req.CommentID, "verdict", res.VerdictStr,
		"action", res.Action, "category", out.Category, "reviewed", out.Reviewed)
	return res, out, nil
}

func (s *Service) escalate(ctx context.Context, author string, out engine.Outcome, res *moderation.ModerationResult) {
	if s.bans == nil || author == "" {
		return
	}
	reason := out.Category
	if reason == "" {
		reason = out.Verdict.String()
	}
	bo, err := s.bans.Apply(ctx, author, out.Verdict, reason)
	if err != nil {
		// Fail open: a Redis outage must not hold up moderation.
		s.logger.Warn("ban escalation failed", "author", author, "err", err)
		return
	}
	if bo.Banned {
		res.AuthorBanned = true
		res.BanSeconds = int(bo.Duration.Seconds())
		s.logger.Info("author banned", "author", author, "strikes", bo.Strikes, "duration", bo.Duration)
		return
	}
	st, err := s.bans.Status(ctx, author)
	if err != nil {
		s.logger.Warn("ban status failed", "author", author, "err", err)
		return
	}
	if st.Banned {
		res.AuthorBanned = true
		res.BanSeconds = int(st.Remaining.Seconds())
	}
}

// platformKey scopes a platform-assigned id, as "platform:id".
func platformKey(platform, id string) string {
	if id == "" {
		return ""
	}
	if platform == "" {
		return id
	}
	return platform + ":" + id
}
