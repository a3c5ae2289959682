// Package api serves the moderator's HTTP interface: synchronous moderation,
// the pending review list with its decision endpoint, author history and
// word-list status.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/whisper/moderator/internal/engine"
	"github.com/whisper/moderator/internal/moderation"
	"github.com/whisper/moderator/internal/ratelimit"
	"github.com/whisper/moderator/internal/review"
	"github.com/whisper/moderator/internal/service"
)

// Checker moderates a request end to end. *service.Service implements it.
type Checker interface {
	Check(ctx context.Context, req moderation.ModerationRequest) (moderation.ModerationResult, engine.Outcome, error)
	History() *service.History
}

// Reviews is the pending review set. *review.Queue implements it.
type Reviews interface {
	Pending() []review.Item
	Get(id string) (review.Item, bool)
	Submit(id, input string) error
}

// Wordlists reports and refreshes word-list versions. *wordlist.Registry
// implements it.
type Wordlists interface {
	Versions() map[string]string
	Refresh(ctx context.Context) int
}

// Server is the HTTP API.
type Server struct {
	checker   Checker
	reviews   Reviews
	wordlists Wordlists
	limiter   *ratelimit.Limiter
	logger    *slog.Logger
	echo      *echo.Echo
}

// Config holds the server dependencies. Reviews, Wordlists and Limiter are
// optional.
type Config struct {
	Checker   Checker
	Reviews   Reviews
	Wordlists Wordlists
	Limiter   *ratelimit.Limiter
	Logger    *slog.Logger
}

// NewServer builds the echo instance and registers routes.
func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Server{
		checker:   cfg.Checker,
		reviews:   cfg.Reviews,
		wordlists: cfg.Wordlists,
		limiter:   cfg.Limiter,
		logger:    cfg.Logger.With("component", "api"),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "method=${method} uri=${uri} status=${status} latency=${latency_human}\n",
	}))
	e.HTTPErrorHandler = s.errorHandler

	e.GET("/_health", s.handleHealthCheck)

	v1 := e.Group("/v1")
	v1.POST("/moderate", s.handleModerate, s.limit(ratelimit.RuleModerate)...)
	v1.GET("/reviews", s.handleListReviews)
	v1.GET("/reviews/:id", s.handleGetReview)
	v1.POST("/reviews/:id/decision", s.handleDecision, s.limit(ratelimit.RuleDecision)...)
	v1.GET("/authors/:id/history", s.handleHistory)
	v1.GET("/wordlists", s.handleWordlists)
	v1.POST("/wordlists/refresh", s.handleWordlistRefresh)

	s.echo = e
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Start listens on addr until Shutdown.
func (s *Server) Start(addr string) error {
	s.logger.Info("starting API", "listen", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) limit(rule ratelimit.Rule) []echo.MiddlewareFunc {
	if s.limiter == nil {
		return nil
	}
	return []echo.MiddlewareFunc{s.limiter.Middleware(rule)}
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) errorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	msg := "internal error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		} else {
			msg = http.StatusText(code)
		}
	}
	if code >= 500 {
		s.logger.Warn("HTTP request error", "status", code, "path", c.Path(), "err", err)
	}
	if c.Response().Committed {
		return
	}
	if err := c.JSON(code, errorBody{Error: msg}); err != nil {
		s.logger.Warn("failed to write error response", "err", err)
	}
}
