package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/whisper/moderator/internal/engine"
	"github.com/whisper/moderator/internal/moderation"
	"github.com/whisper/moderator/internal/review"
	"github.com/whisper/moderator/internal/service"
)

func (s *Server) handleHealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// ModerateResponse is returned by POST /v1/moderate.
type ModerateResponse struct {
	Result  moderation.ModerationResult `json:"result"`
	Outcome engine.Outcome              `json:"outcome"`
}

func (s *Server) handleModerate(c echo.Context) error {
	var req moderation.ModerationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body")
	}

	res, out, err := s.checker.Check(c.Request().Context(), req)
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrDuplicate):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case err != nil:
		return err
	}
	return c.JSON(http.StatusOK, ModerateResponse{Result: res, Outcome: out})
}

func (s *Server) handleListReviews(c echo.Context) error {
	if s.reviews == nil {
		return c.JSON(http.StatusOK, []review.Item{})
	}
	return c.JSON(http.StatusOK, s.reviews.Pending())
}

func (s *Server) handleGetReview(c echo.Context) error {
	if s.reviews == nil {
		return echo.NewHTTPError(http.StatusNotFound, review.ErrNotPending.Error())
	}
	item, ok := s.reviews.Get(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, review.ErrNotPending.Error())
	}
	return c.JSON(http.StatusOK, item)
}

// DecisionRequest is the body of POST /v1/reviews/:id/decision. Decision is
// "0" to approve or "1" to flag.
type DecisionRequest struct {
	Decision string `json:"decision"`
}

func (s *Server) handleDecision(c echo.Context) error {
	var body DecisionRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body")
	}
	if s.reviews == nil {
		return echo.NewHTTPError(http.StatusNotFound, review.ErrNotPending.Error())
	}

	err := s.reviews.Submit(c.Param("id"), body.Decision)
	switch {
	case errors.Is(err, review.ErrNotPending):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, review.ErrInvalidDecision):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case err != nil:
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleHistory(c echo.Context) error {
	author := c.Param("id")
	if p := c.QueryParam("platform"); p != "" {
		author = p + ":" + author
	}
	return c.JSON(http.StatusOK, s.checker.History().Get(author))
}

func (s *Server) handleWordlists(c echo.Context) error {
	if s.wordlists == nil {
		return c.JSON(http.StatusOK, map[string]string{})
	}
	return c.JSON(http.StatusOK, s.wordlists.Versions())
}

func (s *Server) handleWordlistRefresh(c echo.Context) error {
	if s.wordlists == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no word-list registry")
	}
	updated := s.wordlists.Refresh(c.Request().Context())
	return c.JSON(http.StatusOK, map[string]any{
		"updated":  updated,
		"versions": s.wordlists.Versions(),
	})
}
