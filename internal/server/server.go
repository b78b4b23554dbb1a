// Package server exposes the assistant over HTTP.
package server

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/oauth2"

	"github.com/beekhof/calendar-assistant/internal/assistant"
	"github.com/beekhof/calendar-assistant/internal/auth"
	"github.com/beekhof/calendar-assistant/internal/calendar"
	"github.com/beekhof/calendar-assistant/internal/ics"
)

// Assistant handles a single prompt.
type Assistant interface {
	HandlePrompt(ctx context.Context, prompt, userTimezone string, tok *oauth2.Token) (*assistant.Outcome, *oauth2.Token)
}

// CalendarLister lists the calendars visible to a token.
type CalendarLister interface {
	Calendars(ctx context.Context, tok *oauth2.Token) ([]calendar.CalendarSummary, *oauth2.Token, error)
}

// PromptRequest is the body of POST /api/prompt.
type PromptRequest struct {
	Prompt       string `json:"prompt"`
	UserTimeZone string `json:"userTimeZone"`
}

type errorBody struct {
	Error string `json:"error"`
}

// Server routes HTTP requests to the assistant. Every request shares the
// token held by session.
type Server struct {
	echo      *echo.Echo
	assistant Assistant
	calendars CalendarLister
	session   *auth.Session
	limiter   *RateLimiter
	now       func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithRateLimit limits POST /api/prompt per client IP.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(s *Server) { s.limiter = NewRateLimiter(perSecond, burst) }
}

// WithClock overrides the clock used to stamp iCalendar exports.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New creates a Server and registers its routes.
func New(a Assistant, calendars CalendarLister, session *auth.Session, opts ...Option) *Server {
	s := &Server{
		echo:      echo.New(),
		assistant: a,
		calendars: calendars,
		session:   session,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Use(middleware.Recover())

	api := s.echo.Group("/api")
	api.GET("/ping", s.ping)
	api.GET("/calendars", s.listCalendars)
	if s.limiter != nil {
		api.POST("/prompt", s.prompt, s.limiter.Middleware)
	} else {
		api.POST("/prompt", s.prompt)
	}
	return s
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// ListenAndServe serves on addr until Shutdown is called.
func (s *Server) ListenAndServe(addr string) error {
	slog.Info("listening", "addr", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server, waiting for in-flight requests until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) ping(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// prompt handles POST /api/prompt. With ?format=ics, found or created
// events are returned as text/calendar instead of JSON.
func (s *Server) prompt(c echo.Context) error {
	var req PromptRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid request body"})
	}
	if strings.TrimSpace(req.Prompt) == "" || req.UserTimeZone == "" {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "Request body must include both 'prompt' and 'userTimeZone'."})
	}

	ctx := c.Request().Context()
	var out *assistant.Outcome
	err := s.session.Use(func(tok *oauth2.Token) *oauth2.Token {
		var next *oauth2.Token
		out, next = s.assistant.HandlePrompt(ctx, req.Prompt, req.UserTimeZone, tok)
		return next
	})
	if err != nil {
		slog.Error("failed to persist token", "error", err)
		if out == nil {
			return c.JSON(http.StatusInternalServerError, errorBody{Error: "failed to load token"})
		}
	}

	if c.QueryParam("format") == "ics" && out.Error == nil {
		if body, ok := s.exportICS(out); ok {
			return c.Blob(http.StatusOK, "text/calendar; charset=utf-8", body)
		}
	}
	return c.JSON(statusFor(out), out)
}

func (s *Server) exportICS(out *assistant.Outcome) ([]byte, bool) {
	events := out.Events
	if out.Event != nil {
		events = []calendar.Event{*out.Event}
	}
	var buf bytes.Buffer
	if err := ics.Encode(&buf, events, s.now()); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}

func (s *Server) listCalendars(c echo.Context) error {
	ctx := c.Request().Context()
	var (
		list    []calendar.CalendarSummary
		listErr error
	)
	err := s.session.Use(func(tok *oauth2.Token) *oauth2.Token {
		var next *oauth2.Token
		list, next, listErr = s.calendars.Calendars(ctx, tok)
		return next
	})
	if err != nil {
		slog.Error("failed to persist token", "error", err)
	}

	switch {
	case calendar.IsKind(listErr, calendar.KindAuthRequired):
		return c.JSON(http.StatusUnauthorized, errorBody{Error: "Not authenticated or token expired"})
	case calendar.IsKind(listErr, calendar.KindTimeout):
		return c.JSON(http.StatusGatewayTimeout, errorBody{Error: listErr.Error()})
	case listErr != nil:
		slog.Error("failed to list calendars", "error", listErr)
		return c.JSON(http.StatusBadGateway, errorBody{Error: listErr.Error()})
	case err != nil && list == nil:
		return c.JSON(http.StatusInternalServerError, errorBody{Error: "failed to load token"})
	}
	return c.JSON(http.StatusOK, list)
}

// statusFor maps an outcome to its HTTP status. Completed outcomes,
// including a delete that found nothing, are 200.
func statusFor(out *assistant.Outcome) int {
	if out.Error == nil {
		return http.StatusOK
	}
	switch out.Error.Kind {
	case assistant.ErrorInvalidInput, assistant.ErrorInterpretation:
		return http.StatusBadRequest
	case assistant.ErrorAuthRequired:
		return http.StatusUnauthorized
	case assistant.ErrorTimeout:
		return http.StatusGatewayTimeout
	case assistant.ErrorProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
