package calendar

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/beekhof/calendar-assistant/internal/action"
	"github.com/beekhof/calendar-assistant/internal/timewindow"
)

const (
	// DefaultAttemptTimeout bounds every single provider call.
	DefaultAttemptTimeout = 30 * time.Second
	// DefaultCreateAttempts is how many times a timed-out insert is tried.
	DefaultCreateAttempts = 3
	// FindLimit is the maximum number of events returned by Find.
	FindLimit = 10
)

// Gateway performs calendar operations on behalf of a user. It holds no
// credentials: every call receives the user's token and returns it as it
// stands after any refresh, for the caller to persist.
type Gateway struct {
	oauthConfig    *oauth2.Config
	clientOptions  []option.ClientOption
	attemptTimeout time.Duration
	maxAttempts    int
	now            func() time.Time
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithClientOptions passes extra options to the API client, e.g. an endpoint.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(g *Gateway) { g.clientOptions = append(g.clientOptions, opts...) }
}

// WithAttemptTimeout overrides the per-call timeout.
func WithAttemptTimeout(d time.Duration) Option {
	return func(g *Gateway) { g.attemptTimeout = d }
}

// WithClock overrides the clock used to resolve "today".
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// NewGateway creates a Gateway that refreshes tokens with oauthConfig.
func NewGateway(oauthConfig *oauth2.Config, opts ...Option) *Gateway {
	g := &Gateway{
		oauthConfig:    oauthConfig,
		attemptTimeout: DefaultAttemptTimeout,
		maxAttempts:    DefaultCreateAttempts,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Create inserts the event described by a. The end default and the range
// check happen before any network call. Timeouts are retried without delay
// up to three attempts; other failures are returned at once.
func (g *Gateway) Create(ctx context.Context, tok *oauth2.Token, a action.CreateAction) (*Event, *oauth2.Token, error) {
	a, err := a.Normalize()
	if err != nil {
		return nil, tok, err
	}

	client, tok, err := g.client(ctx, tok)
	if err != nil {
		return nil, tok, err
	}

	body := &gcal.Event{
		Summary:     a.Summary,
		Description: a.Description,
		Start:       &gcal.EventDateTime{DateTime: a.Start.Literal, TimeZone: a.TimeZone},
		End:         &gcal.EventDateTime{DateTime: a.End.Literal, TimeZone: a.TimeZone},
	}

	var lastErr *ProviderError
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, g.attemptTimeout)
		created, err := client.InsertEvent(attemptCtx, a.CalendarID, body)
		cancel()
		if err == nil {
			ev := eventFromAPI(a.CalendarID, created)
			slog.Info("created event", "calendar", a.CalendarID, "id", ev.ID, "attempt", attempt)
			return &ev, tok, nil
		}

		lastErr = classify(err)
		if lastErr.Kind != KindTimeout || ctx.Err() != nil {
			return nil, tok, lastErr
		}
		slog.Warn("insert event timed out", "calendar", a.CalendarID, "attempt", attempt, "max_attempts", g.maxAttempts)
	}
	return nil, tok, lastErr
}

// Find lists up to ten events matching q within the window resolved for
// userTimezone. A title is passed through as the provider's free-text
// search. An empty result is not an error.
func (g *Gateway) Find(ctx context.Context, tok *oauth2.Token, q action.EventQuery, userTimezone string) ([]Event, *oauth2.Token, error) {
	loc, err := timewindow.LoadLocation(userTimezone)
	if err != nil {
		return nil, tok, err
	}
	window := timewindow.Resolve(q, loc, g.now())

	client, tok, err := g.client(ctx, tok)
	if err != nil {
		return nil, tok, err
	}

	callCtx, cancel := context.WithTimeout(ctx, g.attemptTimeout)
	defer cancel()

	calendarID := q.Calendar()
	items, err := client.ListEvents(callCtx, calendarID, ListOptions{
		TimeMin:    window.Min,
		TimeMax:    window.Max,
		Query:      q.Title,
		MaxResults: FindLimit,
	})
	if err != nil {
		return nil, tok, classify(err)
	}

	events := make([]Event, 0, len(items))
	for _, item := range items {
		events = append(events, eventFromAPI(calendarID, item))
	}
	slog.Debug("found events", "calendar", calendarID, "window", window.String(), "title", q.Title, "count", len(events))
	return events, tok, nil
}

// Delete removes an event. A provider 404 or 410 is a ProviderError of
// kind KindNotFound.
func (g *Gateway) Delete(ctx context.Context, tok *oauth2.Token, eventID, calendarID string) (*oauth2.Token, error) {
	if calendarID == "" {
		calendarID = action.DefaultCalendarID
	}

	client, tok, err := g.client(ctx, tok)
	if err != nil {
		return tok, err
	}

	callCtx, cancel := context.WithTimeout(ctx, g.attemptTimeout)
	defer cancel()

	if err := client.DeleteEvent(callCtx, calendarID, eventID); err != nil {
		return tok, classify(err)
	}
	slog.Info("deleted event", "calendar", calendarID, "id", eventID)
	return tok, nil
}

// Calendars lists the user's calendars.
func (g *Gateway) Calendars(ctx context.Context, tok *oauth2.Token) ([]CalendarSummary, *oauth2.Token, error) {
	client, tok, err := g.client(ctx, tok)
	if err != nil {
		return nil, tok, err
	}

	callCtx, cancel := context.WithTimeout(ctx, g.attemptTimeout)
	defer cancel()

	items, err := client.ListCalendars(callCtx)
	if err != nil {
		return nil, tok, classify(err)
	}

	calendars := make([]CalendarSummary, 0, len(items))
	for _, item := range items {
		calendars = append(calendars, calendarFromAPI(item))
	}
	return calendars, tok, nil
}

// client refreshes tok if needed and returns an API client authorized with it.
func (g *Gateway) client(ctx context.Context, tok *oauth2.Token) (*Client, *oauth2.Token, error) {
	tok, err := g.ensureToken(ctx, tok)
	if err != nil {
		return nil, tok, err
	}

	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(tok))
	client, err := NewClient(ctx, httpClient, g.clientOptions...)
	if err != nil {
		return nil, tok, &ProviderError{Kind: KindOther, Err: err}
	}
	return client, tok, nil
}

// ensureToken refreshes an expired token in place. The refresh gets the
// same per-call deadline as provider calls and a timed-out refresh is
// KindTimeout. Any other failure to obtain a usable token is
// KindAuthRequired.
func (g *Gateway) ensureToken(ctx context.Context, tok *oauth2.Token) (*oauth2.Token, error) {
	if tok == nil {
		return nil, authRequired(nil)
	}
	if tok.Valid() {
		return tok, nil
	}
	if tok.RefreshToken == "" || g.oauthConfig == nil {
		return tok, authRequired(nil)
	}

	refreshCtx, cancel := context.WithTimeout(ctx, g.attemptTimeout)
	defer cancel()

	fresh, err := g.oauthConfig.TokenSource(refreshCtx, &oauth2.Token{RefreshToken: tok.RefreshToken}).Token()
	if err != nil {
		slog.Warn("token refresh failed", "error", err)
		if isTimeout(err) || errors.Is(refreshCtx.Err(), context.DeadlineExceeded) {
			return tok, &ProviderError{Kind: KindTimeout, Err: err}
		}
		return tok, authRequired(err)
	}

	tok.AccessToken = fresh.AccessToken
	tok.TokenType = fresh.TokenType
	tok.Expiry = fresh.Expiry
	if fresh.RefreshToken != "" {
		tok.RefreshToken = fresh.RefreshToken
	}
	slog.Debug("refreshed access token", "expiry", tok.Expiry)
	return tok, nil
}
