package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"

	"github.com/beekhof/calendar-assistant/internal/action"
)

// fakeGoogle stands in for the Calendar API and the OAuth token endpoint.
type fakeGoogle struct {
	t   *testing.T
	srv *httptest.Server

	mu            sync.Mutex
	inserts       int
	insertDelays  []time.Duration // delay for the n-th insert, if any
	insertStatus  int
	insertBodies  []map[string]any
	insertQueries []url.Values
	lists         []url.Values
	listItems     []map[string]any
	deletes       []string
	deleteStatus  int
	refreshes     int
	refreshStatus int
	refreshDelay  time.Duration
	authHeaders   []string
}

func newFakeGoogle(t *testing.T) *fakeGoogle {
	f := &fakeGoogle{t: t}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", f.token)
	mux.HandleFunc("POST /calendars/{calendarID}/events", f.insert)
	mux.HandleFunc("GET /calendars/{calendarID}/events", f.list)
	mux.HandleFunc("DELETE /calendars/{calendarID}/events/{eventID}", f.delete)
	mux.HandleFunc("GET /users/me/calendarList", f.calendarList)
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeGoogle) recordAuth(r *http.Request) {
	f.authHeaders = append(f.authHeaders, r.Header.Get("Authorization"))
}

func (f *fakeGoogle) token(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.refreshes++
	status := f.refreshStatus
	delay := f.refreshDelay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	assert.NoError(f.t, r.ParseForm())
	assert.Equal(f.t, "refresh_token", r.Form.Get("grant_type"))
	assert.Equal(f.t, "refresh-1", r.Form.Get("refresh_token"))

	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
		return
	}
	_, _ = w.Write([]byte(`{"access_token":"fresh-access","token_type":"Bearer","expires_in":3600}`))
}

func (f *fakeGoogle) insert(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	n := f.inserts
	f.inserts++
	f.recordAuth(r)
	f.insertQueries = append(f.insertQueries, r.URL.Query())
	var delay time.Duration
	if n < len(f.insertDelays) {
		delay = f.insertDelays[n]
	}
	status := f.insertStatus
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	var body map[string]any
	assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
	f.mu.Lock()
	f.insertBodies = append(f.insertBodies, body)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"error":{"code":500,"message":"backend error"}}`))
		return
	}
	body["id"] = "evt-1"
	body["htmlLink"] = "https://calendar.example/evt-1"
	_ = json.NewEncoder(w).Encode(body)
}

func (f *fakeGoogle) list(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.lists = append(f.lists, r.URL.Query())
	f.recordAuth(r)
	items := f.listItems
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"items": items})
}

func (f *fakeGoogle) delete(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.deletes = append(f.deletes, r.PathValue("calendarID")+"/"+r.PathValue("eventID"))
	f.recordAuth(r)
	status := f.deleteStatus
	f.mu.Unlock()

	if status != 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprintf(w, `{"error":{"code":%d,"message":"Not Found"}}`, status)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeGoogle) calendarList(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"items":[{"id":"primary@example.com","summary":"Me","primary":true,"timeZone":"Europe/Paris","accessRole":"owner"},{"id":"team@example.com","summary":"Team","accessRole":"reader"}]}`))
}

func (f *fakeGoogle) gateway(opts ...Option) *Gateway {
	cfg := &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		Endpoint:     oauth2.Endpoint{TokenURL: f.srv.URL + "/token", AuthStyle: oauth2.AuthStyleInParams},
	}
	opts = append([]Option{WithClientOptions(option.WithEndpoint(f.srv.URL + "/"))}, opts...)
	return NewGateway(cfg, opts...)
}

func validToken() *oauth2.Token {
	return &oauth2.Token{AccessToken: "access-1", RefreshToken: "refresh-1", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour)}
}

func createAction(t *testing.T, start, end string) action.CreateAction {
	t.Helper()
	s, err := action.ParseOffsetTime(start, nil)
	require.NoError(t, err)
	a := action.CreateAction{Summary: "Dentist", Description: "Checkup", Start: s, TimeZone: "America/Los_Angeles"}
	if end != "" {
		e, err := action.ParseOffsetTime(end, nil)
		require.NoError(t, err)
		a.End = &e
	}
	return a
}

func TestCreate_SendsLiteralOffsets(t *testing.T) {
	f := newFakeGoogle(t)
	tok := validToken()

	ev, got, err := f.gateway().Create(context.Background(), tok, createAction(t, "2025-03-10T14:00:00-07:00", "2025-03-10T15:30:00-07:00"))
	require.NoError(t, err)
	assert.Same(t, tok, got)

	assert.Equal(t, "evt-1", ev.ID)
	assert.Equal(t, "https://calendar.example/evt-1", ev.Link)
	assert.Equal(t, "primary", ev.CalendarID)

	require.Len(t, f.insertBodies, 1)
	body := f.insertBodies[0]
	assert.Equal(t, "Dentist", body["summary"])
	assert.Equal(t, map[string]any{"dateTime": "2025-03-10T14:00:00-07:00", "timeZone": "America/Los_Angeles"}, body["start"])
	assert.Equal(t, map[string]any{"dateTime": "2025-03-10T15:30:00-07:00", "timeZone": "America/Los_Angeles"}, body["end"])
	assert.Equal(t, "none", f.insertQueries[0].Get("sendUpdates"))
	assert.Equal(t, "Bearer access-1", f.authHeaders[0])
}

func TestCreate_DefaultsEndToOneHour(t *testing.T) {
	f := newFakeGoogle(t)

	_, _, err := f.gateway().Create(context.Background(), validToken(), createAction(t, "2025-03-10T14:00:00-07:00", ""))
	require.NoError(t, err)

	end := f.insertBodies[0]["end"].(map[string]any)
	assert.Equal(t, "2025-03-10T15:00:00-07:00", end["dateTime"])
}

func TestCreate_RejectsBackwardsRangeBeforeNetwork(t *testing.T) {
	f := newFakeGoogle(t)
	// An expired token would otherwise trigger a refresh call.
	tok := &oauth2.Token{AccessToken: "old", RefreshToken: "refresh-1", Expiry: time.Now().Add(-time.Hour)}

	for _, end := range []string{"2025-03-10T14:00:00-07:00", "2025-03-10T13:00:00-07:00"} {
		_, _, err := f.gateway().Create(context.Background(), tok, createAction(t, "2025-03-10T14:00:00-07:00", end))
		assert.True(t, action.IsCode(err, action.CodeInvalidTimeRange), "end %s: %v", end, err)
	}
	assert.Zero(t, f.inserts)
	assert.Zero(t, f.refreshes)
}

func TestCreate_RetriesTimeouts(t *testing.T) {
	f := newFakeGoogle(t)
	f.insertDelays = []time.Duration{time.Second, time.Second}

	ev, _, err := f.gateway(WithAttemptTimeout(100*time.Millisecond)).
		Create(context.Background(), validToken(), createAction(t, "2025-03-10T14:00:00-07:00", ""))
	require.NoError(t, err)
	assert.Equal(t, "evt-1", ev.ID)
	assert.Equal(t, 3, f.inserts)
}

func TestCreate_GivesUpAfterThreeTimeouts(t *testing.T) {
	f := newFakeGoogle(t)
	f.insertDelays = []time.Duration{time.Second, time.Second, time.Second, time.Second}

	_, _, err := f.gateway(WithAttemptTimeout(100*time.Millisecond)).
		Create(context.Background(), validToken(), createAction(t, "2025-03-10T14:00:00-07:00", ""))

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, KindTimeout, pe.Kind)
	assert.Equal(t, 3, f.inserts)
}

func TestCreate_OtherErrorsAreNotRetried(t *testing.T) {
	f := newFakeGoogle(t)
	f.insertStatus = http.StatusInternalServerError

	_, _, err := f.gateway().Create(context.Background(), validToken(), createAction(t, "2025-03-10T14:00:00-07:00", ""))

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, KindOther, pe.Kind)
	assert.Equal(t, http.StatusInternalServerError, pe.Status)
	assert.Contains(t, pe.Body, "backend error")
	assert.Equal(t, 1, f.inserts)
}

func TestFind_ListsTodayWithTitleSearch(t *testing.T) {
	f := newFakeGoogle(t)
	f.listItems = []map[string]any{
		{"id": "a", "summary": "Dentist", "htmlLink": "https://calendar.example/a",
			"start": map[string]any{"dateTime": "2025-03-10T14:00:00-07:00"},
			"end":   map[string]any{"dateTime": "2025-03-10T15:00:00-07:00"}},
		{"id": "b", "summary": "Dentist week", "start": map[string]any{"date": "2025-03-10"}, "end": map[string]any{"date": "2025-03-11"}},
	}
	now := time.Date(2025, 3, 10, 17, 0, 0, 0, time.UTC) // 10:00 PDT
	g := f.gateway(WithClock(func() time.Time { return now }))

	events, _, err := g.Find(context.Background(), validToken(), action.EventQuery{Title: "dentist"}, "America/Los_Angeles")
	require.NoError(t, err)

	require.Len(t, f.lists, 1)
	q := f.lists[0]
	assert.Equal(t, "true", q.Get("singleEvents"))
	assert.Equal(t, "startTime", q.Get("orderBy"))
	assert.Equal(t, "10", q.Get("maxResults"))
	assert.Equal(t, "dentist", q.Get("q"))
	assert.Equal(t, "2025-03-10T07:00:00Z", q.Get("timeMin"))
	assert.Equal(t, "2025-03-11T06:59:59.999999Z", q.Get("timeMax"))

	require.Len(t, events, 2)
	assert.Equal(t, Event{ID: "a", Summary: "Dentist", Start: "2025-03-10T14:00:00-07:00", End: "2025-03-10T15:00:00-07:00",
		Link: "https://calendar.example/a", CalendarID: "primary"}, events[0])
	assert.True(t, events[1].AllDay)
	assert.Equal(t, "2025-03-10", events[1].Start)
}

func TestFind_NoTitleOmitsSearch(t *testing.T) {
	f := newFakeGoogle(t)
	d := action.Date{Year: 2025, Month: time.March, Day: 12}

	events, _, err := f.gateway().Find(context.Background(), validToken(), action.EventQuery{Date: &d, CalendarID: "team@example.com"}, "UTC")
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.NotNil(t, events)

	assert.False(t, f.lists[0].Has("q"))
	assert.Equal(t, "2025-03-12T00:00:00Z", f.lists[0].Get("timeMin"))
}

func TestFind_InvalidTimezone(t *testing.T) {
	f := newFakeGoogle(t)
	_, _, err := f.gateway().Find(context.Background(), validToken(), action.EventQuery{}, "Nowhere/Special")
	require.Error(t, err)
	assert.Empty(t, f.lists)
}

func TestDelete(t *testing.T) {
	f := newFakeGoogle(t)

	_, err := f.gateway().Delete(context.Background(), validToken(), "evt-1", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"primary/evt-1"}, f.deletes)
}

func TestDelete_NotFound(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusGone} {
		f := newFakeGoogle(t)
		f.deleteStatus = status

		_, err := f.gateway().Delete(context.Background(), validToken(), "gone", "primary")

		var pe *ProviderError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, KindNotFound, pe.Kind)
		assert.Equal(t, status, pe.Status)
	}
}

func TestExpiredTokenIsRefreshedInPlace(t *testing.T) {
	f := newFakeGoogle(t)
	tok := &oauth2.Token{AccessToken: "stale", RefreshToken: "refresh-1", Expiry: time.Now().Add(-time.Minute)}

	_, got, err := f.gateway().Find(context.Background(), tok, action.EventQuery{}, "UTC")
	require.NoError(t, err)

	assert.Same(t, tok, got)
	assert.Equal(t, "fresh-access", tok.AccessToken)
	assert.Equal(t, "refresh-1", tok.RefreshToken)
	assert.True(t, tok.Expiry.After(time.Now().Add(30*time.Minute)))
	assert.Equal(t, 1, f.refreshes)
	assert.Equal(t, []string{"Bearer fresh-access"}, f.authHeaders)
}

func TestRefreshFailureIsAuthRequired(t *testing.T) {
	f := newFakeGoogle(t)
	f.refreshStatus = http.StatusBadRequest
	tok := &oauth2.Token{AccessToken: "stale", RefreshToken: "refresh-1", Expiry: time.Now().Add(-time.Minute)}

	_, got, err := f.gateway().Create(context.Background(), tok, createAction(t, "2025-03-10T14:00:00-07:00", ""))

	assert.True(t, IsKind(err, KindAuthRequired), "%v", err)
	assert.Same(t, tok, got)
	assert.Equal(t, "stale", tok.AccessToken)
	assert.Zero(t, f.inserts)
}

func TestStalledRefreshTimesOut(t *testing.T) {
	f := newFakeGoogle(t)
	f.refreshDelay = 5 * time.Second
	tok := &oauth2.Token{AccessToken: "stale", RefreshToken: "refresh-1", Expiry: time.Now().Add(-time.Minute)}

	start := time.Now()
	_, got, err := f.gateway(WithAttemptTimeout(50*time.Millisecond)).Find(context.Background(), tok, action.EventQuery{}, "UTC")

	assert.True(t, IsKind(err, KindTimeout), "%v", err)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Same(t, tok, got)
	assert.Equal(t, "stale", tok.AccessToken)
	assert.Empty(t, f.lists)
}

func TestMissingRefreshTokenIsAuthRequired(t *testing.T) {
	f := newFakeGoogle(t)
	tok := &oauth2.Token{AccessToken: "stale", Expiry: time.Now().Add(-time.Minute)}

	_, err := f.gateway().Delete(context.Background(), tok, "evt-1", "primary")
	assert.True(t, IsKind(err, KindAuthRequired))
	assert.Zero(t, f.refreshes)
	assert.Empty(t, f.deletes)

	_, err = f.gateway().Delete(context.Background(), nil, "evt-1", "primary")
	assert.True(t, IsKind(err, KindAuthRequired))
}

func TestUnauthorizedResponseIsAuthRequired(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":401,"message":"Invalid Credentials"}}`))
	}))
	defer srv.Close()

	g := NewGateway(&oauth2.Config{}, WithClientOptions(option.WithEndpoint(srv.URL+"/")))
	_, _, err := g.Calendars(context.Background(), validToken())

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, KindAuthRequired, pe.Kind)
	assert.Equal(t, http.StatusUnauthorized, pe.Status)
}

func TestCalendars(t *testing.T) {
	f := newFakeGoogle(t)

	cals, _, err := f.gateway().Calendars(context.Background(), validToken())
	require.NoError(t, err)

	require.Len(t, cals, 2)
	assert.Equal(t, CalendarSummary{ID: "primary@example.com", Summary: "Me", TimeZone: "Europe/Paris", Primary: true, AccessRole: "owner"}, cals[0])
	assert.Equal(t, "team@example.com", cals[1].ID)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, KindTimeout, classify(context.DeadlineExceeded).Kind)
	assert.Equal(t, KindOther, classify(assert.AnError).Kind)

	wrapped := classify(&ProviderError{Kind: KindNotFound})
	assert.Equal(t, KindNotFound, wrapped.Kind)
	assert.True(t, strings.HasPrefix(wrapped.Error(), "calendar provider: not_found"))
}
