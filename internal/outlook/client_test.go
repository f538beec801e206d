package outlook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/decklabs/decksync/internal/model"
)

var testLogger = slog.Default()

// fakeDoer replays canned responses and records every request it sees.
type fakeDoer struct {
	mu        sync.Mutex
	requests  []*http.Request
	responses []fakeResponse
}

type fakeResponse struct {
	status int
	body   string
}

func (d *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.requests = append(d.requests, req)

	next := fakeResponse{status: http.StatusOK, body: `{}`}
	if len(d.responses) > 0 {
		next = d.responses[0]
		d.responses = d.responses[1:]
	}
	return &http.Response{
		StatusCode: next.status,
		Body:       io.NopCloser(strings.NewReader(next.body)),
		Header:     make(http.Header),
	}, nil
}

func newTestClient(doer *fakeDoer) *Client {
	cfg := &oauth2.Config{ClientID: "id", ClientSecret: "secret"}
	return NewClientWith(cfg, doer, "https://graph.test/v1.0", testLogger)
}

func graphAccount() *model.Account {
	return &model.Account{
		ID:       1,
		UserID:   7,
		Provider: model.ProviderOutlook,
		Email:    "alice@example.com",
		Credentials: model.Credentials{
			AccessToken:  "token-abc",
			RefreshToken: "refresh-abc",
		},
		CalendarID: "primary",
	}
}

var (
	windowFrom = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	windowTo   = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
)

// ---------------------------------------------------------------------------
// Listing
// ---------------------------------------------------------------------------

func TestListEvents_SinglePage(t *testing.T) {
	doer := &fakeDoer{responses: []fakeResponse{{
		status: http.StatusOK,
		body: `{
			"value": [
				{
					"id": "AAMkAGI1",
					"subject": "Design review",
					"start": {"dateTime": "2024-01-10T09:00:00.0000000", "timeZone": "UTC"},
					"end":   {"dateTime": "2024-01-10T10:00:00.0000000", "timeZone": "UTC"}
				}
			]
		}`,
	}}}
	c := newTestClient(doer)

	events, err := c.ListEvents(context.Background(), graphAccount(), windowFrom, windowTo)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	if events[0].ExternalID != "AAMkAGI1" || events[0].Title != "Design review" {
		t.Errorf("event = %+v", events[0])
	}

	req := doer.requests[0]
	if got := req.Header.Get("Authorization"); got != "Bearer token-abc" {
		t.Errorf("Authorization = %q", got)
	}
	if got := req.Header.Get("Prefer"); got != `outlook.timezone="UTC"` {
		t.Errorf("Prefer = %q", got)
	}
	if !strings.Contains(req.URL.Path, "/me/calendarView") {
		t.Errorf("path = %q, want calendarView on the default calendar", req.URL.Path)
	}
	q := req.URL.Query()
	if q.Get("startDateTime") != "2024-01-01T00:00:00Z" {
		t.Errorf("startDateTime = %q", q.Get("startDateTime"))
	}
	if q.Get("$top") != "100" {
		t.Errorf("$top = %q, want 100", q.Get("$top"))
	}
}

func TestListEvents_FollowsNextLink(t *testing.T) {
	doer := &fakeDoer{responses: []fakeResponse{
		{
			status: http.StatusOK,
			body: `{
				"value": [{"id": "page1", "subject": "First",
					"start": {"dateTime": "2024-01-10T09:00:00.0000000", "timeZone": "UTC"},
					"end":   {"dateTime": "2024-01-10T09:30:00.0000000", "timeZone": "UTC"}}],
				"@odata.nextLink": "https://graph.test/v1.0/me/calendarView?$skip=100"
			}`,
		},
		{
			status: http.StatusOK,
			body: `{
				"value": [{"id": "page2", "subject": "Second",
					"start": {"dateTime": "2024-01-11T09:00:00.0000000", "timeZone": "UTC"},
					"end":   {"dateTime": "2024-01-11T09:30:00.0000000", "timeZone": "UTC"}}]
			}`,
		},
	}}
	c := newTestClient(doer)

	events, err := c.ListEvents(context.Background(), graphAccount(), windowFrom, windowTo)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
	if events[0].ExternalID != "page1" || events[1].ExternalID != "page2" {
		t.Errorf("events = %v, %v", events[0].ExternalID, events[1].ExternalID)
	}
	if len(doer.requests) != 2 {
		t.Fatalf("requests = %d, want 2", len(doer.requests))
	}
	if got := doer.requests[1].URL.RawQuery; got != "$skip=100" {
		t.Errorf("second request query = %q, want the nextLink's", got)
	}
}

func TestListEvents_NamedCalendar(t *testing.T) {
	doer := &fakeDoer{}
	c := newTestClient(doer)

	account := graphAccount()
	account.CalendarID = "Team Calendar"
	if _, err := c.ListEvents(context.Background(), account, windowFrom, windowTo); err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	path := doer.requests[0].URL.EscapedPath()
	if !strings.Contains(path, "/me/calendars/Team%20Calendar/calendarView") {
		t.Errorf("path = %q, want the named-calendar view", path)
	}
}

func TestListEvents_UnauthorizedIsFinal(t *testing.T) {
	doer := &fakeDoer{responses: []fakeResponse{
		{status: http.StatusUnauthorized, body: `{"error": {"code": "InvalidAuthenticationToken"}}`},
	}}
	c := newTestClient(doer)

	_, err := c.ListEvents(context.Background(), graphAccount(), windowFrom, windowTo)
	if !errors.Is(err, model.ErrAuthExpired) {
		t.Fatalf("error = %v, want ErrAuthExpired", err)
	}
	if len(doer.requests) != 1 {
		t.Errorf("requests = %d, want 1 (credential errors are final)", len(doer.requests))
	}
}

func TestListEvents_RetriesServerError(t *testing.T) {
	doer := &fakeDoer{responses: []fakeResponse{
		{status: http.StatusServiceUnavailable, body: `{"error": {"code": "ServiceUnavailable"}}`},
		{status: http.StatusOK, body: `{"value": []}`},
	}}
	c := newTestClient(doer)

	events, err := c.ListEvents(context.Background(), graphAccount(), windowFrom, windowTo)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if events != nil {
		t.Errorf("events = %v, want empty", events)
	}
	if len(doer.requests) != 2 {
		t.Errorf("requests = %d, want 2 (one retry)", len(doer.requests))
	}
}

func TestListEvents_AllRetriesExhausted(t *testing.T) {
	doer := &fakeDoer{responses: []fakeResponse{
		{status: http.StatusInternalServerError, body: `{}`},
		{status: http.StatusInternalServerError, body: `{}`},
		{status: http.StatusInternalServerError, body: `{}`},
	}}
	c := newTestClient(doer)

	_, err := c.ListEvents(context.Background(), graphAccount(), windowFrom, windowTo)
	if !errors.Is(err, model.ErrProviderUnavailable) {
		t.Fatalf("error = %v, want ErrProviderUnavailable", err)
	}
	if len(doer.requests) != defaultMaxAttempts {
		t.Errorf("requests = %d, want %d", len(doer.requests), defaultMaxAttempts)
	}
}

func TestListEvents_SkipsMalformedEvent(t *testing.T) {
	doer := &fakeDoer{responses: []fakeResponse{{
		status: http.StatusOK,
		body: `{
			"value": [
				{"id": "bad", "subject": "Broken",
					"start": {"dateTime": "garbage", "timeZone": "UTC"}},
				{"id": "good", "subject": "Fine",
					"start": {"dateTime": "2024-01-10T09:00:00.0000000", "timeZone": "UTC"},
					"end":   {"dateTime": "2024-01-10T09:30:00.0000000", "timeZone": "UTC"}}
			]
		}`,
	}}}
	c := newTestClient(doer)

	events, err := c.ListEvents(context.Background(), graphAccount(), windowFrom, windowTo)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 1 || events[0].ExternalID != "good" {
		t.Errorf("events = %+v, want only the well-formed one", events)
	}
}

// ---------------------------------------------------------------------------
// Credential refresh
// ---------------------------------------------------------------------------

func TestRefreshCredentials_NoRefreshToken(t *testing.T) {
	c := newTestClient(&fakeDoer{})

	account := graphAccount()
	account.Credentials.RefreshToken = ""
	_, err := c.RefreshCredentials(context.Background(), account)
	if !errors.Is(err, model.ErrRefreshDenied) {
		t.Errorf("error = %v, want ErrRefreshDenied", err)
	}
}

func TestRefreshCredentials_RejectedToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": "invalid_grant"}`))
	}))
	defer srv.Close()

	cfg := &oauth2.Config{
		ClientID:     "id",
		ClientSecret: "secret",
		Endpoint:     oauth2.Endpoint{TokenURL: srv.URL + "/token"},
	}
	c := NewClient(cfg, testLogger)

	_, err := c.RefreshCredentials(context.Background(), graphAccount())
	if !errors.Is(err, model.ErrRefreshDenied) {
		t.Errorf("error = %v, want ErrRefreshDenied for a server-side rejection", err)
	}
}

func TestRefreshCredentials_NetworkFailure(t *testing.T) {
	// Nothing listens here; the refresh never reaches a token server.
	cfg := &oauth2.Config{
		ClientID:     "id",
		ClientSecret: "secret",
		Endpoint:     oauth2.Endpoint{TokenURL: "http://127.0.0.1:1/token"},
	}
	c := NewClient(cfg, testLogger)

	_, err := c.RefreshCredentials(context.Background(), graphAccount())
	if !errors.Is(err, model.ErrProviderUnavailable) {
		t.Errorf("error = %v, want ErrProviderUnavailable for a transport failure", err)
	}
	if errors.Is(err, model.ErrRefreshDenied) {
		t.Error("transport failure classified as a denied refresh")
	}
}

// ---------------------------------------------------------------------------
// Paths
// ---------------------------------------------------------------------------

func TestCalendarViewPath(t *testing.T) {
	tests := []struct {
		calendarID string
		want       string
	}{
		{"", "/me/calendarView"},
		{"primary", "/me/calendarView"},
		{"work", "/me/calendars/work/calendarView"},
		{"Team Calendar", "/me/calendars/Team%20Calendar/calendarView"},
	}
	for _, tt := range tests {
		if got := calendarViewPath(tt.calendarID); got != tt.want {
			t.Errorf("calendarViewPath(%q) = %q, want %q", tt.calendarID, got, tt.want)
		}
	}
}
