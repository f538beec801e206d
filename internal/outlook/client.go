package outlook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2"

	"github.com/decklabs/decksync/internal/model"
)

const (
	graphBaseURL   = "https://graph.microsoft.com/v1.0"
	requestTimeout = 30 * time.Second
	pageSize       = 100
)

// httpDoer is the subset of [http.Client] used by the client. Defining it as
// an interface allows mock injection in tests.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to Microsoft Graph on behalf of any number of accounts. The
// oauth2 config is shared; per-account tokens come from the account's
// credential bundle on each call.
type Client struct {
	cfg  *oauth2.Config
	hc   httpDoer
	base string
	log  *slog.Logger
}

// NewClient creates a Client backed by a real HTTP client with a bounded
// request timeout.
func NewClient(cfg *oauth2.Config, logger *slog.Logger) *Client {
	return &Client{
		cfg:  cfg,
		hc:   &http.Client{Timeout: requestTimeout},
		base: graphBaseURL,
		log:  logger,
	}
}

// NewClientWith creates a Client with a caller-supplied HTTP doer and base
// URL. Intended for testing with a mock [httpDoer].
func NewClientWith(cfg *oauth2.Config, hc httpDoer, baseURL string, logger *slog.Logger) *Client {
	return &Client{cfg: cfg, hc: hc, base: baseURL, log: logger}
}

// ListEvents returns the account's events in [from, to) via the Graph
// calendarView endpoint, which expands recurring events to single instances.
// Transient failures are retried; a rejected token is not.
func (c *Client) ListEvents(ctx context.Context, account *model.Account, from, to time.Time) ([]model.RemoteEvent, error) {
	q := url.Values{}
	q.Set("startDateTime", from.UTC().Format(time.RFC3339))
	q.Set("endDateTime", to.UTC().Format(time.RFC3339))
	q.Set("$top", strconv.Itoa(pageSize))

	next := c.base + calendarViewPath(account.CalendarID) + "?" + q.Encode()

	var events []model.RemoteEvent
	for next != "" {
		var page calendarViewResponse
		err := retry(ctx, defaultMaxAttempts, func() error {
			return c.get(ctx, next, account.Credentials.AccessToken, &page)
		})
		if err != nil {
			return nil, fmt.Errorf("listing calendar view: %w", err)
		}

		for _, item := range page.Value {
			ev, err := item.toRemoteEvent()
			if err != nil {
				c.log.Warn("skipping malformed event",
					"account", account.Email,
					"external_id", item.ID,
					"error", err,
				)
				continue
			}
			events = append(events, ev)
		}
		next = page.NextLink
	}

	return events, nil
}

// RefreshCredentials exchanges the account's refresh token for a fresh
// access token at the Microsoft identity endpoint.
func (c *Client) RefreshCredentials(ctx context.Context, account *model.Account) (model.Credentials, error) {
	if account.Credentials.RefreshToken == "" {
		return model.Credentials{}, fmt.Errorf("no refresh token for %s: %w", account.Email, model.ErrRefreshDenied)
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	ts := c.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: account.Credentials.RefreshToken})
	tok, err := ts.Token()
	if err != nil {
		return model.Credentials{}, refreshError(account.Email, err)
	}

	creds := model.Credentials{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}
	if creds.RefreshToken == "" {
		creds.RefreshToken = account.Credentials.RefreshToken
	}
	return creds, nil
}

// refreshError distinguishes a token the server rejected from a refresh that
// never reached the server. Only the former means the account needs a
// reconnect.
func refreshError(email string, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return fmt.Errorf("refreshing token for %s: %w: %v", email, model.ErrRefreshDenied, err)
	}
	return fmt.Errorf("refreshing token for %s: %w: %v", email, model.ErrProviderUnavailable, err)
}

// get performs one authenticated GET and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, rawURL, accessToken string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	// Graph otherwise returns boundaries in the mailbox's configured zone.
	req.Header.Set("Prefer", `outlook.timezone="UTC"`)

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrProviderUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("graph returned %d: %w", resp.StatusCode, model.ErrAuthExpired)
	case resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("graph returned %d: %s: %w", resp.StatusCode, body, model.ErrProviderUnavailable)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding graph response: %w", err)
	}
	return nil
}

// calendarViewPath returns the calendarView path for the default or a named
// calendar.
func calendarViewPath(calendarID string) string {
	if calendarID == "" || calendarID == "primary" {
		return "/me/calendarView"
	}
	return "/me/calendars/" + url.PathEscape(calendarID) + "/calendarView"
}
