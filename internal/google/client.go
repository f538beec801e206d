// Package google implements the Google Calendar provider client using the
// official calendar/v3 API bindings. It converts between the wire types and
// the shared [model.RemoteEvent] representation; reconciliation decisions
// live in the sync package.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/decklabs/decksync/internal/model"
)

// requestTimeout bounds each listing or refresh round trip.
const requestTimeout = 30 * time.Second

// Client talks to Google Calendar on behalf of any number of accounts. The
// oauth2 config is shared; per-account tokens come from the account's
// credential bundle on each call.
type Client struct {
	cfg *oauth2.Config
	log *slog.Logger
}

// NewClient creates a Client from the deployment's oauth2 configuration.
func NewClient(cfg *oauth2.Config, logger *slog.Logger) *Client {
	return &Client{cfg: cfg, log: logger}
}

// ListEvents returns the account's events in [from, to), with recurring
// events expanded to single instances. Cancelled instances are included so
// the reconciler can apply its own cancellation rule.
func (c *Client) ListEvents(ctx context.Context, account *model.Account, from, to time.Time) ([]model.RemoteEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	svc, err := c.service(ctx, account)
	if err != nil {
		return nil, err
	}

	calendarID := account.CalendarID
	if calendarID == "" {
		calendarID = "primary"
	}

	var events []model.RemoteEvent
	pageToken := ""
	for {
		call := svc.Events.List(calendarID).
			TimeMin(from.Format(time.RFC3339)).
			TimeMax(to.Format(time.RFC3339)).
			SingleEvents(true). // expand recurring events
			ShowDeleted(true).
			PageToken(pageToken).
			Context(ctx)
		res, err := call.Do()
		if err != nil {
			return nil, mapError("listing events", err)
		}
		for _, item := range res.Items {
			ev, err := toRemoteEvent(item)
			if err != nil {
				c.log.Warn("skipping malformed event",
					"account", account.Email,
					"external_id", item.Id,
					"error", err,
				)
				continue
			}
			events = append(events, ev)
		}
		pageToken = res.NextPageToken
		if pageToken == "" {
			break
		}
	}

	return events, nil
}

// RefreshCredentials exchanges the account's refresh token for a fresh
// access token. Google does not always return a new refresh token; the old
// one is kept in that case.
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

// service builds a calendar service authenticated as the given account.
func (c *Client) service(ctx context.Context, account *model.Account) (*calendar.Service, error) {
	tok := &oauth2.Token{
		AccessToken:  account.Credentials.AccessToken,
		RefreshToken: account.Credentials.RefreshToken,
		Expiry:       account.Credentials.Expiry,
	}
	svc, err := calendar.NewService(ctx, option.WithTokenSource(c.cfg.TokenSource(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("creating calendar service: %w", err)
	}
	return svc, nil
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

// mapError translates a Google API failure into the engine's error taxonomy.
func mapError(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden {
			return fmt.Errorf("%s: %w: %v", op, model.ErrAuthExpired, err)
		}
	}
	return fmt.Errorf("%s: %w: %v", op, model.ErrProviderUnavailable, err)
}
