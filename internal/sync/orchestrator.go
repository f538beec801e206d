package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/decklabs/decksync/internal/model"
)

// Window bounds the event listing around the current instant: events in
// [now − Past, now + Future) are reconciled.
type Window struct {
	Past   time.Duration
	Future time.Duration
}

// DefaultWindow is the reference window: 30 days back, 90 days ahead.
func DefaultWindow() Window {
	return Window{Past: 30 * 24 * time.Hour, Future: 90 * 24 * time.Hour}
}

// AccountResult is the per-account outcome of a batch sync. Exactly one of
// Synced and Err is meaningful: Err == nil means Synced events were
// processed.
type AccountResult struct {
	AccountID int64
	Provider  model.Provider
	Email     string
	Synced    int
	Err       error
}

// Orchestrator drives reconciliation across all enabled accounts for a user
// and owns credential refresh. Provider clients are injected once at
// construction and selected per account by provider tag — accounts whose
// provider has no client configured produce a [model.ErrNotConfigured]
// result without any network call.
type Orchestrator struct {
	clients    map[model.Provider]ProviderClient
	reconciler *Reconciler
	accounts   AccountStore
	window     Window
	log        *slog.Logger
}

// NewOrchestrator creates an Orchestrator. clients maps provider tags to
// their clients; providers absent from the map are treated as not configured.
func NewOrchestrator(clients map[model.Provider]ProviderClient, reconciler *Reconciler, accounts AccountStore, window Window, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		clients:    clients,
		reconciler: reconciler,
		accounts:   accounts,
		window:     window,
		log:        logger,
	}
}

// SyncAll reconciles every enabled account for the user, sequentially and
// independently: a failing account is recorded in its result and never
// aborts the batch. Only a failure to read the account list itself is
// returned as an error.
func (o *Orchestrator) SyncAll(ctx context.Context, userID int64) ([]AccountResult, error) {
	accounts, err := o.accounts.ListEnabledAccounts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing enabled accounts for user %d: %w", userID, err)
	}

	results := make([]AccountResult, 0, len(accounts))
	for _, account := range accounts {
		res := AccountResult{
			AccountID: account.ID,
			Provider:  account.Provider,
			Email:     account.Email,
		}
		res.Synced, res.Err = o.syncOne(ctx, account)
		if res.Err != nil {
			o.log.Error("account sync failed",
				"provider", account.Provider,
				"account", account.Email,
				"error", res.Err,
			)
		}
		results = append(results, res)
	}

	return results, nil
}

// SyncAccount reconciles a single account and surfaces the specific error
// kind, so callers can tell "reconnect needed" from "transient failure"
// from "not configured".
func (o *Orchestrator) SyncAccount(ctx context.Context, accountID int64) (int, error) {
	account, err := o.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("loading account id=%d: %w", accountID, err)
	}
	if account == nil {
		return 0, fmt.Errorf("account id=%d not found", accountID)
	}
	return o.syncOne(ctx, account)
}

// syncOne refreshes credentials when needed, lists the provider's events for
// the window, and reconciles them. A listing failure aborts before any
// mirror row or last-synced mutation.
func (o *Orchestrator) syncOne(ctx context.Context, account *model.Account) (int, error) {
	client, ok := o.clients[account.Provider]
	if !ok {
		return 0, fmt.Errorf("%s: %w", account.Provider, model.ErrNotConfigured)
	}

	if account.Credentials.Expired(time.Now()) {
		creds, err := client.RefreshCredentials(ctx, account)
		if err != nil {
			return 0, fmt.Errorf("refreshing %s/%s: %w", account.Provider, account.Email, err)
		}
		if err := o.accounts.UpdateCredentials(ctx, account.ID, creds); err != nil {
			return 0, fmt.Errorf("persisting refreshed credentials for %s/%s: %w", account.Provider, account.Email, err)
		}
		account.Credentials = creds
		o.log.Info("credentials refreshed",
			"provider", account.Provider,
			"account", account.Email,
			"expiry", creds.Expiry,
		)
	}

	now := time.Now().UTC()
	from := now.Add(-o.window.Past)
	to := now.Add(o.window.Future)

	remote, err := client.ListEvents(ctx, account, from, to)
	if err != nil {
		return 0, fmt.Errorf("listing %s/%s events: %w", account.Provider, account.Email, err)
	}

	return o.reconciler.Reconcile(ctx, account, remote)
}
