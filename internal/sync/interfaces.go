// Package sync implements the calendar reconciliation engine for The Deck.
// It merges provider event listings into the local mirror store, drives
// batch synchronization across all enabled accounts, and keeps the derived
// due-date event for each task in step with the task itself.
//
// The package contains three main components:
//
//   - [Reconciler] merges one account's remote listing into the mirror store.
//   - [Orchestrator] runs reconciliation across all enabled accounts,
//     refreshing credentials as needed.
//   - [Linker] maintains the one-to-one task ↔ due-date-event mirror.
package sync

import (
	"context"
	"time"

	"github.com/decklabs/decksync/internal/model"
)

// ProviderClient lists a provider's events and refreshes its credentials.
// One implementation exists per provider ([google.Client], [outlook.Client]);
// the orchestrator selects one by the account's provider tag.
type ProviderClient interface {
	// ListEvents returns the account's events in [from, to). Fails with
	// [model.ErrAuthExpired] or [model.ErrProviderUnavailable].
	ListEvents(ctx context.Context, account *model.Account, from, to time.Time) ([]model.RemoteEvent, error)

	// RefreshCredentials exchanges the account's refresh token for a new
	// credential bundle. Fails with [model.ErrRefreshDenied].
	RefreshCredentials(ctx context.Context, account *model.Account) (model.Credentials, error)
}

// EventStore provides mirror-event access. Implemented by [store.Store].
type EventStore interface {
	UpsertMirrorEvent(ctx context.Context, e *model.Event) error
}

// AccountStore provides calendar-account access. Implemented by [store.Store].
type AccountStore interface {
	ListEnabledAccounts(ctx context.Context, userID int64) ([]*model.Account, error)
	GetAccount(ctx context.Context, id int64) (*model.Account, error)
	UpdateCredentials(ctx context.Context, id int64, c model.Credentials) error
	TouchLastSynced(ctx context.Context, id int64, at time.Time) error
}
