package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/decklabs/decksync/internal/model"
)

// defaultTitle is used when a provider event has an empty title.
const defaultTitle = "Untitled"

// Reconciler merges a remote provider listing into the event mirror store
// for one account. It is stateless between calls — all persistent state
// lives in the store.
//
// Mirrored events are matched by (external id, account id). Each match is
// written with a single atomic upsert, so a second reconciliation of the
// same account updates rows in place instead of duplicating them, even if
// the two passes overlap.
type Reconciler struct {
	events   EventStore
	accounts AccountStore
	log      *slog.Logger
}

// NewReconciler creates a Reconciler wired to the given stores.
func NewReconciler(events EventStore, accounts AccountStore, logger *slog.Logger) *Reconciler {
	return &Reconciler{events: events, accounts: accounts, log: logger}
}

// Reconcile merges remote into the mirror store for account and returns the
// number of events processed. Cancelled remote events are skipped; existing
// mirror rows for them are deliberately left in place (disconnecting the
// account is the only thing that removes mirror rows).
//
// On success the account's last-synced instant is set to the completion
// time, including when remote is empty. A store failure aborts the pass
// without touching it.
func (r *Reconciler) Reconcile(ctx context.Context, account *model.Account, remote []model.RemoteEvent) (int, error) {
	synced := 0

	for _, ev := range remote {
		if ev.Cancelled {
			r.log.Debug("skipping cancelled event",
				"account", account.Email,
				"external_id", ev.ExternalID,
			)
			continue
		}

		mirror, ok := r.mirrorEvent(account, ev)
		if !ok {
			r.log.Warn("skipping event without a start",
				"account", account.Email,
				"external_id", ev.ExternalID,
			)
			continue
		}

		if err := r.events.UpsertMirrorEvent(ctx, mirror); err != nil {
			return synced, fmt.Errorf("reconciling %s/%s: %w", account.Provider, account.Email, err)
		}
		synced++
	}

	completed := time.Now().UTC()
	if err := r.accounts.TouchLastSynced(ctx, account.ID, completed); err != nil {
		return synced, fmt.Errorf("recording sync time for %s/%s: %w", account.Provider, account.Email, err)
	}

	r.log.Info("reconcile complete",
		"provider", account.Provider,
		"account", account.Email,
		"synced", synced,
	)

	return synced, nil
}

// mirrorEvent maps one remote record to its mirror row. A timed start wins
// over a date-only start; a date-only start implies all-day; a missing end
// falls back to the start.
func (r *Reconciler) mirrorEvent(account *model.Account, ev model.RemoteEvent) (*model.Event, bool) {
	var start time.Time
	allDay := false
	switch {
	case ev.StartsAt != nil:
		start = *ev.StartsAt
	case ev.StartsOn != nil:
		start = *ev.StartsOn
		allDay = true
	default:
		return nil, false
	}

	end := start
	switch {
	case ev.EndsAt != nil:
		end = *ev.EndsAt
	case ev.EndsOn != nil:
		end = *ev.EndsOn
	}

	title := ev.Title
	if title == "" {
		title = defaultTitle
	}

	accountID := account.ID
	return &model.Event{
		UserID:      account.UserID,
		Title:       title,
		Description: ev.Description,
		StartsAt:    start,
		EndsAt:      end,
		AllDay:      allDay,
		Source:      account.Provider,
		ExternalID:  ev.ExternalID,
		AccountID:   &accountID,
	}, true
}
