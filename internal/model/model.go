// Package model defines shared types used across the reconciliation engine,
// the provider clients, and the store.
package model

import (
	"fmt"
	"time"
)

// Provider identifies where a calendar event originated.
type Provider string

const (
	// ProviderLocal marks events authored inside The Deck itself.
	ProviderLocal Provider = "local"
	// ProviderGoogle marks events mirrored from Google Calendar.
	ProviderGoogle Provider = "google"
	// ProviderOutlook marks events mirrored from Outlook Calendar.
	ProviderOutlook Provider = "outlook"
)

// ParseProvider validates a provider tag from config, CLI input, or a DB row.
func ParseProvider(s string) (Provider, error) {
	switch Provider(s) {
	case ProviderLocal, ProviderGoogle, ProviderOutlook:
		return Provider(s), nil
	default:
		return "", fmt.Errorf("unknown provider %q", s)
	}
}

// Remote reports whether events from this provider carry an external ID and
// an owning account reference.
func (p Provider) Remote() bool {
	return p == ProviderGoogle || p == ProviderOutlook
}

// Priority is a task's priority level.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Status is a task's lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Credentials is the opaque OAuth credential bundle for one account.
// RefreshToken may be empty when the provider did not grant offline access.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// Expired reports whether the access token needs refreshing at instant now.
func (c Credentials) Expired(now time.Time) bool {
	return !c.Expiry.IsZero() && !now.Before(c.Expiry)
}

// Account is one user's connection to one external calendar provider.
// Unique per (user, provider, email).
type Account struct {
	ID           int64
	UserID       int64
	Provider     Provider
	Email        string
	Credentials  Credentials
	CalendarID   string // provider-side calendar identifier, e.g. "primary"
	Enabled      bool
	LastSyncedAt *time.Time
}

// Event is a calendar event, either authored locally or mirrored from a
// provider. For mirrored events (Source.Remote() == true) ExternalID and
// AccountID are set and (ExternalID, AccountID) is unique; local events never
// carry either.
type Event struct {
	ID          int64
	UserID      int64
	ProjectID   *int64
	TaskID      *int64
	Title       string
	Description string
	StartsAt    time.Time
	EndsAt      time.Time
	AllDay      bool
	Source      Provider
	ExternalID  string
	AccountID   *int64
}

// Task is a unit of work. A task with a non-nil DueDate has exactly one
// linked local event mirroring it (EventID); a task without one has none.
type Task struct {
	ID          int64
	UserID      int64
	ProjectID   *int64
	Title       string
	Description string
	Priority    Priority
	Status      Status
	DueDate     *time.Time
	EventID     *int64
}

// RemoteEvent is the provider-neutral shape of one event as listed by a
// provider. Timed fields (StartsAt/EndsAt) and date-only fields
// (StartsOn/EndsOn) are mutually exclusive per end; a date-only start means
// the event is all-day. The reconciler owns the derivation rules — provider
// clients only transcribe what the wire gave them.
type RemoteEvent struct {
	ExternalID  string
	Title       string
	Description string
	StartsAt    *time.Time // timed start
	StartsOn    *time.Time // date-only start (midnight UTC)
	EndsAt      *time.Time
	EndsOn      *time.Time
	Cancelled   bool
}
