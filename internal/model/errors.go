package model

import "errors"

// Sentinel errors shared across the provider clients and the sync engine.
// Callers distinguish them with [errors.Is]; the batch orchestrator is the
// only layer allowed to convert them into recorded per-account results.
var (
	// ErrNotConfigured means the provider integration is absent at the
	// deployment level (no client id/secret). Surfaced without any network
	// call; distinct from a credential problem.
	ErrNotConfigured = errors.New("provider not configured")

	// ErrAuthExpired means the provider rejected the access token. The
	// caller should refresh and retry, or report the account as needing
	// reconnection.
	ErrAuthExpired = errors.New("provider credentials expired")

	// ErrRefreshDenied means the refresh token itself was rejected. The
	// account needs a full reconnect; never auto-retried.
	ErrRefreshDenied = errors.New("credential refresh denied")

	// ErrProviderUnavailable covers network and server-side failures talking
	// to a provider.
	ErrProviderUnavailable = errors.New("provider unavailable")
)
