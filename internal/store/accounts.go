package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/decklabs/decksync/internal/model"
)

const accountColumns = `id, user_id, provider, email, access_token,
       refresh_token, token_expiry, calendar_id, enabled, last_synced_at`

// CreateAccount inserts a new calendar account and sets its ID. Violating
// the (user, provider, email) uniqueness constraint is returned as an error.
func (s *Store) CreateAccount(ctx context.Context, a *model.Account) error {
	const q = `
		INSERT INTO calendar_accounts
		    (user_id, provider, email, access_token, refresh_token,
		     token_expiry, calendar_id, enabled, last_synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	calID := a.CalendarID
	if calID == "" {
		calID = "primary"
	}

	res, err := s.db.ExecContext(ctx, q,
		a.UserID,
		string(a.Provider),
		a.Email,
		a.Credentials.AccessToken,
		a.Credentials.RefreshToken,
		formatTime(a.Credentials.Expiry),
		calID,
		a.Enabled,
		formatTimePtr(a.LastSyncedAt),
	)
	if err != nil {
		return fmt.Errorf("creating account %s/%s: %w", a.Provider, a.Email, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading account id: %w", err)
	}
	a.ID = id
	a.CalendarID = calID
	return nil
}

// GetAccount returns the account with the given ID, or (nil, nil) if no such
// account exists.
func (s *Store) GetAccount(ctx context.Context, id int64) (*model.Account, error) {
	q := `SELECT ` + accountColumns + ` FROM calendar_accounts WHERE id = ?`
	return scanAccount(s.db.QueryRowContext(ctx, q, id))
}

// ListAccounts returns all calendar accounts for the given user.
func (s *Store) ListAccounts(ctx context.Context, userID int64) ([]*model.Account, error) {
	q := `SELECT ` + accountColumns + ` FROM calendar_accounts WHERE user_id = ? ORDER BY id`
	return s.queryAccounts(ctx, q, userID)
}

// ListEnabledAccounts returns the user's accounts with the enabled flag set.
// This is the set the batch orchestrator reconciles.
func (s *Store) ListEnabledAccounts(ctx context.Context, userID int64) ([]*model.Account, error) {
	q := `SELECT ` + accountColumns + ` FROM calendar_accounts WHERE user_id = ? AND enabled = 1 ORDER BY id`
	return s.queryAccounts(ctx, q, userID)
}

func (s *Store) queryAccounts(ctx context.Context, q string, args ...any) ([]*model.Account, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying accounts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var accounts []*model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// SetAccountEnabled toggles the enabled flag for one account.
func (s *Store) SetAccountEnabled(ctx context.Context, id int64, enabled bool) error {
	const q = `UPDATE calendar_accounts SET enabled = ? WHERE id = ?`
	if _, err := s.db.ExecContext(ctx, q, enabled, id); err != nil {
		return fmt.Errorf("toggling account id=%d: %w", id, err)
	}
	return nil
}

// UpdateCredentials replaces the credential bundle after a token refresh.
func (s *Store) UpdateCredentials(ctx context.Context, id int64, c model.Credentials) error {
	const q = `
		UPDATE calendar_accounts
		SET access_token = ?, refresh_token = ?, token_expiry = ?
		WHERE id = ?`
	if _, err := s.db.ExecContext(ctx, q, c.AccessToken, c.RefreshToken, formatTime(c.Expiry), id); err != nil {
		return fmt.Errorf("updating credentials for account id=%d: %w", id, err)
	}
	return nil
}

// TouchLastSynced records the completion instant of a reconciliation pass.
func (s *Store) TouchLastSynced(ctx context.Context, id int64, at time.Time) error {
	const q = `UPDATE calendar_accounts SET last_synced_at = ? WHERE id = ?`
	if _, err := s.db.ExecContext(ctx, q, formatTime(at), id); err != nil {
		return fmt.Errorf("touching last_synced_at for account id=%d: %w", id, err)
	}
	return nil
}

// DeleteAccount disconnects an account. The foreign key cascade removes all
// mirror events owned by it.
func (s *Store) DeleteAccount(ctx context.Context, id int64) error {
	const q = `DELETE FROM calendar_accounts WHERE id = ?`
	if _, err := s.db.ExecContext(ctx, q, id); err != nil {
		return fmt.Errorf("deleting account id=%d: %w", id, err)
	}
	return nil
}

func scanAccount(sc scanner) (*model.Account, error) {
	var a model.Account
	var provider, expiry, lastSynced string

	err := sc.Scan(
		&a.ID,
		&a.UserID,
		&provider,
		&a.Email,
		&a.Credentials.AccessToken,
		&a.Credentials.RefreshToken,
		&expiry,
		&a.CalendarID,
		&a.Enabled,
		&lastSynced,
	)
	if err == sql.ErrNoRows {
		return nil, nil //nolint:nilnil // intentional: "not found" sentinel
	}
	if err != nil {
		return nil, fmt.Errorf("scanning account row: %w", err)
	}

	a.Provider = model.Provider(provider)
	a.Credentials.Expiry, _ = parseTime(expiry)
	a.LastSyncedAt = parseTimePtr(lastSynced)

	return &a, nil
}
