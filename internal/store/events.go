package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/decklabs/decksync/internal/model"
)

const eventColumns = `id, user_id, project_id, task_id, title, description,
       starts_at, ends_at, all_day, source, external_id, calendar_account_id`

// UpsertMirrorEvent inserts a provider-mirrored event, or — when a row with
// the same (external_id, calendar_account_id) already exists — updates its
// content fields in place. Source, external id, and account reference never
// change on the update path. The single atomic statement is the guard against
// duplicate rows when two reconciliations of the same account overlap.
func (s *Store) UpsertMirrorEvent(ctx context.Context, e *model.Event) error {
	if e.ExternalID == "" || e.AccountID == nil {
		return fmt.Errorf("upserting mirror event %q: missing external id or account", e.Title)
	}

	// RETURNING reports the row's id on both the insert and the update path;
	// LastInsertId would hand back a stale rowid after a conflict update.
	const q = `
		INSERT INTO events
		    (user_id, project_id, task_id, title, description,
		     starts_at, ends_at, all_day, source, external_id, calendar_account_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(external_id, calendar_account_id) WHERE external_id != '' DO UPDATE SET
		    title       = excluded.title,
		    description = excluded.description,
		    starts_at   = excluded.starts_at,
		    ends_at     = excluded.ends_at,
		    all_day     = excluded.all_day
		RETURNING id`

	err := s.db.QueryRowContext(ctx, q,
		e.UserID,
		e.ProjectID,
		e.TaskID,
		e.Title,
		e.Description,
		formatTime(e.StartsAt),
		formatTime(e.EndsAt),
		e.AllDay,
		string(e.Source),
		e.ExternalID,
		*e.AccountID,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("upserting mirror event %q: %w", e.ExternalID, err)
	}
	return nil
}

// GetEventByExternalID returns the mirror event for (externalID, accountID),
// or (nil, nil) if none exists.
func (s *Store) GetEventByExternalID(ctx context.Context, externalID string, accountID int64) (*model.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM events
	      WHERE external_id = ? AND calendar_account_id = ?`
	return scanEvent(s.db.QueryRowContext(ctx, q, externalID, accountID))
}

// GetEvent returns the event with the given ID, or (nil, nil) if it does not
// exist.
func (s *Store) GetEvent(ctx context.Context, id int64) (*model.Event, error) {
	return getEvent(ctx, s.db, id)
}

// ListEventsForAccount returns all mirror events owned by one account,
// ordered by start time.
func (s *Store) ListEventsForAccount(ctx context.Context, accountID int64) ([]*model.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM events
	      WHERE calendar_account_id = ? ORDER BY starts_at`
	rows, err := s.db.QueryContext(ctx, q, accountID)
	if err != nil {
		return nil, fmt.Errorf("querying events for account id=%d: %w", accountID, err)
	}
	defer func() { _ = rows.Close() }()

	var events []*model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// CountMirrorEvents returns the number of mirror rows owned by one account.
func (s *Store) CountMirrorEvents(ctx context.Context, accountID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM events WHERE calendar_account_id = ?`, accountID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting mirror events for account id=%d: %w", accountID, err)
	}
	return count, nil
}

// CreateEvent inserts a locally-authored event and sets its ID.
func (s *Store) CreateEvent(ctx context.Context, e *model.Event) error {
	return createEvent(ctx, s.db, e)
}

// DeleteEvent removes the event with the given ID.
func (s *Store) DeleteEvent(ctx context.Context, id int64) error {
	return deleteEvent(ctx, s.db, id)
}

// CreateEvent inserts a locally-authored event within the transaction.
func (t *Tx) CreateEvent(ctx context.Context, e *model.Event) error {
	return createEvent(ctx, t.tx, e)
}

// UpdateEvent rewrites an event's content fields within the transaction.
func (t *Tx) UpdateEvent(ctx context.Context, e *model.Event) error {
	const q = `
		UPDATE events
		SET project_id = ?, title = ?, description = ?,
		    starts_at = ?, ends_at = ?, all_day = ?
		WHERE id = ?`
	if _, err := t.tx.ExecContext(ctx, q,
		e.ProjectID,
		e.Title,
		e.Description,
		formatTime(e.StartsAt),
		formatTime(e.EndsAt),
		e.AllDay,
		e.ID,
	); err != nil {
		return fmt.Errorf("updating event id=%d: %w", e.ID, err)
	}
	return nil
}

// GetEvent returns the event with the given ID within the transaction.
func (t *Tx) GetEvent(ctx context.Context, id int64) (*model.Event, error) {
	return getEvent(ctx, t.tx, id)
}

// DeleteEvent removes the event with the given ID within the transaction.
func (t *Tx) DeleteEvent(ctx context.Context, id int64) error {
	return deleteEvent(ctx, t.tx, id)
}

func createEvent(ctx context.Context, q dbtx, e *model.Event) error {
	const stmt = `
		INSERT INTO events
		    (user_id, project_id, task_id, title, description,
		     starts_at, ends_at, all_day, source, external_id, calendar_account_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	source := e.Source
	if source == "" {
		source = model.ProviderLocal
	}

	res, err := q.ExecContext(ctx, stmt,
		e.UserID,
		e.ProjectID,
		e.TaskID,
		e.Title,
		e.Description,
		formatTime(e.StartsAt),
		formatTime(e.EndsAt),
		e.AllDay,
		string(source),
		e.ExternalID,
		e.AccountID,
	)
	if err != nil {
		return fmt.Errorf("creating event %q: %w", e.Title, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading event id: %w", err)
	}
	e.ID = id
	e.Source = source
	return nil
}

func getEvent(ctx context.Context, q dbtx, id int64) (*model.Event, error) {
	stmt := `SELECT ` + eventColumns + ` FROM events WHERE id = ?`
	return scanEvent(q.QueryRowContext(ctx, stmt, id))
}

func deleteEvent(ctx context.Context, q dbtx, id int64) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting event id=%d: %w", id, err)
	}
	return nil
}

func scanEvent(sc scanner) (*model.Event, error) {
	var e model.Event
	var startsAt, endsAt, source string
	var externalID sql.NullString
	var accountID sql.NullInt64

	err := sc.Scan(
		&e.ID,
		&e.UserID,
		&e.ProjectID,
		&e.TaskID,
		&e.Title,
		&e.Description,
		&startsAt,
		&endsAt,
		&e.AllDay,
		&source,
		&externalID,
		&accountID,
	)
	if err == sql.ErrNoRows {
		return nil, nil //nolint:nilnil // intentional: "not found" sentinel
	}
	if err != nil {
		return nil, fmt.Errorf("scanning event row: %w", err)
	}

	e.StartsAt, _ = parseTime(startsAt)
	e.EndsAt, _ = parseTime(endsAt)
	e.Source = model.Provider(source)
	e.ExternalID = externalID.String
	if accountID.Valid {
		e.AccountID = &accountID.Int64
	}

	return &e, nil
}
