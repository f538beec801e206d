package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/decklabs/decksync/internal/model"
)

const taskColumns = `id, user_id, project_id, title, description,
       priority, status, due_date, event_id`

// CreateTask inserts a task and sets its ID. The linked-event reference is
// managed by the task–event linkage, not by callers.
func (s *Store) CreateTask(ctx context.Context, t *model.Task) error {
	return createTask(ctx, s.db, t)
}

// GetTask returns the task with the given ID, or (nil, nil) if it does not
// exist.
func (s *Store) GetTask(ctx context.Context, id int64) (*model.Task, error) {
	return getTask(ctx, s.db, id)
}

// CreateTask inserts a task within the transaction.
func (t *Tx) CreateTask(ctx context.Context, task *model.Task) error {
	return createTask(ctx, t.tx, task)
}

// GetTask returns the task with the given ID within the transaction.
func (t *Tx) GetTask(ctx context.Context, id int64) (*model.Task, error) {
	return getTask(ctx, t.tx, id)
}

// UpdateTask rewrites a task's fields within the transaction.
func (t *Tx) UpdateTask(ctx context.Context, task *model.Task) error {
	const q = `
		UPDATE tasks
		SET project_id = ?, title = ?, description = ?,
		    priority = ?, status = ?, due_date = ?, event_id = ?
		WHERE id = ?`
	if _, err := t.tx.ExecContext(ctx, q,
		task.ProjectID,
		task.Title,
		task.Description,
		string(task.Priority),
		string(task.Status),
		formatTimePtr(task.DueDate),
		task.EventID,
		task.ID,
	); err != nil {
		return fmt.Errorf("updating task id=%d: %w", task.ID, err)
	}
	return nil
}

// SetTaskEvent points a task at its linked mirror event (or clears the link
// when eventID is nil) within the transaction.
func (t *Tx) SetTaskEvent(ctx context.Context, taskID int64, eventID *int64) error {
	const q = `UPDATE tasks SET event_id = ? WHERE id = ?`
	if _, err := t.tx.ExecContext(ctx, q, eventID, taskID); err != nil {
		return fmt.Errorf("linking task id=%d: %w", taskID, err)
	}
	return nil
}

// DeleteTask removes the task with the given ID within the transaction.
func (t *Tx) DeleteTask(ctx context.Context, id int64) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting task id=%d: %w", id, err)
	}
	return nil
}

func createTask(ctx context.Context, q dbtx, t *model.Task) error {
	const stmt = `
		INSERT INTO tasks
		    (user_id, project_id, title, description, priority, status, due_date, event_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	priority := t.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}
	status := t.Status
	if status == "" {
		status = model.StatusPending
	}

	res, err := q.ExecContext(ctx, stmt,
		t.UserID,
		t.ProjectID,
		t.Title,
		t.Description,
		string(priority),
		string(status),
		formatTimePtr(t.DueDate),
		t.EventID,
	)
	if err != nil {
		return fmt.Errorf("creating task %q: %w", t.Title, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading task id: %w", err)
	}
	t.ID = id
	t.Priority = priority
	t.Status = status
	return nil
}

func getTask(ctx context.Context, q dbtx, id int64) (*model.Task, error) {
	stmt := `SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`

	var t model.Task
	var priority, status, dueDate string
	var eventID sql.NullInt64

	err := q.QueryRowContext(ctx, stmt, id).Scan(
		&t.ID,
		&t.UserID,
		&t.ProjectID,
		&t.Title,
		&t.Description,
		&priority,
		&status,
		&dueDate,
		&eventID,
	)
	if err == sql.ErrNoRows {
		return nil, nil //nolint:nilnil // intentional: "not found" sentinel
	}
	if err != nil {
		return nil, fmt.Errorf("scanning task row: %w", err)
	}

	t.Priority = model.Priority(priority)
	t.Status = model.Status(status)
	t.DueDate = parseTimePtr(dueDate)
	if eventID.Valid {
		t.EventID = &eventID.Int64
	}

	return &t, nil
}
