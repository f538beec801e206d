package sync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/decklabs/decksync/internal/model"
	"github.com/decklabs/decksync/internal/store"
)

// taskTitlePrefix marks the derived due-date event of a task.
const taskTitlePrefix = "Task Due: "

// Linker maintains the one-to-one mirror between a task's due date and a
// local all-day event. It works on the concrete [store.Store] rather than an
// interface because every operation must run inside one of the store's
// transactions: the task mutation and its mirror write land atomically, so a
// crash between them cannot leave the pair inconsistent.
type Linker struct {
	store *store.Store
	log   *slog.Logger
}

// NewLinker creates a Linker backed by the given store.
func NewLinker(s *store.Store, logger *slog.Logger) *Linker {
	return &Linker{store: s, log: logger}
}

// SyncTaskMirror persists the task (insert when ID is zero, update
// otherwise) and brings its linked due-date event in step, all in a single
// transaction. A task with a due date ends up with exactly one linked local
// all-day event starting at the due date; clearing the due date deletes the
// event and clears the link.
func (l *Linker) SyncTaskMirror(ctx context.Context, task *model.Task) error {
	return l.store.InTx(ctx, func(tx *store.Tx) error {
		if task.ID == 0 {
			if err := tx.CreateTask(ctx, task); err != nil {
				return err
			}
		} else {
			if err := tx.UpdateTask(ctx, task); err != nil {
				return err
			}
		}
		return l.syncMirror(ctx, tx, task)
	})
}

// DeleteTask removes a task, deleting its linked event first (if any), in a
// single transaction.
func (l *Linker) DeleteTask(ctx context.Context, taskID int64) error {
	return l.store.InTx(ctx, func(tx *store.Tx) error {
		task, err := tx.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		if task == nil {
			return fmt.Errorf("task id=%d not found", taskID)
		}
		if task.EventID != nil {
			if err := tx.DeleteEvent(ctx, *task.EventID); err != nil {
				return err
			}
		}
		return tx.DeleteTask(ctx, taskID)
	})
}

// syncMirror applies the linkage rules for one task within tx.
func (l *Linker) syncMirror(ctx context.Context, tx *store.Tx, task *model.Task) error {
	if task.DueDate == nil {
		if task.EventID == nil {
			return nil
		}
		if err := tx.DeleteEvent(ctx, *task.EventID); err != nil {
			return err
		}
		if err := tx.SetTaskEvent(ctx, task.ID, nil); err != nil {
			return err
		}
		task.EventID = nil
		l.log.Debug("due-date event removed", "task", task.Title)
		return nil
	}

	description := task.Description
	if description == "" {
		description = fmt.Sprintf("Due date for task: %s", task.Title)
	}

	if task.EventID != nil {
		event, err := tx.GetEvent(ctx, *task.EventID)
		if err != nil {
			return err
		}
		if event != nil {
			event.Title = taskTitlePrefix + task.Title
			event.Description = description
			event.StartsAt = *task.DueDate
			event.EndsAt = *task.DueDate
			event.AllDay = true
			event.ProjectID = task.ProjectID
			return tx.UpdateEvent(ctx, event)
		}
		// Dangling link: the event row is gone, fall through and recreate.
	}

	taskID := task.ID
	event := &model.Event{
		UserID:      task.UserID,
		ProjectID:   task.ProjectID,
		TaskID:      &taskID,
		Title:       taskTitlePrefix + task.Title,
		Description: description,
		StartsAt:    *task.DueDate,
		EndsAt:      *task.DueDate,
		AllDay:      true,
		Source:      model.ProviderLocal,
	}
	if err := tx.CreateEvent(ctx, event); err != nil {
		return err
	}
	if err := tx.SetTaskEvent(ctx, task.ID, &event.ID); err != nil {
		return err
	}
	task.EventID = &event.ID
	l.log.Debug("due-date event linked", "task", task.Title, "event_id", event.ID)
	return nil
}
