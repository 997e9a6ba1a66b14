package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Task is a stored task. OwnerID is fixed at creation.
type Task struct {
	ID            int
	OwnerID       uuid.UUID
	Title         string
	IsDone        bool
	DueDate       *time.Time
	Category      string
	EstimateHours *int
}

const taskColumns = `id, user_id, title, is_done, due_date, category, estimate_hours`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (Task, error) {
	var (
		t        Task
		due      sql.NullTime
		estimate sql.NullInt64
	)
	if err := row.Scan(&t.ID, &t.OwnerID, &t.Title, &t.IsDone, &due, &t.Category, &estimate); err != nil {
		return Task{}, err
	}
	if due.Valid {
		d := due.Time.UTC()
		t.DueDate = &d
	}
	if estimate.Valid {
		e := int(estimate.Int64)
		t.EstimateHours = &e
	}
	return t, nil
}

func dueArg(d *time.Time) any {
	if d == nil {
		return nil
	}
	return d.UTC()
}

func estimateArg(e *int) any {
	if e == nil {
		return nil
	}
	return int64(*e)
}

// ListTasks returns every task owned by owner in id order.
func (s *Store) ListTasks(ctx context.Context, owner uuid.UUID) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT `+taskColumns+` FROM tasks WHERE user_id = ? ORDER BY id`),
		owner,
	)
	if err != nil {
		return nil, err // Return raw error - caller will decide status code
	}
	defer rows.Close()

	tasks := []Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

// GetTask looks the task up by id and owner in one statement, so a task
// belonging to someone else is reported as ErrNotFound.
func (s *Store) GetTask(ctx context.Context, owner uuid.UUID, id int) (Task, error) {
	t, err := scanTask(s.db.QueryRowContext(ctx,
		s.rebind(`SELECT `+taskColumns+` FROM tasks WHERE id = ? AND user_id = ?`),
		id, owner,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Task{}, ErrNotFound
		}
		return Task{}, err
	}
	return t, nil
}

// CreateTask inserts t and returns it with the id the database assigned.
func (s *Store) CreateTask(ctx context.Context, t Task) (Task, error) {
	var newID int
	err := s.db.QueryRowContext(ctx,
		s.rebind(`INSERT INTO tasks (user_id, title, is_done, due_date, category, estimate_hours) VALUES (?, ?, ?, ?, ?, ?) RETURNING id`),
		t.OwnerID, t.Title, t.IsDone, dueArg(t.DueDate), t.Category, estimateArg(t.EstimateHours),
	).Scan(&newID)
	if err != nil {
		return Task{}, err
	}
	t.ID = newID
	if t.DueDate != nil {
		d := t.DueDate.UTC()
		t.DueDate = &d
	}
	return t, nil
}

// UpdateTask replaces the mutable fields of the task matching t.ID and
// t.OwnerID.
func (s *Store) UpdateTask(ctx context.Context, t Task) error {
	res, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE tasks SET title = ?, is_done = ?, due_date = ?, category = ?, estimate_hours = ? WHERE id = ? AND user_id = ?`),
		t.Title, t.IsDone, dueArg(t.DueDate), t.Category, estimateArg(t.EstimateHours), t.ID, t.OwnerID,
	)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// SetTaskDone flips only the completion flag.
func (s *Store) SetTaskDone(ctx context.Context, owner uuid.UUID, id int, done bool) error {
	res, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE tasks SET is_done = ? WHERE id = ? AND user_id = ?`),
		done, id, owner,
	)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func (s *Store) DeleteTask(ctx context.Context, owner uuid.UUID, id int) error {
	res, err := s.db.ExecContext(ctx,
		s.rebind(`DELETE FROM tasks WHERE id = ? AND user_id = ?`),
		id, owner,
	)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func expectOneRow(res sql.Result) error {
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
