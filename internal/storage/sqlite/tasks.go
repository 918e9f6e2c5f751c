package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"ideaboard/internal/models"
)

const taskColumns = `id, board_id, text, status, created_at, created_by`

// CreateTask adds a task to a board's "new" column.
func (s *Store) CreateTask(ctx context.Context, boardID, text, userID string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", models.Invalidf("task text must not be empty")
	}

	id := s.newID()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM boards WHERE id = ?`, boardID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return models.NotFoundf("board not found")
		}
		if err != nil {
			return fmt.Errorf("check board: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO tasks(id, board_id, text, status, created_at, created_by)
            VALUES(?, ?, ?, ?, ?, ?)`, id, boardID, text, models.StatusNew, s.now(), userID); err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	s.hub.Publish(tasksTopic(boardID))
	return id, nil
}

// ListTasks returns a board's tasks in arrival order.
func (s *Store) ListTasks(ctx context.Context, boardID string) ([]models.Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE board_id = ? ORDER BY rowid`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// GetTask retrieves a task that belongs to boardID.
func (s *Store) GetTask(ctx context.Context, boardID, taskID string) (models.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ? AND board_id = ?`, taskID, boardID)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, models.NotFoundf("task not found")
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// UpdateTaskStatus moves a task to another column. The task must belong to
// boardID and status must be one of the five board columns.
func (s *Store) UpdateTaskStatus(ctx context.Context, boardID, taskID string, status models.Status) error {
	status, err := models.ParseStatus(string(status))
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `UPDATE tasks SET status = ? WHERE id = ? AND board_id = ?`, status, taskID, boardID)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.NotFoundf("task not found")
	}

	s.hub.Publish(tasksTopic(boardID))
	return nil
}

// DeleteTask removes a task from a board. Deleting a missing task is not an error.
func (s *Store) DeleteTask(ctx context.Context, boardID, taskID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ? AND board_id = ?`, taskID, boardID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected > 0 {
		s.hub.Publish(tasksTopic(boardID))
	}
	return nil
}

func scanTask(row scanner) (models.Task, error) {
	var (
		t      models.Task
		status string
	)
	if err := row.Scan(&t.ID, &t.BoardID, &t.Text, &status, &t.CreatedAt, &t.CreatedBy); err != nil {
		return models.Task{}, err
	}
	t.Status = models.Status(status)
	return t, nil
}
