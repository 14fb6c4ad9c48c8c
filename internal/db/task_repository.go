package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/chepyr/calendar-planner/shared"
	"github.com/chepyr/calendar-planner/shared/models"
	"github.com/jmoiron/sqlx"
)

const taskColumns = `id, user_id, title, description, is_completed, created_date, completed_date`

type TaskRepository struct {
	db *sqlx.DB
}

func NewTaskRepository(db *sqlx.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Create inserts the task and fills in the id assigned by the store.
func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	normalizeTaskTimes(task)
	query := r.db.Rebind(`INSERT INTO tasks (user_id, title, description, is_completed, created_date, completed_date)
	 VALUES (?, ?, ?, ?, ?, ?) RETURNING id`)

	err := r.db.QueryRowxContext(ctx, query,
		task.UserID, task.Title, task.Description, task.IsCompleted,
		task.CreatedDate, nullTime(task.CompletedDate),
	).Scan(&task.ID)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (r *TaskRepository) GetByID(ctx context.Context, userID string, id int64) (*models.Task, error) {
	query := r.db.Rebind(`SELECT ` + taskColumns + ` FROM tasks WHERE id = ? AND user_id = ?`)
	task := &models.Task{}
	if err := r.db.GetContext(ctx, task, query, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("task %d: %w", id, shared.ErrNotFound)
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

func (r *TaskRepository) ListByUserID(ctx context.Context, userID string) ([]models.Task, error) {
	query := r.db.Rebind(`SELECT ` + taskColumns + ` FROM tasks
	 WHERE user_id = ? ORDER BY created_date ASC, id ASC`)
	tasks := []models.Task{}
	if err := r.db.SelectContext(ctx, &tasks, query, userID); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// ListInRange returns the user's tasks with created_date in [from, to).
func (r *TaskRepository) ListInRange(ctx context.Context, userID string, from, to time.Time) ([]models.Task, error) {
	query := r.db.Rebind(`SELECT ` + taskColumns + ` FROM tasks
	 WHERE user_id = ? AND created_date >= ? AND created_date < ?
	 ORDER BY created_date ASC, id ASC`)
	tasks := []models.Task{}
	if err := r.db.SelectContext(ctx, &tasks, query, userID, dbTime(from), dbTime(to)); err != nil {
		return nil, fmt.Errorf("list tasks in range: %w", err)
	}
	return tasks, nil
}

// Update overwrites every mutable column of the task owned by task.UserID.
func (r *TaskRepository) Update(ctx context.Context, task *models.Task) error {
	normalizeTaskTimes(task)
	query := r.db.Rebind(`UPDATE tasks
	 SET title = ?, description = ?, is_completed = ?, created_date = ?, completed_date = ?
	 WHERE id = ? AND user_id = ?`)

	res, err := r.db.ExecContext(ctx, query,
		task.Title, task.Description, task.IsCompleted, task.CreatedDate, nullTime(task.CompletedDate),
		task.ID, task.UserID)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return expectOneRow(res, task.ID)
}

func (r *TaskRepository) Delete(ctx context.Context, userID string, id int64) error {
	query := r.db.Rebind(`DELETE FROM tasks WHERE id = ? AND user_id = ?`)
	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return expectOneRow(res, id)
}

func (r *TaskRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func expectOneRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("task %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func normalizeTaskTimes(task *models.Task) {
	task.CreatedDate = dbTime(task.CreatedDate)
	if task.CompletedDate != nil {
		completed := dbTime(*task.CompletedDate)
		task.CompletedDate = &completed
	}
}
