package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/chepyr/calendar-planner/shared"
	"github.com/chepyr/calendar-planner/shared/models"
	"github.com/jmoiron/sqlx"
)

const userColumns = `id, username, email, display_name, password_hash, created_at`

type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	user.CreatedAt = dbTime(user.CreatedAt)
	query := r.db.Rebind(`INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?)`)

	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Username, user.Email, user.DisplayName, user.PasswordHash, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %q: %w", user.Username, shared.ErrConflict)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getBy(ctx, "username", username)
}

func (r *UserRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, "username", username)
}

func (r *UserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "email", email)
}

// column is always one of the literals above, never caller input
func (r *UserRepository) getBy(ctx context.Context, column, value string) (*models.User, error) {
	query := r.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE ` + column + ` = ?`)
	user := &models.User{}
	if err := r.db.GetContext(ctx, user, query, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %q: %w", value, shared.ErrNotFound)
		}
		return nil, fmt.Errorf("get user by %s: %w", column, err)
	}
	return user, nil
}

func (r *UserRepository) exists(ctx context.Context, column, value string) (bool, error) {
	var exists bool
	query := r.db.Rebind(`SELECT EXISTS(SELECT 1 FROM users WHERE ` + column + ` = ?)`)
	if err := r.db.QueryRowxContext(ctx, query, value).Scan(&exists); err != nil {
		return false, fmt.Errorf("check user %s: %w", column, err)
	}
	return exists, nil
}
