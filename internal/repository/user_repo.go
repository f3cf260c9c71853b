package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-pharmacy-catalog/internal/model"
)

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create inserts u. Uniqueness of the username is left to the
// users_username_lower_key index so concurrent signups cannot both win.
func (r *UserRepository) Create(ctx context.Context, u model.User) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, username, password_hash, role, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Username, u.PasswordHash, string(u.Role), u.CreatedAt, u.UpdatedAt)
	if isUniqueViolation(err) {
		return model.ErrDuplicateUsername
	}
	if err != nil {
		return storeError("create user", err)
	}
	return nil
}

func (r *UserRepository) FindByUsernameAndRole(ctx context.Context, username string, role model.Role) (model.User, error) {
	var u model.User
	var storedRole string
	err := r.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, role, created_at, updated_at
		 FROM users WHERE lower(username) = lower($1) AND role = $2`,
		strings.TrimSpace(username), string(role)).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &storedRole, &u.CreatedAt, &u.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, storeError("find user by username and role", err)
	}
	u.Role = model.Role(storedRole)
	return u, nil
}

func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, storeError("count users", err)
	}
	return count, nil
}
