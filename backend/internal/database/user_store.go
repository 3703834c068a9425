package database

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/user/stocksim/backend/internal/models"
)

const uniqueViolation = "23505"

// CreateUser inserts a new user with a starting cash balance.
func (s *PGStore) CreateUser(ctx context.Context, username, passwordHash string, balance decimal.Decimal) (*models.User, error) {
	user := &models.User{
		Username:     username,
		PasswordHash: passwordHash,
		Balance:      balance,
	}

	query := `INSERT INTO users (username, password_hash, balance) VALUES ($1, $2, $3)
			  RETURNING id, created_at`

	err := s.pool.QueryRow(ctx, query, username, passwordHash, balance).
		Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, models.ErrUsernameTaken
		}
		return nil, persistErr("create user", err)
	}

	return user, nil
}

const userColumns = `id, username, password_hash, balance, created_at`

func scanUser(row pgx.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Balance, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, err
	}
	return user, nil
}

// GetUserByUsername retrieves a user by their username.
func (s *PGStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	user, err := scanUser(s.pool.QueryRow(ctx, query, username))
	if err != nil {
		return nil, persistErr("get user by username", err)
	}
	return user, nil
}

// GetUserByID retrieves a user by their ID.
func (s *PGStore) GetUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(s.pool.QueryRow(ctx, query, userID))
	if err != nil {
		return nil, persistErr("get user by id", err)
	}
	return user, nil
}

// LockUser reads the user row FOR UPDATE, blocking concurrent trades by the
// same user until this transaction ends.
func (t *pgTx) LockUser(ctx context.Context) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`
	user, err := scanUser(t.tx.QueryRow(ctx, query, t.userID))
	if err != nil {
		return nil, persistErr("lock user", err)
	}
	if user == nil {
		return nil, models.ErrUserNotFound
	}
	return user, nil
}

// UpdateBalance sets the user's cash balance.
func (t *pgTx) UpdateBalance(ctx context.Context, balance decimal.Decimal) error {
	cmdTag, err := t.tx.Exec(ctx, `UPDATE users SET balance = $1 WHERE id = $2`, balance, t.userID)
	if err != nil {
		return persistErr("update balance", err)
	}
	if cmdTag.RowsAffected() != 1 {
		return models.ErrUserNotFound
	}
	return nil
}
