package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/user/stocksim/backend/internal/models"
)

const positionColumns = `user_id, symbol, quantity, average_price, created_at`

func scanPosition(row pgx.Row) (*models.Position, error) {
	pos := &models.Position{}
	err := row.Scan(&pos.UserID, &pos.Symbol, &pos.Quantity, &pos.AverageCost, &pos.AcquiredAt)
	if err != nil {
		return nil, err
	}
	return pos, nil
}

// GetHoldings retrieves all open positions for a given user, oldest first.
func (s *PGStore) GetHoldings(ctx context.Context, userID uuid.UUID) ([]*models.Position, error) {
	positions := make([]*models.Position, 0)
	query := `SELECT ` + positionColumns + `
			  FROM portfolio WHERE user_id = $1 ORDER BY created_at, id`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, persistErr(fmt.Sprintf("query holdings for user %s", userID), err)
	}
	defer rows.Close()

	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, persistErr(fmt.Sprintf("scan holding for user %s", userID), err)
		}
		positions = append(positions, pos)
	}

	if rows.Err() != nil {
		return nil, persistErr(fmt.Sprintf("iterate holdings for user %s", userID), rows.Err())
	}

	return positions, nil
}

// GetPosition retrieves one position inside the trade transaction, locking
// its row. Returns nil, nil if the user holds none of symbol.
func (t *pgTx) GetPosition(ctx context.Context, symbol string) (*models.Position, error) {
	query := `SELECT ` + positionColumns + `
			  FROM portfolio WHERE user_id = $1 AND symbol = $2 FOR UPDATE`

	pos, err := scanPosition(t.tx.QueryRow(ctx, query, t.userID, symbol))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, persistErr(fmt.Sprintf("get position %s", symbol), err)
	}
	return pos, nil
}

// SavePosition inserts the position or overwrites quantity and cost of the
// existing row. created_at keeps the first acquisition time.
func (t *pgTx) SavePosition(ctx context.Context, pos *models.Position) error {
	if err := pos.Validate(); err != nil {
		return err
	}

	query := `INSERT INTO portfolio (user_id, symbol, quantity, average_price)
			  VALUES ($1, $2, $3, $4)
			  ON CONFLICT (user_id, symbol)
			  DO UPDATE SET quantity = EXCLUDED.quantity, average_price = EXCLUDED.average_price
			  RETURNING created_at`

	err := t.tx.QueryRow(ctx, query, t.userID, pos.Symbol, pos.Quantity, pos.AverageCost).
		Scan(&pos.AcquiredAt)
	if err != nil {
		return persistErr(fmt.Sprintf("save position %s", pos.Symbol), err)
	}
	return nil
}

// DeletePosition removes a fully liquidated position.
func (t *pgTx) DeletePosition(ctx context.Context, symbol string) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM portfolio WHERE user_id = $1 AND symbol = $2`, t.userID, symbol)
	if err != nil {
		return persistErr(fmt.Sprintf("delete position %s", symbol), err)
	}
	return nil
}
