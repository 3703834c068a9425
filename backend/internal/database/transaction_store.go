package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/user/stocksim/backend/internal/models"
)

// InsertTransaction appends an entry to the trade log. ID and Timestamp
// are assigned by the database.
func (t *pgTx) InsertTransaction(ctx context.Context, entry *models.Transaction) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	query := `INSERT INTO transactions (user_id, symbol, quantity, price, transaction_type)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING id, timestamp`

	err := t.tx.QueryRow(ctx, query,
		t.userID, entry.Symbol, entry.Quantity, entry.Price, string(entry.Type),
	).Scan(&entry.ID, &entry.Timestamp)
	if err != nil {
		return persistErr(fmt.Sprintf("insert transaction for user %s", t.userID), err)
	}
	entry.UserID = t.userID
	return nil
}

// ListTransactions retrieves a user's trade log, newest first.
func (s *PGStore) ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Transaction, error) {
	entries := make([]*models.Transaction, 0)
	query := `SELECT id, user_id, symbol, quantity, price, transaction_type, timestamp
			  FROM transactions
			  WHERE user_id = $1
			  ORDER BY timestamp DESC, id`
	args := []interface{}{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, persistErr(fmt.Sprintf("query transactions for user %s", userID), err)
	}
	defer rows.Close()

	for rows.Next() {
		entry := &models.Transaction{}
		var typ string
		err := rows.Scan(
			&entry.ID, &entry.UserID, &entry.Symbol, &entry.Quantity,
			&entry.Price, &typ, &entry.Timestamp,
		)
		if err != nil {
			return nil, persistErr(fmt.Sprintf("scan transaction for user %s", userID), err)
		}
		entry.Type = models.TransactionType(typ)
		entries = append(entries, entry)
	}

	if rows.Err() != nil {
		return nil, persistErr(fmt.Sprintf("iterate transactions for user %s", userID), rows.Err())
	}

	return entries, nil
}
