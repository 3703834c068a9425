package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/user/stocksim/backend/internal/models"
)

// ListWatchlist retrieves the symbols a user follows, in the order added.
func (s *PGStore) ListWatchlist(ctx context.Context, userID uuid.UUID) ([]*models.WatchlistEntry, error) {
	entries := make([]*models.WatchlistEntry, 0)
	query := `SELECT user_id, symbol, created_at FROM watchlist
			  WHERE user_id = $1 ORDER BY created_at, id`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, persistErr(fmt.Sprintf("query watchlist for user %s", userID), err)
	}
	defer rows.Close()

	for rows.Next() {
		entry := &models.WatchlistEntry{}
		if err := rows.Scan(&entry.UserID, &entry.Symbol, &entry.AddedAt); err != nil {
			return nil, persistErr(fmt.Sprintf("scan watchlist row for user %s", userID), err)
		}
		entries = append(entries, entry)
	}

	if rows.Err() != nil {
		return nil, persistErr(fmt.Sprintf("iterate watchlist for user %s", userID), rows.Err())
	}

	return entries, nil
}

// AddWatchlist follows symbol. Following it twice is a no-op.
func (s *PGStore) AddWatchlist(ctx context.Context, userID uuid.UUID, symbol string) error {
	query := `INSERT INTO watchlist (user_id, symbol) VALUES ($1, $2)
			  ON CONFLICT (user_id, symbol) DO NOTHING`
	if _, err := s.pool.Exec(ctx, query, userID, symbol); err != nil {
		return persistErr(fmt.Sprintf("add %s to watchlist", symbol), err)
	}
	return nil
}

// RemoveWatchlist unfollows symbol. Removing an absent symbol is a no-op.
func (s *PGStore) RemoveWatchlist(ctx context.Context, userID uuid.UUID, symbol string) error {
	query := `DELETE FROM watchlist WHERE user_id = $1 AND symbol = $2`
	if _, err := s.pool.Exec(ctx, query, userID, symbol); err != nil {
		return persistErr(fmt.Sprintf("remove %s from watchlist", symbol), err)
	}
	return nil
}
