package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/user/stocksim/backend/internal/models"
)

// MemoryStore is a process-local Store for development and tests. A trade
// transaction works on a private copy of the user's rows and swaps it in on
// success, so a failed trade leaves no trace. Transactions are serialized.
type MemoryStore struct {
	mu           sync.RWMutex
	users        map[uuid.UUID]*models.User
	byName       map[string]uuid.UUID
	positions    map[uuid.UUID][]*models.Position
	transactions map[uuid.UUID][]*models.Transaction
	watchlist    map[uuid.UUID][]*models.WatchlistEntry
	now          func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:        make(map[uuid.UUID]*models.User),
		byName:       make(map[string]uuid.UUID),
		positions:    make(map[uuid.UUID][]*models.Position),
		transactions: make(map[uuid.UUID][]*models.Transaction),
		watchlist:    make(map[uuid.UUID][]*models.WatchlistEntry),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryStore) Close() {}

func (m *MemoryStore) CreateUser(_ context.Context, username, passwordHash string, balance decimal.Decimal) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.byName[username]; taken {
		return nil, models.ErrUsernameTaken
	}
	user := &models.User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: passwordHash,
		Balance:      balance,
		CreatedAt:    m.now(),
	}
	m.users[user.ID] = user
	m.byName[username] = user.ID
	cp := *user
	return &cp, nil
}

func (m *MemoryStore) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byName[username]
	if !ok {
		return nil, nil
	}
	cp := *m.users[id]
	return &cp, nil
}

func (m *MemoryStore) GetUserByID(_ context.Context, userID uuid.UUID) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[userID]
	if !ok {
		return nil, nil
	}
	cp := *user
	return &cp, nil
}

func (m *MemoryStore) GetHoldings(_ context.Context, userID uuid.UUID) ([]*models.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyPositions(m.positions[userID]), nil
}

func (m *MemoryStore) ListTransactions(_ context.Context, userID uuid.UUID, limit int) ([]*models.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	log := m.transactions[userID]
	n := len(log)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*models.Transaction, 0, n)
	for i := len(log) - 1; i >= 0 && len(out) < n; i-- {
		cp := *log[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemoryStore) ListWatchlist(_ context.Context, userID uuid.UUID) ([]*models.WatchlistEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.WatchlistEntry, 0, len(m.watchlist[userID]))
	for _, e := range m.watchlist[userID] {
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemoryStore) AddWatchlist(_ context.Context, userID uuid.UUID, symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.watchlist[userID] {
		if e.Symbol == symbol {
			return nil
		}
	}
	m.watchlist[userID] = append(m.watchlist[userID], &models.WatchlistEntry{
		UserID:  userID,
		Symbol:  symbol,
		AddedAt: m.now(),
	})
	return nil
}

func (m *MemoryStore) RemoveWatchlist(_ context.Context, userID uuid.UUID, symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.watchlist[userID]
	for i, e := range entries {
		if e.Symbol == symbol {
			m.watchlist[userID] = append(entries[:i:i], entries[i+1:]...)
			return nil
		}
	}
	return nil
}

// WithinTx stages the user's rows, runs fn against the copy and publishes
// the copy only when fn returns nil.
func (m *MemoryStore) WithinTx(ctx context.Context, userID uuid.UUID, fn func(Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{userID: userID, now: m.now}
	if user, ok := m.users[userID]; ok {
		cp := *user
		tx.user = &cp
	}
	tx.positions = copyPositions(m.positions[userID])

	if err := fn(tx); err != nil {
		return err
	}

	if tx.user != nil {
		m.users[userID] = tx.user
	}
	m.positions[userID] = tx.positions
	m.transactions[userID] = append(m.transactions[userID], tx.appended...)
	return nil
}

type memTx struct {
	userID    uuid.UUID
	user      *models.User
	positions []*models.Position
	appended  []*models.Transaction
	now       func() time.Time
}

func (t *memTx) LockUser(_ context.Context) (*models.User, error) {
	if t.user == nil {
		return nil, models.ErrUserNotFound
	}
	cp := *t.user
	return &cp, nil
}

func (t *memTx) GetPosition(_ context.Context, symbol string) (*models.Position, error) {
	for _, p := range t.positions {
		if p.Symbol == symbol {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (t *memTx) UpdateBalance(_ context.Context, balance decimal.Decimal) error {
	if t.user == nil {
		return models.ErrUserNotFound
	}
	if balance.IsNegative() {
		return persistErr("update balance", fmt.Errorf("balance %s violates non-negative constraint", balance))
	}
	t.user.Balance = balance
	return nil
}

func (t *memTx) SavePosition(_ context.Context, pos *models.Position) error {
	if err := pos.Validate(); err != nil {
		return err
	}
	for i, p := range t.positions {
		if p.Symbol == pos.Symbol {
			pos.AcquiredAt = p.AcquiredAt
			cp := *pos
			cp.UserID = t.userID
			t.positions[i] = &cp
			return nil
		}
	}
	pos.AcquiredAt = t.now()
	cp := *pos
	cp.UserID = t.userID
	t.positions = append(t.positions, &cp)
	return nil
}

func (t *memTx) DeletePosition(_ context.Context, symbol string) error {
	for i, p := range t.positions {
		if p.Symbol == symbol {
			t.positions = append(t.positions[:i:i], t.positions[i+1:]...)
			return nil
		}
	}
	return nil
}

func (t *memTx) InsertTransaction(_ context.Context, entry *models.Transaction) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	entry.ID = uuid.New()
	entry.UserID = t.userID
	entry.Timestamp = t.now()
	cp := *entry
	t.appended = append(t.appended, &cp)
	return nil
}

func copyPositions(in []*models.Position) []*models.Position {
	out := make([]*models.Position, 0, len(in))
	for _, p := range in {
		cp := *p
		out = append(out, &cp)
	}
	return out
}
