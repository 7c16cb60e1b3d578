// Package memory is an in-process TransactionStore for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/boddenberg/extrato-ingest-go/internal/domain"
)

// Store keeps transactions in a map keyed by ID.
type Store struct {
	mu           sync.RWMutex
	transactions map[string]domain.Transaction
	now          func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		transactions: make(map[string]domain.Transaction),
		now:          time.Now,
	}
}

// InsertTransaction stores a copy of tx.
func (s *Store) InsertTransaction(_ context.Context, tx *domain.Transaction) (*domain.Transaction, error) {
	out := *tx
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	out.CreatedAt = s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions[out.ID] = out
	return &out, nil
}

// ListByUser returns a user's transactions ordered by date then creation.
func (s *Store) ListByUser(_ context.Context, userID string) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Transaction
	for _, tx := range s.transactions {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Len returns the number of stored transactions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.transactions)
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error {
	return nil
}
