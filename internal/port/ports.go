// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the ingestion
// service from concrete persistence and caching implementations.
package port

import (
	"context"

	"github.com/boddenberg/extrato-ingest-go/internal/domain"
)

// TransactionStore persists confirmed transactions.
// Implemented by the memory, sqlite and Supabase adapters.
type TransactionStore interface {
	// InsertTransaction stores one row and returns it with ID and CreatedAt set.
	InsertTransaction(ctx context.Context, tx *domain.Transaction) (*domain.Transaction, error)
	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
	// Take removes the entry and returns it. Concurrent callers never
	// both get the same value.
	Take(key string) (T, bool)
}
