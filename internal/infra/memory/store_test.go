package memory_test

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boddenberg/extrato-ingest-go/internal/domain"
	"github.com/boddenberg/extrato-ingest-go/internal/infra/memory"
)

func TestStore_InsertAssignsIDAndCopies(t *testing.T) {
	s := memory.NewStore()
	tx := domain.NewTransaction("2026-02-07", "UBER", decimal.NewFromInt(-10))
	tx.UserID = "u1"

	stored, err := s.InsertTransaction(context.Background(), &tx)
	require.NoError(t, err)
	assert.NotEmpty(t, stored.ID)
	assert.Empty(t, tx.ID)

	list, err := s.ListByUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, stored.ID, list[0].ID)
}

func TestStore_ConcurrentInserts(t *testing.T) {
	s := memory.NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tx := domain.NewTransaction("2026-02-07", "X", decimal.NewFromInt(1))
			_, _ = s.InsertTransaction(context.Background(), &tx)
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, s.Len())
	assert.NoError(t, s.Ping(context.Background()))
}
