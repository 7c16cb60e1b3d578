package ingest_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boddenberg/extrato-ingest-go/internal/domain"
	"github.com/boddenberg/extrato-ingest-go/internal/ingest"
)

func TestLimits_CheckSize(t *testing.T) {
	l := ingest.DefaultLimits()

	require.NoError(t, l.CheckSize(10<<20))

	err := l.CheckSize(10<<20 + 1)
	var tooLarge *domain.ErrFileTooLarge
	require.ErrorAs(t, err, &tooLarge)
	assert.Equal(t, int64(10<<20+1), tooLarge.Size)
	assert.Contains(t, err.Error(), "10485761")
}

func TestLimits_CheckBatch(t *testing.T) {
	l := ingest.DefaultLimits()
	one := domain.NewTransaction("2026-02-07", "X", decimal.NewFromInt(1))

	err := l.CheckBatch(domain.FormatCSV, nil)
	var none *domain.ErrNoTransactions
	require.ErrorAs(t, err, &none)
	assert.NotContains(t, err.Error(), "manualmente")

	err = l.CheckBatch(domain.FormatPDF, nil)
	require.ErrorAs(t, err, &none)
	assert.Contains(t, err.Error(), "manualmente")

	batch := make([]domain.Transaction, 500)
	for i := range batch {
		batch[i] = one
	}
	require.NoError(t, l.CheckBatch(domain.FormatCSV, batch))

	err = l.CheckBatch(domain.FormatCSV, append(batch, one))
	var tooMany *domain.ErrTooManyTransactions
	require.ErrorAs(t, err, &tooMany)
	assert.Equal(t, 501, tooMany.Count)
	assert.Contains(t, err.Error(), "501")
}

func TestRegistry_BoundaryOf500Rows(t *testing.T) {
	r := ingest.NewRegistry(ingest.Options{Now: fixedClock})
	l := ingest.DefaultLimits()

	build := func(n int) []byte {
		var b strings.Builder
		b.WriteString("Data;Descrição;Valor\n")
		for i := 0; i < n; i++ {
			fmt.Fprintf(&b, "07/02/2026;COMPRA %d;-1,00\n", i)
		}
		return []byte(b.String())
	}

	res, err := r.Parse(domain.FormatCSV, build(500))
	require.NoError(t, err)
	require.NoError(t, l.CheckBatch(domain.FormatCSV, res.Transactions))

	res, err = r.Parse(domain.FormatCSV, build(501))
	require.NoError(t, err)
	var tooMany *domain.ErrTooManyTransactions
	require.ErrorAs(t, l.CheckBatch(domain.FormatCSV, res.Transactions), &tooMany)
}

func TestValidateTransaction(t *testing.T) {
	ok := domain.NewTransaction("2026-02-07", "UBER", decimal.NewFromFloat(-25.5))
	require.NoError(t, ingest.ValidateTransaction(ok))

	cases := map[string]struct {
		tx    domain.Transaction
		field string
	}{
		"empty description": {domain.NewTransaction("2026-02-07", " ", decimal.NewFromInt(1)), "description"},
		"zero amount":       {domain.NewTransaction("2026-02-07", "X", decimal.Zero), "amount"},
		"missing date":      {domain.NewTransaction("", "X", decimal.NewFromInt(1)), "date"},
		"bad date":          {domain.NewTransaction("07/02/2026", "X", decimal.NewFromInt(1)), "date"},
		"bad type":          {domain.Transaction{Date: "2026-02-07", Description: "X", Amount: decimal.NewFromInt(1), Type: "outro"}, "type"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			var validation *domain.ErrValidation
			require.ErrorAs(t, ingest.ValidateTransaction(tc.tx), &validation)
			assert.Equal(t, tc.field, validation.Field)
		})
	}
}

func TestSummarize(t *testing.T) {
	txs := []domain.Transaction{
		withCategory(domain.NewTransaction("2026-02-07", "SUPERMERCADO", decimal.RequireFromString("-150.00")), domain.CategoryFood),
		withCategory(domain.NewTransaction("2026-02-07", "Salario", decimal.RequireFromString("3500.00")), domain.CategoryOther),
		withCategory(domain.NewTransactionFromMagnitude("2026-02-08", "PADARIA", decimal.RequireFromString("10.10"), domain.TypeExpense), domain.CategoryFood),
	}

	s := ingest.Summarize(txs)
	assert.Equal(t, 3, s.Total)
	requireAmount(t, "3500", s.Income)
	requireAmount(t, "160.10", s.Expenses)
	assert.Equal(t, []domain.Category{domain.CategoryFood, domain.CategoryOther}, s.Categories)
}

func TestSummarize_Empty(t *testing.T) {
	s := ingest.Summarize(nil)
	assert.Zero(t, s.Total)
	assert.True(t, s.Income.IsZero())
	assert.NotNil(t, s.Categories)
}

func withCategory(tx domain.Transaction, c domain.Category) domain.Transaction {
	tx.Category = c
	return tx
}
