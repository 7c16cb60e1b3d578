package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boddenberg/extrato-ingest-go/internal/domain"
)

func TestTransaction_SignAndTypeAgree(t *testing.T) {
	expense := domain.NewTransaction("2026-02-07", "UBER", decimal.RequireFromString("-25.50"))
	assert.Equal(t, domain.TypeExpense, expense.Type)
	assert.True(t, expense.Abs().Equal(decimal.RequireFromString("25.50")))
	assert.True(t, expense.Signed().Equal(decimal.RequireFromString("-25.50")))

	income := domain.NewTransactionFromMagnitude("2026-02-07", "PIX", decimal.RequireFromString("-10"), domain.TypeIncome)
	assert.True(t, income.Amount.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, domain.TypeIncome, domain.TypeForAmount(income.Signed()))
}

func TestTransaction_MarshalJSON(t *testing.T) {
	tx := domain.NewTransaction("2026-02-07", "SUPERMERCADO EXTRA", decimal.RequireFromString("-150.00"))
	tx.Category = domain.CategoryFood

	raw, err := json.Marshal(tx)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"date": "2026-02-07",
		"description": "SUPERMERCADO EXTRA",
		"category": "Alimentacao",
		"amount": 150,
		"type": "despesa",
		"origin": "extrato"
	}`, string(raw))
}

func TestTransaction_UnmarshalLegacyNames(t *testing.T) {
	var tx domain.Transaction
	err := json.Unmarshal([]byte(`{"data":"2026-02-07","descricao":"Salario","valor":3500,"categoria":"Outros","tipo":"receita"}`), &tx)
	require.NoError(t, err)

	assert.Equal(t, "2026-02-07", tx.Date)
	assert.Equal(t, "Salario", tx.Description)
	assert.Equal(t, domain.CategoryOther, tx.Category)
	assert.Equal(t, domain.TypeIncome, tx.Type)
	assert.True(t, tx.Amount.Equal(decimal.NewFromInt(3500)))
}

func TestTransaction_UnmarshalSignedAmountWithoutType(t *testing.T) {
	var tx domain.Transaction
	require.NoError(t, json.Unmarshal([]byte(`{"date":"2026-02-07","desc":"UBER","value":-25.5}`), &tx))

	assert.Equal(t, "UBER", tx.Description)
	assert.Equal(t, domain.TypeExpense, tx.Type)
	assert.True(t, tx.Amount.Equal(decimal.RequireFromString("-25.5")))
}

func TestTransaction_UnmarshalMagnitudeWithType(t *testing.T) {
	var tx domain.Transaction
	require.NoError(t, json.Unmarshal([]byte(`{"date":"2026-02-07","description":"UBER","amount":25.5,"type":"despesa"}`), &tx))

	assert.True(t, tx.Signed().Equal(decimal.RequireFromString("-25.5")))
}

func TestUploadSummary_MarshalJSON(t *testing.T) {
	raw, err := json.Marshal(domain.UploadSummary{
		Total:    2,
		Income:   decimal.RequireFromString("3500.00"),
		Expenses: decimal.RequireFromString("150.00"),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"totalTransactions":2,"totalIncome":3500,"totalExpenses":150,"categories":[]}`, string(raw))
}

func TestCategory_IsValid(t *testing.T) {
	assert.True(t, domain.CategoryHealth.IsValid())
	assert.False(t, domain.Category("Viagem").IsValid())
}
