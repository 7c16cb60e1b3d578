package domain

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// transactionJSON is the canonical wire shape of a transaction.
// amount is the magnitude; type carries the direction.
type transactionJSON struct {
	ID          string   `json:"id,omitempty"`
	Date        string   `json:"date"`
	Description string   `json:"description"`
	Category    Category `json:"category"`
	Amount      float64  `json:"amount"`
	Type        TxType   `json:"type"`
	Origin      Origin   `json:"origin,omitempty"`
}

// MarshalJSON writes the canonical wire shape.
func (t Transaction) MarshalJSON() ([]byte, error) {
	return json.Marshal(transactionJSON{
		ID:          t.ID,
		Date:        t.Date,
		Description: t.Description,
		Category:    t.Category,
		Amount:      t.Abs().InexactFloat64(),
		Type:        t.Type,
		Origin:      t.Origin,
	})
}

// transactionInput accepts the canonical names plus the legacy Portuguese
// and short aliases older clients still send.
type transactionInput struct {
	ID          string           `json:"id"`
	Date        string           `json:"date"`
	Data        string           `json:"data"`
	Description string           `json:"description"`
	Desc        string           `json:"desc"`
	Descricao   string           `json:"descricao"`
	Category    string           `json:"category"`
	Categoria   string           `json:"categoria"`
	Amount      *decimal.Decimal `json:"amount"`
	Value       *decimal.Decimal `json:"value"`
	Valor       *decimal.Decimal `json:"valor"`
	Type        string           `json:"type"`
	Tipo        string           `json:"tipo"`
	Origin      string           `json:"origin"`
}

// UnmarshalJSON reads either the canonical shape or a legacy one.
// When a type is present the amount is read as a magnitude, otherwise its
// sign decides the type.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	var in transactionInput
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	amount := decimal.Zero
	for _, candidate := range []*decimal.Decimal{in.Amount, in.Value, in.Valor} {
		if candidate != nil {
			amount = *candidate
			break
		}
	}

	date := firstNonEmpty(in.Date, in.Data)
	desc := strings.TrimSpace(firstNonEmpty(in.Description, in.Desc, in.Descricao))

	var tx Transaction
	switch TxType(strings.ToLower(firstNonEmpty(in.Type, in.Tipo))) {
	case TypeExpense:
		tx = NewTransactionFromMagnitude(date, desc, amount, TypeExpense)
	case TypeIncome:
		tx = NewTransactionFromMagnitude(date, desc, amount, TypeIncome)
	default:
		tx = NewTransaction(date, desc, amount)
	}

	tx.ID = in.ID
	tx.Category = Category(firstNonEmpty(in.Category, in.Categoria))
	tx.Origin = Origin(in.Origin)
	*t = tx
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// uploadSummaryJSON is the wire shape of an UploadSummary.
type uploadSummaryJSON struct {
	Total      int        `json:"totalTransactions"`
	Income     float64    `json:"totalIncome"`
	Expenses   float64    `json:"totalExpenses"`
	Categories []Category `json:"categories"`
}

// MarshalJSON writes the summary with numeric totals.
func (s UploadSummary) MarshalJSON() ([]byte, error) {
	categories := s.Categories
	if categories == nil {
		categories = []Category{}
	}
	return json.Marshal(uploadSummaryJSON{
		Total:      s.Total,
		Income:     s.Income.InexactFloat64(),
		Expenses:   s.Expenses.InexactFloat64(),
		Categories: categories,
	})
}
