package ingest

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/boddenberg/extrato-ingest-go/internal/domain"
)

// Default bounds.
const (
	DefaultMaxUploadBytes  int64 = 10 << 20 // 10 MiB
	DefaultMaxTransactions       = 500
)

// Limits are the batch bounds applied to every upload.
type Limits struct {
	MaxBytes        int64
	MaxTransactions int
}

// DefaultLimits returns the standard 10 MiB / 500 rows bounds.
func DefaultLimits() Limits {
	return Limits{MaxBytes: DefaultMaxUploadBytes, MaxTransactions: DefaultMaxTransactions}
}

// CheckSize rejects an upload above MaxBytes before anything is parsed.
func (l Limits) CheckSize(size int64) error {
	if l.MaxBytes > 0 && size > l.MaxBytes {
		return &domain.ErrFileTooLarge{Size: size, Limit: l.MaxBytes}
	}
	return nil
}

// CheckCount rejects a batch above MaxTransactions.
func (l Limits) CheckCount(count int) error {
	if l.MaxTransactions > 0 && count > l.MaxTransactions {
		return &domain.ErrTooManyTransactions{Count: count, Limit: l.MaxTransactions}
	}
	return nil
}

// CheckBatch applies the post-parse rules to a file upload: an empty
// result is an error, and so is one above the row ceiling.
func (l Limits) CheckBatch(format domain.Format, txs []domain.Transaction) error {
	if len(txs) == 0 {
		return &domain.ErrNoTransactions{Format: format}
	}
	return l.CheckCount(len(txs))
}

// ValidateTransaction checks one row arriving for persistence. It is the
// same per-record rule the parsers apply, plus a date check since confirm
// rows come from the client.
func ValidateTransaction(tx domain.Transaction) error {
	if strings.TrimSpace(tx.Description) == "" {
		return &domain.ErrValidation{Field: "description", Message: "descrição é obrigatória"}
	}
	if tx.Amount.IsZero() {
		return &domain.ErrValidation{Field: "amount", Message: "valor deve ser diferente de zero"}
	}
	if tx.Date == "" {
		return &domain.ErrValidation{Field: "date", Message: "data é obrigatória"}
	}
	if _, err := time.Parse(domain.DateLayout, tx.Date); err != nil {
		return &domain.ErrValidation{Field: "date", Message: "data deve estar no formato AAAA-MM-DD"}
	}
	if tx.Type != domain.TypeExpense && tx.Type != domain.TypeIncome {
		return &domain.ErrValidation{Field: "type", Message: "tipo deve ser despesa ou receita"}
	}
	return nil
}

// Summarize aggregates a batch. Income and expenses are magnitudes;
// categories appear once each in first-seen order.
func Summarize(txs []domain.Transaction) domain.UploadSummary {
	s := domain.UploadSummary{
		Total:      len(txs),
		Income:     decimal.Zero,
		Expenses:   decimal.Zero,
		Categories: []domain.Category{},
	}
	seen := make(map[domain.Category]bool)
	for _, tx := range txs {
		if tx.IsExpense() {
			s.Expenses = s.Expenses.Add(tx.Abs())
		} else {
			s.Income = s.Income.Add(tx.Abs())
		}
		if !seen[tx.Category] {
			seen[tx.Category] = true
			s.Categories = append(s.Categories, tx.Category)
		}
	}
	return s
}
