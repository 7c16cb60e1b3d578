package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Canonical transaction
// ============================================================

// TxType tells whether a transaction is money out (despesa) or in (receita).
type TxType string

const (
	TypeExpense TxType = "despesa"
	TypeIncome  TxType = "receita"
)

// TypeForAmount derives the type from the sign of a signed amount.
// Zero is treated as income, matching the "non-negative ⇒ receita" rule.
func TypeForAmount(amount decimal.Decimal) TxType {
	if amount.IsNegative() {
		return TypeExpense
	}
	return TypeIncome
}

// Origin is the provenance tag of a persisted transaction.
type Origin string

const (
	OriginManual  Origin = "manual"
	OriginIAChat  Origin = "ia_chat"
	OriginExtrato Origin = "extrato"
)

// Category is one label of the closed category set.
type Category string

const (
	CategoryFood          Category = "Alimentacao"
	CategoryTransport     Category = "Transporte"
	CategoryHealth        Category = "Saude"
	CategorySubscriptions Category = "Assinaturas"
	CategoryLeisure       Category = "Lazer"
	CategoryHousing       Category = "Moradia"
	CategoryEducation     Category = "Educacao"
	CategoryShopping      Category = "Compras"
	CategoryOther         Category = "Outros"
)

// Categories lists every label in display order, fallback last.
var Categories = []Category{
	CategoryFood,
	CategoryTransport,
	CategoryHealth,
	CategorySubscriptions,
	CategoryLeisure,
	CategoryHousing,
	CategoryEducation,
	CategoryShopping,
	CategoryOther,
}

// IsValid reports whether c belongs to the closed category set.
func (c Category) IsValid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// DateLayout is the only date representation a canonical transaction carries.
const DateLayout = "2006-01-02"

// Transaction is the normalized representation of one statement line.
//
// Amount is always signed (negative = expense) and Type always agrees with
// the sign. Parsers that only know a magnitude and a type build the value
// with NewTransactionFromMagnitude so both views stay consistent.
type Transaction struct {
	ID          string
	UserID      string
	Date        string // YYYY-MM-DD
	Description string
	Amount      decimal.Decimal
	Type        TxType
	Category    Category
	Origin      Origin
	SourceFile  string
	CreatedAt   time.Time
}

// NewTransaction builds a statement-derived transaction from a signed amount.
func NewTransaction(date, description string, amount decimal.Decimal) Transaction {
	return Transaction{
		Date:        date,
		Description: description,
		Amount:      amount,
		Type:        TypeForAmount(amount),
		Origin:      OriginExtrato,
	}
}

// NewTransactionFromMagnitude builds a transaction from an unsigned value and
// an explicit type. The sign of value is ignored.
func NewTransactionFromMagnitude(date, description string, value decimal.Decimal, txType TxType) Transaction {
	amount := value.Abs()
	if txType == TypeExpense {
		amount = amount.Neg()
	}
	return Transaction{
		Date:        date,
		Description: description,
		Amount:      amount,
		Type:        txType,
		Origin:      OriginExtrato,
	}
}

// Signed returns the amount with the sign carrying the type.
func (t Transaction) Signed() decimal.Decimal {
	if t.Type == TypeExpense {
		return t.Amount.Abs().Neg()
	}
	return t.Amount.Abs()
}

// Abs returns the unsigned amount.
func (t Transaction) Abs() decimal.Decimal {
	return t.Amount.Abs()
}

// IsExpense reports whether the transaction takes money out.
func (t Transaction) IsExpense() bool {
	return t.Type == TypeExpense
}

// ============================================================
// Uploads and derived aggregates
// ============================================================

// Format is a statement file format.
type Format string

const (
	FormatCSV         Format = "csv"
	FormatOFX         Format = "ofx"
	FormatQFX         Format = "qfx"
	FormatPDF         Format = "pdf"
	FormatTXT         Format = "txt"
	FormatUnsupported Format = ""
)

// RawUpload is the single shape an uploaded statement takes once it crosses
// the HTTP edge.
type RawUpload struct {
	Filename string
	Size     int64
	Content  []byte
}

// NewRawUpload wraps in-memory content, taking the size from the content.
func NewRawUpload(filename string, content []byte) RawUpload {
	return RawUpload{Filename: filename, Size: int64(len(content)), Content: content}
}

// UploadSummary aggregates a batch. It is recomputed on demand, never stored.
type UploadSummary struct {
	Total      int
	Income     decimal.Decimal
	Expenses   decimal.Decimal
	Categories []Category
}

// Preview is the result of parsing an upload without persisting it.
type Preview struct {
	ID           string
	Filename     string
	Format       Format
	Transactions []Transaction
	Summary      UploadSummary
	CreatedAt    time.Time
}

// Extraction is the result of the secondary extraction path: how many
// candidate lines were seen and which transactions survived.
type Extraction struct {
	Format       Format
	TotalLines   int
	Transactions []Transaction
}

// ConfirmResult reports how many rows a confirm call persisted.
type ConfirmResult struct {
	Saved  int
	Failed int
}
