package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/boddenberg/extrato-ingest-go/internal/domain"
)

// TransactionStore implements port.TransactionStore on a PostgREST table.
type TransactionStore struct {
	client *Client
	table  string
}

// NewTransactionStore binds the client to the transactions table.
func NewTransactionStore(client *Client, table string) *TransactionStore {
	return &TransactionStore{client: client, table: table}
}

// transactionRow maps the table columns.
type transactionRow struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Date        string          `json:"data"`
	Description string          `json:"descricao"`
	Amount      decimal.Decimal `json:"valor"`
	Type        string          `json:"tipo"`
	Category    string          `json:"categoria"`
	Origin      string          `json:"origem"`
	SourceFile  string          `json:"arquivo_origem,omitempty"`
	CreatedAt   *time.Time      `json:"created_at,omitempty"`
}

// InsertTransaction stores one row. The ID is generated client-side so a
// retried insert that already landed shows up as a conflict, not a duplicate.
func (s *TransactionStore) InsertTransaction(ctx context.Context, tx *domain.Transaction) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Supabase.InsertTransaction")
	defer span.End()

	out := *tx
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	span.SetAttributes(
		attribute.String("transaction.id", out.ID),
		attribute.String("user.id", out.UserID),
	)

	row := transactionRow{
		ID:          out.ID,
		UserID:      out.UserID,
		Date:        out.Date,
		Description: out.Description,
		Amount:      out.Signed(),
		Type:        string(out.Type),
		Category:    string(out.Category),
		Origin:      string(out.Origin),
		SourceFile:  out.SourceFile,
	}

	err := s.client.execute(ctx, func() error {
		body, err := s.client.doRequest(ctx, http.MethodPost, s.table, row, "return=representation")
		if err != nil {
			var statusErr *StatusError
			if errors.As(err, &statusErr) && statusErr.Status == http.StatusConflict {
				// an earlier attempt already stored this id
				return nil
			}
			return err
		}

		var stored []transactionRow
		if len(body) > 0 && json.Unmarshal(body, &stored) == nil && len(stored) > 0 && stored[0].CreatedAt != nil {
			out.CreatedAt = *stored[0].CreatedAt
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &domain.ErrCircuitOpen{Service: "supabase/transactions"}
		}
		return nil, &domain.ErrExternalService{Service: "supabase/transactions", Err: err}
	}

	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now().UTC()
	}
	return &out, nil
}

// Ping checks that the table is reachable with the configured keys.
func (s *TransactionStore) Ping(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Supabase.Ping")
	defer span.End()

	_, err := s.client.doRequest(ctx, http.MethodGet, fmt.Sprintf("%s?select=id&limit=1", s.table), nil, "")
	if err != nil {
		span.RecordError(err)
		return &domain.ErrExternalService{Service: "supabase/transactions", Err: err}
	}
	return nil
}
