// Package sqlite is an embedded TransactionStore for single-node
// deployments and local development.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/extrato-ingest-go/internal/domain"
)

//go:embed schema.sql
var schema string

var tracer = otel.Tracer("sqlite")

// Store implements port.TransactionStore on SQLite.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens or creates the database at path and applies the schema.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// sqlite serializes writers anyway; one connection also keeps a
	// :memory: database shared across calls
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("execute schema: %w", err)
	}

	logger.Info("sqlite store ready", zap.String("path", path))
	return &Store{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertTransaction stores one row.
func (s *Store) InsertTransaction(ctx context.Context, tx *domain.Transaction) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "SQLite.InsertTransaction")
	defer span.End()

	out := *tx
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	out.CreatedAt = time.Now().UTC()
	span.SetAttributes(attribute.String("transaction.id", out.ID))

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transacoes (
			id, user_id, data, descricao, valor, tipo, categoria, origem, arquivo_origem, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, out.ID, out.UserID, out.Date, out.Description, out.Signed().String(), string(out.Type),
		string(out.Category), string(out.Origin), out.SourceFile, out.CreatedAt)
	if err != nil {
		span.RecordError(err)
		return nil, &domain.ErrExternalService{Service: "sqlite/transactions", Err: fmt.Errorf("insert transaction: %w", err)}
	}
	return &out, nil
}

// ListByUser returns a user's transactions, oldest first.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, data, descricao, valor, tipo, categoria, origem, arquivo_origem, created_at
		FROM transacoes
		WHERE user_id = ?
		ORDER BY data, created_at, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		var (
			t                           domain.Transaction
			amount, txType, cat, origin string
		)
		if err := rows.Scan(&t.ID, &t.UserID, &t.Date, &t.Description, &amount, &txType,
			&cat, &origin, &t.SourceFile, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("scan transaction %s amount: %w", t.ID, err)
		}
		t.Amount = d
		t.Type = domain.TxType(txType)
		t.Category = domain.Category(cat)
		t.Origin = domain.Origin(origin)
		out = append(out, t)
	}
	return out, rows.Err()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
