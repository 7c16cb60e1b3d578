package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/boddenberg/extrato-ingest-go/internal/domain"
	"github.com/boddenberg/extrato-ingest-go/internal/infra/cache"
	"github.com/boddenberg/extrato-ingest-go/internal/infra/observability"
	"github.com/boddenberg/extrato-ingest-go/internal/ingest"
	"github.com/boddenberg/extrato-ingest-go/internal/service"
)

// --- Fakes ---

type fakeStore struct {
	mu       sync.Mutex
	inserted []domain.Transaction
	failOn   string
	err      error
}

func (f *fakeStore) InsertTransaction(_ context.Context, tx *domain.Transaction) (*domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil && (f.failOn == "" || f.failOn == tx.Description) {
		return nil, f.err
	}
	out := *tx
	out.ID = "id-" + tx.Description
	f.inserted = append(f.inserted, out)
	return &out, nil
}

func (f *fakeStore) Ping(context.Context) error { return nil }

type blockingParser struct {
	release chan struct{}
}

func (p *blockingParser) Parse([]byte) (*ingest.Result, error) {
	<-p.release
	return &ingest.Result{}, nil
}

type panickingParser struct{}

func (panickingParser) Parse([]byte) (*ingest.Result, error) {
	panic("boom")
}

// --- Helpers ---

const statementCSV = "Data;Descrição;Valor\n07/02/2026;SUPERMERCADO EXTRA;-150,00\n05/02/2026;Salario;3500,00\n"

type testEnv struct {
	svc      *service.Ingestion
	store    *fakeStore
	metrics  *observability.Metrics
	registry *ingest.Registry
}

func newTestEnv(t *testing.T, cfg service.IngestionConfig) *testEnv {
	t.Helper()
	registry := ingest.NewRegistry(ingest.Options{
		Now: func() time.Time { return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC) },
	})
	previews := cache.New[*domain.Preview](time.Minute, cache.WithCleanupInterval(0))
	t.Cleanup(previews.Close)

	env := &testEnv{store: &fakeStore{}, metrics: observability.NewMetrics(), registry: registry}
	env.svc = service.NewIngestion(
		registry,
		ingest.NewDefaultCategorizer(),
		env.store,
		previews,
		cfg,
		env.metrics,
		zap.NewNop(),
	)
	return env
}

// --- Preview ---

func TestPreview_CSV(t *testing.T) {
	env := newTestEnv(t, service.IngestionConfig{})

	p, err := env.svc.Preview(context.Background(), domain.NewRawUpload("extrato.csv", []byte(statementCSV)))
	require.NoError(t, err)

	assert.NotEmpty(t, p.ID)
	assert.Equal(t, domain.FormatCSV, p.Format)
	assert.Equal(t, "extrato.csv", p.Filename)
	require.Len(t, p.Transactions, 2)
	assert.Equal(t, 2, p.Summary.Total)
	assert.True(t, decimal.NewFromInt(3500).Equal(p.Summary.Income))
	assert.True(t, decimal.NewFromInt(150).Equal(p.Summary.Expenses))
	assert.Empty(t, env.store.inserted, "preview must not persist")

	cached, err := env.svc.GetPreview(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Same(t, p, cached)

	snap := env.metrics.Snapshot()
	assert.Equal(t, int64(1), snap.UploadsAccepted)
	assert.Equal(t, int64(2), snap.TransactionsParsed)
}

func TestPreview_RejectsBeforeParsing(t *testing.T) {
	tests := []struct {
		name   string
		upload domain.RawUpload
		target any
	}{
		{"unsupported extension", domain.NewRawUpload("extrato.pdf", []byte("%PDF-1.4")), new(*domain.ErrUnsupportedFormat)},
		{"no extension", domain.NewRawUpload("extrato", []byte("x")), new(*domain.ErrUnsupportedFormat)},
		{"too large", domain.RawUpload{Filename: "a.csv", Size: ingest.DefaultMaxUploadBytes + 1}, new(*domain.ErrFileTooLarge)},
		{"no transactions", domain.NewRawUpload("a.csv", []byte("Data;Descrição;Valor\n")), new(*domain.ErrNoTransactions)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, service.IngestionConfig{})
			_, err := env.svc.Preview(context.Background(), tt.upload)
			require.Error(t, err)
			assert.ErrorAs(t, err, tt.target)
			assert.True(t, domain.IsClientError(err))
			assert.Equal(t, int64(1), env.metrics.Snapshot().UploadsRejected)
		})
	}
}

func TestNewIngestion_DefaultsEachLimit(t *testing.T) {
	env := newTestEnv(t, service.IngestionConfig{Limits: ingest.Limits{MaxBytes: 2048}})
	assert.Equal(t, ingest.Limits{MaxBytes: 2048, MaxTransactions: ingest.DefaultMaxTransactions}, env.svc.Limits())

	env = newTestEnv(t, service.IngestionConfig{Limits: ingest.Limits{MaxTransactions: 3}})
	assert.Equal(t, ingest.Limits{MaxBytes: ingest.DefaultMaxUploadBytes, MaxTransactions: 3}, env.svc.Limits())
}

func TestPreview_TooManyTransactions(t *testing.T) {
	env := newTestEnv(t, service.IngestionConfig{Limits: ingest.Limits{MaxBytes: 1 << 20, MaxTransactions: 1}})

	_, err := env.svc.Preview(context.Background(), domain.NewRawUpload("extrato.csv", []byte(statementCSV)))
	var tooMany *domain.ErrTooManyTransactions
	require.ErrorAs(t, err, &tooMany)
	assert.Equal(t, 2, tooMany.Count)
}

func TestPreview_ParseTimeout(t *testing.T) {
	env := newTestEnv(t, service.IngestionConfig{ParseTimeout: 20 * time.Millisecond})
	parser := &blockingParser{release: make(chan struct{})}
	defer close(parser.release)
	env.registry.Register(domain.FormatCSV, parser)

	_, err := env.svc.Preview(context.Background(), domain.NewRawUpload("a.csv", []byte("x")))
	var processing *domain.ErrProcessing
	require.ErrorAs(t, err, &processing)
	assert.Equal(t, "parse", processing.Stage)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, domain.IsClientError(err))
	assert.Equal(t, int64(1), env.metrics.Snapshot().UploadsFailed)
}

func TestPreview_ParserPanicIsContained(t *testing.T) {
	env := newTestEnv(t, service.IngestionConfig{})
	env.registry.Register(domain.FormatCSV, panickingParser{})

	_, err := env.svc.Preview(context.Background(), domain.NewRawUpload("a.csv", []byte("x")))
	var processing *domain.ErrProcessing
	require.ErrorAs(t, err, &processing)
	assert.Contains(t, err.Error(), "boom")
}

func TestPreview_BulkheadReleasedAfterTimeout(t *testing.T) {
	env := newTestEnv(t, service.IngestionConfig{ParseTimeout: 20 * time.Millisecond, MaxConcurrentParses: 1})
	parser := &blockingParser{release: make(chan struct{})}
	env.registry.Register(domain.FormatTXT, parser)

	// Occupies the only slot until released.
	_, err := env.svc.ExtractText(context.Background(), "txt", "07/02/2026 UBER -10,00")
	require.Error(t, err)

	_, err = env.svc.Preview(context.Background(), domain.NewRawUpload("a.csv", []byte(statementCSV)))
	var processing *domain.ErrProcessing
	require.ErrorAs(t, err, &processing)
	assert.Equal(t, "queue", processing.Stage)

	close(parser.release)
	require.Eventually(t, func() bool {
		_, err := env.svc.Preview(context.Background(), domain.NewRawUpload("a.csv", []byte(statementCSV)))
		return err == nil
	}, time.Second, 10*time.Millisecond)
}

func TestGetPreview_Unknown(t *testing.T) {
	env := newTestEnv(t, service.IngestionConfig{})

	_, err := env.svc.GetPreview(context.Background(), "missing")
	var notFound *domain.ErrNotFound
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "preview", notFound.Resource)
}

// --- Extract ---

func TestExtract_TextFile(t *testing.T) {
	env := newTestEnv(t, service.IngestionConfig{})
	text := "EXTRATO DE CONTA\nSaldo anterior 1.000,00\n07/02/2026 UBER TRIP -23,90\n08/02/2026 PIX RECEBIDO 500,00\n"

	ext, err := env.svc.Extract(context.Background(), domain.NewRawUpload("extrato.txt", []byte(text)))
	require.NoError(t, err)
	assert.Equal(t, domain.FormatTXT, ext.Format)
	assert.Equal(t, 2, ext.TotalLines)
	require.Len(t, ext.Transactions, 2)
	assert.Equal(t, domain.CategoryTransport, ext.Transactions[0].Category)
	assert.Equal(t, domain.TypeIncome, ext.Transactions[1].Type)
}

func TestExtract_QFXNotAllowed(t *testing.T) {
	env := newTestEnv(t, service.IngestionConfig{})

	_, err := env.svc.Extract(context.Background(), domain.NewRawUpload("extrato.qfx", []byte("<OFX>")))
	var unsupported *domain.ErrUnsupportedFormat
	require.ErrorAs(t, err, &unsupported)
}

func TestExtractText_PDFLabelUsesFreeText(t *testing.T) {
	env := newTestEnv(t, service.IngestionConfig{})

	ext, err := env.svc.ExtractText(context.Background(), "PDF", "07/02/2026 UBER TRIP -23,90")
	require.NoError(t, err)
	assert.Equal(t, domain.FormatPDF, ext.Format)
	require.Len(t, ext.Transactions, 1)
	assert.True(t, decimal.RequireFromString("-23.90").Equal(ext.Transactions[0].Amount))
}

func TestExtractText_EmptyResultIsNotAnError(t *testing.T) {
	env := newTestEnv(t, service.IngestionConfig{})

	ext, err := env.svc.ExtractText(context.Background(), "txt", "nada aqui")
	require.NoError(t, err)
	assert.Empty(t, ext.Transactions)
}

func TestExtractText_Validation(t *testing.T) {
	env := newTestEnv(t, service.IngestionConfig{})

	_, err := env.svc.ExtractText(context.Background(), "", "x")
	var validation *domain.ErrValidation
	require.ErrorAs(t, err, &validation)

	_, err = env.svc.ExtractText(context.Background(), "txt", "   ")
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "texto", validation.Field)

	_, err = env.svc.ExtractText(context.Background(), "docx", "x")
	var unsupported *domain.ErrUnsupportedFormat
	require.ErrorAs(t, err, &unsupported)
}

// --- Confirm ---

func TestConfirm_PersistsAndStamps(t *testing.T) {
	env := newTestEnv(t, service.IngestionConfig{})
	txs := []domain.Transaction{
		domain.NewTransaction("07/02/2026", "  UBER TRIP ", decimal.RequireFromString("-23.90")),
		domain.NewTransactionFromMagnitude("2026-02-05", "Salario", decimal.NewFromInt(3500), domain.TypeIncome),
	}
	txs[1].Category = domain.CategoryOther
	txs[0].ID = "client-supplied"

	res, err := env.svc.Confirm(context.Background(), "user-1", txs, "extrato.csv")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Saved)
	assert.Zero(t, res.Failed)

	require.Len(t, env.store.inserted, 2)
	first := env.store.inserted[0]
	assert.Equal(t, "user-1", first.UserID)
	assert.Equal(t, "2026-02-07", first.Date)
	assert.Equal(t, "UBER TRIP", first.Description)
	assert.Equal(t, domain.CategoryTransport, first.Category)
	assert.Equal(t, domain.OriginExtrato, first.Origin)
	assert.Equal(t, "extrato.csv", first.SourceFile)
	assert.Equal(t, "id-UBER TRIP", first.ID)
	assert.Equal(t, domain.CategoryOther, env.store.inserted[1].Category)

	assert.Equal(t, int64(2), env.metrics.Snapshot().TransactionsPersisted)
}

func TestConfirm_PartialFailure(t *testing.T) {
	env := newTestEnv(t, service.IngestionConfig{})
	env.store.err = &domain.ErrExternalService{Service: "supabase", Err: errors.New("down")}
	env.store.failOn = "B"

	txs := []domain.Transaction{
		domain.NewTransaction("2026-02-07", "A", decimal.NewFromInt(-1)),
		domain.NewTransaction("2026-02-07", "B", decimal.NewFromInt(-2)),
		domain.NewTransaction("2026-02-07", "", decimal.NewFromInt(-3)),
	}

	res, err := env.svc.Confirm(context.Background(), "user-1", txs, "")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Saved)
	assert.Equal(t, 2, res.Failed)
}

func TestConfirm_NothingSaved(t *testing.T) {
	t.Run("store down", func(t *testing.T) {
		env := newTestEnv(t, service.IngestionConfig{})
		env.store.err = &domain.ErrCircuitOpen{Service: "supabase"}

		txs := []domain.Transaction{domain.NewTransaction("2026-02-07", "A", decimal.NewFromInt(-1))}
		_, err := env.svc.Confirm(context.Background(), "user-1", txs, "")
		var open *domain.ErrCircuitOpen
		require.ErrorAs(t, err, &open)
	})

	t.Run("all rows invalid", func(t *testing.T) {
		env := newTestEnv(t, service.IngestionConfig{})

		txs := []domain.Transaction{domain.NewTransaction("2026-02-07", "A", decimal.Zero)}
		_, err := env.svc.Confirm(context.Background(), "user-1", txs, "")
		var validation *domain.ErrValidation
		require.ErrorAs(t, err, &validation)
		assert.Empty(t, env.store.inserted)
	})
}

func TestConfirm_RejectsBadRequests(t *testing.T) {
	env := newTestEnv(t, service.IngestionConfig{Limits: ingest.Limits{MaxBytes: 1 << 20, MaxTransactions: 2}})
	one := []domain.Transaction{domain.NewTransaction("2026-02-07", "A", decimal.NewFromInt(-1))}

	_, err := env.svc.Confirm(context.Background(), "", one, "")
	var unauthorized *domain.ErrUnauthorized
	require.ErrorAs(t, err, &unauthorized)

	_, err = env.svc.Confirm(context.Background(), "u", nil, "")
	var validation *domain.ErrValidation
	require.ErrorAs(t, err, &validation)

	three := append(append(append([]domain.Transaction{}, one...), one...), one...)
	_, err = env.svc.Confirm(context.Background(), "u", three, "")
	var tooMany *domain.ErrTooManyTransactions
	require.ErrorAs(t, err, &tooMany)
}

func TestConfirm_CancelledContext(t *testing.T) {
	env := newTestEnv(t, service.IngestionConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	txs := []domain.Transaction{domain.NewTransaction("2026-02-07", "A", decimal.NewFromInt(-1))}
	_, err := env.svc.Confirm(ctx, "u", txs, "")
	require.ErrorIs(t, err, context.Canceled)
}

func TestConfirmPreview_EvictsOnSuccess(t *testing.T) {
	env := newTestEnv(t, service.IngestionConfig{})
	ctx := context.Background()

	p, err := env.svc.Preview(ctx, domain.NewRawUpload("extrato.csv", []byte(statementCSV)))
	require.NoError(t, err)

	res, err := env.svc.ConfirmPreview(ctx, "user-1", p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Saved)
	for _, tx := range env.store.inserted {
		assert.Equal(t, "extrato.csv", tx.SourceFile)
		assert.False(t, strings.HasPrefix(tx.Date, "07/"))
	}

	_, err = env.svc.ConfirmPreview(ctx, "user-1", p.ID)
	var notFound *domain.ErrNotFound
	require.ErrorAs(t, err, &notFound)
}

func TestConfirmPreview_ConcurrentConfirmSavesOnce(t *testing.T) {
	env := newTestEnv(t, service.IngestionConfig{})
	ctx := context.Background()

	p, err := env.svc.Preview(ctx, domain.NewRawUpload("extrato.csv", []byte(statementCSV)))
	require.NoError(t, err)

	const callers = 8
	results := make([]*domain.ConfirmResult, callers)
	errs := make([]error, callers)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = env.svc.ConfirmPreview(ctx, "user-1", p.ID)
		}(i)
	}
	close(start)
	wg.Wait()

	saved, notFound := 0, 0
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			var nf *domain.ErrNotFound
			require.ErrorAs(t, errs[i], &nf)
			notFound++
			continue
		}
		saved += results[i].Saved
	}
	assert.Equal(t, len(p.Transactions), saved)
	assert.Equal(t, callers-1, notFound)
	assert.Len(t, env.store.inserted, len(p.Transactions))
}

func TestConfirmPreview_KeepsPreviewWhenNothingSaved(t *testing.T) {
	env := newTestEnv(t, service.IngestionConfig{})
	ctx := context.Background()

	p, err := env.svc.Preview(ctx, domain.NewRawUpload("extrato.csv", []byte(statementCSV)))
	require.NoError(t, err)

	env.store.err = errors.New("store down")
	_, err = env.svc.ConfirmPreview(ctx, "user-1", p.ID)
	require.Error(t, err)

	env.store.err = nil
	res, err := env.svc.ConfirmPreview(ctx, "user-1", p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Saved)
}
