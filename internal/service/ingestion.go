package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/boddenberg/extrato-ingest-go/internal/domain"
	"github.com/boddenberg/extrato-ingest-go/internal/infra/observability"
	"github.com/boddenberg/extrato-ingest-go/internal/infra/resilience"
	"github.com/boddenberg/extrato-ingest-go/internal/ingest"
	"github.com/boddenberg/extrato-ingest-go/internal/port"
)

var tracer = otel.Tracer("service/ingestion")

// IngestionConfig holds the knobs of the orchestrator.
type IngestionConfig struct {
	Limits              ingest.Limits
	ParseTimeout        time.Duration
	MaxConcurrentParses int
}

// Ingestion orchestrates detection, parsing, validation, previews and
// persistence of bank statements.
type Ingestion struct {
	registry     *ingest.Registry
	categorizer  *ingest.Categorizer
	store        port.TransactionStore
	previews     port.Cache[*domain.Preview]
	bulkhead     *resilience.Bulkhead
	limits       ingest.Limits
	parseTimeout time.Duration
	metrics      *observability.Metrics
	logger       *zap.Logger
	now          func() time.Time
}

// NewIngestion creates the ingestion service with all dependencies injected.
func NewIngestion(
	registry *ingest.Registry,
	categorizer *ingest.Categorizer,
	store port.TransactionStore,
	previews port.Cache[*domain.Preview],
	cfg IngestionConfig,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Ingestion {
	if cfg.ParseTimeout <= 0 {
		cfg.ParseTimeout = 15 * time.Second
	}
	if cfg.MaxConcurrentParses <= 0 {
		cfg.MaxConcurrentParses = 8
	}
	if cfg.Limits.MaxBytes <= 0 {
		cfg.Limits.MaxBytes = ingest.DefaultMaxUploadBytes
	}
	if cfg.Limits.MaxTransactions <= 0 {
		cfg.Limits.MaxTransactions = ingest.DefaultMaxTransactions
	}
	return &Ingestion{
		registry:     registry,
		categorizer:  categorizer,
		store:        store,
		previews:     previews,
		bulkhead:     resilience.NewBulkhead(cfg.MaxConcurrentParses),
		limits:       cfg.Limits,
		parseTimeout: cfg.ParseTimeout,
		metrics:      metrics,
		logger:       logger,
		now:          time.Now,
	}
}

// Limits exposes the configured bounds, e.g. for the HTTP body cap.
func (s *Ingestion) Limits() ingest.Limits {
	return s.limits
}

// ============================================================
// Preview — POST /api/upload-extrato
// ============================================================

// Preview parses an upload and caches the result without persisting it.
func (s *Ingestion) Preview(ctx context.Context, upload domain.RawUpload) (*domain.Preview, error) {
	ctx, span := tracer.Start(ctx, "Ingestion.Preview")
	defer span.End()
	span.SetAttributes(
		attribute.String("upload.filename", upload.Filename),
		attribute.Int64("upload.size", upload.Size),
	)

	format, err := s.admit(upload, ingest.UploadFormats)
	if err != nil {
		return nil, s.fail(span, "upload", format, err)
	}

	res, err := s.parse(ctx, format, upload.Content)
	if err != nil {
		return nil, s.fail(span, "upload", format, err)
	}
	if err := s.limits.CheckBatch(format, res.Transactions); err != nil {
		return nil, s.fail(span, "upload", format, err)
	}

	preview := &domain.Preview{
		ID:           uuid.NewString(),
		Filename:     upload.Filename,
		Format:       format,
		Transactions: res.Transactions,
		Summary:      ingest.Summarize(res.Transactions),
		CreatedAt:    s.now().UTC(),
	}
	s.previews.Set(preview.ID, preview)
	s.metrics.RecordUpload("upload", format, observability.UploadAccepted)

	span.SetAttributes(
		attribute.String("preview.id", preview.ID),
		attribute.Int("preview.transactions", len(preview.Transactions)),
	)
	s.logger.Info("statement previewed",
		zap.String("preview_id", preview.ID),
		zap.String("filename", upload.Filename),
		zap.String("format", string(format)),
		zap.Int("transactions", len(res.Transactions)),
		zap.Int("dropped", res.Dropped),
	)
	return preview, nil
}

// GetPreview returns a cached preview.
func (s *Ingestion) GetPreview(ctx context.Context, previewID string) (*domain.Preview, error) {
	_, span := tracer.Start(ctx, "Ingestion.GetPreview")
	defer span.End()
	span.SetAttributes(attribute.String("preview.id", previewID))

	p, ok := s.previews.Get(previewID)
	s.metrics.IncrPreviewCache(ok)
	if !ok || p == nil {
		return nil, &domain.ErrNotFound{Resource: "preview", ID: previewID}
	}
	return p, nil
}

// ============================================================
// Extract — POST /api/extrair
// ============================================================

// Extract runs the secondary extraction path over an uploaded file.
// An empty result is an error, as for the primary upload.
func (s *Ingestion) Extract(ctx context.Context, upload domain.RawUpload) (*domain.Extraction, error) {
	ctx, span := tracer.Start(ctx, "Ingestion.Extract")
	defer span.End()
	span.SetAttributes(attribute.String("upload.filename", upload.Filename))

	format, err := s.admit(upload, ingest.ExtractFormats)
	if err != nil {
		return nil, s.fail(span, "extract", format, err)
	}

	res, err := s.parse(ctx, format, upload.Content)
	if err != nil {
		return nil, s.fail(span, "extract", format, err)
	}
	if err := s.limits.CheckBatch(format, res.Transactions); err != nil {
		return nil, s.fail(span, "extract", format, err)
	}

	s.metrics.RecordUpload("extract", format, observability.UploadAccepted)
	return &domain.Extraction{Format: format, TotalLines: res.TotalLines, Transactions: res.Transactions}, nil
}

// ExtractText runs the extraction path over text the client already has,
// e.g. copied from a PDF viewer. Text labelled as PDF goes to the
// free-text tier directly. Zero results are a valid answer here.
func (s *Ingestion) ExtractText(ctx context.Context, formatName, text string) (*domain.Extraction, error) {
	ctx, span := tracer.Start(ctx, "Ingestion.ExtractText")
	defer span.End()

	format, err := ingest.ParseFormatName(formatName, ingest.ExtractFormats)
	if err != nil {
		return nil, s.fail(span, "extract", format, err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, s.fail(span, "extract", format, &domain.ErrValidation{Field: "texto", Message: "texto é obrigatório"})
	}
	if err := s.limits.CheckSize(int64(len(text))); err != nil {
		return nil, s.fail(span, "extract", format, err)
	}

	parseAs := format
	if format == domain.FormatPDF {
		parseAs = domain.FormatTXT
	}
	res, err := s.parse(ctx, parseAs, []byte(text))
	if err != nil {
		return nil, s.fail(span, "extract", format, err)
	}
	if err := s.limits.CheckCount(len(res.Transactions)); err != nil {
		return nil, s.fail(span, "extract", format, err)
	}

	s.metrics.RecordUpload("extract", format, observability.UploadAccepted)
	return &domain.Extraction{Format: format, TotalLines: res.TotalLines, Transactions: res.Transactions}, nil
}

// ============================================================
// Confirm — POST /confirmar
// ============================================================

// Confirm persists rows for a user one by one. Rows that fail validation
// or insertion are counted and skipped; the call fails only when nothing
// could be saved.
func (s *Ingestion) Confirm(ctx context.Context, userID string, txs []domain.Transaction, sourceFile string) (*domain.ConfirmResult, error) {
	ctx, span := tracer.Start(ctx, "Ingestion.Confirm")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.Int("confirm.rows", len(txs)),
	)

	if userID == "" {
		return nil, &domain.ErrUnauthorized{Message: "Usuário não identificado"}
	}
	if len(txs) == 0 {
		return nil, &domain.ErrValidation{Field: "transacoes", Message: "nenhuma transação para salvar"}
	}
	if err := s.limits.CheckCount(len(txs)); err != nil {
		return nil, err
	}

	result := &domain.ConfirmResult{}
	var firstInvalid, lastStoreErr error

	for i := range txs {
		if ctx.Err() != nil {
			result.Failed += len(txs) - i
			lastStoreErr = ctx.Err()
			break
		}

		tx := s.prepareRow(txs[i], userID, sourceFile)
		if err := ingest.ValidateTransaction(tx); err != nil {
			result.Failed++
			if firstInvalid == nil {
				firstInvalid = err
			}
			s.logger.Warn("confirm: invalid row skipped", zap.Int("row", i), zap.Error(err))
			continue
		}

		if _, err := s.store.InsertTransaction(ctx, &tx); err != nil {
			result.Failed++
			lastStoreErr = err
			s.metrics.IncrExternalError("store")
			s.logger.Error("confirm: insert failed", zap.Int("row", i), zap.Error(err))
			continue
		}
		result.Saved++
	}

	s.metrics.RecordPersisted(result.Saved, result.Failed)
	span.SetAttributes(
		attribute.Int("confirm.saved", result.Saved),
		attribute.Int("confirm.failed", result.Failed),
	)

	if result.Saved == 0 {
		err := lastStoreErr
		if err == nil {
			err = firstInvalid
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "nothing saved")
		return nil, err
	}

	s.logger.Info("transactions confirmed",
		zap.String("user_id", userID),
		zap.String("source_file", sourceFile),
		zap.Int("saved", result.Saved),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

// ConfirmPreview persists a cached preview. The preview is claimed from
// the cache before any insert, so a repeated or concurrent confirm of the
// same id gets ErrNotFound instead of saving the rows twice. It goes back
// into the cache only when nothing was saved.
func (s *Ingestion) ConfirmPreview(ctx context.Context, userID, previewID string) (*domain.ConfirmResult, error) {
	p, ok := s.previews.Take(previewID)
	s.metrics.IncrPreviewCache(ok)
	if !ok || p == nil {
		return nil, &domain.ErrNotFound{Resource: "preview", ID: previewID}
	}
	result, err := s.Confirm(ctx, userID, p.Transactions, p.Filename)
	if err != nil {
		s.previews.Set(previewID, p)
		return nil, err
	}
	return result, nil
}

// prepareRow stamps ownership and provenance and tidies client input.
func (s *Ingestion) prepareRow(tx domain.Transaction, userID, sourceFile string) domain.Transaction {
	tx.ID = ""
	tx.UserID = userID
	tx.Origin = domain.OriginExtrato
	tx.SourceFile = sourceFile
	tx.Description = strings.TrimSpace(tx.Description)
	if d, ok := ingest.CanonicalDate(tx.Date); ok {
		tx.Date = d
	}
	if !tx.Category.IsValid() {
		tx.Category = s.categorizer.Categorize(tx.Description)
	}
	return tx
}

// ============================================================
// Internal helpers
// ============================================================

// admit applies the pre-parse rules in order: size, then format.
func (s *Ingestion) admit(upload domain.RawUpload, allowed []domain.Format) (domain.Format, error) {
	if err := s.limits.CheckSize(upload.Size); err != nil {
		return domain.FormatUnsupported, err
	}
	return ingest.DetectAllowed(upload.Filename, allowed)
}

type parseOutcome struct {
	res *ingest.Result
	err error
}

// parse runs a parser inside a bulkhead slot under the parse budget.
func (s *Ingestion) parse(ctx context.Context, format domain.Format, data []byte) (*ingest.Result, error) {
	ctx, span := tracer.Start(ctx, "Ingestion.parse")
	defer span.End()
	span.SetAttributes(attribute.String("format", string(format)))

	ctx, cancel := context.WithTimeout(ctx, s.parseTimeout)
	defer cancel()

	if err := s.bulkhead.Acquire(ctx); err != nil {
		return nil, &domain.ErrProcessing{Stage: "queue", Err: err}
	}
	s.metrics.ParseStarted()

	start := time.Now()
	done := make(chan parseOutcome, 1)
	go func() {
		defer s.bulkhead.Release()
		defer s.metrics.ParseFinished()
		defer func() {
			if r := recover(); r != nil {
				done <- parseOutcome{err: &domain.ErrProcessing{Stage: "parse", Err: fmt.Errorf("parser panic: %v", r)}}
			}
		}()
		res, err := s.registry.Parse(format, data)
		done <- parseOutcome{res: res, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return nil, out.err
		}
		s.metrics.RecordParse(format, time.Since(start), len(out.res.Transactions), out.res.Dropped)
		return out.res, nil
	case <-ctx.Done():
		return nil, &domain.ErrProcessing{
			Stage: "parse",
			Err:   fmt.Errorf("parse exceeded %s: %w", s.parseTimeout, ctx.Err()),
		}
	}
}

// fail records the outcome of a rejected or failed request.
func (s *Ingestion) fail(span trace.Span, endpoint string, format domain.Format, err error) error {
	status := observability.UploadFailed
	if domain.IsClientError(err) {
		status = observability.UploadRejected
	}
	s.metrics.RecordUpload(endpoint, format, status)
	span.RecordError(err)
	span.SetStatus(codes.Error, status)

	var processing *domain.ErrProcessing
	if errors.As(err, &processing) {
		s.logger.Error("statement processing failed", zap.String("endpoint", endpoint), zap.Error(err))
	} else {
		s.logger.Info("statement rejected", zap.String("endpoint", endpoint), zap.Error(err))
	}
	return err
}
