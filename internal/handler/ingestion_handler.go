package handler

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/extrato-ingest-go/internal/domain"
	"github.com/boddenberg/extrato-ingest-go/internal/ingest"
	"github.com/boddenberg/extrato-ingest-go/internal/service"
)

const (
	multipartMemory = 8 << 20
	bodyOverhead    = 1 << 20
)

type uploadResponse struct {
	Success      bool                 `json:"success"`
	Transactions []domain.Transaction `json:"transactions"`
	Summary      domain.UploadSummary `json:"summary"`
	PreviewID    string               `json:"previewId"`
}

type previewResponse struct {
	Success      bool                 `json:"success"`
	PreviewID    string               `json:"previewId"`
	Filename     string               `json:"filename"`
	Format       domain.Format        `json:"format"`
	Transactions []domain.Transaction `json:"transactions"`
	Summary      domain.UploadSummary `json:"summary"`
	CreatedAt    string               `json:"createdAt"`
}

type extractRequest struct {
	Formato string `json:"formato"`
	Texto   string `json:"texto"`
}

type extractData struct {
	TotalLinhas       int                  `json:"totalLinhas"`
	TransacoesValidas int                  `json:"transacoesValidas"`
	Transacoes        []domain.Transaction `json:"transacoes"`
}

type extractResponse struct {
	Sucesso bool        `json:"sucesso"`
	Dados   extractData `json:"dados"`
}

// ============================================================
// POST /api/upload-extrato
// ============================================================

func uploadStatementHandler(svc *service.Ingestion, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/upload-extrato")
		defer span.End()

		upload, err := readUpload(w, r, svc.Limits())
		if err != nil {
			handleUploadError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.String("upload.filename", upload.Filename))

		preview, err := svc.Preview(ctx, upload)
		if err != nil {
			handleUploadError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, uploadResponse{
			Success:      true,
			Transactions: preview.Transactions,
			Summary:      preview.Summary,
			PreviewID:    preview.ID,
		})
	}
}

// ============================================================
// GET /api/previews/{previewId}
// ============================================================

func getPreviewHandler(svc *service.Ingestion, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/previews/{previewId}")
		defer span.End()

		previewID := chi.URLParam(r, "previewId")
		span.SetAttributes(attribute.String("preview.id", previewID))

		preview, err := svc.GetPreview(ctx, previewID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, previewResponse{
			Success:      true,
			PreviewID:    preview.ID,
			Filename:     preview.Filename,
			Format:       preview.Format,
			Transactions: orEmpty(preview.Transactions),
			Summary:      preview.Summary,
			CreatedAt:    preview.CreatedAt.Format(time.RFC3339),
		})
	}
}

// ============================================================
// POST /api/extrair
// ============================================================

// extractHandler accepts either a multipart file or a JSON body with text
// already pulled out of a statement.
func extractHandler(svc *service.Ingestion, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/extrair")
		defer span.End()

		var (
			extraction *domain.Extraction
			err        error
		)
		if isMultipart(r) {
			var upload domain.RawUpload
			upload, err = readUpload(w, r, svc.Limits())
			if err == nil {
				extraction, err = svc.Extract(ctx, upload)
			}
		} else {
			var req extractRequest
			r.Body = http.MaxBytesReader(w, r.Body, 2*svc.Limits().MaxBytes+bodyOverhead)
			if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
				err = decodeBodyError(decodeErr, svc.Limits())
			} else {
				span.SetAttributes(attribute.String("extract.formato", req.Formato))
				extraction, err = svc.ExtractText(ctx, req.Formato, req.Texto)
			}
		}
		if err != nil {
			handlePtError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, extractResponse{
			Sucesso: true,
			Dados: extractData{
				TotalLinhas:       extraction.TotalLines,
				TransacoesValidas: len(extraction.Transactions),
				Transacoes:        orEmpty(extraction.Transactions),
			},
		})
	}
}

// ============================================================
// Request decoding
// ============================================================

// readUpload pulls the "file" part out of a multipart request into a
// RawUpload. The body is capped well above the file limit so that an
// oversized file still reaches the size check with its real size.
func readUpload(w http.ResponseWriter, r *http.Request, limits ingest.Limits) (domain.RawUpload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, 2*limits.MaxBytes+bodyOverhead)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			// chunked bodies carry no length; report the cap that was hit
			size := r.ContentLength
			if size < 0 {
				size = tooLarge.Limit
			}
			return domain.RawUpload{}, &domain.ErrFileTooLarge{Size: size, Limit: limits.MaxBytes}
		}
		return domain.RawUpload{}, &domain.ErrNoFile{}
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		return domain.RawUpload{}, &domain.ErrNoFile{}
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return domain.RawUpload{}, &domain.ErrProcessing{Stage: "upload", Err: err}
	}
	return domain.RawUpload{Filename: header.Filename, Size: header.Size, Content: content}, nil
}

func decodeBodyError(err error, limits ingest.Limits) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return &domain.ErrFileTooLarge{Size: tooLarge.Limit, Limit: limits.MaxBytes}
	}
	return &domain.ErrValidation{Field: "body", Message: "corpo da requisição inválido"}
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

func orEmpty(txs []domain.Transaction) []domain.Transaction {
	if txs == nil {
		return []domain.Transaction{}
	}
	return txs
}
