package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/extrato-ingest-go/internal/domain"
	"github.com/boddenberg/extrato-ingest-go/internal/service"
)

type confirmRequest struct {
	Transacoes    []domain.Transaction `json:"transacoes"`
	ArquivoOrigem string               `json:"arquivo_origem,omitempty"`
	PreviewID     string               `json:"previewId,omitempty"`
}

type confirmResponse struct {
	Sucesso     bool   `json:"sucesso"`
	Mensagem    string `json:"mensagem"`
	TotalSalvo  int    `json:"totalSalvo"`
	TotalFalhas int    `json:"totalFalhas"`
}

// ============================================================
// POST /confirmar (protected)
// ============================================================

// confirmHandler persists reviewed rows for the authenticated user. A
// previewId alone confirms the cached preview as parsed.
func confirmHandler(svc *service.Ingestion, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /confirmar")
		defer span.End()

		userID := UserIDFromContext(ctx)
		span.SetAttributes(attribute.String("user.id", userID))

		r.Body = http.MaxBytesReader(w, r.Body, 2*svc.Limits().MaxBytes+bodyOverhead)
		var req confirmRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			handlePtError(w, decodeBodyError(err, svc.Limits()), logger)
			return
		}

		var (
			result *domain.ConfirmResult
			err    error
		)
		if len(req.Transacoes) == 0 && req.PreviewID != "" {
			span.SetAttributes(attribute.String("preview.id", req.PreviewID))
			result, err = svc.ConfirmPreview(ctx, userID, req.PreviewID)
		} else {
			result, err = svc.Confirm(ctx, userID, req.Transacoes, req.ArquivoOrigem)
		}
		if err != nil {
			handlePtError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, confirmResponse{
			Sucesso:     true,
			Mensagem:    confirmMessage(result),
			TotalSalvo:  result.Saved,
			TotalFalhas: result.Failed,
		})
	}
}

func confirmMessage(res *domain.ConfirmResult) string {
	if res.Failed == 0 {
		return fmt.Sprintf("%d transações salvas com sucesso", res.Saved)
	}
	return fmt.Sprintf("%d de %d transações salvas", res.Saved, res.Saved+res.Failed)
}
