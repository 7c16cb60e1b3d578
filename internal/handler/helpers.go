package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/boddenberg/extrato-ingest-go/internal/domain"
)

// ============================================================
// Shared helper functions
// ============================================================

type errorResponse struct {
	Error string `json:"error"`
}

// uploadErrorResponse is the failure shape of /api/upload-extrato.
type uploadErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// ptErrorResponse is the failure shape of the Portuguese endpoints.
type ptErrorResponse struct {
	Sucesso bool   `json:"sucesso"`
	Erro    string `json:"erro"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// statusFor maps domain errors to HTTP status codes. Size and count
// violations are plain client errors and answer 400, not 413.
func statusFor(err error) int {
	var (
		unauthorized *domain.ErrUnauthorized
		notFound     *domain.ErrNotFound
		circuitOpen  *domain.ErrCircuitOpen
	)
	switch {
	case domain.IsClientError(err):
		return http.StatusBadRequest
	case errors.As(err, &unauthorized):
		return http.StatusUnauthorized
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &circuitOpen):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage hides internal details of server-side failures.
func errorMessage(status int, err error) string {
	if status >= http.StatusInternalServerError {
		var processing *domain.ErrProcessing
		if errors.As(err, &processing) {
			return "erro ao processar arquivo"
		}
		if status == http.StatusServiceUnavailable {
			return "serviço de armazenamento indisponível, tente novamente"
		}
		return "erro interno do servidor"
	}
	return err.Error()
}

func logServiceError(logger *zap.Logger, status int, err error) {
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	case status == http.StatusUnauthorized:
		logger.Warn("unauthorized", zap.String("error", err.Error()))
	default:
		logger.Debug("client error", zap.Int("status", status), zap.String("error", err.Error()))
	}
}

// handleServiceError writes the generic {error} shape.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	status := statusFor(err)
	logServiceError(logger, status, err)
	writeError(w, status, errorMessage(status, err))
}

// handleUploadError writes the {success:false, error} shape.
func handleUploadError(w http.ResponseWriter, err error, logger *zap.Logger) {
	status := statusFor(err)
	logServiceError(logger, status, err)
	writeJSON(w, status, uploadErrorResponse{Success: false, Error: errorMessage(status, err)})
}

// handlePtError writes the {sucesso:false, erro} shape.
func handlePtError(w http.ResponseWriter, err error, logger *zap.Logger) {
	status := statusFor(err)
	logServiceError(logger, status, err)
	writeJSON(w, status, ptErrorResponse{Sucesso: false, Erro: errorMessage(status, err)})
}
