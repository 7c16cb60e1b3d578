package domain

import (
	"errors"
	"fmt"
)

// Error types for consistent error handling across the ingestion pipeline.
// Messages are user-facing and kept in Portuguese.

// ErrNoFile indicates an upload request without a file part.
type ErrNoFile struct{}

func (e *ErrNoFile) Error() string {
	return "nenhum arquivo enviado"
}

// ErrUnsupportedFormat indicates a file extension outside the allow-list.
type ErrUnsupportedFormat struct {
	Ext     string
	Allowed []Format
}

func (e *ErrUnsupportedFormat) Error() string {
	if len(e.Allowed) == 0 {
		return fmt.Sprintf("formato de arquivo não suportado: %q", e.Ext)
	}
	return fmt.Sprintf("formato de arquivo não suportado: %q (aceitos: %v)", e.Ext, e.Allowed)
}

// ErrFileTooLarge indicates an upload above the configured size ceiling.
type ErrFileTooLarge struct {
	Size  int64
	Limit int64
}

func (e *ErrFileTooLarge) Error() string {
	return fmt.Sprintf("arquivo muito grande: %d bytes (máximo %d bytes)", e.Size, e.Limit)
}

// ErrTooManyTransactions indicates a batch above the configured row ceiling.
type ErrTooManyTransactions struct {
	Count int
	Limit int
}

func (e *ErrTooManyTransactions) Error() string {
	return fmt.Sprintf("muitas transações no arquivo: %d (máximo %d)", e.Count, e.Limit)
}

// ErrNoTransactions indicates a parse that produced nothing.
type ErrNoTransactions struct {
	Format Format
}

func (e *ErrNoTransactions) Error() string {
	switch e.Format {
	case FormatPDF, FormatTXT:
		return "nenhuma transação encontrada — verifique o formato do arquivo ou cadastre as transações manualmente"
	default:
		return "nenhuma transação encontrada — verifique o formato do arquivo"
	}
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("erro de validação em '%s': %s", e.Field, e.Message)
}

// ErrProcessing indicates a failure inside the pipeline that is not the
// caller's fault, such as a PDF library panic or a parse timeout.
type ErrProcessing struct {
	Stage string
	Err   error
}

func (e *ErrProcessing) Error() string {
	return fmt.Sprintf("erro ao processar arquivo [%s]: %v", e.Stage, e.Err)
}

func (e *ErrProcessing) Unwrap() error {
	return e.Err
}

// ErrExternalService indicates a failure in an external service call.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrUnauthorized indicates invalid credentials or token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// IsClientError reports whether err was caused by the caller's input.
func IsClientError(err error) bool {
	var (
		noFile      *ErrNoFile
		unsupported *ErrUnsupportedFormat
		tooLarge    *ErrFileTooLarge
		tooMany     *ErrTooManyTransactions
		none        *ErrNoTransactions
		validation  *ErrValidation
	)
	return errors.As(err, &noFile) ||
		errors.As(err, &unsupported) ||
		errors.As(err, &tooLarge) ||
		errors.As(err, &tooMany) ||
		errors.As(err, &none) ||
		errors.As(err, &validation)
}
