package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/boddenberg/extrato-ingest-go/internal/domain"
)

const defaultMaxPDFTextBytes = 2 << 20 // 2 MiB of text

// ExtractPDFText pulls the plain text layer out of a PDF. The pdf library
// panics on some malformed files; that is reported as an error.
func ExtractPDFText(data []byte, maxTextBytes int64) (text string, pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	if !bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n"), []byte("%PDF")) {
		return "", 0, errors.New("missing %PDF header")
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, fmt.Errorf("opening pdf: %w", err)
	}
	pages = reader.NumPage()

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", pages, fmt.Errorf("reading pdf text: %w", err)
	}
	textBytes, err := io.ReadAll(io.LimitReader(plain, maxTextBytes))
	if err != nil {
		return "", pages, fmt.Errorf("reading pdf text: %w", err)
	}
	return string(textBytes), pages, nil
}

// PDFParser extracts the text layer and hands it to the free-text tier.
// Scanned statements have no text layer and end up with no transactions.
type PDFParser struct {
	text         *FreeTextParser
	maxTextBytes int64
	logger       *zap.Logger
}

// NewPDFParser creates a PDF parser on top of a free-text parser.
func NewPDFParser(text *FreeTextParser, opts Options) *PDFParser {
	opts = opts.withDefaults()
	return &PDFParser{text: text, maxTextBytes: opts.MaxPDFTextBytes, logger: opts.Logger}
}

// Parse implements Parser.
func (p *PDFParser) Parse(data []byte) (*Result, error) {
	text, pages, err := ExtractPDFText(data, p.maxTextBytes)
	if err != nil {
		return nil, &domain.ErrProcessing{Stage: "pdf", Err: err}
	}
	p.logger.Debug("pdf text extracted", zap.Int("pages", pages), zap.Int("text_bytes", len(text)))
	return p.text.ParseText(text), nil
}
