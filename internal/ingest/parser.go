package ingest

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/boddenberg/extrato-ingest-go/internal/domain"
)

// Result is what a parser produced from one input.
type Result struct {
	Transactions []domain.Transaction
	// TotalLines counts the candidate records seen: data rows, OFX blocks
	// or free-text candidate lines.
	TotalLines int
	// Dropped counts candidates discarded as per-record anomalies.
	Dropped int
}

// Parser turns the raw content of one format into transactions.
// Per-record problems are dropped, never returned; an error means the
// input as a whole could not be read.
type Parser interface {
	Parse(data []byte) (*Result, error)
}

// Options carries the collaborators every parser shares.
type Options struct {
	Categorizer *Categorizer
	// Now supplies the processing date used when a row has no usable date.
	Now    func() time.Time
	Logger *zap.Logger
	// MaxPDFTextBytes bounds the text pulled out of a PDF.
	MaxPDFTextBytes int64
}

func (o Options) withDefaults() Options {
	if o.Categorizer == nil {
		o.Categorizer = NewDefaultCategorizer()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.MaxPDFTextBytes <= 0 {
		o.MaxPDFTextBytes = defaultMaxPDFTextBytes
	}
	return o
}

// Registry dispatches content to the parser registered for its format.
type Registry struct {
	parsers map[domain.Format]Parser
}

// NewRegistry wires the built-in parsers. OFX and QFX share one parser;
// TXT uses the free-text tier directly and PDF goes through text extraction
// first.
func NewRegistry(opts Options) *Registry {
	opts = opts.withDefaults()
	ofx := NewOFXParser(opts)
	text := NewFreeTextParser(opts)
	return &Registry{parsers: map[domain.Format]Parser{
		domain.FormatCSV: NewCSVParser(MappingAuto, opts),
		domain.FormatOFX: ofx,
		domain.FormatQFX: ofx,
		domain.FormatTXT: text,
		domain.FormatPDF: NewPDFParser(text, opts),
	}}
}

// Register replaces or adds the parser for a format.
func (r *Registry) Register(f domain.Format, p Parser) {
	r.parsers[f] = p
}

// Parse runs the parser registered for format.
func (r *Registry) Parse(format domain.Format, data []byte) (*Result, error) {
	p, ok := r.parsers[format]
	if !ok {
		return nil, &domain.ErrUnsupportedFormat{Ext: "." + string(format)}
	}
	res, err := p.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", format, err)
	}
	return res, nil
}
