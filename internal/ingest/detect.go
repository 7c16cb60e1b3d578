package ingest

import (
	"path/filepath"
	"strings"

	"github.com/boddenberg/extrato-ingest-go/internal/domain"
)

var extensionFormats = map[string]domain.Format{
	".csv": domain.FormatCSV,
	".ofx": domain.FormatOFX,
	".qfx": domain.FormatQFX,
	".pdf": domain.FormatPDF,
	".txt": domain.FormatTXT,
}

// Allow-lists of each entry point.
var (
	UploadFormats  = []domain.Format{domain.FormatCSV, domain.FormatOFX, domain.FormatQFX}
	ExtractFormats = []domain.Format{domain.FormatPDF, domain.FormatCSV, domain.FormatOFX, domain.FormatTXT}
)

// Detect maps a filename to its format by lower-cased extension.
// Unknown extensions yield FormatUnsupported.
func Detect(filename string) domain.Format {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(filename)))
	if f, ok := extensionFormats[ext]; ok {
		return f
	}
	return domain.FormatUnsupported
}

// DetectAllowed detects the format and checks it against an allow-list.
func DetectAllowed(filename string, allowed []domain.Format) (domain.Format, error) {
	f := Detect(filename)
	if f != domain.FormatUnsupported && containsFormat(allowed, f) {
		return f, nil
	}
	return domain.FormatUnsupported, &domain.ErrUnsupportedFormat{
		Ext:     strings.ToLower(filepath.Ext(filename)),
		Allowed: allowed,
	}
}

// ParseFormatName resolves a caller-supplied format name such as "PDF" or
// ".csv" for inline text submissions.
func ParseFormatName(name string, allowed []domain.Format) (domain.Format, error) {
	n := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(name)), ".")
	if n == "" {
		return domain.FormatUnsupported, &domain.ErrValidation{Field: "formato", Message: "formato é obrigatório"}
	}
	return DetectAllowed("inline."+n, allowed)
}

func containsFormat(list []domain.Format, f domain.Format) bool {
	for _, candidate := range list {
		if candidate == f {
			return true
		}
	}
	return false
}
