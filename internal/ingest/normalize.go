package ingest

import (
	"bytes"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"

	"github.com/boddenberg/extrato-ingest-go/internal/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DecodeText strips a UTF-8 BOM and converts Windows-1252 content, the
// usual export encoding of Brazilian banks, to UTF-8. CRLF becomes LF.
func DecodeText(data []byte) string {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		if decoded, err := charmap.Windows1252.NewDecoder().Bytes(data); err == nil {
			data = decoded
		}
	}
	s := strings.ReplaceAll(string(data), "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// looksBinary reports content no text parser can read, such as an image
// renamed to .csv.
func looksBinary(data []byte) bool {
	probe := data
	if len(probe) > 1024 {
		probe = probe[:1024]
	}
	return bytes.IndexByte(probe, 0) >= 0
}

var inputDateLayouts = []string{
	"2/1/2006",
	"2006-1-2",
	"2-1-2006",
}

// NormalizeDate converts DD/MM/YYYY, YYYY-MM-DD or DD-MM-YYYY into
// YYYY-MM-DD. Anything else, including impossible calendar dates, falls
// back to the processing date.
func NormalizeDate(raw string, now time.Time) string {
	if d, ok := CanonicalDate(raw); ok {
		return d
	}
	return now.Format(domain.DateLayout)
}

// CanonicalDate converts a supported date into YYYY-MM-DD.
func CanonicalDate(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range inputDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(domain.DateLayout), true
		}
	}
	return "", false
}

var (
	currencySymbol = regexp.MustCompile(`(?i)R\$|\$`)
	thousandsDot   = regexp.MustCompile(`\.(\d{3})(\D|$)`)
	amountNoise    = regexp.MustCompile(`[^0-9,.\-+]`)
)

// ParseAmount reads a Brazilian-formatted amount such as "-R$ 1.234,56".
// Unparseable input yields zero, which the caller treats as a dropped row.
func ParseAmount(raw string) decimal.Decimal {
	s := currencySymbol.ReplaceAllString(raw, "")
	s = strings.Map(func(r rune) rune {
		if r == ' ' || r == '\u00a0' || r == '\t' {
			return -1
		}
		return r
	}, s)
	return parseCleanAmount(s)
}

// ParseLooseAmount is the free-text variant: anything that is not a
// digit, separator or sign is dropped first.
func ParseLooseAmount(raw string) decimal.Decimal {
	return parseCleanAmount(amountNoise.ReplaceAllString(raw, ""))
}

func parseCleanAmount(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	negative := false
	switch {
	case strings.HasPrefix(s, "-"):
		negative = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	case strings.HasSuffix(s, "-"):
		// some banks print debits as "1.234,56-"
		negative = true
		s = s[:len(s)-1]
	}
	s = strings.TrimLeft(s, "-+")

	for {
		next := thousandsDot.ReplaceAllString(s, "$1$2")
		if next == s {
			break
		}
		s = next
	}
	s = strings.ReplaceAll(s, ",", ".")

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	if negative {
		d = d.Neg()
	}
	return d
}
