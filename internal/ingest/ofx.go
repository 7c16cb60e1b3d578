package ingest

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/boddenberg/extrato-ingest-go/internal/domain"
)

var (
	stmtTrnBlock    = regexp.MustCompile(`(?is)<STMTTRN>(.*?)</STMTTRN>`)
	stmtTrnOpen     = regexp.MustCompile(`(?i)<STMTTRN>`)
	bankTranListEnd = regexp.MustCompile(`(?i)</BANKTRANLIST>`)
	ofxDatePrefix   = regexp.MustCompile(`^(\d{8})`)

	ofxDTPosted = ofxTag("DTPOSTED")
	ofxMemo     = ofxTag("MEMO")
	ofxName     = ofxTag("NAME")
	ofxAmount   = ofxTag("TRNAMT")
)

// ofxTag matches a leaf element's text in both SGML (unclosed) and XML.
func ofxTag(name string) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(`(?i)<%s>\s*([^<\r\n]*)`, name))
}

// OFXParser scans <STMTTRN> blocks of OFX and QFX statements. It is a
// lenient scanner rather than a schema-validating reader: blocks without a
// description or a readable amount are skipped and the rest still import.
type OFXParser struct {
	categorizer *Categorizer
	now         func() time.Time
	logger      *zap.Logger
}

// NewOFXParser creates an OFX/QFX parser.
func NewOFXParser(opts Options) *OFXParser {
	opts = opts.withDefaults()
	return &OFXParser{categorizer: opts.Categorizer, now: opts.Now, logger: opts.Logger}
}

// Parse implements Parser.
func (p *OFXParser) Parse(data []byte) (*Result, error) {
	if looksBinary(data) {
		return nil, &domain.ErrValidation{Field: "file", Message: "conteúdo do OFX ilegível"}
	}

	blocks := transactionBlocks(DecodeText(data))
	res := &Result{TotalLines: len(blocks)}
	today := p.now()

	for i, block := range blocks {
		desc := ofxField(ofxMemo, block)
		if desc == "" {
			desc = ofxField(ofxName, block)
		}
		amount, ok := parseOFXAmount(ofxField(ofxAmount, block))
		if desc == "" || !ok || amount.IsZero() {
			res.Dropped++
			p.logger.Debug("ofx block skipped", zap.Int("block", i+1), zap.Bool("has_description", desc != ""))
			continue
		}

		tx := domain.NewTransaction(ofxDate(ofxField(ofxDTPosted, block), today), desc, amount)
		tx.Category = p.categorizer.Categorize(desc)
		res.Transactions = append(res.Transactions, tx)
	}
	return res, nil
}

// transactionBlocks returns the inner text of every <STMTTRN> element.
// Files that never close the element are split on the opening tags instead.
func transactionBlocks(text string) []string {
	matches := stmtTrnBlock.FindAllStringSubmatch(text, -1)
	if len(matches) > 0 {
		blocks := make([]string, 0, len(matches))
		for _, m := range matches {
			blocks = append(blocks, m[1])
		}
		return blocks
	}

	if loc := bankTranListEnd.FindStringIndex(text); loc != nil {
		text = text[:loc[0]]
	}
	parts := stmtTrnOpen.Split(text, -1)
	if len(parts) < 2 {
		return nil
	}
	return parts[1:]
}

func ofxField(re *regexp.Regexp, block string) string {
	m := re.FindStringSubmatch(block)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(m[1]))
}

// ofxDate reads the YYYYMMDD prefix of an OFX timestamp such as
// 20260207120000[-3:BRT].
func ofxDate(raw string, now time.Time) string {
	m := ofxDatePrefix.FindStringSubmatch(raw)
	if m == nil {
		return now.Format(domain.DateLayout)
	}
	t, err := time.Parse("20060102", m[1])
	if err != nil {
		return now.Format(domain.DateLayout)
	}
	return t.Format(domain.DateLayout)
}

// parseOFXAmount reads TRNAMT. Some Brazilian exports write it with a
// decimal comma and dotted thousands ("-1.234,56"); those go through
// ParseAmount.
func parseOFXAmount(raw string) (decimal.Decimal, bool) {
	if strings.Contains(raw, ",") {
		d := ParseAmount(raw)
		return d, !d.IsZero()
	}
	raw = strings.TrimPrefix(raw, "+")
	if raw == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
