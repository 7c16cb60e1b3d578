package ingest

import (
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/boddenberg/extrato-ingest-go/internal/domain"
)

var (
	inlineSpace = regexp.MustCompile(`[^\S\n]+`)

	// Statement chrome that carries dates and amounts but no transaction.
	boilerplate = []*regexp.Regexp{
		regexp.MustCompile(`(?im)saldo\s+anterior.*$`),
		regexp.MustCompile(`(?im)saldo\s+(atual|final|dispon[ií]vel|do\s+dia|em\s+conta).*$`),
		regexp.MustCompile(`(?i)extrato\s+(de\s+)?conta(\s+corrente)?`),
		regexp.MustCompile(`(?im)per[ií]odo\s*:.*$`),
		regexp.MustCompile(`(?i)\d{2}/\d{2}/\d{4}\s*(a|at[ée]|-)\s*\d{2}/\d{2}/\d{4}`),
	}

	dateToken     = regexp.MustCompile(`\b\d{2}/\d{2}(/\d{4})?\b`)
	currencyToken = regexp.MustCompile(`(R\$|\$)?\s?[-+]?\d[\d.]*,\d{2}\b|(R\$|\$)\s?[-+]?\d+(\.\d{2})?\b|[-+]?\d+\.\d{2}\b`)

	// DD/MM/YYYY description amount, the amount being the last token.
	statementLine = regexp.MustCompile(`^(\d{2}/\d{2}/\d{4})\s+(.+?)\s+([-+]?\s?(?:R\$|\$)?\s?[-+]?\d[\d.,]*-?)$`)
)

// ExtractCandidateLines cleans free text and keeps the lines that carry
// both a date token and a currency token.
func ExtractCandidateLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	for _, re := range boilerplate {
		text = re.ReplaceAllString(text, "")
	}

	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(inlineSpace.ReplaceAllString(line, " "))
		if line == "" {
			continue
		}
		if dateToken.MatchString(line) && currencyToken.MatchString(line) {
			out = append(out, line)
		}
	}
	return out
}

// FreeTextParser is the lower-confidence tier used for PDF and TXT
// statements: one transaction per line, anchored on a leading full date
// and a trailing amount.
type FreeTextParser struct {
	categorizer *Categorizer
	logger      *zap.Logger
}

// NewFreeTextParser creates a free-text parser.
func NewFreeTextParser(opts Options) *FreeTextParser {
	opts = opts.withDefaults()
	return &FreeTextParser{categorizer: opts.Categorizer, logger: opts.Logger}
}

// Parse implements Parser for plain text content.
func (p *FreeTextParser) Parse(data []byte) (*Result, error) {
	if looksBinary(data) {
		return nil, &domain.ErrValidation{Field: "file", Message: "conteúdo de texto ilegível"}
	}
	return p.ParseText(DecodeText(data)), nil
}

// ParseText runs extraction and line parsing over already decoded text.
func (p *FreeTextParser) ParseText(text string) *Result {
	lines := ExtractCandidateLines(text)
	txs, dropped := p.ParseLines(lines)
	return &Result{Transactions: txs, TotalLines: len(lines), Dropped: dropped}
}

// ParseLines parses candidate lines; lines that do not fit the strict
// pattern are logged and dropped.
func (p *FreeTextParser) ParseLines(lines []string) ([]domain.Transaction, int) {
	var (
		txs     []domain.Transaction
		dropped int
	)
	for _, line := range lines {
		tx, ok := p.parseLine(line)
		if !ok {
			dropped++
			p.logger.Debug("free-text line ignored", zap.String("line", line))
			continue
		}
		txs = append(txs, tx)
	}
	return txs, dropped
}

func (p *FreeTextParser) parseLine(line string) (domain.Transaction, bool) {
	m := statementLine.FindStringSubmatch(line)
	if m == nil {
		return domain.Transaction{}, false
	}

	posted, err := time.Parse("02/01/2006", m[1])
	if err != nil {
		return domain.Transaction{}, false
	}

	desc := strings.TrimSpace(m[2])
	amount := ParseLooseAmount(m[3])
	if desc == "" || amount.IsZero() {
		return domain.Transaction{}, false
	}

	tx := domain.NewTransactionFromMagnitude(
		posted.Format(domain.DateLayout),
		desc,
		amount.Abs(),
		domain.TypeForAmount(amount),
	)
	tx.Category = p.categorizer.Categorize(desc)
	return tx, true
}
