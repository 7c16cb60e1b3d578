package ingest

import (
	"encoding/csv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/boddenberg/extrato-ingest-go/internal/domain"
)

// ColumnMapping selects how CSV columns are located.
type ColumnMapping int

const (
	// MappingAuto uses the header when it names date, description and
	// value columns, positions otherwise.
	MappingAuto ColumnMapping = iota
	// MappingHeader requires a recognizable header.
	MappingHeader
	// MappingPositional reads date;description;value with no header.
	MappingPositional
)

func (m ColumnMapping) String() string {
	switch m {
	case MappingHeader:
		return "header"
	case MappingPositional:
		return "positional"
	default:
		return "auto"
	}
}

// Header synonyms, folded.
var (
	dateHeaders  = []string{"data", "date", "data transacao", "data da transacao", "data lancamento", "dt"}
	descHeaders  = []string{"descricao", "titulo", "description", "estabelecimento", "historico", "lancamento", "memo"}
	valueHeaders = []string{"valor", "value", "quantia", "amount", "valor (r$)", "valor r$"}
)

type csvColumns struct {
	date, desc, value int
}

func (c csvColumns) maxIndex() int {
	return max(c.date, c.desc, c.value)
}

var positionalColumns = csvColumns{date: 0, desc: 1, value: 2}

// CSVParser reads bank CSV exports with either a header row or fixed
// date, description, value positions.
type CSVParser struct {
	mapping     ColumnMapping
	categorizer *Categorizer
	now         func() time.Time
	logger      *zap.Logger
}

// NewCSVParser creates a CSV parser with the given mapping strategy.
func NewCSVParser(mapping ColumnMapping, opts Options) *CSVParser {
	opts = opts.withDefaults()
	return &CSVParser{
		mapping:     mapping,
		categorizer: opts.Categorizer,
		now:         opts.Now,
		logger:      opts.Logger,
	}
}

// Parse implements Parser.
func (p *CSVParser) Parse(data []byte) (*Result, error) {
	if looksBinary(data) {
		return nil, &domain.ErrValidation{Field: "file", Message: "conteúdo do CSV ilegível"}
	}

	lines := nonBlankLines(DecodeText(data))
	res := &Result{}
	if len(lines) == 0 {
		return res, nil
	}

	mode := p.mapping
	cols := positionalColumns
	var delim rune
	rows := lines

	if mode != MappingPositional {
		delim = chooseDelimiter(lines[0])
		if mapped, ok := mapHeader(splitRecord(lines[0], delim)); ok {
			mode = MappingHeader
			cols = mapped
			rows = lines[1:]
		} else if mode == MappingHeader {
			return nil, &domain.ErrValidation{
				Field:   "file",
				Message: "cabeçalho do CSV sem colunas de data, descrição e valor",
			}
		} else {
			mode = MappingPositional
		}
	}

	today := p.now()
	for i, line := range rows {
		res.TotalLines++

		rowDelim := delim
		if mode == MappingPositional {
			rowDelim = chooseDelimiter(line)
		}
		fields := splitRecord(line, rowDelim)
		if len(fields) <= cols.maxIndex() {
			res.Dropped++
			p.logger.Debug("csv row with too few fields", zap.Int("row", i+1), zap.Int("fields", len(fields)))
			continue
		}

		desc := fields[cols.desc]
		amount := ParseAmount(fields[cols.value])
		if desc == "" || amount.IsZero() {
			res.Dropped++
			p.logger.Debug("csv row dropped", zap.Int("row", i+1), zap.Bool("empty_description", desc == ""))
			continue
		}

		tx := domain.NewTransaction(NormalizeDate(fields[cols.date], today), desc, amount)
		tx.Category = p.categorizer.Categorize(desc)
		res.Transactions = append(res.Transactions, tx)
	}

	p.logger.Debug("csv parsed",
		zap.String("mapping", mode.String()),
		zap.Int("rows", res.TotalLines),
		zap.Int("transactions", len(res.Transactions)),
		zap.Int("dropped", res.Dropped),
	)
	return res, nil
}

func nonBlankLines(text string) []string {
	var out []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// chooseDelimiter prefers ';' and falls back to ',' when the line does not
// split into at least three fields.
func chooseDelimiter(line string) rune {
	if len(splitRecord(line, ';')) >= 3 {
		return ';'
	}
	return ','
}

// splitRecord splits one line, honoring double quotes. Fields are trimmed.
func splitRecord(line string, delim rune) []string {
	r := csv.NewReader(strings.NewReader(line))
	r.Comma = delim
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	fields, err := r.Read()
	if err != nil {
		fields = strings.Split(line, string(delim))
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields
}

func mapHeader(fields []string) (csvColumns, bool) {
	cols := csvColumns{date: -1, desc: -1, value: -1}
	for i, f := range fields {
		name := Fold(f)
		switch {
		case cols.date < 0 && containsString(dateHeaders, name):
			cols.date = i
		case cols.desc < 0 && containsString(descHeaders, name):
			cols.desc = i
		case cols.value < 0 && containsString(valueHeaders, name):
			cols.value = i
		}
	}
	return cols, cols.date >= 0 && cols.desc >= 0 && cols.value >= 0
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
