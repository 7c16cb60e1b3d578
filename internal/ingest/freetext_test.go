package ingest_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boddenberg/extrato-ingest-go/internal/domain"
	"github.com/boddenberg/extrato-ingest-go/internal/ingest"
)

const statementText = `BANCO EXEMPLO S.A.
Extrato de Conta Corrente
Período: 01/02/2026 a 28/02/2026
01/02/2026   SALDO ANTERIOR          1.000,00
05/02/2026	SUPERMERCADO   EXTRA	-R$ 1.234,56
06/02/2026 PIX RECEBIDO JOAO R$ 250,00
07/02/2026 UBER TRIP 25,50-
08/02 TARIFA 10,00
09/02/2026 SEM VALOR
31/02/2026 DATA INVALIDA -9,99

SALDO ATUAL 15/02/2026 1.234,00
`

func TestExtractCandidateLines(t *testing.T) {
	lines := ingest.ExtractCandidateLines(statementText)

	assert.Equal(t, []string{
		"05/02/2026 SUPERMERCADO EXTRA -R$ 1.234,56",
		"06/02/2026 PIX RECEBIDO JOAO R$ 250,00",
		"07/02/2026 UBER TRIP 25,50-",
		"08/02 TARIFA 10,00",
		"31/02/2026 DATA INVALIDA -9,99",
	}, lines)
}

func TestFreeTextParser_ParseText(t *testing.T) {
	p := ingest.NewFreeTextParser(ingest.Options{})
	res := p.ParseText(statementText)

	assert.Equal(t, 5, res.TotalLines)
	assert.Equal(t, 2, res.Dropped)
	require.Len(t, res.Transactions, 3)

	market := res.Transactions[0]
	assert.Equal(t, "2026-02-05", market.Date)
	assert.Equal(t, "SUPERMERCADO EXTRA", market.Description)
	assert.Equal(t, domain.TypeExpense, market.Type)
	assert.Equal(t, domain.CategoryFood, market.Category)
	requireAmount(t, "1234.56", market.Abs())
	requireAmount(t, "-1234.56", market.Signed())

	pix := res.Transactions[1]
	assert.Equal(t, domain.TypeIncome, pix.Type)
	assert.Equal(t, domain.CategoryOther, pix.Category)
	requireAmount(t, "250", pix.Abs())

	uber := res.Transactions[2]
	assert.Equal(t, domain.TypeExpense, uber.Type)
	assert.Equal(t, domain.CategoryTransport, uber.Category)
}

func TestFreeTextParser_ParseLines(t *testing.T) {
	p := ingest.NewFreeTextParser(ingest.Options{})

	txs, dropped := p.ParseLines([]string{
		"10/02/2026 NETFLIX.COM R$ -55,90",
		"nada aqui",
	})

	require.Len(t, txs, 1)
	assert.Equal(t, 1, dropped)
	assert.Equal(t, "NETFLIX.COM", txs[0].Description)
	assert.Equal(t, domain.TypeExpense, txs[0].Type)
	requireAmount(t, "55.90", txs[0].Abs())
}

func TestFreeTextParser_BinaryIsUnreadable(t *testing.T) {
	p := ingest.NewFreeTextParser(ingest.Options{})
	_, err := p.Parse([]byte{0x00, 0x01, 0x02})
	require.Error(t, err)
}

func TestPDFParser_InvalidDocument(t *testing.T) {
	r := ingest.NewRegistry(ingest.Options{})

	for name, data := range map[string][]byte{
		"not a pdf": []byte("07/02/2026 UBER TRIP -25,50"),
		"truncated": []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog"),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := r.Parse(domain.FormatPDF, data)
			var processing *domain.ErrProcessing
			require.ErrorAs(t, err, &processing)
			assert.Equal(t, "pdf", processing.Stage)
		})
	}
}
