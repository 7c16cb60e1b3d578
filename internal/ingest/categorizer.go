// Package ingest turns raw bank-statement content into canonical
// transactions: format detection, per-format parsers, free-text line
// extraction, categorization and batch validation.
package ingest

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/boddenberg/extrato-ingest-go/internal/domain"
)

// Rule maps a description pattern to a category. Patterns are matched
// against the folded (lower-case, accent-free) description.
type Rule struct {
	Category domain.Category
	Pattern  *regexp.Regexp
}

// KeywordRule builds a rule matching any of the keywords as a substring.
// Keywords are folded the same way descriptions are.
func KeywordRule(category domain.Category, keywords ...string) Rule {
	quoted := make([]string, 0, len(keywords))
	for _, k := range keywords {
		quoted = append(quoted, regexp.QuoteMeta(Fold(k)))
	}
	return Rule{
		Category: category,
		Pattern:  regexp.MustCompile(strings.Join(quoted, "|")),
	}
}

// RegexRule builds a rule from a raw expression, written against folded text.
func RegexRule(category domain.Category, expr string) Rule {
	return Rule{Category: category, Pattern: regexp.MustCompile(expr)}
}

// Categorizer assigns the first matching category, Outros otherwise.
// It is immutable after construction and safe for concurrent use.
type Categorizer struct {
	rules []Rule
}

// NewCategorizer copies rules; their order decides ties.
func NewCategorizer(rules []Rule) *Categorizer {
	own := make([]Rule, len(rules))
	copy(own, rules)
	return &Categorizer{rules: own}
}

// NewDefaultCategorizer uses DefaultRules.
func NewDefaultCategorizer() *Categorizer {
	return NewCategorizer(DefaultRules())
}

// Categorize never fails; unknown descriptions fall into Outros.
func (c *Categorizer) Categorize(description string) domain.Category {
	folded := Fold(description)
	if folded == "" {
		return domain.CategoryOther
	}
	for _, r := range c.rules {
		if r.Pattern.MatchString(folded) {
			return r.Category
		}
	}
	return domain.CategoryOther
}

// Rules returns a copy of the configured rule table.
func (c *Categorizer) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// DefaultRules is the canonical Brazilian-merchant table. Order matters:
// "uber eats" must resolve to Alimentacao before "uber" hits Transporte,
// and "amazon prime" to Assinaturas before "amazon" hits Compras.
func DefaultRules() []Rule {
	return []Rule{
		KeywordRule(domain.CategoryFood,
			"supermercado", "mercearia", "padaria", "restaurante", "ifood", "uber eats",
			"rappi", "lanchonete", "acougue", "hortifruti", "pizzaria", "burger",
			"mcdonald", "mc donald", "atacadao", "assai", "carrefour", "pao de acucar",
			"sorveteria", "cafeteria", "starbucks", "subway"),
		RegexRule(domain.CategoryTransport,
			`uber|\b99\s?(taxi|pop|app)\b|taxi|cabify|\bposto\b|combustivel|gasolina|etanol|\bshell\b|ipiranga|estacionamento|pedagio|sem parar|\bmetro\b|onibus|bilhete unico|passagem aerea|latam|gol linhas|azul linhas`),
		KeywordRule(domain.CategoryHealth,
			"farmacia", "drogaria", "drogasil", "droga raia", "drogaria sao paulo", "pague menos",
			"hospital", "clinica", "laboratorio", "medico", "unimed",
			"odonto", "dentista", "plano de saude", "academia", "smart fit"),
		KeywordRule(domain.CategorySubscriptions,
			"netflix", "spotify", "amazon prime", "prime video", "disney", "hbo",
			"max.com", "youtube premium", "deezer", "globoplay", "paramount", "icloud",
			"google one", "apple.com", "chatgpt", "assinatura"),
		RegexRule(domain.CategoryLeisure,
			`cinema|cinemark|teatro|\bshow\b|ingresso|sympla|\bbar\b|boteco|steam|playstation|xbox|nintendo|parque|viagem|hotel|airbnb|booking|pousada`),
		RegexRule(domain.CategoryHousing,
			`aluguel|condominio|energia|\benel\b|sabesp|copel|cemig|coelba|celesc|\bagua\b|saneamento|\bgas\b|comgas|internet|\bvivo\b|\bclaro\b|\btim\b|\boi\b|net servicos|iptu`),
		KeywordRule(domain.CategoryEducation,
			"escola", "faculdade", "universidade", "curso", "udemy", "alura",
			"coursera", "livraria", "colegio", "material escolar", "mensalidade"),
		KeywordRule(domain.CategoryShopping,
			"mercado livre", "mercadolivre", "amazon", "magazine", "magalu", "americanas",
			"shopee", "aliexpress", "shein", "casas bahia", "renner", "riachuelo",
			"c&a", "loja", "centauro", "netshoes", "kabum"),
	}
}

// Fold lower-cases s and strips diacritics so "Farmácia" matches "farmacia".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}
