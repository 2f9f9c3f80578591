package analyst

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/seenimoa/thesisai/pkg/models"
	"github.com/seenimoa/thesisai/pkg/utils"
)

// DefaultContextCap is the context size limit in characters.
const DefaultContextCap = 14000

// Section headers, in serialization order.
const (
	SectionNews              = "News"
	SectionStockEvolution    = "Stock Evolution for %s:"
	SectionBalanceSheet      = "Balance Sheet"
	SectionCashFlow          = "Cash Flow"
	SectionIncomeStatement   = "Income Statement"
	SectionValuationMeasures = "Valuation Measures"

	NoNewsMarker = "No news found."
	noDataMarker = "No data available."
)

// AggregatedContext is the bounded text the thesis is grounded on.
type AggregatedContext struct {
	Text       string
	Cap        int
	FullLength int // rune length before truncation
	Truncated  bool
}

// Len returns the rune length of Text.
func (c AggregatedContext) Len() int { return utf8.RuneCountInString(c.Text) }

// Aggregate serializes news, prices and financials under labeled headers
// and keeps at most limit runes from the front. A non-positive limit uses
// DefaultContextCap.
func Aggregate(news []models.NewsItem, prices models.PriceSeries, fin models.FinancialStatements, limit int) AggregatedContext {
	if limit <= 0 {
		limit = DefaultContextCap
	}
	full := Serialize(news, prices, fin)
	text, truncated := truncateRunes(full, limit)
	return AggregatedContext{
		Text:       text,
		Cap:        limit,
		FullLength: utf8.RuneCountInString(full),
		Truncated:  truncated,
	}
}

// Serialize returns the untruncated context.
func Serialize(news []models.NewsItem, prices models.PriceSeries, fin models.FinancialStatements) string {
	var b strings.Builder
	writeNews(&b, news)
	writePrices(&b, prices)
	writeStatement(&b, SectionBalanceSheet, fin.BalanceSheet)
	writeStatement(&b, SectionCashFlow, fin.CashFlow)
	writeStatement(&b, SectionIncomeStatement, fin.IncomeStatement)
	writeStatement(&b, SectionValuationMeasures, fin.ValuationMeasures)
	return b.String()
}

func writeNews(b *strings.Builder, news []models.NewsItem) {
	b.WriteString(SectionNews)
	b.WriteByte('\n')
	if len(news) == 0 {
		b.WriteString(NoNewsMarker)
		b.WriteByte('\n')
		return
	}
	for _, n := range news {
		fmt.Fprintf(b, "Title: %s\n", orDefault(n.Title, "No title"))
		fmt.Fprintf(b, "Link: %s\n", orDefault(n.Link, "No link"))
		fmt.Fprintf(b, "Date: %s\n", orDefault(n.DisplayDate(), "No date"))
		if n.Sentiment != nil {
			fmt.Fprintf(b, "Sentiment: %s (%s)\n",
				strconv.FormatFloat(n.Sentiment.Compound, 'f', 4, 64), n.Sentiment.Label())
		}
		b.WriteByte('\n')
	}
}

func writePrices(b *strings.Builder, s models.PriceSeries) {
	b.WriteByte('\n')
	fmt.Fprintf(b, SectionStockEvolution, s.Ticker)
	b.WriteByte('\n')
	if s.IsEmpty() {
		b.WriteString(noDataMarker)
		b.WriteByte('\n')
		return
	}
	b.WriteString("Date | Open | High | Low | Close | Volume\n")
	for _, bar := range s.Bars {
		fmt.Fprintf(b, "%s | %.2f | %.2f | %.2f | %.2f | %d\n",
			utils.FormatDate(bar.Date), bar.Open, bar.High, bar.Low, bar.Close, bar.Volume)
	}
}

func writeStatement(b *strings.Builder, title string, t models.StatementTable) {
	b.WriteByte('\n')
	b.WriteString(title)
	b.WriteByte('\n')
	if t.IsEmpty() {
		b.WriteString(noDataMarker)
		b.WriteByte('\n')
		return
	}
	b.WriteString("Item")
	for _, p := range t.Periods {
		b.WriteString(" | ")
		b.WriteString(p)
	}
	b.WriteByte('\n')
	for _, row := range t.Rows {
		b.WriteString(row.Label)
		for _, p := range t.Periods {
			b.WriteString(" | ")
			if v, ok := row.Values[p]; ok {
				b.WriteString(v.String())
			} else {
				b.WriteString("-")
			}
		}
		b.WriteByte('\n')
	}
}

// truncateRunes returns the first n runes of s.
func truncateRunes(s string, n int) (string, bool) {
	if utf8.RuneCountInString(s) <= n {
		return s, false
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos], true
		}
		i++
	}
	return s, false
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
