// Package fundamental derives headline ratios from reported financial
// statements for display next to a thesis.
package fundamental

import (
	"github.com/shopspring/decimal"

	"github.com/seenimoa/thesisai/pkg/models"
	"github.com/seenimoa/thesisai/pkg/utils"
)

// Statement line items as labelled by the market-data provider.
const (
	LabelRevenue         = "Total Revenue"
	LabelGrossProfit     = "Gross Profit"
	LabelOperatingIncome = "Operating Income"
	LabelNetIncome       = "Net Income"
	LabelOperatingCash   = "Total Cash From Operating Activities"
	LabelCapex           = "Capital Expenditures"
	LabelTotalLiab       = "Total Liab"
	LabelEquity          = "Total Stockholder Equity"
)

var hundred = decimal.NewFromInt(100)

// Metric is one displayable ratio or amount.
type Metric struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Highlights computes the ratios that the latest reported period supports.
// Ratios whose inputs are missing or zero are skipped.
func Highlights(f models.FinancialStatements) []Metric {
	var out []Metric
	is := f.IncomeStatement

	if period, ok := latestPeriod(is); ok {
		revenue, hasRevenue := is.Value(LabelRevenue, period)
		if hasRevenue {
			out = append(out, Metric{"Revenue (" + period + ")", utils.FormatCompact(revenue.InexactFloat64())})
		}
		if prev, ok := previousPeriod(is); ok && hasRevenue {
			if g, ok := growth(is, LabelRevenue, prev, period); ok {
				out = append(out, Metric{"Revenue growth", pct(g)})
			}
		}
		for _, m := range []struct{ name, label string }{
			{"Gross margin", LabelGrossProfit},
			{"Operating margin", LabelOperatingIncome},
			{"Net margin", LabelNetIncome},
		} {
			if r, ok := ratio(is, m.label, LabelRevenue, period); ok {
				out = append(out, Metric{m.name, pct(r.Mul(hundred))})
			}
		}
	}

	if fcf, ok := FreeCashFlow(f.CashFlow); ok {
		out = append(out, Metric{"Free cash flow", utils.FormatCompact(fcf.InexactFloat64())})
	}

	if period, ok := latestPeriod(f.BalanceSheet); ok {
		if r, ok := ratio(f.BalanceSheet, LabelTotalLiab, LabelEquity, period); ok {
			out = append(out, Metric{"Liabilities / equity", r.StringFixed(2)})
		}
	}
	return out
}

// FreeCashFlow is operating cash flow plus capital expenditures (reported
// as a negative amount) for the latest period.
func FreeCashFlow(cf models.StatementTable) (decimal.Decimal, bool) {
	period, ok := latestPeriod(cf)
	if !ok {
		return decimal.Zero, false
	}
	ocf, ok := cf.Value(LabelOperatingCash, period)
	if !ok {
		return decimal.Zero, false
	}
	capex, _ := cf.Value(LabelCapex, period)
	return ocf.Add(capex), true
}

// growth returns the percentage change of label between two periods.
func growth(t models.StatementTable, label, from, to string) (decimal.Decimal, bool) {
	a, ok := t.Value(label, from)
	if !ok || a.IsZero() {
		return decimal.Zero, false
	}
	b, ok := t.Value(label, to)
	if !ok {
		return decimal.Zero, false
	}
	return b.Sub(a).Div(a.Abs()).Mul(hundred), true
}

func ratio(t models.StatementTable, num, den, period string) (decimal.Decimal, bool) {
	n, ok := t.Value(num, period)
	if !ok {
		return decimal.Zero, false
	}
	d, ok := t.Value(den, period)
	if !ok || d.IsZero() {
		return decimal.Zero, false
	}
	return n.Div(d), true
}

// Periods are ordered oldest first.
func latestPeriod(t models.StatementTable) (string, bool) {
	if t.IsEmpty() || len(t.Periods) == 0 {
		return "", false
	}
	return t.Periods[len(t.Periods)-1], true
}

func previousPeriod(t models.StatementTable) (string, bool) {
	if len(t.Periods) < 2 {
		return "", false
	}
	return t.Periods[len(t.Periods)-2], true
}

func pct(d decimal.Decimal) string {
	return utils.FormatPct(d.InexactFloat64())
}
