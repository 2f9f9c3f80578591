package models

import "github.com/shopspring/decimal"

// StatementTable is a tabular financial statement keyed by reporting period.
// Periods are ordered oldest first.
type StatementTable struct {
	Periods []string       `json:"periods"`
	Rows    []StatementRow `json:"rows"`
}

// StatementRow is one line item of a statement, e.g. "Total Revenue".
type StatementRow struct {
	Label  string                     `json:"label"`
	Values map[string]decimal.Decimal `json:"values"` // period → reported amount
}

// IsEmpty reports whether the table carries no line items.
func (t StatementTable) IsEmpty() bool { return len(t.Rows) == 0 }

// Value returns the amount reported for label in period.
func (t StatementTable) Value(label, period string) (decimal.Decimal, bool) {
	for _, r := range t.Rows {
		if r.Label == label {
			v, ok := r.Values[period]
			return v, ok
		}
	}
	return decimal.Zero, false
}

// FinancialStatements bundles the four statements fetched for a ticker.
// A missing statement is an empty table, never nil.
type FinancialStatements struct {
	Ticker            string         `json:"ticker"`
	BalanceSheet      StatementTable `json:"balance_sheet"`
	CashFlow          StatementTable `json:"cash_flow"`
	IncomeStatement   StatementTable `json:"income_statement"`
	ValuationMeasures StatementTable `json:"valuation_measures"`
}

// IsEmpty reports whether every statement is empty.
func (f FinancialStatements) IsEmpty() bool {
	return f.BalanceSheet.IsEmpty() && f.CashFlow.IsEmpty() &&
		f.IncomeStatement.IsEmpty() && f.ValuationMeasures.IsEmpty()
}

// Missing returns the names of empty statements.
func (f FinancialStatements) Missing() []string {
	var out []string
	if f.BalanceSheet.IsEmpty() {
		out = append(out, "balance_sheet")
	}
	if f.CashFlow.IsEmpty() {
		out = append(out, "cash_flow")
	}
	if f.IncomeStatement.IsEmpty() {
		out = append(out, "income_statement")
	}
	if f.ValuationMeasures.IsEmpty() {
		out = append(out, "valuation_measures")
	}
	return out
}
