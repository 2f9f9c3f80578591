package fundamental

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/thesisai/pkg/models"
)

func table(periods []string, rows map[string][]int64) models.StatementTable {
	t := models.StatementTable{Periods: periods}
	for label, vals := range rows {
		row := models.StatementRow{Label: label, Values: map[string]decimal.Decimal{}}
		for i, v := range vals {
			row.Values[periods[i]] = decimal.NewFromInt(v)
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func sample() models.FinancialStatements {
	periods := []string{"2022-06-30", "2023-06-30"}
	return models.FinancialStatements{
		Ticker: "MSFT",
		IncomeStatement: table(periods, map[string][]int64{
			LabelRevenue:         {200_000_000_000, 250_000_000_000},
			LabelGrossProfit:     {130_000_000_000, 175_000_000_000},
			LabelOperatingIncome: {80_000_000_000, 100_000_000_000},
			LabelNetIncome:       {70_000_000_000, 75_000_000_000},
		}),
		CashFlow: table(periods, map[string][]int64{
			LabelOperatingCash: {85_000_000_000, 90_000_000_000},
			LabelCapex:         {-20_000_000_000, -30_000_000_000},
		}),
		BalanceSheet: table(periods, map[string][]int64{
			LabelTotalLiab: {200_000_000_000, 210_000_000_000},
			LabelEquity:    {150_000_000_000, 200_000_000_000},
		}),
	}
}

func TestHighlights(t *testing.T) {
	got := map[string]string{}
	for _, m := range Highlights(sample()) {
		got[m.Name] = m.Value
	}

	assert.Equal(t, "250B", got["Revenue (2023-06-30)"])
	assert.Equal(t, "+25.00%", got["Revenue growth"])
	assert.Equal(t, "+70.00%", got["Gross margin"])
	assert.Equal(t, "+40.00%", got["Operating margin"])
	assert.Equal(t, "+30.00%", got["Net margin"])
	assert.Equal(t, "60B", got["Free cash flow"])
	assert.Equal(t, "1.05", got["Liabilities / equity"])
}

func TestHighlightsSkipsMissingInputs(t *testing.T) {
	f := models.FinancialStatements{
		IncomeStatement: table([]string{"2023-12-31"}, map[string][]int64{
			LabelRevenue:   {0},
			LabelNetIncome: {-5_000_000},
		}),
	}
	metrics := Highlights(f)
	require.Len(t, metrics, 1)
	assert.Equal(t, "Revenue (2023-12-31)", metrics[0].Name)

	assert.Empty(t, Highlights(models.FinancialStatements{}))
}

func TestFreeCashFlowWithoutCapex(t *testing.T) {
	cf := table([]string{"2023"}, map[string][]int64{LabelOperatingCash: {42}})
	fcf, ok := FreeCashFlow(cf)
	require.True(t, ok)
	assert.True(t, fcf.Equal(decimal.NewFromInt(42)))

	_, ok = FreeCashFlow(models.StatementTable{})
	assert.False(t, ok)
}
