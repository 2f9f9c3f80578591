package utils

import (
	"fmt"
	"strings"
	"time"
)

// Period is a standard price-history window as understood by Yahoo Finance.
type Period string

const (
	Period1d  Period = "1d"
	Period5d  Period = "5d"
	Period1mo Period = "1mo"
	Period3mo Period = "3mo"
	Period6mo Period = "6mo"
	Period1y  Period = "1y"
	Period2y  Period = "2y"
	Period5y  Period = "5y"
	Period10y Period = "10y"
	PeriodYTD Period = "ytd"
	PeriodMax Period = "max"
)

// ValidPeriods lists every accepted period, shortest first.
var ValidPeriods = []Period{
	Period1d, Period5d, Period1mo, Period3mo, Period6mo,
	Period1y, Period2y, Period5y, Period10y, PeriodYTD, PeriodMax,
}

// periodAliases accepts the spellings models tend to produce.
var periodAliases = map[string]Period{
	"1 year": Period1y, "one year": Period1y, "12mo": Period1y, "1yr": Period1y,
	"2 years": Period2y, "5 years": Period5y, "10 years": Period10y,
	"6 months": Period6mo, "3 months": Period3mo, "1 month": Period1mo,
	"1m": Period1mo, "3m": Period3mo, "6m": Period6mo,
	"1w": Period5d, "1 week": Period5d, "5 days": Period5d,
	"year to date": PeriodYTD, "all": PeriodMax,
}

// ParsePeriod validates a period string. Empty input yields the 1y default.
func ParsePeriod(s string) (Period, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Period1y, nil
	}
	for _, p := range ValidPeriods {
		if string(p) == s {
			return p, nil
		}
	}
	if p, ok := periodAliases[s]; ok {
		return p, nil
	}
	return "", fmt.Errorf("invalid period %q", s)
}

// Start returns the first calendar day covered by p when ending at now.
// PeriodMax returns the zero time.
func (p Period) Start(now time.Time) time.Time {
	switch p {
	case Period1d:
		return now.AddDate(0, 0, -1)
	case Period5d:
		return now.AddDate(0, 0, -5)
	case Period1mo:
		return now.AddDate(0, -1, 0)
	case Period3mo:
		return now.AddDate(0, -3, 0)
	case Period6mo:
		return now.AddDate(0, -6, 0)
	case Period1y:
		return now.AddDate(-1, 0, 0)
	case Period2y:
		return now.AddDate(-2, 0, 0)
	case Period5y:
		return now.AddDate(-5, 0, 0)
	case Period10y:
		return now.AddDate(-10, 0, 0)
	case PeriodYTD:
		return time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
	default:
		return time.Time{}
	}
}
