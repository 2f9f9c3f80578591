// Package utils provides ticker, period and number formatting helpers.
package utils

import (
	"regexp"
	"strings"
)

// exchangePrefixes are venue qualifiers models sometimes put in front of a symbol.
var exchangePrefixes = []string{
	"NASDAQ:", "NYSE:", "NYSEARCA:", "AMEX:", "OTC:", "LSE:", "TSX:", "NSE:", "BSE:",
}

// tickerAliases maps informal names to listed symbols.
var tickerAliases = map[string]string{
	"GOOGLE":   "GOOGL",
	"FACEBOOK": "META",
	"BRK.B":    "BRK-B",
	"BRK.A":    "BRK-A",
}

var tickerPattern = regexp.MustCompile(`^[A-Z0-9^][A-Z0-9.\-=^]{0,14}$`)

// NormalizeTicker normalizes a user- or model-supplied ticker to the symbol
// used by market-data providers: uppercased, no "$", no exchange prefix.
func NormalizeTicker(ticker string) string {
	ticker = strings.TrimSpace(strings.ToUpper(ticker))
	ticker = strings.TrimPrefix(ticker, "$")

	for _, p := range exchangePrefixes {
		if strings.HasPrefix(ticker, p) {
			ticker = strings.TrimSpace(strings.TrimPrefix(ticker, p))
			break
		}
	}

	if canonical, ok := tickerAliases[ticker]; ok {
		return canonical
	}
	return ticker
}

// IsValidTicker reports whether s looks like a listed symbol after normalization.
func IsValidTicker(s string) bool {
	return tickerPattern.MatchString(NormalizeTicker(s))
}
