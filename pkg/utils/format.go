package utils

import (
	"fmt"
	"math"
	"strings"
)

// FormatCompact formats an amount with a K/M/B/T suffix.
// e.g., 1234567 → "1.23M", -2500000000 → "-2.5B"
func FormatCompact(amount float64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = math.Abs(amount)
	}

	switch {
	case amount >= 1e12:
		return sign + formatWithDecimals(amount/1e12) + "T"
	case amount >= 1e9:
		return sign + formatWithDecimals(amount/1e9) + "B"
	case amount >= 1e6:
		return sign + formatWithDecimals(amount/1e6) + "M"
	case amount >= 1e3:
		return sign + formatWithDecimals(amount/1e3) + "K"
	default:
		return sign + formatWithDecimals(amount)
	}
}

// FormatPct formats a percentage value with sign and suffix.
// e.g., 2.45 → "+2.45%", -1.23 → "-1.23%"
func FormatPct(pct float64) string {
	if pct >= 0 {
		return fmt.Sprintf("+%.2f%%", pct)
	}
	return fmt.Sprintf("%.2f%%", pct)
}

// FormatVolume formats an integer with thousands separators.
// e.g., 1500000 → "1,500,000"
func FormatVolume(volume int64) string {
	if volume < 0 {
		return "-" + FormatVolume(-volume)
	}
	s := fmt.Sprintf("%d", volume)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// formatWithDecimals formats a number with up to 2 decimal places,
// removing trailing zeros.
func formatWithDecimals(n float64) string {
	s := fmt.Sprintf("%.2f", n)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	return s
}
