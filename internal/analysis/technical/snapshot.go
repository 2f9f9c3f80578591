package technical

import "github.com/seenimoa/thesisai/pkg/models"

// Snapshot is the latest value of each indicator. A nil pointer means
// the series was too short to compute it.
type Snapshot struct {
	Bars        int      `json:"bars"`
	SMA20       *float64 `json:"sma_20,omitempty"`
	SMA50       *float64 `json:"sma_50,omitempty"`
	EMA20       *float64 `json:"ema_20,omitempty"`
	RSI14       *float64 `json:"rsi_14,omitempty"`
	Volatility  float64  `json:"volatility_pct"`
	MaxDrawdown float64  `json:"max_drawdown_pct"`
}

// Trend describes where the last close sits relative to the moving averages.
func (s Snapshot) Trend(lastClose float64) string {
	switch {
	case s.SMA20 == nil:
		return "n/a"
	case s.SMA50 != nil && lastClose > *s.SMA20 && *s.SMA20 > *s.SMA50:
		return "uptrend"
	case s.SMA50 != nil && lastClose < *s.SMA20 && *s.SMA20 < *s.SMA50:
		return "downtrend"
	case lastClose >= *s.SMA20:
		return "above 20-day average"
	default:
		return "below 20-day average"
	}
}

// Compute summarizes a price series. The series must be chronological.
func Compute(series models.PriceSeries) Snapshot {
	closes := Closes(series.Bars)
	s := Snapshot{
		Bars:        len(closes),
		Volatility:  Volatility(closes),
		MaxDrawdown: MaxDrawdown(closes),
	}
	s.SMA20 = ptr(latest(SMA(closes, 20)))
	s.SMA50 = ptr(latest(SMA(closes, 50)))
	s.EMA20 = ptr(latest(EMA(closes, 20)))
	s.RSI14 = ptr(latest(RSI(closes, 14)))
	return s
}

func ptr(v float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return &v
}
