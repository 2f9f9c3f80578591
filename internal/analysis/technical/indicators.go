// Package technical derives summary indicators from a daily price series.
// They are shown alongside a thesis and are never fed to the model.
package technical

import (
	"math"

	"github.com/seenimoa/thesisai/pkg/models"
)

// tradingDays annualizes daily volatility.
const tradingDays = 252

// RSI calculates the Relative Strength Index of closes with Wilder's
// smoothing. Values are 0–100; nil when there are not period+1 closes.
func RSI(closes []float64, period int) []float64 {
	if period <= 0 {
		period = 14
	}
	n := len(closes)
	if n < period+1 {
		return nil
	}

	out := make([]float64, n)
	var gain, loss float64
	for i := 1; i <= period; i++ {
		g, l := move(closes[i-1], closes[i])
		gain += g
		loss += l
	}
	gain /= float64(period)
	loss /= float64(period)
	out[period] = rsiValue(gain, loss)

	for i := period + 1; i < n; i++ {
		g, l := move(closes[i-1], closes[i])
		gain = (gain*float64(period-1) + g) / float64(period)
		loss = (loss*float64(period-1) + l) / float64(period)
		out[i] = rsiValue(gain, loss)
	}
	return out
}

func move(prev, cur float64) (gain, loss float64) {
	d := cur - prev
	if d > 0 {
		return d, 0
	}
	return 0, -d
}

func rsiValue(gain, loss float64) float64 {
	if loss == 0 {
		return 100
	}
	return 100 - 100/(1+gain/loss)
}

// Volatility returns the annualized standard deviation of daily log
// returns, as a percentage.
func Volatility(closes []float64) float64 {
	if len(closes) < 3 {
		return 0
	}
	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] <= 0 || closes[i] <= 0 {
			continue
		}
		returns = append(returns, math.Log(closes[i]/closes[i-1]))
	}
	if len(returns) < 2 {
		return 0
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	ss := 0.0
	for _, r := range returns {
		ss += (r - mean) * (r - mean)
	}
	daily := math.Sqrt(ss / float64(len(returns)-1))
	return daily * math.Sqrt(tradingDays) * 100
}

// MaxDrawdown returns the largest peak-to-trough fall in closes as a
// positive percentage.
func MaxDrawdown(closes []float64) float64 {
	peak, worst := 0.0, 0.0
	for _, c := range closes {
		if c > peak {
			peak = c
		}
		if peak > 0 {
			if dd := (peak - c) / peak * 100; dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

// Closes extracts closing prices in bar order.
func Closes(bars []models.PriceBar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}
