package technical

import (
	"math"
	"testing"
	"time"

	"github.com/seenimoa/thesisai/pkg/models"
)

// makeBars generates a synthetic daily series moving by trend per day.
func makeBars(n int, base, trend float64) []models.PriceBar {
	bars := make([]models.PriceBar, n)
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	price := base
	for i := range bars {
		bars[i] = models.PriceBar{
			Date:   start.AddDate(0, 0, i),
			Open:   price,
			High:   price + 2,
			Low:    price - 2,
			Close:  price + trend,
			Volume: 1_000_000,
		}
		price += trend
	}
	return bars
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestSMA(t *testing.T) {
	got := SMA([]float64{1, 2, 3, 4, 5}, 3)
	want := []float64{0, 0, 2, 3, 4}
	for i := range want {
		if !near(got[i], want[i]) {
			t.Fatalf("SMA = %v, want %v", got, want)
		}
	}
	if SMA([]float64{1, 2}, 3) != nil {
		t.Error("SMA should be nil for short input")
	}
}

func TestEMASeededWithSMA(t *testing.T) {
	got := EMA([]float64{2, 4, 6, 8}, 3)
	if !near(got[2], 4) {
		t.Errorf("seed = %v, want 4", got[2])
	}
	// k = 0.5
	if !near(got[3], 6) {
		t.Errorf("EMA[3] = %v, want 6", got[3])
	}
}

func TestRSI(t *testing.T) {
	up := Closes(makeBars(40, 100, 1.5))
	if v, _ := latest(RSI(up, 14)); v != 100 {
		t.Errorf("RSI in a straight uptrend = %.2f, want 100", v)
	}

	down := Closes(makeBars(40, 200, -1))
	if v, _ := latest(RSI(down, 14)); v > 1 {
		t.Errorf("RSI in a downtrend = %.2f, want ~0", v)
	}

	if RSI(up[:10], 14) != nil {
		t.Error("RSI should be nil for insufficient data")
	}
}

func TestVolatility(t *testing.T) {
	flat := []float64{100, 100, 100, 100}
	if v := Volatility(flat); v != 0 {
		t.Errorf("flat volatility = %v", v)
	}
	choppy := []float64{100, 110, 100, 110, 100, 110}
	if v := Volatility(choppy); v < 100 {
		t.Errorf("choppy volatility = %.1f%%, want > 100%%", v)
	}
	if Volatility([]float64{1, 2}) != 0 {
		t.Error("volatility needs at least three closes")
	}
}

func TestMaxDrawdown(t *testing.T) {
	got := MaxDrawdown([]float64{100, 120, 90, 130, 117})
	if !near(got, 25) {
		t.Errorf("MaxDrawdown = %v, want 25", got)
	}
	if MaxDrawdown(nil) != 0 {
		t.Error("empty drawdown should be 0")
	}
}

func TestCompute(t *testing.T) {
	s := Compute(models.PriceSeries{Ticker: "MSFT", Bars: makeBars(60, 300, 1)})
	if s.Bars != 60 {
		t.Fatalf("Bars = %d", s.Bars)
	}
	if s.SMA20 == nil || s.SMA50 == nil || s.EMA20 == nil || s.RSI14 == nil {
		t.Fatalf("missing indicators: %+v", s)
	}
	if got := s.Trend(360); got != "uptrend" {
		t.Errorf("Trend = %q, want uptrend", got)
	}

	short := Compute(models.PriceSeries{Bars: makeBars(10, 50, 1)})
	if short.SMA20 != nil || short.RSI14 != nil {
		t.Errorf("short series produced indicators: %+v", short)
	}
	if got := short.Trend(60); got != "n/a" {
		t.Errorf("Trend = %q, want n/a", got)
	}
}
