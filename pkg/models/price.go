package models

import (
	"sort"
	"time"
)

// PriceBar represents a single daily OHLCV row.
type PriceBar struct {
	Date     time.Time `json:"date"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	AdjClose float64   `json:"adj_close,omitempty"`
	Volume   int64     `json:"volume"`
}

// PriceSeries is a chronological daily price history for one ticker.
type PriceSeries struct {
	Ticker   string     `json:"ticker"`
	Currency string     `json:"currency,omitempty"`
	Period   string     `json:"period,omitempty"`
	Bars     []PriceBar `json:"bars"`
}

// Len returns the number of bars.
func (s PriceSeries) Len() int { return len(s.Bars) }

// IsEmpty reports whether the series has no bars.
func (s PriceSeries) IsEmpty() bool { return len(s.Bars) == 0 }

// First returns the earliest bar. ok is false for an empty series.
func (s PriceSeries) First() (PriceBar, bool) {
	if len(s.Bars) == 0 {
		return PriceBar{}, false
	}
	return s.Bars[0], true
}

// Last returns the most recent bar. ok is false for an empty series.
func (s PriceSeries) Last() (PriceBar, bool) {
	if len(s.Bars) == 0 {
		return PriceBar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// ChangePct returns the close-to-close change over the whole series in percent.
func (s PriceSeries) ChangePct() float64 {
	first, ok := s.First()
	if !ok || first.Close == 0 {
		return 0
	}
	last, _ := s.Last()
	return (last.Close - first.Close) / first.Close * 100
}

// Range returns the lowest low and highest high across the series.
func (s PriceSeries) Range() (low, high float64) {
	for i, b := range s.Bars {
		if i == 0 || b.Low < low {
			low = b.Low
		}
		if i == 0 || b.High > high {
			high = b.High
		}
	}
	return low, high
}

// IsChronological reports whether bars are strictly ascending by calendar day.
func (s PriceSeries) IsChronological() bool {
	for i := 1; i < len(s.Bars); i++ {
		if !DayKey(s.Bars[i-1].Date).Before(DayKey(s.Bars[i].Date)) {
			return false
		}
	}
	return true
}

// NormalizeBars sorts bars by date, drops rows without a close and keeps
// only the last row for each calendar day. The input slice is not modified.
func NormalizeBars(bars []PriceBar) []PriceBar {
	out := make([]PriceBar, 0, len(bars))
	for _, b := range bars {
		if b.Close == 0 || b.Date.IsZero() {
			continue
		}
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })

	deduped := out[:0]
	for _, b := range out {
		if n := len(deduped); n > 0 && DayKey(deduped[n-1].Date).Equal(DayKey(b.Date)) {
			deduped[n-1] = b
			continue
		}
		deduped = append(deduped, b)
	}
	return deduped
}

// DayKey truncates t to midnight UTC of its calendar day.
func DayKey(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
