package technical

// SMA returns the simple moving average of data. Entries before the first
// full window are zero; nil is returned when data is shorter than period.
func SMA(data []float64, period int) []float64 {
	n := len(data)
	if period <= 0 || n < period {
		return nil
	}

	out := make([]float64, n)
	sum := 0.0
	for i, v := range data {
		sum += v
		if i >= period {
			sum -= data[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA returns the exponential moving average of data, seeded with the SMA
// of the first window.
func EMA(data []float64, period int) []float64 {
	n := len(data)
	if period <= 0 || n < period {
		return nil
	}

	out := make([]float64, n)
	k := 2.0 / float64(period+1)
	sum := 0.0
	for _, v := range data[:period] {
		sum += v
	}
	out[period-1] = sum / float64(period)
	for i := period; i < n; i++ {
		out[i] = data[i]*k + out[i-1]*(1-k)
	}
	return out
}

func latest(vals []float64) (float64, bool) {
	if len(vals) == 0 {
		return 0, false
	}
	return vals[len(vals)-1], true
}
