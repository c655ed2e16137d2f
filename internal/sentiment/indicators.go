package sentiment

import "math"

// Indicator series are aligned to the input prices, with NaN entries until
// each lookback window fills: RSI from index period, the MACD line from
// index slow-1, its signal line from index slow+signal-2. Callers rely on
// NaN comparing false against every threshold.

// rsiSeries computes the Wilder-smoothed relative strength index.
func rsiSeries(prices []float64, period int) []float64 {
	out := nanSlice(len(prices))
	if period <= 0 || len(prices) < period+1 {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiFrom(avgGain, avgLoss)

	alpha := 1.0 / float64(period)
	for i := period + 1; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		var gain, loss float64
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = avgGain*(1-alpha) + gain*alpha
		avgLoss = avgLoss*(1-alpha) + loss*alpha
		out[i] = rsiFrom(avgGain, avgLoss)
	}
	return out
}

func rsiFrom(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// emaSeries computes an exponential moving average seeded with the simple
// average of the first period defined values. Leading NaN inputs (an
// indicator derived from another indicator) shift the window right.
func emaSeries(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	start := 0
	for start < len(values) && math.IsNaN(values[start]) {
		start++
	}
	if period <= 0 || len(values)-start < period {
		return out
	}

	var sum float64
	for i := start; i < start+period; i++ {
		sum += values[i]
	}
	ema := sum / float64(period)
	out[start+period-1] = ema

	k := 2.0 / float64(period+1)
	for i := start + period; i < len(values); i++ {
		ema = values[i]*k + ema*(1-k)
		out[i] = ema
	}
	return out
}

// macdLines returns the MACD line (fast EMA minus slow EMA) and its signal
// line, both aligned to prices.
func macdLines(prices []float64, fast, slow, signal int) (line, signalLine []float64) {
	fastEMA := emaSeries(prices, fast)
	slowEMA := emaSeries(prices, slow)
	line = make([]float64, len(prices))
	for i := range prices {
		line[i] = fastEMA[i] - slowEMA[i]
	}
	signalLine = emaSeries(line, signal)
	return line, signalLine
}

// stochRSILast rescales the last RSI value into [0,100] relative to the
// range of the defined RSI values. NaN when no value is defined or the
// series is flat.
func stochRSILast(rsi []float64) float64 {
	lo, hi := math.Inf(1), math.Inf(-1)
	defined := false
	for _, v := range rsi {
		if math.IsNaN(v) {
			continue
		}
		defined = true
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if !defined {
		return math.NaN()
	}
	last := rsi[len(rsi)-1]
	return 100 * (last - lo) / (hi - lo)
}

func nanSlice(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}
