// Package sentiment scores trading pairs with the pump heuristic: a volume
// anomaly term blended with momentum indicators when enough history exists,
// and a volume/price fallback otherwise.
package sentiment

import "math"

// Input carries one symbol's market state for scoring.
type Input struct {
	Symbol             string
	Volume             float64
	PriceChangePercent float64
	Closes             []float64
}

// Method identifies which formula produced a score.
type Method string

const (
	// MethodIndicators blends volume with RSI, stochastic RSI and MACD.
	MethodIndicators Method = "indicators"
	// MethodVolume is the volume/price fallback for thin history.
	MethodVolume Method = "volume_fallback"
	// MethodNeutral is the guard result when the cross-sectional average
	// volume is zero and spikes are undefined.
	MethodNeutral Method = "neutral"
)

// Breakdown is a composite score with its per-component parts. Parts are
// reported for observability; not every part contributes to Score (the
// price term under MethodIndicators is computed but excluded from the sum).
type Breakdown struct {
	Score  float64            `json:"score"`
	Parts  map[string]float64 `json:"parts,omitempty"`
	Method Method             `json:"method"`
}

const (
	weightVolume   = 0.4
	weightStochRSI = 0.2
	weightMACD     = 0.2
	weightRSI      = 0.2

	fallbackWeightVolume = 0.7
	fallbackWeightPrice  = 0.3
	maxConfidenceBoost   = 0.2

	rsiPeriod  = 14
	macdFast   = 12
	macdSlow   = 26
	macdSignal = 9

	// minIndicatorHistory gates the indicator formula. Below it the
	// fallback runs instead.
	minIndicatorHistory = 14

	neutralScore = 0.5
)

type Calculator struct{}

func NewCalculator() *Calculator {
	return &Calculator{}
}

// Score computes the pump sentiment for one symbol against the
// cross-sectional average volume of the cycle's snapshot batch. ok is false
// when no score could be produced; the caller treats that as "no signal".
func (c *Calculator) Score(in Input, avgVolume float64) (Breakdown, bool) {
	if avgVolume == 0 {
		// Volume spikes are undefined without a baseline; answer neutral
		// instead of dividing by zero.
		return Breakdown{Score: neutralScore, Method: MethodNeutral}, true
	}
	if len(in.Closes) < minIndicatorHistory {
		return c.scoreByVolume(in, avgVolume), true
	}
	return c.scoreByIndicators(in, avgVolume), true
}

func (c *Calculator) scoreByIndicators(in Input, avgVolume float64) Breakdown {
	spike := (in.Volume - avgVolume) / avgVolume
	volumeSentiment := clamp((spike+1)/2, 0, 1)

	rsi := rsiSeries(in.Closes, rsiPeriod)
	rsiLast := rsi[len(rsi)-1]
	stochLast := stochRSILast(rsi)
	macdLine, signalLine := macdLines(in.Closes, macdFast, macdSlow, macdSignal)
	macdLast := macdLine[len(macdLine)-1]
	signalLast := signalLine[len(signalLine)-1]

	// Undefined (NaN) indicator values compare false against every
	// threshold and land in the neutral or zero branches.
	stochScore := 0.5
	if stochLast < 20 {
		stochScore = 1
	} else if stochLast > 80 {
		stochScore = 0
	}
	macdScore := 0.0
	if macdLast > signalLast {
		macdScore = 1
	}
	rsiScore := 0.5
	if rsiLast < 30 {
		rsiScore = 1
	} else if rsiLast > 70 {
		rsiScore = 0
	}

	// Reported in Parts but deliberately excluded from the weighted sum.
	priceSentiment := clamp(in.PriceChangePercent/100, 0, 1)

	score := weightVolume*volumeSentiment +
		weightStochRSI*stochScore +
		weightMACD*macdScore +
		weightRSI*rsiScore

	return Breakdown{
		Score: score,
		Parts: map[string]float64{
			"volume":    volumeSentiment,
			"stoch_rsi": stochScore,
			"macd":      macdScore,
			"rsi":       rsiScore,
			"price":     priceSentiment,
		},
		Method: MethodIndicators,
	}
}

func (c *Calculator) scoreByVolume(in Input, avgVolume float64) Breakdown {
	spike := (in.Volume - avgVolume) / avgVolume
	volumeSentiment := clamp((spike+1)/2, 0, 1)
	priceSentiment := Normalize(in.PriceChangePercent, 0, 100)

	var boost float64
	if spike > 2 {
		boost += 0.1
	}
	if math.Abs(in.PriceChangePercent) > 10 {
		boost += 0.1
	}
	if boost > maxConfidenceBoost {
		boost = maxConfidenceBoost
	}

	score := fallbackWeightVolume*volumeSentiment +
		fallbackWeightPrice*priceSentiment +
		boost
	// Capped above only; there is no floor at zero.
	if score > 1 {
		score = 1
	}

	return Breakdown{
		Score: score,
		Parts: map[string]float64{
			"volume": volumeSentiment,
			"price":  priceSentiment,
			"boost":  boost,
		},
		Method: MethodVolume,
	}
}
