package sentiment

// Normalize maps value into [0,1] linearly over [lo,hi], clamping outside
// the range. Returns 0 when the range is empty or inverted.
func Normalize(value, lo, hi float64) float64 {
	if hi <= lo {
		return 0
	}
	return clamp((value-lo)/(hi-lo), 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
