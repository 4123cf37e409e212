// internal/pacing/distributions.go
package pacing

import "math"

// clippedNormal draws from N(mean, std) and clamps the result into [lo, hi].
func clippedNormal(r Rand, mean, std, lo, hi float64) float64 {
	v := mean + r.NormFloat64()*std
	return clamp(v, lo, hi)
}

// gammaSample draws from Gamma(shape, scale) using Marsaglia and Tsang.
// Shapes below one are boosted with the usual U^(1/shape) correction.
func gammaSample(r Rand, shape, scale float64) float64 {
	if shape <= 0 || scale <= 0 {
		return 0
	}
	if shape < 1 {
		u := r.Float64()
		return gammaSample(r, shape+1, scale) * math.Pow(u, 1/shape)
	}

	d := shape - 1.0/3.0
	c := 1 / math.Sqrt(9*d)
	for {
		x := r.NormFloat64()
		v := 1 + c*x
		if v <= 0 {
			continue
		}
		v = v * v * v
		u := r.Float64()
		x2 := x * x
		if u < 1-0.0331*x2*x2 {
			return d * v * scale
		}
		if u > 0 && math.Log(u) < 0.5*x2+d*(1-v+math.Log(v)) {
			return d * v * scale
		}
	}
}

// betaSample draws from Beta(a, b) as X/(X+Y) with X~Gamma(a), Y~Gamma(b).
func betaSample(r Rand, a, b float64) float64 {
	x := gammaSample(r, a, 1)
	y := gammaSample(r, b, 1)
	if x+y == 0 {
		return 0.5
	}
	return x / (x + y)
}

// uniform draws from [lo, hi).
func uniform(r Rand, lo, hi float64) float64 {
	return lo + r.Float64()*(hi-lo)
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
