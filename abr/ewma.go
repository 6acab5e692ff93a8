// Package abr estimates available bandwidth from download samples.
package abr

import "math"

// EWMA is an exponentially weighted moving average where each sample carries
// its own weight. The estimate is corrected for the zero starting value.
type EWMA struct {
	alpha       float64
	estimate    float64
	totalWeight float64
}

// NewEWMA returns an average whose samples lose half their influence after
// halfLife units of weight. A zero half-life keeps only the latest sample.
func NewEWMA(halfLife float64) *EWMA {
	e := &EWMA{}
	if halfLife > 0 {
		e.alpha = math.Exp(math.Log(0.5) / halfLife)
	}
	return e
}

// Sample adds value with the given weight.
func (e *EWMA) Sample(weight, value float64) {
	adjAlpha := math.Pow(e.alpha, weight)
	e.estimate = value*(1-adjAlpha) + adjAlpha*e.estimate
	e.totalWeight += weight
}

// TotalWeight returns the sum of sample weights.
func (e *EWMA) TotalWeight() float64 {
	return e.totalWeight
}

// Estimate returns the current average.
func (e *EWMA) Estimate() float64 {
	if e.alpha == 0 {
		return e.estimate
	}
	zeroFactor := 1 - math.Pow(e.alpha, e.totalWeight)
	if zeroFactor == 0 {
		return 0
	}
	return e.estimate / zeroFactor
}
