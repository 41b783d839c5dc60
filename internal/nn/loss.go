package nn

import "math"

// huber is the smooth L1 loss with a unit threshold
func huber(d float64) float64 {
	a := math.Abs(d)
	if a < 1 {
		return 0.5 * d * d
	}
	return a - 0.5
}

// huberGrad is the derivative of huber
func huberGrad(d float64) float64 {
	switch {
	case d >= 1:
		return 1
	case d <= -1:
		return -1
	default:
		return d
	}
}
