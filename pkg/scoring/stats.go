package scoring

import "math"

// slopeEpsilon guards the OLS denominator against degenerate inputs.
const slopeEpsilon = 1e-10

// Average returns the arithmetic mean of values, 0 for an empty slice.
func Average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Stdev returns the sample standard deviation of values.
// Fewer than two points yield 0.
func Stdev(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	mean := Average(values)
	sumSq := 0.0
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// Slope returns the ordinary-least-squares slope of values against
// their index (0..n-1). Callers must pass chronological order when the
// sign of the slope matters. Fewer than two points, or a degenerate
// design matrix, yield 0.
func Slope(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}

	denom := float64(n)*sumXX - sumX*sumX
	if math.Abs(denom) < slopeEpsilon {
		return 0
	}
	return (float64(n)*sumXY - sumX*sumY) / denom
}

// PercentileRank returns the mid-rank percentile of value within
// population: the fraction strictly below plus half the fraction equal.
// An empty population ranks at 0.5.
func PercentileRank(value float64, population []float64) float64 {
	if len(population) == 0 {
		return 0.5
	}

	below, equal := 0, 0
	for _, v := range population {
		switch {
		case v < value:
			below++
		case v == value:
			equal++
		}
	}

	return (float64(below) + 0.5*float64(equal)) / float64(len(population))
}
