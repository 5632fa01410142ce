// Package stats provides the numeric primitives shared by all analyzers.
// Population statistics throughout (divisor N, not N-1) to stay consistent
// across small class sizes.
package stats

import (
	"fmt"
	"math"

	"github.com/open-courseware/gradewatch/internal/domain"
)

// Mean returns the arithmetic mean of values.
// Fails with domain.ErrEmptyInput on an empty sample.
func Mean(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("%w: mean of zero samples", domain.ErrEmptyInput)
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values)), nil
}

// PopulationStdDev returns the square root of the average squared deviation
// from mean. Returns 0 for fewer than two samples.
func PopulationStdDev(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sumSq float64
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)))
}

// ZScore returns how many standard deviations value lies from mean.
// When stdDev is 0 the distribution has no spread and carries no signal,
// so the result is 0 rather than a division by zero.
func ZScore(value, mean, stdDev float64) float64 {
	if stdDev == 0 {
		return 0
	}
	return (value - mean) / stdDev
}

// CoefficientOfVariation returns stdDev / mean, a scale-free dispersion
// measure. Returns 0 when mean is 0, by the same rationale as ZScore.
func CoefficientOfVariation(stdDev, mean float64) float64 {
	if mean == 0 {
		return 0
	}
	return stdDev / mean
}

// Summarize computes the assignment-wide aggregates from total scores.
// Fails with domain.ErrEmptyInput on an empty sample.
func Summarize(scores []float64) (domain.SummaryStatistics, error) {
	mean, err := Mean(scores)
	if err != nil {
		return domain.SummaryStatistics{}, err
	}
	return domain.SummaryStatistics{
		TotalGrades:  len(scores),
		AverageScore: mean,
		StdDev:       PopulationStdDev(scores, mean),
	}, nil
}
