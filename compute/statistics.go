package compute

import (
	"fmt"
	"math"
	"sort"

	"github.com/apache/arrow-go/v18/arrow/array"
)

// MeanInt32 returns the arithmetic mean, 0 for an empty array.
func MeanInt32(values *array.Int32) float64 {
	raw := values.Int32Values()
	if len(raw) == 0 {
		return 0
	}

	var sum int64
	for _, v := range raw {
		sum += int64(v)
	}
	return float64(sum) / float64(len(raw))
}

// MeanFloat64 returns the arithmetic mean, 0 for an empty array.
func MeanFloat64(values *array.Float64) float64 {
	raw := values.Float64Values()
	return meanSlice(raw)
}

func meanSlice(raw []float64) float64 {
	if len(raw) == 0 {
		return 0
	}

	var sum float64
	for _, v := range raw {
		sum += v
	}
	return sum / float64(len(raw))
}

// VarianceFloat64 returns the population variance, 0 for fewer than
// two values.
func VarianceFloat64(values *array.Float64) float64 {
	return varianceSlice(values.Float64Values(), 0)
}

// SampleVarianceFloat64 returns the sample variance (n-1 denominator),
// 0 for fewer than two values.
func SampleVarianceFloat64(values *array.Float64) float64 {
	return varianceSlice(values.Float64Values(), 1)
}

func varianceSlice(raw []float64, ddof int) float64 {
	if len(raw) < 2 {
		return 0
	}

	mean := meanSlice(raw)
	var sumSq float64
	for _, v := range raw {
		diff := v - mean
		sumSq += diff * diff
	}
	return sumSq / float64(len(raw)-ddof)
}

// StdDevFloat64 returns the population standard deviation.
func StdDevFloat64(values *array.Float64) float64 {
	return math.Sqrt(VarianceFloat64(values))
}

// SampleStdDevFloat64 returns the sample standard deviation.
func SampleStdDevFloat64(values *array.Float64) float64 {
	return math.Sqrt(SampleVarianceFloat64(values))
}

// CovarianceFloat64 returns the population covariance of two arrays of
// equal length.
func CovarianceFloat64(x *array.Float64, y *array.Float64) (float64, error) {
	if x.Len() != y.Len() {
		return 0, fmt.Errorf("%w: x %d, y %d", ErrLengthMismatch, x.Len(), y.Len())
	}

	rawX := x.Float64Values()
	rawY := y.Float64Values()
	if len(rawX) < 2 {
		return 0, nil
	}

	meanX := meanSlice(rawX)
	meanY := meanSlice(rawY)

	var cov float64
	for i := range rawX {
		cov += (rawX[i] - meanX) * (rawY[i] - meanY)
	}
	return cov / float64(len(rawX)), nil
}

// CorrelationFloat64 returns the Pearson correlation coefficient, 0
// when either side has zero variance.
func CorrelationFloat64(x *array.Float64, y *array.Float64) (float64, error) {
	cov, err := CovarianceFloat64(x, y)
	if err != nil {
		return 0, err
	}

	stdX := StdDevFloat64(x)
	stdY := StdDevFloat64(y)
	if stdX == 0 || stdY == 0 {
		return 0, nil
	}
	return cov / (stdX * stdY), nil
}

// SkewnessFloat64 returns the adjusted sample skewness, 0 for fewer
// than three values or zero variance.
func SkewnessFloat64(values *array.Float64) float64 {
	raw := values.Float64Values()
	if len(raw) < 3 {
		return 0
	}

	mean := meanSlice(raw)
	std := math.Sqrt(varianceSlice(raw, 0))
	if std == 0 {
		return 0
	}

	n := float64(len(raw))
	var sumCubed float64
	for _, v := range raw {
		z := (v - mean) / std
		sumCubed += z * z * z
	}
	return (n / ((n - 1) * (n - 2))) * sumCubed
}

// KurtosisFloat64 returns the adjusted sample excess kurtosis, 0 for
// fewer than four values or zero variance.
func KurtosisFloat64(values *array.Float64) float64 {
	raw := values.Float64Values()
	if len(raw) < 4 {
		return 0
	}

	mean := meanSlice(raw)
	std := math.Sqrt(varianceSlice(raw, 0))
	if std == 0 {
		return 0
	}

	n := float64(len(raw))
	var sumFourth float64
	for _, v := range raw {
		z := (v - mean) / std
		sumFourth += z * z * z * z
	}

	return (n*(n+1)/((n-1)*(n-2)*(n-3)))*sumFourth -
		3*(n-1)*(n-1)/((n-2)*(n-3))
}

// QuantileFloat64 returns the q-th quantile (nearest-rank with
// rounding), 0 for an empty array.
func QuantileFloat64(values *array.Float64, q float64) float64 {
	raw := values.Float64Values()
	if len(raw) == 0 {
		return 0
	}

	sorted := append([]float64(nil), raw...)
	sort.Float64s(sorted)

	idx := int(math.Round(q * float64(len(sorted)-1)))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// QuartilesFloat64 returns Q1, the median and Q3.
func QuartilesFloat64(values *array.Float64) (q1, q2, q3 float64) {
	q1 = QuantileFloat64(values, 0.25)
	q2 = QuantileFloat64(values, 0.50)
	q3 = QuantileFloat64(values, 0.75)
	return q1, q2, q3
}

// IQRFloat64 returns the interquartile range.
func IQRFloat64(values *array.Float64) float64 {
	q1, _, q3 := QuartilesFloat64(values)
	return q3 - q1
}

// ZScoresFloat64 returns the standardized values, all zeros for zero
// variance.
func ZScoresFloat64(values *array.Float64) []float64 {
	raw := values.Float64Values()

	mean := meanSlice(raw)
	std := math.Sqrt(varianceSlice(raw, 0))

	scores := make([]float64, len(raw))
	if std == 0 {
		return scores
	}
	for i, v := range raw {
		scores[i] = (v - mean) / std
	}
	return scores
}

// MovingAverageFloat64 returns the simple moving average over a fixed
// window, empty for invalid window sizes.
func MovingAverageFloat64(values *array.Float64, window int) []float64 {
	raw := values.Float64Values()
	if window <= 0 || window > len(raw) {
		return nil
	}

	result := make([]float64, 0, len(raw)-window+1)
	for i := 0; i+window <= len(raw); i++ {
		var sum float64
		for _, v := range raw[i : i+window] {
			sum += v
		}
		result = append(result, sum/float64(window))
	}
	return result
}

// EntropyInt32 returns the Shannon entropy in bits, 0 for an empty
// array.
func EntropyInt32(values *array.Int32) float64 {
	raw := values.Int32Values()
	if len(raw) == 0 {
		return 0
	}

	counts := make(map[int32]int)
	for _, v := range raw {
		counts[v]++
	}

	total := float64(len(raw))
	var entropy float64
	for _, count := range counts {
		p := float64(count) / total
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// CoefficientOfVariationFloat64 returns stddev/mean, 0 for a zero mean.
func CoefficientOfVariationFloat64(values *array.Float64) float64 {
	mean := MeanFloat64(values)
	if mean == 0 {
		return 0
	}
	return StdDevFloat64(values) / mean
}
