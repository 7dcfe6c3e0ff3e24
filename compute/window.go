package compute

import (
	"fmt"
	"math"

	"github.com/apache/arrow-go/v18/arrow/array"
)

// RollingSumInt32 returns the sum over each full window.
func RollingSumInt32(values *array.Int32, window int) ([]int32, error) {
	raw := values.Int32Values()
	if window <= 0 || window > len(raw) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWindow, window)
	}

	result := make([]int32, 0, len(raw)-window+1)
	var sum int32
	for i := 0; i < window; i++ {
		sum += raw[i]
	}
	result = append(result, sum)

	for i := window; i < len(raw); i++ {
		sum = sum - raw[i-window] + raw[i]
		result = append(result, sum)
	}
	return result, nil
}

// RollingSumFloat64 returns the sum over each full window.
func RollingSumFloat64(values *array.Float64, window int) ([]float64, error) {
	raw := values.Float64Values()
	if window <= 0 || window > len(raw) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWindow, window)
	}

	result := make([]float64, 0, len(raw)-window+1)
	var sum float64
	for i := 0; i < window; i++ {
		sum += raw[i]
	}
	result = append(result, sum)

	for i := window; i < len(raw); i++ {
		sum = sum - raw[i-window] + raw[i]
		result = append(result, sum)
	}
	return result, nil
}

// RollingMeanFloat64 returns the mean over each full window.
func RollingMeanFloat64(values *array.Float64, window int) ([]float64, error) {
	sums, err := RollingSumFloat64(values, window)
	if err != nil {
		return nil, err
	}

	for i := range sums {
		sums[i] /= float64(window)
	}
	return sums, nil
}

// RollingMinInt32 returns the minimum over each full window.
func RollingMinInt32(values *array.Int32, window int) ([]int32, error) {
	return rollingExtremeInt32(values, window, func(a, b int32) bool { return a < b })
}

// RollingMaxInt32 returns the maximum over each full window.
func RollingMaxInt32(values *array.Int32, window int) ([]int32, error) {
	return rollingExtremeInt32(values, window, func(a, b int32) bool { return a > b })
}

func rollingExtremeInt32(values *array.Int32, window int, better func(a, b int32) bool) ([]int32, error) {
	raw := values.Int32Values()
	if window <= 0 || window > len(raw) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWindow, window)
	}

	result := make([]int32, 0, len(raw)-window+1)
	for i := 0; i+window <= len(raw); i++ {
		extreme := raw[i]
		for _, v := range raw[i+1 : i+window] {
			if better(v, extreme) {
				extreme = v
			}
		}
		result = append(result, extreme)
	}
	return result, nil
}

// RollingStdFloat64 returns the population standard deviation over
// each full window.
func RollingStdFloat64(values *array.Float64, window int) ([]float64, error) {
	raw := values.Float64Values()
	if window <= 0 || window > len(raw) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWindow, window)
	}

	result := make([]float64, 0, len(raw)-window+1)
	for i := 0; i+window <= len(raw); i++ {
		slice := raw[i : i+window]

		var sum float64
		for _, v := range slice {
			sum += v
		}
		mean := sum / float64(window)

		var sumSq float64
		for _, v := range slice {
			diff := v - mean
			sumSq += diff * diff
		}
		result = append(result, math.Sqrt(sumSq/float64(window)))
	}
	return result, nil
}

// CumSumInt32 returns the running sum.
func CumSumInt32(values *array.Int32) []int32 {
	raw := values.Int32Values()
	result := make([]int32, len(raw))

	var sum int32
	for i, v := range raw {
		sum += v
		result[i] = sum
	}
	return result
}

// CumSumFloat64 returns the running sum.
func CumSumFloat64(values *array.Float64) []float64 {
	raw := values.Float64Values()
	result := make([]float64, len(raw))

	var sum float64
	for i, v := range raw {
		sum += v
		result[i] = sum
	}
	return result
}

// CumProdInt32 returns the running product.
func CumProdInt32(values *array.Int32) []int32 {
	raw := values.Int32Values()
	result := make([]int32, len(raw))

	prod := int32(1)
	for i, v := range raw {
		prod *= v
		result[i] = prod
	}
	return result
}

// CumMaxInt32 returns the running maximum.
func CumMaxInt32(values *array.Int32) []int32 {
	raw := values.Int32Values()
	result := make([]int32, len(raw))

	max := int32(math.MinInt32)
	for i, v := range raw {
		if v > max {
			max = v
		}
		result[i] = max
	}
	return result
}

// CumMinInt32 returns the running minimum.
func CumMinInt32(values *array.Int32) []int32 {
	raw := values.Int32Values()
	result := make([]int32, len(raw))

	min := int32(math.MaxInt32)
	for i, v := range raw {
		if v < min {
			min = v
		}
		result[i] = min
	}
	return result
}

// EMAFloat64 returns the exponential moving average with smoothing
// factor alpha, empty for an empty input.
func EMAFloat64(values *array.Float64, alpha float64) []float64 {
	raw := values.Float64Values()
	if len(raw) == 0 {
		return nil
	}

	result := make([]float64, len(raw))
	ema := raw[0]
	result[0] = ema

	for i := 1; i < len(raw); i++ {
		ema = alpha*raw[i] + (1-alpha)*ema
		result[i] = ema
	}
	return result
}
