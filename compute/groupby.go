package compute

import (
	"fmt"
	"sort"

	"github.com/apache/arrow-go/v18/arrow/array"
)

// GroupByResult holds one aggregate per distinct key, with keys sorted
// ascending.
type GroupByResult struct {
	Keys       []int32
	Aggregates []float64
}

func sortedKeys(groups map[int32]struct{}) []int32 {
	keys := make([]int32, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// GroupBySumInt32 sums values per key.
func GroupBySumInt32(keys *array.Int32, values *array.Int32) (*GroupByResult, error) {
	if keys.Len() != values.Len() {
		return nil, fmt.Errorf("%w: keys %d, values %d", ErrLengthMismatch, keys.Len(), values.Len())
	}

	rawKeys := keys.Int32Values()
	rawValues := values.Int32Values()

	sums := make(map[int32]int64)
	present := make(map[int32]struct{})
	for i, k := range rawKeys {
		sums[k] += int64(rawValues[i])
		present[k] = struct{}{}
	}

	resultKeys := sortedKeys(present)
	aggregates := make([]float64, len(resultKeys))
	for i, k := range resultKeys {
		aggregates[i] = float64(sums[k])
	}

	return &GroupByResult{Keys: resultKeys, Aggregates: aggregates}, nil
}

// GroupByMeanInt32 averages values per key.
func GroupByMeanInt32(keys *array.Int32, values *array.Int32) (*GroupByResult, error) {
	if keys.Len() != values.Len() {
		return nil, fmt.Errorf("%w: keys %d, values %d", ErrLengthMismatch, keys.Len(), values.Len())
	}

	rawKeys := keys.Int32Values()
	rawValues := values.Int32Values()

	sums := make(map[int32]int64)
	counts := make(map[int32]int)
	present := make(map[int32]struct{})
	for i, k := range rawKeys {
		sums[k] += int64(rawValues[i])
		counts[k]++
		present[k] = struct{}{}
	}

	resultKeys := sortedKeys(present)
	aggregates := make([]float64, len(resultKeys))
	for i, k := range resultKeys {
		aggregates[i] = float64(sums[k]) / float64(counts[k])
	}

	return &GroupByResult{Keys: resultKeys, Aggregates: aggregates}, nil
}

// GroupByCountInt32 counts occurrences per key.
func GroupByCountInt32(keys *array.Int32) *GroupByResult {
	rawKeys := keys.Int32Values()

	counts := make(map[int32]int)
	present := make(map[int32]struct{})
	for _, k := range rawKeys {
		counts[k]++
		present[k] = struct{}{}
	}

	resultKeys := sortedKeys(present)
	aggregates := make([]float64, len(resultKeys))
	for i, k := range resultKeys {
		aggregates[i] = float64(counts[k])
	}

	return &GroupByResult{Keys: resultKeys, Aggregates: aggregates}
}

// GroupByMinInt32 takes the minimum value per key.
func GroupByMinInt32(keys *array.Int32, values *array.Int32) (*GroupByResult, error) {
	return groupByExtremeInt32(keys, values, func(a, b int32) bool { return a < b })
}

// GroupByMaxInt32 takes the maximum value per key.
func GroupByMaxInt32(keys *array.Int32, values *array.Int32) (*GroupByResult, error) {
	return groupByExtremeInt32(keys, values, func(a, b int32) bool { return a > b })
}

func groupByExtremeInt32(keys *array.Int32, values *array.Int32, better func(a, b int32) bool) (*GroupByResult, error) {
	if keys.Len() != values.Len() {
		return nil, fmt.Errorf("%w: keys %d, values %d", ErrLengthMismatch, keys.Len(), values.Len())
	}

	rawKeys := keys.Int32Values()
	rawValues := values.Int32Values()

	extremes := make(map[int32]int32)
	present := make(map[int32]struct{})
	for i, k := range rawKeys {
		v := rawValues[i]
		if cur, ok := extremes[k]; !ok || better(v, cur) {
			extremes[k] = v
		}
		present[k] = struct{}{}
	}

	resultKeys := sortedKeys(present)
	aggregates := make([]float64, len(resultKeys))
	for i, k := range resultKeys {
		aggregates[i] = float64(extremes[k])
	}

	return &GroupByResult{Keys: resultKeys, Aggregates: aggregates}, nil
}

// GroupBySumFloat64 sums float64 values per int32 key.
func GroupBySumFloat64(keys *array.Int32, values *array.Float64) (*GroupByResult, error) {
	if keys.Len() != values.Len() {
		return nil, fmt.Errorf("%w: keys %d, values %d", ErrLengthMismatch, keys.Len(), values.Len())
	}

	rawKeys := keys.Int32Values()
	rawValues := values.Float64Values()

	sums := make(map[int32]float64)
	present := make(map[int32]struct{})
	for i, k := range rawKeys {
		sums[k] += rawValues[i]
		present[k] = struct{}{}
	}

	resultKeys := sortedKeys(present)
	aggregates := make([]float64, len(resultKeys))
	for i, k := range resultKeys {
		aggregates[i] = sums[k]
	}

	return &GroupByResult{Keys: resultKeys, Aggregates: aggregates}, nil
}

// GroupByMeanFloat64 averages float64 values per int32 key.
func GroupByMeanFloat64(keys *array.Int32, values *array.Float64) (*GroupByResult, error) {
	if keys.Len() != values.Len() {
		return nil, fmt.Errorf("%w: keys %d, values %d", ErrLengthMismatch, keys.Len(), values.Len())
	}

	rawKeys := keys.Int32Values()
	rawValues := values.Float64Values()

	sums := make(map[int32]float64)
	counts := make(map[int32]int)
	present := make(map[int32]struct{})
	for i, k := range rawKeys {
		sums[k] += rawValues[i]
		counts[k]++
		present[k] = struct{}{}
	}

	resultKeys := sortedKeys(present)
	aggregates := make([]float64, len(resultKeys))
	for i, k := range resultKeys {
		aggregates[i] = sums[k] / float64(counts[k])
	}

	return &GroupByResult{Keys: resultKeys, Aggregates: aggregates}, nil
}

// MultiAggResult holds several aggregates per distinct key, with keys
// sorted ascending.
type MultiAggResult struct {
	Keys  []int32
	Sum   []float64
	Mean  []float64
	Min   []float64
	Max   []float64
	Count []int
}

// GroupByMultiInt32 computes sum, mean, min, max and count per key in
// a single pass.
func GroupByMultiInt32(keys *array.Int32, values *array.Int32) (*MultiAggResult, error) {
	if keys.Len() != values.Len() {
		return nil, fmt.Errorf("%w: keys %d, values %d", ErrLengthMismatch, keys.Len(), values.Len())
	}

	type stats struct {
		sum   int64
		count int
		min   int32
		max   int32
	}

	rawKeys := keys.Int32Values()
	rawValues := values.Int32Values()

	groups := make(map[int32]*stats)
	present := make(map[int32]struct{})
	for i, k := range rawKeys {
		v := rawValues[i]
		s, ok := groups[k]
		if !ok {
			groups[k] = &stats{sum: int64(v), count: 1, min: v, max: v}
		} else {
			s.sum += int64(v)
			s.count++
			if v < s.min {
				s.min = v
			}
			if v > s.max {
				s.max = v
			}
		}
		present[k] = struct{}{}
	}

	resultKeys := sortedKeys(present)
	result := &MultiAggResult{
		Keys:  resultKeys,
		Sum:   make([]float64, len(resultKeys)),
		Mean:  make([]float64, len(resultKeys)),
		Min:   make([]float64, len(resultKeys)),
		Max:   make([]float64, len(resultKeys)),
		Count: make([]int, len(resultKeys)),
	}

	for i, k := range resultKeys {
		s := groups[k]
		result.Sum[i] = float64(s.sum)
		result.Mean[i] = float64(s.sum) / float64(s.count)
		result.Min[i] = float64(s.min)
		result.Max[i] = float64(s.max)
		result.Count[i] = s.count
	}

	return result, nil
}
