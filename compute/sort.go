package compute

import (
	"sort"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Order selects the direction of a sort.
type Order int

const (
	Ascending Order = iota
	Descending
)

// SortInt32 returns a new array with the values sorted.
func SortInt32(mem memory.Allocator, values *array.Int32, order Order) *array.Int32 {
	out := append([]int32(nil), values.Int32Values()...)
	sort.Slice(out, func(i, j int) bool {
		if order == Descending {
			return out[i] > out[j]
		}
		return out[i] < out[j]
	})

	b := array.NewInt32Builder(mem)
	defer b.Release()
	b.AppendValues(out, nil)
	return b.NewInt32Array()
}

// SortInt64 returns a new array with the values sorted.
func SortInt64(mem memory.Allocator, values *array.Int64, order Order) *array.Int64 {
	out := append([]int64(nil), values.Int64Values()...)
	sort.Slice(out, func(i, j int) bool {
		if order == Descending {
			return out[i] > out[j]
		}
		return out[i] < out[j]
	})

	b := array.NewInt64Builder(mem)
	defer b.Release()
	b.AppendValues(out, nil)
	return b.NewInt64Array()
}

// SortFloat64 returns a new array with the values sorted. NaN ordering
// is unspecified.
func SortFloat64(mem memory.Allocator, values *array.Float64, order Order) *array.Float64 {
	out := append([]float64(nil), values.Float64Values()...)
	sort.Slice(out, func(i, j int) bool {
		if order == Descending {
			return out[i] > out[j]
		}
		return out[i] < out[j]
	})

	b := array.NewFloat64Builder(mem)
	defer b.Release()
	b.AppendValues(out, nil)
	return b.NewFloat64Array()
}

// ArgsortInt32 returns the indices that would sort the array ascending.
func ArgsortInt32(values *array.Int32) []int {
	raw := values.Int32Values()
	indices := make([]int, len(raw))
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(i, j int) bool {
		return raw[indices[i]] < raw[indices[j]]
	})
	return indices
}

// ArgsortFloat64 returns the indices that would sort the array ascending.
func ArgsortFloat64(values *array.Float64) []int {
	raw := values.Float64Values()
	indices := make([]int, len(raw))
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(i, j int) bool {
		return raw[indices[i]] < raw[indices[j]]
	})
	return indices
}

// MedianInt32 returns the median of the array, 0 for an empty array.
func MedianInt32(values *array.Int32) float64 {
	raw := values.Int32Values()
	if len(raw) == 0 {
		return 0
	}

	sorted := append([]int32(nil), raw...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	n := len(sorted)
	if n%2 == 0 {
		return (float64(sorted[n/2-1]) + float64(sorted[n/2])) / 2
	}
	return float64(sorted[n/2])
}

// MedianFloat64 returns the median of the array, 0 for an empty array.
func MedianFloat64(values *array.Float64) float64 {
	raw := values.Float64Values()
	if len(raw) == 0 {
		return 0
	}

	sorted := append([]float64(nil), raw...)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}
