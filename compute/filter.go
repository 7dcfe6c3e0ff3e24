package compute

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// FilterInt32 selects the values whose mask slot is true.
func FilterInt32(mem memory.Allocator, values *array.Int32, mask *array.Boolean) (*array.Int32, error) {
	if values.Len() != mask.Len() {
		return nil, fmt.Errorf("%w: values %d, mask %d", ErrLengthMismatch, values.Len(), mask.Len())
	}

	b := array.NewInt32Builder(mem)
	defer b.Release()

	raw := values.Int32Values()
	for i, v := range raw {
		if mask.Value(i) {
			b.Append(v)
		}
	}
	return b.NewInt32Array(), nil
}

// FilterInt64 selects the values whose mask slot is true.
func FilterInt64(mem memory.Allocator, values *array.Int64, mask *array.Boolean) (*array.Int64, error) {
	if values.Len() != mask.Len() {
		return nil, fmt.Errorf("%w: values %d, mask %d", ErrLengthMismatch, values.Len(), mask.Len())
	}

	b := array.NewInt64Builder(mem)
	defer b.Release()

	raw := values.Int64Values()
	for i, v := range raw {
		if mask.Value(i) {
			b.Append(v)
		}
	}
	return b.NewInt64Array(), nil
}

// FilterFloat64 selects the values whose mask slot is true.
func FilterFloat64(mem memory.Allocator, values *array.Float64, mask *array.Boolean) (*array.Float64, error) {
	if values.Len() != mask.Len() {
		return nil, fmt.Errorf("%w: values %d, mask %d", ErrLengthMismatch, values.Len(), mask.Len())
	}

	b := array.NewFloat64Builder(mem)
	defer b.Release()

	raw := values.Float64Values()
	for i, v := range raw {
		if mask.Value(i) {
			b.Append(v)
		}
	}
	return b.NewFloat64Array(), nil
}

// FilterString selects the values whose mask slot is true.
func FilterString(mem memory.Allocator, values *array.String, mask *array.Boolean) (*array.String, error) {
	if values.Len() != mask.Len() {
		return nil, fmt.Errorf("%w: values %d, mask %d", ErrLengthMismatch, values.Len(), mask.Len())
	}

	b := array.NewStringBuilder(mem)
	defer b.Release()

	for i := 0; i < values.Len(); i++ {
		if mask.Value(i) {
			b.Append(values.Value(i))
		}
	}
	return b.NewStringArray(), nil
}

// TakeInt32 gathers values at the given indices, in index order.
func TakeInt32(mem memory.Allocator, values *array.Int32, indices []int) (*array.Int32, error) {
	b := array.NewInt32Builder(mem)
	defer b.Release()

	raw := values.Int32Values()
	for _, idx := range indices {
		if idx < 0 || idx >= len(raw) {
			return nil, fmt.Errorf("%w: index %d, length %d", ErrIndexOutOfBounds, idx, len(raw))
		}
		b.Append(raw[idx])
	}
	return b.NewInt32Array(), nil
}

// TakeFloat64 gathers values at the given indices, in index order.
func TakeFloat64(mem memory.Allocator, values *array.Float64, indices []int) (*array.Float64, error) {
	b := array.NewFloat64Builder(mem)
	defer b.Release()

	raw := values.Float64Values()
	for _, idx := range indices {
		if idx < 0 || idx >= len(raw) {
			return nil, fmt.Errorf("%w: index %d, length %d", ErrIndexOutOfBounds, idx, len(raw))
		}
		b.Append(raw[idx])
	}
	return b.NewFloat64Array(), nil
}
