package compute

import (
	"errors"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
)

func TestFilterInt32(t *testing.T) {
	values := int32Array(t, []int32{1, 2, 3, 4, 5})
	defer values.Release()
	mask := boolArray(t, []bool{true, false, true, false, true})
	defer mask.Release()

	out, err := FilterInt32(memory.DefaultAllocator, values, mask)
	if err != nil {
		t.Fatalf("FilterInt32 failed: %v", err)
	}
	defer out.Release()

	if !equalInt32(out.Int32Values(), []int32{1, 3, 5}) {
		t.Errorf("expected [1 3 5], got %v", out.Int32Values())
	}
}

func TestFilterInt32LengthMismatch(t *testing.T) {
	values := int32Array(t, []int32{1, 2, 3})
	defer values.Release()
	mask := boolArray(t, []bool{true, false})
	defer mask.Release()

	_, err := FilterInt32(memory.DefaultAllocator, values, mask)
	if !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("expected ErrLengthMismatch, got %v", err)
	}
}

func TestFilterFloat64(t *testing.T) {
	values := float64Array(t, []float64{1.5, 2.5, 3.5})
	defer values.Release()
	mask := boolArray(t, []bool{false, true, true})
	defer mask.Release()

	out, err := FilterFloat64(memory.DefaultAllocator, values, mask)
	if err != nil {
		t.Fatalf("FilterFloat64 failed: %v", err)
	}
	defer out.Release()

	if !equalFloat64(out.Float64Values(), []float64{2.5, 3.5}, 0) {
		t.Errorf("expected [2.5 3.5], got %v", out.Float64Values())
	}
}

func TestFilterString(t *testing.T) {
	values := stringArray(t, []string{"a", "b", "c"})
	defer values.Release()
	mask := boolArray(t, []bool{true, false, true})
	defer mask.Release()

	out, err := FilterString(memory.DefaultAllocator, values, mask)
	if err != nil {
		t.Fatalf("FilterString failed: %v", err)
	}
	defer out.Release()

	if out.Len() != 2 || out.Value(0) != "a" || out.Value(1) != "c" {
		t.Errorf("expected [a c], got length %d", out.Len())
	}
}

func TestFilterAllFalse(t *testing.T) {
	values := int32Array(t, []int32{1, 2, 3})
	defer values.Release()
	mask := boolArray(t, []bool{false, false, false})
	defer mask.Release()

	out, err := FilterInt32(memory.DefaultAllocator, values, mask)
	if err != nil {
		t.Fatalf("FilterInt32 failed: %v", err)
	}
	defer out.Release()

	if out.Len() != 0 {
		t.Errorf("expected empty result, got %d values", out.Len())
	}
}

func TestTakeInt32(t *testing.T) {
	values := int32Array(t, []int32{10, 20, 30, 40})
	defer values.Release()

	out, err := TakeInt32(memory.DefaultAllocator, values, []int{3, 0, 2})
	if err != nil {
		t.Fatalf("TakeInt32 failed: %v", err)
	}
	defer out.Release()

	if !equalInt32(out.Int32Values(), []int32{40, 10, 30}) {
		t.Errorf("expected [40 10 30], got %v", out.Int32Values())
	}
}

func TestTakeInt32OutOfBounds(t *testing.T) {
	values := int32Array(t, []int32{10, 20})
	defer values.Release()

	_, err := TakeInt32(memory.DefaultAllocator, values, []int{0, 5})
	if !errors.Is(err, ErrIndexOutOfBounds) {
		t.Errorf("expected ErrIndexOutOfBounds, got %v", err)
	}

	_, err = TakeInt32(memory.DefaultAllocator, values, []int{-1})
	if !errors.Is(err, ErrIndexOutOfBounds) {
		t.Errorf("expected ErrIndexOutOfBounds for negative index, got %v", err)
	}
}

func TestTakeFloat64Repeated(t *testing.T) {
	values := float64Array(t, []float64{1.0, 2.0, 3.0})
	defer values.Release()

	out, err := TakeFloat64(memory.DefaultAllocator, values, []int{1, 1, 1})
	if err != nil {
		t.Fatalf("TakeFloat64 failed: %v", err)
	}
	defer out.Release()

	if !equalFloat64(out.Float64Values(), []float64{2.0, 2.0, 2.0}, 0) {
		t.Errorf("expected [2 2 2], got %v", out.Float64Values())
	}
}
