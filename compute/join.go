package compute

import (
	"encoding/binary"

	"github.com/apache/arrow-go/v18/arrow/array"
)

// NullIndex marks the unmatched side of a row in an outer join result.
const NullIndex = -1

// JoinResult pairs row indices from the left and right inputs. Outer
// joins use NullIndex for the unmatched side.
type JoinResult struct {
	LeftIndices  []int
	RightIndices []int
}

func buildIndexInt32(keys []int32) map[int32][]int {
	index := make(map[int32][]int, len(keys))
	for i, k := range keys {
		index[k] = append(index[k], i)
	}
	return index
}

// InnerJoinInt32 returns matching index pairs between the two key arrays.
func InnerJoinInt32(left *array.Int32, right *array.Int32) *JoinResult {
	rightIndex := buildIndexInt32(right.Int32Values())

	result := &JoinResult{}
	for leftIdx, k := range left.Int32Values() {
		for _, rightIdx := range rightIndex[k] {
			result.LeftIndices = append(result.LeftIndices, leftIdx)
			result.RightIndices = append(result.RightIndices, rightIdx)
		}
	}
	return result
}

// LeftJoinInt32 keeps every left row, pairing unmatched rows with NullIndex.
func LeftJoinInt32(left *array.Int32, right *array.Int32) *JoinResult {
	rightIndex := buildIndexInt32(right.Int32Values())

	result := &JoinResult{}
	for leftIdx, k := range left.Int32Values() {
		matches, ok := rightIndex[k]
		if !ok {
			result.LeftIndices = append(result.LeftIndices, leftIdx)
			result.RightIndices = append(result.RightIndices, NullIndex)
			continue
		}
		for _, rightIdx := range matches {
			result.LeftIndices = append(result.LeftIndices, leftIdx)
			result.RightIndices = append(result.RightIndices, rightIdx)
		}
	}
	return result
}

// RightJoinInt32 keeps every right row, pairing unmatched rows with NullIndex.
func RightJoinInt32(left *array.Int32, right *array.Int32) *JoinResult {
	leftIndex := buildIndexInt32(left.Int32Values())

	result := &JoinResult{}
	for rightIdx, k := range right.Int32Values() {
		matches, ok := leftIndex[k]
		if !ok {
			result.LeftIndices = append(result.LeftIndices, NullIndex)
			result.RightIndices = append(result.RightIndices, rightIdx)
			continue
		}
		for _, leftIdx := range matches {
			result.LeftIndices = append(result.LeftIndices, leftIdx)
			result.RightIndices = append(result.RightIndices, rightIdx)
		}
	}
	return result
}

// SemiJoinInt32 returns the indices of left rows that have a match in right.
func SemiJoinInt32(left *array.Int32, right *array.Int32) []int {
	rightSet := make(map[int32]struct{})
	for _, k := range right.Int32Values() {
		rightSet[k] = struct{}{}
	}

	var indices []int
	for i, k := range left.Int32Values() {
		if _, ok := rightSet[k]; ok {
			indices = append(indices, i)
		}
	}
	return indices
}

// AntiJoinInt32 returns the indices of left rows without a match in right.
func AntiJoinInt32(left *array.Int32, right *array.Int32) []int {
	rightSet := make(map[int32]struct{})
	for _, k := range right.Int32Values() {
		rightSet[k] = struct{}{}
	}

	var indices []int
	for i, k := range left.Int32Values() {
		if _, ok := rightSet[k]; !ok {
			indices = append(indices, i)
		}
	}
	return indices
}

// InnerJoinMultiInt32 joins on composite keys: column i of left pairs
// with column i of right, and rows match only when every key column
// matches. Both sides must have the same number of key columns and
// rectangular column lengths.
func InnerJoinMultiInt32(left, right []*array.Int32) (*JoinResult, error) {
	if len(left) == 0 || len(right) == 0 {
		return &JoinResult{}, nil
	}
	if len(left) != len(right) {
		return nil, ErrLengthMismatch
	}

	leftRows := left[0].Len()
	for _, col := range left[1:] {
		if col.Len() != leftRows {
			return nil, ErrLengthMismatch
		}
	}
	rightRows := right[0].Len()
	for _, col := range right[1:] {
		if col.Len() != rightRows {
			return nil, ErrLengthMismatch
		}
	}

	rightIndex := make(map[string][]int, rightRows)
	for i := 0; i < rightRows; i++ {
		k := compositeKeyInt32(right, i)
		rightIndex[k] = append(rightIndex[k], i)
	}

	result := &JoinResult{}
	for i := 0; i < leftRows; i++ {
		for _, rightIdx := range rightIndex[compositeKeyInt32(left, i)] {
			result.LeftIndices = append(result.LeftIndices, i)
			result.RightIndices = append(result.RightIndices, rightIdx)
		}
	}
	return result, nil
}

// compositeKeyInt32 encodes one row's key columns as a byte string
// usable as a map key.
func compositeKeyInt32(cols []*array.Int32, row int) string {
	key := make([]byte, 0, 4*len(cols))
	for _, col := range cols {
		key = binary.BigEndian.AppendUint32(key, uint32(col.Value(row)))
	}
	return string(key)
}

// InnerJoinString returns matching index pairs between two string key arrays.
func InnerJoinString(left *array.String, right *array.String) *JoinResult {
	rightIndex := make(map[string][]int, right.Len())
	for i := 0; i < right.Len(); i++ {
		k := right.Value(i)
		rightIndex[k] = append(rightIndex[k], i)
	}

	result := &JoinResult{}
	for leftIdx := 0; leftIdx < left.Len(); leftIdx++ {
		for _, rightIdx := range rightIndex[left.Value(leftIdx)] {
			result.LeftIndices = append(result.LeftIndices, leftIdx)
			result.RightIndices = append(result.RightIndices, rightIdx)
		}
	}
	return result
}
