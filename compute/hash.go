package compute

import (
	"encoding/binary"
	"math"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/zeebo/xxh3"
)

// nanBits is the canonical bit pattern hashed for every NaN so that
// all NaN values hash identically.
const nanBits = uint64(0x7FF8000000000000)

func hashUint64(v uint64) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return xxh3.Hash(buf[:])
}

// HashInt32 returns a 64-bit hash per element.
func HashInt32(values *array.Int32) []uint64 {
	raw := values.Int32Values()
	hashes := make([]uint64, len(raw))
	for i, v := range raw {
		hashes[i] = hashUint64(uint64(uint32(v)))
	}
	return hashes
}

// HashInt64 returns a 64-bit hash per element.
func HashInt64(values *array.Int64) []uint64 {
	raw := values.Int64Values()
	hashes := make([]uint64, len(raw))
	for i, v := range raw {
		hashes[i] = hashUint64(uint64(v))
	}
	return hashes
}

// HashFloat64 returns a 64-bit hash per element. Every NaN hashes to
// the same value.
func HashFloat64(values *array.Float64) []uint64 {
	raw := values.Float64Values()
	hashes := make([]uint64, len(raw))
	for i, v := range raw {
		bits := math.Float64bits(v)
		if math.IsNaN(v) {
			bits = nanBits
		}
		hashes[i] = hashUint64(bits)
	}
	return hashes
}

// HashString returns a 64-bit hash per element.
func HashString(values *array.String) []uint64 {
	hashes := make([]uint64, values.Len())
	for i := 0; i < values.Len(); i++ {
		hashes[i] = xxh3.HashString(values.Value(i))
	}
	return hashes
}

// UniqueInt32 returns the distinct values in first-seen order.
func UniqueInt32(values *array.Int32) []int32 {
	seen := make(map[int32]struct{})
	var result []int32

	for _, v := range values.Int32Values() {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			result = append(result, v)
		}
	}
	return result
}

// UniqueInt64 returns the distinct values in first-seen order.
func UniqueInt64(values *array.Int64) []int64 {
	seen := make(map[int64]struct{})
	var result []int64

	for _, v := range values.Int64Values() {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			result = append(result, v)
		}
	}
	return result
}

// UniqueCountInt32 counts the distinct values.
func UniqueCountInt32(values *array.Int32) int {
	seen := make(map[int32]struct{})
	for _, v := range values.Int32Values() {
		seen[v] = struct{}{}
	}
	return len(seen)
}

// ValueCountsInt32 returns per-value occurrence counts.
func ValueCountsInt32(values *array.Int32) map[int32]int {
	counts := make(map[int32]int)
	for _, v := range values.Int32Values() {
		counts[v]++
	}
	return counts
}

// ValueCountsString returns per-value occurrence counts.
func ValueCountsString(values *array.String) map[string]int {
	counts := make(map[string]int)
	for i := 0; i < values.Len(); i++ {
		counts[values.Value(i)]++
	}
	return counts
}

// ModeInt32 returns the most frequent value and true, or 0 and false
// for an empty array. Ties resolve to the smallest value.
func ModeInt32(values *array.Int32) (int32, bool) {
	counts := ValueCountsInt32(values)
	if len(counts) == 0 {
		return 0, false
	}

	var mode int32
	best := -1
	for v, count := range counts {
		if count > best || (count == best && v < mode) {
			mode = v
			best = count
		}
	}
	return mode, true
}
