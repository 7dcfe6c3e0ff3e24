// Package compute implements analytic kernels over Arrow arrays:
// filtering, sorting, grouped aggregation, hash joins, hashing,
// statistics and window functions.
//
// Kernels are null-insensitive: validity bitmaps are not consulted and
// every slot is treated as a value.
package compute
