// Package data provides schema definitions and conversion between
// row-oriented JSON records and Arrow record batches.
package data
