package data

import (
	"errors"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
)

// ColumnType identifies the logical type of a column in a Schema.
type ColumnType string

// Supported column types.
const (
	ColInt32     ColumnType = "int32"
	ColInt64     ColumnType = "int64"
	ColFloat64   ColumnType = "float64"
	ColString    ColumnType = "string"
	ColBinary    ColumnType = "binary"
	ColBool      ColumnType = "bool"
	ColStringMap ColumnType = "map<string,string>"
)

// ColumnSpec describes a single column of a row-oriented dataset.
type ColumnSpec struct {
	Name     string     `json:"name"`
	Type     ColumnType `json:"type"`
	Nullable bool       `json:"nullable"`
}

// ErrEmptySchema is returned when a schema is built from zero columns.
var ErrEmptySchema = errors.New("schema requires at least one column")

// arrowType maps a ColumnType to its Arrow data type.
func arrowType(t ColumnType) (arrow.DataType, error) {
	switch t {
	case ColInt32:
		return arrow.PrimitiveTypes.Int32, nil
	case ColInt64:
		return arrow.PrimitiveTypes.Int64, nil
	case ColFloat64:
		return arrow.PrimitiveTypes.Float64, nil
	case ColString:
		return arrow.BinaryTypes.String, nil
	case ColBinary:
		return arrow.BinaryTypes.Binary, nil
	case ColBool:
		return arrow.FixedWidthTypes.Boolean, nil
	case ColStringMap:
		return arrow.MapOf(arrow.BinaryTypes.String, arrow.BinaryTypes.String), nil
	default:
		return nil, fmt.Errorf("unsupported column type %q", t)
	}
}

// NewSchema builds an Arrow schema from column specs.
func NewSchema(cols []ColumnSpec) (*arrow.Schema, error) {
	if len(cols) == 0 {
		return nil, ErrEmptySchema
	}

	fields := make([]arrow.Field, 0, len(cols))
	seen := make(map[string]bool, len(cols))

	for _, col := range cols {
		if col.Name == "" {
			return nil, errors.New("column name is required")
		}
		if seen[col.Name] {
			return nil, fmt.Errorf("duplicate column name %q", col.Name)
		}
		seen[col.Name] = true

		dt, err := arrowType(col.Type)
		if err != nil {
			return nil, err
		}
		fields = append(fields, arrow.Field{Name: col.Name, Type: dt, Nullable: col.Nullable})
	}

	return arrow.NewSchema(fields, nil), nil
}

// ValidateSchema checks if a record matches the expected schema,
// field by field on name and type.
func ValidateSchema(record arrow.Record, expected *arrow.Schema) error {
	if record == nil {
		return errors.New("record is nil")
	}

	actual := record.Schema()
	if actual.NumFields() != expected.NumFields() {
		return fmt.Errorf("field count mismatch: got %d, expected %d",
			actual.NumFields(), expected.NumFields())
	}

	for i := 0; i < actual.NumFields(); i++ {
		actualField := actual.Field(i)
		expectedField := expected.Field(i)

		if actualField.Name != expectedField.Name {
			return fmt.Errorf("field %d name mismatch: got %s, expected %s",
				i, actualField.Name, expectedField.Name)
		}

		if !arrow.TypeEqual(actualField.Type, expectedField.Type) {
			return fmt.Errorf("field %s type mismatch: got %s, expected %s",
				actualField.Name, actualField.Type, expectedField.Type)
		}
	}

	return nil
}
