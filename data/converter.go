package data

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Row is a single row-oriented record keyed by column name.
type Row map[string]interface{}

// Converter handles conversion between rows and Arrow record batches
// for a fixed schema.
type Converter struct {
	allocator memory.Allocator
	specs     []ColumnSpec
	schema    *arrow.Schema
}

// NewConverter creates a Converter for the given columns using the
// default memory allocator.
func NewConverter(cols []ColumnSpec) (*Converter, error) {
	schema, err := NewSchema(cols)
	if err != nil {
		return nil, err
	}

	return &Converter{
		allocator: memory.DefaultAllocator,
		specs:     append([]ColumnSpec(nil), cols...),
		schema:    schema,
	}, nil
}

// Schema returns the Arrow schema the converter builds records for.
func (c *Converter) Schema() *arrow.Schema {
	return c.schema
}

// RowsToRecord converts a slice of rows to an Arrow record batch.
func (c *Converter) RowsToRecord(rows []Row) (arrow.Record, error) {
	if len(rows) == 0 {
		return nil, errors.New("empty rows slice")
	}

	builder := array.NewRecordBuilder(c.allocator, c.schema)
	defer builder.Release()

	for _, row := range rows {
		for i, spec := range c.specs {
			value, ok := row[spec.Name]
			if !ok || value == nil {
				if !spec.Nullable {
					return nil, fmt.Errorf("column %s: missing value in non-nullable column", spec.Name)
				}
				builder.Field(i).AppendNull()
				continue
			}

			if err := appendValue(builder.Field(i), spec, value); err != nil {
				return nil, fmt.Errorf("column %s: %w", spec.Name, err)
			}
		}
	}

	return builder.NewRecord(), nil
}

// JSONToRecord converts a JSON array of row objects to an Arrow record batch.
func (c *Converter) JSONToRecord(jsonData []byte) (arrow.Record, error) {
	var rows []Row
	if err := json.Unmarshal(jsonData, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	return c.RowsToRecord(rows)
}

// RecordToJSON converts an Arrow record batch back to a JSON array of
// row objects. Null slots are omitted from the row.
func (c *Converter) RecordToJSON(record arrow.Record) ([]byte, error) {
	if record == nil || record.NumRows() == 0 {
		return []byte("[]"), nil
	}

	if err := ValidateSchema(record, c.schema); err != nil {
		return nil, err
	}

	rows := make([]Row, record.NumRows())
	for i := range rows {
		rows[i] = make(Row, len(c.specs))
	}

	for colIdx, spec := range c.specs {
		col := record.Column(colIdx)
		for rowIdx := 0; rowIdx < col.Len(); rowIdx++ {
			if col.IsNull(rowIdx) {
				continue
			}
			value, err := columnValue(col, spec, rowIdx)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", spec.Name, err)
			}
			rows[rowIdx][spec.Name] = value
		}
	}

	return json.Marshal(rows)
}

// appendValue appends a single row value to the column builder.
// Numeric values may arrive as float64 (JSON decoding) or as native Go
// integer types.
func appendValue(b array.Builder, spec ColumnSpec, value interface{}) error {
	switch spec.Type {
	case ColInt32:
		v, err := toInt64(value)
		if err != nil {
			return err
		}
		b.(*array.Int32Builder).Append(int32(v))
	case ColInt64:
		v, err := toInt64(value)
		if err != nil {
			return err
		}
		b.(*array.Int64Builder).Append(v)
	case ColFloat64:
		v, err := toFloat64(value)
		if err != nil {
			return err
		}
		b.(*array.Float64Builder).Append(v)
	case ColString:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
		b.(*array.StringBuilder).Append(s)
	case ColBinary:
		raw, err := toBinary(value)
		if err != nil {
			return err
		}
		b.(*array.BinaryBuilder).Append(raw)
	case ColBool:
		v, ok := value.(bool)
		if !ok {
			return fmt.Errorf("expected bool, got %T", value)
		}
		b.(*array.BooleanBuilder).Append(v)
	case ColStringMap:
		entries, err := toStringMap(value)
		if err != nil {
			return err
		}
		mb := b.(*array.MapBuilder)
		mb.Append(true)
		keyBuilder := mb.KeyBuilder().(*array.StringBuilder)
		itemBuilder := mb.ItemBuilder().(*array.StringBuilder)
		for k, v := range entries {
			keyBuilder.Append(k)
			itemBuilder.Append(v)
		}
	default:
		return fmt.Errorf("unsupported column type %q", spec.Type)
	}
	return nil
}

// columnValue extracts the value at rowIdx from a column as a
// JSON-marshalable Go value.
func columnValue(col arrow.Array, spec ColumnSpec, rowIdx int) (interface{}, error) {
	switch spec.Type {
	case ColInt32:
		arr, ok := col.(*array.Int32)
		if !ok {
			return nil, errors.New("column is not an Int32 array")
		}
		return arr.Value(rowIdx), nil
	case ColInt64:
		arr, ok := col.(*array.Int64)
		if !ok {
			return nil, errors.New("column is not an Int64 array")
		}
		return arr.Value(rowIdx), nil
	case ColFloat64:
		arr, ok := col.(*array.Float64)
		if !ok {
			return nil, errors.New("column is not a Float64 array")
		}
		return arr.Value(rowIdx), nil
	case ColString:
		arr, ok := col.(*array.String)
		if !ok {
			return nil, errors.New("column is not a String array")
		}
		return arr.Value(rowIdx), nil
	case ColBinary:
		arr, ok := col.(*array.Binary)
		if !ok {
			return nil, errors.New("column is not a Binary array")
		}
		return arr.Value(rowIdx), nil
	case ColBool:
		arr, ok := col.(*array.Boolean)
		if !ok {
			return nil, errors.New("column is not a Boolean array")
		}
		return arr.Value(rowIdx), nil
	case ColStringMap:
		arr, ok := col.(*array.Map)
		if !ok {
			return nil, errors.New("column is not a Map array")
		}
		return extractMapValues(arr, rowIdx), nil
	default:
		return nil, fmt.Errorf("unsupported column type %q", spec.Type)
	}
}

// extractMapValues extracts key-value pairs from a Map column at the given index.
func extractMapValues(mapCol *array.Map, idx int) map[string]string {
	result := make(map[string]string)

	offsets := mapCol.Offsets()
	start := offsets[idx]
	end := offsets[idx+1]

	keys := mapCol.Keys().(*array.String)
	values := mapCol.Items().(*array.String)

	for j := start; j < end; j++ {
		result[keys.Value(int(j))] = values.Value(int(j))
	}

	return result
}

func toInt64(value interface{}) (int64, error) {
	switch v := value.(type) {
	case float64:
		return int64(v), nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case json.Number:
		return v.Int64()
	default:
		return 0, fmt.Errorf("expected integer, got %T", value)
	}
}

func toFloat64(value interface{}) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	default:
		return 0, fmt.Errorf("expected float, got %T", value)
	}
}

// toBinary accepts raw bytes or a base64 string (the JSON encoding of
// []byte).
func toBinary(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		raw, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 binary value: %w", err)
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("expected binary, got %T", value)
	}
}

func toStringMap(value interface{}) (map[string]string, error) {
	switch v := value.(type) {
	case map[string]string:
		return v, nil
	case map[string]interface{}:
		result := make(map[string]string, len(v))
		for k, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("map value for key %q is %T, expected string", k, item)
			}
			result[k] = s
		}
		return result, nil
	default:
		return nil, fmt.Errorf("expected map, got %T", value)
	}
}
