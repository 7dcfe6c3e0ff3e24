package server

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/avila-org/avila-arrow/codec"
	"github.com/avila-org/avila-arrow/data"
	"github.com/avila-org/avila-arrow/metrics"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	h, err := NewHandler(2, 16, 5*time.Second)
	if err != nil {
		t.Fatalf("NewHandler failed: %v", err)
	}
	t.Cleanup(h.Close)
	return h
}

// testPayload builds an IPC-encoded record with a float64 "reading"
// column and an int64 "count" column.
func testPayload(t *testing.T) []byte {
	t.Helper()

	conv, err := data.NewConverter([]data.ColumnSpec{
		{Name: "reading", Type: data.ColFloat64},
		{Name: "count", Type: data.ColInt64},
	})
	if err != nil {
		t.Fatalf("NewConverter failed: %v", err)
	}

	rec, err := conv.RowsToRecord([]data.Row{
		{"reading": 1.5, "count": int64(10)},
		{"reading": 2.5, "count": int64(20)},
		{"reading": 6.0, "count": int64(30)},
	})
	if err != nil {
		t.Fatalf("RowsToRecord failed: %v", err)
	}
	defer rec.Release()

	payload, err := codec.NewCodec().EncodeRecord(rec)
	if err != nil {
		t.Fatalf("EncodeRecord failed: %v", err)
	}
	return payload
}

func runRequest(t *testing.T, h *Handler, op, column string) float64 {
	t.Helper()

	header, err := json.Marshal(RequestHeader{Op: op, Column: column})
	if err != nil {
		t.Fatal(err)
	}

	resp, err := h.ProcessRequest(header, testPayload(t))
	if err != nil {
		t.Fatalf("ProcessRequest(%s, %s) failed: %v", op, column, err)
	}

	rec, err := codec.NewCodec().DecodeRecord(resp)
	if err != nil {
		t.Fatalf("DecodeRecord failed: %v", err)
	}
	defer rec.Release()

	if rec.NumRows() != 1 {
		t.Fatalf("Expected single-row result, got %d rows", rec.NumRows())
	}

	idx := rec.Schema().FieldIndices("value")
	if len(idx) == 0 {
		t.Fatal("Result record missing value column")
	}
	return rec.Column(idx[0]).(*array.Float64).Value(0)
}

func TestHandlerAggregates(t *testing.T) {
	h := newTestHandler(t)

	tests := []struct {
		op     string
		column string
		want   float64
	}{
		{OpSum, "reading", 10.0},
		{OpMean, "reading", 10.0 / 3},
		{OpMin, "reading", 1.5},
		{OpMax, "reading", 6.0},
		{OpMedian, "reading", 2.5},
		{OpCount, "reading", 3},
		{OpSum, "count", 60},
		{OpMean, "count", 20},
		{OpMedian, "count", 20},
	}

	for _, tt := range tests {
		t.Run(tt.op+"/"+tt.column, func(t *testing.T) {
			got := runRequest(t, h, tt.op, tt.column)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestHandlerUnknownOp(t *testing.T) {
	h := newTestHandler(t)

	header, _ := json.Marshal(RequestHeader{Op: "stddev", Column: "reading"})
	_, err := h.ProcessRequest(header, testPayload(t))
	if !errors.Is(err, ErrUnknownOp) {
		t.Errorf("Expected ErrUnknownOp, got %v", err)
	}
}

func TestHandlerColumnNotFound(t *testing.T) {
	h := newTestHandler(t)

	header, _ := json.Marshal(RequestHeader{Op: OpSum, Column: "missing"})
	_, err := h.ProcessRequest(header, testPayload(t))
	if !errors.Is(err, ErrColumnNotFound) {
		t.Errorf("Expected ErrColumnNotFound, got %v", err)
	}
}

func TestHandlerEmptyRequest(t *testing.T) {
	h := newTestHandler(t)

	if _, err := h.ProcessRequest(nil, nil); !errors.Is(err, ErrEmptyRequest) {
		t.Errorf("Expected ErrEmptyRequest, got %v", err)
	}
}

func TestHandlerMalformedHeader(t *testing.T) {
	h := newTestHandler(t)

	if _, err := h.ProcessRequest([]byte("{not json"), testPayload(t)); err == nil {
		t.Error("Expected error for malformed header")
	}
}

func TestHandlerMalformedPayload(t *testing.T) {
	h := newTestHandler(t)

	header, _ := json.Marshal(RequestHeader{Op: OpSum, Column: "reading"})
	if _, err := h.ProcessRequest(header, []byte("not an ipc stream")); err == nil {
		t.Error("Expected error for malformed payload")
	}
}

func TestHandlerRecordsMetrics(t *testing.T) {
	h := newTestHandler(t)
	m := metrics.NewMetrics("avila_handler_test")
	h.SetMetrics(m)

	_ = runRequest(t, h, OpSum, "reading")

	header, _ := json.Marshal(RequestHeader{Op: OpSum, Column: "missing"})
	if _, err := h.ProcessRequest(header, testPayload(t)); err == nil {
		t.Fatal("Expected error for missing column")
	}

	if got := testutil.ToFloat64(m.RequestsTotal); got != 2 {
		t.Errorf("Expected 2 requests recorded, got %v", got)
	}
	if got := testutil.ToFloat64(m.RequestsProcessed); got != 1 {
		t.Errorf("Expected 1 processed request, got %v", got)
	}
	if got := testutil.ToFloat64(m.RequestsFailed); got != 1 {
		t.Errorf("Expected 1 failed request, got %v", got)
	}
	if got := testutil.ToFloat64(m.ComputeOpsTotal.WithLabelValues(OpSum, "ok")); got != 1 {
		t.Errorf("Expected 1 ok sum op, got %v", got)
	}
	if got := testutil.ToFloat64(m.ComputeOpsTotal.WithLabelValues(OpSum, "error")); got != 1 {
		t.Errorf("Expected 1 failed sum op, got %v", got)
	}
	if got := testutil.ToFloat64(m.BatchesTotal); got != 2 {
		t.Errorf("Expected 2 decoded batches, got %v", got)
	}
}

func TestHandlerStats(t *testing.T) {
	h := newTestHandler(t)

	_ = runRequest(t, h, OpSum, "reading")

	queueStats, poolStats := h.Stats()
	if queueStats.Size != 0 {
		t.Errorf("Expected drained queue, got size %d", queueStats.Size)
	}
	if poolStats.Completed != 1 {
		t.Errorf("Expected 1 completed task, got %d", poolStats.Completed)
	}
}
