package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/avila-org/avila-arrow/codec"
	"github.com/avila-org/avila-arrow/compute"
	"github.com/avila-org/avila-arrow/data"
	"github.com/avila-org/avila-arrow/engine"
	"github.com/avila-org/avila-arrow/metrics"
)

// Supported aggregate operations.
const (
	OpSum    = "sum"
	OpMean   = "mean"
	OpMin    = "min"
	OpMax    = "max"
	OpMedian = "median"
	OpCount  = "count"
)

// Handler errors
var (
	ErrUnknownOp         = errors.New("unknown operation")
	ErrColumnNotFound    = errors.New("column not found")
	ErrUnsupportedColumn = errors.New("unsupported column type")
	ErrEmptyRequest      = errors.New("received empty request")
)

// RequestHeader is the JSON frame that precedes the Arrow IPC payload.
type RequestHeader struct {
	Op       string `json:"op"`
	Column   string `json:"column"`
	Priority int    `json:"priority,omitempty"`
}

// resultColumns is the schema of every aggregate response record.
func resultColumns() []data.ColumnSpec {
	return []data.ColumnSpec{
		{Name: "op", Type: data.ColString},
		{Name: "column", Type: data.ColString},
		{Name: "value", Type: data.ColFloat64},
		{Name: "rows", Type: data.ColInt64},
	}
}

// Handler executes aggregate requests over Arrow IPC payloads. Requests
// pass through a bounded job queue for admission control and run on a
// worker pool.
type Handler struct {
	codec   *codec.Codec
	conv    *data.Converter
	queue   *engine.JobQueue
	pool    *engine.WorkerPool
	timeout time.Duration
	metrics *metrics.Metrics
}

// NewHandler creates a Handler with its own worker pool.
func NewHandler(workers, queueSize int, timeout time.Duration) (*Handler, error) {
	conv, err := data.NewConverter(resultColumns())
	if err != nil {
		return nil, err
	}

	return &Handler{
		codec:   codec.NewCodec(),
		conv:    conv,
		queue:   engine.NewJobQueue(queueSize),
		pool:    engine.NewWorkerPool("aggregate", workers),
		timeout: timeout,
	}, nil
}

// SetMetrics attaches a metrics instance. Call before serving.
func (h *Handler) SetMetrics(m *metrics.Metrics) {
	h.metrics = m
}

// Close shuts down the worker pool.
func (h *Handler) Close() {
	h.pool.Shutdown()
}

// Stats returns queue and pool statistics.
func (h *Handler) Stats() (engine.QueueStats, engine.PoolStats) {
	return h.queue.Stats(), h.pool.GetStats()
}

// ProcessRequest parses the header frame, runs the aggregate on a
// worker and returns the serialized single-row result record.
func (h *Handler) ProcessRequest(headerData, payload []byte) ([]byte, error) {
	start := time.Now()

	if len(headerData) == 0 || len(payload) == 0 {
		h.recordRequest("", start, ErrEmptyRequest)
		return nil, ErrEmptyRequest
	}

	var req RequestHeader
	if err := json.Unmarshal(headerData, &req); err != nil {
		h.recordRequest("", start, err)
		return nil, fmt.Errorf("failed to parse request header: %w", err)
	}

	out, err := h.dispatch(req, payload)
	h.recordRequest(req.Op, start, err)
	return out, err
}

// dispatch enqueues the request and runs it on the worker pool.
func (h *Handler) dispatch(req RequestHeader, payload []byte) ([]byte, error) {
	job := engine.NewJob(req.Op, req.Column, payload)
	job.Priority = req.Priority
	if err := h.queue.Enqueue(job); err != nil {
		return nil, err
	}
	defer h.queue.Remove(job.ID)

	task := engine.NewTask(job.ID, nil, func(interface{}) (interface{}, error) {
		return h.execute(req, payload)
	})

	result, err := h.pool.SubmitAndWait(task, h.timeout)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, result.Error
	}

	return result.Data.([]byte), nil
}

func (h *Handler) recordRequest(op string, start time.Time, err error) {
	if h.metrics == nil {
		return
	}
	elapsed := time.Since(start)
	h.metrics.RecordRequest(err == nil, elapsed)
	if op == "" {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	h.metrics.RecordComputeOp(op, status, elapsed)
}

// execute decodes the payload, aggregates the requested column and
// encodes the result record.
func (h *Handler) execute(req RequestHeader, payload []byte) ([]byte, error) {
	rec, err := h.codec.DecodeRecord(payload)
	if err != nil {
		return nil, err
	}
	defer rec.Release()

	if h.metrics != nil {
		h.metrics.RecordBatch(rec.NumRows(), len(payload))
	}

	value, err := h.aggregate(req, rec)
	if err != nil {
		return nil, err
	}

	out, err := h.conv.RowsToRecord([]data.Row{{
		"op":     req.Op,
		"column": req.Column,
		"value":  value,
		"rows":   rec.NumRows(),
	}})
	if err != nil {
		return nil, err
	}
	defer out.Release()

	return h.codec.EncodeRecord(out)
}

func (h *Handler) aggregate(req RequestHeader, rec arrow.Record) (float64, error) {
	indices := rec.Schema().FieldIndices(req.Column)
	if len(indices) == 0 {
		return 0, fmt.Errorf("%w: %q", ErrColumnNotFound, req.Column)
	}
	col := rec.Column(indices[0])

	if req.Op == OpCount {
		return float64(col.Len()), nil
	}

	switch values := col.(type) {
	case *array.Int32:
		return aggregateInt32(req.Op, values)
	case *array.Int64:
		return aggregateInt64(req.Op, values)
	case *array.Float64:
		return aggregateFloat64(req.Op, values)
	default:
		return 0, fmt.Errorf("%w: column %q is %s", ErrUnsupportedColumn, req.Column, col.DataType())
	}
}

func aggregateInt32(op string, values *array.Int32) (float64, error) {
	switch op {
	case OpMean:
		return compute.MeanInt32(values), nil
	case OpMedian:
		return compute.MedianInt32(values), nil
	case OpSum, OpMin, OpMax:
		raw := values.Int32Values()
		out := make([]float64, len(raw))
		for i, v := range raw {
			out[i] = float64(v)
		}
		return foldFloat64(op, out)
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownOp, op)
	}
}

func aggregateInt64(op string, values *array.Int64) (float64, error) {
	raw := values.Int64Values()
	out := make([]float64, len(raw))
	for i, v := range raw {
		out[i] = float64(v)
	}

	switch op {
	case OpSum, OpMin, OpMax:
		return foldFloat64(op, out)
	case OpMean:
		if len(out) == 0 {
			return 0, nil
		}
		sum, _ := foldFloat64(OpSum, out)
		return sum / float64(len(out)), nil
	case OpMedian:
		return medianSlice(out), nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownOp, op)
	}
}

func aggregateFloat64(op string, values *array.Float64) (float64, error) {
	switch op {
	case OpMean:
		return compute.MeanFloat64(values), nil
	case OpMedian:
		return compute.MedianFloat64(values), nil
	case OpSum, OpMin, OpMax:
		return foldFloat64(op, values.Float64Values())
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownOp, op)
	}
}

// foldFloat64 reduces a slice with sum, min or max. Empty input folds
// to 0.
func foldFloat64(op string, raw []float64) (float64, error) {
	if len(raw) == 0 {
		return 0, nil
	}

	switch op {
	case OpSum:
		var sum float64
		for _, v := range raw {
			sum += v
		}
		return sum, nil
	case OpMin:
		min := raw[0]
		for _, v := range raw[1:] {
			if v < min {
				min = v
			}
		}
		return min, nil
	case OpMax:
		max := raw[0]
		for _, v := range raw[1:] {
			if v > max {
				max = v
			}
		}
		return max, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownOp, op)
	}
}

func medianSlice(raw []float64) float64 {
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
