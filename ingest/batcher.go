// Package ingest accumulates rows and emits Arrow record batches,
// flushing by size or timeout.
package ingest

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/avila-org/avila-arrow/data"
)

// Common errors for ingest operations
var (
	ErrNotRunning  = errors.New("ingestor is not running")
	ErrQueueFull   = errors.New("row queue is full")
	ErrRowRejected = errors.New("row failed validation")
)

// row pairs an optional dedup ID with the row values.
type row struct {
	id     string
	values data.Row
}

// RowBatcher accumulates rows until the batch is full or the timeout
// since the first row has elapsed.
type RowBatcher struct {
	batchSize    int
	batchTimeout time.Duration
	current      []data.Row
	batchIDs     map[string]bool
	batchStart   time.Time
	mu           sync.Mutex
}

// NewRowBatcher creates a RowBatcher.
func NewRowBatcher(batchSize int, timeout time.Duration) *RowBatcher {
	return &RowBatcher{
		batchSize:    batchSize,
		batchTimeout: timeout,
		current:      make([]data.Row, 0, batchSize),
		batchIDs:     make(map[string]bool),
		batchStart:   time.Now(),
	}
}

// Add appends a row to the current batch. Rows with an ID already in
// the batch are dropped. Returns the batch when it is ready, nil
// otherwise.
func (b *RowBatcher) Add(id string, values data.Row) []data.Row {
	b.mu.Lock()
	defer b.mu.Unlock()

	if id != "" && b.batchIDs[id] {
		return nil
	}

	// Start the timer on the first row
	if len(b.current) == 0 {
		b.batchStart = time.Now()
	}

	b.current = append(b.current, values)
	if id != "" {
		b.batchIDs[id] = true
	}

	if b.isReady() {
		return b.finalize()
	}

	return nil
}

// ForceFlush returns the current batch regardless of readiness.
func (b *RowBatcher) ForceFlush() []data.Row {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.current) == 0 {
		return nil
	}
	return b.finalize()
}

// isReady checks batch readiness (called with lock held).
func (b *RowBatcher) isReady() bool {
	if len(b.current) >= b.batchSize {
		return true
	}
	if time.Since(b.batchStart) >= b.batchTimeout {
		return true
	}
	return false
}

// finalize returns the current batch and resets (called with lock held).
func (b *RowBatcher) finalize() []data.Row {
	batch := b.current
	b.current = make([]data.Row, 0, b.batchSize)
	b.batchIDs = make(map[string]bool)
	b.batchStart = time.Now()
	return batch
}

// Size returns the current batch size.
func (b *RowBatcher) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.current)
}

// Config contains ingestor configuration.
type Config struct {
	BatchSize    int
	FlushTimeout time.Duration
	MaxPending   int
}

// DefaultConfig returns the default ingestor configuration.
func DefaultConfig() Config {
	return Config{
		BatchSize:    500,
		FlushTimeout: 2 * time.Second,
		MaxPending:   10000,
	}
}

// Ingestor validates incoming rows, batches them and emits Arrow
// records on its output channel. Emitted records must be Released by
// the consumer.
type Ingestor struct {
	config  Config
	specs   []data.ColumnSpec
	conv    *data.Converter
	batcher *RowBatcher

	rowChan    chan row
	recordChan chan arrow.Record

	// Stats
	rowsReceived int64
	rowsRejected int64
	batchesBuilt int64
	mu           sync.RWMutex

	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
}

// NewIngestor creates an Ingestor for the given column specs.
func NewIngestor(config Config, columns []data.ColumnSpec) (*Ingestor, error) {
	conv, err := data.NewConverter(columns)
	if err != nil {
		return nil, err
	}

	specs := make([]data.ColumnSpec, len(columns))
	copy(specs, columns)

	return &Ingestor{
		config:     config,
		specs:      specs,
		conv:       conv,
		batcher:    NewRowBatcher(config.BatchSize, config.FlushTimeout),
		rowChan:    make(chan row, config.MaxPending),
		recordChan: make(chan arrow.Record, 100),
		stopCh:     make(chan struct{}),
	}, nil
}

// Start begins row processing.
func (in *Ingestor) Start() error {
	in.mu.Lock()
	if in.running {
		in.mu.Unlock()
		return errors.New("ingestor already running")
	}
	in.running = true
	in.mu.Unlock()

	in.wg.Add(1)
	go in.processRows()

	in.wg.Add(1)
	go in.checkTimeouts()

	return nil
}

// Stop stops the ingestor, flushing any partial batch.
func (in *Ingestor) Stop() {
	in.mu.Lock()
	if !in.running {
		in.mu.Unlock()
		return
	}
	in.running = false
	in.mu.Unlock()

	close(in.stopCh)
	in.wg.Wait()
	close(in.recordChan)
}

// Submit queues a row for batching. The id deduplicates rows within a
// batch; pass empty to skip dedup.
func (in *Ingestor) Submit(id string, values data.Row) error {
	in.mu.RLock()
	if !in.running {
		in.mu.RUnlock()
		return ErrNotRunning
	}
	in.mu.RUnlock()

	select {
	case in.rowChan <- row{id: id, values: values}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Records returns the channel of emitted record batches.
func (in *Ingestor) Records() <-chan arrow.Record {
	return in.recordChan
}

// processRows is the main row processing loop.
func (in *Ingestor) processRows() {
	defer in.wg.Done()

	for {
		select {
		case <-in.stopCh:
			if batch := in.batcher.ForceFlush(); batch != nil {
				in.emit(batch)
			}
			return

		case r := <-in.rowChan:
			in.handleRow(r)
		}
	}
}

// checkTimeouts periodically flushes partial batches on timeout.
func (in *Ingestor) checkTimeouts() {
	defer in.wg.Done()

	ticker := time.NewTicker(in.config.FlushTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-in.stopCh:
			return
		case <-ticker.C:
			if in.batcher.Size() > 0 && in.batcherTimedOut() {
				if batch := in.batcher.ForceFlush(); batch != nil {
					in.emit(batch)
				}
			}
		}
	}
}

func (in *Ingestor) batcherTimedOut() bool {
	in.batcher.mu.Lock()
	defer in.batcher.mu.Unlock()
	return time.Since(in.batcher.batchStart) >= in.batcher.batchTimeout
}

// handleRow validates one row and feeds it to the batcher.
func (in *Ingestor) handleRow(r row) {
	in.mu.Lock()
	in.rowsReceived++
	in.mu.Unlock()

	if err := in.validate(r.values); err != nil {
		in.mu.Lock()
		in.rowsRejected++
		in.mu.Unlock()
		return
	}

	if batch := in.batcher.Add(r.id, r.values); batch != nil {
		in.emit(batch)
	}
}

// validate checks that all non-nullable columns are present.
func (in *Ingestor) validate(values data.Row) error {
	for _, spec := range in.specs {
		if spec.Nullable {
			continue
		}
		if v, ok := values[spec.Name]; !ok || v == nil {
			return fmt.Errorf("%w: missing column %q", ErrRowRejected, spec.Name)
		}
	}
	return nil
}

// emit converts a batch of rows into a record and publishes it.
func (in *Ingestor) emit(batch []data.Row) {
	rec, err := in.conv.RowsToRecord(batch)
	if err != nil {
		in.mu.Lock()
		in.rowsRejected += int64(len(batch))
		in.mu.Unlock()
		return
	}

	in.mu.Lock()
	in.batchesBuilt++
	in.mu.Unlock()

	select {
	case in.recordChan <- rec:
	default:
		// Consumer is not keeping up, drop the batch
		rec.Release()
	}
}

// Stats contains ingestor statistics.
type Stats struct {
	RowsReceived int64 `json:"rows_received"`
	RowsRejected int64 `json:"rows_rejected"`
	BatchesBuilt int64 `json:"batches_built"`
	PendingRows  int   `json:"pending_rows"`
	BatchSize    int   `json:"current_batch_size"`
}

// GetStats returns ingestor statistics.
func (in *Ingestor) GetStats() Stats {
	in.mu.RLock()
	defer in.mu.RUnlock()

	return Stats{
		RowsReceived: in.rowsReceived,
		RowsRejected: in.rowsRejected,
		BatchesBuilt: in.batchesBuilt,
		PendingRows:  len(in.rowChan),
		BatchSize:    in.batcher.Size(),
	}
}
