package engine

import (
	"container/heap"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Common errors for job queue operations
var (
	ErrQueueFull   = errors.New("job queue is full")
	ErrJobExists   = errors.New("job already exists")
	ErrJobNotFound = errors.New("job not found")
	ErrInvalidJob  = errors.New("invalid job")
)

// Job is a pending compute request. Payload carries the serialized
// record batch the operation runs over.
type Job struct {
	ID          string                 `json:"id"`
	Op          string                 `json:"op"`
	Column      string                 `json:"column"`
	Payload     []byte                 `json:"payload,omitempty"`
	Priority    int                    `json:"priority"`
	SubmittedAt time.Time              `json:"submitted_at"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// NewJob creates a job with a fresh ID and the current timestamp.
func NewJob(op, column string, payload []byte) *Job {
	return &Job{
		ID:          uuid.NewString(),
		Op:          op,
		Column:      column,
		Payload:     payload,
		SubmittedAt: time.Now(),
	}
}

// Validate checks that the job has the required fields.
func (j *Job) Validate() error {
	if j.ID == "" {
		return errors.New("job ID is required")
	}
	if j.Op == "" {
		return errors.New("job op is required")
	}
	return nil
}

// jobHeap implements heap.Interface for Job priority ordering.
type jobHeap []*Job

func (h jobHeap) Len() int { return len(h) }

func (h jobHeap) Less(i, j int) bool {
	// Higher priority first, then earlier submission
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	return h[i].SubmittedAt.Before(h[j].SubmittedAt)
}

func (h jobHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *jobHeap) Push(x interface{}) {
	*h = append(*h, x.(*Job))
}

func (h *jobHeap) Pop() interface{} {
	old := *h
	n := len(old)
	job := old[n-1]
	old[n-1] = nil // avoid memory leak
	*h = old[0 : n-1]
	return job
}

// JobQueue holds pending compute jobs with thread-safe operations.
type JobQueue struct {
	pending map[string]*Job
	queue   jobHeap
	maxSize int
	mu      sync.RWMutex
}

// NewJobQueue creates a JobQueue with the specified maximum size.
func NewJobQueue(maxSize int) *JobQueue {
	q := &JobQueue{
		pending: make(map[string]*Job),
		queue:   make(jobHeap, 0),
		maxSize: maxSize,
	}
	heap.Init(&q.queue)
	return q
}

// Enqueue adds a job to the queue.
// Returns an error if the queue is full or the job ID is already queued.
func (q *JobQueue) Enqueue(job *Job) error {
	if job == nil {
		return ErrInvalidJob
	}

	if err := job.Validate(); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.pending[job.ID]; exists {
		return ErrJobExists
	}

	if len(q.pending) >= q.maxSize {
		return ErrQueueFull
	}

	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}

	q.pending[job.ID] = job
	heap.Push(&q.queue, job)

	return nil
}

// Get retrieves a job by ID without removing it.
func (q *JobQueue) Get(jobID string) *Job {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.pending[jobID]
}

// Remove removes a job by ID.
// Returns true if the job was found and removed.
func (q *JobQueue) Remove(jobID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.pending[jobID]; !exists {
		return false
	}

	delete(q.pending, jobID)

	// Rebuild the heap without the removed job
	newQueue := make(jobHeap, 0, len(q.queue)-1)
	for _, job := range q.queue {
		if job.ID != jobID {
			newQueue = append(newQueue, job)
		}
	}
	q.queue = newQueue
	heap.Init(&q.queue)

	return true
}

// PopBatch removes and returns up to n highest-priority jobs.
func (q *JobQueue) PopBatch(n int) []*Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	if n <= 0 || len(q.queue) == 0 {
		return nil
	}

	if n > len(q.queue) {
		n = len(q.queue)
	}

	batch := make([]*Job, 0, n)
	for i := 0; i < n; i++ {
		job := heap.Pop(&q.queue).(*Job)
		delete(q.pending, job.ID)
		batch = append(batch, job)
	}

	return batch
}

// Peek returns up to n highest-priority jobs without removing them.
func (q *JobQueue) Peek(n int) []*Job {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if n <= 0 || len(q.queue) == 0 {
		return nil
	}

	if n > len(q.queue) {
		n = len(q.queue)
	}

	sorted := make(jobHeap, len(q.queue))
	copy(sorted, q.queue)
	heap.Init(&sorted)

	batch := make([]*Job, 0, n)
	for i := 0; i < n; i++ {
		batch = append(batch, heap.Pop(&sorted).(*Job))
	}

	return batch
}

// Size returns the current number of queued jobs.
func (q *JobQueue) Size() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.pending)
}

// IsFull returns true if the queue has reached its maximum size.
func (q *JobQueue) IsFull() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.pending) >= q.maxSize
}

// Clear removes all jobs from the queue.
func (q *JobQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.pending = make(map[string]*Job)
	q.queue = make(jobHeap, 0)
	heap.Init(&q.queue)
}

// QueueStats holds job queue statistics.
type QueueStats struct {
	Size      int `json:"size"`
	MaxSize   int `json:"max_size"`
	Available int `json:"available"`
}

func (q *JobQueue) Stats() QueueStats {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return QueueStats{
		Size:      len(q.pending),
		MaxSize:   q.maxSize,
		Available: q.maxSize - len(q.pending),
	}
}

// Contains checks if a job is queued.
func (q *JobQueue) Contains(jobID string) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	_, exists := q.pending[jobID]
	return exists
}
