package engine

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestNewJobQueue(t *testing.T) {
	q := NewJobQueue(100)
	if q == nil {
		t.Fatal("NewJobQueue returned nil")
	}
	if q.Size() != 0 {
		t.Errorf("Expected size 0, got %d", q.Size())
	}
	if q.maxSize != 100 {
		t.Errorf("Expected maxSize 100, got %d", q.maxSize)
	}
}

func TestJobQueueEnqueue(t *testing.T) {
	q := NewJobQueue(10)

	job := NewJob("sum", "reading", nil)
	if err := q.Enqueue(job); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	if q.Size() != 1 {
		t.Errorf("Expected size 1, got %d", q.Size())
	}
	if !q.Contains(job.ID) {
		t.Error("Expected queue to contain the job")
	}
}

func TestJobQueueEnqueueDuplicate(t *testing.T) {
	q := NewJobQueue(10)

	job := NewJob("sum", "reading", nil)
	_ = q.Enqueue(job)
	if err := q.Enqueue(job); err != ErrJobExists {
		t.Errorf("Expected ErrJobExists, got %v", err)
	}
}

func TestJobQueueFull(t *testing.T) {
	q := NewJobQueue(2)

	for i := 0; i < 2; i++ {
		_ = q.Enqueue(NewJob("sum", fmt.Sprintf("col-%d", i), nil))
	}

	if !q.IsFull() {
		t.Error("Expected queue to be full")
	}
	if err := q.Enqueue(NewJob("sum", "overflow", nil)); err != ErrQueueFull {
		t.Errorf("Expected ErrQueueFull, got %v", err)
	}
}

func TestJobQueueValidate(t *testing.T) {
	q := NewJobQueue(10)

	if err := q.Enqueue(nil); err != ErrInvalidJob {
		t.Errorf("Expected ErrInvalidJob for nil job, got %v", err)
	}

	if err := q.Enqueue(&Job{ID: "j-1"}); err == nil {
		t.Error("Expected error for missing op")
	}
	if err := q.Enqueue(&Job{Op: "sum"}); err == nil {
		t.Error("Expected error for missing ID")
	}
}

func TestJobQueueGetAndRemove(t *testing.T) {
	q := NewJobQueue(10)

	job := NewJob("mean", "reading", nil)
	_ = q.Enqueue(job)

	retrieved := q.Get(job.ID)
	if retrieved == nil {
		t.Fatal("Get returned nil")
	}
	if retrieved.Op != "mean" {
		t.Errorf("Expected op mean, got %s", retrieved.Op)
	}

	if q.Get("non-existent") != nil {
		t.Error("Expected nil for non-existent job")
	}

	if !q.Remove(job.ID) {
		t.Error("Remove should return true")
	}
	if q.Size() != 0 {
		t.Errorf("Expected size 0 after remove, got %d", q.Size())
	}
	if q.Remove(job.ID) {
		t.Error("Remove should return false for missing job")
	}
}

func TestJobQueuePriorityOrder(t *testing.T) {
	q := NewJobQueue(10)

	low := NewJob("sum", "low", nil)
	low.Priority = 1
	high := NewJob("sum", "high", nil)
	high.Priority = 10
	mid := NewJob("sum", "mid", nil)
	mid.Priority = 5

	_ = q.Enqueue(low)
	_ = q.Enqueue(high)
	_ = q.Enqueue(mid)

	batch := q.PopBatch(3)
	if len(batch) != 3 {
		t.Fatalf("Expected 3 jobs, got %d", len(batch))
	}
	if batch[0].Column != "high" || batch[1].Column != "mid" || batch[2].Column != "low" {
		t.Errorf("Expected priority order high/mid/low, got %s/%s/%s",
			batch[0].Column, batch[1].Column, batch[2].Column)
	}
}

func TestJobQueueFIFOWithinPriority(t *testing.T) {
	q := NewJobQueue(10)

	first := NewJob("sum", "first", nil)
	first.SubmittedAt = time.Now().Add(-time.Second)
	second := NewJob("sum", "second", nil)

	_ = q.Enqueue(second)
	_ = q.Enqueue(first)

	batch := q.PopBatch(2)
	if batch[0].Column != "first" {
		t.Errorf("Expected earlier job first, got %s", batch[0].Column)
	}
}

func TestJobQueuePeek(t *testing.T) {
	q := NewJobQueue(10)

	job := NewJob("max", "reading", nil)
	_ = q.Enqueue(job)

	peeked := q.Peek(1)
	if len(peeked) != 1 || peeked[0].ID != job.ID {
		t.Fatal("Peek did not return the queued job")
	}
	if q.Size() != 1 {
		t.Error("Peek should not remove jobs")
	}
}

func TestJobQueueClearAndStats(t *testing.T) {
	q := NewJobQueue(5)

	for i := 0; i < 3; i++ {
		_ = q.Enqueue(NewJob("sum", fmt.Sprintf("col-%d", i), nil))
	}

	stats := q.Stats()
	if stats.Size != 3 || stats.MaxSize != 5 || stats.Available != 2 {
		t.Errorf("Unexpected stats: %+v", stats)
	}

	q.Clear()
	if q.Size() != 0 {
		t.Errorf("Expected empty queue after Clear, got %d", q.Size())
	}
}

func TestJobQueueConcurrent(t *testing.T) {
	q := NewJobQueue(1000)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = q.Enqueue(NewJob("sum", fmt.Sprintf("col-%d-%d", n, j), nil))
			}
		}(i)
	}
	wg.Wait()

	if q.Size() != 500 {
		t.Errorf("Expected 500 jobs, got %d", q.Size())
	}
}
