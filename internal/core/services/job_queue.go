package services

import (
	"sync"

	"github.com/custodia-labs/sourcestack/internal/core/domain"
	"github.com/custodia-labs/sourcestack/internal/core/ports/driven"
)

// queuedJob is one accepted batch request waiting for the consumer. Lease
// is held from acceptance until the job's terminal status is written.
type queuedJob struct {
	JobID   string
	Request domain.BatchParseRequest
	Lease   driven.JobLease
}

// jobQueue is an unbounded FIFO. push never blocks, so submissions are
// absorbed however long the running job takes.
type jobQueue struct {
	mu     sync.Mutex
	items  []queuedJob
	closed bool

	// ready holds at most one wake-up for the consumer.
	ready chan struct{}
}

func newJobQueue() *jobQueue {
	return &jobQueue{ready: make(chan struct{}, 1)}
}

// push appends a job. It reports false once the queue is closed.
func (q *jobQueue) push(job queuedJob) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, job)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return true
}

// pop removes the oldest job, if any.
func (q *jobQueue) pop() (queuedJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return queuedJob{}, false
	}
	job := q.items[0]
	q.items[0] = queuedJob{}
	q.items = q.items[1:]
	return job, true
}

func (q *jobQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}

func (q *jobQueue) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
