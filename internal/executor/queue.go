package executor

import (
	"context"
	"sync"
	"time"
)

// Queue is a FIFO of jobs shared by the pool's workers. Every dequeued job
// must be acknowledged with Done; Drain returns once the queue is empty and
// every dequeued job has been acknowledged.
type Queue struct {
	mu      sync.Mutex
	jobs    []*Job
	pending int
	ready   chan struct{}
	drained chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	q := &Queue{
		ready:   make(chan struct{}, 1),
		drained: make(chan struct{}),
	}
	close(q.drained)
	return q
}

// Enqueue appends a job.
func (q *Queue) Enqueue(job *Job) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.jobs = append(q.jobs, job)
	if q.pending == 0 {
		q.drained = make(chan struct{})
	}
	q.pending++
	q.signal()
}

// signal wakes one waiting dequeuer. Callers hold q.mu.
func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Len returns the number of jobs not yet dequeued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Pending returns the number of jobs enqueued but not yet acknowledged.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}

// DequeueOrTimeout returns the next job, waiting at most timeout for one to
// arrive. It returns false when the wait expires or ctx is cancelled.
func (q *Queue) DequeueOrTimeout(ctx context.Context, timeout time.Duration) (*Job, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		q.mu.Lock()
		if len(q.jobs) > 0 {
			job := q.jobs[0]
			q.jobs[0] = nil
			q.jobs = q.jobs[1:]
			if len(q.jobs) > 0 {
				q.signal()
			}
			q.mu.Unlock()
			return job, true
		}
		q.mu.Unlock()

		select {
		case <-q.ready:
		case <-timer.C:
			return nil, false
		case <-ctx.Done():
			return nil, false
		}
	}
}

// Done acknowledges one dequeued job.
func (q *Queue) Done() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.pending == 0 {
		panic("executor: Queue.Done called more times than jobs were enqueued")
	}
	q.pending--
	if q.pending == 0 {
		close(q.drained)
	}
}

// Drain blocks until every enqueued job has been acknowledged or ctx ends.
func (q *Queue) Drain(ctx context.Context) error {
	q.mu.Lock()
	drained := q.drained
	q.mu.Unlock()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
