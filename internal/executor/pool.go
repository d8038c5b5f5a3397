package executor

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/harrison/regress/internal/models"
)

// DefaultDequeueTimeout bounds how long an idle worker waits for a job
// before exiting.
const DefaultDequeueTimeout = 10 * time.Second

// Logger reports run progress. Implementations must be safe for concurrent
// use; workers call LogJobResult from their own goroutines.
type Logger interface {
	LogDebug(message string)
	LogInfo(message string)
	LogWarn(message string)
	LogError(message string)
	LogCategory(category models.CategorySummary)
	LogJobResult(outcome models.JobOutcome, completed, total int)
	LogSummary(summary models.RunSummary)
}

// WorkerCount returns min(requested, available) clamped to [1, jobs], or 0
// when there are no jobs. A requested count of zero or less means "use every
// available core".
func WorkerCount(requested, available, jobs int) int {
	if jobs <= 0 {
		return 0
	}
	if available < 1 {
		available = 1
	}
	n := requested
	if n <= 0 || n > available {
		n = available
	}
	if n > jobs {
		n = jobs
	}
	if n < 1 {
		n = 1
	}
	return n
}

// PoolConfig configures a Pool.
type PoolConfig struct {
	MaxWorkers     int           // Requested worker count; <= 0 uses runtime.NumCPU()
	DequeueTimeout time.Duration // Idle wait before a worker exits
}

// Pool runs queued jobs on a fixed number of workers.
type Pool struct {
	queue   *Queue
	tally   *Tally
	logger  Logger
	workers int
	timeout time.Duration

	mu        sync.Mutex
	completed int
	outcomes  map[*Job]models.JobOutcome
}

// NewPool sizes a pool for the jobs currently in queue. The tally receives
// every job's pass or fail; logger may be nil.
func NewPool(queue *Queue, tally *Tally, logger Logger, cfg PoolConfig) *Pool {
	if queue == nil {
		panic("queue cannot be nil")
	}
	if tally == nil {
		panic("tally cannot be nil")
	}
	timeout := cfg.DequeueTimeout
	if timeout <= 0 {
		timeout = DefaultDequeueTimeout
	}
	return &Pool{
		queue:    queue,
		tally:    tally,
		logger:   logger,
		workers:  WorkerCount(cfg.MaxWorkers, runtime.NumCPU(), queue.Len()),
		timeout:  timeout,
		outcomes: make(map[*Job]models.JobOutcome),
	}
}

// Workers returns the number of workers Run will start.
func (p *Pool) Workers() int {
	return p.workers
}

// Run starts the workers, waits for the queue to drain, then joins every
// worker. When Run returns nil every enqueued job has run and logged and all
// tally updates are visible to the caller.
func (p *Pool) Run(ctx context.Context) error {
	total := p.queue.Pending()

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.work(ctx, id, total)
		}(i)
	}

	err := p.queue.Drain(ctx)
	wg.Wait()
	if err != nil {
		return fmt.Errorf("run interrupted with %d job(s) outstanding: %w", p.queue.Pending(), err)
	}
	return nil
}

// work is one worker's loop. It exits once a dequeue times out.
func (p *Pool) work(ctx context.Context, id, total int) {
	for {
		job, ok := p.queue.DequeueOrTimeout(ctx, p.timeout)
		if !ok {
			p.debug(fmt.Sprintf("worker %d: queue empty, exiting", id))
			return
		}
		p.process(job, total)
		p.queue.Done()
	}
}

func (p *Pool) process(job *Job, total int) {
	if err := job.Run(p.tally); err != nil {
		if p.logger != nil {
			p.logger.LogError(err.Error())
		}
		return
	}

	outcome := job.Outcome()
	if err := job.WriteLog(); err != nil {
		outcome.LogError = err.Error()
		if p.logger != nil {
			p.logger.LogError(err.Error())
		}
	}

	p.mu.Lock()
	p.completed++
	completed := p.completed
	p.outcomes[job] = outcome
	p.mu.Unlock()

	if p.logger != nil {
		p.logger.LogJobResult(outcome, completed, total)
	}
}

// Outcome returns the recorded outcome of job, if it has completed.
func (p *Pool) Outcome(job *Job) (models.JobOutcome, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.outcomes[job]
	return o, ok
}

func (p *Pool) debug(message string) {
	if p.logger != nil {
		p.logger.LogDebug(message)
	}
}
