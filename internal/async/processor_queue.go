package async

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/joseph-ayodele/paperless-ai-titles/internal/common"
)

// ProcessorQueue feeds jobs to a Processor from a single worker goroutine,
// in FIFO order, one at a time. Enqueue never blocks.
type ProcessorQueue struct {
	proc    Processor
	logger  *slog.Logger
	timeout time.Duration

	mu        sync.Mutex
	cond      *sync.Cond
	pending   []Job
	closed    bool
	busy      bool
	processed uint64

	done chan struct{}
	once sync.Once

	onPanic func(Job, any)
}

type Option func(*ProcessorQueue)

func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// WithPanicHandler registers fn to observe jobs whose processing panicked.
func WithPanicHandler(fn func(Job, any)) Option {
	return func(q *ProcessorQueue) { q.onPanic = fn }
}

func NewProcessorQueue(proc Processor, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:    proc,
		logger:  logger,
		timeout: 3 * time.Minute,
		done:    make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		go q.run()
	})
}

func (q *ProcessorQueue) run() {
	defer close(q.done)
	q.logger.Info("queue.worker.started", "job_timeout", q.timeout.String())

	for {
		job, ok := q.next()
		if !ok {
			q.logger.Info("queue.worker.stopped")
			return
		}
		q.handle(job)

		q.mu.Lock()
		q.busy = false
		q.processed++
		q.mu.Unlock()
	}
}

// next blocks until a job is available. ok is false once the queue is closed
// and drained.
func (q *ProcessorQueue) next() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.pending) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.pending) == 0 {
		return Job{}, false
	}
	job := q.pending[0]
	q.pending[0] = Job{}
	q.pending = q.pending[1:]
	q.busy = true
	return job, true
}

func (q *ProcessorQueue) handle(job Job) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	ctx = common.WithDocumentID(common.WithJobID(ctx, job.JobID), job.DocumentID)

	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("queue.job.panic",
				"job_id", job.JobID,
				"document_id", job.DocumentID,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			if q.onPanic != nil {
				q.onPanic(job, r)
			}
		}
	}()

	q.logger.Info("queue.job.start",
		"job_id", job.JobID,
		"document_id", job.DocumentID,
		"source", job.Source,
		"wait_ms", start.Sub(job.SubmittedAt).Milliseconds(),
	)

	outcome, err := q.proc.Process(ctx, job)
	if err != nil {
		q.logger.Error("queue.job.failed",
			"job_id", job.JobID,
			"document_id", job.DocumentID,
			"outcome", outcome,
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return
	}
	q.logger.Info("queue.job.done",
		"job_id", job.JobID,
		"document_id", job.DocumentID,
		"outcome", outcome,
		"titled", outcome.Succeeded(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
}

// Enqueue appends job to the tail. It only fails after Shutdown.
func (q *ProcessorQueue) Enqueue(_ context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("queue.enqueue.rejected", "document_id", job.DocumentID, "reason", "shutting down")
		return common.ErrQueueClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now().UTC()
	}
	q.pending = append(q.pending, job)
	q.cond.Signal()
	q.logger.Info("queue.enqueued",
		"job_id", job.JobID,
		"document_id", job.DocumentID,
		"source", job.Source,
		"queued", len(q.pending),
	)
	return nil
}

// Len reports jobs waiting, not counting the one in progress.
func (q *ProcessorQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Busy reports whether a job is being processed.
func (q *ProcessorQueue) Busy() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.busy
}

// Processed reports how many jobs the worker has finished.
func (q *ProcessorQueue) Processed() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.processed
}

// Done is closed when the worker has exited.
func (q *ProcessorQueue) Done() <-chan struct{} { return q.done }

// Shutdown stops accepting jobs, lets the worker drain what was already
// queued and waits for it to exit or for ctx to end. It is safe to call more
// than once.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	first := !q.closed
	q.closed = true
	remaining := len(q.pending)
	q.cond.Broadcast()
	q.mu.Unlock()

	if first {
		q.logger.Info("queue.shutdown.start", "remaining", remaining)
	}
	select {
	case <-ctx.Done():
		q.logger.Warn("queue.shutdown.interrupted", "remaining", q.Len())
	case <-q.done:
		if first {
			q.logger.Info("queue.shutdown.drained", "processed", q.Processed())
		}
	}
}
