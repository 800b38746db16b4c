package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/xraph/taskq/ext"
	"github.com/xraph/taskq/id"
	"github.com/xraph/taskq/job"
)

// QueueManager gates job starts per operation. The pool calls Wait after
// dequeuing a job and Release once the Executor returns.
type QueueManager interface {
	// Wait blocks until a job of the operation may start or ctx is done.
	Wait(ctx context.Context, operation string) error
	// Release frees the slot taken by Wait.
	Release(operation string)
}

// Pool manages a set of goroutines that dequeue jobs from the Work Store
// and execute them through the Executor.
type Pool struct {
	store        job.ExecutionStore
	executor     *Executor
	extensions   *ext.Registry
	concurrency  int
	pollInterval time.Duration
	workerID     string
	logger       *slog.Logger

	queueManager QueueManager

	stopCh     chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	running    bool
	activeJobs map[string]context.CancelFunc
	activeMu   sync.Mutex
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPoolConcurrency sets the number of worker goroutines.
func WithPoolConcurrency(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithPollInterval sets how long an idle worker sleeps before polling the
// store again.
func WithPollInterval(d time.Duration) PoolOption {
	return func(p *Pool) { p.pollInterval = d }
}

// WithQueueManager sets per-operation start limits.
func WithQueueManager(m QueueManager) PoolOption {
	return func(p *Pool) { p.queueManager = m }
}

// WithWorkerID overrides the generated worker id written on dequeued jobs.
func WithWorkerID(workerID string) PoolOption {
	return func(p *Pool) {
		if workerID != "" {
			p.workerID = workerID
		}
	}
}

// NewPool creates a worker pool.
func NewPool(
	store job.ExecutionStore,
	executor *Executor,
	extensions *ext.Registry,
	logger *slog.Logger,
	opts ...PoolOption,
) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	if extensions == nil {
		extensions = ext.NewRegistry(logger)
	}
	p := &Pool{
		store:        store,
		executor:     executor,
		extensions:   extensions,
		concurrency:  4,
		pollInterval: 250 * time.Millisecond,
		workerID:     defaultWorkerID(),
		logger:       logger,
		stopCh:       make(chan struct{}),
		activeJobs:   make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func defaultWorkerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s.%d.%s", host, os.Getpid(), id.New().String()[:8])
}

// WorkerID returns the id the pool stamps on the jobs it dequeues.
func (p *Pool) WorkerID() string { return p.workerID }

// Start launches the worker goroutines. It returns immediately.
func (p *Pool) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	p.running = true

	p.logger.Info("worker pool starting",
		slog.String("worker_id", p.workerID),
		slog.Int("concurrency", p.concurrency),
	)

	for range p.concurrency {
		p.wg.Add(1)
		go p.dequeueLoop()
	}
	return nil
}

// Stop signals all workers to stop and waits for them to finish. When ctx
// expires first, in-flight jobs are cancelled and end as stopped.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.mu.Unlock()

	p.logger.Info("worker pool stopping", slog.String("worker_id", p.workerID))

	close(p.stopCh)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully")
	case <-ctx.Done():
		p.logger.Warn("worker pool shutdown timed out, cancelling active jobs")
		p.cancelActiveJobs()
		<-done
	}

	p.extensions.EmitShutdown(context.WithoutCancel(ctx))
	return nil
}

// ProcessNext dequeues and executes at most one job. It reports whether a
// job was found. The returned error is a dequeue failure; execution
// outcomes are persisted on the job rather than returned.
func (p *Pool) ProcessNext(ctx context.Context) (bool, error) {
	j, err := p.store.DequeueJob(ctx, p.workerID)
	if err != nil {
		return false, fmt.Errorf("worker: dequeue: %w", err)
	}
	if j == nil {
		return false, nil
	}

	p.run(ctx, j)
	return true, nil
}

func (p *Pool) run(parent context.Context, j *job.Job) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	key := j.ID.String()
	p.trackJob(key, cancel)
	defer p.untrackJob(key)

	if p.queueManager != nil {
		if err := p.queueManager.Wait(ctx, string(j.Operation)); err == nil {
			defer p.queueManager.Release(string(j.Operation))
		}
	}

	p.extensions.EmitJobStarted(ctx, j)

	if err := p.executor.Execute(ctx, j); err != nil {
		p.logger.Debug("job execution ended with error",
			slog.String("job_id", key),
			slog.String("operation", string(j.Operation)),
			slog.String("status", string(j.Status)),
			slog.String("error", err.Error()),
		)
	}
}

// dequeueLoop is run by each worker goroutine.
func (p *Pool) dequeueLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		found, err := p.ProcessNext(context.Background())
		if err != nil {
			p.logger.Error("dequeue error", slog.String("error", err.Error()))
		}
		if !found {
			p.sleep()
		}
	}
}

func (p *Pool) sleep() {
	t := time.NewTimer(p.pollInterval)
	defer t.Stop()
	select {
	case <-t.C:
	case <-p.stopCh:
	}
}

func (p *Pool) trackJob(jobID string, cancel context.CancelFunc) {
	p.activeMu.Lock()
	p.activeJobs[jobID] = cancel
	p.activeMu.Unlock()
}

func (p *Pool) untrackJob(jobID string) {
	p.activeMu.Lock()
	delete(p.activeJobs, jobID)
	p.activeMu.Unlock()
}

func (p *Pool) cancelActiveJobs() {
	p.activeMu.Lock()
	defer p.activeMu.Unlock()
	for jobID, cancel := range p.activeJobs {
		p.logger.Warn("cancelling active job", slog.String("job_id", jobID))
		cancel()
	}
}
