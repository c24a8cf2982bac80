package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"hirevoice/interview/internal/metrics"

	"go.uber.org/zap"
)

// Job asks a worker to drive one persisted response through the pipeline.
type Job struct {
	ResponseID string
	SessionID  string
	EnqueuedAt time.Time
}

// JobHandler processes a single job. It owns its own timeouts.
type JobHandler func(ctx context.Context, job Job)

// WorkerPool runs a fixed number of workers over a bounded queue.
type WorkerPool struct {
	jobQueue       chan Job
	workerCount    int
	enqueueTimeout time.Duration
	handler        JobHandler
	logger         *zap.Logger

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup

	// Metrics
	totalJobsEnqueued  int64
	totalJobsProcessed int64
	totalJobsDropped   int64
	activeWorkers      int64
}

func NewWorkerPool(workers, queueSize int, enqueueTimeout time.Duration, handler JobHandler, logger *zap.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = workers
	}
	return &WorkerPool{
		jobQueue:       make(chan Job, queueSize),
		workerCount:    workers,
		enqueueTimeout: enqueueTimeout,
		handler:        handler,
		logger:         logger,
	}
}

func (wp *WorkerPool) Start() {
	wp.logger.Info("Starting response worker pool",
		zap.Int("workerCount", wp.workerCount),
		zap.Int("queueCapacity", cap(wp.jobQueue)))

	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop refuses new jobs, lets workers drain the queue and waits for them, or
// until ctx is done.
func (wp *WorkerPool) Stop(ctx context.Context) error {
	wp.mu.Lock()
	if !wp.stopped {
		wp.stopped = true
		close(wp.jobQueue)
	}
	wp.mu.Unlock()

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (wp *WorkerPool) worker(workerID int) {
	defer wp.wg.Done()
	atomic.AddInt64(&wp.activeWorkers, 1)
	defer atomic.AddInt64(&wp.activeWorkers, -1)

	jobsProcessed := 0
	for job := range wp.jobQueue {
		metrics.SetQueueDepth(len(wp.jobQueue))
		wp.logger.Debug("Worker processing job",
			zap.Int("workerID", workerID),
			zap.String("responseID", job.ResponseID),
			zap.Duration("waitTime", time.Since(job.EnqueuedAt)))

		wp.run(job)

		atomic.AddInt64(&wp.totalJobsProcessed, 1)
		jobsProcessed++
	}

	wp.logger.Info("Worker stopping - job queue closed",
		zap.Int("workerID", workerID),
		zap.Int("jobsProcessed", jobsProcessed))
}

func (wp *WorkerPool) run(job Job) {
	defer func() {
		if r := recover(); r != nil {
			wp.logger.Error("Worker recovered from panic",
				zap.String("responseID", job.ResponseID),
				zap.Any("panic", r))
		}
	}()
	wp.handler(context.Background(), job)
}

// Enqueue hands job to the pool, waiting at most enqueueTimeout for queue
// space. It returns false when the job was dropped.
func (wp *WorkerPool) Enqueue(job Job) bool {
	job.EnqueuedAt = time.Now()

	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.stopped {
		atomic.AddInt64(&wp.totalJobsDropped, 1)
		metrics.JobDropped()
		wp.logger.Warn("Worker pool stopped, dropping job", zap.String("responseID", job.ResponseID))
		return false
	}

	timer := time.NewTimer(wp.enqueueTimeout)
	defer timer.Stop()

	select {
	case wp.jobQueue <- job:
		atomic.AddInt64(&wp.totalJobsEnqueued, 1)
		metrics.SetQueueDepth(len(wp.jobQueue))
		return true
	case <-timer.C:
		atomic.AddInt64(&wp.totalJobsDropped, 1)
		metrics.JobDropped()
		wp.logger.Error("Job enqueue timeout - queue may be full or workers unavailable",
			zap.String("responseID", job.ResponseID),
			zap.Duration("timeout", wp.enqueueTimeout),
			zap.Int("queueSize", len(wp.jobQueue)),
			zap.Int("queueCapacity", cap(wp.jobQueue)),
			zap.Int64("activeWorkers", atomic.LoadInt64(&wp.activeWorkers)))
		return false
	}
}

// GetMetrics returns worker pool metrics
func (wp *WorkerPool) GetMetrics() map[string]interface{} {
	return map[string]interface{}{
		"total_jobs_enqueued":  atomic.LoadInt64(&wp.totalJobsEnqueued),
		"total_jobs_processed": atomic.LoadInt64(&wp.totalJobsProcessed),
		"total_jobs_dropped":   atomic.LoadInt64(&wp.totalJobsDropped),
		"active_workers":       atomic.LoadInt64(&wp.activeWorkers),
		"queue_size":           len(wp.jobQueue),
		"queue_capacity":       cap(wp.jobQueue),
	}
}
