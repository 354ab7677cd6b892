package server

import (
	"context"
	"errors"
	"runtime"
	"sync"
)

// ErrQueueFull is returned when no job slot is free
var ErrQueueFull = errors.New("run queue is full")

// ErrPoolStopped is returned for jobs submitted after Stop
var ErrPoolStopped = errors.New("worker pool stopped")

// Job is one unit of work executed by the pool. Jobs derive their context
// from Context so Stop reaches them.
type Job struct {
	ID  string
	Run func()
}

// WorkerPool executes queued jobs on a fixed number of goroutines
type WorkerPool struct {
	workerCount int
	jobQueue    chan Job
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc

	mu      sync.Mutex
	stopped bool
}

// NewWorkerPool creates a pool. A non-positive workerCount uses one worker per CPU.
func NewWorkerPool(workerCount int, jobBufferSize int) *WorkerPool {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		workerCount: workerCount,
		jobQueue:    make(chan Job, jobBufferSize),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start starts the worker goroutines
func (wp *WorkerPool) Start() {
	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker()
	}
}

// Stop cancels the pool context, drains the queue and waits for the workers.
// Jobs still queued run with a cancelled context.
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	if wp.stopped {
		wp.mu.Unlock()
		return
	}
	wp.stopped = true
	close(wp.jobQueue)
	wp.mu.Unlock()

	wp.cancel()
	wp.wg.Wait()
}

// Submit queues a job without blocking
func (wp *WorkerPool) Submit(job Job) error {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if wp.stopped {
		return ErrPoolStopped
	}
	select {
	case wp.jobQueue <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Context is the parent context of every job
func (wp *WorkerPool) Context() context.Context {
	return wp.ctx
}

func (wp *WorkerPool) worker() {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		job.Run()
	}
}
