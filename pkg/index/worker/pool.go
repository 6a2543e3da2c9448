// Package worker provides a worker pool which runs index batches
// concurrently against a shared index.Indexer.
//
// Every batch is still one embedding call and one bulk upsert; the pool only
// lets a caller keep several of them in flight.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/papercomputeco/simsearch/pkg/index"
	"github.com/papercomputeco/simsearch/pkg/vector"
)

var (
	defaultNumWorkers   uint = 1
	defaultJobQueueSize uint = 256
)

// Job is one batch of documents bound for an index.
type Job struct {
	// Seq orders jobs for the caller. The pool does not interpret it.
	Seq int

	Index string
	Docs  []vector.Document
}

// Result is the outcome of a Job.
type Result struct {
	Job    Job
	Report *index.Report
	Err    error
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Indexer runs each batch.
	Indexer *index.Indexer

	// NumWorkers is the number of concurrent batches (defaults to 1).
	NumWorkers uint

	// QueueSize is the capacity of the buffered job and result channels
	// (defaults to 256).
	QueueSize uint

	Logger *slog.Logger
}

// Pool processes index batches via a worker pool.
type Pool struct {
	config  *Config
	ctx     context.Context
	queue   chan Job
	results chan Result
	wg      sync.WaitGroup
	logger  *slog.Logger
}

// NewPool creates a new Pool and starts its worker goroutines. Jobs run with
// ctx; cancelling it fails the remaining jobs.
func NewPool(ctx context.Context, c *Config) (*Pool, error) {
	if c.Indexer == nil {
		return nil, errors.New("indexer is required")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	wp := &Pool{
		config:  c,
		ctx:     ctx,
		queue:   make(chan Job, c.QueueSize),
		results: make(chan Result, c.QueueSize),
		logger:  logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job without blocking.
// Returns true if enqueued, false if the queue is full.
func (p *Pool) Enqueue(job Job) bool {
	select {
	case p.queue <- job:
		p.logger.Debug("batch queued", "index", job.Index, "seq", job.Seq, "count", len(job.Docs))
		return true
	default:
		p.logger.Warn("batch not queued, queue full", "index", job.Index, "seq", job.Seq)
		return false
	}
}

// Submit queues a job, waiting for room in the queue or for ctx to end.
func (p *Pool) Submit(ctx context.Context, job Job) error {
	select {
	case p.queue <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Results delivers one Result per job. It is closed by Close once every
// job has finished, so callers must drain it concurrently when submitting
// more jobs than QueueSize.
func (p *Pool) Results() <-chan Result {
	return p.results
}

// Close stops accepting jobs, waits for in-flight jobs and closes Results.
func (p *Pool) Close() {
	close(p.queue)
	p.wg.Wait()
	close(p.results)
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("index worker started", "worker_id", id)

	for job := range p.queue {
		report, err := p.config.Indexer.IndexBatch(p.ctx, job.Index, job.Docs)
		if err != nil {
			p.logger.Error("index batch failed", "index", job.Index, "seq", job.Seq, "error", err)
		}
		p.results <- Result{Job: job, Report: report, Err: err}
	}

	p.logger.Debug("index worker stopped", "worker_id", id)
}
