package classify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"travelmap/pkg/instagram"
	"travelmap/pkg/location"
	"travelmap/pkg/logger"
)

// Locator resolves the location of a single post. Implementations must be
// safe for concurrent use.
type Locator interface {
	Locate(m instagram.Media) *location.Location
}

// LocatorFunc adapts a function to the Locator interface
type LocatorFunc func(m instagram.Media) *location.Location

// Locate calls f(m)
func (f LocatorFunc) Locate(m instagram.Media) *location.Location { return f(m) }

// Job is one post to classify. Index is its position in the input batch.
type Job struct {
	Index int
	Media instagram.Media
}

// Result is the outcome of a Job
type Result struct {
	Job      Job
	Location *location.Location
	Duration time.Duration
}

// Pool runs a Locator over posts with a fixed number of workers
type Pool struct {
	numWorkers  int
	jobQueue    chan Job
	resultQueue chan Result
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	locator     Locator
	logger      logger.Logger
}

// NewPool creates a classification pool
func NewPool(numWorkers int, locator Locator, log logger.Logger) *Pool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan Job, numWorkers*2),
		resultQueue: make(chan Result, numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		locator:     locator,
		logger:      log,
	}
}

// Start launches the workers
func (p *Pool) Start() {
	p.logger.DebugWithFields("Starting classify pool", map[string]interface{}{
		"num_workers": p.numWorkers,
	})

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop closes the queue, waits for queued jobs to finish and closes Results
func (p *Pool) Stop() {
	close(p.jobQueue)
	p.wg.Wait()
	close(p.resultQueue)
	p.cancel()

	p.logger.Debug("Classify pool stopped")
}

// Submit queues a job. It blocks while the queue is full.
func (p *Pool) Submit(job Job) error {
	select {
	case p.jobQueue <- job:
		return nil
	case <-p.ctx.Done():
		return fmt.Errorf("classify pool is shutting down")
	}
}

// Results returns the result channel. It is closed by Stop.
func (p *Pool) Results() <-chan Result {
	return p.resultQueue
}

// QueueSize returns the number of jobs waiting for a worker
func (p *Pool) QueueSize() int {
	return len(p.jobQueue)
}

// Workers returns the number of workers
func (p *Pool) Workers() int {
	return p.numWorkers
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for job := range p.jobQueue {
		start := time.Now()
		result := Result{
			Job:      job,
			Location: p.locator.Locate(job.Media),
		}
		result.Duration = time.Since(start)

		p.resultQueue <- result
	}

	p.logger.DebugWithFields("Classify worker done", map[string]interface{}{
		"worker_id": id,
	})
}

// Run classifies media with workers goroutines and returns the locations in
// input order. When ctx is cancelled it stops submitting and returns the
// locations resolved so far together with ctx.Err().
func Run(ctx context.Context, media []instagram.Media, workers int, locator Locator, log logger.Logger) ([]*location.Location, error) {
	locs := make([]*location.Location, len(media))
	if len(media) == 0 {
		return locs, nil
	}

	pool := NewPool(workers, locator, log)
	pool.Start()

	go func() {
		defer pool.Stop()
		for i, m := range media {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if err := pool.Submit(Job{Index: i, Media: m}); err != nil {
				return
			}
		}
	}()

	start := time.Now()
	located := 0
	for result := range pool.Results() {
		locs[result.Job.Index] = result.Location
		if result.Location != nil {
			located++
		}
	}

	logger.LogMetrics("classify", map[string]interface{}{
		"posts":       len(media),
		"located":     located,
		"workers":     pool.Workers(),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return locs, ctx.Err()
}
