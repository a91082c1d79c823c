package worker

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"restables/internal/exporter"
	"restables/internal/metrics"
	"restables/internal/storage"
)

var (
	ErrQueueFull   = errors.New("export queue is full")
	ErrPoolStopped = errors.New("export pool is stopped")
)

// Options tunes a Pool. Zero values fall back to defaults.
type Options struct {
	Workers          int
	MaxDBConcurrency int64
	QueueSize        int
	// Retention is how long finished jobs stay queryable.
	Retention time.Duration
	// FlushEvery flushes the encoder every that many rows.
	FlushEvery int
}

// Pool runs export jobs on a fixed set of workers. A separate semaphore caps
// how many of them hold a database cursor at once.
type Pool struct {
	jobQueue chan *ExportJob
	workers  int
	dbSem    *semaphore.Weighted
	wg       sync.WaitGroup
	quit     chan struct{}
	stopOnce sync.Once

	storage    storage.Provider
	retention  time.Duration
	flushEvery int

	mu   sync.RWMutex
	jobs map[string]*ExportJob
}

// NewPool initializes a worker pool. Call Start to begin processing.
func NewPool(store storage.Provider, opts Options) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.MaxDBConcurrency <= 0 {
		opts.MaxDBConcurrency = 2
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 100
	}
	if opts.Retention <= 0 {
		opts.Retention = time.Hour
	}
	return &Pool{
		jobQueue:   make(chan *ExportJob, opts.QueueSize),
		workers:    opts.Workers,
		dbSem:      semaphore.NewWeighted(opts.MaxDBConcurrency),
		quit:       make(chan struct{}),
		storage:    store,
		retention:  opts.Retention,
		flushEvery: opts.FlushEvery,
		jobs:       make(map[string]*ExportJob),
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.workerLoop(i)
	}
	slog.Info("Worker pool started", "workers", p.workers)
}

// Submit enqueues job without blocking. It fails with ErrQueueFull when the
// buffer is exhausted and ErrPoolStopped after Stop.
func (p *Pool) Submit(job *ExportJob) error {
	select {
	case <-p.quit:
		return ErrPoolStopped
	default:
	}

	p.mu.Lock()
	p.pruneLocked(time.Now())
	p.jobs[job.ID] = job
	p.mu.Unlock()

	select {
	case p.jobQueue <- job:
		metrics.ExportQueueDepth.Set(float64(len(p.jobQueue)))
		slog.Info("Export job queued", "job_id", job.ID, "connection", job.Spec.Connection, "table", job.Spec.Table)
		return nil
	default:
		p.mu.Lock()
		delete(p.jobs, job.ID)
		p.mu.Unlock()
		job.cancel()
		return ErrQueueFull
	}
}

// pruneLocked drops finished jobs older than the retention window.
func (p *Pool) pruneLocked(now time.Time) {
	for id, job := range p.jobs {
		job.mu.Lock()
		expired := !job.finished.IsZero() && now.Sub(job.finished) > p.retention
		job.mu.Unlock()
		if expired {
			delete(p.jobs, id)
		}
	}
}

// Get returns a tracked job by id.
func (p *Pool) Get(id string) (*ExportJob, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	job, ok := p.jobs[id]
	return job, ok
}

// Status returns the job snapshot with its download URL once completed.
func (p *Pool) Status(id string) (Snapshot, bool) {
	job, ok := p.Get(id)
	if !ok {
		return Snapshot{}, false
	}
	s := job.Snapshot()
	if s.Status == StatusCompleted && s.Key != "" {
		s.URL = p.storage.URL(s.Key)
	}
	return s, true
}

// Stop waits for running jobs and fails the ones still queued.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.quit)
		p.wg.Wait()

		for {
			select {
			case job := <-p.jobQueue:
				p.failJob(job, ErrPoolStopped)
			default:
				metrics.ExportQueueDepth.Set(0)
				slog.Info("Worker pool stopped")
				return
			}
		}
	})
}

func (p *Pool) workerLoop(id int) {
	defer p.wg.Done()
	slog.Debug("Worker started", "worker_id", id)

	for {
		select {
		case <-p.quit:
			return
		case job := <-p.jobQueue:
			metrics.ExportQueueDepth.Set(float64(len(p.jobQueue)))
			p.processJob(id, job)
		}
	}
}

func (p *Pool) processJob(workerID int, job *ExportJob) {
	slog.Info("Processing job", "worker_id", workerID, "job_id", job.ID)
	started := job.start()

	if err := p.dbSem.Acquire(job.ctx, 1); err != nil {
		p.failJob(job, fmt.Errorf("failed to acquire db slot: %w", err))
		return
	}
	stats, err := p.executeExport(job)
	p.dbSem.Release(1)

	if err != nil {
		p.failJob(job, err)
		return
	}

	job.finish(stats, job.Key(), nil)
	metrics.ExportJobs.WithLabelValues(string(StatusCompleted)).Inc()
	slog.Info("Job completed",
		"job_id", job.ID,
		"rows", stats.RowsProcessed,
		"duration", stats.Duration,
		"wait", started.Sub(job.Submitted),
	)
}

// executeExport runs DB -> encoder -> [gzip] -> storage. A failure at any
// stage aborts the stored object.
func (p *Pool) executeExport(job *ExportJob) (*exporter.ExportResult, error) {
	ctx := job.ctx

	rows, err := job.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open query: %w", err)
	}
	defer rows.Close()
	metrics.ActiveStreams.Inc()
	defer metrics.ActiveStreams.Dec()

	contentType := job.Spec.Format.ContentType()
	if job.Spec.Compress {
		contentType = "application/gzip"
	}
	w, done := p.storage.Create(ctx, job.Key(), contentType)
	if w == nil {
		return nil, fmt.Errorf("create export object: %w", <-done)
	}
	abort := func(err error) error {
		w.Abort(err)
		<-done
		return err
	}

	var out io.Writer = w
	var gz *gzip.Writer
	if job.Spec.Compress {
		gz = gzip.NewWriter(w)
		out = gz
	}

	enc, err := exporter.NewEncoder(job.Spec.Format, out)
	if err != nil {
		return nil, abort(err)
	}

	stats, err := exporter.StreamRows(ctx, rows, enc, p.flushEvery)
	if err != nil {
		return nil, abort(fmt.Errorf("export failed: %w", err))
	}
	metrics.RowsStreamed.WithLabelValues(job.Spec.Connection, string(job.Spec.Format)).Add(float64(stats.RowsProcessed))

	if gz != nil {
		if err := gz.Close(); err != nil {
			return nil, abort(fmt.Errorf("gzip close failed: %w", err))
		}
	}
	if err := w.Close(); err != nil {
		<-done
		return nil, fmt.Errorf("storage close failed: %w", err)
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("upload failed: %w", err)
	}
	return stats, nil
}

func (p *Pool) failJob(job *ExportJob, err error) {
	job.finish(nil, "", err)
	metrics.ExportJobs.WithLabelValues(string(StatusFailed)).Inc()
	slog.Error("Job failed", "job_id", job.ID, "error", err)
}
