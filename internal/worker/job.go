package worker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"restables/internal/driver"
	"restables/internal/exporter"
)

type JobStatus string

const (
	StatusPending    JobStatus = "PENDING"
	StatusProcessing JobStatus = "PROCESSING"
	StatusCompleted  JobStatus = "COMPLETED"
	StatusFailed     JobStatus = "FAILED"
)

// OpenFunc starts the query behind a job. It runs on the worker, after the
// request was validated.
type OpenFunc func(ctx context.Context) (driver.RowStreamer, error)

// Spec describes what a job exports.
type Spec struct {
	Connection string
	Table      string
	Format     exporter.Format
	Compress   bool
}

// ExportJob is a single export of one table query to storage.
type ExportJob struct {
	ID        string
	Spec      Spec
	Submitted time.Time

	open   OpenFunc
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	status   JobStatus
	started  time.Time
	finished time.Time
	err      error
	stats    *exporter.ExportResult
	key      string
}

func NewExportJob(spec Spec, open OpenFunc, timeout time.Duration) *ExportJob {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	if spec.Format == "" {
		spec.Format = exporter.FormatCSV
	}
	return &ExportJob{
		ID:        uuid.New().String(),
		Spec:      spec,
		Submitted: time.Now(),
		open:      open,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		status:    StatusPending,
	}
}

// Key is the storage key the export is written to.
func (j *ExportJob) Key() string {
	key := "exports/" + j.ID + j.Spec.Format.Extension()
	if j.Spec.Compress {
		key += ".gz"
	}
	return key
}

// Done is closed once the job completed or failed.
func (j *ExportJob) Done() <-chan struct{} { return j.done }

// Cancel aborts a pending or running job.
func (j *ExportJob) Cancel() { j.cancel() }

func (j *ExportJob) start() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = StatusProcessing
	j.started = time.Now()
	return j.started
}

func (j *ExportJob) finish(stats *exporter.ExportResult, key string, err error) {
	j.mu.Lock()
	j.finished = time.Now()
	if err != nil {
		j.status = StatusFailed
		j.err = err
	} else {
		j.status = StatusCompleted
		j.stats = stats
		j.key = key
	}
	j.mu.Unlock()

	j.cancel()
	close(j.done)
}

// Snapshot is a point-in-time copy of a job's state, shaped for JSON.
type Snapshot struct {
	ID         string     `json:"id"`
	Status     JobStatus  `json:"status"`
	Connection string     `json:"connection"`
	Table      string     `json:"table"`
	Format     string     `json:"format"`
	Rows       int64      `json:"rows"`
	Key        string     `json:"key,omitempty"`
	URL        string     `json:"url,omitempty"`
	Error      string     `json:"error,omitempty"`
	Submitted  time.Time  `json:"submitted"`
	Started    *time.Time `json:"started,omitempty"`
	Finished   *time.Time `json:"finished,omitempty"`
}

func (j *ExportJob) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()

	s := Snapshot{
		ID:         j.ID,
		Status:     j.status,
		Connection: j.Spec.Connection,
		Table:      j.Spec.Table,
		Format:     string(j.Spec.Format),
		Key:        j.key,
		Submitted:  j.Submitted,
	}
	if j.stats != nil {
		s.Rows = j.stats.RowsProcessed
	}
	if j.err != nil {
		s.Error = j.err.Error()
	}
	if !j.started.IsZero() {
		started := j.started
		s.Started = &started
	}
	if !j.finished.IsZero() {
		finished := j.finished
		s.Finished = &finished
	}
	return s
}
