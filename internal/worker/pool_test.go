package worker

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"restables/internal/driver"
	"restables/internal/exporter"
	"restables/internal/storage"
	"restables/internal/testdb"
)

func usersOpener(t *testing.T) OpenFunc {
	t.Helper()
	conn := testdb.Open(t, testdb.Users...)
	return func(ctx context.Context) (driver.RowStreamer, error) {
		rows, err := conn.DB().QueryContext(ctx, `SELECT id, name FROM users ORDER BY id`)
		if err != nil {
			return nil, err
		}
		return rows, nil
	}
}

func newPool(t *testing.T, opts Options) (*Pool, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewLocalProvider(dir)
	if err != nil {
		t.Fatal(err)
	}
	return NewPool(store, opts), dir
}

func wait(t *testing.T, job *ExportJob) Snapshot {
	t.Helper()
	select {
	case <-job.Done():
	case <-time.After(10 * time.Second):
		t.Fatalf("job %s did not finish", job.ID)
	}
	return job.Snapshot()
}

func TestJobKey(t *testing.T) {
	tests := []struct {
		spec Spec
		want string
	}{
		{Spec{}, ".csv"},
		{Spec{Format: exporter.FormatJSON}, ".jsonl"},
		{Spec{Format: exporter.FormatExcel, Compress: true}, ".xlsx.gz"},
	}
	for _, tc := range tests {
		job := NewExportJob(tc.spec, nil, time.Minute)
		if want := "exports/" + job.ID + tc.want; job.Key() != want {
			t.Errorf("Key() = %q, want %q", job.Key(), want)
		}
	}
}

func TestPoolExportsCSV(t *testing.T) {
	pool, dir := newPool(t, Options{Workers: 2})
	pool.Start()
	defer pool.Stop()

	job := NewExportJob(Spec{Connection: "main", Table: "users"}, usersOpener(t), time.Minute)
	if err := pool.Submit(job); err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	snap := wait(t, job)

	if snap.Status != StatusCompleted {
		t.Fatalf("status = %s, error = %s", snap.Status, snap.Error)
	}
	if snap.Rows != 5 {
		t.Errorf("rows = %d, want 5", snap.Rows)
	}
	if snap.Started == nil || snap.Finished == nil {
		t.Error("timestamps not recorded")
	}

	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(snap.Key)))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "\"id\",\"name\"\r\n1,\"ada\"\r\n") {
		t.Errorf("export = %q", data)
	}

	status, ok := pool.Status(job.ID)
	if !ok || !strings.HasPrefix(status.URL, "file://") {
		t.Errorf("Status() = %+v, %v", status, ok)
	}
}

func TestPoolExportsCompressedJSON(t *testing.T) {
	pool, dir := newPool(t, Options{Workers: 1})
	pool.Start()
	defer pool.Stop()

	job := NewExportJob(Spec{Connection: "main", Table: "users", Format: exporter.FormatJSON, Compress: true}, usersOpener(t), time.Minute)
	if err := pool.Submit(job); err != nil {
		t.Fatal(err)
	}
	snap := wait(t, job)
	if snap.Status != StatusCompleted {
		t.Fatalf("status = %s, error = %s", snap.Status, snap.Error)
	}

	f, err := os.Open(filepath.Join(dir, filepath.FromSlash(snap.Key)))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatal(err)
	}
	data, err := io.ReadAll(zr)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), `{"id":1,"name":"ada"}`+"\n") {
		t.Errorf("export = %q", data)
	}
}

func TestPoolOpenFailure(t *testing.T) {
	pool, dir := newPool(t, Options{Workers: 1})
	pool.Start()
	defer pool.Stop()

	boom := errors.New("table vanished")
	job := NewExportJob(Spec{Table: "users"}, func(context.Context) (driver.RowStreamer, error) {
		return nil, boom
	}, time.Minute)
	if err := pool.Submit(job); err != nil {
		t.Fatal(err)
	}
	snap := wait(t, job)

	if snap.Status != StatusFailed || !strings.Contains(snap.Error, "table vanished") {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.Key != "" {
		t.Errorf("failed job has key %q", snap.Key)
	}
	entries, _ := os.ReadDir(filepath.Join(dir, "exports"))
	if len(entries) != 0 {
		t.Errorf("failed job left files: %v", entries)
	}
}

func TestPoolQueueFullAndStop(t *testing.T) {
	pool, _ := newPool(t, Options{Workers: 1, QueueSize: 1})

	first := NewExportJob(Spec{}, usersOpener(t), time.Minute)
	if err := pool.Submit(first); err != nil {
		t.Fatalf("first Submit error: %v", err)
	}
	second := NewExportJob(Spec{}, usersOpener(t), time.Minute)
	if err := pool.Submit(second); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("second Submit error = %v, want ErrQueueFull", err)
	}
	if _, ok := pool.Get(second.ID); ok {
		t.Error("rejected job is still tracked")
	}

	pool.Stop()
	snap := wait(t, first)
	if snap.Status != StatusFailed || snap.Error != ErrPoolStopped.Error() {
		t.Errorf("queued job after Stop = %+v", snap)
	}
	if err := pool.Submit(NewExportJob(Spec{}, nil, time.Minute)); !errors.Is(err, ErrPoolStopped) {
		t.Errorf("Submit after Stop error = %v", err)
	}
}

func TestPoolPrunesExpiredJobs(t *testing.T) {
	pool, _ := newPool(t, Options{Retention: time.Minute})
	old := NewExportJob(Spec{}, nil, time.Minute)
	old.finish(nil, "", errors.New("done long ago"))
	old.mu.Lock()
	old.finished = time.Now().Add(-2 * time.Minute)
	old.mu.Unlock()

	pool.mu.Lock()
	pool.jobs[old.ID] = old
	pool.pruneLocked(time.Now())
	pool.mu.Unlock()

	if _, ok := pool.Get(old.ID); ok {
		t.Error("expired job was not pruned")
	}
}
