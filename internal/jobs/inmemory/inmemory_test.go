package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/dvloznov/txn-insights/internal/jobs"
)

func waitForStatus(t *testing.T, store *Store, id string, want jobs.JobStatus) *jobs.LoadDatasetJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetJob(context.Background(), id)
		if err == nil && job.Status == want {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	job, _ := store.GetJob(context.Background(), id)
	t.Fatalf("job %s never reached %q; last state %+v", id, want, job)
	return nil
}

func TestQueue_CompletesJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	q := NewQueue(4, store, WithWorkers(1))
	defer q.Close()

	handler := func(_ context.Context, job jobs.Job) error {
		j := job.(*jobs.LoadDatasetJob)
		j.Result = &jobs.LoadResult{RowsRead: 10, RowsLoaded: 9, RowsSkipped: 1}
		return nil
	}
	if err := q.Start(ctx, handler); err != nil {
		t.Fatalf("Start: %v", err)
	}

	job := &jobs.LoadDatasetJob{URI: "synthetic://?rows=10"}
	if err := q.PublishLoadDataset(ctx, job); err != nil {
		t.Fatalf("PublishLoadDataset: %v", err)
	}
	if job.JobID == "" || job.MaxRetries != defaultMaxRetries {
		t.Fatalf("publish did not fill defaults: %+v", job)
	}

	got := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	if diff := cmp.Diff(&jobs.LoadResult{RowsRead: 10, RowsLoaded: 9, RowsSkipped: 1}, got.Result); diff != "" {
		t.Errorf("Result mismatch (-want +got):\n%s", diff)
	}
	if got.StartedAt == nil || got.CompletedAt == nil {
		t.Errorf("timestamps not set: %+v", got)
	}
}

func TestQueue_RetriesThenSucceeds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	q := NewQueue(4, store, WithBackoff(time.Millisecond))
	defer q.Close()

	var attempts atomic.Int32
	handler := func(context.Context, jobs.Job) error {
		if attempts.Add(1) < 3 {
			return errors.New("bucket unavailable")
		}
		return nil
	}
	if err := q.Start(ctx, handler); err != nil {
		t.Fatalf("Start: %v", err)
	}

	job := &jobs.LoadDatasetJob{URI: "gs://data/upi.csv"}
	if err := q.PublishLoadDataset(ctx, job); err != nil {
		t.Fatalf("PublishLoadDataset: %v", err)
	}

	got := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	if got.RetryCount != 2 || got.Error != "" {
		t.Errorf("RetryCount = %d, Error = %q", got.RetryCount, got.Error)
	}
}

func TestQueue_FailsAfterMaxRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	q := NewQueue(4, store, WithBackoff(time.Millisecond))
	defer q.Close()

	if err := q.Start(ctx, func(context.Context, jobs.Job) error { return errors.New("no such file") }); err != nil {
		t.Fatalf("Start: %v", err)
	}

	job := &jobs.LoadDatasetJob{URI: "/missing.csv", MaxRetries: 1}
	if err := q.PublishLoadDataset(ctx, job); err != nil {
		t.Fatalf("PublishLoadDataset: %v", err)
	}

	got := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	if got.RetryCount != 1 || got.Error != "no such file" {
		t.Errorf("RetryCount = %d, Error = %q", got.RetryCount, got.Error)
	}
}

func TestQueue_Closed(t *testing.T) {
	q := NewQueue(1, nil)
	if err := q.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := q.PublishLoadDataset(context.Background(), &jobs.LoadDatasetJob{URI: "x.csv"}); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Publish after close: err = %v", err)
	}
	if err := q.Start(context.Background(), func(context.Context, jobs.Job) error { return nil }); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Start after close: err = %v", err)
	}
	if err := q.Stop(context.Background()); err != nil {
		t.Errorf("second Stop: %v", err)
	}
}

func TestStore_ListJobs(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	base := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)

	for i, j := range []jobs.LoadDatasetJob{
		{JobID: "a", URI: "gs://data/a.csv", Status: jobs.JobStatusCompleted},
		{JobID: "b", URI: "gs://data/b.csv", Status: jobs.JobStatusFailed},
		{JobID: "c", URI: "gs://data/a.csv", Status: jobs.JobStatusCompleted},
		{JobID: "d", URI: "synthetic://", Status: jobs.JobStatusPending},
	} {
		j.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := store.SaveJob(ctx, &j); err != nil {
			t.Fatalf("SaveJob: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter jobs.JobFilter
		want   []string
	}{
		{"all newest first", jobs.JobFilter{}, []string{"d", "c", "b", "a"}},
		{"by uri", jobs.JobFilter{URI: "gs://data/a.csv"}, []string{"c", "a"}},
		{"by status", jobs.JobFilter{Status: jobs.JobStatusCompleted}, []string{"c", "a"}},
		{"page", jobs.JobFilter{Limit: 2, Offset: 1}, []string{"c", "b"}},
		{"offset past end", jobs.JobFilter{Offset: 10}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ListJobs(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListJobs: %v", err)
			}
			ids := []string{}
			for _, j := range got {
				ids = append(ids, j.JobID)
			}
			if diff := cmp.Diff(tt.want, ids); diff != "" {
				t.Errorf("ListJobs mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStore_GetAndUpdate(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	if _, err := store.GetJob(ctx, "nope"); !errors.Is(err, jobs.ErrJobNotFound) {
		t.Errorf("GetJob unknown: err = %v", err)
	}
	if err := store.UpdateJobStatus(ctx, "nope", jobs.JobStatusFailed, ""); !errors.Is(err, jobs.ErrJobNotFound) {
		t.Errorf("UpdateJobStatus unknown: err = %v", err)
	}
	if err := store.SaveJob(ctx, &jobs.LoadDatasetJob{}); err == nil {
		t.Error("SaveJob without ID succeeded")
	}

	job := &jobs.LoadDatasetJob{JobID: "j1", Status: jobs.JobStatusRunning, Result: &jobs.LoadResult{Errors: []string{"line 3"}}}
	if err := store.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob: %v", err)
	}
	job.Result.Errors[0] = "mutated"

	if err := store.UpdateJobStatus(ctx, "j1", jobs.JobStatusFailed, "boom"); err != nil {
		t.Fatalf("UpdateJobStatus: %v", err)
	}
	got, err := store.GetJob(ctx, "j1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != jobs.JobStatusFailed || got.Error != "boom" || got.Result.Errors[0] != "line 3" {
		t.Errorf("got %+v", got)
	}
}
