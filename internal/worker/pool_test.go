package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type testJob struct {
	id    int
	delay time.Duration
	err   error
	ran   *atomic.Int32
}

func (j *testJob) Execute(ctx context.Context) Result {
	if j.ran != nil {
		j.ran.Add(1)
	}
	if j.delay > 0 {
		select {
		case <-time.After(j.delay):
		case <-ctx.Done():
			return &testResult{id: j.id, err: ctx.Err()}
		}
	}
	return &testResult{id: j.id, err: j.err}
}

type testResult struct {
	id  int
	err error
}

func (r *testResult) GetError() error {
	return r.err
}

func TestPool_PreservesSubmissionOrder(t *testing.T) {
	pool := NewPool(context.Background(), 4)
	pool.Start()

	for i := 0; i < 20; i++ {
		// later jobs finish first
		pool.Submit(&testJob{id: i, delay: time.Duration(20-i) * time.Millisecond})
	}

	results := pool.Wait()
	if len(results) != 20 {
		t.Fatalf("expected 20 results, got %d", len(results))
	}
	for i, r := range results {
		if r.(*testResult).id != i {
			t.Errorf("slot %d holds job %d", i, r.(*testResult).id)
		}
	}
}

func TestPool_ManyJobsDoNotDeadlock(t *testing.T) {
	pool := NewPool(context.Background(), 2)
	pool.Start()

	for i := 0; i < 200; i++ {
		if !pool.Submit(&testJob{id: i}) {
			t.Fatalf("submit %d rejected", i)
		}
	}

	results := pool.Wait()
	if len(results) != 200 {
		t.Fatalf("expected 200 results, got %d", len(results))
	}
}

func TestPool_ErrorsStayInTheirSlot(t *testing.T) {
	pool := NewPool(context.Background(), 3)
	pool.Start()

	boom := errors.New("boom")
	for i := 0; i < 6; i++ {
		var err error
		if i%2 == 1 {
			err = boom
		}
		pool.Submit(&testJob{id: i, err: err})
	}

	results := pool.Wait()
	for i, r := range results {
		gotErr := r.GetError()
		if i%2 == 1 && !errors.Is(gotErr, boom) {
			t.Errorf("slot %d: expected boom, got %v", i, gotErr)
		}
		if i%2 == 0 && gotErr != nil {
			t.Errorf("slot %d: unexpected error %v", i, gotErr)
		}
	}
}

func TestPool_CancelSkipsQueuedJobs(t *testing.T) {
	pool := NewPool(context.Background(), 1)
	pool.Start()

	var ran atomic.Int32
	pool.Submit(&testJob{id: 0, delay: 50 * time.Millisecond, ran: &ran})
	pool.Cancel()

	if pool.Submit(&testJob{id: 1, ran: &ran}) {
		t.Error("expected submit after cancel to be rejected")
	}

	results := pool.Wait()
	if len(results) != 1 {
		t.Fatalf("expected 1 accepted job, got %d", len(results))
	}
	if ran.Load() > 1 {
		t.Errorf("expected at most 1 job to run, got %d", ran.Load())
	}
}

func TestPool_ParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPool(ctx, 2)
	pool.Start()

	pool.Submit(&testJob{id: 0, delay: time.Second})
	pool.Submit(&testJob{id: 1, delay: time.Second})

	start := time.Now()
	cancel()
	results := pool.Wait()

	if time.Since(start) > 500*time.Millisecond {
		t.Errorf("wait did not return promptly after cancellation")
	}
	for _, r := range results {
		if r != nil && !errors.Is(r.GetError(), context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", r.GetError())
		}
	}
}

func TestNewPool_ClampsWorkers(t *testing.T) {
	pool := NewPool(context.Background(), 0)
	if pool.workers != 1 {
		t.Errorf("expected 1 worker, got %d", pool.workers)
	}
	pool.Cancel()
}
