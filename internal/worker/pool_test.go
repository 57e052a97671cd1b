package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// mockResult implements Result
type mockResult struct {
	id  int
	err error
}

func (r *mockResult) GetError() error {
	return r.err
}

// mockJob implements Job
type mockJob struct {
	id        int
	duration  time.Duration
	shouldErr bool
	executed  *int32 // atomic counter
	inFlight  *int32
	maxSeen   *int32
}

func (j *mockJob) Execute(ctx context.Context) Result {
	if j.executed != nil {
		atomic.AddInt32(j.executed, 1)
	}
	if j.inFlight != nil {
		n := atomic.AddInt32(j.inFlight, 1)
		defer atomic.AddInt32(j.inFlight, -1)
		for {
			prev := atomic.LoadInt32(j.maxSeen)
			if n <= prev || atomic.CompareAndSwapInt32(j.maxSeen, prev, n) {
				break
			}
		}
	}
	if j.duration > 0 {
		select {
		case <-time.After(j.duration):
		case <-ctx.Done():
			return &mockResult{id: j.id, err: ctx.Err()}
		}
	}
	if j.shouldErr {
		return &mockResult{id: j.id, err: errors.New("job error")}
	}
	return &mockResult{id: j.id}
}

func TestNewPool(t *testing.T) {
	if p := NewPool(5); p.Workers() != 5 {
		t.Errorf("expected 5 workers, got %d", p.Workers())
	}
	if p := NewPool(0); p.Workers() != 1 {
		t.Errorf("expected default 1 worker for 0 input, got %d", p.Workers())
	}
	if p := NewPool(-1); p.Workers() != 1 {
		t.Errorf("expected default 1 worker for negative input, got %d", p.Workers())
	}
}

func TestPool_RunPreservesOrder(t *testing.T) {
	pool := NewPool(4)

	var executed int32
	count := 50
	jobs := make([]Job, count)
	for i := range jobs {
		// Later jobs finish first
		jobs[i] = &mockJob{id: i, duration: time.Duration(count-i) * 100 * time.Microsecond, executed: &executed}
	}

	results := pool.Run(context.Background(), jobs)

	if len(results) != count {
		t.Fatalf("expected %d results, got %d", count, len(results))
	}
	if atomic.LoadInt32(&executed) != int32(count) {
		t.Errorf("expected %d executed jobs, got %d", count, executed)
	}
	for i, r := range results {
		if r.(*mockResult).id != i {
			t.Fatalf("result %d belongs to job %d", i, r.(*mockResult).id)
		}
	}
}

func TestPool_BoundsConcurrency(t *testing.T) {
	pool := NewPool(3)

	var inFlight, maxSeen int32
	jobs := make([]Job, 12)
	for i := range jobs {
		jobs[i] = &mockJob{id: i, duration: 5 * time.Millisecond, inFlight: &inFlight, maxSeen: &maxSeen}
	}

	pool.Run(context.Background(), jobs)

	if maxSeen > 3 {
		t.Errorf("expected at most 3 concurrent jobs, saw %d", maxSeen)
	}
}

func TestPool_Errors(t *testing.T) {
	pool := NewPool(2)
	jobs := []Job{
		&mockJob{id: 0},
		&mockJob{id: 1, shouldErr: true},
		&mockJob{id: 2},
	}

	results := pool.Run(context.Background(), jobs)

	if results[0].GetError() != nil || results[2].GetError() != nil {
		t.Error("expected jobs 0 and 2 to succeed")
	}
	if results[1].GetError() == nil {
		t.Error("expected job 1 to fail")
	}
}

func TestPool_CanceledContext(t *testing.T) {
	pool := NewPool(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	jobs := []Job{&mockJob{id: 0}, &mockJob{id: 1}, &mockJob{id: 2}}
	results := pool.Run(ctx, jobs)

	if len(results) != 3 {
		t.Fatalf("expected a result per job, got %d", len(results))
	}
	for i, r := range results {
		if r == nil {
			t.Fatalf("result %d is nil", i)
		}
		if c, ok := r.(*CanceledResult); ok && !errors.Is(c.GetError(), context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", c.GetError())
		}
	}
}

func TestPool_NoJobs(t *testing.T) {
	results := NewPool(2).Run(context.Background(), nil)
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}
