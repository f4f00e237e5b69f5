package cleanup

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/benvon/tagtube/internal/queue"
)

type mockEnqueuer struct {
	mu   sync.Mutex
	jobs []*queue.Job
	err  error
}

func (m *mockEnqueuer) Enqueue(ctx context.Context, job *queue.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.jobs = append(m.jobs, job)
	return nil
}

func TestQueueNotifier_EnqueuesDelayedSweep(t *testing.T) {
	t.Parallel()

	q := &mockEnqueuer{}
	n := NewQueueNotifier(q, 5*time.Second)

	if err := n.NotifyTouched(context.Background(), "u", []string{"v1", "v2"}); err != nil {
		t.Fatalf("NotifyTouched failed: %v", err)
	}
	if len(q.jobs) != 1 {
		t.Fatalf("Expected one job, got %d", len(q.jobs))
	}
	job := q.jobs[0]
	if job.Type != queue.JobTypeOrphanSweep || job.UserID != "u" || !reflect.DeepEqual(job.VideoIDs, []string{"v1", "v2"}) {
		t.Errorf("Unexpected job %+v", job)
	}
	if job.NotBefore == nil || !job.NotBefore.After(time.Now()) {
		t.Error("Expected the sweep to be debounced")
	}
}

func TestQueueNotifier_EmptyAndErrors(t *testing.T) {
	t.Parallel()

	q := &mockEnqueuer{err: errors.New("channel closed")}
	n := NewQueueNotifier(q, 0)

	if err := n.NotifyTouched(context.Background(), "u", nil); err != nil {
		t.Errorf("Expected no-op for empty ids, got %v", err)
	}
	if err := n.NotifyTouched(context.Background(), "u", []string{"v"}); err == nil {
		t.Error("Expected enqueue error to be returned")
	}
}

func TestAsyncNotifier_SweepsInBackground(t *testing.T) {
	t.Parallel()

	finder := &mockOrphanFinder{}
	deleter := &mockDeleter{}
	n := NewAsyncNotifier(NewSweeper(finder, deleter, nil), time.Second, nil)

	ctx, cancel := context.WithCancel(context.Background())
	if err := n.NotifyTouched(ctx, "u", []string{"v1"}); err != nil {
		t.Fatalf("NotifyTouched failed: %v", err)
	}
	// The caller going away must not abort the sweep
	cancel()
	n.Wait()

	if len(deleter.calls) != 1 || !reflect.DeepEqual(deleter.calls[0], []string{"v1"}) {
		t.Errorf("Expected background delete of v1, got %v", deleter.calls)
	}
}

func TestAsyncNotifier_FailureIsSwallowed(t *testing.T) {
	t.Parallel()

	n := NewAsyncNotifier(NewSweeper(&mockOrphanFinder{}, &mockDeleter{err: errors.New("boom")}, nil), 0, nil)
	if err := n.NotifyTouched(context.Background(), "u", []string{"v"}); err != nil {
		t.Fatalf("Expected NotifyTouched to succeed, got %v", err)
	}
	n.Wait()
}
