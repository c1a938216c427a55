package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"yearend/internal/domain/yearend"
)

type call struct {
	tenantID   string
	fiscalYear int
	userIDs    []string
	actor      yearend.Actor
}

type fakeReconciler struct {
	mu    sync.Mutex
	calls []call
	done  chan struct{}
	err   error
}

func (f *fakeReconciler) run(_ context.Context, tenantID string, fiscalYear int, userIDs []string, actor yearend.Actor) (yearend.BatchSummary, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{tenantID, fiscalYear, userIDs, actor})
	f.mu.Unlock()
	if f.done != nil {
		f.done <- struct{}{}
	}
	return yearend.BatchSummary{Summary: yearend.RunCounts{Total: 1, Success: 1, FiscalYear: fiscalYear}}, f.err
}

func TestEnqueueReconciliationRunsOnWorker(t *testing.T) {
	fake := &fakeReconciler{done: make(chan struct{}, 1)}
	svc := New(nil, 0, fake.run, nil)
	ctx, cancel := context.WithCancel(context.Background())
	svc.Start(ctx)

	requester := yearend.Actor{UserID: "admin-1", RequestID: "req-9", IP: "10.0.0.7"}
	if !svc.EnqueueReconciliation("t1", 2024, []string{"u1"}, requester) {
		t.Fatal("expected job to be accepted")
	}
	select {
	case <-fake.done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}
	cancel()
	svc.Wait()

	if len(fake.calls) != 1 || fake.calls[0].tenantID != "t1" || fake.calls[0].fiscalYear != 2024 {
		t.Fatalf("unexpected calls %+v", fake.calls)
	}
	if len(fake.calls[0].userIDs) != 1 || fake.calls[0].userIDs[0] != "u1" {
		t.Fatalf("unexpected user ids %+v", fake.calls[0].userIDs)
	}
	if fake.calls[0].actor != requester {
		t.Fatalf("expected batch attributed to %+v, got %+v", requester, fake.calls[0].actor)
	}
}

func TestRunNowReportsFailure(t *testing.T) {
	svc := New(nil, 0, nil, nil)
	details, err := svc.RunNow(context.Background(), "test", "t1", func(context.Context) (any, error) {
		return nil, errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	payload, ok := details.(map[string]string)
	if !ok || payload["error"] != "boom" {
		t.Fatalf("unexpected details %#v", details)
	}
}

func TestRunScheduledVisitsEveryTenant(t *testing.T) {
	fake := &fakeReconciler{}
	tenants := func(context.Context) ([]string, error) { return []string{"t1", "t2"}, nil }
	svc := New(nil, time.Hour, fake.run, tenants)
	svc.now = func() time.Time { return time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC) }

	svc.runScheduled(context.Background())

	if len(fake.calls) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(fake.calls))
	}
	for _, c := range fake.calls {
		if c.fiscalYear != 2025 || c.userIDs != nil || c.actor.RequestID != schedulerActor || c.actor.UserID != "" {
			t.Fatalf("unexpected scheduled call %+v", c)
		}
	}
}

func TestEnqueueRejectsWhenQueueFull(t *testing.T) {
	svc := New(nil, 0, (&fakeReconciler{}).run, nil)
	svc.queue = make(chan job, 1)
	if !svc.EnqueueReconciliation("t1", 2024, nil, yearend.Actor{}) {
		t.Fatal("expected first job accepted")
	}
	if svc.EnqueueReconciliation("t1", 2024, nil, yearend.Actor{}) {
		t.Fatal("expected second job rejected")
	}
}
