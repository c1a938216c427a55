package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"yearend/internal/domain/yearend"
	"yearend/internal/platform/querier"
)

const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// schedulerActor attributes scheduled batches, which have no requesting user.
const schedulerActor = "scheduler"

// ReconcileFunc runs one reconciliation batch for a tenant on behalf of actor.
type ReconcileFunc func(ctx context.Context, tenantID string, fiscalYear int, userIDs []string, actor yearend.Actor) (yearend.BatchSummary, error)

// TenantLister supplies the tenants the scheduler visits.
type TenantLister func(ctx context.Context) ([]string, error)

type Service struct {
	DB        querier.Querier
	Interval  time.Duration
	reconcile ReconcileFunc
	tenants   TenantLister
	now       func() time.Time
	queue     chan job
	wg        sync.WaitGroup
}

type job struct {
	Type     string
	TenantID string
	Run      func(context.Context) (any, error)
}

// New builds the job runner. db may be nil, in which case runs are executed
// without being recorded in job_runs.
func New(db querier.Querier, interval time.Duration, reconcile ReconcileFunc, tenants TenantLister) *Service {
	s := &Service{
		DB:        db,
		Interval:  interval,
		reconcile: reconcile,
		tenants:   tenants,
		now:       time.Now,
		queue:     make(chan job, 128),
	}
	if s.tenants == nil && db != nil {
		s.tenants = s.listTenants
	}
	return s
}

func (s *Service) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.worker(ctx)
	}()
	if s.Interval > 0 && s.tenants != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.schedule(ctx, s.Interval)
		}()
	}
}

// Wait blocks until the worker and scheduler have stopped. They stop when
// the context passed to Start is cancelled.
func (s *Service) Wait() {
	s.wg.Wait()
}

// EnqueueReconciliation queues a batch and reports whether it was accepted.
// The batch is audited under actor, the user who asked for it.
func (s *Service) EnqueueReconciliation(tenantID string, fiscalYear int, userIDs []string, actor yearend.Actor) bool {
	ids := append([]string(nil), userIDs...)
	return s.Enqueue(yearend.JobReconciliation, tenantID, func(ctx context.Context) (any, error) {
		summary, err := s.reconcile(ctx, tenantID, fiscalYear, ids, actor)
		return summary.Summary, err
	})
}

func (s *Service) Enqueue(jobType, tenantID string, run func(context.Context) (any, error)) bool {
	select {
	case s.queue <- job{Type: jobType, TenantID: tenantID, Run: run}:
		return true
	default:
		slog.Warn("job queue full", "jobType", jobType, "tenantId", tenantID)
		return false
	}
}

func (s *Service) RunNow(ctx context.Context, jobType, tenantID string, run func(context.Context) (any, error)) (any, error) {
	return s.runJob(ctx, job{Type: jobType, TenantID: tenantID, Run: run})
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.Type, "tenantId", j.TenantID, "err", err)
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	runID := s.startRun(ctx, j)

	details, err := j.Run(ctx)
	status := StatusCompleted
	if err != nil {
		status = StatusFailed
		details = map[string]string{"error": err.Error()}
	}
	s.finishRun(ctx, runID, status, details)
	return details, err
}

func (s *Service) startRun(ctx context.Context, j job) string {
	if s.DB == nil {
		return ""
	}
	var runID string
	if err := s.DB.QueryRow(ctx, `
    INSERT INTO job_runs (tenant_id, job_type, status)
    VALUES ($1,$2,$3)
    RETURNING id::text
  `, j.TenantID, j.Type, StatusRunning).Scan(&runID); err != nil {
		slog.Warn("job run insert failed", "err", err)
		return ""
	}
	return runID
}

func (s *Service) finishRun(ctx context.Context, runID, status string, details any) {
	if s.DB == nil || runID == "" {
		return
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		slog.Warn("job details marshal failed", "err", err)
		detailsJSON = []byte("{}")
	}
	if _, err := s.DB.Exec(ctx, `
    UPDATE job_runs
    SET status = $1, details_json = $2, completed_at = now()
    WHERE id = $3
  `, status, detailsJSON, runID); err != nil {
		slog.Warn("job run update failed", "err", err)
	}
}

func (s *Service) schedule(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runScheduled(ctx)
		}
	}
}

// runScheduled reconciles the current fiscal year for every tenant.
func (s *Service) runScheduled(ctx context.Context) {
	tenants, err := s.tenants(ctx)
	if err != nil {
		slog.Warn("reconcile scheduler tenant lookup failed", "err", err)
		return
	}
	fiscalYear := s.now().Year()
	for _, tenantID := range tenants {
		if ctx.Err() != nil {
			return
		}
		tenantID := tenantID
		if _, err := s.RunNow(ctx, yearend.JobReconciliation, tenantID, func(ctx context.Context) (any, error) {
			summary, err := s.reconcile(ctx, tenantID, fiscalYear, nil, yearend.Actor{RequestID: schedulerActor})
			return summary.Summary, err
		}); err != nil {
			slog.Warn("scheduled reconciliation failed", "tenantId", tenantID, "fiscalYear", fiscalYear, "err", err)
		}
	}
}

func (s *Service) listTenants(ctx context.Context) ([]string, error) {
	rows, err := s.DB.Query(ctx, "SELECT id::text FROM tenants ORDER BY created_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
