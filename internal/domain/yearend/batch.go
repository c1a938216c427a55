package yearend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"yearend/internal/requestctx"
)

const (
	OutcomeSuccess            = "success"
	OutcomeNoEarnings         = "no_earnings"
	OutcomeFinalized          = "finalized"
	OutcomeInvalidDeclaration = "invalid_declaration"
	OutcomeCancelled          = "cancelled"
	OutcomeError              = "error"
)

type EmployeeReconciler interface {
	ReconcileEmployee(ctx context.Context, tenantID, userID string, fiscalYear int) (Result, error)
}

// Metrics receives per-employee outcomes and whole-batch durations.
type Metrics interface {
	ObserveEmployee(outcome string)
	ObserveBatch(fiscalYear int, duration time.Duration)
}

type Runner struct {
	reconciler EmployeeReconciler
	directory  EmployeeDirectory
	workers    int
	metrics    Metrics
}

func NewRunner(reconciler EmployeeReconciler, directory EmployeeDirectory, workers int, metrics Metrics) *Runner {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Runner{reconciler: reconciler, directory: directory, workers: workers, metrics: metrics}
}

// Run reconciles every target employee with bounded concurrency. Only
// whole-batch preconditions produce an error; per-employee failures are
// reported in the summary.
func (r *Runner) Run(ctx context.Context, tenantID string, fiscalYear int, userIDs []string) (BatchSummary, error) {
	if fiscalYear <= 0 {
		return BatchSummary{}, ErrFiscalYearRequired
	}
	if strings.TrimSpace(tenantID) == "" {
		return BatchSummary{}, ErrTenantRequired
	}

	targets := uniqueIDs(userIDs)
	if len(userIDs) > 0 && len(targets) == 0 {
		return BatchSummary{}, ErrUserIDsInvalid
	}
	if len(userIDs) == 0 {
		active, err := r.directory.ListActiveEmployees(ctx, tenantID)
		if err != nil {
			return BatchSummary{}, fmt.Errorf("resolve active employees: %w", err)
		}
		targets = uniqueIDs(active)
	}

	start := time.Now()
	outcomes := make([]EmployeeOutcome, len(targets))

	g := new(errgroup.Group)
	g.SetLimit(r.workers)
	for i, userID := range targets {
		g.Go(func() error {
			outcomes[i] = r.reconcileOne(ctx, tenantID, userID, fiscalYear)
			return nil
		})
	}
	_ = g.Wait()

	summary := BatchSummary{
		Results: outcomes,
		Summary: RunCounts{Total: len(outcomes), FiscalYear: fiscalYear},
	}
	for _, outcome := range outcomes {
		if outcome.Success {
			summary.Summary.Success++
		} else {
			summary.Summary.Error++
		}
	}
	if r.metrics != nil {
		r.metrics.ObserveBatch(fiscalYear, time.Since(start))
	}
	slog.Info("year-end batch completed",
		"tenantId", tenantID,
		"fiscalYear", fiscalYear,
		"total", summary.Summary.Total,
		"success", summary.Summary.Success,
		"error", summary.Summary.Error,
		"requestId", requestctx.GetRequestID(ctx),
	)
	return summary, nil
}

func (r *Runner) reconcileOne(ctx context.Context, tenantID, userID string, fiscalYear int) EmployeeOutcome {
	if err := ctx.Err(); err != nil {
		r.observe(OutcomeCancelled)
		return EmployeeOutcome{UserID: userID, Error: err.Error()}
	}

	result, err := r.reconciler.ReconcileEmployee(ctx, tenantID, userID, fiscalYear)
	if err != nil {
		slog.Warn("year-end reconciliation failed",
			"tenantId", tenantID,
			"userId", userID,
			"fiscalYear", fiscalYear,
			"requestId", requestctx.GetRequestID(ctx),
			"err", err,
		)
		r.observe(outcomeLabel(err))
		return EmployeeOutcome{UserID: userID, Error: err.Error()}
	}
	r.observe(OutcomeSuccess)
	return EmployeeOutcome{UserID: userID, Success: true, Result: &result}
}

func (r *Runner) observe(outcome string) {
	if r.metrics != nil {
		r.metrics.ObserveEmployee(outcome)
	}
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, ErrNoEarningsData):
		return OutcomeNoEarnings
	case errors.Is(err, ErrResultFinalized):
		return OutcomeFinalized
	case errors.Is(err, ErrInvalidDeclaration):
		return OutcomeInvalidDeclaration
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCancelled
	default:
		return OutcomeError
	}
}

func uniqueIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
