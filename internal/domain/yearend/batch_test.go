package yearend_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yearend/internal/domain/taxcalc"
	"yearend/internal/domain/yearend"
	"yearend/internal/domain/yearend/memstore"
)

const tenant = "tenant-1"

func seedSalary(store *memstore.Store, userID string, gross, withheld int64) {
	store.AddEmployee(tenant, userID)
	store.AddSalarySlip(tenant, yearend.Slip{
		UserID:    userID,
		PayPeriod: "2024-12",
		Status:    yearend.SalarySlipStatusConfirmed,
		GrossPay:  gross,
		IncomeTax: withheld,
	})
}

type recordingMetrics struct {
	mu       sync.Mutex
	outcomes map[string]int
	batches  int
}

func (m *recordingMetrics) ObserveEmployee(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.outcomes == nil {
		m.outcomes = map[string]int{}
	}
	m.outcomes[outcome]++
}

func (m *recordingMetrics) ObserveBatch(int, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches++
}

func newRunner(store *memstore.Store, metrics yearend.Metrics) *yearend.Runner {
	return yearend.NewRunner(yearend.NewReconciler(store), store, 4, metrics)
}

func TestRunReconcilesActiveEmployees(t *testing.T) {
	store := memstore.New()
	seedSalary(store, "u1", 4_000_000, 300_000)
	metrics := &recordingMetrics{}

	summary, err := newRunner(store, metrics).Run(context.Background(), tenant, 2024, nil)
	require.NoError(t, err)
	assert.Equal(t, yearend.RunCounts{Total: 1, Success: 1, Error: 0, FiscalYear: 2024}, summary.Summary)

	require.Len(t, summary.Results, 1)
	outcome := summary.Results[0]
	require.True(t, outcome.Success)
	require.NotNil(t, outcome.Result)
	result := outcome.Result
	assert.Equal(t, yearend.ResultStatusCalculated, result.Status)
	assert.Equal(t, int64(1_240_000), result.EmploymentIncomeDeduction)
	assert.Equal(t, int64(2_760_000), result.EmploymentIncome)
	assert.Equal(t, int64(480_000), result.BasicDeduction)
	assert.Equal(t, int64(2_280_000), result.TaxableIncome)
	assert.Equal(t, int64(130_500), result.CalculatedTax)
	assert.Equal(t, int64(2_740), result.SpecialReconstructionTax)
	assert.Equal(t, int64(133_240), result.FinalTax)
	assert.Equal(t, int64(300_000), result.WithheldTaxTotal)
	assert.Equal(t, int64(166_760), result.AdjustmentAmount)
	assert.True(t, result.IsRefund)

	assert.Equal(t, 1, metrics.outcomes[yearend.OutcomeSuccess])
	assert.Equal(t, 1, metrics.batches)
}

func TestRunEmployeeWithoutEarnings(t *testing.T) {
	store := memstore.New()
	store.AddEmployee(tenant, "u1")
	store.AddSalarySlip(tenant, yearend.Slip{UserID: "u1", PayPeriod: "2024-05", Status: "draft", GrossPay: 250_000})
	metrics := &recordingMetrics{}

	summary, err := newRunner(store, metrics).Run(context.Background(), tenant, 2024, nil)
	require.NoError(t, err)
	assert.Equal(t, yearend.RunCounts{Total: 1, Success: 0, Error: 1, FiscalYear: 2024}, summary.Summary)
	assert.False(t, summary.Results[0].Success)
	assert.Equal(t, "no earnings data", summary.Results[0].Error)
	assert.Zero(t, store.ResultCount(tenant))
	assert.Equal(t, 1, metrics.outcomes[yearend.OutcomeNoEarnings])
}

func TestRunIsIdempotent(t *testing.T) {
	store := memstore.New()
	seedSalary(store, "u1", 5_000_000, 150_000)
	runner := newRunner(store, nil)

	first, err := runner.Run(context.Background(), tenant, 2024, nil)
	require.NoError(t, err)
	second, err := runner.Run(context.Background(), tenant, 2024, nil)
	require.NoError(t, err)

	require.True(t, first.Results[0].Success)
	require.True(t, second.Results[0].Success)
	assert.Equal(t, first.Results[0].Result.ID, second.Results[0].Result.ID)
	assert.Equal(t, first.Results[0].Result.Computation, second.Results[0].Result.Computation)
	assert.Equal(t, 1, store.ResultCount(tenant))
}

func TestRunRecomputesWithNewSlips(t *testing.T) {
	store := memstore.New()
	seedSalary(store, "u1", 3_000_000, 100_000)
	runner := newRunner(store, nil)

	first, err := runner.Run(context.Background(), tenant, 2024, nil)
	require.NoError(t, err)

	store.AddBonusSlip(tenant, yearend.Slip{UserID: "u1", PayPeriod: "2024-06", Status: yearend.BonusSlipStatusApproved, GrossPay: 600_000, IncomeTax: 30_000})
	second, err := runner.Run(context.Background(), tenant, 2024, nil)
	require.NoError(t, err)

	assert.Equal(t, first.Results[0].Result.ID, second.Results[0].Result.ID)
	assert.Equal(t, int64(600_000), second.Results[0].Result.TotalBonus)
	assert.Equal(t, int64(3_600_000), second.Results[0].Result.TotalIncome)
	assert.Equal(t, 1, store.ResultCount(tenant))
}

func TestRunDoesNotOverwriteFinalizedResult(t *testing.T) {
	store := memstore.New()
	seedSalary(store, "u1", 4_000_000, 300_000)
	runner := newRunner(store, nil)
	ctx := context.Background()

	first, err := runner.Run(ctx, tenant, 2024, nil)
	require.NoError(t, err)
	resultID := first.Results[0].Result.ID
	confirmed, err := store.AdvanceResultStatus(ctx, tenant, resultID, yearend.ActionConfirm, "hr-1", time.Now())
	require.NoError(t, err)

	store.AddBonusSlip(tenant, yearend.Slip{UserID: "u1", PayPeriod: "2024-12", Status: yearend.BonusSlipStatusPaid, GrossPay: 1_000_000})
	second, err := runner.Run(ctx, tenant, 2024, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Summary.Error)
	assert.False(t, second.Results[0].Success)
	assert.Equal(t, "result already finalized", second.Results[0].Error)

	stored, err := store.GetResult(ctx, tenant, resultID)
	require.NoError(t, err)
	assert.Equal(t, confirmed.Computation, stored.Computation)
	assert.Equal(t, yearend.ResultStatusConfirmed, stored.Status)
}

type countingDirectory struct {
	calls int
}

func (d *countingDirectory) ListActiveEmployees(context.Context, string) ([]string, error) {
	d.calls++
	return []string{"u1"}, nil
}

func TestRunRequiresFiscalYear(t *testing.T) {
	dir := &countingDirectory{}
	runner := yearend.NewRunner(yearend.NewReconciler(memstore.New()), dir, 2, nil)

	_, err := runner.Run(context.Background(), tenant, 0, nil)
	require.ErrorIs(t, err, yearend.ErrFiscalYearRequired)
	assert.Zero(t, dir.calls)

	_, err = runner.Run(context.Background(), " ", 2024, nil)
	require.ErrorIs(t, err, yearend.ErrTenantRequired)
	assert.Zero(t, dir.calls)
}

type failingDirectory struct{}

func (failingDirectory) ListActiveEmployees(context.Context, string) ([]string, error) {
	return nil, errors.New("directory offline")
}

func TestRunDirectoryFailureIsBatchFatal(t *testing.T) {
	runner := yearend.NewRunner(yearend.NewReconciler(memstore.New()), failingDirectory{}, 2, nil)
	_, err := runner.Run(context.Background(), tenant, 2024, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "directory offline")
}

func TestRunExplicitUserIDsSkipDirectory(t *testing.T) {
	store := memstore.New()
	seedSalary(store, "u1", 4_000_000, 300_000)
	seedSalary(store, "u2", 6_000_000, 400_000)
	dir := &countingDirectory{}
	runner := yearend.NewRunner(yearend.NewReconciler(store), dir, 2, nil)

	summary, err := runner.Run(context.Background(), tenant, 2024, []string{"u2", "u2", "ghost"})
	require.NoError(t, err)
	assert.Zero(t, dir.calls)
	assert.Equal(t, yearend.RunCounts{Total: 2, Success: 1, Error: 1, FiscalYear: 2024}, summary.Summary)
	assert.Equal(t, "u2", summary.Results[0].UserID)
	assert.True(t, summary.Results[0].Success)
	assert.Equal(t, "ghost", summary.Results[1].UserID)
	assert.Equal(t, "no earnings data", summary.Results[1].Error)
}

func TestRunBlankOnlyUserIDsIsBatchFatal(t *testing.T) {
	store := memstore.New()
	seedSalary(store, "u1", 4_000_000, 300_000)
	seedSalary(store, "u2", 6_000_000, 400_000)
	dir := &countingDirectory{}
	runner := yearend.NewRunner(yearend.NewReconciler(store), dir, 2, nil)

	_, err := runner.Run(context.Background(), tenant, 2024, []string{" ", ""})
	require.ErrorIs(t, err, yearend.ErrUserIDsInvalid)
	assert.Zero(t, dir.calls)
	assert.Zero(t, store.ResultCount(tenant))
}

type failingWriter struct {
	*memstore.Store
	failFor string
}

func (f *failingWriter) UpsertResult(ctx context.Context, tenantID, userID string, fiscalYear int, c taxcalc.Computation) (yearend.Result, error) {
	if userID == f.failFor {
		return yearend.Result{}, errors.New("connection reset")
	}
	return f.Store.UpsertResult(ctx, tenantID, userID, fiscalYear, c)
}

func TestRunIsolatesPersistenceFailures(t *testing.T) {
	store := memstore.New()
	for _, id := range []string{"u1", "u2", "u3"} {
		seedSalary(store, id, 4_500_000, 200_000)
	}
	writer := &failingWriter{Store: store, failFor: "u2"}
	metrics := &recordingMetrics{}
	runner := yearend.NewRunner(yearend.NewReconciler(writer), store, 3, metrics)

	summary, err := runner.Run(context.Background(), tenant, 2024, nil)
	require.NoError(t, err)
	assert.Equal(t, yearend.RunCounts{Total: 3, Success: 2, Error: 1, FiscalYear: 2024}, summary.Summary)
	for _, outcome := range summary.Results {
		if outcome.UserID == "u2" {
			assert.False(t, outcome.Success)
			assert.Equal(t, "connection reset", outcome.Error)
			continue
		}
		assert.True(t, outcome.Success, outcome.UserID)
	}
	assert.Equal(t, 2, store.ResultCount(tenant))
	assert.Equal(t, 1, metrics.outcomes[yearend.OutcomeError])
}

func TestRunAppliesApprovedDeclaration(t *testing.T) {
	store := memstore.New()
	seedSalary(store, "u1", 4_000_000, 300_000)
	decl := yearend.Declaration{UserID: "u1", FiscalYear: 2024, Status: yearend.DeclarationStatusApproved}
	decl.HasSpouse = true
	decl.SpouseIncome = 0
	store.PutDeclaration(tenant, decl)

	summary, err := newRunner(store, nil).Run(context.Background(), tenant, 2024, nil)
	require.NoError(t, err)
	result := summary.Results[0].Result
	require.NotNil(t, result)
	assert.Equal(t, int64(380_000), result.SpouseDeduction)
	assert.Equal(t, int64(1_900_000), result.TaxableIncome)
}

func TestRunIgnoresDraftDeclaration(t *testing.T) {
	store := memstore.New()
	seedSalary(store, "u1", 4_000_000, 300_000)
	decl := yearend.Declaration{UserID: "u1", FiscalYear: 2024, Status: yearend.DeclarationStatusDraft}
	decl.HasSpouse = true
	store.PutDeclaration(tenant, decl)

	summary, err := newRunner(store, nil).Run(context.Background(), tenant, 2024, nil)
	require.NoError(t, err)
	assert.Zero(t, summary.Results[0].Result.SpouseDeduction)
}

func TestRunRejectsNegativeDeclaration(t *testing.T) {
	store := memstore.New()
	seedSalary(store, "u1", 4_000_000, 300_000)
	decl := yearend.Declaration{UserID: "u1", FiscalYear: 2024, Status: yearend.DeclarationStatusApproved}
	decl.NewLifeInsurance = -1
	store.PutDeclaration(tenant, decl)
	metrics := &recordingMetrics{}

	summary, err := newRunner(store, metrics).Run(context.Background(), tenant, 2024, nil)
	require.NoError(t, err)
	assert.False(t, summary.Results[0].Success)
	assert.Contains(t, summary.Results[0].Error, "newLifeInsurance")
	assert.Zero(t, store.ResultCount(tenant))
	assert.Equal(t, 1, metrics.outcomes[yearend.OutcomeInvalidDeclaration])
}

func TestRunAfterCancellation(t *testing.T) {
	store := memstore.New()
	seedSalary(store, "u1", 4_000_000, 300_000)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := newRunner(store, nil).Run(ctx, tenant, 2024, []string{"u1"})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Summary.Error)
	assert.Equal(t, context.Canceled.Error(), summary.Results[0].Error)
	assert.Zero(t, store.ResultCount(tenant))
}

func TestRunEmptyTenant(t *testing.T) {
	summary, err := newRunner(memstore.New(), nil).Run(context.Background(), tenant, 2024, nil)
	require.NoError(t, err)
	assert.Equal(t, yearend.RunCounts{FiscalYear: 2024}, summary.Summary)
	assert.Empty(t, summary.Results)
}
