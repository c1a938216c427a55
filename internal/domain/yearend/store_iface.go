package yearend

import (
	"context"
	"time"

	"yearend/internal/domain/taxcalc"
)

// DeclarationSource returns the approved declaration, or nil when the
// employee has none for the year.
type DeclarationSource interface {
	ApprovedDeclaration(ctx context.Context, tenantID, userID string, fiscalYear int) (*Declaration, error)
}

type SlipLedger interface {
	ConfirmedSalarySlips(ctx context.Context, tenantID, userID string, fiscalYear int) ([]Slip, error)
	ApprovedBonusSlips(ctx context.Context, tenantID, userID string, fiscalYear int) ([]Slip, error)
}

type EmployeeDirectory interface {
	ListActiveEmployees(ctx context.Context, tenantID string) ([]string, error)
}

// ResultWriter must refuse, with ErrResultFinalized, to overwrite a result
// whose status is no longer calculated.
type ResultWriter interface {
	UpsertResult(ctx context.Context, tenantID, userID string, fiscalYear int, computation taxcalc.Computation) (Result, error)
}

type ResultStore interface {
	ResultWriter
	GetResult(ctx context.Context, tenantID, resultID string) (Result, error)
	ListResults(ctx context.Context, tenantID string, filter ResultFilter, limit, offset int) ([]Result, int, error)
	AdvanceResultStatus(ctx context.Context, tenantID, resultID, action, actor string, at time.Time) (Result, error)
}

type ReconcileStore interface {
	DeclarationSource
	SlipLedger
	ResultWriter
}

type StoreAPI interface {
	DeclarationSource
	SlipLedger
	EmployeeDirectory
	ResultStore
}
