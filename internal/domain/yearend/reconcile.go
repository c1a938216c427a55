package yearend

import (
	"context"
	"fmt"

	"yearend/internal/domain/taxcalc"
)

type Reconciler struct {
	store ReconcileStore
}

func NewReconciler(store ReconcileStore) *Reconciler {
	return &Reconciler{store: store}
}

// ReconcileEmployee computes and persists one employee's year-end result.
// Collaborator errors are returned as-is for the caller to record; nothing
// is retried here.
func (r *Reconciler) ReconcileEmployee(ctx context.Context, tenantID, userID string, fiscalYear int) (Result, error) {
	salarySlips, err := r.store.ConfirmedSalarySlips(ctx, tenantID, userID, fiscalYear)
	if err != nil {
		return Result{}, fmt.Errorf("load salary slips: %w", err)
	}
	bonusSlips, err := r.store.ApprovedBonusSlips(ctx, tenantID, userID, fiscalYear)
	if err != nil {
		return Result{}, fmt.Errorf("load bonus slips: %w", err)
	}
	earnings, ok := Aggregate(fiscalYear, salarySlips, bonusSlips)
	if !ok {
		return Result{}, ErrNoEarningsData
	}

	declaration, err := r.store.ApprovedDeclaration(ctx, tenantID, userID, fiscalYear)
	if err != nil {
		return Result{}, fmt.Errorf("load declaration: %w", err)
	}
	input := declarationInput(declaration)
	if err := input.Validate(); err != nil {
		return Result{}, err
	}

	computation := taxcalc.Compute(earnings, input)
	return r.store.UpsertResult(ctx, tenantID, userID, fiscalYear, computation)
}

// declarationInput treats an absent or non-approved declaration as one with
// nothing declared.
func declarationInput(declaration *Declaration) taxcalc.Declaration {
	if declaration == nil {
		return taxcalc.Declaration{}
	}
	if declaration.Status != "" && declaration.Status != DeclarationStatusApproved {
		return taxcalc.Declaration{}
	}
	return declaration.Declaration
}
