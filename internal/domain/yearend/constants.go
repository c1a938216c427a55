package yearend

const (
	DeclarationStatusDraft     = "draft"
	DeclarationStatusSubmitted = "submitted"
	DeclarationStatusApproved  = "approved"
	DeclarationStatusRejected  = "rejected"

	SlipKindSalary = "salary"
	SlipKindBonus  = "bonus"

	SalarySlipStatusConfirmed = "confirmed"
	SalarySlipStatusPaid      = "paid"
	BonusSlipStatusApproved   = "approved"
	BonusSlipStatusPaid       = "paid"

	ResultStatusCalculated = "calculated"
	ResultStatusConfirmed  = "confirmed"
	ResultStatusPaid       = "paid"

	ActionConfirm = "confirm"
	ActionPay     = "pay"

	EmployeeStatusActive = "active"

	JobReconciliation = "year_end_reconciliation"

	DefaultWorkers = 8
)

var (
	salaryStatuses = []string{SalarySlipStatusConfirmed, SalarySlipStatusPaid}
	bonusStatuses  = []string{BonusSlipStatusApproved, BonusSlipStatusPaid}
)

// SalarySlipStatuses lists the salary slip statuses that count toward annual
// earnings.
func SalarySlipStatuses() []string {
	return append([]string(nil), salaryStatuses...)
}

// BonusSlipStatuses lists the bonus slip statuses that count toward annual
// earnings.
func BonusSlipStatuses() []string {
	return append([]string(nil), bonusStatuses...)
}
