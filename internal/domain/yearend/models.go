package yearend

import (
	"time"

	"yearend/internal/domain/taxcalc"
)

type Declaration struct {
	ID         string     `json:"id"`
	TenantID   string     `json:"tenantId"`
	UserID     string     `json:"userId"`
	FiscalYear int        `json:"fiscalYear"`
	Status     string     `json:"status"`
	ApprovedAt *time.Time `json:"approvedAt,omitempty"`
	taxcalc.Declaration
}

type Slip struct {
	ID                  string `json:"id"`
	UserID              string `json:"userId"`
	Kind                string `json:"kind"`
	PayPeriod           string `json:"payPeriod"`
	Status              string `json:"status"`
	GrossPay            int64  `json:"grossPay"`
	IncomeTax           int64  `json:"incomeTax"`
	HealthInsurance     int64  `json:"healthInsurance"`
	PensionInsurance    int64  `json:"pensionInsurance"`
	EmploymentInsurance int64  `json:"employmentInsurance"`
}

func (s Slip) InsurancePaid() int64 {
	return s.HealthInsurance + s.PensionInsurance + s.EmploymentInsurance
}

type Result struct {
	ID         string `json:"id"`
	TenantID   string `json:"tenantId"`
	UserID     string `json:"userId"`
	FiscalYear int    `json:"fiscalYear"`
	taxcalc.Computation
	Status      string     `json:"status"`
	ConfirmedBy string     `json:"confirmedBy,omitempty"`
	ConfirmedAt *time.Time `json:"confirmedAt,omitempty"`
	PaidAt      *time.Time `json:"paidAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type ResultFilter struct {
	UserID     string
	FiscalYear int
	Status     string
}

type EmployeeOutcome struct {
	UserID  string  `json:"userId"`
	Success bool    `json:"success"`
	Result  *Result `json:"result,omitempty"`
	Error   string  `json:"error,omitempty"`
}

type RunCounts struct {
	Total      int `json:"total"`
	Success    int `json:"success"`
	Error      int `json:"error"`
	FiscalYear int `json:"fiscalYear"`
}

type BatchSummary struct {
	Results []EmployeeOutcome `json:"results"`
	Summary RunCounts         `json:"summary"`
}
