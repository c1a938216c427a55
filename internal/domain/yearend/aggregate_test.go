package yearend

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateFiltersByPeriodAndStatus(t *testing.T) {
	salary := []Slip{
		{PayPeriod: "2024-01", Status: SalarySlipStatusConfirmed, GrossPay: 300_000, IncomeTax: 7_000, HealthInsurance: 15_000, PensionInsurance: 27_000, EmploymentInsurance: 1_800},
		{PayPeriod: "2024-02", Status: SalarySlipStatusPaid, GrossPay: 300_000, IncomeTax: 7_000},
		{PayPeriod: "2024-03", Status: "draft", GrossPay: 999_999, IncomeTax: 999},
		{PayPeriod: "2023-12", Status: SalarySlipStatusConfirmed, GrossPay: 888_888},
	}
	bonus := []Slip{
		{PayPeriod: "2024-07", Status: BonusSlipStatusApproved, GrossPay: 500_000, IncomeTax: 20_000, HealthInsurance: 25_000},
		{PayPeriod: "2024-12", Status: "pending", GrossPay: 700_000},
	}

	earnings, ok := Aggregate(2024, salary, bonus)
	require.True(t, ok)
	assert.Equal(t, int64(600_000), earnings.TotalSalary)
	assert.Equal(t, int64(500_000), earnings.TotalBonus)
	assert.Equal(t, int64(34_000), earnings.WithheldTax)
	assert.Equal(t, int64(68_800), earnings.SocialInsurancePaid)
	assert.Equal(t, int64(1_100_000), earnings.TotalIncome())
}

func TestAggregateNoQualifyingSlips(t *testing.T) {
	_, ok := Aggregate(2024, []Slip{{PayPeriod: "2024-01", Status: "draft", GrossPay: 1}}, nil)
	assert.False(t, ok)

	_, ok = Aggregate(2024, nil, nil)
	assert.False(t, ok)
}

func TestAggregateZeroAmountSlipStillCounts(t *testing.T) {
	earnings, ok := Aggregate(2024, []Slip{{PayPeriod: "2024-04", Status: SalarySlipStatusConfirmed}}, nil)
	require.True(t, ok)
	assert.Zero(t, earnings.TotalIncome())
}

func TestNextStatus(t *testing.T) {
	next, err := NextStatus(ResultStatusCalculated, ActionConfirm)
	require.NoError(t, err)
	assert.Equal(t, ResultStatusConfirmed, next)

	next, err = NextStatus(ResultStatusConfirmed, ActionPay)
	require.NoError(t, err)
	assert.Equal(t, ResultStatusPaid, next)

	invalid := []struct{ status, action string }{
		{ResultStatusCalculated, ActionPay},
		{ResultStatusConfirmed, ActionConfirm},
		{ResultStatusPaid, ActionConfirm},
		{ResultStatusPaid, ActionPay},
	}
	for _, tc := range invalid {
		_, err := NextStatus(tc.status, tc.action)
		assert.Truef(t, errors.Is(err, ErrInvalidTransition), "%s on %s", tc.action, tc.status)
	}

	_, err = NextStatus(ResultStatusCalculated, "reopen")
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestUniqueIDs(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, uniqueIDs([]string{"a", " b ", "", "a", "c", "b"}))
	assert.Empty(t, uniqueIDs(nil))
}

func TestDeclarationInputIgnoresUnapproved(t *testing.T) {
	decl := &Declaration{Status: DeclarationStatusSubmitted}
	decl.HasSpouse = true
	assert.False(t, declarationInput(decl).HasSpouse)

	decl.Status = DeclarationStatusApproved
	assert.True(t, declarationInput(decl).HasSpouse)
	assert.False(t, declarationInput(nil).HasSpouse)
}

func TestYenFormatting(t *testing.T) {
	assert.Equal(t, "JPY 0", yen(0))
	assert.Equal(t, "JPY 999", yen(999))
	assert.Equal(t, "JPY 1,000", yen(1_000))
	assert.Equal(t, "JPY 166,760", yen(166_760))
	assert.Equal(t, "JPY -1,234,567", yen(-1_234_567))
}
