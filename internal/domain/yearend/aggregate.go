package yearend

import (
	"slices"
	"strconv"
	"strings"

	"yearend/internal/domain/taxcalc"
)

// Aggregate folds the qualifying salary and bonus slips of one employee into
// AnnualEarnings. The boolean is false when no slip qualifies, which callers
// must treat as missing data rather than zero earnings.
func Aggregate(fiscalYear int, salarySlips, bonusSlips []Slip) (taxcalc.AnnualEarnings, bool) {
	prefix := strconv.Itoa(fiscalYear)
	var earnings taxcalc.AnnualEarnings
	found := false

	for _, slip := range salarySlips {
		if !inFiscalYear(slip, prefix) || !slices.Contains(salaryStatuses, slip.Status) {
			continue
		}
		found = true
		earnings = addSlip(earnings, slip, SlipKindSalary)
	}
	for _, slip := range bonusSlips {
		if !inFiscalYear(slip, prefix) || !slices.Contains(bonusStatuses, slip.Status) {
			continue
		}
		found = true
		earnings = addSlip(earnings, slip, SlipKindBonus)
	}
	return earnings, found
}

func addSlip(acc taxcalc.AnnualEarnings, slip Slip, kind string) taxcalc.AnnualEarnings {
	if kind == SlipKindBonus {
		acc.TotalBonus += slip.GrossPay
	} else {
		acc.TotalSalary += slip.GrossPay
	}
	acc.WithheldTax += slip.IncomeTax
	acc.SocialInsurancePaid += slip.InsurancePaid()
	return acc
}

func inFiscalYear(slip Slip, prefix string) bool {
	return strings.HasPrefix(strings.TrimSpace(slip.PayPeriod), prefix)
}
