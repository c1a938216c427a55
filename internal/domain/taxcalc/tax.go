package taxcalc

import "github.com/shopspring/decimal"

// IncomeTax evaluates the first bracket whose ceiling covers the taxable
// income: floor(taxable × rate − subtraction).
func IncomeTax(taxableIncome int64) int64 {
	if taxableIncome <= 0 {
		return 0
	}
	for _, bracket := range IncomeTaxBrackets {
		if taxableIncome > bracket.Ceiling {
			continue
		}
		tax := decimal.NewFromInt(taxableIncome).
			Mul(bracket.Rate).
			Sub(decimal.NewFromInt(bracket.Subtraction)).
			Floor().
			IntPart()
		return nonNegative(tax)
	}
	return 0
}

func ReconstructionSurtax(calculatedTax int64) int64 {
	if calculatedTax <= 0 {
		return 0
	}
	return mulFloor(calculatedTax, ReconstructionSurtaxRate)
}

// MortgageDeduction is the housing loan credit against tax. A zero cap falls
// back to DefaultMortgageCap.
func MortgageDeduction(hasMortgage bool, loanBalance, limit int64) int64 {
	if !hasMortgage || loanBalance <= 0 {
		return 0
	}
	if limit <= 0 {
		limit = DefaultMortgageCap
	}
	return min(mulFloor(loanBalance, MortgageCreditRate), limit)
}

func FinalTax(totalTax, mortgageDeduction int64) int64 {
	return nonNegative(totalTax - mortgageDeduction)
}

// Compute runs the full deduction cascade and tax evaluation for one
// employee. The declaration is assumed valid; callers run Validate first.
func Compute(earnings AnnualEarnings, decl Declaration) Computation {
	c := Computation{
		TotalSalary:      earnings.TotalSalary,
		TotalBonus:       earnings.TotalBonus,
		TotalIncome:      earnings.TotalIncome(),
		WithheldTaxTotal: earnings.WithheldTax,
	}
	c.EmploymentIncomeDeduction = EmploymentIncomeDeduction(c.TotalIncome)
	c.EmploymentIncome = EmploymentIncome(c.TotalIncome)

	applyDeductions(&c, earnings, decl)

	c.TaxableIncome = TaxableIncome(c.EmploymentIncome, c.TotalDeductions)
	c.CalculatedTax = IncomeTax(c.TaxableIncome)
	c.SpecialReconstructionTax = ReconstructionSurtax(c.CalculatedTax)
	c.TotalTax = c.CalculatedTax + c.SpecialReconstructionTax
	c.MortgageDeduction = MortgageDeduction(decl.HasMortgage, decl.MortgageBalance, decl.MortgageCap)
	c.FinalTax = FinalTax(c.TotalTax, c.MortgageDeduction)

	c.AdjustmentAmount = c.WithheldTaxTotal - c.FinalTax
	c.IsRefund = c.AdjustmentAmount > 0
	return c
}
