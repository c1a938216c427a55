package taxcalc

// EmploymentIncomeDeduction applies the band for totalIncome. The flat first
// band covers zero income too; EmploymentIncome clamps the difference.
func EmploymentIncomeDeduction(totalIncome int64) int64 {
	for _, band := range EmploymentIncomeDeductionTable {
		if totalIncome > band.Ceiling {
			continue
		}
		if band.Flat > 0 {
			return band.Flat
		}
		return mulFloor(totalIncome, band.Rate) + band.Offset
	}
	return 0
}

// EmploymentIncome is total income less its deduction, never negative.
func EmploymentIncome(totalIncome int64) int64 {
	return nonNegative(totalIncome - EmploymentIncomeDeduction(totalIncome))
}

func BasicDeduction(employmentIncome int64) int64 {
	for _, band := range BasicDeductionTable {
		if employmentIncome <= band.Ceiling {
			return band.Amount
		}
	}
	return 0
}

// SpouseDeductions returns the spouse deduction and the spouse special
// deduction. At most one of them is non-zero.
func SpouseDeductions(hasSpouse bool, spouseIncome int64) (spouse, special int64) {
	if !hasSpouse {
		return 0, 0
	}
	switch {
	case spouseIncome <= SpouseIncomeLimit:
		return SpouseDeductionAmount, 0
	case spouseIncome <= SpouseSpecialIncomeLimit:
		steps := (SpouseSpecialIncomeLimit - spouseIncome) / SpouseSpecialStep
		return 0, steps * SpouseSpecialUnit
	default:
		return 0, 0
	}
}

// DependentDeduction counts general dependents as the total minus the
// specific and elderly sub-counts.
func DependentDeduction(total, specific, elderly int) int64 {
	general := total - specific - elderly
	if general < 0 {
		general = 0
	}
	return int64(general)*GeneralDependentAmount +
		int64(max(specific, 0))*SpecificDependentAmount +
		int64(max(elderly, 0))*ElderlyDependentAmount
}

func DisabilityDeduction(disabilityType string) int64 {
	switch disabilityType {
	case DisabilityGeneral:
		return DisabilityGeneralAmount
	case DisabilitySpecial:
		return DisabilitySpecialAmount
	case DisabilitySpecialCohabiting:
		return DisabilitySpecialCohabitingAmount
	default:
		return 0
	}
}

func WidowDeduction(isWidow bool) int64 {
	return flag(isWidow, WidowAmount)
}

func SingleParentDeduction(isSingleParent bool) int64 {
	return flag(isSingleParent, SingleParentAmount)
}

func WorkingStudentDeduction(isWorkingStudent bool) int64 {
	return flag(isWorkingStudent, WorkingStudentAmount)
}

// LifeInsuranceDeduction caps each premium category and then the sum.
func LifeInsuranceDeduction(newLife, oldLife, medical, newPension, oldPension int64) int64 {
	sum := capAt(newLife, NewLifeInsuranceCap) +
		capAt(oldLife, OldLifeInsuranceCap) +
		capAt(medical, MedicalInsuranceCap) +
		capAt(newPension, NewPensionInsuranceCap) +
		capAt(oldPension, OldPensionInsuranceCap)
	return capAt(sum, LifeInsuranceTotalCap)
}

func EarthquakeInsuranceDeduction(premium int64) int64 {
	return capAt(premium, EarthquakeInsuranceCap)
}

func SmallBusinessMutualAidDeduction(ideco, mutualAid int64) int64 {
	return nonNegative(ideco) + nonNegative(mutualAid)
}

func SocialInsuranceDeduction(ledgerPaid, nationalPension, nationalHealth, other int64) int64 {
	return nonNegative(ledgerPaid) + nonNegative(nationalPension) + nonNegative(nationalHealth) + nonNegative(other)
}

// TaxableIncome floors the remainder to TaxableIncomeUnit and clamps at zero.
func TaxableIncome(employmentIncome, totalDeductions int64) int64 {
	remainder := employmentIncome - totalDeductions
	if remainder <= 0 {
		return 0
	}
	return remainder / TaxableIncomeUnit * TaxableIncomeUnit
}

type ruleInput struct {
	employmentIncome int64
	earnings         AnnualEarnings
	decl             Declaration
}

type deductionRule struct {
	name   string
	amount func(in ruleInput) int64
	assign func(c *Computation, amount int64)
}

var deductionRules = []deductionRule{
	{
		name:   "basic",
		amount: func(in ruleInput) int64 { return BasicDeduction(in.employmentIncome) },
		assign: func(c *Computation, v int64) { c.BasicDeduction = v },
	},
	{
		name: "spouse",
		amount: func(in ruleInput) int64 {
			spouse, _ := SpouseDeductions(in.decl.HasSpouse, in.decl.SpouseIncome)
			return spouse
		},
		assign: func(c *Computation, v int64) { c.SpouseDeduction = v },
	},
	{
		name: "spouse_special",
		amount: func(in ruleInput) int64 {
			_, special := SpouseDeductions(in.decl.HasSpouse, in.decl.SpouseIncome)
			return special
		},
		assign: func(c *Computation, v int64) { c.SpouseSpecialDeduction = v },
	},
	{
		name: "dependent",
		amount: func(in ruleInput) int64 {
			return DependentDeduction(in.decl.DependentsTotal, in.decl.SpecificDependents, in.decl.ElderlyDependents)
		},
		assign: func(c *Computation, v int64) { c.DependentDeduction = v },
	},
	{
		name:   "disability",
		amount: func(in ruleInput) int64 { return DisabilityDeduction(in.decl.DisabilityType) },
		assign: func(c *Computation, v int64) { c.DisabilityDeduction = v },
	},
	{
		name:   "widow",
		amount: func(in ruleInput) int64 { return WidowDeduction(in.decl.IsWidow) },
		assign: func(c *Computation, v int64) { c.WidowDeduction = v },
	},
	{
		name:   "single_parent",
		amount: func(in ruleInput) int64 { return SingleParentDeduction(in.decl.IsSingleParent) },
		assign: func(c *Computation, v int64) { c.SingleParentDeduction = v },
	},
	{
		name:   "working_student",
		amount: func(in ruleInput) int64 { return WorkingStudentDeduction(in.decl.IsWorkingStudent) },
		assign: func(c *Computation, v int64) { c.WorkingStudentDeduction = v },
	},
	{
		name: "social_insurance",
		amount: func(in ruleInput) int64 {
			return SocialInsuranceDeduction(in.earnings.SocialInsurancePaid, in.decl.NationalPension, in.decl.NationalHealthInsurance, in.decl.OtherSocialInsurance)
		},
		assign: func(c *Computation, v int64) { c.SocialInsuranceDeduction = v },
	},
	{
		name: "life_insurance",
		amount: func(in ruleInput) int64 {
			d := in.decl
			return LifeInsuranceDeduction(d.NewLifeInsurance, d.OldLifeInsurance, d.MedicalInsurance, d.NewPensionInsurance, d.OldPensionInsurance)
		},
		assign: func(c *Computation, v int64) { c.LifeInsuranceDeduction = v },
	},
	{
		name:   "earthquake_insurance",
		amount: func(in ruleInput) int64 { return EarthquakeInsuranceDeduction(in.decl.EarthquakeInsurance) },
		assign: func(c *Computation, v int64) { c.EarthquakeInsuranceDeduction = v },
	},
	{
		name: "small_business_mutual_aid",
		amount: func(in ruleInput) int64 {
			return SmallBusinessMutualAidDeduction(in.decl.Ideco, in.decl.SmallBusinessMutualAid)
		},
		assign: func(c *Computation, v int64) { c.SmallBusinessMutualAidDeduction = v },
	},
}

// DeductionNames lists the income deductions in the order they are applied.
func DeductionNames() []string {
	names := make([]string, 0, len(deductionRules))
	for _, rule := range deductionRules {
		names = append(names, rule.name)
	}
	return names
}

func applyDeductions(c *Computation, earnings AnnualEarnings, decl Declaration) {
	in := ruleInput{employmentIncome: c.EmploymentIncome, earnings: earnings, decl: decl}
	var total int64
	for _, rule := range deductionRules {
		amount := nonNegative(rule.amount(in))
		rule.assign(c, amount)
		total += amount
	}
	c.TotalDeductions = total
}

func capAt(value, limit int64) int64 {
	if value <= 0 {
		return 0
	}
	if value > limit {
		return limit
	}
	return value
}

func flag(set bool, amount int64) int64 {
	if set {
		return amount
	}
	return 0
}

func nonNegative(value int64) int64 {
	if value < 0 {
		return 0
	}
	return value
}
