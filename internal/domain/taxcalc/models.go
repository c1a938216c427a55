package taxcalc

import "fmt"

const (
	DisabilityNone              = "none"
	DisabilityGeneral           = "general"
	DisabilitySpecial           = "special"
	DisabilitySpecialCohabiting = "special_cohabiting"
)

// AnnualEarnings is the per-employee fold of salary and bonus slips for one
// fiscal year.
type AnnualEarnings struct {
	TotalSalary         int64 `json:"totalSalary"`
	TotalBonus          int64 `json:"totalBonus"`
	WithheldTax         int64 `json:"withheldTax"`
	SocialInsurancePaid int64 `json:"socialInsurancePaid"`
}

func (e AnnualEarnings) TotalIncome() int64 {
	return e.TotalSalary + e.TotalBonus
}

// Declaration holds the deduction inputs an employee declared for the year.
// The zero value means "nothing declared".
type Declaration struct {
	HasSpouse    bool  `json:"hasSpouse"`
	SpouseIncome int64 `json:"spouseIncome"`
	SpouseAge    int   `json:"spouseAge"`

	DependentsTotal    int `json:"dependentsTotal"`
	SpecificDependents int `json:"specificDependents"`
	ElderlyDependents  int `json:"elderlyDependents"`

	DisabilityType string `json:"disabilityType"`

	IsWidow          bool `json:"isWidow"`
	IsSingleParent   bool `json:"isSingleParent"`
	IsWorkingStudent bool `json:"isWorkingStudent"`

	NewLifeInsurance    int64 `json:"newLifeInsurance"`
	OldLifeInsurance    int64 `json:"oldLifeInsurance"`
	MedicalInsurance    int64 `json:"medicalInsurance"`
	NewPensionInsurance int64 `json:"newPensionInsurance"`
	OldPensionInsurance int64 `json:"oldPensionInsurance"`
	EarthquakeInsurance int64 `json:"earthquakeInsurance"`

	SmallBusinessMutualAid int64 `json:"smallBusinessMutualAid"`
	Ideco                  int64 `json:"ideco"`

	NationalPension         int64 `json:"nationalPension"`
	NationalHealthInsurance int64 `json:"nationalHealthInsurance"`
	OtherSocialInsurance    int64 `json:"otherSocialInsurance"`

	HasMortgage     bool   `json:"hasMortgage"`
	MortgageBalance int64  `json:"mortgageBalance"`
	MortgageRate    string `json:"mortgageRate,omitempty"`
	MortgageCap     int64  `json:"mortgageCap"`
}

// Validate rejects declarations carrying negative amounts or counts, or
// sub-counts larger than the dependent total.
func (d Declaration) Validate() error {
	amounts := []struct {
		field string
		value int64
	}{
		{"spouseIncome", d.SpouseIncome},
		{"dependentsTotal", int64(d.DependentsTotal)},
		{"specificDependents", int64(d.SpecificDependents)},
		{"elderlyDependents", int64(d.ElderlyDependents)},
		{"newLifeInsurance", d.NewLifeInsurance},
		{"oldLifeInsurance", d.OldLifeInsurance},
		{"medicalInsurance", d.MedicalInsurance},
		{"newPensionInsurance", d.NewPensionInsurance},
		{"oldPensionInsurance", d.OldPensionInsurance},
		{"earthquakeInsurance", d.EarthquakeInsurance},
		{"smallBusinessMutualAid", d.SmallBusinessMutualAid},
		{"ideco", d.Ideco},
		{"nationalPension", d.NationalPension},
		{"nationalHealthInsurance", d.NationalHealthInsurance},
		{"otherSocialInsurance", d.OtherSocialInsurance},
		{"mortgageBalance", d.MortgageBalance},
		{"mortgageCap", d.MortgageCap},
	}
	for _, a := range amounts {
		if a.value < 0 {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalidDeclaration, a.field)
		}
	}
	if d.SpecificDependents+d.ElderlyDependents > d.DependentsTotal {
		return fmt.Errorf("%w: specific and elderly dependents exceed dependentsTotal", ErrInvalidDeclaration)
	}
	switch d.DisabilityType {
	case "", DisabilityNone, DisabilityGeneral, DisabilitySpecial, DisabilitySpecialCohabiting:
	default:
		return fmt.Errorf("%w: unknown disabilityType %q", ErrInvalidDeclaration, d.DisabilityType)
	}
	return nil
}

// Computation carries every intermediate amount of one employee's
// reconciliation. It is a pure function of AnnualEarnings and Declaration.
type Computation struct {
	TotalSalary int64 `json:"totalSalary"`
	TotalBonus  int64 `json:"totalBonus"`
	TotalIncome int64 `json:"totalIncome"`

	EmploymentIncomeDeduction int64 `json:"employmentIncomeDeduction"`
	EmploymentIncome          int64 `json:"employmentIncome"`

	BasicDeduction                  int64 `json:"basicDeduction"`
	SpouseDeduction                 int64 `json:"spouseDeduction"`
	SpouseSpecialDeduction          int64 `json:"spouseSpecialDeduction"`
	DependentDeduction              int64 `json:"dependentDeduction"`
	DisabilityDeduction             int64 `json:"disabilityDeduction"`
	WidowDeduction                  int64 `json:"widowDeduction"`
	SingleParentDeduction           int64 `json:"singleParentDeduction"`
	WorkingStudentDeduction         int64 `json:"workingStudentDeduction"`
	SocialInsuranceDeduction        int64 `json:"socialInsuranceDeduction"`
	LifeInsuranceDeduction          int64 `json:"lifeInsuranceDeduction"`
	EarthquakeInsuranceDeduction    int64 `json:"earthquakeInsuranceDeduction"`
	SmallBusinessMutualAidDeduction int64 `json:"smallBusinessMutualAidDeduction"`
	TotalDeductions                 int64 `json:"totalDeductions"`

	TaxableIncome            int64 `json:"taxableIncome"`
	CalculatedTax            int64 `json:"calculatedTax"`
	SpecialReconstructionTax int64 `json:"specialReconstructionTax"`
	TotalTax                 int64 `json:"totalTax"`
	MortgageDeduction        int64 `json:"mortgageDeduction"`
	FinalTax                 int64 `json:"finalTax"`

	WithheldTaxTotal int64 `json:"withheldTaxTotal"`
	AdjustmentAmount int64 `json:"adjustmentAmount"`
	IsRefund         bool  `json:"isRefund"`
}
