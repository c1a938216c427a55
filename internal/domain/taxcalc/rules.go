package taxcalc

import (
	"math"

	"github.com/shopspring/decimal"
)

// NoCeiling marks the open-ended last band of a table.
const NoCeiling int64 = math.MaxInt64

// EmploymentBand is one tier of the employment income deduction. A band with
// Flat > 0 ignores Rate and Offset.
type EmploymentBand struct {
	Ceiling int64
	Rate    decimal.Decimal
	Offset  int64
	Flat    int64
}

// StepBand maps every income up to Ceiling to a fixed Amount.
type StepBand struct {
	Ceiling int64
	Amount  int64
}

// Bracket is one band of the progressive income tax. Subtraction turns the
// single multiply into the marginal result for the band.
type Bracket struct {
	Ceiling     int64
	Rate        decimal.Decimal
	Subtraction int64
}

var EmploymentIncomeDeductionTable = []EmploymentBand{
	{Ceiling: 1_625_000, Flat: 550_000},
	{Ceiling: 1_800_000, Rate: decimal.RequireFromString("0.4"), Offset: -100_000},
	{Ceiling: 3_600_000, Rate: decimal.RequireFromString("0.3"), Offset: 80_000},
	{Ceiling: 6_600_000, Rate: decimal.RequireFromString("0.2"), Offset: 440_000},
	{Ceiling: 8_500_000, Rate: decimal.RequireFromString("0.1"), Offset: 1_100_000},
	{Ceiling: NoCeiling, Flat: 1_950_000},
}

var BasicDeductionTable = []StepBand{
	{Ceiling: 24_000_000, Amount: 480_000},
	{Ceiling: 24_500_000, Amount: 320_000},
	{Ceiling: 25_000_000, Amount: 160_000},
	{Ceiling: NoCeiling, Amount: 0},
}

var IncomeTaxBrackets = []Bracket{
	{Ceiling: 1_950_000, Rate: decimal.RequireFromString("0.05"), Subtraction: 0},
	{Ceiling: 3_300_000, Rate: decimal.RequireFromString("0.10"), Subtraction: 97_500},
	{Ceiling: 6_950_000, Rate: decimal.RequireFromString("0.20"), Subtraction: 427_500},
	{Ceiling: 9_000_000, Rate: decimal.RequireFromString("0.23"), Subtraction: 636_000},
	{Ceiling: 18_000_000, Rate: decimal.RequireFromString("0.33"), Subtraction: 1_536_000},
	{Ceiling: 40_000_000, Rate: decimal.RequireFromString("0.40"), Subtraction: 2_796_000},
	{Ceiling: NoCeiling, Rate: decimal.RequireFromString("0.45"), Subtraction: 4_796_000},
}

var (
	ReconstructionSurtaxRate = decimal.RequireFromString("0.021")
	MortgageCreditRate       = decimal.RequireFromString("0.01")
)

const (
	TaxableIncomeUnit int64 = 1_000

	SpouseIncomeLimit        int64 = 480_000
	SpouseSpecialIncomeLimit int64 = 1_330_000
	SpouseDeductionAmount    int64 = 380_000
	SpouseSpecialStep        int64 = 50_000
	SpouseSpecialUnit        int64 = 10_000

	GeneralDependentAmount  int64 = 380_000
	SpecificDependentAmount int64 = 630_000
	ElderlyDependentAmount  int64 = 480_000

	DisabilityGeneralAmount           int64 = 270_000
	DisabilitySpecialAmount           int64 = 400_000
	DisabilitySpecialCohabitingAmount int64 = 750_000

	WidowAmount          int64 = 270_000
	SingleParentAmount   int64 = 350_000
	WorkingStudentAmount int64 = 270_000

	NewLifeInsuranceCap    int64 = 40_000
	OldLifeInsuranceCap    int64 = 50_000
	MedicalInsuranceCap    int64 = 40_000
	NewPensionInsuranceCap int64 = 40_000
	OldPensionInsuranceCap int64 = 50_000
	LifeInsuranceTotalCap  int64 = 120_000

	EarthquakeInsuranceCap int64 = 50_000

	DefaultMortgageCap int64 = 400_000
)

// mulFloor multiplies an integer yen amount by a rate and floors the product.
func mulFloor(amount int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(amount).Mul(rate).Floor().IntPart()
}
