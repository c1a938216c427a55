package yearend

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"yearend/internal/domain/taxcalc"
)

var computationColumns = []string{
	"total_salary",
	"total_bonus",
	"total_income",
	"employment_income_deduction",
	"employment_income",
	"basic_deduction",
	"spouse_deduction",
	"spouse_special_deduction",
	"dependent_deduction",
	"disability_deduction",
	"widow_deduction",
	"single_parent_deduction",
	"working_student_deduction",
	"social_insurance_deduction",
	"life_insurance_deduction",
	"earthquake_insurance_deduction",
	"small_business_mutual_aid_deduction",
	"total_deductions",
	"taxable_income",
	"calculated_tax",
	"special_reconstruction_tax",
	"total_tax",
	"mortgage_deduction",
	"final_tax",
	"withheld_tax_total",
	"adjustment_amount",
	"is_refund",
}

func computationValues(c taxcalc.Computation) []any {
	return []any{
		c.TotalSalary,
		c.TotalBonus,
		c.TotalIncome,
		c.EmploymentIncomeDeduction,
		c.EmploymentIncome,
		c.BasicDeduction,
		c.SpouseDeduction,
		c.SpouseSpecialDeduction,
		c.DependentDeduction,
		c.DisabilityDeduction,
		c.WidowDeduction,
		c.SingleParentDeduction,
		c.WorkingStudentDeduction,
		c.SocialInsuranceDeduction,
		c.LifeInsuranceDeduction,
		c.EarthquakeInsuranceDeduction,
		c.SmallBusinessMutualAidDeduction,
		c.TotalDeductions,
		c.TaxableIncome,
		c.CalculatedTax,
		c.SpecialReconstructionTax,
		c.TotalTax,
		c.MortgageDeduction,
		c.FinalTax,
		c.WithheldTaxTotal,
		c.AdjustmentAmount,
		c.IsRefund,
	}
}

func computationTargets(c *taxcalc.Computation) []any {
	return []any{
		&c.TotalSalary,
		&c.TotalBonus,
		&c.TotalIncome,
		&c.EmploymentIncomeDeduction,
		&c.EmploymentIncome,
		&c.BasicDeduction,
		&c.SpouseDeduction,
		&c.SpouseSpecialDeduction,
		&c.DependentDeduction,
		&c.DisabilityDeduction,
		&c.WidowDeduction,
		&c.SingleParentDeduction,
		&c.WorkingStudentDeduction,
		&c.SocialInsuranceDeduction,
		&c.LifeInsuranceDeduction,
		&c.EarthquakeInsuranceDeduction,
		&c.SmallBusinessMutualAidDeduction,
		&c.TotalDeductions,
		&c.TaxableIncome,
		&c.CalculatedTax,
		&c.SpecialReconstructionTax,
		&c.TotalTax,
		&c.MortgageDeduction,
		&c.FinalTax,
		&c.WithheldTaxTotal,
		&c.AdjustmentAmount,
		&c.IsRefund,
	}
}

var resultColumns = "id::text, tenant_id::text, user_id::text, fiscal_year, " +
	strings.Join(computationColumns, ", ") +
	", status, COALESCE(confirmed_by::text, ''), confirmed_at, paid_at, created_at, updated_at"

func scanResult(row pgx.Row) (Result, error) {
	var result Result
	targets := []any{&result.ID, &result.TenantID, &result.UserID, &result.FiscalYear}
	targets = append(targets, computationTargets(&result.Computation)...)
	targets = append(targets, &result.Status, &result.ConfirmedBy, &result.ConfirmedAt, &result.PaidAt, &result.CreatedAt, &result.UpdatedAt)
	if err := row.Scan(targets...); err != nil {
		return Result{}, err
	}
	return result, nil
}

func (s *Store) ApprovedDeclaration(ctx context.Context, tenantID, userID string, fiscalYear int) (*Declaration, error) {
	var d Declaration
	err := s.DB.QueryRow(ctx, `
    SELECT id::text, tenant_id::text, user_id::text, fiscal_year, status, approved_at,
           has_spouse, COALESCE(spouse_income, 0), COALESCE(spouse_age, 0),
           COALESCE(dependents_total, 0), COALESCE(specific_dependents, 0), COALESCE(elderly_dependents, 0),
           COALESCE(disability_type, 'none'),
           is_widow, is_single_parent, is_working_student,
           COALESCE(new_life_insurance, 0), COALESCE(old_life_insurance, 0), COALESCE(medical_insurance, 0),
           COALESCE(new_pension_insurance, 0), COALESCE(old_pension_insurance, 0),
           COALESCE(earthquake_insurance, 0),
           COALESCE(small_business_mutual_aid, 0), COALESCE(ideco, 0),
           COALESCE(national_pension, 0), COALESCE(national_health_insurance, 0), COALESCE(other_social_insurance, 0),
           has_mortgage, COALESCE(mortgage_balance, 0), COALESCE(mortgage_rate::text, ''), COALESCE(mortgage_cap, 0)
    FROM year_end_declarations
    WHERE tenant_id = $1 AND user_id = $2 AND fiscal_year = $3 AND status = $4
  `, tenantID, userID, fiscalYear, DeclarationStatusApproved).Scan(
		&d.ID, &d.TenantID, &d.UserID, &d.FiscalYear, &d.Status, &d.ApprovedAt,
		&d.HasSpouse, &d.SpouseIncome, &d.SpouseAge,
		&d.DependentsTotal, &d.SpecificDependents, &d.ElderlyDependents,
		&d.DisabilityType,
		&d.IsWidow, &d.IsSingleParent, &d.IsWorkingStudent,
		&d.NewLifeInsurance, &d.OldLifeInsurance, &d.MedicalInsurance,
		&d.NewPensionInsurance, &d.OldPensionInsurance,
		&d.EarthquakeInsurance,
		&d.SmallBusinessMutualAid, &d.Ideco,
		&d.NationalPension, &d.NationalHealthInsurance, &d.OtherSocialInsurance,
		&d.HasMortgage, &d.MortgageBalance, &d.MortgageRate, &d.MortgageCap,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Store) ConfirmedSalarySlips(ctx context.Context, tenantID, userID string, fiscalYear int) ([]Slip, error) {
	return s.listSlips(ctx, "salary_slips", SlipKindSalary, tenantID, userID, fiscalYear, salaryStatuses)
}

func (s *Store) ApprovedBonusSlips(ctx context.Context, tenantID, userID string, fiscalYear int) ([]Slip, error) {
	return s.listSlips(ctx, "bonus_slips", SlipKindBonus, tenantID, userID, fiscalYear, bonusStatuses)
}

func (s *Store) listSlips(ctx context.Context, table, kind, tenantID, userID string, fiscalYear int, statuses []string) ([]Slip, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id::text, user_id::text, pay_period, status,
           gross_pay, income_tax, health_insurance, pension_insurance, employment_insurance
    FROM `+table+`
    WHERE tenant_id = $1 AND user_id = $2
      AND pay_period LIKE $3
      AND status = ANY($4)
    ORDER BY pay_period
  `, tenantID, userID, strconv.Itoa(fiscalYear)+"%", statuses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slips []Slip
	for rows.Next() {
		slip := Slip{Kind: kind}
		if err := rows.Scan(&slip.ID, &slip.UserID, &slip.PayPeriod, &slip.Status,
			&slip.GrossPay, &slip.IncomeTax, &slip.HealthInsurance, &slip.PensionInsurance, &slip.EmploymentInsurance); err != nil {
			return nil, err
		}
		slips = append(slips, slip)
	}
	return slips, rows.Err()
}

func (s *Store) ListActiveEmployees(ctx context.Context, tenantID string) ([]string, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT user_id::text
    FROM employees
    WHERE tenant_id = $1 AND status = $2 AND user_id IS NOT NULL
    ORDER BY user_id
  `, tenantID, EmployeeStatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpsertResult inserts or replaces the computed fields. The conflict branch
// only fires while the stored row is still calculated, so finalized rows are
// never touched and the statement returns no row.
func (s *Store) UpsertResult(ctx context.Context, tenantID, userID string, fiscalYear int, computation taxcalc.Computation) (Result, error) {
	columns := append([]string{"tenant_id", "user_id", "fiscal_year"}, computationColumns...)
	columns = append(columns, "status")
	args := append([]any{tenantID, userID, fiscalYear}, computationValues(computation)...)
	args = append(args, ResultStatusCalculated)

	placeholders := make([]string, len(args))
	for i := range args {
		placeholders[i] = "$" + strconv.Itoa(i+1)
	}
	updates := make([]string, 0, len(computationColumns)+2)
	for _, column := range computationColumns {
		updates = append(updates, column+" = EXCLUDED."+column)
	}
	updates = append(updates, "status = EXCLUDED.status", "updated_at = now()")

	query := fmt.Sprintf(`
    INSERT INTO year_end_results (%s)
    VALUES (%s)
    ON CONFLICT (tenant_id, user_id, fiscal_year)
    DO UPDATE SET %s
    WHERE year_end_results.status = '%s'
    RETURNING %s
  `, strings.Join(columns, ", "), strings.Join(placeholders, ","), strings.Join(updates, ", "), ResultStatusCalculated, resultColumns)

	result, err := scanResult(s.DB.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return Result{}, ErrResultFinalized
	}
	if err != nil {
		return Result{}, err
	}
	return result, nil
}

func (s *Store) GetResult(ctx context.Context, tenantID, resultID string) (Result, error) {
	result, err := scanResult(s.DB.QueryRow(ctx, `
    SELECT `+resultColumns+`
    FROM year_end_results
    WHERE tenant_id = $1 AND id = $2
  `, tenantID, resultID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Result{}, ErrResultNotFound
	}
	return result, err
}

func (s *Store) ListResults(ctx context.Context, tenantID string, filter ResultFilter, limit, offset int) ([]Result, int, error) {
	where, args := buildResultFilter(tenantID, filter)

	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM year_end_results WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + resultColumns + " FROM year_end_results WHERE " + where +
		fmt.Sprintf(" ORDER BY fiscal_year DESC, user_id LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	rows, err := s.DB.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		result, err := scanResult(rows)
		if err != nil {
			return nil, 0, err
		}
		results = append(results, result)
	}
	return results, total, rows.Err()
}

func buildResultFilter(tenantID string, filter ResultFilter) (string, []any) {
	clauses := []string{"tenant_id = $1"}
	args := []any{tenantID}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		clauses = append(clauses, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.FiscalYear > 0 {
		args = append(args, filter.FiscalYear)
		clauses = append(clauses, fmt.Sprintf("fiscal_year = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	return strings.Join(clauses, " AND "), args
}

// AdvanceResultStatus moves a result one workflow step. The status guard in
// the WHERE clause keeps concurrent actions from skipping or repeating a step.
func (s *Store) AdvanceResultStatus(ctx context.Context, tenantID, resultID, action, actor string, at time.Time) (Result, error) {
	from, to, err := transition(action)
	if err != nil {
		return Result{}, err
	}

	var query string
	var args []any
	switch action {
	case ActionConfirm:
		query = `
      UPDATE year_end_results
      SET status = $1, confirmed_by = NULLIF($2, '')::uuid, confirmed_at = $3, updated_at = now()
      WHERE tenant_id = $4 AND id = $5 AND status = $6
      RETURNING ` + resultColumns
		args = []any{to, actor, at, tenantID, resultID, from}
	default:
		query = `
      UPDATE year_end_results
      SET status = $1, paid_at = $2, updated_at = now()
      WHERE tenant_id = $3 AND id = $4 AND status = $5
      RETURNING ` + resultColumns
		args = []any{to, at, tenantID, resultID, from}
	}

	result, err := scanResult(s.DB.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		current, getErr := s.GetResult(ctx, tenantID, resultID)
		if getErr != nil {
			return Result{}, getErr
		}
		_, err = NextStatus(current.Status, action)
		return Result{}, err
	}
	return result, err
}
