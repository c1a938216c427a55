// Package memstore is an in-process implementation of the year-end store.
// Tests use it in place of Postgres.
package memstore

import (
	"context"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"yearend/internal/domain/taxcalc"
	"yearend/internal/domain/yearend"
)

type resultKey struct {
	tenantID   string
	userID     string
	fiscalYear int
}

type Store struct {
	mu           sync.Mutex
	now          func() time.Time
	employees    map[string][]string
	salarySlips  map[string][]yearend.Slip
	bonusSlips   map[string][]yearend.Slip
	declarations map[resultKey]yearend.Declaration
	results      map[resultKey]*yearend.Result
	byID         map[string]resultKey
}

var _ yearend.StoreAPI = (*Store)(nil)

func New() *Store {
	return &Store{
		now:          func() time.Time { return time.Now().UTC() },
		employees:    map[string][]string{},
		salarySlips:  map[string][]yearend.Slip{},
		bonusSlips:   map[string][]yearend.Slip{},
		declarations: map[resultKey]yearend.Declaration{},
		results:      map[resultKey]*yearend.Result{},
		byID:         map[string]resultKey{},
	}
}

func slipKey(tenantID, userID string) string {
	return tenantID + "/" + userID
}

func (s *Store) AddEmployee(tenantID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.Contains(s.employees[tenantID], userID) {
		return
	}
	s.employees[tenantID] = append(s.employees[tenantID], userID)
}

func (s *Store) AddSalarySlip(tenantID string, slip yearend.Slip) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slip.ID == "" {
		slip.ID = uuid.NewString()
	}
	slip.Kind = yearend.SlipKindSalary
	key := slipKey(tenantID, slip.UserID)
	s.salarySlips[key] = append(s.salarySlips[key], slip)
}

func (s *Store) AddBonusSlip(tenantID string, slip yearend.Slip) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slip.ID == "" {
		slip.ID = uuid.NewString()
	}
	slip.Kind = yearend.SlipKindBonus
	key := slipKey(tenantID, slip.UserID)
	s.bonusSlips[key] = append(s.bonusSlips[key], slip)
}

// PutDeclaration stores a declaration in whatever status it carries; only
// approved ones are returned by ApprovedDeclaration.
func (s *Store) PutDeclaration(tenantID string, decl yearend.Declaration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if decl.ID == "" {
		decl.ID = uuid.NewString()
	}
	decl.TenantID = tenantID
	s.declarations[resultKey{tenantID, decl.UserID, decl.FiscalYear}] = decl
}

func (s *Store) ApprovedDeclaration(ctx context.Context, tenantID, userID string, fiscalYear int) (*yearend.Declaration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	decl, ok := s.declarations[resultKey{tenantID, userID, fiscalYear}]
	if !ok || decl.Status != yearend.DeclarationStatusApproved {
		return nil, nil
	}
	return &decl, nil
}

func (s *Store) ConfirmedSalarySlips(ctx context.Context, tenantID, userID string, fiscalYear int) ([]yearend.Slip, error) {
	return s.filterSlips(ctx, s.salarySlips, tenantID, userID, fiscalYear, yearend.SalarySlipStatuses())
}

func (s *Store) ApprovedBonusSlips(ctx context.Context, tenantID, userID string, fiscalYear int) ([]yearend.Slip, error) {
	return s.filterSlips(ctx, s.bonusSlips, tenantID, userID, fiscalYear, yearend.BonusSlipStatuses())
}

func (s *Store) filterSlips(ctx context.Context, source map[string][]yearend.Slip, tenantID, userID string, fiscalYear int, statuses []string) ([]yearend.Slip, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := strconv.Itoa(fiscalYear)
	var out []yearend.Slip
	for _, slip := range source[slipKey(tenantID, userID)] {
		if strings.HasPrefix(slip.PayPeriod, prefix) && slices.Contains(statuses, slip.Status) {
			out = append(out, slip)
		}
	}
	return out, nil
}

func (s *Store) ListActiveEmployees(ctx context.Context, tenantID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := append([]string(nil), s.employees[tenantID]...)
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) UpsertResult(ctx context.Context, tenantID, userID string, fiscalYear int, computation taxcalc.Computation) (yearend.Result, error) {
	if err := ctx.Err(); err != nil {
		return yearend.Result{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := resultKey{tenantID, userID, fiscalYear}
	now := s.now()
	if existing, ok := s.results[key]; ok {
		if existing.Status != yearend.ResultStatusCalculated {
			return yearend.Result{}, yearend.ErrResultFinalized
		}
		existing.Computation = computation
		existing.UpdatedAt = now
		return *existing, nil
	}

	result := &yearend.Result{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		UserID:      userID,
		FiscalYear:  fiscalYear,
		Computation: computation,
		Status:      yearend.ResultStatusCalculated,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.results[key] = result
	s.byID[result.ID] = key
	return *result, nil
}

func (s *Store) GetResult(ctx context.Context, tenantID, resultID string) (yearend.Result, error) {
	if err := ctx.Err(); err != nil {
		return yearend.Result{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	result, ok := s.lookup(tenantID, resultID)
	if !ok {
		return yearend.Result{}, yearend.ErrResultNotFound
	}
	return *result, nil
}

func (s *Store) lookup(tenantID, resultID string) (*yearend.Result, bool) {
	key, ok := s.byID[resultID]
	if !ok || key.tenantID != tenantID {
		return nil, false
	}
	return s.results[key], true
}

func (s *Store) ListResults(ctx context.Context, tenantID string, filter yearend.ResultFilter, limit, offset int) ([]yearend.Result, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	s.mu.Lock()
	var matched []yearend.Result
	for key, result := range s.results {
		if key.tenantID != tenantID {
			continue
		}
		if filter.UserID != "" && result.UserID != filter.UserID {
			continue
		}
		if filter.FiscalYear > 0 && result.FiscalYear != filter.FiscalYear {
			continue
		}
		if filter.Status != "" && result.Status != filter.Status {
			continue
		}
		matched = append(matched, *result)
	}
	s.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].FiscalYear != matched[j].FiscalYear {
			return matched[i].FiscalYear > matched[j].FiscalYear
		}
		return matched[i].UserID < matched[j].UserID
	})

	total := len(matched)
	if offset >= total {
		return []yearend.Result{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return matched[offset:end], total, nil
}

func (s *Store) AdvanceResultStatus(ctx context.Context, tenantID, resultID, action, actor string, at time.Time) (yearend.Result, error) {
	if err := ctx.Err(); err != nil {
		return yearend.Result{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	result, ok := s.lookup(tenantID, resultID)
	if !ok {
		return yearend.Result{}, yearend.ErrResultNotFound
	}
	next, err := yearend.NextStatus(result.Status, action)
	if err != nil {
		return yearend.Result{}, err
	}
	result.Status = next
	result.UpdatedAt = s.now()
	stamp := at
	switch action {
	case yearend.ActionConfirm:
		result.ConfirmedBy = actor
		result.ConfirmedAt = &stamp
	case yearend.ActionPay:
		result.PaidAt = &stamp
	}
	return *result, nil
}

// ResultCount reports how many result rows exist for a tenant.
func (s *Store) ResultCount(tenantID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key := range s.results {
		if key.tenantID == tenantID {
			n++
		}
	}
	return n
}
