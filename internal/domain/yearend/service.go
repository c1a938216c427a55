package yearend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	cryptoutil "yearend/internal/platform/crypto"
)

// Auditor records state changes made through the service.
type Auditor interface {
	Record(ctx context.Context, tenantID, actorID, action, entityType, entityID, requestID, ip string, before, after any) error
}

const (
	AuditActionRun     = "yearend.run"
	AuditActionConfirm = "yearend.result.confirm"
	AuditActionPay     = "yearend.result.pay"

	auditEntityResult = "year_end_result"
	auditEntityRun    = "year_end_run"
)

// Notifier tells an employee that their result moved.
type Notifier interface {
	Notify(ctx context.Context, tenantID, userID, ntype, title, body string) error
}

const (
	NotifyResultConfirmed = "year_end_result_confirmed"
	NotifyResultPaid      = "year_end_result_paid"
)

// Actor identifies who triggered an operation, for the audit trail.
type Actor struct {
	UserID    string
	RequestID string
	IP        string
}

type Service struct {
	store   StoreAPI
	runner  *Runner
	crypto  *cryptoutil.Service
	audit   Auditor
	notify  Notifier
	slipDir string
	now     func() time.Time
}

type ServiceOption func(*Service)

func WithAuditor(a Auditor) ServiceOption {
	return func(s *Service) { s.audit = a }
}

func WithNotifier(n Notifier) ServiceOption {
	return func(s *Service) { s.notify = n }
}

func WithCrypto(c *cryptoutil.Service) ServiceOption {
	return func(s *Service) { s.crypto = c }
}

func WithSlipDir(dir string) ServiceOption {
	return func(s *Service) { s.slipDir = dir }
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

func NewService(store StoreAPI, workers int, metrics Metrics, opts ...ServiceOption) *Service {
	s := &Service{
		store:   store,
		runner:  NewRunner(NewReconciler(store), store, workers, metrics),
		slipDir: filepath.Join("storage", "withholding"),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) RunReconciliation(ctx context.Context, tenantID string, fiscalYear int, userIDs []string, actor Actor) (BatchSummary, error) {
	summary, err := s.runner.Run(ctx, tenantID, fiscalYear, userIDs)
	if err != nil {
		return BatchSummary{}, err
	}
	for _, outcome := range summary.Results {
		if outcome.Result != nil {
			s.dropSlip(tenantID, outcome.Result.ID)
		}
	}
	s.record(ctx, tenantID, actor, AuditActionRun, auditEntityRun, fmt.Sprintf("%d", fiscalYear), nil, summary.Summary)
	return summary, nil
}

func (s *Service) ListResults(ctx context.Context, tenantID string, filter ResultFilter, limit, offset int) ([]Result, int, error) {
	return s.store.ListResults(ctx, tenantID, filter, limit, offset)
}

func (s *Service) GetResult(ctx context.Context, tenantID, resultID string) (Result, error) {
	return s.store.GetResult(ctx, tenantID, resultID)
}

// AdvanceResult applies a workflow action to a stored result.
func (s *Service) AdvanceResult(ctx context.Context, tenantID, resultID, action string, actor Actor) (Result, error) {
	before, err := s.store.GetResult(ctx, tenantID, resultID)
	if err != nil {
		return Result{}, err
	}
	if _, err := NextStatus(before.Status, action); err != nil {
		return Result{}, err
	}
	after, err := s.store.AdvanceResultStatus(ctx, tenantID, resultID, action, actor.UserID, s.now())
	if err != nil {
		return Result{}, err
	}
	auditAction := AuditActionConfirm
	if action == ActionPay {
		auditAction = AuditActionPay
	}
	s.dropSlip(tenantID, resultID)
	s.record(ctx, tenantID, actor, auditAction, auditEntityResult, resultID,
		map[string]string{"status": before.Status},
		map[string]string{"status": after.Status})
	s.notifyEmployee(ctx, after)
	return after, nil
}

func (s *Service) notifyEmployee(ctx context.Context, r Result) {
	if s.notify == nil {
		return
	}
	var ntype, title, body string
	switch r.Status {
	case ResultStatusConfirmed:
		ntype = NotifyResultConfirmed
		title = fmt.Sprintf("Year-end adjustment %d confirmed", r.FiscalYear)
		if r.IsRefund {
			body = fmt.Sprintf("A refund of %s will be paid with your next salary.", yen(r.AdjustmentAmount))
		} else if r.AdjustmentAmount < 0 {
			body = fmt.Sprintf("An additional %s of income tax will be collected.", yen(abs(r.AdjustmentAmount)))
		} else {
			body = "Withheld tax matched your annual tax; nothing is due."
		}
	case ResultStatusPaid:
		ntype = NotifyResultPaid
		title = fmt.Sprintf("Year-end adjustment %d settled", r.FiscalYear)
		body = "Your year-end adjustment has been settled."
	default:
		return
	}
	if err := s.notify.Notify(ctx, r.TenantID, r.UserID, ntype, title, body); err != nil {
		slog.Warn("year-end notification failed", "tenantId", r.TenantID, "userId", r.UserID, "err", err)
	}
}

func (s *Service) record(ctx context.Context, tenantID string, actor Actor, action, entityType, entityID string, before, after any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, tenantID, actor.UserID, action, entityType, entityID, actor.RequestID, actor.IP, before, after); err != nil {
		slog.Warn("audit record failed", "action", action, "tenantId", tenantID, "requestId", actor.RequestID, "err", err)
	}
}

// WithholdingSlip renders the annual withholding statement of a result as a
// PDF. The file is written under the slip directory, encrypted at rest when a
// data key is configured, and returned in plain form.
func (s *Service) WithholdingSlip(ctx context.Context, tenantID, resultID string) ([]byte, error) {
	result, err := s.store.GetResult(ctx, tenantID, resultID)
	if err != nil {
		return nil, err
	}

	pdf := renderWithholdingSlip(result)
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render withholding slip: %w", err)
	}
	plain := buf.Bytes()

	if err := s.storeSlip(tenantID, result.ID, plain); err != nil {
		return nil, err
	}
	return plain, nil
}

func (s *Service) storeSlip(tenantID, resultID string, plain []byte) error {
	if s.slipDir == "" {
		return nil
	}
	dir := filepath.Join(s.slipDir, tenantID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path, encrypted := s.slipPath(tenantID, resultID)
	data := plain
	if encrypted {
		sealed, err := s.crypto.Encrypt(plain)
		if err != nil {
			return err
		}
		data = sealed
	}
	return os.WriteFile(path, data, 0o600)
}

func (s *Service) slipPath(tenantID, resultID string) (string, bool) {
	path := filepath.Join(s.slipDir, tenantID, resultID+".pdf")
	if s.crypto != nil && s.crypto.Configured() {
		return path + ".enc", true
	}
	return path, false
}

// dropSlip removes a stored slip once its result has changed.
func (s *Service) dropSlip(tenantID, resultID string) {
	if s.slipDir == "" {
		return
	}
	path, _ := s.slipPath(tenantID, resultID)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("stale withholding slip not removed", "tenantId", tenantID, "resultId", resultID, "err", err)
	}
}

// StoredSlip reads back a slip written by WithholdingSlip, decrypting it when
// a data key is configured. ErrSlipNotStored means the slip has to be rendered.
func (s *Service) StoredSlip(tenantID, resultID string) ([]byte, error) {
	if s.slipDir == "" {
		return nil, ErrSlipNotStored
	}
	path, encrypted := s.slipPath(tenantID, resultID)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrSlipNotStored
	}
	if err != nil || !encrypted {
		return data, err
	}
	return s.crypto.Decrypt(data)
}

func renderWithholdingSlip(r Result) *gofpdf.Fpdf {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, fmt.Sprintf("Withholding Statement %d", r.FiscalYear))
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 7, fmt.Sprintf("Employee: %s", r.UserID))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Status: %s", r.Status))
	pdf.Ln(10)

	lines := []struct {
		label  string
		amount int64
	}{
		{"Total income", r.TotalIncome},
		{"Employment income deduction", r.EmploymentIncomeDeduction},
		{"Employment income", r.EmploymentIncome},
		{"Total deductions", r.TotalDeductions},
		{"Taxable income", r.TaxableIncome},
		{"Income tax", r.CalculatedTax},
		{"Reconstruction surtax", r.SpecialReconstructionTax},
		{"Mortgage credit", r.MortgageDeduction},
		{"Final tax", r.FinalTax},
		{"Withheld", r.WithheldTaxTotal},
	}
	for _, line := range lines {
		pdf.CellFormat(110, 7, line.label, "", 0, "L", false, 0, "")
		pdf.CellFormat(50, 7, yen(line.amount), "", 1, "R", false, 0, "")
	}
	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 12)
	label := "Additional tax due"
	if r.IsRefund {
		label = "Refund"
	}
	pdf.CellFormat(110, 8, label, "T", 0, "L", false, 0, "")
	pdf.CellFormat(50, 8, yen(abs(r.AdjustmentAmount)), "T", 1, "R", false, 0, "")
	return pdf
}

func yen(amount int64) string {
	s := fmt.Sprintf("%d", amount)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "JPY -" + b.String()
	}
	return "JPY " + b.String()
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
