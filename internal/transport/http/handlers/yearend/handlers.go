package yearendhandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"yearend/internal/domain/auth"
	"yearend/internal/domain/yearend"
	"yearend/internal/transport/http/api"
	"yearend/internal/transport/http/middleware"
	"yearend/internal/transport/http/shared"
)

// Enqueuer hands a batch to the background job runner.
type Enqueuer interface {
	EnqueueReconciliation(tenantID string, fiscalYear int, userIDs []string, actor yearend.Actor) bool
}

type Handler struct {
	Service *yearend.Service
	Jobs    Enqueuer
	Perms   middleware.PermissionStore
}

func NewHandler(service *yearend.Service, jobs Enqueuer, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Jobs: jobs, Perms: perms}
}

type runRequest struct {
	FiscalYear int      `json:"fiscalYear"`
	UserIDs    []string `json:"userIds"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/year-end", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermYearEndRun, h.Perms)).Post("/runs", h.handleRun)
		r.With(middleware.RequirePermission(auth.PermYearEndRun, h.Perms)).Post("/runs/async", h.handleRunAsync)
		r.With(middleware.RequirePermission(auth.PermYearEndRead, h.Perms)).Get("/results", h.handleListResults)
		r.With(middleware.RequirePermission(auth.PermYearEndRead, h.Perms)).Get("/results/{resultID}", h.handleGetResult)
		r.With(middleware.RequirePermission(auth.PermYearEndRead, h.Perms)).Get("/results/{resultID}/slip", h.handleSlip)
		r.With(middleware.RequirePermission(auth.PermYearEndConfirm, h.Perms)).Post("/results/{resultID}/confirm", h.handleAdvance(yearend.ActionConfirm))
		r.With(middleware.RequirePermission(auth.PermYearEndPay, h.Perms)).Post("/results/{resultID}/pay", h.handleAdvance(yearend.ActionPay))
	})
}

func (h *Handler) decodeRun(w http.ResponseWriter, r *http.Request) (runRequest, bool) {
	requestID := middleware.GetRequestID(r.Context())
	var payload runRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return runRequest{}, false
	}
	validator := shared.NewValidator()
	validator.FiscalYear("fiscalYear", payload.FiscalYear)
	for i, id := range payload.UserIDs {
		validator.Required("userIds["+strconv.Itoa(i)+"]", id, "must not be empty")
	}
	if validator.Reject(w, requestID) {
		return runRequest{}, false
	}
	return payload, true
}

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	requestID := middleware.GetRequestID(r.Context())
	payload, ok := h.decodeRun(w, r)
	if !ok {
		return
	}

	summary, err := h.Service.RunReconciliation(r.Context(), user.TenantID, payload.FiscalYear, payload.UserIDs, actor(r, user))
	if err != nil {
		h.fail(w, r, err, "yearend_run_failed", "failed to run year-end reconciliation")
		return
	}
	api.Success(w, summary, requestID)
}

func (h *Handler) handleRunAsync(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	requestID := middleware.GetRequestID(r.Context())
	payload, ok := h.decodeRun(w, r)
	if !ok {
		return
	}
	if h.Jobs == nil || !h.Jobs.EnqueueReconciliation(user.TenantID, payload.FiscalYear, payload.UserIDs, actor(r, user)) {
		api.Fail(w, http.StatusServiceUnavailable, "queue_unavailable", "job queue is unavailable", requestID)
		return
	}
	api.Accepted(w, map[string]any{"status": "queued", "fiscalYear": payload.FiscalYear}, requestID)
}

func (h *Handler) handleListResults(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	requestID := middleware.GetRequestID(r.Context())
	query := r.URL.Query()

	validator := shared.NewValidator()
	filter := yearend.ResultFilter{
		UserID:     query.Get("userId"),
		FiscalYear: validator.OptionalInt("fiscalYear", query.Get("fiscalYear")),
		Status:     query.Get("status"),
	}
	validator.Enum("status", filter.Status, []string{yearend.ResultStatusCalculated, yearend.ResultStatusConfirmed, yearend.ResultStatusPaid}, "must be calculated, confirmed or paid")
	if validator.Reject(w, requestID) {
		return
	}
	if selfOnly(user) {
		filter.UserID = user.UserID
	}

	page := shared.ParsePagination(r, shared.DefaultPageLimit, shared.MaxPageLimit)
	results, total, err := h.Service.ListResults(r.Context(), user.TenantID, filter, page.Limit, page.Offset)
	if err != nil {
		h.fail(w, r, err, "yearend_list_failed", "failed to list year-end results")
		return
	}
	api.Success(w, shared.NewPage(results, total, page), requestID)
}

func (h *Handler) handleGetResult(w http.ResponseWriter, r *http.Request) {
	result, ok := h.loadResult(w, r)
	if !ok {
		return
	}
	api.Success(w, result, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSlip(w http.ResponseWriter, r *http.Request) {
	result, ok := h.loadResult(w, r)
	if !ok {
		return
	}
	user, _ := middleware.GetUser(r.Context())
	pdf, err := h.Service.StoredSlip(user.TenantID, result.ID)
	if errors.Is(err, yearend.ErrSlipNotStored) {
		pdf, err = h.Service.WithholdingSlip(r.Context(), user.TenantID, result.ID)
	}
	if err != nil {
		h.fail(w, r, err, "slip_failed", "failed to render withholding slip")
		return
	}
	filename := "withholding-" + strconv.Itoa(result.FiscalYear) + "-" + result.ID + ".pdf"
	api.Attachment(w, "application/pdf", filename, pdf, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleAdvance(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := middleware.GetUser(r.Context())
		resultID := chi.URLParam(r, "resultID")
		if _, err := uuid.Parse(resultID); err != nil {
			h.fail(w, r, yearend.ErrResultNotFound, "", "")
			return
		}
		result, err := h.Service.AdvanceResult(r.Context(), user.TenantID, resultID, action, actor(r, user))
		if err != nil {
			h.fail(w, r, err, "yearend_"+action+"_failed", "failed to "+action+" result")
			return
		}
		api.Success(w, result, middleware.GetRequestID(r.Context()))
	}
}

// loadResult fetches the path's result, hiding other employees' results from
// callers limited to their own.
func (h *Handler) loadResult(w http.ResponseWriter, r *http.Request) (yearend.Result, bool) {
	user, _ := middleware.GetUser(r.Context())
	resultID := chi.URLParam(r, "resultID")
	if _, err := uuid.Parse(resultID); err != nil {
		h.fail(w, r, yearend.ErrResultNotFound, "", "")
		return yearend.Result{}, false
	}
	result, err := h.Service.GetResult(r.Context(), user.TenantID, resultID)
	if err == nil && selfOnly(user) && result.UserID != user.UserID {
		err = yearend.ErrResultNotFound
	}
	if err != nil {
		h.fail(w, r, err, "yearend_get_failed", "failed to load year-end result")
		return yearend.Result{}, false
	}
	return result, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, code, message string) {
	requestID := middleware.GetRequestID(r.Context())
	switch {
	case errors.Is(err, yearend.ErrFiscalYearRequired), errors.Is(err, yearend.ErrTenantRequired):
		shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "fiscalYear", Reason: err.Error()}})
	case errors.Is(err, yearend.ErrUserIDsInvalid):
		shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "userIds", Reason: err.Error()}})
	case errors.Is(err, yearend.ErrResultNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "year-end result not found", requestID)
	case errors.Is(err, yearend.ErrInvalidTransition):
		api.Fail(w, http.StatusConflict, "invalid_state", err.Error(), requestID)
	case errors.Is(err, yearend.ErrUnknownAction):
		api.Fail(w, http.StatusBadRequest, "invalid_action", err.Error(), requestID)
	default:
		slog.Error("year-end request failed", "path", r.URL.Path, "requestId", requestID, "err", err)
		api.Fail(w, http.StatusInternalServerError, code, message, requestID)
	}
}

func selfOnly(user auth.UserContext) bool {
	return user.RoleName == auth.RoleEmployee
}

func actor(r *http.Request, user auth.UserContext) yearend.Actor {
	return yearend.Actor{
		UserID:    user.UserID,
		RequestID: middleware.GetRequestID(r.Context()),
		IP:        shared.ClientIP(r),
	}
}
