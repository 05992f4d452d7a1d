/*
handlers.go - HTTP API handlers for the payroll engine

PURPOSE:
  Exposes the payroll engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Periods:
    GET    /api/periods                 List periods (status/type/date filters)
    POST   /api/periods                 Create period
    GET    /api/periods/{id}            Get period
    PUT    /api/periods/{id}            Update period (partial)
    DELETE /api/periods/{id}            Delete period (blocked while records exist)
    POST   /api/periods/{id}/lock       Freeze the period
    POST   /api/periods/{id}/unlock     Reopen a locked period
    POST   /api/periods/{id}/close      Close the period (irreversible)
    GET    /api/periods/{id}/records    Records in the period

  Records:
    POST   /api/records/compute         Compute/recompute for (employee, period)
    GET    /api/records                 List records
    GET    /api/records/{id}            Get record
    POST   /api/records/{id}/pay        Mark as paid
    POST   /api/records/{id}/partial-payment  Record a partial payment
    POST   /api/records/{id}/cancel     Cancel the record
    PUT    /api/records/{id}/adjustments Set administrative earning components
    DELETE /api/records/{id}            Delete an unpaid record

  Sub-ledger (same shape for /attendance, /overtime, /deductions):
    GET    /api/attendance              List entries
    POST   /api/attendance              Create entry
    GET    /api/attendance/{id}         Get entry
    PUT    /api/attendance/{id}         Update entry (rejected while attached)
    DELETE /api/attendance/{id}         Delete entry (rejected while attached)

  Scenarios:
    GET    /api/scenarios               List demo scenarios
    POST   /api/scenarios/load          Load a demo scenario
    POST   /api/scenarios/reset         Reset the database (dev only)

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input shape
  3. Call domain logic (lifecycle, engine, sub-ledger service)
  4. Serialize response
  5. Map domain errors to HTTP status

ERROR HANDLING:
  Domain errors map to HTTP status via the payroll error taxonomy:
  - 400: ValidationError (all violations in details)
  - 404: NotFoundError
  - 409: ConflictError, ImmutableStateError, InvalidTransitionError,
         AlreadyPaidError, PeriodLockedError, AlreadyAttachedError
  - 500: everything else

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Lifecycle *payroll.PeriodLifecycle
	Engine    *payroll.ComputationEngine
	SubLedger *payroll.SubLedgerService
	Store     payroll.TxStore

	// Rates is the demo rate registry used by the scenario loaders.
	// Optional; production deployments wire their own RateProvider
	// into the engine and leave this nil.
	Rates *payroll.StaticRateProvider

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler with the given components.
func NewHandler(lifecycle *payroll.PeriodLifecycle, engine *payroll.ComputationEngine, subledger *payroll.SubLedgerService, store payroll.TxStore) *Handler {
	return &Handler{
		Lifecycle: lifecycle,
		Engine:    engine,
		SubLedger: subledger,
		Store:     store,
	}
}

// =============================================================================
// PERIOD HANDLERS
// =============================================================================

// ListPeriods returns periods matching the query filters.
// GET /api/periods?status=&period_type=&from=&to=
func (h *Handler) ListPeriods(w http.ResponseWriter, r *http.Request) {
	var f payroll.PeriodFilter

	if s := r.URL.Query().Get("status"); s != "" {
		status := payroll.PeriodStatus(s)
		f.Status = &status
	}
	if s := r.URL.Query().Get("period_type"); s != "" {
		pt := payroll.PeriodType(s)
		f.PeriodType = &pt
	}
	if s := r.URL.Query().Get("from"); s != "" {
		d, err := payroll.ParseDate(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid from date (use YYYY-MM-DD)", err)
			return
		}
		f.From = &d
	}
	if s := r.URL.Query().Get("to"); s != "" {
		d, err := payroll.ParseDate(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid to date (use YYYY-MM-DD)", err)
			return
		}
		f.To = &d
	}

	periods, err := h.Lifecycle.List(r.Context(), f)
	if err != nil {
		writeDomainError(w, "Failed to list periods", err)
		return
	}
	writeJSON(w, http.StatusOK, toPeriodDTOs(periods))
}

// CreatePeriod creates a new payroll period.
// POST /api/periods
func (h *Handler) CreatePeriod(w http.ResponseWriter, r *http.Request) {
	var req CreatePeriodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	input := payroll.PeriodInput{
		Name:        req.Name,
		PeriodType:  payroll.PeriodType(req.PeriodType),
		WorkingDays: req.WorkingDays,
		Status:      payroll.PeriodStatus(req.Status),
	}
	var err error
	if input.StartDate, err = parseDateField(req.StartDate); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date (use YYYY-MM-DD)", err)
		return
	}
	if input.EndDate, err = parseDateField(req.EndDate); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date (use YYYY-MM-DD)", err)
		return
	}
	if input.PayDate, err = parseDateField(req.PayDate); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid pay_date (use YYYY-MM-DD)", err)
		return
	}

	period, err := h.Lifecycle.Create(r.Context(), input)
	if err != nil {
		writeDomainError(w, "Failed to create period", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPeriodDTO(period))
}

// GetPeriod returns a single period.
// GET /api/periods/{id}
func (h *Handler) GetPeriod(w http.ResponseWriter, r *http.Request) {
	id := payroll.PeriodID(chi.URLParam(r, "id"))

	period, err := h.Lifecycle.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get period", err)
		return
	}
	writeJSON(w, http.StatusOK, toPeriodDTO(period))
}

// UpdatePeriod applies a partial update to a period.
// PUT /api/periods/{id}
func (h *Handler) UpdatePeriod(w http.ResponseWriter, r *http.Request) {
	id := payroll.PeriodID(chi.URLParam(r, "id"))

	var req UpdatePeriodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	patch := payroll.PeriodPatch{
		Name:        req.Name,
		WorkingDays: req.WorkingDays,
	}
	if req.PeriodType != nil {
		pt := payroll.PeriodType(*req.PeriodType)
		patch.PeriodType = &pt
	}
	if req.Status != nil {
		st := payroll.PeriodStatus(*req.Status)
		patch.Status = &st
	}
	var err error
	if patch.StartDate, err = parseDatePtr(req.StartDate); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date (use YYYY-MM-DD)", err)
		return
	}
	if patch.EndDate, err = parseDatePtr(req.EndDate); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date (use YYYY-MM-DD)", err)
		return
	}
	if patch.PayDate, err = parseDatePtr(req.PayDate); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid pay_date (use YYYY-MM-DD)", err)
		return
	}

	period, err := h.Lifecycle.Update(r.Context(), id, patch)
	if err != nil {
		writeDomainError(w, "Failed to update period", err)
		return
	}
	writeJSON(w, http.StatusOK, toPeriodDTO(period))
}

// DeletePeriod removes a period with no payroll records.
// DELETE /api/periods/{id}
func (h *Handler) DeletePeriod(w http.ResponseWriter, r *http.Request) {
	id := payroll.PeriodID(chi.URLParam(r, "id"))

	if err := h.Lifecycle.Delete(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to delete period", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LockPeriod freezes the period. Idempotent.
// POST /api/periods/{id}/lock
func (h *Handler) LockPeriod(w http.ResponseWriter, r *http.Request) {
	h.transitionPeriod(w, r, h.Lifecycle.Lock)
}

// UnlockPeriod reopens a locked period.
// POST /api/periods/{id}/unlock
func (h *Handler) UnlockPeriod(w http.ResponseWriter, r *http.Request) {
	h.transitionPeriod(w, r, h.Lifecycle.Unlock)
}

// ClosePeriod closes the period. Irreversible.
// POST /api/periods/{id}/close
func (h *Handler) ClosePeriod(w http.ResponseWriter, r *http.Request) {
	h.transitionPeriod(w, r, h.Lifecycle.Close)
}

func (h *Handler) transitionPeriod(w http.ResponseWriter, r *http.Request, op func(context.Context, payroll.PeriodID) (*payroll.PayrollPeriod, error)) {
	id := payroll.PeriodID(chi.URLParam(r, "id"))

	period, err := op(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Period transition failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toPeriodDTO(period))
}

// ListPeriodRecords returns the payroll records of one period.
// GET /api/periods/{id}/records
func (h *Handler) ListPeriodRecords(w http.ResponseWriter, r *http.Request) {
	id := payroll.PeriodID(chi.URLParam(r, "id"))

	records, err := h.Engine.List(r.Context(), payroll.RecordFilter{PeriodID: &id})
	if err != nil {
		writeDomainError(w, "Failed to list records", err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTOs(records))
}

// =============================================================================
// RECORD HANDLERS
// =============================================================================

// ComputeRecord computes or recomputes the payroll record for an
// (employee, period) pair.
// POST /api/records/compute
func (h *Handler) ComputeRecord(w http.ResponseWriter, r *http.Request) {
	var req ComputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.EmployeeID == "" || req.PeriodID == "" {
		writeError(w, http.StatusBadRequest, "employee_id and period_id are required", nil)
		return
	}

	record, err := h.Engine.Compute(r.Context(),
		payroll.EmployeeID(req.EmployeeID), payroll.PeriodID(req.PeriodID))
	if err != nil {
		writeDomainError(w, "Computation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTO(record))
}

// ListRecords returns records matching the query filters.
// GET /api/records?employee_id=&period_id=&payment_status=
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	var f payroll.RecordFilter

	if s := r.URL.Query().Get("employee_id"); s != "" {
		id := payroll.EmployeeID(s)
		f.EmployeeID = &id
	}
	if s := r.URL.Query().Get("period_id"); s != "" {
		id := payroll.PeriodID(s)
		f.PeriodID = &id
	}
	if s := r.URL.Query().Get("payment_status"); s != "" {
		st := payroll.PaymentStatus(s)
		f.PaymentStatus = &st
	}

	records, err := h.Engine.List(r.Context(), f)
	if err != nil {
		writeDomainError(w, "Failed to list records", err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTOs(records))
}

// GetRecord returns a single payroll record.
// GET /api/records/{id}
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	id := payroll.RecordID(chi.URLParam(r, "id"))

	record, err := h.Engine.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get record", err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTO(record))
}

// PayRecord marks a record as paid.
// POST /api/records/{id}/pay
func (h *Handler) PayRecord(w http.ResponseWriter, r *http.Request) {
	h.updatePayment(w, r, h.Engine.MarkAsPaid)
}

// PartialPayRecord records a partial payment.
// POST /api/records/{id}/partial-payment
func (h *Handler) PartialPayRecord(w http.ResponseWriter, r *http.Request) {
	h.updatePayment(w, r, h.Engine.RecordPartialPayment)
}

func (h *Handler) updatePayment(w http.ResponseWriter, r *http.Request, op func(context.Context, payroll.RecordID, payroll.PaymentInfo) (*payroll.PayrollRecord, error)) {
	id := payroll.RecordID(chi.URLParam(r, "id"))

	var req PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	record, err := op(r.Context(), id, payroll.PaymentInfo{
		Method:    req.Method,
		Reference: req.Reference,
	})
	if err != nil {
		writeDomainError(w, "Payment update failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTO(record))
}

// CancelRecord cancels a record. Blocked once paid.
// POST /api/records/{id}/cancel
func (h *Handler) CancelRecord(w http.ResponseWriter, r *http.Request) {
	id := payroll.RecordID(chi.URLParam(r, "id"))

	record, err := h.Engine.Cancel(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Cancellation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTO(record))
}

// SetRecordAdjustments sets the administrative earning components.
// PUT /api/records/{id}/adjustments
func (h *Handler) SetRecordAdjustments(w http.ResponseWriter, r *http.Request) {
	id := payroll.RecordID(chi.URLParam(r, "id"))

	var req AdjustmentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var adj payroll.Adjustments
	var err error
	if adj.HolidayPay, err = parseDecimalField(req.HolidayPay); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid holiday_pay", err)
		return
	}
	if adj.NightDiffPay, err = parseDecimalField(req.NightDiffPay); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid night_diff_pay", err)
		return
	}
	if adj.Allowance, err = parseDecimalField(req.Allowance); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid allowance", err)
		return
	}
	if adj.Bonus, err = parseDecimalField(req.Bonus); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid bonus", err)
		return
	}

	record, err := h.Engine.SetAdjustments(r.Context(), id, adj)
	if err != nil {
		writeDomainError(w, "Adjustment failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTO(record))
}

// DeleteRecord removes an unpaid record, detaching its entries.
// DELETE /api/records/{id}
func (h *Handler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	id := payroll.RecordID(chi.URLParam(r, "id"))

	if err := h.Engine.Delete(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to delete record", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// SUB-LEDGER HANDLERS
// =============================================================================

// ListEntries returns sub-ledger entries of one kind.
// GET /api/{attendance,overtime,deductions}?employee_id=&from=&to=&unattached=
func (h *Handler) ListEntries(kind payroll.EntryKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f := payroll.EntryFilter{Kinds: []payroll.EntryKind{kind}}

		if s := r.URL.Query().Get("employee_id"); s != "" {
			id := payroll.EmployeeID(s)
			f.EmployeeID = &id
		}
		if s := r.URL.Query().Get("from"); s != "" {
			d, err := payroll.ParseDate(s)
			if err != nil {
				writeError(w, http.StatusBadRequest, "Invalid from date (use YYYY-MM-DD)", err)
				return
			}
			f.From = &d
		}
		if s := r.URL.Query().Get("to"); s != "" {
			d, err := payroll.ParseDate(s)
			if err != nil {
				writeError(w, http.StatusBadRequest, "Invalid to date (use YYYY-MM-DD)", err)
				return
			}
			f.To = &d
		}
		if s := r.URL.Query().Get("record_id"); s != "" {
			id := payroll.RecordID(s)
			f.AttachedTo = &id
		}
		if r.URL.Query().Get("unattached") == "true" {
			f.Unattached = true
		}

		entries, err := h.SubLedger.List(r.Context(), f)
		if err != nil {
			writeDomainError(w, "Failed to list entries", err)
			return
		}
		writeJSON(w, http.StatusOK, toEntryDTOs(entries))
	}
}

// GetEntry returns a single sub-ledger entry.
func (h *Handler) GetEntry(kind payroll.EntryKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := payroll.EntryID(chi.URLParam(r, "id"))

		entry, err := h.SubLedger.Get(r.Context(), kind, id)
		if err != nil {
			writeDomainError(w, "Failed to get entry", err)
			return
		}
		writeJSON(w, http.StatusOK, toEntryDTO(entry))
	}
}

// DeleteEntry removes an unattached sub-ledger entry.
func (h *Handler) DeleteEntry(kind payroll.EntryKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := payroll.EntryID(chi.URLParam(r, "id"))

		if err := h.SubLedger.Delete(r.Context(), kind, id); err != nil {
			writeDomainError(w, "Failed to delete entry", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// CreateAttendance creates an attendance entry.
// POST /api/attendance
func (h *Handler) CreateAttendance(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.decodeAttendance(w, r, "")
	if !ok {
		return
	}
	created, err := h.SubLedger.Create(r.Context(), entry)
	if err != nil {
		writeDomainError(w, "Failed to create attendance entry", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTO(created))
}

// UpdateAttendance updates an attendance entry.
// PUT /api/attendance/{id}
func (h *Handler) UpdateAttendance(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.decodeAttendance(w, r, payroll.EntryID(chi.URLParam(r, "id")))
	if !ok {
		return
	}
	updated, err := h.SubLedger.Update(r.Context(), entry)
	if err != nil {
		writeDomainError(w, "Failed to update attendance entry", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(updated))
}

func (h *Handler) decodeAttendance(w http.ResponseWriter, r *http.Request, id payroll.EntryID) (*payroll.AttendanceEntry, bool) {
	var req AttendanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return nil, false
	}
	date, err := parseDateField(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return nil, false
	}
	return &payroll.AttendanceEntry{
		ID:         id,
		EmployeeID: payroll.EmployeeID(req.EmployeeID),
		Date:       date,
		Status:     payroll.AttendanceStatus(req.Status),
		TimeIn:     req.TimeIn,
		TimeOut:    req.TimeOut,
		Remarks:    req.Remarks,
	}, true
}

// CreateOvertime creates an overtime entry.
// POST /api/overtime
func (h *Handler) CreateOvertime(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.decodeOvertime(w, r, "")
	if !ok {
		return
	}
	created, err := h.SubLedger.Create(r.Context(), entry)
	if err != nil {
		writeDomainError(w, "Failed to create overtime entry", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTO(created))
}

// UpdateOvertime updates an overtime entry.
// PUT /api/overtime/{id}
func (h *Handler) UpdateOvertime(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.decodeOvertime(w, r, payroll.EntryID(chi.URLParam(r, "id")))
	if !ok {
		return
	}
	updated, err := h.SubLedger.Update(r.Context(), entry)
	if err != nil {
		writeDomainError(w, "Failed to update overtime entry", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(updated))
}

func (h *Handler) decodeOvertime(w http.ResponseWriter, r *http.Request, id payroll.EntryID) (*payroll.OvertimeEntry, bool) {
	var req OvertimeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return nil, false
	}
	date, err := parseDateField(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return nil, false
	}
	entry := &payroll.OvertimeEntry{
		ID:         id,
		EmployeeID: payroll.EmployeeID(req.EmployeeID),
		Date:       date,
		Status:     payroll.OvertimeStatus(req.Status),
		Remarks:    req.Remarks,
	}
	if entry.Hours, err = parseDecimalField(req.Hours); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid hours", err)
		return nil, false
	}
	if entry.Rate, err = parseDecimalField(req.Rate); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rate", err)
		return nil, false
	}
	if entry.Amount, err = parseDecimalField(req.Amount); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return nil, false
	}
	return entry, true
}

// CreateDeduction creates a deduction entry.
// POST /api/deductions
func (h *Handler) CreateDeduction(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.decodeDeduction(w, r, "")
	if !ok {
		return
	}
	created, err := h.SubLedger.Create(r.Context(), entry)
	if err != nil {
		writeDomainError(w, "Failed to create deduction entry", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTO(created))
}

// UpdateDeduction updates a deduction entry.
// PUT /api/deductions/{id}
func (h *Handler) UpdateDeduction(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.decodeDeduction(w, r, payroll.EntryID(chi.URLParam(r, "id")))
	if !ok {
		return
	}
	updated, err := h.SubLedger.Update(r.Context(), entry)
	if err != nil {
		writeDomainError(w, "Failed to update deduction entry", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(updated))
}

func (h *Handler) decodeDeduction(w http.ResponseWriter, r *http.Request, id payroll.EntryID) (*payroll.DeductionEntry, bool) {
	var req DeductionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return nil, false
	}
	date, err := parseDateField(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return nil, false
	}
	entry := &payroll.DeductionEntry{
		ID:         id,
		EmployeeID: payroll.EmployeeID(req.EmployeeID),
		Date:       date,
		Type:       payroll.DeductionType(req.Type),
		Remarks:    req.Remarks,
	}
	if entry.Amount, err = parseDecimalField(req.Amount); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return nil, false
	}
	return entry, true
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps the payroll error taxonomy to HTTP status codes.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case payroll.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, payroll.ErrValidation):
		var verr *payroll.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:   message,
				Code:    "validation_failed",
				Details: verr.Violations,
			})
			return
		}
		writeError(w, http.StatusBadRequest, message, err)
	case payroll.IsClientError(err):
		writeError(w, http.StatusConflict, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func parseDateField(s string) (payroll.Date, error) {
	if s == "" {
		return payroll.Date{}, nil
	}
	return payroll.ParseDate(s)
}

func parseDatePtr(s *string) (*payroll.Date, error) {
	if s == nil {
		return nil, nil
	}
	d, err := payroll.ParseDate(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
