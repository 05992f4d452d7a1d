/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	payroll data for testing and demos. Each scenario creates periods,
	sub-ledger entries, and computed records that demonstrate specific
	behaviors of the engine.

AVAILABLE SCENARIOS:

	semi-monthly-run: One open period, two employees, computed records
	lock-and-pay:     Computed period locked, one record paid
	negative-net:     Deductions exceed gross pay (negative net, not clamped)

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Register demo employee rates
 3. Create the period via the lifecycle
 4. Create sub-ledger entries via the sub-ledger service
 5. Run the computation engine
 6. Optionally lock/pay

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "semi-monthly-run"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx)
 3. Add case to LoadScenario handler

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler dependencies
  - server.go: Scenario routes
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "semi-monthly-run",
		Name:        "Semi-Monthly Run",
		Description: "One open period, two employees with attendance, overtime, and deductions",
	},
	{
		ID:          "lock-and-pay",
		Name:        "Lock and Pay",
		Description: "Computed period locked for review, one record marked paid",
	},
	{
		ID:          "negative-net",
		Name:        "Negative Net Pay",
		Description: "Deductions exceed gross pay; the record is flagged, never clamped",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the database and loads the requested scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	if err := h.reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	var err error
	switch req.ScenarioID {
	case "semi-monthly-run":
		err = h.loadSemiMonthlyRunScenario(ctx)
	case "lock-and-pay":
		err = h.loadLockAndPayScenario(ctx)
	case "negative-net":
		err = h.loadNegativeNetScenario(ctx)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown scenario %q", req.ScenarioID), nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusOK, map[string]any{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears all data.
// POST /api/scenarios/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]any{"status": "reset"})
}

func (h *Handler) reset(ctx context.Context) error {
	resetter, ok := h.Store.(interface{ Reset(context.Context) error })
	if !ok {
		return fmt.Errorf("store does not support reset")
	}
	return resetter.Reset(ctx)
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// loadSemiMonthlyRunScenario builds one open period with two employees:
// alice (full attendance plus approved overtime) and bob (mixed attendance
// plus statutory deductions), both computed.
func (h *Handler) loadSemiMonthlyRunScenario(ctx context.Context) error {
	period, err := h.Lifecycle.Create(ctx, payroll.PeriodInput{
		PeriodType:  payroll.PeriodSemiMonthly,
		StartDate:   payroll.MustParseDate("2024-01-01"),
		EndDate:     payroll.MustParseDate("2024-01-15"),
		PayDate:     payroll.MustParseDate("2024-01-20"),
		WorkingDays: 11,
	})
	if err != nil {
		return err
	}

	h.registerRate("alice", "500")
	h.registerRate("bob", "650")

	// Alice: 10 days present, one late, 3 hours of approved overtime.
	for day := 1; day <= 10; day++ {
		if err := h.seedAttendance(ctx, "alice", payroll.NewDate(2024, 1, day), payroll.AttendancePresent); err != nil {
			return err
		}
	}
	if err := h.seedAttendance(ctx, "alice", payroll.NewDate(2024, 1, 11), payroll.AttendanceLate); err != nil {
		return err
	}
	if _, err := h.SubLedger.Create(ctx, &payroll.OvertimeEntry{
		EmployeeID: "alice",
		Date:       payroll.MustParseDate("2024-01-08"),
		Hours:      payroll.MustParseDecimal("3"),
		Rate:       payroll.MustParseDecimal("78.13"),
		Amount:     payroll.MustParseDecimal("234.39"),
		Status:     payroll.OvertimeApproved,
	}); err != nil {
		return err
	}

	// Bob: 9 present, one absent, one half-day, statutory deductions.
	for day := 1; day <= 9; day++ {
		if err := h.seedAttendance(ctx, "bob", payroll.NewDate(2024, 1, day), payroll.AttendancePresent); err != nil {
			return err
		}
	}
	if err := h.seedAttendance(ctx, "bob", payroll.NewDate(2024, 1, 10), payroll.AttendanceAbsent); err != nil {
		return err
	}
	if err := h.seedAttendance(ctx, "bob", payroll.NewDate(2024, 1, 11), payroll.AttendanceHalfDay); err != nil {
		return err
	}
	for dtype, amount := range map[payroll.DeductionType]string{
		payroll.DeductionSSS:        "292.50",
		payroll.DeductionPhilHealth: "162.50",
		payroll.DeductionPagIbig:    "100",
	} {
		if _, err := h.SubLedger.Create(ctx, &payroll.DeductionEntry{
			EmployeeID: "bob",
			Date:       payroll.MustParseDate("2024-01-15"),
			Type:       dtype,
			Amount:     payroll.MustParseDecimal(amount),
		}); err != nil {
			return err
		}
	}

	for _, emp := range []payroll.EmployeeID{"alice", "bob"} {
		if _, err := h.Engine.Compute(ctx, emp, period.ID); err != nil {
			return err
		}
	}
	return nil
}

// loadLockAndPayScenario computes one record, locks the period, and pays.
func (h *Handler) loadLockAndPayScenario(ctx context.Context) error {
	period, err := h.Lifecycle.Create(ctx, payroll.PeriodInput{
		PeriodType:  payroll.PeriodSemiMonthly,
		StartDate:   payroll.MustParseDate("2024-02-01"),
		EndDate:     payroll.MustParseDate("2024-02-15"),
		PayDate:     payroll.MustParseDate("2024-02-20"),
		WorkingDays: 11,
	})
	if err != nil {
		return err
	}

	h.registerRate("carol", "550")
	for day := 1; day <= 11; day++ {
		if err := h.seedAttendance(ctx, "carol", payroll.NewDate(2024, 2, day), payroll.AttendancePresent); err != nil {
			return err
		}
	}

	record, err := h.Engine.Compute(ctx, "carol", period.ID)
	if err != nil {
		return err
	}
	if _, err := h.Lifecycle.Lock(ctx, period.ID); err != nil {
		return err
	}
	// Payment-status changes are allowed while locked.
	_, err = h.Engine.MarkAsPaid(ctx, record.ID, payroll.PaymentInfo{
		Method:    "bank-transfer",
		Reference: "DEMO-2024-0215",
	})
	return err
}

// loadNegativeNetScenario builds a record whose deductions exceed gross pay.
func (h *Handler) loadNegativeNetScenario(ctx context.Context) error {
	period, err := h.Lifecycle.Create(ctx, payroll.PeriodInput{
		PeriodType:  payroll.PeriodSemiMonthly,
		StartDate:   payroll.MustParseDate("2024-03-01"),
		EndDate:     payroll.MustParseDate("2024-03-15"),
		PayDate:     payroll.MustParseDate("2024-03-20"),
		WorkingDays: 10,
	})
	if err != nil {
		return err
	}

	h.registerRate("dave", "400")
	if err := h.seedAttendance(ctx, "dave", payroll.NewDate(2024, 3, 1), payroll.AttendancePresent); err != nil {
		return err
	}
	if err := h.seedAttendance(ctx, "dave", payroll.NewDate(2024, 3, 4), payroll.AttendancePresent); err != nil {
		return err
	}
	// A loan amortization larger than two days of pay.
	if _, err := h.SubLedger.Create(ctx, &payroll.DeductionEntry{
		EmployeeID: "dave",
		Date:       payroll.MustParseDate("2024-03-15"),
		Type:       payroll.DeductionLoan,
		Amount:     payroll.MustParseDecimal("1500"),
	}); err != nil {
		return err
	}

	_, err = h.Engine.Compute(ctx, "dave", period.ID)
	return err
}

// =============================================================================
// SEED HELPERS
// =============================================================================

func (h *Handler) registerRate(emp payroll.EmployeeID, dailyRate string) {
	if h.Rates == nil {
		return
	}
	if h.Rates.Rates == nil {
		h.Rates.Rates = make(map[payroll.EmployeeID]payroll.RateConfig)
	}
	h.Rates.Rates[emp] = payroll.RateConfig{
		DailyRate:          payroll.MustParseDecimal(dailyRate),
		OvertimeMultiplier: payroll.MustParseDecimal("1.25"),
	}
}

func (h *Handler) seedAttendance(ctx context.Context, emp payroll.EmployeeID, date payroll.Date, status payroll.AttendanceStatus) error {
	_, err := h.SubLedger.Create(ctx, &payroll.AttendanceEntry{
		EmployeeID: emp,
		Date:       date,
		Status:     status,
	})
	return err
}
