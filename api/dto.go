/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Periods:
    PeriodDTO, CreatePeriodRequest, UpdatePeriodRequest

  Records:
    RecordDTO, ComputeRequest, PaymentRequest, AdjustmentsRequest

  Sub-ledger:
    AttendanceDTO, OvertimeDTO, DeductionDTO and their write requests

MONEY ON THE WIRE:
  Monetary values serialize as decimal strings ("5300.00"), never floats.
  Dates serialize as "YYYY-MM-DD", timestamps as RFC3339.

VALIDATION:
  Shape validation (parse failures) is done in handlers; rule validation
  lives in the payroll package. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - payroll/types.go: The domain model these project
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// PERIOD TYPES
// =============================================================================

// PeriodDTO represents a payroll period in API responses.
type PeriodDTO struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	PeriodType      string `json:"period_type"`
	StartDate       string `json:"start_date"`
	EndDate         string `json:"end_date"`
	PayDate         string `json:"pay_date"`
	WorkingDays     int    `json:"working_days"`
	Status          string `json:"status"`
	LockedAt        string `json:"locked_at,omitempty"`
	ClosedAt        string `json:"closed_at,omitempty"`
	TotalEmployees  int    `json:"total_employees"`
	TotalGrossPay   string `json:"total_gross_pay"`
	TotalDeductions string `json:"total_deductions"`
	TotalNetPay     string `json:"total_net_pay"`
	CreatedAt       string `json:"created_at,omitempty"`
	UpdatedAt       string `json:"updated_at,omitempty"`
}

// CreatePeriodRequest is the request to create a period.
type CreatePeriodRequest struct {
	Name        string `json:"name,omitempty"`
	PeriodType  string `json:"period_type"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	PayDate     string `json:"pay_date"`
	WorkingDays int    `json:"working_days"`
	Status      string `json:"status,omitempty"`
}

// UpdatePeriodRequest is a partial update; absent fields keep their value.
type UpdatePeriodRequest struct {
	Name        *string `json:"name,omitempty"`
	PeriodType  *string `json:"period_type,omitempty"`
	StartDate   *string `json:"start_date,omitempty"`
	EndDate     *string `json:"end_date,omitempty"`
	PayDate     *string `json:"pay_date,omitempty"`
	WorkingDays *int    `json:"working_days,omitempty"`
	Status      *string `json:"status,omitempty"`
}

// =============================================================================
// RECORD TYPES
// =============================================================================

// RecordDTO represents a payroll record in API responses.
type RecordDTO struct {
	ID         string `json:"id"`
	EmployeeID string `json:"employee_id"`
	PeriodID   string `json:"period_id"`

	DaysPresent int `json:"days_present"`
	DaysAbsent  int `json:"days_absent"`
	DaysLate    int `json:"days_late"`
	DaysHalfDay int `json:"days_half_day"`

	BasicPay      string `json:"basic_pay"`
	OvertimeHours string `json:"overtime_hours"`
	OvertimePay   string `json:"overtime_pay"`
	HolidayPay    string `json:"holiday_pay"`
	NightDiffPay  string `json:"night_diff_pay"`
	Allowance     string `json:"allowance"`
	Bonus         string `json:"bonus"`
	GrossPay      string `json:"gross_pay"`

	Deductions      map[string]string `json:"deductions"`
	DeductionsTotal string            `json:"deductions_total"`
	NetPay          string            `json:"net_pay"`
	ComputedAt      string            `json:"computed_at"`

	PaymentStatus    string `json:"payment_status"`
	PaidAt           string `json:"paid_at,omitempty"`
	PaymentMethod    string `json:"payment_method,omitempty"`
	PaymentReference string `json:"payment_reference,omitempty"`
	Remarks          string `json:"remarks,omitempty"`
}

// ComputeRequest identifies the (employee, period) pair to compute.
type ComputeRequest struct {
	EmployeeID string `json:"employee_id"`
	PeriodID   string `json:"period_id"`
}

// PaymentRequest carries the administrative payment fields.
type PaymentRequest struct {
	Method    string `json:"method,omitempty"`
	Reference string `json:"reference,omitempty"`
}

// AdjustmentsRequest sets the administrative earning components.
type AdjustmentsRequest struct {
	HolidayPay   string `json:"holiday_pay"`
	NightDiffPay string `json:"night_diff_pay"`
	Allowance    string `json:"allowance"`
	Bonus        string `json:"bonus"`
}

// =============================================================================
// SUB-LEDGER TYPES
// =============================================================================

// AttendanceDTO represents an attendance entry.
type AttendanceDTO struct {
	ID              string `json:"id"`
	EmployeeID      string `json:"employee_id"`
	Date            string `json:"date"`
	Status          string `json:"status"`
	TimeIn          string `json:"time_in,omitempty"`
	TimeOut         string `json:"time_out,omitempty"`
	PayrollRecordID string `json:"payroll_record_id,omitempty"`
	Remarks         string `json:"remarks,omitempty"`
	CreatedAt       string `json:"created_at,omitempty"`
	UpdatedAt       string `json:"updated_at,omitempty"`
}

// AttendanceRequest creates or updates an attendance entry.
type AttendanceRequest struct {
	EmployeeID string `json:"employee_id"`
	Date       string `json:"date"`
	Status     string `json:"status"`
	TimeIn     string `json:"time_in,omitempty"`
	TimeOut    string `json:"time_out,omitempty"`
	Remarks    string `json:"remarks,omitempty"`
}

// OvertimeDTO represents an overtime entry.
type OvertimeDTO struct {
	ID              string `json:"id"`
	EmployeeID      string `json:"employee_id"`
	Date            string `json:"date"`
	Hours           string `json:"hours"`
	Rate            string `json:"rate"`
	Amount          string `json:"amount"`
	Status          string `json:"status"`
	PayrollRecordID string `json:"payroll_record_id,omitempty"`
	Remarks         string `json:"remarks,omitempty"`
	CreatedAt       string `json:"created_at,omitempty"`
	UpdatedAt       string `json:"updated_at,omitempty"`
}

// OvertimeRequest creates or updates an overtime entry.
type OvertimeRequest struct {
	EmployeeID string `json:"employee_id"`
	Date       string `json:"date"`
	Hours      string `json:"hours"`
	Rate       string `json:"rate,omitempty"`
	Amount     string `json:"amount"`
	Status     string `json:"status"`
	Remarks    string `json:"remarks,omitempty"`
}

// DeductionDTO represents a deduction entry.
type DeductionDTO struct {
	ID              string `json:"id"`
	EmployeeID      string `json:"employee_id"`
	Date            string `json:"date"`
	Type            string `json:"type"`
	Amount          string `json:"amount"`
	PayrollRecordID string `json:"payroll_record_id,omitempty"`
	Remarks         string `json:"remarks,omitempty"`
	CreatedAt       string `json:"created_at,omitempty"`
	UpdatedAt       string `json:"updated_at,omitempty"`
}

// DeductionRequest creates or updates a deduction entry.
type DeductionRequest struct {
	EmployeeID string `json:"employee_id"`
	Date       string `json:"date"`
	Type       string `json:"type"`
	Amount     string `json:"amount"`
	Remarks    string `json:"remarks,omitempty"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects the scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toPeriodDTO(p *payroll.PayrollPeriod) PeriodDTO {
	dto := PeriodDTO{
		ID:              string(p.ID),
		Name:            p.Name,
		PeriodType:      string(p.PeriodType),
		StartDate:       p.StartDate.String(),
		EndDate:         p.EndDate.String(),
		PayDate:         p.PayDate.String(),
		WorkingDays:     p.WorkingDays,
		Status:          string(p.Status),
		TotalEmployees:  p.TotalEmployees,
		TotalGrossPay:   p.TotalGrossPay.String(),
		TotalDeductions: p.TotalDeductions.String(),
		TotalNetPay:     p.TotalNetPay.String(),
		CreatedAt:       p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       p.UpdatedAt.Format(time.RFC3339),
	}
	if p.LockedAt != nil {
		dto.LockedAt = p.LockedAt.Format(time.RFC3339)
	}
	if p.ClosedAt != nil {
		dto.ClosedAt = p.ClosedAt.Format(time.RFC3339)
	}
	return dto
}

func toPeriodDTOs(periods []*payroll.PayrollPeriod) []PeriodDTO {
	dtos := make([]PeriodDTO, len(periods))
	for i, p := range periods {
		dtos[i] = toPeriodDTO(p)
	}
	return dtos
}

func toRecordDTO(r *payroll.PayrollRecord) RecordDTO {
	deductions := make(map[string]string, len(r.Deductions))
	for t, amount := range r.Deductions {
		deductions[string(t)] = amount.String()
	}

	dto := RecordDTO{
		ID:               string(r.ID),
		EmployeeID:       string(r.EmployeeID),
		PeriodID:         string(r.PeriodID),
		DaysPresent:      r.DaysPresent,
		DaysAbsent:       r.DaysAbsent,
		DaysLate:         r.DaysLate,
		DaysHalfDay:      r.DaysHalfDay,
		BasicPay:         r.BasicPay.String(),
		OvertimeHours:    r.OvertimeHours.String(),
		OvertimePay:      r.OvertimePay.String(),
		HolidayPay:       r.HolidayPay.String(),
		NightDiffPay:     r.NightDiffPay.String(),
		Allowance:        r.Allowance.String(),
		Bonus:            r.Bonus.String(),
		GrossPay:         r.GrossPay.String(),
		Deductions:       deductions,
		DeductionsTotal:  r.DeductionsTotal.String(),
		NetPay:           r.NetPay.String(),
		ComputedAt:       r.ComputedAt.Format(time.RFC3339),
		PaymentStatus:    string(r.PaymentStatus),
		PaymentMethod:    r.PaymentMethod,
		PaymentReference: r.PaymentReference,
		Remarks:          r.Remarks,
	}
	if r.PaidAt != nil {
		dto.PaidAt = r.PaidAt.Format(time.RFC3339)
	}
	return dto
}

func toRecordDTOs(records []*payroll.PayrollRecord) []RecordDTO {
	dtos := make([]RecordDTO, len(records))
	for i, r := range records {
		dtos[i] = toRecordDTO(r)
	}
	return dtos
}

func toEntryDTO(e payroll.Entry) any {
	switch v := e.(type) {
	case *payroll.AttendanceEntry:
		dto := AttendanceDTO{
			ID:         string(v.ID),
			EmployeeID: string(v.EmployeeID),
			Date:       v.Date.String(),
			Status:     string(v.Status),
			TimeIn:     v.TimeIn,
			TimeOut:    v.TimeOut,
			Remarks:    v.Remarks,
			CreatedAt:  v.CreatedAt.Format(time.RFC3339),
			UpdatedAt:  v.UpdatedAt.Format(time.RFC3339),
		}
		if v.PayrollRecordID != nil {
			dto.PayrollRecordID = string(*v.PayrollRecordID)
		}
		return dto
	case *payroll.OvertimeEntry:
		dto := OvertimeDTO{
			ID:         string(v.ID),
			EmployeeID: string(v.EmployeeID),
			Date:       v.Date.String(),
			Hours:      v.Hours.String(),
			Rate:       v.Rate.String(),
			Amount:     v.Amount.String(),
			Status:     string(v.Status),
			Remarks:    v.Remarks,
			CreatedAt:  v.CreatedAt.Format(time.RFC3339),
			UpdatedAt:  v.UpdatedAt.Format(time.RFC3339),
		}
		if v.PayrollRecordID != nil {
			dto.PayrollRecordID = string(*v.PayrollRecordID)
		}
		return dto
	case *payroll.DeductionEntry:
		dto := DeductionDTO{
			ID:         string(v.ID),
			EmployeeID: string(v.EmployeeID),
			Date:       v.Date.String(),
			Type:       string(v.Type),
			Amount:     v.Amount.String(),
			Remarks:    v.Remarks,
			CreatedAt:  v.CreatedAt.Format(time.RFC3339),
			UpdatedAt:  v.UpdatedAt.Format(time.RFC3339),
		}
		if v.PayrollRecordID != nil {
			dto.PayrollRecordID = string(*v.PayrollRecordID)
		}
		return dto
	}
	return nil
}

func toEntryDTOs(entries []payroll.Entry) []any {
	dtos := make([]any, len(entries))
	for i, e := range entries {
		dtos[i] = toEntryDTO(e)
	}
	return dtos
}

// parseDecimalField parses a decimal string; empty means zero.
func parseDecimalField(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
