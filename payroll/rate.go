/*
rate.go - Employee rate collaborator contract

PURPOSE:
  Basic pay policy is supplied by an external collaborator, not computed by
  the engine. The contract: accept the employee's rate config plus attendance
  counters, return a non-negative amount. A single authoritative path -
  call sites never default a missing rate to zero; a missing rate fails the
  computation loudly.

SEE ALSO:
  - engine.go: the only caller
*/
package payroll

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RATE CONFIG
// =============================================================================

// RateConfig is an employee's pay rate configuration.
type RateConfig struct {
	DailyRate          decimal.Decimal
	HourlyRate         decimal.Decimal
	OvertimeMultiplier decimal.Decimal
}

// RateProvider resolves an employee's rate config. Returns a NotFoundError
// when the employee is unknown or has no rate configured.
type RateProvider interface {
	GetRateConfig(ctx context.Context, employeeID EmployeeID) (*RateConfig, error)
}

// AttendanceSummary is the counter set derived from attendance entries,
// handed to the rate calculator.
type AttendanceSummary struct {
	DaysPresent int
	DaysAbsent  int
	DaysLate    int
	DaysHalfDay int
}

// PaidDayEquivalent converts the counters into paid days: late days count as
// full presence, half-days as 0.5.
func (a AttendanceSummary) PaidDayEquivalent() decimal.Decimal {
	full := decimal.NewFromInt(int64(a.DaysPresent + a.DaysLate))
	half := decimal.NewFromInt(int64(a.DaysHalfDay)).Div(decimal.NewFromInt(2))
	return full.Add(half)
}

// RateCalculator turns a rate config and attendance counters into basic pay.
type RateCalculator interface {
	BasicPay(cfg RateConfig, att AttendanceSummary) (decimal.Decimal, error)
}

// =============================================================================
// DEFAULT IMPLEMENTATIONS
// =============================================================================

// DailyRateCalculator is the default policy: dailyRate x paid-day equivalent,
// rounded to 2 places.
type DailyRateCalculator struct{}

func (DailyRateCalculator) BasicPay(cfg RateConfig, att AttendanceSummary) (decimal.Decimal, error) {
	if cfg.DailyRate.IsNegative() {
		return decimal.Zero, &ValidationError{Violations: []string{"dailyRate must not be negative"}}
	}
	pay := round2(cfg.DailyRate.Mul(att.PaidDayEquivalent()))
	if pay.IsNegative() {
		return decimal.Zero, &ValidationError{Violations: []string{"basic pay must not be negative"}}
	}
	return pay, nil
}

// StaticRateProvider serves rate configs from a fixed map. For tests and dev
// wiring; production callers plug in their own employee service.
type StaticRateProvider struct {
	Rates map[EmployeeID]RateConfig
}

func (p *StaticRateProvider) GetRateConfig(_ context.Context, employeeID EmployeeID) (*RateConfig, error) {
	cfg, ok := p.Rates[employeeID]
	if !ok {
		return nil, &NotFoundError{Entity: "employee rate config", ID: string(employeeID)}
	}
	return &cfg, nil
}
