/*
totals.go - Period-level rollups

PURPOSE:
  Rolls per-record totals up into the owning period: distinct employee
  count, gross pay, deductions, and net pay sums. Refresh is invoked by the
  engine after every record create/update/delete/cancel, inside the same
  store transaction, so readers never observe a period whose totals disagree
  with its records.

IDEMPOTENCY:
  Refresh recomputes from scratch every time. Calling it redundantly is safe
  and changes nothing.

SEE ALSO:
  - engine.go: the caller
*/
package payroll

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TOTALS AGGREGATOR
// =============================================================================

type TotalsAggregator struct {
	store TxStore
}

func NewTotalsAggregator(store TxStore) *TotalsAggregator {
	return &TotalsAggregator{store: store}
}

// Refresh recomputes and persists the period's rolled-up totals in its own
// transaction. The engine uses refreshIn to join an existing transaction.
func (a *TotalsAggregator) Refresh(ctx context.Context, periodID PeriodID) error {
	return a.store.WithTx(ctx, func(s Store) error {
		return a.refreshIn(ctx, s, periodID)
	})
}

// refreshIn recomputes totals within the caller's transaction. Cancelled
// records are excluded: a cancelled payroll is not part of the period's
// payout, which is why Cancel triggers a refresh at all.
func (a *TotalsAggregator) refreshIn(ctx context.Context, s Store, periodID PeriodID) error {
	period, err := s.GetPeriod(ctx, periodID)
	if err != nil {
		return err
	}

	records, err := s.ListRecords(ctx, RecordFilter{PeriodID: &periodID})
	if err != nil {
		return err
	}

	employees := make(map[EmployeeID]struct{})
	gross, deductions, net := decimal.Zero, decimal.Zero, decimal.Zero
	for _, r := range records {
		if r.PaymentStatus == PaymentCancelled {
			continue
		}
		employees[r.EmployeeID] = struct{}{}
		gross = gross.Add(r.GrossPay)
		deductions = deductions.Add(r.DeductionsTotal)
		net = net.Add(r.NetPay)
	}

	period.TotalEmployees = len(employees)
	period.TotalGrossPay = round2(gross)
	period.TotalDeductions = round2(deductions)
	period.TotalNetPay = round2(net)

	return s.UpdatePeriod(ctx, period)
}
