/*
expand.go - Month expansion of scheduled charges

PURPOSE:
  Turns each scheduled-charge interval into one expected-obligation row per
  covered calendar month. A charge running January 15 through March 20
  becomes three rows bucketed at 2024-01-01, 2024-02-01, 2024-03-01, each
  carrying the charge's full expected amount.

EDGE POLICIES (deliberate, not defects):
  - Missing period start  -> the charge contributes nothing
  - Missing period end    -> one-time charge, exactly one row (start month)
  - Start month after the as-of month -> excluded entirely (future charges
    cannot yet have billing evidence)
  - Months after the as-of month are never emitted

  Malformed or missing dates degrade to empty output rather than failing
  the run; the engine counts excluded charges in its stats so callers can
  log them.

DETERMINISM:
  Output preserves input order of charges, months ascending within each
  charge. No side effects, no error conditions.

SEE ALSO:
  - reconcile.go: consumes the expected-detail table
*/
package audit

import (
	"github.com/warp/lease-audit/canonical"
)

// =============================================================================
// MONTH RANGE
// =============================================================================

// MonthRange returns the month starts from start to end inclusive, both
// truncated to month granularity.
//
// A zero start yields nil. A zero end is a one-time charge: exactly the
// start month. An end month before the start month yields nil.
func MonthRange(start, end canonical.Date) []canonical.Month {
	if start.IsZero() {
		return nil
	}

	startMonth := canonical.MonthOf(start)
	if end.IsZero() {
		return []canonical.Month{startMonth}
	}

	endMonth := canonical.MonthOf(end)
	if endMonth.Before(startMonth) {
		return nil
	}

	var months []canonical.Month
	for m := startMonth; m.BeforeOrEqual(endMonth); m = m.AddMonths(1) {
		months = append(months, m)
	}
	return months
}

// =============================================================================
// EXPANSION
// =============================================================================

// ChargeMonths returns the audit months one charge covers, bounded by asOf.
// Charges starting after asOf are excluded entirely; within a retained
// range only months up to and including asOf are emitted.
func ChargeMonths(charge canonical.ScheduledCharge, asOf canonical.Month) []canonical.Month {
	months := MonthRange(charge.PeriodStart, charge.PeriodEnd)
	if len(months) == 0 || months[0].After(asOf) {
		return nil
	}

	out := months[:0:0]
	for _, m := range months {
		if m.After(asOf) {
			break
		}
		out = append(out, m)
	}
	return out
}

// ExpandScheduled explodes scheduled charges into the expected-detail table,
// one row per (charge, covered month).
func ExpandScheduled(charges []canonical.ScheduledCharge, asOf canonical.Month) []canonical.ExpectedDetail {
	var rows []canonical.ExpectedDetail
	for _, charge := range charges {
		for _, month := range ChargeMonths(charge, asOf) {
			rows = append(rows, canonical.ExpectedDetail{
				ScheduledChargeID: charge.ID,
				Key: canonical.BucketKey{
					PropertyID:      charge.PropertyID,
					LeaseIntervalID: charge.LeaseIntervalID,
					ARCodeID:        charge.ARCodeID,
					AuditMonth:      month,
				},
				ExpectedAmount: charge.ExpectedAmount,
				PeriodStart:    charge.PeriodStart,
				PeriodEnd:      charge.PeriodEnd,
			})
		}
	}
	return rows
}
