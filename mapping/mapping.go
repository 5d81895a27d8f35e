/*
Package mapping converts raw source tables into the canonical data model.

PURPOSE:
  This package is the ONLY place where raw source column names appear.
  Everything downstream of it (audit/, findings/, api/) speaks canonical
  types exclusively. Raw rows arrive as loosely-typed maps, typically
  decoded from JSON uploads, and leave as []canonical.ScheduledCharge /
  []canonical.ARTransaction.

PROCESS (per source table):
  1. Validate required source columns exist (table-wide, all missing
     columns reported at once)
  2. Apply the source row filter (AR: posted and not deleted)
  3. Coerce each column to its canonical type; unparseable dates become
     the zero value rather than failing the whole upload
  4. Drop AR rows that end up with no resolvable audit month

SEE ALSO:
  - canonical/types.go: The target model
  - parse.go: Value coercion helpers
*/
package mapping

import (
	"fmt"
	"sort"
	"strings"

	"github.com/warp/lease-audit/canonical"
)

// Row is one loosely-typed raw source record.
type Row map[string]any

// =============================================================================
// RAW SOURCE COLUMN NAMES
// =============================================================================

// AR transactions source columns.
const (
	ARColPropertyID        = "PROPERTY_ID"
	ARColLeaseIntervalID   = "LEASE_INTERVAL_ID"
	ARColARCodeID          = "AR_CODE_ID"
	ARColARCodeName        = "AR_CODE_NAME"
	ARColTransactionAmount = "TRANSACTION_AMOUNT"
	ARColPostDate          = "POST_DATE"
	ARColPostMonthDate     = "POST_MONTH_DATE"
	ARColIsPosted          = "IS_POSTED"
	ARColIsDeleted         = "IS_DELETED"
	ARColIsReversal        = "IS_REVERSAL"
	ARColID                = "ID"
	ARColScheduledChargeID = "SCHEDULED_CHARGE_ID"
)

// Scheduled charges source columns.
const (
	SchedColID              = "SCHEDULED_CHARGES_ID"
	SchedColPropertyID      = "PROPERTY_ID"
	SchedColLeaseIntervalID = "LEASE_INTERVAL_ID"
	SchedColARCodeID        = "AR_CODE_ID"
	SchedColARCodeName      = "AR_CODE_NAME"
	SchedColChargeAmount    = "CHARGE_AMOUNT"
	SchedColDateChargeStart = "DATE_CHARGE_START"
	SchedColDateChargeEnd   = "DATE_CHARGE_END"

	// Optional filter-flag columns. When a column is absent the row is
	// treated as an active, lease-cached, selected charge.
	SchedColIsUnselectedQuote   = "IS_UNSELECTED_QUOTE"
	SchedColIsCachedToLease     = "IS_CACHED_TO_LEASE"
	SchedColActiveLeaseInterval = "ACTIVE_LEASE_INTERVAL"
)

var arRequiredColumns = []string{
	ARColPropertyID,
	ARColLeaseIntervalID,
	ARColARCodeID,
	ARColTransactionAmount,
	ARColPostDate,
	ARColPostMonthDate,
	ARColIsPosted,
	ARColIsDeleted,
	ARColIsReversal,
	ARColID,
}

var scheduledRequiredColumns = []string{
	SchedColID,
	SchedColPropertyID,
	SchedColLeaseIntervalID,
	SchedColARCodeID,
	SchedColChargeAmount,
	SchedColDateChargeStart,
	SchedColDateChargeEnd,
}

// =============================================================================
// COLUMN VALIDATION
// =============================================================================

// MissingColumnsError reports every required raw column absent from a source
// table in one shot.
type MissingColumnsError struct {
	Source  string
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	cols := append([]string(nil), e.Columns...)
	sort.Strings(cols)
	return fmt.Sprintf("source %q is missing required columns: %s",
		e.Source, strings.Join(cols, ", "))
}

// validateColumns checks that every required column appears in at least one
// row. An empty table trivially passes; the engine rejects it later.
func validateColumns(source string, rows []Row, required []string) error {
	if len(rows) == 0 {
		return nil
	}
	var missing []string
	for _, col := range required {
		found := false
		for _, row := range rows {
			if _, ok := row[col]; ok {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return &MissingColumnsError{Source: source, Columns: missing}
	}
	return nil
}

// =============================================================================
// AR TRANSACTIONS MAPPING
// =============================================================================

// MapARTransactions converts raw ledger rows to canonical transactions.
//
// Rows are filtered at the source to posted and not-deleted, matching the
// upstream extract. Rows whose post month and post date both fail to parse
// have no audit bucket and are dropped.
func MapARTransactions(rows []Row) ([]canonical.ARTransaction, error) {
	if err := validateColumns("ar_transactions", rows, arRequiredColumns); err != nil {
		return nil, err
	}

	out := make([]canonical.ARTransaction, 0, len(rows))
	for _, row := range rows {
		if !coerceBool(row[ARColIsPosted]) || coerceBool(row[ARColIsDeleted]) {
			continue
		}

		tx := canonical.ARTransaction{
			ID:                  canonical.ARTransactionID(coerceID(row[ARColID])),
			PropertyID:          canonical.PropertyID(coerceID(row[ARColPropertyID])),
			LeaseIntervalID:     canonical.LeaseIntervalID(coerceID(row[ARColLeaseIntervalID])),
			ARCodeID:            canonical.ARCodeID(coerceID(row[ARColARCodeID])),
			ARCodeName:          coerceString(row[ARColARCodeName]),
			ActualAmount:        coerceDecimal(row[ARColTransactionAmount]),
			PostDate:            coerceYYYYMMDD(row[ARColPostDate]),
			PostMonth:           canonical.MonthOf(coerceYYYYMMDD(row[ARColPostMonthDate])),
			IsPosted:            true,
			IsDeleted:           false,
			IsReversal:          coerceBool(row[ARColIsReversal]),
			ScheduledChargeLink: canonical.ScheduledChargeID(coerceID(row[ARColScheduledChargeID])),
		}
		if tx.AuditMonth().IsZero() {
			continue
		}
		out = append(out, tx)
	}
	return out, nil
}

// =============================================================================
// SCHEDULED CHARGES MAPPING
// =============================================================================

// MapScheduledCharges converts raw lease-file rows to canonical charges.
// No row filter applies at the source; the active-set filter runs inside
// the engine.
func MapScheduledCharges(rows []Row) ([]canonical.ScheduledCharge, error) {
	if err := validateColumns("scheduled_charges", rows, scheduledRequiredColumns); err != nil {
		return nil, err
	}

	out := make([]canonical.ScheduledCharge, 0, len(rows))
	for _, row := range rows {
		out = append(out, canonical.ScheduledCharge{
			ID:                  canonical.ScheduledChargeID(coerceID(row[SchedColID])),
			PropertyID:          canonical.PropertyID(coerceID(row[SchedColPropertyID])),
			LeaseIntervalID:     canonical.LeaseIntervalID(coerceID(row[SchedColLeaseIntervalID])),
			ARCodeID:            canonical.ARCodeID(coerceID(row[SchedColARCodeID])),
			ARCodeName:          coerceString(row[SchedColARCodeName]),
			ExpectedAmount:      coerceDecimal(row[SchedColChargeAmount]),
			PeriodStart:         coerceYYYYMMDD(row[SchedColDateChargeStart]),
			PeriodEnd:           coerceYYYYMMDD(row[SchedColDateChargeEnd]),
			IsUnselectedQuote:   coerceBoolDefault(row, SchedColIsUnselectedQuote, false),
			IsCachedToLease:     coerceBoolDefault(row, SchedColIsCachedToLease, true),
			ActiveLeaseInterval: coerceBoolDefault(row, SchedColActiveLeaseInterval, true),
		})
	}
	return out, nil
}
