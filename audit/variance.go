/*
variance.go - Typed variance classification of matcher output

PURPOSE:
  Converts the matcher's matched/unmatched sets into a flat list of typed,
  severity-tagged variance records - the per-transaction forensic evidence
  of the audit. Every scheduled charge and every transaction lands in
  exactly one outcome: matched, one variance record, or (for excluded
  codes) deliberately none. Nothing is silently dropped or double-counted.

CLASSIFICATION:
  Tertiary-matched pairs:
    REVERSED_BILLING (INFO, variance 0) when the transaction is deleted or
      a reversal - a reversed charge's date is not evidence of a timing
      error, so this overrides date-mismatch semantics
    DATE_MISMATCH (MEDIUM) otherwise, with an early/late description
  Unmatched scheduled charges:
    TIMED_OR_EXTERNAL_CHARGE (MEDIUM) for excluded codes - these should not
      be scheduled at all
    MISSING_BILLINGS (HIGH) otherwise - scheduled but never billed
  Unmatched transactions:
    dropped for excluded codes - API-driven billing without a schedule is
      expected, not a variance
    EVENT_DRIVEN (INFO) when the code name hits the event vocabulary
    EXTRA_BILLINGS (MEDIUM) otherwise - billed with no matching schedule

  Aggregate amount mismatch within a bucket is the bucket reconciler's
  responsibility, not classified here.

SEE ALSO:
  - match.go: produces the input
  - reconcile.go: the complementary aggregate path
*/
package audit

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/warp/lease-audit/canonical"
)

// =============================================================================
// VARIANCE TYPES & SEVERITY
// =============================================================================

type VarianceType string

const (
	VarianceDateMismatch    VarianceType = "DATE_MISMATCH"
	VarianceReversedBilling VarianceType = "REVERSED_BILLING"
	VarianceMissingBillings VarianceType = "MISSING_BILLINGS"
	VarianceExtraBillings   VarianceType = "EXTRA_BILLINGS"
	VarianceEventDriven     VarianceType = "EVENT_DRIVEN"
	VarianceTimedOrExternal VarianceType = "TIMED_OR_EXTERNAL_CHARGE"
)

type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
	SeverityInfo   Severity = "INFO"
)

// =============================================================================
// VARIANCE RECORD
// =============================================================================

// VarianceRecord is one row of the variance_detail output table: one
// unresolved discrepancy, typed by cause. A zero ScheduledChargeID or
// TransactionID means that side is not involved.
type VarianceRecord struct {
	Type              VarianceType                `json:"variance_type"`
	Severity          Severity                    `json:"severity"`
	ScheduledChargeID canonical.ScheduledChargeID `json:"scheduled_charge_id,omitempty"`
	TransactionID     canonical.ARTransactionID   `json:"transaction_id,omitempty"`
	LeaseIntervalID   canonical.LeaseIntervalID   `json:"lease_interval_id"`
	ARCodeID          canonical.ARCodeID          `json:"ar_code_id"`
	ARCodeName        string                      `json:"ar_code_name,omitempty"`
	ExpectedAmount    decimal.Decimal             `json:"expected_amount"`
	ActualAmount      decimal.Decimal             `json:"actual_amount"`
	Variance          decimal.Decimal             `json:"variance"`
	PostDate          canonical.Date              `json:"post_date,omitempty"`
	PeriodStart       canonical.Date              `json:"period_start,omitempty"`
	PeriodEnd         canonical.Date              `json:"period_end,omitempty"`
	IsDeleted         bool                        `json:"is_deleted,omitempty"`
	IsReversal        bool                        `json:"is_reversal,omitempty"`
	Description       string                      `json:"description"`
}

// =============================================================================
// CLASSIFIER
// =============================================================================

// ClassifyVariances turns the matcher's output into the variance_detail
// table. Iteration follows charge/transaction input order so identical
// inputs yield identical output.
func ClassifyVariances(result *MatchResult, cfg Config) []VarianceRecord {
	var variances []VarianceRecord

	txByID := make(map[canonical.ARTransactionID]canonical.ARTransaction, len(result.Transactions))
	for _, tx := range result.Transactions {
		txByID[tx.ID] = tx
	}

	// Tertiary-matched pairs: date mismatch, or reversed billing when the
	// transaction itself was undone.
	for _, charge := range result.Charges {
		if result.ChargeTier[charge.ID] != TierTertiary {
			continue
		}
		for _, txID := range result.ChargeTxs[charge.ID] {
			variances = append(variances, classifyTertiaryPair(charge, txByID[txID]))
		}
	}

	// Unmatched scheduled charges.
	for _, charge := range result.UnmatchedCharges() {
		variances = append(variances, classifyUnmatchedCharge(charge, cfg))
	}

	// Unmatched transactions.
	for _, tx := range result.UnmatchedTransactions() {
		if cfg.ExcludedCodes.Contains(tx.ARCodeID) {
			// Expected API-driven billing; not a variance.
			continue
		}
		variances = append(variances, classifyUnmatchedTransaction(tx, cfg))
	}

	return variances
}

func classifyTertiaryPair(charge canonical.ScheduledCharge, tx canonical.ARTransaction) VarianceRecord {
	rec := VarianceRecord{
		ScheduledChargeID: charge.ID,
		TransactionID:     tx.ID,
		LeaseIntervalID:   charge.LeaseIntervalID,
		ARCodeID:          charge.ARCodeID,
		ARCodeName:        charge.ARCodeName,
		ExpectedAmount:    charge.ExpectedAmount,
		ActualAmount:      tx.ActualAmount,
		PostDate:          tx.PostDate,
		PeriodStart:       charge.PeriodStart,
		PeriodEnd:         charge.PeriodEnd,
		IsDeleted:         tx.IsDeleted,
		IsReversal:        tx.IsReversal,
	}

	if tx.IsDeleted || tx.IsReversal {
		kind := "Reversed"
		if tx.IsDeleted {
			kind = "Deleted"
		}
		rec.Type = VarianceReversedBilling
		rec.Severity = SeverityInfo
		rec.Variance = decimal.Zero
		rec.Description = fmt.Sprintf(
			"%s transaction: %s - Originally billed but subsequently reversed/deleted",
			kind, charge.ARCodeName)
		return rec
	}

	rec.Type = VarianceDateMismatch
	rec.Severity = SeverityMedium
	rec.Variance = tx.ActualAmount.Sub(charge.ExpectedAmount)
	rec.Description = fmt.Sprintf("Date mismatch: %s - %s",
		charge.ARCodeName, timingDescription(charge, tx.PostDate))
	return rec
}

// timingDescription says whether the billing landed early, late, or just on
// the wrong date relative to the scheduled period.
func timingDescription(charge canonical.ScheduledCharge, postDate canonical.Date) string {
	if postDate.IsZero() || charge.PeriodStart.IsZero() {
		return "date information incomplete"
	}
	if postDate.Before(charge.PeriodStart) {
		return fmt.Sprintf("billed EARLY (%s before %s)", postDate, charge.PeriodStart)
	}
	if !charge.PeriodEnd.IsZero() && postDate.After(charge.PeriodEnd) {
		return fmt.Sprintf("billed LATE (%s after %s)", postDate, charge.PeriodEnd)
	}
	return fmt.Sprintf("date mismatch (%s vs expected %s)", postDate, charge.PeriodStart)
}

func classifyUnmatchedCharge(charge canonical.ScheduledCharge, cfg Config) VarianceRecord {
	rec := VarianceRecord{
		ScheduledChargeID: charge.ID,
		LeaseIntervalID:   charge.LeaseIntervalID,
		ARCodeID:          charge.ARCodeID,
		ARCodeName:        charge.ARCodeName,
		ExpectedAmount:    charge.ExpectedAmount,
		ActualAmount:      decimal.Zero,
		Variance:          charge.ExpectedAmount.Neg(),
		PeriodStart:       charge.PeriodStart,
		PeriodEnd:         charge.PeriodEnd,
	}

	if cfg.ExcludedCodes.Contains(charge.ARCodeID) {
		rec.Type = VarianceTimedOrExternal
		rec.Severity = SeverityMedium
		rec.Description = fmt.Sprintf("Timed/External charge should not be scheduled: %s - $%s",
			charge.ARCodeName, charge.ExpectedAmount.StringFixed(2))
		return rec
	}

	rec.Type = VarianceMissingBillings
	rec.Severity = SeverityHigh
	rec.Description = fmt.Sprintf("Scheduled charge not billed: %s - $%s",
		charge.ARCodeName, charge.ExpectedAmount.StringFixed(2))
	return rec
}

func classifyUnmatchedTransaction(tx canonical.ARTransaction, cfg Config) VarianceRecord {
	rec := VarianceRecord{
		TransactionID:   tx.ID,
		LeaseIntervalID: tx.LeaseIntervalID,
		ARCodeID:        tx.ARCodeID,
		ARCodeName:      tx.ARCodeName,
		ExpectedAmount:  decimal.Zero,
		ActualAmount:    tx.ActualAmount,
		Variance:        tx.ActualAmount,
		PostDate:        tx.PostDate,
		IsDeleted:       tx.IsDeleted,
		IsReversal:      tx.IsReversal,
	}

	if isEventDriven(tx.ARCodeName, cfg.EventDrivenVocabulary) {
		rec.Type = VarianceEventDriven
		rec.Severity = SeverityInfo
		rec.Description = fmt.Sprintf("Event-driven AR transaction: %s - $%s",
			tx.ARCodeName, tx.ActualAmount.StringFixed(2))
		return rec
	}

	rec.Type = VarianceExtraBillings
	rec.Severity = SeverityMedium
	rec.Description = fmt.Sprintf("Unexpected AR transaction: %s - $%s",
		tx.ARCodeName, tx.ActualAmount.StringFixed(2))
	return rec
}

// isEventDriven checks the charge-code name against the vocabulary,
// case-insensitive substring.
func isEventDriven(codeName string, vocabulary []string) bool {
	upper := strings.ToUpper(codeName)
	for _, token := range vocabulary {
		if strings.Contains(upper, strings.ToUpper(token)) {
			return true
		}
	}
	return false
}
