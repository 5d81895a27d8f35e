/*
bucketrule.go - The AR-vs-scheduled bucket exception rule

PURPOSE:
  The v1 audit rule: every bucket whose status is not MATCHED becomes one
  finding. Severity mapping and copy text are injectable configuration,
  not engine logic - swap the SeverityMap to change how statuses rank
  without touching evaluation.
*/
package findings

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/warp/lease-audit/audit"
	"github.com/warp/lease-audit/canonical"
)

// =============================================================================
// SEVERITY MAPPING - Injectable status -> severity configuration
// =============================================================================

// SeverityMap assigns a presentation severity to each bucket status.
type SeverityMap map[audit.BucketStatus]string

// DefaultSeverityMap mirrors the default audit configuration.
func DefaultSeverityMap() SeverityMap {
	return SeverityMap{
		audit.StatusMatched:            "info",
		audit.StatusScheduledNotBilled: "high",
		audit.StatusBilledNotScheduled: "medium",
		audit.StatusAmountMismatch:     "high",
	}
}

// Severity returns the mapped severity, defaulting to medium for unknown
// statuses.
func (m SeverityMap) Severity(status audit.BucketStatus) string {
	if s, ok := m[status]; ok {
		return s
	}
	return "medium"
}

// =============================================================================
// BUCKET EXCEPTION RULE
// =============================================================================

// BucketExceptionRule produces one financial finding per non-matched bucket.
type BucketExceptionRule struct {
	Severities SeverityMap
}

// NewBucketExceptionRule builds the rule with the given severity mapping,
// falling back to the defaults when nil.
func NewBucketExceptionRule(severities SeverityMap) *BucketExceptionRule {
	if severities == nil {
		severities = DefaultSeverityMap()
	}
	return &BucketExceptionRule{Severities: severities}
}

func (r *BucketExceptionRule) RuleID() string   { return audit.MatchRuleARScheduled }
func (r *BucketExceptionRule) RuleName() string { return "AR vs Scheduled Charges Reconciliation" }

// Evaluate emits a finding for every bucket whose status is not MATCHED,
// in bucket order.
func (r *BucketExceptionRule) Evaluate(ctx *Context) []Finding {
	var out []Finding
	for _, bucket := range ctx.Buckets {
		if bucket.Status == audit.StatusMatched {
			continue
		}

		out = append(out, Finding{
			FindingID:       uuid.NewString(),
			RunID:           ctx.RunID,
			PropertyID:      bucket.Key.PropertyID,
			LeaseIntervalID: bucket.Key.LeaseIntervalID,
			ARCodeID:        bucket.Key.ARCodeID,
			AuditMonth:      bucket.Key.AuditMonth,
			Category:        "financial",
			Severity:        r.Severities.Severity(bucket.Status),
			Title:           titleFor(bucket.Status),
			Description:     describe(bucket),
			ExpectedValue:   bucket.ExpectedTotal,
			ActualValue:     bucket.ActualTotal,
			Variance:        bucket.Variance,
			ImpactAmount:    bucket.Variance.Abs(),
			Evidence:        gatherEvidence(bucket.Key, ctx),
		})
	}
	return out
}

func titleFor(status audit.BucketStatus) string {
	switch status {
	case audit.StatusScheduledNotBilled:
		return "Scheduled Charge Not Billed"
	case audit.StatusBilledNotScheduled:
		return "Billed Without Schedule"
	case audit.StatusAmountMismatch:
		return "Amount Mismatch"
	default:
		return "Reconciliation Exception"
	}
}

func describe(bucket audit.BucketResult) string {
	switch bucket.Status {
	case audit.StatusScheduledNotBilled:
		return fmt.Sprintf("Scheduled amount $%s was not billed.", bucket.ExpectedTotal.StringFixed(2))
	case audit.StatusBilledNotScheduled:
		return fmt.Sprintf("Amount $%s was billed without a schedule.", bucket.ActualTotal.StringFixed(2))
	case audit.StatusAmountMismatch:
		return fmt.Sprintf("Expected $%s, actual $%s, variance $%s.",
			bucket.ExpectedTotal.StringFixed(2), bucket.ActualTotal.StringFixed(2), bucket.Variance.StringFixed(2))
	default:
		return fmt.Sprintf("Reconciliation issue: %s", bucket.Status)
	}
}

// gatherEvidence collects the bucket's originating scheduled-charge and
// transaction ids from the detail tables.
func gatherEvidence(key canonical.BucketKey, ctx *Context) Evidence {
	ev := Evidence{
		ScheduledChargeIDs: []canonical.ScheduledChargeID{},
		TransactionIDs:     []canonical.ARTransactionID{},
	}
	for _, row := range ctx.ExpectedDetail {
		if row.Key == key {
			ev.ScheduledChargeIDs = append(ev.ScheduledChargeIDs, row.ScheduledChargeID)
		}
	}
	for _, tx := range ctx.ActualDetail {
		if tx.PropertyID == key.PropertyID &&
			tx.LeaseIntervalID == key.LeaseIntervalID &&
			tx.ARCodeID == key.ARCodeID &&
			tx.AuditMonth().Equal(key.AuditMonth) {
			ev.TransactionIDs = append(ev.TransactionIDs, tx.ID)
		}
	}
	return ev
}
