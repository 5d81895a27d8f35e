/*
Package findings provides the rule-driven finding generation layer.

PURPOSE:
  Converts bucket-level reconciliation exceptions into structured,
  presentation-ready findings. The engine (audit/) emits typed bucket and
  variance records; this package decides which of them a human should see,
  with what severity and what copy text.

KEY CONCEPTS:
  - Finding: One presentation-ready record derived from a non-matched bucket
  - Rule: A pluggable strategy evaluating a run context into findings
  - Registry: An explicit collection of rules, constructed by the caller
    and passed in - there is NO package-level default registry
  - Context: All of one run's canonical datasets, handed to every rule

ADDING A RULE:
  1. Implement the Rule interface
  2. Register it on the caller's Registry
  No other code changes needed.

SEE ALSO:
  - rules.go: Rule interface and Registry
  - bucketrule.go: the AR-vs-scheduled exception rule
  - metrics.go: KPIs over buckets and findings
*/
package findings

import (
	"github.com/shopspring/decimal"

	"github.com/warp/lease-audit/canonical"
)

// =============================================================================
// FINDING - Presentation-ready audit exception
// =============================================================================

// Evidence carries the originating record ids for one finding, so every
// number on a dashboard is traceable to source rows.
type Evidence struct {
	ScheduledChargeIDs []canonical.ScheduledChargeID `json:"scheduled_charge_ids"`
	TransactionIDs     []canonical.ARTransactionID   `json:"ar_transaction_ids"`
}

// Finding is one human-facing audit exception, derived 1:1 from a
// non-matched bucket result.
type Finding struct {
	FindingID       string                    `json:"finding_id"`
	RunID           string                    `json:"run_id"`
	PropertyID      canonical.PropertyID      `json:"property_id"`
	LeaseIntervalID canonical.LeaseIntervalID `json:"lease_interval_id"`
	ARCodeID        canonical.ARCodeID        `json:"ar_code_id"`
	AuditMonth      canonical.Month           `json:"audit_month"`
	Category        string                    `json:"category"`
	Severity        string                    `json:"severity"`
	Title           string                    `json:"title"`
	Description     string                    `json:"description"`
	ExpectedValue   decimal.Decimal           `json:"expected_value"`
	ActualValue     decimal.Decimal           `json:"actual_value"`
	Variance        decimal.Decimal           `json:"variance"`
	ImpactAmount    decimal.Decimal           `json:"impact_amount"`
	Evidence        Evidence                  `json:"evidence"`
}
