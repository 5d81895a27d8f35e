/*
reconcile.go - Aggregate bucket-level reconciliation

PURPOSE:
  Compares what should have been billed against what was billed at the
  bucket grain: (property, lease interval, charge code, audit month).
  This is the audit-dashboard summary path; per-transaction forensics are
  the detail matcher's job (match.go).

ALGORITHM:
  1. Group-sum expected amounts by bucket key
  2. Group-sum actual amounts by bucket key
  3. Full outer join: a bucket present on only one side still appears,
     with the missing side defaulting to zero
  4. variance = actual_total - expected_total
  5. Classify status, first match wins:
       |variance| <= tolerance                  -> MATCHED
       expected != 0 and actual == 0            -> SCHEDULED_NOT_BILLED
       expected == 0 and actual != 0            -> BILLED_NOT_SCHEDULED
       otherwise                                -> AMOUNT_MISMATCH

  Externally/API-posted codes must be filtered from the actual side before
  this runs; the engine does that (engine.go).

DETERMINISM:
  Output is sorted by bucket key, so identical inputs produce byte-identical
  result tables regardless of map iteration order.

SEE ALSO:
  - findings/bucketrule.go: turns non-matched buckets into findings
*/
package audit

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/warp/lease-audit/canonical"
)

// =============================================================================
// BUCKET STATUS
// =============================================================================

type BucketStatus string

const (
	StatusMatched            BucketStatus = "MATCHED"
	StatusScheduledNotBilled BucketStatus = "SCHEDULED_NOT_BILLED"
	StatusBilledNotScheduled BucketStatus = "BILLED_NOT_SCHEDULED"
	StatusAmountMismatch     BucketStatus = "AMOUNT_MISMATCH"
)

// MatchRuleARScheduled tags every bucket result with the rule that produced
// it. A single rule today; the tag keeps result rows self-describing once
// more rules exist.
const MatchRuleARScheduled = "AR_SCHEDULED_MATCH"

// =============================================================================
// BUCKET RESULT
// =============================================================================

// BucketResult is one row of aggregated comparison. Created fresh each run,
// never mutated after creation.
type BucketResult struct {
	Key           canonical.BucketKey `json:"key"`
	ExpectedTotal decimal.Decimal     `json:"expected_total"`
	ActualTotal   decimal.Decimal     `json:"actual_total"`
	Variance      decimal.Decimal     `json:"variance"`
	Status        BucketStatus        `json:"status"`
	MatchRule     string              `json:"match_rule"`
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// ReconcileBuckets aggregates both sides by bucket key and classifies every
// bucket present in either input.
func ReconcileBuckets(expected []canonical.ExpectedDetail, actual []canonical.ARTransaction, cfg Config) []BucketResult {
	expectedTotals := make(map[canonical.BucketKey]decimal.Decimal)
	for _, row := range expected {
		expectedTotals[row.Key] = expectedTotals[row.Key].Add(row.ExpectedAmount)
	}

	actualTotals := make(map[canonical.BucketKey]decimal.Decimal)
	for _, tx := range actual {
		key := canonical.BucketKey{
			PropertyID:      tx.PropertyID,
			LeaseIntervalID: tx.LeaseIntervalID,
			ARCodeID:        tx.ARCodeID,
			AuditMonth:      tx.AuditMonth(),
		}
		actualTotals[key] = actualTotals[key].Add(tx.ActualAmount)
	}

	// Union of keys from both sides (full outer join).
	seen := make(map[canonical.BucketKey]bool, len(expectedTotals)+len(actualTotals))
	keys := make([]canonical.BucketKey, 0, len(expectedTotals)+len(actualTotals))
	for k := range expectedTotals {
		seen[k] = true
		keys = append(keys, k)
	}
	for k := range actualTotals {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	results := make([]BucketResult, 0, len(keys))
	for _, k := range keys {
		expectedTotal := expectedTotals[k]
		actualTotal := actualTotals[k]
		variance := actualTotal.Sub(expectedTotal)

		results = append(results, BucketResult{
			Key:           k,
			ExpectedTotal: expectedTotal,
			ActualTotal:   actualTotal,
			Variance:      variance,
			Status:        classifyStatus(expectedTotal, actualTotal, variance, cfg),
			MatchRule:     MatchRuleARScheduled,
		})
	}
	return results
}

// classifyStatus applies the status rules in priority order; first match wins.
func classifyStatus(expected, actual, variance decimal.Decimal, cfg Config) BucketStatus {
	if variance.Abs().LessThanOrEqual(cfg.AmountTolerance) {
		return StatusMatched
	}
	if !expected.IsZero() && actual.IsZero() {
		return StatusScheduledNotBilled
	}
	if expected.IsZero() && !actual.IsZero() {
		return StatusBilledNotScheduled
	}
	return StatusAmountMismatch
}
