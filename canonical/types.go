/*
Package canonical defines the canonical data model for the lease billing
audit engine.

PURPOSE:
  This package contains the normalized record types that the rest of the
  system operates on. The external mapping layer (see mapping/) converts
  raw source tables into these types; from that point on, no other package
  ever touches a raw source column name.

KEY CONCEPTS IN THIS FILE (types.go):
  - ScheduledCharge: An expected, contractually-defined billing obligation
  - ARTransaction: An actual billing event posted to the resident ledger
  - BucketKey: The (property, lease interval, charge code, audit month)
    reconciliation grain
  - Typed IDs: Strong typing prevents mixing property/lease/code identifiers

DESIGN PRINCIPLES:
  1. Immutability: Records are never mutated after normalization; the engine
     builds fresh output tables each run
  2. Precision: Uses decimal.Decimal for all monetary amounts
  3. Zero-value optionality: A zero Date means "missing"; a zero
     ScheduledChargeID link means "no link". No pointers for optional fields
  4. Auditability: Every output row carries the identifiers needed to trace
     it back to its source records

USAGE:
  charge := canonical.ScheduledCharge{
      ID:              101,
      LeaseIntervalID: 1,
      ARCodeID:        10,
      ExpectedAmount:  decimal.NewFromInt(1200),
      PeriodStart:     canonical.NewDate(2024, time.January, 1),
  }

SEE ALSO:
  - date.go: Date and Month time points
  - filter.go: Row filters applied before reconciliation
  - validate.go: Required-field preconditions
*/
package canonical

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type PropertyID int64
type LeaseIntervalID int64
type ARCodeID int64
type ScheduledChargeID int64
type ARTransactionID int64

// =============================================================================
// SCHEDULED CHARGE - Expected billing obligation with a date range
// =============================================================================

// ScheduledCharge is one expected obligation from the lease file.
//
// PeriodStart is required; a zero PeriodStart excludes the charge from month
// expansion (the record contributes no expected rows, by policy, not error).
// A zero PeriodEnd means the charge is open-ended / one-time.
type ScheduledCharge struct {
	ID              ScheduledChargeID `json:"scheduled_charge_id"`
	PropertyID      PropertyID        `json:"property_id"`
	LeaseIntervalID LeaseIntervalID   `json:"lease_interval_id"`
	ARCodeID        ARCodeID          `json:"ar_code_id"`
	ARCodeName      string            `json:"ar_code_name,omitempty"`
	ExpectedAmount  decimal.Decimal   `json:"expected_amount"`
	PeriodStart     Date              `json:"period_start"`
	PeriodEnd       Date              `json:"period_end"`

	// Filter flags set by the mapping layer. The active-set filter keeps a
	// charge only when it is not an unselected quote, is cached to the lease,
	// and belongs to an active lease interval.
	IsUnselectedQuote   bool `json:"is_unselected_quote,omitempty"`
	IsCachedToLease     bool `json:"is_cached_to_lease,omitempty"`
	ActiveLeaseInterval bool `json:"active_lease_interval,omitempty"`
}

// =============================================================================
// AR TRANSACTION - Actual billing event from the resident ledger
// =============================================================================

// ARTransaction is one posted billing event.
//
// ScheduledChargeLink is the optional foreign key back to the scheduled
// charge that generated the transaction; zero means no link (pre-link data).
type ARTransaction struct {
	ID                  ARTransactionID   `json:"transaction_id"`
	PropertyID          PropertyID        `json:"property_id"`
	LeaseIntervalID     LeaseIntervalID   `json:"lease_interval_id"`
	ARCodeID            ARCodeID          `json:"ar_code_id"`
	ARCodeName          string            `json:"ar_code_name,omitempty"`
	ActualAmount        decimal.Decimal   `json:"actual_amount"`
	PostDate            Date              `json:"post_date"`
	PostMonth           Month             `json:"post_month"`
	IsPosted            bool              `json:"is_posted"`
	IsDeleted           bool              `json:"is_deleted"`
	IsReversal          bool              `json:"is_reversal"`
	ScheduledChargeLink ScheduledChargeID `json:"scheduled_charge_link,omitempty"`
}

// AuditMonth returns the month bucket the transaction falls into: the post
// month when the source supplied one, otherwise the month of the post date.
func (t ARTransaction) AuditMonth() Month {
	if !t.PostMonth.IsZero() {
		return t.PostMonth
	}
	return MonthOf(t.PostDate)
}

// =============================================================================
// BUCKET KEY - The reconciliation grain
// =============================================================================

// BucketKey uniquely identifies one row of aggregated comparison.
// AuditMonth is always normalized to the first calendar day of the month.
type BucketKey struct {
	PropertyID      PropertyID      `json:"property_id"`
	LeaseIntervalID LeaseIntervalID `json:"lease_interval_id"`
	ARCodeID        ARCodeID        `json:"ar_code_id"`
	AuditMonth      Month           `json:"audit_month"`
}

// Less orders bucket keys by (property, lease interval, code, month).
// Reconciliation output is sorted with this so identical inputs always
// produce identical output order.
func (k BucketKey) Less(other BucketKey) bool {
	if k.PropertyID != other.PropertyID {
		return k.PropertyID < other.PropertyID
	}
	if k.LeaseIntervalID != other.LeaseIntervalID {
		return k.LeaseIntervalID < other.LeaseIntervalID
	}
	if k.ARCodeID != other.ARCodeID {
		return k.ARCodeID < other.ARCodeID
	}
	return k.AuditMonth.Before(other.AuditMonth)
}

// =============================================================================
// EXPECTED DETAIL - A scheduled charge exploded across its covered months
// =============================================================================

// ExpectedDetail is one row per (scheduled charge, covered month).
type ExpectedDetail struct {
	ScheduledChargeID ScheduledChargeID `json:"scheduled_charge_id"`
	Key               BucketKey         `json:"key"`
	ExpectedAmount    decimal.Decimal   `json:"expected_amount"`
	PeriodStart       Date              `json:"period_start"`
	PeriodEnd         Date              `json:"period_end"`
}

// =============================================================================
// CHARGE CODE SETS
// =============================================================================

// CodeSet is a set of charge codes, used for the externally/API-posted
// exclusion set.
type CodeSet map[ARCodeID]struct{}

func NewCodeSet(ids ...ARCodeID) CodeSet {
	s := make(CodeSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s CodeSet) Contains(id ARCodeID) bool {
	_, ok := s[id]
	return ok
}
