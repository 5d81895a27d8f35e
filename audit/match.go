/*
match.go - Three-tier detail matching of transactions to scheduled charges

PURPOSE:
  Resolves exactly which individual transaction corresponds to which
  individual scheduled charge, beyond the bucket-level aggregate. Runs three
  ordered passes over the unmatched remainder of both sides; a record
  matched in an earlier pass is excluded from all later passes.

TIERS (decreasing confidence):
  PRIMARY    Direct foreign key: the transaction carries a scheduled-charge
             link and that charge is in the active set. Unconditional. One
             charge may accumulate many transactions (partial payments).
  SECONDARY  Fuzzy: same (lease interval, charge code), post date inside the
             charge's [period_start, period_end] (open end contains
             everything from start onward), amount within tolerance.
  TERTIARY   Date mismatch: same (lease interval, charge code) but the post
             date is OUTSIDE the charge's date range. Amount-tolerance match
             preferred; failing that the first lease/code candidate is taken
             regardless of amount - a code+lease match beats no match.

TIE-BREAKS:
  First qualifying candidate in stable input order wins in the secondary and
  tertiary passes. There is no "closest amount" or "closest date"
  preference; this is locked behavior - any refactor that changes iteration
  order changes output. The tertiary pass walks (lease, code) groups in
  sorted key order, transactions in input order within each group.

STATE:
  The Matcher owns the map from scheduled-charge id to the ordered list of
  matched transaction ids. This map, not per-row columns, is the
  authoritative record of which transactions belong to which charge. It
  lives for one run and is never shared.

SEE ALSO:
  - variance.go: classifies the matcher's output
*/
package audit

import (
	"sort"

	"github.com/warp/lease-audit/canonical"
)

// =============================================================================
// MATCH TIERS
// =============================================================================

type MatchTier string

const (
	TierPrimary   MatchTier = "PRIMARY"
	TierSecondary MatchTier = "SECONDARY"
	TierTertiary  MatchTier = "TERTIARY_DATE_MISMATCH"
)

// =============================================================================
// MATCH RESULT
// =============================================================================

// MatchStats summarizes one matching run for caller-side logging.
type MatchStats struct {
	TotalScheduled     int `json:"total_scheduled"`
	TotalTransactions  int `json:"total_transactions"`
	PrimaryMatched     int `json:"primary_matched"`
	SecondaryMatched   int `json:"secondary_matched"`
	TertiaryMatched    int `json:"tertiary_matched"`
	UnmatchedScheduled int `json:"unmatched_scheduled"`
	UnmatchedActual    int `json:"unmatched_actual"`
	Variances          int `json:"variances"`

	// Rows dropped by row filters before matching (logged, never silent).
	ScheduledFiltered int `json:"scheduled_filtered"`
	ActualFiltered    int `json:"actual_filtered"`
}

// MatchResult carries the matcher's full state for classification.
// It is transient: discarded after the variance classifier runs.
type MatchResult struct {
	// Inputs in their original order; classification iterates these so
	// output order is reproducible.
	Charges      []canonical.ScheduledCharge
	Transactions []canonical.ARTransaction

	// Per-record tiers. Absence from the map means unmatched.
	ChargeTier map[canonical.ScheduledChargeID]MatchTier
	TxTier     map[canonical.ARTransactionID]MatchTier

	// Transaction -> the charge it was matched to.
	TxCharge map[canonical.ARTransactionID]canonical.ScheduledChargeID

	// Charge -> ordered list of matched transaction ids (one-to-many).
	// The authoritative match record.
	ChargeTxs map[canonical.ScheduledChargeID][]canonical.ARTransactionID

	Stats MatchStats
}

// UnmatchedCharges returns the charges no pass matched, in input order.
func (r *MatchResult) UnmatchedCharges() []canonical.ScheduledCharge {
	var out []canonical.ScheduledCharge
	for _, c := range r.Charges {
		if _, ok := r.ChargeTier[c.ID]; !ok {
			out = append(out, c)
		}
	}
	return out
}

// UnmatchedTransactions returns the transactions no pass matched, in input order.
func (r *MatchResult) UnmatchedTransactions() []canonical.ARTransaction {
	var out []canonical.ARTransaction
	for _, t := range r.Transactions {
		if _, ok := r.TxTier[t.ID]; !ok {
			out = append(out, t)
		}
	}
	return out
}

// =============================================================================
// MATCHER
// =============================================================================

// Matcher links transactions to scheduled charges. One Matcher serves one
// run; it owns all mutable matching state.
type Matcher struct {
	cfg Config
}

func NewMatcher(cfg Config) *Matcher {
	return &Matcher{cfg: cfg}
}

// Match runs the three passes in order and returns the full match state.
// Inputs must already be row-filtered (active scheduled set, posted and not
// deleted transactions).
func (m *Matcher) Match(charges []canonical.ScheduledCharge, txs []canonical.ARTransaction) *MatchResult {
	result := &MatchResult{
		Charges:      charges,
		Transactions: txs,
		ChargeTier:   make(map[canonical.ScheduledChargeID]MatchTier),
		TxTier:       make(map[canonical.ARTransactionID]MatchTier),
		TxCharge:     make(map[canonical.ARTransactionID]canonical.ScheduledChargeID),
		ChargeTxs:    make(map[canonical.ScheduledChargeID][]canonical.ARTransactionID),
	}
	result.Stats.TotalScheduled = len(charges)
	result.Stats.TotalTransactions = len(txs)

	m.matchPrimary(result)
	m.matchSecondary(result)
	m.matchTertiary(result)

	result.Stats.UnmatchedScheduled = len(charges) - len(result.ChargeTier)
	result.Stats.UnmatchedActual = len(txs) - len(result.TxTier)
	return result
}

// matchPrimary links transactions carrying a scheduled-charge foreign key to
// that charge, unconditionally, when the charge is in the active set.
func (m *Matcher) matchPrimary(r *MatchResult) {
	inActiveSet := make(map[canonical.ScheduledChargeID]bool, len(r.Charges))
	for _, c := range r.Charges {
		inActiveSet[c.ID] = true
	}

	for _, tx := range r.Transactions {
		if tx.ScheduledChargeLink == 0 || !inActiveSet[tx.ScheduledChargeLink] {
			continue
		}
		record(r, tx.ID, tx.ScheduledChargeLink, TierPrimary)
		r.Stats.PrimaryMatched++
	}
}

// matchSecondary fuzzy-matches the remaining transactions on lease interval,
// charge code, date containment, and amount tolerance. The candidate pool is
// the charges unmatched when the pass starts; a charge matched earlier in
// this same pass remains a candidate, so several transactions can land on
// one charge.
func (m *Matcher) matchSecondary(r *MatchResult) {
	candidates := unmatchedChargeIndexes(r)
	if len(candidates) == 0 {
		return
	}

	for _, tx := range r.Transactions {
		if _, done := r.TxTier[tx.ID]; done {
			continue
		}
		if tx.PostDate.IsZero() {
			continue
		}

		for _, ci := range candidates {
			c := r.Charges[ci]
			if c.LeaseIntervalID != tx.LeaseIntervalID || c.ARCodeID != tx.ARCodeID {
				continue
			}
			if !periodContains(c, tx.PostDate) {
				continue
			}
			if !m.cfg.WithinTolerance(c.ExpectedAmount, tx.ActualAmount) {
				continue
			}

			record(r, tx.ID, c.ID, TierSecondary)
			r.Stats.SecondaryMatched++
			break
		}
	}
}

// matchTertiary matches the remainder with the date constraint inverted:
// only candidates whose range does NOT contain the post date qualify (the
// date-compatible ones already had their chance in the secondary pass).
// Each charge is consumed by its first tertiary match.
func (m *Matcher) matchTertiary(r *MatchResult) {
	candidates := unmatchedChargeIndexes(r)
	if len(candidates) == 0 {
		return
	}

	// Walk (lease interval, charge code) groups in sorted key order,
	// transactions in input order within each group. Locked behavior.
	type groupKey struct {
		Lease canonical.LeaseIntervalID
		Code  canonical.ARCodeID
	}
	groups := make(map[groupKey][]canonical.ARTransaction)
	var groupKeys []groupKey
	for _, tx := range r.Transactions {
		if _, done := r.TxTier[tx.ID]; done {
			continue
		}
		k := groupKey{Lease: tx.LeaseIntervalID, Code: tx.ARCodeID}
		if _, ok := groups[k]; !ok {
			groupKeys = append(groupKeys, k)
		}
		groups[k] = append(groups[k], tx)
	}
	sort.Slice(groupKeys, func(i, j int) bool {
		if groupKeys[i].Lease != groupKeys[j].Lease {
			return groupKeys[i].Lease < groupKeys[j].Lease
		}
		return groupKeys[i].Code < groupKeys[j].Code
	})

	consumed := make(map[canonical.ScheduledChargeID]bool)

	for _, gk := range groupKeys {
		var pool []int
		for _, ci := range candidates {
			c := r.Charges[ci]
			if c.LeaseIntervalID == gk.Lease && c.ARCodeID == gk.Code {
				pool = append(pool, ci)
			}
		}
		if len(pool) == 0 {
			continue
		}

		for _, tx := range groups[gk] {
			var available []int
			for _, ci := range pool {
				if !consumed[r.Charges[ci].ID] {
					available = append(available, ci)
				}
			}
			if len(available) == 0 {
				break
			}

			var dateMismatched []int
			if tx.PostDate.IsZero() {
				// No post date to check against; every candidate is a
				// potential mismatch.
				dateMismatched = available
			} else {
				for _, ci := range available {
					if periodExcludes(r.Charges[ci], tx.PostDate) {
						dateMismatched = append(dateMismatched, ci)
					}
				}
			}
			if len(dateMismatched) == 0 {
				continue
			}

			// Amount match preferred; otherwise first candidate regardless
			// of amount.
			chosen := -1
			for _, ci := range dateMismatched {
				if m.cfg.WithinTolerance(r.Charges[ci].ExpectedAmount, tx.ActualAmount) {
					chosen = ci
					break
				}
			}
			if chosen < 0 {
				chosen = dateMismatched[0]
			}

			chargeID := r.Charges[chosen].ID
			record(r, tx.ID, chargeID, TierTertiary)
			consumed[chargeID] = true
			r.Stats.TertiaryMatched++
		}
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// record marks both sides matched at the given tier and appends the
// transaction to the charge's ordered match list.
func record(r *MatchResult, txID canonical.ARTransactionID, chargeID canonical.ScheduledChargeID, tier MatchTier) {
	r.TxTier[txID] = tier
	r.TxCharge[txID] = chargeID
	r.ChargeTier[chargeID] = tier
	r.ChargeTxs[chargeID] = append(r.ChargeTxs[chargeID], txID)
}

// unmatchedChargeIndexes snapshots the indexes of charges not yet matched,
// in input order. Pass N's candidate pool depends on pass N-1's exclusions.
func unmatchedChargeIndexes(r *MatchResult) []int {
	var out []int
	for i, c := range r.Charges {
		if _, ok := r.ChargeTier[c.ID]; !ok {
			out = append(out, i)
		}
	}
	return out
}

// periodContains reports whether the charge's period covers the date.
// An open period end contains everything from the start onward.
func periodContains(c canonical.ScheduledCharge, d canonical.Date) bool {
	if c.PeriodStart.IsZero() || c.PeriodStart.After(d) {
		return false
	}
	return c.PeriodEnd.IsZero() || !c.PeriodEnd.Before(d)
}

// periodExcludes reports whether the date falls strictly OUTSIDE the
// charge's period. This is not the negation of periodContains: a charge
// with no usable dates neither contains nor excludes.
func periodExcludes(c canonical.ScheduledCharge, d canonical.Date) bool {
	if !c.PeriodStart.IsZero() && c.PeriodStart.After(d) {
		return true
	}
	return !c.PeriodEnd.IsZero() && c.PeriodEnd.Before(d)
}
