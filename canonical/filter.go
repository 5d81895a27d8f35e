package canonical

// =============================================================================
// ROW FILTERS - Applied before reconciliation
// =============================================================================
// Filters never mutate their input; they return a fresh slice. Dropped counts
// are reported by the engine so callers can log what was excluded.

// ActiveScheduled keeps the charges the audit compares against: not an
// unselected quote, cached to the lease, and on an active lease interval.
func ActiveScheduled(charges []ScheduledCharge) []ScheduledCharge {
	out := make([]ScheduledCharge, 0, len(charges))
	for _, c := range charges {
		if c.IsUnselectedQuote {
			continue
		}
		if !c.IsCachedToLease {
			continue
		}
		if !c.ActiveLeaseInterval {
			continue
		}
		out = append(out, c)
	}
	return out
}

// PostedNotDeleted keeps transactions that actually hit the ledger.
// Reversals are kept: a reversed charge is still billing evidence and is
// classified downstream.
func PostedNotDeleted(txs []ARTransaction) []ARTransaction {
	out := make([]ARTransaction, 0, len(txs))
	for _, t := range txs {
		if !t.IsPosted || t.IsDeleted {
			continue
		}
		out = append(out, t)
	}
	return out
}

// ExcludeCodes drops transactions whose charge code is in the given set.
// Used for externally/API-posted codes, which are billed without a schedule
// by design and would pollute the bucket comparison.
func ExcludeCodes(txs []ARTransaction, codes CodeSet) []ARTransaction {
	if len(codes) == 0 {
		return append([]ARTransaction(nil), txs...)
	}
	out := make([]ARTransaction, 0, len(txs))
	for _, t := range txs {
		if codes.Contains(t.ARCodeID) {
			continue
		}
		out = append(out, t)
	}
	return out
}
