/*
config.go - Reconciliation configuration

PURPOSE:
  Bundles the tunable knobs of one audit run: the amount tolerance, the
  as-of month that bounds expansion, the externally/API-posted charge-code
  exclusion set, and the event-driven vocabulary used to classify unmatched
  transactions.

DESIGN:
  Config is a plain value constructed by the caller (or the factory package
  from JSON). There is no process-wide config singleton: two concurrent runs
  with different tolerances never interact.

DEFAULTS:
  Tolerance:  $0.01 (absolute)
  AsOf:       the current calendar month
  Vocabulary: the known event-driven charge-code tokens (payments, fees,
              adjustments, credits, ...)

SEE ALSO:
  - factory/config.go: JSON construction
  - engine.go: how Config drives a run
*/
package audit

import (
	"github.com/shopspring/decimal"

	"github.com/warp/lease-audit/canonical"
)

// =============================================================================
// CONFIG
// =============================================================================

// Config holds the tolerances and classification sets for one run.
type Config struct {
	// AmountTolerance is the absolute dollar tolerance for "amounts match".
	AmountTolerance decimal.Decimal

	// AsOf bounds month expansion: months after AsOf cannot yet have billing
	// evidence and are never emitted. Fixing AsOf makes a run reproducible.
	AsOf canonical.Month

	// ExcludedCodes are charge codes posted by external/timed API processes.
	// They are removed from the bucket path and never produce extra-billing
	// variances.
	ExcludedCodes canonical.CodeSet

	// EventDrivenVocabulary is matched (case-insensitive, substring) against
	// charge-code names of unmatched transactions. Hits are classified as
	// event-driven rather than unexpected billings.
	EventDrivenVocabulary []string
}

// DefaultEventDrivenVocabulary lists the charge-code tokens that by nature
// have no corresponding schedule.
func DefaultEventDrivenVocabulary() []string {
	return []string{
		"PYMT", "ADJST", "LATEFEE", "DEPOSIT", "REFUND", "WAIVER",
		"PENALTY", "CREDIT", "WRITEOFF", "NSF", "REVERSAL", "TRANSFER",
		"REIMBURSE", "UTILITY", "DAMAGE",
	}
}

// DefaultConfig returns a Config with a one-cent tolerance, the current
// month as the as-of bound, and the default event vocabulary.
func DefaultConfig() Config {
	return Config{
		AmountTolerance:       decimal.New(1, -2),
		AsOf:                  canonical.CurrentMonth(),
		ExcludedCodes:         canonical.CodeSet{},
		EventDrivenVocabulary: DefaultEventDrivenVocabulary(),
	}
}

// WithinTolerance reports whether two amounts agree within the configured
// absolute tolerance.
func (c Config) WithinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(c.AmountTolerance)
}
