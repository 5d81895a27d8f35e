/*
engine.go - One-shot reconciliation engine

PURPOSE:
  Orchestrates one audit run over two canonical input tables: validate,
  filter, expand, reconcile at the bucket grain, match at the row grain,
  classify variances. The engine is single-threaded and purely functional
  over its inputs: no background tasks, no I/O, no shared mutable state
  across runs. Running it twice on identical inputs yields identical output.

PIPELINE:
  scheduled_charges --(active-set filter)--> month expansion --> expected
  actual_transactions --(posted, not deleted)--> actual detail
                                       |
           bucket path: excluded codes removed, group-sum, classify
           detail path: three-tier matching, variance classification

ERROR POLICY:
  Missing required canonical fields reject the run before any computation
  (fatal precondition). Charges without a usable period start are excluded
  row-by-row and counted in the stats (recoverable policy). No retries:
  failures are never transient.

SEE ALSO:
  - findings/: turns bucket exceptions into presentation findings
  - store.go: persistence of a run's outputs
*/
package audit

import (
	"github.com/warp/lease-audit/canonical"
)

// =============================================================================
// ENGINE
// =============================================================================

// Engine runs reconciliation with a fixed Config. Stateless between runs;
// safe to reuse.
type Engine struct {
	Config Config
}

func NewEngine(cfg Config) *Engine {
	return &Engine{Config: cfg}
}

// RunInput is one audit run's two canonical tables, produced by the external
// mapping layer (or mapping/ in this repo).
type RunInput struct {
	ScheduledCharges []canonical.ScheduledCharge `json:"scheduled_charges"`
	Transactions     []canonical.ARTransaction   `json:"actual_transactions"`
}

// RunOutput is everything one run produces. Deterministic given (input,
// config): identifiers and timestamps are the caller's concern.
type RunOutput struct {
	AsOf           canonical.Month            `json:"as_of_month"`
	ExpectedDetail []canonical.ExpectedDetail `json:"expected_detail"`
	ActualDetail   []canonical.ARTransaction  `json:"actual_detail"`
	Buckets        []BucketResult             `json:"bucket_results"`
	Variances      []VarianceRecord           `json:"variance_detail"`
	Stats          MatchStats                 `json:"stats"`
}

// Run executes one reconciliation pass. The only error condition is the
// fatal missing-fields precondition; everything else degrades to counted
// row-level exclusions.
func (e *Engine) Run(input RunInput) (*RunOutput, error) {
	if len(input.ScheduledCharges) == 0 && len(input.Transactions) == 0 {
		return nil, canonical.ErrEmptyInput
	}
	if err := canonical.ValidateScheduledCharges(input.ScheduledCharges); err != nil {
		return nil, err
	}
	if err := canonical.ValidateARTransactions(input.Transactions); err != nil {
		return nil, err
	}

	cfg := e.Config
	if cfg.AsOf.IsZero() {
		cfg.AsOf = canonical.CurrentMonth()
	}

	// Row filters. Dropped counts surface in the stats; the rows themselves
	// are a deliberate exclusion, not an error.
	activeCharges := canonical.ActiveScheduled(input.ScheduledCharges)
	postedTxs := canonical.PostedNotDeleted(input.Transactions)

	// Aggregate path: excluded codes are removed before bucketing.
	expected := ExpandScheduled(activeCharges, cfg.AsOf)
	bucketTxs := canonical.ExcludeCodes(postedTxs, cfg.ExcludedCodes)
	buckets := ReconcileBuckets(expected, bucketTxs, cfg)

	// Row-level path: excluded codes participate in matching (a linked
	// transaction still belongs to its charge); the classifier drops the
	// unmatched remainder of excluded codes.
	matcher := NewMatcher(cfg)
	matched := matcher.Match(activeCharges, postedTxs)
	variances := ClassifyVariances(matched, cfg)

	stats := matched.Stats
	stats.ScheduledFiltered = len(input.ScheduledCharges) - len(activeCharges)
	stats.ActualFiltered = len(input.Transactions) - len(postedTxs)
	stats.Variances = len(variances)

	return &RunOutput{
		AsOf:           cfg.AsOf,
		ExpectedDetail: expected,
		ActualDetail:   postedTxs,
		Buckets:        buckets,
		Variances:      variances,
		Stats:          stats,
	}, nil
}
