/*
store.go - Persistence interface for audit runs

PURPOSE:
  Defines the interface between the engine's outputs and storage. A run is
  written once, whole, after the engine finishes; results are never mutated
  afterward. Different implementations back this with SQLite or memory.

WRITE-ONCE CONTRACT:
  - SaveRun persists an entire run atomically
  - There is no update or partial-write operation
  - Re-running an audit creates a new run with a new id

IMPLEMENTATIONS:
  - store/sqlite: production persistence
  - audit/store:  in-memory, for tests and dev

SEE ALSO:
  - findings/store.go: the findings side of the same stores
*/
package audit

import (
	"context"
	"errors"
	"time"

	"github.com/warp/lease-audit/canonical"
)

// ErrRunNotFound is returned when a run id does not exist.
var ErrRunNotFound = errors.New("audit run not found")

// =============================================================================
// RUN - A persisted reconciliation result
// =============================================================================

// Run is one completed reconciliation with its identity and outputs.
type Run struct {
	ID        string          `json:"run_id"`
	CreatedAt time.Time       `json:"created_at"`
	AsOf      canonical.Month `json:"as_of_month"`

	Buckets   []BucketResult   `json:"bucket_results"`
	Variances []VarianceRecord `json:"variance_detail"`
	Stats     MatchStats       `json:"stats"`
}

// RunSummary is the listing view of a run: identity and counts, no tables.
type RunSummary struct {
	ID            string          `json:"run_id"`
	CreatedAt     time.Time       `json:"created_at"`
	AsOf          canonical.Month `json:"as_of_month"`
	BucketCount   int             `json:"bucket_count"`
	VarianceCount int             `json:"variance_count"`
}

// =============================================================================
// RUN STORE
// =============================================================================

// RunStore persists completed runs. Write-once: no update, no delete.
type RunStore interface {
	// SaveRun persists an entire run atomically.
	SaveRun(ctx context.Context, run Run) error

	// GetRun loads a run with all result tables.
	GetRun(ctx context.Context, id string) (Run, error)

	// ListRuns returns summaries of all runs, newest first.
	ListRuns(ctx context.Context) ([]RunSummary, error)
}
