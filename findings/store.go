/*
store.go - Finding persistence contract

PURPOSE:
  Defines how generated findings are persisted per run, independent of the
  run store in audit/. Backends implement both interfaces (see
  audit/store and store/sqlite).
*/
package findings

import (
	"context"
	"errors"
)

// ErrNoFindings is returned when no findings exist for a run id.
var ErrNoFindings = errors.New("no findings recorded for run")

// Store persists findings keyed by run id.
//
// SaveFindings replaces any previously saved set for the run id; a rerun
// regenerates the full set.
type Store interface {
	SaveFindings(ctx context.Context, runID string, findings []Finding) error
	GetFindings(ctx context.Context, runID string) ([]Finding, error)
}
