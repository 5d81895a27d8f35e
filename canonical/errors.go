/*
errors.go - Centralized error types for the canonical layer

PURPOSE:
  All precondition errors in one place. The engine rejects an entire run
  before any computation when required canonical fields are missing; the
  error names every missing field so one failure report is complete.

USAGE:
    if err := canonical.ValidateScheduledCharges(charges); err != nil {
        var missing *canonical.MissingFieldsError
        if errors.As(err, &missing) {
            log.Printf("rejected: %v", missing.Fields)
        }
    }
*/
package canonical

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrMissingFields is returned when required canonical fields are absent
	// from an input table. This is a fatal precondition: the run is rejected
	// before any computation.
	ErrMissingFields = errors.New("missing required canonical fields")

	// ErrEmptyInput is returned when an input table has no rows at all.
	ErrEmptyInput = errors.New("input table is empty")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// MissingFieldsError reports every missing required field of a table in one
// error, so the caller never has to iterate fix-resubmit cycles.
type MissingFieldsError struct {
	Table  string
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	fields := append([]string(nil), e.Fields...)
	sort.Strings(fields)
	return fmt.Sprintf("%s is missing required canonical fields: %s",
		e.Table, strings.Join(fields, ", "))
}

func (e *MissingFieldsError) Unwrap() error { return ErrMissingFields }
