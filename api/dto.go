/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Runs:
    CreateRunRequest, CreateRawRunRequest, RunResponse, RunSummaryDTO

  Scenarios:
    ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/config.go: ConfigJSON type
*/
package api

import (
	"github.com/warp/lease-audit/audit"
	"github.com/warp/lease-audit/canonical"
	"github.com/warp/lease-audit/factory"
	"github.com/warp/lease-audit/findings"
	"github.com/warp/lease-audit/mapping"
)

// =============================================================================
// RUN REQUEST/RESPONSE TYPES
// =============================================================================

// CreateRunRequest is the request to reconcile canonical input tables.
// Config is optional; omitted fields fall back to the server defaults.
type CreateRunRequest struct {
	ScheduledCharges []canonical.ScheduledCharge `json:"scheduled_charges"`
	Transactions     []canonical.ARTransaction   `json:"actual_transactions"`
	Config           *factory.ConfigJSON         `json:"config,omitempty"`
}

// CreateRawRunRequest is the request to reconcile raw source tables. Rows
// carry the source column names; the mapping layer normalizes them first.
type CreateRawRunRequest struct {
	ScheduledCharges []mapping.Row       `json:"scheduled_charges"`
	Transactions     []mapping.Row       `json:"actual_transactions"`
	Config           *factory.ConfigJSON `json:"config,omitempty"`
}

// RunResponse is the summary returned after a run completes. Full result
// tables are fetched separately by run id.
type RunResponse struct {
	RunID        string           `json:"run_id"`
	CreatedAt    string           `json:"created_at"`
	AsOf         canonical.Month  `json:"as_of_month"`
	Stats        audit.MatchStats `json:"stats"`
	BucketCount  int              `json:"bucket_count"`
	FindingCount int              `json:"finding_count"`
	KPIs         findings.KPIs    `json:"kpis"`
}

// RunSummaryDTO is the listing view of a stored run.
type RunSummaryDTO struct {
	RunID         string          `json:"run_id"`
	CreatedAt     string          `json:"created_at"`
	AsOf          canonical.Month `json:"as_of_month"`
	BucketCount   int             `json:"bucket_count"`
	VarianceCount int             `json:"variance_count"`
}

// =============================================================================
// SCENARIO TYPES
// =============================================================================

// ScenarioDTO describes a loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// LoadScenarioRequest selects a scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
