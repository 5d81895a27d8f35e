/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	reconciliation runs for testing and demos. Each scenario builds a small
	lease ledger that demonstrates a specific audit outcome.

AVAILABLE SCENARIOS:

	clean-quarter:   Rent billed exactly as scheduled, everything matches
	missed-billing:  A scheduled month never billed
	date-mismatch:   A one-time fee billed outside its scheduled period
	event-driven:    Payments and late fees with no schedule behind them

HOW SCENARIOS WORK:
 1. Reset the store (clear all data)
 2. Build canonical input tables with a fixed as-of month
 3. Execute the full run pipeline (engine, rules, persistence)

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "missed-billing"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create a builder function: xxxScenarioInput()
 3. Add case to LoadScenario handler

NOTE:

	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: runPipeline, ResetDatabase
*/
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/lease-audit/audit"
	"github.com/warp/lease-audit/canonical"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "clean-quarter",
		Name:        "Clean Quarter",
		Description: "Rent billed exactly as scheduled for three months, everything matches",
		Category:    "baseline",
	},
	{
		ID:          "missed-billing",
		Name:        "Missed Billing",
		Description: "A scheduled month never billed, surfacing as a SCHEDULED_NOT_BILLED bucket",
		Category:    "exceptions",
	},
	{
		ID:          "date-mismatch",
		Name:        "Date Mismatch",
		Description: "A one-time fee billed outside its scheduled period, caught by the tertiary match",
		Category:    "exceptions",
	},
	{
		ID:          "event-driven",
		Name:        "Event-Driven Activity",
		Description: "Payments and late fees with no schedule behind them, classified informational",
		Category:    "exceptions",
	},
}

// scenarioAsOf pins demo runs to a fixed month so reloading a scenario
// always produces the same results.
var scenarioAsOf = canonical.NewMonth(2024, time.March)

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}

	writeJSON(w, http.StatusOK, ScenarioDTO{
		ID:          h.currentScenario,
		Name:        h.currentScenario,
		Description: "Currently loaded scenario",
	})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()

	// Reset first
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset store", err)
		return
	}
	h.currentScenario = ""

	var input audit.RunInput
	switch req.ScenarioID {
	case "clean-quarter":
		input = cleanQuarterInput()
	case "missed-billing":
		input = missedBillingInput()
	case "date-mismatch":
		input = dateMismatchInput()
	case "event-driven":
		input = eventDrivenInput()
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario: "+req.ScenarioID, nil)
		return
	}

	cfg := h.defaultConfig
	cfg.AsOf = scenarioAsOf

	resp, err := h.runPipeline(ctx, input, cfg, h.defaultRegistry)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusCreated, resp)
}

// ResetDatabase clears all stored runs and findings.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset store", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// SCENARIO BUILDERS
// =============================================================================

func rentCharge(id canonical.ScheduledChargeID, lease canonical.LeaseIntervalID) canonical.ScheduledCharge {
	return canonical.ScheduledCharge{
		ID:                  id,
		PropertyID:          100,
		LeaseIntervalID:     lease,
		ARCodeID:            10,
		ARCodeName:          "Base Rent",
		ExpectedAmount:      decimal.NewFromInt(1500),
		PeriodStart:         canonical.NewDate(2024, time.January, 1),
		PeriodEnd:           canonical.NewDate(2024, time.March, 31),
		IsCachedToLease:     true,
		ActiveLeaseInterval: true,
	}
}

func rentTx(id canonical.ARTransactionID, lease canonical.LeaseIntervalID, link canonical.ScheduledChargeID, month time.Month) canonical.ARTransaction {
	return canonical.ARTransaction{
		ID:                  id,
		PropertyID:          100,
		LeaseIntervalID:     lease,
		ARCodeID:            10,
		ARCodeName:          "Base Rent",
		ActualAmount:        decimal.NewFromInt(1500),
		PostDate:            canonical.NewDate(2024, month, 1),
		IsPosted:            true,
		ScheduledChargeLink: link,
	}
}

func cleanQuarterInput() audit.RunInput {
	return audit.RunInput{
		ScheduledCharges: []canonical.ScheduledCharge{rentCharge(1001, 1)},
		Transactions: []canonical.ARTransaction{
			rentTx(5001, 1, 1001, time.January),
			rentTx(5002, 1, 1001, time.February),
			rentTx(5003, 1, 1001, time.March),
		},
	}
}

func missedBillingInput() audit.RunInput {
	return audit.RunInput{
		ScheduledCharges: []canonical.ScheduledCharge{rentCharge(1001, 1)},
		Transactions: []canonical.ARTransaction{
			rentTx(5001, 1, 1001, time.January),
			rentTx(5002, 1, 1001, time.February),
			// March never billed.
		},
	}
}

func dateMismatchInput() audit.RunInput {
	fee := canonical.ScheduledCharge{
		ID:                  2001,
		PropertyID:          100,
		LeaseIntervalID:     1,
		ARCodeID:            20,
		ARCodeName:          "Admin Fee",
		ExpectedAmount:      decimal.NewFromInt(250),
		PeriodStart:         canonical.NewDate(2024, time.January, 1),
		PeriodEnd:           canonical.NewDate(2024, time.January, 31),
		IsCachedToLease:     true,
		ActiveLeaseInterval: true,
	}
	late := canonical.ARTransaction{
		ID:              6001,
		PropertyID:      100,
		LeaseIntervalID: 1,
		ARCodeID:        20,
		ARCodeName:      "Admin Fee",
		ActualAmount:    decimal.NewFromInt(250),
		PostDate:        canonical.NewDate(2024, time.February, 15),
		IsPosted:        true,
	}
	return audit.RunInput{
		ScheduledCharges: []canonical.ScheduledCharge{fee},
		Transactions:     []canonical.ARTransaction{late},
	}
}

func eventDrivenInput() audit.RunInput {
	input := cleanQuarterInput()
	input.Transactions = append(input.Transactions,
		canonical.ARTransaction{
			ID:              7001,
			PropertyID:      100,
			LeaseIntervalID: 1,
			ARCodeID:        30,
			ARCodeName:      "PYMT - Online Payment",
			ActualAmount:    decimal.NewFromInt(-1500),
			PostDate:        canonical.NewDate(2024, time.January, 5),
			IsPosted:        true,
		},
		canonical.ARTransaction{
			ID:              7002,
			PropertyID:      100,
			LeaseIntervalID: 1,
			ARCodeID:        31,
			ARCodeName:      "LATEFEE",
			ActualAmount:    decimal.NewFromInt(75),
			PostDate:        canonical.NewDate(2024, time.February, 6),
			IsPosted:        true,
		},
	)
	return input
}
