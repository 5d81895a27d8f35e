/*
Package factory provides JSON to Go audit configuration conversion.

PURPOSE:
  Converts JSON audit profiles into audit.Config plus a findings rule
  registry. This enables audit tuning without code changes - analysts can
  adjust tolerances, excluded codes, and severity mappings in JSON, and
  the factory creates the proper Go structs.

WHY JSON?
  - Non-developers can adjust audit behavior
  - Easy integration with admin UI
  - Version control for audit profiles
  - Database storage of profile configs

JSON SCHEMA:
  {
    "id": "standard-lease-audit",
    "name": "Standard Lease Audit",
    "amount_tolerance": 0.01,
    "as_of_month": "2024-06-01",
    "excluded_codes": [99, 150],
    "event_driven_vocabulary": ["PYMT", "LATEFEE"],
    "severity_overrides": {
      "SCHEDULED_NOT_BILLED": "high",
      "AMOUNT_MISMATCH": "medium"
    }
  }

KEY FEATURES:
  - Validates JSON structure
  - Sets sensible defaults (penny tolerance, current month, stock vocabulary)
  - Builds the findings registry with the bucket exception rule wired in
  - Round-trips back to JSON for storage

USAGE:
  f := factory.NewConfigFactory()

  cfg, registry, err := f.ParseConfig(jsonString)
  if err != nil { ... }

  engine := audit.NewEngine(cfg)
  out, err := engine.Run(input)
  results := registry.EvaluateAll(&findings.Context{...})

SEE ALSO:
  - audit/config.go: Config type definition
  - findings/bucketrule.go: The rule the registry ships with
*/
package factory

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/lease-audit/audit"
	"github.com/warp/lease-audit/canonical"
	"github.com/warp/lease-audit/findings"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// ConfigJSON is the JSON representation of an audit profile.
type ConfigJSON struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// AmountTolerance is the absolute variance, in currency units, still
	// considered matched. Omitted means one cent.
	AmountTolerance *float64 `json:"amount_tolerance,omitempty"`

	// AsOfMonth caps month expansion, "YYYY-MM-DD" (day ignored). Omitted
	// means the current calendar month.
	AsOfMonth string `json:"as_of_month,omitempty"`

	// ExcludedCodes are charge codes dropped from bucket reconciliation.
	ExcludedCodes []int64 `json:"excluded_codes,omitempty"`

	// EventDrivenVocabulary overrides the stock code-name keyword list.
	EventDrivenVocabulary []string `json:"event_driven_vocabulary,omitempty"`

	// SeverityOverrides maps bucket statuses to finding severities.
	SeverityOverrides map[string]string `json:"severity_overrides,omitempty"`
}

// =============================================================================
// CONFIG FACTORY
// =============================================================================

// ConfigFactory converts JSON audit profiles to Go structs.
type ConfigFactory struct{}

func NewConfigFactory() *ConfigFactory {
	return &ConfigFactory{}
}

// ParseConfig parses a JSON string into an audit config and a rule registry.
func (f *ConfigFactory) ParseConfig(jsonStr string) (audit.Config, *findings.Registry, error) {
	var cj ConfigJSON
	if err := json.Unmarshal([]byte(jsonStr), &cj); err != nil {
		return audit.Config{}, nil, fmt.Errorf("failed to parse audit config JSON: %w", err)
	}
	return f.FromJSON(cj)
}

// FromJSON converts ConfigJSON to an audit config and a rule registry.
func (f *ConfigFactory) FromJSON(cj ConfigJSON) (audit.Config, *findings.Registry, error) {
	cfg := audit.DefaultConfig()

	if cj.AmountTolerance != nil {
		if *cj.AmountTolerance < 0 {
			return audit.Config{}, nil, fmt.Errorf("amount_tolerance must not be negative, got %v", *cj.AmountTolerance)
		}
		cfg.AmountTolerance = decimal.NewFromFloat(*cj.AmountTolerance)
	}

	if cj.AsOfMonth != "" {
		t, err := time.Parse("2006-01-02", cj.AsOfMonth)
		if err != nil {
			return audit.Config{}, nil, fmt.Errorf("invalid as_of_month %q: %w", cj.AsOfMonth, err)
		}
		cfg.AsOf = canonical.NewMonth(t.Year(), t.Month())
	}

	if len(cj.ExcludedCodes) > 0 {
		ids := make([]canonical.ARCodeID, len(cj.ExcludedCodes))
		for i, c := range cj.ExcludedCodes {
			ids[i] = canonical.ARCodeID(c)
		}
		cfg.ExcludedCodes = canonical.NewCodeSet(ids...)
	}

	if len(cj.EventDrivenVocabulary) > 0 {
		cfg.EventDrivenVocabulary = append([]string(nil), cj.EventDrivenVocabulary...)
	}

	severities, err := parseSeverityOverrides(cj.SeverityOverrides)
	if err != nil {
		return audit.Config{}, nil, err
	}

	registry := findings.NewRegistry(findings.NewBucketExceptionRule(severities))
	return cfg, registry, nil
}

// ToJSON converts a config back to its JSON profile form.
func (f *ConfigFactory) ToJSON(id, name string, cfg audit.Config) ConfigJSON {
	tol, _ := cfg.AmountTolerance.Float64()
	cj := ConfigJSON{
		ID:              id,
		Name:            name,
		AmountTolerance: &tol,
	}
	if !cfg.AsOf.IsZero() {
		cj.AsOfMonth = cfg.AsOf.String()
	}
	for code := range cfg.ExcludedCodes {
		cj.ExcludedCodes = append(cj.ExcludedCodes, int64(code))
	}
	sort.Slice(cj.ExcludedCodes, func(i, j int) bool { return cj.ExcludedCodes[i] < cj.ExcludedCodes[j] })
	cj.EventDrivenVocabulary = append([]string(nil), cfg.EventDrivenVocabulary...)
	return cj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseSeverityOverrides(overrides map[string]string) (findings.SeverityMap, error) {
	severities := findings.DefaultSeverityMap()
	for status, sev := range overrides {
		switch sev {
		case "high", "medium", "info":
		default:
			return nil, fmt.Errorf("unknown severity %q for status %q (want high, medium, or info)", sev, status)
		}
		switch audit.BucketStatus(status) {
		case audit.StatusMatched, audit.StatusScheduledNotBilled,
			audit.StatusBilledNotScheduled, audit.StatusAmountMismatch:
			severities[audit.BucketStatus(status)] = sev
		default:
			return nil, fmt.Errorf("unknown bucket status %q in severity_overrides", status)
		}
	}
	return severities, nil
}

// =============================================================================
// PRESET PROFILES
// =============================================================================

// StandardProfileJSON returns the stock audit profile with the given
// tolerance and excluded codes.
func StandardProfileJSON(id, name string, tolerance float64, excludedCodes ...int64) string {
	cj := ConfigJSON{
		ID:              id,
		Name:            name,
		AmountTolerance: &tolerance,
		ExcludedCodes:   excludedCodes,
	}
	b, _ := json.Marshal(cj)
	return string(b)
}
