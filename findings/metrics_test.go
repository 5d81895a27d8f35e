package findings_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/warp/lease-audit/audit"
	"github.com/warp/lease-audit/findings"
)

// =============================================================================
// KPI TESTS
// =============================================================================

func TestCalculateKPIs_MixedRun(t *testing.T) {
	// GIVEN: Three buckets (two matched) and the findings for the exception
	// WHEN: Calculating KPIs
	// THEN: Counts, totals, match rate, and severity breakdown all line up

	buckets := []audit.BucketResult{
		bucket(10, jan2024(), "1500", "1500", audit.StatusMatched),
		bucket(20, jan2024(), "250", "250", audit.StatusMatched),
		bucket(30, jan2024(), "90", "0", audit.StatusScheduledNotBilled),
	}
	fnds := findings.NewBucketExceptionRule(nil).Evaluate(&findings.Context{
		RunID:   "run-1",
		Buckets: buckets,
	})

	k := findings.CalculateKPIs(buckets, fnds)

	assert.Equal(t, 3, k.TotalBuckets)
	assert.Equal(t, 2, k.MatchedBuckets)
	assert.Equal(t, 1, k.ExceptionBuckets)
	assert.True(t, k.MatchRate.Equal(decimal.RequireFromString("0.6667")),
		"expected match rate 0.6667, got %s", k.MatchRate)

	assert.True(t, k.TotalExpected.Equal(decimal.RequireFromString("1840")))
	assert.True(t, k.TotalActual.Equal(decimal.RequireFromString("1750")))
	assert.True(t, k.TotalVariance.Equal(decimal.RequireFromString("-90")))

	assert.Equal(t, 1, k.TotalFindings)
	assert.Equal(t, map[string]int{"high": 1}, k.FindingsBySeverity)
	assert.True(t, k.TotalImpact.Equal(decimal.RequireFromString("90")))
}

func TestCalculateKPIs_EmptyRun(t *testing.T) {
	// GIVEN: No buckets and no findings
	// WHEN: Calculating KPIs
	// THEN: All zeros; the match rate does not divide by zero

	k := findings.CalculateKPIs(nil, nil)

	assert.Equal(t, 0, k.TotalBuckets)
	assert.True(t, k.MatchRate.IsZero())
	assert.True(t, k.TotalVariance.IsZero())
	assert.Empty(t, k.FindingsBySeverity)
}

func TestCalculateKPIs_FullyMatchedRunScoresOne(t *testing.T) {
	// GIVEN: Only matched buckets
	// WHEN: Calculating KPIs
	// THEN: Match rate is exactly 1

	buckets := []audit.BucketResult{
		bucket(10, jan2024(), "1500", "1500", audit.StatusMatched),
	}

	k := findings.CalculateKPIs(buckets, nil)

	assert.True(t, k.MatchRate.Equal(decimal.NewFromInt(1)),
		"expected match rate 1, got %s", k.MatchRate)
	assert.Equal(t, 0, k.ExceptionBuckets)
}
