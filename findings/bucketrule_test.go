package findings_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/lease-audit/audit"
	"github.com/warp/lease-audit/canonical"
	"github.com/warp/lease-audit/findings"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func bucketKey(code canonical.ARCodeID, m canonical.Month) canonical.BucketKey {
	return canonical.BucketKey{
		PropertyID:      100,
		LeaseIntervalID: 1,
		ARCodeID:        code,
		AuditMonth:      m,
	}
}

func bucket(code canonical.ARCodeID, m canonical.Month, expected, actual string, status audit.BucketStatus) audit.BucketResult {
	exp := decimal.RequireFromString(expected)
	act := decimal.RequireFromString(actual)
	return audit.BucketResult{
		Key:           bucketKey(code, m),
		ExpectedTotal: exp,
		ActualTotal:   act,
		Variance:      act.Sub(exp),
		Status:        status,
		MatchRule:     audit.MatchRuleARScheduled,
	}
}

func jan2024() canonical.Month { return canonical.NewMonth(2024, time.January) }

// =============================================================================
// BUCKET EXCEPTION RULE TESTS
// =============================================================================

func TestBucketExceptionRule_MatchedBucketsProduceNoFindings(t *testing.T) {
	// GIVEN: A run context where every bucket matched
	// WHEN: Evaluating the rule
	// THEN: No findings

	rule := findings.NewBucketExceptionRule(nil)
	out := rule.Evaluate(&findings.Context{
		RunID: "run-1",
		Buckets: []audit.BucketResult{
			bucket(10, jan2024(), "1500", "1500", audit.StatusMatched),
		},
	})

	assert.Empty(t, out)
}

func TestBucketExceptionRule_OneFindingPerExceptionBucket(t *testing.T) {
	// GIVEN: Three exception buckets of different statuses
	// WHEN: Evaluating the rule
	// THEN: One finding each, carrying the bucket's identity, default
	//       severity, and absolute variance as impact

	rule := findings.NewBucketExceptionRule(nil)
	out := rule.Evaluate(&findings.Context{
		RunID: "run-1",
		Buckets: []audit.BucketResult{
			bucket(10, jan2024(), "1500", "0", audit.StatusScheduledNotBilled),
			bucket(20, jan2024(), "0", "75", audit.StatusBilledNotScheduled),
			bucket(30, jan2024(), "250", "240", audit.StatusAmountMismatch),
		},
	})

	require.Len(t, out, 3)

	missed := out[0]
	assert.Equal(t, "run-1", missed.RunID)
	assert.Equal(t, "high", missed.Severity)
	assert.Equal(t, "Scheduled Charge Not Billed", missed.Title)
	assert.Equal(t, "financial", missed.Category)
	assert.True(t, missed.ImpactAmount.Equal(decimal.RequireFromString("1500")),
		"impact should be the absolute variance, got %s", missed.ImpactAmount)
	assert.NotEmpty(t, missed.FindingID)

	unscheduled := out[1]
	assert.Equal(t, "medium", unscheduled.Severity)
	assert.Equal(t, "Billed Without Schedule", unscheduled.Title)

	mismatch := out[2]
	assert.Equal(t, "high", mismatch.Severity)
	assert.Equal(t, "Amount Mismatch", mismatch.Title)
	assert.Contains(t, mismatch.Description, "Expected $250.00")
	assert.Contains(t, mismatch.Description, "variance $-10.00")
}

func TestBucketExceptionRule_SeverityOverrides(t *testing.T) {
	// GIVEN: A custom severity map downgrading missed billings
	// WHEN: Evaluating the rule
	// THEN: The override applies; unknown statuses keep their defaults

	custom := findings.DefaultSeverityMap()
	custom[audit.StatusScheduledNotBilled] = "medium"

	rule := findings.NewBucketExceptionRule(custom)
	out := rule.Evaluate(&findings.Context{
		RunID: "run-1",
		Buckets: []audit.BucketResult{
			bucket(10, jan2024(), "1500", "0", audit.StatusScheduledNotBilled),
		},
	})

	require.Len(t, out, 1)
	assert.Equal(t, "medium", out[0].Severity)
}

func TestBucketExceptionRule_EvidenceTracesSourceRows(t *testing.T) {
	// GIVEN: Detail rows behind an AMOUNT_MISMATCH bucket, plus unrelated
	//        rows in another month
	// WHEN: Evaluating the rule
	// THEN: The finding's evidence lists exactly the bucket's charge and
	//       transaction ids

	key := bucketKey(10, jan2024())
	ctx := &findings.Context{
		RunID: "run-1",
		ExpectedDetail: []canonical.ExpectedDetail{
			{ScheduledChargeID: 7, Key: key, ExpectedAmount: decimal.RequireFromString("250")},
			{ScheduledChargeID: 8, Key: bucketKey(10, canonical.NewMonth(2024, time.February)), ExpectedAmount: decimal.RequireFromString("250")},
		},
		ActualDetail: []canonical.ARTransaction{
			{ID: 100, PropertyID: 100, LeaseIntervalID: 1, ARCodeID: 10,
				PostDate: canonical.NewDate(2024, time.January, 5), IsPosted: true},
			{ID: 101, PropertyID: 100, LeaseIntervalID: 1, ARCodeID: 10,
				PostDate: canonical.NewDate(2024, time.February, 5), IsPosted: true},
		},
		Buckets: []audit.BucketResult{
			bucket(10, jan2024(), "250", "240", audit.StatusAmountMismatch),
		},
	}

	out := findings.NewBucketExceptionRule(nil).Evaluate(ctx)

	require.Len(t, out, 1)
	assert.Equal(t, []canonical.ScheduledChargeID{7}, out[0].Evidence.ScheduledChargeIDs)
	assert.Equal(t, []canonical.ARTransactionID{100}, out[0].Evidence.TransactionIDs)
}

// =============================================================================
// REGISTRY TESTS
// =============================================================================

func TestRegistry_EvaluatesInRegistrationOrder(t *testing.T) {
	// GIVEN: A registry with the bucket rule registered
	// WHEN: Evaluating all rules
	// THEN: Findings aggregate, and lookup by id returns the rule

	rule := findings.NewBucketExceptionRule(nil)
	reg := findings.NewRegistry(rule)

	out := reg.EvaluateAll(&findings.Context{
		RunID: "run-1",
		Buckets: []audit.BucketResult{
			bucket(10, jan2024(), "1500", "0", audit.StatusScheduledNotBilled),
		},
	})

	assert.Len(t, out, 1)
	assert.Same(t, rule, reg.Rule(audit.MatchRuleARScheduled))
	assert.Nil(t, reg.Rule("no-such-rule"))
}
