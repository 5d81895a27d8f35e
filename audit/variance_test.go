package audit_test

import (
	"strings"
	"testing"
	"time"

	"github.com/warp/lease-audit/audit"
	"github.com/warp/lease-audit/canonical"
)

func classify(cfg audit.Config, charges []canonical.ScheduledCharge, txs []canonical.ARTransaction) []audit.VarianceRecord {
	result := audit.NewMatcher(cfg).Match(charges, txs)
	return audit.ClassifyVariances(result, cfg)
}

func soleVariance(t *testing.T, records []audit.VarianceRecord) audit.VarianceRecord {
	t.Helper()
	if len(records) != 1 {
		t.Fatalf("expected exactly 1 variance, got %d: %+v", len(records), records)
	}
	return records[0]
}

// =============================================================================
// TERTIARY PAIR CLASSIFICATION
// =============================================================================

func TestClassifyVariances_DateMismatchLate(t *testing.T) {
	// GIVEN: A tertiary-matched pair billed after the period end
	// WHEN: Classifying
	// THEN: DATE_MISMATCH at MEDIUM, described as billed LATE

	charge := activeCharge(1, date(2024, time.January, 1), date(2024, time.January, 31), "250")
	tx := postedTx(100, 10, "250", date(2024, time.February, 15))

	rec := soleVariance(t, classify(testConfig(),
		[]canonical.ScheduledCharge{charge}, []canonical.ARTransaction{tx}))

	if rec.Type != audit.VarianceDateMismatch {
		t.Fatalf("expected DATE_MISMATCH, got %q", rec.Type)
	}
	if rec.Severity != audit.SeverityMedium {
		t.Errorf("expected MEDIUM severity, got %q", rec.Severity)
	}
	if !strings.Contains(rec.Description, "billed LATE") {
		t.Errorf("expected LATE timing description, got %q", rec.Description)
	}
	if rec.ScheduledChargeID != 1 || rec.TransactionID != 100 {
		t.Errorf("expected both sides on the record, got charge=%d tx=%d",
			rec.ScheduledChargeID, rec.TransactionID)
	}
}

func TestClassifyVariances_DateMismatchEarly(t *testing.T) {
	// GIVEN: A tertiary-matched pair billed before the period start
	// WHEN: Classifying
	// THEN: Described as billed EARLY, variance = actual - expected

	charge := activeCharge(1, date(2024, time.February, 1), date(2024, time.February, 29), "250")
	tx := postedTx(100, 10, "240", date(2024, time.January, 20))

	rec := soleVariance(t, classify(testConfig(),
		[]canonical.ScheduledCharge{charge}, []canonical.ARTransaction{tx}))

	if rec.Type != audit.VarianceDateMismatch {
		t.Fatalf("expected DATE_MISMATCH, got %q", rec.Type)
	}
	if !strings.Contains(rec.Description, "billed EARLY") {
		t.Errorf("expected EARLY timing description, got %q", rec.Description)
	}
	if !rec.Variance.Equal(amount("-10")) {
		t.Errorf("expected variance -10, got %s", rec.Variance)
	}
}

func TestClassifyVariances_ReversedBillingOverridesDateMismatch(t *testing.T) {
	// GIVEN: A tertiary-matched pair whose transaction is a reversal
	// WHEN: Classifying
	// THEN: REVERSED_BILLING at INFO with zero variance; the wrong date is
	//       not evidence of a timing error on an undone billing

	charge := activeCharge(1, date(2024, time.January, 1), date(2024, time.January, 31), "250")
	tx := postedTx(100, 10, "250", date(2024, time.February, 15))
	tx.IsReversal = true

	rec := soleVariance(t, classify(testConfig(),
		[]canonical.ScheduledCharge{charge}, []canonical.ARTransaction{tx}))

	if rec.Type != audit.VarianceReversedBilling {
		t.Fatalf("expected REVERSED_BILLING, got %q", rec.Type)
	}
	if rec.Severity != audit.SeverityInfo {
		t.Errorf("expected INFO severity, got %q", rec.Severity)
	}
	if !rec.Variance.IsZero() {
		t.Errorf("expected zero variance, got %s", rec.Variance)
	}
	if !strings.HasPrefix(rec.Description, "Reversed transaction:") {
		t.Errorf("unexpected description %q", rec.Description)
	}
}

func TestClassifyVariances_DeletedBillingNamedDeleted(t *testing.T) {
	// GIVEN: A tertiary-matched pair whose transaction is deleted
	// WHEN: Classifying
	// THEN: Same REVERSED_BILLING type, but the description says Deleted

	charge := activeCharge(1, date(2024, time.January, 1), date(2024, time.January, 31), "250")
	tx := postedTx(100, 10, "250", date(2024, time.February, 15))
	tx.IsDeleted = true

	rec := soleVariance(t, classify(testConfig(),
		[]canonical.ScheduledCharge{charge}, []canonical.ARTransaction{tx}))

	if rec.Type != audit.VarianceReversedBilling {
		t.Fatalf("expected REVERSED_BILLING, got %q", rec.Type)
	}
	if !strings.HasPrefix(rec.Description, "Deleted transaction:") {
		t.Errorf("unexpected description %q", rec.Description)
	}
}

// =============================================================================
// UNMATCHED CHARGES
// =============================================================================

func TestClassifyVariances_MissingBillings(t *testing.T) {
	// GIVEN: A scheduled charge no transaction matched
	// WHEN: Classifying
	// THEN: MISSING_BILLINGS at HIGH, variance is the negated expectation

	charge := activeCharge(1, date(2024, time.January, 1), date(2024, time.January, 31), "1500")

	rec := soleVariance(t, classify(testConfig(),
		[]canonical.ScheduledCharge{charge}, nil))

	if rec.Type != audit.VarianceMissingBillings {
		t.Fatalf("expected MISSING_BILLINGS, got %q", rec.Type)
	}
	if rec.Severity != audit.SeverityHigh {
		t.Errorf("expected HIGH severity, got %q", rec.Severity)
	}
	if !rec.Variance.Equal(amount("-1500")) {
		t.Errorf("expected variance -1500, got %s", rec.Variance)
	}
	if rec.TransactionID != 0 {
		t.Errorf("expected no transaction side, got %d", rec.TransactionID)
	}
}

func TestClassifyVariances_ExcludedCodeChargeFlaggedAsTimedOrExternal(t *testing.T) {
	// GIVEN: An unmatched charge whose code belongs to the excluded set
	// WHEN: Classifying
	// THEN: TIMED_OR_EXTERNAL_CHARGE at MEDIUM; such codes should never
	//       appear in the schedule at all

	cfg := testConfig()
	cfg.ExcludedCodes = canonical.NewCodeSet(10)
	charge := activeCharge(1, date(2024, time.January, 1), date(2024, time.January, 31), "90")

	rec := soleVariance(t, classify(cfg, []canonical.ScheduledCharge{charge}, nil))

	if rec.Type != audit.VarianceTimedOrExternal {
		t.Fatalf("expected TIMED_OR_EXTERNAL_CHARGE, got %q", rec.Type)
	}
	if rec.Severity != audit.SeverityMedium {
		t.Errorf("expected MEDIUM severity, got %q", rec.Severity)
	}
}

// =============================================================================
// UNMATCHED TRANSACTIONS
// =============================================================================

func TestClassifyVariances_ExtraBillings(t *testing.T) {
	// GIVEN: An unmatched transaction with an ordinary code name
	// WHEN: Classifying
	// THEN: EXTRA_BILLINGS at MEDIUM, variance is the actual amount

	tx := postedTx(100, 10, "75", date(2024, time.January, 5))

	rec := soleVariance(t, classify(testConfig(), nil, []canonical.ARTransaction{tx}))

	if rec.Type != audit.VarianceExtraBillings {
		t.Fatalf("expected EXTRA_BILLINGS, got %q", rec.Type)
	}
	if rec.Severity != audit.SeverityMedium {
		t.Errorf("expected MEDIUM severity, got %q", rec.Severity)
	}
	if !rec.Variance.Equal(amount("75")) {
		t.Errorf("expected variance 75, got %s", rec.Variance)
	}
}

func TestClassifyVariances_EventDrivenVocabularyHit(t *testing.T) {
	// GIVEN: An unmatched transaction whose code name contains a vocabulary
	//        token in mixed case
	// WHEN: Classifying
	// THEN: EVENT_DRIVEN at INFO; the match is case-insensitive substring

	tx := postedTx(100, 40, "-1500", date(2024, time.January, 5))
	tx.ARCodeName = "Rent Pymt Check"

	rec := soleVariance(t, classify(testConfig(), nil, []canonical.ARTransaction{tx}))

	if rec.Type != audit.VarianceEventDriven {
		t.Fatalf("expected EVENT_DRIVEN, got %q", rec.Type)
	}
	if rec.Severity != audit.SeverityInfo {
		t.Errorf("expected INFO severity, got %q", rec.Severity)
	}
}

func TestClassifyVariances_ExcludedCodeTransactionsDropped(t *testing.T) {
	// GIVEN: An unmatched transaction under an excluded code
	// WHEN: Classifying
	// THEN: No record at all; API-driven billing without a schedule is the
	//       expected state, not a finding

	cfg := testConfig()
	cfg.ExcludedCodes = canonical.NewCodeSet(50)
	tx := postedTx(100, 50, "120", date(2024, time.January, 5))

	records := classify(cfg, nil, []canonical.ARTransaction{tx})

	if len(records) != 0 {
		t.Errorf("expected no variances for excluded-code transaction, got %+v", records)
	}
}

func TestClassifyVariances_MatchedPairsProduceNothing(t *testing.T) {
	// GIVEN: A cleanly secondary-matched pair
	// WHEN: Classifying
	// THEN: Empty output; only tertiary pairs and unmatched rows classify

	charge := activeCharge(1, date(2024, time.January, 1), date(2024, time.January, 31), "1500")
	tx := postedTx(100, 10, "1500", date(2024, time.January, 3))

	records := classify(testConfig(),
		[]canonical.ScheduledCharge{charge}, []canonical.ARTransaction{tx})

	if len(records) != 0 {
		t.Errorf("expected no variances for matched pair, got %+v", records)
	}
}
