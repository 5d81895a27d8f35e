package canonical_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/warp/lease-audit/canonical"
)

func TestMonthOf_TruncatesToFirstDay(t *testing.T) {
	// GIVEN: A mid-month date
	// WHEN: Truncating to its month
	// THEN: The month's first day, so bucket keys built from any day of the
	//       same month compare equal

	m := canonical.MonthOf(canonical.NewDate(2024, time.March, 15))

	if !m.Equal(canonical.NewMonth(2024, time.March)) {
		t.Errorf("expected 2024-03, got %s", m)
	}
	if got := m.First().String(); got != "2024-03-01" {
		t.Errorf("expected first day 2024-03-01, got %s", got)
	}
}

func TestMonthOf_ZeroDateYieldsZeroMonth(t *testing.T) {
	// GIVEN: A missing date
	// WHEN: Truncating
	// THEN: A missing month, not January year 1 arithmetic surprises

	if !canonical.MonthOf(canonical.Date{}).IsZero() {
		t.Error("expected zero month from zero date")
	}
}

func TestMonth_AddMonthsCrossesYearEnd(t *testing.T) {
	// GIVEN: November 2024
	// WHEN: Adding three months
	// THEN: February 2025

	m := canonical.NewMonth(2024, time.November).AddMonths(3)

	if !m.Equal(canonical.NewMonth(2025, time.February)) {
		t.Errorf("expected 2025-02, got %s", m)
	}
}

func TestDate_JSONRoundTrip(t *testing.T) {
	// GIVEN: A present and a missing date
	// WHEN: Marshaling and unmarshaling
	// THEN: "YYYY-MM-DD" for present, null for missing, both round-trip

	present := canonical.NewDate(2024, time.January, 5)
	b, err := json.Marshal(present)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(b) != `"2024-01-05"` {
		t.Errorf("expected \"2024-01-05\", got %s", b)
	}

	var back canonical.Date
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if !back.Equal(present) {
		t.Errorf("round-trip changed the date: %s", back)
	}

	b, err = json.Marshal(canonical.Date{})
	if err != nil {
		t.Fatalf("marshal zero failed: %v", err)
	}
	if string(b) != "null" {
		t.Errorf("expected null for missing date, got %s", b)
	}
}

func TestBucketKey_LessOrdersByAllFields(t *testing.T) {
	// GIVEN: Keys differing in each field in turn
	// WHEN: Comparing
	// THEN: Property, then lease, then code, then month

	base := canonical.BucketKey{
		PropertyID:      100,
		LeaseIntervalID: 1,
		ARCodeID:        10,
		AuditMonth:      canonical.NewMonth(2024, time.January),
	}

	byProperty := base
	byProperty.PropertyID = 200
	byLease := base
	byLease.LeaseIntervalID = 2
	byCode := base
	byCode.ARCodeID = 20
	byMonth := base
	byMonth.AuditMonth = canonical.NewMonth(2024, time.February)

	for _, larger := range []canonical.BucketKey{byProperty, byLease, byCode, byMonth} {
		if !base.Less(larger) {
			t.Errorf("expected %+v < %+v", base, larger)
		}
		if larger.Less(base) {
			t.Errorf("expected %+v not < %+v", larger, base)
		}
	}
	if base.Less(base) {
		t.Error("a key must not be less than itself")
	}
}

func TestAuditMonth_PrefersPostMonth(t *testing.T) {
	// GIVEN: A transaction with both a post month and a post date in a
	//        different month
	// WHEN: Resolving the audit month
	// THEN: The explicit post month wins; it falls back to the post date's
	//       month only when missing

	tx := canonical.ARTransaction{
		PostDate:  canonical.NewDate(2024, time.February, 1),
		PostMonth: canonical.NewMonth(2024, time.January),
	}
	if !tx.AuditMonth().Equal(canonical.NewMonth(2024, time.January)) {
		t.Errorf("expected post month to win, got %s", tx.AuditMonth())
	}

	tx.PostMonth = canonical.Month{}
	if !tx.AuditMonth().Equal(canonical.NewMonth(2024, time.February)) {
		t.Errorf("expected post-date fallback, got %s", tx.AuditMonth())
	}
}
