/*
handlers_test.go - Unit tests for API handlers

Tests for:
- Run creation (canonical and raw bodies)
- Result retrieval by run id
- Error mapping (bad input -> 400, unknown run -> 404)
*/
package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/lease-audit/audit"
	"github.com/warp/lease-audit/canonical"
	"github.com/warp/lease-audit/factory"
	"github.com/warp/lease-audit/findings"
	"github.com/warp/lease-audit/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestHandler(t *testing.T) *Handler {
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := audit.DefaultConfig()
	cfg.AsOf = canonical.NewMonth(2024, time.March)
	return NewHandler(store, cfg, nil)
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

// =============================================================================
// RUN CREATION TESTS
// =============================================================================

func TestCreateRun_Success(t *testing.T) {
	// GIVEN: A valid canonical run request with a missed March billing
	// WHEN: POSTing to /api/runs
	// THEN: 201 with run summary; the run is retrievable afterwards

	router := NewRouter(newTestHandler(t))
	req := CreateRunRequest{
		ScheduledCharges: []canonical.ScheduledCharge{rentCharge(1001, 1)},
		Transactions: []canonical.ARTransaction{
			rentTx(5001, 1, 1001, time.January),
			rentTx(5002, 1, 1001, time.February),
		},
	}

	rec := doJSON(t, router, http.MethodPost, "/api/runs", req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	resp := decodeBody[RunResponse](t, rec)
	if resp.RunID == "" {
		t.Error("Expected a generated run id")
	}
	if resp.BucketCount != 3 {
		t.Errorf("Expected 3 buckets (Jan-Mar), got %d", resp.BucketCount)
	}
	if resp.FindingCount != 1 {
		t.Errorf("Expected 1 finding for the missed month, got %d", resp.FindingCount)
	}

	// Fetch the run back.
	got := doJSON(t, router, http.MethodGet, "/api/runs/"+resp.RunID, nil)
	if got.Code != http.StatusOK {
		t.Fatalf("Expected 200 fetching stored run, got %d", got.Code)
	}
	run := decodeBody[audit.Run](t, got)
	if len(run.Buckets) != 3 {
		t.Errorf("Expected 3 stored buckets, got %d", len(run.Buckets))
	}
	// The recurring charge is primary-matched by its January transaction,
	// so the missed month shows up on the bucket path only.
	if len(run.Variances) != 0 {
		t.Errorf("Expected no detail variances, got %d", len(run.Variances))
	}
}

func TestCreateRun_ConfigOverride(t *testing.T) {
	// GIVEN: A request carrying its own tolerance wide enough to absorb a
	//        short payment
	// WHEN: Creating the run
	// THEN: The bucket matches under the override

	router := NewRouter(newTestHandler(t))
	tolerance := 10.0
	short := rentTx(5001, 1, 1001, time.January)
	short.ActualAmount = short.ActualAmount.Sub(decimal.NewFromInt(5))

	charge := rentCharge(1001, 1)
	charge.PeriodEnd = canonical.NewDate(2024, time.January, 31)

	req := CreateRunRequest{
		ScheduledCharges: []canonical.ScheduledCharge{charge},
		Transactions:     []canonical.ARTransaction{short},
		Config: &factory.ConfigJSON{
			AmountTolerance: &tolerance,
			AsOfMonth:       "2024-03-01",
		},
	}

	rec := doJSON(t, router, http.MethodPost, "/api/runs", req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[RunResponse](t, rec)
	if resp.FindingCount != 0 {
		t.Errorf("Expected no findings within widened tolerance, got %d", resp.FindingCount)
	}
}

func TestCreateRun_EmptyInputRejected(t *testing.T) {
	// GIVEN: A request with both tables empty
	// WHEN: Creating the run
	// THEN: 400 with the error body

	router := NewRouter(newTestHandler(t))

	rec := doJSON(t, router, http.MethodPost, "/api/runs", CreateRunRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
	errResp := decodeBody[ErrorResponse](t, rec)
	if errResp.Error == "" {
		t.Error("Expected an error message")
	}
}

func TestCreateRun_InvalidConfigRejected(t *testing.T) {
	// GIVEN: A request with a negative tolerance override
	// WHEN: Creating the run
	// THEN: 400 before the engine ever runs

	router := NewRouter(newTestHandler(t))
	bad := -0.5
	req := CreateRunRequest{
		ScheduledCharges: []canonical.ScheduledCharge{rentCharge(1001, 1)},
		Config:           &factory.ConfigJSON{AmountTolerance: &bad},
	}

	rec := doJSON(t, router, http.MethodPost, "/api/runs", req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

// =============================================================================
// RAW RUN TESTS
// =============================================================================

func TestCreateRawRun_MapsSourceColumns(t *testing.T) {
	// GIVEN: Raw rows under source column names
	// WHEN: POSTing to /api/runs/raw
	// THEN: The mapping layer normalizes them and the run succeeds

	router := NewRouter(newTestHandler(t))
	body := map[string]any{
		"scheduled_charges": []map[string]any{{
			"SCHEDULED_CHARGES_ID": 1001,
			"PROPERTY_ID":          100,
			"LEASE_INTERVAL_ID":    1,
			"AR_CODE_ID":           10,
			"AR_CODE_NAME":         "Base Rent",
			"CHARGE_AMOUNT":        "1500",
			"DATE_CHARGE_START":    20240101,
			"DATE_CHARGE_END":      20240131,
		}},
		"actual_transactions": []map[string]any{{
			"ID":                  5001,
			"PROPERTY_ID":         100,
			"LEASE_INTERVAL_ID":   1,
			"AR_CODE_ID":          10,
			"AR_CODE_NAME":        "Base Rent",
			"TRANSACTION_AMOUNT":  "1500",
			"POST_DATE":           20240105,
			"POST_MONTH_DATE":     20240101,
			"IS_POSTED":           1,
			"IS_DELETED":          0,
			"IS_REVERSAL":         0,
			"SCHEDULED_CHARGE_ID": 1001,
		}},
		"config": map[string]any{"as_of_month": "2024-03-01"},
	}

	rec := doJSON(t, router, http.MethodPost, "/api/runs/raw", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[RunResponse](t, rec)
	if resp.FindingCount != 0 {
		t.Errorf("Expected a clean run, got %d findings", resp.FindingCount)
	}
	if resp.BucketCount != 1 {
		t.Errorf("Expected 1 bucket, got %d", resp.BucketCount)
	}
}

func TestCreateRawRun_MissingColumnsRejected(t *testing.T) {
	// GIVEN: Raw transaction rows without the amount column
	// WHEN: POSTing to /api/runs/raw
	// THEN: 400 naming the absent column

	router := NewRouter(newTestHandler(t))
	body := map[string]any{
		"actual_transactions": []map[string]any{{
			"ID":                5001,
			"PROPERTY_ID":       100,
			"LEASE_INTERVAL_ID": 1,
			"AR_CODE_ID":        10,
			"POST_DATE":         20240105,
			"POST_MONTH_DATE":   20240101,
			"IS_POSTED":         1,
			"IS_DELETED":        0,
			"IS_REVERSAL":       0,
		}},
	}

	rec := doJSON(t, router, http.MethodPost, "/api/runs/raw", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	errResp := decodeBody[ErrorResponse](t, rec)
	if !strings.Contains(errResp.Details, "TRANSACTION_AMOUNT") {
		t.Errorf("Expected the missing column named, got %q", errResp.Details)
	}
}

// =============================================================================
// RETRIEVAL TESTS
// =============================================================================

func TestGetRun_NotFound(t *testing.T) {
	// GIVEN: An empty store
	// WHEN: Fetching an unknown run id
	// THEN: 404

	router := NewRouter(newTestHandler(t))

	for _, path := range []string{
		"/api/runs/no-such-run",
		"/api/runs/no-such-run/buckets",
		"/api/runs/no-such-run/variances",
		"/api/runs/no-such-run/kpis",
	} {
		rec := doJSON(t, router, http.MethodGet, path, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("GET %s: expected 404, got %d", path, rec.Code)
		}
	}
}

func TestGetFindings_CleanRunReturnsEmptyList(t *testing.T) {
	// GIVEN: A stored run with zero findings
	// WHEN: Fetching its findings
	// THEN: 200 with an empty JSON array, not an error

	router := NewRouter(newTestHandler(t))
	req := CreateRunRequest{
		ScheduledCharges: []canonical.ScheduledCharge{rentCharge(1001, 1)},
		Transactions: []canonical.ARTransaction{
			rentTx(5001, 1, 1001, time.January),
			rentTx(5002, 1, 1001, time.February),
			rentTx(5003, 1, 1001, time.March),
		},
	}
	created := decodeBody[RunResponse](t, doJSON(t, router, http.MethodPost, "/api/runs", req))

	rec := doJSON(t, router, http.MethodGet, "/api/runs/"+created.RunID+"/findings", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	fs := decodeBody[[]findings.Finding](t, rec)
	if len(fs) != 0 {
		t.Errorf("Expected empty findings list, got %d", len(fs))
	}
}

func TestListRuns_NewestFirst(t *testing.T) {
	// GIVEN: Two stored runs
	// WHEN: Listing
	// THEN: Both appear with their counts

	router := NewRouter(newTestHandler(t))
	for i := 0; i < 2; i++ {
		req := CreateRunRequest{
			ScheduledCharges: []canonical.ScheduledCharge{rentCharge(1001, 1)},
			Transactions: []canonical.ARTransaction{
				rentTx(canonical.ARTransactionID(5001+i), 1, 1001, time.January),
			},
		}
		rec := doJSON(t, router, http.MethodPost, "/api/runs", req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("Run %d: expected 201, got %d", i, rec.Code)
		}
	}

	rec := doJSON(t, router, http.MethodGet, "/api/runs", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	summaries := decodeBody[[]RunSummaryDTO](t, rec)
	if len(summaries) != 2 {
		t.Fatalf("Expected 2 runs, got %d", len(summaries))
	}
	for i, s := range summaries {
		if s.BucketCount != 3 {
			t.Errorf("Run %d: expected 3 buckets, got %d", i, s.BucketCount)
		}
	}
}

// =============================================================================
// HEALTH TESTS
// =============================================================================

func TestHealth(t *testing.T) {
	router := NewRouter(newTestHandler(t))

	rec := doJSON(t, router, http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	body := decodeBody[map[string]string](t, rec)
	if body["status"] != "ok" {
		t.Errorf("Expected status ok, got %v", body)
	}
}
