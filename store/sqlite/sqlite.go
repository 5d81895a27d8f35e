/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements run and finding persistence (audit.RunStore, findings.Store)
  using SQLite. In production, the same patterns apply to PostgreSQL - only
  minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  audit.RunStore:  Reconciliation run persistence
  findings.Store:  Per-run finding persistence

WRITE-ONCE SEMANTICS:
  Result tables are written once per run inside a single database
  transaction. A rerun writes a new run id; existing run rows are never
  updated. Findings regenerate wholesale, so SaveFindings replaces the
  run's set.

KEY TABLES:
  audit_runs:       Run identity, as-of month, and match statistics
  bucket_results:   Aggregated per-bucket comparison rows
  variance_detail:  Per-record typed variances
  findings:         Rule output per run

AMOUNT ENCODING:
  Monetary amounts are stored as decimal strings, never floats. Dates are
  stored as "YYYY-MM-DD" text; empty string means missing.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/audit.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - audit/store.go: RunStore interface definition
  - audit/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/lease-audit/audit"
	"github.com/warp/lease-audit/canonical"
	"github.com/warp/lease-audit/findings"
)

// Store implements the run and finding storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Runs (one row per reconciliation execution)
	CREATE TABLE IF NOT EXISTS audit_runs (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		as_of_month TEXT NOT NULL,
		stats_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_runs_created_at
		ON audit_runs(created_at DESC);

	-- Bucket results (aggregated comparison, seq preserves engine order)
	CREATE TABLE IF NOT EXISTS bucket_results (
		run_id TEXT NOT NULL REFERENCES audit_runs(id),
		seq INTEGER NOT NULL,
		property_id INTEGER NOT NULL,
		lease_interval_id INTEGER NOT NULL,
		ar_code_id INTEGER NOT NULL,
		audit_month TEXT NOT NULL,
		expected_total TEXT NOT NULL,
		actual_total TEXT NOT NULL,
		variance TEXT NOT NULL,
		status TEXT NOT NULL,
		match_rule TEXT NOT NULL,
		PRIMARY KEY (run_id, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_bucket_results_status
		ON bucket_results(run_id, status);

	-- Variance detail (per-record typed variances, seq preserves order)
	CREATE TABLE IF NOT EXISTS variance_detail (
		run_id TEXT NOT NULL REFERENCES audit_runs(id),
		seq INTEGER NOT NULL,
		variance_type TEXT NOT NULL,
		severity TEXT NOT NULL,
		scheduled_charge_id INTEGER NOT NULL DEFAULT 0,
		transaction_id INTEGER NOT NULL DEFAULT 0,
		lease_interval_id INTEGER NOT NULL,
		ar_code_id INTEGER NOT NULL,
		ar_code_name TEXT,
		expected_amount TEXT NOT NULL,
		actual_amount TEXT NOT NULL,
		variance TEXT NOT NULL,
		post_date TEXT,
		period_start TEXT,
		period_end TEXT,
		is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
		is_reversal BOOLEAN NOT NULL DEFAULT FALSE,
		description TEXT,
		PRIMARY KEY (run_id, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_variance_detail_type
		ON variance_detail(run_id, variance_type);

	-- Findings (rule output, seq preserves registry order)
	CREATE TABLE IF NOT EXISTS findings (
		run_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		finding_id TEXT NOT NULL,
		property_id INTEGER NOT NULL,
		lease_interval_id INTEGER NOT NULL,
		ar_code_id INTEGER NOT NULL,
		audit_month TEXT NOT NULL,
		category TEXT NOT NULL,
		severity TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT,
		expected_value TEXT NOT NULL,
		actual_value TEXT NOT NULL,
		variance TEXT NOT NULL,
		impact_amount TEXT NOT NULL,
		evidence_json TEXT,
		PRIMARY KEY (run_id, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_findings_severity
		ON findings(run_id, severity);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RUN STORE (audit.RunStore interface)
// =============================================================================

// SaveRun persists a run and its result tables in one transaction.
func (s *Store) SaveRun(ctx context.Context, run audit.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	statsJSON, err := json.Marshal(run.Stats)
	if err != nil {
		return fmt.Errorf("failed to encode stats: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO audit_runs (id, created_at, as_of_month, stats_json) VALUES (?, ?, ?, ?)`,
		run.ID,
		run.CreatedAt.UTC().Format(time.RFC3339),
		run.AsOf.String(),
		string(statsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for i, b := range run.Buckets {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO bucket_results
			(run_id, seq, property_id, lease_interval_id, ar_code_id, audit_month,
			 expected_total, actual_total, variance, status, match_rule)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, i,
			int64(b.Key.PropertyID), int64(b.Key.LeaseIntervalID), int64(b.Key.ARCodeID),
			b.Key.AuditMonth.String(),
			b.ExpectedTotal.String(), b.ActualTotal.String(), b.Variance.String(),
			string(b.Status), b.MatchRule,
		)
		if err != nil {
			return fmt.Errorf("failed to insert bucket result: %w", err)
		}
	}

	for i, v := range run.Variances {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO variance_detail
			(run_id, seq, variance_type, severity, scheduled_charge_id, transaction_id,
			 lease_interval_id, ar_code_id, ar_code_name, expected_amount, actual_amount,
			 variance, post_date, period_start, period_end, is_deleted, is_reversal, description)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, i,
			string(v.Type), string(v.Severity),
			int64(v.ScheduledChargeID), int64(v.TransactionID),
			int64(v.LeaseIntervalID), int64(v.ARCodeID), v.ARCodeName,
			v.ExpectedAmount.String(), v.ActualAmount.String(), v.Variance.String(),
			v.PostDate.String(), v.PeriodStart.String(), v.PeriodEnd.String(),
			v.IsDeleted, v.IsReversal, v.Description,
		)
		if err != nil {
			return fmt.Errorf("failed to insert variance: %w", err)
		}
	}

	return tx.Commit()
}

// GetRun loads a run with all result tables.
func (s *Store) GetRun(ctx context.Context, id string) (audit.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var run audit.Run
	var createdAt, asOf, statsJSON string

	err := s.db.QueryRowContext(ctx,
		"SELECT id, created_at, as_of_month, stats_json FROM audit_runs WHERE id = ?",
		id,
	).Scan(&run.ID, &createdAt, &asOf, &statsJSON)
	if err == sql.ErrNoRows {
		return audit.Run{}, audit.ErrRunNotFound
	}
	if err != nil {
		return audit.Run{}, err
	}

	run.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	run.AsOf = parseMonth(asOf)
	if err := json.Unmarshal([]byte(statsJSON), &run.Stats); err != nil {
		return audit.Run{}, fmt.Errorf("failed to decode stats: %w", err)
	}

	if run.Buckets, err = s.queryBuckets(ctx, id); err != nil {
		return audit.Run{}, err
	}
	if run.Variances, err = s.queryVariances(ctx, id); err != nil {
		return audit.Run{}, err
	}
	return run, nil
}

// ListRuns returns run summaries, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]audit.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT r.id, r.created_at, r.as_of_month,
		       (SELECT COUNT(*) FROM bucket_results b WHERE b.run_id = r.id),
		       (SELECT COUNT(*) FROM variance_detail v WHERE v.run_id = r.id)
		FROM audit_runs r
		ORDER BY r.created_at DESC, r.id
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []audit.RunSummary
	for rows.Next() {
		var sum audit.RunSummary
		var createdAt, asOf string
		if err := rows.Scan(&sum.ID, &createdAt, &asOf, &sum.BucketCount, &sum.VarianceCount); err != nil {
			return nil, err
		}
		sum.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		sum.AsOf = parseMonth(asOf)
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

func (s *Store) queryBuckets(ctx context.Context, runID string) ([]audit.BucketResult, error) {
	query := `
		SELECT property_id, lease_interval_id, ar_code_id, audit_month,
		       expected_total, actual_total, variance, status, match_rule
		FROM bucket_results
		WHERE run_id = ?
		ORDER BY seq ASC
	`

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bucket results: %w", err)
	}
	defer rows.Close()

	var buckets []audit.BucketResult
	for rows.Next() {
		var (
			b                             audit.BucketResult
			propID, leaseID, codeID       int64
			month, expected, actual, diff string
			status                        string
		)
		if err := rows.Scan(&propID, &leaseID, &codeID, &month,
			&expected, &actual, &diff, &status, &b.MatchRule); err != nil {
			return nil, fmt.Errorf("failed to scan bucket result: %w", err)
		}
		b.Key = canonical.BucketKey{
			PropertyID:      canonical.PropertyID(propID),
			LeaseIntervalID: canonical.LeaseIntervalID(leaseID),
			ARCodeID:        canonical.ARCodeID(codeID),
			AuditMonth:      parseMonth(month),
		}
		b.ExpectedTotal = parseDecimal(expected)
		b.ActualTotal = parseDecimal(actual)
		b.Variance = parseDecimal(diff)
		b.Status = audit.BucketStatus(status)
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}

func (s *Store) queryVariances(ctx context.Context, runID string) ([]audit.VarianceRecord, error) {
	query := `
		SELECT variance_type, severity, scheduled_charge_id, transaction_id,
		       lease_interval_id, ar_code_id, ar_code_name, expected_amount,
		       actual_amount, variance, post_date, period_start, period_end,
		       is_deleted, is_reversal, description
		FROM variance_detail
		WHERE run_id = ?
		ORDER BY seq ASC
	`

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query variance detail: %w", err)
	}
	defer rows.Close()

	var variances []audit.VarianceRecord
	for rows.Next() {
		var (
			v                                audit.VarianceRecord
			vtype, severity                  string
			chargeID, txID, leaseID, codeID  int64
			codeName, description            sql.NullString
			expected, actual, diff           string
			postDate, periodStart, periodEnd sql.NullString
		)
		if err := rows.Scan(&vtype, &severity, &chargeID, &txID,
			&leaseID, &codeID, &codeName, &expected,
			&actual, &diff, &postDate, &periodStart, &periodEnd,
			&v.IsDeleted, &v.IsReversal, &description); err != nil {
			return nil, fmt.Errorf("failed to scan variance: %w", err)
		}
		v.Type = audit.VarianceType(vtype)
		v.Severity = audit.Severity(severity)
		v.ScheduledChargeID = canonical.ScheduledChargeID(chargeID)
		v.TransactionID = canonical.ARTransactionID(txID)
		v.LeaseIntervalID = canonical.LeaseIntervalID(leaseID)
		v.ARCodeID = canonical.ARCodeID(codeID)
		v.ARCodeName = codeName.String
		v.ExpectedAmount = parseDecimal(expected)
		v.ActualAmount = parseDecimal(actual)
		v.Variance = parseDecimal(diff)
		v.PostDate = parseDate(postDate.String)
		v.PeriodStart = parseDate(periodStart.String)
		v.PeriodEnd = parseDate(periodEnd.String)
		v.Description = description.String
		variances = append(variances, v)
	}
	return variances, rows.Err()
}

// =============================================================================
// FINDING STORE (findings.Store interface)
// =============================================================================

// SaveFindings replaces the finding set for a run in one transaction.
func (s *Store) SaveFindings(ctx context.Context, runID string, fs []findings.Finding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM findings WHERE run_id = ?", runID); err != nil {
		return fmt.Errorf("failed to clear findings: %w", err)
	}

	for i, f := range fs {
		evidenceJSON, err := json.Marshal(f.Evidence)
		if err != nil {
			return fmt.Errorf("failed to encode evidence: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO findings
			(run_id, seq, finding_id, property_id, lease_interval_id, ar_code_id,
			 audit_month, category, severity, title, description, expected_value,
			 actual_value, variance, impact_amount, evidence_json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, i, f.FindingID,
			int64(f.PropertyID), int64(f.LeaseIntervalID), int64(f.ARCodeID),
			f.AuditMonth.String(), f.Category, f.Severity, f.Title, f.Description,
			f.ExpectedValue.String(), f.ActualValue.String(), f.Variance.String(),
			f.ImpactAmount.String(), string(evidenceJSON),
		)
		if err != nil {
			return fmt.Errorf("failed to insert finding: %w", err)
		}
	}

	return tx.Commit()
}

// GetFindings loads the findings for a run in stored order.
func (s *Store) GetFindings(ctx context.Context, runID string) ([]findings.Finding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT finding_id, property_id, lease_interval_id, ar_code_id, audit_month,
		       category, severity, title, description, expected_value, actual_value,
		       variance, impact_amount, evidence_json
		FROM findings
		WHERE run_id = ?
		ORDER BY seq ASC
	`

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query findings: %w", err)
	}
	defer rows.Close()

	var fs []findings.Finding
	for rows.Next() {
		var (
			f                              findings.Finding
			propID, leaseID, codeID        int64
			month                          string
			expected, actual, diff, impact string
			description, evidenceJSON      sql.NullString
		)
		if err := rows.Scan(&f.FindingID, &propID, &leaseID, &codeID, &month,
			&f.Category, &f.Severity, &f.Title, &description, &expected, &actual,
			&diff, &impact, &evidenceJSON); err != nil {
			return nil, fmt.Errorf("failed to scan finding: %w", err)
		}
		f.RunID = runID
		f.PropertyID = canonical.PropertyID(propID)
		f.LeaseIntervalID = canonical.LeaseIntervalID(leaseID)
		f.ARCodeID = canonical.ARCodeID(codeID)
		f.AuditMonth = parseMonth(month)
		f.Description = description.String
		f.ExpectedValue = parseDecimal(expected)
		f.ActualValue = parseDecimal(actual)
		f.Variance = parseDecimal(diff)
		f.ImpactAmount = parseDecimal(impact)
		if evidenceJSON.Valid && evidenceJSON.String != "" {
			json.Unmarshal([]byte(evidenceJSON.String), &f.Evidence)
		}
		fs = append(fs, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(fs) == 0 {
		return nil, findings.ErrNoFindings
	}
	return fs, nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"findings", "variance_detail", "bucket_results", "audit_runs"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseDate(s string) canonical.Date {
	if s == "" {
		return canonical.Date{}
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return canonical.Date{}
	}
	return canonical.NewDate(t.Year(), t.Month(), t.Day())
}

func parseMonth(s string) canonical.Month {
	if s == "" {
		return canonical.Month{}
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return canonical.Month{}
	}
	return canonical.NewMonth(t.Year(), t.Month())
}
