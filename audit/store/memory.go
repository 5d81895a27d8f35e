// Package store provides RunStore implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/lease-audit/audit"
	"github.com/warp/lease-audit/findings"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory holds runs and findings in process memory. Safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	runs    map[string]audit.Run
	results map[string][]findings.Finding
}

func NewMemory() *Memory {
	return &Memory{
		runs:    make(map[string]audit.Run),
		results: make(map[string][]findings.Finding),
	}
}

// SaveRun stores a run. Saving the same id again replaces the stored run.
func (m *Memory) SaveRun(_ context.Context, run audit.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = cloneRun(run)
	return nil
}

func (m *Memory) GetRun(_ context.Context, id string) (audit.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return audit.Run{}, audit.ErrRunNotFound
	}
	return cloneRun(run), nil
}

// ListRuns returns run summaries, newest first.
func (m *Memory) ListRuns(_ context.Context) ([]audit.RunSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summaries := make([]audit.RunSummary, 0, len(m.runs))
	for _, run := range m.runs {
		summaries = append(summaries, audit.RunSummary{
			ID:            run.ID,
			CreatedAt:     run.CreatedAt,
			AsOf:          run.AsOf,
			BucketCount:   len(run.Buckets),
			VarianceCount: len(run.Variances),
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		if !summaries[i].CreatedAt.Equal(summaries[j].CreatedAt) {
			return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
		}
		return summaries[i].ID < summaries[j].ID
	})
	return summaries, nil
}

// SaveFindings replaces the finding set for a run.
func (m *Memory) SaveFindings(_ context.Context, runID string, fs []findings.Finding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[runID] = append([]findings.Finding(nil), fs...)
	return nil
}

func (m *Memory) GetFindings(_ context.Context, runID string) ([]findings.Finding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fs, ok := m.results[runID]
	if !ok {
		return nil, findings.ErrNoFindings
	}
	return append([]findings.Finding(nil), fs...), nil
}

// Reset clears all data (for testing/demo).
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = make(map[string]audit.Run)
	m.results = make(map[string][]findings.Finding)
	return nil
}

// cloneRun copies the result slices so callers cannot mutate stored state.
func cloneRun(run audit.Run) audit.Run {
	out := run
	out.Buckets = append([]audit.BucketResult(nil), run.Buckets...)
	out.Variances = append([]audit.VarianceRecord(nil), run.Variances...)
	return out
}
