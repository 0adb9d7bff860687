package storage

import (
	"sort"
	"sync"
	"time"

	"github.com/valter-silva-au/ai-dev-team/pkg/models"
)

// DefaultRegistrySize is how many runs the registry keeps before it starts
// evicting the oldest finished ones.
const DefaultRegistrySize = 100

// ResultRegistry keeps the latest observable state of every run started in
// this process. It is safe for concurrent use by many runs.
type ResultRegistry struct {
	mu      sync.RWMutex
	runs    map[string]*models.RunSnapshot
	maxKept int
}

// NewResultRegistry creates a registry holding up to maxKept runs. A
// non-positive maxKept uses DefaultRegistrySize.
func NewResultRegistry(maxKept int) *ResultRegistry {
	if maxKept <= 0 {
		maxKept = DefaultRegistrySize
	}
	return &ResultRegistry{runs: make(map[string]*models.RunSnapshot), maxKept: maxKept}
}

// Start registers a run before the pipeline begins.
func (r *ResultRegistry) Start(runID, idea string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	r.runs[runID] = &models.RunSnapshot{
		RunID:     runID,
		Idea:      idea,
		Status:    models.RunRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.evictOldest()
}

// Progress records a progress message. Unknown run IDs are registered on
// first use.
func (r *ResultRegistry) Progress(runID, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := r.lookupOrCreate(runID)
	snap.Progress = append(snap.Progress, message)
	snap.UpdatedAt = time.Now()
}

// Complete records the terminal result of a run.
func (r *ResultRegistry) Complete(runID string, result *models.RunResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := r.lookupOrCreate(runID)
	snap.Result = result
	if result != nil {
		snap.Status = result.Status
		if snap.Idea == "" {
			snap.Idea = result.Idea
		}
	}
	snap.UpdatedAt = time.Now()
}

// Snapshot returns a copy of the run's current state.
func (r *ResultRegistry) Snapshot(runID string) (models.RunSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap, ok := r.runs[runID]
	if !ok {
		return models.RunSnapshot{}, false
	}
	return copySnapshot(snap), true
}

// List returns copies of every known run, newest first.
func (r *ResultRegistry) List() []models.RunSnapshot {
	r.mu.RLock()
	out := make([]models.RunSnapshot, 0, len(r.runs))
	for _, snap := range r.runs {
		out = append(out, copySnapshot(snap))
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Remove forgets a run.
func (r *ResultRegistry) Remove(runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.runs, runID)
}

// Clear forgets every finished run. Runs still in flight are kept.
func (r *ResultRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, snap := range r.runs {
		if snap.Status != models.RunRunning {
			delete(r.runs, id)
		}
	}
}

func (r *ResultRegistry) lookupOrCreate(runID string) *models.RunSnapshot {
	snap, ok := r.runs[runID]
	if !ok {
		now := time.Now()
		snap = &models.RunSnapshot{RunID: runID, Status: models.RunRunning, CreatedAt: now, UpdatedAt: now}
		r.runs[runID] = snap
		r.evictOldest()
	}
	return snap
}

// evictOldest drops the oldest finished run once the registry is over
// capacity. Running runs are never evicted.
func (r *ResultRegistry) evictOldest() {
	if len(r.runs) <= r.maxKept {
		return
	}
	var oldestID string
	var oldestTime time.Time
	for id, snap := range r.runs {
		if snap.Status == models.RunRunning {
			continue
		}
		if oldestID == "" || snap.CreatedAt.Before(oldestTime) {
			oldestID = id
			oldestTime = snap.CreatedAt
		}
	}
	if oldestID != "" {
		delete(r.runs, oldestID)
	}
}

func copySnapshot(snap *models.RunSnapshot) models.RunSnapshot {
	cp := *snap
	cp.Progress = append([]string(nil), snap.Progress...)
	return cp
}
