// Package manager tracks loaded on-device model instances against a RAM
// budget, performing thread-safe lazy load with at-most-one-concurrent-
// load-per-key semantics.
package manager

import (
	"context"
	"sort"
	"sync"

	"github.com/modelmux/modelmux/pkg/errors"
	"github.com/modelmux/modelmux/pkg/utils"
)

// Handle is a loaded model instance. Its lifetime is independent of the
// manager's bookkeeping: Unload removes the entry and frees its budget
// allocation, and Close must be idempotent.
type Handle interface {
	Close() error
}

// LoadFunc performs the actual model load. It runs outside the
// manager's locks so a slow load never blocks calls for other keys.
type LoadFunc func(ctx context.Context, modelID string) (Handle, error)

// EstimateFunc returns the estimated resident footprint of a model in
// MB. ok is false for model identifiers the manager does not know.
type EstimateFunc func(modelID string) (sizeMB int, ok bool)

type entry struct {
	handle Handle
	sizeMB int
}

type inflight struct {
	done   chan struct{}
	handle Handle
	err    error
}

// Manager is the RAM-budgeted model store. A budget of 0 means
// unbounded. The sum of footprints of loaded entries, plus reservations
// for in-flight loads, never exceeds the budget.
type Manager struct {
	mu       sync.RWMutex
	entries  map[string]*entry
	inflight map[string]*inflight
	budgetMB int
	usedMB   int

	load     LoadFunc
	estimate EstimateFunc
	logger   *utils.Logger
}

// New creates a manager with the given budget, loader and footprint
// estimator.
func New(budgetMB int, load LoadFunc, estimate EstimateFunc, logger *utils.Logger) *Manager {
	return &Manager{
		entries:  make(map[string]*entry),
		inflight: make(map[string]*inflight),
		budgetMB: budgetMB,
		load:     load,
		estimate: estimate,
		logger:   logger,
	}
}

// GetOrLoad returns the loaded instance for modelID, loading it on first
// use. Concurrent callers for the same key share one load and one
// handle. A load whose estimated footprint does not fit the remaining
// budget fails with the model-not-available sentinel, which lets the
// registry fall back to a remote provider.
func (m *Manager) GetOrLoad(ctx context.Context, modelID string) (Handle, error) {
	m.mu.RLock()
	if e, ok := m.entries[modelID]; ok {
		m.mu.RUnlock()
		return e.handle, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	// Re-check under the write lock: another caller may have finished
	// loading between the two lock acquisitions.
	if e, ok := m.entries[modelID]; ok {
		m.mu.Unlock()
		return e.handle, nil
	}
	if fl, ok := m.inflight[modelID]; ok {
		m.mu.Unlock()
		select {
		case <-fl.done:
			return fl.handle, fl.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	sizeMB, known := m.estimate(modelID)
	if !known {
		m.mu.Unlock()
		return nil, errors.ModelNotAvailable("manager", modelID)
	}
	if m.budgetMB > 0 && m.usedMB+sizeMB > m.budgetMB {
		usedMB := m.usedMB
		m.mu.Unlock()
		m.logger.WithModel(modelID).
			WithField("size_mb", sizeMB).
			WithField("used_mb", usedMB).
			WithField("budget_mb", m.budgetMB).
			Warn("Model load refused, RAM budget exceeded")
		return nil, errors.ModelNotAvailable("manager", modelID)
	}

	// Reserve the footprint before releasing the lock so the budget
	// check and the registration cannot race with another load.
	m.usedMB += sizeMB
	fl := &inflight{done: make(chan struct{})}
	m.inflight[modelID] = fl
	m.mu.Unlock()

	handle, err := m.load(ctx, modelID)

	m.mu.Lock()
	delete(m.inflight, modelID)
	if err != nil {
		m.usedMB -= sizeMB
	} else {
		m.entries[modelID] = &entry{handle: handle, sizeMB: sizeMB}
	}
	m.mu.Unlock()

	fl.handle = handle
	fl.err = err
	close(fl.done)

	if err != nil {
		m.logger.WithModel(modelID).WithError(err).Error("Model load failed")
		return nil, err
	}
	m.logger.WithModel(modelID).WithField("size_mb", sizeMB).Info("Model loaded")
	return handle, nil
}

// Unload removes an entry and frees its budget allocation, closing the
// handle. Unloading an unknown key is a no-op.
func (m *Manager) Unload(modelID string) error {
	m.mu.Lock()
	e, ok := m.entries[modelID]
	if ok {
		delete(m.entries, modelID)
		m.usedMB -= e.sizeMB
	}
	m.mu.Unlock()

	if !ok {
		return nil
	}
	m.logger.WithModel(modelID).WithField("size_mb", e.sizeMB).Info("Model unloaded")
	return e.handle.Close()
}

// LoadedModels returns the identifiers of currently loaded models,
// sorted for stable output.
func (m *Manager) LoadedModels() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.entries))
	for id := range m.entries {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Usage returns the current resident estimate and the configured budget
// in MB. A budget of 0 means unbounded.
func (m *Manager) Usage() (usedMB, budgetMB int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.usedMB, m.budgetMB
}

// Close unloads every entry.
func (m *Manager) Close() error {
	var firstErr error
	for _, id := range m.LoadedModels() {
		if err := m.Unload(id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
