package mapping

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Logger defines the logging interface used by the Allocator.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Allocator hands out handles for endpoint attributes and keeps the mapping
// in sync with its Store.
//
// Each mutation writes the full mapping and then reloads it from the store
// before returning.
type Allocator struct {
	store  Store
	mu     sync.RWMutex
	byID   map[string]Entry
	byH    map[int]string
	logger Logger
}

// NewAllocator creates an allocator backed by store. Call Load before use.
func NewAllocator(store Store) *Allocator {
	return &Allocator{
		store:  store,
		byID:   make(map[string]Entry),
		byH:    make(map[int]string),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the allocator.
func (a *Allocator) SetLogger(logger Logger) {
	a.logger = logger
}

// Load replaces the in-memory mapping with the store's contents.
func (a *Allocator) Load(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reloadLocked(ctx)
}

func (a *Allocator) reloadLocked(ctx context.Context) error {
	entries, err := a.store.LoadMapping(ctx)
	if err != nil {
		return fmt.Errorf("loading mapping: %w", err)
	}
	if err := validateSet(entries); err != nil {
		return fmt.Errorf("loading mapping: %w", err)
	}

	a.byID = make(map[string]Entry, len(entries))
	a.byH = make(map[int]string, len(entries))
	for _, e := range entries {
		a.byID[e.ExternalID] = e
		a.byH[e.Handle] = e.ExternalID
	}
	return nil
}

// saveLocked persists entries then reloads the in-memory view.
func (a *Allocator) saveLocked(ctx context.Context, entries []Entry) error {
	if err := a.store.SaveMapping(ctx, entries); err != nil {
		return fmt.Errorf("saving mapping: %w", err)
	}
	return a.reloadLocked(ctx)
}

func (a *Allocator) entriesLocked() []Entry {
	out := make([]Entry, 0, len(a.byH))
	for _, h := range slices.Sorted(maps.Keys(a.byH)) {
		out = append(out, a.byID[a.byH[h]])
	}
	return out
}

func (a *Allocator) nextFreeLocked() (int, error) {
	for h := MinHandle; h <= MaxHandle; h++ {
		if _, used := a.byH[h]; !used {
			return h, nil
		}
	}
	return 0, ErrPoolExhausted
}

// Allocate returns the handle mapped to key, creating the mapping with the
// lowest free handle when none exists.
func (a *Allocator) Allocate(ctx context.Context, key Key) (int, error) {
	id := key.ExternalID()

	a.mu.Lock()
	defer a.mu.Unlock()

	if e, ok := a.byID[id]; ok {
		return e.Handle, nil
	}

	// The pool is computed over the persisted mapping, not the cached one.
	if err := a.reloadLocked(ctx); err != nil {
		return 0, fmt.Errorf("allocating %s: %w", id, err)
	}
	if e, ok := a.byID[id]; ok {
		return e.Handle, nil
	}

	handle, err := a.nextFreeLocked()
	if err != nil {
		return 0, fmt.Errorf("allocating %s: %w", id, err)
	}

	entry := Entry{
		ExternalID: id,
		NodeID:     key.NodeID,
		EndpointID: key.EndpointID,
		Attribute:  key.Attribute,
		Handle:     handle,
	}
	if err := entry.Validate(); err != nil {
		return 0, err
	}

	if err := a.saveLocked(ctx, append(a.entriesLocked(), entry)); err != nil {
		return 0, fmt.Errorf("allocating %s: %w", id, err)
	}

	stored, ok := a.byID[id]
	if !ok {
		return 0, fmt.Errorf("allocating %s: entry missing after reload", id)
	}

	a.logger.Info("handle allocated", "external_id", id, "handle", stored.Handle)
	return stored.Handle, nil
}

// Release removes the entry owning handle. It returns nil, nil when the
// handle is not mapped.
func (a *Allocator) Release(ctx context.Context, handle int) (*Entry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Pick up removals made by other writers before deciding.
	if err := a.reloadLocked(ctx); err != nil {
		return nil, err
	}

	id, ok := a.byH[handle]
	if !ok {
		return nil, nil
	}
	removed := a.byID[id]

	remaining := slices.DeleteFunc(a.entriesLocked(), func(e Entry) bool {
		return e.Handle == handle
	})
	if err := a.saveLocked(ctx, remaining); err != nil {
		return nil, fmt.Errorf("releasing handle %d: %w", handle, err)
	}

	a.logger.Info("handle released", "external_id", removed.ExternalID, "handle", handle)
	return &removed, nil
}

// Reconcile drops every entry whose handle is not in live and persists the
// result once. It returns the removed entries.
func (a *Allocator) Reconcile(ctx context.Context, live map[int]struct{}) ([]Entry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var kept, removed []Entry
	for _, e := range a.entriesLocked() {
		if _, ok := live[e.Handle]; ok {
			kept = append(kept, e)
		} else {
			removed = append(removed, e)
		}
	}
	if len(removed) == 0 {
		return nil, nil
	}

	if err := a.saveLocked(ctx, kept); err != nil {
		return nil, fmt.Errorf("reconciling mapping: %w", err)
	}

	for _, e := range removed {
		a.logger.Info("stale mapping removed", "external_id", e.ExternalID, "handle", e.Handle)
	}
	return removed, nil
}

// Lookup returns the entry for key.
func (a *Allocator) Lookup(key Key) (Entry, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	e, ok := a.byID[key.ExternalID()]
	return e, ok
}

// ByHandle returns the entry owning handle.
func (a *Allocator) ByHandle(handle int) (Entry, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	id, ok := a.byH[handle]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %d", ErrHandleNotFound, handle)
	}
	return a.byID[id], nil
}

// Entries returns every entry ordered by handle.
func (a *Allocator) Entries() []Entry {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.entriesLocked()
}

// Len returns the number of handles in use.
func (a *Allocator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.byH)
}

// NextFree returns the handle the next allocation would take.
func (a *Allocator) NextFree() (int, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.nextFreeLocked()
}
