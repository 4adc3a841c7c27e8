package device

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry is the host's device table: a cached Repository plus the command
// and removal hooks the bridge attaches to.
//
// All methods are safe for concurrent use. Hooks are called without any
// registry lock held.
type Registry struct {
	repo Repository

	cache   map[int]*Device
	cacheMu sync.RWMutex

	// writeMu serialises repository writes with their cache update.
	writeMu sync.Mutex

	hooksMu   sync.RWMutex
	onCommand CommandHandler
	onRemove  RemoveHandler

	logger Logger
}

// NewRegistry creates a registry over repo. Call RefreshCache on startup.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[int]*Device),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// SetCommandHandler attaches the receiver of user commands.
func (r *Registry) SetCommandHandler(h CommandHandler) {
	r.hooksMu.Lock()
	r.onCommand = h
	r.hooksMu.Unlock()
}

// SetRemoveHandler attaches the receiver of device removals.
func (r *Registry) SetRemoveHandler(h RemoveHandler) {
	r.hooksMu.Lock()
	r.onRemove = h
	r.hooksMu.Unlock()
}

// RefreshCache reloads every device from the repository.
func (r *Registry) RefreshCache(ctx context.Context) error {
	devices, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	cache := make(map[int]*Device, len(devices))
	for i := range devices {
		cache[devices[i].Handle] = devices[i].DeepCopy()
	}

	r.cacheMu.Lock()
	r.cache = cache
	r.cacheMu.Unlock()

	r.logger.Info("device cache refreshed", "count", len(devices))
	return nil
}

// CreateOrUpdateDevice stores u under its handle. An update that changes
// nothing is not written.
func (r *Registry) CreateOrUpdateDevice(ctx context.Context, u DeviceUpdate) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	r.cacheMu.RLock()
	existing, ok := r.cache[u.Handle]
	r.cacheMu.RUnlock()

	if ok && u.sameAs(existing) {
		return nil
	}

	d := &Device{}
	if ok {
		d = existing.DeepCopy()
	}
	u.apply(d)

	if err := r.repo.Upsert(ctx, d); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.cache[d.Handle] = d.DeepCopy()
	r.cacheMu.Unlock()

	if ok {
		r.logger.Debug("device updated", "handle", d.Handle, "name", d.Name, "level", d.Level, "enabled", d.Enabled)
	} else {
		r.logger.Info("device created", "handle", d.Handle, "name", d.Name, "external_id", d.ExternalID)
	}
	return nil
}

// Handles returns the set of handles with a stored device.
func (r *Registry) Handles(ctx context.Context) (map[int]struct{}, error) {
	devices, err := r.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing device handles: %w", err)
	}
	handles := make(map[int]struct{}, len(devices))
	for _, d := range devices {
		handles[d.Handle] = struct{}{}
	}
	return handles, nil
}

// GetDevice returns a copy of the device owning handle.
func (r *Registry) GetDevice(ctx context.Context, handle int) (*Device, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[handle]
	r.cacheMu.RUnlock()
	if ok {
		return cached.DeepCopy(), nil
	}

	d, err := r.repo.Get(ctx, handle)
	if err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	r.cache[handle] = d.DeepCopy()
	r.cacheMu.Unlock()
	return d, nil
}

// ListDevices returns copies of every cached device ordered by handle.
func (r *Registry) ListDevices() []Device {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	devices := make([]Device, 0, len(r.cache))
	for _, h := range slices.Sorted(maps.Keys(r.cache)) {
		devices = append(devices, *r.cache[h].DeepCopy())
	}
	return devices
}

// DeleteDevice removes the device and then runs the remove hook. The device
// stays deleted when the hook fails.
func (r *Registry) DeleteDevice(ctx context.Context, handle int) error {
	r.writeMu.Lock()
	err := r.repo.Delete(ctx, handle)
	if err == nil || errors.Is(err, ErrDeviceNotFound) {
		r.cacheMu.Lock()
		delete(r.cache, handle)
		r.cacheMu.Unlock()
	}
	r.writeMu.Unlock()
	if err != nil {
		return err
	}

	r.logger.Info("device deleted", "handle", handle)

	r.hooksMu.RLock()
	hook := r.onRemove
	r.hooksMu.RUnlock()
	if hook == nil {
		return nil
	}
	if err := hook(ctx, handle); err != nil {
		return fmt.Errorf("device %d removed but hook failed: %w", handle, err)
	}
	return nil
}

// SendCommand validates cmd against the device and hands it to the command
// handler. ActionOn is resolved to the device's current level.
func (r *Registry) SendCommand(ctx context.Context, handle int, cmd Command) error {
	d, err := r.GetDevice(ctx, handle)
	if err != nil {
		return err
	}
	if err := ValidateCommand(d, cmd); err != nil {
		return err
	}
	if cmd.Action == ActionOn {
		cmd = Command{Action: ActionSetLevel, Level: d.Level}
	}

	r.hooksMu.RLock()
	hook := r.onCommand
	r.hooksMu.RUnlock()
	if hook == nil {
		return ErrNoCommandHandler
	}

	r.logger.Debug("device command", "handle", handle, "action", cmd.Action, "level", cmd.Level)
	return hook(ctx, handle, cmd)
}

// GetDeviceCount returns the number of cached devices.
func (r *Registry) GetDeviceCount() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}

// Stats summarises the device table.
type Stats struct {
	Total   int          `json:"total"`
	Enabled int          `json:"enabled"`
	ByKind  map[Kind]int `json:"by_kind"`
}

// GetStats counts cached devices.
func (r *Registry) GetStats() Stats {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	s := Stats{Total: len(r.cache), ByKind: make(map[Kind]int)}
	for _, d := range r.cache {
		s.ByKind[d.Kind]++
		if d.Enabled {
			s.Enabled++
		}
	}
	return s
}
