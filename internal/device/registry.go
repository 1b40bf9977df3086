package device

import (
	"context"
	"fmt"
	"sort"
	"strings"
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

// Registry is the gateway's device catalogue. It wraps a Repository with an
// in-memory cache keyed by IEEE address and an index of friendly names.
//
// All public methods are thread-safe.
type Registry struct {
	repo    Repository
	cache   map[string]*Device // by IEEE address
	names   map[string]string  // lower-cased friendly name -> IEEE address
	cacheMu sync.RWMutex
	logger  Logger
}

// NewRegistry creates a new device registry backed by repo.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*Device),
		names:  make(map[string]string),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all devices from the repository.
// This should be called on application startup.
func (r *Registry) RefreshCache(ctx context.Context) error {
	devices, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.cache = make(map[string]*Device, len(devices))
	r.names = make(map[string]string, len(devices))
	for i := range devices {
		r.cacheLocked(&devices[i])
	}

	r.logger.Info("device cache refreshed", "count", len(devices))
	return nil
}

// cacheLocked stores a copy of d. cacheMu must be held for writing.
func (r *Registry) cacheLocked(d *Device) {
	if old, ok := r.cache[d.IEEEAddress]; ok && old.FriendlyName != "" {
		delete(r.names, strings.ToLower(old.FriendlyName))
	}
	r.cache[d.IEEEAddress] = d.DeepCopy()
	if d.FriendlyName != "" {
		r.names[strings.ToLower(d.FriendlyName)] = d.IEEEAddress
	}
}

// Resolve maps an MQTT device selector to a device. The selector is tried as
// a friendly name first (case-insensitive), then as an IEEE address.
// Returns ErrDeviceNotFound if neither matches.
func (r *Registry) Resolve(ctx context.Context, selector string) (*Device, error) {
	if selector == "" {
		return nil, ErrDeviceNotFound
	}

	r.cacheMu.RLock()
	ieee, byName := r.names[strings.ToLower(selector)]
	r.cacheMu.RUnlock()

	if byName {
		return r.GetDevice(ctx, ieee)
	}
	if IsIEEEAddress(selector) {
		return r.GetDevice(ctx, NormaliseIEEE(selector))
	}
	return nil, fmt.Errorf("%w: %q", ErrDeviceNotFound, selector)
}

// GetDevice retrieves a device by IEEE address.
// The returned device is a deep copy; callers can safely modify it.
func (r *Registry) GetDevice(ctx context.Context, ieee string) (*Device, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[ieee]
	r.cacheMu.RUnlock()

	if ok {
		return cached.DeepCopy(), nil
	}

	d, err := r.repo.GetByIEEE(ctx, ieee)
	if err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	r.cacheLocked(d)
	r.cacheMu.Unlock()

	return d, nil
}

// ListDevices returns all cached devices ordered by friendly name.
func (r *Registry) ListDevices() []Device {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	devices := make([]Device, 0, len(r.cache))
	for _, d := range r.cache {
		devices = append(devices, *d.DeepCopy())
	}
	sort.Slice(devices, func(i, j int) bool {
		return devices[i].Name() < devices[j].Name()
	})
	return devices
}

// Count returns the number of cached devices.
func (r *Registry) Count() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}

// Upsert validates and stores a device, keeping any existing state.
// A device without a friendly name is named after its IEEE address.
func (r *Registry) Upsert(ctx context.Context, d *Device) error {
	d.IEEEAddress = NormaliseIEEE(d.IEEEAddress)
	if d.FriendlyName == "" {
		d.FriendlyName = d.IEEEAddress
	}
	if err := ValidateDevice(d); err != nil {
		return err
	}

	r.cacheMu.RLock()
	owner, taken := r.names[strings.ToLower(d.FriendlyName)]
	r.cacheMu.RUnlock()
	if taken && owner != d.IEEEAddress {
		return fmt.Errorf("%w: %q belongs to %s", ErrNameConflict, d.FriendlyName, owner)
	}

	if err := r.repo.Upsert(ctx, d); err != nil {
		return err
	}

	stored, err := r.repo.GetByIEEE(ctx, d.IEEEAddress)
	if err != nil {
		return fmt.Errorf("reloading device: %w", err)
	}

	r.cacheMu.Lock()
	r.cacheLocked(stored)
	r.cacheMu.Unlock()

	r.logger.Debug("device stored", "ieee_address", d.IEEEAddress, "friendly_name", d.FriendlyName)
	return nil
}

// Seed upserts every device in devices. It stops at the first failure.
func (r *Registry) Seed(ctx context.Context, devices []Device) error {
	for i := range devices {
		if err := r.Upsert(ctx, &devices[i]); err != nil {
			return fmt.Errorf("seeding device %s: %w", devices[i].IEEEAddress, err)
		}
	}
	r.logger.Info("device catalogue seeded", "count", len(devices))
	return nil
}

// Remove deletes a device from the repository and the cache.
func (r *Registry) Remove(ctx context.Context, ieee string) error {
	ieee = NormaliseIEEE(ieee)
	if err := r.repo.Delete(ctx, ieee); err != nil {
		return err
	}

	r.cacheMu.Lock()
	if d, ok := r.cache[ieee]; ok {
		delete(r.names, strings.ToLower(d.FriendlyName))
		delete(r.cache, ieee)
	}
	r.cacheMu.Unlock()
	return nil
}

// LoadState returns the last-known state of a device.
func (r *Registry) LoadState(ctx context.Context, ieee string) (State, error) {
	d, err := r.GetDevice(ctx, ieee)
	if err != nil {
		return nil, err
	}
	if d.State == nil {
		return State{}, nil
	}
	return d.State, nil
}

// MergeState applies patch to a device's state, persists it, and returns the
// merged result.
func (r *Registry) MergeState(ctx context.Context, ieee string, patch State) (State, error) {
	merged, err := r.repo.MergeState(ctx, ieee, patch)
	if err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	if d, ok := r.cache[ieee]; ok {
		d.State = State(deepCopyMap(merged))
	}
	r.cacheMu.Unlock()

	return merged, nil
}
