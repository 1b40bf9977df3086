package device

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// MockRepository is a test implementation of Repository.
type MockRepository struct {
	mu      sync.Mutex
	devices map[string]*Device
	getHits int
	// For testing error paths
	listErr   error
	upsertErr error
	mergeErr  error
}

func NewMockRepository() *MockRepository {
	return &MockRepository{devices: make(map[string]*Device)}
}

func (m *MockRepository) GetByIEEE(_ context.Context, ieee string) (*Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getHits++

	if d, ok := m.devices[ieee]; ok {
		return d.DeepCopy(), nil
	}
	return nil, ErrDeviceNotFound
}

func (m *MockRepository) List(_ context.Context) ([]Device, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	devices := make([]Device, 0, len(m.devices))
	for _, d := range m.devices {
		devices = append(devices, *d.DeepCopy())
	}
	return devices, nil
}

func (m *MockRepository) Upsert(_ context.Context, d *Device) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cpy := d.DeepCopy()
	if existing, ok := m.devices[d.IEEEAddress]; ok {
		cpy.State = existing.State
	}
	m.devices[d.IEEEAddress] = cpy
	return nil
}

func (m *MockRepository) Delete(_ context.Context, ieee string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.devices[ieee]; !ok {
		return ErrDeviceNotFound
	}
	delete(m.devices, ieee)
	return nil
}

func (m *MockRepository) MergeState(_ context.Context, ieee string, patch State) (State, error) {
	if m.mergeErr != nil {
		return nil, m.mergeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.devices[ieee]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	d.State = d.State.Merge(patch)
	return d.State.Merge(nil), nil
}

const (
	testBulbIEEE   = "0x000b57fffec6a5b2"
	testSwitchIEEE = "0x00158d0001e4b1a2"
)

func seededRegistry(t *testing.T) (*Registry, *MockRepository) {
	t.Helper()
	repo := NewMockRepository()
	reg := NewRegistry(repo)

	err := reg.Seed(context.Background(), []Device{
		{IEEEAddress: testBulbIEEE, FriendlyName: "kitchen/ceiling", ModelID: "TRADFRI bulb E27 WS opal 980lm"},
		{IEEEAddress: "0x00158D0001E4B1A2", FriendlyName: "Hall Switch", ModelID: "lumi.ctrl_neutral2"},
	})
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	return reg, repo
}

func TestRegistry_Resolve(t *testing.T) {
	reg, _ := seededRegistry(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		selector string
		wantIEEE string
		wantErr  bool
	}{
		{name: "friendly name", selector: "kitchen/ceiling", wantIEEE: testBulbIEEE},
		{name: "friendly name other case", selector: "hall switch", wantIEEE: testSwitchIEEE},
		{name: "ieee address", selector: testBulbIEEE, wantIEEE: testBulbIEEE},
		{name: "ieee address upper case", selector: "0x000B57FFFEC6A5B2", wantIEEE: testBulbIEEE},
		{name: "unknown name", selector: "garage", wantErr: true},
		{name: "unknown ieee", selector: "0x0000000000000001", wantErr: true},
		{name: "empty", selector: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := reg.Resolve(ctx, tt.selector)
			if tt.wantErr {
				if !errors.Is(err, ErrDeviceNotFound) {
					t.Errorf("Resolve(%q) error = %v, want ErrDeviceNotFound", tt.selector, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve(%q) error = %v", tt.selector, err)
			}
			if d.IEEEAddress != tt.wantIEEE {
				t.Errorf("Resolve(%q) = %s, want %s", tt.selector, d.IEEEAddress, tt.wantIEEE)
			}
		})
	}
}

func TestRegistry_GetDeviceReturnsCopy(t *testing.T) {
	reg, _ := seededRegistry(t)
	ctx := context.Background()

	d, err := reg.GetDevice(ctx, testBulbIEEE)
	if err != nil {
		t.Fatalf("GetDevice() error = %v", err)
	}
	d.FriendlyName = "mutated"

	again, _ := reg.GetDevice(ctx, testBulbIEEE)
	if again.FriendlyName != "kitchen/ceiling" {
		t.Errorf("cache was mutated: FriendlyName = %q", again.FriendlyName)
	}
}

func TestRegistry_GetDeviceFallsBackToRepository(t *testing.T) {
	repo := NewMockRepository()
	repo.devices[testBulbIEEE] = &Device{IEEEAddress: testBulbIEEE, FriendlyName: "bulb", ModelID: "LWB010"}
	reg := NewRegistry(repo)
	ctx := context.Background()

	if _, err := reg.GetDevice(ctx, testBulbIEEE); err != nil {
		t.Fatalf("GetDevice() error = %v", err)
	}
	// Second lookup is served from cache, and the name index is populated.
	if _, err := reg.Resolve(ctx, "bulb"); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if repo.getHits != 1 {
		t.Errorf("repository hits = %d, want 1", repo.getHits)
	}
}

func TestRegistry_UpsertDefaultsNameAndRejectsConflicts(t *testing.T) {
	reg, _ := seededRegistry(t)
	ctx := context.Background()

	unnamed := &Device{IEEEAddress: "0x0017880104E45517", ModelID: "LWB010"}
	if err := reg.Upsert(ctx, unnamed); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if unnamed.FriendlyName != "0x0017880104e45517" {
		t.Errorf("FriendlyName = %q, want normalised IEEE address", unnamed.FriendlyName)
	}

	conflict := &Device{IEEEAddress: "0x0017880104e45518", FriendlyName: "Kitchen/Ceiling", ModelID: "LWB010"}
	if err := reg.Upsert(ctx, conflict); !errors.Is(err, ErrNameConflict) {
		t.Errorf("Upsert() error = %v, want ErrNameConflict", err)
	}

	invalid := &Device{IEEEAddress: "0x1234", FriendlyName: "x", ModelID: "LWB010"}
	if err := reg.Upsert(ctx, invalid); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("Upsert() error = %v, want ErrInvalidAddress", err)
	}

	if reg.Count() != 3 {
		t.Errorf("Count() = %d, want 3", reg.Count())
	}
}

func TestRegistry_RenameUpdatesIndex(t *testing.T) {
	reg, _ := seededRegistry(t)
	ctx := context.Background()

	renamed := &Device{IEEEAddress: testBulbIEEE, FriendlyName: "kitchen/pendant", ModelID: "TRADFRI bulb E27 WS opal 980lm"}
	if err := reg.Upsert(ctx, renamed); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if _, err := reg.Resolve(ctx, "kitchen/ceiling"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("old name still resolves: err = %v", err)
	}
	if d, err := reg.Resolve(ctx, "kitchen/pendant"); err != nil || d.IEEEAddress != testBulbIEEE {
		t.Errorf("Resolve(new name) = %v, %v", d, err)
	}
}

func TestRegistry_MergeState(t *testing.T) {
	reg, _ := seededRegistry(t)
	ctx := context.Background()

	if _, err := reg.MergeState(ctx, testBulbIEEE, State{"state": "ON", "brightness": 200}); err != nil {
		t.Fatalf("MergeState() error = %v", err)
	}
	merged, err := reg.MergeState(ctx, testBulbIEEE, State{"state": "OFF"})
	if err != nil {
		t.Fatalf("MergeState() error = %v", err)
	}
	if merged["state"] != "OFF" || merged["brightness"] != 200 {
		t.Errorf("merged = %v", merged)
	}

	loaded, err := reg.LoadState(ctx, testBulbIEEE)
	if err != nil {
		t.Fatalf("LoadState() error = %v", err)
	}
	if loaded["state"] != "OFF" {
		t.Errorf("cached state = %v", loaded)
	}

	if _, err := reg.MergeState(ctx, "0x0000000000000001", State{"state": "ON"}); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("MergeState(unknown) error = %v, want ErrDeviceNotFound", err)
	}
}

func TestRegistry_Remove(t *testing.T) {
	reg, _ := seededRegistry(t)
	ctx := context.Background()

	if err := reg.Remove(ctx, testSwitchIEEE); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := reg.Resolve(ctx, "Hall Switch"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("removed device still resolves: %v", err)
	}
	if err := reg.Remove(ctx, testSwitchIEEE); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("second Remove() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestRegistry_RefreshCache(t *testing.T) {
	repo := NewMockRepository()
	repo.devices[testBulbIEEE] = &Device{IEEEAddress: testBulbIEEE, FriendlyName: "bulb", ModelID: "LWB010"}
	reg := NewRegistry(repo)

	if err := reg.RefreshCache(context.Background()); err != nil {
		t.Fatalf("RefreshCache() error = %v", err)
	}
	if reg.Count() != 1 {
		t.Errorf("Count() = %d, want 1", reg.Count())
	}
	if got := reg.ListDevices(); len(got) != 1 || got[0].FriendlyName != "bulb" {
		t.Errorf("ListDevices() = %v", got)
	}

	repo.listErr = errors.New("disk gone")
	if err := reg.RefreshCache(context.Background()); err == nil {
		t.Error("RefreshCache() expected error")
	}
}
