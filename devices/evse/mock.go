package evse

import (
	"context"
	"sync"

	"github.com/cepro/besscontroller/devices"
	"github.com/cepro/besscontroller/quantity"
)

// MockEVSE is an in-memory EVSE used by tests and simulation runs. It
// answers every call immediately with no I/O and assumes the commanded
// current takes effect instantly.
type MockEVSE struct {
	mu sync.Mutex

	caps      devices.EVSECapabilities
	connected bool
	currentA  float64
	energyKWh float64
}

func NewMockEVSE(caps devices.EVSECapabilities, connected bool) *MockEVSE {
	return &MockEVSE{caps: caps, connected: connected}
}

func (m *MockEVSE) ReadState(ctx context.Context) (devices.EVSEState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	powerKW := m.currentA * float64(m.caps.Phases) * 230.0 / 1000.0
	return devices.EVSEState{
		Connected:          m.connected,
		Charging:           m.connected && m.currentA > 0,
		CurrentA:           m.currentA,
		PowerKW:            powerKW,
		EnergyDeliveredKWh: m.energyKWh,
	}, nil
}

func (m *MockEVSE) SetCurrent(ctx context.Context, a float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a > 0 && a < m.caps.MinCurrentA {
		a = 0
	}
	m.currentA = quantity.Clamp(a, 0, m.caps.MaxCurrentA)
	return nil
}

func (m *MockEVSE) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	return nil
}

func (m *MockEVSE) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentA = 0
	return nil
}

func (m *MockEVSE) Capabilities() devices.EVSECapabilities {
	return m.caps
}

// SetConnected lets tests simulate a vehicle plugging/unplugging.
func (m *MockEVSE) SetConnected(connected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = connected
	if !connected {
		m.currentA = 0
	}
}
