package battery

import (
	"context"
	"sync"
	"time"

	"github.com/cepro/besscontroller/devices"
	"github.com/cepro/besscontroller/quantity"
)

// MockBattery is an in-memory Battery used by tests and simulation runs.
// It tracks state of charge by integrating the last commanded power over
// wall-clock time between reads, following the mock pattern of
// answering every call immediately with no I/O.
type MockBattery struct {
	mu sync.Mutex

	caps       devices.BatteryCapabilities
	socPct     float64
	powerKW    float64
	lastUpdate time.Time
}

// NewMockBattery creates a mock starting at initialSoCPct.
func NewMockBattery(caps devices.BatteryCapabilities, initialSoCPct float64) *MockBattery {
	return &MockBattery{
		caps:       caps,
		socPct:     quantity.Clamp(initialSoCPct, 0, 100),
		lastUpdate: time.Time{},
	}
}

func (m *MockBattery) ReadState(ctx context.Context) (devices.BatteryState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.integrate(time.Now())

	return devices.BatteryState{
		SoCPct:  m.socPct,
		PowerKW: m.powerKW,
		Status:  "direct",
	}, nil
}

func (m *MockBattery) SetPower(ctx context.Context, kw float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	m.integrate(now)
	m.powerKW = quantity.Clamp(kw, -m.caps.MaxDischargeKW, m.caps.MaxChargeKW)

	return nil
}

func (m *MockBattery) Capabilities() devices.BatteryCapabilities {
	return m.caps
}

// integrate advances state of charge by the energy moved at the current
// power setpoint since lastUpdate, then advances lastUpdate to now.
func (m *MockBattery) integrate(now time.Time) {
	if m.lastUpdate.IsZero() {
		m.lastUpdate = now
		return
	}
	elapsedH := now.Sub(m.lastUpdate).Hours()
	if elapsedH <= 0 || m.caps.CapacityKWh <= 0 {
		m.lastUpdate = now
		return
	}

	deltaKWh := m.powerKW * elapsedH
	deltaPct := deltaKWh / m.caps.CapacityKWh * 100
	m.socPct = quantity.Clamp(m.socPct+deltaPct, 0, 100)
	m.lastUpdate = now
}
