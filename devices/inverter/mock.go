package inverter

import (
	"context"
	"math"
	"sync"

	"github.com/cepro/besscontroller/devices"
)

// MockInverter is an in-memory SolarInverter for tests and simulation.
type MockInverter struct {
	mu          sync.Mutex
	acPowerKW   float64
	exportLimit float64
}

func NewMockInverter() *MockInverter {
	return &MockInverter{exportLimit: math.MaxFloat64}
}

func (m *MockInverter) ReadState(ctx context.Context) (devices.InverterState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	acKW := m.acPowerKW
	if acKW > m.exportLimit {
		acKW = m.exportLimit
	}
	return devices.InverterState{
		ACPowerKW:     acKW,
		DCPowerKW:     acKW / 0.97,
		EfficiencyPct: 97,
		TemperatureC:  35,
		Mode:          "running",
	}, nil
}

func (m *MockInverter) SetExportLimit(ctx context.Context, kw float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exportLimit = kw
	return nil
}

// SetAvailablePower lets tests drive the simulated PV production available
// before any export curtailment is applied.
func (m *MockInverter) SetAvailablePower(kw float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acPowerKW = kw
}
