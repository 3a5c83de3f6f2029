package gridmeter

import (
	"context"
	"math"
	"sync"

	"github.com/cepro/besscontroller/devices"
)

// MockGridMeter is an in-memory GridMeter that reports a settable net
// power reading, answering immediately with no I/O.
type MockGridMeter struct {
	mu sync.Mutex

	netKW       float64
	frequencyHz float64
	voltageV    float64
}

func NewMockGridMeter() *MockGridMeter {
	return &MockGridMeter{frequencyHz: 50.0, voltageV: 230.0}
}

func (m *MockGridMeter) Read(ctx context.Context) (devices.MeterReading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return devices.MeterReading{
		ImportKW:    math.Max(0, m.netKW),
		ExportKW:    math.Max(0, -m.netKW),
		FrequencyHz: m.frequencyHz,
		VoltageV:    m.voltageV,
	}, nil
}

// SetNetPower lets tests drive the simulated meter: positive is import,
// negative is export.
func (m *MockGridMeter) SetNetPower(kw float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.netKW = kw
}
