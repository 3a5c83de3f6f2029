package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cepro/besscontroller/flowmodel"
)

func TestGaugeSetGet(t *testing.T) {
	var g Gauge
	g.Set(3.25)
	assert.Equal(t, 3.25, g.Get())

	g.Set(-1.5)
	assert.Equal(t, -1.5, g.Get())
}

func TestCounterInc(t *testing.T) {
	var c Counter
	c.Inc()
	c.Inc()
	c.Inc()
	assert.Equal(t, uint64(3), c.Get())
}

func TestRegistry_ObserveSnapshot(t *testing.T) {
	r := NewRegistry()
	snap := &flowmodel.PowerSnapshot{
		PVKW:         5,
		HouseLoadKW:  2,
		BatteryKW:    1, // charging
		EVKW:         0,
		GridImportKW: 0,
		GridExportKW: 2,
		Timestamp:    time.Now(),
	}

	r.ObserveSnapshot(snap, 100)

	snapshot := r.Snapshot()
	assert.Equal(t, 5.0, snapshot.PVKW)
	assert.Equal(t, 2.0, snapshot.HouseLoadKW)
	assert.Equal(t, 1.0, snapshot.BatteryPowerKW)
	assert.InDelta(t, 0, snapshot.PowerBalanceErrorKW, 1e-9)
}
