package safety

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cepro/besscontroller/flowmodel"
)

func floatPtr(v float64) *float64 { return &v }

func baseConstraints() flowmodel.SafetyConstraints {
	return flowmodel.SafetyConstraints{
		BatteryMinSoCPct:       10,
		BatteryMaxSoCPct:       95,
		MaxBatteryCyclesPerDay: 2,
		MaxBatteryTempC:        45,
	}
}

func basePhysical() flowmodel.PhysicalConstraints {
	return flowmodel.PhysicalConstraints{
		MaxGridImportKW: 20,
		MaxGridExportKW: 10,
	}
}

func TestMonitor_Check_AllowsNominalSnapshot(t *testing.T) {
	m := NewMonitor(baseConstraints())
	snap := &flowmodel.PowerSnapshot{
		BatterySoCPct: 50,
		BatteryTempC:  floatPtr(25),
		BatteryKW:     1,
		GridImportKW:  1,
	}

	v := m.Check(snap, basePhysical(), time.Now())
	assert.True(t, v.Allow)
}

func TestMonitor_Check_OverTemperatureVetoesBattery(t *testing.T) {
	m := NewMonitor(baseConstraints())
	snap := &flowmodel.PowerSnapshot{
		BatterySoCPct: 50,
		BatteryTempC:  floatPtr(50), // above MaxBatteryTempC=45
		BatteryKW:     3,
	}

	v := m.Check(snap, basePhysical(), time.Now())
	require.False(t, v.Allow)
	assert.Equal(t, 0.0, snap.BatteryKW)
}

func TestMonitor_Check_EmergencyLowSoCVetoesBattery(t *testing.T) {
	m := NewMonitor(baseConstraints())
	snap := &flowmodel.PowerSnapshot{
		BatterySoCPct: 2, // below the 5% emergency floor
		BatteryTempC:  floatPtr(25),
		BatteryKW:     -3,
	}

	v := m.Check(snap, basePhysical(), time.Now())
	require.False(t, v.Allow)
	assert.Equal(t, 0.0, snap.BatteryKW)
}

func TestMonitor_Check_EmergencyHighSoCVetoesBattery(t *testing.T) {
	m := NewMonitor(baseConstraints())
	snap := &flowmodel.PowerSnapshot{
		BatterySoCPct: 99, // above the 98% emergency ceiling
		BatteryTempC:  floatPtr(25),
		BatteryKW:     3,
	}

	v := m.Check(snap, basePhysical(), time.Now())
	require.False(t, v.Allow)
	assert.Equal(t, 0.0, snap.BatteryKW)
}

func TestMonitor_Check_FuseNearLimitDowngradesEVFirstOnSecondConsecutiveTick(t *testing.T) {
	m := NewMonitor(baseConstraints())
	phys := basePhysical() // MaxGridImportKW = 20, 95% = 19

	snap1 := &flowmodel.PowerSnapshot{
		BatterySoCPct: 50,
		BatteryTempC:  floatPtr(25),
		GridImportKW:  19.5,
		EVKW:          5,
	}
	v := m.Check(snap1, phys, time.Now())
	assert.True(t, v.Allow, "first tick near the limit should just start the streak")

	snap2 := &flowmodel.PowerSnapshot{
		BatterySoCPct: 50,
		BatteryTempC:  floatPtr(25),
		GridImportKW:  19.5,
		EVKW:          5,
	}
	v = m.Check(snap2, phys, time.Now())
	require.False(t, v.Allow)
	assert.Less(t, snap2.EVKW, 5.0, "EV power should be reduced before battery on sustained near-limit import")
}

func TestMonitor_Check_DailyCycleLimitClampsBattery(t *testing.T) {
	m := NewMonitor(baseConstraints())
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)

	// Each call alternates direction to accumulate half-cycles quickly.
	for i := 0; i < 5; i++ {
		kw := 3.0
		if i%2 == 1 {
			kw = -3.0
		}
		snap := &flowmodel.PowerSnapshot{
			BatterySoCPct: 50,
			BatteryTempC:  floatPtr(25),
			BatteryKW:     kw,
		}
		m.Check(snap, basePhysical(), now)
	}

	final := &flowmodel.PowerSnapshot{
		BatterySoCPct: 50,
		BatteryTempC:  floatPtr(25),
		BatteryKW:     3,
	}
	v := m.Check(final, basePhysical(), now)
	require.False(t, v.Allow)
	assert.Equal(t, 0.0, final.BatteryKW)
}
