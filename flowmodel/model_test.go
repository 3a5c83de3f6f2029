package flowmodel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedSchedule is a single-interval ScheduleSource. The tests use it in
// place of *schedule.Schedule because the schedule package imports
// flowmodel.
type fixedSchedule struct {
	id         string
	start, end time.Time
	setpointKW float64
}

func (s fixedSchedule) PowerAt(t time.Time) (float64, bool) {
	if t.Before(s.start) || !t.Before(s.end) {
		return 0, false
	}
	return s.setpointKW, true
}

func (s fixedSchedule) ScheduleID() string { return s.id }

func testConstraints() Constraints {
	return Constraints{
		Physical: PhysicalConstraints{
			MaxGridImportKW:     20,
			MaxGridExportKW:     10,
			MaxBatteryChargeKW:  5,
			MaxBatteryDischarge: 5,
			EVSEMinCurrentA:     6,
			EVSEMaxCurrentA:     32,
			Phases:              1,
			PhaseVoltageV:       230,
		},
		Safety: SafetyConstraints{
			BatteryMinSoCPct:       10,
			BatteryMaxSoCPct:       95,
			MaxBatteryCyclesPerDay: 3,
			MaxBatteryTempC:        45,
		},
		Economic: EconomicConstraints{
			GridPrice:               0.20,
			ArbitrageThresholdPrice: 0.30,
			ArbitrageHysteresis:     0.05,
		},
		Version: "test",
	}
}

func testInputs() PowerFlowInputs {
	return PowerFlowInputs{
		PVProductionKW: 3,
		HouseLoadKW:    1,
		BatterySoCPct:  50,
		BatteryTempC:   25,
		Timestamp:      time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC),
	}
}

func TestComputeFlows_HouseLoadServedFromPVFirst(t *testing.T) {
	snap, err := ComputeFlows(testInputs(), testConstraints(), nil)
	require.NoError(t, err)

	assert.InDelta(t, 0, snap.GridImportKW, 0.01, "house load should be fully served by PV surplus")
}

func TestComputeFlows_ShortfallImportsFromGrid(t *testing.T) {
	inputs := testInputs()
	inputs.PVProductionKW = 0
	inputs.HouseLoadKW = 2

	snap, err := ComputeFlows(inputs, testConstraints(), nil)
	require.NoError(t, err)

	assert.InDelta(t, 2, snap.GridImportKW, 0.01)
}

func TestComputeFlows_NeverImportsAndExportsSimultaneously(t *testing.T) {
	snap, err := ComputeFlows(testInputs(), testConstraints(), nil)
	require.NoError(t, err)
	assert.NoError(t, snap.VerifyNoSimultaneousFlow())
}

func TestComputeFlows_EVChargesBeforeBattery(t *testing.T) {
	inputs := testInputs()
	inputs.PVProductionKW = 10
	inputs.EV = &EVState{
		Connected:      true,
		SoCPct:         40,
		CapacityKWh:    50,
		MaxChargeKW:    7,
		TargetSoCPct:   90,
		DepartureTime:  inputs.Timestamp.Add(time.Hour),
		HasDepartureAt: true,
	}

	snap, err := ComputeFlows(inputs, testConstraints(), nil)
	require.NoError(t, err)

	assert.Greater(t, snap.EVKW, 0.0, "an urgent, connected EV should draw power")
}

func TestComputeFlows_EVBelowMinCurrentSnapsToZero(t *testing.T) {
	inputs := testInputs()
	inputs.PVProductionKW = 1
	inputs.HouseLoadKW = 1
	inputs.EV = &EVState{
		Connected:      true,
		SoCPct:         89,
		CapacityKWh:    50,
		MaxChargeKW:    7,
		TargetSoCPct:   90,
		DepartureTime:  inputs.Timestamp.Add(24 * time.Hour),
		HasDepartureAt: true,
	}

	// PV exactly covers the house, so the fuse leaves 0.5 kW for the EV:
	// below the 1.38 kW that 6 A at 230 V on one phase delivers.
	constraints := testConstraints()
	constraints.Physical.MaxGridImportKW = 0.5

	snap, err := ComputeFlows(inputs, constraints, nil)
	require.NoError(t, err)

	assert.Equal(t, 0.0, snap.EVKW)
}

func TestComputeFlows_ForceChargeBelowMinSoC(t *testing.T) {
	inputs := testInputs()
	inputs.BatterySoCPct = 5 // below BatteryMinSoCPct=10

	snap, err := ComputeFlows(inputs, testConstraints(), nil)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, snap.BatteryKW, 0.0, "battery must never discharge below the minimum SoC")
}

func TestComputeFlows_ForceDischargeAboveMaxSoC(t *testing.T) {
	inputs := testInputs()
	inputs.BatterySoCPct = 96 // above BatteryMaxSoCPct=95

	snap, err := ComputeFlows(inputs, testConstraints(), nil)
	require.NoError(t, err)

	assert.LessOrEqual(t, snap.BatteryKW, 0.0, "battery must never charge above the maximum SoC")
}

func TestComputeFlows_FollowsSchedule(t *testing.T) {
	sched := fixedSchedule{
		id:         "sched-1",
		start:      testInputs().Timestamp.Add(-time.Hour),
		end:        testInputs().Timestamp.Add(time.Hour),
		setpointKW: 3,
	}

	inputs := testInputs()
	inputs.PVProductionKW = 10

	snap, err := ComputeFlows(inputs, testConstraints(), sched)
	require.NoError(t, err)

	assert.InDelta(t, 3, snap.BatteryKW, 0.01)
	assert.Equal(t, ControlModeSchedule, snap.ControlMode)
	require.NotNil(t, snap.ScheduleID)
	assert.Equal(t, "sched-1", *snap.ScheduleID)
	require.NotNil(t, snap.DeviationFromScheduleKW)
	assert.InDelta(t, 0, *snap.DeviationFromScheduleKW, 0.01, "battery followed the schedule exactly, so deviation should be ~0")
}

func TestComputeFlows_NoScheduleLeavesScheduleFieldsNil(t *testing.T) {
	snap, err := ComputeFlows(testInputs(), testConstraints(), nil)
	require.NoError(t, err)

	assert.Nil(t, snap.ScheduleID)
	assert.Nil(t, snap.DeviationFromScheduleKW)
}

func TestComputeFlows_CopiesBatteryTemperature(t *testing.T) {
	inputs := testInputs()
	inputs.BatteryTempC = 33.5

	snap, err := ComputeFlows(inputs, testConstraints(), nil)
	require.NoError(t, err)

	require.NotNil(t, snap.BatteryTempC, "every committed snapshot must carry a battery temperature for the safety monitor's over-temperature veto to see")
	assert.Equal(t, 33.5, *snap.BatteryTempC)
}

func TestComputeFlows_SetsSpotPriceAndEstimatedCost(t *testing.T) {
	inputs := testInputs()
	inputs.PVProductionKW = 0
	inputs.HouseLoadKW = 2

	constraints := testConstraints()
	constraints.Economic.GridPrice = 0.25
	constraints.Economic.ExportPrice = 0.05

	snap, err := ComputeFlows(inputs, constraints, nil)
	require.NoError(t, err)

	assert.Equal(t, 0.25, snap.SpotPrice)
	assert.InDelta(t, snap.GridImportKW*0.25-snap.GridExportKW*0.05, snap.EstimatedCost, 0.01)
}

func TestComputeFlows_ArbitrageDischargeAbovePriceThreshold(t *testing.T) {
	constraints := testConstraints()
	constraints.Economic.GridPrice = 0.40 // above threshold 0.30

	inputs := testInputs()
	inputs.PVProductionKW = 0
	inputs.HouseLoadKW = 2

	snap, err := ComputeFlows(inputs, constraints, nil)
	require.NoError(t, err)

	assert.Less(t, snap.BatteryKW, 0.0, "battery should discharge to offset import when price is high")
	assert.Equal(t, ControlModeArbitrage, snap.ControlMode)
}

func TestComputeFlows_ExcessPVExportedWithinFuseLimit(t *testing.T) {
	inputs := testInputs()
	inputs.PVProductionKW = 30
	inputs.HouseLoadKW = 1

	snap, err := ComputeFlows(inputs, testConstraints(), nil)
	require.NoError(t, err)

	assert.LessOrEqual(t, snap.GridExportKW, testConstraints().Physical.MaxGridExportKW+0.01)
}

func TestComputeFlows_RejectsInvalidInputs(t *testing.T) {
	inputs := testInputs()
	inputs.BatterySoCPct = 150

	_, err := ComputeFlows(inputs, testConstraints(), nil)
	require.Error(t, err)

	var invalid *InvalidInputs
	assert.ErrorAs(t, err, &invalid)
}

func TestComputeFlows_ZeroTimestampRejected(t *testing.T) {
	inputs := testInputs()
	inputs.Timestamp = time.Time{}

	_, err := ComputeFlows(inputs, testConstraints(), nil)
	require.Error(t, err)
}

func TestEvUrgency_NoDeparture(t *testing.T) {
	ev := EVState{HasDepartureAt: false}
	assert.Equal(t, 0.0, evUrgency(ev, time.Now()))
}

func TestEvUrgency_PastDepartureIsMaximallyUrgent(t *testing.T) {
	now := time.Now()
	ev := EVState{
		HasDepartureAt: true,
		SoCPct:         20,
		TargetSoCPct:   90,
		DepartureTime:  now.Add(-time.Minute),
	}
	assert.Equal(t, 1.0, evUrgency(ev, now))
}

func TestEvUrgency_AlreadyAtTarget(t *testing.T) {
	now := time.Now()
	ev := EVState{
		HasDepartureAt: true,
		SoCPct:         95,
		TargetSoCPct:   90,
		DepartureTime:  now.Add(time.Hour),
	}
	assert.Equal(t, 0.0, evUrgency(ev, now))
}
