package flowmodel

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseSnapshot() PowerSnapshot {
	return newSnapshot(3, 1, 1, 0, 0, 1, time.Now())
}

func TestNewSnapshot_RoundsToThreeDecimalPlaces(t *testing.T) {
	snap := newSnapshot(3.123456, 1, 1, 0, 0, 3, time.Now())
	assert.Equal(t, 3.123, snap.PVKW)
}

func TestVerifyPowerBalance_BalancedSnapshotPasses(t *testing.T) {
	snap := baseSnapshot()
	assert.NoError(t, snap.VerifyPowerBalance())
}

func TestVerifyPowerBalance_UnbalancedSnapshotFails(t *testing.T) {
	snap := baseSnapshot()
	snap.GridExportKW = 100 // no longer balances

	err := snap.VerifyPowerBalance()
	require.Error(t, err)

	var violation *PowerBalanceViolation
	assert.ErrorAs(t, err, &violation)
}

func TestVerifyNoSimultaneousFlow_RejectsBothDirections(t *testing.T) {
	snap := baseSnapshot()
	snap.GridImportKW = 2
	snap.GridExportKW = 2

	assert.Error(t, snap.VerifyNoSimultaneousFlow())
}

func TestVerifyFuseLimits_RejectsOverImport(t *testing.T) {
	snap := baseSnapshot()
	snap.GridImportKW = 100

	c := PhysicalConstraints{MaxGridImportKW: 20, MaxGridExportKW: 10, Phases: 1, PhaseVoltageV: 230}
	err := snap.VerifyFuseLimits(c)
	require.Error(t, err)

	var violation *FuseLimitViolation
	assert.ErrorAs(t, err, &violation)
}

func TestVerifyFuseLimits_RejectsOverExport(t *testing.T) {
	snap := baseSnapshot()
	snap.GridExportKW = 100

	c := PhysicalConstraints{MaxGridImportKW: 20, MaxGridExportKW: 10, Phases: 1, PhaseVoltageV: 230}
	assert.Error(t, snap.VerifyFuseLimits(c))
}

func TestVerifyBatteryRange_RejectsOverCharge(t *testing.T) {
	snap := baseSnapshot()
	snap.BatteryKW = 50

	c := PhysicalConstraints{MaxBatteryChargeKW: 5, MaxBatteryDischarge: 5}
	err := snap.VerifyBatteryRange(c)
	require.Error(t, err)

	var oor *BatterySoCOutOfRange
	assert.ErrorAs(t, err, &oor)
}

func TestVerifyEVRange_ZeroAlwaysAllowed(t *testing.T) {
	snap := baseSnapshot()
	snap.EVKW = 0

	c := PhysicalConstraints{EVSEMinCurrentA: 6, EVSEMaxCurrentA: 32, Phases: 1, PhaseVoltageV: 230}
	assert.NoError(t, snap.VerifyEVRange(c))
}

func TestVerifyEVRange_RejectsBelowMinCurrent(t *testing.T) {
	snap := baseSnapshot()
	snap.EVKW = 0.1 // far below the minimum current's equivalent power

	c := PhysicalConstraints{EVSEMinCurrentA: 6, EVSEMaxCurrentA: 32, Phases: 1, PhaseVoltageV: 230}
	assert.Error(t, snap.VerifyEVRange(c))
}

func TestWithDecisionReason_TruncatesToMaxLength(t *testing.T) {
	long := strings.Repeat("x", maxDecisionReasonLen+50)
	snap := baseSnapshot().WithDecisionReason(long)

	assert.Len(t, []rune(snap.DecisionReason), maxDecisionReasonLen)
}

func TestWithDecisionReason_ShortReasonUnchanged(t *testing.T) {
	snap := baseSnapshot().WithDecisionReason("self-consumption")
	assert.Equal(t, "self-consumption", snap.DecisionReason)
}
