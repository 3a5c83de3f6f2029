package battery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cepro/besscontroller/devices"
)

func testCaps() devices.BatteryCapabilities {
	return devices.BatteryCapabilities{
		CapacityKWh:    10,
		MaxChargeKW:    5,
		MaxDischargeKW: 5,
	}
}

func TestMockBattery_SetPowerClampsToCapabilities(t *testing.T) {
	b := NewMockBattery(testCaps(), 50)

	require.NoError(t, b.SetPower(context.Background(), 100))
	state, err := b.ReadState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5.0, state.PowerKW)

	require.NoError(t, b.SetPower(context.Background(), -100))
	state, err = b.ReadState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, -5.0, state.PowerKW)
}

func TestMockBattery_InitialSoCIsClamped(t *testing.T) {
	b := NewMockBattery(testCaps(), 150)
	state, err := b.ReadState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 100.0, state.SoCPct)
}

func TestMockBattery_CapabilitiesReturnsConfigured(t *testing.T) {
	caps := testCaps()
	b := NewMockBattery(caps, 50)
	assert.Equal(t, caps, b.Capabilities())
}
