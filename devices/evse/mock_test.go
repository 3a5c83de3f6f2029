package evse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cepro/besscontroller/devices"
)

func testCaps() devices.EVSECapabilities {
	return devices.EVSECapabilities{
		MinCurrentA:   6,
		MaxCurrentA:   32,
		Phases:        1,
		ConnectorType: "type2",
	}
}

func TestMockEVSE_SetCurrentBelowMinSnapsToZero(t *testing.T) {
	m := NewMockEVSE(testCaps(), true)

	require.NoError(t, m.SetCurrent(context.Background(), 3))
	state, err := m.ReadState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.0, state.CurrentA)
	assert.False(t, state.Charging)
}

func TestMockEVSE_SetCurrentClampsToMax(t *testing.T) {
	m := NewMockEVSE(testCaps(), true)

	require.NoError(t, m.SetCurrent(context.Background(), 100))
	state, err := m.ReadState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 32.0, state.CurrentA)
	assert.True(t, state.Charging)
}

func TestMockEVSE_StopZeroesCurrent(t *testing.T) {
	m := NewMockEVSE(testCaps(), true)
	require.NoError(t, m.SetCurrent(context.Background(), 16))
	require.NoError(t, m.Stop(context.Background()))

	state, err := m.ReadState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.0, state.CurrentA)
}

func TestMockEVSE_SetConnectedFalseZeroesCurrent(t *testing.T) {
	m := NewMockEVSE(testCaps(), true)
	require.NoError(t, m.SetCurrent(context.Background(), 16))

	m.SetConnected(false)

	state, err := m.ReadState(context.Background())
	require.NoError(t, err)
	assert.False(t, state.Connected)
	assert.Equal(t, 0.0, state.CurrentA)
}
