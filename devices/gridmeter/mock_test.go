package gridmeter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockGridMeter_PositiveNetPowerReadsAsImport(t *testing.T) {
	m := NewMockGridMeter()
	m.SetNetPower(3)

	reading, err := m.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3.0, reading.ImportKW)
	assert.Equal(t, 0.0, reading.ExportKW)
}

func TestMockGridMeter_NegativeNetPowerReadsAsExport(t *testing.T) {
	m := NewMockGridMeter()
	m.SetNetPower(-2)

	reading, err := m.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.0, reading.ImportKW)
	assert.Equal(t, 2.0, reading.ExportKW)
}

func TestMockGridMeter_DefaultsToNominalFrequencyAndVoltage(t *testing.T) {
	m := NewMockGridMeter()

	reading, err := m.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 50.0, reading.FrequencyHz)
	assert.Equal(t, 230.0, reading.VoltageV)
}
