package quantity

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPowerKW_RejectsNaNAndInf(t *testing.T) {
	_, err := NewPowerKW(math.NaN(), true)
	assert.Error(t, err)

	_, err = NewPowerKW(math.Inf(1), true)
	assert.Error(t, err)
}

func TestNewPowerKW_UnsignedRejectsNegative(t *testing.T) {
	_, err := NewPowerKW(-1, false)
	assert.Error(t, err)
}

func TestNewPowerKW_SignedAllowsNegative(t *testing.T) {
	v, err := NewPowerKW(-5, true)
	require.NoError(t, err)
	assert.Equal(t, PowerKW(-5), v)
}

func TestNewPowerKW_RejectsOutOfDomainRange(t *testing.T) {
	_, err := NewPowerKW(10000, true)
	assert.Error(t, err)
}

func TestNewEnergyKWh_RejectsNegative(t *testing.T) {
	_, err := NewEnergyKWh(-0.1)
	assert.Error(t, err)
}

func TestNewCurrentA_RejectsNegativeAndOutOfRange(t *testing.T) {
	_, err := NewCurrentA(-1)
	assert.Error(t, err)

	_, err = NewCurrentA(501)
	assert.Error(t, err)

	v, err := NewCurrentA(32)
	require.NoError(t, err)
	assert.Equal(t, CurrentA(32), v)
}

func TestNewVoltageV_RejectsZeroAndOutOfRange(t *testing.T) {
	_, err := NewVoltageV(0)
	assert.Error(t, err)

	_, err = NewVoltageV(1001)
	assert.Error(t, err)
}

func TestNewPercentSoC_RejectsOutOfBounds(t *testing.T) {
	_, err := NewPercentSoC(-1)
	assert.Error(t, err)

	_, err = NewPercentSoC(101)
	assert.Error(t, err)

	v, err := NewPercentSoC(50)
	require.NoError(t, err)
	assert.Equal(t, PercentSoC(50), v)
}

func TestNewPriceKWh_AllowsNegativeWithinRange(t *testing.T) {
	v, err := NewPriceKWh(-0.05)
	require.NoError(t, err)
	assert.Equal(t, PriceKWh(-0.05), v)
}

func TestNewPriceKWh_RejectsOutOfDomainRange(t *testing.T) {
	_, err := NewPriceKWh(101)
	assert.Error(t, err)
}

func TestNewTemperatureC_RejectsOutOfDomainRange(t *testing.T) {
	_, err := NewTemperatureC(-41)
	assert.Error(t, err)

	_, err = NewTemperatureC(151)
	assert.Error(t, err)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(-5, 0, 10))
	assert.Equal(t, 10.0, Clamp(15, 0, 10))
	assert.Equal(t, 5.0, Clamp(5, 0, 10))
}
