// Package quantity provides small validated value types for the physical
// quantities that flow through the power-flow model: power, energy,
// current, voltage, percentages and price. Each type is constructed via a
// NewX function that rejects NaN, infinities, and values outside a
// domain-sensible range, so that once a value exists in the system it is
// known to be usable in arithmetic without further checks.
package quantity

import (
	"fmt"
	"math"
)

// PowerKW is a power value in kilowatts. For batteries, positive means
// charging/absorbing and negative means discharging/sourcing. All other
// power quantities (PV, house load, EV, grid import/export) are
// non-negative.
type PowerKW float64

// NewPowerKW validates a power value. If signed is false, negative values
// are rejected.
func NewPowerKW(kw float64, signed bool) (PowerKW, error) {
	if err := checkFinite("power_kw", kw); err != nil {
		return 0, err
	}
	if !signed && kw < 0 {
		return 0, fmt.Errorf("power_kw %g must not be negative", kw)
	}
	if math.Abs(kw) > 1000 {
		return 0, fmt.Errorf("power_kw %g out of domain range", kw)
	}
	return PowerKW(kw), nil
}

// EnergyKWh is an energy value in kilowatt-hours. Always non-negative.
type EnergyKWh float64

func NewEnergyKWh(kwh float64) (EnergyKWh, error) {
	if err := checkFinite("energy_kwh", kwh); err != nil {
		return 0, err
	}
	if kwh < 0 {
		return 0, fmt.Errorf("energy_kwh %g must not be negative", kwh)
	}
	return EnergyKWh(kwh), nil
}

// CurrentA is a current value in amperes. May be zero (stopped) or
// positive.
type CurrentA float64

func NewCurrentA(a float64) (CurrentA, error) {
	if err := checkFinite("current_a", a); err != nil {
		return 0, err
	}
	if a < 0 {
		return 0, fmt.Errorf("current_a %g must not be negative", a)
	}
	if a > 500 {
		return 0, fmt.Errorf("current_a %g out of domain range", a)
	}
	return CurrentA(a), nil
}

// VoltageV is a voltage value in volts.
type VoltageV float64

func NewVoltageV(v float64) (VoltageV, error) {
	if err := checkFinite("voltage_v", v); err != nil {
		return 0, err
	}
	if v <= 0 || v > 1000 {
		return 0, fmt.Errorf("voltage_v %g out of domain range", v)
	}
	return VoltageV(v), nil
}

// PercentSoC is a battery state of charge, 0-100.
type PercentSoC float64

func NewPercentSoC(pct float64) (PercentSoC, error) {
	if err := checkFinite("soc_pct", pct); err != nil {
		return 0, err
	}
	if pct < 0 || pct > 100 {
		return 0, fmt.Errorf("soc_pct %g out of [0,100]", pct)
	}
	return PercentSoC(pct), nil
}

// PercentEfficiency is an efficiency value, 0-100.
type PercentEfficiency float64

func NewPercentEfficiency(pct float64) (PercentEfficiency, error) {
	if err := checkFinite("efficiency_pct", pct); err != nil {
		return 0, err
	}
	if pct < 0 || pct > 100 {
		return 0, fmt.Errorf("efficiency_pct %g out of [0,100]", pct)
	}
	return PercentEfficiency(pct), nil
}

// PriceKWh is a price in local currency per kWh. May be negative (some
// markets pay to export during oversupply).
type PriceKWh float64

func NewPriceKWh(price float64) (PriceKWh, error) {
	if err := checkFinite("price_kwh", price); err != nil {
		return 0, err
	}
	if math.Abs(price) > 100 {
		return 0, fmt.Errorf("price_kwh %g out of domain range", price)
	}
	return PriceKWh(price), nil
}

// TemperatureC is a temperature in degrees Celsius.
type TemperatureC float64

func NewTemperatureC(c float64) (TemperatureC, error) {
	if err := checkFinite("temperature_c", c); err != nil {
		return 0, err
	}
	if c < -40 || c > 150 {
		return 0, fmt.Errorf("temperature_c %g out of domain range", c)
	}
	return TemperatureC(c), nil
}

func checkFinite(name string, v float64) error {
	if math.IsNaN(v) {
		return fmt.Errorf("%s is NaN", name)
	}
	if math.IsInf(v, 0) {
		return fmt.Errorf("%s is infinite", name)
	}
	return nil
}

// Clamp restricts v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Epsilon is the numeric tolerance used throughout the power-flow model for
// float comparisons. Never compare floats for equality directly.
const Epsilon = 0.01
