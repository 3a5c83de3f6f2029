package powerflow

import "github.com/cepro/besscontroller/quantity"

// rampBattery limits how far the battery setpoint may move from the
// previous tick's committed value, bounded by MaxBatteryRampKWPerS over
// the tick period.
func rampBattery(previous, target, maxRampKWPerS, tickSeconds float64) float64 {
	if maxRampKWPerS <= 0 {
		return target
	}
	maxStep := maxRampKWPerS * tickSeconds
	return quantity.Clamp(target, previous-maxStep, previous+maxStep)
}

// rampEVCurrent limits how far the EVSE current setpoint may move from the
// previous tick's committed value, per the same ramp pass applied to
// current instead of power.
func rampEVCurrent(previous, target, maxStepA float64) float64 {
	if maxStepA <= 0 {
		return target
	}
	return quantity.Clamp(target, previous-maxStepA, previous+maxStepA)
}
