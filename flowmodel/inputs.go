package flowmodel

import "time"

// EVState describes the state of the charge point's vehicle at tick start.
// It is nil in PowerFlowInputs when no EVSE state is available; Connected
// is false when the charge point reports no vehicle plugged in.
type EVState struct {
	Connected      bool
	SoCPct         float64
	CapacityKWh    float64
	MaxChargeKW    float64
	TargetSoCPct   float64
	DepartureTime  time.Time
	HasDepartureAt bool // false when the vehicle reports no known departure time
}

// PowerFlowInputs is the immutable snapshot of all measurements taken at
// tick start. It is created per tick and discarded once the resulting
// snapshot commits.
type PowerFlowInputs struct {
	PVProductionKW float64
	HouseLoadKW    float64
	BatterySoCPct  float64
	BatteryTempC   float64
	EV             *EVState
	GridPrice      float64
	Timestamp      time.Time

	// Degraded is true when one or more of the fields above was filled in
	// from a last-known-good cache rather than a fresh reading.
	Degraded bool
}
