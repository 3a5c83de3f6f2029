// Package devices defines the abstract capability contracts that the
// power-flow model and controller consume for each hardware category:
// battery, EVSE, solar inverter, grid meter, and house meter.
// Implementations may back onto real hardware (Modbus), a simulator, or a
// mock; dispatch happens through the capability interface, never through
// inheritance.
package devices

import (
	"context"
	"errors"
	"time"
)

// Typed errors every device operation may return.
var (
	ErrCommunication = errors.New("device communication error")
	ErrOutOfRange     = errors.New("device value out of range")
	ErrDeviceFault    = errors.New("device fault")
)

// OperationDeadline is the per-operation deadline every device call must
// honor.
const OperationDeadline = 5 * time.Second

// BatteryState is the result of Battery.ReadState.
type BatteryState struct {
	SoCPct      float64
	PowerKW     float64 // signed: +charge, -discharge
	VoltageV    *float64
	TemperatureC *float64
	HealthPct   *float64
	Status      string
}

// BatteryCapabilities is the result of Battery.Capabilities.
type BatteryCapabilities struct {
	CapacityKWh         float64
	MaxChargeKW         float64
	MaxDischargeKW      float64
	RoundTripEfficiency float64
	Chemistry           string
}

// Battery is the capability contract for a stationary battery.
type Battery interface {
	ReadState(ctx context.Context) (BatteryState, error)
	// SetPower commands the battery to charge (positive) or discharge
	// (negative) at kw. Implementations clamp to their capabilities and
	// must treat repeated calls with the same value as a no-op.
	SetPower(ctx context.Context, kw float64) error
	Capabilities() BatteryCapabilities
}

// EVSEState is the result of EVSE.ReadState.
type EVSEState struct {
	Connected           bool
	Charging            bool
	CurrentA             float64
	PowerKW              float64
	EnergyDeliveredKWh   float64
	SessionSeconds       int
	VehicleSoCPct        *float64
}

// EVSECapabilities is the result of EVSE.Capabilities.
type EVSECapabilities struct {
	MinCurrentA   float64
	MaxCurrentA   float64
	Phases        int
	ConnectorType string
}

// EVSE is the capability contract for an electric vehicle charging
// station.
type EVSE interface {
	ReadState(ctx context.Context) (EVSEState, error)
	// SetCurrent sets the charging current. a must be 0 (stop) or within
	// [MinCurrentA, MaxCurrentA].
	SetCurrent(ctx context.Context, a float64) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Capabilities() EVSECapabilities
}

// InverterState is the result of SolarInverter.ReadState.
type InverterState struct {
	ACPowerKW     float64
	DCPowerKW     float64
	EfficiencyPct float64
	TemperatureC  float64
	Mode          string
}

// SolarInverter is the capability contract for a PV inverter.
type SolarInverter interface {
	ReadState(ctx context.Context) (InverterState, error)
	// SetExportLimit optionally curtails AC export power. Implementations
	// that cannot curtail return ErrDeviceFault.
	SetExportLimit(ctx context.Context, kw float64) error
}

// MeterReading is the result of GridMeter.Read.
type MeterReading struct {
	ImportKW    float64
	ExportKW    float64
	FrequencyHz float64
	VoltageV    float64
}

// GridMeter is the capability contract for the utility connection meter.
type GridMeter interface {
	Read(ctx context.Context) (MeterReading, error)
}

// HouseMeter is the capability contract for the household load meter.
type HouseMeter interface {
	ReadLoadKW(ctx context.Context) (float64, error)
}
