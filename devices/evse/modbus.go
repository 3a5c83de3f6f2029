// Package evse provides EVSE capability implementations: a Modbus-backed
// AC charger (grounded on the pack's Sigenergy AC-charger register map)
// and a mock for tests and simulation.
package evse

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/cepro/besscontroller/devices"
	"github.com/cepro/besscontroller/quantity"
	"github.com/goburrow/modbus"
)

// Register layout for an IEC 61851 AC charger, addressed the way the
// pack's Sigenergy AC-charger block is: a read block of status/energy
// registers and single/double registers for the current setpoint and
// contactor state.
const (
	regSystemState         = 32000 // uint16, IEC 61851 system state
	regTotalEnergyConsumed = 32002 // uint32, /100 -> kWh
	regChargingPower       = 32006 // int32, /1000 -> kW
	numStatusRegisters     = 15

	regContactorCommand = 42000 // uint16, 0 = start, 1 = stop
	regOutputCurrent     = 42001 // uint32, *100 -> A
)

// ModbusEVSE drives an AC charger over Modbus TCP using the goburrow
// client stack (kept distinct from the simonvetter-backed battery/
// inverter client so both pack Modbus libraries are exercised).
type ModbusEVSE struct {
	client  modbus.Client
	handler *modbus.TCPClientHandler
	caps    devices.EVSECapabilities
	logger  *slog.Logger
}

// NewModbusEVSE connects to address (host:port) for the charger at slaveID.
func NewModbusEVSE(address string, slaveID byte, caps devices.EVSECapabilities) (*ModbusEVSE, error) {
	handler := modbus.NewTCPClientHandler(address)
	handler.SlaveId = slaveID
	handler.Timeout = devices.OperationDeadline

	if err := handler.Connect(); err != nil {
		return nil, fmt.Errorf("connect modbus handler: %w", err)
	}

	return &ModbusEVSE{
		client:  modbus.NewClient(handler),
		handler: handler,
		caps:    caps,
		logger:  slog.Default().With("component", "evse", "address", address),
	}, nil
}

func (e *ModbusEVSE) ReadState(ctx context.Context) (devices.EVSEState, error) {
	var state devices.EVSEState

	err := devices.WithRetry(ctx, e.logger, "evse read state", func(ctx context.Context) error {
		data, err := e.client.ReadInputRegisters(regSystemState, numStatusRegisters)
		if err != nil {
			return fmt.Errorf("%w: read status block: %v", devices.ErrCommunication, err)
		}

		systemState := binary.BigEndian.Uint16(data[0:2])
		energyKWh := float64(binary.BigEndian.Uint32(data[2:6])) / 100.0
		powerKW := float64(int32(binary.BigEndian.Uint32(data[6:10]))) / 1000.0

		state = devices.EVSEState{
			Connected:          systemState != 0,
			Charging:           systemState == 3, // IEC 61851 state C: charging
			PowerKW:            powerKW,
			EnergyDeliveredKWh: energyKWh,
		}
		if e.caps.Phases > 0 {
			state.CurrentA = powerKW * 1000 / (float64(e.caps.Phases) * 230.0)
		}
		return nil
	})

	return state, err
}

// SetCurrent sets the charging current. a must be 0 or within
// [MinCurrentA, MaxCurrentA]; values below MinCurrentA but above zero are
// snapped to zero per IEC 61851.
func (e *ModbusEVSE) SetCurrent(ctx context.Context, a float64) error {
	if a > 0 && a < e.caps.MinCurrentA {
		a = 0
	}
	a = quantity.Clamp(a, 0, e.caps.MaxCurrentA)

	return devices.WithRetry(ctx, e.logger, "evse set current", func(ctx context.Context) error {
		value := uint32(a * 100)
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, value)
		if _, err := e.client.WriteMultipleRegisters(regOutputCurrent, 2, buf); err != nil {
			return fmt.Errorf("%w: write output current: %v", devices.ErrCommunication, err)
		}
		return nil
	})
}

func (e *ModbusEVSE) Start(ctx context.Context) error {
	return devices.WithRetry(ctx, e.logger, "evse start", func(ctx context.Context) error {
		if _, err := e.client.WriteSingleRegister(regContactorCommand, 0); err != nil {
			return fmt.Errorf("%w: start charger: %v", devices.ErrCommunication, err)
		}
		return nil
	})
}

func (e *ModbusEVSE) Stop(ctx context.Context) error {
	return devices.WithRetry(ctx, e.logger, "evse stop", func(ctx context.Context) error {
		if _, err := e.client.WriteSingleRegister(regContactorCommand, 1); err != nil {
			return fmt.Errorf("%w: stop charger: %v", devices.ErrCommunication, err)
		}
		return nil
	})
}

func (e *ModbusEVSE) Capabilities() devices.EVSECapabilities {
	return e.caps
}

func (e *ModbusEVSE) Close() error {
	return e.handler.Close()
}
