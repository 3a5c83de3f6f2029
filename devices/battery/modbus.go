// Package battery provides Battery capability implementations: a
// Modbus-backed stationary battery (in the PowerPack-style
// driver) and a mock for tests and simulation.
package battery

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/cepro/besscontroller/devices"
	"github.com/cepro/besscontroller/modbus"
	"github.com/cepro/besscontroller/quantity"
)

const modbusTimeoutSecs = uint16(10)

// ModbusBattery drives a Tesla PowerPack-style stationary battery over
// Modbus TCP, in the direct real-power-command mode: every SetPower call
// toggles a heartbeat register alongside the power setpoint, and the first
// call switches the unit's command source into direct mode.
type ModbusBattery struct {
	client *modbus.Client
	caps   devices.BatteryCapabilities
	logger *slog.Logger

	heartbeatToggle        bool
	haveIssuedFirstCommand bool
}

// NewModbusBattery connects to host and reads the unit's nameplate
// configuration to populate its capabilities.
func NewModbusBattery(host string, roundTripEfficiency float64, chemistry string) (*ModbusBattery, error) {
	client, err := modbus.NewClient(host)
	if err != nil {
		return nil, fmt.Errorf("create modbus client: %w", err)
	}

	metrics, err := client.PollBlock(nil, configBlock)
	if err != nil {
		return nil, fmt.Errorf("poll config block: %w", err)
	}

	b := &ModbusBattery{
		client: client,
		logger: slog.Default().With("component", "battery", "host", host),
		caps: devices.BatteryCapabilities{
			CapacityKWh:         float64(metrics["Energy"].(int32)) / 1000.0,
			MaxChargeKW:         float64(metrics["MaxChargePower"].(int32)) / 1000.0,
			MaxDischargeKW:      float64(metrics["MaxDischargePower"].(int32)) / 1000.0,
			RoundTripEfficiency: roundTripEfficiency,
			Chemistry:           chemistry,
		},
	}

	return b, nil
}

func (b *ModbusBattery) ReadState(ctx context.Context) (devices.BatteryState, error) {
	var state devices.BatteryState

	err := devices.WithRetry(ctx, b.logger, "battery read state", func(ctx context.Context) error {
		metrics, err := b.client.PollBlock(nil, statusBlock)
		if err != nil {
			return fmt.Errorf("%w: poll status block: %v", devices.ErrCommunication, err)
		}

		socPct := float64(metrics["NominalEnergy"].(int32)) / 1000.0 / b.caps.CapacityKWh * 100
		state = devices.BatteryState{
			SoCPct:  quantity.Clamp(socPct, 0, 100),
			PowerKW: float64(metrics["BatteryTargetP"].(int32)) / 1000.0,
			Status:  commandSourceLabel(metrics["CommandSource"].(uint16)),
		}
		return nil
	})

	return state, err
}

// SetPower commands the battery to charge (positive) or discharge
// (negative) at kw, clamped to the unit's capabilities.
func (b *ModbusBattery) SetPower(ctx context.Context, kw float64) error {
	kw = quantity.Clamp(kw, -b.caps.MaxDischargeKW, b.caps.MaxChargeKW)

	return devices.WithRetry(ctx, b.logger, "battery set power", func(ctx context.Context) error {
		if err := b.client.WriteRegister(directRealPowerCommandBlock.Registers["Heartbeat"], b.nextHeartbeat()); err != nil {
			return fmt.Errorf("%w: write heartbeat: %v", devices.ErrCommunication, err)
		}

		watts := uint32(int32(math.Round(kw * 1000)))
		if err := b.client.WriteRegister(directRealPowerCommandBlock.Registers["Power"], watts); err != nil {
			return fmt.Errorf("%w: write power: %v", devices.ErrCommunication, err)
		}

		if !b.haveIssuedFirstCommand {
			if err := b.client.WriteRegister(directRealPowerCommandBlock.Registers["Timeout"], modbusTimeoutSecs); err != nil {
				return fmt.Errorf("%w: write timeout: %v", devices.ErrCommunication, err)
			}
			if err := b.client.WriteRegister(realPowerCommandBlock.Registers["Mode"], uint16(1)); err != nil {
				return fmt.Errorf("%w: write real power mode: %v", devices.ErrCommunication, err)
			}
			b.haveIssuedFirstCommand = true
		}

		return nil
	})
}

func (b *ModbusBattery) Capabilities() devices.BatteryCapabilities {
	return b.caps
}

func (b *ModbusBattery) Close() error {
	return b.client.Close()
}

// nextHeartbeat toggles the heartbeat value expected on every command.
func (b *ModbusBattery) nextHeartbeat() uint16 {
	b.heartbeatToggle = !b.heartbeatToggle
	if b.heartbeatToggle {
		return 1
	}
	return 0
}

func commandSourceLabel(v uint16) string {
	switch v {
	case 1:
		return "direct"
	default:
		return "other"
	}
}
