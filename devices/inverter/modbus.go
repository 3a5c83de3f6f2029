package inverter

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/cepro/besscontroller/devices"
	"github.com/cepro/besscontroller/modbus"
)

// ModbusInverter drives a PV inverter over Modbus TCP via the
// simonvetter-backed client, reusing its reconnect-on-fault behaviour.
type ModbusInverter struct {
	client *modbus.Client
	logger *slog.Logger
}

func NewModbusInverter(host string) (*ModbusInverter, error) {
	client, err := modbus.NewClient(host)
	if err != nil {
		return nil, fmt.Errorf("create modbus client: %w", err)
	}

	return &ModbusInverter{
		client: client,
		logger: slog.Default().With("component", "inverter", "host", host),
	}, nil
}

func (i *ModbusInverter) ReadState(ctx context.Context) (devices.InverterState, error) {
	var state devices.InverterState

	err := devices.WithRetry(ctx, i.logger, "inverter read state", func(ctx context.Context) error {
		metrics, err := i.client.PollBlock(nil, statusBlock)
		if err != nil {
			return fmt.Errorf("%w: poll status block: %v", devices.ErrCommunication, err)
		}

		acKW := float64(metrics["ACPower"].(int32)) / 1000.0
		dcKW := float64(metrics["DCPower"].(int32)) / 1000.0
		efficiency := 0.0
		if dcKW > 0 {
			efficiency = math.Min(100, acKW/dcKW*100)
		}

		state = devices.InverterState{
			ACPowerKW:     acKW,
			DCPowerKW:     dcKW,
			EfficiencyPct: efficiency,
			TemperatureC:  float64(metrics["Temperature"].(int16)),
			Mode:          modeLabel(metrics["Mode"].(uint16)),
		}
		return nil
	})

	return state, err
}

// SetExportLimit curtails the inverter's AC export to at most kw.
func (i *ModbusInverter) SetExportLimit(ctx context.Context, kw float64) error {
	return devices.WithRetry(ctx, i.logger, "inverter set export limit", func(ctx context.Context) error {
		watts := uint32(math.Max(0, kw) * 1000)
		if err := i.client.WriteRegister(exportLimitBlock.Registers["ExportLimit"], watts); err != nil {
			return fmt.Errorf("%w: write export limit: %v", devices.ErrCommunication, err)
		}
		return nil
	})
}

func (i *ModbusInverter) Close() error {
	return i.client.Close()
}

func modeLabel(v uint16) string {
	switch v {
	case 0:
		return "standby"
	case 1:
		return "running"
	case 2:
		return "fault"
	default:
		return "unknown"
	}
}
