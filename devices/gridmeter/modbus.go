package gridmeter

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/cepro/besscontroller/devices"
	"github.com/cepro/besscontroller/modbusaccess"
	"github.com/grid-x/modbus"
	"github.com/mitchellh/mapstructure"
)

// powerMetrics mirrors powerBlock's register names so the raw map
// returned by modbusaccess.PollBlock can be decoded field-by-field
// instead of type-asserted by hand, following an acuvim2-style
// meter-reading decode pattern.
type powerMetrics struct {
	PowerTotalActive   float64
	Frequency          float64
	VoltageLineAverage float64
}

// ModbusGridMeter reads a three-phase utility connection meter over Modbus
// TCP, applying configured potential/current transformer ratios.
type ModbusGridMeter struct {
	client  modbus.Client
	handler *modbus.TCPClientHandler
	scaler  ptCTScaler
	logger  *slog.Logger
}

// NewModbusGridMeter connects to host (a grid-x TCP handler address) and
// applies the given transformer ratios to subsequent readings.
func NewModbusGridMeter(host string, pt1, pt2, ct1, ct2 float64) (*ModbusGridMeter, error) {
	handler := modbus.NewTCPClientHandler(host)
	handler.Timeout = devices.OperationDeadline
	handler.SlaveID = 0x01

	if err := handler.Connect(); err != nil {
		return nil, fmt.Errorf("connect modbus handler: %w", err)
	}

	return &ModbusGridMeter{
		client:  modbus.NewClient(handler),
		handler: handler,
		scaler:  ptCTScaler{pt1: pt1, pt2: pt2, ct1: ct1, ct2: ct2},
		logger:  slog.Default().With("component", "gridmeter", "host", host),
	}, nil
}

func (g *ModbusGridMeter) Read(ctx context.Context) (devices.MeterReading, error) {
	var reading devices.MeterReading

	err := devices.WithRetry(ctx, g.logger, "grid meter read", func(ctx context.Context) error {
		raw, err := modbusaccess.PollBlock(g.client, g.scaler, powerBlock)
		if err != nil {
			return fmt.Errorf("%w: poll power block: %v", devices.ErrCommunication, err)
		}

		var metrics powerMetrics
		if err := mapstructure.Decode(raw, &metrics); err != nil {
			return fmt.Errorf("decode power metrics: %w", err)
		}

		reading = devices.MeterReading{
			ImportKW:    math.Max(0, metrics.PowerTotalActive),
			ExportKW:    math.Max(0, -metrics.PowerTotalActive),
			FrequencyHz: metrics.Frequency,
			VoltageV:    metrics.VoltageLineAverage,
		}
		return nil
	})

	return reading, err
}

func (g *ModbusGridMeter) Close() error {
	return g.handler.Close()
}
