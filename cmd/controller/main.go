package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/cepro/besscontroller/config"
	"github.com/cepro/besscontroller/devices"
	"github.com/cepro/besscontroller/devices/battery"
	"github.com/cepro/besscontroller/devices/evse"
	"github.com/cepro/besscontroller/devices/gridmeter"
	"github.com/cepro/besscontroller/devices/housemeter"
	"github.com/cepro/besscontroller/devices/inverter"
	"github.com/cepro/besscontroller/flowmodel"
	"github.com/cepro/besscontroller/forecast"
	"github.com/cepro/besscontroller/metrics"
	"github.com/cepro/besscontroller/persistence"
	"github.com/cepro/besscontroller/powerflow"
	"github.com/cepro/besscontroller/quantity"
	"github.com/cepro/besscontroller/safety"
	"github.com/cepro/besscontroller/schedule"
	"github.com/cepro/besscontroller/supabase"
)

const (
	defaultReoptimizeEvery = 15 * time.Minute
	defaultForecastPoll    = 5 * time.Minute
	defaultUploadInterval  = time.Minute
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)

	var configFilePath string
	flag.StringVar(&configFilePath, "f", "./config.json", "Specify config file path")
	flag.Parse()

	slog.Info("Starting", "config_file", configFilePath)

	cfg, err := config.Read(configFilePath)
	if err != nil {
		slog.Error("failed to read config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	d, err := buildDevices(cfg.Devices)
	if err != nil {
		slog.Error("failed to build devices", "error", err)
		os.Exit(1)
	}

	constraints := buildConstraints(cfg.Constraints)

	store, err := persistence.NewStore(cfg.Persistence.LocalBufferPath)
	if err != nil {
		slog.Error("failed to open local buffer", "error", err)
		os.Exit(1)
	}

	ringCapacity := cfg.Persistence.RingCapacity
	if ringCapacity <= 0 {
		ringCapacity = 1000
	}
	ring := persistence.NewRing(ringCapacity)

	forecastClient := forecast.NewClient(http.DefaultClient, forecast.Config{
		PriceURL: cfg.Forecast.PriceURL,
		LoadURL:  cfg.Forecast.LoadURL,
		SolarURL: cfg.Forecast.SolarURL,
	})
	forecastPoll := time.Duration(cfg.Forecast.PollIntervalSecs) * time.Second
	if forecastPoll <= 0 {
		forecastPoll = defaultForecastPoll
	}
	go func() {
		if err := forecastClient.Run(ctx, forecastPoll); err != nil && ctx.Err() == nil {
			slog.Error("forecast client stopped", "error", err)
		}
	}()

	scheduleCell := schedule.NewCell()

	safetyMonitor := safety.NewMonitor(constraints.Safety)
	registry := metrics.NewRegistry()

	ctrl := powerflow.New(
		d,
		scheduleCell,
		forecastClient,
		safetyMonitor,
		store,
		ring,
		registry,
		constraints,
		powerflow.Config{
			TickPeriod:           time.Duration(cfg.Controller.TickSeconds) * time.Second,
			MaxStaleness:         time.Duration(cfg.Controller.MaxStaleS) * time.Second,
			MaxBatteryRampKWPerS: cfg.Controller.MaxRampKWPerS,
			MaxEVCurrentStepA:    cfg.Controller.MaxCurrentStepA,
			SiteFuseLimitA:       cfg.Controller.SiteFuseLimitA,
			EVBatteryCapacityKWh: cfg.Controller.EVBatteryCapacityKWh,
			ShutdownDeadline:     time.Duration(cfg.Controller.ShutdownDeadlineMs) * time.Millisecond,
		},
	)

	replanner := schedule.NewReplanner(scheduleCell, schedule.NewNaiveReplanner(24*time.Hour).Replan, ctrl.LastInputs, forecastClient)
	ctrl.SetReplanner(replanner)
	reoptimizeEvery := time.Duration(cfg.Controller.ReoptimizeEveryMinutes) * time.Minute
	if reoptimizeEvery <= 0 {
		reoptimizeEvery = defaultReoptimizeEvery
	}
	go replanner.Run(ctx, reoptimizeEvery)

	if cfg.Persistence.Supabase.URL != "" {
		uploader, err := buildUploader(cfg.Persistence, store)
		if err != nil {
			slog.Error("failed to set up remote upload tier, continuing with local buffer only", "error", err)
		} else {
			uploadInterval := time.Duration(cfg.Persistence.UploadIntervalSecs) * time.Second
			if uploadInterval <= 0 {
				uploadInterval = defaultUploadInterval
			}
			go func() {
				if err := uploader.Run(ctx, uploadInterval); err != nil && ctx.Err() == nil {
					slog.Error("uploader stopped", "error", err)
				}
			}()
		}
	}

	if err := ctrl.Run(ctx); err != nil && ctx.Err() == nil {
		slog.Error("power flow controller stopped", "error", err)
		os.Exit(1)
	}
}

func buildUploader(pcfg config.PersistenceConfig, store *persistence.Store) (*persistence.Uploader, error) {
	anonKey := os.Getenv(pcfg.Supabase.AnonKeyEnvVar)
	userKey := os.Getenv(pcfg.Supabase.UserKeyEnvVar)

	client, err := supabase.New(pcfg.Supabase.URL, anonKey, userKey, pcfg.Supabase.Schema)
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}

	return persistence.NewUploader(store, client), nil
}

func buildDevices(dc config.DevicesConfig) (powerflow.Devices, error) {
	var d powerflow.Devices

	switch {
	case dc.Battery.Modbus != nil:
		b, err := battery.NewModbusBattery(dc.Battery.Modbus.Host, dc.Battery.Modbus.RoundTripEfficiency, dc.Battery.Modbus.Chemistry)
		if err != nil {
			return d, fmt.Errorf("create modbus battery: %w", err)
		}
		d.Battery = b
	case dc.Battery.Mock != nil:
		m := dc.Battery.Mock
		d.Battery = battery.NewMockBattery(devices.BatteryCapabilities{
			CapacityKWh:    m.CapacityKWh,
			MaxChargeKW:    m.MaxChargeKW,
			MaxDischargeKW: m.MaxDischargeKW,
		}, m.InitialSoCPct)
	default:
		return d, fmt.Errorf("no battery configured")
	}

	if dc.EVSE != nil {
		switch {
		case dc.EVSE.Modbus != nil:
			mc := dc.EVSE.Modbus
			ev, err := evse.NewModbusEVSE(mc.Host, mc.SlaveID, devices.EVSECapabilities{
				MinCurrentA:   mc.MinCurrentA,
				MaxCurrentA:   mc.MaxCurrentA,
				Phases:        mc.Phases,
				ConnectorType: mc.ConnectorType,
			})
			if err != nil {
				return d, fmt.Errorf("create modbus evse: %w", err)
			}
			d.EVSE = ev
		case dc.EVSE.Mock != nil:
			mc := dc.EVSE.Mock
			d.EVSE = evse.NewMockEVSE(devices.EVSECapabilities{
				MinCurrentA:   mc.MinCurrentA,
				MaxCurrentA:   mc.MaxCurrentA,
				Phases:        mc.Phases,
				ConnectorType: mc.ConnectorType,
			}, mc.Connected)
		}
	}

	switch {
	case dc.Inverter.Modbus != nil:
		inv, err := inverter.NewModbusInverter(dc.Inverter.Modbus.Host)
		if err != nil {
			return d, fmt.Errorf("create modbus inverter: %w", err)
		}
		d.Inverter = inv
	case dc.Inverter.Mock != nil:
		d.Inverter = inverter.NewMockInverter()
	default:
		return d, fmt.Errorf("no inverter configured")
	}

	switch {
	case dc.GridMeter.Modbus != nil:
		mc := dc.GridMeter.Modbus
		gm, err := gridmeter.NewModbusGridMeter(mc.Host, mc.Pt1, mc.Pt2, mc.Ct1, mc.Ct2)
		if err != nil {
			return d, fmt.Errorf("create modbus grid meter: %w", err)
		}
		d.GridMeter = gm
	case dc.GridMeter.Mock != nil:
		d.GridMeter = gridmeter.NewMockGridMeter()
	default:
		return d, fmt.Errorf("no grid meter configured")
	}

	switch {
	case dc.HouseMeter.Modbus != nil:
		mc := dc.HouseMeter.Modbus
		hm, err := housemeter.NewModbusHouseMeter(mc.Host, mc.Pt1, mc.Pt2, mc.Ct1, mc.Ct2)
		if err != nil {
			return d, fmt.Errorf("create modbus house meter: %w", err)
		}
		d.HouseMeter = hm
	case dc.HouseMeter.Mock != nil:
		d.HouseMeter = &housemeter.MockHouseMeter{}
	default:
		return d, fmt.Errorf("no house meter configured")
	}

	return d, nil
}

func buildConstraints(cc config.ConstraintsConfig) flowmodel.Constraints {
	hysteresis := cc.Economic.ArbitrageHysteresis
	if hysteresis <= 0 {
		hysteresis = 0.05
	}

	return flowmodel.Constraints{
		Physical: flowmodel.PhysicalConstraints{
			MaxGridImportKW:     cc.Physical.MaxGridImportKW,
			MaxGridExportKW:     cc.Physical.MaxGridExportKW,
			MaxBatteryChargeKW:  cc.Physical.MaxBatteryChargeKW,
			MaxBatteryDischarge: cc.Physical.MaxBatteryDischarge,
			EVSEMinCurrentA:     cc.Physical.EVSEMinCurrentA,
			EVSEMaxCurrentA:     cc.Physical.EVSEMaxCurrentA,
			Phases:              cc.Physical.Phases,
			PhaseVoltageV:       cc.Physical.PhaseVoltageV,
		},
		Safety: flowmodel.SafetyConstraints{
			BatteryMinSoCPct:       cc.Safety.BatteryMinSoCPct,
			BatteryMaxSoCPct:       cc.Safety.BatteryMaxSoCPct,
			HousePriority:          cc.Safety.HousePriority,
			MaxBatteryCyclesPerDay: cc.Safety.MaxBatteryCyclesPerDay,
			MaxBatteryTempC:        cc.Safety.MaxBatteryTempC,
		},
		Economic: flowmodel.EconomicConstraints{
			PreferSelfConsumption:   cc.Economic.PreferSelfConsumption,
			ArbitrageThresholdPrice: quantity.PriceKWh(cc.Economic.ArbitrageThresholdPrice),
			ArbitrageHysteresis:     hysteresis,
			EVDepartureTime:         cc.Economic.EVDepartureTime,
			EVTargetSoCPct:          cc.Economic.EVTargetSoCPct,
		},
		Version: cc.Version,
	}
}
