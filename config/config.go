// Package config provides a flat os.ReadFile+json.Unmarshal config
// loader covering the full constraint hierarchy, controller tuning
// knobs, and a tagged-union-by-pointer-field device configuration for
// each of the five device kinds.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
)

// DeviceEndpoint is the common connection shape shared by every Modbus
// device kind.
type DeviceEndpoint struct {
	Host             string `json:"host"`
	PollIntervalSecs int    `json:"pollIntervalSecs"`
}

type ModbusBatteryConfig struct {
	DeviceEndpoint
	RoundTripEfficiency float64 `json:"roundTripEfficiency"`
	Chemistry           string  `json:"chemistry"`
}

type MockBatteryConfig struct {
	CapacityKWh    float64 `json:"capacityKWh"`
	MaxChargeKW    float64 `json:"maxChargeKW"`
	MaxDischargeKW float64 `json:"maxDischargeKW"`
	InitialSoCPct  float64 `json:"initialSoCPct"`
}

type BatteryConfig struct {
	Modbus *ModbusBatteryConfig `json:"modbus"`
	Mock   *MockBatteryConfig   `json:"mock"`
}

type ModbusEVSEConfig struct {
	DeviceEndpoint
	SlaveID       byte    `json:"slaveID"`
	MinCurrentA   float64 `json:"minCurrentA"`
	MaxCurrentA   float64 `json:"maxCurrentA"`
	Phases        int     `json:"phases"`
	ConnectorType string  `json:"connectorType"`
}

type MockEVSEConfig struct {
	MinCurrentA   float64 `json:"minCurrentA"`
	MaxCurrentA   float64 `json:"maxCurrentA"`
	Phases        int     `json:"phases"`
	ConnectorType string  `json:"connectorType"`
	Connected     bool    `json:"connected"`
}

// EVSEConfig is nil-able as a whole at the DevicesConfig level: a site
// with no EV charge point configures neither variant.
type EVSEConfig struct {
	Modbus *ModbusEVSEConfig `json:"modbus"`
	Mock   *MockEVSEConfig   `json:"mock"`
}

type ModbusInverterConfig struct {
	DeviceEndpoint
}

type MockInverterConfig struct{}

type InverterConfig struct {
	Modbus *ModbusInverterConfig `json:"modbus"`
	Mock   *MockInverterConfig   `json:"mock"`
}

type ModbusMeterConfig struct {
	DeviceEndpoint
	Pt1 float64 `json:"pt1"`
	Pt2 float64 `json:"pt2"`
	Ct1 float64 `json:"ct1"`
	Ct2 float64 `json:"ct2"`
}

type MockMeterConfig struct{}

type GridMeterConfig struct {
	Modbus *ModbusMeterConfig `json:"modbus"`
	Mock   *MockMeterConfig   `json:"mock"`
}

type HouseMeterConfig struct {
	Modbus *ModbusMeterConfig `json:"modbus"`
	Mock   *MockMeterConfig   `json:"mock"`
}

// DevicesConfig groups the endpoint configuration for all five device
// kinds. EVSE may be left entirely unconfigured (no EV charge point on
// site).
type DevicesConfig struct {
	Battery    BatteryConfig    `json:"battery"`
	EVSE       *EVSEConfig      `json:"evse"`
	Inverter   InverterConfig   `json:"inverter"`
	GridMeter  GridMeterConfig  `json:"gridMeter"`
	HouseMeter HouseMeterConfig `json:"houseMeter"`
}

// PhysicalConfig mirrors flowmodel.PhysicalConstraints in JSON form.
type PhysicalConfig struct {
	MaxGridImportKW     float64 `json:"maxGridImportKW"`
	MaxGridExportKW     float64 `json:"maxGridExportKW"`
	MaxBatteryChargeKW  float64 `json:"maxBatteryChargeKW"`
	MaxBatteryDischarge float64 `json:"maxBatteryDischargeKW"`
	EVSEMinCurrentA     float64 `json:"evseMinCurrentA"`
	EVSEMaxCurrentA     float64 `json:"evseMaxCurrentA"`
	Phases              int     `json:"phases"`
	PhaseVoltageV       float64 `json:"phaseVoltageV"`
}

// SafetyConfig mirrors flowmodel.SafetyConstraints in JSON form.
type SafetyConfig struct {
	BatteryMinSoCPct       float64 `json:"batteryMinSoCPct"`
	BatteryMaxSoCPct       float64 `json:"batteryMaxSoCPct"`
	HousePriority          bool    `json:"housePriority"`
	MaxBatteryCyclesPerDay float64 `json:"maxBatteryCyclesPerDay"`
	MaxBatteryTempC        float64 `json:"maxBatteryTempC"`
}

// EconomicConfig mirrors flowmodel.EconomicConstraints in JSON form.
type EconomicConfig struct {
	PreferSelfConsumption   bool    `json:"preferSelfConsumption"`
	ArbitrageThresholdPrice float64 `json:"arbitrageThresholdPrice"`
	ArbitrageHysteresis     float64 `json:"arbitrageHysteresis"`
	EVDepartureTime         *int64  `json:"evDepartureTime"`
	EVTargetSoCPct          *float64 `json:"evTargetSoCPct"`
}

type ConstraintsConfig struct {
	Physical PhysicalConfig `json:"physical"`
	Safety   SafetyConfig   `json:"safety"`
	Economic EconomicConfig `json:"economic"`
	Version  string         `json:"version"`
}

// ControllerConfig carries the control loop's tuning knobs.
type ControllerConfig struct {
	TickSeconds            int     `json:"tickSeconds"`
	ReoptimizeEveryMinutes int     `json:"reoptimizeEveryMinutes"`
	MaxStaleS              int     `json:"maxStaleS"`
	MaxRampKWPerS          float64 `json:"maxRampKWPerS"`
	MaxCurrentStepA        float64 `json:"maxCurrentStepA"`
	ShutdownDeadlineMs     int     `json:"shutdownDeadlineMs"`
	SiteFuseLimitA         float64 `json:"siteFuseLimitA"`
	EVBatteryCapacityKWh   float64 `json:"evBatteryCapacityKWh"`
}

// SupabaseConfig locates the hosted Supabase project and schema used by
// the remote upload tier; the table name is fixed by the uploader. It
// names the environment variables the auth keys are read from, never the
// keys themselves.
type SupabaseConfig struct {
	URL           string `json:"url"`
	AnonKeyEnvVar string `json:"anonKeyEnvVar"`
	UserKeyEnvVar string `json:"userKeyEnvVar"`
	Schema        string `json:"schema"`
}

type PersistenceConfig struct {
	LocalBufferPath    string         `json:"localBufferPath"`
	UploadIntervalSecs int            `json:"uploadIntervalSecs"`
	RingCapacity       int            `json:"ringCapacity"`
	Supabase           SupabaseConfig `json:"supabase"`
}

// ForecastConfig names the HTTP endpoints the forecast client polls.
type ForecastConfig struct {
	PriceURL         string `json:"priceURL"`
	LoadURL          string `json:"loadURL"`
	SolarURL         string `json:"solarURL"`
	PollIntervalSecs int    `json:"pollIntervalSecs"`
}

// Config is the root configuration document.
type Config struct {
	SiteID      uuid.UUID         `json:"siteID"`
	Devices     DevicesConfig     `json:"devices"`
	Constraints ConstraintsConfig `json:"constraints"`
	Controller  ControllerConfig  `json:"controller"`
	Persistence PersistenceConfig `json:"persistence"`
	Forecast    ForecastConfig    `json:"forecast"`
}

// Read loads and parses the JSON configuration document at path.
func Read(path string) (Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, nil
}
