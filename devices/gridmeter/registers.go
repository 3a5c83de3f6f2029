// Package gridmeter provides GridMeter capability implementations: a
// Modbus-backed three-phase utility meter (in the style of the
// Acuvim2 driver) and a mock for tests and simulation.
package gridmeter

import "github.com/cepro/besscontroller/modbusaccess"

var powerBlock = modbusaccess.RegisterBlock{
	Name:         "Power",
	StartAddr:    12288,
	NumRegisters: 60,
	Registers: map[string]modbusaccess.Register{
		"Frequency": {
			StartAddr: 12288,
			DataType:  modbusaccess.FloatType,
		},
		"VoltageLineAverage": {
			StartAddr:   12304,
			DataType:    modbusaccess.FloatType,
			ScalingFunc: scaleVoltage,
		},
		"PowerTotalActive": {
			StartAddr:   12322,
			DataType:    modbusaccess.FloatType,
			ScalingFunc: scalePower,
		},
	},
}

var energyBlock = modbusaccess.RegisterBlock{
	Name:         "Energy",
	StartAddr:    16456,
	NumRegisters: 4,
	Registers: map[string]modbusaccess.Register{
		"EnergyImported": {
			StartAddr:   16456,
			DataType:    modbusaccess.Int32Type,
			ScalingFunc: scaleEnergy,
		},
		"EnergyExported": {
			StartAddr:   16458,
			DataType:    modbusaccess.Int32Type,
			ScalingFunc: scaleEnergy,
		},
	},
}

// ptCTScaler applies installed potential/current transformer ratios to raw
// meter register values, using a pt1/pt2/ct1/ct2 scaling
// functions.
type ptCTScaler struct {
	pt1, pt2 float64
	ct1, ct2 float64
}

func scaleVoltage(scaler modbusaccess.Scaler, val interface{}) interface{} {
	s := scaler.(ptCTScaler)
	return val.(float64) * (s.pt1 / s.pt2)
}

func scalePower(scaler modbusaccess.Scaler, val interface{}) interface{} {
	s := scaler.(ptCTScaler)
	return (val.(float64) * (s.pt1 / s.pt2) * (s.ct1 / s.ct2)) / 1000
}

func scaleEnergy(scaler modbusaccess.Scaler, val interface{}) interface{} {
	return float64(val.(int32)) / 10
}
