// Package inverter provides SolarInverter capability implementations: a
// Modbus-backed PV inverter (in the Acuvim2-style
// register layout, adapted from meter to inverter metrics) and a mock.
package inverter

import "github.com/cepro/besscontroller/modbusaccess"

var statusBlock = modbusaccess.RegisterBlock{
	Name:         "Status",
	StartAddr:    3000,
	NumRegisters: 14,
	Registers: map[string]modbusaccess.Register{
		"ACPower": {
			StartAddr: 3000,
			DataType:  modbusaccess.Int32Type,
		},
		"DCPower": {
			StartAddr: 3002,
			DataType:  modbusaccess.Int32Type,
		},
		"Temperature": {
			StartAddr: 3004,
			DataType:  modbusaccess.Int16Type,
		},
		"Mode": {
			StartAddr: 3005,
			DataType:  modbusaccess.Uint16Type,
		},
	},
}

var exportLimitBlock = modbusaccess.RegisterBlock{
	Name:         "ExportLimit",
	StartAddr:    3100,
	NumRegisters: 2,
	Registers: map[string]modbusaccess.Register{
		"ExportLimit": {
			StartAddr: 3100,
			DataType:  modbusaccess.Int32Type,
		},
	},
}
