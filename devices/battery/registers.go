package battery

import "github.com/cepro/besscontroller/modbusaccess"

// Register blocks for a Tesla PowerPack-style stationary battery, adapted
// from a powerpack-style register map onto the Battery capability.
var statusBlock = modbusaccess.RegisterBlock{
	Name:         "Status",
	StartAddr:    200,
	NumRegisters: 34,
	Registers: map[string]modbusaccess.Register{
		"CommandSource": {
			StartAddr: 200,
			DataType:  modbusaccess.Uint16Type,
		},
		"BatteryTargetP": {
			StartAddr: 201,
			DataType:  modbusaccess.Int32Type,
		},
		"NominalEnergy": {
			StartAddr: 207,
			DataType:  modbusaccess.Int32Type,
		},
		"AvailableBlocks": {
			StartAddr: 218,
			DataType:  modbusaccess.Uint16Type,
		},
	},
}

var configBlock = modbusaccess.RegisterBlock{
	Name:         "Config",
	StartAddr:    100,
	NumRegisters: 47,
	Registers: map[string]modbusaccess.Register{
		"MaxChargePower": {
			StartAddr: 139,
			DataType:  modbusaccess.Int32Type,
		},
		"MaxDischargePower": {
			StartAddr: 141,
			DataType:  modbusaccess.Int32Type,
		},
		"Energy": {
			StartAddr: 145,
			DataType:  modbusaccess.Int32Type,
		},
	},
}

var realPowerCommandBlock = modbusaccess.RegisterBlock{
	Name:         "RealPowerCommand",
	StartAddr:    1000,
	NumRegisters: 3,
	Registers: map[string]modbusaccess.Register{
		"Mode": {
			StartAddr: 1000,
			DataType:  modbusaccess.Uint16Type,
		},
	},
}

var directRealPowerCommandBlock = modbusaccess.RegisterBlock{
	Name:         "DirectRealPowerCommand",
	StartAddr:    1020,
	NumRegisters: 4,
	Registers: map[string]modbusaccess.Register{
		"Power": {
			StartAddr: 1020,
			DataType:  modbusaccess.Int32Type,
		},
		"Heartbeat": {
			StartAddr: 1022,
			DataType:  modbusaccess.Uint16Type,
		},
		"Timeout": {
			StartAddr: 1023,
			DataType:  modbusaccess.Uint16Type,
		},
	},
}
