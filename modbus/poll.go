package modbus

import (
	"encoding/binary"
	"fmt"

	"github.com/cepro/besscontroller/modbusaccess"
	"github.com/simonvetter/modbus"
)

// PollBlock reads the given register block from the device and returns the
// decoded metrics, keyed by name. Reconnects first if a previous operation
// flagged the connection as dirty.
func (c *Client) PollBlock(scaler modbusaccess.Scaler, block modbusaccess.RegisterBlock) (map[string]interface{}, error) {
	if err := c.reconnectIfNeccesary(); err != nil {
		return nil, fmt.Errorf("reconnect: %w", err)
	}

	regs, err := c.subClient.ReadRegisters(block.StartAddr, block.NumRegisters, modbus.HOLDING_REGISTER)
	if err != nil {
		c.setShouldReconnect()
		return nil, fmt.Errorf("read registers at %d: %w", block.StartAddr, err)
	}

	return modbusaccess.ExtractBlock(registersToBytes(regs), scaler, block)
}

// WriteRegister encodes val according to register's data type and writes
// it to the device.
func (c *Client) WriteRegister(register modbusaccess.Register, val interface{}) error {
	if err := c.reconnectIfNeccesary(); err != nil {
		return fmt.Errorf("reconnect: %w", err)
	}

	encoded := modbusaccess.EncodeRegister(register, val)
	if encoded == nil {
		return fmt.Errorf("register has no write support")
	}

	err := c.subClient.WriteRegisters(register.StartAddr, bytesToRegisters(encoded))
	if err != nil {
		c.setShouldReconnect()
		return fmt.Errorf("write register %d: %w", register.StartAddr, err)
	}

	return nil
}

func registersToBytes(regs []uint16) []byte {
	b := make([]byte, len(regs)*2)
	for i, r := range regs {
		binary.BigEndian.PutUint16(b[i*2:], r)
	}
	return b
}

func bytesToRegisters(b []byte) []uint16 {
	regs := make([]uint16, len(b)/2)
	for i := range regs {
		regs[i] = binary.BigEndian.Uint16(b[i*2:])
	}
	return regs
}
