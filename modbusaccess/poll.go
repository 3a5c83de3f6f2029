package modbusaccess

import (
	"fmt"
	"maps"

	"github.com/grid-x/modbus"
)

// PollBlocks reads all the register `blocks` from the `client` and returns a map of the parsed values, keyed by metric name.
// The `scaler` instance is passed into any scaling functions defined in the register block.
func PollBlocks(client modbus.Client, scaler Scaler, blocks []RegisterBlock) (map[string]interface{}, error) {

	allMetrics := make(map[string]interface{})

	for _, block := range blocks {
		blockMetrics, err := PollBlock(client, scaler, block)
		if err != nil {
			return nil, fmt.Errorf("poll block '%s': %w", block.Name, err)
		}
		maps.Copy(allMetrics, blockMetrics)
	}

	return allMetrics, nil
}

// PollBlock reads a single register `block` from the `client` and returns a map of the parsed values, keyed by metric name.
// The `scaler` instance is passed into any scaling functions defined in the register block.
func PollBlock(client modbus.Client, scaler Scaler, block RegisterBlock) (map[string]interface{}, error) {

	// read the whole block of bytes from the modbus device
	raw, err := client.ReadHoldingRegisters(block.StartAddr, block.NumRegisters)
	if err != nil {
		return nil, fmt.Errorf("read block: %w", err)
	}

	return ExtractBlock(raw, scaler, block)
}
