package powerflow

import (
	"context"
	"sync"
	"time"

	"github.com/cepro/besscontroller/devices"
	"github.com/cepro/besscontroller/flowmodel"
)

// caches holds the single-writer, many-reader last-known-good slots the
// control loop falls back to when a device read fails, implementing
// degraded-tick tolerance.
type caches struct {
	battery  devices.LastKnownGood[devices.BatteryState]
	evse     devices.LastKnownGood[devices.EVSEState]
	inverter devices.LastKnownGood[devices.InverterState]
	grid     devices.LastKnownGood[devices.MeterReading]
	house    devices.LastKnownGood[float64]
}

// gather fans out a read to every configured device concurrently and
// composes the result into a PowerFlowInputs, falling back to cached
// last-known-good values (bounded by maxStale) on a per-device failure.
// It never aborts the tick for a single device fault; only a genuinely
// stale reading with no usable fallback does that.
func (c *Controller) gather(ctx context.Context, now time.Time) (flowmodel.PowerFlowInputs, error) {
	var (
		wg                                      sync.WaitGroup
		batteryState                            devices.BatteryState
		inverterState                           devices.InverterState
		gridReading                             devices.MeterReading
		houseLoadKW                             float64
		evState                                 devices.EVSEState
		batteryErr, inverterErr, gridErr, houseErr, evErr error
		evConnected                             bool
	)

	wg.Add(4)
	go func() {
		defer wg.Done()
		batteryState, batteryErr = c.battery.ReadState(ctx)
	}()
	go func() {
		defer wg.Done()
		inverterState, inverterErr = c.inverter.ReadState(ctx)
	}()
	go func() {
		defer wg.Done()
		gridReading, gridErr = c.gridMeter.Read(ctx)
	}()
	go func() {
		defer wg.Done()
		houseLoadKW, houseErr = c.houseMeter.ReadLoadKW(ctx)
	}()
	if c.evse != nil {
		evConnected = true
		wg.Add(1)
		go func() {
			defer wg.Done()
			evState, evErr = c.evse.ReadState(ctx)
		}()
	}
	wg.Wait()

	degraded := false

	if batteryErr != nil {
		c.logger.Warn("battery read failed, falling back to last known good", "error", batteryErr)
		cached, ok := c.cache.battery.Get(now, c.cfg.MaxStaleness)
		if !ok {
			return flowmodel.PowerFlowInputs{}, &staleInputError{device: "battery", err: batteryErr}
		}
		batteryState = cached
		degraded = true
	} else {
		c.cache.battery.Set(batteryState, now)
	}

	if inverterErr != nil {
		c.logger.Warn("inverter read failed, falling back to last known good", "error", inverterErr)
		cached, ok := c.cache.inverter.Get(now, c.cfg.MaxStaleness)
		if !ok {
			return flowmodel.PowerFlowInputs{}, &staleInputError{device: "inverter", err: inverterErr}
		}
		inverterState = cached
		degraded = true
	} else {
		c.cache.inverter.Set(inverterState, now)
	}

	if gridErr != nil {
		c.logger.Warn("grid meter read failed, falling back to last known good", "error", gridErr)
		cached, ok := c.cache.grid.Get(now, c.cfg.MaxStaleness)
		if !ok {
			return flowmodel.PowerFlowInputs{}, &staleInputError{device: "grid_meter", err: gridErr}
		}
		gridReading = cached
		degraded = true
	} else {
		c.cache.grid.Set(gridReading, now)
	}

	if houseErr != nil {
		c.logger.Warn("house meter read failed, falling back to last known good", "error", houseErr)
		cached, ok := c.cache.house.Get(now, c.cfg.MaxStaleness)
		if !ok {
			return flowmodel.PowerFlowInputs{}, &staleInputError{device: "house_meter", err: houseErr}
		}
		houseLoadKW = cached
		degraded = true
	} else {
		c.cache.house.Set(houseLoadKW, now)
	}

	var ev *flowmodel.EVState
	if evConnected {
		if evErr != nil {
			c.logger.Warn("evse read failed, falling back to last known good", "error", evErr)
			cached, ok := c.cache.evse.Get(now, c.cfg.MaxStaleness)
			if !ok {
				// No usable EV state: treat as disconnected rather than
				// aborting the whole tick over an optional device.
				ev = nil
				degraded = true
			} else {
				evState = cached
				degraded = true
				ev = c.buildEVState(evState, now)
			}
		} else {
			c.cache.evse.Set(evState, now)
			ev = c.buildEVState(evState, now)
		}
	}

	priceKW, _ := c.forecast.PriceAt(now)

	return flowmodel.PowerFlowInputs{
		PVProductionKW: inverterState.ACPowerKW,
		HouseLoadKW:    houseLoadKW,
		BatterySoCPct:  batteryState.SoCPct,
		BatteryTempC:   batteryTempOrDefault(batteryState),
		EV:             ev,
		GridPrice:      priceKW,
		Timestamp:      now,
		Degraded:       degraded,
	}, nil
}

func batteryTempOrDefault(state devices.BatteryState) float64 {
	if state.TemperatureC != nil {
		return *state.TemperatureC
	}
	return 25
}

func (c *Controller) buildEVState(state devices.EVSEState, now time.Time) *flowmodel.EVState {
	if !state.Connected {
		return &flowmodel.EVState{Connected: false}
	}

	socPct := 0.0
	if state.VehicleSoCPct != nil {
		socPct = *state.VehicleSoCPct
	}

	ev := &flowmodel.EVState{
		Connected:    true,
		SoCPct:       socPct,
		CapacityKWh:  c.cfg.EVBatteryCapacityKWh,
		MaxChargeKW:  c.constraints.Physical.EVSEMaxPowerKW(),
		TargetSoCPct: 100,
	}
	if c.constraints.Economic.EVTargetSoCPct != nil {
		ev.TargetSoCPct = *c.constraints.Economic.EVTargetSoCPct
	}
	if c.constraints.Economic.EVDepartureTime != nil {
		ev.DepartureTime = time.Unix(*c.constraints.Economic.EVDepartureTime, 0)
		ev.HasDepartureAt = true
	}
	return ev
}

// staleInputError reports that a device read failed and no last-known-good
// fallback was usable, making the tick's inputs untrustworthy.
type staleInputError struct {
	device string
	err    error
}

func (e *staleInputError) Error() string {
	return "no usable reading for " + e.device + ": " + e.err.Error()
}

func (e *staleInputError) Unwrap() error { return e.err }
