package metrics

import (
	"math"

	"github.com/cepro/besscontroller/flowmodel"
)

// ObserveSnapshot updates the per-tick gauges from a committed snapshot.
// fuseLimitA is the configured fuse rating used to compute utilization;
// a zero or negative value leaves FuseUtilizationPct untouched.
func (r *Registry) ObserveSnapshot(snap *flowmodel.PowerSnapshot, fuseLimitA float64) {
	r.PVKW.Set(snap.PVKW)
	r.HouseLoadKW.Set(snap.HouseLoadKW)
	r.BatteryPowerKW.Set(snap.BatteryKW)
	r.EVPowerKW.Set(snap.EVKW)
	r.GridImportKW.Set(snap.GridImportKW)
	r.GridExportKW.Set(snap.GridExportKW)

	sources := snap.PVKW + snap.GridImportKW + math.Max(-snap.BatteryKW, 0)
	sinks := snap.HouseLoadKW + snap.EVKW + math.Max(snap.BatteryKW, 0) + snap.GridExportKW
	r.PowerBalanceErrorKW.Set(sources - sinks)

	if fuseLimitA > 0 {
		drawnA := snap.GridImportKW * 1000 / 230
		r.FuseUtilizationPct.Set(drawnA / fuseLimitA * 100)
	}
}
