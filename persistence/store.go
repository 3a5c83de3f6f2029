// Package persistence buffers committed power snapshots to a local,
// durable SQLite store and uploads them to a hosted Postgres instance in
// the background, in a two-tier local-buffer-then-remote-upload shape, and
// dataplatform packages: nothing is lost if the network is down, and
// nothing blocks the control loop waiting for it to come back.
package persistence

import (
	"context"
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cepro/besscontroller/flowmodel"
)

// StoredSnapshot is a flowmodel.PowerSnapshot persisted to SQLite, with an
// upload attempt count used to prioritise never-yet-uploaded rows and
// eventually give up retrying stuck ones.
type StoredSnapshot struct {
	ID                      uuid.UUID `gorm:"primaryKey"`
	Time                    int64     `gorm:"index"`
	PVKW                    float64   `gorm:"check:snapshot_invariants,pv_kw >= 0 AND house_load_kw >= 0 AND grid_import_kw >= 0 AND grid_export_kw >= 0 AND battery_soc_pct >= 0 AND battery_soc_pct <= 100"`
	HouseLoadKW             float64
	BatteryKW               float64
	EVKW                    float64
	GridImportKW            float64
	GridExportKW            float64
	BatterySoCPct           float64
	BatteryTempC            *float64
	GridFrequencyHz         *float64
	GridVoltageV            *float64
	GridAvailable           bool
	ConstraintsVersion      string
	FuseLimitA              float64
	ControlMode             string
	DecisionReason          string
	ScheduleID              string
	SpotPrice               float64
	EstimatedCost           float64
	DeviationFromScheduleKW *float64
	UploadAttemptCount      uint
}

func newStoredSnapshot(snap *flowmodel.PowerSnapshot) StoredSnapshot {
	scheduleID := ""
	if snap.ScheduleID != nil {
		scheduleID = *snap.ScheduleID
	}
	return StoredSnapshot{
		ID:                      uuid.New(),
		Time:                    snap.Timestamp.UnixNano(),
		PVKW:                    snap.PVKW,
		HouseLoadKW:             snap.HouseLoadKW,
		BatteryKW:               snap.BatteryKW,
		EVKW:                    snap.EVKW,
		GridImportKW:            snap.GridImportKW,
		GridExportKW:            snap.GridExportKW,
		BatterySoCPct:           snap.BatterySoCPct,
		BatteryTempC:            snap.BatteryTempC,
		GridFrequencyHz:         snap.GridFrequencyHz,
		GridVoltageV:            snap.GridVoltageV,
		GridAvailable:           snap.GridAvailable,
		ControlMode:             string(snap.ControlMode),
		DecisionReason:          snap.DecisionReason,
		ConstraintsVersion:      snap.ConstraintsVersion,
		FuseLimitA:              snap.FuseLimitA,
		ScheduleID:              scheduleID,
		SpotPrice:               snap.SpotPrice,
		EstimatedCost:           snap.EstimatedCost,
		DeviationFromScheduleKW: snap.DeviationFromScheduleKW,
		UploadAttemptCount:      0,
	}
}

// Store is the local durable buffer tier: every committed snapshot lands
// here first, synchronously, before the uploader tier ever sees it.
type Store struct {
	db *gorm.DB
}

// NewStore opens (creating if necessary) the SQLite file at path and
// migrates the snapshot table.
func NewStore(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.AutoMigrate(&StoredSnapshot{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Put persists snap to the local buffer. It never touches the network and
// is safe to call on every tick.
func (s *Store) Put(ctx context.Context, snap *flowmodel.PowerSnapshot) error {
	stored := newStoredSnapshot(snap)
	result := s.db.WithContext(ctx).Create(&stored)
	return result.Error
}

// Pending returns up to limit buffered rows, prioritising rows that have
// never been uploaded and, among those, the most recent first.
func (s *Store) Pending(ctx context.Context, limit int) ([]StoredSnapshot, error) {
	var rows []StoredSnapshot
	result := s.db.WithContext(ctx).
		Limit(limit).
		Order("upload_attempt_count asc, time desc").
		Find(&rows)
	if result.Error != nil {
		return nil, result.Error
	}
	return rows, nil
}

// Delete removes rows (by ID) that have been successfully uploaded.
func (s *Store) Delete(ctx context.Context, rows []StoredSnapshot) error {
	if len(rows) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	result := s.db.WithContext(ctx).Delete(&StoredSnapshot{}, "id in ?", ids)
	return result.Error
}

// IncrementUploadAttemptCount bumps the retry counter on rows whose
// upload failed, so the next Pending call deprioritises them behind
// fresher, never-tried rows.
func (s *Store) IncrementUploadAttemptCount(ctx context.Context, rows []StoredSnapshot) error {
	if len(rows) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	result := s.db.WithContext(ctx).
		Model(&StoredSnapshot{}).
		Where("id in ?", ids).
		UpdateColumn("upload_attempt_count", gorm.Expr("upload_attempt_count + ?", 1))
	return result.Error
}

var _ Sink = (*Store)(nil)
